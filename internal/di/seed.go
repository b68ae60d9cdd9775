package di

import (
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	"github.com/crumbhouse/bakery-api/internal/repositories"
)

// DemoReferenceData is the catalogue loaded into the memory driver so a local instance can take
// orders without any seeding step. Discount windows are anchored on now.
func DemoReferenceData(now time.Time) repositories.ReferenceData {
	now = now.UTC()
	welcomeLimit := int64(500)
	bigOrderMin := decimal.NewFromInt(1000)
	bigOrderCap := decimal.NewFromInt(150)

	return repositories.ReferenceData{
		Occasions: []domain.Occasion{
			{
				ID: "birthday", Name: "Birthday", Icon: "cake", DisplayOrder: 1, Active: true,
				SizePrices: []domain.OccasionSizePrice{{SizeID: "large", Price: decimal.NewFromInt(520)}},
			},
			{
				ID: "wedding", Name: "Wedding", Icon: "rings", DisplayOrder: 2, Active: true,
				SizePrices: []domain.OccasionSizePrice{
					{SizeID: "medium", Price: decimal.NewFromInt(450)},
					{SizeID: "large", Price: decimal.NewFromInt(750)},
				},
			},
			{ID: "graduation", Name: "Graduation", Icon: "cap", DisplayOrder: 3, Active: true},
		},
		Sizes: []domain.Size{
			{ID: "small", Name: "Small", Description: "Serves 4-6", DefaultPrice: decimal.NewFromInt(220), DisplayOrder: 1, Active: true},
			{ID: "medium", Name: "Medium", Description: "Serves 8-12", DefaultPrice: decimal.NewFromInt(340), DisplayOrder: 2, Active: true},
			{ID: "large", Name: "Large", Description: "Serves 15-20", DefaultPrice: decimal.NewFromInt(480), DisplayOrder: 3, Active: true},
		},
		Flavors: []domain.Flavor{
			{ID: "vanilla", Name: "Vanilla", Color: "#F3E5AB", AdditionalPrice: decimal.Zero, DisplayOrder: 1, Active: true},
			{ID: "chocolate", Name: "Chocolate", Color: "#7B3F00", AdditionalPrice: decimal.NewFromInt(30), DisplayOrder: 2, Active: true},
			{ID: "red-velvet", Name: "Red Velvet", Color: "#C0392B", AdditionalPrice: decimal.RequireFromString("45.50"), DisplayOrder: 3, Active: true},
		},
		Products: []domain.Product{
			{ID: "croissant-box", Name: "Croissant box", Price: decimal.NewFromInt(150), Active: true},
			{ID: "cookie-tin", Name: "Butter cookie tin", Price: decimal.RequireFromString("95.50"), Active: true},
			{ID: "sourdough", Name: "Sourdough loaf", Price: decimal.NewFromInt(60), Active: true},
			{ID: "fruitcake", Name: "Holiday fruitcake", Price: decimal.NewFromInt(280), Active: false},
		},
		Discounts: []domain.DiscountCode{
			{
				Code:       "WELCOME10",
				Kind:       domain.DiscountKindPercentage,
				Value:      decimal.NewFromInt(10),
				UsageLimit: &welcomeLimit,
				StartsAt:   now.AddDate(0, 0, -1),
				EndsAt:     now.AddDate(1, 0, 0),
				Active:     true,
				CreatedAt:  now,
				UpdatedAt:  now,
			},
			{
				Code:              "BIGORDER",
				Kind:              domain.DiscountKindFixed,
				Value:             decimal.NewFromInt(150),
				MinOrderAmount:    &bigOrderMin,
				MaxDiscountAmount: &bigOrderCap,
				StartsAt:          now.AddDate(0, 0, -1),
				EndsAt:            now.AddDate(0, 6, 0),
				Active:            true,
				CreatedAt:         now,
				UpdatedAt:         now,
			},
		},
		ShippingFees: []domain.ShippingFee{
			{Governorate: "cairo", Name: "Cairo", Fee: decimal.NewFromInt(50), EstimatedDelivery: "1-2 days", Active: true},
			{Governorate: "giza", Name: "Giza", Fee: decimal.NewFromInt(55), EstimatedDelivery: "1-2 days", Active: true},
			{Governorate: "alexandria", Name: "Alexandria", Fee: decimal.NewFromInt(75), EstimatedDelivery: "2-3 days", Active: true},
			{Governorate: "aswan", Name: "Aswan", Fee: decimal.NewFromInt(120), EstimatedDelivery: "4-6 days", Active: false},
		},
	}
}
