package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	pfirestore "github.com/crumbhouse/bakery-api/internal/platform/firestore"
)

const (
	occasionsCollection = "occasions"
	sizesCollection     = "sizes"
	flavorsCollection   = "flavors"
)

type occasionDocument struct {
	Name         string                      `firestore:"name"`
	Icon         string                      `firestore:"icon,omitempty"`
	DisplayOrder int                         `firestore:"displayOrder"`
	Active       bool                        `firestore:"active"`
	SizePrices   []occasionSizePriceDocument `firestore:"sizePrices,omitempty"`
}

type occasionSizePriceDocument struct {
	SizeID string `firestore:"sizeId"`
	Price  string `firestore:"price"`
}

type sizeDocument struct {
	Name         string `firestore:"name"`
	Description  string `firestore:"description,omitempty"`
	DefaultPrice string `firestore:"defaultPrice"`
	DisplayOrder int    `firestore:"displayOrder"`
	Active       bool   `firestore:"active"`
}

type flavorDocument struct {
	Name            string `firestore:"name"`
	Color           string `firestore:"color,omitempty"`
	AdditionalPrice string `firestore:"additionalPrice"`
	DisplayOrder    int    `firestore:"displayOrder"`
	Active          bool   `firestore:"active"`
}

// CatalogRepository reads occasions, sizes and flavors. Listings are ordered by displayOrder.
type CatalogRepository struct {
	occasions *pfirestore.BaseRepository[occasionDocument]
	sizes     *pfirestore.BaseRepository[sizeDocument]
	flavors   *pfirestore.BaseRepository[flavorDocument]
}

// NewCatalogRepository constructs the catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		occasions: pfirestore.NewBaseRepository[occasionDocument](provider, occasionsCollection),
		sizes:     pfirestore.NewBaseRepository[sizeDocument](provider, sizesCollection),
		flavors:   pfirestore.NewBaseRepository[flavorDocument](provider, flavorsCollection),
	}, nil
}

func (r *CatalogRepository) GetOccasion(ctx context.Context, occasionID string) (domain.Occasion, error) {
	doc, err := r.occasions.Get(ctx, strings.TrimSpace(occasionID))
	if err != nil {
		return domain.Occasion{}, err
	}
	return decodeOccasion(doc.ID, doc.Data)
}

func (r *CatalogRepository) GetSize(ctx context.Context, sizeID string) (domain.Size, error) {
	doc, err := r.sizes.Get(ctx, strings.TrimSpace(sizeID))
	if err != nil {
		return domain.Size{}, err
	}
	return decodeSize(doc.ID, doc.Data)
}

func (r *CatalogRepository) GetFlavor(ctx context.Context, flavorID string) (domain.Flavor, error) {
	doc, err := r.flavors.Get(ctx, strings.TrimSpace(flavorID))
	if err != nil {
		return domain.Flavor{}, err
	}
	return decodeFlavor(doc.ID, doc.Data)
}

func (r *CatalogRepository) ListOccasions(ctx context.Context, activeOnly bool) ([]domain.Occasion, error) {
	docs, err := r.occasions.Query(ctx, catalogQuery(activeOnly))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Occasion, 0, len(docs))
	for _, doc := range docs {
		occasion, err := decodeOccasion(doc.ID, doc.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, occasion)
	}
	return out, nil
}

func (r *CatalogRepository) ListSizes(ctx context.Context, activeOnly bool) ([]domain.Size, error) {
	docs, err := r.sizes.Query(ctx, catalogQuery(activeOnly))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Size, 0, len(docs))
	for _, doc := range docs {
		size, err := decodeSize(doc.ID, doc.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, size)
	}
	return out, nil
}

func (r *CatalogRepository) ListFlavors(ctx context.Context, activeOnly bool) ([]domain.Flavor, error) {
	docs, err := r.flavors.Query(ctx, catalogQuery(activeOnly))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Flavor, 0, len(docs))
	for _, doc := range docs {
		flavor, err := decodeFlavor(doc.ID, doc.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, flavor)
	}
	return out, nil
}

func catalogQuery(activeOnly bool) pfirestore.QueryBuilder {
	return func(q firestore.Query) firestore.Query {
		if activeOnly {
			q = q.Where("active", "==", true)
		}
		return q.OrderBy("displayOrder", firestore.Asc)
	}
}

func decodeOccasion(id string, doc occasionDocument) (domain.Occasion, error) {
	occasion := domain.Occasion{
		ID:           id,
		Name:         doc.Name,
		Icon:         doc.Icon,
		DisplayOrder: doc.DisplayOrder,
		Active:       doc.Active,
	}
	for _, sp := range doc.SizePrices {
		price, err := parseMoney("sizePrices.price", sp.Price)
		if err != nil {
			return domain.Occasion{}, err
		}
		occasion.SizePrices = append(occasion.SizePrices, domain.OccasionSizePrice{SizeID: sp.SizeID, Price: price})
	}
	return occasion, nil
}

func decodeSize(id string, doc sizeDocument) (domain.Size, error) {
	price, err := parseMoney("defaultPrice", doc.DefaultPrice)
	if err != nil {
		return domain.Size{}, err
	}
	return domain.Size{
		ID:           id,
		Name:         doc.Name,
		Description:  doc.Description,
		DefaultPrice: price,
		DisplayOrder: doc.DisplayOrder,
		Active:       doc.Active,
	}, nil
}

func decodeFlavor(id string, doc flavorDocument) (domain.Flavor, error) {
	price, err := parseMoney("additionalPrice", doc.AdditionalPrice)
	if err != nil {
		return domain.Flavor{}, err
	}
	return domain.Flavor{
		ID:              id,
		Name:            doc.Name,
		Color:           doc.Color,
		AdditionalPrice: price,
		DisplayOrder:    doc.DisplayOrder,
		Active:          doc.Active,
	}, nil
}

func encodeOccasion(occasion domain.Occasion) occasionDocument {
	doc := occasionDocument{
		Name:         occasion.Name,
		Icon:         occasion.Icon,
		DisplayOrder: occasion.DisplayOrder,
		Active:       occasion.Active,
	}
	for _, sp := range occasion.SizePrices {
		doc.SizePrices = append(doc.SizePrices, occasionSizePriceDocument{SizeID: sp.SizeID, Price: formatMoney(sp.Price)})
	}
	return doc
}

func encodeSize(size domain.Size) sizeDocument {
	return sizeDocument{
		Name:         size.Name,
		Description:  size.Description,
		DefaultPrice: formatMoney(size.DefaultPrice),
		DisplayOrder: size.DisplayOrder,
		Active:       size.Active,
	}
}

func encodeFlavor(flavor domain.Flavor) flavorDocument {
	return flavorDocument{
		Name:            flavor.Name,
		Color:           flavor.Color,
		AdditionalPrice: formatMoney(flavor.AdditionalPrice),
		DisplayOrder:    flavor.DisplayOrder,
		Active:          flavor.Active,
	}
}
