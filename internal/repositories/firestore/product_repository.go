package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	pfirestore "github.com/crumbhouse/bakery-api/internal/platform/firestore"
)

const productsCollection = "products"

type productDocument struct {
	Name   string `firestore:"name"`
	Price  string `firestore:"price"`
	Active bool   `firestore:"active"`
}

// ProductRepository reads the products collection maintained by the catalogue admin.
type ProductRepository struct {
	products *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs the product read model.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		products: pfirestore.NewBaseRepository[productDocument](provider, productsCollection),
	}, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.products.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProduct(doc.ID, doc.Data)
}

func encodeProduct(p domain.Product) productDocument {
	return productDocument{Name: p.Name, Price: formatMoney(p.Price), Active: p.Active}
}

func decodeProduct(id string, doc productDocument) (domain.Product, error) {
	price, err := parseMoney("price", doc.Price)
	if err != nil {
		return domain.Product{}, err
	}
	return domain.Product{ID: id, Name: doc.Name, Price: price, Active: doc.Active}, nil
}
