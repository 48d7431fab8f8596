package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/maplecart/api/internal/domain"
	pfirestore "github.com/maplecart/api/internal/platform/firestore"
	"github.com/maplecart/api/internal/repositories"
)

const (
	productCollection  = "products"
	defaultListLimit   = 50
	maxProductListSize = 200
)

type productDocument struct {
	Name        string    `firestore:"name"`
	Description string    `firestore:"description,omitempty"`
	Price       int64     `firestore:"price"`
	Currency    string    `firestore:"currency"`
	ImageURL    string    `firestore:"imageUrl,omitempty"`
	Category    string    `firestore:"category,omitempty"`
	Stock       int       `firestore:"stock"`
	Rating      float64   `firestore:"rating,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// ProductRepository reads the product catalog collection.
type ProductRepository struct {
	coll *pfirestore.Collection[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{coll: pfirestore.NewCollection[productDocument](provider, productCollection)}, nil
}

// GetProduct fetches a single product by ID.
func (r *ProductRepository) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}

	doc, err := r.coll.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProduct(doc.ID, doc.Data), nil
}

// ListProducts returns catalog products ordered by name, optionally filtered
// by category.
func (r *ProductRepository) ListProducts(ctx context.Context, filter repositories.ProductListFilter) ([]domain.Product, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxProductListSize {
		limit = maxProductListSize
	}
	category := strings.TrimSpace(filter.Category)

	docs, err := r.coll.Query(ctx, func(query firestore.Query) firestore.Query {
		if category != "" {
			query = query.Where("category", "==", category)
		}
		return query.OrderBy("name", firestore.Asc).Limit(limit)
	})
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, decodeProduct(doc.ID, doc.Data))
	}
	return products, nil
}

func decodeProduct(docID string, doc productDocument) domain.Product {
	return domain.Product{
		ID:          docID,
		Name:        doc.Name,
		Description: doc.Description,
		Price:       doc.Price,
		Currency:    doc.Currency,
		ImageURL:    doc.ImageURL,
		Category:    doc.Category,
		Stock:       doc.Stock,
		Rating:      doc.Rating,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
