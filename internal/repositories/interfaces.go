package repositories

import (
	"context"
	"errors"

	domain "github.com/maplecart/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation
// used by services to translate into their own sentinel errors.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// IsNotFound reports whether err represents a missing record.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err represents a conflicting write.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// IsUnavailable reports whether err represents a transient backend outage.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}

// CartRepository persists the full cart document per user. Save replaces the
// whole document so loading it back restores every line exactly.
type CartRepository interface {
	Load(ctx context.Context, userID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

// FavoriteRepository persists per-user favorite products.
type FavoriteRepository interface {
	List(ctx context.Context, userID string) ([]domain.Favorite, error)
	Save(ctx context.Context, userID string, favorite domain.Favorite) error
	Delete(ctx context.Context, userID string, productID string) error
	DeleteAll(ctx context.Context, userID string) error
}

// ProductListFilter narrows catalog listings.
type ProductListFilter struct {
	Category string
	Limit    int
}

// ProductRepository reads the product catalog.
type ProductRepository interface {
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	ListProducts(ctx context.Context, filter ProductListFilter) ([]domain.Product, error)
}

// OrderRepository persists placed orders.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)
}
