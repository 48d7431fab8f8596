package services

import (
	"context"

	domain "github.com/maplecart/api/internal/domain"
	"github.com/maplecart/api/internal/platform/events"
)

// Re-exported domain types so handlers depend on the service package alone.
type (
	Product     = domain.Product
	Cart        = domain.Cart
	CartLine    = domain.CartLine
	Favorite    = domain.Favorite
	Order       = domain.Order
	OrderLine   = domain.OrderLine
	OrderTotals = domain.OrderTotals
)

// PriceLookup resolves the live catalog price for a product in minor units.
// The second return reports whether the product is still priced.
type PriceLookup func(ctx context.Context, productID string) (int64, bool)

// ProductFinder resolves catalog products on demand.
type ProductFinder interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
}

// CatalogService exposes read access to the product catalog.
type CatalogService interface {
	ProductFinder
	ListProducts(ctx context.Context, query ProductListQuery) ([]Product, error)
	PriceLookup() PriceLookup
}

// ProductListQuery narrows catalog listings.
type ProductListQuery struct {
	Category string
	Limit    int
}

// CheckoutService derives order totals from a cart and converts carts into
// placed orders.
type CheckoutService interface {
	Summarize(ctx context.Context, cart Cart) (CheckoutSummary, error)
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
}

// CheckoutSummary is the derived totals view presented before placing an order.
type CheckoutSummary struct {
	Currency        string
	Lines           []CheckoutLine
	Totals          OrderTotals
	MissingProducts []string
}

// CheckoutLine is one cart line priced at the live catalog price.
type CheckoutLine struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice int64
	LineTotal int64
}

// PlaceOrderCommand captures the inputs needed to convert a cart to an order.
type PlaceOrderCommand struct {
	UserID string
	Cart   Cart
}

// OrderService exposes read access to placed orders.
type OrderService interface {
	GetOrder(ctx context.Context, userID string, orderID string) (Order, error)
	ListOrders(ctx context.Context, userID string) ([]Order, error)
}

// CartEventPublisher forwards cart changes to the notification subsystem.
// Publishing is informational; failures never affect cart state.
type CartEventPublisher interface {
	PublishCartEvent(ctx context.Context, message events.CartEventMessage) (string, error)
}

// OrderEventPublisher forwards order lifecycle transitions downstream.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message events.OrderEventMessage) (string, error)
}
