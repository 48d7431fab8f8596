package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/maplecart/api/internal/domain"
	"github.com/maplecart/api/internal/platform/events"
	"github.com/maplecart/api/internal/repositories"
)

var (
	errCheckoutPricingRequired    = errors.New("checkout service: pricing engine is required")
	errCheckoutCatalogRequired    = errors.New("checkout service: catalog is required")
	errCheckoutRepositoryRequired = errors.New("checkout service: order repository is required")
	errCheckoutClockRequired      = errors.New("checkout service: clock is required")
)

// ErrCheckoutInvalidInput indicates the caller supplied invalid input.
var ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")

// ErrCheckoutEmptyCart indicates an order cannot be placed from an empty cart.
var ErrCheckoutEmptyCart = errors.New("checkout service: cart is empty")

// ErrCheckoutConflict indicates the cart references products that no longer exist.
var ErrCheckoutConflict = errors.New("checkout service: conflict")

// ErrCheckoutUnavailable indicates the checkout backend cannot fulfil the request.
var ErrCheckoutUnavailable = errors.New("checkout service: unavailable")

// CheckoutServiceDeps wires pricing, catalog and persistence for checkout.
type CheckoutServiceDeps struct {
	Pricing     *PricingEngine
	Catalog     ProductFinder
	Orders      repositories.OrderRepository
	Events      OrderEventPublisher
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type checkoutService struct {
	pricing *PricingEngine
	catalog ProductFinder
	orders  repositories.OrderRepository
	events  OrderEventPublisher
	now     func() time.Time
	logger  func(context.Context, string, map[string]any)
	newID   func() string
}

// NewCheckoutService constructs a CheckoutService enforcing dependency validation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Pricing == nil {
		return nil, errCheckoutPricingRequired
	}
	if deps.Catalog == nil {
		return nil, errCheckoutCatalogRequired
	}
	if deps.Orders == nil {
		return nil, errCheckoutRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errCheckoutClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	clock := deps.Clock

	return &checkoutService{
		pricing: deps.Pricing,
		catalog: deps.Catalog,
		orders:  deps.Orders,
		events:  deps.Events,
		now:     func() time.Time { return clock().UTC() },
		logger:  logger,
		newID:   idGen,
	}, nil
}

// Summarize prices the cart at live catalog prices and derives the totals.
// Lines whose product has disappeared from the catalog are excluded from the
// totals and reported in MissingProducts.
func (s *checkoutService) Summarize(ctx context.Context, cart Cart) (CheckoutSummary, error) {
	currency := strings.ToUpper(strings.TrimSpace(cart.Currency))
	if currency == "" {
		currency = s.pricing.Currency()
	}

	summary := CheckoutSummary{Currency: currency}
	var subtotal int64

	for _, line := range cart.Lines {
		if line.Quantity <= 0 {
			continue
		}
		pid := strings.TrimSpace(line.ProductID)
		if pid == "" {
			continue
		}

		product, err := s.catalog.GetProduct(ctx, pid)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) || repositories.IsNotFound(err) {
				summary.MissingProducts = append(summary.MissingProducts, pid)
				continue
			}
			return CheckoutSummary{}, translateCheckoutError(err)
		}

		unit := product.Price
		name := product.Name
		if name == "" {
			name = line.Name
		}
		if unit > 0 && int64(line.Quantity) > math.MaxInt64/unit {
			return CheckoutSummary{}, ErrCheckoutInvalidInput
		}
		lineTotal := unit * int64(line.Quantity)

		summary.Lines = append(summary.Lines, CheckoutLine{
			ProductID: pid,
			Name:      name,
			Quantity:  line.Quantity,
			UnitPrice: unit,
			LineTotal: lineTotal,
		})
		subtotal = saturatingAdd(subtotal, lineTotal)
	}

	totals, err := s.pricing.Quote(subtotal, 0)
	if err != nil {
		return CheckoutSummary{}, err
	}
	summary.Totals = totals
	return summary, nil
}

// PlaceOrder freezes the cart into a pending order with the totals computed
// at placement time, then notifies downstream consumers.
func (s *checkoutService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, ErrCheckoutInvalidInput
	}
	if cmd.Cart.Count() == 0 {
		return Order{}, ErrCheckoutEmptyCart
	}

	summary, err := s.Summarize(ctx, cmd.Cart)
	if err != nil {
		return Order{}, err
	}
	if len(summary.MissingProducts) > 0 {
		s.logger(ctx, "checkout.missing_products", map[string]any{
			"userId":   userID,
			"products": summary.MissingProducts,
		})
		return Order{}, ErrCheckoutConflict
	}
	if len(summary.Lines) == 0 {
		return Order{}, ErrCheckoutEmptyCart
	}

	now := s.now()
	lines := make([]domain.OrderLine, 0, len(summary.Lines))
	for _, line := range summary.Lines {
		lines = append(lines, domain.OrderLine{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	order := domain.Order{
		ID:        s.newID(),
		UserID:    userID,
		Currency:  summary.Currency,
		Lines:     lines,
		Totals:    summary.Totals,
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return Order{}, translateCheckoutError(err)
	}

	s.publishPlaced(ctx, order)
	return order, nil
}

// publishPlaced informs the notification subsystem about the new order.
// Failures are logged; the order is already persisted.
func (s *checkoutService) publishPlaced(ctx context.Context, order domain.Order) {
	if s.events == nil {
		return
	}
	_, err := s.events.PublishOrderEvent(ctx, events.OrderEventMessage{
		Type:       "order.placed",
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     string(order.Status),
		Total:      order.Totals.Total,
		Currency:   order.Currency,
		OccurredAt: order.CreatedAt,
	})
	if err != nil {
		s.logger(ctx, "checkout.event_publish_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
}

func translateCheckoutError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case repositories.IsConflict(err):
		return ErrCheckoutConflict
	default:
		return ErrCheckoutUnavailable
	}
}
