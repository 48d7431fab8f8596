package services

import (
	"context"
	"errors"
	"strings"

	"github.com/maplecart/api/internal/repositories"
)

var errOrderRepositoryRequired = errors.New("order service: repository is required")

// ErrOrderInvalidInput indicates the caller supplied invalid input.
var ErrOrderInvalidInput = errors.New("order service: invalid input")

// ErrOrderNotFound indicates the order does not exist or belongs to another user.
var ErrOrderNotFound = errors.New("order service: not found")

// ErrOrderUnavailable indicates the order backend cannot fulfil the request.
var ErrOrderUnavailable = errors.New("order service: unavailable")

// OrderServiceDeps wires persistence for order reads.
type OrderServiceDeps struct {
	Repository repositories.OrderRepository
	Logger     func(context.Context, string, map[string]any)
}

type orderService struct {
	repo   repositories.OrderRepository
	logger func(context.Context, string, map[string]any)
}

// NewOrderService constructs an OrderService over the order repository.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Repository == nil {
		return nil, errOrderRepositoryRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &orderService{repo: deps.Repository, logger: logger}, nil
}

// GetOrder fetches an order and verifies it belongs to the requesting user.
// Orders owned by other users are indistinguishable from missing ones.
func (s *orderService) GetOrder(ctx context.Context, userID string, orderID string) (Order, error) {
	uid := strings.TrimSpace(userID)
	oid := strings.TrimSpace(orderID)
	if uid == "" || oid == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.repo.GetOrder(ctx, oid)
	if err != nil {
		return Order{}, translateOrderRepoError(err)
	}
	if !strings.EqualFold(strings.TrimSpace(order.UserID), uid) {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders returns the user's orders, newest first.
func (s *orderService) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, ErrOrderInvalidInput
	}

	orders, err := s.repo.ListOrdersByUser(ctx, uid)
	if err != nil {
		return nil, translateOrderRepoError(err)
	}
	return orders, nil
}

func translateOrderRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case repositories.IsNotFound(err):
		return ErrOrderNotFound
	default:
		return ErrOrderUnavailable
	}
}
