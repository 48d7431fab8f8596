package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/maplecart/api/internal/domain"
)

func newTestOrderService(t *testing.T, repo *stubOrderRepo) OrderService {
	t.Helper()
	service, err := NewOrderService(OrderServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	return service
}

func seededOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: map[string]domain.Order{
		"order-1": {ID: "order-1", UserID: "user-1", Status: domain.OrderStatusPending, Totals: domain.OrderTotals{Total: 5799}},
		"order-2": {ID: "order-2", UserID: "user-2", Status: domain.OrderStatusShipped},
	}}
}

func TestGetOrderEnforcesOwnership(t *testing.T) {
	service := newTestOrderService(t, seededOrderRepo())
	ctx := context.Background()

	order, err := service.GetOrder(ctx, "user-1", "order-1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.Totals.Total != 5799 {
		t.Fatalf("unexpected order %+v", order)
	}

	// Another user's order looks exactly like a missing one.
	if _, err := service.GetOrder(ctx, "user-1", "order-2"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for foreign order, got %v", err)
	}
	if _, err := service.GetOrder(ctx, "user-1", "order-9"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for missing order, got %v", err)
	}
}

func TestGetOrderInvalidInput(t *testing.T) {
	service := newTestOrderService(t, seededOrderRepo())

	if _, err := service.GetOrder(context.Background(), "", "order-1"); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
	if _, err := service.GetOrder(context.Background(), "user-1", " "); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestListOrdersFiltersByUser(t *testing.T) {
	service := newTestOrderService(t, seededOrderRepo())

	orders, err := service.ListOrders(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "order-1" {
		t.Fatalf("unexpected orders %+v", orders)
	}
}

func TestListOrdersBackendFailure(t *testing.T) {
	repo := seededOrderRepo()
	repo.getErr = errStubUnavailable
	service := newTestOrderService(t, repo)

	if _, err := service.ListOrders(context.Background(), "user-1"); !errors.Is(err, ErrOrderUnavailable) {
		t.Fatalf("expected ErrOrderUnavailable, got %v", err)
	}
}
