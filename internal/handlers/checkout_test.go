package handlers

import (
	"net/http"
	"testing"

	domain "github.com/maplecart/api/internal/domain"
	"github.com/maplecart/api/internal/services"
)

func newCheckoutTestRouter(t *testing.T, repo *stubCartRepo, checkout *stubCheckout) http.Handler {
	t.Helper()
	handlers := NewCheckoutHandlers(nil, newTestCartSessions(t, repo), checkout)
	return NewRouter(
		WithMiddlewares(identityMiddleware("user-1")),
		WithCheckoutRoutes(handlers.Routes),
	)
}

func seededCartRepo() *stubCartRepo {
	repo := newStubCartRepo()
	repo.carts["user-1"] = domain.Cart{
		ID:       "user-1",
		UserID:   "user-1",
		Currency: "USD",
		Lines: []domain.CartLine{
			{ID: "line-1", ProductID: "prod-1", Quantity: 2, Name: "Walnut Desk Organiser", UnitPrice: 2500, AddedAt: testTime},
		},
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
	return repo
}

func TestCheckoutHandlersSummary(t *testing.T) {
	checkout := &stubCheckout{
		summary: services.CheckoutSummary{
			Currency: "USD",
			Lines: []services.CheckoutLine{
				{ProductID: "prod-1", Name: "Walnut Desk Organiser", Quantity: 2, UnitPrice: 2500, LineTotal: 5000},
			},
			Totals: services.OrderTotals{Subtotal: 5000, Shipping: 499, Tax: 300, Total: 5799},
		},
	}
	router := newCheckoutTestRouter(t, seededCartRepo(), checkout)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/checkout/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	summary := decodeBody(t, rec)["summary"].(map[string]any)
	totals := summary["totals"].(map[string]any)
	if totals["total"].(float64) != 5799 {
		t.Fatalf("expected total 5799, got %v", totals["total"])
	}
	if totals["totalFormatted"] != "57.99" {
		t.Fatalf("expected formatted total, got %v", totals["totalFormatted"])
	}
	lines := summary["lines"].([]any)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
}

func TestCheckoutHandlersPlaceOrderClearsCart(t *testing.T) {
	repo := seededCartRepo()
	checkout := &stubCheckout{
		order: services.Order{
			ID:       "order-1",
			UserID:   "user-1",
			Currency: "USD",
			Status:   domain.OrderStatusPending,
			Totals:   services.OrderTotals{Subtotal: 5000, Shipping: 499, Tax: 300, Total: 5799},
			Lines: []services.OrderLine{
				{ProductID: "prod-1", Name: "Walnut Desk Organiser", Quantity: 2, UnitPrice: 2500},
			},
			CreatedAt: testTime,
		},
	}
	router := newCheckoutTestRouter(t, repo, checkout)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/checkout/", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	order := decodeBody(t, rec)["order"].(map[string]any)
	if order["id"] != "order-1" {
		t.Fatalf("expected order-1, got %v", order["id"])
	}
	if order["status"] != "pending" {
		t.Fatalf("expected pending status, got %v", order["status"])
	}

	if len(checkout.placed) != 1 {
		t.Fatalf("expected one PlaceOrder call, got %d", len(checkout.placed))
	}
	if checkout.placed[0].Cart.Count() != 2 {
		t.Fatalf("expected command to carry the cart snapshot, got count %d", checkout.placed[0].Cart.Count())
	}

	// The cart is consumed on success.
	getCart := doRequest(t, router, http.MethodGet, "/api/v1/checkout/", "")
	if getCart.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", getCart.Code)
	}
	if _, ok := repo.carts["user-1"]; ok {
		t.Fatal("expected persisted cart to be deleted after placing the order")
	}
}

func TestCheckoutHandlersEmptyCart(t *testing.T) {
	checkout := &stubCheckout{orderErr: services.ErrCheckoutEmptyCart}
	router := newCheckoutTestRouter(t, newStubCartRepo(), checkout)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/checkout/", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestCheckoutHandlersConflict(t *testing.T) {
	repo := seededCartRepo()
	checkout := &stubCheckout{orderErr: services.ErrCheckoutConflict}
	router := newCheckoutTestRouter(t, repo, checkout)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/checkout/", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%s)", rec.Code, rec.Body.String())
	}
	// A failed order must not consume the cart.
	if _, ok := repo.carts["user-1"]; !ok {
		t.Fatal("expected cart to survive a failed order")
	}
}

func TestCheckoutHandlersBackendUnavailable(t *testing.T) {
	checkout := &stubCheckout{summaryErr: services.ErrCheckoutUnavailable}
	router := newCheckoutTestRouter(t, seededCartRepo(), checkout)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/checkout/", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestCheckoutHandlersRequireIdentity(t *testing.T) {
	handlers := NewCheckoutHandlers(nil, newTestCartSessions(t, newStubCartRepo()), &stubCheckout{})
	router := NewRouter(WithCheckoutRoutes(handlers.Routes))

	rec := doRequest(t, router, http.MethodPost, "/api/v1/checkout/", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d (%s)", rec.Code, rec.Body.String())
	}
}
