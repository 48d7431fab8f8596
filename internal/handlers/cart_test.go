package handlers

import (
	"net/http"
	"testing"
)

func newCartTestRouter(t *testing.T, repo *stubCartRepo) http.Handler {
	t.Helper()
	handlers := NewCartHandlers(nil, newTestCartSessions(t, repo))
	return NewRouter(
		WithMiddlewares(identityMiddleware("user-1")),
		WithCartRoutes(handlers.Routes),
	)
}

func TestCartHandlersGetEmptyCart(t *testing.T) {
	router := newCartTestRouter(t, newStubCartRepo())

	rec := doRequest(t, router, http.MethodGet, "/api/v1/cart/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	payload := decodeBody(t, rec)
	cart, ok := payload["cart"].(map[string]any)
	if !ok {
		t.Fatalf("expected cart object, got %v", payload)
	}
	if cart["count"].(float64) != 0 {
		t.Fatalf("expected empty cart, got count %v", cart["count"])
	}
	if cart["currency"] != "USD" {
		t.Fatalf("expected USD currency, got %v", cart["currency"])
	}
}

func TestCartHandlersAddItem(t *testing.T) {
	router := newCartTestRouter(t, newStubCartRepo())

	rec := doRequest(t, router, http.MethodPost, "/api/v1/cart/items", `{"productId":"prod-1","quantity":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	cart := decodeBody(t, rec)["cart"].(map[string]any)
	if cart["count"].(float64) != 2 {
		t.Fatalf("expected count 2, got %v", cart["count"])
	}
	if cart["subtotal"].(float64) != 5000 {
		t.Fatalf("expected subtotal 5000, got %v", cart["subtotal"])
	}
	lines := cart["lines"].([]any)
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d", len(lines))
	}
	line := lines[0].(map[string]any)
	if line["name"] != "Walnut Desk Organiser" {
		t.Fatalf("expected snapshot name, got %v", line["name"])
	}
	if line["unitPriceFormatted"] != "25.00" {
		t.Fatalf("expected formatted price, got %v", line["unitPriceFormatted"])
	}
}

func TestCartHandlersAddItemDefaultsQuantityToOne(t *testing.T) {
	router := newCartTestRouter(t, newStubCartRepo())

	rec := doRequest(t, router, http.MethodPost, "/api/v1/cart/items", `{"productId":"prod-2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	cart := decodeBody(t, rec)["cart"].(map[string]any)
	if cart["count"].(float64) != 1 {
		t.Fatalf("expected count 1, got %v", cart["count"])
	}
}

func TestCartHandlersAddItemNegativeQuantityRejected(t *testing.T) {
	router := newCartTestRouter(t, newStubCartRepo())

	rec := doRequest(t, router, http.MethodPost, "/api/v1/cart/items", `{"productId":"prod-1","quantity":-3}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestCartHandlersAddItemUnknownProductAcceptedAndFlagged(t *testing.T) {
	router := newCartTestRouter(t, newStubCartRepo())

	rec := doRequest(t, router, http.MethodPost, "/api/v1/cart/items", `{"productId":"prod-404","quantity":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	cart := decodeBody(t, rec)["cart"].(map[string]any)
	if cart["count"].(float64) != 1 {
		t.Fatalf("expected the opaque line to count, got %v", cart["count"])
	}
	// The unpriced line contributes zero and is surfaced for the display layer.
	if cart["subtotal"].(float64) != 0 {
		t.Fatalf("expected zero subtotal, got %v", cart["subtotal"])
	}
	missing, ok := cart["missingProducts"].([]any)
	if !ok || len(missing) != 1 || missing[0] != "prod-404" {
		t.Fatalf("expected prod-404 flagged as missing, got %v", cart["missingProducts"])
	}
}

func TestCartHandlersAddItemInvalidJSON(t *testing.T) {
	router := newCartTestRouter(t, newStubCartRepo())

	rec := doRequest(t, router, http.MethodPost, "/api/v1/cart/items", `{"productId":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestCartHandlersSetQuantity(t *testing.T) {
	router := newCartTestRouter(t, newStubCartRepo())

	doRequest(t, router, http.MethodPost, "/api/v1/cart/items", `{"productId":"prod-1","quantity":1}`)
	rec := doRequest(t, router, http.MethodPut, "/api/v1/cart/items/prod-1", `{"quantity":5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	cart := decodeBody(t, rec)["cart"].(map[string]any)
	if cart["count"].(float64) != 5 {
		t.Fatalf("expected count 5, got %v", cart["count"])
	}
}

func TestCartHandlersSetQuantityZeroRemovesLine(t *testing.T) {
	router := newCartTestRouter(t, newStubCartRepo())

	doRequest(t, router, http.MethodPost, "/api/v1/cart/items", `{"productId":"prod-1","quantity":2}`)
	rec := doRequest(t, router, http.MethodPut, "/api/v1/cart/items/prod-1", `{"quantity":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	cart := decodeBody(t, rec)["cart"].(map[string]any)
	if cart["count"].(float64) != 0 {
		t.Fatalf("expected empty cart, got count %v", cart["count"])
	}
}

func TestCartHandlersSetQuantityRequiresField(t *testing.T) {
	router := newCartTestRouter(t, newStubCartRepo())

	rec := doRequest(t, router, http.MethodPut, "/api/v1/cart/items/prod-1", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestCartHandlersRemoveItemIdempotent(t *testing.T) {
	router := newCartTestRouter(t, newStubCartRepo())

	rec := doRequest(t, router, http.MethodDelete, "/api/v1/cart/items/prod-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for absent line, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestCartHandlersClearCart(t *testing.T) {
	repo := newStubCartRepo()
	router := newCartTestRouter(t, repo)

	doRequest(t, router, http.MethodPost, "/api/v1/cart/items", `{"productId":"prod-1","quantity":2}`)
	rec := doRequest(t, router, http.MethodDelete, "/api/v1/cart/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	cart := decodeBody(t, rec)["cart"].(map[string]any)
	if cart["count"].(float64) != 0 {
		t.Fatalf("expected empty cart, got count %v", cart["count"])
	}
	if _, ok := repo.carts["user-1"]; ok {
		t.Fatal("expected persisted cart to be deleted")
	}
}

func TestCartHandlersRequireIdentity(t *testing.T) {
	handlers := NewCartHandlers(nil, newTestCartSessions(t, newStubCartRepo()))
	router := NewRouter(WithCartRoutes(handlers.Routes))

	rec := doRequest(t, router, http.MethodGet, "/api/v1/cart/", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d (%s)", rec.Code, rec.Body.String())
	}
}
