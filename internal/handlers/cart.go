package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/maplecart/api/internal/domain"
	"github.com/maplecart/api/internal/platform/auth"
	"github.com/maplecart/api/internal/platform/httpx"
	"github.com/maplecart/api/internal/services"
)

const maxCartBodySize = 16 * 1024

// CartHandlers exposes authenticated cart endpoints for the current user.
type CartHandlers struct {
	authn *auth.Authenticator
	carts *services.CartSessions
}

// NewCartHandlers constructs handlers enforcing authentication before
// touching the user's cart store.
func NewCartHandlers(authn *auth.Authenticator, carts *services.CartSessions) *CartHandlers {
	return &CartHandlers{authn: authn, carts: carts}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Put("/items/{productID}", h.setQuantity)
	r.Delete("/items/{productID}", h.removeItem)
}

type cartLinePayload struct {
	ID                 string `json:"id"`
	ProductID          string `json:"productId"`
	Quantity           int    `json:"quantity"`
	Name               string `json:"name,omitempty"`
	UnitPrice          int64  `json:"unitPrice"`
	UnitPriceFormatted string `json:"unitPriceFormatted"`
	ImageURL           string `json:"imageUrl,omitempty"`
	AddedAt            string `json:"addedAt,omitempty"`
	UpdatedAt          string `json:"updatedAt,omitempty"`
}

type cartPayload struct {
	UserID            string            `json:"userId"`
	Currency          string            `json:"currency"`
	Lines             []cartLinePayload `json:"lines"`
	Count             int               `json:"count"`
	Subtotal          int64             `json:"subtotal"`
	SubtotalFormatted string            `json:"subtotalFormatted"`
	MissingProducts   []string          `json:"missingProducts,omitempty"`
	UpdatedAt         string            `json:"updatedAt,omitempty"`
}

func (h *CartHandlers) store(w http.ResponseWriter, r *http.Request) (*services.CartStore, bool) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}

	uid := auth.UserID(ctx)
	if uid == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}

	store, err := h.carts.ForUser(ctx, uid)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return nil, false
	}
	return store, true
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"cart": buildCartPayload(r.Context(), store)})
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req addItemRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if req.Quantity == 0 {
		// Adding without an explicit quantity means one unit.
		req.Quantity = 1
	}

	if err := store.AddItem(ctx, req.ProductID, req.Quantity); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"cart": buildCartPayload(ctx, store)})
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *CartHandlers) setQuantity(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req setQuantityRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if req.Quantity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest))
		return
	}

	if err := store.SetQuantity(ctx, chi.URLParam(r, "productID"), *req.Quantity); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"cart": buildCartPayload(ctx, store)})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if err := store.RemoveItem(ctx, chi.URLParam(r, "productID")); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"cart": buildCartPayload(ctx, store)})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if err := store.Clear(ctx); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"cart": buildCartPayload(ctx, store)})
}

func (h *CartHandlers) writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "cart not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "cart operation failed", http.StatusInternalServerError))
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func buildCartPayload(ctx context.Context, store *services.CartStore) cartPayload {
	cart := store.Snapshot()
	subtotal := store.Subtotal(ctx)

	lines := make([]cartLinePayload, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		lines = append(lines, cartLinePayload{
			ID:                 line.ID,
			ProductID:          line.ProductID,
			Quantity:           line.Quantity,
			Name:               line.Name,
			UnitPrice:          line.UnitPrice,
			UnitPriceFormatted: domain.FormatAmount(line.UnitPrice),
			ImageURL:           line.ImageURL,
			AddedAt:            formatTime(line.AddedAt),
			UpdatedAt:          formatTimePtr(line.UpdatedAt),
		})
	}

	return cartPayload{
		UserID:            cart.UserID,
		Currency:          strings.ToUpper(cart.Currency),
		Lines:             lines,
		Count:             cart.Count(),
		Subtotal:          subtotal,
		SubtotalFormatted: domain.FormatAmount(subtotal),
		MissingProducts:   store.MissingProducts(ctx),
		UpdatedAt:         formatTime(cart.UpdatedAt),
	}
}
