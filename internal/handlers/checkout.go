package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/maplecart/api/internal/domain"
	"github.com/maplecart/api/internal/platform/auth"
	"github.com/maplecart/api/internal/platform/httpx"
	"github.com/maplecart/api/internal/services"
)

// CheckoutHandlers exposes the checkout summary and order placement endpoints.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	carts    *services.CartSessions
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs the checkout handlers.
func NewCheckoutHandlers(authn *auth.Authenticator, carts *services.CartSessions, checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{authn: authn, carts: carts, checkout: checkout}
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.getSummary)
	r.Post("/", h.placeOrder)
}

type totalsPayload struct {
	Subtotal          int64  `json:"subtotal"`
	SubtotalFormatted string `json:"subtotalFormatted"`
	Discount          int64  `json:"discount"`
	Shipping          int64  `json:"shipping"`
	ShippingFormatted string `json:"shippingFormatted"`
	Tax               int64  `json:"tax"`
	TaxFormatted      string `json:"taxFormatted"`
	Total             int64  `json:"total"`
	TotalFormatted    string `json:"totalFormatted"`
}

type checkoutLinePayload struct {
	ProductID          string `json:"productId"`
	Name               string `json:"name,omitempty"`
	Quantity           int    `json:"quantity"`
	UnitPrice          int64  `json:"unitPrice"`
	UnitPriceFormatted string `json:"unitPriceFormatted"`
	LineTotal          int64  `json:"lineTotal"`
	LineTotalFormatted string `json:"lineTotalFormatted"`
}

type checkoutSummaryPayload struct {
	Currency        string                `json:"currency"`
	Lines           []checkoutLinePayload `json:"lines"`
	Totals          totalsPayload         `json:"totals"`
	MissingProducts []string              `json:"missingProducts,omitempty"`
}

func (h *CheckoutHandlers) cartStore(w http.ResponseWriter, r *http.Request) (*services.CartStore, bool) {
	ctx := r.Context()
	if h.carts == nil || h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}

	uid := auth.UserID(ctx)
	if uid == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}

	store, err := h.carts.ForUser(ctx, uid)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	return store, true
}

func (h *CheckoutHandlers) getSummary(w http.ResponseWriter, r *http.Request) {
	store, ok := h.cartStore(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	summary, err := h.checkout.Summarize(ctx, store.Snapshot())
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"summary": buildSummaryPayload(summary)})
}

func (h *CheckoutHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	store, ok := h.cartStore(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	order, err := h.checkout.PlaceOrder(ctx, services.PlaceOrderCommand{
		UserID: store.UserID(),
		Cart:   store.Snapshot(),
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	// The cart is consumed by the order; clearing never fails the request.
	_ = store.Clear(ctx)

	writeJSONResponse(w, http.StatusCreated, map[string]any{"order": buildOrderPayload(order)})
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCheckoutConflict):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_conflict", "cart references unavailable products", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "checkout failed", http.StatusInternalServerError))
	}
}

func buildSummaryPayload(summary services.CheckoutSummary) checkoutSummaryPayload {
	lines := make([]checkoutLinePayload, 0, len(summary.Lines))
	for _, line := range summary.Lines {
		lines = append(lines, checkoutLinePayload{
			ProductID:          line.ProductID,
			Name:               line.Name,
			Quantity:           line.Quantity,
			UnitPrice:          line.UnitPrice,
			UnitPriceFormatted: domain.FormatAmount(line.UnitPrice),
			LineTotal:          line.LineTotal,
			LineTotalFormatted: domain.FormatAmount(line.LineTotal),
		})
	}
	return checkoutSummaryPayload{
		Currency:        summary.Currency,
		Lines:           lines,
		Totals:          buildTotalsPayload(summary.Totals),
		MissingProducts: summary.MissingProducts,
	}
}

func buildTotalsPayload(totals services.OrderTotals) totalsPayload {
	return totalsPayload{
		Subtotal:          totals.Subtotal,
		SubtotalFormatted: domain.FormatAmount(totals.Subtotal),
		Discount:          totals.Discount,
		Shipping:          totals.Shipping,
		ShippingFormatted: domain.FormatAmount(totals.Shipping),
		Tax:               totals.Tax,
		TaxFormatted:      domain.FormatAmount(totals.Tax),
		Total:             totals.Total,
		TotalFormatted:    domain.FormatAmount(totals.Total),
	}
}
