package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maplecart/api/internal/platform/auth"
	"github.com/maplecart/api/internal/platform/httpx"
	"github.com/maplecart/api/internal/services"
)

// FavoriteHandlers exposes authenticated favorites endpoints.
type FavoriteHandlers struct {
	authn     *auth.Authenticator
	favorites *services.FavoritesSessions
	catalog   services.ProductFinder
}

// NewFavoriteHandlers constructs the favorites handlers. The catalog is
// optional; when present, listings hydrate product details.
func NewFavoriteHandlers(authn *auth.Authenticator, favorites *services.FavoritesSessions, catalog services.ProductFinder) *FavoriteHandlers {
	return &FavoriteHandlers{authn: authn, favorites: favorites, catalog: catalog}
}

// Routes wires the /favorites endpoints onto the provided router.
func (h *FavoriteHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.listFavorites)
	r.Delete("/", h.clearFavorites)
	r.Put("/{productID}", h.addFavorite)
	r.Post("/{productID}/toggle", h.toggleFavorite)
	r.Delete("/{productID}", h.removeFavorite)
}

type favoritePayload struct {
	ProductID string          `json:"productId"`
	AddedAt   string          `json:"addedAt,omitempty"`
	Product   *productPayload `json:"product,omitempty"`
}

func (h *FavoriteHandlers) store(w http.ResponseWriter, r *http.Request) (*services.FavoritesStore, bool) {
	ctx := r.Context()
	if h.favorites == nil {
		httpx.WriteError(ctx, w, httpx.NewError("favorites_unavailable", "favorites service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}

	uid := auth.UserID(ctx)
	if uid == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}

	store, err := h.favorites.ForUser(ctx, uid)
	if err != nil {
		h.writeFavoritesError(ctx, w, err)
		return nil, false
	}
	return store, true
}

func (h *FavoriteHandlers) listFavorites(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	favorites := store.List()
	payload := make([]favoritePayload, 0, len(favorites))
	for _, favorite := range favorites {
		entry := favoritePayload{
			ProductID: favorite.ProductID,
			AddedAt:   formatTime(favorite.AddedAt),
		}
		if h.catalog != nil {
			if product, err := h.catalog.GetProduct(ctx, favorite.ProductID); err == nil {
				hydrated := buildProductPayload(product)
				entry.Product = &hydrated
			}
		}
		payload = append(payload, entry)
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"favorites": payload,
		"count":     len(payload),
	})
}

func (h *FavoriteHandlers) addFavorite(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if err := store.Add(ctx, chi.URLParam(r, "productID")); err != nil {
		h.writeFavoritesError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"count": store.Count()})
}

func (h *FavoriteHandlers) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	favorited, err := store.Toggle(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		h.writeFavoritesError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"favorited": favorited,
		"count":     store.Count(),
	})
}

func (h *FavoriteHandlers) removeFavorite(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if err := store.Remove(ctx, chi.URLParam(r, "productID")); err != nil {
		h.writeFavoritesError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"count": store.Count()})
}

func (h *FavoriteHandlers) clearFavorites(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if err := store.Clear(ctx); err != nil {
		h.writeFavoritesError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"count": 0})
}

func (h *FavoriteHandlers) writeFavoritesError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrFavoritesInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrFavoritesUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("favorites_unavailable", "favorites service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("favorites_error", "favorites operation failed", http.StatusInternalServerError))
	}
}
