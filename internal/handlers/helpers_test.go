package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	domain "github.com/maplecart/api/internal/domain"
	"github.com/maplecart/api/internal/platform/auth"
	"github.com/maplecart/api/internal/services"
)

var testTime = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testTime }

// identityMiddleware injects a fixed identity so handlers constructed without
// an authenticator still see a signed-in user.
func identityMiddleware(uid string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.WithIdentity(r.Context(), &auth.Identity{UID: uid, Roles: []string{auth.RoleUser}})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type stubRepoError struct {
	notFound    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return "stub repository error" }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return false }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

var errStubNotFound = &stubRepoError{notFound: true}

type stubCartRepo struct {
	mu    sync.Mutex
	carts map[string]domain.Cart
}

func newStubCartRepo() *stubCartRepo {
	return &stubCartRepo{carts: make(map[string]domain.Cart)}
}

func (r *stubCartRepo) Load(ctx context.Context, userID string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart, ok := r.carts[userID]
	if !ok {
		return domain.Cart{}, errStubNotFound
	}
	return cart.Clone(), nil
}

func (r *stubCartRepo) Save(ctx context.Context, cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[cart.UserID] = cart.Clone()
	return nil
}

func (r *stubCartRepo) Delete(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, userID)
	return nil
}

type stubFavoriteRepo struct {
	mu        sync.Mutex
	favorites map[string][]domain.Favorite
}

func newStubFavoriteRepo() *stubFavoriteRepo {
	return &stubFavoriteRepo{favorites: make(map[string][]domain.Favorite)}
}

func (r *stubFavoriteRepo) List(ctx context.Context, userID string) ([]domain.Favorite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Favorite(nil), r.favorites[userID]...), nil
}

func (r *stubFavoriteRepo) Save(ctx context.Context, userID string, favorite domain.Favorite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.favorites[userID] = append(r.favorites[userID], favorite)
	return nil
}

func (r *stubFavoriteRepo) Delete(ctx context.Context, userID string, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.favorites[userID][:0]
	for _, favorite := range r.favorites[userID] {
		if !strings.EqualFold(favorite.ProductID, productID) {
			kept = append(kept, favorite)
		}
	}
	r.favorites[userID] = kept
	return nil
}

func (r *stubFavoriteRepo) DeleteAll(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.favorites, userID)
	return nil
}

type stubProductFinder struct {
	products map[string]domain.Product
}

func testProducts() map[string]domain.Product {
	return map[string]domain.Product{
		"prod-1": {ID: "prod-1", Name: "Walnut Desk Organiser", Price: 2500, Currency: "USD", Category: "office", Stock: 12},
		"prod-2": {ID: "prod-2", Name: "Brass Bookends", Price: 4200, Currency: "USD", Category: "office", Stock: 3},
		"prod-3": {ID: "prod-3", Name: "Linen Throw", Price: 8900, Currency: "USD", Category: "home", Stock: 7},
	}
}

func (f *stubProductFinder) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	product, ok := f.products[strings.ToLower(strings.TrimSpace(productID))]
	if !ok {
		return domain.Product{}, services.ErrProductNotFound
	}
	return product, nil
}

// stubCatalog implements the full CatalogService on top of stubProductFinder.
type stubCatalog struct {
	stubProductFinder
	listErr error
}

func (c *stubCatalog) ListProducts(ctx context.Context, query services.ProductListQuery) ([]services.Product, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	out := make([]services.Product, 0, len(c.products))
	for _, product := range c.products {
		if query.Category != "" && !strings.EqualFold(product.Category, query.Category) {
			continue
		}
		out = append(out, product)
	}
	return out, nil
}

func (c *stubCatalog) PriceLookup() services.PriceLookup {
	return func(_ context.Context, productID string) (int64, bool) {
		product, ok := c.products[strings.ToLower(strings.TrimSpace(productID))]
		if !ok {
			return 0, false
		}
		return product.Price, true
	}
}

type stubCheckout struct {
	summary    services.CheckoutSummary
	summaryErr error
	order      services.Order
	orderErr   error
	placed     []services.PlaceOrderCommand
}

func (c *stubCheckout) Summarize(ctx context.Context, cart services.Cart) (services.CheckoutSummary, error) {
	if c.summaryErr != nil {
		return services.CheckoutSummary{}, c.summaryErr
	}
	return c.summary, nil
}

func (c *stubCheckout) PlaceOrder(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error) {
	c.placed = append(c.placed, cmd)
	if c.orderErr != nil {
		return services.Order{}, c.orderErr
	}
	return c.order, nil
}

type stubOrders struct {
	orders  map[string]services.Order
	listErr error
}

func (o *stubOrders) GetOrder(ctx context.Context, userID string, orderID string) (services.Order, error) {
	order, ok := o.orders[orderID]
	if !ok || order.UserID != userID {
		return services.Order{}, services.ErrOrderNotFound
	}
	return order, nil
}

func (o *stubOrders) ListOrders(ctx context.Context, userID string) ([]services.Order, error) {
	if o.listErr != nil {
		return nil, o.listErr
	}
	out := make([]services.Order, 0, len(o.orders))
	for _, order := range o.orders {
		if order.UserID == userID {
			out = append(out, order)
		}
	}
	return out, nil
}

func newTestCartSessions(t *testing.T, repo *stubCartRepo) *services.CartSessions {
	t.Helper()
	sessions, err := services.NewCartSessions(services.CartStoreDeps{
		Repository: repo,
		Products:   &stubProductFinder{products: testProducts()},
		Clock:      fixedClock,
		Currency:   "USD",
	})
	if err != nil {
		t.Fatalf("NewCartSessions: %v", err)
	}
	return sessions
}

func newTestFavoritesSessions(t *testing.T, repo *stubFavoriteRepo) *services.FavoritesSessions {
	t.Helper()
	sessions, err := services.NewFavoritesSessions(services.FavoritesStoreDeps{
		Repository: repo,
		Clock:      fixedClock,
	})
	if err != nil {
		t.Fatalf("NewFavoritesSessions: %v", err)
	}
	return sessions
}

func doRequest(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response body: %v (%s)", err, rec.Body.String())
	}
	return payload
}
