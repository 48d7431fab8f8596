package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/maplecart/api/internal/domain"
	"github.com/maplecart/api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart store: repository is required")
	errCartProductsRequired   = errors.New("cart store: product finder is required")
	errCartClockRequired      = errors.New("cart store: clock is required")
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart store: invalid input")

// ErrCartNotFound indicates the cart record does not exist.
var ErrCartNotFound = errors.New("cart store: not found")

// ErrCartUnavailable indicates the cart backend cannot fulfil the request.
var ErrCartUnavailable = errors.New("cart store: unavailable")

// Cart change event names carried on observer notifications and published to
// the notification subsystem.
const (
	CartChangeItemAdded   = "cart.item_added"
	CartChangeItemRemoved = "cart.item_removed"
	CartChangeQuantitySet = "cart.quantity_set"
	CartChangeCleared     = "cart.cleared"
)

// CartChange describes a single committed cart mutation. Cart is a snapshot
// taken after the mutation was applied.
type CartChange struct {
	Event     string
	UserID    string
	ProductID string
	Quantity  int
	Cart      Cart
}

// CartObserver receives committed cart changes. Observers run synchronously
// after state is updated; they must not call back into the store.
type CartObserver func(CartChange)

// CartStoreDeps wires the persistence and catalog dependencies for a cart store.
type CartStoreDeps struct {
	Repository  repositories.CartRepository
	Products    ProductFinder
	Prices      PriceLookup
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
	Currency    string
	// Observers are subscribed to every store opened with these deps.
	Observers []CartObserver
}

func (d CartStoreDeps) validate() error {
	if d.Repository == nil {
		return errCartRepositoryRequired
	}
	if d.Products == nil {
		return errCartProductsRequired
	}
	if d.Clock == nil {
		return errCartClockRequired
	}
	return nil
}

// CartStore holds one user's cart in memory as the authoritative copy.
// Every mutation updates memory first, notifies observers, and writes the
// full cart back to the repository. Persistence failures are logged and
// swallowed so the in-memory state is never rolled back.
type CartStore struct {
	repo     repositories.CartRepository
	products ProductFinder
	prices   PriceLookup
	now      func() time.Time
	logger   func(context.Context, string, map[string]any)
	newID    func() string

	mu           sync.Mutex
	cart         domain.Cart
	observers    map[int]CartObserver
	nextObserver int
}

// OpenCartStore loads the user's persisted cart, or starts an empty one when
// nothing was saved yet.
func OpenCartStore(ctx context.Context, userID string, deps CartStoreDeps) (*CartStore, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, ErrCartInvalidInput
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "USD"
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

	store := &CartStore{
		repo:      deps.Repository,
		products:  deps.Products,
		prices:    deps.Prices,
		now:       func() time.Time { return clock().UTC() },
		logger:    logger,
		newID:     idGen,
		observers: make(map[int]CartObserver),
	}

	cart, err := deps.Repository.Load(ctx, uid)
	switch {
	case err == nil:
		cart.UserID = uid
		if strings.TrimSpace(cart.Currency) == "" {
			cart.Currency = currency
		}
	case repositories.IsNotFound(err):
		now := store.now()
		cart = domain.Cart{
			ID:        uid,
			UserID:    uid,
			Currency:  currency,
			CreatedAt: now,
			UpdatedAt: now,
		}
	default:
		return nil, translateCartRepoError(err)
	}

	store.cart = cart
	for _, observer := range deps.Observers {
		store.Subscribe(observer)
	}
	return store, nil
}

// UserID returns the owner of this cart store.
func (s *CartStore) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.UserID
}

// Snapshot returns a deep copy of the current cart.
func (s *CartStore) Snapshot() Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// Count returns the total number of units across all lines.
func (s *CartStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Count()
}

// Subtotal derives the cart subtotal in minor units at live catalog prices.
// A line whose product the lookup no longer prices contributes zero; see
// MissingProducts. Without a lookup the add-time snapshot prices are used.
func (s *CartStore) Subtotal(ctx context.Context) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total, _ := s.subtotalLocked(ctx)
	return total
}

// MissingProducts returns the ids of lines whose product the price lookup no
// longer resolves, so the display layer can flag them.
func (s *CartStore) MissingProducts(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, missing := s.subtotalLocked(ctx)
	return missing
}

func (s *CartStore) subtotalLocked(ctx context.Context) (int64, []string) {
	var total int64
	var missing []string
	for _, line := range s.cart.Lines {
		if line.Quantity <= 0 {
			continue
		}
		unit := line.UnitPrice
		if s.prices != nil {
			live, ok := s.prices(ctx, line.ProductID)
			if !ok {
				missing = append(missing, line.ProductID)
				continue
			}
			unit = live
		}
		if unit <= 0 {
			continue
		}
		if unit > math.MaxInt64/int64(line.Quantity) {
			return math.MaxInt64, missing
		}
		total += unit * int64(line.Quantity)
		if total < 0 {
			return math.MaxInt64, missing
		}
	}
	return total, missing
}

// AddItem adds the product to the cart or increments the existing line.
// Quantities of zero or less are rejected without mutating anything. The
// product id is accepted as an opaque key: an id the catalog does not know
// still gets a line, just without display snapshot fields, and shows up in
// MissingProducts until the catalog resolves it.
func (s *CartStore) AddItem(ctx context.Context, productID string, quantity int) error {
	pid := strings.TrimSpace(productID)
	if pid == "" || quantity <= 0 {
		return ErrCartInvalidInput
	}

	product, err := s.products.GetProduct(ctx, pid)
	switch {
	case err == nil:
	case errors.Is(err, ErrProductNotFound), repositories.IsNotFound(err):
		product = Product{ID: pid}
	default:
		return translateCartRepoError(err)
	}

	s.mu.Lock()
	now := s.now()
	if idx := s.cart.LineFor(pid); idx >= 0 {
		s.cart.Lines[idx].Quantity += quantity
		s.cart.Lines[idx].UpdatedAt = &now
	} else {
		s.cart.Lines = append(s.cart.Lines, domain.CartLine{
			ID:        s.newID(),
			ProductID: product.ID,
			Quantity:  quantity,
			Name:      product.Name,
			UnitPrice: product.Price,
			ImageURL:  product.ImageURL,
			AddedAt:   now,
		})
	}
	s.cart.UpdatedAt = now
	change := s.changeLocked(CartChangeItemAdded, pid, quantity)
	s.mu.Unlock()

	s.persist(ctx)
	s.notify(change)
	return nil
}

// RemoveItem removes the product's line from the cart. Removing a product
// that is not in the cart is a no-op.
func (s *CartStore) RemoveItem(ctx context.Context, productID string) error {
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return ErrCartInvalidInput
	}

	s.mu.Lock()
	idx := s.cart.LineFor(pid)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	s.cart.Lines = append(s.cart.Lines[:idx], s.cart.Lines[idx+1:]...)
	s.cart.UpdatedAt = s.now()
	change := s.changeLocked(CartChangeItemRemoved, pid, 0)
	s.mu.Unlock()

	s.persist(ctx)
	s.notify(change)
	return nil
}

// SetQuantity replaces the quantity on the product's line. A quantity of zero
// or less removes the line; an unknown product is a no-op.
func (s *CartStore) SetQuantity(ctx context.Context, productID string, quantity int) error {
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return ErrCartInvalidInput
	}
	if quantity <= 0 {
		return s.RemoveItem(ctx, pid)
	}

	s.mu.Lock()
	idx := s.cart.LineFor(pid)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	if s.cart.Lines[idx].Quantity == quantity {
		s.mu.Unlock()
		return nil
	}
	now := s.now()
	s.cart.Lines[idx].Quantity = quantity
	s.cart.Lines[idx].UpdatedAt = &now
	s.cart.UpdatedAt = now
	change := s.changeLocked(CartChangeQuantitySet, pid, quantity)
	s.mu.Unlock()

	s.persist(ctx)
	s.notify(change)
	return nil
}

// Clear empties the cart. Clearing an already empty cart is a no-op.
func (s *CartStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	if len(s.cart.Lines) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.cart.Lines = nil
	s.cart.UpdatedAt = s.now()
	change := s.changeLocked(CartChangeCleared, "", 0)
	userID := s.cart.UserID
	s.mu.Unlock()

	if err := s.repo.Delete(ctx, userID); err != nil {
		s.logger(ctx, "cart.persist_failed", map[string]any{
			"userId": userID,
			"op":     "delete",
			"error":  err.Error(),
		})
	}
	s.notify(change)
	return nil
}

// Subscribe registers an observer for committed cart changes and returns a
// function that removes it again.
func (s *CartStore) Subscribe(observer CartObserver) func() {
	if observer == nil {
		return func() {}
	}

	s.mu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = observer
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *CartStore) changeLocked(event, productID string, quantity int) CartChange {
	return CartChange{
		Event:     event,
		UserID:    s.cart.UserID,
		ProductID: productID,
		Quantity:  quantity,
		Cart:      s.cart.Clone(),
	}
}

// persist writes the current cart to the repository. Failures are logged and
// never surfaced; the in-memory cart stays authoritative.
func (s *CartStore) persist(ctx context.Context) {
	s.mu.Lock()
	cart := s.cart.Clone()
	s.mu.Unlock()

	if err := s.repo.Save(ctx, cart); err != nil {
		s.logger(ctx, "cart.persist_failed", map[string]any{
			"userId": cart.UserID,
			"op":     "save",
			"error":  err.Error(),
		})
	}
}

func (s *CartStore) notify(change CartChange) {
	s.mu.Lock()
	observers := make([]CartObserver, 0, len(s.observers))
	for _, observer := range s.observers {
		observers = append(observers, observer)
	}
	s.mu.Unlock()

	for _, observer := range observers {
		observer(change)
	}
}

func translateCartRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case repositories.IsNotFound(err):
		return ErrCartNotFound
	default:
		return ErrCartUnavailable
	}
}

// CartSessions hands out one CartStore per user, loading lazily and caching
// the store for the lifetime of the process.
type CartSessions struct {
	deps CartStoreDeps

	mu     sync.Mutex
	stores map[string]*CartStore
}

// NewCartSessions validates the shared dependencies and constructs the manager.
func NewCartSessions(deps CartStoreDeps) (*CartSessions, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &CartSessions{deps: deps, stores: make(map[string]*CartStore)}, nil
}

// ForUser returns the user's cart store, opening it on first access.
func (m *CartSessions) ForUser(ctx context.Context, userID string) (*CartStore, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, ErrCartInvalidInput
	}

	m.mu.Lock()
	if store, ok := m.stores[uid]; ok {
		m.mu.Unlock()
		return store, nil
	}
	m.mu.Unlock()

	store, err := OpenCartStore(ctx, uid, m.deps)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.stores[uid]; ok {
		return existing, nil
	}
	m.stores[uid] = store
	return store, nil
}

// Invalidate drops the cached store so the next access reloads from storage.
func (m *CartSessions) Invalidate(userID string) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return
	}
	m.mu.Lock()
	delete(m.stores, uid)
	m.mu.Unlock()
}
