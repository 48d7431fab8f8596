package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	domain "github.com/maplecart/api/internal/domain"
	"github.com/maplecart/api/internal/repositories"
)

var (
	errFavoritesRepositoryRequired = errors.New("favorites store: repository is required")
	errFavoritesClockRequired      = errors.New("favorites store: clock is required")
)

// ErrFavoritesInvalidInput indicates the caller supplied invalid input.
var ErrFavoritesInvalidInput = errors.New("favorites store: invalid input")

// ErrFavoritesUnavailable indicates the favorites backend cannot fulfil the request.
var ErrFavoritesUnavailable = errors.New("favorites store: unavailable")

// Favorites change event names.
const (
	FavoritesChangeAdded   = "favorites.added"
	FavoritesChangeRemoved = "favorites.removed"
	FavoritesChangeCleared = "favorites.cleared"
)

// FavoritesChange describes a committed favorites mutation.
type FavoritesChange struct {
	Event     string
	UserID    string
	ProductID string
	Favorites []Favorite
}

// FavoritesObserver receives committed favorites changes.
type FavoritesObserver func(FavoritesChange)

// FavoritesStoreDeps wires persistence for a favorites store.
type FavoritesStoreDeps struct {
	Repository repositories.FavoriteRepository
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

func (d FavoritesStoreDeps) validate() error {
	if d.Repository == nil {
		return errFavoritesRepositoryRequired
	}
	if d.Clock == nil {
		return errFavoritesClockRequired
	}
	return nil
}

// FavoritesStore holds one user's favorite products in memory with set
// semantics: adding an existing product or removing an absent one is a no-op.
// Mutations persist fire-and-forget, mirroring the cart store.
type FavoritesStore struct {
	repo   repositories.FavoriteRepository
	now    func() time.Time
	logger func(context.Context, string, map[string]any)

	mu           sync.Mutex
	userID       string
	favorites    []domain.Favorite
	observers    map[int]FavoritesObserver
	nextObserver int
}

// OpenFavoritesStore loads the user's persisted favorites.
func OpenFavoritesStore(ctx context.Context, userID string, deps FavoritesStoreDeps) (*FavoritesStore, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, ErrFavoritesInvalidInput
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	clock := deps.Clock

	favorites, err := deps.Repository.List(ctx, uid)
	if err != nil && !repositories.IsNotFound(err) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, ErrFavoritesUnavailable
	}

	return &FavoritesStore{
		repo:      deps.Repository,
		now:       func() time.Time { return clock().UTC() },
		logger:    logger,
		userID:    uid,
		favorites: favorites,
		observers: make(map[int]FavoritesObserver),
	}, nil
}

// UserID returns the owner of this favorites store.
func (s *FavoritesStore) UserID() string {
	return s.userID
}

// List returns a copy of the favorites, most recent first.
func (s *FavoritesStore) List() []Favorite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneLocked()
}

// Count returns the number of favorited products.
func (s *FavoritesStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.favorites)
}

// Contains reports whether the product is favorited.
func (s *FavoritesStore) Contains(productID string) bool {
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(pid) >= 0
}

// Add favorites the product. Adding an already favorited product is a no-op.
func (s *FavoritesStore) Add(ctx context.Context, productID string) error {
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return ErrFavoritesInvalidInput
	}

	s.mu.Lock()
	if s.indexLocked(pid) >= 0 {
		s.mu.Unlock()
		return nil
	}
	favorite := domain.Favorite{ProductID: pid, AddedAt: s.now()}
	s.favorites = append([]domain.Favorite{favorite}, s.favorites...)
	change := s.changeLocked(FavoritesChangeAdded, pid)
	s.mu.Unlock()

	if err := s.repo.Save(ctx, s.userID, favorite); err != nil {
		s.logger(ctx, "favorites.persist_failed", map[string]any{
			"userId":    s.userID,
			"productId": pid,
			"op":        "save",
			"error":     err.Error(),
		})
	}
	s.notify(change)
	return nil
}

// Remove unfavorites the product. Removing an absent product is a no-op.
func (s *FavoritesStore) Remove(ctx context.Context, productID string) error {
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return ErrFavoritesInvalidInput
	}

	s.mu.Lock()
	idx := s.indexLocked(pid)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	s.favorites = append(s.favorites[:idx], s.favorites[idx+1:]...)
	change := s.changeLocked(FavoritesChangeRemoved, pid)
	s.mu.Unlock()

	if err := s.repo.Delete(ctx, s.userID, pid); err != nil {
		s.logger(ctx, "favorites.persist_failed", map[string]any{
			"userId":    s.userID,
			"productId": pid,
			"op":        "delete",
			"error":     err.Error(),
		})
	}
	s.notify(change)
	return nil
}

// Toggle favorites the product when absent and unfavorites it when present.
// It reports whether the product is favorited afterwards.
func (s *FavoritesStore) Toggle(ctx context.Context, productID string) (bool, error) {
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return false, ErrFavoritesInvalidInput
	}
	if s.Contains(pid) {
		return false, s.Remove(ctx, pid)
	}
	return true, s.Add(ctx, pid)
}

// Clear removes every favorite. Clearing an empty set is a no-op.
func (s *FavoritesStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	if len(s.favorites) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.favorites = nil
	change := s.changeLocked(FavoritesChangeCleared, "")
	s.mu.Unlock()

	if err := s.repo.DeleteAll(ctx, s.userID); err != nil {
		s.logger(ctx, "favorites.persist_failed", map[string]any{
			"userId": s.userID,
			"op":     "delete_all",
			"error":  err.Error(),
		})
	}
	s.notify(change)
	return nil
}

// Subscribe registers an observer for committed changes and returns an
// unsubscribe function.
func (s *FavoritesStore) Subscribe(observer FavoritesObserver) func() {
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

func (s *FavoritesStore) indexLocked(productID string) int {
	for i, favorite := range s.favorites {
		if strings.EqualFold(strings.TrimSpace(favorite.ProductID), productID) {
			return i
		}
	}
	return -1
}

func (s *FavoritesStore) cloneLocked() []Favorite {
	if s.favorites == nil {
		return nil
	}
	dup := make([]Favorite, len(s.favorites))
	copy(dup, s.favorites)
	return dup
}

func (s *FavoritesStore) changeLocked(event, productID string) FavoritesChange {
	return FavoritesChange{
		Event:     event,
		UserID:    s.userID,
		ProductID: productID,
		Favorites: s.cloneLocked(),
	}
}

func (s *FavoritesStore) notify(change FavoritesChange) {
	s.mu.Lock()
	observers := make([]FavoritesObserver, 0, len(s.observers))
	for _, observer := range s.observers {
		observers = append(observers, observer)
	}
	s.mu.Unlock()

	for _, observer := range observers {
		observer(change)
	}
}

// FavoritesSessions hands out one FavoritesStore per user.
type FavoritesSessions struct {
	deps FavoritesStoreDeps

	mu     sync.Mutex
	stores map[string]*FavoritesStore
}

// NewFavoritesSessions validates the shared dependencies and constructs the manager.
func NewFavoritesSessions(deps FavoritesStoreDeps) (*FavoritesSessions, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &FavoritesSessions{deps: deps, stores: make(map[string]*FavoritesStore)}, nil
}

// ForUser returns the user's favorites store, opening it on first access.
func (m *FavoritesSessions) ForUser(ctx context.Context, userID string) (*FavoritesStore, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, ErrFavoritesInvalidInput
	}

	m.mu.Lock()
	if store, ok := m.stores[uid]; ok {
		m.mu.Unlock()
		return store, nil
	}
	m.mu.Unlock()

	store, err := OpenFavoritesStore(ctx, uid, m.deps)
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
func (m *FavoritesSessions) Invalidate(userID string) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return
	}
	m.mu.Lock()
	delete(m.stores, uid)
	m.mu.Unlock()
}
