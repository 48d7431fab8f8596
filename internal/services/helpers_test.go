package services

import (
	"context"
	"strings"
	"sync"
	"time"

	domain "github.com/maplecart/api/internal/domain"
	"github.com/maplecart/api/internal/repositories"
)

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// stubRepoError implements repositories.RepositoryError for tests.
type stubRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return e.msg }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

var (
	errStubNotFound    = &stubRepoError{msg: "not found", notFound: true}
	errStubUnavailable = &stubRepoError{msg: "unavailable", unavailable: true}
)

type stubCartRepo struct {
	mu      sync.Mutex
	cart    domain.Cart
	loadErr error
	saveErr error

	saves   int
	deletes int
}

func (r *stubCartRepo) Load(_ context.Context, userID string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return domain.Cart{}, r.loadErr
	}
	if r.cart.UserID != userID {
		return domain.Cart{}, errStubNotFound
	}
	return r.cart.Clone(), nil
}

func (r *stubCartRepo) Save(_ context.Context, cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.saveErr != nil {
		return r.saveErr
	}
	r.cart = cart.Clone()
	return nil
}

func (r *stubCartRepo) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	if r.cart.UserID == userID {
		r.cart = domain.Cart{}
	}
	return nil
}

func (r *stubCartRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

type stubProductFinder struct {
	products map[string]domain.Product
	err      error
}

func (f *stubProductFinder) GetProduct(_ context.Context, productID string) (domain.Product, error) {
	if f.err != nil {
		return domain.Product{}, f.err
	}
	product, ok := f.products[strings.ToLower(productID)]
	if !ok {
		return domain.Product{}, ErrProductNotFound
	}
	return product, nil
}

func testProducts() *stubProductFinder {
	return &stubProductFinder{products: map[string]domain.Product{
		"prod-1": {ID: "prod-1", Name: "Walnut Desk Organiser", Price: 2500, Currency: "USD", ImageURL: "https://img.example/prod-1.jpg"},
		"prod-2": {ID: "prod-2", Name: "Brass Bookends", Price: 4200, Currency: "USD"},
		"prod-3": {ID: "prod-3", Name: "Linen Throw", Price: 8900, Currency: "USD"},
	}}
}

type capturedLog struct {
	event  string
	fields map[string]any
}

type logRecorder struct {
	mu      sync.Mutex
	entries []capturedLog
}

func (l *logRecorder) hook() func(context.Context, string, map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.entries = append(l.entries, capturedLog{event: event, fields: fields})
	}
}

func (l *logRecorder) has(event string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.entries {
		if entry.event == event {
			return true
		}
	}
	return false
}

func cartDepsForTest(repo repositories.CartRepository, products ProductFinder) CartStoreDeps {
	return CartStoreDeps{
		Repository: repo,
		Products:   products,
		Clock:      fixedClock(testTime),
		Currency:   "USD",
	}
}
