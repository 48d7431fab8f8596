package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/maplecart/api/internal/repositories"
)

var errCatalogRepositoryRequired = errors.New("catalog service: repository is required")

// ErrCatalogInvalidInput indicates the caller supplied invalid input.
var ErrCatalogInvalidInput = errors.New("catalog service: invalid input")

// ErrProductNotFound indicates the requested product does not exist.
var ErrProductNotFound = errors.New("catalog service: product not found")

// ErrCatalogUnavailable indicates the catalog backend cannot fulfil the request.
var ErrCatalogUnavailable = errors.New("catalog service: unavailable")

const defaultPriceCacheTTL = time.Minute

// CatalogServiceDeps wires the repository behind catalog reads.
type CatalogServiceDeps struct {
	Repository repositories.ProductRepository
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
	// PriceCacheTTL bounds how stale a cached price may get before the
	// lookup goes back to the repository. Zero uses the default.
	PriceCacheTTL time.Duration
}

type catalogService struct {
	repo   repositories.ProductRepository
	now    func() time.Time
	logger func(context.Context, string, map[string]any)

	cacheTTL   time.Duration
	cacheMu    sync.Mutex
	priceCache map[string]cachedPrice
}

type cachedPrice struct {
	price   int64
	ok      bool
	expires time.Time
}

// NewCatalogService constructs a CatalogService over the product repository.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Repository == nil {
		return nil, errCatalogRepositoryRequired
	}

	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	ttl := deps.PriceCacheTTL
	if ttl <= 0 {
		ttl = defaultPriceCacheTTL
	}

	return &catalogService{
		repo:       deps.Repository,
		now:        func() time.Time { return now().UTC() },
		logger:     logger,
		cacheTTL:   ttl,
		priceCache: make(map[string]cachedPrice),
	}, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return Product{}, ErrCatalogInvalidInput
	}

	product, err := s.repo.GetProduct(ctx, pid)
	if err != nil {
		return Product{}, translateCatalogRepoError(err)
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, query ProductListQuery) ([]Product, error) {
	products, err := s.repo.ListProducts(ctx, repositories.ProductListFilter{
		Category: strings.TrimSpace(query.Category),
		Limit:    query.Limit,
	})
	if err != nil {
		return nil, translateCatalogRepoError(err)
	}
	return products, nil
}

// PriceLookup returns a lookup resolving live catalog prices, with a short
// TTL cache so derived cart values do not hammer the repository. The lookup
// honours the caller's context on every resolution.
func (s *catalogService) PriceLookup() PriceLookup {
	return func(ctx context.Context, productID string) (int64, bool) {
		pid := strings.TrimSpace(productID)
		if pid == "" {
			return 0, false
		}

		now := s.now()
		s.cacheMu.Lock()
		if cached, ok := s.priceCache[pid]; ok && cached.expires.After(now) {
			s.cacheMu.Unlock()
			return cached.price, cached.ok
		}
		s.cacheMu.Unlock()

		price := int64(0)
		found := false
		product, err := s.repo.GetProduct(ctx, pid)
		switch {
		case err == nil && product.Price > 0:
			price = product.Price
			found = true
		case err != nil && !repositories.IsNotFound(err):
			s.logger(ctx, "catalog.price_lookup_failed", map[string]any{
				"productId": pid,
				"error":     err.Error(),
			})
			// Do not cache transient failures.
			return 0, false
		}

		s.cacheMu.Lock()
		s.priceCache[pid] = cachedPrice{price: price, ok: found, expires: now.Add(s.cacheTTL)}
		s.cacheMu.Unlock()
		return price, found
	}
}

func translateCatalogRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case repositories.IsNotFound(err):
		return ErrProductNotFound
	default:
		return ErrCatalogUnavailable
	}
}
