package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/maplecart/api/internal/handlers"
	"github.com/maplecart/api/internal/platform/auth"
	"github.com/maplecart/api/internal/platform/config"
	"github.com/maplecart/api/internal/platform/events"
	pfirestore "github.com/maplecart/api/internal/platform/firestore"
	"github.com/maplecart/api/internal/platform/observability"
	firestorerepo "github.com/maplecart/api/internal/repositories/firestore"
	"github.com/maplecart/api/internal/services"
)

// Container assembles every layer of the application and owns the lifecycle
// of the external clients it creates.
type Container struct {
	Config config.Config
	Logger *zap.Logger
	Router chi.Router

	firestore    *pfirestore.Provider
	pubsubClient *pubsub.Client
	publisher    *events.PubSubPublisher
}

// New builds the full dependency graph from configuration. The returned
// container must be closed to flush events and release client connections.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Container{Config: cfg, Logger: logger}

	c.firestore = pfirestore.NewProvider(cfg.Firestore)

	cartRepo, err := firestorerepo.NewCartRepository(c.firestore)
	if err != nil {
		return nil, c.closeOnError(fmt.Errorf("build cart repository: %w", err))
	}
	favoriteRepo, err := firestorerepo.NewFavoriteRepository(c.firestore)
	if err != nil {
		return nil, c.closeOnError(fmt.Errorf("build favorite repository: %w", err))
	}
	productRepo, err := firestorerepo.NewProductRepository(c.firestore)
	if err != nil {
		return nil, c.closeOnError(fmt.Errorf("build product repository: %w", err))
	}
	orderRepo, err := firestorerepo.NewOrderRepository(c.firestore)
	if err != nil {
		return nil, c.closeOnError(fmt.Errorf("build order repository: %w", err))
	}

	if cfg.Features.EnableEvents && strings.TrimSpace(cfg.PubSub.ProjectID) != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, c.closeOnError(fmt.Errorf("build pubsub client: %w", err))
		}
		c.pubsubClient = client

		publisher, err := events.NewPubSubPublisher(
			client.Topic(cfg.PubSub.CartEventsTopic),
			client.Topic(cfg.PubSub.OrderEventsTopic),
		)
		if err != nil {
			return nil, c.closeOnError(fmt.Errorf("build event publisher: %w", err))
		}
		c.publisher = publisher
	} else {
		logger.Info("event publishing disabled")
	}

	logHook := observability.ServiceLogHook(logger)

	catalog, err := services.NewCatalogService(services.CatalogServiceDeps{
		Repository: productRepo,
		Logger:     logHook,
	})
	if err != nil {
		return nil, c.closeOnError(fmt.Errorf("build catalog service: %w", err))
	}

	pricing, err := services.NewPricingEngine(cfg.Pricing)
	if err != nil {
		return nil, c.closeOnError(fmt.Errorf("build pricing engine: %w", err))
	}

	var orderEvents services.OrderEventPublisher
	if c.publisher != nil {
		orderEvents = c.publisher
	}
	checkout, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Pricing: pricing,
		Catalog: catalog,
		Orders:  orderRepo,
		Events:  orderEvents,
		Clock:   timeNow,
		Logger:  logHook,
	})
	if err != nil {
		return nil, c.closeOnError(fmt.Errorf("build checkout service: %w", err))
	}

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Repository: orderRepo,
		Logger:     logHook,
	})
	if err != nil {
		return nil, c.closeOnError(fmt.Errorf("build order service: %w", err))
	}

	cartDeps := services.CartStoreDeps{
		Repository: cartRepo,
		Products:   catalog,
		Prices:     catalog.PriceLookup(),
		Clock:      timeNow,
		Logger:     logHook,
		Currency:   cfg.Pricing.Currency,
	}
	if c.publisher != nil {
		cartDeps.Observers = []services.CartObserver{cartEventForwarder(c.publisher, logger)}
	}
	carts, err := services.NewCartSessions(cartDeps)
	if err != nil {
		return nil, c.closeOnError(fmt.Errorf("build cart sessions: %w", err))
	}

	favorites, err := services.NewFavoritesSessions(services.FavoritesStoreDeps{
		Repository: favoriteRepo,
		Clock:      timeNow,
		Logger:     logHook,
	})
	if err != nil {
		return nil, c.closeOnError(fmt.Errorf("build favorites sessions: %w", err))
	}

	var authn *auth.Authenticator
	if strings.TrimSpace(cfg.Firebase.ProjectID) != "" {
		verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
		if err != nil {
			return nil, c.closeOnError(fmt.Errorf("build firebase verifier: %w", err))
		}
		authn = auth.NewAuthenticator(verifier)
	} else {
		logger.Warn("firebase project not configured, authenticated routes will reject all requests")
	}

	productHandlers := handlers.NewProductHandlers(catalog)
	cartHandlers := handlers.NewCartHandlers(authn, carts)
	favoriteHandlers := handlers.NewFavoriteHandlers(authn, favorites, catalog)
	checkoutHandlers := handlers.NewCheckoutHandlers(authn, carts, checkout)
	orderHandlers := handlers.NewOrderHandlers(authn, orders)

	health := handlers.NewHealthHandlers(
		handlers.WithReadinessCheck("firestore", func(ctx context.Context) error {
			_, err := c.firestore.Client(ctx)
			return err
		}),
	)

	c.Router = handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceContextMiddleware(),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithHealthHandlers(health),
		handlers.WithProductRoutes(productHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithFavoriteRoutes(favoriteHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
	)

	return c, nil
}

// Handler returns the assembled HTTP handler.
func (c *Container) Handler() http.Handler {
	return c.Router
}

// Close flushes pending events and releases external clients.
func (c *Container) Close() error {
	if c == nil {
		return nil
	}

	var errs []error
	if c.publisher != nil {
		c.publisher.Stop()
	}
	if c.pubsubClient != nil {
		if err := c.pubsubClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pubsub client: %w", err))
		}
	}
	if c.firestore != nil {
		if err := c.firestore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close firestore provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (c *Container) closeOnError(err error) error {
	_ = c.Close()
	return err
}

// cartEventForwarder publishes committed cart changes to Pub/Sub. Publishing
// is informational; failures are logged and never affect cart state.
func cartEventForwarder(publisher *events.PubSubPublisher, logger *zap.Logger) services.CartObserver {
	return func(change services.CartChange) {
		message := events.CartEventMessage{
			Type:       change.Event,
			UserID:     change.UserID,
			ProductID:  change.ProductID,
			Quantity:   change.Quantity,
			ItemCount:  change.Cart.Count(),
			Subtotal:   snapshotSubtotal(change.Cart),
			Currency:   change.Cart.Currency,
			OccurredAt: timeNow(),
		}
		if _, err := publisher.PublishCartEvent(context.Background(), message); err != nil {
			logger.Warn("cart event publish failed",
				zap.String("event", change.Event),
				zap.String("userId", change.UserID),
				zap.Error(err),
			)
		}
	}
}

func timeNow() time.Time { return time.Now().UTC() }

// snapshotSubtotal sums the snapshot line prices. Event consumers only need
// an approximate figure, so live repricing is not worth a catalog round trip.
func snapshotSubtotal(cart services.Cart) int64 {
	var total int64
	for _, line := range cart.Lines {
		if line.Quantity > 0 && line.UnitPrice > 0 {
			total += line.UnitPrice * int64(line.Quantity)
		}
	}
	return total
}
