// Package kernel boots the application: it connects the store and the
// backing services, builds the domain services and assembles the HTTP
// handler with its global middleware stack.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/leppupy/app/jobs"
	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/app/queries"
	"github.com/shashiranjanraj/leppupy/app/repositories"
	"github.com/shashiranjanraj/leppupy/app/routes"
	"github.com/shashiranjanraj/leppupy/app/services"
	"github.com/shashiranjanraj/leppupy/config"
	"github.com/shashiranjanraj/leppupy/pkg/auth"
	"github.com/shashiranjanraj/leppupy/pkg/cache"
	"github.com/shashiranjanraj/leppupy/pkg/database"
	"github.com/shashiranjanraj/leppupy/pkg/event"
	appgql "github.com/shashiranjanraj/leppupy/pkg/graphql"
	"github.com/shashiranjanraj/leppupy/pkg/logger"
	"github.com/shashiranjanraj/leppupy/pkg/mail"
	"github.com/shashiranjanraj/leppupy/pkg/metrics"
	"github.com/shashiranjanraj/leppupy/pkg/middleware"
	"github.com/shashiranjanraj/leppupy/pkg/notification"
	"github.com/shashiranjanraj/leppupy/pkg/queue"
	"github.com/shashiranjanraj/leppupy/pkg/rbac"
	"github.com/shashiranjanraj/leppupy/pkg/reqid"
	"github.com/shashiranjanraj/leppupy/pkg/router"
	"github.com/shashiranjanraj/leppupy/pkg/schedule"
	"github.com/shashiranjanraj/leppupy/pkg/storage"
	"github.com/shashiranjanraj/leppupy/pkg/workerpool"
	"github.com/shashiranjanraj/leppupy/pkg/ws"
)

// Options selects the backends Boot connects.
type Options struct {
	// Memory keeps every collection in process. MongoDB and Redis are not
	// dialed.
	Memory bool
}

// Kernel owns the long-lived components of a running application.
type Kernel struct {
	Store     repositories.Store
	Cache     *cache.Store
	Events    *event.Bus
	Queue     *queue.Manager
	Disks     *storage.Manager
	Pool      *workerpool.Pool
	Hub       *ws.Hub
	Scheduler *schedule.Scheduler
	Services  routes.Services

	schema graphql.Schema
	memory bool
}

// Boot connects the configured backends and wires the services. Redis is
// optional: without it the catalog is not cached and jobs run in process.
func Boot(ctx context.Context, opts Options) (*Kernel, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("kernel: config: %w", err)
	}

	k := &Kernel{
		Events:    event.NewBus(),
		Hub:       ws.NewHub(),
		Scheduler: schedule.New(),
		memory:    opts.Memory,
	}

	if opts.Memory {
		k.Store = repositories.NewMemoryStore()
		k.Cache = cache.New(nil)
	} else {
		if err := database.Connect(ctx); err != nil {
			return nil, err
		}
		if uri := config.LogMongoURI(); uri != "" {
			if err := logger.EnableMongoSink(uri); err != nil {
				logger.Warn("kernel: mongo log sink disabled", "error", err)
			}
		}
		k.Store = repositories.NewMongoStore(database.DB, config.MongoTransactions())
		c, err := cache.Connect(ctx)
		if err != nil {
			logger.Warn("kernel: running without redis", "error", err)
		}
		k.Cache = c
	}

	k.Queue = queue.New(k.queueDriver())
	if !opts.Memory {
		k.Queue.UseFailedStore(queue.NewMongoFailedStore(database.DB))
	}
	slackURL := config.Get("SLACK_WEBHOOK_URL", "")
	jobs.Register(k.Queue, notification.New(mail.FromConfig(), slackURL))

	disks, err := storage.Connect(ctx)
	if err != nil {
		_ = k.Close(ctx)
		return nil, fmt.Errorf("kernel: storage: %w", err)
	}
	k.Disks = disks
	k.Pool = workerpool.New(config.Int("EXPORT_WORKERS", 2))

	blobs := services.NewContentStore(k.Store.Blobs())
	catalog := services.NewCatalogService(k.Store, blobs, k.Cache, k.Events)
	orders := services.NewOrderService(k.Store, blobs, k.Events, services.WithArchive(k.Pool, k.Disks.Default()))
	k.Services = routes.Services{
		Catalog: catalog,
		Cart:    services.NewCartService(k.Store, blobs),
		Orders:  orders,
		Users:   services.NewUserService(k.Store, k.Queue, k.Events),
	}

	k.schema, err = queries.NewSchema(catalog, orders, nil)
	if err != nil {
		_ = k.Close(ctx)
		return nil, fmt.Errorf("kernel: graphql schema: %w", err)
	}

	k.feedAdmins()
	if slackURL != "" {
		k.alertNewOrders()
	}
	k.Scheduler.Hourly().Name("blobs:sweep").WithoutOverlapping().Run(func(ctx context.Context) error {
		n, err := catalog.Sweep(ctx)
		if n > 0 {
			logger.WithCtx(ctx).Info("blobs: swept orphans", "removed", n)
		}
		return err
	})
	return k, nil
}

func (k *Kernel) queueDriver() queue.Driver {
	if config.QueueDriver() == "redis" {
		if rdb := k.Cache.Client(); rdb != nil {
			return queue.NewRedisDriver(rdb)
		}
		logger.Warn("kernel: QUEUE_DRIVER=redis but redis is unavailable, using memory")
	}
	return queue.NewMemoryDriver()
}

// liveEvent is the message pushed to the admin order feed.
type liveEvent struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// feedAdmins forwards order and catalog events to connected admin sockets.
func (k *Kernel) feedAdmins() {
	for _, name := range []string{event.OrderPlaced, event.OrderStatusChanged, event.OrderDeleted, event.CatalogChanged} {
		name := name
		k.Events.Listen(name, func(ctx context.Context, payload any) {
			if err := k.Hub.BroadcastJSON(liveEvent{Event: name, Payload: payload}); err != nil {
				logger.WithCtx(ctx).Warn("kernel: live event not sent", "event", name, "error", err)
			}
		})
	}
}

// alertNewOrders queues a Slack post for every placed order.
func (k *Kernel) alertNewOrders() {
	k.Events.Listen(event.OrderPlaced, func(ctx context.Context, payload any) {
		o, ok := payload.(services.OrderEvent)
		if !ok {
			return
		}
		name := models.UnknownClient
		if u, err := k.Services.Users.Get(ctx, o.Owner); err == nil {
			name = u.Name
		}
		if err := k.Queue.Dispatch(ctx, &jobs.NotifyOrderPlaced{OrderID: o.OrderID, ClientName: name}); err != nil {
			logger.WithCtx(ctx).Warn("kernel: order alert not queued", "orden_id", o.OrderID, "error", err)
		}
	})
}

// Router registers every route on a fresh router. The global middleware
// stack runs outermost to innermost: metrics, recovery, request id, logger,
// CORS, rate limiter.
func (k *Kernel) Router() *router.Router {
	r := router.New()

	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(middleware.DefaultCORSOptions()))
	r.Use(middleware.RateLimit(config.Int("RATE_LIMIT_PER_MINUTE", 200), time.Minute))

	r.HandleFunc("/metrics", metrics.Handler())

	admin := r.Group("/api/admin", middleware.Auth, rbac.HasRole(auth.RoleAdmin))
	admin.Get("/graphql", "admin.graphql", appgql.Handler(k.schema))
	admin.Post("/graphql", "admin.graphql.query", appgql.Handler(k.schema))
	admin.Get("/live", "admin.live", func(w http.ResponseWriter, r *http.Request) {
		ws.Upgrade(w, r, k.Hub)
	})

	r.Get("/api/orders/stream", "orders.stream", k.streamOrders, middleware.Auth)

	routes.RegisterAPI(r, k.Services)
	return r
}

// Routes lists the named routes without connecting any backend.
func Routes() []router.RouteInfo { return (&Kernel{}).Router().Routes() }

// Handler returns the root HTTP handler.
func (k *Kernel) Handler() http.Handler { return k.Router().Handler() }

// Ping reports whether the store is reachable.
func (k *Kernel) Ping(ctx context.Context) error { return k.Store.Ping(ctx) }

// Close drains background work and releases connections. It is safe to
// call on a partially booted kernel.
func (k *Kernel) Close(ctx context.Context) error {
	if k.Pool != nil {
		k.Pool.Shutdown()
	}
	k.Events.Wait()

	var errs []error
	if k.Cache != nil {
		errs = append(errs, k.Cache.Close())
	}
	if !k.memory {
		errs = append(errs, database.Disconnect(ctx))
	}
	logger.Close()
	return errors.Join(errs...)
}
