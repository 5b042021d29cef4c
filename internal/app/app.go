package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/techstore/internal/domain/address"
	"github.com/xenking/techstore/internal/domain/coupon"
	"github.com/xenking/techstore/internal/domain/delivery"
	"github.com/xenking/techstore/internal/domain/order"
	"github.com/xenking/techstore/internal/domain/product"
	"github.com/xenking/techstore/internal/domain/user"
	"github.com/xenking/techstore/internal/events"
	"github.com/xenking/techstore/internal/handler"
	"github.com/xenking/techstore/internal/postalcode"
	"github.com/xenking/techstore/internal/repository"
	"github.com/xenking/techstore/pkg/health"
	"github.com/xenking/techstore/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	proxies, err := cfg.RateLimit.Proxies()
	if err != nil {
		return errors.Wrap(err, "rate limit config")
	}

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc-pause", time.Second, health.GCMaxPauseCheck(time.Second),
		health.WithFailureThreshold(3),
	)

	// Order events go to Kafka when brokers are configured.
	var publisher events.Publisher = events.Nop{}
	if cfg.Kafka.Enabled() {
		kafka := events.NewKafka(cfg.Kafka)
		publisher = kafka
		healthSvc.AddReadinessCheck("kafka", 5*time.Second, health.PingCheck(kafka),
			health.WithFailureThreshold(3),
		)
		lg.Info("Publishing order events",
			zap.Strings("brokers", cfg.Kafka.BrokerList()),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			lg.Warn("Close event publisher", zap.Error(err))
		}
	}()

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	h, err := newHandler(pool, cfg, publisher, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}

	// Request logging and span labels need the matched route, so they run
	// inside the router.
	router := handler.NewRouter(h,
		httpmiddleware.LogRequests(),
		httpmiddleware.Labeler(),
	)
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:            cfg.RateLimit.Max,
				Window:         cfg.RateLimit.Window,
				TrustedProxies: proxies,
				Skip:           isProbe,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("techstore-api", m),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// isProbe exempts health probes from rate limiting.
func isProbe(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz" || strings.HasPrefix(r.URL.Path, "/debug/")
}

// newHandler wires repositories and domain services into the HTTP handler.
func newHandler(
	pool *pgxpool.Pool,
	cfg *Config,
	publisher events.Publisher,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*handler.Handler, error) {
	productRepo := repository.NewProductRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	addressRepo := repository.NewAddressRepository(pool)

	orderService, err := order.NewService(order.Deps{
		Products:       productRepo,
		Coupons:        couponRepo,
		Addresses:      addressRepo,
		Orders:         repository.NewOrderRepository(pool),
		Events:         publisher,
		TracerProvider: tp,
		MeterProvider:  mp,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create order service")
	}
	tokens := user.NewTokens([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)

	return handler.New(handler.Deps{
		Users:      user.NewService(repository.NewUserRepository(pool), tokens, cfg.Auth.BCryptCost),
		Products:   product.NewService(productRepo),
		Coupons:    coupon.NewService(couponRepo),
		Orders:     orderService,
		Addresses:  address.NewService(addressRepo, postalcode.New(cfg.PostalCode, tp)),
		Deliveries: delivery.NewService(repository.NewDeliveryRepository(pool)),
	}), nil
}
