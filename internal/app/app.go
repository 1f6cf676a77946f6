package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/shipstack/courier-api/internal/cache/rediscache"
	"github.com/shipstack/courier-api/internal/domain/order"
	"github.com/shipstack/courier-api/internal/domain/promo"
	"github.com/shipstack/courier-api/internal/domain/rate"
	"github.com/shipstack/courier-api/internal/domain/wallet"
	"github.com/shipstack/courier-api/internal/handler"
	"github.com/shipstack/courier-api/internal/storage/postgres"
	"github.com/shipstack/courier-api/pkg/health"
	"github.com/shipstack/courier-api/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	orderRepo := postgres.NewOrderRepository(pool)
	walletStore := postgres.NewWalletStore(pool)
	rateRepo := postgres.NewRateRepository(pool)
	promoRepo := postgres.NewPromoRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Domain services. Quoting goes through Redis when configured.
	resolver := rate.NewResolver(rateRepo)
	var quotes handler.RateQuoter = resolver
	var quoteInv handler.QuoteInvalidator
	if cfg.RedisAddr != "" {
		cached := rate.NewCachedResolver(resolver, rediscache.New(cfg.RedisAddr))
		quotes = cached
		quoteInv = cached
		lg.Info("Quote cache enabled", zap.String("redis", cfg.RedisAddr))
	}

	applier := promo.NewApplier(promoRepo)
	orderService := order.NewService(orderRepo, resolver, applier)
	ledger := wallet.NewLedger(walletStore)

	// HTTP surface.
	h := handler.NewHandler(
		handler.Config{WebhookSecret: []byte(cfg.WebhookSecret)},
		handler.Deps{
			Orders:    orderService,
			Ledger:    ledger,
			Promos:    applier,
			PromoRepo: promoRepo,
			Quotes:    quotes,
			RateAdmin: rateRepo,
			QuoteInv:  quoteInv,
			Auth:      handler.NewKeyAuth(apikeyRepo, []byte(cfg.APIKeyPepper)),
		},
	)

	api := otelhttp.NewHandler(h.Router(), "courier-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", http.StripPrefix("/api", api))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "api_key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
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
