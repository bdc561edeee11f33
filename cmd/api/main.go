package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-fees/internal/auth"
	"github.com/noah-isme/toko-fees/internal/cart"
	"github.com/noah-isme/toko-fees/internal/catalog"
	"github.com/noah-isme/toko-fees/internal/checkout"
	"github.com/noah-isme/toko-fees/internal/common"
	"github.com/noah-isme/toko-fees/internal/config"
	"github.com/noah-isme/toko-fees/internal/db"
	"github.com/noah-isme/toko-fees/internal/discount"
	"github.com/noah-isme/toko-fees/internal/export"
	"github.com/noah-isme/toko-fees/internal/health"
	"github.com/noah-isme/toko-fees/internal/lifecycle"
	"github.com/noah-isme/toko-fees/internal/lock"
	"github.com/noah-isme/toko-fees/internal/obs"
	"github.com/noah-isme/toko-fees/internal/order"
	"github.com/noah-isme/toko-fees/internal/ratelimit"
	"github.com/noah-isme/toko-fees/internal/security"
	"github.com/noah-isme/toko-fees/internal/shipping"
)

const serviceName = "toko-fees"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "toko")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   serviceName,
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if cfg.AutoMigrate {
		version, err := db.Migrate(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
		logger.Info().Uint("version", version).Msg("database schema up to date")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = serviceName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	catalogSvc, err := catalog.NewService(
		catalog.NewStore(pool),
		catalog.NewCache(redisClient, cfg.ProfileCacheTTL),
		obs.Component(logger, "catalog"),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}

	countries := cfg.ShippingCountries
	if len(countries) == 0 {
		countries = shipping.DefaultCountries
	}
	calc := &shipping.Calculator{
		Profiles:      catalogSvc,
		BaseCountry:   cfg.StoreBaseCountry,
		VendorRegions: cfg.VendorRegions,
		Label:         cfg.ShippingFeeLabel,
		Log:           obs.Component(logger, "shipping"),
	}
	discountStore := discount.NewStore(pool)
	stages := lifecycle.New(
		calc,
		&discount.Selector{Rules: discountStore, Log: obs.Component(logger, "volume_discount")},
		&shipping.Checkout{Calc: calc, Countries: countries},
	).WithObserver(obs.ObserveRecalculation)

	cartStore := cart.NewRedisStore(redisClient, cfg.CartTTL, cfg.CartRedisPrefix)
	cartSvc := &cart.Service{Store: cartStore, Products: catalogSvc, Recalc: stages, Currency: cfg.CurrencyCode}
	orderStore := order.NewStore(pool)
	orderSvc := &order.Service{Store: orderStore, Renderer: stages, Log: obs.Component(logger, "order")}
	checkoutSvc := &checkout.Service{
		Carts:  cartStore,
		Stages: stages,
		Owners: catalogSvc,
		Orders: orderStore,
		Locks:  lock.Locker{Client: redisClient, Prefix: "lock:checkout:", TTL: 30 * time.Second, Wait: 3 * time.Second},
		Log:    obs.Component(logger, "checkout"),
	}

	cartHandler := &cart.Handler{Svc: cartSvc}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}
	catalogAdmin := &catalog.AdminHandler{Svc: catalogSvc}
	discountAdmin := &discount.Handler{Svc: &discount.Service{Store: discountStore}}
	orderAdmin := &order.AdminHandler{Svc: orderSvc, DefaultLimit: cfg.AdminListPageLimit}
	vendorLinks, err := auth.NewActionSigner(cfg.JWTSecret, cfg.VendorLinkTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise vendor link signer")
	}
	orderVendor := &order.VendorHandler{
		Svc:      orderSvc,
		Links:    vendorLinks,
		Fallback: envOrDefault("VENDOR_DASHBOARD_PATH", "/"),
		Log:      obs.Component(logger, "vendor"),
	}
	exportHandler := &export.Handler{Orders: orderSvc, FilePrefix: cfg.ExportFilePrefix, Log: obs.Component(logger, "export")}

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise token verifier")
	}
	accessCookie := envOrDefault("AUTH_ACCESS_COOKIE", "access_token")
	authMiddleware := auth.Middleware{Verifier: verifier, AccessCookie: accessCookie}
	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	limiterStore, err := ratelimit.NewRedisStore(redisClient, "limiter")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter store")
	}
	destinationLimiter, err := ratelimit.NewFixed(limiterStore, cfg.DestinationRate)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse destination rate limit")
	}
	checkoutWindow, checkoutMax, err := ratelimit.Rate(cfg.CheckoutRate)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse checkout rate limit")
	}
	onLimiterError := func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") }
	destinationLimit := ratelimit.Handler{Limiter: destinationLimiter, Key: ratelimit.KeyByIP, OnError: onLimiterError}
	checkoutLimit := ratelimit.Handler{
		Limiter: ratelimit.Sliding{Client: redisClient, Prefix: "ratelimit:checkout:", Window: checkoutWindow, Max: checkoutMax},
		Key:     ratelimit.KeyByUser,
		OnError: onLimiterError,
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{
		Enable:                cfg.SecurityHeaders,
		EnableHSTS:            envBool("SECURITY_HSTS", cfg.AppEnv == "production"),
		HSTSIncludeSubdomains: true,
	}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "Idempotency-Key"},
		ExposedHeaders:   []string{"Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      health.Deps{Pool: pool, Redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/carts", func(c chi.Router) {
			c.Use(authMiddleware.Authenticate)
			c.Get("/{id}", cartHandler.Get)
			c.With(destinationLimit.Middleware).Post("/{id}/destination", cartHandler.Destination)
			c.Post("/{id}/gateway", cartHandler.Gateway)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/", cartHandler.Create)
				g.Post("/{id}/items", cartHandler.AddItem)
				g.Patch("/{id}/items/{key}", cartHandler.UpdateItem)
				g.Delete("/{id}/items/{key}", cartHandler.RemoveItem)
				g.Delete("/{id}/items", cartHandler.Clear)
			})
		})

		v.With(authMiddleware.RequireAuth, checkoutLimit.Middleware, idem.Middleware).Post("/checkout", checkoutHandler.Checkout)

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireRole(common.RoleAdmin))
			admin.Use(security.CSRF{AccessCookie: accessCookie}.Middleware)
			admin.Get("/products/{id}/shipping", catalogAdmin.GetShipping)
			admin.Put("/products/{id}/shipping", catalogAdmin.PutShipping)
			admin.Get("/volume-discounts", discountAdmin.List)
			admin.Post("/volume-discounts", discountAdmin.Create)
			admin.Put("/volume-discounts/{id}", discountAdmin.Update)
			admin.Delete("/volume-discounts/{id}", discountAdmin.Delete)
			admin.Get("/orders", orderAdmin.List)
			admin.Post("/orders/shipment/bulk", orderAdmin.Bulk)
			admin.Get("/orders/{id}", orderAdmin.Get)
			admin.Patch("/orders/{id}/shipment", orderAdmin.PatchShipment)
			admin.Put("/orders/{id}/shipping-address", orderAdmin.PutShippingAddress)
			admin.Get("/exports/unshipped-orders.csv", exportHandler.UnshippedOrders)
		})

		v.Route("/vendor", func(vendor chi.Router) {
			vendor.Use(authMiddleware.Authenticate)
			vendor.Get("/orders/{id}/toggle-link", orderVendor.ToggleLink)
			vendor.Get("/orders/{id}/toggle-shipped", orderVendor.ToggleShipped)
		})
	})

	var handler http.Handler = r
	if tracingEnabled {
		handler = obs.Tracing(serviceName, r)
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), envDurationMillis("HTTP_SHUTDOWN_TIMEOUT_MS", 10000))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	health.SetReady(true)
	logger.Info().Str("addr", srv.Addr).Str("base_country", cfg.StoreBaseCountry).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
