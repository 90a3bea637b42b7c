package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumenworks/usage-gate/internal/config"
	"github.com/lumenworks/usage-gate/internal/counterstore"
	"github.com/lumenworks/usage-gate/internal/credits"
	"github.com/lumenworks/usage-gate/internal/handler"
	"github.com/lumenworks/usage-gate/internal/healthcheck"
	"github.com/lumenworks/usage-gate/internal/middleware"
	"github.com/lumenworks/usage-gate/internal/ratelimit"
	"github.com/lumenworks/usage-gate/internal/repository"
	"github.com/lumenworks/usage-gate/internal/service"
	"github.com/lumenworks/usage-gate/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	router     *gin.Engine
	config     *config.Config
	redis      *storage.RedisClient
	postgres   *storage.Postgres
	registry   *ratelimit.Registry
	ledger     *credits.Ledger
	checker    *healthcheck.Checker
	httpServer *http.Server
}

// New wires the whole service. When redis is nil the counter store falls
// back to the in-process map; the circuit breaker wrapper only applies
// to the redis-backed store.
func New(cfg *config.Config, redis *storage.RedisClient, postgres *storage.Postgres) (*Server, error) {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Counter store: redis when configured, in-process map otherwise
	var store counterstore.Store
	var breaker *counterstore.BreakerStore
	if redis != nil {
		breaker = counterstore.NewBreakerStore(
			counterstore.NewRedisStore(redis, 2*time.Second),
			counterstore.BreakerConfig{
				MaxFailures: cfg.Breaker.MaxFailures,
				Cooldown:    time.Duration(cfg.Breaker.CooldownSeconds) * time.Second,
			},
		)
		store = breaker
	} else {
		log.Println("No redis configured, using in-process counter store")
		store = counterstore.NewMemoryStore()
	}

	// Limiter registry: policies validated here, at startup
	registry := ratelimit.NewRegistry(store)
	for _, p := range cfg.Policies {
		policy := ratelimit.Policy{
			Name:        p.Name,
			MaxRequests: p.MaxRequests,
			WindowMs:    p.WindowMs,
		}
		if err := registry.Register(policy); err != nil {
			return nil, err
		}
		log.Printf("Registered rate limit policy %s: %d req / %dms", p.Name, p.MaxRequests, p.WindowMs)
	}

	ledger := credits.NewLedger(store)

	// Relational layer
	subscriptionRepo := repository.NewSubscriptionRepository(postgres)
	usageEventRepo := repository.NewUsageEventRepository(postgres)
	authRepo := repository.NewUserRepository(postgres)

	// Services
	planService := service.NewPlanService(subscriptionRepo, redis)
	usageService := service.NewUsageService(registry, ledger, planService)
	authService := service.NewAuthService(authRepo, cfg.Auth.JWTSecret, cfg.Auth.ExpiryHours)

	// Background dependency prober
	checker := healthcheck.NewChecker(healthcheck.Config{})
	checker.AddDependency("database", postgres.Ping)
	if redis != nil {
		checker.AddDependency("redis", redis.Ping)
	}

	// Async usage audit trail
	middleware.InitUsageRecorder(usageEventRepo, 1000)

	// Handlers
	limitsHandler := handler.NewLimitsHandler(registry)
	creditsHandler := handler.NewCreditsHandler(ledger)
	usageHandler := handler.NewUsageHandler(usageService, usageEventRepo)
	authHandler := handler.NewAuthHandler(authService)
	subscriptionsHandler := handler.NewSubscriptionsHandler(subscriptionRepo, planService)
	systemHandler := handler.NewSystemHandler(checker, breaker, registry)

	s := &Server{
		router:   router,
		config:   cfg,
		redis:    redis,
		postgres: postgres,
		registry: registry,
		ledger:   ledger,
		checker:  checker,
	}

	s.setupMiddleware()
	s.setupRoutes(limitsHandler, creditsHandler, usageHandler, authHandler, subscriptionsHandler, systemHandler, authService)

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
}

func (s *Server) setupRoutes(
	limits *handler.LimitsHandler,
	creditsHandler *handler.CreditsHandler,
	usage *handler.UsageHandler,
	auth *handler.AuthHandler,
	subscriptions *handler.SubscriptionsHandler,
	system *handler.SystemHandler,
	authService *service.AuthService,
) {
	s.router.GET("/health", system.Health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.POST("/auth/login", middleware.RateLimit(s.registry, "auth"), auth.Login)

	// Governance surface consumed by the tool services
	v1 := s.router.Group("/v1")
	{
		v1.POST("/usage/authorize", usage.Authorize)
		v1.GET("/credits/:owner/balance", creditsHandler.Balance)
		v1.GET("/credits/:owner/packs", creditsHandler.Packs)
	}

	// Administrative surface: authenticated, authorized upstream
	admin := s.router.Group("/admin")
	admin.Use(middleware.RequireAuth(authService))
	{
		admin.GET("/status", system.AdminStatus)
		admin.POST("/breaker/reset", system.ResetBreaker)

		admin.GET("/limits/state", limits.State)
		admin.POST("/limits/reset", limits.Reset)

		admin.POST("/credits/grant", creditsHandler.Grant)
		admin.POST("/credits/deduct", creditsHandler.Deduct)

		admin.GET("/usage/summary", usage.Summary)
		admin.GET("/usage/:owner", usage.OwnerHistory)

		admin.PUT("/subscriptions", subscriptions.Upsert)
		admin.GET("/subscriptions/:owner", subscriptions.Get)

		admin.POST("/users", auth.Register)
	}
}

func (s *Server) Run(addr string) error {
	s.checker.Start()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	log.Printf("Starting usage-gate on %s", addr)
	log.Printf("Environment: %s", s.config.Server.Environment)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	s.checker.Stop()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
