package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/perkhub/loyalty-api/internal/config"
	"github.com/perkhub/loyalty-api/internal/domain/ledger"
	"github.com/perkhub/loyalty-api/internal/domain/order"
	"github.com/perkhub/loyalty-api/internal/domain/reward"
	"github.com/perkhub/loyalty-api/internal/domain/tier"
	"github.com/perkhub/loyalty-api/internal/middleware"
	"github.com/perkhub/loyalty-api/internal/pkg/database"
	"github.com/perkhub/loyalty-api/internal/pkg/jwt"
	"github.com/perkhub/loyalty-api/internal/pkg/logger"
	pkgresponse "github.com/perkhub/loyalty-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting loyalty API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Repositories ----------
	orderRepo := order.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	tierRepo := tier.NewRepository(db)
	rewardRepo := reward.NewRepository(db)

	// ---------- Services ----------
	tierEngine := tier.NewEngine(tierRepo)
	tierCache := tier.NewCache(redis, cfg.TierCacheTTL)
	tierService := tier.NewService(tierRepo, tierCache)

	ledgerService := ledger.NewService(ledgerRepo, orderRepo, tierEngine)
	rewardService := reward.NewService(rewardRepo, ledgerService, cfg.RedemptionTTL)

	// ---------- Handlers ----------
	ledgerHandler := ledger.NewHandler(ledgerService)
	tierHandler := tier.NewHandler(tierService)
	rewardHandler := reward.NewHandler(rewardService)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(chimw.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			pkgresponse.ServiceUnavailable(w, "database unreachable")
			return
		}
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1/loyalty", func(r chi.Router) {
		r.Mount("/events", ledgerHandler.EventRoutes(authMiddleware))
		r.Mount("/account", ledgerHandler.Routes(authMiddleware))
		r.Mount("/tiers", tierHandler.Routes())
		r.Mount("/rewards", rewardHandler.CatalogRoutes(authMiddleware))
		r.Mount("/redemptions", rewardHandler.RedemptionRoutes(authMiddleware))
	})

	r.Route("/api/admin/loyalty", func(r chi.Router) {
		r.Mount("/tiers", tierHandler.AdminRoutes(authMiddleware))
		r.Mount("/rewards", rewardHandler.AdminRoutes(authMiddleware))
		r.Mount("/", ledgerHandler.AdminRoutes(authMiddleware))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
