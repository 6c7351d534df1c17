package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/perkhub/loyalty-api/internal/config"
	"github.com/perkhub/loyalty-api/internal/domain/ledger"
	"github.com/perkhub/loyalty-api/internal/domain/order"
	"github.com/perkhub/loyalty-api/internal/domain/reward"
	"github.com/perkhub/loyalty-api/internal/domain/tier"
	"github.com/perkhub/loyalty-api/internal/pkg/database"
	"github.com/perkhub/loyalty-api/internal/pkg/logger"
)

// wakeChannel lets the API nudge the sweep instead of waiting a full
// tick, e.g. after an admin shortens a TTL.
const wakeChannel = "loyalty:expiry:wake"

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Dur("period", cfg.ExpirySweepPeriod).
		Msg("Starting expiry-worker")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	orderRepo := order.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	tierRepo := tier.NewRepository(db)
	rewardRepo := reward.NewRepository(db)

	ledgerService := ledger.NewService(ledgerRepo, orderRepo, tier.NewEngine(tierRepo))
	rewardService := reward.NewService(rewardRepo, ledgerService, cfg.RedemptionTTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wake := make(chan struct{}, 1)
	go subscribeWakeups(ctx, rdb, wake)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	ticker := time.NewTicker(cfg.ExpirySweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("expiry-worker stopped")
			return
		case <-wake:
			// immediate sweep
		case <-ticker.C:
		}

		sweepCtx, sweepCancel := context.WithTimeout(ctx, 30*time.Second)
		if _, err := rewardService.ExpireDue(sweepCtx); err != nil {
			log.Error().Err(err).Msg("expiry sweep failed")
		}
		sweepCancel()
	}
}

func subscribeWakeups(ctx context.Context, rdb *goredis.Client, wake chan<- struct{}) {
	if rdb == nil {
		return
	}

	sub := rdb.Subscribe(ctx, wakeChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}
