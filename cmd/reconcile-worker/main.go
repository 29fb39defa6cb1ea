package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/medsched/clinic-booking/internal/config"
	"github.com/medsched/clinic-booking/internal/db"
	redisclient "github.com/medsched/clinic-booking/internal/redis"
	"github.com/medsched/clinic-booking/internal/scheduling"
)

// The sweeper re-runs schedule coverage reconciliation for every active
// doctor. Reconciliation is idempotent, so this safely picks up appointments
// left uncancelled by an interrupted schedule replacement.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := zap.NewProduction()
	if cfg.Env != "prod" {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync()

	logger.Info("reconcile-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.ReconcileInterval),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PgMaxConns)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()

	repo := scheduling.NewPgRepository(pgPool)
	locker := redisclient.NewRedisBookingLocker(rdb, cfg.LockTTL)
	svc := scheduling.NewService(repo, locker, logger)

	// Run once at startup
	runOnce(rootCtx, repo, svc, logger)

	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping reconcile worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, repo, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, repo *scheduling.PgRepository, svc *scheduling.Service, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	start := time.Now()

	doctorIDs, err := repo.ListDoctorIDs(runCtx)
	if err != nil {
		logger.Error("reconcile run: list doctors", zap.Error(err))
		return
	}

	for _, id := range doctorIDs {
		if err := svc.ReconcileDoctor(runCtx, id); err != nil {
			logger.Warn("reconcile run: doctor failed", zap.Stringer("doctor_id", id), zap.Error(err))
		}
	}

	logger.Info("reconcile run complete",
		zap.Int("doctors", len(doctorIDs)),
		zap.Duration("elapsed", time.Since(start)),
	)
}
