package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sonicattend/internal/config"
	"sonicattend/internal/queue"
	"sonicattend/internal/store"
)

// liveTTL bounds how long live-stats hashes outlive their session.
const liveTTL = 24 * time.Hour

// Worker consumes coordinator audit events and maintains per-session
// live-stats hashes in Redis for dashboards.
func main() {
	cfg := config.Load()
	logger := newLogger(cfg.Env)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	if !redisClient.Healthy(ctx) {
		logger.Warn("redis not reachable at startup, will retry on demand", zap.String("addr", cfg.RedisAddr))
	}

	var events queue.Queue
	if cfg.QueueBackend == "redis" {
		events = queue.NewRedisQueue(redisClient.Client, "sonic:events")
	} else {
		// An in-memory queue cannot cross process boundaries; only useful
		// when the worker is embedded for local experiments.
		logger.Warn("in-memory queue selected; the worker will see no API events")
		events = queue.NewInMemory(256)
	}

	messages, err := events.Consume(ctx)
	if err != nil {
		logger.Fatal("queue consume init failed", zap.Error(err))
	}

	logger.Info("worker started, waiting for events")
	for msg := range messages {
		if err := apply(ctx, redisClient.Client, msg); err != nil {
			logger.Warn("event apply failed", zap.String("type", msg.Type), zap.Error(err))
		}
	}
	logger.Info("worker stopped")
}

func newLogger(env string) *zap.Logger {
	if env == "production" || env == "prod" {
		logger, _ := zap.NewProduction()
		return logger
	}
	logger, _ := zap.NewDevelopment()
	return logger
}

type sessionEvent struct {
	SessionID string `json:"session_id"`
	OwnerID   string `json:"owner_id"`
	SubjectID string `json:"subject_id"`
	Confirmed int    `json:"confirmed"`
	Invalid   int    `json:"invalid"`
}

func liveKey(sessionID string) string {
	return "sonic:live:" + sessionID
}

// apply folds one audit event into the session's live-stats hash.
func apply(ctx context.Context, rdb *redis.Client, msg queue.Message) error {
	var evt sessionEvent
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		return err
	}
	if evt.SessionID == "" {
		return nil
	}
	key := liveKey(evt.SessionID)

	switch msg.Type {
	case queue.EventSessionStarted:
		if err := rdb.HSet(ctx, key, "owner_id", evt.OwnerID, "state", "active").Err(); err != nil {
			return err
		}
	case queue.EventClaimAccepted:
		if err := rdb.HIncrBy(ctx, key, "claims", 1).Err(); err != nil {
			return err
		}
	case queue.EventSessionClosed:
		if err := rdb.HSet(ctx, key,
			"state", "closed",
			"confirmed", evt.Confirmed,
			"invalid", evt.Invalid,
		).Err(); err != nil {
			return err
		}
	default:
		return nil
	}
	return rdb.Expire(ctx, key, liveTTL).Err()
}
