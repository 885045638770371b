package cron

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"slotify/config"
	"slotify/models"
	"slotify/services/booking"
	"slotify/services/refund"
	"slotify/utils"
)

// Periodic task types owned by the scheduler.
const (
	TypeRefundPoll       = "refund:poll"
	TypeReservationSweep = "reservation:sweep"
)

// Sweeper discards stale pending bookings and fails abandoned payments.
type Sweeper interface {
	SweepExpiredPending(ctx context.Context, bookingCutoff, paymentCutoff time.Time) (int, error)
}

// InitWorker starts the background asynq worker and the periodic scheduler.
func InitWorker(coordinator refund.Coordinator, sweeper Sweeper) {
	logger := utils.GetLogger()
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(booking.TypeRefundCompensate, handleCompensateTask(coordinator, logger))
	mux.HandleFunc(TypeRefundPoll, handleRefundPollTask(coordinator, logger))
	mux.HandleFunc(TypeReservationSweep, handleSweepTask(sweeper, logger))

	go monitorRedisConnection(logger)
	go runWithRetry(srv, mux, logger)
	go runScheduler(redisOpts, logger)
}

func runWithRetry(srv *asynq.Server, mux *asynq.ServeMux, logger *zap.Logger) {
	logger.Info("starting background worker")
	const maxAttempts = 5

	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err := srv.Run(mux); err != nil {
			logger.Error("worker failed to start",
				zap.Int("attempt", attempts), zap.Int("maxAttempts", maxAttempts), zap.Error(err))
			if attempts == maxAttempts {
				logger.Fatal("worker could not start, giving up")
			}
			time.Sleep(time.Duration(attempts*2) * time.Second)
		} else {
			break
		}
	}
}

func runScheduler(redisOpts asynq.RedisClientOpt, logger *zap.Logger) {
	scheduler := asynq.NewScheduler(redisOpts, &asynq.SchedulerOpts{Location: time.UTC})

	if _, err := scheduler.Register("@every 1m", asynq.NewTask(TypeReservationSweep, nil)); err != nil {
		logger.Error("failed to register reservation sweep", zap.Error(err))
	}
	if _, err := scheduler.Register("@every 2m", asynq.NewTask(TypeRefundPoll, nil)); err != nil {
		logger.Error("failed to register refund poll", zap.Error(err))
	}

	if err := scheduler.Run(); err != nil {
		logger.Error("scheduler stopped", zap.Error(err))
	}
}

// handleCompensateTask refunds a payment that was captured without a booking.
func handleCompensateTask(coordinator refund.Coordinator, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p booking.CompensatePayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("invalid compensate payload", zap.Error(err))
			return err
		}

		req, err := coordinator.Compensate(ctx, p.PaymentID, p.Reason)
		if err != nil {
			logger.Error("compensating refund attempt failed",
				zap.String("paymentID", p.PaymentID), zap.Error(err))
			return err
		}
		logger.Info("compensating refund advanced",
			zap.String("paymentID", p.PaymentID),
			zap.String("refundRequestID", req.ID),
			zap.String("status", req.Status))
		return nil
	}
}

// handleRefundPollTask reconciles refunds the gateway left pending.
func handleRefundPollTask(coordinator refund.Coordinator, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		inFlight, err := coordinator.ListByStatus(ctx, models.RefundStatusProcessing, 100)
		if err != nil {
			return err
		}
		for i := range inFlight {
			if _, err := coordinator.Poll(ctx, inFlight[i].ID); err != nil {
				logger.Warn("refund poll failed",
					zap.String("refundRequestID", inFlight[i].ID), zap.Error(err))
			}
		}
		return nil
	}
}

// handleSweepTask clears expired holds' pending bookings and fails payments
// whose callbacks never arrived.
func handleSweepTask(sweeper Sweeper, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		now := time.Now().UTC()
		swept, err := sweeper.SweepExpiredPending(ctx, now.Add(-config.ReservationTTL()), now.Add(-24*time.Hour))
		if err != nil {
			logger.Error("reservation sweep failed", zap.Error(err))
			return err
		}
		if swept > 0 {
			logger.Info("reservation sweep discarded stale bookings", zap.Int("count", swept))
		}
		return nil
	}
}

// monitorRedisConnection pings Redis periodically to detect failures at runtime.
func monitorRedisConnection(logger *zap.Logger) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})

	ctx := context.Background()

	for {
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("queue redis connection lost", zap.Error(err))
		}
		time.Sleep(10 * time.Second)
	}
}
