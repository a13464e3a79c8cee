package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/swiftdrop/delivery-gateway/pkg/logger"
	"github.com/swiftdrop/delivery-gateway/pkg/redis"
)

var (
	ErrAlreadyDelivered   = errors.New("push already delivered")
	ErrLockAcquireFailed  = errors.New("failed to acquire delivery lock")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

type IdempotencyConfig struct {
	LockTTL time.Duration

	DeliveredTTL time.Duration

	MaxRetries int

	RetryKeyPrefix string

	LockKeyPrefix string

	DeliveredKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            30 * time.Second,
		DeliveredTTL:       24 * time.Hour,
		MaxRetries:         3,
		RetryKeyPrefix:     "push:retry:",
		LockKeyPrefix:      "push:lock:",
		DeliveredKeyPrefix: "push:delivered:",
	}
}

// IdempotencyService guards the at-least-once push queue: each
// (notification, recipient) pair is delivered to the realtime channel at
// most once per delivered-marker TTL, even when the stream redelivers.
type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(redisAdapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		redis:  redisAdapter,
		config: config,
	}
}

type DeliveryContext struct {
	JobID        string
	RetryCount   int
	IsRetry      bool
	lockAcquired bool
	service      *IdempotencyService
}

func (s *IdempotencyService) AcquireDeliveryLock(ctx context.Context, jobID string) (*DeliveryContext, error) {
	// Step 1: Check the long-term delivered marker
	deliveredKey := s.config.DeliveredKeyPrefix + jobID
	exists, err := s.redis.Exist(deliveredKey)
	if err != nil {
		logger.Warn("Failed to check delivered marker", "job_id", jobID, "error", err)
		// Continue even if check fails - a duplicate push beats a stalled queue
	} else if exists > 0 {
		logger.Info("Push already delivered, skipping", "job_id", jobID)
		return nil, ErrAlreadyDelivered
	}

	// Step 2: Get current retry count
	retryKey := s.config.RetryKeyPrefix + jobID
	retryCountBytes, err := s.redis.Get(retryKey)
	retryCount := 0
	if err == nil && len(retryCountBytes) > 0 {
		fmt.Sscanf(string(retryCountBytes), "%d", &retryCount)
	}

	// Step 3: Check if max retries exceeded
	if retryCount >= s.config.MaxRetries {
		logger.Error("Max retries exceeded for push", "job_id", jobID, "retry_count", retryCount)
		return nil, fmt.Errorf("%w: job_id=%s, retries=%d", ErrMaxRetriesExceeded, jobID, retryCount)
	}

	// Step 4: Acquire short-term lock so only one consumer delivers this push
	lockKey := s.config.LockKeyPrefix + jobID
	lockValue := []byte(fmt.Sprintf("%d", time.Now().UnixNano()))

	acquired, err := s.redis.SetNX(lockKey, lockValue, s.config.LockTTL)
	if err != nil {
		logger.Error("Failed to acquire lock", "job_id", jobID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}

	if !acquired {
		logger.Info("Lock already held by another consumer", "job_id", jobID)
		return nil, ErrLockAcquireFailed
	}

	logger.Info("Delivery lock acquired",
		"job_id", jobID,
		"retry_count", retryCount,
		"lock_ttl", s.config.LockTTL)

	return &DeliveryContext{
		JobID:        jobID,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		lockAcquired: true,
		service:      s,
	}, nil
}

func (s *IdempotencyService) MarkDelivered(ctx context.Context, dc *DeliveryContext) error {
	jobID := dc.JobID

	// Step 1: Set the long-term delivered marker (24 hours)
	deliveredKey := s.config.DeliveredKeyPrefix + jobID
	err := s.redis.Set(deliveredKey, []byte("1"), s.config.DeliveredTTL)
	if err != nil {
		logger.Error("Failed to mark push as delivered", "job_id", jobID, "error", err)
		return fmt.Errorf("failed to mark as delivered: %w", err)
	}

	// Step 2: Clean up lock and retry counter
	s.cleanup(ctx, dc)

	logger.Info("Push marked as delivered",
		"job_id", jobID,
		"retry_count", dc.RetryCount)

	return nil
}

func (s *IdempotencyService) MarkFailure(ctx context.Context, dc *DeliveryContext, reason error) error {
	jobID := dc.JobID

	// Step 1: Increment retry counter
	retryKey := s.config.RetryKeyPrefix + jobID
	newRetryCount := dc.RetryCount + 1
	retryValue := []byte(fmt.Sprintf("%d", newRetryCount))

	// Keep retry counter for longer to track across retries
	err := s.redis.Set(retryKey, retryValue, s.config.DeliveredTTL)
	if err != nil {
		logger.Error("Failed to increment retry counter", "job_id", jobID, "error", err)
	}

	// Step 2: Remove lock to allow retry
	lockKey := s.config.LockKeyPrefix + jobID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("Failed to remove lock", "job_id", jobID, "error", err)
	}

	logger.Warn("Push delivery failed, will retry",
		"job_id", jobID,
		"retry_count", newRetryCount,
		"max_retries", s.config.MaxRetries,
		"reason", reason)

	return nil
}

func (s *IdempotencyService) ReleaseLock(ctx context.Context, dc *DeliveryContext) error {
	if dc == nil || !dc.lockAcquired {
		return nil
	}

	lockKey := s.config.LockKeyPrefix + dc.JobID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("Failed to release lock", "job_id", dc.JobID, "error", err)
		return err
	}

	dc.lockAcquired = false
	logger.Debug("Delivery lock released", "job_id", dc.JobID)
	return nil
}

func (s *IdempotencyService) cleanup(ctx context.Context, dc *DeliveryContext) {
	jobID := dc.JobID

	// Remove lock
	lockKey := s.config.LockKeyPrefix + jobID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("Failed to cleanup lock", "job_id", jobID, "error", err)
	}

	// Remove retry counter (no longer needed)
	retryKey := s.config.RetryKeyPrefix + jobID
	if err := s.redis.Del(retryKey); err != nil {
		logger.Warn("Failed to cleanup retry counter", "job_id", jobID, "error", err)
	}

	dc.lockAcquired = false
}

func (s *IdempotencyService) GetRetryCount(ctx context.Context, jobID string) (int, error) {
	retryKey := s.config.RetryKeyPrefix + jobID
	retryCountBytes, err := s.redis.Get(retryKey)
	if err != nil {
		if err == redis.NilError {
			return 0, nil
		}
		return 0, err
	}

	retryCount := 0
	fmt.Sscanf(string(retryCountBytes), "%d", &retryCount)
	return retryCount, nil
}

func (s *IdempotencyService) IsDelivered(ctx context.Context, jobID string) (bool, error) {
	deliveredKey := s.config.DeliveredKeyPrefix + jobID
	exists, err := s.redis.Exist(deliveredKey)
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
