package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/swiftdrop/delivery-gateway/internal/model"
	"github.com/swiftdrop/delivery-gateway/internal/queue"
	"github.com/swiftdrop/delivery-gateway/internal/realtime"
	"github.com/swiftdrop/delivery-gateway/pkg/logger"
	"github.com/swiftdrop/delivery-gateway/pkg/prom"
)

// RealtimePublisher pushes an envelope to a recipient's live connections.
// Zero subscribers is a success: the durable notification row is the
// fallback and the recipient sees it on the next list call.
type RealtimePublisher interface {
	PublishToUser(ctx context.Context, userID int64, env realtime.Envelope) (int64, error)
}

type PushProcessor struct {
	publisher   RealtimePublisher
	idempotency *IdempotencyService
}

func NewPushProcessor(publisher RealtimePublisher, idempotency *IdempotencyService) *PushProcessor {
	return &PushProcessor{
		publisher:   publisher,
		idempotency: idempotency,
	}
}

func (p *PushProcessor) GetType() string {
	return "push"
}

// jobKey identifies one (notification, recipient) delivery for idempotency.
func jobKey(job model.PushJob) string {
	return fmt.Sprintf("%d:%d", job.NotificationID, job.RecipientID)
}

// Process publishes one queued push to the recipient's realtime group with
// idempotency guarantees.
func (p *PushProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	// Step 1: Parse the job
	var job model.PushJob
	err := json.Unmarshal(queueMessage.Data, &job)
	if err != nil {
		logger.Error("Failed to unmarshal push job", "error", err)
		// Malformed payload will never succeed, return error to trigger DLQ move
		return err
	}

	jobID := jobKey(job)

	// Step 2: Acquire delivery lock and check idempotency
	deliveryCtx, err := p.idempotency.AcquireDeliveryLock(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrAlreadyDelivered) {
			// Already pushed - ACK to remove from queue
			logger.Info("Push already delivered, skipping", "job_id", jobID)
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			// Recipient keeps failing, give up. The durable row still exists.
			logger.Error("Max retries exceeded, dropping push", "job_id", jobID)
			return nil // ACK to move to DLQ
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			// Another consumer is delivering - NACK to retry later
			logger.Info("Lock held by another consumer, will retry", "job_id", jobID)
			return errors.New("lock held by another consumer")
		}
		// Unexpected error - NACK to retry
		logger.Error("Failed to acquire lock", "job_id", jobID, "error", err)
		return err
	}

	// Ensure lock is released on exit (if not already marked delivered/failed)
	defer func() {
		if deliveryCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, deliveryCtx)
		}
	}()

	logger.Info("Delivering push",
		"job_id", jobID,
		"recipient_id", job.RecipientID,
		"retry_count", deliveryCtx.RetryCount,
		"is_retry", deliveryCtx.IsRetry)

	// Step 3: Publish the envelope to the recipient's group
	env := realtime.NewEnvelope(job.Title, job.Message, job.Data, job.CreatedAt)

	subscribers, err := p.publisher.PublishToUser(ctx, job.RecipientID, env)
	if err != nil {
		// Step 4a: Publishing failed - mark failure and retry
		logger.Error("Failed to publish push", "job_id", jobID, "error", err)
		if markErr := p.idempotency.MarkFailure(ctx, deliveryCtx, err); markErr != nil {
			logger.Error("Failed to mark failure", "job_id", jobID, "error", markErr)
		}
		return err // NACK to retry from queue
	}

	// Step 4b: Publishing succeeded - record lag and mark delivered
	if !job.CreatedAt.IsZero() {
		prom.AddPushPublishLag(time.Since(job.CreatedAt).Seconds())
	}

	logger.Info("Push delivered",
		"job_id", jobID,
		"recipient_id", job.RecipientID,
		"subscribers", subscribers,
		"retry_count", deliveryCtx.RetryCount)

	if markErr := p.idempotency.MarkDelivered(ctx, deliveryCtx); markErr != nil {
		logger.Error("Failed to mark delivered", "job_id", jobID, "error", markErr)
		// Continue - the push was published
	}

	return nil // ACK message
}
