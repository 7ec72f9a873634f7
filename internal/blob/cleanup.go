package blob

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"campushub/internal/metrics"
	"campushub/internal/queue"
)

// CleanupJobType tags queue messages asking for an orphaned object to be deleted.
const CleanupJobType = "blob.cleanup"

// CleanupJob names an object whose row is gone but whose delete failed.
type CleanupJob struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
	Reason string `json:"reason,omitempty"`
}

// EnqueueCleanup schedules a retry of a failed delete.
func EnqueueCleanup(ctx context.Context, q queue.Queue, job CleanupJob) error {
	msg, err := queue.NewMessage(CleanupJobType, job)
	if err != nil {
		return err
	}
	return q.Publish(ctx, msg)
}

// Janitor retries storage deletes from the queue.
type Janitor struct {
	Store       Store
	Queue       queue.Queue
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *slog.Logger
}

// Run consumes cleanup jobs until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	msgs, err := j.Queue.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume cleanup jobs: %w", err)
	}
	for msg := range msgs {
		if msg.Type != CleanupJobType {
			j.logger().Warn("ignoring unknown job", "type", msg.Type)
			continue
		}
		j.Handle(ctx, msg)
	}
	return nil
}

// Handle runs one cleanup attempt. On failure the job is re-enqueued after
// RetryDelay without blocking the caller, until MaxAttempts is reached.
func (j *Janitor) Handle(ctx context.Context, msg queue.Message) {
	var job CleanupJob
	if err := msg.Decode(&job); err != nil {
		j.logger().Warn("dropping malformed cleanup job", "err", err)
		metrics.CleanupJobs.WithLabelValues("malformed").Inc()
		return
	}
	log := j.logger().With("bucket", job.Bucket, "path", job.Path, "attempt", msg.Attempts+1)

	err := j.Store.Delete(ctx, job.Bucket, job.Path)
	if err == nil {
		log.Info("orphaned object deleted")
		metrics.CleanupJobs.WithLabelValues("ok").Inc()
		return
	}

	msg.Attempts++
	if msg.Attempts >= j.maxAttempts() {
		log.Error("giving up on orphaned object", "err", err)
		metrics.CleanupJobs.WithLabelValues("abandoned").Inc()
		return
	}
	log.Warn("cleanup failed, retrying", "err", err, "delay", j.RetryDelay)
	metrics.CleanupJobs.WithLabelValues("retry").Inc()
	if j.RetryDelay <= 0 {
		j.republish(ctx, log, msg)
		return
	}
	// The consumer moves on while this job waits out its delay.
	go func() {
		t := time.NewTimer(j.RetryDelay)
		defer t.Stop()
		select {
		case <-t.C:
			j.republish(ctx, log, msg)
		case <-ctx.Done():
		}
	}()
}

func (j *Janitor) republish(ctx context.Context, log *slog.Logger, msg queue.Message) {
	if err := j.Queue.Publish(ctx, msg); err != nil {
		log.Error("re-enqueue cleanup job failed", "err", err)
	}
}

func (j *Janitor) maxAttempts() int {
	if j.MaxAttempts <= 0 {
		return 5
	}
	return j.MaxAttempts
}

func (j *Janitor) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
