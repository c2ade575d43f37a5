package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
)

const (
	// MaxAttempts is how many deliveries a job gets before it is marked FAILED.
	MaxAttempts = 5
	lease       = 30 * time.Second
)

// Outbox is the durable webhook queue. ClaimWebhookJob returns
// domain.ErrNotFound when nothing is due.
type Outbox interface {
	ClaimWebhookJob(ctx context.Context, now time.Time, lease time.Duration) (domain.WebhookJob, error)
	CompleteWebhookJob(ctx context.Context, id uuid.UUID) error
	RetryWebhookJob(ctx context.Context, id uuid.UUID, attempts int, next time.Time) error
	FailWebhookJob(ctx context.Context, id uuid.UUID, attempts int) error
}

type Sender interface {
	SendWebhook(ctx context.Context, url, event string, payload []byte) error
}

// Observer counts delivery results: delivered, retry or failed.
type Observer interface {
	Webhook(result string)
}

type nopObserver struct{}

func (nopObserver) Webhook(string) {}

type Worker struct {
	outbox   Outbox
	sender   Sender
	interval time.Duration
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

func NewWebhookWorker(outbox Outbox, sender Sender, interval time.Duration, logger *slog.Logger, observer Observer) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Worker{
		outbox:   outbox,
		sender:   sender,
		interval: interval,
		logger:   logger,
		observer: observer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start runs the worker in the background until ctx is cancelled. The
// returned channel closes once it has stopped.
func (w *Worker) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	return done
}

// Run drains due jobs every interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("Webhook worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.drain(ctx)
		select {
		case <-ctx.Done():
			w.logger.Info("Webhook worker stopped")
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		processed, err := w.ProcessNext(ctx)
		if err != nil {
			w.logger.Error("Worker: Failed to process job", "error", err)
			return
		}
		if !processed {
			return
		}
	}
}

// ProcessNext delivers at most one due job. It reports whether a job was
// claimed.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.outbox.ClaimWebhookJob(ctx, w.now(), lease)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	log := w.logger.With("job_id", job.ID, "event", job.Event, "merchant_id", job.MerchantID)
	if !json.Valid(job.Payload) {
		log.Error("Worker: Invalid payload, dropping job")
		w.observer.Webhook("failed")
		return true, w.outbox.FailWebhookJob(ctx, job.ID, job.Attempts)
	}

	log.Info("Worker: Processing job", "url", job.URL, "attempt", job.Attempts+1)
	sendErr := w.sender.SendWebhook(ctx, job.URL, job.Event, job.Payload)
	if sendErr == nil {
		log.Info("Worker: Webhook delivered")
		w.observer.Webhook("delivered")
		return true, w.outbox.CompleteWebhookJob(ctx, job.ID)
	}

	attempts := job.Attempts + 1
	if attempts >= MaxAttempts {
		log.Error("Worker: Job marked as FAILED (max attempts reached)", "error", sendErr, "attempts", attempts)
		w.observer.Webhook("failed")
		return true, w.outbox.FailWebhookJob(ctx, job.ID, attempts)
	}
	next := w.now().Add(Backoff(job.Attempts))
	log.Warn("Worker: Webhook failed, scheduled retry", "error", sendErr, "attempts", attempts, "next_run", next)
	w.observer.Webhook("retry")
	return true, w.outbox.RetryWebhookJob(ctx, job.ID, attempts, next)
}

// Backoff is the wait after a failed delivery that had made attempts prior
// tries: 10s, 20s, 30s and so on.
func Backoff(attempts int) time.Duration {
	return time.Duration(attempts*10+10) * time.Second
}
