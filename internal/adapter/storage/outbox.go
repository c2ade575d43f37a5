package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
)

func (t *pgTx) EnqueueWebhook(ctx context.Context, job domain.WebhookJob) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO webhook_jobs (id, merchant_id, url, event, payload, attempts, status, next_run_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.MerchantID, job.URL, job.Event, job.Payload, job.Attempts, string(job.Status), job.NextRunAt, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue webhook: %w", mapErr(err))
	}
	return nil
}

// ClaimWebhookJob leases the oldest due job. SKIP LOCKED lets several workers
// poll the same table; an expired PROCESSING lease is due again.
func (s *Store) ClaimWebhookJob(ctx context.Context, now time.Time, lease time.Duration) (domain.WebhookJob, error) {
	var (
		job    domain.WebhookJob
		status string
	)
	err := s.db.QueryRow(ctx, `
		UPDATE webhook_jobs
		SET status = 'PROCESSING', next_run_at = $2
		WHERE id = (
			SELECT id FROM webhook_jobs
			WHERE status IN ('PENDING', 'PROCESSING') AND next_run_at <= $1
			ORDER BY next_run_at, created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, merchant_id, url, event, payload, attempts, status, next_run_at, created_at`,
		now, now.Add(lease)).
		Scan(&job.ID, &job.MerchantID, &job.URL, &job.Event, &job.Payload, &job.Attempts, &status, &job.NextRunAt, &job.CreatedAt)
	job.Status = domain.JobStatus(status)
	return job, mapErr(err)
}

func (s *Store) CompleteWebhookJob(ctx context.Context, id uuid.UUID) error {
	return s.execJob(ctx, `UPDATE webhook_jobs SET status = 'COMPLETED' WHERE id = $1`, id)
}

func (s *Store) RetryWebhookJob(ctx context.Context, id uuid.UUID, attempts int, next time.Time) error {
	return s.execJob(ctx, `UPDATE webhook_jobs SET status = 'PENDING', attempts = $2, next_run_at = $3 WHERE id = $1`, id, attempts, next)
}

func (s *Store) FailWebhookJob(ctx context.Context, id uuid.UUID, attempts int) error {
	return s.execJob(ctx, `UPDATE webhook_jobs SET status = 'FAILED', attempts = $2 WHERE id = $1`, id, attempts)
}

func (s *Store) execJob(ctx context.Context, query string, args ...any) error {
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update webhook job: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
