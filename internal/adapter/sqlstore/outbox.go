package sqlstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
)

// ClaimWebhookJob leases the oldest due job for lease. Jobs whose lease ran
// out while PROCESSING are due again. It returns domain.ErrNotFound when the
// outbox is idle.
func (s *Store) ClaimWebhookJob(ctx context.Context, now time.Time, lease time.Duration) (domain.WebhookJob, error) {
	var job domain.WebhookJob
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec webhookJobRecord
		err := tx.Where("status IN ? AND next_run_at <= ?", []string{string(domain.JobPending), string(domain.JobProcessing)}, now).
			Order("next_run_at, created_at").
			First(&rec).Error
		if err != nil {
			return mapErr(err)
		}
		leaseUntil := now.Add(lease)
		err = tx.Model(&webhookJobRecord{}).
			Where("id = ?", rec.ID).
			Updates(map[string]any{"status": string(domain.JobProcessing), "next_run_at": leaseUntil}).Error
		if err != nil {
			return err
		}
		rec.Status, rec.NextRunAt = string(domain.JobProcessing), leaseUntil
		job = rec.toDomain()
		return nil
	})
	return job, err
}

func (s *Store) CompleteWebhookJob(ctx context.Context, id uuid.UUID) error {
	return s.setJob(ctx, id, map[string]any{"status": string(domain.JobCompleted)})
}

// RetryWebhookJob records a failed attempt and reschedules the job.
func (s *Store) RetryWebhookJob(ctx context.Context, id uuid.UUID, attempts int, next time.Time) error {
	return s.setJob(ctx, id, map[string]any{"status": string(domain.JobPending), "attempts": attempts, "next_run_at": next})
}

func (s *Store) FailWebhookJob(ctx context.Context, id uuid.UUID, attempts int) error {
	return s.setJob(ctx, id, map[string]any{"status": string(domain.JobFailed), "attempts": attempts})
}

func (s *Store) setJob(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&webhookJobRecord{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
