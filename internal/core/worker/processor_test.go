package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
)

type memOutbox struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.WebhookJob
}

func newMemOutbox(jobs ...domain.WebhookJob) *memOutbox {
	o := &memOutbox{jobs: make(map[uuid.UUID]*domain.WebhookJob)}
	for i := range jobs {
		j := jobs[i]
		o.jobs[j.ID] = &j
	}
	return o
}

func (o *memOutbox) ClaimWebhookJob(_ context.Context, now time.Time, lease time.Duration) (domain.WebhookJob, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, j := range o.jobs {
		if (j.Status == domain.JobPending || j.Status == domain.JobProcessing) && !j.NextRunAt.After(now) {
			j.Status = domain.JobProcessing
			j.NextRunAt = now.Add(lease)
			return *j, nil
		}
	}
	return domain.WebhookJob{}, domain.ErrNotFound
}

func (o *memOutbox) CompleteWebhookJob(_ context.Context, id uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobs[id].Status = domain.JobCompleted
	return nil
}

func (o *memOutbox) RetryWebhookJob(_ context.Context, id uuid.UUID, attempts int, next time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	j := o.jobs[id]
	j.Status, j.Attempts, j.NextRunAt = domain.JobPending, attempts, next
	return nil
}

func (o *memOutbox) FailWebhookJob(_ context.Context, id uuid.UUID, attempts int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	j := o.jobs[id]
	j.Status, j.Attempts = domain.JobFailed, attempts
	return nil
}

func (o *memOutbox) get(id uuid.UUID) domain.WebhookJob {
	o.mu.Lock()
	defer o.mu.Unlock()
	return *o.jobs[id]
}

type stubSender struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (s *stubSender) SendWebhook(context.Context, string, string, []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

type countingObserver struct{ results []string }

func (c *countingObserver) Webhook(r string) { c.results = append(c.results, r) }

func newJob(now time.Time, payload string) domain.WebhookJob {
	return domain.WebhookJob{
		ID:        uuid.New(),
		URL:       "https://merchant.example/hooks",
		Event:     "points.issued",
		Payload:   []byte(payload),
		Status:    domain.JobPending,
		NextRunAt: now,
		CreatedAt: now,
	}
}

func newTestWorker(o Outbox, s Sender, obs Observer, now *time.Time) *Worker {
	w := NewWebhookWorker(o, s, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)), obs)
	w.now = func() time.Time { return *now }
	return w
}

func TestProcessNextDelivers(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	job := newJob(now, `{"event":"points.issued"}`)
	outbox := newMemOutbox(job)
	sender := &stubSender{}
	obs := &countingObserver{}
	w := newTestWorker(outbox, sender, obs, &now)

	processed, err := w.ProcessNext(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Equal(t, domain.JobCompleted, outbox.get(job.ID).Status)

	processed, err = w.ProcessNext(context.Background())
	require.NoError(t, err)
	require.False(t, processed)
	require.Equal(t, 1, sender.calls)
	require.Equal(t, []string{"delivered"}, obs.results)
}

func TestProcessNextRetriesThenFails(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	job := newJob(now, `{}`)
	outbox := newMemOutbox(job)
	sender := &stubSender{err: errors.New("connection refused")}
	w := newTestWorker(outbox, sender, nil, &now)
	ctx := context.Background()

	processed, err := w.ProcessNext(ctx)
	require.NoError(t, err)
	require.True(t, processed)
	got := outbox.get(job.ID)
	require.Equal(t, domain.JobPending, got.Status)
	require.Equal(t, 1, got.Attempts)
	require.Equal(t, now.Add(10*time.Second), got.NextRunAt)

	// Not due yet.
	processed, err = w.ProcessNext(ctx)
	require.NoError(t, err)
	require.False(t, processed)

	for i := 1; i < MaxAttempts; i++ {
		now = outbox.get(job.ID).NextRunAt
		processed, err = w.ProcessNext(ctx)
		require.NoError(t, err)
		require.True(t, processed)
	}
	got = outbox.get(job.ID)
	require.Equal(t, domain.JobFailed, got.Status)
	require.Equal(t, MaxAttempts, got.Attempts)
	require.Equal(t, MaxAttempts, sender.calls)
}

func TestProcessNextDropsInvalidPayload(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	job := newJob(now, `{not json`)
	outbox := newMemOutbox(job)
	sender := &stubSender{}
	w := newTestWorker(outbox, sender, nil, &now)

	processed, err := w.ProcessNext(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Equal(t, domain.JobFailed, outbox.get(job.ID).Status)
	require.Zero(t, sender.calls)
}

func TestStartStopsOnCancel(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	job := newJob(now, `{}`)
	outbox := newMemOutbox(job)
	w := newTestWorker(outbox, &stubSender{}, nil, &now)

	ctx, cancel := context.WithCancel(context.Background())
	done := w.Start(ctx)
	require.Eventually(t, func() bool {
		return outbox.get(job.ID).Status == domain.JobCompleted
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestBackoff(t *testing.T) {
	require.Equal(t, 10*time.Second, Backoff(0))
	require.Equal(t, 50*time.Second, Backoff(4))
}
