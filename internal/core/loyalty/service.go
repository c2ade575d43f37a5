// Package loyalty is the transaction orchestrator of the points ledger. It is
// the only code that mutates wallets, merchant configs and earnings, and it
// does so inside store units of work serialized by merchant and user keys.
package loyalty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
)

// Recorder receives engine measurements.
type Recorder interface {
	Observe(op string, err error, elapsed time.Duration)
	Points(typ domain.EntryType, n int64)
	Conflict(op string)
}

type nopRecorder struct{}

func (nopRecorder) Observe(string, error, time.Duration) {}
func (nopRecorder) Points(domain.EntryType, int64)       {}
func (nopRecorder) Conflict(string)                      {}

const (
	DefaultMaxAttempts = 3
	defaultBackoff     = 20 * time.Millisecond
)

type Service struct {
	store       Store
	locker      Locker
	policy      domain.Policy
	recorder    Recorder
	logger      *slog.Logger
	now         func() time.Time
	maxAttempts int
	backoff     time.Duration
}

type Option func(*Service)

func WithLocker(l Locker) Option { return func(s *Service) { s.locker = l } }

func WithPolicy(p domain.Policy) Option { return func(s *Service) { s.policy = p } }

func WithRecorder(r Recorder) Option { return func(s *Service) { s.recorder = r } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithMaxAttempts bounds how many times a unit of work is tried when it hits a
// concurrency conflict.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithBackoff(d time.Duration) Option { return func(s *Service) { s.backoff = d } }

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		locker:      NewKeyedMutex(),
		policy:      domain.DefaultPolicy(),
		recorder:    nopRecorder{},
		logger:      slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
		maxAttempts: DefaultMaxAttempts,
		backoff:     defaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Policy() domain.Policy { return s.policy }

// execute runs fn as one unit of work while holding keys, retrying
// domain.ErrConflict up to maxAttempts times.
func (s *Service) execute(ctx context.Context, op string, keys []string, fn func(ctx context.Context, tx Tx) error) error {
	release, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return fmt.Errorf("%s: acquire lock: %w", op, err)
	}
	defer release()

	for attempt := 1; ; attempt++ {
		err = s.store.WithinTx(ctx, fn)
		if !errors.Is(err, domain.ErrConflict) || attempt >= s.maxAttempts {
			return err
		}
		s.recorder.Conflict(op)
		s.logger.Warn("Retrying after conflict", "op", op, "attempt", attempt, "error", err)

		timer := time.NewTimer(s.backoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Service) observe(op string, start time.Time, err error) {
	s.recorder.Observe(op, err, time.Since(start))
}
