package loyalty_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jugnudev/JugnuInitial-sub008/internal/adapter/sqlstore"
	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
	"github.com/jugnudev/JugnuInitial-sub008/internal/core/loyalty"
)

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	db, err := sqlstore.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	store := sqlstore.New(db)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T, store loyalty.Store, opts ...loyalty.Option) *loyalty.Service {
	t.Helper()
	base := []loyalty.Option{loyalty.WithLogger(quietLogger()), loyalty.WithBackoff(time.Millisecond)}
	return loyalty.NewService(store, append(base, opts...)...)
}

type fixture struct {
	store *sqlstore.Store
	svc   *loyalty.Service
}

func newFixture(t *testing.T, opts ...loyalty.Option) fixture {
	t.Helper()
	store := newTestStore(t)
	return fixture{store: store, svc: newService(t, store, opts...)}
}

func (f fixture) merchant(t *testing.T, name, plan string) domain.Merchant {
	t.Helper()
	m, _, err := f.svc.RegisterMerchant(context.Background(), loyalty.RegisterMerchantRequest{Name: name, Plan: plan})
	require.NoError(t, err)
	return m
}

func (f fixture) user(t *testing.T, email string) domain.User {
	t.Helper()
	u, err := f.svc.RegisterUser(context.Background(), email)
	require.NoError(t, err)
	return u
}

func (f fixture) issue(t *testing.T, merchantID uuid.UUID, email string, cents int64) loyalty.IssueReceipt {
	t.Helper()
	r, err := f.svc.Issue(context.Background(), loyalty.IssueRequest{MerchantID: merchantID, UserEmail: email, BillAmountCents: cents})
	require.NoError(t, err)
	return r
}

func (f fixture) config(t *testing.T, merchantID uuid.UUID) loyalty.MerchantConfigView {
	t.Helper()
	v, err := f.svc.GetMerchantConfig(context.Background(), merchantID, merchantID)
	require.NoError(t, err)
	return v
}

func (f fixture) balance(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	w, err := f.svc.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	return w.TotalPoints
}

// conflictStore fails the first failures units of work with ErrConflict.
type conflictStore struct {
	loyalty.Store
	mu       sync.Mutex
	failures int
	calls    int
}

func (c *conflictStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx loyalty.Tx) error) error {
	c.mu.Lock()
	c.calls++
	fail := c.calls <= c.failures
	c.mu.Unlock()
	if fail {
		return fmt.Errorf("simulated: %w", domain.ErrConflict)
	}
	return c.Store.WithinTx(ctx, fn)
}

type recorder struct {
	mu        sync.Mutex
	conflicts int
	outcomes  []string
	minted    int64
	burned    int64
}

func (r *recorder) Observe(op string, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, op+":"+domain.Code(err))
}

func (r *recorder) Points(typ domain.EntryType, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if typ == domain.EntryMint {
		r.minted += n
	} else {
		r.burned += n
	}
}

func (r *recorder) Conflict(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts++
}
