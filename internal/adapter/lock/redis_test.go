package lock

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLocker(rdb, time.Second, nil), mr
}

func TestLockAndRelease(t *testing.T) {
	l, mr := newLocker(t)

	release, err := l.Lock(context.Background(), "user:b", "merchant:a", "user:b")
	require.NoError(t, err)
	require.True(t, mr.Exists("lock:{merchant:a}"))
	require.True(t, mr.Exists("lock:{user:b}"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "user:b")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	require.False(t, mr.Exists("lock:{merchant:a}"))
	require.False(t, mr.Exists("lock:{user:b}"))

	again, err := l.Lock(context.Background(), "user:b")
	require.NoError(t, err)
	again()
}

func TestFailedLockReleasesEarlierKeys(t *testing.T) {
	l, mr := newLocker(t)
	require.NoError(t, mr.Set("lock:{user:z}", "someone-else"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := l.Lock(ctx, "merchant:a", "user:z")
	require.Error(t, err)
	require.False(t, mr.Exists("lock:{merchant:a}"))
	require.True(t, mr.Exists("lock:{user:z}"))
}

func TestExpiredLeaseIsNotReleasedByOldOwner(t *testing.T) {
	l, mr := newLocker(t)

	stale, err := l.Lock(context.Background(), "merchant:a")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := l.Lock(context.Background(), "merchant:a")
	require.NoError(t, err)
	owner, err := mr.Get("lock:{merchant:a}")
	require.NoError(t, err)

	stale()
	got, err := mr.Get("lock:{merchant:a}")
	require.NoError(t, err)
	require.Equal(t, owner, got)

	fresh()
	require.False(t, mr.Exists("lock:{merchant:a}"))
}

func TestLockReportsRedisErrors(t *testing.T) {
	l, mr := newLocker(t)
	mr.Close()

	_, err := l.Lock(context.Background(), "merchant:a")
	require.Error(t, err)
}

func TestHeldLockIsExtended(t *testing.T) {
	l, mr := newLocker(t)

	release, err := l.Lock(context.Background(), "merchant:slow")
	require.NoError(t, err)
	defer release()

	mr.FastForward(800 * time.Millisecond)
	require.LessOrEqual(t, mr.TTL("lock:{merchant:slow}"), 200*time.Millisecond)
	require.Eventually(t, func() bool {
		return mr.TTL("lock:{merchant:slow}") > 500*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLostLeaseIsLogged(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	var logs syncBuffer
	l := NewRedisLocker(rdb, 300*time.Millisecond, slog.New(slog.NewTextHandler(&logs, nil)))

	release, err := l.Lock(context.Background(), "user:late")
	require.NoError(t, err)
	defer release()
	require.NoError(t, mr.Set("lock:{user:late}", "other-owner"))

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "Lock lease lost before release")
	}, 2*time.Second, 10*time.Millisecond)

	release()
	got, err := mr.Get("lock:{user:late}")
	require.NoError(t, err)
	require.Equal(t, "other-owner", got)
}
