package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
	"github.com/hamed0406/sitewatch/internal/repo/memory"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestObserve_DedupsIdenticalStatuses(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	tr := New(store, []domain.TargetID{"x"})

	for n := 0; n < 50; n++ {
		emitted, err := tr.Observe(ctx, "x", domain.StatusAvailable, t0.Add(time.Duration(n)*time.Second))
		require.NoError(t, err)
		require.Equal(t, n == 0, emitted, "poll %d", n)
	}
	require.Equal(t, 1, store.Len())
}

func TestObserve_EmitsEveryChangeInOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	tr := New(store, []domain.TargetID{"x"})

	seq := []domain.Status{
		domain.StatusAvailable, domain.StatusAvailable,
		domain.StatusUnavailable,
		domain.StatusError, domain.StatusError,
		domain.StatusAvailable,
		domain.StatusUnavailable, domain.StatusUnavailable,
	}
	want := []domain.Status{
		domain.StatusAvailable, domain.StatusUnavailable, domain.StatusError,
		domain.StatusAvailable, domain.StatusUnavailable,
	}
	for i, s := range seq {
		_, err := tr.Observe(ctx, "x", s, t0.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	got, err := store.QueryDay(ctx, t0)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		require.Equal(t, want[i], got[i].Status, "event %d", i)
		if i > 0 {
			require.NotEqual(t, got[i-1].Status, got[i].Status)
		}
	}
	last, ok := tr.Last("x")
	require.True(t, ok)
	require.Equal(t, domain.StatusUnavailable, last)
}

func TestObserve_TruncatesToSeconds(t *testing.T) {
	store := memory.New()
	tr := New(store, []domain.TargetID{"x"})
	_, err := tr.Observe(context.Background(), "x", domain.StatusError, t0.Add(1500*time.Millisecond))
	require.NoError(t, err)
	got, _ := store.QueryDay(context.Background(), t0)
	require.True(t, got[0].ObservedAt.Equal(t0.Add(time.Second)))
}

func TestObserve_UnknownTargetAndInvalidStatus(t *testing.T) {
	tr := New(memory.New(), []domain.TargetID{"x"})
	_, err := tr.Observe(context.Background(), "y", domain.StatusAvailable, t0)
	require.ErrorIs(t, err, ErrUnknownTarget)
	_, err = tr.Observe(context.Background(), "x", 0, t0)
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
	_, ok := tr.Last("x")
	require.False(t, ok)
}

type flakyStore struct {
	*memory.Store
	fail bool
}

func (f *flakyStore) Append(ctx context.Context, e domain.TransitionEvent) error {
	if f.fail {
		return fmt.Errorf("%w: disk full", repo.ErrStoreWrite)
	}
	return f.Store.Append(ctx, e)
}

func TestObserve_FailedAppendRetriesNextPoll(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: memory.New(), fail: true}
	tr := New(store, []domain.TargetID{"x"})

	emitted, err := tr.Observe(ctx, "x", domain.StatusUnavailable, t0)
	require.False(t, emitted)
	require.True(t, errors.Is(err, repo.ErrStoreWrite))
	_, ok := tr.Last("x")
	require.False(t, ok, "state must not advance on failed write")

	store.fail = false
	emitted, err = tr.Observe(ctx, "x", domain.StatusUnavailable, t0.Add(time.Second))
	require.NoError(t, err)
	require.True(t, emitted)
	require.Equal(t, 1, store.Len())
}

func TestObserve_ConcurrentTargetsDoNotCrossWires(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	targets := make([]domain.TargetID, 32)
	for i := range targets {
		targets[i] = domain.TargetID(fmt.Sprintf("https://t%02d.example/", i))
	}
	tr := New(store, targets)

	var wg sync.WaitGroup
	for i, tgt := range targets {
		wg.Add(1)
		go func(i int, tgt domain.TargetID) {
			defer wg.Done()
			status := domain.Status(i%3 + 1)
			for n := 0; n < 10; n++ {
				if _, err := tr.Observe(ctx, tgt, status, t0); err != nil {
					t.Errorf("Observe: %v", err)
				}
			}
		}(i, tgt)
	}
	wg.Wait()

	got, err := store.QueryDay(ctx, t0)
	require.NoError(t, err)
	require.Len(t, got, len(targets))
	seen := map[domain.TargetID]domain.Status{}
	for _, e := range got {
		_, dup := seen[e.Target]
		require.False(t, dup, "duplicate event for %s", e.Target)
		seen[e.Target] = e.Status
	}
	for i, tgt := range targets {
		require.Equal(t, domain.Status(i%3+1), seen[tgt])
	}
}
