// Package tracker decides which probe results are status transitions and
// persists only those.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

var ErrUnknownTarget = errors.New("target not tracked")

type targetState struct {
	mu   sync.Mutex
	last domain.Status // zero = no observation yet
}

// Tracker holds the last-known status per configured target. The set of
// targets is fixed at construction, so Observe never mutates the map and
// distinct targets never contend.
type Tracker struct {
	store  repo.EventStore
	states map[domain.TargetID]*targetState
}

func New(store repo.EventStore, targets []domain.TargetID) *Tracker {
	states := make(map[domain.TargetID]*targetState, len(targets))
	for _, t := range targets {
		states[t] = &targetState{}
	}
	return &Tracker{store: store, states: states}
}

// Observe records status for target at the given instant. An event is
// appended only when status differs from the last stored one; the in-memory
// status advances only after the append succeeded.
func (t *Tracker) Observe(ctx context.Context, target domain.TargetID, status domain.Status, at time.Time) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("observe %s: %w", target, domain.ErrInvalidStatus)
	}
	st, ok := t.states[target]
	if !ok {
		return false, fmt.Errorf("observe %s: %w", target, ErrUnknownTarget)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.last == status {
		return false, nil
	}
	e := domain.TransitionEvent{
		Target:     target,
		ObservedAt: at.Truncate(time.Second),
		Status:     status,
	}
	if err := t.store.Append(ctx, e); err != nil {
		return false, err
	}
	st.last = status
	return true, nil
}

// Last returns the last stored status of target; ok is false before the
// first observation.
func (t *Tracker) Last(target domain.TargetID) (domain.Status, bool) {
	st, found := t.states[target]
	if !found {
		return 0, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.last, st.last != 0
}
