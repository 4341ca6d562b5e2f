package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

type Store struct {
	mu     sync.RWMutex
	events []domain.TransitionEvent
}

func New() *Store {
	return &Store{events: make([]domain.TransitionEvent, 0, 128)}
}

func (m *Store) Append(ctx context.Context, e domain.TransitionEvent) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", repo.ErrStoreWrite, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", repo.ErrStoreWrite, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *Store) QueryDay(ctx context.Context, day time.Time) ([]domain.TransitionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", repo.ErrStoreRead, err)
	}
	start, end := repo.DayBounds(day)

	m.mu.RLock()
	out := make([]domain.TransitionEvent, 0)
	for _, e := range m.events {
		if !e.ObservedAt.Before(start) && e.ObservedAt.Before(end) {
			out = append(out, e)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].ObservedAt.Before(out[j].ObservedAt) })
	return out, nil
}

// Len reports how many events were appended in total.
func (m *Store) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

func (m *Store) Close() error { return nil }
