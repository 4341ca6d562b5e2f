package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
)

var (
	ErrStoreWrite = errors.New("event store write failed")
	ErrStoreRead  = errors.New("event store read failed")
)

// EventStore is the append-only transition log. The poll loop is its only
// writer; report generation only reads.
type EventStore interface {
	// Append inserts one event atomically.
	Append(ctx context.Context, e domain.TransitionEvent) error
	// QueryDay returns every event whose timestamp falls on the calendar day
	// of day (in day's location), ordered by ObservedAt then insertion order.
	QueryDay(ctx context.Context, day time.Time) ([]domain.TransitionEvent, error)
	Close() error
}

// DayBounds returns [00:00:00, next 00:00:00) of the calendar day containing t
// in t's location.
func DayBounds(t time.Time) (start, end time.Time) {
	y, m, d := t.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
