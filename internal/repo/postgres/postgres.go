package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

var _ repo.EventStore = (*Store)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS events (
  id          BIGSERIAL PRIMARY KEY,
  target      TEXT NOT NULL,
  observed_at TIMESTAMPTZ NOT NULL,
  status      TEXT NOT NULL CHECK (status IN ('available', 'unavailable', 'error'))
);

CREATE INDEX IF NOT EXISTS idx_events_observed_at ON events (observed_at, id);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New connects, retrying with exponential backoff for up to maxWait, and
// ensures the schema exists. A zero maxWait tries once.
func New(ctx context.Context, dsn string, log *zap.Logger, maxWait time.Duration) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	var pool *pgxpool.Pool
	connect := func() error {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("pgxpool.New: %w", err))
		}
		ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := p.Ping(ctxPing); err != nil {
			p.Close()
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("ping: %w", err)
		}
		pool = p
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxWait
	var policy backoff.BackOff = b
	if maxWait <= 0 {
		policy = &backoff.StopBackOff{}
	}
	notify := func(err error, next time.Duration) {
		log.Warn("postgres_connect_retry", zap.Error(err), zap.Duration("next", next))
	}
	if err := backoff.RetryNotify(connect, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, err
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) Append(ctx context.Context, e domain.TransitionEvent) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", repo.ErrStoreWrite, err)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO events (target, observed_at, status)
		 VALUES ($1, $2, $3)`,
		string(e.Target), e.ObservedAt, e.Status.String(),
	)
	if err != nil {
		return fmt.Errorf("%w: insert event: %v", repo.ErrStoreWrite, err)
	}
	return nil
}

func (s *Store) QueryDay(ctx context.Context, day time.Time) ([]domain.TransitionEvent, error) {
	start, end := repo.DayBounds(day)
	rows, err := s.pool.Query(ctx,
		`SELECT target, observed_at, status
		   FROM events
		  WHERE observed_at >= $1 AND observed_at < $2
		  ORDER BY observed_at, id`, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: query day: %v", repo.ErrStoreRead, err)
	}
	defer rows.Close()

	out := make([]domain.TransitionEvent, 0)
	for rows.Next() {
		var (
			target     string
			observedAt time.Time
			rawStatus  string
		)
		if err := rows.Scan(&target, &observedAt, &rawStatus); err != nil {
			return nil, fmt.Errorf("%w: scan event: %v", repo.ErrStoreRead, err)
		}
		st, err := domain.ParseStatus(rawStatus)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", repo.ErrStoreRead, err)
		}
		out = append(out, domain.TransitionEvent{
			Target:     domain.TargetID(target),
			ObservedAt: observedAt.In(day.Location()),
			Status:     st,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", repo.ErrStoreRead, err)
	}
	return out, nil
}
