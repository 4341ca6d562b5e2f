package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
)

func TestPostgresStore_Append_QueryDay(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}

	ctx := context.Background()
	store, err := New(ctx, dsn, zap.NewNop(), 5*time.Second)
	if err != nil {
		t.Fatalf("New store: %v", err)
	}
	defer store.Close()

	// Unique target per run so earlier runs don't leak into the assertions.
	target := domain.TargetID(fmt.Sprintf("https://example.com/test-%d", time.Now().UTC().UnixNano()))
	day := time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []domain.TransitionEvent{
		{Target: target, ObservedAt: day.Add(10 * time.Hour), Status: domain.StatusUnavailable},
		{Target: target, ObservedAt: day, Status: domain.StatusAvailable},
		{Target: target, ObservedAt: day.AddDate(0, 0, 1), Status: domain.StatusError},
	}
	for _, e := range events {
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := store.QueryDay(ctx, day)
	if err != nil {
		t.Fatalf("QueryDay: %v", err)
	}
	var mine []domain.TransitionEvent
	for _, e := range got {
		if e.Target == target {
			mine = append(mine, e)
		}
	}
	if len(mine) != 2 {
		t.Fatalf("want 2 events for the day, got %d", len(mine))
	}
	if mine[0].Status != domain.StatusAvailable || mine[1].Status != domain.StatusUnavailable {
		t.Fatalf("unexpected order: %+v", mine)
	}
}

func TestNew_BadDSNFailsFast(t *testing.T) {
	_, err := New(context.Background(), "://not a dsn", zap.NewNop(), 0)
	if err == nil {
		t.Fatalf("want error for malformed dsn")
	}
}
