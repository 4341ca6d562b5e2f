package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/config"
	"github.com/hamed0406/sitewatch/internal/repo"
	"github.com/hamed0406/sitewatch/internal/repo/filelog"
	"github.com/hamed0406/sitewatch/internal/repo/memory"
	"github.com/hamed0406/sitewatch/internal/repo/postgres"
)

// openStore opens the configured event store. Any failure here is fatal:
// the process must not poll without a place to record transitions.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repo.EventStore, error) {
	switch cfg.Store.Kind {
	case config.StoreMemory:
		log.Warn("store_memory", zap.String("note", "transitions are lost on exit"))
		return memory.New(), nil
	case config.StoreFile:
		s, err := filelog.Open(cfg.Store.Path, log)
		if err != nil {
			return nil, err
		}
		log.Info("store_opened", zap.String("kind", "file"), zap.String("path", s.Path()))
		return s, nil
	case config.StorePostgres:
		s, err := postgres.New(ctx, cfg.Store.DatabaseURL, log, cfg.Store.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		log.Info("store_opened", zap.String("kind", "postgres"))
		return s, nil
	}
	return nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
}
