// Package filelog is a durable EventStore backed by an append-only
// JSON-lines file, one transition per line.
package filelog

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

// maxLineBytes bounds one record, newline included. Append refuses longer
// records and the reader skips longer lines.
const maxLineBytes = 64 * 1024

type Store struct {
	path string
	log  *zap.Logger

	mu sync.Mutex
	f  *os.File
}

// Open creates the file if needed and keeps it open for appending.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create event log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &Store{path: path, log: log, f: f}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Append(ctx context.Context, e domain.TransitionEvent) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", repo.ErrStoreWrite, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", repo.ErrStoreWrite, err)
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", repo.ErrStoreWrite, err)
	}
	line = append(line, '\n')
	if len(line) > maxLineBytes {
		return fmt.Errorf("%w: record of %d bytes exceeds %d", repo.ErrStoreWrite, len(line), maxLineBytes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return fmt.Errorf("%w: store closed", repo.ErrStoreWrite)
	}
	// one write per record keeps lines whole under O_APPEND
	if _, err := s.f.Write(line); err != nil {
		return fmt.Errorf("%w: %v", repo.ErrStoreWrite, err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", repo.ErrStoreWrite, err)
	}
	return nil
}

func (s *Store) QueryDay(ctx context.Context, day time.Time) ([]domain.TransitionEvent, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.TransitionEvent{}, nil
		}
		return nil, fmt.Errorf("%w: %v", repo.ErrStoreRead, err)
	}
	defer f.Close()

	out, err := s.scanDay(ctx, f, day)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repo.ErrStoreRead, err)
	}
	return out, nil
}

func (s *Store) scanDay(ctx context.Context, r io.Reader, day time.Time) ([]domain.TransitionEvent, error) {
	start, end := repo.DayBounds(day)
	br := bufio.NewReaderSize(r, maxLineBytes)

	out := make([]domain.TransitionEvent, 0)
	lineNo := 0
	for {
		raw, err := br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			lineNo++
			for errors.Is(err, bufio.ErrBufferFull) {
				_, err = br.ReadSlice('\n')
			}
			s.log.Warn("event_log_skip_line",
				zap.String("path", s.path),
				zap.Int("line", lineNo),
				zap.String("reason", "too_long"),
			)
			raw = nil
		} else if len(raw) > 0 {
			lineNo++
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if lineNo%1024 == 0 {
			if cerr := ctx.Err(); cerr != nil {
				return nil, cerr
			}
		}

		if raw = bytes.TrimSpace(raw); len(raw) > 0 {
			var e domain.TransitionEvent
			if jerr := json.Unmarshal(raw, &e); jerr != nil || e.Validate() != nil {
				s.log.Warn("event_log_skip_line", zap.String("path", s.path), zap.Int("line", lineNo))
			} else if !e.ObservedAt.Before(start) && e.ObservedAt.Before(end) {
				out = append(out, e)
			}
		}
		if err != nil { // io.EOF
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ObservedAt.Before(out[j].ObservedAt) })
	return out, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
