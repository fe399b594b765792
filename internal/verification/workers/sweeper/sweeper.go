// Package sweeper removes upload files left behind when the process dies
// between intake and pipeline cleanup.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"kycproxy/internal/verification/metrics"
)

// Result summarizes a sweep.
type Result struct {
	Scanned int
	Removed int
}

// Sweeper periodically deletes stale files from the upload directory.
type Sweeper struct {
	dir      string
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures Sweeper.
type Option func(*Sweeper)

// WithInterval overrides the sweep interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithLogger overrides the logger used for sweep errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics counts removed files.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

// New constructs a Sweeper for dir. Files older than ttl are removed.
func New(dir string, ttl time.Duration, opts ...Option) (*Sweeper, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload directory is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("orphan ttl must be positive")
	}
	s := &Sweeper{
		dir:      dir,
		ttl:      ttl,
		interval: 5 * time.Minute,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Start sweeps periodically until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "upload sweep failed", "error", err)
			}
			if res.Removed > 0 {
				s.logger.InfoContext(ctx, "removed orphan uploads", "count", res.Removed)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce removes intake files whose modification time is older than the
// ttl. Per-file failures are aggregated and do not stop the sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	var res Result

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return res, nil
		}
		return res, fmt.Errorf("read upload directory: %w", err)
	}

	cutoff := s.now().Add(-s.ttl)
	var errs []error
	for _, entry := range entries {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		// Only files named by the upload intake are candidates.
		if !entry.Type().IsRegular() || uuid.Validate(entry.Name()) != nil {
			continue
		}
		res.Scanned++

		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, fmt.Errorf("stat %s: %w", entry.Name(), err))
			}
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, fmt.Errorf("remove %s: %w", entry.Name(), err))
			}
			continue
		}
		res.Removed++
	}

	s.metrics.AddSwept(res.Removed)
	return res, errors.Join(errs...)
}
