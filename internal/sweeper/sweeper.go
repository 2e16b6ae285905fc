// Package sweeper reclaims per-request storage directories once they outlive the retention window.
package sweeper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/imgpdf/internal/metrics"
)

// Options configures a Sweeper.
type Options struct {
	Root      string
	Retention time.Duration
	Interval  time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
	// Remove defaults to os.RemoveAll.
	Remove func(path string) error
}

// Result summarises one sweep pass.
type Result struct {
	Scanned int
	Removed []string
	Failed  []string
}

// Sweeper deletes immediate subdirectories of Root older than Retention.
type Sweeper struct {
	root      string
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	remove    func(string) error
}

func New(opts Options) *Sweeper {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Remove == nil {
		opts.Remove = os.RemoveAll
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.Retention <= 0 {
		opts.Retention = 10 * time.Minute
	}
	return &Sweeper{
		root:      opts.Root,
		retention: opts.Retention,
		interval:  opts.Interval,
		now:       opts.Now,
		remove:    opts.Remove,
	}
}

// Sweep runs one pass. Errors on individual entries are logged and the pass continues.
// Age is measured from the directory modification time.
func (s *Sweeper) Sweep() Result {
	var res Result
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("root", s.root).Msg("sweeper: list failed")
		}
		return res
	}

	now := s.now()
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		res.Scanned++
		path := filepath.Join(s.root, e.Name())
		info, err := e.Info()
		if err != nil {
			// Vanished between ReadDir and Info, usually a concurrent removal.
			log.Debug().Err(err).Str("dir", path).Msg("sweeper: stat failed")
			continue
		}
		age := now.Sub(info.ModTime())
		if age <= s.retention {
			continue
		}
		if err := s.remove(path); err != nil {
			log.Warn().Err(err).Str("dir", path).Dur("age", age).Msg("sweeper: remove failed")
			metrics.IncSwept("failed")
			res.Failed = append(res.Failed, e.Name())
			continue
		}
		log.Info().Str("dir", path).Dur("age", age).Msg("sweeper: removed expired directory")
		metrics.IncSwept("removed")
		res.Removed = append(res.Removed, e.Name())
	}
	return res
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	log.Info().
		Str("root", s.root).
		Dur("retention", s.retention).
		Dur("interval", s.interval).
		Msg("sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweepSafely()
		select {
		case <-ctx.Done():
			log.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// sweepSafely keeps the loop alive even if a pass panics.
func (s *Sweeper) sweepSafely() {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("sweeper: pass aborted")
		}
	}()
	res := s.Sweep()
	if len(res.Removed) > 0 || len(res.Failed) > 0 {
		log.Debug().Int("scanned", res.Scanned).Int("removed", len(res.Removed)).Int("failed", len(res.Failed)).Msg("sweeper: pass complete")
	}
}
