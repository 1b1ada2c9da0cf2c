package media

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultSweepInterval = 1 * time.Hour
	DefaultSweepMaxAge   = 1 * time.Hour
)

// Sweeper removes transient files left behind by crashed or killed ingests.
type Sweeper struct {
	dir      string
	interval time.Duration
	maxAge   time.Duration
}

func NewSweeper(dir string) *Sweeper {
	return &Sweeper{
		dir:      dir,
		interval: DefaultSweepInterval,
		maxAge:   DefaultSweepMaxAge,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	slog.Info("starting transient sweeper", "component", "media_sweeper", "interval", s.interval, "dir", s.dir)

	s.Sweep(time.Now())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping transient sweeper", "component", "media_sweeper")
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

// Sweep deletes transient upload files older than maxAge and returns how
// many were removed. Files not named by Intake are left alone.
func (s *Sweeper) Sweep(now time.Time) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		slog.Error("error listing transient directory", "component", "media_sweeper", "error", err)
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasPrefix(entry.Name(), transientPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < s.maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			slog.Warn("error removing stale transient file", "component", "media_sweeper", "error", err, "file", entry.Name())
			continue
		}
		removed++
	}

	if removed > 0 {
		slog.Info("removed stale transient files", "component", "media_sweeper", "count", removed)
	}
	return removed
}
