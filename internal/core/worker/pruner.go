package worker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vietddude/docketbench/internal/infra/storage"
)

// Pruner deletes old downloads and archived runs based on retention policy.
type Pruner struct {
	retention   time.Duration
	downloadDir string
	outcomes    storage.OutcomeRepository
	log         *slog.Logger
}

// NewPruner creates a new Pruner worker. outcomes may be nil when no
// archive is configured.
func NewPruner(retention time.Duration, downloadDir string, outcomes storage.OutcomeRepository) *Pruner {
	return &Pruner{
		retention:   retention,
		downloadDir: downloadDir,
		outcomes:    outcomes,
		log:         slog.Default().With("component", "pruner"),
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	cutoff := time.Now().Add(-p.retention)

	if p.outcomes != nil {
		if n, err := p.outcomes.DeleteRunsOlderThan(ctx, cutoff); err != nil {
			p.log.Error("failed to prune archived runs", "error", err)
		} else if n > 0 {
			p.log.Info("pruned archived outcomes", "rows", n)
		}
	}

	if p.downloadDir != "" {
		p.pruneDownloads(cutoff)
	}
}

// pruneDownloads removes downloaded documents older than the cutoff and
// any per-deal directories left empty afterwards.
func (p *Pruner) pruneDownloads(cutoff time.Time) {
	var removed int
	err := filepath.WalkDir(p.downloadDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		p.log.Error("failed to prune downloads", "error", err)
		return
	}

	entries, err := os.ReadDir(p.downloadDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			// Remove fails on non-empty dirs, which is what we want.
			_ = os.Remove(filepath.Join(p.downloadDir, e.Name()))
		}
	}

	if removed > 0 {
		p.log.Info("pruned old downloads", "files", removed)
	}
}
