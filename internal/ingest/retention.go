package ingest

// retention.go runs the periodic upload log purge. It is long-running and
// context-aware; a failed purge is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig configures RunRetention.
type RetentionConfig struct {
	MaxAge        time.Duration // Logs older than this are deleted; 0 disables retention
	CheckInterval time.Duration // How often to run (default: 24h)
}

// RunRetention purges old upload logs immediately and then every
// CheckInterval until ctx is cancelled. It returns nil when retention is
// disabled or the audit store cannot purge.
func (s *Service) RunRetention(ctx context.Context, cfg RetentionConfig) error {
	if cfg.MaxAge <= 0 {
		return nil
	}
	purger, ok := s.audit.(UploadLogPurger)
	if !ok {
		slog.Warn("upload log retention not supported by store")
		return nil
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 24 * time.Hour
	}

	slog.Info("retention scheduler started", "max_age", cfg.MaxAge, "interval", cfg.CheckInterval)
	s.purgeUploadLogs(ctx, purger, cfg.MaxAge)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention scheduler stopped")
			return nil
		case <-ticker.C:
			s.purgeUploadLogs(ctx, purger, cfg.MaxAge)
		}
	}
}

func (s *Service) purgeUploadLogs(ctx context.Context, purger UploadLogPurger, maxAge time.Duration) {
	start := time.Now()
	cutoff := s.opts.Now().Add(-maxAge)

	purged, err := purger.PurgeUploadLogs(ctx, cutoff)
	if err != nil {
		slog.Error("upload log purge failed", "error", err)
		return
	}
	slog.Info("purged upload logs",
		"purged", purged,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
