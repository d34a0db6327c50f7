package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Scheduler re-imports the configured sources periodically using a
// time.Ticker.
type Scheduler struct {
	importer *Importer
	interval time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewScheduler creates a scheduler. The interval string is parsed with
// time.ParseDuration (e.g. "24h", "30m").
func NewScheduler(im *Importer, interval string, logger *slog.Logger) (*Scheduler, error) {
	d, err := time.ParseDuration(interval)
	if err != nil {
		return nil, fmt.Errorf("invalid import schedule %q: %w (use Go duration format: 24h, 30m, etc.)", interval, err)
	}
	if d < 1*time.Minute {
		return nil, fmt.Errorf("import interval must be at least 1m, got %s", d)
	}
	return &Scheduler{
		importer: im,
		interval: d,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins the scheduling loop. Call Stop() to terminate.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("import scheduler started", "interval", s.interval.String())

		for {
			select {
			case <-ticker.C:
				s.tick(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.importer.IsRunning() {
		s.logger.Info("skipping scheduled import, previous import still running")
		return
	}
	s.logger.Info("starting scheduled import")
	for _, r := range s.importer.RunAllConfigured(ctx) {
		if r.Error != nil {
			s.logger.Error("scheduled import failed", "importID", r.ImportID, "error", r.Error)
		} else {
			s.logger.Info("scheduled import completed", "importID", r.ImportID,
				"nodes", r.Counts.Nodes, "edges", r.Counts.Edges, "stations", r.Counts.Stations)
		}
	}
}

// Stop halts the scheduler and waits for it to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}
