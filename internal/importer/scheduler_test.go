package importer

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/matijazezelj/evroute/internal/config"
)

func TestNewScheduler_ValidDuration(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		interval string
		wantErr  bool
	}{
		{"24h", false},
		{"30m", false},
		{"1h30m", false},
		{"2m", false},
		{"30s", true}, // below 1m minimum
		{"invalid", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.interval, func(t *testing.T) {
			_, err := NewScheduler(nil, tt.interval, logger)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewScheduler(%q) error = %v, wantErr %v", tt.interval, err, tt.wantErr)
			}
		})
	}
}

func TestScheduler_TickAndStop(t *testing.T) {
	cfg := testConfig()
	cfg.Sources.Networks = []config.NetworkSource{{Path: writeFile(t, "net.yaml", networkYAML)}}
	im, store := newTestImporter(t, cfg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := NewScheduler(im, "1h", logger)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	s.tick(ctx)

	if n, _ := store.NodeCount(ctx); n != 3 {
		t.Errorf("nodes after tick = %d, want 3", n)
	}

	s.Start(ctx)
	s.Stop()
}
