package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Destination receives complete JSONL exports.
type Destination interface {
	// Name identifies the destination in logs and errors.
	Name() string
	// Write stores data, replacing the previous export.
	Write(ctx context.Context, data []byte) error
}

// Scheduler exports the store on a fixed interval and fans each export out
// to every destination.
type Scheduler struct {
	source       Source
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	done   sync.WaitGroup
}

func NewScheduler(src Source, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		source:       src,
		destinations: destinations,
		interval:     interval,
		logger:       logger.With("component", "sync"),
	}
}

// Start syncs once right away and then every interval until Stop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done.Add(1)
	go s.loop(ctx)
}

// Stop waits for an in-flight sync to finish. It is safe to call without
// Start.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.done.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.done.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		// Errors are logged by SyncOnce.
		_ = s.SyncOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SyncOnce takes one export and writes it to every destination. A failed
// destination does not stop the rest; all failures are joined in the result.
func (s *Scheduler) SyncOnce(ctx context.Context) error {
	start := time.Now()
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.source, &buf); err != nil {
		s.logger.Error("export failed", "err", err)
		return fmt.Errorf("export: %w", err)
	}
	data := buf.Bytes()

	var errs []error
	for _, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			s.logger.Error("write failed", "destination", dest.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", dest.Name(), err))
		}
	}
	s.logger.Info("sync finished",
		"summary", exportSummary(data),
		"bytes", len(data),
		"destinations", len(s.destinations),
		"failed", len(errs),
		"duration", time.Since(start),
	)
	return errors.Join(errs...)
}
