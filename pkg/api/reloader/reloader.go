// Package reloader keeps an in-memory copy of the input datasets and
// refreshes it from the configured source.
package reloader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethpandaops/datas/pkg/dataset"
	"github.com/sirupsen/logrus"
)

// ErrNotLoaded is returned by Current before the first successful load.
var ErrNotLoaded = errors.New("datasets not loaded")

// Reloader is a background service that periodically re-reads the session
// and student datasets.
type Reloader interface {
	Start(ctx context.Context) error
	Stop() error

	// Reload reads both datasets now and swaps them in on success. On
	// failure the previous datasets stay current.
	Reload(ctx context.Context) (*dataset.Datasets, error)

	// Current returns the most recently loaded datasets.
	Current() (*dataset.Datasets, error)
}

// Loader reads both datasets.
type Loader interface {
	Load(ctx context.Context, sessionsName, studentsName string) (*dataset.Datasets, error)
}

// Compile-time interface check.
var _ Reloader = (*reloader)(nil)

type reloader struct {
	log      logrus.FieldLogger
	loader   Loader
	sessions string
	students string
	interval time.Duration

	current atomic.Pointer[dataset.Datasets]
	// reloadMu serializes reloads so a slow read cannot overwrite a newer one.
	reloadMu sync.Mutex

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewReloader creates a reloader. An interval of zero disables periodic
// reloads; Reload can still be called explicitly.
func NewReloader(
	log logrus.FieldLogger,
	loader Loader,
	sessions, students string,
	interval time.Duration,
) Reloader {
	return &reloader{
		log:      log.WithField("component", "reloader"),
		loader:   loader,
		sessions: sessions,
		students: students,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start performs a synchronous first load so the API never serves without
// data, then ticks at the configured interval.
func (r *reloader) Start(ctx context.Context) error {
	if _, err := r.Reload(ctx); err != nil {
		return fmt.Errorf("initial dataset load: %w", err)
	}

	if r.interval <= 0 {
		return nil
	}

	r.log.WithField("interval", r.interval.String()).Info("Starting reloader")

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := r.Reload(ctx); err != nil {
					r.log.WithError(err).Warn("Dataset reload failed, keeping previous data")
				}
			case <-r.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop signals the reloader goroutine to stop and waits for it.
func (r *reloader) Stop() error {
	r.stopOnce.Do(func() { close(r.done) })
	r.wg.Wait()

	r.log.Info("Reloader stopped")

	return nil
}

// Reload implements Reloader.
func (r *reloader) Reload(ctx context.Context) (*dataset.Datasets, error) {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	start := time.Now()

	ds, err := r.loader.Load(ctx, r.sessions, r.students)
	if err != nil {
		return nil, err
	}

	r.current.Store(ds)

	r.log.WithFields(logrus.Fields{
		"sessions": len(ds.Sessions.Records),
		"students": len(ds.Students.Records),
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("Datasets reloaded")

	return ds, nil
}

// Current implements Reloader.
func (r *reloader) Current() (*dataset.Datasets, error) {
	ds := r.current.Load()
	if ds == nil {
		return nil, ErrNotLoaded
	}

	return ds, nil
}
