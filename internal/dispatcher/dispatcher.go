// Package dispatcher starts orchestration runs in the background on behalf of
// the HTTP, webhook and MCP surfaces, one run per checkout at a time.
package dispatcher

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cexll/issuebot/internal/concurrency"
	"github.com/cexll/issuebot/internal/orchestrator"
	"github.com/cexll/issuebot/internal/runstore"
)

var (
	// ErrBusy means a run already holds the checkout.
	ErrBusy = errors.New("a run is already in progress for this checkout")
	// ErrClosed means the dispatcher has been shut down.
	ErrClosed = errors.New("dispatcher is shut down")
)

// Runner executes one orchestration pass.
type Runner interface {
	RunWithID(ctx context.Context, id string) *orchestrator.Report
}

// Config controls dispatcher behaviour
type Config struct {
	// Key identifies the checkout the runner mutates.
	Key string
	// RunTimeout bounds a whole run; zero means no bound.
	RunTimeout time.Duration
}

// Dispatcher serialises runs against one checkout.
type Dispatcher struct {
	runner Runner
	store  *runstore.Store
	locks  *concurrency.Manager
	cfg    Config

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	newID func() string
}

// New creates a dispatcher
func New(runner Runner, store *runstore.Store, locks *concurrency.Manager, cfg Config) *Dispatcher {
	return &Dispatcher{
		runner: runner,
		store:  store,
		locks:  locks,
		cfg:    cfg,
		newID:  uuid.NewString,
	}
}

// Trigger starts a run in the background and returns its ID immediately.
func (d *Dispatcher) Trigger(trigger string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return "", ErrClosed
	}
	if !d.locks.TryAcquire(d.cfg.Key) {
		return "", ErrBusy
	}

	id := d.newID()
	d.store.Start(id, trigger)
	log.Printf("[Dispatcher] Run %s started (trigger: %s)", id, trigger)

	d.wg.Add(1)
	go d.execute(id)
	return id, nil
}

// RunSync runs in the foreground, still honouring the checkout lease.
func (d *Dispatcher) RunSync(ctx context.Context, trigger string) (*orchestrator.Report, error) {
	if !d.locks.TryAcquire(d.cfg.Key) {
		return nil, ErrBusy
	}
	defer d.locks.Release(d.cfg.Key)

	id := d.newID()
	d.store.Start(id, trigger)
	report := d.runner.RunWithID(ctx, id)
	d.store.Finish(id, report)
	return report, nil
}

func (d *Dispatcher) execute(id string) {
	defer d.wg.Done()
	defer d.locks.Release(d.cfg.Key)

	ctx := context.Background()
	if d.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.RunTimeout)
		defer cancel()
	}

	report := d.runner.RunWithID(ctx, id)
	d.store.Finish(id, report)
	log.Printf("[Dispatcher] Run %s finished", id)
}

// Shutdown stops accepting runs and waits for the active one, or for ctx.
func (d *Dispatcher) Shutdown(ctx context.Context) {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.wg.Wait()
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}
}
