// Package dispatch sends an assembled assessment payload and refuses a
// second submission while the first is still in flight.
package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var ErrSaveInProgress = errors.New("a save is already in progress")

// Saver upserts one record.
type Saver[R any] interface {
	Save(ctx context.Context, rec R) (*R, error)
}

// SaverFunc adapts a function to Saver.
type SaverFunc[R any] func(ctx context.Context, rec R) (*R, error)

func (f SaverFunc[R]) Save(ctx context.Context, rec R) (*R, error) { return f(ctx, rec) }

// Hook runs after a successful save with the stored record.
type Hook[R any] func(ctx context.Context, saved *R)

type Dispatcher[R any] struct {
	saver  Saver[R]
	logger zerolog.Logger

	mu    sync.Mutex
	busy  bool
	hooks []Hook[R]
}

func New[R any](saver Saver[R], logger zerolog.Logger) *Dispatcher[R] {
	return &Dispatcher[R]{saver: saver, logger: logger}
}

// AfterSave registers h; hooks run in registration order.
func (d *Dispatcher[R]) AfterSave(h Hook[R]) {
	d.mu.Lock()
	d.hooks = append(d.hooks, h)
	d.mu.Unlock()
}

// Busy reports whether a save is in flight.
func (d *Dispatcher[R]) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.busy
}

func (d *Dispatcher[R]) Save(ctx context.Context, rec R) (*R, error) {
	d.mu.Lock()
	if d.busy {
		d.mu.Unlock()
		return nil, ErrSaveInProgress
	}
	d.busy = true
	d.mu.Unlock()

	saved, err := d.saver.Save(ctx, rec)

	d.mu.Lock()
	d.busy = false
	hooks := append([]Hook[R]{}, d.hooks...)
	d.mu.Unlock()

	if err != nil {
		d.logger.Warn().Err(err).Msg("save failed")
		return nil, err
	}
	if saved == nil {
		saved = &rec
	}
	for _, h := range hooks {
		h(ctx, saved)
	}
	return saved, nil
}
