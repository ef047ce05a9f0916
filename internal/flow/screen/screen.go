// Package screen drives one assessment screen: fetch the stored record,
// hydrate the form once, walk the steps, and submit from the last step.
package screen

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/eyescreen/screening/internal/domain/assessment"
	"github.com/eyescreen/screening/internal/flow/dispatch"
	"github.com/eyescreen/screening/internal/flow/hydration"
	"github.com/eyescreen/screening/internal/flow/stepper"
	"github.com/eyescreen/screening/internal/platform/apiclient"
)

// FallbackAlert is shown when a failed save carries no usable message.
const FallbackAlert = "Failed to save assessment. Please try again."

var (
	ErrNotEditing   = errors.New("screen is not accepting input")
	ErrUnknownField = errors.New("no such field on the current step")
)

type State int

const (
	Loading State = iota
	Editing
	Saving
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Editing:
		return "editing"
	case Saving:
		return "saving"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Fetcher loads the stored record of a registration; nil means none yet.
type Fetcher[R any] interface {
	Fetch(ctx context.Context, registrationID int64) (*R, error)
}

type Option[R any] func(*Controller[R])

// WithPolicy sets how early edits compete with the first fetch.
func WithPolicy[R any](p hydration.Policy) Option[R] {
	return func(c *Controller[R]) { c.gate = hydration.New(p) }
}

// WithOnDone registers the callback that leaves the screen after a save.
func WithOnDone[R any](fn func(saved *R)) Option[R] {
	return func(c *Controller[R]) { c.onDone = fn }
}

type Controller[R any] struct {
	registrationID int64
	form           assessment.Form[R]
	fetcher        Fetcher[R]
	dispatcher     *dispatch.Dispatcher[R]
	gate           *hydration.Gate
	steps          *stepper.Stepper
	logger         zerolog.Logger
	onDone         func(saved *R)

	state     State
	alert     string
	completed bool
	saved     *R
}

func New[R any](registrationID int64, form assessment.Form[R], fetcher Fetcher[R], dispatcher *dispatch.Dispatcher[R], logger zerolog.Logger, opts ...Option[R]) *Controller[R] {
	c := &Controller[R]{
		registrationID: registrationID,
		form:           form,
		fetcher:        fetcher,
		dispatcher:     dispatcher,
		gate:           hydration.New(hydration.ServerWins),
		logger: logger.With().
			Str("assessment", string(form.Kind())).
			Int64("registration_id", registrationID).
			Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.steps = stepper.New(len(form.Steps()), stepper.WithOnComplete(func() { c.completed = true }))
	form.Load(nil)
	return c
}

func (c *Controller[R]) State() State { return c.state }

// Alert is the inline message of the last failed save.
func (c *Controller[R]) Alert() string { return c.alert }

func (c *Controller[R]) Form() assessment.Form[R] { return c.form }

func (c *Controller[R]) Stepper() *stepper.Stepper { return c.steps }

func (c *Controller[R]) Gate() *hydration.Gate { return c.gate }

func (c *Controller[R]) RegistrationID() int64 { return c.registrationID }

// Saved is the stored record once the screen is Done.
func (c *Controller[R]) Saved() *R { return c.saved }

// Step returns the fields of the current step.
func (c *Controller[R]) Step() assessment.Step {
	return c.form.Steps()[c.steps.Current()-1]
}

// Mount starts the screen afresh: the form returns to its defaults, then
// the stored record is fetched and hydrated. A failed fetch still opens the
// form with defaults; the error is returned for display.
func (c *Controller[R]) Mount(ctx context.Context) error {
	c.state = Loading
	c.steps.Reset()
	c.gate.Reset()
	c.form.Load(nil)
	c.alert = ""
	c.completed = false
	c.saved = nil

	err := c.Refetch(ctx)
	c.state = Editing
	return err
}

// Refetch loads the record again. Once the form has been hydrated the
// result no longer reaches the fields.
func (c *Controller[R]) Refetch(ctx context.Context) error {
	rec, err := c.fetcher.Fetch(ctx, c.registrationID)
	if err != nil {
		c.logger.Warn().Err(err).Msg("fetch existing record failed")
		return fmt.Errorf("load %s: %w", c.form.Kind(), err)
	}
	c.hydrate(rec)
	return nil
}

func (c *Controller[R]) hydrate(rec *R) {
	if rec == nil {
		// The form already holds its defaults.
		c.gate.MarkAsLoaded()
		return
	}
	if c.gate.Hydrate(func() { c.form.Load(rec) }) {
		c.logger.Debug().Msg("form hydrated from stored record")
	}
}

// Set writes one field of the current step.
func (c *Controller[R]) Set(key, value string) error {
	if c.state != Editing && c.state != Failed && c.state != Loading {
		return ErrNotEditing
	}
	for _, f := range c.Step().Fields {
		if f.Key == key {
			if err := f.Set(value); err != nil {
				return err
			}
			c.gate.Touch()
			return nil
		}
	}
	return fmt.Errorf("%s: %w", key, ErrUnknownField)
}

// Next advances one step; on the last step it submits the form.
func (c *Controller[R]) Next(ctx context.Context) error {
	if c.state != Editing && c.state != Failed {
		return ErrNotEditing
	}
	c.steps.Next()
	if !c.completed {
		return nil
	}
	c.completed = false
	return c.submit(ctx)
}

// Back goes one step back without contacting the server.
func (c *Controller[R]) Back() {
	if c.state != Editing && c.state != Failed {
		return
	}
	c.steps.Prev()
	c.state = Editing
	c.alert = ""
}

func (c *Controller[R]) submit(ctx context.Context) error {
	c.state = Saving
	c.alert = ""
	payload := c.form.Build(c.registrationID)

	saved, err := c.dispatcher.Save(ctx, payload)
	if err != nil {
		c.state = Failed
		c.alert = AlertMessage(err)
		c.logger.Warn().Err(err).Str("alert", c.alert).Msg("assessment save failed")
		return err
	}
	c.state = Done
	c.saved = saved
	c.logger.Info().Msg("assessment saved")
	if c.onDone != nil {
		c.onDone(saved)
	}
	return nil
}

// AlertMessage picks the inline text for a failed save: the server's
// message, else the first validation message, else FallbackAlert.
func AlertMessage(err error) string {
	apiErr, ok := apiclient.AsAPIError(err)
	if !ok {
		return FallbackAlert
	}
	if apiErr.ServerMessage() && apiErr.Message != "" {
		return apiErr.Message
	}
	if msg := apiErr.FirstValidationMessage(); msg != "" {
		return msg
	}
	return FallbackAlert
}
