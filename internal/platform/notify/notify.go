// Package notify carries the global toast channel: short, non-blocking
// messages raised by the HTTP layer (network failures, forbidden, rate
// limits, server errors) and by background work such as attachment uploads.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Toast is one user-visible notification.
type Toast struct {
	Level   Level
	Title   string
	Message string
}

func (t Toast) String() string {
	if t.Title == "" {
		return t.Message
	}
	return t.Title + ": " + t.Message
}

// Notifier shows toasts. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(t Toast)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(t Toast)

func (f NotifierFunc) Notify(t Toast) { f(t) }

// Discard drops every toast.
var Discard Notifier = NotifierFunc(func(Toast) {})

// Writer prints toasts on a terminal line each.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

func (w *Writer) Notify(t Toast) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "[%s] %s\n", t.Level, t)
}

// Log records toasts on a zerolog logger.
type Log struct {
	logger zerolog.Logger
}

func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(t Toast) {
	evt := l.logger.Info()
	switch t.Level {
	case LevelWarning:
		evt = l.logger.Warn()
	case LevelError:
		evt = l.logger.Error()
	}
	evt.Str("title", t.Title).Msg(t.Message)
}

// Multi fans a toast out to several notifiers.
func Multi(ns ...Notifier) Notifier {
	return NotifierFunc(func(t Toast) {
		for _, n := range ns {
			n.Notify(t)
		}
	})
}

// Recorder keeps every toast in memory.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *Recorder) Notify(t Toast) {
	r.mu.Lock()
	r.toasts = append(r.toasts, t)
	r.mu.Unlock()
}

// Toasts returns a copy of the recorded toasts.
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Toast, len(r.toasts))
	copy(out, r.toasts)
	return out
}
