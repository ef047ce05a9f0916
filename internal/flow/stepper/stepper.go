// Package stepper is the cursor of a multi-step form: an integer in
// [1, total] that moves forward, backward or jumps, and fires a completion
// callback when asked to advance past the last step.
package stepper

// Stepper is not safe for concurrent use; a form is driven by one goroutine.
type Stepper struct {
	initial    int
	current    int
	total      int
	onComplete func()
}

type Option func(*Stepper)

// WithInitialStep sets the step New starts on and Reset returns to.
func WithInitialStep(n int) Option {
	return func(s *Stepper) { s.initial = n }
}

// WithOnComplete sets the callback Next invokes on the last step.
func WithOnComplete(fn func()) Option {
	return func(s *Stepper) { s.onComplete = fn }
}

// New returns a stepper over total steps. total below 1 is treated as 1 and
// an out-of-range initial step is clamped.
func New(total int, opts ...Option) *Stepper {
	if total < 1 {
		total = 1
	}
	s := &Stepper{initial: 1, total: total}
	for _, opt := range opts {
		opt(s)
	}
	s.initial = clamp(s.initial, 1, total)
	s.current = s.initial
	return s
}

// OnComplete replaces the completion callback.
func (s *Stepper) OnComplete(fn func()) { s.onComplete = fn }

func (s *Stepper) Current() int { return s.current }

func (s *Stepper) Total() int { return s.total }

func (s *Stepper) IsFirst() bool { return s.current == 1 }

func (s *Stepper) IsLast() bool { return s.current == s.total }

// Progress is current/total, for progress bars.
func (s *Stepper) Progress() float64 {
	return float64(s.current) / float64(s.total)
}

// GoToStep moves to n when 1 <= n <= total and reports whether it moved.
// Out-of-range values are ignored.
func (s *Stepper) GoToStep(n int) bool {
	if n < 1 || n > s.total {
		return false
	}
	s.current = n
	return true
}

// Next advances one step, or on the last step invokes the completion
// callback and stays put.
func (s *Stepper) Next() {
	if s.current < s.total {
		s.current++
		return
	}
	if s.onComplete != nil {
		s.onComplete()
	}
}

// Prev goes back one step; no-op on the first step.
func (s *Stepper) Prev() {
	if s.current > 1 {
		s.current--
	}
}

// Reset restores the initial step.
func (s *Stepper) Reset() {
	s.current = s.initial
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
