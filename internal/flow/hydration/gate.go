// Package hydration guards the one-time copy of a fetched record into a
// form's editable fields. Once a gate is Hydrated, later fetch results
// (refetch, retry) no longer touch the form, so operator edits win.
package hydration

import "sync"

type State int

const (
	Empty State = iota
	Hydrating
	Hydrated
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Hydrating:
		return "hydrating"
	case Hydrated:
		return "hydrated"
	default:
		return "unknown"
	}
}

// Policy decides what happens when the operator edits the form before the
// first fetch resolves.
type Policy int

const (
	// ServerWins hydrates even over early edits.
	ServerWins Policy = iota
	// LocalEditsWin skips hydration once Touch has been called.
	LocalEditsWin
)

type Gate struct {
	mu      sync.Mutex
	state   State
	touched bool
	policy  Policy
}

func New(policy Policy) *Gate {
	return &Gate{policy: policy}
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// HasLoaded reports whether hydration has completed.
func (g *Gate) HasLoaded() bool {
	return g.State() == Hydrated
}

// MarkAsLoaded moves the gate to Hydrated without running anything.
func (g *Gate) MarkAsLoaded() {
	g.mu.Lock()
	g.state = Hydrated
	g.mu.Unlock()
}

// Touch records an operator edit.
func (g *Gate) Touch() {
	g.mu.Lock()
	g.touched = true
	g.mu.Unlock()
}

// Hydrate runs apply if the gate is Empty and reports whether it ran. The
// gate is Hydrated afterwards either way, so a skipped hydration (local
// edits won) is not retried on the next fetch.
func (g *Gate) Hydrate(apply func()) bool {
	g.mu.Lock()
	if g.state != Empty {
		g.mu.Unlock()
		return false
	}
	if g.policy == LocalEditsWin && g.touched {
		g.state = Hydrated
		g.mu.Unlock()
		return false
	}
	g.state = Hydrating
	g.mu.Unlock()

	defer g.MarkAsLoaded()
	apply()
	return true
}

// Reset returns the gate to Empty, as on a fresh mount.
func (g *Gate) Reset() {
	g.mu.Lock()
	g.state = Empty
	g.touched = false
	g.mu.Unlock()
}
