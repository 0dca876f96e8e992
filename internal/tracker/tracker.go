package tracker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/doridoridoriand/picheck/internal/probe"
)

const defaultInterval = time.Hour

var (
	// ErrNoTarget is returned when no target is active.
	ErrNoTarget = errors.New("no active target")
	// ErrStaleTarget is returned for a result that belongs to a target that
	// is no longer active, e.g. a probe that completed after reconfiguration.
	ErrStaleTarget = errors.New("result for inactive target")
)

// Tracker holds the MonitorState of the single active target and classifies
// probe results into transitions. Reads are safe from any goroutine; updates
// are expected from the scheduler loop.
type Tracker struct {
	mu       sync.RWMutex
	state    *MonitorState
	interval time.Duration
	now      func() time.Time
}

// New creates a tracker with no active target.
func New(interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Tracker{interval: interval, now: time.Now}
}

// SetClock replaces the clock used for timestamps.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

// SetInterval changes the interval used to compute NextCheckAt.
func (t *Tracker) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	t.mu.Lock()
	t.interval = interval
	t.mu.Unlock()
}

// Activate discards the current MonitorState and starts tracking target
// from scratch: unknown status, first observation pending, check due now.
func (t *Tracker) Activate(target string) (MonitorState, error) {
	if target == "" {
		return MonitorState{}, ErrNoTarget
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = &MonitorState{
		Target:           target,
		Status:           StatusUnknown,
		FirstObservation: true,
		NextCheckAt:      t.now(),
	}
	return *t.state, nil
}

// Active returns the active target, or "" when none is set.
func (t *Tracker) Active() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.state == nil {
		return ""
	}
	return t.state.Target
}

// Evaluate consumes a probe result for target and returns the transition.
// Equal consecutive results yield NoChange.
func (t *Tracker) Evaluate(target string, result probe.Result) (Transition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == nil || target == "" {
		return Transition{}, ErrNoTarget
	}
	if t.state.Target != target {
		return Transition{}, fmt.Errorf("%w: got %q, active %q", ErrStaleTarget, target, t.state.Target)
	}

	online := result.Online && result.Err == nil
	diagnostic := ""
	if result.Err != nil {
		diagnostic = result.Err.Error()
	}

	now := t.now()
	tr := Transition{
		Target:      target,
		Online:      online,
		Diagnostic:  diagnostic,
		At:          now,
		NextCheckAt: now.Add(t.interval),
	}

	prev := t.state.Status
	switch {
	case t.state.FirstObservation:
		tr.Kind = FirstObservation
	case online && prev != StatusOnline:
		tr.Kind = BecameOnline
	case !online && prev != StatusOffline:
		tr.Kind = BecameOffline
	default:
		tr.Kind = NoChange
	}

	if online {
		t.state.Status = StatusOnline
	} else {
		t.state.Status = StatusOffline
	}
	t.state.FirstObservation = false
	t.state.LastCheckAt = now
	t.state.NextCheckAt = tr.NextCheckAt
	t.state.LastDiagnostic = diagnostic
	t.state.Checks++
	return tr, nil
}

// Reschedule moves NextCheckAt without evaluating a result.
func (t *Tracker) Reschedule(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != nil {
		t.state.NextCheckAt = at
	}
}

// Snapshot returns a copy of the active MonitorState.
func (t *Tracker) Snapshot() (MonitorState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.state == nil {
		return MonitorState{}, false
	}
	return *t.state, true
}
