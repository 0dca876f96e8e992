package tracker

import (
	"time"
)

// Status represents the reachability of the monitored target.
type Status string

const (
	StatusUnknown Status = "UNKNOWN"
	StatusOnline  Status = "ONLINE"
	StatusOffline Status = "OFFLINE"
)

// Kind classifies a probe outcome relative to the stored state.
type Kind int

const (
	NoChange Kind = iota
	BecameOnline
	BecameOffline
	FirstObservation
)

func (k Kind) String() string {
	switch k {
	case NoChange:
		return "no_change"
	case BecameOnline:
		return "became_online"
	case BecameOffline:
		return "became_offline"
	case FirstObservation:
		return "first_observation"
	default:
		return "unknown"
	}
}

// MonitorState is the per-target record owned by the tracker.
type MonitorState struct {
	Target           string
	Status           Status
	FirstObservation bool
	LastCheckAt      time.Time
	NextCheckAt      time.Time
	LastDiagnostic   string
	Checks           int
}

// Online reports whether the last completed probe succeeded.
func (s MonitorState) Online() bool {
	return s.Status == StatusOnline
}

// Transition is the result of evaluating one probe.
type Transition struct {
	Target      string
	Kind        Kind
	Online      bool
	Diagnostic  string
	At          time.Time
	NextCheckAt time.Time
}

// IsProbeError reports whether the probe failed to execute rather than
// returning a clean offline answer. Such a transition is still offline.
func (t Transition) IsProbeError() bool {
	return t.Diagnostic != ""
}

// Changed reports whether the status differs from the previous observation
// (or is the first one).
func (t Transition) Changed() bool {
	return t.Kind != NoChange
}

// RaisesAlert reports whether a persistent offline alert should exist after
// this transition: a transition to offline, or an offline first observation.
func (t Transition) RaisesAlert() bool {
	return !t.Online && (t.Kind == BecameOffline || t.Kind == FirstObservation)
}

// Toast reports whether a transient status toast should be shown. First
// observations never toast, even when offline.
func (t Transition) Toast() bool {
	return t.Kind == BecameOnline || t.Kind == BecameOffline
}
