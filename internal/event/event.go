package event

import (
	"time"

	"github.com/doridoridoriand/picheck/internal/layout"
)

// Kind names an event type. It doubles as the relay subject suffix.
type Kind string

const (
	KindCheckStarted        Kind = "check_started"
	KindCheckCompleted      Kind = "check_completed"
	KindStatusChanged       Kind = "status_changed"
	KindNotificationCreated Kind = "notification_created"
	KindNotificationMoved   Kind = "notification_moved"
	KindNotificationClosed  Kind = "notification_closed"
	KindConfigureRequested  Kind = "configure_requested"
	KindForceCheckRequested Kind = "force_check_requested"
	KindTargetChanged       Kind = "target_changed"
	KindToast               Kind = "toast"
	KindWarning             Kind = "warning"
)

// Event is anything the core publishes on the bus.
type Event interface {
	Kind() Kind
}

// CheckStarted is published when a probe is issued.
type CheckStarted struct {
	Target string    `json:"target"`
	At     time.Time `json:"at"`
	Forced bool      `json:"forced"`
}

// CheckCompleted is published after every probe, changed or not.
type CheckCompleted struct {
	Target      string    `json:"target"`
	Online      bool      `json:"online"`
	Transition  string    `json:"transition"`
	Diagnostic  string    `json:"diagnostic,omitempty"`
	At          time.Time `json:"at"`
	NextCheckAt time.Time `json:"next_check_at"`
}

// StatusChanged is published on the first observation of a target and on
// every online/offline transition after that.
type StatusChanged struct {
	Target           string    `json:"target"`
	Online           bool      `json:"online"`
	FirstObservation bool      `json:"first_observation"`
	Diagnostic       string    `json:"diagnostic,omitempty"`
	NextCheckAt      time.Time `json:"next_check_at"`
}

// Toast reports whether the change deserves a transient "now online/offline"
// indicator. First observations do not.
func (e StatusChanged) Toast() bool {
	return !e.FirstObservation
}

// NotificationCreated is published when a persistent alert appears.
type NotificationCreated struct {
	Target   string       `json:"target"`
	Position layout.Point `json:"position"`
	Size     layout.Size  `json:"size"`
}

// NotificationMoved is published when restacking moves an alert.
type NotificationMoved struct {
	Target   string       `json:"target"`
	Position layout.Point `json:"position"`
}

// CloseReason tells why a persistent alert went away.
type CloseReason string

const (
	ReasonCleared    CloseReason = "cleared"
	ReasonDismissed  CloseReason = "dismissed"
	ReasonSuperseded CloseReason = "superseded"
	ReasonShutdown   CloseReason = "shutdown"
)

// NotificationClosed is published when a persistent alert is removed.
type NotificationClosed struct {
	Target string      `json:"target"`
	Reason CloseReason `json:"reason"`
}

// ConfigureRequested is forwarded from an alert asking to open configuration.
type ConfigureRequested struct {
	Target string `json:"target"`
}

// ForceCheckRequested is forwarded from an alert asking for an immediate check.
type ForceCheckRequested struct {
	Target string `json:"target"`
}

// TargetChanged is published after reconfiguration.
type TargetChanged struct {
	Previous string `json:"previous"`
	Target   string `json:"target"`
}

// Level grades toasts.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Toast is a short-lived message for the user.
type Toast struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Level   Level  `json:"level"`
}

// Warning must be acknowledged by the user, e.g. a failed autostart change.
type Warning struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (CheckStarted) Kind() Kind        { return KindCheckStarted }
func (CheckCompleted) Kind() Kind      { return KindCheckCompleted }
func (StatusChanged) Kind() Kind       { return KindStatusChanged }
func (NotificationCreated) Kind() Kind { return KindNotificationCreated }
func (NotificationMoved) Kind() Kind   { return KindNotificationMoved }
func (NotificationClosed) Kind() Kind  { return KindNotificationClosed }
func (ConfigureRequested) Kind() Kind  { return KindConfigureRequested }
func (ForceCheckRequested) Kind() Kind { return KindForceCheckRequested }
func (TargetChanged) Kind() Kind       { return KindTargetChanged }
func (Toast) Kind() Kind               { return KindToast }
func (Warning) Kind() Kind             { return KindWarning }
