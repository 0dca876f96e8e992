package ui

import (
	"time"

	"github.com/hako/durafmt"

	"github.com/doridoridoriand/picheck/internal/event"
	"github.com/doridoridoriand/picheck/internal/layout"
	"github.com/doridoridoriand/picheck/internal/tracker"
)

const (
	toastLifetime = 3 * time.Second
	maxToasts     = 3
)

// Alert is a persistent alert box as placed by the registry.
type Alert struct {
	Target   string
	Position layout.Point
	Size     layout.Size
}

// Bounds returns the cells the alert occupies.
func (a Alert) Bounds() layout.Rect {
	return layout.At(a.Position, a.Size)
}

// Toast is a transient message.
type Toast struct {
	Message string
	Level   event.Level
	Expires time.Time
}

// Prompt is the open configuration input.
type Prompt struct {
	Input []rune
	Error string
}

// Model is everything the screen shows. It changes only through Apply and
// the input handlers on the UI goroutine.
type Model struct {
	Target      string
	Status      tracker.Status
	Checking    bool
	NextCheckAt time.Time
	Diagnostic  string

	Alerts  []Alert
	Toasts  []Toast
	Warning *event.Warning
	Prompt  *Prompt
}

// NewModel seeds a model from the agent state.
func NewModel(state tracker.MonitorState) *Model {
	status := state.Status
	if status == "" {
		status = tracker.StatusUnknown
	}
	return &Model{
		Target:      state.Target,
		Status:      status,
		NextCheckAt: state.NextCheckAt,
		Diagnostic:  state.LastDiagnostic,
	}
}

// Apply folds one core event into the model.
func (m *Model) Apply(ev event.Event, now time.Time) {
	switch e := ev.(type) {
	case event.CheckStarted:
		m.Target = e.Target
		m.Checking = true
	case event.CheckCompleted:
		m.Target = e.Target
		m.Checking = false
		m.Status = statusOf(e.Online)
		m.NextCheckAt = e.NextCheckAt
		m.Diagnostic = e.Diagnostic
	case event.StatusChanged:
		m.Target = e.Target
		m.Status = statusOf(e.Online)
		m.NextCheckAt = e.NextCheckAt
	case event.NotificationCreated:
		m.Alerts = append(m.Alerts, Alert{Target: e.Target, Position: e.Position, Size: e.Size})
	case event.NotificationMoved:
		for i := range m.Alerts {
			if m.Alerts[i].Target == e.Target {
				m.Alerts[i].Position = e.Position
			}
		}
	case event.NotificationClosed:
		kept := m.Alerts[:0]
		for _, a := range m.Alerts {
			if a.Target != e.Target {
				kept = append(kept, a)
			}
		}
		m.Alerts = kept
	case event.ConfigureRequested:
		m.OpenPrompt()
	case event.TargetChanged:
		m.Target = e.Target
		m.Status = tracker.StatusUnknown
		m.Diagnostic = ""
	case event.Toast:
		m.PushToast(e.Message, e.Level, now)
	case event.Warning:
		w := e
		m.Warning = &w
	}
}

// PushToast shows message until toastLifetime has passed.
func (m *Model) PushToast(message string, level event.Level, now time.Time) {
	m.Toasts = append(m.Toasts, Toast{Message: message, Level: level, Expires: now.Add(toastLifetime)})
	if len(m.Toasts) > maxToasts {
		m.Toasts = m.Toasts[len(m.Toasts)-maxToasts:]
	}
}

// Expire drops toasts whose lifetime ended. It reports whether any were dropped.
func (m *Model) Expire(now time.Time) bool {
	kept := m.Toasts[:0]
	for _, t := range m.Toasts {
		if now.Before(t.Expires) {
			kept = append(kept, t)
		}
	}
	changed := len(kept) != len(m.Toasts)
	m.Toasts = kept
	return changed
}

// OpenPrompt starts editing the target, prefilled with the current one.
func (m *Model) OpenPrompt() {
	if m.Prompt != nil {
		return
	}
	m.Prompt = &Prompt{Input: []rune(m.Target)}
}

// NewestAlert returns the most recently created alert.
func (m *Model) NewestAlert() (Alert, bool) {
	if len(m.Alerts) == 0 {
		return Alert{}, false
	}
	return m.Alerts[len(m.Alerts)-1], true
}

// AlertAt returns the topmost alert covering p.
func (m *Model) AlertAt(p layout.Point) (Alert, bool) {
	for i := len(m.Alerts) - 1; i >= 0; i-- {
		if m.Alerts[i].Bounds().Contains(p) {
			return m.Alerts[i], true
		}
	}
	return Alert{}, false
}

// StatusText is the tray text "<target> is <status>".
func (m *Model) StatusText() string {
	if m.Target == "" {
		return "No target configured"
	}
	if m.Checking {
		return m.Target + ": Checking..."
	}
	switch m.Status {
	case tracker.StatusOnline:
		return m.Target + " is online"
	case tracker.StatusOffline:
		return m.Target + " is offline"
	default:
		return m.Target + " is unknown"
	}
}

// NextCheckText renders the time until the next scheduled check.
func NextCheckText(now, next time.Time) string {
	if next.IsZero() {
		return "Next check: pending"
	}
	d := next.Sub(now)
	if d < time.Minute {
		return "Next check: in less than 1 minute"
	}
	return "Next check: in " + durafmt.Parse(d.Truncate(time.Minute)).LimitFirstN(2).String()
}

func statusOf(online bool) tracker.Status {
	if online {
		return tracker.StatusOnline
	}
	return tracker.StatusOffline
}
