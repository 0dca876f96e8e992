// Package agent wires the tracker, the notification registry and the
// scheduler into the monitoring core, and is the control surface the
// presentation layer talks to.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/doridoridoriand/picheck/internal/config"
	"github.com/doridoridoriand/picheck/internal/event"
	"github.com/doridoridoriand/picheck/internal/layout"
	"github.com/doridoridoriand/picheck/internal/log"
	"github.com/doridoridoriand/picheck/internal/notify"
	"github.com/doridoridoriand/picheck/internal/probe"
	"github.com/doridoridoriand/picheck/internal/scheduler"
	"github.com/doridoridoriand/picheck/internal/tracker"
)

const appTitle = "PiCheck"

// SettingsStore persists settings changes.
type SettingsStore interface {
	Update(fn func(*config.Settings)) error
}

// Autostarter registers the agent as a login item.
type Autostarter interface {
	Enable() error
	Disable() error
	Enabled() (bool, error)
}

// Deps are the collaborators of an Agent. Prober and Bus are required.
type Deps struct {
	Prober    probe.Prober
	Bus       event.Publisher
	Store     SettingsStore
	Autostart Autostarter
	Logger    *log.Logger
	Area      layout.Rect
	Layout    notify.Layout
	Clock     func() time.Time
}

// Snapshot is a consistent view for the status line and the metrics endpoint.
type Snapshot struct {
	State         tracker.MonitorState
	HasTarget     bool
	Notifications int
	InFlight      bool
	Autostart     bool
	Interval      time.Duration
}

// Agent is the monitoring core.
type Agent struct {
	mu       sync.RWMutex
	settings config.Settings

	// switchMu serializes target switches so the tracker, the scheduler, the
	// settings and the store always name the same target.
	switchMu sync.Mutex

	tracker   *tracker.Tracker
	registry  *notify.Registry
	scheduler *scheduler.Scheduler

	pub       event.Publisher
	store     SettingsStore
	autostart Autostarter
	logger    *log.Logger

	notifications atomic.Int32
}

// New builds the core from settings. Nothing runs until Run.
func New(settings config.Settings, deps Deps) (*Agent, error) {
	if deps.Prober == nil {
		return nil, errors.New("agent: prober is required")
	}
	if deps.Bus == nil {
		return nil, errors.New("agent: event bus is required")
	}
	if err := config.Validate(settings); err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	lay := deps.Layout
	if lay.Size.W == 0 || lay.Size.H == 0 {
		lay = notify.DesktopLayout()
	}

	a := &Agent{
		settings:  settings,
		tracker:   tracker.New(settings.Interval),
		pub:       deps.Bus,
		store:     deps.Store,
		autostart: deps.Autostart,
		logger:    logger.With("agent"),
	}
	if deps.Clock != nil {
		a.tracker.SetClock(deps.Clock)
	}
	a.registry = notify.New(deps.Area, lay, deps.Bus, logger.With("notify"))
	a.scheduler = scheduler.New(scheduler.Options{
		Interval: settings.Interval,
		Timeout:  settings.Timeout,
	}, deps.Prober, a, logger.With("scheduler"))
	return a, nil
}

// Run activates the configured target and monitors it until ctx is done.
// Every alert is closed before Run returns.
func (a *Agent) Run(ctx context.Context) error {
	a.syncAutostart()

	a.switchMu.Lock()
	target := a.Settings().Target
	if _, err := a.tracker.Activate(target); err != nil {
		a.switchMu.Unlock()
		return fmt.Errorf("activate target: %w", err)
	}
	a.scheduler.Retarget(target)
	a.switchMu.Unlock()
	a.logger.Info("monitoring started", map[string]interface{}{
		"target":   target,
		"interval": a.Settings().Interval.String(),
		"timeout":  a.Settings().Timeout.String(),
	})

	err := a.scheduler.Run(ctx)

	a.registry.Shutdown()
	a.notifications.Store(0)
	a.logger.Info("monitoring stopped", map[string]interface{}{"target": a.tracker.Active()})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ProbeStarted implements scheduler.Handler.
func (a *Agent) ProbeStarted(target string, forced bool) {
	a.pub.Publish(event.CheckStarted{Target: target, At: time.Now(), Forced: forced})
}

// ProbeCompleted implements scheduler.Handler. It runs on the loop goroutine.
func (a *Agent) ProbeCompleted(c scheduler.Completion) {
	tr, err := a.tracker.Evaluate(c.Target, c.Result)
	if errors.Is(err, tracker.ErrStaleTarget) {
		a.logger.Debug("discarding stale probe result", map[string]interface{}{
			"target": c.Target,
			"error":  err.Error(),
		})
		return
	}
	if err != nil {
		a.logger.LogError("agent", err, map[string]interface{}{"target": c.Target})
		return
	}

	a.logger.LogProbeResult(c.Target, tr.Online, c.Result.Took, c.Result.Err)
	a.pub.Publish(event.CheckCompleted{
		Target:      tr.Target,
		Online:      tr.Online,
		Transition:  tr.Kind.String(),
		Diagnostic:  tr.Diagnostic,
		At:          tr.At,
		NextCheckAt: tr.NextCheckAt,
	})

	if tr.Changed() {
		a.logger.LogTransition(tr.Target, tr.Kind.String(), tr.Online, tr.Diagnostic)
		a.pub.Publish(event.StatusChanged{
			Target:           tr.Target,
			Online:           tr.Online,
			FirstObservation: tr.Kind == tracker.FirstObservation,
			Diagnostic:       tr.Diagnostic,
			NextCheckAt:      tr.NextCheckAt,
		})
	}
	if tr.Toast() {
		a.pub.Publish(statusToast(tr))
	}
	if tr.IsProbeError() {
		a.pub.Publish(event.Toast{
			Title:   appTitle,
			Message: "Error checking connectivity: " + tr.Diagnostic,
			Level:   event.LevelError,
		})
	}

	switch {
	case tr.RaisesAlert():
		a.registry.ShowOffline(tr.Target)
	case tr.Online:
		a.registry.Clear(tr.Target)
	}
	a.notifications.Store(int32(a.registry.Len()))
}

func statusToast(tr tracker.Transition) event.Toast {
	if tr.Online {
		return event.Toast{Title: appTitle, Message: tr.Target + " is now online", Level: event.LevelInfo}
	}
	return event.Toast{Title: appTitle, Message: tr.Target + " is now offline", Level: event.LevelWarning}
}

// Reconfigure switches monitoring to target: the old target's alert is
// superseded, first observation starts over, the store is saved and the new
// target is checked immediately. Reconfiguring to the current target only
// forces a check. Concurrent calls are applied one after another.
//
// Once the switch is applied a failed save does not undo it: the failure is
// logged and published as a Warning, and Reconfigure returns nil.
func (a *Agent) Reconfigure(ctx context.Context, target string) error {
	target = strings.TrimSpace(target)
	if _, err := probe.ParseTarget(target); err != nil {
		return fmt.Errorf("reconfigure: %w", err)
	}

	a.switchMu.Lock()
	defer a.switchMu.Unlock()

	var previous string
	err := a.scheduler.Do(ctx, func() {
		previous = a.tracker.Active()
		if previous == target {
			return
		}
		a.registry.Supersede(previous)
		a.notifications.Store(int32(a.registry.Len()))
		_, _ = a.tracker.Activate(target)
	})
	if errors.Is(err, scheduler.ErrNotRunning) {
		// No loop owns the tracker and no alert is open.
		previous = a.Settings().Target
		if previous != target {
			_, _ = a.tracker.Activate(target)
		}
	} else if err != nil {
		return fmt.Errorf("reconfigure: %w", err)
	}

	if previous == target {
		a.scheduler.ForceCheck()
		return nil
	}

	a.mu.Lock()
	a.settings.Target = target
	a.mu.Unlock()

	a.logger.Info("target changed", map[string]interface{}{
		"previous": previous,
		"target":   target,
	})
	a.pub.Publish(event.TargetChanged{Previous: previous, Target: target})
	a.scheduler.Retarget(target)

	if a.store != nil {
		if err := a.store.Update(func(s *config.Settings) { s.Target = target }); err != nil {
			a.logger.LogError("config", err, map[string]interface{}{"target": target})
			a.pub.Publish(event.Warning{
				Title:   "Settings",
				Message: fmt.Sprintf("Now monitoring %s, but the setting could not be saved: %v", target, err),
			})
		}
	}
	return nil
}

// SetAutostart registers or unregisters the login item. A failure publishes
// a Warning and keeps the previous setting; monitoring is unaffected.
func (a *Agent) SetAutostart(ctx context.Context, enabled bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var err error
	switch {
	case a.autostart == nil:
		err = errors.New("autostart is not supported on this platform")
	case enabled:
		err = a.autostart.Enable()
	default:
		err = a.autostart.Disable()
	}
	if err != nil {
		a.logger.LogError("autostart", err, map[string]interface{}{"enabled": enabled})
		a.pub.Publish(event.Warning{
			Title:   "Startup Registration",
			Message: fmt.Sprintf("Failed to update startup setting: %v", err),
		})
		return fmt.Errorf("set autostart: %w", err)
	}

	a.mu.Lock()
	a.settings.Autostart = enabled
	a.mu.Unlock()
	if a.store != nil {
		if err := a.store.Update(func(s *config.Settings) { s.Autostart = enabled }); err != nil {
			a.logger.LogError("config", err, map[string]interface{}{"autostart": enabled})
		}
	}

	message := "picheck will now start at login"
	if !enabled {
		message = "picheck will no longer start at login"
	}
	a.pub.Publish(event.Toast{Title: appTitle, Message: message, Level: event.LevelInfo})
	return nil
}

// ToggleAutostart flips the autostart setting.
func (a *Agent) ToggleAutostart(ctx context.Context) error {
	return a.SetAutostart(ctx, !a.Settings().Autostart)
}

// syncAutostart adopts the registration state actually present on the system.
func (a *Agent) syncAutostart() {
	if a.autostart == nil {
		return
	}
	enabled, err := a.autostart.Enabled()
	if err != nil {
		a.logger.Warn("autostart state unavailable", map[string]interface{}{"error": err.Error()})
		return
	}
	a.mu.Lock()
	changed := a.settings.Autostart != enabled
	a.settings.Autostart = enabled
	a.mu.Unlock()
	if changed {
		a.logger.Info("autostart setting adopted from system", map[string]interface{}{"enabled": enabled})
	}
}

// ForceCheck asks for an immediate probe. It returns false when a probe is
// already in flight.
func (a *Agent) ForceCheck() bool {
	return a.scheduler.ForceCheck()
}

// Dismiss closes the alert for target. An empty target dismisses the newest
// alert.
func (a *Agent) Dismiss(ctx context.Context, target string) (bool, error) {
	var dismissed bool
	err := a.scheduler.Do(ctx, func() {
		if target == "" {
			records := a.registry.Records()
			if len(records) == 0 {
				return
			}
			target = records[len(records)-1].Target
		}
		dismissed = a.registry.Dismiss(target)
		a.notifications.Store(int32(a.registry.Len()))
	})
	return dismissed, err
}

// RequestConfigure forwards a Configure click from the alert of target.
func (a *Agent) RequestConfigure(ctx context.Context, target string) error {
	return a.scheduler.Do(ctx, func() { a.registry.RequestConfigure(target) })
}

// RequestForceCheck forwards a Check Now click from the alert of target.
func (a *Agent) RequestForceCheck(ctx context.Context, target string) error {
	return a.scheduler.Do(ctx, func() { a.registry.RequestForceCheck(target) })
}

// SetWorkingArea restacks alerts inside area.
func (a *Agent) SetWorkingArea(ctx context.Context, area layout.Rect) error {
	return a.scheduler.Do(ctx, func() { a.registry.SetWorkingArea(area) })
}

// Notifications returns the visible alerts, oldest first.
func (a *Agent) Notifications(ctx context.Context) ([]notify.Record, error) {
	var records []notify.Record
	err := a.scheduler.Do(ctx, func() { records = a.registry.Records() })
	return records, err
}

// Handle implements event.Sink: check requests coming from alerts are routed
// back into the scheduler.
func (a *Agent) Handle(ev event.Event) {
	if req, ok := ev.(event.ForceCheckRequested); ok {
		a.logger.Debug("force check requested by notification", map[string]interface{}{"target": req.Target})
		go a.scheduler.ForceCheck()
	}
}

// Snapshot returns the current state. Safe from any goroutine.
func (a *Agent) Snapshot() Snapshot {
	state, ok := a.tracker.Snapshot()
	settings := a.Settings()
	return Snapshot{
		State:         state,
		HasTarget:     ok,
		Notifications: int(a.notifications.Load()),
		InFlight:      a.scheduler.InFlight(),
		Autostart:     settings.Autostart,
		Interval:      settings.Interval,
	}
}

// Settings returns a copy of the effective settings.
func (a *Agent) Settings() config.Settings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}
