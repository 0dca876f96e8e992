// Package ui is the terminal front end: a status line, stacked offline
// alerts with their buttons, transient toasts and the target prompt.
package ui

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/doridoridoriand/picheck/internal/agent"
	"github.com/doridoridoriand/picheck/internal/event"
	"github.com/doridoridoriand/picheck/internal/layout"
	"github.com/doridoridoriand/picheck/internal/log"
	"github.com/doridoridoriand/picheck/internal/probe"
)

const (
	uiRefreshInterval = 500 * time.Millisecond
	eventBuffer       = 64
	headerRows        = 2
	footerRows        = 1
)

// Controller is the part of the agent the UI drives. Calls may block on the
// scheduler loop, so the UI never makes them from its own goroutine.
type Controller interface {
	ForceCheck() bool
	Reconfigure(ctx context.Context, target string) error
	ToggleAutostart(ctx context.Context) error
	Dismiss(ctx context.Context, target string) (bool, error)
	RequestConfigure(ctx context.Context, target string) error
	RequestForceCheck(ctx context.Context, target string) error
	SetWorkingArea(ctx context.Context, area layout.Rect) error
	Snapshot() agent.Snapshot
}

// UI renders the agent state and turns input into controller calls.
type UI struct {
	ctrl   Controller
	logger *log.Logger

	events   chan event.Event
	done     chan struct{}
	stopOnce sync.Once

	ctx       context.Context
	model     *Model
	area      layout.Rect
	autostart bool

	now      func() time.Time
	dispatch func(func())
}

// New returns a UI bound to ctrl.
func New(ctrl Controller, logger *log.Logger) *UI {
	if logger == nil {
		logger = log.Discard()
	}
	snap := ctrl.Snapshot()
	return &UI{
		ctrl:      ctrl,
		logger:    logger.With("ui"),
		events:    make(chan event.Event, eventBuffer),
		done:      make(chan struct{}),
		ctx:       context.Background(),
		model:     NewModel(snap.State),
		autostart: snap.Autostart,
		now:       time.Now,
		dispatch:  func(fn func()) { go fn() },
	}
}

// Handle implements event.Sink. Events arriving after the UI stopped are dropped.
func (u *UI) Handle(ev event.Event) {
	select {
	case u.events <- ev:
	case <-u.done:
	}
}

// Run blocks until the context is cancelled or the user quits.
func (u *UI) Run(ctx context.Context) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		u.stop()
		return err
	}
	if err := screen.Init(); err != nil {
		u.stop()
		return err
	}
	defer screen.Fini()
	return u.RunScreen(ctx, screen)
}

// RunScreen drives an initialised screen. The caller owns Fini.
func (u *UI) RunScreen(ctx context.Context, screen tcell.Screen) error {
	defer u.stop()
	u.ctx = ctx
	screen.HideCursor()
	screen.EnableMouse()

	eventCh := make(chan tcell.Event, 1)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case eventCh <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(uiRefreshInterval)
	defer ticker.Stop()

	u.syncArea(screen)
	u.render(screen)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-u.events:
			u.model.Apply(ev, u.now())
		case ev := <-eventCh:
			if u.handleTerminal(screen, ev) {
				return context.Canceled
			}
		case <-ticker.C:
			u.model.Expire(u.now())
			u.autostart = u.ctrl.Snapshot().Autostart
		}
		u.render(screen)
	}
}

func (u *UI) stop() {
	u.stopOnce.Do(func() { close(u.done) })
}

// handleTerminal applies one terminal event and reports whether to quit.
func (u *UI) handleTerminal(screen tcell.Screen, ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return u.handleKey(ev)
	case *tcell.EventMouse:
		if ev.Buttons()&tcell.Button1 != 0 {
			x, y := ev.Position()
			u.handleClick(layout.Point{X: x, Y: y})
		}
	case *tcell.EventResize:
		screen.Sync()
		u.syncArea(screen)
	}
	return false
}

func (u *UI) handleKey(ev *tcell.EventKey) bool {
	if ev.Key() == tcell.KeyCtrlC {
		return true
	}
	if u.model.Prompt != nil {
		u.editPrompt(ev)
		return false
	}
	if u.model.Warning != nil {
		u.model.Warning = nil
		return false
	}
	if ev.Key() != tcell.KeyRune {
		return false
	}
	switch ev.Rune() {
	case 'q':
		return true
	case 'c':
		u.call("force check", func(ctx context.Context) error {
			if !u.ctrl.ForceCheck() {
				u.post(event.Toast{Message: "A check is already in progress", Level: event.LevelInfo})
			}
			return nil
		})
	case 'e':
		u.model.OpenPrompt()
	case 'a':
		u.call("toggle autostart", func(ctx context.Context) error {
			return u.ctrl.ToggleAutostart(ctx)
		})
	case 'd':
		u.call("dismiss", func(ctx context.Context) error {
			_, err := u.ctrl.Dismiss(ctx, "")
			return err
		})
	}
	return false
}

func (u *UI) editPrompt(ev *tcell.EventKey) {
	p := u.model.Prompt
	switch ev.Key() {
	case tcell.KeyEscape:
		u.model.Prompt = nil
	case tcell.KeyEnter:
		raw := strings.TrimSpace(string(p.Input))
		t, err := probe.ParseTarget(raw)
		if err != nil {
			p.Error = err.Error()
			return
		}
		u.model.Prompt = nil
		target := t.String()
		u.call("reconfigure", func(ctx context.Context) error {
			return u.ctrl.Reconfigure(ctx, target)
		})
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if n := len(p.Input); n > 0 {
			p.Input = p.Input[:n-1]
		}
		p.Error = ""
	case tcell.KeyRune:
		p.Input = append(p.Input, ev.Rune())
		p.Error = ""
	}
}

func (u *UI) handleClick(p layout.Point) {
	if u.model.Prompt != nil || u.model.Warning != nil {
		return
	}
	a, ok := u.model.AlertAt(p)
	if !ok {
		return
	}
	for _, b := range alertButtons(a) {
		if !b.bounds.Contains(p) {
			continue
		}
		target := a.Target
		switch b.action {
		case actionConfigure:
			u.call("configure", func(ctx context.Context) error {
				return u.ctrl.RequestConfigure(ctx, target)
			})
		case actionCheckNow:
			u.call("check now", func(ctx context.Context) error {
				return u.ctrl.RequestForceCheck(ctx, target)
			})
		case actionDismiss:
			u.call("dismiss", func(ctx context.Context) error {
				_, err := u.ctrl.Dismiss(ctx, target)
				return err
			})
		}
		return
	}
}

// syncArea hands the alert stacking area to the agent when the screen size changes.
func (u *UI) syncArea(screen tcell.Screen) {
	w, h := screen.Size()
	area := layout.Rect{X: 0, Y: headerRows, W: w, H: maxInt(0, h-headerRows-footerRows)}
	if area == u.area {
		return
	}
	u.area = area
	u.call("set working area", func(ctx context.Context) error {
		return u.ctrl.SetWorkingArea(ctx, area)
	})
}

// call runs fn off the UI goroutine and logs its error.
func (u *UI) call(what string, fn func(ctx context.Context) error) {
	ctx := u.ctx
	u.dispatch(func() {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			u.logger.Warn("ui action failed", map[string]interface{}{"action": what, "error": err.Error()})
		}
	})
}

// post feeds a local event back into the UI loop.
func (u *UI) post(ev event.Event) {
	select {
	case u.events <- ev:
	case <-u.done:
	default:
	}
}
