// Package notify keeps the persistent offline alerts: at most one per target,
// stacked bottom-up in the corner of the working area.
//
// A Registry is not safe for concurrent use. Every call must come from the
// scheduler loop; other goroutines go through scheduler.Scheduler.Do.
package notify

import (
	"time"

	"github.com/doridoridoriand/picheck/internal/event"
	"github.com/doridoridoriand/picheck/internal/layout"
	"github.com/doridoridoriand/picheck/internal/log"
)

// Layout fixes alert size and the gaps around them.
type Layout struct {
	Size    layout.Size
	Spacing int
	Margin  int
}

// DesktopLayout matches a 420x200 px alert with 10 px gaps.
func DesktopLayout() Layout {
	return Layout{Size: layout.Size{W: 420, H: 200}, Spacing: 10, Margin: 10}
}

// TerminalLayout is the cell-based layout used by the terminal UI.
func TerminalLayout() Layout {
	return Layout{Size: layout.Size{W: 42, H: 7}, Spacing: 1, Margin: 1}
}

// Record is one persistent alert.
type Record struct {
	Target    string
	Visible   bool
	CreatedAt time.Time
	Position  layout.Point
	Size      layout.Size
}

// Bounds returns the rectangle the record occupies.
func (r Record) Bounds() layout.Rect {
	return layout.At(r.Position, r.Size)
}

// Registry owns the live alert list and the membership set of targets with
// an active alert. The list is the source of truth; the set is the fast path
// and is rebuilt from the list whenever the two disagree.
type Registry struct {
	records []*Record
	active  map[string]struct{}

	area   layout.Rect
	layout Layout

	pub    event.Publisher
	logger *log.Logger
	now    func() time.Time

	inconsistencies int
}

// New creates an empty registry stacking alerts inside area.
func New(area layout.Rect, lay Layout, pub event.Publisher, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Discard()
	}
	return &Registry{
		active: make(map[string]struct{}),
		area:   area,
		layout: lay,
		pub:    pub,
		logger: logger,
		now:    time.Now,
	}
}

// ShowOffline raises the offline alert for target. It returns false without
// creating anything when a visible alert for target already exists.
func (r *Registry) ShowOffline(target string) bool {
	if target == "" {
		return false
	}

	_, tracked := r.active[target]
	existing := r.find(target)
	switch {
	case tracked && existing != nil:
		r.logger.Debug("notification already shown", map[string]interface{}{"target": target})
		return false
	case existing != nil:
		r.heal(target, "visible notification missing from active set")
		return false
	case tracked:
		r.heal(target, "active set lists a target without a visible notification")
	}

	rec := &Record{
		Target:    target,
		Visible:   true,
		CreatedAt: r.now(),
		Size:      r.layout.Size,
	}
	rec.Position = r.nextPosition(rec.Size)
	r.records = append(r.records, rec)
	r.active[target] = struct{}{}

	r.logger.Debug("notification created", map[string]interface{}{
		"target": target,
		"active": len(r.records),
	})
	r.publish(event.NotificationCreated{Target: target, Position: rec.Position, Size: rec.Size})
	return true
}

// Clear closes the alert for target, or every alert when target is "".
// Clearing a target without an alert is a no-op.
func (r *Registry) Clear(target string) {
	r.close(target, event.ReasonCleared)
}

// Supersede closes the alert for target because the target was replaced.
func (r *Registry) Supersede(target string) {
	if target == "" {
		return
	}
	r.close(target, event.ReasonSuperseded)
}

// Dismiss closes the alert for target on the user's request. It reports
// whether an alert was closed.
func (r *Registry) Dismiss(target string) bool {
	if target == "" || r.find(target) == nil {
		return false
	}
	r.close(target, event.ReasonDismissed)
	return true
}

// ClearAll closes every alert and resets the membership set, so set and list
// are both empty afterwards.
func (r *Registry) ClearAll() {
	r.clearAll(event.ReasonCleared)
}

// Shutdown closes every alert before the agent exits.
func (r *Registry) Shutdown() {
	r.clearAll(event.ReasonShutdown)
}

func (r *Registry) clearAll(reason event.CloseReason) {
	r.close("", reason)
	r.active = make(map[string]struct{})
	r.logger.Debug("cleared all notification targets", nil)
}

// RequestConfigure forwards an "open configuration" click from the alert of
// target. Requests from targets without an alert are dropped.
func (r *Registry) RequestConfigure(target string) bool {
	if r.find(target) == nil {
		return false
	}
	r.publish(event.ConfigureRequested{Target: target})
	return true
}

// RequestForceCheck forwards a "check now" click from the alert of target.
func (r *Registry) RequestForceCheck(target string) bool {
	if r.find(target) == nil {
		return false
	}
	r.publish(event.ForceCheckRequested{Target: target})
	return true
}

// SetWorkingArea changes the area alerts stack in and restacks them.
func (r *Registry) SetWorkingArea(area layout.Rect) {
	if area == r.area {
		return
	}
	r.area = area
	r.reposition()
}

// WorkingArea returns the current stacking area.
func (r *Registry) WorkingArea() layout.Rect {
	return r.area
}

// Has reports whether target has a visible alert.
func (r *Registry) Has(target string) bool {
	return r.find(target) != nil
}

// Len returns the number of visible alerts.
func (r *Registry) Len() int {
	n := 0
	for _, rec := range r.records {
		if rec.Visible {
			n++
		}
	}
	return n
}

// Records returns copies of the visible alerts, oldest first.
func (r *Registry) Records() []Record {
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if rec.Visible {
			out = append(out, *rec)
		}
	}
	return out
}

// Inconsistencies returns how many times the set had to be rebuilt.
func (r *Registry) Inconsistencies() int {
	return r.inconsistencies
}

func (r *Registry) close(target string, reason event.CloseReason) {
	if target != "" {
		delete(r.active, target)
	}
	var closing []*Record
	kept := r.records[:0]
	for _, rec := range r.records {
		if target == "" || rec.Target == target {
			closing = append(closing, rec)
			continue
		}
		kept = append(kept, rec)
	}
	for i := len(kept); i < len(r.records); i++ {
		r.records[i] = nil
	}
	r.records = kept

	if len(closing) == 0 {
		return
	}
	for _, rec := range closing {
		delete(r.active, rec.Target)
		if !rec.Visible {
			continue
		}
		rec.Visible = false
		r.logger.Debug("notification closed", map[string]interface{}{
			"target":    rec.Target,
			"reason":    string(reason),
			"remaining": len(r.records),
		})
		r.publish(event.NotificationClosed{Target: rec.Target, Reason: reason})
	}
	r.reposition()
}

func (r *Registry) find(target string) *Record {
	for _, rec := range r.records {
		if rec.Visible && rec.Target == target {
			return rec
		}
	}
	return nil
}

// heal rebuilds the membership set from the live list.
func (r *Registry) heal(target, reason string) {
	r.inconsistencies++
	r.logger.Warn("notification registry inconsistent, rebuilding active set", map[string]interface{}{
		"target": target,
		"reason": reason,
	})
	r.active = make(map[string]struct{}, len(r.records))
	for _, rec := range r.records {
		if rec.Visible {
			r.active[rec.Target] = struct{}{}
		}
	}
}

// nextPosition places a new alert above every visible one.
func (r *Registry) nextPosition(size layout.Size) layout.Point {
	y := r.area.Bottom() - size.H - r.layout.Margin
	for _, rec := range r.records {
		if rec.Visible {
			y -= rec.Size.H + r.layout.Spacing
		}
	}
	return layout.Point{
		X: r.area.Right() - size.W - r.layout.Margin,
		Y: r.clampY(y),
	}
}

// reposition restacks visible alerts from the bottom, newest first.
func (r *Registry) reposition() {
	y := r.area.Bottom() - r.layout.Margin
	for i := len(r.records) - 1; i >= 0; i-- {
		rec := r.records[i]
		if !rec.Visible {
			continue
		}
		y -= rec.Size.H
		pos := layout.Point{
			X: r.area.Right() - rec.Size.W - r.layout.Margin,
			Y: r.clampY(y),
		}
		if pos != rec.Position {
			rec.Position = pos
			r.publish(event.NotificationMoved{Target: rec.Target, Position: pos})
		}
		y -= r.layout.Spacing
	}
}

func (r *Registry) clampY(y int) int {
	if top := r.area.Top() + r.layout.Margin; y < top {
		return top
	}
	return y
}

func (r *Registry) publish(ev event.Event) {
	if r.pub != nil {
		r.pub.Publish(ev)
	}
}
