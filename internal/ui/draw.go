package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/doridoridoriand/picheck/internal/event"
	"github.com/doridoridoriand/picheck/internal/layout"
	"github.com/doridoridoriand/picheck/internal/tracker"
)

const (
	alertTitle   = " Host Offline "
	promptWidth  = 56
	warningWidth = 60
	keyHelp      = " c check now  e edit target  a autostart  d dismiss  q quit"
)

type buttonAction int

const (
	actionConfigure buttonAction = iota
	actionCheckNow
	actionDismiss
)

type alertButton struct {
	label  string
	action buttonAction
	bounds layout.Rect
}

// alertButtons lays out the button row of an alert box.
func alertButtons(a Alert) []alertButton {
	labels := []struct {
		label  string
		action buttonAction
	}{
		{"[Configure]", actionConfigure},
		{"[Check Now]", actionCheckNow},
		{"[Dismiss]", actionDismiss},
	}
	x := a.Position.X + 2
	y := a.Position.Y + a.Size.H - 2
	buttons := make([]alertButton, 0, len(labels))
	for _, l := range labels {
		w := len(l.label)
		buttons = append(buttons, alertButton{
			label:  l.label,
			action: l.action,
			bounds: layout.Rect{X: x, Y: y, W: w, H: 1},
		})
		x += w + 1
	}
	return buttons
}

func (u *UI) render(screen tcell.Screen) {
	screen.Clear()
	width, height := screen.Size()
	if width < 20 || height < 5 {
		screen.Show()
		return
	}
	now := u.now()
	m := u.model

	drawStyledText(screen, 0, 0, width, []styledRune{
		{r: []rune(" picheck  "), style: tcell.StyleDefault.Bold(true)},
		{r: []rune{statusGlyph(m.Status, m.Checking), ' '}, style: statusStyle(m.Status, m.Checking)},
		{r: []rune(m.StatusText()), style: tcell.StyleDefault.Bold(true)},
	})

	autostart := "off"
	if u.autostart {
		autostart = "on"
	}
	info := " " + NextCheckText(now, m.NextCheckAt) + "  autostart=" + autostart
	parts := []styledRune{{r: []rune(info), style: tcell.StyleDefault.Foreground(tcell.ColorGray)}}
	if m.Diagnostic != "" {
		parts = append(parts, styledRune{r: []rune("  " + m.Diagnostic), style: tcell.StyleDefault.Foreground(tcell.ColorRed)})
	}
	drawStyledText(screen, 0, 1, width, parts)
	drawText(screen, 0, height-1, width, keyHelp, tcell.StyleDefault.Foreground(tcell.ColorGray))

	for _, a := range m.Alerts {
		drawAlert(screen, a)
	}
	drawToasts(screen, width, m.Toasts)
	if m.Warning != nil {
		drawWarning(screen, width, height, *m.Warning)
	}
	if m.Prompt != nil {
		drawPrompt(screen, width, height, m.Prompt)
	}
	screen.Show()
}

func drawAlert(screen tcell.Screen, a Alert) {
	x, y, w, h := a.Position.X, a.Position.Y, a.Size.W, a.Size.H
	fillRect(screen, x, y, w, h)
	drawBox(screen, x, y, w, h)
	drawText(screen, x+2, y, len(alertTitle), alertTitle, tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true))
	drawText(screen, x+2, y+2, w-4, a.Target+" is currently offline", tcell.StyleDefault)
	for _, b := range alertButtons(a) {
		if b.bounds.Right() > x+w-1 {
			break
		}
		drawText(screen, b.bounds.X, b.bounds.Y, b.bounds.W, b.label, tcell.StyleDefault.Reverse(true))
	}
}

func drawToasts(screen tcell.Screen, width int, toasts []Toast) {
	y := headerRows
	for i := len(toasts) - 1; i >= 0; i-- {
		text := " " + toasts[i].Message + " "
		w := minInt(len([]rune(text)), width)
		drawText(screen, width-w, y, w, text, levelStyle(toasts[i].Level))
		y++
	}
}

func drawWarning(screen tcell.Screen, width, height int, w event.Warning) {
	bw := minInt(warningWidth, width-2)
	x, y := (width-bw)/2, (height-6)/2
	fillRect(screen, x, y, bw, 6)
	drawBox(screen, x, y, bw, 6)
	drawText(screen, x+2, y, bw-4, " "+w.Title+" ", tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true))
	drawText(screen, x+2, y+2, bw-4, w.Message, tcell.StyleDefault)
	drawText(screen, x+2, y+4, bw-4, "Press any key", tcell.StyleDefault.Foreground(tcell.ColorGray))
}

func drawPrompt(screen tcell.Screen, width, height int, p *Prompt) {
	bw := minInt(promptWidth, width-2)
	x, y := (width-bw)/2, (height-7)/2
	fillRect(screen, x, y, bw, 7)
	drawBox(screen, x, y, bw, 7)
	drawText(screen, x+2, y, bw-4, " Configure target ", tcell.StyleDefault.Bold(true))
	drawText(screen, x+2, y+1, bw-4, "Target (user@host):", tcell.StyleDefault)
	drawText(screen, x+2, y+2, bw-4, "> "+string(p.Input)+"_", tcell.StyleDefault.Bold(true))
	if p.Error != "" {
		drawText(screen, x+2, y+4, bw-4, p.Error, tcell.StyleDefault.Foreground(tcell.ColorRed))
	}
	drawText(screen, x+2, y+5, bw-4, "Enter to save, Esc to cancel", tcell.StyleDefault.Foreground(tcell.ColorGray))
}

func statusGlyph(status tracker.Status, checking bool) rune {
	switch {
	case checking:
		return '~'
	case status == tracker.StatusOnline:
		return '●'
	case status == tracker.StatusOffline:
		return '○'
	default:
		return '?'
	}
}

func statusStyle(status tracker.Status, checking bool) tcell.Style {
	switch {
	case checking:
		return tcell.StyleDefault.Foreground(tcell.ColorYellow)
	case status == tracker.StatusOnline:
		return tcell.StyleDefault.Foreground(tcell.ColorGreen)
	case status == tracker.StatusOffline:
		return tcell.StyleDefault.Foreground(tcell.ColorRed)
	default:
		return tcell.StyleDefault.Foreground(tcell.ColorGray)
	}
}

func levelStyle(level event.Level) tcell.Style {
	switch level {
	case event.LevelError:
		return tcell.StyleDefault.Background(tcell.ColorRed).Foreground(tcell.ColorWhite)
	case event.LevelWarning:
		return tcell.StyleDefault.Background(tcell.ColorYellow).Foreground(tcell.ColorBlack)
	default:
		return tcell.StyleDefault.Reverse(true)
	}
}

func drawBox(screen tcell.Screen, x, y, width, height int) {
	if width < 2 || height < 2 {
		return
	}
	right := x + width - 1
	bottom := y + height - 1

	setCell(screen, x, y, '+', tcell.StyleDefault)
	setCell(screen, right, y, '+', tcell.StyleDefault)
	setCell(screen, x, bottom, '+', tcell.StyleDefault)
	setCell(screen, right, bottom, '+', tcell.StyleDefault)

	for col := x + 1; col < right; col++ {
		setCell(screen, col, y, '-', tcell.StyleDefault)
		setCell(screen, col, bottom, '-', tcell.StyleDefault)
	}
	for row := y + 1; row < bottom; row++ {
		setCell(screen, x, row, '|', tcell.StyleDefault)
		setCell(screen, right, row, '|', tcell.StyleDefault)
	}
}

func fillRect(screen tcell.Screen, x, y, width, height int) {
	for row := y; row < y+height; row++ {
		for col := x; col < x+width; col++ {
			setCell(screen, col, row, ' ', tcell.StyleDefault)
		}
	}
}

func drawText(screen tcell.Screen, x, y, width int, text string, style tcell.Style) {
	drawStyledText(screen, x, y, width, []styledRune{{r: []rune(padOrTrim(text, width)), style: style}})
}

type styledRune struct {
	r     []rune
	style tcell.Style
}

func drawStyledText(screen tcell.Screen, x, y, width int, parts []styledRune) {
	if width <= 0 {
		return
	}
	col := x
	for _, part := range parts {
		for _, r := range part.r {
			if col >= x+width {
				return
			}
			setCell(screen, col, y, r, part.style)
			col++
		}
	}
	for col < x+width {
		setCell(screen, col, y, ' ', tcell.StyleDefault)
		col++
	}
}

func setCell(screen tcell.Screen, x, y int, r rune, style tcell.Style) {
	screen.SetContent(x, y, r, nil, style)
}

func padOrTrim(value string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) > width {
		return string(runes[:width])
	}
	if len(runes) < width {
		return value + strings.Repeat(" ", width-len(runes))
	}
	return value
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
