package notify

import (
	"fmt"
	"sort"
	"testing"

	"github.com/doridoridoriand/picheck/internal/layout"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var propTargets = []string{"a@h1", "b@h2", "c@h3", "d@h4", "e@h5", "f@h6"}

// consistent reports whether set and list agree and no target is shown twice.
func consistent(r *Registry) bool {
	seen := make(map[string]bool)
	for _, rec := range r.Records() {
		if seen[rec.Target] {
			return false
		}
		seen[rec.Target] = true
		if _, ok := r.active[rec.Target]; !ok {
			return false
		}
	}
	return len(seen) == len(r.active)
}

func noOverlaps(records []Record) bool {
	for i := range records {
		for j := i + 1; j < len(records); j++ {
			if layout.Overlaps(records[i].Bounds(), records[j].Bounds()) {
				return false
			}
		}
	}
	return true
}

func TestPropertyRegistryUniqueness(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	props := gopter.NewProperties(params)

	props.Property("at most one visible alert per target", prop.ForAll(
		func(ops []int) bool {
			r := New(layout.Rect{W: 1920, H: 4000}, DesktopLayout(), nil, nil)
			for _, op := range ops {
				target := propTargets[op/4]
				switch op % 4 {
				case 0, 1:
					r.ShowOffline(target)
				case 2:
					r.Clear(target)
				case 3:
					r.Dismiss(target)
				}
				if !consistent(r) {
					return false
				}
			}
			return noOverlaps(r.Records())
		},
		gen.SliceOf(gen.IntRange(0, len(propTargets)*4-1)),
	))

	props.Property("clear all leaves set and list empty", prop.ForAll(
		func(shown []int, extra int) bool {
			r := New(layout.Rect{W: 1920, H: 4000}, DesktopLayout(), nil, nil)
			for _, i := range shown {
				r.ShowOffline(propTargets[i])
			}
			r.ClearAll()
			r.Clear(propTargets[extra])
			return r.Len() == 0 && len(r.active) == 0 && len(r.records) == 0
		},
		gen.SliceOf(gen.IntRange(0, len(propTargets)-1)),
		gen.IntRange(0, len(propTargets)-1),
	))

	props.TestingRun(t)
}

func TestPropertyRegistryRestack(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	props := gopter.NewProperties(params)

	props.Property("removing one alert leaves a contiguous stack", prop.ForAll(
		func(k, n int) bool {
			lay := DesktopLayout()
			area := layout.Rect{W: 1920, H: 4000}
			r := New(area, lay, nil, nil)
			for i := 0; i < k; i++ {
				r.ShowOffline(fmt.Sprintf("pi%d@host%d", i, i))
			}
			n = n % k
			r.Clear(fmt.Sprintf("pi%d@host%d", n, n))

			records := r.Records()
			if len(records) != k-1 || !noOverlaps(records) {
				return false
			}
			sort.Slice(records, func(i, j int) bool {
				return records[i].Position.Y > records[j].Position.Y
			})
			want := area.Bottom() - lay.Margin
			for _, rec := range records {
				if rec.Position.Y+rec.Size.H != want {
					return false
				}
				if rec.Position.X != area.Right()-lay.Size.W-lay.Margin {
					return false
				}
				want = rec.Position.Y - lay.Spacing
			}
			return true
		},
		gen.IntRange(1, 12),
		gen.IntRange(0, 100),
	))

	props.TestingRun(t)
}
