package tracker

import (
	"testing"
	"time"

	"github.com/doridoridoriand/picheck/internal/probe"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestPropertyTransitionIdempotence(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	props := gopter.NewProperties(params)

	props.Property("identical consecutive results never change status twice", prop.ForAll(
		func(results []bool) bool {
			if len(results) == 0 {
				return true
			}
			tr := New(time.Hour)
			_, _ = tr.Activate("a@h1")

			changed := 0
			for i, online := range results {
				got, err := tr.Evaluate("a@h1", probe.Result{Online: online})
				if err != nil {
					return false
				}
				if i > 0 && results[i-1] == online && got.Kind != NoChange {
					return false
				}
				if got.Changed() {
					changed++
				}
			}

			flips := 0
			for i := 1; i < len(results); i++ {
				if results[i] != results[i-1] {
					flips++
				}
			}
			return changed == flips+1
		},
		gen.SliceOf(gen.Bool()),
	))

	props.Property("first observation happens exactly once per activation", prop.ForAll(
		func(results []bool, reactivateAt int) bool {
			tr := New(time.Hour)
			_, _ = tr.Activate("a@h1")
			target := "a@h1"

			firsts := 0
			for i, online := range results {
				if i == reactivateAt {
					target = "b@h2"
					_, _ = tr.Activate(target)
				}
				got, err := tr.Evaluate(target, probe.Result{Online: online})
				if err != nil {
					return false
				}
				if got.Kind == FirstObservation {
					firsts++
				}
			}
			want := 0
			if len(results) > 0 {
				want = 1
			}
			if reactivateAt > 0 && reactivateAt < len(results) {
				want = 2
			}
			return firsts == want
		},
		gen.SliceOf(gen.Bool()),
		gen.IntRange(0, 20),
	))

	props.Property("alerts are raised only for offline transitions", prop.ForAll(
		func(results []bool) bool {
			tr := New(time.Hour)
			_, _ = tr.Activate("a@h1")
			for _, online := range results {
				got, _ := tr.Evaluate("a@h1", probe.Result{Online: online})
				if got.RaisesAlert() && got.Online {
					return false
				}
				if got.Toast() && got.Kind == FirstObservation {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Bool()),
	))

	props.TestingRun(t)
}
