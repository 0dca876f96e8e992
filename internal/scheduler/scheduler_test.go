package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/doridoridoriand/picheck/internal/probe"
)

const waitLimit = 2 * time.Second

type recordingHandler struct {
	mu          sync.Mutex
	started     []string
	forced      []bool
	completions []Completion
	startedCh   chan string
	completedCh chan Completion
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		startedCh:   make(chan string, 64),
		completedCh: make(chan Completion, 64),
	}
}

func (h *recordingHandler) ProbeStarted(target string, forced bool) {
	h.mu.Lock()
	h.started = append(h.started, target)
	h.forced = append(h.forced, forced)
	h.mu.Unlock()
	h.startedCh <- target
}

func (h *recordingHandler) ProbeCompleted(c Completion) {
	h.mu.Lock()
	h.completions = append(h.completions, c)
	h.mu.Unlock()
	h.completedCh <- c
}

func (h *recordingHandler) waitStarted(t *testing.T) string {
	t.Helper()
	select {
	case target := <-h.startedCh:
		return target
	case <-time.After(waitLimit):
		t.Fatalf("timeout waiting for probe start")
		return ""
	}
}

func (h *recordingHandler) waitCompleted(t *testing.T) Completion {
	t.Helper()
	select {
	case c := <-h.completedCh:
		return c
	case <-time.After(waitLimit):
		t.Fatalf("timeout waiting for probe completion")
		return Completion{}
	}
}

// gateProber blocks every probe until release is signalled or ctx ends.
type gateProber struct {
	inFlight int32
	max      int32
	calls    int32
	release  chan bool
}

func newGateProber() *gateProber {
	return &gateProber{release: make(chan bool, 16)}
}

func (p *gateProber) Probe(ctx context.Context, target string, timeout time.Duration) probe.Result {
	atomic.AddInt32(&p.calls, 1)
	current := atomic.AddInt32(&p.inFlight, 1)
	defer atomic.AddInt32(&p.inFlight, -1)
	for {
		max := atomic.LoadInt32(&p.max)
		if current <= max || atomic.CompareAndSwapInt32(&p.max, max, current) {
			break
		}
	}
	select {
	case online := <-p.release:
		return probe.Result{Online: online}
	case <-ctx.Done():
		return probe.Result{Online: false, Err: ctx.Err()}
	}
}

func runScheduler(t *testing.T, s *Scheduler) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(waitLimit):
			t.Errorf("scheduler did not stop")
		}
	})
	return cancel
}

func TestSchedulerInitialCheckIsImmediate(t *testing.T) {
	h := newRecordingHandler()
	prober := probe.ProberFunc(func(ctx context.Context, target string, timeout time.Duration) probe.Result {
		return probe.Result{Online: true}
	})
	s := New(Options{Interval: time.Hour, Timeout: time.Second}, prober, h, nil)
	s.Retarget("a@h1")
	runScheduler(t, s)

	c := h.waitCompleted(t)
	if c.Target != "a@h1" || !c.Result.Online || c.Forced {
		t.Fatalf("unexpected completion: %+v", c)
	}
	if c.Finished.Before(c.Started) {
		t.Fatalf("completion finished before it started")
	}
}

func TestSchedulerForceCheckCoalescedWhileInFlight(t *testing.T) {
	h := newRecordingHandler()
	prober := newGateProber()
	s := New(Options{Interval: time.Hour, Timeout: time.Minute}, prober, h, nil)
	s.Retarget("a@h1")
	runScheduler(t, s)

	h.waitStarted(t)
	if !s.InFlight() {
		t.Fatalf("expected a probe in flight")
	}
	if s.ForceCheck() {
		t.Fatalf("expected force check to be coalesced")
	}

	prober.release <- false
	h.waitCompleted(t)

	if !s.ForceCheck() {
		t.Fatalf("expected force check to start a probe when idle")
	}
	h.waitStarted(t)
	prober.release <- true
	c := h.waitCompleted(t)
	if !c.Forced || !c.Result.Online {
		t.Fatalf("unexpected forced completion: %+v", c)
	}
	if max := atomic.LoadInt32(&prober.max); max != 1 {
		t.Fatalf("expected at most one probe in flight, got %d", max)
	}
	if calls := atomic.LoadInt32(&prober.calls); calls != 2 {
		t.Fatalf("expected 2 probes, got %d", calls)
	}
}

func TestSchedulerRetargetCancelsInFlightProbe(t *testing.T) {
	h := newRecordingHandler()
	prober := newGateProber()
	s := New(Options{Interval: time.Hour, Timeout: time.Minute}, prober, h, nil)
	s.Retarget("a@h1")
	runScheduler(t, s)

	if got := h.waitStarted(t); got != "a@h1" {
		t.Fatalf("expected a@h1 first, got %s", got)
	}
	s.Retarget("b@h2")

	first := h.waitCompleted(t)
	if first.Target != "a@h1" || !errors.Is(first.Result.Err, context.Canceled) {
		t.Fatalf("expected cancelled probe for a@h1, got %+v", first)
	}
	if got := h.waitStarted(t); got != "b@h2" {
		t.Fatalf("expected b@h2 next, got %s", got)
	}
	prober.release <- true
	second := h.waitCompleted(t)
	if second.Target != "b@h2" || !second.Result.Online {
		t.Fatalf("unexpected completion: %+v", second)
	}
	if s.Target() != "b@h2" {
		t.Fatalf("expected target b@h2, got %s", s.Target())
	}
}

func TestSchedulerRetargetWhileIdleChecksImmediately(t *testing.T) {
	h := newRecordingHandler()
	prober := probe.ProberFunc(func(ctx context.Context, target string, timeout time.Duration) probe.Result {
		return probe.Result{Online: target == "b@h2"}
	})
	s := New(Options{Interval: time.Hour, Timeout: time.Second}, prober, h, nil)
	s.Retarget("a@h1")
	runScheduler(t, s)
	h.waitCompleted(t)

	s.Retarget("b@h2")
	c := h.waitCompleted(t)
	if c.Target != "b@h2" || !c.Result.Online || !c.Forced {
		t.Fatalf("unexpected completion: %+v", c)
	}
}

func TestSchedulerWithoutTargetStaysIdle(t *testing.T) {
	h := newRecordingHandler()
	prober := probe.ProberFunc(func(ctx context.Context, target string, timeout time.Duration) probe.Result {
		return probe.Result{Online: true}
	})
	s := New(Options{Interval: time.Hour}, prober, h, nil)
	runScheduler(t, s)

	waitRunning(t, s)
	if s.ForceCheck() {
		t.Fatalf("expected no probe without a target")
	}
	s.Retarget("a@h1")
	if got := h.waitStarted(t); got != "a@h1" {
		t.Fatalf("expected probe for a@h1, got %s", got)
	}
}

func TestSchedulerPanickingProberYieldsOffline(t *testing.T) {
	h := newRecordingHandler()
	prober := probe.ProberFunc(func(ctx context.Context, target string, timeout time.Duration) probe.Result {
		panic("boom")
	})
	s := New(Options{Interval: time.Hour, Timeout: time.Second}, prober, h, nil)
	s.Retarget("a@h1")
	runScheduler(t, s)

	c := h.waitCompleted(t)
	if c.Result.Online || c.Result.Err == nil {
		t.Fatalf("expected offline with diagnostic, got %+v", c.Result)
	}
	if !s.ForceCheck() {
		t.Fatalf("expected the loop to keep running after a panic")
	}
	h.waitCompleted(t)
}

func TestSchedulerTimeoutIsCleanOffline(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not available on windows")
	}
	script := filepath.Join(t.TempDir(), "fake-ssh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexec sleep 5\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	h := newRecordingHandler()
	s := New(Options{Interval: time.Hour, Timeout: 200 * time.Millisecond}, &probe.SSHProber{Binary: script}, h, nil)
	s.Retarget("a@h1")
	runScheduler(t, s)

	c := h.waitCompleted(t)
	if c.Result.Online || c.Result.Err != nil {
		t.Fatalf("expected a timed out probe to be a clean offline, got %+v", c.Result)
	}
	if took := c.Finished.Sub(c.Started); took > 3*time.Second {
		t.Fatalf("expected the probe to be bounded by its timeout, took %v", took)
	}
}

func TestSchedulerUpdateTimingReschedules(t *testing.T) {
	h := newRecordingHandler()
	prober := probe.ProberFunc(func(ctx context.Context, target string, timeout time.Duration) probe.Result {
		return probe.Result{Online: true}
	})
	s := New(Options{Interval: time.Hour, Timeout: time.Second}, prober, h, nil)
	s.Retarget("a@h1")
	runScheduler(t, s)
	h.waitCompleted(t)

	s.UpdateTiming(10*time.Millisecond, time.Second)
	c := h.waitCompleted(t)
	if c.Forced {
		t.Fatalf("expected a periodic probe after shortening the interval")
	}
	if got := s.Options(); got.Interval != 10*time.Millisecond || got.Timeout != time.Second {
		t.Fatalf("unexpected options: %+v", got)
	}
}

func TestSchedulerUpdateTimingNormalizes(t *testing.T) {
	s := New(Options{}, nil, newRecordingHandler(), nil)
	if got := s.Options(); got.Interval != time.Hour || got.Timeout != probe.DefaultTimeout {
		t.Fatalf("unexpected defaults: %+v", got)
	}
	s.UpdateTiming(-time.Second, 0)
	if got := s.Options(); got.Interval != time.Hour || got.Timeout != probe.DefaultTimeout {
		t.Fatalf("expected invalid timing to fall back to defaults, got %+v", got)
	}
}

func TestSchedulerDo(t *testing.T) {
	h := newRecordingHandler()
	s := New(Options{Interval: time.Hour}, nil, h, nil)

	if err := s.Do(context.Background(), func() {}); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning before Run, got %v", err)
	}

	runScheduler(t, s)
	waitRunning(t, s)

	ran := false
	if err := s.Do(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if !ran {
		t.Fatalf("expected fn to run")
	}
}

func TestSchedulerStop(t *testing.T) {
	h := newRecordingHandler()
	prober := newGateProber()
	s := New(Options{Interval: time.Hour, Timeout: time.Minute}, prober, h, nil)
	s.Retarget("a@h1")

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()
	h.waitStarted(t)

	s.Stop()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(waitLimit):
		t.Fatalf("scheduler did not stop")
	}
	if s.Running() || s.InFlight() {
		t.Fatalf("expected scheduler idle after Stop")
	}
	if err := s.Do(context.Background(), func() {}); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning after Stop, got %v", err)
	}
}

func TestSchedulerRunTwice(t *testing.T) {
	s := New(Options{Interval: time.Hour}, nil, newRecordingHandler(), nil)
	runScheduler(t, s)
	waitRunning(t, s)
	if err := s.Run(context.Background()); err == nil {
		t.Fatalf("expected second Run to fail")
	}
}

func waitRunning(t *testing.T, s *Scheduler) {
	t.Helper()
	deadline := time.Now().Add(waitLimit)
	for !s.Running() {
		if time.Now().After(deadline) {
			t.Fatalf("scheduler did not start")
		}
		time.Sleep(time.Millisecond)
	}
}
