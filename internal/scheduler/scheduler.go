// Package scheduler runs the probe loop: an immediate check, a fixed
// interval after every completion, forced checks on demand and at most one
// probe in flight. The loop goroutine is the only place core state changes;
// other goroutines reach it through Do.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/doridoridoriand/picheck/internal/log"
	"github.com/doridoridoriand/picheck/internal/probe"
)

const defaultInterval = time.Hour

var (
	// ErrNotRunning is returned when a call needs the loop and Run is not active.
	ErrNotRunning = errors.New("scheduler not running")
	errRunning    = errors.New("scheduler already running")
)

// Options controls timing.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
}

func (o Options) normalized() Options {
	if o.Interval <= 0 {
		o.Interval = defaultInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = probe.DefaultTimeout
	}
	return o
}

// Completion is one finished probe.
type Completion struct {
	Target   string
	Forced   bool
	Result   probe.Result
	Started  time.Time
	Finished time.Time
}

// Handler receives probe lifecycle callbacks. Both methods run on the loop
// goroutine, one at a time.
type Handler interface {
	ProbeStarted(target string, forced bool)
	ProbeCompleted(c Completion)
}

// Scheduler drives the single target's probes.
type Scheduler struct {
	prober  probe.Prober
	handler Handler
	logger  *log.Logger

	mu      sync.RWMutex
	opts    Options
	target  string
	running bool
	done    chan struct{}
	cancel  context.CancelFunc

	forceCh    chan chan bool
	retargetCh chan string
	timingCh   chan struct{}
	doCh       chan func()

	inFlight atomic.Bool
	wg       sync.WaitGroup
}

// New constructs a scheduler. Retarget sets the target before or during Run.
func New(opts Options, prober probe.Prober, handler Handler, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Discard()
	}
	return &Scheduler{
		prober:     prober,
		handler:    handler,
		logger:     logger,
		opts:       opts.normalized(),
		forceCh:    make(chan chan bool),
		retargetCh: make(chan string),
		timingCh:   make(chan struct{}, 1),
		doCh:       make(chan func()),
	}
}

type flight struct {
	target string
	forced bool
	cancel context.CancelFunc
}

// Run blocks until ctx is cancelled or Stop is called. The first check is
// issued immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	target := s.target
	done := s.done
	s.mu.Unlock()

	defer func() {
		cancel()
		s.wg.Wait()
		s.inFlight.Store(false)
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		close(done)
		s.mu.Unlock()
	}()

	results := make(chan Completion, 1)
	timer := time.NewTimer(0)
	defer timer.Stop()

	var (
		current  *flight
		pending  bool
		lastDone time.Time
	)

	start := func(forced bool) {
		if target == "" {
			return
		}
		timer.Stop()
		probeCtx, probeCancel := context.WithCancel(runCtx)
		current = &flight{target: target, forced: forced, cancel: probeCancel}
		s.inFlight.Store(true)
		s.handler.ProbeStarted(target, forced)
		s.wg.Add(1)
		go s.execute(probeCtx, target, forced, results)
	}

	for {
		select {
		case <-runCtx.Done():
			if current != nil {
				current.cancel()
			}
			return runCtx.Err()

		case <-timer.C:
			if current == nil {
				start(false)
			}

		case reply := <-s.forceCh:
			if current != nil || target == "" {
				s.logger.Debug("force check coalesced", map[string]interface{}{"target": target})
				reply <- false
				continue
			}
			start(true)
			reply <- true

		case next := <-s.retargetCh:
			if next == target {
				continue
			}
			target = next
			if current != nil {
				current.cancel()
				pending = true
				continue
			}
			start(true)

		case <-s.timingCh:
			if current != nil {
				continue
			}
			wait := time.Duration(0)
			if !lastDone.IsZero() {
				wait = time.Until(lastDone.Add(s.Options().Interval))
			}
			timer.Reset(max(wait, 0))

		case fn := <-s.doCh:
			fn()

		case c := <-results:
			current.cancel()
			current = nil
			s.inFlight.Store(false)
			lastDone = c.Finished
			s.handler.ProbeCompleted(c)
			if pending {
				pending = false
				start(true)
				continue
			}
			timer.Reset(s.Options().Interval)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, target string, forced bool, results chan<- Completion) {
	defer s.wg.Done()
	timeout := s.Options().Timeout
	c := Completion{Target: target, Forced: forced, Started: time.Now()}
	c.Result = s.probeOnce(ctx, target, timeout)
	c.Finished = time.Now()
	results <- c
}

// probeOnce never panics; a panicking prober yields offline with a diagnostic.
func (s *Scheduler) probeOnce(ctx context.Context, target string, timeout time.Duration) (result probe.Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("probe panicked", map[string]interface{}{
				"target": target,
				"panic":  fmt.Sprint(r),
			})
			result = probe.Result{Online: false, Took: time.Since(start), Err: fmt.Errorf("probe panicked: %v", r)}
		}
	}()
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.prober.Probe(probeCtx, target, timeout)
}

// ForceCheck asks for an immediate probe. It returns false when the call was
// coalesced into a probe already in flight, or when the loop is not running.
func (s *Scheduler) ForceCheck() bool {
	done, ok := s.loopDone()
	if !ok {
		return false
	}
	reply := make(chan bool, 1)
	select {
	case s.forceCh <- reply:
	case <-done:
		return false
	}
	select {
	case issued := <-reply:
		return issued
	case <-done:
		return false
	}
}

// Retarget switches the probed target. An in-flight probe for the previous
// target is cancelled and the new target is probed as soon as it returns.
// It must not be called from inside Do.
func (s *Scheduler) Retarget(target string) {
	s.mu.Lock()
	s.target = target
	running, done := s.running, s.done
	s.mu.Unlock()
	if !running {
		return
	}
	select {
	case s.retargetCh <- target:
	case <-done:
	}
}

// Target returns the target the scheduler probes.
func (s *Scheduler) Target() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target
}

// UpdateTiming changes interval and timeout. The next periodic check is
// recomputed from the last completion; the timeout applies from the next probe.
func (s *Scheduler) UpdateTiming(interval, timeout time.Duration) {
	s.mu.Lock()
	s.opts = Options{Interval: interval, Timeout: timeout}.normalized()
	s.mu.Unlock()
	select {
	case s.timingCh <- struct{}{}:
	default:
	}
}

// Options returns the current timing.
func (s *Scheduler) Options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

// Do runs fn on the loop goroutine and waits for it to return. It must not be
// called from the loop itself (including Handler callbacks).
func (s *Scheduler) Do(ctx context.Context, fn func()) error {
	done, ok := s.loopDone()
	if !ok {
		return ErrNotRunning
	}
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case s.doCh <- wrapped:
	case <-done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// InFlight reports whether a probe is running.
func (s *Scheduler) InFlight() bool {
	return s.inFlight.Load()
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Stop cancels the loop and any in-flight probe.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed when the current Run returns. It returns nil before Run.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

func (s *Scheduler) loopDone() (<-chan struct{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done, s.running
}
