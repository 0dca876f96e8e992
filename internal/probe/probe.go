package probe

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single probe when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Result captures a single probe outcome.
//
// Online is false for any failure. Err is only set when the probe could not
// be executed at all (missing executable, socket permission, resolve error);
// a clean "host unreachable" answer such as a non-zero ssh exit or a timeout
// leaves it nil.
type Result struct {
	Online bool
	Took   time.Duration
	Err    error
}

// Prober performs one bounded-time reachability check against target.
// Implementations fail closed: they never panic and return Online=false on
// any error.
type Prober interface {
	Probe(ctx context.Context, target string, timeout time.Duration) Result
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, target string, timeout time.Duration) Result

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, target string, timeout time.Duration) Result {
	return f(ctx, target, timeout)
}

// Mode selects a probe implementation.
type Mode string

const (
	ModeSSH  Mode = "ssh"
	ModeICMP Mode = "icmp"
	ModePing Mode = "ping"
)

// ParseMode validates a probe mode string. Empty selects ssh.
func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case "", ModeSSH:
		return ModeSSH, nil
	case ModeICMP:
		return ModeICMP, nil
	case ModePing:
		return ModePing, nil
	default:
		return "", fmt.Errorf("unknown probe mode %q (want ssh, icmp or ping)", value)
	}
}

// New builds the prober for mode.
func New(mode Mode) (Prober, error) {
	switch mode {
	case "", ModeSSH:
		return NewSSHProber(), nil
	case ModeICMP:
		icmpProber, err := NewICMPProber()
		if err != nil {
			return nil, err
		}
		return NewFallbackProber(icmpProber, NewPingProber()), nil
	case ModePing:
		return NewPingProber(), nil
	default:
		return nil, fmt.Errorf("unknown probe mode %q", mode)
	}
}

func offline(start time.Time) Result {
	return Result{Online: false, Took: time.Since(start)}
}

func failed(start time.Time, err error) Result {
	return Result{Online: false, Took: time.Since(start), Err: err}
}

// interrupted maps an ended caller context to a result. A passed deadline is
// a plain offline answer; a cancellation carries its cause.
func interrupted(start time.Time, err error) Result {
	if errors.Is(err, context.DeadlineExceeded) {
		return offline(start)
	}
	return failed(start, err)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
