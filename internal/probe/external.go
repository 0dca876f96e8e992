package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"time"
)

// PingProber invokes the system ping command for environments without raw
// socket access. Only the host part of the target is used.
type PingProber struct{}

// NewPingProber returns a prober that shells out to ping.
func NewPingProber() *PingProber {
	return &PingProber{}
}

// Probe sends a single echo request with the system ping command.
func (p *PingProber) Probe(ctx context.Context, target string, timeout time.Duration) Result {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return interrupted(start, err)
	}
	parsed, err := ParseTarget(target)
	if err != nil {
		return failed(start, err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout+time.Second)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, "ping", pingArgs(parsed.Host, timeout)...)
	cmd.WaitDelay = killGrace
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return failed(start, fmt.Errorf("ping executable not found: %w", err))
		}
		if err := ctx.Err(); err != nil {
			return interrupted(start, err)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) || probeCtx.Err() != nil {
			return offline(start)
		}
		return failed(start, fmt.Errorf("external ping failed: %w", err))
	}
	return Result{Online: true, Took: time.Since(start)}
}

func pingArgs(addr string, timeout time.Duration) []string {
	switch runtime.GOOS {
	case "darwin":
		timeoutMs := maxInt(100, int(timeout.Milliseconds()))
		return []string{"-n", "-c", "1", "-W", strconv.Itoa(timeoutMs), addr}
	case "windows":
		timeoutMs := maxInt(100, int(timeout.Milliseconds()))
		return []string{"-n", "1", "-w", strconv.Itoa(timeoutMs), addr}
	default:
		timeoutSec := maxInt(1, int(timeout.Seconds()+0.5))
		return []string{"-n", "-c", "1", "-W", strconv.Itoa(timeoutSec), addr}
	}
}
