package probe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"time"
)

const killGrace = 2 * time.Second

// SSHProber checks reachability by opening a non-interactive ssh session and
// running "exit" on the remote side. Exit status 0 means online.
type SSHProber struct {
	Binary string
}

// NewSSHProber returns a prober using the ssh binary from PATH.
func NewSSHProber() *SSHProber {
	return &SSHProber{Binary: "ssh"}
}

// Probe runs ssh against target and kills it once timeout elapses.
func (p *SSHProber) Probe(ctx context.Context, target string, timeout time.Duration) Result {
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

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, p.binary(), sshArgs(parsed, timeout)...)
	cmd.WaitDelay = killGrace
	err = cmd.Run()
	if err == nil {
		return Result{Online: true, Took: time.Since(start)}
	}

	if errors.Is(err, exec.ErrNotFound) {
		return failed(start, fmt.Errorf("ssh executable not found: %w", err))
	}
	if probeCtx.Err() != nil {
		return interrupted(start, probeCtx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return offline(start)
	}
	return failed(start, fmt.Errorf("ssh probe failed: %w", err))
}

func (p *SSHProber) binary() string {
	if p.Binary == "" {
		return "ssh"
	}
	return p.Binary
}

func sshArgs(target Target, timeout time.Duration) []string {
	connectTimeout := maxInt(1, int(math.Round(timeout.Seconds())))
	args := []string{
		"-o", "ConnectTimeout=" + strconv.Itoa(connectTimeout),
		"-o", "BatchMode=yes",
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "LogLevel=QUIET",
	}
	if target.Port != 0 {
		args = append(args, "-p", strconv.Itoa(target.Port))
	}
	return append(args, "--", target.Destination(), "exit")
}

// SSHAvailable reports whether an ssh client can be executed ("ssh -V").
func SSHAvailable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, "ssh", "-V").Run(); err != nil {
		return fmt.Errorf("ssh client unavailable: %w", err)
	}
	return nil
}
