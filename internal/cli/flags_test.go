package cli

import (
	"flag"
	"io"
	"testing"
	"time"

	"github.com/doridoridoriand/picheck/internal/probe"
)

func TestOptionalDuration(t *testing.T) {
	var d OptionalDuration
	if d.String() != "" {
		t.Fatalf("expected empty string for unset duration")
	}
	if _, ok := d.Value(); ok {
		t.Fatalf("expected unset duration to report false")
	}
	if err := d.Set("250ms"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "250ms" {
		t.Fatalf("expected duration string to be 250ms, got %q", d.String())
	}
	if v, ok := d.Value(); !ok || v != 250*time.Millisecond {
		t.Fatalf("expected duration value 250ms, got %v (ok=%v)", v, ok)
	}
}

func TestOptionalDurationInvalid(t *testing.T) {
	var d OptionalDuration
	if err := d.Set("bad"); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
	if _, ok := d.Value(); ok {
		t.Fatalf("expected invalid duration to remain unset")
	}
}

func TestOptionalString(t *testing.T) {
	var s OptionalString
	if s.String() != "" {
		t.Fatalf("expected empty string for unset string")
	}
	if _, ok := s.Value(); ok {
		t.Fatalf("expected unset string to report false")
	}
	if err := s.Set("pi@raspberrypi.local"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := s.Value(); !ok || v != "pi@raspberrypi.local" {
		t.Fatalf("unexpected string value %q (ok=%v)", v, ok)
	}
}

func TestOptionalBool(t *testing.T) {
	var b OptionalBool
	if b.String() != "" {
		t.Fatalf("expected empty string for unset bool")
	}
	if !b.IsBoolFlag() {
		t.Fatalf("expected IsBoolFlag to return true")
	}
	if err := b.Set("true"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.String() != "true" {
		t.Fatalf("expected bool string to be true, got %q", b.String())
	}
	if v, ok := b.Value(); !ok || !v {
		t.Fatalf("expected bool value true, got %v (ok=%v)", v, ok)
	}
	if err := b.Set("bad"); err == nil {
		t.Fatalf("expected error for invalid bool")
	}
}

func TestOptionalProbeMode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected probe.Mode
		wantErr  bool
	}{
		{name: "ssh", input: "ssh", expected: probe.ModeSSH},
		{name: "icmp upper case", input: "ICMP", expected: probe.ModeICMP},
		{name: "ping", input: "ping", expected: probe.ModePing},
		{name: "invalid", input: "telnet", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m OptionalProbeMode
			if m.String() != "" {
				t.Fatalf("expected empty string for unset mode")
			}
			err := m.Set(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for input %q", tt.input)
				}
				if _, ok := m.Value(); ok {
					t.Fatalf("expected mode to remain unset after error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for input %q: %v", tt.input, err)
			}
			if v, ok := m.Value(); !ok || v != tt.expected {
				t.Fatalf("expected mode %q, got %q (ok=%v)", tt.expected, v, ok)
			}
		})
	}
}

func parseFlags(t *testing.T, args ...string) *Flags {
	t.Helper()
	fs := flag.NewFlagSet("picheck", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var f Flags
	f.Register(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return &f
}

func TestOverridesOnlyContainSetFlags(t *testing.T) {
	f := parseFlags(t)
	o := f.Overrides()
	if o.Target != nil || o.Interval != nil || o.Timeout != nil || o.ProbeMode != nil ||
		o.MetricsListen != nil || o.NATSURL != nil || o.UIDisable != nil || o.LogLevel != nil {
		t.Fatalf("expected no overrides, got %+v", o)
	}
}

func TestOverridesFromFlags(t *testing.T) {
	f := parseFlags(t,
		"--config", "/tmp/picheck.toml",
		"--target", "bob@10.0.0.7",
		"-i", "5m",
		"-t", "3s",
		"--probe", "icmp",
		"--metrics-listen", ":9100",
		"--nats-url", "nats://localhost:4222",
		"--no-ui",
		"--log-level", "debug",
	)
	if f.ConfigPath != "/tmp/picheck.toml" {
		t.Fatalf("unexpected config path %q", f.ConfigPath)
	}
	o := f.Overrides()
	if o.Target == nil || *o.Target != "bob@10.0.0.7" {
		t.Fatalf("unexpected target override %v", o.Target)
	}
	if o.Interval == nil || *o.Interval != 5*time.Minute {
		t.Fatalf("unexpected interval override %v", o.Interval)
	}
	if o.Timeout == nil || *o.Timeout != 3*time.Second {
		t.Fatalf("unexpected timeout override %v", o.Timeout)
	}
	if o.ProbeMode == nil || *o.ProbeMode != "icmp" {
		t.Fatalf("unexpected probe override %v", o.ProbeMode)
	}
	if o.MetricsListen == nil || *o.MetricsListen != ":9100" {
		t.Fatalf("unexpected metrics override %v", o.MetricsListen)
	}
	if o.NATSURL == nil || *o.NATSURL != "nats://localhost:4222" {
		t.Fatalf("unexpected nats override %v", o.NATSURL)
	}
	if o.UIDisable == nil || !*o.UIDisable {
		t.Fatalf("expected --no-ui override")
	}
	if o.LogLevel == nil || *o.LogLevel != "debug" {
		t.Fatalf("unexpected log level override %v", o.LogLevel)
	}
}

func TestVersionFlags(t *testing.T) {
	if !parseFlags(t, "-v").Version || !parseFlags(t, "--version").Version {
		t.Fatalf("expected both version flags to be recognized")
	}
}

func TestInvalidProbeFlagFailsParse(t *testing.T) {
	fs := flag.NewFlagSet("picheck", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var f Flags
	f.Register(fs)
	if err := fs.Parse([]string{"--probe", "carrier-pigeon"}); err == nil {
		t.Fatalf("expected parse error")
	}
}
