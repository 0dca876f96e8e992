package cli

import (
	"errors"
	"flag"
	"strconv"
	"strings"
	"time"

	"github.com/doridoridoriand/picheck/internal/config"
	"github.com/doridoridoriand/picheck/internal/probe"
)

// OptionalDuration records a duration flag and whether it was set.
type OptionalDuration struct {
	value time.Duration
	set   bool
}

func (o *OptionalDuration) Set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *OptionalDuration) String() string {
	if !o.set {
		return ""
	}
	return o.value.String()
}

func (o *OptionalDuration) Value() (time.Duration, bool) {
	return o.value, o.set
}

// OptionalString records a string flag and whether it was set.
type OptionalString struct {
	value string
	set   bool
}

func (o *OptionalString) Set(s string) error {
	o.value = s
	o.set = true
	return nil
}

func (o *OptionalString) String() string {
	if !o.set {
		return ""
	}
	return o.value
}

func (o *OptionalString) Value() (string, bool) {
	return o.value, o.set
}

// OptionalBool records a bool flag and whether it was set.
type OptionalBool struct {
	value bool
	set   bool
}

func (o *OptionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *OptionalBool) String() string {
	if !o.set {
		return ""
	}
	if o.value {
		return "true"
	}
	return "false"
}

func (o *OptionalBool) IsBoolFlag() bool {
	return true
}

func (o *OptionalBool) Value() (bool, bool) {
	return o.value, o.set
}

// OptionalProbeMode records a --probe flag, rejecting unknown modes at parse time.
type OptionalProbeMode struct {
	value probe.Mode
	set   bool
}

func (o *OptionalProbeMode) Set(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("probe mode must not be empty")
	}
	mode, err := probe.ParseMode(strings.ToLower(s))
	if err != nil {
		return err
	}
	o.value = mode
	o.set = true
	return nil
}

func (o *OptionalProbeMode) String() string {
	if !o.set {
		return ""
	}
	return string(o.value)
}

func (o *OptionalProbeMode) Value() (probe.Mode, bool) {
	return o.value, o.set
}

// Flags is the picheck command line.
type Flags struct {
	ConfigPath    string
	Target        OptionalString
	Interval      OptionalDuration
	Timeout       OptionalDuration
	Probe         OptionalProbeMode
	MetricsListen OptionalString
	NATSURL       OptionalString
	NoUI          OptionalBool
	LogLevel      OptionalString
	Version       bool
}

// Register binds every flag to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", "", "settings file (.yaml or .toml; default <user config dir>/picheck/config.yaml)")
	fs.Var(&f.Target, "target", "target to monitor, user@host[:port] (override config)")
	fs.Var(&f.Interval, "interval", "check interval (override config)")
	fs.Var(&f.Interval, "i", "check interval (override config)")
	fs.Var(&f.Timeout, "timeout", "probe timeout (override config)")
	fs.Var(&f.Timeout, "t", "probe timeout (override config)")
	fs.Var(&f.Probe, "probe", "probe mode: ssh|icmp|ping")
	fs.Var(&f.MetricsListen, "metrics-listen", "metrics listen address (e.g. :9100)")
	fs.Var(&f.NATSURL, "nats-url", "relay events to this NATS server")
	fs.Var(&f.NoUI, "no-ui", "disable TUI (log only)")
	fs.Var(&f.LogLevel, "log-level", "log level: debug|info|warn|error")
	fs.BoolVar(&f.Version, "version", false, "show version")
	fs.BoolVar(&f.Version, "v", false, "show version")
}

// Overrides converts the set flags into config overrides.
func (f *Flags) Overrides() config.CLIOverrides {
	overrides := config.CLIOverrides{}

	if v, ok := f.Target.Value(); ok && strings.TrimSpace(v) != "" {
		value := v
		overrides.Target = &value
	}
	if v, ok := f.Interval.Value(); ok {
		value := v
		overrides.Interval = &value
	}
	if v, ok := f.Timeout.Value(); ok {
		value := v
		overrides.Timeout = &value
	}
	if v, ok := f.Probe.Value(); ok {
		value := string(v)
		overrides.ProbeMode = &value
	}
	if v, ok := f.MetricsListen.Value(); ok && v != "" {
		value := v
		overrides.MetricsListen = &value
	}
	if v, ok := f.NATSURL.Value(); ok && v != "" {
		value := v
		overrides.NATSURL = &value
	}
	if v, ok := f.NoUI.Value(); ok {
		value := v
		overrides.UIDisable = &value
	}
	if v, ok := f.LogLevel.Value(); ok && v != "" {
		value := v
		overrides.LogLevel = &value
	}

	return overrides
}
