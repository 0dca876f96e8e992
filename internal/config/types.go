package config

import (
	"time"

	"github.com/doridoridoriand/picheck/internal/probe"
)

// DefaultTarget is written to a fresh store on first run.
const DefaultTarget = "pi@raspberrypi.local"

// DefaultNATSSubject prefixes relayed event subjects.
const DefaultNATSSubject = "picheck"

// Settings is the effective configuration handed to the agent at construction.
type Settings struct {
	Target        string
	Autostart     bool
	Interval      time.Duration
	Timeout       time.Duration
	ProbeMode     probe.Mode
	MetricsListen string
	NATSURL       string
	NATSSubject   string
	UIDisable     bool
	LogLevel      string
}

// CLIOverrides holds optional CLI values that override config file values.
type CLIOverrides struct {
	Target        *string
	Interval      *time.Duration
	Timeout       *time.Duration
	ProbeMode     *string
	MetricsListen *string
	NATSURL       *string
	UIDisable     *bool
	LogLevel      *string
}

// fileSettings is the on-disk shape. Durations are strings such as "1h".
type fileSettings struct {
	Target        string `yaml:"target" toml:"target"`
	Autostart     bool   `yaml:"autostart" toml:"autostart"`
	Interval      string `yaml:"interval,omitempty" toml:"interval,omitempty"`
	Timeout       string `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	Probe         string `yaml:"probe,omitempty" toml:"probe,omitempty"`
	MetricsListen string `yaml:"metrics_listen,omitempty" toml:"metrics_listen,omitempty"`
	NATSURL       string `yaml:"nats_url,omitempty" toml:"nats_url,omitempty"`
	NATSSubject   string `yaml:"nats_subject,omitempty" toml:"nats_subject,omitempty"`
	UIDisable     bool   `yaml:"ui_disable,omitempty" toml:"ui_disable,omitempty"`
	LogLevel      string `yaml:"log_level,omitempty" toml:"log_level,omitempty"`
}

// DefaultSettings returns baseline settings used before file values and
// overrides. Target is left empty so a fresh store can be detected.
func DefaultSettings() Settings {
	return Settings{
		Interval:    time.Hour,
		Timeout:     probe.DefaultTimeout,
		ProbeMode:   probe.ModeSSH,
		NATSSubject: DefaultNATSSubject,
		LogLevel:    "info",
	}
}
