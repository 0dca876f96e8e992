package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"github.com/doridoridoriand/picheck/internal/log"
	"github.com/doridoridoriand/picheck/internal/probe"
)

// Format is the encoding of a settings file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ConfigurationError reports an unreadable or corrupt settings file.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Store reads and writes the settings file.
type Store struct {
	path   string
	format Format
}

// DefaultPath returns <user config dir>/picheck/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	return filepath.Join(dir, "picheck", "config.yaml"), nil
}

// NewStore picks the format from the file extension.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	format, err := formatFor(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, format: format}, nil
}

func formatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported config extension %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

// Path returns the file location.
func (s *Store) Path() string { return s.path }

// Format returns the file encoding.
func (s *Store) Format() Format { return s.format }

// Load reads the file on top of DefaultSettings. A missing file yields the
// defaults and no error. A file that cannot be decoded or holds values
// Validate rejects yields the defaults and a *ConfigurationError.
func (s *Store) Load() (Settings, error) {
	settings := DefaultSettings()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return settings, &ConfigurationError{Path: s.path, Err: err}
	}

	var fs fileSettings
	switch s.format {
	case FormatTOML:
		err = toml.Unmarshal(data, &fs)
	default:
		err = yaml.Unmarshal(data, &fs)
	}
	if err != nil {
		return DefaultSettings(), &ConfigurationError{Path: s.path, Err: fmt.Errorf("decode: %w", err)}
	}
	if err := applyFile(&settings, fs); err != nil {
		return DefaultSettings(), &ConfigurationError{Path: s.path, Err: err}
	}
	if err := Validate(settings); err != nil {
		return DefaultSettings(), &ConfigurationError{Path: s.path, Err: err}
	}
	return settings, nil
}

// Save writes settings atomically, keeping the previous file as <path>.bak.
func (s *Store) Save(settings Settings) error {
	fs := toFile(settings)
	var (
		data []byte
		err  error
	)
	switch s.format {
	case FormatTOML:
		data, err = toml.Marshal(fs)
	default:
		data, err = yaml.Marshal(fs)
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

// Update loads the file, applies fn and saves the result. A corrupt file is
// replaced starting from the defaults.
func (s *Store) Update(fn func(*Settings)) error {
	settings, err := s.Load()
	var cfgErr *ConfigurationError
	if err != nil && !errors.As(err, &cfgErr) {
		return err
	}
	fn(&settings)
	return s.Save(settings)
}

// Resolve loads the store, applies CLI overrides and validates the result.
// An unreadable or invalid store is logged and treated as empty; only the
// overrides can make Resolve fail. An empty target is
// initialized to DefaultTarget and saved.
func Resolve(store *Store, overrides CLIOverrides, logger *log.Logger) (Settings, error) {
	if logger == nil {
		logger = log.Discard()
	}
	settings, err := store.Load()
	if err != nil {
		logger.LogConfigLoad(false, store.Path(), err)
	} else {
		logger.LogConfigLoad(true, store.Path(), nil)
	}

	if settings.Target == "" {
		settings.Target = DefaultTarget
		if err := store.Save(settings); err != nil {
			logger.LogError("config", fmt.Errorf("save default target: %w", err), map[string]interface{}{"path": store.Path()})
		} else {
			logger.Info("initialized default target", map[string]interface{}{
				"target": settings.Target,
				"path":   store.Path(),
			})
		}
	}

	ApplyOverrides(&settings, overrides)
	if err := Validate(settings); err != nil {
		return settings, err
	}
	return settings, nil
}

// ApplyOverrides copies every set override into settings.
func ApplyOverrides(settings *Settings, overrides CLIOverrides) {
	if overrides.Target != nil {
		settings.Target = strings.TrimSpace(*overrides.Target)
	}
	if overrides.Interval != nil {
		settings.Interval = *overrides.Interval
	}
	if overrides.Timeout != nil {
		settings.Timeout = *overrides.Timeout
	}
	if overrides.ProbeMode != nil {
		settings.ProbeMode = probe.Mode(strings.ToLower(*overrides.ProbeMode))
	}
	if overrides.MetricsListen != nil {
		settings.MetricsListen = normalizeListen(*overrides.MetricsListen)
	}
	if overrides.NATSURL != nil {
		settings.NATSURL = *overrides.NATSURL
	}
	if overrides.UIDisable != nil {
		settings.UIDisable = *overrides.UIDisable
	}
	if overrides.LogLevel != nil {
		settings.LogLevel = *overrides.LogLevel
	}
}

// Validate rejects settings the agent cannot run with.
func Validate(settings Settings) error {
	if settings.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", settings.Interval)
	}
	if settings.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", settings.Timeout)
	}
	if _, err := probe.ParseMode(string(settings.ProbeMode)); err != nil {
		return err
	}
	if settings.Target != "" {
		if _, err := probe.ParseTarget(settings.Target); err != nil {
			return fmt.Errorf("invalid target: %w", err)
		}
	}
	if !validLogLevel(settings.LogLevel) {
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}
	return nil
}

func validLogLevel(value string) bool {
	switch strings.ToLower(value) {
	case "", "debug", "info", "warn", "warning", "error":
		return true
	default:
		return false
	}
}

func applyFile(settings *Settings, fs fileSettings) error {
	settings.Target = strings.TrimSpace(fs.Target)
	settings.Autostart = fs.Autostart
	if fs.Interval != "" {
		d, err := parseDuration(fs.Interval)
		if err != nil {
			return fmt.Errorf("invalid interval: %w", err)
		}
		settings.Interval = d
	}
	if fs.Timeout != "" {
		d, err := parseDuration(fs.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		settings.Timeout = d
	}
	if fs.Probe != "" {
		mode, err := probe.ParseMode(strings.ToLower(fs.Probe))
		if err != nil {
			return err
		}
		settings.ProbeMode = mode
	}
	if fs.MetricsListen != "" {
		settings.MetricsListen = normalizeListen(fs.MetricsListen)
	}
	settings.NATSURL = fs.NATSURL
	if fs.NATSSubject != "" {
		settings.NATSSubject = fs.NATSSubject
	}
	settings.UIDisable = fs.UIDisable
	if fs.LogLevel != "" {
		settings.LogLevel = fs.LogLevel
	}
	return nil
}

func toFile(settings Settings) fileSettings {
	fs := fileSettings{
		Target:        settings.Target,
		Autostart:     settings.Autostart,
		Probe:         string(settings.ProbeMode),
		MetricsListen: settings.MetricsListen,
		NATSURL:       settings.NATSURL,
		UIDisable:     settings.UIDisable,
		LogLevel:      settings.LogLevel,
	}
	if settings.Interval > 0 {
		fs.Interval = settings.Interval.String()
	}
	if settings.Timeout > 0 {
		fs.Timeout = settings.Timeout.String()
	}
	if settings.NATSSubject != DefaultNATSSubject {
		fs.NATSSubject = settings.NATSSubject
	}
	return fs
}

// parseDuration accepts Go durations and bare seconds.
func parseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if isDigits(value) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(value)
}

func normalizeListen(value string) string {
	if isDigits(value) {
		return ":" + value
	}
	return value
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, "config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmpFile.Name()
	removeTemp := true
	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
		}
		if removeTemp {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp config: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	tmpFile = nil

	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}

	bakPath := path + ".bak"
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(bakPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", bakPath, err)
		}
		if err := os.Rename(path, bakPath); err != nil {
			return fmt.Errorf("rename %s to %s: %w", path, bakPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmpName, path, err)
	}
	removeTemp = false
	return nil
}
