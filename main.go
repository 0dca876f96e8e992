package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"

	"github.com/doridoridoriand/picheck/internal/agent"
	"github.com/doridoridoriand/picheck/internal/autostart"
	"github.com/doridoridoriand/picheck/internal/cli"
	"github.com/doridoridoriand/picheck/internal/config"
	"github.com/doridoridoriand/picheck/internal/event"
	"github.com/doridoridoriand/picheck/internal/instance"
	"github.com/doridoridoriand/picheck/internal/layout"
	"github.com/doridoridoriand/picheck/internal/log"
	"github.com/doridoridoriand/picheck/internal/metrics"
	"github.com/doridoridoriand/picheck/internal/notify"
	"github.com/doridoridoriand/picheck/internal/probe"
	"github.com/doridoridoriand/picheck/internal/relay"
	"github.com/doridoridoriand/picheck/internal/ui"
)

const (
	version     = "0.1.0"
	busBuffer   = 256
	logFileName = "picheck.log"
)

// desktopArea is the stacking area used when no terminal UI reports one.
var desktopArea = layout.Rect{X: 0, Y: 0, W: 1920, H: 1040}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("picheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var flags cli.Flags
	flags.Register(fs)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: picheck [options]\n\n")
		fmt.Fprintln(stderr, "Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if flags.Version {
		fmt.Fprintf(stdout, "picheck version %s\n", version)
		return 0
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return 2
	}

	lock, err := instance.Acquire(instance.Name)
	if errors.Is(err, instance.ErrAlreadyRunning) {
		fmt.Fprintln(stdout, "picheck is already running.")
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "failed to acquire instance lock: %v\n", err)
		return 1
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := start(ctx, &flags, stderr); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(stderr, "picheck: %v\n", err)
		return 1
	}
	return 0
}

// start resolves settings, builds the application and runs it until ctx ends
// or the user quits.
func start(ctx context.Context, flags *cli.Flags, stderr io.Writer) error {
	path := flags.ConfigPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	store, err := config.NewStore(path)
	if err != nil {
		return err
	}

	logger := log.NewLogger(log.LevelInfo)
	logger.SetOutput(stderr)
	if v, ok := flags.LogLevel.Value(); ok {
		logger.SetLevel(log.ParseLevel(v))
	}

	settings, err := config.Resolve(store, flags.Overrides(), logger)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger.SetLevel(log.ParseLevel(settings.LogLevel))

	if !settings.UIDisable {
		f, err := openLogFile(filepath.Dir(store.Path()))
		if err != nil {
			return err
		}
		defer f.Close()
		logger.SetOutput(f)
	}

	if settings.ProbeMode == probe.ModeSSH {
		if err := probe.SSHAvailable(ctx); err != nil {
			logger.Warn("ssh client check failed, every check will report offline", map[string]interface{}{"error": err.Error()})
		}
	}
	prober, err := probe.New(settings.ProbeMode)
	if err != nil {
		return err
	}

	app, err := newApp(settings, appDeps{
		Store:     store,
		Prober:    prober,
		Autostart: loginItem(logger),
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	return app.run(ctx)
}

// loginItem returns the platform autostart manager, or nil when none can be
// built for this process.
func loginItem(logger *log.Logger) agent.Autostarter {
	cmd, err := autostart.CurrentCommand()
	if err != nil {
		logger.LogError("autostart", err, nil)
		return nil
	}
	m, err := autostart.New(cmd)
	if err != nil {
		logger.LogError("autostart", err, nil)
		return nil
	}
	return m
}

func openLogFile(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, logFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

type appDeps struct {
	Store     agent.SettingsStore
	Prober    probe.Prober
	Autostart agent.Autostarter
	Logger    *log.Logger
	// Relay replaces the NATS connection dialed from settings.
	Relay relay.Conn
}

// app is the wired process: bus, agent and the optional consumers.
type app struct {
	settings config.Settings
	logger   *log.Logger
	bus      *event.Bus
	agent    *agent.Agent
	ui       *ui.UI
	nc       *nats.Conn
}

func newApp(settings config.Settings, deps appDeps) (*app, error) {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	bus := event.NewBus(busBuffer)

	area, lay := desktopArea, notify.DesktopLayout()
	if !settings.UIDisable {
		area, lay = layout.Rect{X: 0, Y: 2, W: 80, H: 21}, notify.TerminalLayout()
	}

	ag, err := agent.New(settings, agent.Deps{
		Prober:    deps.Prober,
		Bus:       bus,
		Store:     deps.Store,
		Autostart: deps.Autostart,
		Logger:    logger,
		Area:      area,
		Layout:    lay,
	})
	if err != nil {
		return nil, err
	}

	a := &app{settings: settings, logger: logger, bus: bus, agent: ag}
	bus.Subscribe(event.NewLogSink(logger.With("events")))
	bus.Subscribe(ag)

	conn := deps.Relay
	if conn == nil && settings.NATSURL != "" {
		nc, err := relay.Connect(settings.NATSURL, logger.With("relay"))
		if err != nil {
			return nil, err
		}
		a.nc = nc
		conn = nc
	}
	if conn != nil {
		bus.Subscribe(relay.New(conn, settings.NATSSubject, logger.With("relay")))
	}

	if !settings.UIDisable {
		a.ui = ui.New(ag, logger)
		bus.Subscribe(a.ui)
	}
	return a, nil
}

// run blocks until ctx ends, the agent stops or the user quits the UI.
func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.bus.Run()
	defer a.shutdown()

	var wg sync.WaitGroup
	agentErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		agentErr <- a.agent.Run(ctx)
	}()

	if listen := a.settings.MetricsListen; listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.logger.Info("metrics endpoint listening", map[string]interface{}{"addr": listen})
			if err := metrics.Serve(ctx, listen, a.agent); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.LogError("metrics", err, map[string]interface{}{"addr": listen})
			}
		}()
	}

	var err error
	if a.ui != nil {
		if err = a.ui.Run(ctx); errors.Is(err, context.Canceled) {
			err = nil
		} else if err != nil {
			err = fmt.Errorf("terminal ui: %w", err)
		}
		cancel()
	}
	wg.Wait()
	if aerr := <-agentErr; err == nil {
		err = aerr
	}
	return err
}

// shutdown drains the bus after the agent closed its alerts.
func (a *app) shutdown() {
	a.bus.Close()
	<-a.bus.Done()
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.logger.LogError("relay", err, nil)
		}
	}
}
