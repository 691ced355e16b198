package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"codeberg.org/mutker/chargectl/internal/charging"
	"codeberg.org/mutker/chargectl/internal/clock"
	"codeberg.org/mutker/chargectl/internal/command"
	"codeberg.org/mutker/chargectl/internal/config"
	"codeberg.org/mutker/chargectl/internal/console"
	"codeberg.org/mutker/chargectl/internal/errors"
	"codeberg.org/mutker/chargectl/internal/fan"
	"codeberg.org/mutker/chargectl/internal/hw"
	"codeberg.org/mutker/chargectl/internal/journal"
	"codeberg.org/mutker/chargectl/internal/logger"
	"codeberg.org/mutker/chargectl/internal/pid"
	"codeberg.org/mutker/chargectl/internal/state"
	"codeberg.org/mutker/chargectl/internal/telemetry"
	"codeberg.org/mutker/chargectl/internal/transport"
	"github.com/spf13/pflag"
)

// simFanInterval paces temperature sampling on the simulated board, which
// has no 1-Wire conversion time.
const simFanInterval = time.Second

// link is an operator connection: a telemetry sink and a command source.
type link interface {
	telemetry.Sink
	command.Source
	Close() error
}

type app struct {
	cfg     *config.Config
	clock   clock.Clock
	board   hw.Board
	store   *state.Store
	journal journal.Journal
	handler *command.Handler
	engine  *charging.Engine
	fans    *fan.Controller
	links   []link
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().Str("config_file", cfg.ConfigFile).Msg("Config loaded")

	if err := pid.Write(cfg.PIDDir); err != nil {
		logger.Fatal().Err(err).Msg("Failed to write PID file")
	}

	err = run(cfg)

	if rmErr := pid.Remove(cfg.PIDDir); rmErr != nil {
		logger.Error().Err(rmErr).Msg("Failed to remove PID file")
	}
	if err != nil {
		logger.Error().Err(err).Msg("Controller stopped with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(ctx, cancel)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	runErr := a.run(ctx, cancel)
	return errors.Join(runErr, a.shutdown())
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	errFactory := errors.New()

	a := &app{
		cfg:   cfg,
		clock: clock.Real(),
		store: state.NewStore(),
	}

	board, err := hw.Open(cfg.Backend, hw.LinuxConfig{
		I2CDevice: cfg.Hardware.I2CDevice,
		W1Dir:     cfg.Hardware.W1Dir,
		GPIODir:   cfg.Hardware.GPIODir,
		Layout:    hw.DefaultLayout(),
	})
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrOpenBoard, err)
	}
	a.board = board
	logger.Info().Str("backend", cfg.Backend).Msg("Hardware board opened")

	// Relays start off; the store agrees.
	for _, id := range state.Channels() {
		if err := board.SetRelay(id, false); err != nil {
			_ = board.Close()
			return nil, errFactory.Wrap(errors.ErrInitApp, err)
		}
	}

	a.journal, err = journal.New(journal.Config{
		Enabled:      cfg.Journal.Enabled,
		DBPath:       cfg.Journal.Path,
		BatchSize:    cfg.Journal.BatchSize,
		BatchTimeout: cfg.Journal.BatchTimeout,
	}, logger.Default())
	if err != nil {
		_ = board.Close()
		return nil, errFactory.Wrap(errors.ErrInitJournal, err)
	}

	a.handler = command.NewHandler(command.Config{
		Store:     a.store,
		Actuators: board,
		Clock:     a.clock,
		Journal:   a.journal,
		Logger:    logger.Default(),
	})

	a.engine = charging.NewEngine(charging.EngineConfig{
		ChannelConfig: charging.ChannelConfig{
			Sensors:   board,
			Actuators: board,
			Store:     a.store,
			Clock:     a.clock,
			Journal:   a.journal,
			Logger:    logger.Default(),
		},
		Layout: board.Layout(),
	})

	fanInterval := time.Duration(0)
	if cfg.Backend == hw.BackendSim {
		fanInterval = simFanInterval
	}
	a.fans = fan.NewController(fan.Config{
		Sensors:   board,
		Actuators: board,
		Store:     a.store,
		Layout:    board.Layout(),
		Clock:     a.clock,
		Journal:   a.journal,
		Logger:    logger.Default(),
		Interval:  fanInterval,
	})

	if err := a.openLinks(ctx); err != nil {
		a.closeLinks()
		_ = a.journal.Close()
		_ = board.Close()
		return nil, errFactory.Wrap(errors.ErrInitTransport, err)
	}

	return a, nil
}

func (a *app) openLinks(ctx context.Context) error {
	if a.cfg.Server.Enabled {
		a.links = append(a.links, transport.NewTCPLink(transport.TCPConfig{
			Address:   a.cfg.Server.Address,
			Reconnect: a.cfg.Server.Reconnect,
			Clock:     a.clock,
			Logger:    logger.Default(),
		}))
	}

	if a.cfg.MQTT.Enabled {
		l, err := transport.DialMQTT(transport.MQTTConfig{
			Broker:      a.cfg.MQTT.Broker,
			Username:    a.cfg.MQTT.Username,
			Password:    a.cfg.MQTT.Password,
			TopicPrefix: a.cfg.MQTT.TopicPrefix,
			Logger:      logger.Default(),
		})
		if err != nil {
			return err
		}
		a.links = append(a.links, l)
	}

	if a.cfg.Redis.Enabled {
		l, err := transport.DialRedis(ctx, transport.RedisConfig{
			Address:   a.cfg.Redis.Address,
			Password:  a.cfg.Redis.Password,
			DB:        a.cfg.Redis.DB,
			KeyPrefix: a.cfg.Redis.KeyPrefix,
			Logger:    logger.Default(),
		})
		if err != nil {
			return err
		}
		a.links = append(a.links, l)
	}

	return nil
}

func (a *app) closeLinks() {
	for _, l := range a.links {
		if err := l.Close(); err != nil {
			logger.Warn().Err(err).Str("link", l.Name()).Msg("Failed to close link")
		}
	}
}

// run starts every task and blocks until ctx is done. A task failing with
// anything but cancellation stops the controller.
func (a *app) run(ctx context.Context, cancel context.CancelFunc) error {
	sinks := []telemetry.Sink{telemetry.LogSink{Logger: logger.Default()}}
	for _, l := range a.links {
		sinks = append(sinks, l)
	}

	publisher, err := telemetry.NewPublisher(telemetry.DefaultConfig(), a.store, a.clock, logger.Default(), sinks...)
	if err != nil {
		return err
	}

	var (
		wg      sync.WaitGroup
		errMu   sync.Mutex
		taskErr []error
	)
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Str("task", name).Msg("Task failed")
				errMu.Lock()
				taskErr = append(taskErr, err)
				errMu.Unlock()
				cancel()
			}
		}()
	}

	start("fans", a.fans.Run)
	start("engine", a.engine.Run)
	start("telemetry", publisher.Run)
	for _, l := range a.links {
		start("commands:"+l.Name(), func(ctx context.Context) error {
			return a.handler.Run(ctx, l, l.Name())
		})
	}
	if a.cfg.Console {
		c := console.New(console.Config{
			Handler:     a.handler,
			Store:       a.store,
			Clock:       a.clock,
			HistoryFile: console.DefaultHistoryFile(),
		})
		start("console", func(ctx context.Context) error {
			return c.Run(ctx, cancel)
		})
	}

	logger.Info().Int("links", len(a.links)).Bool("console", a.cfg.Console).Msg("Controller running")

	<-ctx.Done()
	logger.Info().Msg("Stopping controller")

	// Closing the links unblocks their receivers.
	a.closeLinks()
	wg.Wait()

	return errors.Join(taskErr...)
}

// shutdown leaves the charge outputs at 0 and the relays off, then
// releases the journal and the board.
func (a *app) shutdown() error {
	var errs []error

	if err := a.engine.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Failed to reset outputs")
		errs = append(errs, err)
	}
	if err := a.journal.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close journal")
		errs = append(errs, err)
	}
	if err := a.board.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close board")
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}
	logger.Info().Msg("Controller stopped")
	return nil
}

func handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		logger.Info().Msg("Received termination signal")
		cancel()
	case <-ctx.Done():
	}
}
