package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattjoyce/signbridge/internal/api"
	"github.com/mattjoyce/signbridge/internal/cec"
	"github.com/mattjoyce/signbridge/internal/channel"
	"github.com/mattjoyce/signbridge/internal/config"
	"github.com/mattjoyce/signbridge/internal/emitter"
	"github.com/mattjoyce/signbridge/internal/events"
	"github.com/mattjoyce/signbridge/internal/journal"
	"github.com/mattjoyce/signbridge/internal/lock"
	"github.com/mattjoyce/signbridge/internal/log"
	"github.com/mattjoyce/signbridge/internal/overlay"
	"github.com/mattjoyce/signbridge/internal/rpc"
	"github.com/mattjoyce/signbridge/internal/storage"
	"github.com/mattjoyce/signbridge/internal/sysproc"
	"github.com/mattjoyce/signbridge/internal/video"
	"github.com/mattjoyce/signbridge/internal/watchdog"
)

func runStart(args []string) int {
	fs := newFlagSet("start")
	configPath := fs.StringP("config", "c", "", "Path to configuration file or directory")
	if code, done := parseFlags(fs, args); done {
		return code
	}

	path, err := config.DiscoverConfigPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
		return 1
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("signbridge starting", "version", version, "config", path)

	pidLock, err := lock.Acquire(cfg.Service.PIDFile)
	if err != nil {
		logger.Error("failed to acquire PID lock", "path", cfg.Service.PIDFile, "error", err)
		return 1
	}
	defer pidLock.Release()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b, err := newBridge(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize bridge", "error", err)
		return 1
	}
	defer b.Close()

	if err := b.Run(ctx); err != nil {
		logger.Error("component failed", "error", err)
		return 1
	}
	logger.Info("signbridge stopped")
	return 0
}

// bridge is every server-side component wired from one config.
type bridge struct {
	cfg    *config.Config
	logger *slog.Logger

	db         *sql.DB
	journal    *journal.Journal
	hub        *events.Hub
	mqtt       *emitter.MQTT
	server     *channel.Server
	dispatcher *rpc.Dispatcher
	player     *video.Player
	videos     *video.Service
	renderer   *overlay.ExecRenderer
	cec        *cec.Listener
	watchdog   *watchdog.Watchdog
	api        *api.Server
}

func newBridge(ctx context.Context, cfg *config.Config) (_ *bridge, err error) {
	b := &bridge{cfg: cfg, logger: log.WithComponent("main")}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	b.db, err = storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	b.journal = journal.New(b.db, log.WithComponent("journal"))
	b.hub = events.NewHub(256)

	pub := events.Multi{b.hub, b.journal}
	if cfg.MQTT.Enabled {
		b.mqtt, err = emitter.Connect(ctx, emitter.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			QoS:         cfg.MQTT.QoS,
		}, log.WithComponent("mqtt"))
		if err != nil {
			return nil, err
		}
		pub = append(pub, b.mqtt)
	}

	restarter := &sysproc.AppRestarter{
		ProcessName: cfg.Watchdog.ProcessName,
		Command:     cfg.Watchdog.RestartCommand,
		KillAfter:   cfg.Video.KillAfter,
		Logger:      log.WithComponent("restarter"),
	}
	driver := sysproc.NewDriver(sysproc.Commands{
		Reboot:       cfg.System.RebootCommand,
		ScreenOff:    cfg.System.ScreenOffCommand,
		ScreenOn:     cfg.System.ScreenOnCommand,
		GetVolume:    cfg.System.GetVolumeCommand,
		SetVolume:    cfg.System.SetVolumeCommand,
		SerialNumber: cfg.System.SerialNumberCommand,
	}, cfg.System.DeviceUID, restarter, log.WithComponent("system"))

	b.renderer = &overlay.ExecRenderer{
		Command: cfg.Overlay.RendererCommand,
		Dir:     cfg.Overlay.Dir,
		Logger:  log.WithComponent("overlay"),
	}

	b.dispatcher = rpc.NewDispatcher(log.WithComponent("rpc"))
	rpc.RegisterSystem(b.dispatcher, driver)
	overlay.Register(b.dispatcher, b.renderer)

	b.player = video.NewPlayer(&video.ExecLauncher{
		Command:       cfg.Video.Command,
		StreamCommand: cfg.Video.StreamCommand,
		Root:          cfg.Video.StorageRoot,
		KillAfter:     cfg.Video.KillAfter,
		Logger:        log.WithComponent("decoder"),
	}, video.PlayerConfig{
		Slots:  cfg.Video.Slots,
		WarmUp: cfg.Video.WarmUp,
		Logger: log.WithComponent("video"),
	})
	b.videos = video.NewService(b.player, pub, log.WithComponent("video"))

	if cfg.CEC.Enabled {
		var decoder *cec.Decoder
		if len(cfg.CEC.DecoderCommand) > 0 {
			decoder = &cec.Decoder{Command: cfg.CEC.DecoderCommand, Respawn: cfg.CEC.Respawn}
		}
		b.cec = cec.NewListener(cec.Config{
			SocketRoot: cfg.CEC.SocketRoot,
			Debouncer:  cec.NewDebouncer(cfg.CEC.Debounce, nil),
			Decoder:    decoder,
			Events:     pub,
			Logger:     log.WithComponent("cec"),
		})
	}

	if cfg.Watchdog.Enabled {
		b.watchdog = watchdog.New(watchdog.Config{
			Timeout:   cfg.Watchdog.Timeout,
			Restarter: restarter,
			Recorder:  b.journal,
			Events:    pub,
			Logger:    log.WithComponent("watchdog"),
		})
	}

	b.server = channel.NewServer(log.WithComponent("channel"))
	b.server.OnConnect(b.attach)

	deps := api.Deps{
		Dispatcher: b.dispatcher,
		Renderer:   b.renderer,
		Bridge:     b.server,
		Events:     b.hub,
		Slots:      b.player,
	}
	if b.watchdog != nil {
		deps.Restarts = b.watchdog
	}
	b.api = api.New(api.Config{
		Listen:          cfg.Bridge.Listen,
		APIKey:          cfg.Bridge.APIKey,
		MaxOverlayBytes: cfg.Overlay.MaxBodySize,
	}, deps, log.WithComponent("api"))
	return b, nil
}

// attach binds a new client session to every session-scoped component.
// The watchdog arms on connect for every session except CLI tooling.
func (b *bridge) attach(sess channel.Session) {
	b.dispatcher.Attach(sess)
	b.videos.Attach(sess)
	if b.cec != nil {
		b.cec.Forward(sess)
	}
	if b.watchdog != nil && sess.Role() != channel.RoleTool {
		b.watchdog.Attach(sess)
	}
}

// Handler is the bridge's HTTP surface, for tests and embedding.
func (b *bridge) Handler() http.Handler { return b.api.Handler() }

// Run starts the CEC listener and serves HTTP until ctx ends.
func (b *bridge) Run(ctx context.Context) error {
	if b.cec != nil {
		if err := b.cec.Listen(ctx); err != nil {
			return fmt.Errorf("cec: %w", err)
		}
		b.logger.Info("cec listener ready", "socket", b.cec.SocketPath())
	}

	b.logger.Info("signbridge running (press Ctrl+C to stop)", "listen", b.cfg.Bridge.Listen)
	if err := b.api.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// Close releases components in reverse dependency order. It is safe on
// a partially built bridge.
func (b *bridge) Close() {
	if b.watchdog != nil {
		b.watchdog.Stop()
	}
	if b.server != nil {
		b.server.Close()
	}
	if b.cec != nil {
		if err := b.cec.Close(); err != nil {
			b.logger.Debug("cec close failed", "error", err)
		}
	}
	if b.player != nil {
		ctx, cancel := context.WithTimeout(context.Background(), b.cfg.Video.KillAfter+time.Second)
		if err := b.player.StopAll(ctx); err != nil {
			b.logger.Warn("failed to stop videos on shutdown", "error", err)
		}
		cancel()
	}
	if b.renderer != nil {
		b.renderer.Close()
	}
	if b.mqtt != nil {
		b.mqtt.Close()
	}
	if b.db != nil {
		_ = b.db.Close()
	}
}
