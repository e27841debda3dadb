// Command mqttbridge runs the MQTT message bridge daemon: it connects
// to every configured broker, subscribes to the route sources and
// forwards matching messages until it is told to stop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fogfish/opts"
	_ "github.com/joho/godotenv/autoload"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"

	"github.com/rmacdonaldsmith/mqttbridge-go/internal/bridge"
	"github.com/rmacdonaldsmith/mqttbridge-go/internal/config"
	"github.com/rmacdonaldsmith/mqttbridge-go/internal/httpapi"
	"github.com/rmacdonaldsmith/mqttbridge-go/internal/metrics"
	"github.com/rmacdonaldsmith/mqttbridge-go/internal/mqttconn"
	tablerouter "github.com/rmacdonaldsmith/mqttbridge-go/internal/routing"
	"github.com/rmacdonaldsmith/mqttbridge-go/internal/tap"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/broker"
)

const (
	appName    = "mqttbridge"
	appVersion = "1.0.0"

	shutdownTimeout = 30 * time.Second
)

func main() {
	var (
		configPath  = flag.String("config", "mqttbridge.yaml", "Path to the configuration file")
		validate    = flag.Bool("validate", false, "Validate the configuration and exit")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s v%s\n", appName, appVersion)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", *configPath, err)
		os.Exit(1)
	}

	if *validate {
		fmt.Printf("%s: configuration OK (%d connections, %d routes)\n",
			*configPath, len(cfg.Connections), len(cfg.Routes))
		os.Exit(0)
	}

	log := setupLogging(cfg.Logging)
	log.Info("starting", "app", appName, "version", appVersion, "config", *configPath)

	if err := run(cfg, log); err != nil {
		log.Error("bridge failed", "error", err)
		os.Exit(1)
	}
	log.Info("stopped")
}

// setupLogging builds the process logger from the config block and
// installs it as the slog default.
func setupLogging(cfg config.Logging) *slog.Logger {
	var zl zerolog.Logger
	if cfg.Format == "json" {
		zl = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
		zl = zerolog.New(output).With().Timestamp().Logger()
	}

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	log := slog.New(zeroslog.NewHandler(zl, &zeroslog.HandlerOptions{Level: level}))
	slog.SetDefault(log)
	return log
}

func run(cfg *config.File, log *slog.Logger) error {
	// Load already validated the route specs; building the table again
	// cannot fail here.
	table, err := cfg.BuildTable()
	if err != nil {
		return err
	}

	stats := metrics.New()
	activity := tap.New(cfg.Bridge.ActivityLogSize)

	routerOptions := []opts.Option[tablerouter.TableRouter]{
		tablerouter.WithMetrics(stats),
	}
	if cfg.Bridge.RouteCacheSize != nil {
		routerOptions = append(routerOptions, tablerouter.WithCacheSize(*cfg.Bridge.RouteCacheSize))
	}
	router, err := tablerouter.New(table, routerOptions...)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	// Connect every broker up front. A bridge that cannot reach one of
	// its brokers cannot honor the routing table, so any failure here
	// is fatal.
	conns := make([]broker.Connection, 0, len(cfg.Connections))
	defer func() {
		for _, conn := range conns {
			if err := conn.Close(); err != nil {
				log.Warn("closing connection", "connection", conn.Name(), "error", err)
			}
		}
	}()
	for i, brokerCfg := range cfg.BrokerConfigs() {
		conn, err := mqttconn.Dial(context.Background(), broker.ConnID(i), brokerCfg, log)
		if err != nil {
			return fmt.Errorf("connect %q: %w", brokerCfg.Name, err)
		}
		log.Info("broker connected", "connection", conn.Name(), "broker", brokerCfg.BrokerURL)
		conns = append(conns, conn)
	}

	br, err := bridge.New(cfg.BridgeConfig(), router, conns,
		bridge.WithLogger(log),
		bridge.WithMetrics(stats),
		bridge.WithTap(activity),
	)
	if err != nil {
		return fmt.Errorf("create bridge: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := br.Start(ctx); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}
	log.Info("bridge running",
		"connections", len(cfg.Connections),
		"routes", table.Len(),
		"queue_capacity", br.QueueCapacity())

	var api *httpapi.Server
	if cfg.API.Enabled {
		api = httpapi.NewServer(br, activity, stats, httpapi.Config{
			ListenAddress: cfg.API.ListenAddress,
			SecretKey:     cfg.API.SecretKey,
			TokenTTL:      cfg.API.TokenTTL.Duration(),
		}, log)
		go func() {
			if err := api.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("admin api failed", "error", err)
			}
		}()
	}

	// Block until asked to shut down.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	sig := <-sigChan
	log.Info("shutting down", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if api != nil {
		if err := api.Stop(shutdownCtx); err != nil {
			log.Warn("admin api shutdown", "error", err)
		}
	}
	if err := br.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("stop bridge: %w", err)
	}
	return nil
}
