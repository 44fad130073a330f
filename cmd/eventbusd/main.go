// Command eventbusd runs an Eventbus engine as a standalone process: it
// joins the shared Redis channel, records an audit trail for every
// identity event it receives, and serves the operator admin API.
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

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/eventbus/api"
	"github.com/xraph/eventbus/audithook"
	redisbroadcast "github.com/xraph/eventbus/broadcast/redis"
	"github.com/xraph/eventbus/codec"
	"github.com/xraph/eventbus/engine"
	"github.com/xraph/eventbus/event"
	redisstore "github.com/xraph/eventbus/store/redis"
)

func main() {
	configPath := flag.String("config", "configs/eventbusd.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("eventbusd exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := audithook.NewLogRecorder(logger.With(slog.String("component", "audit")))

	opts := []engine.Option{
		engine.WithConfig(cfg.Engine),
		engine.WithLogger(logger),
		engine.WithExtension(audithook.New(recorder, audithook.WithLogger(logger))),
	}

	if cfg.RedisURL != "" {
		client, closeRedis, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer closeRedis()

		cd := codec.Get(cfg.Engine.Codec)
		opts = append(opts,
			engine.WithStore(redisstore.New(client,
				redisstore.WithLogger(logger),
				redisstore.WithCodec(cd),
				redisstore.WithKeyPrefix(cfg.Engine.KeyPrefix),
				redisstore.WithTTL(cfg.Engine.EventTTL),
				redisstore.WithDefaultLimit(cfg.Engine.DefaultListLimit),
				redisstore.WithDLQMaxSize(cfg.Engine.DLQMaxSize),
			)),
			engine.WithChannel(redisbroadcast.New(client,
				redisbroadcast.WithName(cfg.Engine.ChannelName),
				redisbroadcast.WithCodec(cd),
				redisbroadcast.WithLogger(logger),
			)),
		)
	} else {
		logger.Warn("no redis url configured, running a single in-memory instance")
	}

	eng, err := engine.New(opts...)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	// Audit handlers run on the simple bus; the engine forwards every
	// delivery it receives to it.
	audit := event.NewBus(event.WithBusLogger(logger))
	if err := audithook.Register(audit.Registry(), recorder); err != nil {
		return fmt.Errorf("register audit handlers: %w", err)
	}
	for _, name := range event.All() {
		if err := eng.Registry().Add(name, audit.Publish); err != nil {
			return fmt.Errorf("forward %s to audit bus: %w", name, err)
		}
	}

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.AdminAddr,
		Handler:           api.New(eng, api.WithToken(cfg.AdminToken), api.WithLogger(logger)).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("admin api listening", slog.String("addr", cfg.AdminAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Engine.ShutdownTimeout)
		defer cancel()

		httpErr := srv.Shutdown(shutdownCtx)
		engErr := eng.Stop(shutdownCtx)
		return errors.Join(httpErr, engErr)
	})
	return g.Wait()
}

func connectRedis(ctx context.Context, url string) (*goredis.Client, func(), error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// The store and channel degrade on their own; start anyway.
		slog.Warn("redis unreachable at startup", slog.String("error", err.Error()))
	}
	return client, func() { _ = client.Close() }, nil
}
