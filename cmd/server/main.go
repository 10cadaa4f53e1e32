package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/HangHub/internal/adapters/http"
	presence "github.com/dkeye/HangHub/internal/adapters/signal"
	"github.com/dkeye/HangHub/internal/app"
	"github.com/dkeye/HangHub/internal/app/orch"
	"github.com/dkeye/HangHub/internal/bus"
	"github.com/dkeye/HangHub/internal/config"
	"github.com/dkeye/HangHub/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	backbone, err := openBus(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("backbone unavailable")
	}

	reg := app.NewRegistry()
	rooms := app.NewRoomManager(core.NewStore(), backbone, presence.NewFanout(reg, app.SimplePolicy{}), app.Options{
		EchoRefresh:       cfg.Presence.EchoRefresh,
		HeartbeatInterval: cfg.Presence.HeartbeatInterval,
		OriginTTL:         cfg.Presence.OriginTTL,
	})
	o := &orch.Orchestrator{
		Registry: reg,
		Rooms:    rooms,
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.SetupRouter(ctx, cfg, o, backbone),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("origin", rooms.Origin()).Msg("HangHub server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return rooms.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		rooms.Close(shutdownCtx)
		return backbone.Close()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}

func openBus(ctx context.Context, cfg *config.Config) (bus.Bus, error) {
	if !cfg.Redis.Enabled() {
		log.Warn().Str("module", "main").Msg("no redis host configured, running single-process")
		return bus.NewLocal(), nil
	}
	return bus.NewRedis(ctx, bus.RedisOptions{
		Addr:            cfg.Redis.Addr(),
		Password:        cfg.Redis.Password,
		DB:              cfg.Redis.DB,
		Prefix:          cfg.Redis.ChannelPrefix,
		DialTimeout:     cfg.Redis.DialTimeout,
		InitialInterval: cfg.Publish.InitialInterval,
		MaxInterval:     cfg.Publish.MaxInterval,
	})
}
