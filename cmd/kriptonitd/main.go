package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/kriptonit/backend/internal/calls"
	"github.com/kriptonit/backend/internal/chat"
	"github.com/kriptonit/backend/internal/config"
	"github.com/kriptonit/backend/internal/events"
	"github.com/kriptonit/backend/internal/httpapi"
	"github.com/kriptonit/backend/internal/notify"
	"github.com/kriptonit/backend/internal/observability"
	"github.com/kriptonit/backend/internal/relay"
	"github.com/kriptonit/backend/internal/signaling"
	"github.com/kriptonit/backend/internal/users"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zlog.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("config error")
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()

	userStore, err := users.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal().Err(err).Msg("user store init failed")
	}
	defer userStore.Close()

	chatStore, err := chat.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal().Err(err).Msg("chat store init failed")
	}
	defer chatStore.Close()

	callStore, err := calls.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal().Err(err).Msg("call store init failed")
	}
	defer callStore.Close()

	signalingStore, err := signaling.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal().Err(err).Msg("signaling store init failed")
	}
	defer signalingStore.Close()

	var gateway notify.Gateway = notify.NoopGateway{}
	if cfg.PushGatewayURL != "" {
		gateway = notify.NewHTTPGateway(cfg.PushGatewayURL, cfg.PushTimeout)
		zlog.Info().Str("url", cfg.PushGatewayURL).Msg("push gateway configured")
	} else {
		zlog.Info().Msg("no push gateway configured, notifications are dropped")
	}

	dispatcher := notify.NewDispatcher(notify.Config{
		QueueSize:   cfg.NotifyQueueSize,
		Workers:     cfg.NotifyWorkers,
		PushTimeout: cfg.PushTimeout,
	}, gateway, metrics)
	dispatcher.Start()
	defer dispatcher.Stop()

	var provisioner relay.Provisioner = relay.NoopProvisioner{}
	if cfg.RelayURL != "" {
		provisioner = relay.NewHTTPProvisioner(cfg.RelayURL)
		zlog.Info().Str("url", cfg.RelayURL).Msg("relay provisioner configured")
	}

	userSvc := users.NewService(userStore, cfg.JWTSecret, cfg.TokenTTL)
	chatSvc := chat.NewService(chatStore, provisioner, userSvc, dispatcher)

	hub := events.NewHub()
	callMgr := calls.NewManager(callStore, chatSvc, userSvc, dispatcher, hub, metrics, cfg.RingTimeout)

	mailbox := signaling.NewMailbox(signalingStore, signaling.Config{
		OfferTTL:     cfg.OfferTTL,
		CandidateTTL: cfg.CandidateTTL,
	}, metrics)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	callMgr.StartJanitor(runCtx, 5*time.Second)
	mailbox.StartSweeper(runCtx, cfg.SweepInterval)

	api := httpapi.New(cfg, userSvc, chatSvc, callMgr, mailbox, hub, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		zlog.Info().Str("addr", cfg.BindAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal().Err(err).Msg("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	zlog.Info().Msg("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}

	zlog.Info().Msg("shutdown complete")
}
