package main

import (
	"context"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tradebot-network/tradebot-daemon/internal/config"
	"github.com/tradebot-network/tradebot-daemon/internal/core/application/session"
	"github.com/tradebot-network/tradebot-daemon/internal/core/application/trade"
	"github.com/tradebot-network/tradebot-daemon/internal/infrastructure/notify"
	"github.com/tradebot-network/tradebot-daemon/internal/infrastructure/steam"
	httpinterface "github.com/tradebot-network/tradebot-daemon/internal/interfaces/http"
	"github.com/tradebot-network/tradebot-daemon/pkg/stats"
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	accounts, err := config.LoadAccounts()
	if err != nil {
		log.WithError(err).Fatal("error while loading accounts")
	}

	steamClient, err := steam.NewClient(steam.Opts{
		BaseURL:           config.GetString(config.SteamAPIURLKey),
		Accounts:          accounts,
		RequestsPerSecond: config.GetFloat(config.SteamRPSKey),
	})
	if err != nil {
		log.WithError(err).Fatal("error while setting up the platform client")
	}

	notifier := notify.NewTelegramNotifier(
		config.GetString(config.TelegramTokenKey),
		config.GetString(config.TelegramChatIDKey),
	)

	policy := config.GetRetryPolicy()
	sessionSvc, err := session.NewService(session.Opts{
		Accounts:      accounts,
		Authenticator: steamClient,
		CodeGenerator: steamClient.Totp(),
		Watcher:       steamClient,
		Poller:        steamClient,
		Notifier:      notifier,
		Policy:        policy,
		PollInterval:  config.GetDuration(config.PollIntervalKey),
	})
	if err != nil {
		log.WithError(err).Fatal("error while setting up the session pool")
	}

	tradeSvc, err := trade.NewService(
		sessionSvc, steamClient, steamClient, notifier, policy,
	)
	if err != nil {
		log.WithError(err).Fatal("error while setting up the trade service")
	}

	server, err := httpinterface.NewServer(
		sessionSvc, tradeSvc, config.GetInt(config.HTTPPortKey),
	)
	if err != nil {
		log.WithError(err).Fatal("error while setting up the operator interface")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	stats.EnableMemoryStatistics(
		ctx, config.GetDuration(config.StatsIntervalKey), config.GetDatadir(),
	)

	log.Debug("starting daemon")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sessionSvc.Bootstrap(gctx)
		return nil
	})
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})

	log.Infof(
		"operator interface is listening on :%d", config.GetInt(config.HTTPPortKey),
	)

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("daemon stopped with error")
	}
	log.Debug("exiting")
}
