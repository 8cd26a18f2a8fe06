package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/heptiolabs/healthcheck"
	"github.com/spf13/pflag"
	"github.com/waconnect/pkg/config"
	"github.com/waconnect/pkg/database"
	"github.com/waconnect/pkg/domains/connection"
	"github.com/waconnect/pkg/gateway"
	"github.com/waconnect/pkg/jobs"
	"github.com/waconnect/pkg/logger"
	"github.com/waconnect/pkg/server"
	"github.com/waconnect/pkg/utils"
)

func StartApp() {
	flags := pflag.NewFlagSet("waconnect", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "./config.yaml", "path to the yaml config file")
	_ = flags.Parse(os.Args[1:])

	utils.LoadEnv()
	cfg := config.InitConfig(*configPath)
	logger.Init(cfg.App.Env)
	defer logger.Sync()
	log := logger.Get()

	utils.RegisterBindingValidations()
	database.InitDB(cfg.Database)
	db := database.DBClient()

	gw := gateway.NewClient(gateway.Options{
		BaseURL:     cfg.Gateway.BaseURL,
		APIKey:      cfg.Gateway.APIKey,
		Integration: cfg.Gateway.Integration,
		Timeout:     cfg.Gateway.Timeout,
	})

	bus := EventBus.New()
	subscribePairingEvents(bus)

	opts := LifecycleOptions(cfg)
	svc, err := connection.NewService(connection.NewRepo(db), gw, bus, opts)
	if err != nil {
		log.Fatalw("could not build connection service", "error", err)
	}
	defer svc.Close()

	sched, err := jobs.NewScheduler(cfg.Lifecycle.ReconcileEvery, svc, time.Minute)
	if err != nil {
		log.Fatalw("could not schedule status reconciliation", "error", err)
	}
	sched.Start()
	defer sched.Stop()

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalw("could not get database handle", "error", err)
	}
	router := server.NewRouter(cfg.App, cfg.Allows, server.Deps{
		Connections: svc,
		Lifecycle:   opts,
		Ready: map[string]healthcheck.Check{
			"database": healthcheck.DatabasePingCheck(sqlDB, 2*time.Second),
			"gateway":  healthcheck.HTTPGetCheck(strings.TrimRight(cfg.Gateway.BaseURL, "/")+"/", 2*time.Second),
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := server.LaunchHttpServer(ctx, cfg.App, router); err != nil {
		log.Errorw("HTTP server failed", "error", err)
	}
}

// LifecycleOptions maps the lifecycle config onto connection manager
// options.
func LifecycleOptions(cfg *config.Config) connection.Options {
	l := cfg.Lifecycle
	return connection.Options{
		QrRendererURL: l.QrRendererURL,
		Integration:   cfg.Gateway.Integration,
		NodeID:        cfg.Gateway.NodeID,
		QrBudget: connection.QrBudget{
			Attempts: l.QrAttempts,
			Interval: l.QrInterval,
			WarmUp:   l.QrWarmUp,
		},
		RefreshAttempts: l.RefreshAttempts,
		LogoutSettle:    l.LogoutSettle,
		PollInterval:    l.PollInterval,
		PollMaxDuration: l.PollMaxDuration,
		Workers:         l.Workers,
	}
}

func subscribePairingEvents(bus EventBus.Bus) {
	log := logger.Get()
	_ = bus.SubscribeAsync(connection.TopicConnected, func(ev connection.PairingEvent) {
		log.Infow("pairing completed", "connection_id", ev.ConnectionID, "phone_number", ev.PhoneNumber, "at", ev.At)
	}, false)
	_ = bus.SubscribeAsync(connection.TopicPairingTimeout, func(ev connection.PairingEvent) {
		log.Infow("pairing window elapsed without a scan", "connection_id", ev.ConnectionID, "at", ev.At)
	}, false)
}
