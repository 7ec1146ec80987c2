package main

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	appconfig "github.com/vigil-btc/vigild/internal/app-config"
	"github.com/vigil-btc/vigild/internal/config"
	restservice "github.com/vigil-btc/vigild/internal/interface/rest"
)

//nolint:all
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "vigild",
		Usage:   "dead man's switch daemon for bitcoin payouts",
		Version: version,
		Action:  daemonAction,
		Commands: cli.Commands{
			switchesCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func daemonAction(_ *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	svcConfig := restservice.Config{
		Port:   cfg.Port,
		NoCORS: cfg.NoCORS,
	}

	appConfig := &appconfig.Config{
		EventDbType:        cfg.EventDbType,
		DbType:             cfg.DbType,
		DbDir:              cfg.DbDir,
		EventDbDir:         cfg.EventDbDir,
		DbMigrationPath:    cfg.DbMigrationPath,
		MonitorInterval:    cfg.MonitorInterval,
		PaymentAddr:        cfg.PaymentAddr,
		PaymentTimeout:     cfg.PaymentTimeout,
		MaxTriggerAttempts: cfg.MaxTriggerAttempts,
		Network:            cfg.Network,
		StrictAddresses:    cfg.StrictAddresses,
	}
	if err := appConfig.Validate(); err != nil {
		log.WithError(err).Fatal("invalid app config")
	}

	appSvc, err := appConfig.AppService()
	if err != nil {
		log.Fatal(err)
	}

	svc, err := restservice.NewService(svcConfig, appSvc)
	if err != nil {
		log.Fatal(err)
	}

	log.RegisterExitHandler(svc.Stop)

	log.Info("starting service...")
	if err := svc.Start(); err != nil {
		log.Fatal(err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, os.Interrupt)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)
	return nil
}
