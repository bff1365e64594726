package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cityofzion/faucetd/internal/config"
	webservice "github.com/cityofzion/faucetd/internal/interface/web"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Version = Version
	app.Name = "faucetd"
	app.Usage = "testnet asset disbursement daemon"
	app.Flags = config.Flags
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Println(fmt.Errorf("error: %v", err))
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.LoadConfig(c)
	if err != nil {
		log.Fatalf("invalid config: %s", err)
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %s", err)
	}

	log.Infof("faucetd config: %s", cfg)

	// The wallet must be open before anything else, there is no degraded mode.
	if err := cfg.WalletService().Open(
		context.Background(), cfg.WalletPath, cfg.WalletPassword,
	); err != nil {
		log.Fatalf("failed to open wallet: %s", err)
	}

	appSvc, err := cfg.AppService()
	if err != nil {
		log.Fatalf("failed to create app service: %s", err)
	}

	svc, err := webservice.NewService(webservice.Config{
		Host:     cfg.ListenHost,
		Port:     cfg.ListenPort,
		AppSvc:   appSvc,
		AskRate:  cfg.AskRate,
		AskBurst: cfg.AskBurst,
	})
	if err != nil {
		log.Fatalf("failed to create service: %s", err)
	}

	log.Info("starting service...")
	if err := svc.Start(); err != nil {
		log.Fatalf("failed to start service: %s", err)
	}
	log.Infof("faucetd listens on: %s:%d", cfg.ListenHost, cfg.ListenPort)

	log.RegisterExitHandler(svc.Stop)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(
		sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP, os.Interrupt,
	)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)
	return nil
}
