package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/goforwarder2016/GfMail-sub000/internal/config"
	"github.com/goforwarder2016/GfMail-sub000/internal/engine"
	"github.com/goforwarder2016/GfMail-sub000/internal/notify"
	"github.com/goforwarder2016/GfMail-sub000/internal/secret"
	"github.com/goforwarder2016/GfMail-sub000/internal/store"
)

var (
	version     = "dev"
	configPath  = flag.String("config", config.DefaultConfigPath(), "Path to the configuration file")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("gfmaild version %s\n", version)
		os.Exit(0)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.WithField("version", version).Info("Starting gfmaild")

	mirror, err := store.Open(cfg.DataPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open mirror database")
	}
	defer mirror.Close()

	secrets := secret.NewStore(cfg.CredentialDir)
	hub := notify.NewHub(logger)

	eng := engine.New(cfg, mirror, secrets, hub, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := eng.Run(ctx); err != nil {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
	case err := <-errChan:
		logger.WithError(err).Error("Engine error")
		cancel()
	}

	logger.Info("Shutting down gfmaild")
}
