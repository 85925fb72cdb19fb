package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/paulwcunningham/FLIS/internal/chains"
	"github.com/paulwcunningham/FLIS/internal/config"
	"github.com/paulwcunningham/FLIS/internal/gasbid"
	"github.com/paulwcunningham/FLIS/internal/journal"
	"github.com/paulwcunningham/FLIS/internal/mev"
	"github.com/paulwcunningham/FLIS/internal/mlfeed"
	"github.com/paulwcunningham/FLIS/internal/pipeline"
	"github.com/paulwcunningham/FLIS/internal/publish"
	"github.com/paulwcunningham/FLIS/internal/sim"
	"github.com/paulwcunningham/FLIS/internal/txbuild"
)

func main() {
	configPath := flag.String("config", "config.json", "path to executor config")
	verbose := flag.Bool("verbose", false, "debug logging")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("configuration invalid")
	}

	registry, err := chains.NewRegistry(cfg.Nodes, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build chain registry")
	}
	defer registry.Close()

	signer, err := txbuild.NewSigner(cfg.ExecutorWallet.PrivateKey)
	if err != nil {
		log.WithError(err).Fatal("failed to load executor key")
	}
	log.WithField("executor", signer.Address().Hex()).Info("executor wallet loaded")

	simulator, err := sim.New(registry, cfg.SmartContracts, signer.Address(), log)
	if err != nil {
		log.WithError(err).Fatal("failed to build simulator")
	}

	coordinator := mev.NewCoordinator(
		mev.SuaveConfig{BuilderURLs: cfg.Suave.BuilderURLs, AuthToken: cfg.Suave.AuthToken},
		mev.JitoConfig{BlockEngineURL: cfg.Jito.BlockEngineURL, TipFloorURL: cfg.Jito.TipFloorURL, AuthToken: cfg.Jito.AuthToken},
		registry, log,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Jito.BlockEngineURL != "" {
		if err := coordinator.Jito().RefreshTipAccounts(ctx); err != nil {
			log.WithError(err).Warn("tip account refresh failed; jito submissions proceed untargeted")
		}
	}

	publisher, err := publish.Connect(publish.Config{
		URL:          cfg.NATS.URL,
		User:         cfg.NATS.User,
		Password:     cfg.NATS.Password,
		UseTLS:       cfg.NATS.UseTLS,
		UseJetStream: cfg.NATS.UseJetStream,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to bus")
	}
	defer publisher.Close()

	opts := pipeline.Options{
		Chains:  registry,
		Gas:     gasbid.NewClient(cfg.MLOptimizer.BaseURL, cfg.MLOptimizer.GasBiddingEndpoint, log),
		Sim:     simulator,
		Builder: signer,
		Mev:     coordinator,
		Bus:     publisher,
		Log:     log,
	}

	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			log.WithError(err).Fatal("failed to open execution journal")
		}
		defer j.Close()
		opts.Journal = j
	}
	if cfg.MLOptimizer.ArchiveDir != "" {
		archive, err := mlfeed.NewArchive(cfg.MLOptimizer.ArchiveDir, 0, log)
		if err != nil {
			log.WithError(err).Fatal("failed to open training archive")
		}
		defer archive.Close()
		opts.Archive = archive
	}

	sub, err := pipeline.NewSubscriber(publisher.Conn(), cfg.NATS.OpportunitySubject, pipeline.New(opts), cfg.NATS.MaxInFlight, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build subscriber")
	}

	if err := sub.Start(ctx); err != nil {
		log.WithError(err).Fatal("subscriber failed")
	}
	log.Info("executor stopped")
}
