package main

import (
	"fmt"
	"os"

	"github.com/robfig/cron"

	"github.com/zephis-org/zephis-core/internal/app/assets"
	"github.com/zephis-org/zephis-core/internal/app/chain"
	"github.com/zephis-org/zephis-core/internal/app/config"
	"github.com/zephis-org/zephis-core/internal/app/evidence"
	"github.com/zephis-org/zephis-core/internal/app/prover"
	"github.com/zephis-org/zephis-core/internal/app/queues"
	"github.com/zephis-org/zephis-core/internal/app/registry"
	"github.com/zephis-org/zephis-core/internal/app/template"
	"github.com/zephis-org/zephis-core/pkg/logger"
)

func main() {
	logger.InitDefaultLogger(logger.GlobalLoggerConfig{
		Args: []logger.LoggerArg{
			{Key: "application", Value: "proof-worker"},
			{Key: "version", Value: "1.0.0"},
		},
	})
	mainLogger := logger.Default()

	configFile := ""
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		mainLogger.Fatal(err, "Unable to read app config")
	}
	mainLogger = mainLogger.WithLevel(cfg.LoggerConf.LogLevel)

	store, err := template.ConnectToStore(cfg.StoreConf.Path)
	if err != nil {
		mainLogger.Fatal(err, "Unable to open template store")
	}

	templateRegistry := registry.New()
	if cfg.StoreConf.TemplatesDir != "" {
		if err := seedTemplates(cfg.StoreConf.TemplatesDir, store, templateRegistry); err != nil {
			mainLogger.Fatal(err, "Unable to seed templates")
		}
	}

	assetCache := assets.NewCache(assets.NewGnarkCompiler(), cfg.ProverConf.CacheCapacity)

	proofProver, err := prover.New(prover.Config{
		Registry:     templateRegistry,
		Cache:        assetCache,
		Capturer:     evidence.NewSimulatedCapturer(cfg.EvidenceConf.Seed),
		ProveTimeout: cfg.ProverConf.ProveTimeout,
	})
	if err != nil {
		mainLogger.Fatal(err, "Unable to build prover")
	}

	var submitter chain.Submitter
	if cfg.SolanaConf.Enabled {
		keys, err := chain.LoadKeys(cfg.SolanaConf.ContractKeypairFile, cfg.SolanaConf.PayerKeypairFile)
		if err != nil {
			mainLogger.Fatal(err, "Unable to load keypairs for solana")
		}
		submitter = chain.NewSolanaSubmitter(cfg.SolanaConf.Endpoint, keys)
		mainLogger.Infof("Proof anchoring enabled against %s", cfg.SolanaConf.Endpoint)
	}

	conn, err := queues.ConnectToRabbitmq(cfg.RabbitmqConf.Host, cfg.RabbitmqConf.User, cfg.RabbitmqConf.Password)
	if err != nil {
		mainLogger.Fatal(err, "Failed to connect to RabbitMQ after retries")
	}
	defer conn.Close()

	queues.InitializeConsumerRegistry(conn, cfg.RabbitmqConf.ConsumersConfig)
	queues.InitializePublisherRegistry(conn, cfg.RabbitmqConf.PublishersConfig)

	worker := queues.NewProofWorker(proofProver, submitter)
	go worker.StartService()

	if cfg.ProverConf.CacheSweep > 0 {
		sweep := cfg.ProverConf.CacheSweep
		scheduler := cron.New()
		err = scheduler.AddFunc(fmt.Sprintf("@every %s", sweep), func() {
			evicted := assetCache.SweepOlderThan(sweep)
			if evicted > 0 {
				mainLogger.Infof("Swept %d idle circuit assets", evicted)
			}
		})
		if err != nil {
			mainLogger.Fatal(err, "Unable to schedule cache sweep")
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	mainLogger.Infof("Proof worker started, serving claims for %d domains", len(templateRegistry.Domains()))

	select {}
}

// seedTemplates loads templates from disk, persists them and registers each
// with the in-memory registry.
func seedTemplates(dir string, store template.Store, reg *registry.Registry) error {
	templates, err := template.LoadDir(dir)
	if err != nil {
		return err
	}

	for _, tmpl := range templates {
		if err := store.Save(tmpl); err != nil {
			return fmt.Errorf("persisting template %s: %w", tmpl.Key(), err)
		}
		if _, err := reg.Register(tmpl); err != nil {
			return fmt.Errorf("registering template %s: %w", tmpl.Key(), err)
		}
	}
	return nil
}
