package config

import (
	"time"

	"github.com/joho/godotenv"

	"github.com/zephis-org/zephis-core/internal/app/queues"
	"github.com/zephis-org/zephis-core/pkg/logger"
	"github.com/zephis-org/zephis-core/pkg/utilities"
)

const DefaultConfigFile = "zephis_config.json"

type AppConfigJson struct {
	LoggerConf   logger.LoggerConfigJson   `json:"logger"`
	RabbitmqConf queues.RabbitmqConfigJson `json:"rabbitmq"`
	StoreConf    StoreConfigJson           `json:"store"`
	ProverConf   ProverConfigJson          `json:"prover"`
	SolanaConf   SolanaConfigJson          `json:"solana"`
	EvidenceConf EvidenceConfigJson        `json:"evidence"`
}

func (acj AppConfigJson) ConvertToDomain() AppConfig {
	return AppConfig{
		LoggerConf:   acj.LoggerConf.ConvertToDomain(),
		RabbitmqConf: acj.RabbitmqConf.ConvertToDomain(),
		StoreConf:    acj.StoreConf.ConvertToDomain(),
		ProverConf:   acj.ProverConf.ConvertToDomain(),
		SolanaConf:   acj.SolanaConf.ConvertToDomain(),
		EvidenceConf: acj.EvidenceConf.ConvertToDomain(),
	}
}

type AppConfig struct {
	LoggerConf   logger.LoggerConfig
	RabbitmqConf queues.RabbitmqConfig
	StoreConf    StoreConfig
	ProverConf   ProverConfig
	SolanaConf   SolanaConfig
	EvidenceConf EvidenceConfig
}

type StoreConfigJson struct {
	Path         string `json:"path"`
	TemplatesDir string `json:"templates_dir"`
}

type StoreConfig struct {
	Path         string
	TemplatesDir string
}

func (scj StoreConfigJson) ConvertToDomain() StoreConfig {
	path := scj.Path
	if path == "" {
		path = "zephis_templates.db"
	}
	return StoreConfig{
		Path:         path,
		TemplatesDir: scj.TemplatesDir,
	}
}

type ProverConfigJson struct {
	ProveTimeoutSeconds int `json:"prove_timeout_seconds"`
	CacheCapacity       int `json:"cache_capacity"`
	CacheSweepMinutes   int `json:"cache_sweep_minutes"`
}

type ProverConfig struct {
	ProveTimeout  time.Duration
	CacheCapacity int
	CacheSweep    time.Duration
}

func (pcj ProverConfigJson) ConvertToDomain() ProverConfig {
	return ProverConfig{
		ProveTimeout:  time.Duration(pcj.ProveTimeoutSeconds) * time.Second,
		CacheCapacity: pcj.CacheCapacity,
		CacheSweep:    time.Duration(pcj.CacheSweepMinutes) * time.Minute,
	}
}

type SolanaConfigJson struct {
	Enabled             bool   `json:"enabled"`
	Endpoint            string `json:"endpoint"`
	ContractKeypairFile string `json:"contract_keypair_file"`
	PayerKeypairFile    string `json:"payer_keypair_file"`
}

type SolanaConfig struct {
	Enabled             bool
	Endpoint            string
	ContractKeypairFile string
	PayerKeypairFile    string
}

func (scj SolanaConfigJson) ConvertToDomain() SolanaConfig {
	endpoint := scj.Endpoint
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8899"
	}
	return SolanaConfig{
		Enabled:             scj.Enabled,
		Endpoint:            endpoint,
		ContractKeypairFile: scj.ContractKeypairFile,
		PayerKeypairFile:    scj.PayerKeypairFile,
	}
}

type EvidenceConfigJson struct {
	Seed string `json:"seed"`
}

type EvidenceConfig struct {
	Seed string
}

func (ecj EvidenceConfigJson) ConvertToDomain() EvidenceConfig {
	seed := ecj.Seed
	if seed == "" {
		seed = "zephis-core"
	}
	return EvidenceConfig{Seed: seed}
}

// Load reads the app config file, with .env values made visible to the
// process first. A missing .env is fine.
func Load(file string) (AppConfig, error) {
	_ = godotenv.Load()

	if file == "" {
		file = utilities.GetenvDefault("ZEPHIS_CONFIG", DefaultConfigFile)
	}

	return utilities.ReadConfig[AppConfigJson, AppConfig](file)
}
