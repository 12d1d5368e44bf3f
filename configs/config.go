package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Prettify bool   `mapstructure:"prettify"`
	File     string `mapstructure:"file"`
}

type RPCBatchSizeConfig struct {
	BlocksPerRequest int `mapstructure:"blocksPerRequest"`
}

type RPCLogsConfig struct {
	BlocksPerRequest  int     `mapstructure:"blocksPerRequest"`
	RequestsPerSecond float64 `mapstructure:"requestsPerSecond"`
}

type RPCConfig struct {
	URL    string             `mapstructure:"url"`
	Blocks RPCBatchSizeConfig `mapstructure:"blocks"`
	Logs   RPCLogsConfig      `mapstructure:"logs"`
}

type OrderbookConfig struct {
	Address         string `mapstructure:"address"`
	DeploymentBlock uint64 `mapstructure:"deploymentBlock"`
}

type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

type IngestConfig struct {
	MaxAttempts      int  `mapstructure:"maxAttempts"`
	InitialBackoffMs int  `mapstructure:"initialBackoffMs"`
	MaxBackoffMs     int  `mapstructure:"maxBackoffMs"`
	DecodeWorkers    int  `mapstructure:"decodeWorkers"`
	Enrich           bool `mapstructure:"enrich"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type PublisherConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Brokers  string `mapstructure:"brokers"`
	Topic    string `mapstructure:"topic"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type RedisLockConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Addr       string `mapstructure:"addr"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLSeconds int    `mapstructure:"ttlSeconds"`
}

type LockConfig struct {
	Redis RedisLockConfig `mapstructure:"redis"`
}

type S3ArchiveConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"accessKeyId"`
	SecretAccessKey string `mapstructure:"secretAccessKey"`
}

type ArchiveConfig struct {
	S3 S3ArchiveConfig `mapstructure:"s3"`
}

type Config struct {
	RPC       RPCConfig       `mapstructure:"rpc"`
	Log       LogConfig       `mapstructure:"log"`
	Orderbook OrderbookConfig `mapstructure:"orderbook"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Lock      LockConfig      `mapstructure:"lock"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
}

var Cfg Config

func LoadConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file, %s", err)
		}
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath("./configs")

		// the config file is optional, flags and environment are enough to run
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("error reading config file, %s", err)
			}
		}
	}

	// sets e.g. RPC_URL to rpc.url
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv()

	err := viper.Unmarshal(&Cfg)
	if err != nil {
		return fmt.Errorf("error unmarshalling config: %v", err)
	}

	return nil
}

// ValidateRunParameters checks the parameters an ingestion run cannot start without.
func (c *Config) ValidateRunParameters() error {
	if c.RPC.URL == "" {
		return fmt.Errorf("rpc.url is not set")
	}
	if c.Orderbook.Address == "" {
		return fmt.Errorf("orderbook.address is not set")
	}
	if c.Orderbook.DeploymentBlock == 0 {
		return fmt.Errorf("orderbook.deploymentBlock is not set")
	}
	if c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path is not set")
	}
	return nil
}
