package cmd

import (
	"os"

	configs "github.com/rainlanguage/orderbook-trades/configs"
	"github.com/rainlanguage/orderbook-trades/internal/env"
	customLogger "github.com/rainlanguage/orderbook-trades/internal/log"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "trades",
		Short: "Collect orderbook trades into a local ledger",
		Long:  "Reads OrderBookV4 trade events from an EVM JSON-RPC node and appends them, window by window, to a crash-safe CSV ledger. Running without a subcommand performs one collection run.",
		Run:   RunCollect,
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yml)")
	rootCmd.PersistentFlags().String("rpc-url", "", "RPC Url to read logs from")
	rootCmd.PersistentFlags().Int("rpc-blocks-blocksPerRequest", 0, "How many blocks or transactions to fetch per batch request during enrichment")
	rootCmd.PersistentFlags().Int("rpc-logs-blocksPerRequest", 0, "Maximum number of blocks covered by one log query")
	rootCmd.PersistentFlags().Float64("rpc-logs-requestsPerSecond", 0, "Maximum RPC requests per second, 0 for no limit")
	rootCmd.PersistentFlags().String("orderbook-address", "", "Address of the orderbook contract")
	rootCmd.PersistentFlags().Uint64("orderbook-deploymentBlock", 0, "Block the orderbook contract was deployed at")
	rootCmd.PersistentFlags().String("ledger-path", "trades.csv", "Path of the CSV ledger")
	rootCmd.PersistentFlags().Int("ingest-maxAttempts", 5, "Attempts per RPC call before a transient failure aborts the run")
	rootCmd.PersistentFlags().Int("ingest-initialBackoffMs", 500, "First retry delay in milliseconds")
	rootCmd.PersistentFlags().Int("ingest-maxBackoffMs", 30000, "Maximum retry delay in milliseconds")
	rootCmd.PersistentFlags().Int("ingest-decodeWorkers", 4, "How many logs of a window are decoded in parallel")
	rootCmd.PersistentFlags().Bool("ingest-enrich", true, "Whether to fill block timestamps and transaction origins")
	rootCmd.PersistentFlags().String("log-level", "", "Log level to use for the application")
	rootCmd.PersistentFlags().Bool("log-prettify", false, "Whether to prettify the log output")
	rootCmd.PersistentFlags().String("log-file", "", "Append logs to this file instead of stderr")
	rootCmd.PersistentFlags().Bool("metrics-enabled", false, "Serve prometheus metrics while running")
	rootCmd.PersistentFlags().Int("metrics-port", 2112, "Port of the metrics server")
	rootCmd.PersistentFlags().Bool("publisher-enabled", false, "Publish committed trades to Kafka")
	rootCmd.PersistentFlags().String("publisher-brokers", "", "Comma separated Kafka brokers")
	rootCmd.PersistentFlags().String("publisher-topic", "", "Kafka topic for committed trades")
	rootCmd.PersistentFlags().String("publisher-username", "", "Kafka SASL username")
	rootCmd.PersistentFlags().String("publisher-password", "", "Kafka SASL password")
	rootCmd.PersistentFlags().Bool("lock-redis-enabled", false, "Guard the ledger with a Redis lock")
	rootCmd.PersistentFlags().String("lock-redis-addr", "", "Redis address")
	rootCmd.PersistentFlags().String("lock-redis-username", "", "Redis username")
	rootCmd.PersistentFlags().String("lock-redis-password", "", "Redis password")
	rootCmd.PersistentFlags().Int("lock-redis-db", 0, "Redis database")
	rootCmd.PersistentFlags().Int("lock-redis-ttlSeconds", 60, "TTL of the Redis lock in seconds")
	rootCmd.PersistentFlags().String("archive-s3-bucket", "", "S3 bucket to archive into")
	rootCmd.PersistentFlags().String("archive-s3-region", "", "S3 region")
	rootCmd.PersistentFlags().String("archive-s3-prefix", "", "Key prefix inside the bucket")
	rootCmd.PersistentFlags().String("archive-s3-endpoint", "", "Custom S3 endpoint")
	rootCmd.PersistentFlags().String("archive-s3-accessKeyId", "", "S3 access key id")
	rootCmd.PersistentFlags().String("archive-s3-secretAccessKey", "", "S3 secret access key")
	viper.BindPFlag("rpc.url", rootCmd.PersistentFlags().Lookup("rpc-url"))
	viper.BindPFlag("rpc.blocks.blocksPerRequest", rootCmd.PersistentFlags().Lookup("rpc-blocks-blocksPerRequest"))
	viper.BindPFlag("rpc.logs.blocksPerRequest", rootCmd.PersistentFlags().Lookup("rpc-logs-blocksPerRequest"))
	viper.BindPFlag("rpc.logs.requestsPerSecond", rootCmd.PersistentFlags().Lookup("rpc-logs-requestsPerSecond"))
	viper.BindPFlag("orderbook.address", rootCmd.PersistentFlags().Lookup("orderbook-address"))
	viper.BindPFlag("orderbook.deploymentBlock", rootCmd.PersistentFlags().Lookup("orderbook-deploymentBlock"))
	viper.BindPFlag("ledger.path", rootCmd.PersistentFlags().Lookup("ledger-path"))
	viper.BindPFlag("ingest.maxAttempts", rootCmd.PersistentFlags().Lookup("ingest-maxAttempts"))
	viper.BindPFlag("ingest.initialBackoffMs", rootCmd.PersistentFlags().Lookup("ingest-initialBackoffMs"))
	viper.BindPFlag("ingest.maxBackoffMs", rootCmd.PersistentFlags().Lookup("ingest-maxBackoffMs"))
	viper.BindPFlag("ingest.decodeWorkers", rootCmd.PersistentFlags().Lookup("ingest-decodeWorkers"))
	viper.BindPFlag("ingest.enrich", rootCmd.PersistentFlags().Lookup("ingest-enrich"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.prettify", rootCmd.PersistentFlags().Lookup("log-prettify"))
	viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("metrics.enabled", rootCmd.PersistentFlags().Lookup("metrics-enabled"))
	viper.BindPFlag("metrics.port", rootCmd.PersistentFlags().Lookup("metrics-port"))
	viper.BindPFlag("publisher.enabled", rootCmd.PersistentFlags().Lookup("publisher-enabled"))
	viper.BindPFlag("publisher.brokers", rootCmd.PersistentFlags().Lookup("publisher-brokers"))
	viper.BindPFlag("publisher.topic", rootCmd.PersistentFlags().Lookup("publisher-topic"))
	viper.BindPFlag("publisher.username", rootCmd.PersistentFlags().Lookup("publisher-username"))
	viper.BindPFlag("publisher.password", rootCmd.PersistentFlags().Lookup("publisher-password"))
	viper.BindPFlag("lock.redis.enabled", rootCmd.PersistentFlags().Lookup("lock-redis-enabled"))
	viper.BindPFlag("lock.redis.addr", rootCmd.PersistentFlags().Lookup("lock-redis-addr"))
	viper.BindPFlag("lock.redis.username", rootCmd.PersistentFlags().Lookup("lock-redis-username"))
	viper.BindPFlag("lock.redis.password", rootCmd.PersistentFlags().Lookup("lock-redis-password"))
	viper.BindPFlag("lock.redis.db", rootCmd.PersistentFlags().Lookup("lock-redis-db"))
	viper.BindPFlag("lock.redis.ttlSeconds", rootCmd.PersistentFlags().Lookup("lock-redis-ttlSeconds"))
	viper.BindPFlag("archive.s3.bucket", rootCmd.PersistentFlags().Lookup("archive-s3-bucket"))
	viper.BindPFlag("archive.s3.region", rootCmd.PersistentFlags().Lookup("archive-s3-region"))
	viper.BindPFlag("archive.s3.prefix", rootCmd.PersistentFlags().Lookup("archive-s3-prefix"))
	viper.BindPFlag("archive.s3.endpoint", rootCmd.PersistentFlags().Lookup("archive-s3-endpoint"))
	viper.BindPFlag("archive.s3.accessKeyId", rootCmd.PersistentFlags().Lookup("archive-s3-accessKeyId"))
	viper.BindPFlag("archive.s3.secretAccessKey", rootCmd.PersistentFlags().Lookup("archive-s3-secretAccessKey"))
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(archiveCmd)
}

func initConfig() {
	env.Load()
	if err := configs.LoadConfig(cfgFile); err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if err := customLogger.InitLogger(configs.Cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}
}
