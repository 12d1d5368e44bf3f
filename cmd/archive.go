package cmd

import (
	"os"

	config "github.com/rainlanguage/orderbook-trades/configs"
	"github.com/rainlanguage/orderbook-trades/internal/export"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var archiveParquet string

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Upload the ledger to S3",
	Long:  "Uploads the CSV ledger, and the Parquet export when --parquet is given, under archive.s3.prefix/<contract>/.",
	Run:   RunArchive,
}

func init() {
	archiveCmd.Flags().StringVar(&archiveParquet, "parquet", "", "Parquet export to upload alongside the ledger")
}

func RunArchive(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	if config.Cfg.Orderbook.Address == "" {
		log.Error().Msg("orderbook.address is not set")
		os.Exit(1)
	}

	client, err := export.NewS3Client(ctx, config.Cfg.Archive.S3)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize S3")
		os.Exit(1)
	}
	archiver := export.NewArchiver(client, config.Cfg.Archive.S3.Bucket, config.Cfg.Archive.S3.Prefix)

	files := []string{config.Cfg.Ledger.Path}
	if archiveParquet != "" {
		files = append(files, archiveParquet)
	}
	for _, file := range files {
		if _, err := archiver.Upload(ctx, config.Cfg.Orderbook.Address, file); err != nil {
			log.Error().Err(err).Str("file", file).Msg("Archive failed")
			os.Exit(1)
		}
	}
}
