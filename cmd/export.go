package cmd

import (
	"os"

	config "github.com/rainlanguage/orderbook-trades/configs"
	"github.com/rainlanguage/orderbook-trades/internal/export"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Convert the ledger to Parquet",
	Run:   RunExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "trades.parquet", "Parquet file to write")
}

func RunExport(cmd *cobra.Command, args []string) {
	count, err := export.ExportLedger(config.Cfg.Ledger.Path, exportOut)
	if err != nil {
		log.Error().Err(err).Str("ledger", config.Cfg.Ledger.Path).Msg("Export failed")
		os.Exit(1)
	}
	log.Info().Int("records", count).Str("out", exportOut).Msg("Export finished")
}
