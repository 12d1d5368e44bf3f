package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	config "github.com/rainlanguage/orderbook-trades/configs"
	"github.com/rainlanguage/orderbook-trades/internal/decoder"
	"github.com/rainlanguage/orderbook-trades/internal/ledger"
	"github.com/rainlanguage/orderbook-trades/internal/lock"
	customLogger "github.com/rainlanguage/orderbook-trades/internal/log"
	"github.com/rainlanguage/orderbook-trades/internal/orchestrator"
	"github.com/rainlanguage/orderbook-trades/internal/publisher"
	"github.com/rainlanguage/orderbook-trades/internal/rpc"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one collection pass",
	Long:  "Resume from the ledger, scan up to the chain head and append every new trade. Exit codes: 0 success, 1 setup error, 2 transient retries exhausted, 3 fatal fetch, 4 fatal decode, 5 corrupt ledger, 6 ledger write, 7 canceled.",
	Run:   RunCollect,
}

func RunCollect(cmd *cobra.Command, args []string) {
	os.Exit(collect(cmd.Context()))
}

func collect(ctx context.Context) int {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := customLogger.Component("collect")
	if err := config.Cfg.ValidateRunParameters(); err != nil {
		logger.Error().Err(err).Msg("Invalid run parameters")
		return 1
	}

	if config.Cfg.Metrics.Enabled {
		server := startMetricsServer(config.Cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if config.Cfg.Lock.Redis.Enabled {
		release, err := acquireRunLock(ctx, cancel)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to acquire run lock")
			return 1
		}
		defer release()
	}

	rpcClient, err := rpc.Initialize(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize RPC")
		return 1
	}
	defer rpcClient.Close()
	logger.Info().Str("chain_id", rpcClient.GetChainID().String()).Msg("Connected to RPC")

	tradeDecoder, err := decoder.NewDecoder()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load orderbook ABI")
		return 1
	}

	opts := []orchestrator.Option{}
	if config.Cfg.Publisher.Enabled {
		p, err := publisher.New(ctx, config.Cfg.Publisher, fmt.Sprintf("orderbook-trades-%s", rpcClient.GetChainID()))
		if err != nil {
			// publication never gates the ledger
			logger.Error().Err(err).Msg("Failed to initialize publisher, continuing without it")
		} else {
			defer p.Close()
			opts = append(opts, orchestrator.WithPublisher(p))
		}
	}

	o, err := orchestrator.NewOrchestrator(rpcClient, ledger.New(config.Cfg.Ledger.Path), tradeDecoder, opts...)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create orchestrator")
		return 1
	}

	result, err := o.Start(ctx)
	if err != nil {
		runErr, ok := orchestrator.AsRunError(err)
		if !ok {
			logger.Error().Err(err).Msg("Collection failed")
			return 1
		}
		event := logger.Error().Err(runErr.Err).Str("cause", runErr.Cause.String()).Uint64("last_committed_block", result.LastCommittedBlock)
		if runErr.Range != nil {
			event = event.Uint64("from_block", runErr.Range.From).Uint64("to_block", runErr.Range.To)
		}
		event.Msg("Collection aborted")
		return runErr.Cause.ExitCode()
	}

	logger.Info().
		Uint64("resume_from", result.ResumeFrom).
		Uint64("head", result.Head).
		Int("windows", result.WindowsCommitted).
		Int("records", result.RecordsAppended).
		Int("duplicates", result.DuplicatesSkipped).
		Int("unknown_events", result.UnknownEvents).
		Dur("duration", result.Duration).
		Msg("Collection finished")
	return 0
}

func startMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	log.Info().Msgf("Starting Metrics Server on port %d", port)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return server
}

// acquireRunLock takes the Redis lock for this ledger and cancels the run if
// the lock is lost while collecting.
func acquireRunLock(ctx context.Context, cancel context.CancelFunc) (func(), error) {
	client := lock.NewRedisClient(config.Cfg.Lock.Redis)
	key := lock.Key(config.Cfg.Ledger.Path, config.Cfg.Orderbook.Address)

	l, err := lock.Acquire(ctx, client, key, lock.TTL(config.Cfg.Lock.Redis.TTLSeconds))
	if err != nil {
		client.Close()
		return nil, err
	}

	go func() {
		select {
		case <-l.Lost():
			log.Error().Str("key", key).Msg("Run lock lost, stopping")
			cancel()
		case <-ctx.Done():
		}
	}()

	return func() {
		releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer releaseCancel()
		if err := l.Release(releaseCtx); err != nil {
			log.Warn().Err(err).Msg("Failed to release run lock")
		}
		client.Close()
	}, nil
}
