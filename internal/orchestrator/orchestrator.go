package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	config "github.com/rainlanguage/orderbook-trades/configs"
	"github.com/rainlanguage/orderbook-trades/internal/common"
	"github.com/rainlanguage/orderbook-trades/internal/decoder"
	"github.com/rainlanguage/orderbook-trades/internal/ledger"
	"github.com/rainlanguage/orderbook-trades/internal/metrics"
	"github.com/rainlanguage/orderbook-trades/internal/planner"
	"github.com/rainlanguage/orderbook-trades/internal/rpc"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const DEFAULT_DECODE_WORKERS = 4

type TradeDecoder interface {
	Topics() []gethCommon.Hash
	Decode(entry types.Log) (common.TradeRecord, error)
}

// RunResult summarises one run. On failure it describes the progress made
// before the abort.
type RunResult struct {
	ResumeFrom         uint64
	Head               uint64
	WindowsPlanned     uint64
	WindowsCommitted   int
	RecordsAppended    int
	DuplicatesSkipped  int
	UnknownEvents      int
	LastCommittedBlock uint64
	Duration           time.Duration
}

// Orchestrator drives one ingestion run: resume from the ledger, plan
// windows up to the head, then fetch, decode and commit each window in turn.
type Orchestrator struct {
	rpc             rpc.IRPCClient
	ledger          LedgerStore
	decoder         TradeDecoder
	address         gethCommon.Address
	deploymentBlock uint64
	maxWindow       uint64
	decodeWorkers   int
	enrich          bool
	retry           RetryPolicy
	publisher       TradePublisher
	onState         func(State, *common.BlockRange)

	planner      *planner.Planner
	chainTracker *ChainTracker
	poller       *Poller
	committer    *Committer

	state    atomic.Int32
	running  sync.Mutex
	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

type Option func(*Orchestrator)

// WithContract sets the orderbook address and the block it was deployed at.
func WithContract(address gethCommon.Address, deploymentBlock uint64) Option {
	return func(o *Orchestrator) {
		o.address = address
		o.deploymentBlock = deploymentBlock
	}
}

func WithMaxWindow(maxWindow uint64) Option {
	return func(o *Orchestrator) {
		o.maxWindow = maxWindow
	}
}

func WithDecodeWorkers(workers int) Option {
	return func(o *Orchestrator) {
		o.decodeWorkers = workers
	}
}

func WithEnrichment(enabled bool) Option {
	return func(o *Orchestrator) {
		o.enrich = enabled
	}
}

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(o *Orchestrator) {
		o.retry = policy
	}
}

func WithPublisher(publisher TradePublisher) Option {
	return func(o *Orchestrator) {
		if publisher == nil {
			return
		}
		o.publisher = publisher
	}
}

// WithStateObserver registers fn to be called synchronously on every state
// transition. window is nil outside of window processing.
func WithStateObserver(fn func(state State, window *common.BlockRange)) Option {
	return func(o *Orchestrator) {
		o.onState = fn
	}
}

// NewOrchestrator reads its defaults from config.Cfg; options override them.
func NewOrchestrator(rpcClient rpc.IRPCClient, store LedgerStore, tradeDecoder TradeDecoder, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		rpc:             rpcClient,
		ledger:          store,
		decoder:         tradeDecoder,
		deploymentBlock: config.Cfg.Orderbook.DeploymentBlock,
		decodeWorkers:   config.Cfg.Ingest.DecodeWorkers,
		enrich:          config.Cfg.Ingest.Enrich,
		retry: RetryPolicy{
			MaxAttempts:    config.Cfg.Ingest.MaxAttempts,
			InitialBackoff: time.Duration(config.Cfg.Ingest.InitialBackoffMs) * time.Millisecond,
			MaxBackoff:     time.Duration(config.Cfg.Ingest.MaxBackoffMs) * time.Millisecond,
		},
	}
	if config.Cfg.Orderbook.Address != "" {
		if !gethCommon.IsHexAddress(config.Cfg.Orderbook.Address) {
			return nil, fmt.Errorf("invalid orderbook address %q", config.Cfg.Orderbook.Address)
		}
		o.address = gethCommon.HexToAddress(config.Cfg.Orderbook.Address)
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.maxWindow == 0 {
		o.maxWindow = uint64(max(o.rpc.GetBlocksPerRequest().Logs, 0))
	}
	if o.maxWindow == 0 {
		o.maxWindow = planner.DEFAULT_MAX_WINDOW
	}
	if o.decodeWorkers <= 0 {
		o.decodeWorkers = DEFAULT_DECODE_WORKERS
	}
	o.retry = o.retry.withDefaults()

	p, err := planner.NewPlanner(o.maxWindow)
	if err != nil {
		return nil, err
	}
	o.planner = p

	var enricher *Enricher
	if o.enrich {
		enricher, err = NewEnricher(rpcClient, DEFAULT_ENRICHMENT_CACHE_SIZE)
		if err != nil {
			return nil, fmt.Errorf("failed to create enricher: %w", err)
		}
	}

	o.chainTracker = NewChainTracker(rpcClient, o.retry)
	o.poller = NewPoller(rpcClient, o.address, tradeDecoder.Topics(), o.retry, enricher)
	o.committer = NewCommitter(store, o.retry, o.publisher)
	return o, nil
}

func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(state State, window *common.BlockRange) {
	o.state.Store(int32(state))
	metrics.IngestState.Set(float64(state))
	if window != nil {
		log.Debug().Str("state", state.String()).Uint64("from_block", window.From).Uint64("to_block", window.To).Msg("Ingestion state changed")
	} else {
		log.Debug().Str("state", state.String()).Msg("Ingestion state changed")
	}
	if o.onState != nil {
		o.onState(state, window)
	}
}

// Start runs once under parent and cancels the run on SIGTERM or SIGINT, or
// when Shutdown is called. The window in flight is abandoned without being
// committed.
func (o *Orchestrator) Start(parent context.Context) (RunResult, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	o.cancelMu.Lock()
	o.cancel = cancel
	o.cancelMu.Unlock()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().Msgf("Received signal %v, stopping after the current window is abandoned", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return o.Run(ctx)
}

func (o *Orchestrator) Shutdown() {
	o.cancelMu.Lock()
	defer o.cancelMu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// Run performs one ingestion run. Windows are processed strictly one after
// another and the next window starts only after the previous one committed.
// Any abort returns a *RunError; the ledger then holds exactly the windows
// committed before the failing one, and running again resumes from there.
func (o *Orchestrator) Run(ctx context.Context) (RunResult, error) {
	if !o.running.TryLock() {
		return RunResult{}, errors.New("an ingestion run is already in progress")
	}
	defer o.running.Unlock()

	start := time.Now()
	result := RunResult{}
	o.setState(StateIdle, nil)

	o.setState(StateResuming, nil)
	resumeFrom, err := o.ledger.LoadResumePoint(o.deploymentBlock)
	if err != nil {
		cause := CauseLedgerWrite
		if ledger.IsCorrupt(err) {
			cause = CauseLedgerCorrupt
		}
		return o.fail(result, start, &RunError{Cause: cause, Err: err})
	}
	result.ResumeFrom = resumeFrom
	metrics.ResumePoint.Set(float64(resumeFrom))

	o.setState(StatePlanning, nil)
	head, err := o.chainTracker.GetHead(ctx)
	if err != nil {
		return o.fail(result, start, &RunError{Cause: fetchCause(ctx, err), Err: err})
	}
	result.Head = head
	result.WindowsPlanned = o.planner.Count(resumeFrom, head)

	log.Info().
		Uint64("resume_from", resumeFrom).
		Uint64("head", head).
		Uint64("windows", result.WindowsPlanned).
		Uint64("max_window", o.maxWindow).
		Msg("Starting ingestion run")

	for window := range o.planner.Plan(resumeFrom, head) {
		if runErr := o.processWindow(ctx, window, &result); runErr != nil {
			return o.fail(result, start, runErr)
		}
		o.setState(StatePlanning, nil)
	}

	result.Duration = time.Since(start)
	o.setState(StateDone, nil)
	log.Info().
		Uint64("resume_from", result.ResumeFrom).
		Uint64("head", result.Head).
		Int("windows", result.WindowsCommitted).
		Int("records", result.RecordsAppended).
		Int("duplicates", result.DuplicatesSkipped).
		Int("unknown_events", result.UnknownEvents).
		Dur("duration", result.Duration).
		Msg("Ingestion run completed")
	o.setState(StateIdle, nil)
	return result, nil
}

func (o *Orchestrator) processWindow(ctx context.Context, window common.BlockRange, result *RunResult) *RunError {
	o.setState(StateFetching, &window)
	logs, err := o.poller.FetchLogs(ctx, window)
	if err != nil {
		return &RunError{Cause: fetchCause(ctx, err), Range: &window, Err: err}
	}

	o.setState(StateDecoding, &window)
	records, unknown, err := o.decodeLogs(ctx, logs)
	if err != nil {
		cause := CauseFatalDecode
		if !decoder.IsMalformed(err) && ctx.Err() != nil {
			cause = CauseCanceled
		}
		return &RunError{Cause: cause, Range: &window, Err: err}
	}
	result.UnknownEvents += unknown
	if err := o.poller.Enrich(ctx, records); err != nil {
		return &RunError{Cause: fetchCause(ctx, err), Range: &window, Err: err}
	}

	// cancellation is honoured up to here; an append is never interrupted
	if err := ctx.Err(); err != nil {
		return &RunError{Cause: CauseCanceled, Range: &window, Err: err}
	}

	o.setState(StateCommitting, &window)
	appended, err := o.committer.Commit(ctx, window, records)
	if err != nil {
		cause := CauseLedgerWrite
		switch {
		case ledger.IsCorrupt(err):
			cause = CauseLedgerCorrupt
		case !ledger.IsWriteError(err) && ctx.Err() != nil:
			cause = CauseCanceled
		}
		return &RunError{Cause: cause, Range: &window, Err: err}
	}

	result.WindowsCommitted++
	result.RecordsAppended += len(appended.Appended)
	result.DuplicatesSkipped += appended.Duplicates
	result.LastCommittedBlock = window.To
	return nil
}

// decodeLogs decodes entries in parallel and returns the trades sorted by
// (block, log index) together with the number of skipped unknown events.
func (o *Orchestrator) decodeLogs(ctx context.Context, logs []types.Log) ([]common.TradeRecord, int, error) {
	decoded := make([]*common.TradeRecord, len(logs))
	var unknown atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.decodeWorkers)
	for i, entry := range logs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			record, err := o.decoder.Decode(entry)
			if err != nil {
				if decoder.IsUnknownEvent(err) {
					unknown.Add(1)
					metrics.UnknownEvents.Inc()
					log.Debug().Err(err).Msg("Skipping unknown event")
					return nil
				}
				return err
			}
			decoded[i] = &record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	records := make([]common.TradeRecord, 0, len(logs))
	for _, record := range decoded {
		if record == nil {
			continue
		}
		metrics.DecodedTrades.WithLabelValues(string(record.Event)).Inc()
		records = append(records, *record)
	}
	common.SortTrades(records)
	return records, int(unknown.Load()), nil
}

func (o *Orchestrator) fail(result RunResult, start time.Time, runErr *RunError) (RunResult, error) {
	result.Duration = time.Since(start)
	o.setState(StateFailed, runErr.Range)
	metrics.RunFailures.WithLabelValues(runErr.Cause.String()).Inc()
	event := log.Error().Err(runErr.Err).Str("cause", runErr.Cause.String())
	if runErr.Range != nil {
		event = event.Uint64("from_block", runErr.Range.From).Uint64("to_block", runErr.Range.To)
	}
	event.Int("windows_committed", result.WindowsCommitted).Msg("Ingestion run aborted")
	return result, runErr
}

func fetchCause(ctx context.Context, err error) Cause {
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return CauseCanceled
	case rpc.IsTransient(err):
		return CauseTransientExhausted
	default:
		return CauseFatalFetch
	}
}
