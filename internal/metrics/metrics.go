package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chain metrics
var (
	ChainHead = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_chain_head",
		Help: "The chain head fetched at the start of the current run",
	})
)

// Orchestrator metrics
var (
	ResumePoint = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_resume_point",
		Help: "The first block of the current run, recomputed from the ledger",
	})

	IngestState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_state",
		Help: "The current state of the ingestion state machine",
	})

	FetchRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_fetch_retries_total",
		Help: "The number of retried log source and ledger calls",
	}, []string{"operation"})

	RunFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_run_failures_total",
		Help: "The number of aborted runs by cause",
	}, []string{"cause"})
)

// Decoder metrics
var (
	UnknownEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decoder_unknown_events_total",
		Help: "The number of log entries skipped because their event is unknown",
	})

	DecodedTrades = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decoder_trades_total",
		Help: "The number of decoded trades by event",
	}, []string{"event"})
)

// Ledger metrics
var (
	WindowsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_windows_committed_total",
		Help: "The number of block windows committed to the ledger",
	})

	LastCommittedBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_last_committed_block",
		Help: "The last block of the most recently committed window",
	})

	RecordsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_records_appended_total",
		Help: "The number of trade records appended to the ledger",
	})

	DuplicatesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_duplicates_skipped_total",
		Help: "The number of trade records skipped because they were already in the ledger",
	})
)

// Publisher metrics
var (
	PublisherTradeCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "publisher_trade_counter",
		Help: "The number of trades published",
	})

	PublisherFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "publisher_failures_total",
		Help: "The number of windows whose trades could not be published",
	})
)

// Operation durations
var (
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_fetch_duration_seconds",
		Help:    "Time taken to fetch the logs of one window, retries included",
		Buckets: prometheus.DefBuckets,
	})

	EnrichDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_enrich_duration_seconds",
		Help:    "Time taken to fetch block timestamps and transaction origins of one window",
		Buckets: prometheus.DefBuckets,
	})

	CommitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_commit_duration_seconds",
		Help:    "Time taken to append one window to the ledger",
		Buckets: prometheus.DefBuckets,
	})

	PublishDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "publish_duration_seconds",
		Help:    "Time taken to publish the trades of one window",
		Buckets: prometheus.DefBuckets,
	})
)
