package publisher

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	config "github.com/rainlanguage/orderbook-trades/configs"
	"github.com/rainlanguage/orderbook-trades/internal/common"
	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

const DEFAULT_TOPIC = "orderbook.trades"

type Publisher struct {
	client *kgo.Client
	topic  string
	mu     sync.RWMutex
}

// TradeMessage is the JSON value produced for every committed trade.
type TradeMessage struct {
	BlockNumber     uint64  `json:"block_number"`
	Timestamp       *uint64 `json:"timestamp,omitempty"`
	TransactionHash string  `json:"tx_hash"`
	LogIndex        uint64  `json:"log_index"`
	TxOrigin        string  `json:"tx_origin,omitempty"`
	Event           string  `json:"event"`
	Sender          string  `json:"sender"`
	OrderHash       string  `json:"order_hash"`
	OrderOwner      string  `json:"order_owner"`
	InputToken      string  `json:"input_token"`
	OutputToken     string  `json:"output_token"`
	InputAmount     string  `json:"input_amount,omitempty"`
	OutputAmount    string  `json:"output_amount,omitempty"`
	Counterparty    string  `json:"counterparty"`
}

// New connects to the configured brokers. The returned publisher is ready to
// produce once the brokers answer a ping.
func New(ctx context.Context, cfg config.PublisherConfig, clientID string) (*Publisher, error) {
	if cfg.Brokers == "" {
		return nil, errors.New("publisher.brokers is not set")
	}

	brokers := strings.Split(cfg.Brokers, ",")
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ClientID(clientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.MetadataMaxAge(60 * time.Second),
		kgo.DialTimeout(10 * time.Second),
	}

	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, kgo.SASL(plain.Auth{
			User: cfg.Username,
			Pass: cfg.Password,
		}.AsMechanism()))
		tlsDialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: 10 * time.Second}}
		opts = append(opts, kgo.Dialer(tlsDialer.DialContext))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Kafka: %w", err)
	}

	topic := cfg.Topic
	if topic == "" {
		topic = DEFAULT_TOPIC
	}
	log.Info().Strs("brokers", brokers).Str("topic", topic).Msg("Publisher connected")
	return &Publisher{client: client, topic: topic}, nil
}

// PublishTrades produces one record per trade and waits until every record is
// acknowledged. The first produce error is returned.
func (p *Publisher) PublishTrades(ctx context.Context, trades []common.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(trades))
	for _, trade := range trades {
		record, err := createTradeRecord(p.topic, trade)
		if err != nil {
			return err
		}
		records = append(records, record)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.client == nil {
		return errors.New("publisher is closed")
	}

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var firstErr error
	wg.Add(len(records))
	for _, record := range records {
		p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
			defer wg.Done()
			if err == nil {
				return
			}
			log.Error().Err(err).Str("key", string(r.Key)).Msg("Failed to publish trade to Kafka")
			errMu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			errMu.Unlock()
		})
	}
	wg.Wait()
	return firstErr
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		p.client.Close()
		p.client = nil
		log.Debug().Msg("Publisher client closed")
	}
	return nil
}

func createTradeRecord(topic string, trade common.TradeRecord) (*kgo.Record, error) {
	value, err := json.Marshal(NewTradeMessage(trade))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trade %s: %w", trade.Identity(), err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(tradeKey(trade)),
		Value: value,
	}, nil
}

func tradeKey(trade common.TradeRecord) string {
	return fmt.Sprintf("%s:%d", hexutil.Encode(trade.TransactionHash[:]), trade.LogIndex)
}

func NewTradeMessage(trade common.TradeRecord) TradeMessage {
	msg := TradeMessage{
		BlockNumber:     trade.BlockNumber,
		TransactionHash: hexutil.Encode(trade.TransactionHash[:]),
		LogIndex:        trade.LogIndex,
		Event:           string(trade.Event),
		Sender:          hexutil.Encode(trade.Sender[:]),
		OrderHash:       hexutil.Encode(trade.OrderHash[:]),
		OrderOwner:      hexutil.Encode(trade.OrderOwner[:]),
		InputToken:      hexutil.Encode(trade.InputToken[:]),
		OutputToken:     hexutil.Encode(trade.OutputToken[:]),
		InputAmount:     amountString(trade.InputAmount),
		OutputAmount:    amountString(trade.OutputAmount),
		Counterparty:    hexutil.Encode(trade.Counterparty[:]),
	}
	if trade.Timestamp != 0 {
		ts := trade.Timestamp
		msg.Timestamp = &ts
	}
	if trade.TxOrigin != (gethCommon.Address{}) {
		msg.TxOrigin = hexutil.Encode(trade.TxOrigin[:])
	}
	return msg
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return ""
	}
	return v.Dec()
}
