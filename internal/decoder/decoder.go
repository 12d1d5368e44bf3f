package decoder

import (
	_ "embed"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/rainlanguage/orderbook-trades/internal/common"
)

//go:embed orderbookv4.json
var orderbookV4ABI string

// Decoder turns raw OrderBookV4 logs into trade records. It holds no mutable
// state and is safe for concurrent use.
type Decoder struct {
	abi       abi.ABI
	events    map[gethCommon.Hash]abi.Event
	orderArgs abi.Arguments
}

func NewDecoder() (*Decoder, error) {
	parsed, err := abi.JSON(strings.NewReader(orderbookV4ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse orderbook abi: %w", err)
	}

	events := make(map[gethCommon.Hash]abi.Event, len(parsed.Events))
	for _, event := range parsed.Events {
		events[event.ID] = event
	}

	clearV2, ok := parsed.Events[string(common.EventClearV2)]
	if !ok || len(clearV2.Inputs) < 2 {
		return nil, fmt.Errorf("orderbook abi is missing the %s event", common.EventClearV2)
	}

	return &Decoder{
		abi:       parsed,
		events:    events,
		orderArgs: abi.Arguments{{Name: "order", Type: clearV2.Inputs[1].Type}},
	}, nil
}

// Topics returns the topic0 hashes of every event the decoder understands,
// sorted by event name.
func (d *Decoder) Topics() []gethCommon.Hash {
	names := make([]string, 0, len(d.events))
	for _, event := range d.events {
		names = append(names, event.Name)
	}
	sort.Strings(names)

	topics := make([]gethCommon.Hash, 0, len(names))
	for _, name := range names {
		topics = append(topics, d.abi.Events[name].ID)
	}
	return topics
}

// Decode parses one log entry. Entries whose topic0 is not a known event
// yield an UnknownEvent DecodeError; payloads that do not match the event
// layout yield a Malformed DecodeError.
func (d *Decoder) Decode(entry types.Log) (record common.TradeRecord, err error) {
	if len(entry.Topics) == 0 {
		return common.TradeRecord{}, d.decodeError(UnknownEvent, entry, "", nil)
	}
	event, ok := d.events[entry.Topics[0]]
	if !ok {
		return common.TradeRecord{}, d.decodeError(UnknownEvent, entry, entry.Topics[0].Hex(), nil)
	}
	// neither event has indexed parameters
	if len(entry.Topics) != 1 {
		return common.TradeRecord{}, d.decodeError(Malformed, entry, event.Name, fmt.Errorf("expected 1 topic, got %d", len(entry.Topics)))
	}

	defer func() {
		if r := recover(); r != nil {
			record = common.TradeRecord{}
			err = d.decodeError(Malformed, entry, event.Name, fmt.Errorf("panic while unpacking: %v", r))
		}
	}()

	if err := checkEncodedLength(event, entry.Data); err != nil {
		return common.TradeRecord{}, d.decodeError(Malformed, entry, event.Name, err)
	}

	switch common.EventKind(event.Name) {
	case common.EventTakeOrderV2:
		record, err = d.decodeTakeOrderV2(entry, event)
	case common.EventClearV2:
		record, err = d.decodeClearV2(entry, event)
	default:
		return common.TradeRecord{}, d.decodeError(UnknownEvent, entry, event.Name, nil)
	}
	if err != nil {
		return common.TradeRecord{}, d.decodeError(Malformed, entry, event.Name, err)
	}
	return record, nil
}

// OrderHash returns keccak256(abi.encode(order)), the identifier the orderbook
// contract assigns to an order.
func (d *Decoder) OrderHash(order OrderV3) (gethCommon.Hash, error) {
	encoded, err := d.orderArgs.Pack(order)
	if err != nil {
		return gethCommon.Hash{}, fmt.Errorf("failed to encode order: %w", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}

func (d *Decoder) decodeTakeOrderV2(entry types.Log, event abi.Event) (common.TradeRecord, error) {
	var ev takeOrderV2Event
	if err := d.abi.UnpackIntoInterface(&ev, event.Name, entry.Data); err != nil {
		return common.TradeRecord{}, err
	}

	order := ev.Config.Order
	inputToken, err := ioToken(order.ValidInputs, ev.Config.InputIOIndex, "input")
	if err != nil {
		return common.TradeRecord{}, err
	}
	outputToken, err := ioToken(order.ValidOutputs, ev.Config.OutputIOIndex, "output")
	if err != nil {
		return common.TradeRecord{}, err
	}
	orderHash, err := d.OrderHash(order)
	if err != nil {
		return common.TradeRecord{}, err
	}
	inputAmount, err := toUint256(ev.Input, "input")
	if err != nil {
		return common.TradeRecord{}, err
	}
	outputAmount, err := toUint256(ev.Output, "output")
	if err != nil {
		return common.TradeRecord{}, err
	}

	record := baseRecord(entry, common.EventTakeOrderV2)
	record.Sender = ev.Sender
	record.OrderHash = orderHash
	record.OrderOwner = order.Owner
	record.InputToken = inputToken
	record.OutputToken = outputToken
	record.InputAmount = inputAmount
	record.OutputAmount = outputAmount
	record.Counterparty = ev.Sender
	return record, nil
}

func (d *Decoder) decodeClearV2(entry types.Log, event abi.Event) (common.TradeRecord, error) {
	var ev clearV2Event
	if err := d.abi.UnpackIntoInterface(&ev, event.Name, entry.Data); err != nil {
		return common.TradeRecord{}, err
	}

	inputToken, err := ioToken(ev.Alice.ValidInputs, ev.ClearConfig.AliceInputIOIndex, "alice input")
	if err != nil {
		return common.TradeRecord{}, err
	}
	outputToken, err := ioToken(ev.Alice.ValidOutputs, ev.ClearConfig.AliceOutputIOIndex, "alice output")
	if err != nil {
		return common.TradeRecord{}, err
	}
	// bob's indexes must be valid too, otherwise the clear could not have happened
	if _, err := ioToken(ev.Bob.ValidInputs, ev.ClearConfig.BobInputIOIndex, "bob input"); err != nil {
		return common.TradeRecord{}, err
	}
	if _, err := ioToken(ev.Bob.ValidOutputs, ev.ClearConfig.BobOutputIOIndex, "bob output"); err != nil {
		return common.TradeRecord{}, err
	}
	orderHash, err := d.OrderHash(ev.Alice)
	if err != nil {
		return common.TradeRecord{}, err
	}

	record := baseRecord(entry, common.EventClearV2)
	record.Sender = ev.Sender
	record.OrderHash = orderHash
	record.OrderOwner = ev.Alice.Owner
	record.InputToken = inputToken
	record.OutputToken = outputToken
	record.Counterparty = ev.Bob.Owner
	return record, nil
}

// checkEncodedLength rejects payloads carrying bytes beyond the canonical
// encoding of the values they decode to.
func checkEncodedLength(event abi.Event, data []byte) error {
	args := event.Inputs.NonIndexed()
	values, err := args.Unpack(data)
	if err != nil {
		return err
	}
	canonical, err := args.Pack(values...)
	if err != nil {
		return fmt.Errorf("failed to re-encode payload: %w", err)
	}
	if len(canonical) != len(data) {
		return fmt.Errorf("payload is %d bytes, canonical encoding is %d", len(data), len(canonical))
	}
	return nil
}

func (d *Decoder) decodeError(kind DecodeErrorKind, entry types.Log, topic string, err error) *DecodeError {
	return &DecodeError{
		Kind:        kind,
		BlockNumber: entry.BlockNumber,
		TxHash:      entry.TxHash,
		LogIndex:    uint64(entry.Index),
		Topic0:      topic,
		Err:         err,
	}
}

func baseRecord(entry types.Log, kind common.EventKind) common.TradeRecord {
	return common.TradeRecord{
		BlockNumber:     entry.BlockNumber,
		TransactionHash: entry.TxHash,
		LogIndex:        uint64(entry.Index),
		Event:           kind,
	}
}

func ioToken(ios []IO, index *big.Int, side string) (gethCommon.Address, error) {
	if index == nil || !index.IsInt64() || index.Int64() < 0 || index.Int64() >= int64(len(ios)) {
		return gethCommon.Address{}, fmt.Errorf("%s io index %v out of range for %d ios", side, index, len(ios))
	}
	return ios[index.Int64()].Token, nil
}

func toUint256(value *big.Int, field string) (*uint256.Int, error) {
	if value == nil {
		return nil, fmt.Errorf("%s amount is missing", field)
	}
	amount, overflow := uint256.FromBig(value)
	if overflow {
		return nil, fmt.Errorf("%s amount %s overflows uint256", field, value.String())
	}
	return amount, nil
}
