package decoder

import (
	"math/big"
	"testing"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rainlanguage/orderbook-trades/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice  = gethCommon.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob    = gethCommon.HexToAddress("0x0000000000000000000000000000000000000b0b")
	taker  = gethCommon.HexToAddress("0x000000000000000000000000000000000000beef")
	tokenA = gethCommon.HexToAddress("0x000000000000000000000000000000000000aaaa")
	tokenB = gethCommon.HexToAddress("0x000000000000000000000000000000000000bbbb")
	tokenC = gethCommon.HexToAddress("0x000000000000000000000000000000000000cccc")
	txHash = gethCommon.HexToHash("0x1234000000000000000000000000000000000000000000000000000000000001")
)

func testOrder(owner gethCommon.Address, nonce byte) OrderV3 {
	return OrderV3{
		Owner: owner,
		Evaluable: EvaluableV3{
			Interpreter: gethCommon.HexToAddress("0x0000000000000000000000000000000000001111"),
			Store:       gethCommon.HexToAddress("0x0000000000000000000000000000000000002222"),
			Bytecode:    []byte{0x01, 0x02, 0x03},
		},
		ValidInputs: []IO{
			{Token: tokenA, Decimals: 18, VaultId: big.NewInt(1)},
			{Token: tokenC, Decimals: 6, VaultId: big.NewInt(2)},
		},
		ValidOutputs: []IO{
			{Token: tokenB, Decimals: 6, VaultId: big.NewInt(1)},
		},
		Nonce: [32]byte{nonce},
	}
}

func packTakeOrder(t *testing.T, d *Decoder, ev takeOrderV2Event) types.Log {
	t.Helper()
	event := d.abi.Events[string(common.EventTakeOrderV2)]
	data, err := event.Inputs.NonIndexed().Pack(ev.Sender, ev.Config, ev.Input, ev.Output)
	require.NoError(t, err)
	return types.Log{
		Topics:      []gethCommon.Hash{event.ID},
		Data:        data,
		BlockNumber: 120,
		TxHash:      txHash,
		Index:       3,
	}
}

func packClear(t *testing.T, d *Decoder, ev clearV2Event) types.Log {
	t.Helper()
	event := d.abi.Events[string(common.EventClearV2)]
	data, err := event.Inputs.NonIndexed().Pack(ev.Sender, ev.Alice, ev.Bob, ev.ClearConfig)
	require.NoError(t, err)
	return types.Log{
		Topics:      []gethCommon.Hash{event.ID},
		Data:        data,
		BlockNumber: 130,
		TxHash:      txHash,
		Index:       7,
	}
}

func validTakeOrder() takeOrderV2Event {
	return takeOrderV2Event{
		Sender: taker,
		Config: TakeOrderConfigV3{
			Order:         testOrder(alice, 1),
			InputIOIndex:  big.NewInt(1),
			OutputIOIndex: big.NewInt(0),
			SignedContext: []SignedContextV1{},
		},
		Input:  big.NewInt(5_000_000),
		Output: new(big.Int).Mul(big.NewInt(3), big.NewInt(1_000_000_000_000_000_000)),
	}
}

func validClear() clearV2Event {
	return clearV2Event{
		Sender: taker,
		Alice:  testOrder(alice, 1),
		Bob:    testOrder(bob, 2),
		ClearConfig: ClearConfig{
			AliceInputIOIndex:  big.NewInt(0),
			AliceOutputIOIndex: big.NewInt(0),
			BobInputIOIndex:    big.NewInt(1),
			BobOutputIOIndex:   big.NewInt(0),
			AliceBountyVaultId: big.NewInt(9),
			BobBountyVaultId:   big.NewInt(10),
		},
	}
}

func TestNewDecoderKnowsBothEvents(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	topics := d.Topics()
	require.Len(t, topics, 2)
	assert.Equal(t, crypto.Keccak256Hash([]byte(d.abi.Events["ClearV2"].Sig)), topics[0])
	assert.Equal(t, crypto.Keccak256Hash([]byte(d.abi.Events["TakeOrderV2"].Sig)), topics[1])
}

func TestDecodeTakeOrderV2(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	ev := validTakeOrder()
	record, err := d.Decode(packTakeOrder(t, d, ev))
	require.NoError(t, err)

	expectedHash, err := d.OrderHash(ev.Config.Order)
	require.NoError(t, err)

	assert.Equal(t, common.EventTakeOrderV2, record.Event)
	assert.Equal(t, uint64(120), record.BlockNumber)
	assert.Equal(t, txHash, record.TransactionHash)
	assert.Equal(t, uint64(3), record.LogIndex)
	assert.Equal(t, taker, record.Sender)
	assert.Equal(t, taker, record.Counterparty)
	assert.Equal(t, alice, record.OrderOwner)
	assert.Equal(t, expectedHash, record.OrderHash)
	assert.Equal(t, tokenC, record.InputToken)
	assert.Equal(t, tokenB, record.OutputToken)
	require.NotNil(t, record.InputAmount)
	require.NotNil(t, record.OutputAmount)
	assert.Equal(t, "5000000", record.InputAmount.Dec())
	assert.Equal(t, "3000000000000000000", record.OutputAmount.Dec())
	assert.Zero(t, record.Timestamp)
}

func TestDecodeClearV2(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	ev := validClear()
	record, err := d.Decode(packClear(t, d, ev))
	require.NoError(t, err)

	aliceHash, err := d.OrderHash(ev.Alice)
	require.NoError(t, err)

	assert.Equal(t, common.EventClearV2, record.Event)
	assert.Equal(t, uint64(130), record.BlockNumber)
	assert.Equal(t, uint64(7), record.LogIndex)
	assert.Equal(t, taker, record.Sender)
	assert.Equal(t, alice, record.OrderOwner)
	assert.Equal(t, bob, record.Counterparty)
	assert.Equal(t, aliceHash, record.OrderHash)
	assert.Equal(t, tokenA, record.InputToken)
	assert.Equal(t, tokenB, record.OutputToken)
	assert.Nil(t, record.InputAmount)
	assert.Nil(t, record.OutputAmount)
}

func TestOrderHashDependsOnOrderContents(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	first, err := d.OrderHash(testOrder(alice, 1))
	require.NoError(t, err)
	again, err := d.OrderHash(testOrder(alice, 1))
	require.NoError(t, err)
	otherNonce, err := d.OrderHash(testOrder(alice, 2))
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.NotEqual(t, first, otherNonce)
}

func TestDecodeUnknownEvent(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	// Test case: topic0 of an unrelated event
	entry := types.Log{
		Topics:      []gethCommon.Hash{crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))},
		Data:        make([]byte, 32),
		BlockNumber: 10,
		TxHash:      txHash,
	}
	_, err = d.Decode(entry)
	require.Error(t, err)
	assert.True(t, IsUnknownEvent(err))
	assert.False(t, IsMalformed(err))

	// Test case: anonymous log without topics
	_, err = d.Decode(types.Log{BlockNumber: 10})
	require.Error(t, err)
	assert.True(t, IsUnknownEvent(err))
}

func TestDecodeMalformedPayload(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	entry := packTakeOrder(t, d, validTakeOrder())

	// Test case: payload truncated in the middle of the dynamic section
	truncated := entry
	truncated.Data = entry.Data[:len(entry.Data)/2]
	_, err = d.Decode(truncated)
	require.Error(t, err)
	assert.True(t, IsMalformed(err))

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, uint64(120), decodeErr.BlockNumber)
	assert.Equal(t, uint64(3), decodeErr.LogIndex)

	// Test case: empty payload
	empty := entry
	empty.Data = nil
	_, err = d.Decode(empty)
	require.Error(t, err)
	assert.True(t, IsMalformed(err))

	// Test case: trailing bytes after a well-formed payload
	overlong := entry
	overlong.Data = append(append([]byte{}, entry.Data...), make([]byte, 64)...)
	_, err = d.Decode(overlong)
	require.Error(t, err)
	assert.True(t, IsMalformed(err))

	// Test case: known topic0 followed by an extra topic
	extraTopic := entry
	extraTopic.Topics = []gethCommon.Hash{entry.Topics[0], gethCommon.HexToHash("0x01")}
	_, err = d.Decode(extraTopic)
	require.Error(t, err)
	assert.True(t, IsMalformed(err))

	// Test case: the untouched payload still decodes
	_, err = d.Decode(entry)
	require.NoError(t, err)
}

func TestDecodeIOIndexOutOfRange(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	ev := validTakeOrder()
	ev.Config.OutputIOIndex = big.NewInt(5)
	_, err = d.Decode(packTakeOrder(t, d, ev))
	require.Error(t, err)
	assert.True(t, IsMalformed(err))
	assert.Contains(t, err.Error(), "out of range")

	clearEv := validClear()
	clearEv.ClearConfig.BobInputIOIndex = big.NewInt(2)
	_, err = d.Decode(packClear(t, d, clearEv))
	require.Error(t, err)
	assert.True(t, IsMalformed(err))
}
