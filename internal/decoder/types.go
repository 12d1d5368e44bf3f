package decoder

import (
	"math/big"

	gethCommon "github.com/ethereum/go-ethereum/common"
)

// Field order mirrors the ABI component order; go-ethereum copies nested
// tuples positionally.

type IO struct {
	Token    gethCommon.Address
	Decimals uint8
	VaultId  *big.Int
}

type EvaluableV3 struct {
	Interpreter gethCommon.Address
	Store       gethCommon.Address
	Bytecode    []byte
}

type OrderV3 struct {
	Owner        gethCommon.Address
	Evaluable    EvaluableV3
	ValidInputs  []IO
	ValidOutputs []IO
	Nonce        [32]byte
}

type SignedContextV1 struct {
	Signer    gethCommon.Address
	Context   []*big.Int
	Signature []byte
}

type TakeOrderConfigV3 struct {
	Order         OrderV3
	InputIOIndex  *big.Int
	OutputIOIndex *big.Int
	SignedContext []SignedContextV1
}

type ClearConfig struct {
	AliceInputIOIndex  *big.Int
	AliceOutputIOIndex *big.Int
	BobInputIOIndex    *big.Int
	BobOutputIOIndex   *big.Int
	AliceBountyVaultId *big.Int
	BobBountyVaultId   *big.Int
}

type takeOrderV2Event struct {
	Sender gethCommon.Address
	Config TakeOrderConfigV3
	Input  *big.Int
	Output *big.Int
}

type clearV2Event struct {
	Sender      gethCommon.Address
	Alice       OrderV3
	Bob         OrderV3
	ClearConfig ClearConfig
}
