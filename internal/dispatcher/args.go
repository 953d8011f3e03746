package dispatcher

import (
	"math/big"

	"github.com/btc-parachain/core/internal/amm"
	"github.com/btc-parachain/core/internal/lending"
	"github.com/btc-parachain/core/internal/redeem"
	"github.com/btc-parachain/core/internal/relay"
	"github.com/btc-parachain/core/internal/types"
	"github.com/btc-parachain/core/internal/vault"
)

// Args is the union of every parameter a dispatched method might need.
// Each handler reads only the fields its method uses; unused fields are
// left at their zero value. This mirrors the teacher repo's gateway
// request DTOs, which carry one struct per route rather than per-field
// positional arguments.
type Args struct {
	// Identity
	Caller   types.Address
	VaultID  vault.ID
	Pair     vault.PairKey
	RedeemID redeem.ID
	PoolID   string
	Currency types.CurrencyID
	ToCurrency types.CurrencyID
	CoinIndexI int
	CoinIndexJ int

	// Amounts
	Amount        types.U128
	Amount2       types.U128
	AmountList    []types.U128
	MinAmount     types.U128
	MinAmountList []types.U128

	// Relay
	RawHeader       []byte
	ParachainHeight uint32
	TxID            relay.Hash
	MerkleProof     relay.MerkleProof
	Confirmations   uint32

	// Redeem
	BTCAddress   string
	Reimburse    bool
	RedeemConfig redeem.Config

	// Vault
	WalletAddress string
	PairParams    vault.PairParams

	// Lending
	RateModel                        lending.RateModel
	ReserveFactor                    types.Fixed18
	CollateralFactor                 types.Fixed18
	LiquidationThreshold             types.Fixed18
	LiquidationIncentive             types.Fixed18
	CloseFactor                      types.Fixed18
	LiquidateIncentiveReservedFactor types.Fixed18
	RewardRatePerBlock               types.U128
	Liquidator                       types.Address
	Borrower                         types.Address
	DebtCurrency                     types.CurrencyID
	CollateralCurrency               types.CurrencyID

	// AMM
	Pool        *amm.Pool
	MetaPool    *amm.MetaPool
	TargetA     *big.Int
	FutureTime  int64
	SwapFee     *big.Int
	AdminFee    *big.Int

	// Governance
	ProposalPayload []byte
	ProposalHash    [32]byte
	Backing         types.U128

	// Host-supplied clock, advanced before the handler runs.
	Height uint32
	Now    int64
}
