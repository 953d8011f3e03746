package redeem

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btc-parachain/core/internal/oracle"
	"github.com/btc-parachain/core/internal/relay"
	"github.com/btc-parachain/core/internal/state"
	"github.com/btc-parachain/core/internal/types"
	"github.com/btc-parachain/core/internal/vault"
)

const (
	currencyBTC types.CurrencyID = 0
	currencyDOT types.CurrencyID = 1
)

type fakeVerifier struct{ err error }

func (f fakeVerifier) VerifyInclusion(relay.Hash, relay.MerkleProof, uint32, uint32) error {
	return f.err
}

func testAddress(t *testing.T, b byte) types.Address {
	t.Helper()
	buf := make([]byte, 20)
	buf[0] = b
	addr, err := types.NewAddress(types.AccountPrefix, buf)
	require.NoError(t, err)
	return addr
}

func p2pkhScript(b byte) []byte {
	script := make([]byte, 25)
	script[0] = opDup
	script[1] = opHash160
	script[2] = 0x14
	script[3] = b
	script[23] = opEqualVerify
	script[24] = opCheckSig
	return script
}

// singleOutputTx builds a minimal non-segwit transaction paying amount to
// walletScript and embedding requestID in a single OP_RETURN output.
func singleOutputTx(t *testing.T, walletScript []byte, amount uint64, requestID ID) []byte {
	t.Helper()
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint32(1)) // version
	buf.WriteByte(1)                                       // input count
	buf.Write(make([]byte, 32))                            // prev txid
	_ = binary.Write(&buf, binary.LittleEndian, uint32(0xffffffff))
	buf.WriteByte(0) // empty scriptSig
	_ = binary.Write(&buf, binary.LittleEndian, uint32(0xffffffff))

	buf.WriteByte(2) // output count
	_ = binary.Write(&buf, binary.LittleEndian, amount)
	buf.WriteByte(byte(len(walletScript)))
	buf.Write(walletScript)

	opReturnScript := append([]byte{opReturn, byte(len(requestID))}, requestID[:]...)
	_ = binary.Write(&buf, binary.LittleEndian, uint64(0))
	buf.WriteByte(byte(len(opReturnScript)))
	buf.Write(opReturnScript)

	_ = binary.Write(&buf, binary.LittleEndian, uint32(0)) // locktime
	return buf.Bytes()
}

func inclusionProof(t *testing.T, rawTx []byte) relay.MerkleProof {
	t.Helper()
	tx, err := ParseTransaction(rawTx)
	require.NoError(t, err)
	return relay.MerkleProof{
		BlockHeader:      relay.Header{MerkleRoot: tx.TxID},
		TransactionCount: 1,
		Hashes:           []relay.Hash{tx.TxID},
		Flags:            []byte{0x01},
	}
}

// fixed18FromPermille builds a Fixed18 equal to permille/1000, e.g. 1500 -> 1.5.
func fixed18FromPermille(t *testing.T, permille int64) types.Fixed18 {
	t.Helper()
	scaled := types.OneFixed18().Int()
	scaled.Mul(scaled, big.NewInt(permille))
	scaled.Quo(scaled, big.NewInt(1000))
	f, err := types.NewFixed18FromBigInt(scaled)
	require.NoError(t, err)
	return f
}

type harness struct {
	engine   *Engine
	ledger   *state.Ledger
	vaults   *vault.Registry
	feed     *oracle.Adapter
	pair     vault.PairKey
	vaultID  vault.ID
	operator types.Address
	redeemer types.Address
	wallet   []byte
}

// setupHarness builds a registered vault backed by stakeDOT collateral,
// with issuedBTC wrapped tokens already issued to the redeemer at a
// starting exchange rate of 1 BTC = startRateDOT DOT, then moves the
// oracle feed to 1 BTC = liveRateDOT DOT for the test body to exercise
// against. cfg is used as given; callers fill in the fields their
// scenario needs.
func setupHarness(t *testing.T, cfg Config, stakeDOT, issuedBTC, startRateDOT, liveRateDOT uint64) *harness {
	t.Helper()
	ledger := state.NewLedger()
	feed := oracle.NewAdapter(time.Hour, nil)
	pair := vault.PairKey{Collateral: currencyDOT, Wrapped: currencyBTC}

	setRate := func(rateDOT uint64) {
		scaled := new(big.Int).Mul(types.OneFixed18().Int(), new(big.Int).SetUint64(rateDOT))
		rate, err := types.NewFixed18FromBigInt(scaled)
		require.NoError(t, err)
		feed.SetRate(currencyBTC, currencyDOT, rate, time.Now())
	}
	setRate(startRateDOT)

	vaults := vault.NewRegistry(ledger, feed)
	vaults.SetPairParams(pair, vault.PairParams{
		SystemCollateralCeiling: types.NewU128FromUint64(1_000_000_000),
		SecureThreshold:         fixed18FromPermille(t, 1500),
		PremiumThreshold:        fixed18FromPermille(t, 1300),
		LiquidationThreshold:    fixed18FromPermille(t, 1100),
		MinimumCollateralVault:  types.NewU128FromUint64(1),
	})

	operator := testAddress(t, 0x10)
	walletScript := p2pkhScript(0xaa)
	walletHex := hex.EncodeToString(walletScript)
	vaultID := vault.ID{Account: operator, Pair: pair}
	_, err := vaults.Register(vaultID, walletHex)
	require.NoError(t, err)

	require.NoError(t, ledger.Mint(operator, pair.Collateral, types.NewU128FromUint64(stakeDOT)))
	require.NoError(t, vaults.TryDepositCollateral(vaultID, operator, types.NewU128FromUint64(stakeDOT)))
	require.NoError(t, vaults.TryIncreaseToBeIssued(vaultID, types.NewU128FromUint64(issuedBTC), 0))

	redeemer := testAddress(t, 0x20)
	require.NoError(t, vaults.IssueTokens(vaultID, redeemer, types.NewU128FromUint64(issuedBTC)))

	if liveRateDOT != startRateDOT {
		setRate(liveRateDOT)
	}

	engine := NewEngine(cfg, ledger, vaults, fakeVerifier{}, feed)
	return &harness{
		engine: engine, ledger: ledger, vaults: vaults, feed: feed,
		pair: pair, vaultID: vaultID, operator: operator, redeemer: redeemer, wallet: walletScript,
	}
}

func baseConfig() Config {
	return Config{
		Period:               100,
		DustValueSatoshis:    1,
		RedeemFeeRate:        types.Fixed18{U128: types.Zero()},
		BitcoinFeeRatePerByte: types.Zero(),
		RedeemTxSizeBytes:    0,
		PremiumRate:          fixed18FromPermileZero(),
		PunishmentFee:        fixed18FromPermileZero(),
		PunishmentDelay:      50,
		BitcoinConfirmations: 1,
	}
}

func fixed18FromPermileZero() types.Fixed18 { return types.Fixed18{U128: types.Zero()} }

func TestRequestAndExecuteRedeem(t *testing.T) {
	h := setupHarness(t, baseConfig(), 1_000, 5, 100, 100)

	var reqID ID
	reqID[0] = 0x01
	req, err := h.engine.RequestRedeem(reqID, h.redeemer, h.vaultID, types.NewU128FromUint64(3), "bc1qredeemer", 10)
	require.NoError(t, err)
	require.Equal(t, StatusPending, req.Status)
	require.Equal(t, uint64(3), req.Burned.Int().Uint64())
	require.Equal(t, uint64(3), req.AmountBTC.Int().Uint64())
	require.Equal(t, uint64(3), h.ledger.Locked(h.redeemer, h.pair.Wrapped).Int().Uint64())

	rawTx := singleOutputTx(t, h.wallet, 3, reqID)
	proof := inclusionProof(t, rawTx)
	require.NoError(t, h.engine.ExecuteRedeem(reqID, rawTx, proof, 1, 10))

	got, ok := h.engine.Request(reqID)
	require.True(t, ok)
	require.Equal(t, StatusCompleted, got.Status)
	require.True(t, h.ledger.Locked(h.redeemer, h.pair.Wrapped).IsZero())
}

// TestRequestRedeemFeeDecomposition exercises spec.md §4.3 step 2's split of
// amount_wrapped into fee, inclusion_fee, burned, and amount_btc, and
// checks the fee is credited to the fee pool account once the redeem
// executes.
func TestRequestRedeemFeeDecomposition(t *testing.T) {
	cfg := baseConfig()
	cfg.RedeemFeeRate = fixed18FromPermille(t, 10) // 1%
	cfg.BitcoinFeeRatePerByte = types.NewU128FromUint64(2)
	cfg.RedeemTxSizeBytes = 250
	cfg.DustValueSatoshis = 1

	h := setupHarness(t, cfg, 20_000_000, 100_000, 100, 100)

	var reqID ID
	reqID[0] = 0x05
	req, err := h.engine.RequestRedeem(reqID, h.redeemer, h.vaultID, types.NewU128FromUint64(100_000), "bc1qfee", 10)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), req.Fee.Int().Uint64())
	require.Equal(t, uint64(99_000), req.Burned.Int().Uint64())
	require.Equal(t, uint64(500), req.InclusionFee.Int().Uint64())
	require.Equal(t, uint64(98_500), req.AmountBTC.Int().Uint64())

	rawTx := singleOutputTx(t, h.wallet, 98_500, reqID)
	proof := inclusionProof(t, rawTx)
	require.NoError(t, h.engine.ExecuteRedeem(reqID, rawTx, proof, 1, 10))

	feePool := feePoolAccount(h.pair.Wrapped)
	require.Equal(t, uint64(1_000), h.ledger.Free(feePool, h.pair.Wrapped).Int().Uint64())
	require.True(t, h.ledger.Locked(h.redeemer, h.pair.Wrapped).IsZero())
}

func TestRequestRedeemRejectsDust(t *testing.T) {
	cfg := baseConfig()
	cfg.DustValueSatoshis = 10
	h := setupHarness(t, cfg, 1_000, 5, 100, 100)

	var reqID ID
	reqID[0] = 0x06
	_, err := h.engine.RequestRedeem(reqID, h.redeemer, h.vaultID, types.NewU128FromUint64(3), "bc1qdust", 10)
	require.ErrorIs(t, err, ErrAmountBelowDustLimit)
}

// TestRequestRedeemAppliesPremium covers the case where the vault has
// fallen below its pair's premium threshold by the time a redeem is
// requested: a premium is computed against the request and paid out of
// the vault's stake on execution, on top of the normal settlement.
func TestRequestRedeemAppliesPremium(t *testing.T) {
	cfg := baseConfig()
	cfg.PremiumRate = fixed18FromPermille(t, 50) // 5%
	h := setupHarness(t, cfg, 400, 5, 50, 100)

	var reqID ID
	reqID[0] = 0x07
	req, err := h.engine.RequestRedeem(reqID, h.redeemer, h.vaultID, types.NewU128FromUint64(2), "bc1qpremium", 10)
	require.NoError(t, err)
	require.Equal(t, uint64(10), req.Premium.Int().Uint64()) // 2 BTC * 100 DOT/BTC * 5%

	rawTx := singleOutputTx(t, h.wallet, 2, reqID)
	proof := inclusionProof(t, rawTx)
	before := h.ledger.Free(h.redeemer, h.pair.Collateral)
	require.NoError(t, h.engine.ExecuteRedeem(reqID, rawTx, proof, 1, 10))
	after := h.ledger.Free(h.redeemer, h.pair.Collateral)
	gained, err := after.Sub(before)
	require.NoError(t, err)
	require.Equal(t, uint64(10), gained.Int().Uint64())
}

func TestCancelRedeemRetry(t *testing.T) {
	cfg := baseConfig()
	cfg.PunishmentFee = fixed18FromPermille(t, 50) // 5%
	h := setupHarness(t, cfg, 1_000, 5, 100, 100)

	var reqID ID
	reqID[0] = 0x02
	_, err := h.engine.RequestRedeem(reqID, h.redeemer, h.vaultID, types.NewU128FromUint64(2), "bc1qredeemer2", 10)
	require.NoError(t, err)

	err = h.engine.CancelRedeem(reqID, 20, false)
	require.ErrorIs(t, err, ErrRequestNotExpired)

	require.NoError(t, h.engine.CancelRedeem(reqID, 200, false))
	req, _ := h.engine.Request(reqID)
	require.Equal(t, StatusRetried, req.Status)
	// The redeemer was minted 5 wrapped tokens, locked 2 for this request,
	// and gets the full 2 back as free balance once the reservation unwinds.
	require.Equal(t, uint64(5), h.ledger.Free(h.redeemer, h.pair.Wrapped).Int().Uint64())
	require.True(t, h.ledger.Locked(h.redeemer, h.pair.Wrapped).IsZero())
	// The vault missed its payout deadline, so it is punished and banned
	// even though the request was retried rather than reimbursed.
	require.False(t, h.ledger.Free(h.redeemer, h.pair.Collateral).IsZero())
	v, _ := h.vaults.Vault(h.vaultID)
	require.Equal(t, uint32(250), v.BannedUntilBlock)
}

// TestCancelRedeemReimburseSufficientCollateral covers cancel_redeem's
// Reimbursed(true) direct branch: the vault can afford the redeemer's
// collateral payout and remain above its secure threshold, so the
// transition skips the Reimbursed(false) intermediate state.
func TestCancelRedeemReimburseSufficientCollateral(t *testing.T) {
	cfg := baseConfig()
	cfg.PunishmentFee = fixed18FromPermille(t, 50) // 5%
	h := setupHarness(t, cfg, 1_000, 5, 100, 100)

	var reqID ID
	reqID[0] = 0x03
	_, err := h.engine.RequestRedeem(reqID, h.redeemer, h.vaultID, types.NewU128FromUint64(2), "bc1qredeemer3", 10)
	require.NoError(t, err)

	require.NoError(t, h.engine.CancelRedeem(reqID, 200, true))
	req, _ := h.engine.Request(reqID)
	require.Equal(t, StatusReimbursedTrue, req.Status)

	// The locked 2 tokens were transferred to the vault's own free balance
	// (not burned, not returned to the redeemer), leaving the untouched
	// remainder of the original 5-token mint as the redeemer's free balance.
	require.True(t, h.ledger.Locked(h.redeemer, h.pair.Wrapped).IsZero())
	require.Equal(t, uint64(3), h.ledger.Free(h.redeemer, h.pair.Wrapped).Int().Uint64())
	require.Equal(t, uint64(2), h.ledger.Free(h.operator, h.pair.Wrapped).Int().Uint64())
	// The redeemer was compensated in collateral currency for the
	// punishment and the reimbursement payout alike.
	require.False(t, h.ledger.Free(h.redeemer, h.pair.Collateral).IsZero())
	// Issued is untouched: the vault still backs the same 5 tokens, just 3
	// in the redeemer's hands and 2 now in the vault's own free balance.
	v, _ := h.vaults.Vault(h.vaultID)
	require.Equal(t, uint64(5), v.Issued.Int().Uint64())
	require.True(t, v.ToBeRedeemed.IsZero())
}

// TestCancelRedeemReimburseInsufficientCollateral covers the
// under-collateralized branch: the vault cannot afford the payout while
// staying above its secure threshold, so the request lands in
// Reimbursed(false) with its tokens burned, and only transitions onward to
// Reimbursed(true) once MintTokensForReimbursedRedeem is called.
func TestCancelRedeemReimburseInsufficientCollateral(t *testing.T) {
	cfg := baseConfig()
	cfg.PunishmentFee = fixed18FromPermille(t, 50) // 5%
	// Secure threshold requires 5*100*1.5 = 750 DOT; 760 passes the initial
	// issuance check but cannot absorb punishment(10)+payout(200) and stay
	// above 750.
	h := setupHarness(t, cfg, 760, 5, 100, 100)

	var reqID ID
	reqID[0] = 0x04
	_, err := h.engine.RequestRedeem(reqID, h.redeemer, h.vaultID, types.NewU128FromUint64(2), "bc1qredeemer4", 10)
	require.NoError(t, err)

	require.NoError(t, h.engine.CancelRedeem(reqID, 200, true))
	req, _ := h.engine.Request(reqID)
	require.Equal(t, StatusReimbursedFalse, req.Status)

	// The locked 2 tokens were burned outright, leaving the untouched
	// remainder of the original 5-token mint as free balance.
	require.True(t, h.ledger.Locked(h.redeemer, h.pair.Wrapped).IsZero())
	require.Equal(t, uint64(3), h.ledger.Free(h.redeemer, h.pair.Wrapped).Int().Uint64())
	require.False(t, h.ledger.Free(h.redeemer, h.pair.Collateral).IsZero())

	v, _ := h.vaults.Vault(h.vaultID)
	require.Equal(t, uint64(3), v.Issued.Int().Uint64())

	require.NoError(t, h.engine.MintTokensForReimbursedRedeem(reqID))
	req, _ = h.engine.Request(reqID)
	require.Equal(t, StatusReimbursedTrue, req.Status)
	v, _ = h.vaults.Vault(h.vaultID)
	require.Equal(t, uint64(5), v.Issued.Int().Uint64())

	err = h.engine.MintTokensForReimbursedRedeem(reqID)
	require.ErrorIs(t, err, ErrNotReimbursedPending)
}

func TestRequestRedeemRejectsLiquidatedVault(t *testing.T) {
	h := setupHarness(t, baseConfig(), 400, 5, 50, 100)
	require.NoError(t, h.vaults.LiquidateVault(h.vaultID))

	var reqID ID
	reqID[0] = 0x08
	_, err := h.engine.RequestRedeem(reqID, h.redeemer, h.vaultID, types.NewU128FromUint64(2), "bc1qliq", 10)
	require.ErrorIs(t, err, ErrVaultLiquidated)
}

// TestExecuteRedeemLiquidatedVault covers a redeem opened while the vault
// was still active but whose Bitcoin payment is verified only after the
// vault has since been liquidated: settlement proceeds as normal, plus the
// vault's own parked share of its liquidated collateral is released back
// to the vault's free balance.
func TestExecuteRedeemLiquidatedVault(t *testing.T) {
	h := setupHarness(t, baseConfig(), 400, 5, 50, 50)

	var reqID ID
	reqID[0] = 0x09
	_, err := h.engine.RequestRedeem(reqID, h.redeemer, h.vaultID, types.NewU128FromUint64(2), "bc1qliqexec", 10)
	require.NoError(t, err)

	// Appreciate BTC against DOT so the vault falls below its liquidation
	// threshold with a 2-BTC reservation still outstanding.
	scaled := new(big.Int).Mul(types.OneFixed18().Int(), big.NewInt(100))
	rate, err := types.NewFixed18FromBigInt(scaled)
	require.NoError(t, err)
	h.feed.SetRate(currencyBTC, currencyDOT, rate, time.Now())
	require.NoError(t, h.vaults.LiquidateVault(h.vaultID))

	v, _ := h.vaults.Vault(h.vaultID)
	require.Equal(t, vault.StatusLiquidated, v.Status)
	require.False(t, v.LiquidatedCollateral.IsZero())

	rawTx := singleOutputTx(t, h.wallet, 2, reqID)
	proof := inclusionProof(t, rawTx)
	before := h.ledger.Free(h.operator, h.pair.Collateral)
	require.NoError(t, h.engine.ExecuteRedeem(reqID, rawTx, proof, 1, 10))
	after := h.ledger.Free(h.operator, h.pair.Collateral)

	got, ok := h.engine.Request(reqID)
	require.True(t, ok)
	require.Equal(t, StatusCompleted, got.Status)
	require.True(t, after.Cmp(before) > 0)

	lv, ok := h.vaults.LiquidationVault(h.pair)
	require.True(t, ok)
	require.True(t, lv.ToBeRedeemed.IsZero())
}

// TestCancelRedeemLiquidatedVaultRetry covers cancel_redeem's liquidated
// branch without reimbursement: no punishment is charged, and the parked
// liquidated_collateral share for this redeem moves into the pair's
// liquidation vault while the redeemer keeps their locked tokens to retry.
func TestCancelRedeemLiquidatedVaultRetry(t *testing.T) {
	h := setupHarness(t, baseConfig(), 400, 5, 50, 50)

	var reqID ID
	reqID[0] = 0x0a
	_, err := h.engine.RequestRedeem(reqID, h.redeemer, h.vaultID, types.NewU128FromUint64(2), "bc1qliqretry", 10)
	require.NoError(t, err)

	scaled := new(big.Int).Mul(types.OneFixed18().Int(), big.NewInt(100))
	rate, err := types.NewFixed18FromBigInt(scaled)
	require.NoError(t, err)
	h.feed.SetRate(currencyBTC, currencyDOT, rate, time.Now())
	require.NoError(t, h.vaults.LiquidateVault(h.vaultID))

	lvBefore, _ := h.vaults.LiquidationVault(h.pair)
	collateralBefore := lvBefore.Collateral

	require.NoError(t, h.engine.CancelRedeem(reqID, 200, false))
	req, _ := h.engine.Request(reqID)
	require.Equal(t, StatusRetried, req.Status)

	// No punishment: a liquidated vault has nothing left to slash for
	// failing to pay, so the redeemer's collateral balance is untouched.
	require.True(t, h.ledger.Free(h.redeemer, h.pair.Collateral).IsZero())
	require.Equal(t, uint64(5), h.ledger.Free(h.redeemer, h.pair.Wrapped).Int().Uint64())
	require.True(t, h.ledger.Locked(h.redeemer, h.pair.Wrapped).IsZero())

	lvAfter, _ := h.vaults.LiquidationVault(h.pair)
	require.True(t, lvAfter.Collateral.Cmp(collateralBefore) > 0)
	require.True(t, lvAfter.ToBeRedeemed.IsZero())
}

// TestCancelRedeemLiquidatedVaultReimburse covers cancel_redeem's
// liquidated branch with reimbursement: the redeemer's parked collateral
// share is paid out directly to them and their locked tokens are burned.
func TestCancelRedeemLiquidatedVaultReimburse(t *testing.T) {
	h := setupHarness(t, baseConfig(), 400, 5, 50, 50)

	var reqID ID
	reqID[0] = 0x0b
	_, err := h.engine.RequestRedeem(reqID, h.redeemer, h.vaultID, types.NewU128FromUint64(2), "bc1qliqreimb", 10)
	require.NoError(t, err)

	scaled := new(big.Int).Mul(types.OneFixed18().Int(), big.NewInt(100))
	rate, err := types.NewFixed18FromBigInt(scaled)
	require.NoError(t, err)
	h.feed.SetRate(currencyBTC, currencyDOT, rate, time.Now())
	require.NoError(t, h.vaults.LiquidateVault(h.vaultID))

	require.NoError(t, h.engine.CancelRedeem(reqID, 200, true))
	req, _ := h.engine.Request(reqID)
	require.Equal(t, StatusReimbursedTrue, req.Status)

	require.True(t, h.ledger.Locked(h.redeemer, h.pair.Wrapped).IsZero())
	require.Equal(t, uint64(3), h.ledger.Free(h.redeemer, h.pair.Wrapped).Int().Uint64())
	require.False(t, h.ledger.Free(h.redeemer, h.pair.Collateral).IsZero())

	lv, _ := h.vaults.LiquidationVault(h.pair)
	require.True(t, lv.ToBeRedeemed.IsZero())
}
