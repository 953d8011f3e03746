package dispatcher

import (
	"github.com/btc-parachain/core/internal/relay"
	"github.com/btc-parachain/core/internal/world"
)

// --- BTC-Relay ---

func handleRelayInitialize(w *world.World, a Args) (any, error) {
	return nil, w.Relay.Initialize(a.Caller, a.RawHeader, a.Height, a.ParachainHeight)
}

// StoreHeaderResult mirrors relay.Store.StoreHeader's three return values
// so the handler can fit the single (any, error) handler shape.
type StoreHeaderResult struct {
	Header        *relay.RichHeader
	ExtendsMain   bool
}

func handleRelayStoreHeader(w *world.World, a Args) (any, error) {
	header, extendsMain, err := w.Relay.StoreHeader(a.Caller, a.RawHeader, a.ParachainHeight)
	if err != nil {
		return nil, err
	}
	return StoreHeaderResult{Header: header, ExtendsMain: extendsMain}, nil
}

func handleRelayVerifyInclusion(w *world.World, a Args) (any, error) {
	return nil, w.Relay.VerifyInclusion(a.TxID, a.MerkleProof, a.Confirmations, a.ParachainHeight)
}

func handleRelayMarkNoData(w *world.World, a Args) (any, error) {
	w.Relay.MarkNoData(a.Height)
	return nil, nil
}

func handleRelayMarkInvalid(w *world.World, a Args) (any, error) {
	w.Relay.MarkInvalid(a.Height)
	return nil, nil
}

// --- Vault Registry ---

func handleVaultRegister(w *world.World, a Args) (any, error) {
	return w.Vaults.Register(a.VaultID, a.WalletAddress)
}

func handleVaultDepositCollateral(w *world.World, a Args) (any, error) {
	return nil, w.Vaults.TryDepositCollateral(a.VaultID, a.Caller, a.Amount)
}

func handleVaultWithdrawCollateral(w *world.World, a Args) (any, error) {
	return nil, w.Vaults.TryWithdrawCollateral(a.VaultID, a.Caller, a.Amount)
}

func handleVaultIssueTokens(w *world.World, a Args) (any, error) {
	return nil, w.Vaults.IssueTokens(a.VaultID, a.Caller, a.Amount)
}

func handleVaultRedeemTokens(w *world.World, a Args) (any, error) {
	return nil, w.Vaults.RedeemTokens(a.VaultID, a.Caller, a.Amount)
}

func handleVaultRedeemTokensLiquidation(w *world.World, a Args) (any, error) {
	return nil, w.Vaults.RedeemTokensLiquidation(a.Pair, a.Caller, a.Amount)
}

func handleVaultLiquidateVault(w *world.World, a Args) (any, error) {
	return nil, w.Vaults.LiquidateVault(a.VaultID)
}

func handleVaultSetPairParams(w *world.World, a Args) (any, error) {
	w.Vaults.SetPairParams(a.Pair, a.PairParams)
	return nil, nil
}

// --- Redeem protocol ---

func handleRedeemRequestRedeem(w *world.World, a Args) (any, error) {
	return w.Redeems.RequestRedeem(a.RedeemID, a.Caller, a.VaultID, a.Amount, a.BTCAddress, a.Height)
}

func handleRedeemExecuteRedeem(w *world.World, a Args) (any, error) {
	return nil, w.Redeems.ExecuteRedeem(a.RedeemID, a.RawHeader, a.MerkleProof, a.Confirmations, a.Height)
}

func handleRedeemCancelRedeem(w *world.World, a Args) (any, error) {
	return nil, w.Redeems.CancelRedeem(a.RedeemID, a.Height, a.Reimburse)
}

func handleRedeemMintTokensForReimbursedRedeem(w *world.World, a Args) (any, error) {
	return nil, w.Redeems.MintTokensForReimbursedRedeem(a.RedeemID)
}

func handleRedeemSetConfig(w *world.World, a Args) (any, error) {
	w.Redeems.SetConfig(a.RedeemConfig)
	return nil, nil
}

// --- Lending ---

func handleLendingAddMarket(w *world.World, a Args) (any, error) {
	return nil, w.Lending.AddMarket(a.Currency, a.RateModel, a.ReserveFactor, a.CollateralFactor,
		a.LiquidationThreshold, a.LiquidationIncentive, a.CloseFactor, a.LiquidateIncentiveReservedFactor,
		a.RewardRatePerBlock, uint64(a.Height))
}

func handleLendingForceUpdateMarket(w *world.World, a Args) (any, error) {
	return nil, w.Lending.ForceUpdateMarket(a.Currency, a.RateModel, a.ReserveFactor, a.CollateralFactor,
		a.LiquidationThreshold, a.LiquidationIncentive, a.CloseFactor, a.LiquidateIncentiveReservedFactor,
		a.RewardRatePerBlock)
}

func handleLendingMint(w *world.World, a Args) (any, error) {
	return nil, w.Lending.Mint(a.Caller, a.Currency, a.Amount, uint64(a.Height))
}

func handleLendingRedeem(w *world.World, a Args) (any, error) {
	return nil, w.Lending.Redeem(a.Caller, a.Currency, a.Amount, uint64(a.Height))
}

func handleLendingRedeemAll(w *world.World, a Args) (any, error) {
	return nil, w.Lending.RedeemAll(a.Caller, a.Currency, uint64(a.Height))
}

func handleLendingBorrow(w *world.World, a Args) (any, error) {
	return nil, w.Lending.Borrow(a.Caller, a.Currency, a.Amount, uint64(a.Height))
}

func handleLendingRepayBorrow(w *world.World, a Args) (any, error) {
	return nil, w.Lending.RepayBorrow(a.Caller, a.Currency, a.Amount, uint64(a.Height))
}

func handleLendingDepositAllCollateral(w *world.World, a Args) (any, error) {
	return nil, w.Lending.DepositAllCollateral(a.Caller, a.Currency, uint64(a.Height))
}

func handleLendingWithdrawAllCollateral(w *world.World, a Args) (any, error) {
	return nil, w.Lending.WithdrawAllCollateral(a.Caller, a.Currency, uint64(a.Height))
}

func handleLendingLiquidateBorrow(w *world.World, a Args) (any, error) {
	return nil, w.Lending.LiquidateBorrow(a.Liquidator, a.Borrower, a.DebtCurrency, a.CollateralCurrency,
		a.Amount, uint64(a.Height))
}

func handleLendingClaimReward(w *world.World, a Args) (any, error) {
	return w.Lending.ClaimReward(a.Caller, a.Currency, uint64(a.Height))
}

// --- Stable-swap AMM ---

func handleAMMAddPool(w *world.World, a Args) (any, error) {
	return nil, w.AMM.AddPool(a.PoolID, a.Pool)
}

func handleAMMAddMetaPool(w *world.World, a Args) (any, error) {
	return nil, w.AMM.AddMetaPool(a.PoolID, a.MetaPool)
}

func handleAMMAddLiquidity(w *world.World, a Args) (any, error) {
	return w.AMM.AddLiquidity(a.PoolID, a.Caller, a.AmountList, a.MinAmount, a.Now)
}

func handleAMMRemoveLiquidity(w *world.World, a Args) (any, error) {
	return w.AMM.RemoveLiquidity(a.PoolID, a.Caller, a.Amount, a.MinAmountList, a.Now)
}

func handleAMMRemoveLiquidityOneCoin(w *world.World, a Args) (any, error) {
	return w.AMM.RemoveLiquidityOneCoin(a.PoolID, a.Caller, a.Amount, a.CoinIndexI, a.MinAmount, a.Now)
}

func handleAMMSwap(w *world.World, a Args) (any, error) {
	return w.AMM.Swap(a.PoolID, a.Caller, a.CoinIndexI, a.CoinIndexJ, a.Amount, a.MinAmount, a.Now)
}

func handleAMMSwapUnderlying(w *world.World, a Args) (any, error) {
	return w.AMM.SwapUnderlying(a.PoolID, a.Caller, a.Currency, a.ToCurrency, a.Amount, a.MinAmount, a.Now)
}

func handleAMMRampA(w *world.World, a Args) (any, error) {
	pool, ok := w.AMM.Pool(a.PoolID)
	if !ok {
		return nil, errPoolNotFound(a.PoolID)
	}
	return nil, pool.RampA(a.TargetA, a.FutureTime, a.Now)
}

func handleAMMStopRampA(w *world.World, a Args) (any, error) {
	pool, ok := w.AMM.Pool(a.PoolID)
	if !ok {
		return nil, errPoolNotFound(a.PoolID)
	}
	pool.StopRampA(a.Now)
	return nil, nil
}

func handleAMMSetFees(w *world.World, a Args) (any, error) {
	pool, ok := w.AMM.Pool(a.PoolID)
	if !ok {
		return nil, errPoolNotFound(a.PoolID)
	}
	return nil, pool.SetFees(a.SwapFee, a.AdminFee)
}

// --- Governance ---

func handleGovernanceNotePreimage(w *world.World, a Args) (any, error) {
	return w.Governance.NotePreimage(a.ProposalPayload)
}

func handleGovernancePropose(w *world.World, a Args) (any, error) {
	return nil, w.Governance.Propose(a.ProposalHash, a.Backing)
}
