package dispatcher

import (
	"fmt"

	"github.com/btc-parachain/core/internal/world"
)

// handlerFunc executes one method's business logic against the shared
// World and returns whatever the caller should receive back.
type handlerFunc func(w *world.World, a Args) (any, error)

// entry pairs a handler with the origin privilege it requires.
type entry struct {
	required privilege
	handle   handlerFunc
}

// registry maps every callable method name to its handler, built once at
// package init. Method names match the operation names used in spec.md §4
// so dispatcher logs and metrics read the same vocabulary as the spec.
var registry = map[string]entry{
	// --- BTC-Relay ---
	"relay.Initialize":     {privilegeSigned, handleRelayInitialize},
	"relay.StoreHeader":    {privilegeSigned, handleRelayStoreHeader},
	"relay.VerifyInclusion": {privilegeSigned, handleRelayVerifyInclusion},
	"relay.MarkNoData":     {privilegeFastTrack, handleRelayMarkNoData},
	"relay.MarkInvalid":    {privilegeFastTrack, handleRelayMarkInvalid},

	// --- Vault Registry ---
	"vault.Register":                  {privilegeSigned, handleVaultRegister},
	"vault.TryDepositCollateral":       {privilegeSigned, handleVaultDepositCollateral},
	"vault.TryWithdrawCollateral":      {privilegeSigned, handleVaultWithdrawCollateral},
	"vault.IssueTokens":                {privilegeSigned, handleVaultIssueTokens},
	"vault.RedeemTokens":               {privilegeSigned, handleVaultRedeemTokens},
	"vault.RedeemTokensLiquidation":    {privilegeSigned, handleVaultRedeemTokensLiquidation},
	"vault.LiquidateVault":             {privilegeFastTrack, handleVaultLiquidateVault},
	"vault.SetPairParams":              {privilegeRoot, handleVaultSetPairParams},

	// --- Redeem protocol ---
	"redeem.RequestRedeem":                  {privilegeSigned, handleRedeemRequestRedeem},
	"redeem.ExecuteRedeem":                  {privilegeSigned, handleRedeemExecuteRedeem},
	"redeem.CancelRedeem":                   {privilegeSigned, handleRedeemCancelRedeem},
	"redeem.MintTokensForReimbursedRedeem":  {privilegeRoot, handleRedeemMintTokensForReimbursedRedeem},
	"redeem.SetConfig":                      {privilegeRoot, handleRedeemSetConfig},

	// --- Lending ---
	"lending.AddMarket":             {privilegeRoot, handleLendingAddMarket},
	"lending.ForceUpdateMarket":     {privilegeRoot, handleLendingForceUpdateMarket},
	"lending.Mint":                  {privilegeSigned, handleLendingMint},
	"lending.Redeem":                {privilegeSigned, handleLendingRedeem},
	"lending.RedeemAll":             {privilegeSigned, handleLendingRedeemAll},
	"lending.Borrow":                {privilegeSigned, handleLendingBorrow},
	"lending.RepayBorrow":           {privilegeSigned, handleLendingRepayBorrow},
	"lending.DepositAllCollateral":  {privilegeSigned, handleLendingDepositAllCollateral},
	"lending.WithdrawAllCollateral": {privilegeSigned, handleLendingWithdrawAllCollateral},
	"lending.LiquidateBorrow":       {privilegeSigned, handleLendingLiquidateBorrow},
	"lending.ClaimReward":           {privilegeSigned, handleLendingClaimReward},

	// --- Stable-swap AMM ---
	"amm.AddPool":               {privilegeRoot, handleAMMAddPool},
	"amm.AddMetaPool":           {privilegeRoot, handleAMMAddMetaPool},
	"amm.AddLiquidity":          {privilegeSigned, handleAMMAddLiquidity},
	"amm.RemoveLiquidity":       {privilegeSigned, handleAMMRemoveLiquidity},
	"amm.RemoveLiquidityOneCoin": {privilegeSigned, handleAMMRemoveLiquidityOneCoin},
	"amm.Swap":                  {privilegeSigned, handleAMMSwap},
	"amm.SwapUnderlying":        {privilegeSigned, handleAMMSwapUnderlying},
	"amm.RampA":                 {privilegeRoot, handleAMMRampA},
	"amm.StopRampA":             {privilegeRoot, handleAMMStopRampA},
	"amm.SetFees":               {privilegeRoot, handleAMMSetFees},

	// --- Governance ---
	"governance.NotePreimage": {privilegeSigned, handleGovernanceNotePreimage},
	"governance.Propose":      {privilegeSigned, handleGovernancePropose},
}

// lookup resolves a method name to its registry entry.
func lookup(method string) (entry, error) {
	e, ok := registry[method]
	if !ok {
		return entry{}, fmt.Errorf("dispatcher: unknown method %q", method)
	}
	return e, nil
}
