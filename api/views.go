package api

import (
	"github.com/btc-parachain/core/internal/amm"
	"github.com/btc-parachain/core/internal/lending"
	"github.com/btc-parachain/core/internal/vault"
)

// These view DTOs exist because the engine types carry unexported fields
// and *big.Int-backed amounts that don't marshal to JSON the way an API
// consumer expects (a decimal string, not bignum internals).

type relayTipView struct {
	BestHeight uint32 `json:"bestHeight"`
	BestHash   string `json:"bestHash"`
}

type vaultView struct {
	Account      string `json:"account"`
	Status       uint8  `json:"status"`
	Issued       string `json:"issued"`
	ToBeIssued   string `json:"toBeIssued"`
	ToBeRedeemed string `json:"toBeRedeemed"`
}

func newVaultView(v *vault.Vault) vaultView {
	return vaultView{
		Account:      v.ID.Account.String(),
		Status:       uint8(v.Status),
		Issued:       v.Issued.Int().String(),
		ToBeIssued:   v.ToBeIssued.Int().String(),
		ToBeRedeemed: v.ToBeRedeemed.Int().String(),
	}
}

type marketView struct {
	Currency             uint32 `json:"currency"`
	TotalSupply          string `json:"totalSupply"`
	TotalBorrows          string `json:"totalBorrows"`
	TotalReserves         string `json:"totalReserves"`
	BorrowIndex           string `json:"borrowIndex"`
	ReserveFactor         string `json:"reserveFactor"`
	CollateralFactor      string `json:"collateralFactor"`
	LiquidationThreshold  string `json:"liquidationThreshold"`
}

func newMarketView(currency uint32, m *lending.Market) marketView {
	return marketView{
		Currency:             currency,
		TotalSupply:          m.TotalSupply.Int().String(),
		TotalBorrows:         m.TotalBorrows.Int().String(),
		TotalReserves:        m.TotalReserves.Int().String(),
		BorrowIndex:          m.BorrowIndex.Int().String(),
		ReserveFactor:        m.ReserveFactor.Int().String(),
		CollateralFactor:     m.CollateralFactor.Int().String(),
		LiquidationThreshold: m.LiquidationThreshold.Int().String(),
	}
}

type poolView struct {
	ID           string   `json:"id"`
	CurrencyIDs  []uint32 `json:"currencyIds"`
	Balances     []string `json:"balances"`
	A            string   `json:"a"`
	Fee          string   `json:"fee"`
	AdminFee     string   `json:"adminFee"`
	VirtualPrice string   `json:"virtualPrice,omitempty"`
}

func newPoolView(id string, p *amm.Pool, now int64) poolView {
	currencyIDs := make([]uint32, len(p.CurrencyIDs))
	for i, c := range p.CurrencyIDs {
		currencyIDs[i] = uint32(c)
	}
	balances := make([]string, len(p.Balances))
	for i, b := range p.Balances {
		balances[i] = b.Int().String()
	}
	v := poolView{
		ID:          id,
		CurrencyIDs: currencyIDs,
		Balances:    balances,
		A:           p.A(now).String(),
		Fee:         p.Fee.String(),
		AdminFee:    p.AdminFee.String(),
	}
	if vp, err := p.VirtualPrice(now); err == nil {
		v.VirtualPrice = vp.String()
	}
	return v
}
