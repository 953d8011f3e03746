package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/btc-parachain/core/internal/dispatcher"
	"github.com/btc-parachain/core/internal/types"
	"github.com/btc-parachain/core/internal/vault"
	"github.com/btc-parachain/core/internal/world"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleRelayTip reports the relay's current main-chain tip.
func (s *Server) handleRelayTip(w http.ResponseWriter, r *http.Request) {
	best := s.world.Relay.BestBlock()
	writeJSON(w, http.StatusOK, relayTipView{
		BestHeight: s.world.Relay.BestHeight(),
		BestHash:   hex.EncodeToString(best[:]),
	})
}

// handleVault reports one vault's bookkeeping state.
func (s *Server) handleVault(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	collateral := chi.URLParam(r, "collateral")
	wrapped := chi.URLParam(r, "wrapped")

	addr, err := decodeAccount(account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pair, err := decodePair(collateral, wrapped)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id := vault.ID{Account: addr, Pair: pair}
	v, ok := s.world.Vaults.Vault(id)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("vault"))
		return
	}
	writeJSON(w, http.StatusOK, newVaultView(v))
}

// handleMarket reports one lending market's current parameters.
func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	currency, err := decodeCurrency(chi.URLParam(r, "currency"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	m, ok := s.world.Lending.Market(currency)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("market"))
		return
	}
	writeJSON(w, http.StatusOK, newMarketView(uint32(currency), m))
}

// handlePool reports one AMM pool's current balances and invariant state.
func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := s.world.AMM.Pool(id)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("pool"))
		return
	}
	writeJSON(w, http.StatusOK, newPoolView(id, p, s.world.Now))
}

// registerVaultRequest is the JSON body for the signed vault-registration
// call.
type registerVaultRequest struct {
	Account       string `json:"account"`
	Collateral    uint32 `json:"collateral"`
	Wrapped       uint32 `json:"wrapped"`
	WalletAddress string `json:"walletAddress"`
}

func (s *Server) handleRegisterVault(w http.ResponseWriter, r *http.Request) {
	var req registerVaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	addr, err := decodeAccount(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id := vault.ID{Account: addr, Pair: vault.PairKey{
		Collateral: types.CurrencyID(req.Collateral),
		Wrapped:    types.CurrencyID(req.Wrapped),
	}}
	s.dispatchHTTP(w, r, "vault.Register", dispatcher.Args{VaultID: id, WalletAddress: req.WalletAddress})
}

// setPairParamsRequest is the JSON body for the root-only pair-parameter
// call.
type setPairParamsRequest struct {
	Collateral              uint32 `json:"collateral"`
	Wrapped                 uint32 `json:"wrapped"`
	SystemCollateralCeiling string `json:"systemCollateralCeiling"`
	MinimumCollateralVault  string `json:"minimumCollateralVault"`
}

func (s *Server) handleSetPairParams(w http.ResponseWriter, r *http.Request) {
	var req setPairParamsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ceiling, err := decodeU128(req.SystemCollateralCeiling)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	minimum, err := decodeU128(req.MinimumCollateralVault)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pair := vault.PairKey{Collateral: types.CurrencyID(req.Collateral), Wrapped: types.CurrencyID(req.Wrapped)}
	s.dispatchHTTP(w, r, "vault.SetPairParams", dispatcher.Args{
		Pair: pair,
		PairParams: vault.PairParams{
			SystemCollateralCeiling: ceiling,
			MinimumCollateralVault:  minimum,
		},
	})
}

// world exposes the live World a Server wraps, for callers (e.g. the
// off-chain worker goroutine in cmd/bridged) that need direct read access
// without going through HTTP.
func (s *Server) World() *world.World { return s.world }
