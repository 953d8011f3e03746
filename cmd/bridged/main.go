// Command bridged is the node binary: it loads configuration, wires
// World's engines behind the dispatcher, serves the HTTP API, exposes
// Prometheus metrics, and runs the off-chain undercollateralization
// sweep on a timer. Structure mirrors the teacher repo's
// services/lendingd/main.go entrypoint (config load, telemetry init,
// listener, signal-based graceful shutdown).
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/btc-parachain/core/api"
	"github.com/btc-parachain/core/cmd/internal/secretsource"
	"github.com/btc-parachain/core/config"
	"github.com/btc-parachain/core/internal/dispatcher"
	"github.com/btc-parachain/core/internal/offchain"
	"github.com/btc-parachain/core/internal/oracle"
	"github.com/btc-parachain/core/internal/redeem"
	"github.com/btc-parachain/core/internal/relay"
	"github.com/btc-parachain/core/internal/types"
	"github.com/btc-parachain/core/internal/vault"
	"github.com/btc-parachain/core/internal/world"
	"github.com/btc-parachain/core/observability/logging"
	"github.com/btc-parachain/core/observability/otelcfg"
	"github.com/btc-parachain/core/storage"
)

// storageAuditAdapter forwards dispatcher audit records into storage's
// own AuditEntry schema, keeping internal/dispatcher free of a storage
// import (the wiring belongs here, at the edge).
type storageAuditAdapter struct {
	store *storage.Store
}

func (a storageAuditAdapter) AppendAudit(rec dispatcher.AuditRecord) error {
	return a.store.AppendAudit(storage.AuditEntry{
		CorrelationID: rec.CorrelationID,
		Component:     rec.Component,
		Method:        rec.Method,
		Origin:        rec.Origin,
		Height:        rec.Height,
		Timestamp:     rec.Timestamp,
		Detail:        rec.Detail,
		Err:           rec.Err,
	})
}

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "bridged.toml", "path to node configuration")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.Service.Name, cfg.Service.Environment, logging.FileConfig{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var shutdownTelemetry otelcfg.Shutdown
	if strings.TrimSpace(cfg.Telemetry.OTLPEndpoint) != "" {
		shutdownTelemetry, err = otelcfg.Init(ctx, otelcfg.Config{
			ServiceName: cfg.Service.Name,
			Environment: cfg.Service.Environment,
			Endpoint:    cfg.Telemetry.OTLPEndpoint,
			Insecure:    cfg.Telemetry.Insecure,
		})
		if err != nil {
			logger.Error("init telemetry", "err", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTelemetry(shutdownCtx)
		}()
	}

	store, err := storage.Open(cfg.Storage.SQLitePath)
	if err != nil {
		logger.Error("open storage", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	w := world.New(world.Config{
		Relay: relay.Config{
			DisableDifficultyCheck:       cfg.Relay.DisableDifficultyCheck,
			StableBitcoinConfirmations:   cfg.Relay.StableBitcoinConfirmations,
			StableParachainConfirmations: cfg.Relay.StableParachainConfirmations,
		},
		OracleMaxAge:           time.Duration(cfg.Oracle.MaxAgeSeconds) * time.Second,
		OracleClock:            oracle.SystemClock,
		ValuationCurrency:      types.CurrencyID(cfg.Lending.ValuationCurrencyID),
		RewardCurrency:         types.CurrencyID(cfg.Lending.RewardCurrencyID),
		Redeem:                 redeem.Config{},
		GovernanceLaunchOffset: time.Duration(cfg.Governance.LaunchOffsetMillis) * time.Millisecond,
	})

	jwtSecret := cfg.API.JWTSecret
	if jwtSecret == "" && cfg.API.RequireAuth {
		jwtSecret, err = secretsource.New("BRIDGED_JWT_SECRET").Get()
		if err != nil {
			logger.Error("resolve API JWT secret", "err", err)
			os.Exit(1)
		}
	}

	disp := dispatcher.New(w, logger, storageAuditAdapter{store: store})
	auth := api.NewAuthenticator(api.AuthConfig{
		Enabled:    jwtSecret != "",
		HMACSecret: jwtSecret,
		Issuer:     cfg.API.JWTIssuer,
	}, logger)
	server := api.NewServer(w, disp, auth, logger)

	worker := offchain.NewWorker(w.Vaults, func(sweepCtx context.Context, id vault.ID) error {
		_, err := disp.Dispatch(sweepCtx, dispatcher.OriginFastTrack, "vault.LiquidateVault", w.Height, w.Now, dispatcher.Args{VaultID: id})
		return err
	})

	httpServer := &http.Server{Addr: cfg.Service.ListenAddr, Handler: server.Router()}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("bridged listening", "addr", cfg.Service.ListenAddr)
		serverErr <- httpServer.ListenAndServe()
	}()

	go runOffchainLoop(ctx, w, worker, logger)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("serve http", "err", err)
			os.Exit(1)
		}
	}
}

// runOffchainLoop drives the undercollateralization sweep once per
// simulated block tick, stopping when ctx is cancelled. The node's host
// chain supplies real block heights in production; here the loop derives
// one from wall-clock time since bridged runs standalone.
func runOffchainLoop(ctx context.Context, w *world.World, worker *offchain.Worker, logger *slog.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	var height uint32
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			height++
			w.Height = height
			w.Now = time.Now().Unix()
			for _, idx := range w.Governance.OnInitialize(w.Now, height) {
				logger.Info("referendum launched", "index", idx)
			}
			if err := worker.Run(ctx, height); err != nil {
				logger.Error("offchain sweep", "err", err)
			}
		}
	}
}
