// Package metrics defines the Prometheus collectors the dispatcher and
// off-chain worker publish against, grounded on the teacher repo's
// observability/metrics package (a lazily-initialized, package-level
// collector set built with prometheus.NewCounterVec/GaugeVec).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Core is the dispatcher-facing metric set: call counts, latency, and a
// handful of gauges operators watch for relay/vault/lending/AMM health.
type Core struct {
	DispatchTotal     *prometheus.CounterVec
	DispatchDuration  *prometheus.HistogramVec
	RelayBestHeight   prometheus.Gauge
	VaultLiquidations *prometheus.CounterVec
	LendingUtilization *prometheus.GaugeVec
	AMMVirtualPrice   *prometheus.GaugeVec
	OffchainSweeps    prometheus.Counter
}

var (
	once     sync.Once
	registry *Core
)

// Collectors returns the process-wide Core metric set, constructing it on
// first use and registering every collector with the default registerer.
func Collectors() *Core {
	once.Do(func() {
		registry = &Core{
			DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "dispatcher_calls_total",
				Help: "Count of dispatched calls by method and outcome.",
			}, []string{"method", "status"}),
			DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "dispatcher_call_duration_seconds",
				Help:    "Dispatch handler latency by method.",
				Buckets: prometheus.DefBuckets,
			}, []string{"method"}),
			RelayBestHeight: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "relay_best_height",
				Help: "Height of the relay's current main-chain tip.",
			}),
			VaultLiquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_liquidations_total",
				Help: "Count of vault liquidations by currency pair.",
			}, []string{"pair"}),
			LendingUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lending_market_utilization",
				Help: "Current utilization ratio (Fixed18, as a float) per market.",
			}, []string{"currency"}),
			AMMVirtualPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "amm_pool_virtual_price",
				Help: "Current virtual price (Fixed18, as a float) per pool.",
			}, []string{"pool"}),
			OffchainSweeps: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "offchain_worker_sweeps_total",
				Help: "Count of off-chain undercollateralization sweeps executed.",
			}),
		}
		prometheus.MustRegister(
			registry.DispatchTotal,
			registry.DispatchDuration,
			registry.RelayBestHeight,
			registry.VaultLiquidations,
			registry.LendingUtilization,
			registry.AMMVirtualPrice,
			registry.OffchainSweeps,
		)
	})
	return registry
}
