// Package metrics exposes prometheus instrumentation for the ledger and
// the claim lifecycle. One collector satisfies the per-service
// MetricsCollector interfaces and serves a standalone /metrics endpoint.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"healthpay/internal/models"
)

type Collector struct {
	registry *prometheus.Registry
	logger   *zap.Logger

	operationDuration       *prometheus.HistogramVec
	walletOperationResults  *prometheus.CounterVec
	walletTransactionVolume *prometheus.CounterVec
	walletCASRetries        *prometheus.CounterVec
	walletErrors            *prometheus.CounterVec
	walletBalance           *prometheus.GaugeVec

	claimTransitions *prometheus.CounterVec
	claimDecisions   *prometheus.CounterVec
	refundFailures   prometheus.Counter
}

func NewCollector(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		logger:   logger,
		operationDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "operation_duration_seconds",
			Help:    "Time taken by a ledger or lifecycle operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		walletOperationResults: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_operation_results_total",
			Help: "Wallet ledger operation outcomes",
		}, []string{"operation", "result"}),
		walletTransactionVolume: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_transaction_amount_total",
			Help: "Total amount moved through the ledger by transaction type",
		}, []string{"type"}),
		walletCASRetries: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_cas_retries_total",
			Help: "Conditional-update retries after losing a concurrency race",
		}, []string{"operation"}),
		walletErrors: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_errors_total",
			Help: "Wallet ledger errors by operation",
		}, []string{"operation"}),
		walletBalance: promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
			Name: "wallet_current_balance",
			Help: "Last observed wallet total balance",
		}, []string{"member_id"}),
		claimTransitions: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "claim_transitions_total",
			Help: "Claim status transitions",
		}, []string{"from", "to"}),
		claimDecisions: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "claim_decisions_total",
			Help: "Adjudication decisions by outcome",
		}, []string{"decision"}),
		refundFailures: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "claim_refund_failures_total",
			Help: "Wallet credits that failed during claim rejection",
		}),
	}
}

// Wallet ledger metrics (wallet.MetricsCollector).

func (c *Collector) RecordOperationDuration(operation string, d time.Duration) {
	c.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (c *Collector) RecordOperationResult(operation, result string) {
	c.walletOperationResults.WithLabelValues(operation, result).Inc()
}

func (c *Collector) RecordBalanceChange(memberID uint, oldBalance, newBalance float64) {
	c.walletBalance.WithLabelValues(uintLabel(memberID)).Set(newBalance)
}

func (c *Collector) RecordTransaction(txType string, amount float64) {
	c.walletTransactionVolume.WithLabelValues(txType).Add(amount)
}

func (c *Collector) RecordError(operation, errType string) {
	c.walletErrors.WithLabelValues(operation).Inc()
}

func (c *Collector) RecordCASRetry(operation string) {
	c.walletCASRetries.WithLabelValues(operation).Inc()
}

// Claim lifecycle metrics (lifecycle.MetricsCollector).

func (c *Collector) RecordTransition(from, to models.ClaimStatus) {
	c.claimTransitions.WithLabelValues(string(from), string(to)).Inc()
}

func (c *Collector) RecordDecision(decision string) {
	c.claimDecisions.WithLabelValues(decision).Inc()
}

func (c *Collector) RecordRefundFailure() {
	c.refundFailures.Inc()
}

// Handler returns the /metrics endpoint for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on its own listener so scrapes never
// compete with API traffic.
func (c *Collector) StartServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		c.logger.Info("starting metrics server", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return server
}

func uintLabel(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
