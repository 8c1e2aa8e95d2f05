package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector owns the prometheus registry for the ledger core.
type Collector struct {
	registry             *prometheus.Registry
	usersRegistered      prometheus.Counter
	transactionsApproved *prometheus.CounterVec
	investmentsOpened    prometheus.Counter
	payoutsProcessed     prometheus.Counter
	platformValue        prometheus.Gauge
	logger               *zap.Logger
	server               *http.Server
}

func NewCollector(logger *zap.Logger) *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		usersRegistered: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "users_registered_total",
			Help: "Total number of registered accounts",
		}),
		transactionsApproved: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "transactions_approved_total",
			Help: "Total number of approved cash-movement transactions",
		}, []string{"kind"}),
		investmentsOpened: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "investments_opened_total",
			Help: "Total number of opened investment positions",
		}),
		payoutsProcessed: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "investment_payouts_total",
			Help: "Total number of settled investment payouts",
		}),
		platformValue: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "platform_value_usd",
			Help: "Approved deposits minus approved withdrawals",
		}),
		logger: logger,
	}
}

func (c *Collector) UserRegistered() { c.usersRegistered.Inc() }

func (c *Collector) TransactionApproved(kind string) {
	c.transactionsApproved.WithLabelValues(kind).Inc()
}

func (c *Collector) InvestmentOpened() { c.investmentsOpened.Inc() }

func (c *Collector) PayoutProcessed() { c.payoutsProcessed.Inc() }

func (c *Collector) SetPlatformValue(v float64) { c.platformValue.Set(v) }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on its own listener.
func (c *Collector) StartServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	server := &http.Server{Addr: addr, Handler: mux}
	c.server = server
	go func() {
		c.logger.Info("metrics server started", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return server
}

// Shutdown stops the metrics listener if one was started.
func (c *Collector) Shutdown(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}
