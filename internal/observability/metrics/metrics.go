// Package metrics exposes the pipeline's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Registry *prometheus.Registry
}

// Metrics counts pipeline outcomes. Labels stay low-cardinality: booking
// kind and a coarse result string.
type Metrics struct {
	BookingsSubmitted *prometheus.CounterVec
	Settlements       *prometheus.CounterVec
	GatewayCallbacks  *prometheus.CounterVec
	LedgerEntries     prometheus.Counter
	StockDeductions   prometheus.Counter
	ExpiredBookings   prometheus.Counter
}

func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func NewMetrics(p Params) *Metrics {
	m := &Metrics{
		BookingsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "templedesk_bookings_submitted_total",
			Help: "Bookings accepted by the pipeline.",
		}, []string{"kind", "tender"}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "templedesk_settlements_total",
			Help: "Settlement runs by outcome.",
		}, []string{"kind", "result"}),
		GatewayCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "templedesk_gateway_callbacks_total",
			Help: "Gateway callback deliveries by result.",
		}, []string{"result"}),
		LedgerEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "templedesk_ledger_entries_total",
			Help: "Balanced double-entry records posted.",
		}),
		StockDeductions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "templedesk_stock_deductions_total",
			Help: "Stock movements recorded by settlements.",
		}),
		ExpiredBookings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "templedesk_expired_bookings_total",
			Help: "Gateway bookings cancelled by the expiry sweep.",
		}),
	}

	p.Registry.MustRegister(
		m.BookingsSubmitted,
		m.Settlements,
		m.GatewayCallbacks,
		m.LedgerEntries,
		m.StockDeductions,
		m.ExpiredBookings,
	)

	return m
}

// Module provides the registry and collectors.
var Module = fx.Module("observability.metrics",
	fx.Provide(
		NewRegistry,
		NewMetrics,
	),
)
