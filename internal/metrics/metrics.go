package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "twap"

// Service holds the rebalancer collectors on a registry of its own.
type Service struct {
	Registry *prometheus.Registry

	StepsSubmitted      prometheus.Counter
	StepsConfirmed      prometheus.Counter
	StepFailures        *prometheus.CounterVec
	LastCompletedStep   prometheus.Gauge
	StepCount           prometheus.Gauge
	GasPriceWei         prometheus.Gauge
	ConfirmationSeconds prometheus.Histogram
}

func New() *Service {
	reg := prometheus.NewRegistry()

	s := &Service{
		Registry: reg,
		StepsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_submitted_total",
			Help:      "Number of rebalance transactions accepted by the node",
		}),
		StepsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_confirmed_total",
			Help:      "Number of rebalance transactions mined successfully",
		}),
		StepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Number of aborted runs by error kind",
		}, []string{"kind"}),
		LastCompletedStep: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_completed_step",
			Help:      "Index of the last confirmed rebalance step",
		}),
		StepCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "step_count",
			Help:      "Configured number of rebalance steps",
		}),
		GasPriceWei: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gas_price_wei",
			Help:      "Gas price used for the latest step",
		}),
		ConfirmationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confirmation_seconds",
			Help:      "Time between submission and receipt",
			Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300, 600},
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		s.StepsSubmitted,
		s.StepsConfirmed,
		s.StepFailures,
		s.LastCompletedStep,
		s.StepCount,
		s.GasPriceWei,
		s.ConfirmationSeconds,
	)

	return s
}

// Handler exposes the registry in the prometheus text format.
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{Registry: s.Registry})
}
