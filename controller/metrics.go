package controller

import (
	"github.com/milosgajdos/go-lateral/mpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are solver metrics labelled by controller id.
// Nil Metrics discard all observations.
type Metrics struct {
	solves     *prometheus.CounterVec
	iterations *prometheus.HistogramVec
	duration   *prometheus.HistogramVec
	cost       *prometheus.GaugeVec
}

// NewMetrics creates solver metrics and registers them with reg.
// It panics if any metric is already registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		solves: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lateral_mpc_solves_total",
				Help: "Total MPC solves by solver status",
			},
			[]string{"controller", "status"},
		),
		iterations: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lateral_mpc_solve_iterations",
				Help:    "QP solver iterations per MPC solve",
				Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 5000, 10000},
			},
			[]string{"controller"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lateral_mpc_solve_duration_seconds",
				Help:    "MPC solve duration",
				Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.02, 0.05, 0.1},
			},
			[]string{"controller"},
		),
		cost: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lateral_mpc_total_cost",
				Help: "Total cost of the last successful MPC solve",
			},
			[]string{"controller"},
		),
	}
}

func (m *Metrics) observe(id string, sol *mpc.Solution) {
	if m == nil {
		return
	}

	m.solves.WithLabelValues(id, sol.Status.String()).Inc()
	m.iterations.WithLabelValues(id).Observe(float64(sol.Iter))
	m.duration.WithLabelValues(id).Observe(sol.Elapsed.Seconds())
	if sol.OK() {
		m.cost.WithLabelValues(id).Set(sol.Costs.Total)
	}
}
