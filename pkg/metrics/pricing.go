package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels for pricing calculations.
const (
	PricingOutcomeOK       = "ok"
	PricingOutcomeWarning  = "warning"
	PricingOutcomeInvalid  = "invalid"
	PricingOutcomeCacheHit = "cache_hit"
	PricingOutcomeFallback = "fallback"
)

// PricingMetrics counts calculator invocations by outcome.
type PricingMetrics struct {
	calculations *prometheus.CounterVec
	matrixCells  prometheus.Counter
}

// NewPricingMetrics registers the pricing metrics on the provided registerer.
func NewPricingMetrics(reg prometheus.Registerer) *PricingMetrics {
	if reg == nil {
		return &PricingMetrics{}
	}
	calculations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_calculations_total",
		Help: "Price calculations by outcome.",
	}, []string{"outcome"})
	matrixCells := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pricing_matrix_cells_total",
		Help: "Matrix cells computed.",
	})
	reg.MustRegister(calculations, matrixCells)
	return &PricingMetrics{
		calculations: calculations,
		matrixCells:  matrixCells,
	}
}

// IncCalculation increments the calculation counter for the given outcome.
func (p *PricingMetrics) IncCalculation(outcome string) {
	if p == nil || p.calculations == nil {
		return
	}
	p.calculations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// AddMatrixCells records how many cells a matrix request computed.
func (p *PricingMetrics) AddMatrixCells(n int) {
	if p == nil || p.matrixCells == nil || n <= 0 {
		return
	}
	p.matrixCells.Add(float64(n))
}
