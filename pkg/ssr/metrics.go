package ssr

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	strategyModule     = "module"
	strategyEntryPoint = "entrypoint"
	resultOK           = "ok"
)

// Metrics holds the render metrics of one or more engines.
type Metrics struct {
	RendersTotal   *prometheus.CounterVec
	RenderDuration *prometheus.HistogramVec
}

// NewMetrics creates render metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RendersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssr_renders_total",
				Help: "Total number of render calls by strategy and result",
			},
			[]string{"strategy", "result"},
		),
		RenderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ssr_render_duration_seconds",
				Help:    "Render call duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"strategy"},
		),
	}
}

func (m *Metrics) observe(strategy string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := resultOK
	if kind, ok := KindOf(err); ok {
		result = string(kind)
	} else if err != nil {
		result = "host"
	}
	m.RendersTotal.WithLabelValues(strategy, result).Inc()
	m.RenderDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
}
