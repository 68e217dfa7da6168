package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus adapts Port onto github.com/prometheus/client_golang,
// registering one CounterVec/GaugeVec/HistogramVec per distinct metric
// name the first time it's observed, keyed by that call's label set.
type Prometheus struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheus returns a Prometheus adapter registering against reg, or
// the default registry if reg is nil.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Prometheus{
		registerer: reg,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func labelNames(labels Labels) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	return names
}

func (p *Prometheus) CounterAdd(name string, delta float64, labels Labels) {
	p.mu.Lock()
	vec, ok := p.counters[name]
	if !ok {
		vec = promauto.With(p.registerer).NewCounterVec(prometheus.CounterOpts{Name: name}, labelNames(labels))
		p.counters[name] = vec
	}
	p.mu.Unlock()
	vec.With(prometheus.Labels(labels)).Add(delta)
}

func (p *Prometheus) GaugeSet(name string, value float64, labels Labels) {
	p.mu.Lock()
	vec, ok := p.gauges[name]
	if !ok {
		vec = promauto.With(p.registerer).NewGaugeVec(prometheus.GaugeOpts{Name: name}, labelNames(labels))
		p.gauges[name] = vec
	}
	p.mu.Unlock()
	vec.With(prometheus.Labels(labels)).Set(value)
}

func (p *Prometheus) HistogramObserve(name string, value float64, labels Labels) {
	p.mu.Lock()
	vec, ok := p.histograms[name]
	if !ok {
		vec = promauto.With(p.registerer).NewHistogramVec(prometheus.HistogramOpts{Name: name}, labelNames(labels))
		p.histograms[name] = vec
	}
	p.mu.Unlock()
	vec.With(prometheus.Labels(labels)).Observe(value)
}
