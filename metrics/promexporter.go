package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registrySnapshot adapts a Registry to prometheus.Collector, so the
// process's counters/gauges/histograms can be scraped by a real Prometheus
// client without reimplementing the exposition format by hand.
type registrySnapshot struct {
	registry *Registry
}

// NewCollector returns a prometheus.Collector backed by registry.
func NewCollector(registry *Registry) prometheus.Collector {
	return &registrySnapshot{registry: registry}
}

func (r *registrySnapshot) Describe(ch chan<- *prometheus.Desc) {
	// Dynamic metric set: names aren't known up front, so Describe is a
	// deliberate no-op. prometheus.Registry tolerates unchecked collectors.
}

func (r *registrySnapshot) Collect(ch chan<- prometheus.Metric) {
	for name, v := range r.registry.Snapshot() {
		switch val := v.(type) {
		case int64:
			promName := sanitizeName(name)
			desc := prometheus.NewDesc(promName, name, nil, nil)
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(val))
		case map[string]interface{}:
			for _, field := range []string{"count", "sum", "min", "max", "mean"} {
				fv, ok := val[field]
				if !ok {
					continue
				}
				promName := sanitizeName(name) + "_" + field
				desc := prometheus.NewDesc(promName, name+" "+field, nil, nil)
				ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, toFloat64(fv))
			}
		}
	}
}

func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

func sanitizeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// NewHandler builds an http.Handler serving registry's metrics in
// Prometheus exposition format, using the real client_golang exporter path.
func NewHandler(registry *Registry) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(registry))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
