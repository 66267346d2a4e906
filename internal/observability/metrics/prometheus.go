package metrics

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink adapts Sink calls onto a Prometheus registry. Collectors are
// created on first use; their label set is fixed by the tags of that first call.
// Later calls fill missing labels with "" and drop unknown ones.
type PrometheusSink struct {
	namespace string
	registry  prometheus.Registerer
	logger    *slog.Logger

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	labels     map[string][]string
}

var _ Sink = (*PrometheusSink)(nil)

// NewPrometheusSink registers collectors on reg under namespace.
func NewPrometheusSink(reg prometheus.Registerer, namespace string, logger *slog.Logger) *PrometheusSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &PrometheusSink{
		namespace:  promName(namespace),
		registry:   reg,
		logger:     logger,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		labels:     make(map[string][]string),
	}
}

// Count adds value to the counter "<name>_total".
func (p *PrometheusSink) Count(name string, value int64, tags map[string]string) {
	metric := promName(name) + "_total"
	p.mu.Lock()
	vec, ok := p.counters[metric]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      metric,
			Help:      "Count of " + name + " events.",
		}, p.labelNames(metric, tags))
		if !p.register(vec, metric) {
			p.mu.Unlock()
			return
		}
		p.counters[metric] = vec
	}
	labels := p.labelValues(metric, tags)
	p.mu.Unlock()

	vec.With(labels).Add(float64(value))
}

// Gauge sets the gauge "<name>".
func (p *PrometheusSink) Gauge(name string, value float64, tags map[string]string) {
	metric := promName(name)
	p.mu.Lock()
	vec, ok := p.gauges[metric]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      metric,
			Help:      "Current value of " + name + ".",
		}, p.labelNames(metric, tags))
		if !p.register(vec, metric) {
			p.mu.Unlock()
			return
		}
		p.gauges[metric] = vec
	}
	labels := p.labelValues(metric, tags)
	p.mu.Unlock()

	vec.With(labels).Set(value)
}

// Timing observes value in the histogram "<name>_seconds".
func (p *PrometheusSink) Timing(name string, value time.Duration, tags map[string]string) {
	metric := promName(name) + "_seconds"
	p.mu.Lock()
	vec, ok := p.histograms[metric]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      metric,
			Help:      "Duration of " + name + " in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, p.labelNames(metric, tags))
		if !p.register(vec, metric) {
			p.mu.Unlock()
			return
		}
		p.histograms[metric] = vec
	}
	labels := p.labelValues(metric, tags)
	p.mu.Unlock()

	vec.With(labels).Observe(value.Seconds())
}

func (p *PrometheusSink) register(c prometheus.Collector, metric string) bool {
	if err := p.registry.Register(c); err != nil {
		p.logger.Warn("prometheus register failed", "metric", metric, "error", err)
		delete(p.labels, metric)
		return false
	}
	return true
}

func (p *PrometheusSink) labelNames(metric string, tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range cleanTags(tags) {
		names = append(names, promName(k))
	}
	sort.Strings(names)
	p.labels[metric] = names
	return names
}

func (p *PrometheusSink) labelValues(metric string, tags map[string]string) prometheus.Labels {
	clean := make(map[string]string, len(tags))
	for k, v := range cleanTags(tags) {
		clean[promName(k)] = v
	}
	out := make(prometheus.Labels, len(p.labels[metric]))
	for _, name := range p.labels[metric] {
		out[name] = clean[name]
	}
	return out
}

// promName maps a dotted StatsD name onto the Prometheus charset.
func promName(name string) string {
	name = strings.TrimSpace(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
