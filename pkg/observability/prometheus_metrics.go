package observability

import (
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetricsClient implements MetricsClient using Prometheus.
// Each client owns its registry, so several clients can coexist in one process.
type PrometheusMetricsClient struct {
	namespace string
	registry  *prometheus.Registry

	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec

	mu sync.RWMutex
}

// NewPrometheusMetricsClient creates a new Prometheus metrics client
func NewPrometheusMetricsClient(namespace string) *PrometheusMetricsClient {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client := &PrometheusMetricsClient{
		namespace:  namespace,
		registry:   registry,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
	client.registerDefaultMetrics()
	return client
}

// NewMetricsClient returns a Prometheus client when enabled and a no-op one otherwise
func NewMetricsClient(cfg MetricsConfig) MetricsClient {
	if !cfg.Enabled {
		return NewNoOpMetricsClient()
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "embedding_gateway"
	}
	return NewPrometheusMetricsClient(namespace)
}

func (c *PrometheusMetricsClient) registerDefaultMetrics() {
	c.getOrCreateCounter("http_requests_total", "Total HTTP requests served", []string{"method", "endpoint", "status"})
	c.getOrCreateHistogram("http_request_duration_seconds", "HTTP request duration", []string{"method", "endpoint"})

	c.getOrCreateCounter("embedding_requests_total", "Total embedding computations", []string{"operation", "status"})
	c.getOrCreateHistogram("embedding_duration_seconds", "Embedding computation duration", []string{"operation"})

	c.getOrCreateCounter("index_operations_total", "Total vector index operations", []string{"operation", "status"})
	c.getOrCreateHistogram("index_operation_duration_seconds", "Vector index operation duration", []string{"operation"})
}

// recordCounter adds value to the named counter, creating it on first use
func (c *PrometheusMetricsClient) recordCounter(name string, value float64, labels map[string]string) {
	counter := c.getOrCreateCounter(name, name, labelNames(labels))
	if m, err := counter.GetMetricWith(prometheus.Labels(labels)); err == nil {
		m.Add(value)
	}
}

// recordHistogram observes value on the named histogram, creating it on first use
func (c *PrometheusMetricsClient) recordHistogram(name string, value float64, labels map[string]string) {
	histogram := c.getOrCreateHistogram(name, name, labelNames(labels))
	if m, err := histogram.GetMetricWith(prometheus.Labels(labels)); err == nil {
		m.Observe(value)
	}
}

// RecordOperation records one call into the embedding model or the vector index
func (c *PrometheusMetricsClient) RecordOperation(component string, operation string, success bool, durationSeconds float64) {
	status := "success"
	if !success {
		status = "error"
	}

	var counterName, histogramName string
	switch component {
	case "embedding":
		counterName, histogramName = "embedding_requests_total", "embedding_duration_seconds"
	case "index":
		counterName, histogramName = "index_operations_total", "index_operation_duration_seconds"
	default:
		counterName, histogramName = component+"_operations_total", component+"_operation_duration_seconds"
	}

	c.recordCounter(counterName, 1, map[string]string{"operation": operation, "status": status})
	c.recordHistogram(histogramName, durationSeconds, map[string]string{"operation": operation})
}

// RecordAPIRequest records one served HTTP request
func (c *PrometheusMetricsClient) RecordAPIRequest(method string, endpoint string, status int, durationSeconds float64) {
	c.recordCounter("http_requests_total", 1, map[string]string{
		"method":   method,
		"endpoint": endpoint,
		"status":   strconv.Itoa(status),
	})
	c.recordHistogram("http_request_duration_seconds", durationSeconds, map[string]string{
		"method":   method,
		"endpoint": endpoint,
	})
}

// Handler serves the client's registry in the Prometheus exposition format
func (c *PrometheusMetricsClient) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry, mostly for tests
func (c *PrometheusMetricsClient) Registry() *prometheus.Registry {
	return c.registry
}

// Close is a no-op; Prometheus metrics are pulled
func (c *PrometheusMetricsClient) Close() error {
	return nil
}

func (c *PrometheusMetricsClient) getOrCreateCounter(name, help string, labels []string) *prometheus.CounterVec {
	c.mu.RLock()
	if counter, exists := c.counters[name]; exists {
		c.mu.RUnlock()
		return counter
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if counter, exists := c.counters[name]; exists {
		return counter
	}

	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.namespace,
		Name:      name,
		Help:      help,
	}, labels)
	c.registry.MustRegister(counter)

	c.counters[name] = counter
	return counter
}

func (c *PrometheusMetricsClient) getOrCreateHistogram(name, help string, labels []string) *prometheus.HistogramVec {
	c.mu.RLock()
	if histogram, exists := c.histograms[name]; exists {
		c.mu.RUnlock()
		return histogram
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if histogram, exists := c.histograms[name]; exists {
		return histogram
	}

	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: c.namespace,
		Name:      name,
		Help:      help,
		Buckets:   prometheus.DefBuckets,
	}, labels)
	c.registry.MustRegister(histogram)

	c.histograms[name] = histogram
	return histogram
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
