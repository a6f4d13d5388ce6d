package observability

import (
	"net/http"
)

// noOpMetricsClient is a no-op implementation of MetricsClient, used when
// metrics are disabled and in tests
type noOpMetricsClient struct{}

// NewNoOpMetricsClient creates a new no-op metrics client that does nothing
func NewNoOpMetricsClient() MetricsClient {
	return &noOpMetricsClient{}
}

// RecordOperation is a no-op implementation
func (n *noOpMetricsClient) RecordOperation(component string, operation string, success bool, durationSeconds float64) {
}

// RecordAPIRequest is a no-op implementation
func (n *noOpMetricsClient) RecordAPIRequest(method string, endpoint string, status int, durationSeconds float64) {
}

// Handler returns nil; there is nothing to expose
func (n *noOpMetricsClient) Handler() http.Handler {
	return nil
}

// Close is a no-op implementation
func (n *noOpMetricsClient) Close() error {
	return nil
}
