package index

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"sync"

	commonerrors "github.com/S-Corkum/embedding-gateway/pkg/common/errors"
)

// MemoryClient is an in-memory Client for tests. It mirrors the backend's
// observable behaviour: missing collections are 404 index errors and
// dimension mismatches are rejected.
type MemoryClient struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
	calls       map[string]int
}

type memoryCollection struct {
	descriptor CollectionDescriptor
	records    map[string]Record
}

// NewMemoryClient creates an empty MemoryClient
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		collections: make(map[string]*memoryCollection),
		calls:       make(map[string]int),
	}
}

// Name returns the backend name
func (m *MemoryClient) Name() string { return "memory" }

// Calls returns how many times op was invoked
func (m *MemoryClient) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// TotalCalls returns the number of backend calls of any kind
func (m *MemoryClient) TotalCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

func notFound(op, name string) error {
	return commonerrors.IndexWithStatus(op, fmt.Sprintf("Resource %s not found", name), http.StatusNotFound, nil)
}

// ListCollections implements Client
func (m *MemoryClient) ListCollections(ctx context.Context) ([]CollectionDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["ListCollections"]++

	out := make([]CollectionDescriptor, 0, len(m.collections))
	for _, c := range m.collections {
		out = append(out, c.descriptor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreateCollection implements Client
func (m *MemoryClient) CreateCollection(ctx context.Context, req CreateRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["CreateCollection"]++

	if err := ValidateCreate(req); err != nil {
		return err
	}
	if _, exists := m.collections[req.Name]; exists {
		return commonerrors.IndexWithStatus("CreateCollection", fmt.Sprintf("Resource %s already exists", req.Name), http.StatusConflict, nil)
	}
	m.collections[req.Name] = &memoryCollection{
		descriptor: CollectionDescriptor{
			Name:      req.Name,
			Dimension: req.Dimension,
			Metric:    req.Metric,
			Host:      req.Name + ".memory.local",
			Ready:     true,
			State:     "Ready",
		},
		records: make(map[string]Record),
	}
	return nil
}

// DeleteCollection implements Client
func (m *MemoryClient) DeleteCollection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["DeleteCollection"]++

	if _, ok := m.collections[name]; !ok {
		return notFound("DeleteCollection", name)
	}
	delete(m.collections, name)
	return nil
}

// Upsert implements Client
func (m *MemoryClient) Upsert(ctx context.Context, collection string, records []Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Upsert"]++

	c, ok := m.collections[collection]
	if !ok {
		return 0, notFound("Upsert", collection)
	}
	for _, r := range records {
		if len(r.Values) != c.descriptor.Dimension {
			return 0, commonerrors.IndexWithStatus("Upsert",
				fmt.Sprintf("Vector dimension %d does not match the dimension of the index %d", len(r.Values), c.descriptor.Dimension),
				http.StatusBadRequest, nil)
		}
	}
	for _, r := range records {
		c.records[r.ID] = r
	}
	return len(records), nil
}

// Query implements Client
func (m *MemoryClient) Query(ctx context.Context, collection string, req QueryRequest) ([]Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Query"]++

	c, ok := m.collections[collection]
	if !ok {
		return nil, notFound("Query", collection)
	}
	if len(req.Vector) != c.descriptor.Dimension {
		return nil, commonerrors.IndexWithStatus("Query",
			fmt.Sprintf("Vector dimension %d does not match the dimension of the index %d", len(req.Vector), c.descriptor.Dimension),
			http.StatusBadRequest, nil)
	}

	matches := make([]Match, 0, len(c.records))
	for _, r := range c.records {
		match := Match{ID: r.ID, Score: score(c.descriptor.Metric, req.Vector, r.Values)}
		if req.IncludeMetadata {
			match.Metadata = r.Metadata
		}
		matches = append(matches, match)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
	if req.TopK >= 0 && len(matches) > req.TopK {
		matches = matches[:req.TopK]
	}
	return matches, nil
}

// DescribeStats implements Client
func (m *MemoryClient) DescribeStats(ctx context.Context, collection string) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["DescribeStats"]++

	c, ok := m.collections[collection]
	if !ok {
		return nil, notFound("DescribeStats", collection)
	}
	count := int64(len(c.records))
	return &Stats{
		Dimension:        c.descriptor.Dimension,
		TotalRecordCount: count,
		Namespaces:       map[string]NamespaceStats{"": {RecordCount: count}},
	}, nil
}

func score(metric string, a, b []float32) float32 {
	var dot, na, nb, dist float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
		dist += (x - y) * (x - y)
	}
	switch metric {
	case MetricDotProduct:
		return float32(dot)
	case MetricEuclidean:
		// Higher is closer, as the hosted backends report it
		return float32(1 / (1 + math.Sqrt(dist)))
	default:
		if na == 0 || nb == 0 {
			return 0
		}
		return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
	}
}
