package index

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/henomis/qdrant-go/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "github.com/S-Corkum/embedding-gateway/pkg/common/errors"
)

func TestQdrantDistanceMapping(t *testing.T) {
	assert.Equal(t, "Cosine", toQdrantDistance(MetricCosine))
	assert.Equal(t, "Euclid", toQdrantDistance(MetricEuclidean))
	assert.Equal(t, "Dot", toQdrantDistance(MetricDotProduct))

	for _, metric := range []string{MetricCosine, MetricEuclidean, MetricDotProduct} {
		assert.Equal(t, metric, fromQdrantDistance(toQdrantDistance(metric)))
	}
	assert.Equal(t, "manhattan", fromQdrantDistance("Manhattan"))
}

func TestToPointID(t *testing.T) {
	id := uuid.NewString()
	assert.Equal(t, id, toPointID(id))

	mapped := toPointID("text_1700000000000_abc123def")
	_, err := uuid.Parse(mapped)
	require.NoError(t, err)
	assert.Equal(t, mapped, toPointID("text_1700000000000_abc123def"), "mapping is deterministic")
	assert.NotEqual(t, mapped, toPointID("text_1700000000000_abc123deg"))
}

func TestPayloadRoundTrip(t *testing.T) {
	record := Record{ID: "doc-1", Metadata: map[string]interface{}{"text": "hello"}}

	payload := toPayload(record)
	assert.Equal(t, "doc-1", payload[idPayloadKey])
	assert.Equal(t, "hello", payload["text"])
	assert.NotContains(t, record.Metadata, idPayloadKey, "caller metadata is not mutated")

	id, metadata := fromPayload(toPointID("doc-1"), payload)
	assert.Equal(t, "doc-1", id)
	assert.Equal(t, map[string]interface{}{"text": "hello"}, metadata)

	uuidRecord := Record{ID: uuid.NewString()}
	assert.NotContains(t, toPayload(uuidRecord), idPayloadKey)
}

func TestQdrantStatus(t *testing.T) {
	assert.NoError(t, qdrantStatus("op", &response.Response{Code: http.StatusOK, Status: "ok"}))

	body := `{"status":{"error":"Not found: Collection ` + "`x`" + ` doesn't exist!"},"time":0.0001}`
	err := qdrantStatus("op", &response.Response{Code: http.StatusNotFound, RawBody: &body})
	require.Error(t, err)
	assert.True(t, commonerrors.IsIndex(err))
	assert.Contains(t, err.Error(), "Collection `x` doesn't exist!")
	assert.Equal(t, http.StatusNotFound, commonerrors.UpstreamStatus(err))

	plain := "upstream unavailable"
	err = qdrantStatus("op", &response.Response{Code: http.StatusBadGateway, RawBody: &plain})
	assert.Contains(t, err.Error(), "upstream unavailable")

	err = qdrantStatus("op", &response.Response{Code: http.StatusInternalServerError})
	assert.Contains(t, err.Error(), http.StatusText(http.StatusInternalServerError))
}

// fakeQdrant implements the handful of REST routes the client uses
type fakeQdrant struct {
	mu      sync.Mutex
	created map[string]map[string]interface{}
	points  []interface{}
	apiKeys []string
	deletes []string
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	reply := func(status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	missing := func(name string) {
		reply(http.StatusNotFound, map[string]interface{}{
			"status": map[string]interface{}{"error": "Not found: Collection `" + name + "` doesn't exist!"},
			"time":   0.0001,
		})
	}

	path := strings.TrimPrefix(r.URL.Path, "/collections")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	name := parts[0]

	if _, ok := f.created[name]; !ok && len(parts) > 1 {
		missing(name)
		return
	}

	switch {
	case name == "" && r.Method == http.MethodGet:
		collections := make([]map[string]interface{}, 0, len(f.created))
		for n := range f.created {
			collections = append(collections, map[string]interface{}{"name": n})
		}
		reply(http.StatusOK, map[string]interface{}{
			"result": map[string]interface{}{"collections": collections},
			"status": "ok",
			"time":   0.0001,
		})

	case len(parts) == 1 && name != "" && r.Method == http.MethodPut:
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.created[name] = body
		reply(http.StatusOK, map[string]interface{}{"result": true, "status": "ok", "time": 0.01})

	case len(parts) == 1 && name != "" && r.Method == http.MethodGet:
		body, ok := f.created[name]
		if !ok {
			missing(name)
			return
		}
		reply(http.StatusOK, map[string]interface{}{
			"result": map[string]interface{}{
				"status":       "green",
				"points_count": len(f.points),
				"config":       map[string]interface{}{"params": map[string]interface{}{"vectors": body["vectors"]}},
			},
			"status": "ok",
			"time":   0.0001,
		})

	case len(parts) == 1 && name != "" && r.Method == http.MethodDelete:
		f.deletes = append(f.deletes, name)
		delete(f.created, name)
		reply(http.StatusOK, map[string]interface{}{"result": true, "status": "ok", "time": 0.01})

	case len(parts) == 2 && parts[1] == "points" && r.Method == http.MethodPut:
		var body struct {
			Points []interface{} `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.points = append(f.points, body.Points...)
		reply(http.StatusOK, map[string]interface{}{
			"result": map[string]interface{}{"operation_id": 1, "status": "completed"},
			"status": "ok",
			"time":   0.001,
		})

	case len(parts) == 3 && parts[2] == "search" && r.Method == http.MethodPost:
		results := make([]map[string]interface{}, 0, len(f.points))
		for i, p := range f.points {
			point := p.(map[string]interface{})
			results = append(results, map[string]interface{}{
				"id":      point["id"],
				"version": 1,
				"score":   1.0 - float64(i)*0.1,
				"payload": point["payload"],
			})
		}
		reply(http.StatusOK, map[string]interface{}{"result": results, "status": "ok", "time": 0.001})

	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func TestQdrantClient_AgainstFakeServer(t *testing.T) {
	fake := &fakeQdrant{created: map[string]map[string]interface{}{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	client, err := NewQdrantClient(QdrantConfig{Endpoint: server.URL})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, client.CreateCollection(ctx, CreateRequest{Name: "docs", Dimension: 3, Metric: MetricEuclidean}))
	vectors := fake.created["docs"]["vectors"].(map[string]interface{})
	assert.Equal(t, "Euclid", vectors["distance"])
	assert.EqualValues(t, 3, vectors["size"])

	n, err := client.Upsert(ctx, "docs", []Record{
		{ID: "text_1", Values: []float32{1, 0, 0}, Metadata: map[string]interface{}{"text": "I love dogs"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	matches, err := client.Query(ctx, "docs", QueryRequest{Vector: []float32{1, 0, 0}, TopK: 5, IncludeMetadata: true})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "text_1", matches[0].ID)
	assert.Equal(t, "I love dogs", matches[0].Metadata["text"])
	assert.NotContains(t, matches[0].Metadata, idPayloadKey)

	stats, err := client.DescribeStats(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Dimension)
	assert.EqualValues(t, 1, stats.TotalRecordCount)

	listed, err := client.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, CollectionDescriptor{Name: "docs", Dimension: 3, Metric: MetricEuclidean, Ready: true, State: "green"}, listed[0])

	require.NoError(t, client.DeleteCollection(ctx, "docs"))
	assert.NotContains(t, fake.created, "docs")
	assert.Equal(t, []string{"docs"}, fake.deletes)
}

func TestQdrantClient_MissingCollectionKeepsBackendMessage(t *testing.T) {
	fake := &fakeQdrant{created: map[string]map[string]interface{}{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	client, err := NewQdrantClient(QdrantConfig{Endpoint: server.URL})
	require.NoError(t, err)
	ctx := context.Background()

	calls := map[string]func() error{
		"DescribeStats": func() error {
			_, err := client.DescribeStats(ctx, "missing")
			return err
		},
		"Query": func() error {
			_, err := client.Query(ctx, "missing", QueryRequest{Vector: []float32{1, 0, 0}, TopK: 1})
			return err
		},
		"Upsert": func() error {
			_, err := client.Upsert(ctx, "missing", []Record{{ID: "a", Values: []float32{1, 0, 0}}})
			return err
		},
		"DeleteCollection": func() error {
			return client.DeleteCollection(ctx, "missing")
		},
	}
	for op, call := range calls {
		t.Run(op, func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.True(t, commonerrors.IsIndex(err))
			assert.Contains(t, err.Error(), "Not found: Collection `missing` doesn't exist!")
			assert.Equal(t, http.StatusNotFound, commonerrors.UpstreamStatus(err))
			assert.Equal(t, http.StatusInternalServerError, commonerrors.HTTPStatus(err))
		})
	}
	assert.Empty(t, fake.deletes, "no delete is sent for a missing collection")
}

func TestQdrantClient_SendsAPIKey(t *testing.T) {
	fake := &fakeQdrant{created: map[string]map[string]interface{}{"docs": {}}}
	server := httptest.NewServer(fake)
	defer server.Close()

	client, err := NewQdrantClient(QdrantConfig{Endpoint: server.URL + "/", APIKey: "secret"})
	require.NoError(t, err)

	require.NoError(t, client.DeleteCollection(context.Background(), "docs"))
	assert.Equal(t, []string{"secret", "secret"}, fake.apiKeys, "collection info and delete both carry the key")
}

func TestNewQdrantClient_RequiresEndpoint(t *testing.T) {
	_, err := NewQdrantClient(QdrantConfig{})
	assert.Error(t, err)
}
