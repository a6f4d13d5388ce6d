package index_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	commonerrors "github.com/S-Corkum/embedding-gateway/pkg/common/errors"
	"github.com/S-Corkum/embedding-gateway/pkg/index"
)

// fakePinecone serves the control plane and data plane from one server
type fakePinecone struct {
	mu       sync.Mutex
	url      string
	indexes  map[string]map[string]interface{}
	upserts  []map[string]interface{}
	queries  []map[string]interface{}
	requests []*http.Request
}

func (f *fakePinecone) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)

	if r.Header.Get("Api-Key") != "test-key" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHENTICATED","message":"Invalid API Key"},"status":401}`))
		return
	}

	writeJSON := func(status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	notFound := func(name string) {
		writeJSON(http.StatusNotFound, map[string]interface{}{
			"error":  map[string]string{"code": "NOT_FOUND", "message": "Resource " + name + " not found"},
			"status": 404,
		})
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/indexes":
		list := make([]map[string]interface{}, 0, len(f.indexes))
		for _, idx := range f.indexes {
			list = append(list, idx)
		}
		writeJSON(http.StatusOK, map[string]interface{}{"indexes": list})

	case r.Method == http.MethodPost && r.URL.Path == "/indexes":
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		name := body["name"].(string)
		if _, exists := f.indexes[name]; exists {
			writeJSON(http.StatusConflict, map[string]interface{}{
				"error": map[string]string{"code": "ALREADY_EXISTS", "message": "Resource " + name + " already exists"},
			})
			return
		}
		idx := map[string]interface{}{
			"name":      name,
			"dimension": body["dimension"],
			"metric":    body["metric"],
			"host":      f.url,
			"spec":      body["spec"],
			"status":    map[string]interface{}{"ready": true, "state": "Ready"},
		}
		f.indexes[name] = idx
		writeJSON(http.StatusCreated, idx)

	case strings.HasPrefix(r.URL.Path, "/indexes/"):
		name := strings.TrimPrefix(r.URL.Path, "/indexes/")
		idx, ok := f.indexes[name]
		if !ok {
			notFound(name)
			return
		}
		if r.Method == http.MethodDelete {
			delete(f.indexes, name)
			w.WriteHeader(http.StatusAccepted)
			return
		}
		writeJSON(http.StatusOK, idx)

	case r.Method == http.MethodPost && r.URL.Path == "/vectors/upsert":
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.upserts = append(f.upserts, body)
		writeJSON(http.StatusOK, map[string]interface{}{"upsertedCount": len(body["vectors"].([]interface{}))})

	case r.Method == http.MethodPost && r.URL.Path == "/query":
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.queries = append(f.queries, body)
		writeJSON(http.StatusOK, map[string]interface{}{
			"matches": []map[string]interface{}{
				{"id": "a", "score": 0.99, "metadata": map[string]interface{}{"text": "I love dogs"}},
				{"id": "b", "score": 0.42},
			},
			"namespace": "",
		})

	case r.Method == http.MethodPost && r.URL.Path == "/describe_index_stats":
		writeJSON(http.StatusOK, map[string]interface{}{
			"namespaces":       map[string]interface{}{"": map[string]interface{}{"vectorCount": 2}},
			"dimension":        384,
			"indexFullness":    0.0,
			"totalVectorCount": 2,
		})

	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

var _ = Describe("PineconeClient", func() {
	var (
		fake   *fakePinecone
		server *httptest.Server
		client *index.PineconeClient
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = &fakePinecone{indexes: map[string]map[string]interface{}{}}
		server = httptest.NewServer(fake)
		fake.url = server.URL

		var err error
		client, err = index.NewPineconeClient(index.PineconeConfig{
			APIKey:        "test-key",
			ControllerURL: server.URL,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("requires an API key", func() {
		_, err := index.NewPineconeClient(index.PineconeConfig{})
		Expect(err).To(HaveOccurred())
	})

	Context("control plane", func() {
		It("creates a serverless index with the fixed placement", func() {
			err := client.CreateCollection(ctx, index.CreateRequest{Name: "test", Dimension: 384, Metric: "cosine"})
			Expect(err).NotTo(HaveOccurred())

			spec := fake.indexes["test"]["spec"].(map[string]interface{})
			serverless := spec["serverless"].(map[string]interface{})
			Expect(serverless["cloud"]).To(Equal("aws"))
			Expect(serverless["region"]).To(Equal("us-east-1"))

			last := fake.requests[len(fake.requests)-1]
			Expect(last.Header.Get("X-Pinecone-API-Version")).To(Equal("2024-07"))
		})

		It("rejects a create request without a name before calling the backend", func() {
			err := client.CreateCollection(ctx, index.CreateRequest{Dimension: 384, Metric: "cosine"})
			Expect(commonerrors.IsValidation(err)).To(BeTrue())
			Expect(fake.requests).To(BeEmpty())
		})

		It("rejects an unknown metric", func() {
			err := client.CreateCollection(ctx, index.CreateRequest{Name: "x", Dimension: 3, Metric: "manhattan"})
			Expect(commonerrors.IsValidation(err)).To(BeTrue())
		})

		It("lists indexes with their status", func() {
			Expect(client.CreateCollection(ctx, index.CreateRequest{Name: "test", Dimension: 384, Metric: "cosine"})).To(Succeed())

			list, err := client.ListCollections(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(list[0].Name).To(Equal("test"))
			Expect(list[0].Dimension).To(Equal(384))
			Expect(list[0].Ready).To(BeTrue())
		})

		It("surfaces the backend's conflict message", func() {
			Expect(client.CreateCollection(ctx, index.CreateRequest{Name: "dup", Dimension: 3, Metric: "cosine"})).To(Succeed())
			err := client.CreateCollection(ctx, index.CreateRequest{Name: "dup", Dimension: 3, Metric: "cosine"})
			Expect(commonerrors.IsIndex(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("already exists"))
			Expect(commonerrors.UpstreamStatus(err)).To(Equal(http.StatusConflict))
		})

		It("deletes an index", func() {
			Expect(client.CreateCollection(ctx, index.CreateRequest{Name: "gone", Dimension: 3, Metric: "cosine"})).To(Succeed())
			Expect(client.DeleteCollection(ctx, "gone")).To(Succeed())
			Expect(fake.indexes).NotTo(HaveKey("gone"))
		})

		It("reports a missing index on delete as an index error", func() {
			err := client.DeleteCollection(ctx, "missing")
			Expect(commonerrors.IsIndex(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("Resource missing not found"))
			Expect(commonerrors.UpstreamStatus(err)).To(Equal(http.StatusNotFound))
		})

		It("surfaces authentication failures", func() {
			bad, err := index.NewPineconeClient(index.PineconeConfig{APIKey: "wrong", ControllerURL: server.URL})
			Expect(err).NotTo(HaveOccurred())

			_, err = bad.ListCollections(ctx)
			Expect(commonerrors.IsIndex(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("Invalid API Key"))
		})
	})

	Context("data plane", func() {
		BeforeEach(func() {
			Expect(client.CreateCollection(ctx, index.CreateRequest{Name: "test", Dimension: 3, Metric: "cosine"})).To(Succeed())
		})

		It("upserts records on the resolved host", func() {
			n, err := client.Upsert(ctx, "test", []index.Record{
				{ID: "a", Values: []float32{1, 0, 0}, Metadata: map[string]interface{}{"text": "I love dogs"}},
				{ID: "b", Values: []float32{0, 1, 0}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))

			vectors := fake.upserts[0]["vectors"].([]interface{})
			first := vectors[0].(map[string]interface{})
			Expect(first["id"]).To(Equal("a"))
			Expect(first["values"]).To(HaveLen(3))
			Expect(first["metadata"]).To(HaveKeyWithValue("text", "I love dogs"))
		})

		It("queries with topK and includeMetadata", func() {
			matches, err := client.Query(ctx, "test", index.QueryRequest{Vector: []float32{1, 0, 0}, TopK: 5, IncludeMetadata: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(2))
			Expect(matches[0].ID).To(Equal("a"))
			Expect(matches[0].Score).To(BeNumerically("~", 0.99, 1e-6))
			Expect(matches[0].Metadata).To(HaveKeyWithValue("text", "I love dogs"))

			Expect(fake.queries[0]["topK"]).To(BeNumerically("==", 5))
			Expect(fake.queries[0]["includeMetadata"]).To(BeTrue())
		})

		It("describes index stats", func() {
			stats, err := client.DescribeStats(ctx, "test")
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Dimension).To(Equal(384))
			Expect(stats.TotalRecordCount).To(BeEquivalentTo(2))
			Expect(stats.Namespaces).To(HaveKeyWithValue("", index.NamespaceStats{RecordCount: 2}))
		})

		It("fails data plane calls on a missing index", func() {
			_, err := client.Upsert(ctx, "missing", []index.Record{{ID: "x", Values: []float32{1, 2, 3}}})
			Expect(commonerrors.IsIndex(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("not found"))
		})
	})
})
