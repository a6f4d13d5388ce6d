package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
	qdrantgo "github.com/henomis/qdrant-go"
	"github.com/henomis/qdrant-go/request"
	"github.com/henomis/qdrant-go/response"
	"github.com/henomis/restclientgo"

	commonerrors "github.com/S-Corkum/embedding-gateway/pkg/common/errors"
)

// idPayloadKey holds the caller's record ID when it had to be mapped to a UUID
const idPayloadKey = "_id"

// qdrantIDNamespace seeds the UUIDv5 mapping of non-UUID record IDs
var qdrantIDNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("embedding-gateway/qdrant"))

// QdrantConfig configures the Qdrant backend
type QdrantConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
}

// QdrantClient implements Client on top of a Qdrant server
type QdrantClient struct {
	client *qdrantgo.Client
	// rest sends the calls qdrantgo.Client does not cover, with the same
	// endpoint and api-key header
	rest *restclientgo.RestClient
}

// NewQdrantClient creates a new QdrantClient
func NewQdrantClient(config QdrantConfig) (*QdrantClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("qdrant endpoint is required")
	}
	endpoint := strings.TrimRight(config.Endpoint, "/")

	rest := restclientgo.New(endpoint)
	if config.APIKey != "" {
		apiKey := config.APIKey
		rest.SetRequestModifier(func(req *http.Request) *http.Request {
			req.Header.Set("api-key", apiKey)
			return req
		})
	}

	return &QdrantClient{
		client: qdrantgo.New(endpoint, config.APIKey),
		rest:   rest,
	}, nil
}

// Name returns the backend name
func (q *QdrantClient) Name() string { return "qdrant" }

// ListCollections lists collections. Qdrant's listing carries names only,
// so each collection is described individually.
func (q *QdrantClient) ListCollections(ctx context.Context) ([]CollectionDescriptor, error) {
	resp := &response.CollectionList{}
	if err := q.client.CollectionList(ctx, &request.CollectionList{}, resp); err != nil {
		return nil, commonerrors.Index("ListCollections", "qdrant request failed", err)
	}
	if err := qdrantStatus("ListCollections", &resp.Response); err != nil {
		return nil, err
	}

	out := make([]CollectionDescriptor, 0, len(resp.Result.Collections))
	for _, c := range resp.Result.Collections {
		info, err := q.collectionInfo(ctx, "ListCollections", c.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, qdrantDescriptor(c.Name, info))
	}
	return out, nil
}

// CreateCollection creates a collection with the mapped distance function
func (q *QdrantClient) CreateCollection(ctx context.Context, req CreateRequest) error {
	if err := ValidateCreate(req); err != nil {
		return err
	}

	resp := &response.CollectionCreate{}
	err := q.client.CollectionCreate(ctx, &request.CollectionCreate{
		CollectionName: req.Name,
		Vectors: request.VectorsParams{
			Size:     uint64(req.Dimension),
			Distance: request.Distance(toQdrantDistance(req.Metric)),
		},
	}, resp)
	if err != nil {
		return commonerrors.Index("CreateCollection", "qdrant request failed", err)
	}
	return qdrantStatus("CreateCollection", &resp.Response)
}

// DeleteCollection drops a collection. Some Qdrant versions report a
// missing collection as a successful no-op, so existence is checked first.
func (q *QdrantClient) DeleteCollection(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return commonerrors.Validation("DeleteCollection", "index name is required")
	}
	if _, err := q.collectionInfo(ctx, "DeleteCollection", name); err != nil {
		return err
	}

	resp := &collectionDeleteResponse{}
	if err := q.rest.Delete(ctx, &collectionDeleteRequest{CollectionName: name}, resp); err != nil {
		return commonerrors.Index("DeleteCollection", "qdrant request failed", err)
	}
	return qdrantStatus("DeleteCollection", &resp.Response)
}

// Upsert writes records and waits for the operation to be applied
func (q *QdrantClient) Upsert(ctx context.Context, collection string, records []Record) (int, error) {
	points := make([]request.Point, len(records))
	for i, r := range records {
		points[i] = request.Point{
			ID:      toPointID(r.ID),
			Vector:  toFloat64(r.Values),
			Payload: toPayload(r),
		}
	}

	wait := true
	resp := &response.PointUpsert{}
	err := q.client.PointUpsert(ctx, &request.PointUpsert{
		CollectionName: collection,
		Wait:           &wait,
		Points:         points,
	}, resp)
	if err != nil {
		return 0, commonerrors.Index("Upsert", "qdrant request failed", err)
	}
	if err := qdrantStatus("Upsert", &resp.Response); err != nil {
		return 0, err
	}
	return len(records), nil
}

// Query searches for the nearest points
func (q *QdrantClient) Query(ctx context.Context, collection string, req QueryRequest) ([]Match, error) {
	withPayload := true
	withVector := false
	resp := &response.PointSearch{}
	err := q.client.PointSearch(ctx, &request.PointSearch{
		CollectionName: collection,
		Vector:         toFloat64(req.Vector),
		Limit:          req.TopK,
		WithPayload:    &withPayload,
		WithVector:     &withVector,
	}, resp)
	if err != nil {
		return nil, commonerrors.Index("Query", "qdrant request failed", err)
	}
	if err := qdrantStatus("Query", &resp.Response); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(resp.Result))
	for _, p := range resp.Result {
		id, metadata := fromPayload(p.ID, p.Payload)
		m := Match{ID: id, Score: float32(p.Score)}
		if req.IncludeMetadata {
			m.Metadata = metadata
		}
		matches = append(matches, m)
	}
	// Qdrant already orders by score; keep it stable regardless
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches, nil
}

// DescribeStats reports the collection's point count under the default namespace
func (q *QdrantClient) DescribeStats(ctx context.Context, collection string) (*Stats, error) {
	info, err := q.collectionInfo(ctx, "DescribeStats", collection)
	if err != nil {
		return nil, err
	}
	count := int64(info.PointsCount)
	return &Stats{
		Dimension:        int(info.Config.Params.Size),
		TotalRecordCount: count,
		Namespaces: map[string]NamespaceStats{
			"": {RecordCount: count},
		},
	}, nil
}

func qdrantDescriptor(name string, info *response.CollectionCollectInfoResult) CollectionDescriptor {
	return CollectionDescriptor{
		Name:      name,
		Dimension: int(info.Config.Params.Size),
		Metric:    fromQdrantDistance(string(info.Config.Params.Distance)),
		Ready:     info.Status == "green",
		State:     info.Status,
	}
}

func (q *QdrantClient) collectionInfo(ctx context.Context, op, name string) (*response.CollectionCollectInfoResult, error) {
	resp := &response.CollectionCollectInfo{}
	if err := q.client.CollectionCollectInfo(ctx, &request.CollectionCollectInfo{CollectionName: name}, resp); err != nil {
		return nil, commonerrors.Index(op, "qdrant request failed", err)
	}
	if err := qdrantStatus(op, &resp.Response); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// qdrantStatus turns a non-2xx reply into an index error. restclientgo
// leaves failed bodies undecoded in RawBody, where Qdrant puts its message
// under status.error.
func qdrantStatus(op string, resp *response.Response) error {
	if resp.IsSuccess() {
		return nil
	}

	message := http.StatusText(resp.Code)
	if resp.RawBody != nil {
		var failed struct {
			Status struct {
				Error string `json:"error"`
			} `json:"status"`
		}
		if err := json.Unmarshal([]byte(*resp.RawBody), &failed); err == nil && failed.Status.Error != "" {
			message = failed.Status.Error
		} else if raw := strings.TrimSpace(*resp.RawBody); raw != "" {
			message = raw
		}
	}
	if message == "" {
		message = fmt.Sprintf("status %d", resp.Code)
	}
	return commonerrors.IndexWithStatus(op, "qdrant: "+message, resp.Code, nil)
}

// collectionDeleteRequest is DELETE /collections/{name}
type collectionDeleteRequest struct {
	CollectionName string
}

func (r *collectionDeleteRequest) Path() (string, error) {
	return "/collections/" + url.PathEscape(r.CollectionName), nil
}

func (r *collectionDeleteRequest) Encode() (io.Reader, error) { return nil, nil }

func (r *collectionDeleteRequest) ContentType() string { return "" }

type collectionDeleteResponse struct {
	response.Response
	Result bool `json:"result"`
}

func (r *collectionDeleteResponse) AcceptContentType() string { return "application/json" }

func (r *collectionDeleteResponse) Decode(body io.Reader) error {
	return json.NewDecoder(body).Decode(r)
}

func toQdrantDistance(metric string) string {
	switch metric {
	case MetricEuclidean:
		return "Euclid"
	case MetricDotProduct:
		return "Dot"
	default:
		return "Cosine"
	}
}

func fromQdrantDistance(distance string) string {
	switch distance {
	case "Euclid":
		return MetricEuclidean
	case "Dot":
		return MetricDotProduct
	case "Cosine":
		return MetricCosine
	default:
		return strings.ToLower(distance)
	}
}

// toPointID keeps UUIDs as they are and maps anything else to a stable UUIDv5
func toPointID(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return uuid.NewSHA1(qdrantIDNamespace, []byte(id)).String()
}

func toPayload(r Record) map[string]interface{} {
	payload := make(map[string]interface{}, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		payload[k] = v
	}
	if toPointID(r.ID) != r.ID {
		payload[idPayloadKey] = r.ID
	}
	return payload
}

// fromPayload restores the caller's ID and strips it from the metadata
func fromPayload(pointID string, payload map[string]interface{}) (string, map[string]interface{}) {
	id := pointID
	metadata := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if k == idPayloadKey {
			if s, ok := v.(string); ok {
				id = s
			}
			continue
		}
		metadata[k] = v
	}
	return id, metadata
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
