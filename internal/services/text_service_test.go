package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	commonerrors "github.com/S-Corkum/embedding-gateway/pkg/common/errors"
	"github.com/S-Corkum/embedding-gateway/pkg/embedding"
	"github.com/S-Corkum/embedding-gateway/pkg/index"
)

var fixedTime = time.Date(2024, 3, 1, 12, 30, 45, 123000000, time.UTC)

func newTestService(t *testing.T) (*TextService, *index.MemoryClient) {
	t.Helper()
	client := index.NewMemoryClient()
	require.NoError(t, client.CreateCollection(context.Background(), index.CreateRequest{
		Name: "test", Dimension: 64, Metric: index.MetricCosine,
	}))
	seq := 0
	svc := NewTextService(
		embedding.NewHashEmbedder("", 64),
		client,
		nil,
		WithClock(func() time.Time { return fixedTime }),
		WithIDGenerator(func(at time.Time) string {
			seq++
			return fmt.Sprintf("text_%d_%09d", at.UnixMilli(), seq)
		}),
	)
	return svc, client
}

func TestGenerateID(t *testing.T) {
	id := GenerateID(fixedTime)
	assert.Regexp(t, regexp.MustCompile(`^text_1709296245123_[a-z0-9]{9}$`), id)
	assert.NotEqual(t, id, GenerateID(fixedTime))
}

func TestAddText_EnrichesMetadata(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.AddText(context.Background(), AddTextInput{
		IndexName: "test",
		Text:      "I love dogs",
		Metadata:  map[string]interface{}{"category": "pets", "text": "overridden"},
	})
	require.NoError(t, err)

	assert.Equal(t, "text_1709296245123_000000001", result.ID)
	assert.Equal(t, 64, result.VectorDimension)
	assert.Equal(t, "pets", result.Metadata["category"])
	assert.Equal(t, "I love dogs", result.Metadata["text"], "pipeline fields win over caller keys")
	assert.Equal(t, "feature-hash", result.Metadata["model"])
	assert.Equal(t, 64, result.Metadata["dimension"])
	assert.Equal(t, "2024-03-01T12:30:45.123Z", result.Metadata["timestamp"])
}

func TestAddText_KeepsCallerID(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.AddText(context.Background(), AddTextInput{IndexName: "test", Text: "hello", ID: "doc-1"})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", result.ID)
}

func TestAddText_Validation(t *testing.T) {
	svc, client := newTestService(t)
	before := client.TotalCalls()

	_, err := svc.AddText(context.Background(), AddTextInput{IndexName: "test", Text: "   "})
	assert.True(t, commonerrors.IsValidation(err))

	_, err = svc.AddText(context.Background(), AddTextInput{Text: "hello"})
	assert.True(t, commonerrors.IsValidation(err))

	assert.Equal(t, before, client.TotalCalls())
}

func TestAddText_MissingIndex(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AddText(context.Background(), AddTextInput{IndexName: "nope", Text: "hello"})
	require.Error(t, err)
	assert.True(t, commonerrors.IsIndex(err))
	assert.Contains(t, err.Error(), "not found")
}

func TestQueryText_FindsStoredText(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, text := range []string{"I love dogs", "The stock market fell sharply", "Quantum computing is hard"} {
		_, err := svc.AddText(ctx, AddTextInput{IndexName: "test", Text: text})
		require.NoError(t, err)
	}

	result, err := svc.QueryText(ctx, QueryTextInput{IndexName: "test", Text: "I love dogs"})
	require.NoError(t, err)
	require.Len(t, result.Results, 3)

	top := result.Results[0]
	assert.Equal(t, 1, top.Rank)
	assert.Equal(t, "I love dogs", top.Text)
	assert.InDelta(t, 1.0, top.Score, 1e-4)
	assert.Equal(t, 2, result.Results[1].Rank)
	assert.GreaterOrEqual(t, top.Score, result.Results[1].Score)
}

func TestQueryText_TopKAndMetadata(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		_, err := svc.AddText(ctx, AddTextInput{IndexName: "test", Text: fmt.Sprintf("sentence number %d", i)})
		require.NoError(t, err)
	}

	result, err := svc.QueryText(ctx, QueryTextInput{IndexName: "test", Text: "sentence"})
	require.NoError(t, err)
	assert.Len(t, result.Results, DefaultTopK)

	zero := 0
	result, err = svc.QueryText(ctx, QueryTextInput{IndexName: "test", Text: "sentence", TopK: &zero})
	require.NoError(t, err)
	assert.Len(t, result.Results, DefaultTopK, "non-positive topK falls back to the default")

	two, off := 2, false
	result, err = svc.QueryText(ctx, QueryTextInput{IndexName: "test", Text: "sentence", TopK: &two, IncludeMetadata: &off})
	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	assert.Empty(t, result.Results[0].Text)
	assert.Nil(t, result.Results[0].Metadata)

	huge := MaxTopK + 1
	_, err = svc.QueryText(ctx, QueryTextInput{IndexName: "test", Text: "sentence", TopK: &huge})
	assert.True(t, commonerrors.IsValidation(err))
}

func TestAddTexts_PartialFailure(t *testing.T) {
	svc, client := newTestService(t)

	result, err := svc.AddTexts(context.Background(), "test", []BatchItem{
		{Text: "Dogs are loyal"},
		{Text: ""},
		{Text: "bad", Err: errors.New("item must be a string or an object with a text field")},
		{Text: "Cats are independent", ID: "cat", Metadata: map[string]interface{}{"kind": "cat"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Results, 4)
	for i, r := range result.Results {
		assert.Equal(t, i, r.Index)
	}
	assert.Equal(t, StatusProcessed, result.Results[0].Status)
	assert.Equal(t, StatusFailed, result.Results[1].Status)
	assert.Contains(t, result.Results[1].Error, "text is required")
	assert.Equal(t, StatusFailed, result.Results[2].Status)
	assert.Equal(t, "cat", result.Results[3].ID)

	assert.Equal(t, 1, client.Calls("Upsert"), "processed items are written in one call")
	stats, err := client.DescribeStats(context.Background(), "test")
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalRecordCount)
}

func TestAddTexts_AllFailedSkipsUpsert(t *testing.T) {
	svc, client := newTestService(t)

	result, err := svc.AddTexts(context.Background(), "test", []BatchItem{{Text: " "}, {Text: ""}})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	assert.Zero(t, client.Calls("Upsert"))
}

func TestAddTexts_EmptyBatch(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AddTexts(context.Background(), "test", nil)
	assert.True(t, commonerrors.IsValidation(err))
}

func TestAddTexts_EmbeddingFailureIsPerItem(t *testing.T) {
	embedder := new(embedding.MockEmbedder)
	embedder.On("Model").Return("mock")
	embedder.On("Dimension").Return(2)
	embedder.On("Embed", mock.Anything, "good").Return(embedding.Vector{1, 0}, nil)
	embedder.On("Embed", mock.Anything, "boom").Return(nil, commonerrors.Embedding("mock.Embed", "model crashed", nil))

	client := index.NewMemoryClient()
	require.NoError(t, client.CreateCollection(context.Background(), index.CreateRequest{Name: "t", Dimension: 2, Metric: index.MetricCosine}))
	svc := NewTextService(embedder, client, nil)

	result, err := svc.AddTexts(context.Background(), "t", []BatchItem{{Text: "good"}, {Text: "boom"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, "model crashed", result.Results[1].Error)
	embedder.AssertExpectations(t)
}

func TestAddTexts_UpsertFailure(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AddTexts(context.Background(), "missing", []BatchItem{{Text: "hello"}})
	require.Error(t, err)
	assert.True(t, commonerrors.IsIndex(err))
}

func TestCreateIndex_Defaults(t *testing.T) {
	client := index.NewMemoryClient()
	svc := NewTextService(embedding.NewHashEmbedder("", 8), client, nil)

	req, err := svc.CreateIndex(context.Background(), CreateIndexInput{Name: "fresh"})
	require.NoError(t, err)
	assert.Equal(t, 384, req.Dimension)
	assert.Equal(t, index.MetricCosine, req.Metric)

	list, err := svc.ListIndexes(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "fresh", list[0].Name)
}

func TestCreateIndex_ValidationSkipsBackend(t *testing.T) {
	client := index.NewMemoryClient()
	svc := NewTextService(embedding.NewHashEmbedder("", 8), client, nil, WithIndexDefaults(16, index.MetricDotProduct))

	_, err := svc.CreateIndex(context.Background(), CreateIndexInput{})
	assert.True(t, commonerrors.IsValidation(err))

	_, err = svc.CreateIndex(context.Background(), CreateIndexInput{Name: "x", Metric: "manhattan"})
	assert.True(t, commonerrors.IsValidation(err))

	_, err = svc.CreateIndex(context.Background(), CreateIndexInput{Name: "x", Dimension: -1})
	assert.True(t, commonerrors.IsValidation(err))

	assert.Zero(t, client.TotalCalls())

	req, err := svc.CreateIndex(context.Background(), CreateIndexInput{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, 16, req.Dimension)
	assert.Equal(t, index.MetricDotProduct, req.Metric)
}

func TestIndexStatsAndDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddText(ctx, AddTextInput{IndexName: "test", Text: "hello"})
	require.NoError(t, err)

	stats, err := svc.IndexStats(ctx, "test")
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalRecordCount)
	assert.Equal(t, 64, stats.Dimension)

	require.NoError(t, svc.DeleteIndex(ctx, "test"))

	err = svc.DeleteIndex(ctx, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Resource test not found")

	count, err := svc.CheckBackend(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
