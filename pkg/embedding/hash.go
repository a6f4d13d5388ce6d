package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder is an in-process feature-hashing model. Word unigrams and
// character trigrams are hashed into buckets with a signed hash, then the
// vector is L2-normalised. Identical text always yields identical vectors,
// and texts sharing words land close together under cosine similarity.
type HashEmbedder struct {
	model     string
	dimension int
}

// NewHashEmbedder creates a new HashEmbedder
func NewHashEmbedder(model string, dimension int) *HashEmbedder {
	if model == "" {
		model = DefaultHashModel
	}
	return &HashEmbedder{model: model, dimension: dimension}
}

// Name returns the provider name
func (h *HashEmbedder) Name() string { return ProviderHash }

// Model returns the model label recorded in metadata
func (h *HashEmbedder) Model() string { return h.model }

// Dimension returns the vector length
func (h *HashEmbedder) Dimension() int { return h.dimension }

// Embed hashes text into a unit vector
func (h *HashEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	if err := checkText(ProviderHash, text); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vector := make(Vector, h.dimension)
	normalized := strings.ToLower(strings.TrimSpace(text))

	words := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h.add(vector, "w:"+w, 1.0)
	}

	runes := []rune(" " + normalized + " ")
	for i := 0; i+3 <= len(runes); i++ {
		h.add(vector, "c:"+string(runes[i:i+3]), 0.5)
	}

	normalize(vector)
	return vector, nil
}

func (h *HashEmbedder) add(vector Vector, feature string, weight float32) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()

	bucket := int(sum % uint64(h.dimension))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vector[bucket] += weight
}

func normalize(v Vector) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
