package embedding

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockEmbedder is a testify mock of Embedder for use in other packages' tests
type MockEmbedder struct {
	mock.Mock
}

// Embed mocks the Embed method
func (m *MockEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	args := m.Called(ctx, text)
	if v := args.Get(0); v != nil {
		return v.(Vector), args.Error(1)
	}
	return nil, args.Error(1)
}

// Dimension mocks the Dimension method
func (m *MockEmbedder) Dimension() int {
	return m.Called().Int(0)
}

// Model mocks the Model method
func (m *MockEmbedder) Model() string {
	return m.Called().String(0)
}

// Name mocks the Name method
func (m *MockEmbedder) Name() string {
	return m.Called().String(0)
}
