package mock

import (
	"context"

	"github.com/kiranshivaraju/clipminer/pkg/models"
)

// MockProvider satisfies models.Transcriber for testing.
type MockProvider struct {
	Name_          string
	TranscribeFunc func(ctx context.Context, path string) ([]models.TranscriptSegment, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Transcribe(ctx context.Context, path string) ([]models.TranscriptSegment, error) {
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, path)
	}
	return []models.TranscriptSegment{}, nil
}

// NewMockProvider returns a MockProvider with sensible default responses.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		TranscribeFunc: func(_ context.Context, _ string) ([]models.TranscriptSegment, error) {
			return []models.TranscriptSegment{
				{Start: 0, End: 4.2, Text: "Welcome back everyone."},
				{Start: 4.2, End: 9.8, Text: "Today we are going to look at component state."},
			}, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		TranscribeFunc: func(_ context.Context, _ string) ([]models.TranscriptSegment, error) {
			return nil, err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		TranscribeFunc: func(ctx context.Context, _ string) ([]models.TranscriptSegment, error) {
			<-ctx.Done()
			return nil, context.DeadlineExceeded
		},
	}
}

// Compile-time check that MockProvider implements Transcriber.
var _ models.Transcriber = (*MockProvider)(nil)
