package mock

import (
	"context"

	"github.com/kiranshivaraju/clipminer/pkg/models"
)

// MockProvider satisfies models.Classifier for testing.
type MockProvider struct {
	Name_            string
	TopicsFunc       func(ctx context.Context, q models.TopicQuery) (string, error)
	InteractionsFunc func(ctx context.Context, q models.InteractionQuery) (string, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Topics(ctx context.Context, q models.TopicQuery) (string, error) {
	if m.TopicsFunc != nil {
		return m.TopicsFunc(ctx, q)
	}
	return "[]", nil
}

func (m *MockProvider) Interactions(ctx context.Context, q models.InteractionQuery) (string, error) {
	if m.InteractionsFunc != nil {
		return m.InteractionsFunc(ctx, q)
	}
	return "[]", nil
}

// NewMockProvider returns a MockProvider with sensible default responses.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		TopicsFunc: func(_ context.Context, _ models.TopicQuery) (string, error) {
			return `[{"title": "Component State", "start": "00:00", "end": "02:30"}, {"title": "useState Hook", "start": "02:30", "end": "05:45", "parent_topic": "Component State"}]`, nil
		},
		InteractionsFunc: func(_ context.Context, _ models.InteractionQuery) (string, error) {
			return `[{"title": "Question about state updates", "start": "03:10", "end": "04:00", "interaction_type": "Student Question"}]`, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		TopicsFunc: func(_ context.Context, _ models.TopicQuery) (string, error) {
			return "", err
		},
		InteractionsFunc: func(_ context.Context, _ models.InteractionQuery) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		TopicsFunc: func(ctx context.Context, _ models.TopicQuery) (string, error) {
			<-ctx.Done()
			return "", context.DeadlineExceeded
		},
		InteractionsFunc: func(ctx context.Context, _ models.InteractionQuery) (string, error) {
			<-ctx.Done()
			return "", context.DeadlineExceeded
		},
	}
}

// Compile-time check that MockProvider implements Classifier.
var _ models.Classifier = (*MockProvider)(nil)
