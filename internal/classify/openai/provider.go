package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kiranshivaraju/clipminer/internal/config"
	"github.com/kiranshivaraju/clipminer/pkg/models"
	"github.com/kiranshivaraju/clipminer/pkg/timecode"
)

// Sentinel errors for classification failures.
var (
	ErrBackendUnavailable    = errors.New("classification backend unavailable")
	ErrClassificationTimeout = errors.New("classification timeout")
	ErrInvalidResponse       = errors.New("classification backend returned invalid response")
)

const topicPromptFmt = `You are analyzing a lecture transcript to extract meaningful topics.

Previous topics detected:
%s

Analyze this transcript and identify the main topic being discussed. The audio chunk is %s long.

%s

Return ONLY a JSON array with topics. Each topic should have:
- "title": The topic name
- "start": Start time in MM:SS format (must be within 00:00 to %s)
- "end": End time in MM:SS format (must be within 00:00 to %s)
- "parent_topic": (optional) If this is a subtopic

IMPORTANT:
- End times must NOT exceed %s
- Each topic should have different time ranges
- Be specific about when each topic starts and ends

Example output:
[
  {"title": "React Hooks", "start": "00:00", "end": "02:30"},
  {"title": "useState Hook", "start": "02:30", "end": "05:45", "parent_topic": "React Hooks"}
]

Return ONLY the JSON array, no markdown formatting or explanations.`

const interactionPromptFmt = `You are analyzing a lecture transcript to identify segments where the speaker is directly interacting with students.

Look for:
- Questions asked by the speaker to students
- Student questions and speaker responses
- Direct addressing of students ("you", "class", "students")
- Interactive moments ("raise your hand", "what do you think")
- Q&A sessions
- Student participation moments

Analyze this transcript and identify segments with speaker-student interactions:

%s

Return ONLY a JSON array with interaction segments. Each segment should have:
- "title": Descriptive title of the interaction
- "start": Start time in MM:SS format (must be within 00:00 to %s)
- "end": End time in MM:SS format (must be within 00:00 to %s)
- "interaction_type": Type of interaction (e.g., "Q&A", "Student Question", "Direct Address", "Interactive Moment")

IMPORTANT:
- End times must NOT exceed %s
- Only include segments with clear speaker-student interaction
- Be specific about when each interaction starts and ends

Example output:
[
  {"title": "Student Question about React Hooks", "start": "02:30", "end": "04:15", "interaction_type": "Student Question"},
  {"title": "Class Discussion on useState", "start": "05:00", "end": "07:30", "interaction_type": "Q&A"}
]

Return ONLY the JSON array, no markdown formatting or explanations.`

// Provider implements models.Classifier using OpenAI's chat completions API.
type Provider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewProvider creates an OpenAI classification provider.
func NewProvider(cfg config.OpenAIConfig, timeout time.Duration) *Provider {
	return &Provider{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string { return "openai" }

// Topics asks the model for the topics covered by one chunk transcript.
// The reply is returned raw; callers parse and validate it.
func (p *Provider) Topics(ctx context.Context, q models.TopicQuery) (string, error) {
	prev, err := marshalPreviousTopics(q.PreviousTopics)
	if err != nil {
		return "", fmt.Errorf("encoding previous topics: %w", err)
	}
	bound := promptBound(q.ChunkDuration)
	prompt := fmt.Sprintf(topicPromptFmt, prev, bound, q.Transcript, bound, bound, bound)
	return p.complete(ctx, prompt)
}

// Interactions asks the model for speaker-audience exchanges in one chunk
// transcript. The reply is returned raw; callers parse and validate it.
func (p *Provider) Interactions(ctx context.Context, q models.InteractionQuery) (string, error) {
	bound := promptBound(q.ChunkDuration)
	prompt := fmt.Sprintf(interactionPromptFmt, q.Transcript, bound, bound, bound)
	return p.complete(ctx, prompt)
}

func (p *Provider) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       p.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   256,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	u := fmt.Sprintf("%s/chat/completions", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrBackendUnavailable, resp.StatusCode)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in reply", ErrInvalidResponse)
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

// marshalPreviousTopics renders the lookback topics in the same shape the
// reply is expected to come back in: MM:SS bounds, optional parent.
func marshalPreviousTopics(topics []models.Topic) (string, error) {
	prev := make([]promptTopic, 0, len(topics))
	for _, t := range topics {
		prev = append(prev, promptTopic{
			Title:       t.Title,
			Start:       timecode.FormatMMSS(t.StartSec),
			End:         timecode.FormatMMSS(t.EndSec),
			ParentTopic: t.ParentTopic,
		})
	}
	out, err := json.MarshalIndent(prev, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// promptBound renders the chunk duration bound quoted in prompts. Minutes are
// not zero-padded, so a 90 second chunk reads "1:30".
func promptBound(duration int) string {
	return fmt.Sprintf("%d:%02d", duration/60, duration%60)
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrClassificationTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrClassificationTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

// --- OpenAI request and response types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type promptTopic struct {
	Title       string `json:"title"`
	Start       string `json:"start"`
	End         string `json:"end"`
	ParentTopic string `json:"parent_topic,omitempty"`
}

// Compile-time check that Provider implements Classifier.
var _ models.Classifier = (*Provider)(nil)
