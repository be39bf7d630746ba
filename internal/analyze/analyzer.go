// Package analyze runs the per-chunk transcript and classification passes.
// It drives the speech-to-text and classifier capabilities chunk by chunk,
// carrying one chunk of topic lookback forward, and turns their untrusted
// replies into validated chunk analyses.
package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/kiranshivaraju/clipminer/internal/retry"
	"github.com/kiranshivaraju/clipminer/pkg/models"
	"github.com/kiranshivaraju/clipminer/pkg/timecode"
)

// ErrNoTranscripts means every chunk failed transcription, which is fatal
// for the job.
var ErrNoTranscripts = errors.New("no chunk could be transcribed")

const (
	maxAttempts = 3
	retryDelay  = 2 * time.Second
)

// Observer receives sub-step completion counts while a pass runs, so callers
// can report progress. A nil Observer is valid.
type Observer func(done, total int)

// Analyzer obtains transcripts and derives topics and interactions for a
// job's audio chunks. Both capability calls go through the same retry policy;
// per-call timeouts belong to the providers themselves.
type Analyzer struct {
	transcriber models.Transcriber
	classifier  models.Classifier
	policy      retry.Policy
}

// New creates an Analyzer over the given capabilities.
func New(transcriber models.Transcriber, classifier models.Classifier) *Analyzer {
	return &Analyzer{
		transcriber: transcriber,
		classifier:  classifier,
		policy:      retry.Policy{Attempts: maxAttempts, Delay: retryDelay},
	}
}

// TranscribeChunks converts chunks into timestamped transcripts, in chunk
// order. A chunk whose retries exhaust, or that yields no speech, is skipped;
// it will be absent from the returned slice. Zero usable transcripts is fatal.
func (a *Analyzer) TranscribeChunks(ctx context.Context, chunks []models.AudioChunk, obs Observer) ([]models.ChunkTranscript, error) {
	transcripts := make([]models.ChunkTranscript, 0, len(chunks))

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var segments []models.TranscriptSegment
		err := a.policy.Do(ctx, func(ctx context.Context) error {
			got, err := a.transcriber.Transcribe(ctx, chunk.Path)
			if err != nil {
				return err
			}
			segments = got
			return nil
		})
		switch {
		case err != nil:
			slog.Warn("transcription failed, skipping chunk", "chunk", chunk.Number, "error", err)
		case len(segments) == 0:
			slog.Warn("no speech recognized, skipping chunk", "chunk", chunk.Number)
		default:
			transcripts = append(transcripts, models.ChunkTranscript{
				ChunkNumber: chunk.Number,
				Text:        renderTranscript(segments),
			})
			slog.Info("chunk transcribed", "chunk", chunk.Number, "segments", len(segments))
		}
		if obs != nil {
			obs(i+1, len(chunks))
		}
	}

	if len(transcripts) == 0 {
		return nil, ErrNoTranscripts
	}
	return transcripts, nil
}

// AnalyzeChunks classifies every transcribed chunk, in order. Each chunk gets
// two independent classifier calls; the chunk's validated topics feed the next
// chunk's query as lookback. Exhausted topic retries degrade to a single
// full-chunk "Unknown" topic, exhausted interaction retries to zero
// interactions, so the result always covers every transcribed chunk.
func (a *Analyzer) AnalyzeChunks(ctx context.Context, chunks []models.AudioChunk, transcripts []models.ChunkTranscript, obs Observer) ([]models.ChunkAnalysis, error) {
	durations := make(map[int]int, len(chunks))
	for _, chunk := range chunks {
		durations[chunk.Number] = int(math.Round(chunk.Duration))
	}

	analyses := make([]models.ChunkAnalysis, 0, len(transcripts))
	var prevTopics []models.Topic

	for i, transcript := range transcripts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		duration, ok := durations[transcript.ChunkNumber]
		if !ok {
			slog.Warn("transcript without a matching chunk, skipping", "chunk", transcript.ChunkNumber)
			if obs != nil {
				obs(i+1, len(transcripts))
			}
			continue
		}

		topics := a.detectTopics(ctx, transcript, prevTopics, duration)
		interactions := a.detectInteractions(ctx, transcript, duration)

		analyses = append(analyses, models.ChunkAnalysis{
			ChunkNumber:  transcript.ChunkNumber,
			Duration:     duration,
			Topics:       topics,
			Interactions: interactions,
		})
		prevTopics = topics

		slog.Info("chunk analyzed",
			"chunk", transcript.ChunkNumber,
			"topics", len(topics),
			"interactions", len(interactions))

		if obs != nil {
			obs(i+1, len(transcripts))
		}
	}

	return analyses, nil
}

// detectTopics runs the topic call with retries. The reply must parse as a
// JSON array to count as a success; a reply that parses but survives
// validation with zero topics falls back without burning further attempts.
func (a *Analyzer) detectTopics(ctx context.Context, transcript models.ChunkTranscript, prev []models.Topic, duration int) []models.Topic {
	fallback := []models.Topic{{Title: "Unknown", StartSec: 0, EndSec: duration}}

	var topics []models.Topic
	err := a.policy.Do(ctx, func(ctx context.Context) error {
		raw, err := a.classifier.Topics(ctx, models.TopicQuery{
			Transcript:     transcript.Text,
			PreviousTopics: prev,
			ChunkDuration:  duration,
		})
		if err != nil {
			return err
		}
		parsed, err := parseTopics(raw, duration)
		if err != nil {
			return err
		}
		topics = parsed
		return nil
	})
	if err != nil {
		slog.Warn("topic analysis failed, using fallback", "chunk", transcript.ChunkNumber, "error", err)
		return fallback
	}
	if len(topics) == 0 {
		slog.Warn("no topic survived validation, using fallback", "chunk", transcript.ChunkNumber)
		return fallback
	}
	return topics
}

// detectInteractions runs the interaction call with retries. Interactions are
// optional, so exhausted retries simply yield none.
func (a *Analyzer) detectInteractions(ctx context.Context, transcript models.ChunkTranscript, duration int) []models.Interaction {
	var interactions []models.Interaction
	err := a.policy.Do(ctx, func(ctx context.Context) error {
		raw, err := a.classifier.Interactions(ctx, models.InteractionQuery{
			Transcript:    transcript.Text,
			ChunkDuration: duration,
		})
		if err != nil {
			return err
		}
		parsed, err := parseInteractions(raw, duration)
		if err != nil {
			return err
		}
		interactions = parsed
		return nil
	})
	if err != nil {
		slog.Warn("interaction detection failed, continuing without", "chunk", transcript.ChunkNumber, "error", err)
		return []models.Interaction{}
	}
	return interactions
}

// renderTranscript flattens segments into "[MM:SS --> MM:SS] text" lines,
// the compact form the classifier prompts embed.
func renderTranscript(segments []models.TranscriptSegment) string {
	lines := make([]string, 0, len(segments))
	for _, s := range segments {
		lines = append(lines, fmt.Sprintf("[%s --> %s] %s",
			timecode.FormatMMSS(int(s.Start)),
			timecode.FormatMMSS(int(s.End)),
			strings.TrimSpace(s.Text)))
	}
	return strings.Join(lines, "\n")
}

// --- classifier payload parsing ---

type rawTopic struct {
	Title       string `json:"title"`
	Start       string `json:"start"`
	End         string `json:"end"`
	ParentTopic string `json:"parent_topic"`
}

type rawInteraction struct {
	Title           string `json:"title"`
	Start           string `json:"start"`
	End             string `json:"end"`
	InteractionType string `json:"interaction_type"`
}

// parseTopics decodes a raw topic payload and keeps the items that survive
// validation. A payload that is not a JSON array is an error (the caller
// retries); an individually malformed item is logged and dropped.
func parseTopics(raw string, duration int) ([]models.Topic, error) {
	var items []rawTopic
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &items); err != nil {
		return nil, fmt.Errorf("parsing topic payload: %w", err)
	}

	topics := make([]models.Topic, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Title) == "" {
			slog.Warn("discarding topic without a title")
			continue
		}
		start, end, err := timecode.ValidateWindow(item.Start, item.End, duration)
		if err != nil {
			slog.Warn("discarding topic with invalid window", "title", item.Title, "error", err)
			continue
		}
		topics = append(topics, models.Topic{
			Title:       item.Title,
			ParentTopic: item.ParentTopic,
			StartSec:    start,
			EndSec:      end,
		})
	}
	return topics, nil
}

// parseInteractions decodes a raw interaction payload the same way.
// A missing interaction_type defaults to "Unknown" rather than dropping
// the item.
func parseInteractions(raw string, duration int) ([]models.Interaction, error) {
	var items []rawInteraction
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &items); err != nil {
		return nil, fmt.Errorf("parsing interaction payload: %w", err)
	}

	interactions := make([]models.Interaction, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Title) == "" {
			slog.Warn("discarding interaction without a title")
			continue
		}
		start, end, err := timecode.ValidateWindow(item.Start, item.End, duration)
		if err != nil {
			slog.Warn("discarding interaction with invalid window", "title", item.Title, "error", err)
			continue
		}
		kind := item.InteractionType
		if strings.TrimSpace(kind) == "" {
			kind = "Unknown"
		}
		interactions = append(interactions, models.Interaction{
			Title:           item.Title,
			InteractionType: kind,
			StartSec:        start,
			EndSec:          end,
		})
	}
	return interactions, nil
}

// stripCodeFences removes a markdown code fence wrapper, which some models
// add despite being told not to.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
