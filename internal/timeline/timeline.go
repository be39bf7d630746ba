// Package timeline folds per-chunk analyses into one global timeline.
// Chunk-local times are offset by the nominal chunk duration. The reconciler
// drops nothing, re-sorts nothing, and merges nothing: whatever the analyzer
// admitted appears exactly once, in chunk-processing order.
package timeline

import "github.com/kiranshivaraju/clipminer/pkg/models"

// Timeline is a job's reconciled timeline: two independently ordered and
// independently numbered lists, one per entry kind.
type Timeline struct {
	Topics       []models.TimelineEntry `json:"topics"`
	Interactions []models.TimelineEntry `json:"interactions"`
}

// Entries flattens the timeline for reporting, topics first.
func (t Timeline) Entries() []models.TimelineEntry {
	entries := make([]models.TimelineEntry, 0, len(t.Topics)+len(t.Interactions))
	entries = append(entries, t.Topics...)
	entries = append(entries, t.Interactions...)
	return entries
}

// Reconcile maps every topic and interaction onto the global source timeline.
// The offset for chunk k is (k−1)·nominalD. The nominal duration is used even
// when the final chunk is shorter, so local times stay aligned with how the
// chunks were cut. Never returns nil slices.
func Reconcile(analyses []models.ChunkAnalysis, nominalD int) Timeline {
	tl := Timeline{
		Topics:       []models.TimelineEntry{},
		Interactions: []models.TimelineEntry{},
	}

	for _, an := range analyses {
		offset := (an.ChunkNumber - 1) * nominalD

		for _, topic := range an.Topics {
			tl.Topics = append(tl.Topics, models.TimelineEntry{
				Kind:        models.KindTopic,
				Title:       topic.Title,
				ParentTopic: topic.ParentTopic,
				StartTime:   offset + topic.StartSec,
				EndTime:     offset + topic.EndSec,
				SourceChunk: an.ChunkNumber,
			})
		}
		for _, inter := range an.Interactions {
			tl.Interactions = append(tl.Interactions, models.TimelineEntry{
				Kind:            models.KindInteraction,
				Title:           inter.Title,
				InteractionType: inter.InteractionType,
				StartTime:       offset + inter.StartSec,
				EndTime:         offset + inter.EndSec,
				SourceChunk:     an.ChunkNumber,
			})
		}
	}

	return tl
}
