package api

import (
	"time"

	"phototag/internal/detection"
	"phototag/internal/queue"
	"phototag/internal/workflow"
)

// FromPhoto converts a queue.Photo into its transport representation.
func FromPhoto(p *queue.Photo) Photo {
	if p == nil {
		return Photo{Tags: []string{}}
	}
	dto := Photo{
		ID:          p.ID,
		Filename:    p.Filename,
		StoragePath: p.StoragePath,
		CaptureDate: p.CaptureDate,
		Tags:        append([]string{}, p.Tags...),
		State:       string(p.State),
		Attempts:    p.Attempts,
		LastError:   p.LastError,
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
	if p.TaggedAt != nil {
		dto.TaggedAt = formatTime(*p.TaggedAt)
	}
	return dto
}

// FromPhotos converts a slice of photos.
func FromPhotos(photos []*queue.Photo) []Photo {
	out := make([]Photo, 0, len(photos))
	for _, p := range photos {
		if p == nil {
			continue
		}
		out = append(out, FromPhoto(p))
	}
	return out
}

// FromEntryView converts a joined queue row.
func FromEntryView(v *queue.EntryView) QueueEntry {
	if v == nil {
		return QueueEntry{}
	}
	dto := QueueEntry{
		PhotoID:    v.PhotoID,
		Filename:   v.Filename,
		State:      string(v.State),
		Attempts:   v.Attempts,
		LeaseOwner: v.LeaseOwner,
		EnqueuedAt: formatTime(v.EnqueuedAt),
		ClaimCount: v.ClaimCount,
	}
	if v.LeaseExpiry != nil {
		dto.LeaseExpiry = formatTime(*v.LeaseExpiry)
	}
	if v.RetryAt != nil {
		dto.RetryAt = formatTime(*v.RetryAt)
	}
	return dto
}

// FromEntryViews converts a slice of joined queue rows.
func FromEntryViews(views []*queue.EntryView) []QueueEntry {
	out := make([]QueueEntry, 0, len(views))
	for _, v := range views {
		if v == nil {
			continue
		}
		out = append(out, FromEntryView(v))
	}
	return out
}

// FromStats converts queue.Stats, filling zero counts for every state.
func FromStats(stats queue.Stats) QueueStats {
	counts := make(map[string]int, len(queue.AllStates()))
	for _, state := range queue.AllStates() {
		counts[string(state)] = stats.States[state]
	}
	dto := QueueStats{
		Counts:        counts,
		QueueDepth:    stats.QueueDepth,
		Leased:        stats.Leased,
		ExpiredLeases: stats.ExpiredLeases,
		BackingOff:    stats.BackingOff,
	}
	if stats.OldestEntry != nil {
		dto.OldestEntry = formatTime(*stats.OldestEntry)
	}
	return dto
}

// FromDetectorHealth converts a detector probe result.
func FromDetectorHealth(h detection.Health) DetectorHealth {
	return DetectorHealth{Provider: h.Provider, Endpoint: h.Endpoint, Ready: h.Ready, Detail: h.Detail}
}

// FromStatusSummary converts workflow diagnostics.
func FromStatusSummary(s workflow.StatusSummary) WorkflowStatus {
	workers := s.Workers
	if workers == nil {
		workers = []string{}
	}
	return WorkflowStatus{
		Running:     s.Running,
		Workers:     workers,
		Processed:   s.Processed,
		Failed:      s.Failed,
		LastError:   s.LastError,
		LastPhotoID: s.LastPhotoID,
		Queue:       FromStats(s.QueueStats),
		Detector:    FromDetectorHealth(s.Detector),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
