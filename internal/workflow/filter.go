package workflow

import (
	"phototag/internal/detection"
	"phototag/internal/queue"
)

// FilterDetections keeps labels whose confidence is at or above threshold
// and returns them normalized by queue.NormalizeTags: trimmed, lower-cased,
// de-duplicated and sorted. Labels differing only in case ("Person" and
// "person") become one tag, and tag filters in FindPhotos are matched the
// same way, so tag queries are case-insensitive.
func FilterDetections(detections []detection.Detection, threshold float64) []string {
	labels := make([]string, 0, len(detections))
	for _, d := range detections {
		if d.Confidence >= threshold {
			labels = append(labels, d.Label)
		}
	}
	return queue.NormalizeTags(labels)
}
