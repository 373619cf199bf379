package queue

import (
	"fmt"
	"strings"
	"time"
)

// State represents the tagging lifecycle of a photo.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateTagged     State = "tagged"
	StateFailed     State = "failed"
)

var allStates = []State{StatePending, StateProcessing, StateTagged, StateFailed}

// AllStates returns every lifecycle state in display order.
func AllStates() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// ParseState normalizes user input into a known state.
func ParseState(value string) (State, error) {
	candidate := State(strings.ToLower(strings.TrimSpace(value)))
	for _, state := range allStates {
		if candidate == state {
			return state, nil
		}
	}
	return "", fmt.Errorf("unknown photo state %q", value)
}

// IsTerminal reports whether the worker will no longer touch a photo in this state.
func (s State) IsTerminal() bool {
	return s == StateTagged || s == StateFailed
}

// Photo is the persisted record of an uploaded image.
type Photo struct {
	ID          int64
	Filename    string
	StoragePath string
	// CaptureDate is a calendar date formatted YYYY-MM-DD.
	CaptureDate string
	Tags        []string
	State       State
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	TaggedAt    *time.Time
}

// HasTag reports whether the photo carries the given tag.
func (p *Photo) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// NewPhoto holds the immutable fields captured at ingestion.
type NewPhoto struct {
	Filename    string
	StoragePath string
	CaptureDate string
}

// Entry is a queue entry: a photo that still needs tagging.
type Entry struct {
	PhotoID     int64
	LeaseOwner  string
	LeaseExpiry *time.Time
	EnqueuedAt  time.Time
	ClaimCount  int
	// RetryAt is set after a failed attempt; the entry is not claimable
	// before it.
	RetryAt *time.Time
}

// Claimed reports whether a lease was ever granted and not yet released.
func (e *Entry) Claimed() bool {
	return e.LeaseOwner != ""
}

// Expired reports whether the lease has lapsed at the given instant.
func (e *Entry) Expired(now time.Time) bool {
	return e.LeaseExpiry != nil && !e.LeaseExpiry.After(now)
}

// BackingOff reports whether a retry delay is still pending at now.
func (e *Entry) BackingOff(now time.Time) bool {
	return e.RetryAt != nil && e.RetryAt.After(now)
}

// EntryView joins a queue entry with the photo fields shown by operators.
type EntryView struct {
	Entry
	Filename string
	State    State
	Attempts int
}

// Filter selects photos for FindPhotos. Zero values mean "no constraint".
type Filter struct {
	// CaptureDate matches exactly (YYYY-MM-DD).
	CaptureDate string
	// Tags matches photos carrying at least one of the listed tags,
	// compared case-insensitively.
	Tags   []string
	States []State
	Limit  int
}

// Stats summarizes photo states and queue occupancy.
type Stats struct {
	States        map[State]int
	QueueDepth    int
	Leased        int
	ExpiredLeases int
	// BackingOff counts unleased entries waiting out a retry delay.
	BackingOff  int
	OldestEntry *time.Time
}

// HealthSummary aggregates queue consistency checks for diagnostic output.
type HealthSummary struct {
	Driver        string
	Location      string
	SchemaVersion int
	Photos        int
	QueueDepth    int
	ExpiredLeases int
	// Orphans are pending or processing photos with no queue entry.
	Orphans int
	// StrayEntries are queue entries whose photo is already tagged or failed.
	StrayEntries int
}

// Healthy reports whether no consistency issue was found.
func (h HealthSummary) Healthy() bool {
	return h.Orphans == 0 && h.StrayEntries == 0
}
