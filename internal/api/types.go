package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Photo describes a stored photo in a transport-friendly format.
type Photo struct {
	ID          int64    `json:"id"`
	Filename    string   `json:"filename"`
	StoragePath string   `json:"storage_path"`
	CaptureDate string   `json:"capture_date"`
	Tags        []string `json:"tags"`
	State       string   `json:"state"`
	Attempts    int      `json:"attempts"`
	LastError   string   `json:"last_error,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
	TaggedAt    string   `json:"tagged_at,omitempty"`
}

// QueueEntry describes a queue row.
type QueueEntry struct {
	PhotoID     int64  `json:"photo_id"`
	Filename    string `json:"filename"`
	State       string `json:"state"`
	Attempts    int    `json:"attempts"`
	LeaseOwner  string `json:"lease_owner,omitempty"`
	LeaseExpiry string `json:"lease_expiry,omitempty"`
	EnqueuedAt  string `json:"enqueued_at"`
	ClaimCount  int    `json:"claim_count"`
	RetryAt     string `json:"retry_at,omitempty"`
}

// QueueStats provides a normalized queue stats payload.
type QueueStats struct {
	Counts        map[string]int `json:"counts"`
	QueueDepth    int            `json:"queue_depth"`
	Leased        int            `json:"leased"`
	ExpiredLeases int            `json:"expired_leases"`
	BackingOff    int            `json:"backing_off"`
	OldestEntry   string         `json:"oldest_entry,omitempty"`
}

// DetectorHealth mirrors detector readiness reporting.
type DetectorHealth struct {
	Provider string `json:"provider"`
	Endpoint string `json:"endpoint,omitempty"`
	Ready    bool   `json:"ready"`
	Detail   string `json:"detail,omitempty"`
}

// WorkflowStatus summarizes worker pool state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	Workers     []string       `json:"workers"`
	Processed   int64          `json:"processed"`
	Failed      int64          `json:"failed"`
	LastError   string         `json:"last_error,omitempty"`
	LastPhotoID int64          `json:"last_photo_id,omitempty"`
	Queue       QueueStats     `json:"queue"`
	Detector    DetectorHealth `json:"detector"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	Store        string         `json:"store"`
	LockFilePath string         `json:"lock_file_path"`
	Workflow     WorkflowStatus `json:"workflow"`
}

// UploadResponse is returned with 201 after a successful upload.
type UploadResponse struct {
	Message   string `json:"message"`
	Filename  string `json:"filename"`
	DateTaken string `json:"date_taken"`
	ID        int64  `json:"id"`
}

// MessageResponse carries a plain status message.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse carries a client-facing error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PhotoListResponse wraps a collection of photos.
type PhotoListResponse struct {
	Photos []Photo `json:"photos"`
}

// QueueListResponse wraps a collection of queue entries.
type QueueListResponse struct {
	Entries []QueueEntry `json:"entries"`
}
