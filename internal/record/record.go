// Package record defines the shared data model for the clipboard pipeline:
// clipboard samples, short-link records, and the append-only activity log.
package record

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// LinkStatus tracks the lifecycle of a short link through resolution.
type LinkStatus string

const (
	StatusPending  LinkStatus = "pending"
	StatusResolved LinkStatus = "resolved"
	StatusFailed   LinkStatus = "failed"
)

// Clip is a single observed clipboard sample.
type Clip struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	ObservedAt time.Time `json:"observed_at"`
}

// Link is a short link extracted from clipboard content. It is created in
// pending state and mutated in place when resolution completes or fails.
// No two Links in an active history share the same Link value.
type Link struct {
	ID              string     `json:"id"`
	Link            string     `json:"link"`
	OriginalContent string     `json:"original_content"`
	ObservedAt      time.Time  `json:"observed_at"`
	Status          LinkStatus `json:"status"`
	MediaURL        string     `json:"media_url,omitempty"`
	Title           string     `json:"title,omitempty"`
	Author          string     `json:"author,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Kind classifies a log entry.
type Kind string

const (
	KindResolved   Kind = "resolved"
	KindFailed     Kind = "failed"
	KindDownloaded Kind = "downloaded"
	KindWebhook    Kind = "webhook"
)

// WebhookOutcome is the terminal result of one webhook execution,
// attached to a webhook-kind log entry.
type WebhookOutcome struct {
	WebhookID   string `json:"webhook_id"`
	WebhookName string `json:"webhook_name"`
	Trigger     string `json:"trigger"`
	Status      string `json:"status"` // "success" or "failure"
	DurationMS  int64  `json:"duration_ms"`
	Attempt     int    `json:"attempt"`
	Error       string `json:"error,omitempty"`
}

// LogEntry is one line of the activity log. Entries are front-inserted and
// trimmed from the tail; they are never mutated after creation.
type LogEntry struct {
	ID           string          `json:"id"`
	Kind         Kind            `json:"kind"`
	OccurredAt   time.Time       `json:"occurred_at"`
	OriginalText string          `json:"original_text,omitempty"`
	SourceLink   string          `json:"source_link,omitempty"`
	MediaURL     string          `json:"media_url,omitempty"`
	Error        string          `json:"error,omitempty"`
	DownloadPath string          `json:"download_path,omitempty"`
	Webhook      *WebhookOutcome `json:"webhook,omitempty"`
}

// Sink receives log entries from the pipeline stages. Implementations must
// be safe for concurrent use.
type Sink interface {
	Append(LogEntry)
}

// NewID returns a monotonic ULID string for records and log entries.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		// ulid.New only fails if the entropy source does; fall back to
		// a timestamp-only id rather than propagating.
		return ulid.MustNew(ulid.Timestamp(time.Now()), nil).String()
	}
	return id.String()
}
