package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is a notification-worthy transition of an Issue.
type Event struct {
	ID         string    `json:"id"`
	EventType  EventType `json:"event_type"`
	Kind       Kind      `json:"kind"`
	Key        string    `json:"key"`
	Detail     string    `json:"detail,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
	EmittedAt  time.Time `json:"emitted_at"`
}

type EventType string

const (
	EventTypeIssueOpened   EventType = "issue_opened"
	EventTypeIssueResolved EventType = "issue_resolved"
	EventTypeTest          EventType = "test"
)

// NewEvent builds an event for the given issue.
func NewEvent(t EventType, issue *Issue, now time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		EventType:  t,
		Kind:       issue.Kind,
		Key:        issue.Key,
		Detail:     issue.Detail,
		DetectedAt: issue.FirstDetectedAt,
		EmittedAt:  now,
	}
}

// NewTestEvent builds the event sent by the test-notifications command.
func NewTestEvent(now time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		EventType:  EventTypeTest,
		Detail:     "This is a test notification sent from vitality",
		DetectedAt: now,
		EmittedAt:  now,
	}
}

// Subject is the one-line summary used as mail subject and message header.
func (e Event) Subject() string {
	switch e.EventType {
	case EventTypeTest:
		return "Test Notification"
	case EventTypeIssueResolved:
		return fmt.Sprintf("Resolved: %s %s", e.Kind.Title(), e.Key)
	default:
		return fmt.Sprintf("%s %s", e.Kind.Title(), e.Key)
	}
}

// Body is the message text below the subject.
func (e Event) Body() string {
	switch e.EventType {
	case EventTypeTest:
		return e.Detail
	case EventTypeIssueResolved:
		return fmt.Sprintf("No longer detected. First seen at %s (open for %s).",
			e.DetectedAt.UTC().Format(time.RFC3339), e.EmittedAt.Sub(e.DetectedAt).Round(time.Second))
	default:
		if e.Detail == "" {
			return fmt.Sprintf("Detected at %s.", e.DetectedAt.UTC().Format(time.RFC3339))
		}
		return e.Detail
	}
}

// DeliveryResult is the outcome of sending one event through one provider.
type DeliveryResult struct {
	Provider string
	Err      error
	Feed     bool // machine feed such as redis, not seen by the operator
}

// Delivered reports whether the event reached the operator through at
// least one provider. Feed results are ignored. When no operator facing
// provider exists the event counts as delivered: there is nobody to retry
// for.
func Delivered(results []DeliveryResult) bool {
	operator := 0
	for _, r := range results {
		if r.Feed {
			continue
		}
		operator++
		if r.Err == nil {
			return true
		}
	}
	return operator == 0
}
