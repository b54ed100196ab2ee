package calendar

import (
	"context"
	"time"
)

// ProviderTag identifies a calendar provider.
type ProviderTag string

const (
	ProviderGoogle    ProviderTag = "google"
	ProviderMicrosoft ProviderTag = "microsoft"
)

// Valid reports whether the tag names a known provider.
func (t ProviderTag) Valid() bool {
	return t == ProviderGoogle || t == ProviderMicrosoft
}

// EventStatus is the normalized event status.
type EventStatus string

const (
	StatusConfirmed EventStatus = "confirmed"
	StatusTentative EventStatus = "tentative"
	StatusCancelled EventStatus = "cancelled"
)

// Event is the provider-agnostic calendar event. Events are immutable within
// a pipeline run; the pipeline only reads them.
type Event struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description,omitempty"`
	StartTime       time.Time   `json:"startTime"` // UTC, EndTime > StartTime
	EndTime         time.Time   `json:"endTime"`
	Location        string      `json:"location,omitempty"`
	Attendees       []string    `json:"attendees,omitempty"`
	Status          EventStatus `json:"status"`
	Provider        ProviderTag `json:"provider"`
	ProviderEventID string      `json:"providerEventId"`
	UserID          string      `json:"userId"`
	AllDay          bool        `json:"isAllDay"`
}

// Window bounds an event query in time.
type Window struct {
	Start time.Time
	End   time.Time
}

// ListOptions is upstream pagination, passed through to the provider.
type ListOptions struct {
	Limit  int
	Offset int
}

// Sync status tags.
const (
	SyncActive    = "active"
	SyncError     = "error"
	SyncNotSynced = "not_synced"
)

// SyncStatus tracks the last successful sync per user and provider. It
// decides incremental vs. full resynchronization.
type SyncStatus struct {
	LastSync time.Time `json:"last_sync"`
	Status   string    `json:"status"`
}

// SyncResult is the outcome reported to the sync caller.
type SyncResult struct {
	EventsSynced int       `json:"events_synced"`
	SyncTime     time.Time `json:"sync_time"`
	Status       string    `json:"status"`
}

// TokenSource supplies a bearer token for a user. Token issuance, refresh,
// and validation live outside this module.
type TokenSource interface {
	Token(ctx context.Context, userID string) (string, error)
}

// Provider abstracts one upstream calendar source.
type Provider interface {
	Tag() ProviderTag
	ListEvents(ctx context.Context, userID string, window Window, opts ListOptions) ([]Event, error)
}
