package domain

import "time"

// StopReason explains why a sync run stopped paging.
type StopReason string

const (
	StopKnownInstance StopReason = "known_instance"
	StopMaxPages      StopReason = "max_pages"
	StopExhausted     StopReason = "exhausted"
)

// SyncStats holds statistics about a sync operation.
type SyncStats struct {
	SourceID   string
	Pages      int
	Examined   int
	New        int
	Mirrored   int
	Published  int
	Errors     int
	StopReason StopReason
	Duration   time.Duration
}

// SyncResult is the outcome of one run: the merged snapshot and the rows it added.
type SyncResult struct {
	RunID string
	Items []CollectionItem
	New   []CollectionItem
	Stats SyncStats
}

// SyncState tracks the last run per account in the relational mirror.
type SyncState struct {
	ID             int64     `db:"id"`
	SourceID       string    `db:"source_id"`
	LastSyncedAt   time.Time `db:"last_synced_at"`
	LastInstanceID int64     `db:"last_instance_id"`
	TotalSynced    int64     `db:"total_synced"`
}
