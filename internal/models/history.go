package models

import "time"

// StatusHistoryEntry is one row of the append-only status ledger.
type StatusHistoryEntry struct {
	ID         string        `db:"id" json:"id"`
	RequestID  string        `db:"request_id" json:"request_id"`
	FromStatus *string       `db:"from_status" json:"from_status,omitempty"`
	ToStatus   RequestStatus `db:"to_status" json:"to_status"`
	ChangedBy  string        `db:"changed_by" json:"changed_by"`
	Remarks    string        `db:"remarks" json:"remarks"`
	ChangedAt  time.Time     `db:"changed_at" json:"changed_at"`
}

// TimelineEntry renders a ledger row with the actor's display name.
type TimelineEntry struct {
	StatusHistoryEntry
	ChangedByName string `db:"changed_by_name" json:"changed_by_name"`
}
