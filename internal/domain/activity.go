package domain

import (
	"sort"
	"time"
)

// ActivityType classifies an entry in the append-only activity log.
type ActivityType string

const (
	ActivityScan     ActivityType = "SCAN"
	ActivityCreation ActivityType = "CREATION"
	ActivityVote     ActivityType = "VOTE"
)

// IsValid checks if the activity type is a known value.
func (t ActivityType) IsValid() bool {
	return t == ActivityScan || t == ActivityCreation || t == ActivityVote
}

// ActivityEvent is one append-only audit entry. Events are never mutated or
// deleted; presentation merges them across logs by timestamp descending.
type ActivityEvent struct {
	ID         string
	Type       ActivityType
	Identifier string
	Label      string
	Timestamp  time.Time
}

// SortActivityDesc orders events newest first, with ID as a tiebreaker so
// merged feeds are deterministic.
func SortActivityDesc(events []*ActivityEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.After(events[j].Timestamp)
		}
		return events[i].ID < events[j].ID
	})
}
