package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"agent-trust-lab/internal/domain"
	"agent-trust-lab/internal/storage"
)

func event(id string, at time.Time) *domain.ActivityEvent {
	return &domain.ActivityEvent{
		ID:         id,
		Type:       domain.ActivityScan,
		Identifier: "alice",
		Label:      "scored",
		Timestamp:  at,
	}
}

func TestActivityStore_RecentNewestFirst(t *testing.T) {
	s := NewActivityStore()
	ctx := context.Background()

	for _, e := range []*domain.ActivityEvent{
		event("e1", baseTime),
		event("e3", baseTime.Add(2*time.Hour)),
		event("e2", baseTime.Add(time.Hour)),
	} {
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("append %s: %v", e.ID, err)
		}
	}

	events, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 2 || events[0].ID != "e3" || events[1].ID != "e2" {
		t.Errorf("unexpected order: %v", eventIDs(events))
	}
}

func TestActivityStore_DuplicateIDRejected(t *testing.T) {
	s := NewActivityStore()
	ctx := context.Background()

	if err := s.Append(ctx, event("e1", baseTime)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, event("e1", baseTime.Add(time.Hour))); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestActivityStore_RejectsInvalidEvents(t *testing.T) {
	s := NewActivityStore()
	ctx := context.Background()

	cases := []*domain.ActivityEvent{
		nil,
		{Type: domain.ActivityScan}, // missing ID
		{ID: "e1", Type: domain.ActivityType("??")}, // unknown type
	}
	for _, e := range cases {
		if err := s.Append(ctx, e); !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("Append(%+v) = %v, want ErrInvalidInput", e, err)
		}
	}
}

func eventIDs(events []*domain.ActivityEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}
