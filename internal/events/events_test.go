package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFanout_Emit(t *testing.T) {
	var got []Event
	ok := PublisherFunc(func(_ context.Context, ev Event) error {
		got = append(got, ev)
		return nil
	})
	failing := PublisherFunc(func(context.Context, Event) error { return errors.New("broker down") })

	var failures []int
	f := NewFanout(func(sink int, _ Event, _ error) { failures = append(failures, sink) }, failing, nil, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.Emit(ctx, Event{Type: PermissionSet, UserID: "usr-1"})

	if len(got) != 1 {
		t.Fatalf("delivered %d events, want 1", len(got))
	}
	if got[0].At.IsZero() {
		t.Error("Emit() should stamp At")
	}
	if len(failures) != 1 || failures[0] != 0 {
		t.Errorf("failures = %v, want [0]", failures)
	}
}

func TestFanout_KeepsExplicitTimestamp(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var seen time.Time
	f := NewFanout(nil)
	f.Add(PublisherFunc(func(_ context.Context, ev Event) error {
		seen = ev.At
		return nil
	}))
	f.Emit(context.Background(), Event{Type: UserDeleted, At: at})
	if !seen.Equal(at) {
		t.Errorf("At = %v, want %v", seen, at)
	}

	var nilFanout *Fanout
	nilFanout.Emit(context.Background(), Event{Type: UserDeleted})
}
