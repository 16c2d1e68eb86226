package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/appaccess/internal/events"
)

// Auth event kinds and outcomes.
const (
	KindLogin    = "login"
	KindRefresh  = "refresh"
	KindRegister = "register"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuthEvent is one authentication attempt. Reason is a short machine label
// such as "invalid_credentials" or "token_reuse"; it must stay low-cardinality.
type AuthEvent struct {
	Kind    string
	Outcome string
	Reason  string
	At      time.Time
}

// WriteAuthEvent queues an auth_events point.
func (c *Client) WriteAuthEvent(ev AuthEvent) {
	if !c.IsConnected() {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	tags := map[string]string{"kind": ev.Kind, "outcome": ev.Outcome}
	if ev.Reason != "" {
		tags["reason"] = ev.Reason
	}
	c.writeAPI.WritePoint(write.NewPoint("auth_events", tags, map[string]any{"count": 1}, ev.At))
}

// PublishEvent implements events.Publisher by queuing an access_changes point.
func (c *Client) PublishEvent(_ context.Context, ev events.Event) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	fields := map[string]any{"count": 1}
	if ev.Removed > 0 {
		fields["removed"] = ev.Removed
	}
	c.writeAPI.WritePoint(write.NewPoint("access_changes",
		map[string]string{"type": string(ev.Type)}, fields, ev.At))
	return nil
}
