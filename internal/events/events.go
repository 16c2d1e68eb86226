// Package events defines the access-change notifications the server fans out
// to MQTT and WebSocket subscribers after a successful mutation.
package events

import (
	"context"
	"time"
)

// Type names an access change.
type Type string

// Event types.
const (
	PermissionSet      Type = "permission.set"
	PermissionRemoved  Type = "permission.removed"
	UserDeleted        Type = "user.deleted"
	ApplicationDeleted Type = "application.deleted"
	UserCreated        Type = "user.created"
	ApplicationCreated Type = "application.created"
)

// Event is one access change. Fields that do not apply to Type are empty.
type Event struct {
	Type           Type      `json:"type"`
	UserID         string    `json:"userId,omitempty"`
	ApplicationID  string    `json:"applicationId,omitempty"`
	PermissionType string    `json:"permissionType,omitempty"`
	Removed        int       `json:"removed,omitempty"` // grants removed by a cascade
	ActorID        string    `json:"actorId,omitempty"`
	At             time.Time `json:"at"`
}

// Publisher delivers events to one sink.
type Publisher interface {
	PublishEvent(ctx context.Context, ev Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev Event) error

// PublishEvent calls f.
func (f PublisherFunc) PublishEvent(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Fanout sends each event to every sink. Sink failures are reported through
// onError and never stop delivery to the remaining sinks.
type Fanout struct {
	sinks   []Publisher
	onError func(sink int, ev Event, err error)
	now     func() time.Time
}

// NewFanout creates a Fanout. onError may be nil.
func NewFanout(onError func(sink int, ev Event, err error), sinks ...Publisher) *Fanout {
	f := &Fanout{onError: onError, now: time.Now}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Add registers another sink.
func (f *Fanout) Add(p Publisher) {
	if p != nil {
		f.sinks = append(f.sinks, p)
	}
}

// Emit stamps ev and publishes it to every sink. A nil Fanout drops the event.
func (f *Fanout) Emit(ctx context.Context, ev Event) {
	if f == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = f.now().UTC()
	}
	ctx = context.WithoutCancel(ctx)
	for i, s := range f.sinks {
		if err := s.PublishEvent(ctx, ev); err != nil && f.onError != nil {
			f.onError(i, ev, err)
		}
	}
}
