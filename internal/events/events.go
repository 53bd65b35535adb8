// Package events carries refresh notifications from the refresher to every
// dashboard instance, either in-process or through Redis PubSub.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Type names an event.
type Type string

const (
	TypeRefresh       Type = "refresh"
	TypeRefreshFailed Type = "refresh_failed"
)

// Channel is the Redis PubSub channel events travel on.
const Channel = "dashboard:events"

// Event announces the outcome of a refresh cycle. Seq is the refresher's
// cycle counter; the websocket hub stamps its own delivery sequence.
type Event struct {
	Type     Type      `json:"type"`
	Seq      int64     `json:"seq"`
	TS       time.Time `json:"ts"`
	Deals    int       `json:"deals"`
	Products int       `json:"products"`
	Error    string    `json:"error,omitempty"`
	Source   string    `json:"source,omitempty"`
}

// JSON encodes the event. Event has no unmarshalable fields.
func (e Event) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Decode parses a JSON-encoded event.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	if e.Type == "" {
		return Event{}, errors.New("events: missing type")
	}
	return e, nil
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, Event) error { return nil })
