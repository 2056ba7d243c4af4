package rivulex

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// Handler processes a delivered event. Call ev.Ack to confirm it;
// returning an error marks the delivery as failed.
type Handler func(ctx context.Context, ev *Event) error

// Reserved header keys. User-defined keys are preserved alongside them.
const (
	HeaderTimestamp         = "timestamp"
	HeaderGroup             = "group"
	HeaderRejected          = "rejected"
	HeaderRejectedGroup     = "rejectedGroup"
	HeaderRejectedTimestamp = "rejectedTimestamp"
)

// Headers is the JSON header object attached to every event.
type Headers map[string]any

// Timestamp returns the RFC-3339 creation time set by the publisher.
func (h Headers) Timestamp() string { return h.str(HeaderTimestamp) }

// Group returns the publisher's group label.
func (h Headers) Group() string { return h.str(HeaderGroup) }

// Rejected reports whether a rejecter has marked this event.
func (h Headers) Rejected() bool {
	v, ok := h[HeaderRejected]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// RejectedGroup returns the group that rejected this event.
func (h Headers) RejectedGroup() string { return h.str(HeaderRejectedGroup) }

// RejectedTimestamp returns the RFC-3339 rejection time.
func (h Headers) RejectedTimestamp() string { return h.str(HeaderRejectedTimestamp) }

func (h Headers) str(key string) string {
	v, ok := h[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (h Headers) clone() Headers {
	out := make(Headers, len(h)+3)
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Event is a decoded stream record in flight within a consumer group.
type Event struct {
	ID      string
	Stream  string
	Action  string
	Attempt int64
	Headers Headers
	Payload json.RawMessage

	ack *ackHandle
}

// Ack acknowledges the event in its source stream, removing it from the
// group's pending list. The first call performs the acknowledgement;
// repeat calls are no-ops. Safe to call after the processing timeout has
// elapsed -- a late acknowledgement still confirms the event as long as
// it lands before the record is reclaimed.
func (e *Event) Ack(ctx context.Context) error {
	if e.ack == nil {
		return errors.New("rivulex: event carries no ack binding")
	}
	return e.ack.do(ctx, e)
}

func (e *Event) acked() bool {
	return e.ack != nil && e.ack.confirmed.Load()
}

func (e *Event) bindAck(a *ackHandle) {
	e.ack = a
}

// ackHandle is a one-shot acknowledgement capability bound to
// (stream, group, id).
type ackHandle struct {
	client  redis.Cmdable
	stream  string
	group   string
	id      string
	retrier *Retrier
	hooks   *Hooks
	logger  *slog.Logger

	called    atomic.Bool
	confirmed atomic.Bool
}

func (a *ackHandle) do(ctx context.Context, ev *Event) error {
	if !a.called.CompareAndSwap(false, true) {
		// Redis treats an ack for an already-acked ID as a no-op, and
		// so do we.
		return nil
	}

	err := a.retrier.Do(ctx, func() error {
		return a.client.XAck(ctx, a.stream, a.group, a.id).Err()
	})
	if err != nil {
		a.logger.Error("event confirmation failed",
			"stream", a.stream, "group", a.group, "id", a.id, "error", err)
		return err
	}

	a.confirmed.Store(true)
	a.hooks.emit(HookConfirmed, HookEvent{ID: a.id, Event: ev})
	return nil
}
