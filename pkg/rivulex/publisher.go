package rivulex

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher appends events to streams.
type Publisher struct {
	client        *redis.Client
	group         string
	defaultStream string
	hooks         *Hooks
	logger        *slog.Logger
}

// NewPublisher creates a Publisher. The configuration must carry a
// group and a default stream.
func NewPublisher(client *redis.Client, cfg Config) (*Publisher, error) {
	if client == nil {
		return nil, ErrMissingClient
	}
	if cfg.Group == "" {
		return nil, ErrMissingGroup
	}
	if cfg.DefaultStream == "" {
		return nil, ErrMissingDefaultStream
	}
	cfg = cfg.WithDefaults()

	return &Publisher{
		client:        client,
		group:         cfg.Group,
		defaultStream: cfg.DefaultStream,
		hooks:         NewHooks(slog.Default()),
		logger:        slog.Default(),
	}, nil
}

// Hooks returns the publisher's hook bus. Listeners for HookPublished
// and HookFailed registered before publishing observe all subsequent
// events.
func (p *Publisher) Hooks() *Hooks {
	return p.hooks
}

// Publish appends an event to the default stream and returns the
// assigned entry ID.
func (p *Publisher) Publish(ctx context.Context, action string, payload any, headers Headers) (string, error) {
	return p.PublishTo(ctx, p.defaultStream, action, payload, headers)
}

// PublishTo appends an event to the given stream and returns the
// assigned entry ID. The headers are augmented with the creation
// timestamp and the publisher's group.
func (p *Publisher) PublishTo(ctx context.Context, stream, action string, payload any, headers Headers) (string, error) {
	fields, finalHeaders, err := encodeFields(action, payload, headers, p.group, time.Now())
	if err != nil {
		ev := &Event{Stream: stream, Action: action, Headers: headers}
		p.hooks.emit(HookFailed, HookEvent{Event: ev, Err: err})
		return "", fmt.Errorf("encode event: %w", err)
	}

	ev := &Event{
		Stream:  stream,
		Action:  action,
		Headers: finalHeaders,
		Payload: payloadField(fields),
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: fields,
	}).Result()
	if err != nil {
		p.hooks.emit(HookFailed, HookEvent{Event: ev, Err: err})
		return "", fmt.Errorf("xadd failed: %w", err)
	}

	ev.ID = id
	p.hooks.emit(HookPublished, HookEvent{ID: id, Event: ev})
	p.logger.Debug("event published", "stream", stream, "id", id, "action", action)
	return id, nil
}

// BatchEntry is one event of a batched publish. Stream overrides the
// default stream when set.
type BatchEntry struct {
	Stream  string
	Action  string
	Payload any
	Headers Headers
}

// BatchResult reports the outcome for one batch entry.
type BatchResult struct {
	OK  bool
	ID  string
	Err error
}

// PublishBatch appends the entries in one pipelined batch and returns a
// per-entry result in input order. When the pipeline fails wholesale
// (connection loss) every entry reports failed and the error is
// returned; entries that fail individually within an otherwise
// successful pipeline report failed without an overall error.
func (p *Publisher) PublishBatch(ctx context.Context, entries []BatchEntry) ([]BatchResult, error) {
	results := make([]BatchResult, len(entries))
	if len(entries) == 0 {
		return results, nil
	}

	now := time.Now()
	events := make([]*Event, len(entries))
	cmds := make([]*redis.StringCmd, len(entries))

	pipe := p.client.Pipeline()
	for i, entry := range entries {
		stream := entry.Stream
		if stream == "" {
			stream = p.defaultStream
		}

		fields, finalHeaders, err := encodeFields(entry.Action, entry.Payload, entry.Headers, p.group, now)
		if err != nil {
			ev := &Event{Stream: stream, Action: entry.Action, Headers: entry.Headers}
			results[i] = BatchResult{Err: err}
			p.hooks.emit(HookFailed, HookEvent{Event: ev, Err: err})
			continue
		}

		events[i] = &Event{
			Stream:  stream,
			Action:  entry.Action,
			Headers: finalHeaders,
			Payload: payloadField(fields),
		}
		cmds[i] = pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			ID:     "*",
			Values: fields,
		})
	}

	_, execErr := pipe.Exec(ctx)

	succeeded := 0
	for i, cmd := range cmds {
		if cmd == nil {
			continue // encode failure, already reported
		}
		id, err := cmd.Result()
		if err != nil {
			results[i] = BatchResult{Err: err}
			p.hooks.emit(HookFailed, HookEvent{Event: events[i], Err: err})
			continue
		}
		events[i].ID = id
		results[i] = BatchResult{OK: true, ID: id}
		p.hooks.emit(HookPublished, HookEvent{ID: id, Event: events[i]})
		succeeded++
	}

	if execErr != nil && succeeded == 0 {
		return results, fmt.Errorf("pipeline failed: %w", execErr)
	}
	return results, nil
}

// payloadField pulls the serialised payload back out of the encoded
// field list for hook consumers.
func payloadField(fields []any) []byte {
	for i := 0; i+1 < len(fields); i += 2 {
		if fields[i] == fieldPayload {
			s, _ := fields[i+1].(string)
			return []byte(s)
		}
	}
	return nil
}
