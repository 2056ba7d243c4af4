package rivulex

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"
)

// processor dispatches batches of events to handlers with bounded
// concurrency and a per-event processing timeout, driving each event to
// a terminal state for the cycle: confirmed, skipped, rejected, failed
// or timed out. Failed and timed-out events stay in the group's pending
// list for the pending consumer to reclaim.
type processor struct {
	client         redis.Cmdable
	group          string
	deadLetter     string
	retries        int64
	processTimeout time.Duration
	sem            *semaphore.Weighted
	retrier        *Retrier
	hooks          *Hooks
	logger         *slog.Logger
}

func newProcessor(client redis.Cmdable, cfg Config, hooks *Hooks, logger *slog.Logger) *processor {
	return &processor{
		client:         client,
		group:          cfg.Group,
		deadLetter:     cfg.DeadLetterStream,
		retries:        cfg.Consumer.Retries,
		processTimeout: time.Duration(cfg.Consumer.ProcessTimeoutMs) * time.Millisecond,
		sem:            semaphore.NewWeighted(int64(cfg.Consumer.ProcessConcurrency)),
		retrier:        NewRetrier(defaultRetrierAttempts, defaultRetrierDelay),
		hooks:          hooks,
		logger:         logger,
	}
}

// process dispatches every event in the batch and returns once all of
// them have reached a terminal state or their timeout elapsed. It never
// surfaces an error to its caller.
func (p *processor) process(ctx context.Context, stream string, events []*Event, handlers map[string]Handler) {
	var wg sync.WaitGroup
	for _, ev := range events {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			// Cancelled mid-batch: the remaining events stay pending
			// and will be reclaimed.
			break
		}
		wg.Add(1)
		go func(ev *Event) {
			defer wg.Done()
			defer p.sem.Release(1)
			p.processOne(ctx, stream, ev, handlers)
		}(ev)
	}
	wg.Wait()
}

func (p *processor) processOne(ctx context.Context, stream string, ev *Event, handlers map[string]Handler) {
	// Another group's reject: ack without dispatch so dead-letter
	// consumers do not reprocess rejects that are not theirs.
	if ev.Headers.Rejected() && ev.Headers.RejectedGroup() != p.group {
		p.ackSkip(ctx, stream, ev, "foreign reject")
		return
	}

	handler, ok := handlers[ev.Action]
	if !ok {
		// Unknown action: ack to keep the stream moving.
		p.ackSkip(ctx, stream, ev, "no handler")
		return
	}

	if ev.Attempt >= p.retries {
		p.reject(ctx, stream, ev)
		return
	}

	p.dispatch(ctx, stream, ev, handler)
}

func (p *processor) dispatch(ctx context.Context, stream string, ev *Event, handler Handler) {
	ev.bindAck(&ackHandle{
		client:  p.client,
		stream:  stream,
		group:   p.group,
		id:      ev.ID,
		retrier: p.retrier,
		hooks:   p.hooks,
		logger:  p.logger,
	})

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("handler panic: %v", r)
			}
		}()
		done <- handler(ctx, ev)
	}()

	timer := time.NewTimer(p.processTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			p.hooks.emit(HookFailed, HookEvent{ID: ev.ID, Event: ev, Err: err})
			p.logger.Error("handler failed",
				"stream", stream, "id", ev.ID, "action", ev.Action,
				"attempt", ev.Attempt, "error", err)
			// Reject iff the post-failure count would reach the budget;
			// otherwise the record stays pending for reclaim.
			if ev.Attempt+1 >= p.retries {
				p.reject(ctx, stream, ev)
			}
			return
		}
		if !ev.acked() {
			// Handler forgot to ack: the record stays pending and
			// re-enters circulation after the ack timeout.
			p.logger.Warn("handler returned without ack",
				"stream", stream, "id", ev.ID, "action", ev.Action)
		}

	case <-timer.C:
		// The handler is not cancelled; its late ack still confirms
		// the event if it lands before the record is reclaimed.
		p.hooks.emit(HookTimeout, HookEvent{ID: ev.ID, Event: ev})
		p.logger.Warn("handler timed out",
			"stream", stream, "id", ev.ID, "action", ev.Action,
			"timeout", p.processTimeout)

	case <-ctx.Done():
	}
}

// ackSkip acknowledges an event without invoking any handler.
func (p *processor) ackSkip(ctx context.Context, stream string, ev *Event, reason string) {
	err := p.retrier.Do(ctx, func() error {
		return p.client.XAck(ctx, stream, p.group, ev.ID).Err()
	})
	if err != nil {
		p.logger.Error("skip ack failed",
			"stream", stream, "id", ev.ID, "reason", reason, "error", err)
		return
	}
	p.logger.Debug("event skipped", "stream", stream, "id", ev.ID, "reason", reason)
}

// reject appends the event to the dead-letter stream and acknowledges
// it in the source stream in one atomic batch. On ultimate failure the
// record is abandoned to be reclaimed and attempted again.
func (p *processor) reject(ctx context.Context, stream string, ev *Event) {
	headers := ev.Headers.clone()
	headers[HeaderRejected] = true
	headers[HeaderRejectedGroup] = p.group
	headers[HeaderRejectedTimestamp] = time.Now().UTC().Format(time.RFC3339)

	fields, err := encodedEventFields(ev, headers)
	if err != nil {
		p.logger.Error("reject encode failed", "stream", stream, "id", ev.ID, "error", err)
		return
	}

	err = p.retrier.Do(ctx, func() error {
		_, execErr := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: p.deadLetter,
				ID:     "*",
				Values: fields,
			})
			pipe.XAck(ctx, stream, p.group, ev.ID)
			return nil
		})
		return execErr
	})
	if err != nil {
		p.logger.Error("rejection failed, leaving event for reclaim",
			"stream", stream, "id", ev.ID, "error", err)
		return
	}

	p.hooks.emit(HookRejected, HookEvent{ID: ev.ID, Event: ev})
	p.logger.Warn("event rejected to dead-letter",
		"stream", stream, "id", ev.ID, "action", ev.Action, "attempt", ev.Attempt)
}
