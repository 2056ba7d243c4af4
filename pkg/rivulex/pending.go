package rivulex

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// pendingConsumer scans each stream's pending-entries list for records
// idle longer than the ack timeout, claims them for this instance and
// re-dispatches them. Claiming transfers ownership but preserves the
// log's delivery counter, so redispatched events surface an increasing
// attempt.
type pendingConsumer struct {
	client     *redis.Client
	group      string
	consumer   string
	streams    []string
	registry   *Registry
	proc       *processor
	ackTimeout time.Duration
	batchSize  int64
	backoff    *IdleBackoff
	logger     *slog.Logger
}

func newPendingConsumer(client *redis.Client, cfg Config, consumer string, registry *Registry, proc *processor, logger *slog.Logger) *pendingConsumer {
	ackTimeout := time.Duration(cfg.Consumer.AckTimeoutMs) * time.Millisecond
	return &pendingConsumer{
		client:     client,
		group:      cfg.Group,
		consumer:   consumer,
		streams:    cfg.Streams,
		registry:   registry,
		proc:       proc,
		ackTimeout: ackTimeout,
		batchSize:  cfg.Consumer.FetchBatchSize,
		backoff:    NewIdleBackoff(time.Second, ackTimeout),
		logger:     logger,
	}
}

// run loops until ctx is cancelled. Cycles that claim nothing grow the
// idle pause; any claim snaps it back, keeping scan cost bounded on
// idle streams while remaining reactive under load.
func (c *pendingConsumer) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		var claimed atomic.Int64
		// A plain group keeps the loop context for handlers: a timed-out
		// handler's late ack must not see a context cancelled by Wait.
		var g errgroup.Group
		for _, stream := range c.streams {
			stream := stream
			g.Go(func() error {
				n, err := c.claimCycle(ctx, stream)
				if err != nil {
					c.logger.Error("pending cycle error", "stream", stream, "error", err)
					return nil
				}
				claimed.Add(int64(n))
				return nil
			})
		}
		_ = g.Wait()

		if claimed.Load() == 0 {
			c.backoff.Increase()
		} else {
			c.backoff.Reset()
		}
		if err := c.backoff.Wait(ctx); err != nil {
			return
		}
	}
}

// claimCycle performs one scan+claim+dispatch pass for a stream and
// returns the number of records claimed.
func (c *pendingConsumer) claimCycle(ctx context.Context, stream string) (int, error) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  c.group,
		Idle:   c.ackTimeout,
		Start:  "-",
		End:    "+",
		Count:  c.batchSize,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(pending))
	attempts := make(map[string]int64, len(pending))
	for _, entry := range pending {
		ids = append(ids, entry.ID)
		attempts[entry.ID] = entry.RetryCount
	}

	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  c.ackTimeout,
		Messages: ids,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}

	events := make([]*Event, 0, len(claimed))
	for _, msg := range claimed {
		if len(msg.Values) == 0 {
			// Trimmed while pending: nothing left to process, ack it
			// out of the PEL.
			c.ackTrimmed(ctx, stream, msg.ID)
			continue
		}
		ev, err := decodeEvent(stream, msg.ID, msg.Values)
		if err != nil {
			c.logger.Error("skipping undecodable record", "stream", stream, "id", msg.ID, "error", err)
			continue
		}
		// The claim response omits the delivery count; inject the one
		// the scan observed.
		ev.Attempt = attempts[msg.ID]
		events = append(events, ev)
	}

	if len(events) > 0 {
		c.proc.process(ctx, stream, events, c.registry.Handlers(stream))
	}

	return len(claimed), nil
}

func (c *pendingConsumer) ackTrimmed(ctx context.Context, stream, id string) {
	if err := c.client.XAck(ctx, stream, c.group, id).Err(); err != nil {
		c.logger.Error("trimmed record ack failed", "stream", stream, "id", id, "error", err)
		return
	}
	c.logger.Warn("trimmed record cleared from pending list", "stream", stream, "id", id)
}
