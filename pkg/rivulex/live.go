package rivulex

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// liveConsumer runs the blocking group-read loop over the configured
// streams and hands decoded batches to the processor. It only ever
// reads new entries; records delivered here carry attempt 0.
type liveConsumer struct {
	client    *redis.Client
	group     string
	consumer  string
	streams   []string
	registry  *Registry
	proc      *processor
	batchSize int64
	blockTime time.Duration
	logger    *slog.Logger
}

func newLiveConsumer(client *redis.Client, cfg Config, consumer string, registry *Registry, proc *processor, logger *slog.Logger) *liveConsumer {
	return &liveConsumer{
		client:    client,
		group:     cfg.Group,
		consumer:  consumer,
		streams:   cfg.Streams,
		registry:  registry,
		proc:      proc,
		batchSize: cfg.Consumer.FetchBatchSize,
		blockTime: time.Duration(cfg.Consumer.BlockTimeMs) * time.Millisecond,
		logger:    logger,
	}
}

// run loops until ctx is cancelled. Cancellation is observed between
// reads; an in-flight blocking read is not interrupted by it and returns
// once its BLOCK time elapses. The server's BLOCK provides the pacing,
// so errored reads retry immediately after logging.
func (c *liveConsumer) run(ctx context.Context) {
	// XREADGROUP wants streams followed by one ">" cursor per stream.
	streamArgs := make([]string, 0, 2*len(c.streams))
	streamArgs = append(streamArgs, c.streams...)
	for range c.streams {
		streamArgs = append(streamArgs, ">")
	}

	for {
		if ctx.Err() != nil {
			return
		}

		result, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  streamArgs,
			Count:    c.batchSize,
			Block:    c.blockTime,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Block elapsed with nothing new.
				continue
			}
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("live read error", "error", err)
			continue
		}

		// A plain group keeps the loop context for handlers: a timed-out
		// handler's late ack must not see a context cancelled by Wait.
		var g errgroup.Group
		for _, xs := range result {
			xs := xs
			g.Go(func() error {
				events := decodeBatch(xs.Stream, xs.Messages, c.logger)
				if len(events) > 0 {
					c.proc.process(ctx, xs.Stream, events, c.registry.Handlers(xs.Stream))
				}
				return nil
			})
		}
		_ = g.Wait()
	}
}

// decodeBatch decodes records, skipping (without ack) those that fail
// to parse so the pending path re-surfaces them for investigation.
func decodeBatch(stream string, msgs []redis.XMessage, logger *slog.Logger) []*Event {
	events := make([]*Event, 0, len(msgs))
	for _, msg := range msgs {
		ev, err := decodeEvent(stream, msg.ID, msg.Values)
		if err != nil {
			logger.Error("skipping undecodable record", "stream", stream, "id", msg.ID, "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events
}
