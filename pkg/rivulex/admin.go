package rivulex

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// PendingInfo summarises a group's pending records on one stream.
type PendingInfo struct {
	Count     int64
	MinID     string
	MaxID     string
	Consumers []ConsumerPending
}

// ConsumerPending holds a per-consumer pending count.
type ConsumerPending struct {
	Name  string
	Count int64
}

// ConsumerDetail describes one consumer within a group.
type ConsumerDetail struct {
	Name    string
	Pending int64
	IdleMs  int64
}

// StreamDetail holds stream metadata.
type StreamDetail struct {
	Length  int64
	Groups  int64
	FirstID string
	LastID  string
}

// Admin provides monitoring operations over streams, groups and the
// dead-letter stream.
type Admin struct {
	client     *redis.Client
	deadLetter string
	logger     *slog.Logger
}

// NewAdmin creates an Admin. The configuration's dead-letter stream is
// used for the dead-letter operations.
func NewAdmin(client *redis.Client, cfg Config) (*Admin, error) {
	if client == nil {
		return nil, ErrMissingClient
	}
	cfg = cfg.WithDefaults()
	return &Admin{
		client:     client,
		deadLetter: cfg.DeadLetterStream,
		logger:     slog.Default(),
	}, nil
}

// PendingStats returns the pending summary for a stream+group.
func (a *Admin) PendingStats(ctx context.Context, stream, group string) (*PendingInfo, error) {
	pending, err := a.client.XPending(ctx, stream, group).Result()
	if err != nil {
		return nil, err
	}

	consumers := make([]ConsumerPending, 0, len(pending.Consumers))
	for name, count := range pending.Consumers {
		consumers = append(consumers, ConsumerPending{Name: name, Count: count})
	}

	return &PendingInfo{
		Count:     pending.Count,
		MinID:     pending.Lower,
		MaxID:     pending.Higher,
		Consumers: consumers,
	}, nil
}

// ConsumerInfo returns details about the consumers in a group.
func (a *Admin) ConsumerInfo(ctx context.Context, stream, group string) ([]ConsumerDetail, error) {
	consumers, err := a.client.XInfoConsumers(ctx, stream, group).Result()
	if err != nil {
		return nil, err
	}

	details := make([]ConsumerDetail, 0, len(consumers))
	for _, c := range consumers {
		details = append(details, ConsumerDetail{
			Name:    c.Name,
			Pending: c.Pending,
			IdleMs:  c.Idle.Milliseconds(),
		})
	}
	return details, nil
}

// StreamInfo returns stream metadata.
func (a *Admin) StreamInfo(ctx context.Context, stream string) (*StreamDetail, error) {
	info, err := a.client.XInfoStream(ctx, stream).Result()
	if err != nil {
		return nil, err
	}

	groups, err := a.client.XInfoGroups(ctx, stream).Result()
	if err != nil {
		// A stream without groups errors here; report zero groups.
		groups = nil
	}

	return &StreamDetail{
		Length:  info.Length,
		Groups:  int64(len(groups)),
		FirstID: info.FirstEntry.ID,
		LastID:  info.LastEntry.ID,
	}, nil
}

// DeadLetterSize returns the number of entries in the dead-letter
// stream.
func (a *Admin) DeadLetterSize(ctx context.Context) (int64, error) {
	return a.client.XLen(ctx, a.deadLetter).Result()
}

// DeadLetterPeek returns up to count decoded events from the head of
// the dead-letter stream, oldest first. Undecodable entries are logged
// and skipped.
func (a *Admin) DeadLetterPeek(ctx context.Context, count int64) ([]*Event, error) {
	entries, err := a.client.XRangeN(ctx, a.deadLetter, "-", "+", count).Result()
	if err != nil {
		return nil, err
	}

	events := make([]*Event, 0, len(entries))
	for _, entry := range entries {
		ev, err := decodeEvent(a.deadLetter, entry.ID, entry.Values)
		if err != nil {
			a.logger.Warn("failed to parse dead-letter entry", "id", entry.ID, "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
