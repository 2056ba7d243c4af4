package rivulex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	trimJitter       = 30 * time.Second
	trimInitialDelay = time.Second
	trimInitialSpan  = 9 * time.Second
)

// trimRecord is stored at the coordination key after a successful trim.
// Its presence tells other instances the stream was trimmed recently.
type trimRecord struct {
	ClientID        string `json:"clientId"`
	TrimmedAt       int64  `json:"trimmedAt"`
	IntervalTime    int64  `json:"intervalTime"`
	RetentionPeriod int64  `json:"retentionPeriod"`
	MinID           string `json:"minId"`
	Group           string `json:"group"`
}

// Trimmer periodically drops entries older than the retention period
// from each configured stream. Coordination across instances is
// advisory: whoever ticks first on a stream trims it and leaves a
// marker with a TTL of one interval; the rest skip.
type Trimmer struct {
	client    *redis.Client
	group     string
	clientID  string
	streams   []string
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	running atomic.Bool
}

// NewTrimmer creates a Trimmer for the configured streams.
func NewTrimmer(client *redis.Client, cfg Config) (*Trimmer, error) {
	if client == nil {
		return nil, ErrMissingClient
	}
	if cfg.Group == "" {
		return nil, ErrMissingGroup
	}
	if len(cfg.Streams) == 0 {
		return nil, ErrMissingStreams
	}
	cfg = cfg.WithDefaults()

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = TrimmerClientID(cfg.Group)
	}

	return &Trimmer{
		client:    client,
		group:     cfg.Group,
		clientID:  clientID,
		streams:   cfg.Streams,
		interval:  time.Duration(cfg.Trimmer.IntervalTimeMs) * time.Millisecond,
		retention: time.Duration(cfg.Trimmer.RetentionPeriodMs) * time.Millisecond,
		logger:    slog.Default(),
	}, nil
}

// Start launches the trim loop. The first tick is delayed by a uniform
// draw in [1 s, 10 s] to stagger cold starts; each subsequent period is
// resampled as interval ± 30 s to avoid phase-locked contention between
// instances.
func (t *Trimmer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running.Load() {
		return
	}
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	t.running.Store(true)

	go func() {
		defer close(t.doneCh)

		timer := time.NewTimer(trimInitialDelay + time.Duration(rand.Int63n(int64(trimInitialSpan))))
		defer timer.Stop()

		for {
			select {
			case <-t.stopCh:
				return
			case <-timer.C:
				t.tick(context.Background())
				timer.Reset(t.nextInterval())
			}
		}
	}()
}

// Stop halts the schedule. An in-flight trim call is allowed to
// complete.
func (t *Trimmer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running.Load() {
		return
	}
	close(t.stopCh)
	<-t.doneCh
	t.running.Store(false)
}

// nextInterval draws the next period: interval plus a uniform jitter in
// [-30 s, +30 s], floored at one second for short test intervals.
func (t *Trimmer) nextInterval() time.Duration {
	jitter := time.Duration(rand.Int63n(int64(2*trimJitter))) - trimJitter
	next := t.interval + jitter
	if next < time.Second {
		next = time.Second
	}
	return next
}

// tick trims every configured stream concurrently. Per-stream failures
// are isolated and not retried; the next tick tries again.
func (t *Trimmer) tick(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for _, stream := range t.streams {
		stream := stream
		g.Go(func() error {
			if err := t.trimStream(gctx, stream); err != nil {
				t.logger.Error("trim failed", "stream", stream, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// trimStream enforces retention on one stream unless another instance
// trimmed it within the current interval.
func (t *Trimmer) trimStream(ctx context.Context, stream string) error {
	key := TrimmerKey(stream)

	_, err := t.client.Get(ctx, key).Result()
	if err == nil {
		// Recently trimmed by some instance; skip this window.
		t.logger.Debug("trim skipped, coordination key present", "stream", stream)
		return nil
	}
	if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("read coordination key: %w", err)
	}

	now := time.Now()
	minID := fmt.Sprintf("%d-0", now.UnixMilli()-t.retention.Milliseconds())

	trimmed, err := t.client.XTrimMinID(ctx, stream, minID).Result()
	if err != nil {
		return fmt.Errorf("xtrim: %w", err)
	}

	record := trimRecord{
		ClientID:        t.clientID,
		TrimmedAt:       now.UnixMilli(),
		IntervalTime:    t.interval.Milliseconds(),
		RetentionPeriod: t.retention.Milliseconds(),
		MinID:           minID,
		Group:           t.group,
	}
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal trim record: %w", err)
	}
	if err := t.client.Set(ctx, key, value, t.interval).Err(); err != nil {
		return fmt.Errorf("write coordination key: %w", err)
	}

	t.logger.Info("stream trimmed", "stream", stream, "min_id", minID, "removed", trimmed)
	return nil
}
