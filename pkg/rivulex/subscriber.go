package rivulex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Subscriber supervises the consumer group on the configured streams:
// it owns the handler registry and the lifetimes of the live consumer,
// the pending consumer and the optional trimmer.
type Subscriber struct {
	client   *redis.Client
	cfg      Config
	clientID string
	registry *Registry
	hooks    *Hooks
	logger   *slog.Logger

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	trimmer *Trimmer
}

// Channel registers action handlers for one stream.
type Channel struct {
	stream   string
	registry *Registry
}

// Action binds a handler to the action name on this channel. The last
// registration for an action wins. Register before Listen; the registry
// is read-only while consumers are dispatching.
func (c *Channel) Action(name string, handler Handler) *Channel {
	c.registry.Register(c.stream, name, handler)
	return c
}

// NewSubscriber creates a Subscriber. The configuration must carry a
// group and at least one stream.
func NewSubscriber(client *redis.Client, cfg Config) (*Subscriber, error) {
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
		clientID = SubscriberClientID(cfg.Group)
	}

	return &Subscriber{
		client:   client,
		cfg:      cfg,
		clientID: clientID,
		registry: NewRegistry(),
		hooks:    NewHooks(slog.Default()),
		logger:   slog.Default(),
	}, nil
}

// Stream returns the registration channel for a stream.
func (s *Subscriber) Stream(name string) *Channel {
	return &Channel{stream: name, registry: s.registry}
}

// Hooks returns the subscriber's hook bus (confirmed, failed, rejected,
// timeout). Listeners registered before Listen observe all subsequent
// events.
func (s *Subscriber) Hooks() *Hooks {
	return s.hooks
}

// ClientID returns this instance's coordination identity.
func (s *Subscriber) ClientID() string {
	return s.clientID
}

// Listen creates the consumer group on every configured stream, then
// launches the live and pending consumers. If the trimmer is enabled it
// is started as well. Listen returns once the loops are running; call
// Stop to shut down.
func (s *Subscriber) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return ErrAlreadyListening
	}

	ctx := context.Background()
	for _, stream := range s.cfg.Streams {
		if err := s.ensureGroup(ctx, stream); err != nil {
			return fmt.Errorf("ensure group on %q: %w", stream, err)
		}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.doneCh = make(chan struct{})

	// Each loop gets its own processor so the concurrency bound holds
	// per process call, capping the engine at twice the configured
	// handler concurrency.
	live := newLiveConsumer(s.client, s.cfg, s.clientID,
		s.registry, newProcessor(s.client, s.cfg, s.hooks, s.logger), s.logger)
	pending := newPendingConsumer(s.client, s.cfg, s.clientID,
		s.registry, newProcessor(s.client, s.cfg, s.hooks, s.logger), s.logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		live.run(loopCtx)
	}()
	go func() {
		defer wg.Done()
		pending.run(loopCtx)
	}()
	go func() {
		wg.Wait()
		close(s.doneCh)
	}()

	if s.cfg.Trimmer.Enabled {
		trimmer, err := NewTrimmer(s.client, s.cfg)
		if err != nil {
			cancel()
			return err
		}
		s.trimmer = trimmer
		trimmer.Start()
	}

	s.running.Store(true)
	s.logger.Info("subscriber listening",
		"group", s.cfg.Group, "streams", s.cfg.Streams, "client_id", s.clientID)
	return nil
}

// Stop signals both consumers to terminate, waits for their in-flight
// batches up to the shutdown timeout, stops the trimmer and closes the
// client. Idempotent.
func (s *Subscriber) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return nil
	}

	s.cancel()

	timeout := time.Duration(s.cfg.Consumer.ShutdownTimeoutMs) * time.Millisecond
	select {
	case <-s.doneCh:
	case <-time.After(timeout):
		s.logger.Warn("shutdown timeout exceeded, forcing exit")
	}

	if s.trimmer != nil {
		s.trimmer.Stop()
		s.trimmer = nil
	}

	s.running.Store(false)
	return s.client.Close()
}

// ensureGroup creates the consumer group at the genesis cursor with
// MKSTREAM, tolerating a group that already exists.
func (s *Subscriber) ensureGroup(ctx context.Context, stream string) error {
	err := s.client.XGroupCreateMkStream(ctx, stream, s.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}
