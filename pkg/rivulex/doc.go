// Package rivulex provides a distributed messaging runtime on top of
// Redis Streams.
//
// Publishers append events to named streams; consumer groups fan out,
// process and acknowledge them with at-least-once delivery, FIFO order
// per stream, bounded retries and a dead-letter stream. A background
// trimmer reclaims retention-expired entries under advisory coordination.
//
// # Quick Start
//
// Create a publisher:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	cfg := rivulex.DefaultConfig()
//	cfg.Group = "billing"
//	cfg.DefaultStream = "users"
//
//	pub, err := rivulex.NewPublisher(client, cfg)
//	id, err := pub.Publish(ctx, "u_created", map[string]string{"id": "1"}, nil)
//
// Create a subscriber:
//
//	cfg.Streams = []string{"users"}
//	sub, err := rivulex.NewSubscriber(client, cfg)
//	sub.Stream("users").Action("u_created", func(ctx context.Context, ev *rivulex.Event) error {
//	    fmt.Println("received:", string(ev.Payload))
//	    return ev.Ack(ctx)
//	})
//	err = sub.Listen()
//	defer sub.Stop()
//
// # Delivery semantics
//
// A handler must call Event.Ack to confirm an event. Unacknowledged
// events re-enter circulation once they have been idle longer than the
// configured ack timeout; the pending consumer claims and re-dispatches
// them with an increasing attempt count. Events that exhaust their
// retry budget are appended to the dead-letter stream and acknowledged
// in the source stream in one atomic batch.
//
// # Wire format
//
// Events are stored as the ordered field pairs "action", "payload" and
// "headers"; payload and headers are JSON text. Claimed records may
// additionally surface an "attempt" field. The format is shared across
// runtime implementations.
package rivulex
