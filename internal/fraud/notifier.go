package fraud

import (
	"context"
	"log"
	"sync"
	"time"

	"payshield/backend/internal/fraud/domain"
	"payshield/backend/internal/platform/retry"
)

// DefaultQueueSize bounds the notifier's pending events.
const DefaultQueueSize = 256

// sinkTimeout bounds one delivery to one sink, including retries.
const sinkTimeout = 10 * time.Second

// Sink receives published fraud events (Kafka, OTel logs, the alert watcher). Best-effort.
type Sink interface {
	Emit(ctx context.Context, e domain.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e domain.Event) error

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, e domain.Event) error { return f(ctx, e) }

// Notifier fans events out to sinks from a single goroutine. Notify never blocks: when the queue is
// full the event is dropped with a log line (it is already durable in the Log).
type Notifier struct {
	sinks  []Sink
	policy retry.Policy
	ch     chan domain.Event

	once sync.Once
	done chan struct{}
}

// NewNotifier returns a notifier with the given queue size (DefaultQueueSize if <= 0). Call Run to
// start delivery.
func NewNotifier(queueSize int, policy retry.Policy, sinks ...Sink) *Notifier {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Notifier{
		sinks:  sinks,
		policy: policy,
		ch:     make(chan domain.Event, queueSize),
		done:   make(chan struct{}),
	}
}

// Notify enqueues e for delivery. Returns false if the event was dropped.
func (n *Notifier) Notify(e domain.Event) bool {
	if n == nil {
		return false
	}
	select {
	case n.ch <- e:
		return true
	default:
		log.Printf("fraud: notifier queue full, dropping %s event %s", e.Kind, e.ID)
		return false
	}
}

// Run delivers queued events until ctx is done, then drains what is already queued and returns.
func (n *Notifier) Run(ctx context.Context) {
	defer n.once.Do(func() { close(n.done) })
	for {
		select {
		case e := <-n.ch:
			n.deliver(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-n.ch:
					n.deliver(e)
				default:
					return
				}
			}
		}
	}
}

// Done is closed when Run returns.
func (n *Notifier) Done() <-chan struct{} {
	return n.done
}

func (n *Notifier) deliver(e domain.Event) {
	for _, s := range n.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		_, err := retry.Do(ctx, "fraud publish", n.policy, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.Emit(ctx, e)
		})
		cancel()
		if err != nil {
			log.Printf("fraud: publish %s event %s failed: %v", e.Kind, e.ID, err)
		}
	}
}
