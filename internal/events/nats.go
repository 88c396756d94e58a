package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// RecipeIDHeader carries the recipe an event belongs to, so subscribers can
// filter without decoding the payload.
const RecipeIDHeader = "Recipe-Id"

// subscriptionBuffer is how many events a subscriber may lag by before
// further events are dropped.
const subscriptionBuffer = 64

// NATSPublisher publishes each event as JSON on the subject named by its topic.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("krecipes-publisher"))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", topic, err)
	}
	msg := nats.NewMsg(topic)
	msg.Data = data
	if id := RecipeIDOf(data); id != "" {
		msg.Header.Set(RecipeIDHeader, id)
	}
	return p.conn.PublishMsg(msg)
}

// Close flushes buffered events before disconnecting.
func (p *NATSPublisher) Close() error {
	err := p.conn.FlushTimeout(5 * time.Second)
	p.conn.Close()
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("flushing events: %w", err)
	}
	return nil
}

// NATSSubscriber receives events from NATS. The connection reconnects
// indefinitely.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects to url. Extra options, such as disconnect and
// reconnect handlers, are applied after the defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	all := append([]nats.Option{
		nats.Name("krecipes-subscriber"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}, opts...)
	nc, err := nats.Connect(url, all...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

func (s *NATSSubscriber) Subscribe(topic, recipeID string) (<-chan Message, func(), error) {
	sub := &subscription{ch: make(chan Message, subscriptionBuffer)}

	ns, err := s.conn.Subscribe(topic, func(m *nats.Msg) {
		id := m.Header.Get(RecipeIDHeader)
		if id == "" {
			id = RecipeIDOf(m.Data)
		}
		if recipeID != "" && id != recipeID {
			return
		}
		sub.deliver(Message{Topic: m.Subject, RecipeID: id, Data: m.Data})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	sub.ns = ns

	// Make sure the server knows about the subscription before returning so
	// events published from other connections are routed to it.
	if err := s.conn.Flush(); err != nil {
		sub.stop()
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}
	return sub.ch, sub.stop, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}

// subscription guards the delivery channel so it can be closed while NATS
// is still invoking the message handler.
type subscription struct {
	ns *nats.Subscription
	ch chan Message

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

// deliver never blocks the NATS dispatcher; a full buffer drops the event.
func (s *subscription) deliver(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- m:
	default:
	}
}

// stop unsubscribes, discards undelivered events and closes the channel.
func (s *subscription) stop() {
	s.once.Do(func() {
		if s.ns != nil {
			_ = s.ns.Unsubscribe()
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
		for len(s.ch) > 0 {
			<-s.ch
		}
		close(s.ch)
	})
}
