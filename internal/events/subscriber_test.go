package events

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// startTestNATS runs an in-process NATS server on a random port and returns
// its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

// newTestBus connects a publisher and a subscriber to a fresh server.
func newTestBus(t *testing.T, opts ...nats.Option) (*NATSPublisher, *NATSSubscriber) {
	t.Helper()
	url := startTestNATS(t)
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	t.Cleanup(func() { pub.Close() })
	sub, err := NewNATSSubscriber(url, opts...)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	t.Cleanup(func() { sub.Close() })
	return pub, sub
}

func subscribe(t *testing.T, sub *NATSSubscriber, topic, recipeID string) (<-chan Message, func()) {
	t.Helper()
	ch, cancel, err := sub.Subscribe(topic, recipeID)
	if err != nil {
		t.Fatalf("subscribing to %s: %v", topic, err)
	}
	return ch, cancel
}

func publishRaw(t *testing.T, pub *NATSPublisher, topic, data string) {
	t.Helper()
	if err := pub.conn.Publish(topic, []byte(data)); err != nil {
		t.Fatalf("publishing to %s: %v", topic, err)
	}
}

func recv(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Message{}
}

func expectSilence(t *testing.T, ch <-chan Message) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Fatalf("unexpected event %s: %s", msg.Topic, msg.Data)
	case <-time.After(100 * time.Millisecond):
	}
}

var _ Subscriber = (*NATSSubscriber)(nil)

func TestNATSSubscriber_ReceivesRawPayload(t *testing.T) {
	pub, sub := newTestBus(t)
	ch, cancel := subscribe(t, sub, TopicAll, "")
	defer cancel()

	publishRaw(t, pub, TopicStepDeleted, `{"step_num":1}`)
	pub.conn.Flush()

	msg := recv(t, ch)
	if msg.Topic != TopicStepDeleted || string(msg.Data) != `{"step_num":1}` {
		t.Fatalf("got %s %s", msg.Topic, msg.Data)
	}
	if msg.RecipeID != "" {
		t.Fatalf("RecipeID = %q for a payload without one", msg.RecipeID)
	}
}

func TestNATSSubscriber_TopicPatterns(t *testing.T) {
	tests := []struct {
		pattern string
		want    []string
	}{
		{TopicAll, []string{TopicRecipeCreated, TopicStepMoved, TopicStepUsesReplaced}},
		{"recipes.step.*", []string{TopicStepMoved}},
		{"recipes.step.>", []string{TopicStepMoved, TopicStepUsesReplaced}},
		{TopicRecipeCreated, []string{TopicRecipeCreated}},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			pub, sub := newTestBus(t)
			ch, cancel := subscribe(t, sub, tt.pattern, "")
			defer cancel()

			for _, topic := range []string{TopicRecipeCreated, TopicStepMoved, TopicStepUsesReplaced} {
				publishRaw(t, pub, topic, `{}`)
			}
			pub.conn.Flush()

			for _, want := range tt.want {
				if got := recv(t, ch).Topic; got != want {
					t.Fatalf("got %q, want %q", got, want)
				}
			}
			expectSilence(t, ch)
		})
	}
}

func TestNATSSubscriber_RecipeFilter(t *testing.T) {
	pub, sub := newTestBus(t)
	ch, cancel := subscribe(t, sub, "recipes.step.*", "rc-2")
	defer cancel()

	ctx := context.Background()
	_ = pub.Publish(ctx, TopicStepDeleted, StepDeleted{RecipeID: "rc-1", StepNum: 1})
	_ = pub.Publish(ctx, TopicStepMoved, StepMoved{RecipeID: "rc-2", From: 3, To: 1})
	_ = pub.Publish(ctx, TopicRecipeDeleted, RecipeDeleted{RecipeID: "rc-2"})
	// No header here; the ID comes from the payload.
	publishRaw(t, pub, TopicStepDeleted, `{"recipe_id":"rc-2","step_num":4}`)
	pub.conn.Flush()

	for _, want := range []string{TopicStepMoved, TopicStepDeleted} {
		msg := recv(t, ch)
		if msg.Topic != want || msg.RecipeID != "rc-2" {
			t.Fatalf("got topic=%q recipe=%q, want topic=%q recipe=rc-2", msg.Topic, msg.RecipeID, want)
		}
	}
	expectSilence(t, ch)
}

func TestNATSSubscriber_CancelClosesChannel(t *testing.T) {
	_, sub := newTestBus(t)
	ch, cancel := subscribe(t, sub, TopicAll, "")

	cancel()
	cancel() // idempotent

	if _, ok := <-ch; ok {
		t.Fatal("channel still open after cancel")
	}
}

func TestNATSSubscriber_CancelWhilePublishing(t *testing.T) {
	pub, sub := newTestBus(t)
	ch, cancel := subscribe(t, sub, TopicAll, "")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 100 {
			_ = pub.conn.Publish(TopicStepCreated, []byte(`{"step":{"recipe_id":"rc-1"}}`))
		}
		pub.conn.Flush()
	}()
	cancel()
	<-done

	for range ch {
	}
}

func TestNATSSubscriber_CallerOptions(t *testing.T) {
	reconnected := make(chan struct{}, 1)
	_, sub := newTestBus(t, nats.ReconnectHandler(func(*nats.Conn) {
		select {
		case reconnected <- struct{}{}:
		default:
		}
	}))
	if !sub.conn.IsConnected() {
		t.Fatal("subscriber not connected")
	}
	if got := sub.conn.Opts.Name; got != "krecipes-subscriber" {
		t.Fatalf("connection name = %q", got)
	}
}
