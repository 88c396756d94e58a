package events

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/groblegark/krecipes/internal/model"
)

var (
	_ Publisher = NoopPublisher{}
	_ Publisher = (*NATSPublisher)(nil)
)

func TestNoopPublisher(t *testing.T) {
	var pub Publisher = &NoopPublisher{}
	if err := pub.Publish(context.Background(), TopicRecipeCreated, RecipeCreated{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestTopicsUnderTopicAll(t *testing.T) {
	prefix := strings.TrimSuffix(TopicAll, ">")
	for _, topic := range []string{
		TopicRecipeCreated, TopicRecipeDeleted,
		TopicStepCreated, TopicStepUpdated, TopicStepMoved, TopicStepDeleted, TopicStepUsesReplaced,
	} {
		if !strings.HasPrefix(topic, prefix) {
			t.Errorf("%q is outside %q", topic, TopicAll)
		}
	}
}

func TestRecipeIDOf(t *testing.T) {
	tests := []struct {
		name  string
		event any
		want  string
	}{
		{"RecipeCreated", RecipeCreated{Recipe: &model.Recipe{ID: "rc-1"}}, "rc-1"},
		{"RecipeDeleted", RecipeDeleted{RecipeID: "rc-2"}, "rc-2"},
		{"StepCreated", StepCreated{Step: &model.RecipeStep{RecipeID: "rc-3", StepNum: 1}}, "rc-3"},
		{"StepUpdated", StepUpdated{Step: &model.RecipeStep{RecipeID: "rc-6"}, Changes: map[string]any{"title": "Fold"}}, "rc-6"},
		{"StepMoved", StepMoved{RecipeID: "rc-4", From: 1, To: 2}, "rc-4"},
		{"StepUsesReplaced", StepUsesReplaced{RecipeID: "rc-5", StepNum: 3}, "rc-5"},
		{"Empty", struct{}{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatal(err)
			}
			if got := RecipeIDOf(data); got != tt.want {
				t.Fatalf("RecipeIDOf = %q, want %q", got, tt.want)
			}
		})
	}
	if got := RecipeIDOf([]byte("not json")); got != "" {
		t.Fatalf("RecipeIDOf(invalid) = %q", got)
	}
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer nc.Close()
	raw, err := nc.SubscribeSync(TopicAll)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	nc.Flush()

	sent := []struct {
		topic string
		event any
	}{
		{TopicRecipeCreated, RecipeCreated{Recipe: &model.Recipe{ID: "rc-1", Title: "Focaccia"}}},
		{TopicStepMoved, StepMoved{RecipeID: "rc-1", From: 4, To: 2}},
		{TopicStepUsesReplaced, StepUsesReplaced{RecipeID: "rc-1", StepNum: 3, OutputStepNums: []int{1, 2}, Created: 2}},
		{TopicRecipeDeleted, RecipeDeleted{RecipeID: "rc-1"}},
	}
	for _, s := range sent {
		if err := pub.Publish(context.Background(), s.topic, s.event); err != nil {
			t.Fatalf("Publish(%s): %v", s.topic, err)
		}
	}
	pub.conn.Flush()

	for _, s := range sent {
		msg, err := raw.NextMsg(2 * time.Second)
		if err != nil {
			t.Fatalf("waiting for %s: %v", s.topic, err)
		}
		want, _ := json.Marshal(s.event)
		if msg.Subject != s.topic || string(msg.Data) != string(want) {
			t.Errorf("got %s %s, want %s %s", msg.Subject, msg.Data, s.topic, want)
		}
		if got := msg.Header.Get(RecipeIDHeader); got != "rc-1" {
			t.Errorf("%s: %s = %q", s.topic, RecipeIDHeader, got)
		}
	}
}

func TestNATSPublisher_PublishAfterClose(t *testing.T) {
	pub, err := NewNATSPublisher(startTestNATS(t))
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := pub.Publish(context.Background(), TopicRecipeCreated, RecipeCreated{}); err == nil {
		t.Error("publish after close succeeded")
	}
}
