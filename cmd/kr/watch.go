package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/groblegark/krecipes/internal/client"
	"github.com/groblegark/krecipes/internal/events"
	"github.com/groblegark/krecipes/internal/idgen"
	"github.com/groblegark/krecipes/internal/ui"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream recipe events as they happen",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		recipeID, _ := cmd.Flags().GetString("recipe")
		if recipeID != "" {
			recipeID = idgen.Normalize(recipeID)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		natsURL := os.Getenv("RECIPES_NATS_URL")
		if natsURL == "" {
			natsURL = activeRemoteNATSURL()
		}
		if natsURL != "" {
			return watchNATS(ctx, out, natsURL, topic, recipeID)
		}
		return watchSSE(ctx, out, topic, recipeID)
	},
}

// watchNATS subscribes to topic on NATS and prints matching events.
func watchNATS(ctx context.Context, out io.Writer, natsURL, topic, recipeID string) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(topic, recipeID)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			printWatchEvent(out, time.Now(), msg.Topic, msg.Data)
		}
	}
}

// watchSSE follows the server's event stream. The server filters by topic
// and recipe. A dropped stream is resumed from the last event seen.
func watchSSE(ctx context.Context, out io.Writer, topic, recipeID string) error {
	req := &client.StreamEventsRequest{Topics: []string{topic}, RecipeID: recipeID}
	for {
		err := recipesClient.StreamEvents(ctx, req, func(evt client.StreamEvent) error {
			req.LastEventID = evt.ID
			printWatchEvent(out, time.Now(), evt.Topic, evt.Data)
			return nil
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Printf("event stream: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

// printWatchEvent prints one event as a line of text, or as a JSON object
// per line with --json.
func printWatchEvent(w io.Writer, at time.Time, topic string, data []byte) {
	if jsonOutput {
		line, err := json.Marshal(struct {
			Topic   string          `json:"topic"`
			Payload json.RawMessage `json:"payload"`
		}{topic, json.RawMessage(data)})
		if err != nil {
			return
		}
		fmt.Fprintln(w, string(line))
		return
	}
	fmt.Fprintf(w, "%s %s %s %s\n",
		ui.RenderMuted(at.Format("15:04:05")),
		ui.RenderAccent(topic),
		events.RecipeIDOf(data),
		string(data))
}

func init() {
	watchCmd.Flags().String("topic", events.TopicAll, "NATS-style topic pattern, e.g. recipes.step.*")
	watchCmd.Flags().String("recipe", "", "only show events for this recipe")
}
