package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// sseHistorySize bounds the events kept for Last-Event-ID replay.
	sseHistorySize = 1000

	sseKeepaliveInterval = 15 * time.Second

	// sseClientBuffer is how many undelivered events a client may lag by
	// before further events are dropped for it.
	sseClientBuffer = 64
)

// sseEvent is one recipe event as delivered to stream clients.
type sseEvent struct {
	ID       uint64
	Topic    string
	RecipeID string
	Data     []byte // JSON payload, as recorded in the audit log
}

// sseFilter selects the events a client receives. The zero value matches
// everything.
type sseFilter struct {
	topics   []string // NATS-style patterns; any may match
	recipeID string
}

func (f sseFilter) match(evt *sseEvent) bool {
	if f.recipeID != "" && f.recipeID != evt.RecipeID {
		return false
	}
	if len(f.topics) == 0 {
		return true
	}
	for _, p := range f.topics {
		if matchTopicPattern(p, evt.Topic) {
			return true
		}
	}
	return false
}

// parseSSEFilter reads the topics and recipe query parameters.
func parseSSEFilter(r *http.Request) sseFilter {
	q := r.URL.Query()
	f := sseFilter{recipeID: strings.TrimSpace(q.Get("recipe"))}
	for _, t := range strings.Split(q.Get("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			f.topics = append(f.topics, t)
		}
	}
	return f
}

type sseClient struct {
	filter sseFilter
	ch     chan *sseEvent
}

// sseHub fans recipe events out to stream clients and remembers the most
// recent ones so a reconnecting client can catch up.
type sseHub struct {
	mu      sync.Mutex
	lastID  uint64
	history []*sseEvent // oldest first, at most sseHistorySize
	clients map[*sseClient]struct{}
}

func newSSEHub() *sseHub {
	return &sseHub{clients: make(map[*sseClient]struct{})}
}

// broadcast assigns the next event ID and delivers the event to every
// matching client. A client whose buffer is full misses the event.
func (h *sseHub) broadcast(topic, recipeID string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastID++
	evt := &sseEvent{ID: h.lastID, Topic: topic, RecipeID: recipeID, Data: payload}

	if len(h.history) == sseHistorySize {
		copy(h.history, h.history[1:])
		h.history = h.history[:sseHistorySize-1]
	}
	h.history = append(h.history, evt)

	for c := range h.clients {
		if !c.filter.match(evt) {
			continue
		}
		select {
		case c.ch <- evt:
		default:
		}
	}
}

// subscribe registers a client for events matching topics and recipeID.
func (h *sseHub) subscribe(topics []string, recipeID string) *sseClient {
	c, _ := h.subscribeAfter(sseFilter{topics: topics, recipeID: recipeID}, 0, false)
	return c
}

// subscribeAfter registers a client and, when replay is set, returns the
// remembered events after lastID that match its filter. Both happen under
// one lock so no event is missed or delivered twice between replay and the
// live stream.
func (h *sseHub) subscribeAfter(f sseFilter, lastID uint64, replay bool) (*sseClient, []*sseEvent) {
	c := &sseClient{filter: f, ch: make(chan *sseEvent, sseClientBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if !replay {
		return c, nil
	}
	var missed []*sseEvent
	for _, evt := range h.since(lastID) {
		if f.match(evt) {
			missed = append(missed, evt)
		}
	}
	return c, missed
}

func (h *sseHub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// eventsSince returns the remembered events with ID greater than lastID,
// oldest first.
func (h *sseHub) eventsSince(lastID uint64) []*sseEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.since(lastID)
}

// since requires h.mu.
func (h *sseHub) since(lastID uint64) []*sseEvent {
	// IDs are contiguous, so the first newer event can be located directly.
	if len(h.history) == 0 || lastID >= h.lastID {
		return nil
	}
	first := h.history[0].ID
	skip := 0
	if lastID >= first {
		skip = int(lastID - first + 1)
	}
	return append([]*sseEvent(nil), h.history[skip:]...)
}

// matchTopicPattern reports whether topic matches a NATS-style pattern:
// "*" matches one segment and a trailing ">" matches one or more.
func matchTopicPattern(pattern, topic string) bool {
	for {
		p, pRest, pMore := strings.Cut(pattern, ".")
		if p == ">" {
			return topic != ""
		}
		t, tRest, tMore := strings.Cut(topic, ".")
		if p != "*" && p != t {
			return false
		}
		if !pMore || !tMore {
			return pMore == tMore
		}
		pattern, topic = pRest, tRest
	}
}

// handleEventStream handles GET /v1/events/stream. Query parameters topics
// (comma-separated patterns) and recipe (an ID) narrow the stream; a
// Last-Event-ID header replays remembered events first.
func (s *RecipesServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	lastID, err := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)
	client, missed := s.sseHub.subscribeAfter(parseSSEFilter(r), lastID, err == nil)
	defer s.sseHub.unsubscribe(client)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for _, evt := range missed {
		writeSSEEvent(w, evt)
	}
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-client.ch:
			writeSSEEvent(w, evt)
		case <-keepalive.C:
			io.WriteString(w, ":keepalive\n\n")
		}
		flusher.Flush()
	}
}

func writeSSEEvent(w io.Writer, evt *sseEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", evt.ID, evt.Topic, evt.Data)
}
