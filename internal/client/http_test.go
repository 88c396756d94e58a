package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	// captured from the request
	method      string
	path        string
	rawPath     string // URL-encoded path (for testing PathEscape)
	query       string
	body        string
	contentType string
	auth        string
	lastEventID string

	// canned response
	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.rawPath = r.URL.RawPath
	h.query = r.URL.RawQuery
	h.contentType = r.Header.Get("Content-Type")
	h.auth = r.Header.Get("Authorization")
	h.lastEventID = r.Header.Get("Last-Event-ID")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the given handler.
func newTestClient(h http.Handler) (*HTTPClient, *httptest.Server) {
	srv := httptest.NewServer(h)
	c := NewHTTPClient(srv.URL, "")
	return c, srv
}

// --- Recipes ---

func TestHTTPClient_CreateRecipe(t *testing.T) {
	h := &testHandler{
		statusCode: http.StatusCreated,
		responseBody: `{
			"id": "rc-abc",
			"title": "Sourdough",
			"created_by": "alice",
			"created_at": "2026-01-15T10:00:00Z",
			"updated_at": "2026-01-15T10:00:00Z"
		}`,
	}
	c, srv := newTestClient(h)
	defer srv.Close()

	recipe, err := c.CreateRecipe(context.Background(), &CreateRecipeRequest{Title: "Sourdough", CreatedBy: "alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.method != http.MethodPost || h.path != "/v1/recipes" {
		t.Errorf("got %s %s", h.method, h.path)
	}
	if h.contentType != "application/json" {
		t.Errorf("content-type = %q", h.contentType)
	}
	if h.body != `{"title":"Sourdough","created_by":"alice"}` {
		t.Errorf("body = %s", h.body)
	}
	want := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	if recipe.ID != "rc-abc" || !recipe.CreatedAt.Equal(want) {
		t.Errorf("got %+v", recipe)
	}
}

func TestHTTPClient_GetRecipe_URLEscaping(t *testing.T) {
	h := &testHandler{responseBody: `{"id":"rc/1","title":"x"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	if _, err := c.GetRecipe(context.Background(), "rc/1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.rawPath != "/v1/recipes/rc%2F1" {
		t.Errorf("rawPath = %q, want escaped slash", h.rawPath)
	}
}

func TestHTTPClient_ListRecipes(t *testing.T) {
	h := &testHandler{responseBody: `{"recipes":[{"id":"rc-1","title":"a"}],"total":5}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	resp, err := c.ListRecipes(context.Background(), &ListRecipesRequest{Limit: 1, Offset: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.query != "limit=1&offset=2" {
		t.Errorf("query = %q", h.query)
	}
	if resp.Total != 5 || len(resp.Recipes) != 1 {
		t.Errorf("got %+v", resp)
	}

	if _, err := c.ListRecipes(context.Background(), &ListRecipesRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.query != "" {
		t.Errorf("expected no query, got %q", h.query)
	}
}

func TestHTTPClient_DeleteRecipe(t *testing.T) {
	h := &testHandler{statusCode: http.StatusNoContent}
	c, srv := newTestClient(h)
	defer srv.Close()

	if err := c.DeleteRecipe(context.Background(), "rc-1", "bob"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.method != http.MethodDelete || h.path != "/v1/recipes/rc-1" || h.query != "actor=bob" {
		t.Errorf("got %s %s?%s", h.method, h.path, h.query)
	}
}

func TestHTTPClient_GetRecipeGraph(t *testing.T) {
	h := &testHandler{responseBody: `{
		"recipe_id": "rc-1",
		"nodes": [{"recipe_id":"rc-1","step_num":1,"title":"a"},{"recipe_id":"rc-1","step_num":2,"title":"b","uses_output_of":[1]}],
		"edges": [{"recipe_id":"rc-1","output_step_num":1,"input_step_num":2}]
	}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	g, err := c.GetRecipeGraph(context.Background(), "rc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.path != "/v1/recipes/rc-1/graph" {
		t.Errorf("path = %q", h.path)
	}
	if len(g.Nodes) != 2 || len(g.Edges) != 1 || g.Edges[0].InputStepNum != 2 {
		t.Errorf("got %+v", g)
	}
}

// --- Steps ---

func TestHTTPClient_AddStep(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusCreated,
		responseBody: `{"recipe_id":"rc-1","step_num":3,"title":"Bake","uses_output_of":[1,2]}`,
	}
	c, srv := newTestClient(h)
	defer srv.Close()

	step, err := c.AddStep(context.Background(), "rc-1", &AddStepRequest{Title: "Bake", UsesOutputOf: []int{1, 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.path != "/v1/recipes/rc-1/steps" || h.body != `{"title":"Bake","uses_output_of":[1,2]}` {
		t.Errorf("got %s body=%s", h.path, h.body)
	}
	if step.StepNum != 3 || len(step.UsesOutputOf) != 2 {
		t.Errorf("got %+v", step)
	}
}

func TestHTTPClient_UpdateStep_ClearUses(t *testing.T) {
	h := &testHandler{responseBody: `{"recipe_id":"rc-1","step_num":2,"title":"x"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	empty := []int{}
	if _, err := c.UpdateStep(context.Background(), "rc-1", 2, &UpdateStepRequest{UsesOutputOf: &empty}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.method != http.MethodPatch || h.path != "/v1/recipes/rc-1/steps/2" {
		t.Errorf("got %s %s", h.method, h.path)
	}
	// An explicit empty list must reach the server.
	if h.body != `{"uses_output_of":[]}` {
		t.Errorf("body = %s", h.body)
	}
}

func TestHTTPClient_UpdateStep_TitleOnly(t *testing.T) {
	h := &testHandler{responseBody: `{"recipe_id":"rc-1","step_num":2,"title":"New"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	title := "New"
	if _, err := c.UpdateStep(context.Background(), "rc-1", 2, &UpdateStepRequest{Title: &title, Actor: "al"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.body != `{"title":"New","actor":"al"}` {
		t.Errorf("body = %s", h.body)
	}
}

func TestHTTPClient_DeleteStep(t *testing.T) {
	h := &testHandler{statusCode: http.StatusNoContent}
	c, srv := newTestClient(h)
	defer srv.Close()

	if err := c.DeleteStep(context.Background(), "rc-1", 4, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.method != http.MethodDelete || h.path != "/v1/recipes/rc-1/steps/4" || h.query != "" {
		t.Errorf("got %s %s?%s", h.method, h.path, h.query)
	}
}

func TestHTTPClient_MoveStep(t *testing.T) {
	h := &testHandler{responseBody: `[{"step_num":1,"title":"b"},{"step_num":2,"title":"a"}]`}
	c, srv := newTestClient(h)
	defer srv.Close()

	steps, err := c.MoveStep(context.Background(), "rc-1", 2, 1, "carol")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.path != "/v1/recipes/rc-1/steps/2/move" || h.body != `{"position":1,"actor":"carol"}` {
		t.Errorf("got %s body=%s", h.path, h.body)
	}
	if len(steps) != 2 || steps[0].Title != "b" {
		t.Errorf("got %+v", steps)
	}
}

func TestHTTPClient_CheckMove(t *testing.T) {
	h := &testHandler{responseBody: `{"valid":false,"error":"Cannot move Step 1 to position 3 because Step 2 uses its output"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	res, err := c.CheckMove(context.Background(), "rc-1", 1, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.path != "/v1/recipes/rc-1/steps/1/move/check" || h.body != `{"position":3}` {
		t.Errorf("got %s body=%s", h.path, h.body)
	}
	if res.Valid || res.Error != "Cannot move Step 1 to position 3 because Step 2 uses its output" {
		t.Errorf("got %+v", res)
	}
}

// --- Uses ---

func TestHTTPClient_SetUses(t *testing.T) {
	h := &testHandler{responseBody: `{"count":2}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	n, err := c.SetUses(context.Background(), "rc-1", 4, []int{1, 3}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.method != http.MethodPut || h.path != "/v1/recipes/rc-1/steps/4/uses" || h.body != `{"output_step_nums":[1,3]}` {
		t.Errorf("got %s %s body=%s", h.method, h.path, h.body)
	}
	if n != 2 {
		t.Errorf("count = %d", n)
	}

	// nil clears rather than being sent as null.
	if _, err := c.SetUses(context.Background(), "rc-1", 4, nil, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.body != `{"output_step_nums":[]}` {
		t.Errorf("body = %s", h.body)
	}
}

func TestHTTPClient_GetUsesAndUsedBy(t *testing.T) {
	h := &testHandler{responseBody: `[{"recipe_id":"rc-1","output_step_num":1,"input_step_num":3}]`}
	c, srv := newTestClient(h)
	defer srv.Close()

	uses, err := c.GetUses(context.Background(), "rc-1", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.path != "/v1/recipes/rc-1/steps/3/uses" || len(uses) != 1 || uses[0].OutputStepNum != 1 {
		t.Errorf("got %s %+v", h.path, uses)
	}

	usedBy, err := c.GetUsedBy(context.Background(), "rc-1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.path != "/v1/recipes/rc-1/steps/1/used-by" || len(usedBy) != 1 || usedBy[0].InputStepNum != 3 {
		t.Errorf("got %s %+v", h.path, usedBy)
	}
}

// --- Events ---

func TestHTTPClient_GetEvents_Empty(t *testing.T) {
	h := &testHandler{responseBody: `[]`}
	c, srv := newTestClient(h)
	defer srv.Close()

	evts, err := c.GetEvents(context.Background(), "rc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.path != "/v1/recipes/rc-1/events" || len(evts) != 0 {
		t.Errorf("got %s %d events", h.path, len(evts))
	}
}

func TestHTTPClient_StreamEvents(t *testing.T) {
	var gotQuery, gotLastID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotLastID = r.Header.Get("Last-Event-ID")
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, ":keepalive\n\n")
		_, _ = io.WriteString(w, "id:7\nevent:recipes.step.moved\ndata:{\"from\":1,\"to\":2}\n\n")
		_, _ = io.WriteString(w, "id: 8\nevent: recipes.step.deleted\ndata: {\"step_num\":3}\n\n")
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	var got []StreamEvent
	err := c.StreamEvents(context.Background(), &StreamEventsRequest{
		Topics:      []string{"recipes.step.*"},
		RecipeID:    "rc-1",
		LastEventID: 6,
	}, func(evt StreamEvent) error {
		got = append(got, evt)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery != "recipe=rc-1&topics=recipes.step.%2A" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotLastID != "6" {
		t.Errorf("Last-Event-ID = %q", gotLastID)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].ID != 7 || got[0].Topic != "recipes.step.moved" || string(got[0].Data) != `{"from":1,"to":2}` {
		t.Errorf("event 0 = %+v", got[0])
	}
	if got[1].ID != 8 || got[1].Topic != "recipes.step.deleted" {
		t.Errorf("event 1 = %+v", got[1])
	}
}

func TestReadSSE_CallbackErrorStops(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := readSSE(strings.NewReader("event:a\ndata:1\n\nevent:b\ndata:2\n\n"), func(StreamEvent) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestReadSSE_MultilineData(t *testing.T) {
	var got StreamEvent
	err := readSSE(strings.NewReader("data:line1\ndata:line2\n\n"), func(evt StreamEvent) error {
		got = evt
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got.Data) != "line1\nline2" {
		t.Fatalf("data = %q", got.Data)
	}
}

// --- Export ---

func TestHTTPClient_Export(t *testing.T) {
	h := &testHandler{responseBody: "{\"type\":\"header\"}\n"}
	c, srv := newTestClient(h)
	defer srv.Close()

	var buf bytes.Buffer
	if err := c.Export(context.Background(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.path != "/v1/export" || buf.String() != "{\"type\":\"header\"}\n" {
		t.Errorf("got %s %q", h.path, buf.String())
	}
}

// --- Health ---

func TestHTTPClient_Health(t *testing.T) {
	h := &testHandler{responseBody: `{"status":"ok"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	status, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != "ok" {
		t.Errorf("status = %q", status)
	}
}

// --- Errors ---

func TestHTTPClient_Error_ValidationMessageVerbatim(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"reference", http.StatusUnprocessableEntity,
			`{"error":"Step 3 cannot use output from Step 3 because it does not come before Step 3"}`,
			"Step 3 cannot use output from Step 3 because it does not come before Step 3"},
		{"delete", http.StatusConflict,
			`{"error":"Cannot delete Step 1 because it is used by Steps 2, 3, and 4"}`,
			"Cannot delete Step 1 because it is used by Steps 2, 3, and 4"},
		{"not found", http.StatusNotFound, `{"error":"recipe not found"}`, "recipe not found"},
		{"non-JSON", http.StatusBadGateway, "upstream down\n", "upstream down"},
		{"empty error field", http.StatusInternalServerError, `{"error": ""}`, `{"error": ""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &testHandler{statusCode: tt.status, responseBody: tt.body}
			c, srv := newTestClient(h)
			defer srv.Close()

			_, err := c.GetRecipe(context.Background(), "rc-1")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T: %v", err, err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.Message != tt.want {
				t.Errorf("message = %q, want %q", apiErr.Message, tt.want)
			}
		})
	}
}

func TestHTTPClient_Error_FormatString(t *testing.T) {
	apiErr := &APIError{StatusCode: 403, Message: "forbidden"}
	want := "HTTP 403: forbidden"
	if apiErr.Error() != want {
		t.Errorf("Error() = %q, want %q", apiErr.Error(), want)
	}
}

func TestHTTPClient_Error_CanceledContext(t *testing.T) {
	h := &testHandler{responseBody: `{}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.GetRecipe(ctx, "rc-1"); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestHTTPClient_BearerToken(t *testing.T) {
	h := &testHandler{responseBody: `{"status":"ok"}`}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "sekret")
	if _, err := c.Health(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.auth != "Bearer sekret" {
		t.Errorf("Authorization = %q", h.auth)
	}
}

func TestHTTPClient_Close(t *testing.T) {
	c := NewHTTPClient("http://localhost:1", "")
	if err := c.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestNewHTTPClient_TrimsTrailingSlash(t *testing.T) {
	c := NewHTTPClient("http://example.com///", "")
	if c.baseURL != "http://example.com" {
		t.Errorf("baseURL = %q", c.baseURL)
	}
}

func TestHTTPClient_ImplementsRecipesClient(t *testing.T) {
	var _ RecipesClient = (*HTTPClient)(nil)
}

func TestHTTPClient_ConcurrentRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	}))
	defer srv.Close()
	c := NewHTTPClient(srv.URL, "")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Health(context.Background()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent request failed: %v", err)
	}
}
