package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/groblegark/krecipes/internal/model"
)

// HTTPClient implements RecipesClient using the krecipes HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient talks to the server at baseURL, e.g. "http://localhost:8080".
// A non-empty token is sent as a bearer token.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

func (c *HTTPClient) Close() error { return nil }

func recipePath(id string) string {
	return "/v1/recipes/" + url.PathEscape(id)
}

func stepPath(recipeID string, stepNum int) string {
	return recipePath(recipeID) + "/steps/" + strconv.Itoa(stepNum)
}

func withActor(path, actor string) string {
	if actor == "" {
		return path
	}
	return path + "?" + url.Values{"actor": {actor}}.Encode()
}

// --- Recipe CRUD ---

func (c *HTTPClient) CreateRecipe(ctx context.Context, req *CreateRecipeRequest) (*model.Recipe, error) {
	var recipe model.Recipe
	if err := c.doJSON(ctx, http.MethodPost, "/v1/recipes", req, &recipe); err != nil {
		return nil, err
	}
	return &recipe, nil
}

func (c *HTTPClient) GetRecipe(ctx context.Context, id string) (*model.Recipe, error) {
	var recipe model.Recipe
	if err := c.doJSON(ctx, http.MethodGet, recipePath(id), nil, &recipe); err != nil {
		return nil, err
	}
	return &recipe, nil
}

func (c *HTTPClient) ListRecipes(ctx context.Context, req *ListRecipesRequest) (*ListRecipesResponse, error) {
	q := url.Values{}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", strconv.Itoa(req.Offset))
	}

	path := "/v1/recipes"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListRecipesResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) DeleteRecipe(ctx context.Context, id, actor string) error {
	return c.doJSON(ctx, http.MethodDelete, withActor(recipePath(id), actor), nil, nil)
}

func (c *HTTPClient) GetRecipeGraph(ctx context.Context, id string) (*model.RecipeGraph, error) {
	var graph model.RecipeGraph
	if err := c.doJSON(ctx, http.MethodGet, recipePath(id)+"/graph", nil, &graph); err != nil {
		return nil, err
	}
	return &graph, nil
}

// --- Steps ---

func (c *HTTPClient) ListSteps(ctx context.Context, recipeID string) ([]*model.RecipeStep, error) {
	var steps []*model.RecipeStep
	if err := c.doJSON(ctx, http.MethodGet, recipePath(recipeID)+"/steps", nil, &steps); err != nil {
		return nil, err
	}
	return steps, nil
}

func (c *HTTPClient) GetStep(ctx context.Context, recipeID string, stepNum int) (*model.RecipeStep, error) {
	var step model.RecipeStep
	if err := c.doJSON(ctx, http.MethodGet, stepPath(recipeID, stepNum), nil, &step); err != nil {
		return nil, err
	}
	return &step, nil
}

func (c *HTTPClient) AddStep(ctx context.Context, recipeID string, req *AddStepRequest) (*model.RecipeStep, error) {
	var step model.RecipeStep
	if err := c.doJSON(ctx, http.MethodPost, recipePath(recipeID)+"/steps", req, &step); err != nil {
		return nil, err
	}
	return &step, nil
}

func (c *HTTPClient) UpdateStep(ctx context.Context, recipeID string, stepNum int, req *UpdateStepRequest) (*model.RecipeStep, error) {
	var step model.RecipeStep
	if err := c.doJSON(ctx, http.MethodPatch, stepPath(recipeID, stepNum), req, &step); err != nil {
		return nil, err
	}
	return &step, nil
}

func (c *HTTPClient) DeleteStep(ctx context.Context, recipeID string, stepNum int, actor string) error {
	return c.doJSON(ctx, http.MethodDelete, withActor(stepPath(recipeID, stepNum), actor), nil, nil)
}

type moveBody struct {
	Position int    `json:"position"`
	Actor    string `json:"actor,omitempty"`
}

func (c *HTTPClient) MoveStep(ctx context.Context, recipeID string, stepNum, position int, actor string) ([]*model.RecipeStep, error) {
	var steps []*model.RecipeStep
	body := moveBody{Position: position, Actor: actor}
	if err := c.doJSON(ctx, http.MethodPost, stepPath(recipeID, stepNum)+"/move", body, &steps); err != nil {
		return nil, err
	}
	return steps, nil
}

func (c *HTTPClient) CheckMove(ctx context.Context, recipeID string, stepNum, position int) (*model.ValidationResult, error) {
	var res model.ValidationResult
	if err := c.doJSON(ctx, http.MethodPost, stepPath(recipeID, stepNum)+"/move/check", moveBody{Position: position}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// --- Uses output of ---

func (c *HTTPClient) GetUses(ctx context.Context, recipeID string, stepNum int) ([]model.StepOutputUse, error) {
	var uses []model.StepOutputUse
	if err := c.doJSON(ctx, http.MethodGet, stepPath(recipeID, stepNum)+"/uses", nil, &uses); err != nil {
		return nil, err
	}
	return uses, nil
}

func (c *HTTPClient) GetUsedBy(ctx context.Context, recipeID string, stepNum int) ([]model.StepOutputUse, error) {
	var uses []model.StepOutputUse
	if err := c.doJSON(ctx, http.MethodGet, stepPath(recipeID, stepNum)+"/used-by", nil, &uses); err != nil {
		return nil, err
	}
	return uses, nil
}

func (c *HTTPClient) SetUses(ctx context.Context, recipeID string, stepNum int, outputStepNums []int, actor string) (int, error) {
	if outputStepNums == nil {
		outputStepNums = []int{}
	}
	body := map[string]any{"output_step_nums": outputStepNums}
	if actor != "" {
		body["actor"] = actor
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.doJSON(ctx, http.MethodPut, stepPath(recipeID, stepNum)+"/uses", body, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// --- Events ---

func (c *HTTPClient) GetEvents(ctx context.Context, recipeID string) ([]*model.Event, error) {
	var evts []*model.Event
	if err := c.doJSON(ctx, http.MethodGet, recipePath(recipeID)+"/events", nil, &evts); err != nil {
		return nil, err
	}
	return evts, nil
}

// StreamEvents reads the server-sent event stream and calls fn for each
// event until ctx is cancelled, the server closes the stream, or fn returns
// an error. Cancellation is not reported as an error.
func (c *HTTPClient) StreamEvents(ctx context.Context, req *StreamEventsRequest, fn func(StreamEvent) error) error {
	q := url.Values{}
	if len(req.Topics) > 0 {
		q.Set("topics", strings.Join(req.Topics, ","))
	}
	if req.RecipeID != "" {
		q.Set("recipe", req.RecipeID)
	}
	path := "/v1/events/stream"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	hdr := http.Header{"Accept": {"text/event-stream"}}
	if req.LastEventID > 0 {
		hdr.Set("Last-Event-ID", strconv.FormatInt(req.LastEventID, 10))
	}
	resp, err := c.send(ctx, http.MethodGet, path, nil, hdr)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer resp.Body.Close()

	err = readSSE(resp.Body, fn)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readSSE parses an event stream. Comment lines are skipped and an event is
// dispatched on each blank line.
func readSSE(r io.Reader, fn func(StreamEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		evt  StreamEvent
		data []byte
		seen bool
	)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if seen {
				evt.Data = data
				if err := fn(evt); err != nil {
					return err
				}
			}
			evt, data, seen = StreamEvent{}, nil, false
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "id":
			if id, err := strconv.ParseInt(value, 10, 64); err == nil {
				evt.ID = id
			}
		case "event":
			evt.Topic = value
		case "data":
			if data != nil {
				data = append(data, '\n')
			}
			data = append(data, value...)
		default:
			continue
		}
		seen = true
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading event stream: %w", err)
	}
	return nil
}

// --- Export ---

// Export streams the server's JSONL export into w.
func (c *HTTPClient) Export(ctx context.Context, w io.Writer) error {
	resp, err := c.send(ctx, http.MethodGet, "/v1/export", nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("reading export: %w", err)
	}
	return nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError is a non-2xx response. Message is the server's error text.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// apiError builds an APIError from an error response body. Validation
// messages arrive as {"error": msg} and are kept verbatim.
func apiError(status int, body []byte) *APIError {
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return &APIError{StatusCode: status, Message: errResp.Error}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}

// send performs a request against baseURL. body, when non-nil, is sent as
// JSON. Responses with status 400 and above are consumed and returned as an
// *APIError; otherwise the caller must close the body.
func (c *HTTPClient) send(ctx context.Context, method, path string, body any, hdr http.Header) (*http.Response, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, apiError(resp.StatusCode, msg)
	}
	return resp, nil
}

// doJSON sends body and decodes the response into result. A nil result, a
// 204 or an empty body leaves result untouched.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, result any) error {
	resp, err := c.send(ctx, method, path, body, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if result == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}
