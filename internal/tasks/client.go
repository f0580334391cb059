package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/oauth2"
)

// collectionPath is the task collection, relative to the API root.
const collectionPath = "tasks/"

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 10 << 20

// TokenProvider supplies the bearer credential for each request.
type TokenProvider interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for collection calls.
// If not provided, a client with a 30 second timeout over http.DefaultTransport is used.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// Client performs authenticated CRUD calls against the task collection.
// It is safe for concurrent use; concurrent mutations are not ordered.
type Client struct {
	apiURL     string
	tokens     TokenProvider
	httpClient *http.Client
	validate   *validator.Validate
}

// NewClient creates a Client for the service at baseURL, e.g. "https://todo.example.com".
func NewClient(baseURL string, tokens TokenProvider, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", baseURL)
	}
	if tokens == nil {
		return nil, fmt.Errorf("missing token provider")
	}

	c := &Client{
		apiURL: strings.TrimRight(baseURL, "/") + "/api/",
		tokens: tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// List returns every task in the collection, in service order.
func (c *Client) List(ctx context.Context) ([]Task, error) {
	var tasks []Task
	if _, err := c.do(ctx, http.MethodGet, collectionPath, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Get returns a single task.
func (c *Client) Get(ctx context.Context, id int64) (*Task, error) {
	path, err := taskPath(id)
	if err != nil {
		return nil, err
	}
	return c.doTask(ctx, http.MethodGet, path, nil)
}

// Create adds a task and returns the record created by the service.
func (c *Client) Create(ctx context.Context, task NewTask) (*Task, error) {
	if err := c.validate.Struct(task); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}
	return c.doTask(ctx, http.MethodPost, collectionPath, task)
}

// Update sends only the fields set in patch and returns the updated record.
func (c *Client) Update(ctx context.Context, id int64, patch Patch) (*Task, error) {
	path, err := taskPath(id)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, ErrEmptyPatch
	}
	if err := c.validate.Struct(patch); err != nil {
		return nil, fmt.Errorf("invalid patch: %w", err)
	}
	return c.doTask(ctx, http.MethodPatch, path, patch)
}

// Delete removes a task.
func (c *Client) Delete(ctx context.Context, id int64) error {
	path, err := taskPath(id)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodDelete, path, nil, nil)
	return err
}

// doTask performs a call answered by a single task record.
// A successful response without a body yields a nil task.
func (c *Client) doTask(ctx context.Context, method, path string, body any) (*Task, error) {
	var task Task
	hasBody, err := c.do(ctx, method, path, body, &task)
	if err != nil {
		return nil, err
	}
	if !hasBody {
		return nil, nil
	}
	return &task, nil
}

// do sends one authenticated request and decodes a successful response into out.
// It reports whether the successful response carried a body; empty bodies are
// never decoded.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (bool, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return false, err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reqBody)
	if err != nil {
		return false, fmt.Errorf("creating %s %s request: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	tok.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, &RequestError{Method: method, Path: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return false, &RequestError{Method: method, Path: path, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := string(data)
		if strings.TrimSpace(message) == "" {
			message = "HTTP " + strconv.Itoa(resp.StatusCode)
		}
		slog.DebugContext(ctx, "task request failed", "method", method, "path", path, "status", resp.StatusCode)
		return false, &RequestError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: message}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return true, fmt.Errorf("decoding %s %s response: %w", method, path, err)
		}
	}
	return true, nil
}

// taskPath returns the detail path for a task.
func taskPath(id int64) (string, error) {
	if id <= 0 {
		return "", fmt.Errorf("invalid task id %d", id)
	}
	return collectionPath + strconv.FormatInt(id, 10) + "/", nil
}
