package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/quiz-engine/internal/quiz"
)

// DefaultBaseURL is where the grading service listens by default
const DefaultBaseURL = "http://localhost:3000"

// AttemptHeader carries the attempt id that makes a submission idempotent
const AttemptHeader = "X-Attempt-ID"

// Client is a Go SDK for the grading service API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithAPIKey sends a bearer token with every request
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// NewClient creates a new grading service client
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is returned for HTTP responses with status >= 400
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d: %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// FetchTasks retrieves the question list
func (c *Client) FetchTasks(ctx context.Context) ([]quiz.Task, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/tasks", nil, nil)
	if err != nil {
		return nil, err
	}

	var tasks []quiz.Task
	if err := json.Unmarshal(resp, &tasks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tasks: %w", err)
	}

	return tasks, nil
}

// SubmitAnswers sends answers for grading without an attempt id
func (c *Client) SubmitAnswers(ctx context.Context, answers []quiz.Answer) ([]quiz.Result, error) {
	return c.submit(ctx, answers, nil)
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil, nil)
	return err
}

// Attempt returns a grading service bound to a fresh attempt id. Every
// submission through it carries the same id, so resending after a transport
// failure cannot be graded twice.
func (c *Client) Attempt() *Attempt {
	return &Attempt{client: c, id: uuid.NewString()}
}

// Attempt is a Client bound to one attempt id
type Attempt struct {
	client *Client
	id     string
}

// ID returns the attempt id
func (a *Attempt) ID() string {
	return a.id
}

func (a *Attempt) FetchTasks(ctx context.Context) ([]quiz.Task, error) {
	return a.client.FetchTasks(ctx)
}

func (a *Attempt) SubmitAnswers(ctx context.Context, answers []quiz.Answer) ([]quiz.Result, error) {
	return a.client.submit(ctx, answers, map[string]string{AttemptHeader: a.id})
}

func (c *Client) submit(ctx context.Context, answers []quiz.Answer, headers map[string]string) ([]quiz.Result, error) {
	if answers == nil {
		answers = []quiz.Answer{}
	}
	body, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal answers: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/submit", bytes.NewReader(body), headers)
	if err != nil {
		return nil, err
	}

	var results []quiz.Result
	if err := json.Unmarshal(resp, &results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}

	return results, nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader, headers map[string]string) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
		var envelope struct {
			Error *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &envelope) == nil && envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return nil, apiErr
	}

	return respBody, nil
}
