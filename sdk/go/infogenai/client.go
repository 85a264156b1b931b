// Package infogenai is a Go client for the InfoGenAI gateway.
package infogenai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client.
const DefaultHTTPTimeout = 30 * time.Second

// DefaultPath is the dispatch endpoint path.
const DefaultPath = "/infogenai"

// Commands understood by the gateway.
const (
	CommandListAgents   = "list_agents"
	CommandSystemPrompt = "system_prompt"
)

const (
	requestIDHeader = "X-Request-ID"
	analyzeHeader   = "Combined RAG Data:\n"
	analyzeFooter   = "\n\nAnalysis:\n"
	errorPrefix     = "Error processing your prompt: "
)

// Client wraps the HTTP interactions with the gateway.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	path       string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithPath overrides the dispatch endpoint path.
func WithPath(p string) Option {
	return func(c *Client) {
		if p != "" {
			c.path = p
		}
	}
}

// Response is the raw reply to a dispatch request.
type Response struct {
	StatusCode int
	RequestID  string
	Text       string
}

// Agent describes one registered agent.
type Agent struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Analysis is the parsed reply to an article.
type Analysis struct {
	RequestID string
	// Results holds each agent's raw JSON output keyed by agent name.
	Results map[string]json.RawMessage
	// Summary is the text following the "Analysis:" marker.
	Summary string
	Raw     string
}

// APIError is returned for HTTP responses with status >= 400.
type APIError struct {
	StatusCode int
	RequestID  string
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("infogenai api error (%d): %s", e.StatusCode, e.Message)
}

// AgentError reports that the gateway answered with an agent failure body.
type AgentError struct {
	RequestID string
	Message   string
}

func (e *AgentError) Error() string {
	if e == nil {
		return ""
	}
	return "infogenai agent error: " + e.Message
}

// ErrCommandText is returned by Analyze for text the gateway would treat as a command.
var ErrCommandText = errors.New("infogenai: article text matches a command")

// NewClient instantiates a client for the gateway at rawURL.
func NewClient(rawURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", rawURL)
	}
	c := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		path:       DefaultPath,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Send posts body as the Body form field and returns the plain-text reply.
func (c *Client) Send(ctx context.Context, body string) (Response, error) {
	form := url.Values{"Body": {body}}
	req, err := c.newRequest(ctx, http.MethodPost, c.path, strings.NewReader(form.Encode()))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, data, err := c.do(req)
	if err != nil {
		return Response{}, err
	}
	return Response{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get(requestIDHeader),
		Text:       string(data),
	}, nil
}

// ListAgents returns the list_agents reply text.
func (c *Client) ListAgents(ctx context.Context) (string, error) {
	resp, err := c.Send(ctx, CommandListAgents)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// SystemPrompt returns the gateway's system prompt.
func (c *Client) SystemPrompt(ctx context.Context) (string, error) {
	resp, err := c.Send(ctx, CommandSystemPrompt)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Analyze submits article text and parses the combined agent results.
// Agent failures are returned as *AgentError even when the server answers 200.
func (c *Client) Analyze(ctx context.Context, article string) (Analysis, error) {
	switch strings.TrimSpace(article) {
	case CommandListAgents, CommandSystemPrompt:
		return Analysis{}, ErrCommandText
	}

	resp, err := c.Send(ctx, article)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && strings.HasPrefix(apiErr.Message, errorPrefix) {
			return Analysis{}, &AgentError{RequestID: apiErr.RequestID, Message: strings.TrimPrefix(apiErr.Message, errorPrefix)}
		}
		return Analysis{}, err
	}
	return parseAnalysis(resp)
}

func parseAnalysis(resp Response) (Analysis, error) {
	text := resp.Text
	if strings.HasPrefix(text, errorPrefix) {
		return Analysis{}, &AgentError{RequestID: resp.RequestID, Message: strings.TrimPrefix(text, errorPrefix)}
	}
	if !strings.HasPrefix(text, analyzeHeader) {
		return Analysis{}, fmt.Errorf("unexpected response: missing %q header", strings.TrimSpace(analyzeHeader))
	}
	rest := strings.TrimPrefix(text, analyzeHeader)
	idx := strings.Index(rest, analyzeFooter)
	if idx < 0 {
		return Analysis{}, errors.New("unexpected response: missing analysis section")
	}

	results := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(rest[:idx]), &results); err != nil {
		return Analysis{}, fmt.Errorf("decode combined data: %w", err)
	}
	return Analysis{
		RequestID: resp.RequestID,
		Results:   results,
		Summary:   rest[idx+len(analyzeFooter):],
		Raw:       text,
	}, nil
}

// Agents fetches the agent list from GET /agents.
func (c *Client) Agents(ctx context.Context) ([]Agent, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/agents", nil)
	if err != nil {
		return nil, err
	}
	_, data, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var agents []Agent
	if err := json.Unmarshal(data, &agents); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return agents, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, nil, &APIError{
			StatusCode: resp.StatusCode,
			RequestID:  resp.Header.Get(requestIDHeader),
			Message:    string(bytes.TrimSpace(data)),
		}
	}
	return resp, data, nil
}
