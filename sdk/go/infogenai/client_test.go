package infogenai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGateway(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return client
}

func TestSendPostsFormBody(t *testing.T) {
	client := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, DefaultPath, r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		w.Header().Set("X-Request-ID", "rid-1")
		_, _ = w.Write([]byte("Available agents:\na - D1\nb - D2"))
	})

	resp, err := client.Send(context.Background(), "list_agents")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "rid-1", resp.RequestID)

	text, err := client.ListAgents(context.Background())
	require.NoError(t, err)
	assert.Contains(t, text, "b - D2")
}

func TestAnalyzeParsesCombinedData(t *testing.T) {
	client := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "some article", r.PostFormValue("Body"))
		_, _ = w.Write([]byte("Combined RAG Data:\n" + `{"a": {"score": 1}, "b": "café"}` +
			"\n\nAnalysis:\nTrustworthiness analysis will be implemented here."))
	})

	analysis, err := client.Analyze(context.Background(), "some article")
	require.NoError(t, err)
	assert.JSONEq(t, `{"score": 1}`, string(analysis.Results["a"]))
	assert.JSONEq(t, `"café"`, string(analysis.Results["b"]))
	assert.Equal(t, "Trustworthiness analysis will be implemented here.", analysis.Summary)
}

func TestAnalyzeReportsAgentErrors(t *testing.T) {
	status := http.StatusOK
	client := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("Error processing your prompt: model offline"))
	})

	_, err := client.Analyze(context.Background(), "text")
	var agentErr *AgentError
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, "model offline", agentErr.Message)

	status = http.StatusInternalServerError
	_, err = client.Analyze(context.Background(), "text")
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, "model offline", agentErr.Message)
}

func TestAnalyzeRejectsCommands(t *testing.T) {
	client := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("no request expected")
	})
	_, err := client.Analyze(context.Background(), " system_prompt ")
	assert.True(t, errors.Is(err, ErrCommandText))
}

func TestAgentsAndAPIError(t *testing.T) {
	client := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/agents":
			_, _ = w.Write([]byte(`[{"name":"a","description":"D1"}]`))
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	agents, err := client.Agents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Agent{{Name: "a", Description: "D1"}}, agents)

	_, err = client.Send(context.Background(), "x")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusMethodNotAllowed, apiErr.StatusCode)
	assert.Equal(t, "method not allowed", apiErr.Message)
}

func TestNewClientValidatesURL(t *testing.T) {
	_, err := NewClient("localhost")
	require.Error(t, err)
	_, err = NewClient("http://example.com", WithPath("/custom"))
	require.NoError(t, err)
}
