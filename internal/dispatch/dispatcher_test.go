package dispatch

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "infogenai/internal/errors"
	"infogenai/internal/events"
	"infogenai/pkg/plugin"
)

type stubAgent struct {
	desc string
	out  any
	err  error
	wait time.Duration
	seen []string
}

func (a *stubAgent) Description() string { return a.desc }

func (a *stubAgent) Process(ctx context.Context, article string) (any, error) {
	a.seen = append(a.seen, article)
	if a.wait > 0 {
		select {
		case <-time.After(a.wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return a.out, a.err
}

type silentAgent struct{}

type panickyAgent struct{}

func (panickyAgent) Process(context.Context, string) (any, error) { panic("boom") }

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *capturePublisher) Close() error { return nil }

type countingObserver struct {
	agents     map[string]string
	dispatches []string
}

func (o *countingObserver) ObserveAgent(agent, outcome string, _ time.Duration) {
	if o.agents == nil {
		o.agents = make(map[string]string)
	}
	o.agents[agent] = outcome
}

func (o *countingObserver) ObserveDispatch(kind, outcome string, _ time.Duration) {
	o.dispatches = append(o.dispatches, kind+"/"+outcome)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newRegistry(t *testing.T, agents ...any) *plugin.Registry {
	t.Helper()
	reg := plugin.NewRegistry(plugin.WithLogger(discard()))
	for i := 0; i+1 < len(agents); i += 2 {
		require.NoError(t, reg.Register(agents[i].(string), agents[i+1]))
	}
	reg.Seal()
	return reg
}

func newDispatcher(reg Source, opts ...Option) *Dispatcher {
	opts = append([]Option{WithLogger(discard(), discard())}, opts...)
	return New(reg, opts...)
}

func TestListAgents(t *testing.T) {
	reg := newRegistry(t,
		"a", &stubAgent{desc: "D1"},
		"b", &stubAgent{desc: "D2"},
		"c", silentAgent{},
	)
	res := newDispatcher(reg).Handle(context.Background(), "  list_agents\n")

	assert.Equal(t, KindList, res.Kind)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "Available agents:\na - D1\nb - D2\nc - No description provided", res.Body)
}

func TestSystemPromptIsCached(t *testing.T) {
	reg := newRegistry(t, "a", &stubAgent{desc: "D1"}, "b", &stubAgent{desc: "D2"})
	d := newDispatcher(reg)

	res := d.Handle(context.Background(), "system_prompt")
	assert.Equal(t, KindPrompt, res.Kind)
	assert.Equal(t, d.Prompt(), res.Body)
	assert.Contains(t, res.Body, "trustworthiness")
	assert.Equal(t, 1, strings.Count(res.Body, "1. a - D1"))
	assert.Equal(t, 1, strings.Count(res.Body, "2. b - D2"))
}

func TestAnalyzeCombinesResultsInRegistryOrder(t *testing.T) {
	first := &stubAgent{desc: "scores", out: map[string]any{"score": 1}}
	second := &stubAgent{out: []string{"café", "<b>"}}
	reg := newRegistry(t, "zeta", first, "alpha", second, "quiet", silentAgent{})

	res := newDispatcher(reg).Handle(context.Background(), "  Some article text ")

	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Nil(t, res.Err)
	assert.Equal(t, []string{"zeta", "alpha"}, res.Invoked)
	assert.Equal(t,
		"Combined RAG Data:\n"+`{"zeta": {"score": 1}, "alpha": ["caf\u00e9", "<b>"]}`+
			"\n\nAnalysis:\nTrustworthiness analysis will be implemented here.",
		res.Body)
	assert.Equal(t, []string{"Some article text"}, first.seen)
}

func TestAnalyzeWithoutProcessors(t *testing.T) {
	reg := newRegistry(t, "quiet", silentAgent{})
	res := newDispatcher(reg).Handle(context.Background(), "hello")

	assert.Equal(t, OutcomeNoAgents, res.Outcome)
	assert.Contains(t, res.Body, "Combined RAG Data:\n{}\n\nAnalysis:")
	assert.Equal(t, http.StatusOK, res.Status(false))
}

func TestAgentErrorStopsAtFirstFailure(t *testing.T) {
	after := &stubAgent{out: 1}
	reg := newRegistry(t,
		"a", &stubAgent{err: errors.New("model offline")},
		"b", after,
	)
	res := newDispatcher(reg).Handle(context.Background(), "text")

	assert.Equal(t, OutcomeAgentFailed, res.Outcome)
	assert.Equal(t, "Error processing your prompt: model offline", res.Body)
	assert.Empty(t, after.seen)
	assert.Equal(t, []string{"a"}, res.Failed())
	assert.Equal(t, CodeAgentProcessFailed, xerrors.CodeOf(res.Err))
	assert.Equal(t, http.StatusOK, res.Status(true))
	assert.Equal(t, http.StatusInternalServerError, res.Status(false))
}

func TestContinueOnErrorReportsEveryFailure(t *testing.T) {
	last := &stubAgent{out: 1}
	reg := newRegistry(t,
		"a", &stubAgent{err: errors.New("first")},
		"b", panickyAgent{},
		"c", last,
	)
	res := newDispatcher(reg, WithContinueOnError(true)).Handle(context.Background(), "text")

	assert.Equal(t, OutcomeAgentFailed, res.Outcome)
	assert.Equal(t, "Error processing your prompt: agent a: first; agent b: panic: boom", res.Body)
	assert.Equal(t, []string{"text"}, last.seen)
	assert.Equal(t, []string{"a", "b", "c"}, res.Invoked)
}

func TestAgentTimeout(t *testing.T) {
	reg := newRegistry(t, "slow", &stubAgent{wait: time.Second})
	obs := &countingObserver{}
	res := newDispatcher(reg, WithAgentTimeout(20*time.Millisecond), WithObserver(obs)).
		Handle(context.Background(), "text")

	assert.Equal(t, OutcomeAgentFailed, res.Outcome)
	assert.True(t, strings.HasPrefix(res.Body, "Error processing your prompt: timed out after 20ms"))
	assert.Equal(t, CodeAgentTimeout, xerrors.CodeOf(res.Err))
	assert.Equal(t, http.StatusGatewayTimeout, res.Status(false))
	assert.Equal(t, "timeout", obs.agents["slow"])
	assert.Equal(t, []string{"analyze/agent_failed"}, obs.dispatches)
}

func TestUnserializableResult(t *testing.T) {
	reg := newRegistry(t, "bad", &stubAgent{out: make(chan int)})
	res := newDispatcher(reg).Handle(context.Background(), "text")

	assert.Equal(t, OutcomeAgentFailed, res.Outcome)
	assert.True(t, strings.HasPrefix(res.Body, "Error processing your prompt: "))
	assert.Equal(t, CodeResultSerializationFailed, xerrors.CodeOf(res.Err))
}

func TestEventsAreMetadataOnly(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker down")}
	reg := newRegistry(t, "a", &stubAgent{out: "secret verdict"})
	d := newDispatcher(reg, WithPublisher(pub))

	ctx := WithRequestID(context.Background(), "req-42")
	res := d.Handle(ctx, "confidential article")
	require.Equal(t, OutcomeSuccess, res.Outcome, "publish errors must not change the response")
	assert.Equal(t, "req-42", res.RequestID)

	require.Len(t, pub.events, 1)
	e := pub.events[0]
	assert.Equal(t, "req-42", e.RequestID)
	assert.Equal(t, "analyze", e.Kind)
	assert.Equal(t, []string{"a"}, e.Invoked)
	assert.Equal(t, len("confidential article"), e.ArticleBytes)
}

func TestRequestIDContext(t *testing.T) {
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
	ctx := WithRequestID(context.Background(), "  ")
	assert.Equal(t, "", RequestIDFromContext(ctx))
	assert.NotEqual(t, NewRequestID(), NewRequestID())
}
