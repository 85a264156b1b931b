package dispatch

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	xerrors "infogenai/internal/errors"
	"infogenai/internal/events"
	"infogenai/internal/prompt"
	"infogenai/pkg/logger"
	"infogenai/pkg/plugin"
)

// 请求中可识别的命令。
const (
	CommandListAgents   = "list_agents"
	CommandSystemPrompt = "system_prompt"
)

const (
	listHeader     = "Available agents:\n"
	analyzeHeader  = "Combined RAG Data:\n"
	analyzeFooter  = "\n\nAnalysis:\nTrustworthiness analysis will be implemented here."
	errorPrefix    = "Error processing your prompt: "
	publishTimeout = 2 * time.Second
)

// 分发相关的错误码。
const (
	CodeAgentProcessFailed        xerrors.Code = "AGENT_PROCESS_FAILED"
	CodeAgentTimeout              xerrors.Code = "AGENT_TIMEOUT"
	CodeResultSerializationFailed xerrors.Code = "RESULT_SERIALIZATION_FAILED"
)

func init() {
	xerrors.Register(CodeAgentProcessFailed, xerrors.Attributes{
		Message:  "agent processing failed",
		Severity: xerrors.SeverityWarning,
		Status:   http.StatusInternalServerError,
	})
	xerrors.Register(CodeAgentTimeout, xerrors.Attributes{
		Message:  "agent timed out",
		Severity: xerrors.SeverityWarning,
		Status:   http.StatusGatewayTimeout,
	})
	xerrors.Register(CodeResultSerializationFailed, xerrors.Attributes{
		Message:  "agent result is not serializable",
		Severity: xerrors.SeverityWarning,
		Status:   http.StatusInternalServerError,
	})
}

// Source 是分发器依赖的注册表视图。
type Source interface {
	Records() []plugin.Record
	List() []plugin.Summary
}

// Observer 接收分发过程中的指标。
type Observer interface {
	ObserveAgent(agent, outcome string, elapsed time.Duration)
	ObserveDispatch(kind, outcome string, elapsed time.Duration)
}

// 代理调用结果的指标标签。
const (
	agentOK      = "ok"
	agentError   = "error"
	agentTimeout = "timeout"
	agentPanic   = "panic"
	agentInvalid = "unserializable"
)

// Dispatcher 根据请求内容选择列表、提示词或文章分析分支。
type Dispatcher struct {
	source          Source
	prompt          string
	agentTimeout    time.Duration
	continueOnError bool
	publisher       events.Publisher
	observer        Observer
	log             *slog.Logger
	audit           *slog.Logger
}

// Option 定义可选的 Dispatcher 配置。
type Option func(*Dispatcher)

// WithAgentTimeout 设置单个代理的处理超时时间，非正值表示不限制。
func WithAgentTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout <= 0 {
			d.agentTimeout = 0
			return
		}
		d.agentTimeout = timeout
	}
}

// WithContinueOnError 让失败的代理不再中断后续代理。
func WithContinueOnError(enabled bool) Option {
	return func(d *Dispatcher) {
		d.continueOnError = enabled
	}
}

// WithPublisher 配置分发事件的发布器。
func WithPublisher(p events.Publisher) Option {
	return func(d *Dispatcher) {
		if p != nil {
			d.publisher = p
		}
	}
}

// WithObserver 配置指标观察者。
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		d.observer = o
	}
}

// WithLogger 设置组件日志与审计日志。
func WithLogger(log, audit *slog.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
		if audit != nil {
			d.audit = audit
		}
	}
}

// New 创建 Dispatcher，系统提示词在此时生成并缓存。
func New(source Source, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		source:    source,
		publisher: events.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	if d.log == nil {
		d.log = logger.Named("dispatch")
	}
	if d.audit == nil {
		d.audit = logger.Audit()
	}
	d.prompt = prompt.Build(source.List())
	return d
}

// Prompt 返回缓存的系统提示词。
func (d *Dispatcher) Prompt() string {
	return d.prompt
}

// Handle 处理一次请求。输入会先去除首尾空白再匹配命令。
func (d *Dispatcher) Handle(ctx context.Context, input string) Result {
	start := time.Now()
	text := strings.TrimSpace(input)

	var res Result
	switch text {
	case CommandListAgents:
		res = d.listAgents()
	case CommandSystemPrompt:
		res = Result{Kind: KindPrompt, Outcome: OutcomeSuccess, Body: d.prompt}
	default:
		res = d.analyze(ctx, text)
	}

	res.RequestID = RequestIDFromContext(ctx)
	res.Duration = time.Since(start)
	d.finish(ctx, res, len(text))
	return res
}

// ListBody 生成 list_agents 命令的响应文本。
func ListBody(agents []plugin.Summary) string {
	lines := make([]string, 0, len(agents))
	for _, agent := range agents {
		lines = append(lines, agent.Name+" - "+agent.Description)
	}
	return listHeader + strings.Join(lines, "\n")
}

func (d *Dispatcher) listAgents() Result {
	return Result{
		Kind:    KindList,
		Outcome: OutcomeSuccess,
		Body:    ListBody(d.source.List()),
	}
}

func (d *Dispatcher) analyze(ctx context.Context, article string) Result {
	res := Result{Kind: KindAnalyze}
	entries := make([]ragEntry, 0)

	for _, record := range d.source.Records() {
		processor, ok := record.Instance.(plugin.Processor)
		if !ok {
			continue
		}
		res.Invoked = append(res.Invoked, record.Name)

		value, failure := d.invoke(ctx, record.Name, processor, article)
		if failure != nil {
			res.Failures = append(res.Failures, *failure)
			if res.Err == nil {
				res.Err = failure.Err
			}
			if !d.continueOnError {
				break
			}
			continue
		}
		entries = append(entries, ragEntry{name: record.Name, value: value})
	}

	if len(res.Failures) > 0 {
		res.Outcome = OutcomeAgentFailed
		res.Body = errorPrefix + failureMessage(res.Failures, d.continueOnError)
		return res
	}

	combined, err := encodeCombined(entries)
	if err != nil {
		res.Outcome = OutcomeAgentFailed
		res.Err = xerrors.Wrap(CodeResultSerializationFailed, err, "")
		res.Body = errorPrefix + err.Error()
		return res
	}

	res.Outcome = OutcomeSuccess
	if len(res.Invoked) == 0 {
		res.Outcome = OutcomeNoAgents
	}
	res.Body = analyzeHeader + string(combined) + analyzeFooter
	return res
}

// invoke 调用单个代理并立即编码其输出，任何异常都转换为 Failure。
func (d *Dispatcher) invoke(ctx context.Context, name string, processor plugin.Processor, article string) (value []byte, failure *Failure) {
	callCtx := ctx
	if d.agentTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.agentTimeout)
		defer cancel()
	}

	start := time.Now()
	outcome := agentOK
	defer func() {
		if d.observer != nil {
			d.observer.ObserveAgent(name, outcome, time.Since(start))
		}
	}()

	out, err := safeProcess(callCtx, processor, article)
	if err != nil {
		var panicked *panicError
		switch {
		case stdErrors.As(err, &panicked):
			outcome = agentPanic
			return nil, newFailure(name, CodeAgentProcessFailed, err)
		case stdErrors.Is(err, context.DeadlineExceeded):
			outcome = agentTimeout
			if d.agentTimeout > 0 {
				err = fmt.Errorf("timed out after %s: %w", d.agentTimeout, err)
			}
			return nil, newFailure(name, CodeAgentTimeout, err)
		default:
			outcome = agentError
			return nil, newFailure(name, CodeAgentProcessFailed, err)
		}
	}

	encoded, err := encodeValue(out)
	if err != nil {
		outcome = agentInvalid
		return nil, newFailure(name, CodeResultSerializationFailed, err)
	}
	return encoded, nil
}

// panicError 表示代理在处理过程中发生 panic。
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

func safeProcess(ctx context.Context, processor plugin.Processor, article string) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, &panicError{value: r}
		}
	}()
	return processor.Process(ctx, article)
}

func newFailure(agent string, code xerrors.Code, err error) *Failure {
	return &Failure{
		Agent:   agent,
		Message: err.Error(),
		Err:     xerrors.Wrap(code, err, "", xerrors.WithMetadata("agent", agent)),
	}
}

// failureMessage 在默认模式下只返回首个错误信息。
func failureMessage(failures []Failure, all bool) string {
	if !all {
		return failures[0].Message
	}
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		parts = append(parts, fmt.Sprintf("agent %s: %s", f.Agent, f.Message))
	}
	return strings.Join(parts, "; ")
}

// finish 记录审计日志、指标并发布事件。事件发布失败不影响响应。
func (d *Dispatcher) finish(ctx context.Context, res Result, articleBytes int) {
	if d.observer != nil {
		d.observer.ObserveDispatch(string(res.Kind), string(res.Outcome), res.Duration)
	}

	attrs := []any{
		slog.String("request_id", res.RequestID),
		slog.String("kind", string(res.Kind)),
		slog.String("outcome", string(res.Outcome)),
		slog.Int("article_bytes", articleBytes),
		slog.Any("invoked", res.Invoked),
		slog.Duration("duration", res.Duration),
	}
	if res.Err != nil {
		attrs = append(attrs,
			slog.Any("failed", res.Failed()),
			slog.String("code", string(xerrors.CodeOf(res.Err))),
		)
		d.audit.Warn("dispatch finished", attrs...)
	} else {
		d.audit.Info("dispatch finished", attrs...)
	}

	event := events.Event{
		RequestID:    res.RequestID,
		Kind:         string(res.Kind),
		Outcome:      string(res.Outcome),
		Invoked:      res.Invoked,
		Failed:       res.Failed(),
		ArticleBytes: articleBytes,
		DurationMS:   res.Duration.Milliseconds(),
		OccurredAt:   time.Now().UTC(),
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := d.publisher.Publish(pubCtx, event); err != nil {
		d.log.Warn("publish dispatch event failed",
			slog.String("request_id", res.RequestID),
			slog.Any("error", xerrors.Wrap(xerrors.CodePublishFailure, err, "")),
		)
	}
}
