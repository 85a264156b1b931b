package dispatch

import (
	"net/http"
	"time"

	xerrors "infogenai/internal/errors"
)

// Kind 表示请求命中的分支。
type Kind string

const (
	KindList    Kind = "list"
	KindPrompt  Kind = "prompt"
	KindAnalyze Kind = "analyze"
)

// Outcome 描述一次分发的结果类别。
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeNoAgents    Outcome = "no_agents"
	OutcomeAgentFailed Outcome = "agent_failed"
)

// Failure 记录单个代理的失败信息。
type Failure struct {
	Agent   string
	Message string
	Err     error
}

// Result 是 Handle 的返回值，调用方据此决定传输层状态码。
type Result struct {
	RequestID string
	Kind      Kind
	Outcome   Outcome
	Body      string
	// Invoked 按调用顺序记录实际执行过的代理。
	Invoked  []string
	Failures []Failure
	// Err 为首个失败对应的统一错误，成功时为 nil。
	Err      error
	Duration time.Duration
}

// Failed 返回失败代理的名称列表。
func (r Result) Failed() []string {
	if len(r.Failures) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		names = append(names, f.Agent)
	}
	return names
}

// Status 返回 HTTP 状态码。legacy 模式下始终为 200。
func (r Result) Status(legacy bool) int {
	if legacy || r.Err == nil {
		return http.StatusOK
	}
	return xerrors.StatusOf(r.Err)
}
