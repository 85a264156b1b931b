package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"infogenai/internal/dispatch"
	xerrors "infogenai/internal/errors"
	"infogenai/internal/observability/metrics"
	"infogenai/pkg/logger"
	"infogenai/pkg/plugin"
)

// BodyField 是携带命令或文章内容的表单字段。
const BodyField = "Body"

// CodeBodyTooLarge 表示请求体超过上限。
const CodeBodyTooLarge xerrors.Code = "BODY_TOO_LARGE"

func init() {
	xerrors.Register(CodeBodyTooLarge, xerrors.Attributes{
		Message:  "request body too large",
		Severity: xerrors.SeverityInfo,
		Status:   http.StatusRequestEntityTooLarge,
	})
}

// Dispatcher 处理一次请求内容。
type Dispatcher interface {
	Handle(ctx context.Context, input string) dispatch.Result
}

// Catalog 提供代理列表与注册表状态。
type Catalog interface {
	List() []plugin.Summary
	Len() int
	Stale() bool
}

// Options 控制服务的监听与响应行为。
type Options struct {
	Address         string
	Path            string
	LegacyStatus    bool
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
	// MetricsPath 为空时不注册指标端点。
	MetricsPath string
}

// Server 负责暴露 HTTP 接口。
type Server struct {
	opts       Options
	dispatcher Dispatcher
	catalog    Catalog
	metrics    *metrics.Metrics
	log        *slog.Logger
	router     *mux.Router
}

// NewServer 构造 API 服务实例。metrics 可以为 nil。
func NewServer(opts Options, d Dispatcher, catalog Catalog, m *metrics.Metrics, log *slog.Logger) *Server {
	if opts.Path == "" {
		opts.Path = "/infogenai"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if log == nil {
		log = logger.Named("api")
	}
	s := &Server{
		opts:       opts,
		dispatcher: d,
		catalog:    catalog,
		metrics:    m,
		log:        log,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware, s.observeMiddleware)
	// mux 只对匹配的路由执行中间件，404 与 405 需要单独包装。
	r.MethodNotAllowedHandler = s.wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}))
	r.NotFoundHandler = s.wrap(http.NotFoundHandler())

	r.HandleFunc(s.opts.Path, s.handleDispatch).Methods(http.MethodPost)
	r.HandleFunc("/agents", s.handleAgents).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil && s.opts.MetricsPath != "" {
		r.Handle(s.opts.MetricsPath, s.metrics.Handler()).Methods(http.MethodGet)
	}
	return r
}

// Handler 返回完整的路由，便于测试与嵌入。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.opts.Address,
		Handler:           withContext(ctx, s.router),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP 服务启动", slog.String("address", s.opts.Address), slog.String("path", s.opts.Path))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("HTTP 服务关闭超时", slog.Any("error", err))
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// handleDispatch 读取表单字段 Body 并交给分发器处理。
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "dispatcher not initialized"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	body, err := s.readBodyField(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, xerrors.Wrap(CodeBodyTooLarge, err, ""))
			return
		}
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid form body"))
		return
	}

	res := s.dispatcher.Handle(r.Context(), body)
	if res.Err != nil {
		s.log.Warn("dispatch failed",
			slog.String("request_id", res.RequestID),
			slog.String("outcome", string(res.Outcome)),
			slog.Any("failed", res.Failed()),
			slog.Any("error", res.Err),
		)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(res.Status(s.opts.LegacyStatus))
	_, _ = io.WriteString(w, res.Body)
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) {
	agents := []plugin.Summary{}
	if s.catalog != nil {
		agents = append(agents, s.catalog.List()...)
	}
	writeJSON(w, http.StatusOK, agents)
}

// healthResponse 是 /healthz 的响应体。
type healthResponse struct {
	Status string `json:"status"`
	Agents int    `json:"agents"`
	Stale  bool   `json:"stale"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.catalog != nil {
		resp.Agents = s.catalog.Len()
		resp.Stale = s.catalog.Stale()
	}
	if resp.Stale {
		resp.Status = "stale"
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err *xerrors.Error) {
	http.Error(w, err.Message(), err.HTTPStatus())
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
