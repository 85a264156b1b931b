package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"infogenai/internal/dispatch"
)

// RequestIDHeader 是请求 ID 的请求头与响应头。
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// requestIDMiddleware 复用客户端提供的请求 ID，否则生成新的 ID。
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = dispatch.NewRequestID()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(dispatch.WithRequestID(r.Context(), id)))
	})
}

// unmatchedRoute 是未匹配任何路由的请求使用的指标标签。
const unmatchedRoute = "unmatched"

// wrap 为路由之外的处理器套上请求 ID 与观测中间件。
func (s *Server) wrap(h http.Handler) http.Handler {
	return s.requestIDMiddleware(s.observeMiddleware(h))
}

// statusRecorder 记录写出的状态码。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// observeMiddleware 输出访问日志并记录 HTTP 指标。
func (s *Server) observeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		route := unmatchedRoute
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		elapsed := time.Since(start)
		s.metrics.ObserveHTTPRequest(route, r.Method, status, elapsed)
		s.log.Info("http request",
			slog.String("request_id", dispatch.RequestIDFromContext(r.Context())),
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Duration("duration", elapsed),
			slog.String("remote", r.RemoteAddr),
		)
	})
}
