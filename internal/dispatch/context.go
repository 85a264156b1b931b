package dispatch

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// requestIDKey 是上下文中存储请求 ID 的键类型。
type requestIDKey struct{}

// NewRequestID 生成新的请求 ID。
func NewRequestID() string {
	return uuid.NewString()
}

// WithRequestID 将请求 ID 写入上下文，空值时保持原样。
func WithRequestID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext 返回上下文中的请求 ID，代理也可以借此关联日志。
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
