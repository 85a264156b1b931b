package events

import (
	"context"
	"log/slog"

	"infogenai/pkg/logger"
)

// LogPublisher 把事件写入结构化日志。
type LogPublisher struct {
	log *slog.Logger
}

// NewLogPublisher 创建日志发布器。
func NewLogPublisher(l *slog.Logger) *LogPublisher {
	if l == nil {
		l = logger.Named("events")
	}
	return &LogPublisher{log: l}
}

// Publish 实现 Publisher。
func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.log.LogAttrs(ctx, slog.LevelInfo, "dispatch event",
		slog.String("request_id", event.RequestID),
		slog.String("kind", event.Kind),
		slog.String("outcome", event.Outcome),
		slog.Any("invoked", event.Invoked),
		slog.Any("failed", event.Failed),
		slog.Int("article_bytes", event.ArticleBytes),
		slog.Int64("duration_ms", event.DurationMS),
		slog.Time("occurred_at", event.OccurredAt),
	)
	return nil
}

// Close 实现 Publisher。
func (p *LogPublisher) Close() error { return nil }
