// Package events publishes one metadata-only record per dispatched request.
// Events never carry article text or agent outputs.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Event 描述一次分发的元数据。
type Event struct {
	RequestID    string    `json:"request_id"`
	Kind         string    `json:"kind"`
	Outcome      string    `json:"outcome"`
	Invoked      []string  `json:"invoked,omitempty"`
	Failed       []string  `json:"failed,omitempty"`
	ArticleBytes int       `json:"article_bytes"`
	DurationMS   int64     `json:"duration_ms"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher 负责投递分发事件。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop 丢弃所有事件。
type Nop struct{}

// Publish 实现 Publisher。
func (Nop) Publish(context.Context, Event) error { return nil }

// Close 实现 Publisher。
func (Nop) Close() error { return nil }

// Fanout 将事件广播给多个发布器。
type Fanout struct {
	publishers []Publisher
}

// NewFanout 创建 Fanout，忽略 nil 发布器。
func NewFanout(publishers ...Publisher) *Fanout {
	set := make([]Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p == nil {
			continue
		}
		set = append(set, p)
	}
	return &Fanout{publishers: set}
}

// Publish 将事件投递到全部发布器，汇总所有错误。
func (f *Fanout) Publish(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	var errs []error
	for i, p := range f.publishers {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("publisher %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Close 关闭全部发布器。
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, p := range f.publishers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}
