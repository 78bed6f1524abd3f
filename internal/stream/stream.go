// 包 stream：设备连续定位源的订阅契约与推送实现
// 背景：浏览器端的定位采样通过 WebSocket 推送到服务端，这里抽象为可订阅的采样源；
// 订阅者（追踪控制器）在单一事件通道上按发射顺序消费采样与错误
package stream

import (
	"time"

	"geo-tracker/internal/geo"
)

// ErrorCode：采样错误分类（与设备定位 API 的错误码对齐）
type ErrorCode int

const (
	CodePermissionDenied ErrorCode = iota + 1
	CodePositionUnavailable
	CodeTimeout
)

func (c ErrorCode) String() string {
	switch c {
	case CodePermissionDenied:
		return "permission_denied"
	case CodePositionUnavailable:
		return "position_unavailable"
	case CodeTimeout:
		return "timeout"
	}
	return "unknown"
}

// Error：一次订阅内不可恢复的流错误
// 约束：任一错误都要求调用方取消订阅；本包不做自动重试
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Code.String() + ": " + e.Message
	}
	return e.Code.String()
}

// Event：订阅通道上的类型化事件，采样与错误二选一
type Event struct {
	Sample *geo.Sample
	Err    *Error
}

// Options：订阅参数
// 约束：MaxCachedAge 恒为 0（不复用陈旧定位）；FixTimeout 为单次定位获取的看门狗超时
type Options struct {
	HighAccuracy bool
	MaxCachedAge time.Duration
	FixTimeout   time.Duration
}

// DefaultOptions：高精度、不缓存、10 秒单次超时
func DefaultOptions() Options {
	return Options{HighAccuracy: true, MaxCachedAge: 0, FixTimeout: 10 * time.Second}
}

// Subscription：一次订阅的句柄
// 背景：Cancel 之后通道不再投递新事件；已缓冲事件由消费方通过活性检查丢弃
type Subscription struct {
	id     string
	events chan Event
	cancel func(id string)
}

func (s *Subscription) ID() string { return s.id }

// Events：单消费者事件通道
func (s *Subscription) Events() <-chan Event { return s.events }

// Cancel：取消订阅，可重复调用
func (s *Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel(s.id)
	}
}

// Source：采样源契约
type Source interface {
	Subscribe(opts Options) (*Subscription, error)
}
