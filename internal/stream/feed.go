package stream

import (
	"sync"
	"time"

	"geo-tracker/internal/geo"
	"geo-tracker/internal/logger"
	"geo-tracker/internal/metrics"

	"github.com/google/uuid"
)

// feedSub：Feed 内部的订阅记录
// 背景：watchdog 实现单次定位获取超时：每次采样重置计时，超时则投递 timeout 错误事件
type feedSub struct {
	events   chan Event
	watchdog *time.Timer
	opts     Options
}

// Feed：推送式采样源
// 背景：WebSocket 接入层把设备上报写入 Feed，Feed 扇出给所有订阅；
// 测试场景下直接调用 Push/Fail 即可回放采样序列，无需真实设备
// 约束：通道带缓冲且发送非阻塞，慢消费者丢弃并记日志，不阻塞接入层
type Feed struct {
	mu     sync.Mutex
	subs   map[string]*feedSub
	closed bool
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[string]*feedSub)}
}

// Subscribe：创建订阅
// 约束：FixTimeout 为 0 时不启动看门狗；订阅后若超时未收到首个采样同样触发 timeout
func (f *Feed) Subscribe(opts Options) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	fs := &feedSub{events: make(chan Event, 32), opts: opts}
	if opts.FixTimeout > 0 {
		fs.watchdog = time.AfterFunc(opts.FixTimeout, func() {
			f.timeoutFire(id)
		})
	}
	f.subs[id] = fs
	logger.With("stream").Debug("feed_subscribe", "id", id, "high_accuracy", opts.HighAccuracy, "fix_timeout", opts.FixTimeout)
	return &Subscription{id: id, events: fs.events, cancel: f.unsubscribe}, nil
}

// timeoutFire：看门狗触发，投递 timeout 流错误
func (f *Feed) timeoutFire(id string) {
	f.mu.Lock()
	fs, ok := f.subs[id]
	f.mu.Unlock()
	if !ok {
		return
	}
	f.deliver(fs, Event{Err: &Error{Code: CodeTimeout, Message: "no position fix within timeout"}})
}

// Push：设备采样入口，按发射顺序扇出到全部订阅
func (f *Feed) Push(lat, lon, accuracy float64) {
	s := geo.NewSample(lat, lon, accuracy, geo.SourceGPS)
	f.mu.Lock()
	for _, fs := range f.subs {
		if fs.watchdog != nil {
			fs.watchdog.Reset(fs.opts.FixTimeout)
		}
		f.deliver(fs, Event{Sample: &s})
	}
	f.mu.Unlock()
}

// Fail：设备侧错误入口（权限拒绝、定位不可用等）
func (f *Feed) Fail(code ErrorCode, msg string) {
	f.mu.Lock()
	for _, fs := range f.subs {
		f.deliver(fs, Event{Err: &Error{Code: code, Message: msg}})
	}
	f.mu.Unlock()
}

// deliver：非阻塞投递，满则丢弃
func (f *Feed) deliver(fs *feedSub, ev Event) {
	select {
	case fs.events <- ev:
	default:
		logger.With("stream").Warn("feed_event_dropped", "is_err", ev.Err != nil)
	}
	if ev.Err != nil {
		metrics.StreamErrorsTotal.WithLabelValues(ev.Err.Code.String()).Inc()
	}
}

// unsubscribe：移除订阅并停掉看门狗
// 约束：不关闭事件通道，避免与正在投递的 goroutine 竞争；消费方以订阅活性判断是否丢弃残留事件
func (f *Feed) unsubscribe(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fs, ok := f.subs[id]
	if !ok {
		return
	}
	if fs.watchdog != nil {
		fs.watchdog.Stop()
	}
	delete(f.subs, id)
	logger.With("stream").Debug("feed_unsubscribe", "id", id)
}

// Active：当前订阅数（测试与状态端点使用）
func (f *Feed) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
