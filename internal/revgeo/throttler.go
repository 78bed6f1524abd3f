package revgeo

import (
	"context"
	"sync"
	"time"

	"geo-tracker/internal/geo"
	"geo-tracker/internal/logger"
	"geo-tracker/internal/metrics"
)

// Throttler：丢弃式节流的反地理编码触发器
// 背景：连续定位的采样频率远高于行政区变化的频率，窗口期内的触发直接丢弃（不排队不延迟），
// 与入口限流中间件同一取舍：丢弃而非排队
// 约束：时间戳在派发前记录，窗口自上次“派发”起算而非上次“完成”；
// 查询在独立 goroutine 执行，成功结果经 onPlace 回调交还给控制器事件循环合并
type Throttler struct {
	c        *Client
	interval time.Duration
	onPlace  func(geo.Place)

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewThrottler：interval<=0 时取 5 秒缺省窗口
func NewThrottler(c *Client, interval time.Duration, onPlace func(geo.Place)) *Throttler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Throttler{c: c, interval: interval, onPlace: onPlace, now: time.Now}
}

// Notify：采样触发入口
// 返回：是否实际派发了一次外呼（节流跳过返回 false，这是有意的静默空操作，不是错误）
func (t *Throttler) Notify(ctx context.Context, lat, lon float64) bool {
	t.mu.Lock()
	n := t.now()
	if !t.last.IsZero() && n.Sub(t.last) < t.interval {
		t.mu.Unlock()
		metrics.RevgeoThrottledTotal.Inc()
		logger.With("revgeo").Debug("reverse_geo_throttled", "lat", lat, "lon", lon)
		return false
	}
	t.last = n
	t.mu.Unlock()
	go t.run(ctx, lat, lon)
	return true
}

// run：实际外呼；失败只记日志并吞掉，富化是可选项，绝不向上冒泡
func (t *Throttler) run(ctx context.Context, lat, lon float64) {
	place, err := t.c.Lookup(ctx, lat, lon)
	if err != nil {
		logger.With("revgeo").Warn("reverse_geo_error", "lat", lat, "lon", lon, "err", err)
		return
	}
	if place.Empty() {
		return
	}
	if t.onPlace != nil {
		t.onPlace(place)
	}
}

// SetClock：注入时钟（测试用）
func (t *Throttler) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}
