package ipclient

import (
	"context"
	"sync"
	"time"

	"geo-tracker/internal/logger"
	"geo-tracker/internal/metrics"
)

// 文档注释：数据源健康状态缓存
// 背景：记录健康与最近心跳时间；查询链据此跳过不健康的数据源
type status struct {
	healthy bool
	last    time.Time
}

// 文档注释：数据源注册表
// 背景：负责 Provider 注册与心跳，维持有序的查询链；心跳异常的数据源暂时剔除，恢复后自动回归
// 约束：注册顺序即查询顺序（远端优先、本地兜底）；心跳周期默认 60s；线程安全读写
type Registry struct {
	mu         sync.RWMutex
	order      []string
	ps         map[string]Provider
	st         map[string]status
	hbInterval time.Duration
}

func NewRegistry() *Registry {
	return &Registry{ps: make(map[string]Provider), st: make(map[string]status), hbInterval: 60 * time.Second}
}

// Register：注册数据源，默认视为健康
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ps[p.Name()]; !ok {
		r.order = append(r.order, p.Name())
	}
	r.ps[p.Name()] = p
	r.st[p.Name()] = status{healthy: true, last: time.Now()}
	logger.With("ipclient").Info("provider_registered", "name", p.Name())
}

// Healthy：按注册顺序返回当前健康的数据源
func (r *Registry) Healthy() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		if r.st[name].healthy {
			out = append(out, r.ps[name])
		}
	}
	return out
}

// Start：启动心跳循环，ctx 取消时停止
func (r *Registry) Start(ctx context.Context) {
	t := time.NewTicker(r.hbInterval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				r.doHeartbeat(ctx)
			}
		}
	}()
}

func (r *Registry) doHeartbeat(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, p := range r.ps {
		hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.Heartbeat(hctx)
		cancel()
		if err != nil {
			r.st[name] = status{healthy: false, last: time.Now()}
			logger.With("ipclient").Debug("provider_heartbeat_fail", "name", name, "err", err)
			metrics.ProviderHeartbeatTotal.WithLabelValues(name, "fail").Inc()
		} else {
			r.st[name] = status{healthy: true, last: time.Now()}
			logger.With("ipclient").Debug("provider_heartbeat_ok", "name", name)
			metrics.ProviderHeartbeatTotal.WithLabelValues(name, "ok").Inc()
		}
	}
}
