package ipclient

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"geo-tracker/internal/logger"
	"geo-tracker/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// Client：IP 定位查询入口
// 背景：按注册表顺序走数据源链，首个有效结果即返回；命中后做 ip2region 回填与 Redis 缓存
// 约束：单次调用无重试；空输入（自动探测）只有远端数据源能处理，本地源返回 ErrNotApplicable 被跳过
type Client struct {
	reg      *Registry
	backfill *Backfill
	rc       *redis.Client
	cacheTTL time.Duration
}

func NewClient(reg *Registry, backfill *Backfill, rc *redis.Client, cacheTTL time.Duration) *Client {
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	return &Client{reg: reg, backfill: backfill, rc: rc, cacheTTL: cacheTTL}
}

// Locate：查询 IP 定位
// 参数：ip 为空表示自动探测调用方公网地址
// 返回：无效坐标与业务失败按 ipclient 的错误分类返回，调用方据此决定呈现方式
func (c *Client) Locate(ctx context.Context, ip string) (*Result, error) {
	if ip != "" && c.rc != nil {
		if s, _ := c.rc.Get(ctx, "ip:"+ip).Result(); s != "" {
			var cached Result
			if err := json.Unmarshal([]byte(s), &cached); err == nil {
				metrics.RedisHitsTotal.Inc()
				return &cached, nil
			}
		}
		metrics.RedisMissesTotal.Inc()
	}
	var lastErr error
	for _, p := range c.reg.Healthy() {
		res, err := p.Locate(ctx, ip)
		if err != nil {
			if errors.Is(err, ErrNotApplicable) {
				continue
			}
			// 无效坐标属于确定性失败，换数据源不会改善，直接上抛
			if errors.Is(err, ErrInvalidCoordinates) {
				return nil, err
			}
			lastErr = err
			continue
		}
		c.finish(ctx, res)
		return res, nil
	}
	if lastErr == nil {
		lastErr = ErrLookupFailed
	}
	return nil, lastErr
}

// finish：回填空字段并写缓存
func (c *Client) finish(ctx context.Context, res *Result) {
	c.backfill.Apply(res)
	if c.rc != nil && res.IP != "" {
		if b, err := json.Marshal(res); err == nil {
			if err := c.rc.Set(ctx, "ip:"+res.IP, string(b), c.cacheTTL).Err(); err != nil {
				logger.With("ipclient").Debug("cache_set_error", "err", err)
			}
		}
	}
}
