// 包 revgeo：反地理编码（坐标→行政区）客户端与节流器
// 背景：追踪过程中的行政区富化属于尽力而为：失败只记日志、绝不影响主追踪流；
// 外呼按固定窗口丢弃式限流，避免高频采样打爆第三方服务
package revgeo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"geo-tracker/internal/geo"
	"geo-tracker/internal/logger"
	"geo-tracker/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// 文档注释：Nominatim 风格的 reverse 响应
// 背景：address 对象的城市字段在乡镇场景下名称不同，需要按 city→town→village→hamlet→county 依次回退
type reverseResponse struct {
	Error   string `json:"error"`
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		Hamlet  string `json:"hamlet"`
		County  string `json:"county"`
		State   string `json:"state"`
		Region  string `json:"region"`
		Country string `json:"country"`
	} `json:"address"`
}

// Client：反地理编码查询客户端
// 约束：带 Redis 热点缓存（坐标保留三位小数作键，约 百米级 粒度）；缓存不可用时直接外呼
type Client struct {
	base     string
	httpc    *http.Client
	rc       *redis.Client
	cacheTTL time.Duration
}

func NewClient(base string, httpc *http.Client, rc *redis.Client, cacheTTL time.Duration) *Client {
	if base == "" {
		base = "https://nominatim.openstreetmap.org/reverse"
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: 5 * time.Second}
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &Client{base: base, httpc: httpc, rc: rc, cacheTTL: cacheTTL}
}

func cacheKey(lat, lon float64) string {
	return "revgeo:" + strconv.FormatFloat(lat, 'f', 3, 64) + ":" + strconv.FormatFloat(lon, 'f', 3, 64)
}

// Lookup：按坐标查询行政区
func (c *Client) Lookup(ctx context.Context, lat, lon float64) (geo.Place, error) {
	var out geo.Place
	key := cacheKey(lat, lon)
	if c.rc != nil {
		if s, _ := c.rc.Get(ctx, key).Result(); s != "" {
			if err := json.Unmarshal([]byte(s), &out); err == nil {
				metrics.RedisHitsTotal.Inc()
				return out, nil
			}
		}
		metrics.RedisMissesTotal.Inc()
	}
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"?"+q.Encode(), nil)
	if err != nil {
		return out, err
	}
	// Nominatim 要求标识调用方
	req.Header.Set("User-Agent", "geo-tracker/1.0")
	t0 := time.Now()
	metrics.RevgeoRequestsTotal.Inc()
	resp, err := c.httpc.Do(req)
	if err != nil {
		metrics.RevgeoFailTotal.Inc()
		return out, err
	}
	defer resp.Body.Close()
	var r reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		metrics.RevgeoFailTotal.Inc()
		return out, err
	}
	metrics.RevgeoDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	if r.Error != "" {
		metrics.RevgeoFailTotal.Inc()
		return out, fmt.Errorf("reverse geocode: %s", r.Error)
	}
	out.City = firstNonEmpty(r.Address.City, r.Address.Town, r.Address.Village, r.Address.Hamlet, r.Address.County)
	out.Region = firstNonEmpty(r.Address.State, r.Address.Region, r.Address.County)
	out.Country = r.Address.Country
	logger.With("revgeo").Debug("reverse_geo_resp", "lat", lat, "lon", lon, "city", out.City, "country", out.Country)
	if c.rc != nil {
		if b, err := json.Marshal(out); err == nil {
			_ = c.rc.Set(ctx, key, string(b), c.cacheTTL).Err()
		}
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
