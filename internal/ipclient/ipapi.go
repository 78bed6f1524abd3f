package ipclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"geo-tracker/internal/logger"
	"geo-tracker/internal/metrics"
)

// 文档注释：ip-api.com 响应结构
// 背景：对齐 ip-api.com 的返回字段，仅解析本方案需要的国家/地区/城市/坐标/ISP/时区；
// 经纬度用指针以区分“缺失”与“零值”，两者都按无效坐标拦截
// 约束：status/message 用于业务失败判定；不在此处扩展对外响应模型
type ipapiResponse struct {
	Status     string   `json:"status"`
	Message    string   `json:"message"`
	Query      string   `json:"query"`
	Country    string   `json:"country"`
	RegionName string   `json:"regionName"`
	City       string   `json:"city"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
	ISP        string   `json:"isp"`
	Timezone   string   `json:"timezone"`
}

// RemoteProvider：ip-api.com 在线数据源
// 背景：免费、无需密钥，是原型阶段的主数据源；限速 45 次/分钟，重流量部署应切换 MMDB
type RemoteProvider struct {
	base   string
	client *http.Client
}

// NewRemoteProvider：base 为空时使用官方地址；client 为空时使用 5s 超时的默认客户端
func NewRemoteProvider(base string, client *http.Client) *RemoteProvider {
	if base == "" {
		base = "http://ip-api.com/json/"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &RemoteProvider{base: base, client: client}
}

func (p *RemoteProvider) Name() string { return "ipapi" }

// Locate：查询单个 IP 的定位信息
// 参数：ip 为空时由上游按请求来源定位（自动探测场景）
// 返回：归一化结果；业务失败（status=fail）与无效坐标分别归入 ErrLookupFailed 与 ErrInvalidCoordinates
func (p *RemoteProvider) Locate(ctx context.Context, ip string) (*Result, error) {
	q := url.Values{}
	q.Set("fields", "status,message,query,country,regionName,city,lat,lon,isp,timezone")
	u := p.base + url.PathEscape(ip) + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	t0 := time.Now()
	metrics.LookupRequestsTotal.WithLabelValues(p.Name()).Inc()
	logger.With("ipclient").Debug("ipapi_req", "ip", ip)
	resp, err := p.client.Do(req)
	if err != nil {
		logger.With("ipclient").Error("ipapi_http_error", "err", err)
		metrics.LookupFailTotal.WithLabelValues(p.Name()).Inc()
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()
	var r ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		logger.With("ipclient").Error("ipapi_decode_error", "err", err)
		metrics.LookupFailTotal.WithLabelValues(p.Name()).Inc()
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	dur := time.Since(t0).Milliseconds()
	metrics.LookupDurationMs.WithLabelValues(p.Name()).Observe(float64(dur))
	logger.With("ipclient").Debug("ipapi_resp", "ip", r.Query, "status", r.Status, "city", r.City, "duration_ms", dur)
	if r.Status != "success" {
		metrics.LookupFailTotal.WithLabelValues(p.Name()).Inc()
		msg := r.Message
		if msg == "" {
			msg = "lookup failed"
		}
		return nil, fmt.Errorf("%w: %s", ErrLookupFailed, msg)
	}
	if r.Lat == nil || r.Lon == nil || !validCoords(*r.Lat, *r.Lon) {
		metrics.LookupFailTotal.WithLabelValues(p.Name()).Inc()
		return nil, ErrInvalidCoordinates
	}
	return &Result{
		IP:       r.Query,
		Country:  r.Country,
		Region:   r.RegionName,
		City:     r.City,
		ISP:      r.ISP,
		Timezone: r.Timezone,
		Lat:      *r.Lat,
		Lon:      *r.Lon,
	}, nil
}

// Heartbeat：访问上游基础路径确认连通性
func (p *RemoteProvider) Heartbeat(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+"?fields=status", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
