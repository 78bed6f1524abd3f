package ipclient

import (
	"context"
	"fmt"
	"net"
	"time"

	"geo-tracker/internal/logger"
	"geo-tracker/internal/metrics"

	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"
)

// MMDBProvider：本地 GeoLite2-City 数据源
// 背景：远端受限或离线部署时的兜底；无 ISP 字段，留给 ip2region 回填
// 约束：本地库无法自动探测来源 IP，空输入返回 ErrNotApplicable，由路由层先行解析客户端地址
type MMDBProvider struct {
	db *geoip2.Reader
}

// OpenMMDB：打开并校验 mmdb 文件
// 背景：mmdb 文件损坏时 geoip2 可能在查询期才暴露问题，启动期先用 maxminddb 做一次完整性校验
func OpenMMDB(path string) (*MMDBProvider, error) {
	raw, err := maxminddb.Open(path)
	if err != nil {
		return nil, err
	}
	if err := raw.Verify(); err != nil {
		raw.Close()
		return nil, fmt.Errorf("mmdb verify: %w", err)
	}
	raw.Close()
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	logger.With("ipclient").Info("mmdb_ready", "path", path)
	return &MMDBProvider{db: db}, nil
}

func (p *MMDBProvider) Name() string { return "mmdb" }

func (p *MMDBProvider) Close() error { return p.db.Close() }

func (p *MMDBProvider) Locate(ctx context.Context, ip string) (*Result, error) {
	if ip == "" {
		return nil, ErrNotApplicable
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("%w: bad ip %q", ErrLookupFailed, ip)
	}
	t0 := time.Now()
	metrics.LookupRequestsTotal.WithLabelValues(p.Name()).Inc()
	rec, err := p.db.City(parsed)
	if err != nil {
		metrics.LookupFailTotal.WithLabelValues(p.Name()).Inc()
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	metrics.LookupDurationMs.WithLabelValues(p.Name()).Observe(float64(time.Since(t0).Milliseconds()))
	lat := rec.Location.Latitude
	lon := rec.Location.Longitude
	if !validCoords(lat, lon) {
		metrics.LookupFailTotal.WithLabelValues(p.Name()).Inc()
		return nil, ErrInvalidCoordinates
	}
	region := ""
	if len(rec.Subdivisions) > 0 {
		region = rec.Subdivisions[0].Names["en"]
	}
	return &Result{
		IP:       ip,
		Country:  rec.Country.Names["en"],
		Region:   region,
		City:     rec.City.Names["en"],
		Timezone: rec.Location.TimeZone,
		Lat:      lat,
		Lon:      lon,
	}, nil
}

// Heartbeat：查询保留地址确认数据库句柄可用（结果本身不重要）
func (p *MMDBProvider) Heartbeat(ctx context.Context) error {
	_, err := p.db.City(net.ParseIP("8.8.8.8"))
	return err
}
