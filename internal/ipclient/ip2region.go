package ipclient

import (
	"strings"

	"geo-tracker/internal/logger"

	"github.com/lionsoul2014/ip2region/binding/golang/xdb"
)

// Backfill：ip2region 地区/ISP 回填
// 背景：MMDB 的 City 库没有 ISP 维度，远端在部分地区也会缺字段；
// 用本地 xdb 做一次轻量补查，仅填充结果里仍为空的字段，不覆盖已有值
type Backfill struct {
	searcher *xdb.Searcher
}

func NewBackfill(v4Path string) (*Backfill, error) {
	s, err := xdb.NewWithFileOnly(xdb.IPv4, v4Path)
	if err != nil {
		return nil, err
	}
	logger.With("ipclient").Info("ip2region_ready", "path", v4Path)
	return &Backfill{searcher: s}, nil
}

// Apply：补查并回填空字段
// 约束：任何失败都静默跳过，回填属于尽力而为
func (b *Backfill) Apply(res *Result) {
	if b == nil || b.searcher == nil || res == nil || res.IP == "" {
		return
	}
	region, err := b.searcher.SearchByStr(res.IP)
	if err != nil || region == "" {
		return
	}
	// 形如 国家|区域|省份|城市|ISP，占位符 0 视为空
	parts := strings.Split(region, "|")
	get := func(i int) string {
		if i >= len(parts) {
			return ""
		}
		v := parts[i]
		if v == "0" || strings.EqualFold(v, "unknown") {
			return ""
		}
		return v
	}
	if res.Country == "" {
		res.Country = get(0)
	}
	if res.Region == "" {
		if v := get(2); v != "" {
			res.Region = v
		} else {
			res.Region = get(1)
		}
	}
	if res.City == "" {
		res.City = get(3)
	}
	if res.ISP == "" {
		res.ISP = get(4)
	}
}
