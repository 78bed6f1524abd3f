// 包 ipclient：IP 定位客户端（远端 ip-api 契约为主、本地 MMDB 兜底、ip2region 回填）
// 背景：追踪启动时的预填充与手动 IP 查询共用这一条链路；
// 数据源抽象为同构 Provider，顺序尝试，首个有效结果即返回
package ipclient

import (
	"context"
	"errors"

	"geo-tracker/internal/geo"
)

// 错误分类：调用方依 errors.Is 决定向用户呈现还是中止操作
var (
	// ErrInvalidCoordinates：响应缺失或零值经纬度，按无效输入处理，绝不静默接受
	ErrInvalidCoordinates = errors.New("invalid coordinates in lookup response")
	// ErrLookupFailed：上游失败（网络错误或业务失败响应）
	ErrLookupFailed = errors.New("ip lookup failed")
	// ErrNotApplicable：该数据源不支持此输入（如本地库无法自动探测来源 IP）
	ErrNotApplicable = errors.New("provider not applicable")
)

// Result：一次 IP 定位的归一化结果
type Result struct {
	IP       string  `json:"ip"`
	Country  string  `json:"country"`
	Region   string  `json:"region"`
	City     string  `json:"city"`
	ISP      string  `json:"isp"`
	Timezone string  `json:"timezone"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

// Sample：转换为 IP 来源的采样点（静态标记使用）
func (r *Result) Sample() geo.Sample {
	return geo.NewSample(r.Lat, r.Lon, 0, geo.SourceIP)
}

// validCoords：经纬度任一为零或越界即视为无效
// 背景：上游把缺失坐标序列化为零值，单边为零同样不可信，不能在这类坐标上落标记
func validCoords(lat, lon float64) bool {
	if lat == 0 || lon == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Provider：数据源契约
// 约束：Locate 为一次性调用，不做重试与跨调用缓存；缓存在上层 Client 统一处理
type Provider interface {
	Name() string
	Locate(ctx context.Context, ip string) (*Result, error)
	Heartbeat(ctx context.Context) error
}
