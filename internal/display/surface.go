// 包 display：展示面契约与适配实现
// 背景：核心逻辑只向固定的展示槽位写值（ip/国家/地区/城市/ISP/时区/坐标/精度徽标/错误横幅/加载指示/启停控件），
// 从不读取渲染面；这里提供内存快照（测试与状态端点）与 WebSocket 推送两种落地
package display

// Surface：展示面契约
// 约束：错误横幅是单槽位、后写覆盖先写；清除必须显式调用，成功操作不隐式清错
type Surface interface {
	SetField(name, value string)
	SetAccuracy(meters float64, visible bool)
	SetError(msg string)
	ClearError()
	SetLoading(on bool)
	SetControls(startEnabled, stopEnabled bool)
	SetTracking(active bool)
}

// 展示字段槽位名：与前端渲染面的约定一致
const (
	FieldIP       = "ip"
	FieldCountry  = "country"
	FieldRegion   = "region"
	FieldCity     = "city"
	FieldISP      = "isp"
	FieldTimezone = "timezone"
	FieldCoords   = "coords"
)

// Multi：把一次写入扇出到多个展示面（快照 + 推送并行时使用）
type Multi []Surface

func (m Multi) SetField(name, value string) {
	for _, s := range m {
		s.SetField(name, value)
	}
}

func (m Multi) SetAccuracy(meters float64, visible bool) {
	for _, s := range m {
		s.SetAccuracy(meters, visible)
	}
}

func (m Multi) SetError(msg string) {
	for _, s := range m {
		s.SetError(msg)
	}
}

func (m Multi) ClearError() {
	for _, s := range m {
		s.ClearError()
	}
}

func (m Multi) SetLoading(on bool) {
	for _, s := range m {
		s.SetLoading(on)
	}
}

func (m Multi) SetControls(startEnabled, stopEnabled bool) {
	for _, s := range m {
		s.SetControls(startEnabled, stopEnabled)
	}
}

func (m Multi) SetTracking(active bool) {
	for _, s := range m {
		s.SetTracking(active)
	}
}
