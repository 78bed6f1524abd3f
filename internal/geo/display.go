package geo

// Unknown：展示字段未知时的占位文本
const Unknown = "Unknown"

// DisplayState：展示层的唯一数据源
// 背景：定位采样与 IP/反地理结果都投影到这一份状态上，由展示适配层渲染；跨追踪会话保留最近值
// 约束：写入一律经过合并方法，非空字段覆盖、空字段保留，绝不回退为空
type DisplayState struct {
	IP          string
	Country     string
	Region      string
	City        string
	ISP         string
	Timezone    string
	Coords      string
	AccuracyM   float64
	HasAccuracy bool
}

// NewDisplayState：全部描述字段置为 Unknown，坐标与精度缺省为空
func NewDisplayState() DisplayState {
	return DisplayState{
		IP:       Unknown,
		Country:  Unknown,
		Region:   Unknown,
		City:     Unknown,
		ISP:      Unknown,
		Timezone: Unknown,
	}
}

// MergePlace：按字段独立合并反地理结果
// 约束：仅非空字段覆盖既有值；空字段不触碰，避免把已知行政区重置为空
func (d *DisplayState) MergePlace(p Place) {
	if p.City != "" {
		d.City = p.City
	}
	if p.Region != "" {
		d.Region = p.Region
	}
	if p.Country != "" {
		d.Country = p.Country
	}
}

// SetCoords：写入坐标展示值与精度徽标
func (d *DisplayState) SetCoords(lat, lon, accuracy float64) {
	d.Coords = FormatCoords(lat, lon)
	d.AccuracyM = accuracy
	d.HasAccuracy = true
}

// mergeField：非空即覆盖的单字段合并
func mergeField(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// MergeLookup：合并一次 IP 定位的描述字段（ip/国家/地区/城市/ISP/时区）
// 背景：追踪启动时的预填充与手动 IP 查询共用此入口；坐标由调用方按场景决定是否写入
func (d *DisplayState) MergeLookup(ip, country, region, city, isp, timezone string) {
	mergeField(&d.IP, ip)
	mergeField(&d.Country, country)
	mergeField(&d.Region, region)
	mergeField(&d.City, city)
	mergeField(&d.ISP, isp)
	mergeField(&d.Timezone, timezone)
}
