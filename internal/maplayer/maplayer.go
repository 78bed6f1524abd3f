// 包 maplayer：地图覆盖物状态的纯投影层
// 背景：瓦片渲染交给前端地图库，服务端只维护覆盖物的权威状态（实时标记、精度圆、轨迹线、静态 IP 标记）
// 与相机参数；展示适配层把这份状态推给渲染面，业务逻辑不直接触碰任何渲染接口
package maplayer

import (
	"geo-tracker/internal/geo"
)

// DefaultZoomFloor：实时追踪时的最小缩放级别
const DefaultZoomFloor = 13

// LatLng：覆盖物使用的坐标对
type LatLng struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Marker：点标记
type Marker struct {
	Pos   LatLng `json:"pos"`
	Label string `json:"label"`
}

// Circle：精度圆，半径取采样精度（米）
type Circle struct {
	Center  LatLng  `json:"center"`
	RadiusM float64 `json:"radius_m"`
}

// Polyline：轨迹线
type Polyline struct {
	Points []LatLng `json:"points"`
}

// Camera：地图视角
type Camera struct {
	Center LatLng `json:"center"`
	Zoom   int    `json:"zoom"`
}

// Layer：覆盖物集合
// 约束：每种覆盖物至多存在一个实例；存在则就地更新，不存在则创建；
// 实时覆盖物随追踪会话生存，静态标记独立于会话、跟随最近一次 IP 查询
type Layer struct {
	Live     *Marker   `json:"live,omitempty"`
	Accuracy *Circle   `json:"accuracy,omitempty"`
	Trail    *Polyline `json:"trail,omitempty"`
	Static   *Marker   `json:"static,omitempty"`
	Cam      Camera    `json:"camera"`

	zoomFloor  int
	trailLimit int
}

// New：trailLimit 为 0 表示轨迹不设上限（保持会话内单调增长）
// 背景：无上限在长时会话下是已知的内存增长点，是否封顶由配置显式决定，这里不做隐式截断
func New(zoomFloor, trailLimit int) *Layer {
	if zoomFloor <= 0 {
		zoomFloor = DefaultZoomFloor
	}
	return &Layer{zoomFloor: zoomFloor, trailLimit: trailLimit}
}

// UpsertLive：写入一个实时采样
// 背景：首次调用创建实时标记/精度圆/轨迹头；后续调用移动标记、按新精度改圆、向轨迹追加点；
// 相机每次都重定位到采样点，缩放只抬升到下限、从不压低（保留用户手动缩小的视野）
func (l *Layer) UpsertLive(s geo.Sample) {
	p := LatLng{Lat: s.Lat, Lon: s.Lon}
	if l.Live == nil {
		l.Live = &Marker{Pos: p, Label: "You are here"}
	} else {
		l.Live.Pos = p
	}
	if l.Accuracy == nil {
		l.Accuracy = &Circle{Center: p, RadiusM: s.Accuracy}
	} else {
		l.Accuracy.Center = p
		l.Accuracy.RadiusM = s.Accuracy
	}
	if l.Trail == nil {
		l.Trail = &Polyline{}
	}
	l.Trail.Points = append(l.Trail.Points, p)
	if l.trailLimit > 0 && len(l.Trail.Points) > l.trailLimit {
		l.Trail.Points = l.Trail.Points[len(l.Trail.Points)-l.trailLimit:]
	}
	l.Cam.Center = p
	if l.Cam.Zoom < l.zoomFloor {
		l.Cam.Zoom = l.zoomFloor
	}
}

// UpsertStatic：写入最近一次 IP 查询的静态标记，替换任何既有静态标记
func (l *Layer) UpsertStatic(s geo.Sample) {
	p := LatLng{Lat: s.Lat, Lon: s.Lon}
	if l.Static == nil {
		l.Static = &Marker{Pos: p, Label: "IP location"}
	} else {
		l.Static.Pos = p
	}
	l.Cam.Center = p
}

// TeardownLive：拆除全部实时覆盖物，下一次 UpsertLive 从全新轨迹开始
// 约束：静态标记不受影响；重复调用无副作用
func (l *Layer) TeardownLive() {
	l.Live = nil
	l.Accuracy = nil
	l.Trail = nil
}

// SetZoom：用户手动缩放落地
// 约束：原样记录；低于下限的值会在下一次 UpsertLive 时被抬升，高于下限的手动视野被保留
func (l *Layer) SetZoom(z int) {
	l.Cam.Zoom = z
}

// TrailLen：当前轨迹点数
func (l *Layer) TrailLen() int {
	if l.Trail == nil {
		return 0
	}
	return len(l.Trail.Points)
}
