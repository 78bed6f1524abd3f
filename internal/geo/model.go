// 包 geo：定位领域的基础数据结构（采样点、行政区信息、展示状态）
// 背景：流式定位与 IP 定位产出同构的采样点，供地图层与展示层统一消费；不在此处引入任何外部调用
package geo

import (
	"fmt"
	"time"
)

// Source：采样点来源（设备连续定位或一次性 IP 定位）
type Source int

const (
	SourceGPS Source = iota
	SourceIP
)

func (s Source) String() string {
	if s == SourceIP {
		return "ip"
	}
	return "gps"
}

// Sample：一次定位采样
// 约束：创建后不可变；Accuracy 为非负的米制精度半径，0 表示未知
type Sample struct {
	Lat      float64
	Lon      float64
	Accuracy float64
	Source   Source
	At       time.Time
}

// NewSample：构造 GPS 采样点，时间戳缺省取当前时刻
func NewSample(lat, lon, accuracy float64, src Source) Sample {
	if accuracy < 0 {
		accuracy = 0
	}
	return Sample{Lat: lat, Lon: lon, Accuracy: accuracy, Source: src, At: time.Now()}
}

// Place：反地理编码产出的行政区信息，字段允许为空
type Place struct {
	City    string
	Region  string
	Country string
}

// Empty：三字段均为空时视为无效结果
func (p Place) Empty() bool {
	return p.City == "" && p.Region == "" && p.Country == ""
}

// FormatCoords：坐标对的展示格式，六位小数
func FormatCoords(lat, lon float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lon)
}
