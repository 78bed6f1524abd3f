// 包 config：追踪服务的文件配置（config.yml）加载与校验
// 背景：地址与开关类配置沿用环境变量，而追踪行为参数（节流间隔、定位超时、缩放下限、轨迹上限）
// 需要集中成文件配置并做结构校验，避免散落在各处的魔法数字
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ServerConfig：监听与静态资源
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	APIBase string `yaml:"api_base"`
	UIDir   string `yaml:"ui_dir"`
}

// TrackerConfig：追踪控制器行为参数
// 约束：trail_limit 为 0 表示轨迹无上限（保持会话内单调增长的语义）；
// 长时运行的会话会持续占用内存，是否封顶由部署方在此显式决定
type TrackerConfig struct {
	RevgeoIntervalSeconds int `yaml:"revgeo_interval_seconds" validate:"min=1"`
	FixTimeoutSeconds     int `yaml:"fix_timeout_seconds" validate:"min=1"`
	ZoomFloor             int `yaml:"zoom_floor" validate:"min=1,max=20"`
	TrailLimit            int `yaml:"trail_limit" validate:"min=0"`
}

// LookupConfig：IP 定位数据源
// 背景：remote 为主（ip-api.com 契约），mmdb 为本地兜底，ip2region 仅做地区/ISP 回填
type LookupConfig struct {
	IPAPIURL        string `yaml:"ipapi_url" validate:"required,url"`
	MMDBPath        string `yaml:"mmdb_path"`
	IP2RegionPath   string `yaml:"ip2region_path"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds" validate:"min=0"`
}

// RevgeoConfig：反地理编码服务
type RevgeoConfig struct {
	URL             string `yaml:"url" validate:"required,url"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds" validate:"min=0"`
}

type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Tracker TrackerConfig `yaml:"tracker"`
	Lookup  LookupConfig  `yaml:"lookup"`
	Revgeo  RevgeoConfig  `yaml:"revgeo"`
}

// Default：内置缺省值，文件缺失时直接可用
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{Addr: ":8080", APIBase: "/api", UIDir: "ui/dist"},
		Tracker: TrackerConfig{
			RevgeoIntervalSeconds: 5,
			FixTimeoutSeconds:     10,
			ZoomFloor:             13,
			TrailLimit:            0,
		},
		Lookup: LookupConfig{
			IPAPIURL:        "http://ip-api.com/json/",
			CacheTTLSeconds: 86400,
		},
		Revgeo: RevgeoConfig{
			URL:             "https://nominatim.openstreetmap.org/reverse",
			CacheTTLSeconds: 3600,
		},
	}
}

// Load：读取并校验配置文件，再叠加环境变量覆盖
// 背景：文件不存在时回退到缺省配置（单机试跑零配置可用）；解析或校验失败则返回错误而非带病启动
func Load(path string) (AppConfig, error) {
	cfg := Default()
	if path == "" {
		path = "config.yml"
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}
	applyEnv(&cfg)
	fillDefaults(&cfg)
	v := validator.New()
	if err := v.Struct(cfg.Tracker); err != nil {
		return cfg, err
	}
	if err := v.Struct(cfg.Lookup); err != nil {
		return cfg, err
	}
	if err := v.Struct(cfg.Revgeo); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv：环境变量覆盖（地址类配置保留环境变量习惯）
func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("API_BASE"); v != "" {
		cfg.Server.APIBase = v
	}
	if v := os.Getenv("UI_DIST"); v != "" {
		cfg.Server.UIDir = v
	}
	if v := os.Getenv("MMDB_PATH"); v != "" {
		cfg.Lookup.MMDBPath = v
	}
	if v := os.Getenv("IP2REGION_V4_PATH"); v != "" {
		cfg.Lookup.IP2RegionPath = v
	}
	if v := os.Getenv("IPAPI_URL"); v != "" {
		cfg.Lookup.IPAPIURL = v
	}
	if v := os.Getenv("REVGEO_URL"); v != "" {
		cfg.Revgeo.URL = v
	}
}

// fillDefaults：yaml 显式写 0 或留空时回填缺省，避免校验直接失败
func fillDefaults(cfg *AppConfig) {
	d := Default()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = d.Server.Addr
	}
	if cfg.Server.APIBase == "" {
		cfg.Server.APIBase = d.Server.APIBase
	}
	if cfg.Server.UIDir == "" {
		cfg.Server.UIDir = d.Server.UIDir
	}
	if cfg.Tracker.RevgeoIntervalSeconds == 0 {
		cfg.Tracker.RevgeoIntervalSeconds = d.Tracker.RevgeoIntervalSeconds
	}
	if cfg.Tracker.FixTimeoutSeconds == 0 {
		cfg.Tracker.FixTimeoutSeconds = d.Tracker.FixTimeoutSeconds
	}
	if cfg.Tracker.ZoomFloor == 0 {
		cfg.Tracker.ZoomFloor = d.Tracker.ZoomFloor
	}
	if cfg.Lookup.IPAPIURL == "" {
		cfg.Lookup.IPAPIURL = d.Lookup.IPAPIURL
	}
	if cfg.Lookup.CacheTTLSeconds == 0 {
		cfg.Lookup.CacheTTLSeconds = d.Lookup.CacheTTLSeconds
	}
	if cfg.Revgeo.URL == "" {
		cfg.Revgeo.URL = d.Revgeo.URL
	}
	if cfg.Revgeo.CacheTTLSeconds == 0 {
		cfg.Revgeo.CacheTTLSeconds = d.Revgeo.CacheTTLSeconds
	}
}

// RevgeoInterval：节流间隔的时长形式
func (c TrackerConfig) RevgeoInterval() time.Duration {
	return time.Duration(c.RevgeoIntervalSeconds) * time.Second
}

// FixTimeout：单次定位获取超时的时长形式
func (c TrackerConfig) FixTimeout() time.Duration {
	return time.Duration(c.FixTimeoutSeconds) * time.Second
}
