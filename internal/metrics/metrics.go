package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geotracker_requests_total",
		Help: "Total number of API requests",
	})
	RequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geotracker_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	SamplesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geotracker_stream_samples_total",
		Help: "Total position stream samples processed",
	})
	StreamErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geotracker_stream_errors_total",
		Help: "Total position stream errors by classification",
	}, []string{"code"})
	SessionsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geotracker_sessions_started_total",
		Help: "Total live tracking sessions started",
	})
	SessionsStoppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geotracker_sessions_stopped_total",
		Help: "Total live tracking sessions stopped",
	})
	LookupRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geotracker_lookup_requests_total",
		Help: "Total IP lookup requests by provider",
	}, []string{"provider"})
	LookupFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geotracker_lookup_fail_total",
		Help: "Total IP lookup failures by provider",
	}, []string{"provider"})
	LookupDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geotracker_lookup_duration_ms",
		Help:    "IP lookup duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"provider"})
	RevgeoRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geotracker_revgeo_requests_total",
		Help: "Total reverse geocode lookups dispatched",
	})
	RevgeoThrottledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geotracker_revgeo_throttled_total",
		Help: "Total reverse geocode triggers dropped by the throttle window",
	})
	RevgeoFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geotracker_revgeo_fail_total",
		Help: "Total reverse geocode failures (swallowed, best effort)",
	})
	RevgeoDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geotracker_revgeo_duration_ms",
		Help:    "Reverse geocode call duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	RedisHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geotracker_redis_hits_total",
		Help: "Total redis cache hits",
	})
	RedisMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geotracker_redis_misses_total",
		Help: "Total redis cache misses",
	})
	ProviderHeartbeatTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geotracker_provider_heartbeat_total",
		Help: "Lookup provider heartbeat count by status",
	}, []string{"provider", "status"})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(SamplesTotal)
	prometheus.MustRegister(StreamErrorsTotal)
	prometheus.MustRegister(SessionsStartedTotal)
	prometheus.MustRegister(SessionsStoppedTotal)
	prometheus.MustRegister(LookupRequestsTotal)
	prometheus.MustRegister(LookupFailTotal)
	prometheus.MustRegister(LookupDurationMs)
	prometheus.MustRegister(RevgeoRequestsTotal)
	prometheus.MustRegister(RevgeoThrottledTotal)
	prometheus.MustRegister(RevgeoFailTotal)
	prometheus.MustRegister(RevgeoDurationMs)
	prometheus.MustRegister(RedisHitsTotal)
	prometheus.MustRegister(RedisMissesTotal)
	prometheus.MustRegister(ProviderHeartbeatTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
