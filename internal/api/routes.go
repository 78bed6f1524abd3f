// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"geo-tracker/internal/display"
	"geo-tracker/internal/ipclient"
	"geo-tracker/internal/logger"
	"geo-tracker/internal/metrics"
	"geo-tracker/internal/tracker"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// locateRequest：POST /locate 请求体（provider 字段保留，当前由服务端链路决定数据源）
type locateRequest struct {
	IP       string `json:"ip"`
	Provider string `json:"provider"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// incrStats：查询量统计走 Redis 计数器，缺 Redis 时静默跳过
func incrStats(rc *redis.Client, r *http.Request) {
	if rc == nil {
		return
	}
	ctx := r.Context()
	_ = rc.Incr(ctx, "stats:total").Err()
	day := "stats:day:" + time.Now().Format("20060102")
	_ = rc.Incr(ctx, day).Err()
	_ = rc.Expire(ctx, day, 48*time.Hour).Err()
}

// BuildRoutes：构建并返回 API 路由，独立 ServeMux 便于在主入口挂载到基础路径前缀
func BuildRoutes(ipc *ipclient.Client, mgr *tracker.Manager, hub *display.Hub, rc *redis.Client) *http.ServeMux {
	mux := http.NewServeMux()
	l := logger.With("api")

	// 一次性 IP 定位：空 IP 表示自动探测；缺失/零值坐标按无效输入拒绝，不落标记
	mux.HandleFunc("/locate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}
		t0 := time.Now()
		metrics.RequestsTotal.Inc()
		var req locateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		ip := normalizeIP(req.IP)
		if ip == "" {
			if v := getClientIP(r); !isLoopback(v) {
				ip = normalizeIP(v)
			}
		}
		res, err := ipc.Locate(r.Context(), ip)
		metrics.RequestDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
		if err != nil {
			if errors.Is(err, ipclient.ErrInvalidCoordinates) {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid coordinates"})
				return
			}
			l.Warn("locate_error", "ip", ip, "err", err)
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "unable to fetch location"})
			return
		}
		incrStats(rc, r)
		writeJSON(w, http.StatusOK, res)
	})

	// 自动探测访问者公网地址（页面加载时的预填充）
	mux.HandleFunc("/ip-location", func(w http.ResponseWriter, r *http.Request) {
		t0 := time.Now()
		metrics.RequestsTotal.Inc()
		ip := ""
		if v := getClientIP(r); !isLoopback(v) {
			ip = normalizeIP(v)
		}
		res, err := ipc.Locate(r.Context(), ip)
		metrics.RequestDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
		if err != nil {
			l.Warn("ip_location_error", "err", err)
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "Unable to fetch IP-based location"})
			return
		}
		incrStats(rc, r)
		writeJSON(w, http.StatusOK, res)
	})

	// 追踪会话控制：session 参数缺省时分配新标识并回传
	mux.HandleFunc("/track/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}
		sid := r.URL.Query().Get("session")
		if sid == "" {
			sid = uuid.NewString()
		}
		mgr.Get(sid).Controller.Start()
		writeJSON(w, http.StatusOK, map[string]string{"session": sid, "status": "live"})
	})

	mux.HandleFunc("/track/stop", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}
		sid := r.URL.Query().Get("session")
		if s, ok := mgr.Lookup(sid); ok {
			s.Controller.Stop()
		}
		writeJSON(w, http.StatusOK, map[string]string{"session": sid, "status": "idle"})
	})

	// 手动 IP 查询落到会话展示面（静态标记 + 描述字段）
	mux.HandleFunc("/track/locate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}
		sid := r.URL.Query().Get("session")
		if sid == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing session"})
			return
		}
		var req locateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		mgr.Get(sid).Controller.SubmitIP(normalizeIP(req.IP))
		writeJSON(w, http.StatusAccepted, map[string]string{"session": sid})
	})

	// 会话展示快照（观察端轮询或调试用）
	mux.HandleFunc("/track/state", func(w http.ResponseWriter, r *http.Request) {
		sid := r.URL.Query().Get("session")
		s, ok := mgr.Lookup(sid)
		if !ok {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown session"})
			return
		}
		writeJSON(w, http.StatusOK, s.Snapshot.State())
	})

	mux.HandleFunc("/track/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWS(mgr, hub, w, r)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		var total, today int64
		if rc != nil {
			total, _ = rc.Get(r.Context(), "stats:total").Int64()
			today, _ = rc.Get(r.Context(), "stats:day:"+time.Now().Format("20060102")).Int64()
		}
		writeJSON(w, http.StatusOK, map[string]int64{"total": total, "today": today})
	})

	return mux
}
