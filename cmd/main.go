// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"geo-tracker/internal/api"
	"geo-tracker/internal/config"
	"geo-tracker/internal/display"
	"geo-tracker/internal/ipclient"
	"geo-tracker/internal/logger"
	"geo-tracker/internal/metrics"
	"geo-tracker/internal/middleware"
	"geo-tracker/internal/revgeo"
	"geo-tracker/internal/tracker"
	"geo-tracker/internal/utils"
	"geo-tracker/internal/version"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	l.Debug("config_loaded",
		"api_base", cfg.Server.APIBase,
		"ui_dir", cfg.Server.UIDir,
		"revgeo_interval_s", cfg.Tracker.RevgeoIntervalSeconds,
		"trail_limit", cfg.Tracker.TrailLimit,
	)

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else if err := rc.Ping(context.Background()).Err(); err != nil {
		l.Error("redis_ping_error", "err", err)
	} else {
		l.Info("redis_ping_ok")
	}

	// 数据源链装配：远端优先，本地 MMDB 兜底；ip2region 仅做空字段回填
	reg := ipclient.NewRegistry()
	httpClient := &http.Client{Timeout: 5 * time.Second}
	reg.Register(ipclient.NewRemoteProvider(cfg.Lookup.IPAPIURL, httpClient))
	if cfg.Lookup.MMDBPath != "" {
		if p, err := ipclient.OpenMMDB(cfg.Lookup.MMDBPath); err == nil {
			reg.Register(p)
			defer p.Close()
		} else {
			l.Error("mmdb_open_error", "path", cfg.Lookup.MMDBPath, "err", err)
		}
	}
	var backfill *ipclient.Backfill
	if cfg.Lookup.IP2RegionPath != "" {
		if b, err := ipclient.NewBackfill(cfg.Lookup.IP2RegionPath); err == nil {
			backfill = b
		} else {
			l.Error("ip2region_open_error", "path", cfg.Lookup.IP2RegionPath, "err", err)
		}
	}
	reg.Start(context.Background())
	ipc := ipclient.NewClient(reg, backfill, rc, time.Duration(cfg.Lookup.CacheTTLSeconds)*time.Second)

	rgc := revgeo.NewClient(cfg.Revgeo.URL, httpClient, rc, time.Duration(cfg.Revgeo.CacheTTLSeconds)*time.Second)
	hub := display.NewHub(rc)
	mgr := tracker.NewManager(cfg, ipc, rgc, hub)

	mux := http.NewServeMux()
	apiBase := cfg.Server.APIBase
	apiMux := api.BuildRoutes(ipc, mgr, hub, rc)
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, apiMux))
	mux.Handle(apiBase+"/metrics", metrics.Handler())

	fs := http.FileServer(http.Dir(cfg.Server.UIDir))
	mux.Handle("/", fs)

	// NOTE: 向前端暴露 API 基础路径，避免硬编码；生产环境由后端统一提供
	mux.HandleFunc("/config.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte("window.__API_BASE__='" + apiBase + "'"))
		_, _ = w.Write([]byte("\n"))
		_, _ = w.Write([]byte("window.__COMMIT_SHA__='" + version.Commit + "'"))
	})

	addr := cfg.Server.Addr
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler}

	tlsEnable := os.Getenv("TLS_ENABLE")
	if tlsEnable == "true" {
		certPath := os.Getenv("TLS_CERT_PATH")
		keyPath := os.Getenv("TLS_KEY_PATH")
		if certPath == "" {
			certPath = filepath.Join("data", "certs", "server.crt")
		}
		if keyPath == "" {
			keyPath = filepath.Join("data", "certs", "server.key")
		}
		_ = utils.EnsureSelfSignedCert(certPath, keyPath, "geo-tracker.local")
		if os.Getenv("TLS_REDIRECT_ENABLE") == "true" {
			redirAddr := os.Getenv("TLS_REDIRECT_ADDR")
			if redirAddr == "" {
				redirAddr = ":80"
			}
			go func() {
				httpsPort := strings.TrimPrefix(addr, ":")
				redir := http.NewServeMux()
				redir.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
					baseHost := r.Host
					if i := strings.LastIndex(baseHost, ":"); i != -1 {
						baseHost = baseHost[:i]
					}
					target := "https://" + baseHost
					if httpsPort != "" {
						target += ":" + httpsPort
					}
					http.Redirect(w, r, target+r.URL.RequestURI(), http.StatusMovedPermanently)
				})
				l.Info("http_redirect_listening", "addr", redirAddr)
				_ = http.ListenAndServe(redirAddr, redir)
			}()
		}
		l.Info("listening_tls", "addr", addr, "cert", certPath)
		_ = s.ListenAndServeTLS(certPath, keyPath)
		return
	}
	l.Info("listening", "addr", addr)
	_ = s.ListenAndServe()
}
