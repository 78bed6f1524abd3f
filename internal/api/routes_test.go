package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"geo-tracker/internal/config"
	"geo-tracker/internal/display"
	"geo-tracker/internal/ipclient"
	"geo-tracker/internal/revgeo"
	"geo-tracker/internal/tracker"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

type stubProvider struct {
	res *ipclient.Result
	err error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Locate(ctx context.Context, ip string) (*ipclient.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

func (s *stubProvider) Heartbeat(ctx context.Context) error { return nil }

func buildMux(t *testing.T, p ipclient.Provider, rc *goredis.Client) *http.ServeMux {
	t.Helper()
	reg := ipclient.NewRegistry()
	reg.Register(p)
	ipc := ipclient.NewClient(reg, nil, nil, time.Hour)
	rgc := revgeo.NewClient("http://127.0.0.1:0/reverse", &http.Client{Timeout: time.Second}, nil, 0)
	hub := display.NewHub(nil)
	mgr := tracker.NewManager(config.Default(), ipc, rgc, hub)
	return BuildRoutes(ipc, mgr, hub, rc)
}

func defaultStub() *stubProvider {
	return &stubProvider{res: &ipclient.Result{
		IP: "8.8.8.8", Country: "United States", City: "Mountain View",
		ISP: "Google LLC", Lat: 37.4056, Lon: -122.0775,
	}}
}

func TestLocateHappyPath(t *testing.T) {
	mux := buildMux(t, defaultStub(), nil)
	req := httptest.NewRequest(http.MethodPost, "/locate", strings.NewReader(`{"ip":"8.8.8.8"}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: %d body=%s", w.Code, w.Body.String())
	}
	var res ipclient.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.IP != "8.8.8.8" || res.City != "Mountain View" {
		t.Fatalf("response: %+v", res)
	}
}

func TestLocateInvalidCoordinates(t *testing.T) {
	mux := buildMux(t, &stubProvider{err: ipclient.ErrInvalidCoordinates}, nil)
	req := httptest.NewRequest(http.MethodPost, "/locate", strings.NewReader(`{"ip":"8.8.8.8"}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", w.Code)
	}
	var e errorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	if e.Error != "invalid coordinates" {
		t.Fatalf("error body: %q", e.Error)
	}
}

func TestLocateUpstreamFailure(t *testing.T) {
	mux := buildMux(t, &stubProvider{err: ipclient.ErrLookupFailed}, nil)
	req := httptest.NewRequest(http.MethodPost, "/locate", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestLocateMethodNotAllowed(t *testing.T) {
	mux := buildMux(t, defaultStub(), nil)
	req := httptest.NewRequest(http.MethodGet, "/locate", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestTrackStartAndState(t *testing.T) {
	mux := buildMux(t, defaultStub(), nil)

	req := httptest.NewRequest(http.MethodPost, "/track/start?session=s1", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("start status: %d", w.Code)
	}
	var started map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &started)
	if started["session"] != "s1" || started["status"] != "live" {
		t.Fatalf("start body: %+v", started)
	}

	// 控制器在独立循环里迁移状态，轮询快照直到生效
	deadline := time.Now().Add(2 * time.Second)
	for {
		req = httptest.NewRequest(http.MethodGet, "/track/state?session=s1", nil)
		w = httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("state status: %d", w.Code)
		}
		var st display.State
		_ = json.Unmarshal(w.Body.Bytes(), &st)
		if st.Tracking && st.StopEnabled {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session never went live: %+v", st)
		}
		time.Sleep(5 * time.Millisecond)
	}

	req = httptest.NewRequest(http.MethodPost, "/track/stop?session=s1", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("stop status: %d", w.Code)
	}
}

func TestTrackStateUnknownSession(t *testing.T) {
	mux := buildMux(t, defaultStub(), nil)
	req := httptest.NewRequest(http.MethodGet, "/track/state?session=nope", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestTrackLocateRequiresSession(t *testing.T) {
	mux := buildMux(t, defaultStub(), nil)
	req := httptest.NewRequest(http.MethodPost, "/track/locate", strings.NewReader(`{"ip":"8.8.8.8"}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestStatsCountsLookups(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer rc.Close()
	mux := buildMux(t, defaultStub(), rc)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/locate", strings.NewReader(`{"ip":"8.8.8.8"}`))
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("locate %d: %d", i, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	var stats map[string]int64
	_ = json.Unmarshal(w.Body.Bytes(), &stats)
	if stats["total"] != 3 || stats["today"] != 3 {
		t.Fatalf("stats: %+v", stats)
	}
}

func TestNormalizeIP(t *testing.T) {
	cases := map[string]string{
		"":          "",
		"127.0.0.1": "",
		"localhost": "",
		"::1":       "",
		" 8.8.8.8 ": "8.8.8.8",
		"1.2.3.4":   "1.2.3.4",
	}
	for in, want := range cases {
		if got := normalizeIP(in); got != want {
			t.Fatalf("normalizeIP(%q)=%q want %q", in, got, want)
		}
	}
}

func TestGetClientIPForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/locate", nil)
	req.Header.Set("x-forwarded-for", "203.0.113.7, 10.0.0.1")
	if got := getClientIP(req); got != "203.0.113.7" {
		t.Fatalf("x-forwarded-for: %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/locate", nil)
	req.Header.Set("forwarded", `for="198.51.100.9";proto=https`)
	if got := getClientIP(req); got != "198.51.100.9" {
		t.Fatalf("forwarded: %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/locate?ip=9.9.9.9", nil)
	if got := getClientIP(req); got != "9.9.9.9" {
		t.Fatalf("query param: %q", got)
	}
}
