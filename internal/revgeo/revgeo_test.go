package revgeo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"geo-tracker/internal/geo"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func reverseServer(t *testing.T, hits *int64, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestLookupCityFallback(t *testing.T) {
	var hits int64
	srv := reverseServer(t, &hits, `{"address":{"town":"Greenfield","state":"Indiana","country":"United States"}}`)
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), nil, 0)
	place, err := c.Lookup(context.Background(), 39.785, -85.769)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if place.City != "Greenfield" {
		t.Fatalf("town fallback not applied: %q", place.City)
	}
	if place.Region != "Indiana" || place.Country != "United States" {
		t.Fatalf("region/country: %+v", place)
	}
}

func TestLookupErrorBody(t *testing.T) {
	var hits int64
	srv := reverseServer(t, &hits, `{"error":"Unable to geocode"}`)
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), nil, 0)
	if _, err := c.Lookup(context.Background(), 0.001, 0.001); err == nil {
		t.Fatal("expected error for error body")
	}
}

func TestLookupRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer rc.Close()

	var hits int64
	srv := reverseServer(t, &hits, `{"address":{"city":"Munich","state":"Bavaria","country":"Germany"}}`)
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), rc, time.Hour)
	for i := 0; i < 2; i++ {
		place, err := c.Lookup(context.Background(), 48.1374, 11.5755)
		if err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
		if place.City != "Munich" {
			t.Fatalf("lookup %d city: %q", i, place.City)
		}
	}
	if n := atomic.LoadInt64(&hits); n != 1 {
		t.Fatalf("second lookup should hit cache, upstream hits=%d", n)
	}
}

func TestThrottlerDropsInsideWindow(t *testing.T) {
	var hits int64
	srv := reverseServer(t, &hits, `{"address":{"city":"Munich","country":"Germany"}}`)
	defer srv.Close()

	got := make(chan geo.Place, 4)
	th := NewThrottler(NewClient(srv.URL, srv.Client(), nil, 0), 5*time.Second, func(p geo.Place) { got <- p })

	base := time.Unix(1700000000, 0)
	now := base
	th.SetClock(func() time.Time { return now })

	if !th.Notify(context.Background(), 48.137, 11.575) {
		t.Fatal("first notify should dispatch")
	}
	now = base.Add(2 * time.Second)
	if th.Notify(context.Background(), 48.138, 11.576) {
		t.Fatal("notify inside window should be dropped")
	}

	select {
	case p := <-got:
		if p.City != "Munich" {
			t.Fatalf("place: %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("onPlace not called for dispatched notify")
	}
	if n := atomic.LoadInt64(&hits); n != 1 {
		t.Fatalf("upstream hits: got %d want 1", n)
	}
}

func TestThrottlerWindowReopens(t *testing.T) {
	var hits int64
	srv := reverseServer(t, &hits, `{"address":{"city":"Munich","country":"Germany"}}`)
	defer srv.Close()

	got := make(chan geo.Place, 4)
	th := NewThrottler(NewClient(srv.URL, srv.Client(), nil, 0), 5*time.Second, func(p geo.Place) { got <- p })

	base := time.Unix(1700000000, 0)
	now := base
	th.SetClock(func() time.Time { return now })

	th.Notify(context.Background(), 1, 1)
	now = base.Add(6 * time.Second)
	if !th.Notify(context.Background(), 2, 2) {
		t.Fatal("notify after window should dispatch")
	}
	for i := 0; i < 2; i++ {
		select {
		case <-got:
		case <-time.After(time.Second):
			t.Fatalf("dispatch %d did not complete", i)
		}
	}
	if n := atomic.LoadInt64(&hits); n != 2 {
		t.Fatalf("upstream hits: got %d want 2", n)
	}
}

func TestThrottlerSwallowsFailure(t *testing.T) {
	var hits int64
	srv := reverseServer(t, &hits, `{"error":"Unable to geocode"}`)
	defer srv.Close()

	called := make(chan geo.Place, 1)
	th := NewThrottler(NewClient(srv.URL, srv.Client(), nil, 0), time.Millisecond, func(p geo.Place) { called <- p })

	if !th.Notify(context.Background(), 0.001, 0.001) {
		t.Fatal("notify should dispatch")
	}
	select {
	case p := <-called:
		t.Fatalf("onPlace called despite upstream error: %+v", p)
	case <-time.After(200 * time.Millisecond):
	}
}
