package stream

import (
	"testing"
	"time"
)

func TestFeedPushOrder(t *testing.T) {
	f := NewFeed()
	sub, err := f.Subscribe(Options{HighAccuracy: true})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	f.Push(1, 1, 10)
	f.Push(2, 2, 20)
	f.Push(3, 3, 30)

	for i, want := range []float64{1, 2, 3} {
		select {
		case ev := <-sub.Events():
			if ev.Sample == nil {
				t.Fatalf("event %d: expected sample, got %+v", i, ev)
			}
			if ev.Sample.Lat != want {
				t.Fatalf("event %d out of order: lat=%f want %f", i, ev.Sample.Lat, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("event %d not delivered", i)
		}
	}
}

func TestFeedFailDelivered(t *testing.T) {
	f := NewFeed()
	sub, _ := f.Subscribe(Options{})
	defer sub.Cancel()

	f.Fail(CodePermissionDenied, "user denied")

	select {
	case ev := <-sub.Events():
		if ev.Err == nil || ev.Err.Code != CodePermissionDenied {
			t.Fatalf("expected permission error, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("error event not delivered")
	}
}

func TestFeedWatchdogTimeout(t *testing.T) {
	f := NewFeed()
	sub, _ := f.Subscribe(Options{FixTimeout: 30 * time.Millisecond})
	defer sub.Cancel()

	select {
	case ev := <-sub.Events():
		if ev.Err == nil || ev.Err.Code != CodeTimeout {
			t.Fatalf("expected timeout error, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("watchdog did not fire")
	}
}

func TestFeedWatchdogResetBySample(t *testing.T) {
	f := NewFeed()
	sub, _ := f.Subscribe(Options{FixTimeout: 80 * time.Millisecond})
	defer sub.Cancel()

	// 采样持续到来时看门狗不断被重置
	for i := 0; i < 3; i++ {
		time.Sleep(40 * time.Millisecond)
		f.Push(float64(i), float64(i), 5)
	}
	for i := 0; i < 3; i++ {
		ev := <-sub.Events()
		if ev.Err != nil {
			t.Fatalf("watchdog fired despite samples: %+v", ev.Err)
		}
	}
}

func TestFeedUnsubscribeStopsDelivery(t *testing.T) {
	f := NewFeed()
	sub, _ := f.Subscribe(Options{})
	sub.Cancel()
	if f.Active() != 0 {
		t.Fatalf("subscription still active: %d", f.Active())
	}
	f.Push(1, 1, 5)
	select {
	case ev := <-sub.Events():
		t.Fatalf("event delivered after cancel: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	// 重复取消无副作用
	sub.Cancel()
}

func TestFeedFanout(t *testing.T) {
	f := NewFeed()
	a, _ := f.Subscribe(Options{})
	b, _ := f.Subscribe(Options{})
	defer a.Cancel()
	defer b.Cancel()
	if f.Active() != 2 {
		t.Fatalf("active: %d", f.Active())
	}
	f.Push(7, 8, 9)
	for _, sub := range []*Subscription{a, b} {
		select {
		case ev := <-sub.Events():
			if ev.Sample == nil || ev.Sample.Lat != 7 {
				t.Fatalf("fanout event wrong: %+v", ev)
			}
		case <-time.After(time.Second):
			t.Fatal("fanout not delivered")
		}
	}
}
