package tracker

import (
	"context"
	"sync"

	"geo-tracker/internal/config"
	"geo-tracker/internal/display"
	"geo-tracker/internal/geo"
	"geo-tracker/internal/ipclient"
	"geo-tracker/internal/maplayer"
	"geo-tracker/internal/revgeo"
	"geo-tracker/internal/stream"
)

// Session：一个追踪会话的全部组件（控制器、采样入口、展示快照）
type Session struct {
	Controller *Controller
	Feed       *stream.Feed
	Snapshot   *display.Snapshot
	cancel     context.CancelFunc
}

// Manager：按会话标识管理控制器生命周期
// 背景：每个接入端（浏览器页面）对应一个独立的控制器与采样源；
// 控制器循环随会话创建启动、随移除取消
type Manager struct {
	cfg  config.AppConfig
	ipc  *ipclient.Client
	rgc  *revgeo.Client
	hub  *display.Hub
	mu   sync.Mutex
	byID map[string]*Session
}

func NewManager(cfg config.AppConfig, ipc *ipclient.Client, rgc *revgeo.Client, hub *display.Hub) *Manager {
	return &Manager{cfg: cfg, ipc: ipc, rgc: rgc, hub: hub, byID: make(map[string]*Session)}
}

// Get：取既有会话，不存在时装配一套新的
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byID[id]; ok {
		return s
	}
	feed := stream.NewFeed()
	snap := display.NewSnapshot()
	push := display.NewPush(m.hub, id)
	layer := maplayer.New(m.cfg.Tracker.ZoomFloor, m.cfg.Tracker.TrailLimit)

	var ctrl *Controller
	th := revgeo.NewThrottler(m.rgc, m.cfg.Tracker.RevgeoInterval(), func(p geo.Place) {
		ctrl.PostPlace(p)
	})
	opts := stream.DefaultOptions()
	opts.FixTimeout = m.cfg.Tracker.FixTimeout()
	ctrl = New(Config{
		Source:      feed,
		Opts:        opts,
		IPClient:    m.ipc,
		Throttler:   th,
		Layer:       layer,
		Surface:     display.Multi{snap, push},
		OverlayPush: push.PushOverlay,
		Label:       id,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go ctrl.Run(ctx)
	s := &Session{Controller: ctrl, Feed: feed, Snapshot: snap, cancel: cancel}
	m.byID[id] = s
	return s
}

// Lookup：只查不建
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	return s, ok
}

// Remove：停止并移除会话
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.byID[id]
	delete(m.byID, id)
	m.mu.Unlock()
	if ok {
		s.cancel()
	}
}
