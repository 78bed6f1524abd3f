// 包 tracker：实时追踪控制器（状态机）
// 背景：两条节奏不同的异步定位来源（设备连续流与一次性 IP 查询）加上受节流的反地理富化，
// 必须收敛到一份一致的展示状态；所有状态变更收口在单一事件循环 goroutine 内，
// 网络回调与流采样都以类型化事件投递进来，循环内的状态迁移天然原子，无需细粒度锁
package tracker

import (
	"context"
	"errors"
	"log/slog"

	"geo-tracker/internal/display"
	"geo-tracker/internal/geo"
	"geo-tracker/internal/ipclient"
	"geo-tracker/internal/logger"
	"geo-tracker/internal/maplayer"
	"geo-tracker/internal/metrics"
	"geo-tracker/internal/revgeo"
	"geo-tracker/internal/stream"

	"github.com/google/uuid"
)

// Status：状态机只有两态，错误不是终态——上报后回到 Idle
type Status int

const (
	StatusIdle Status = iota
	StatusLive
)

func (s Status) String() string {
	if s == StatusLive {
		return "live"
	}
	return "idle"
}

// 事件种类：命令与异步结果共用一条单消费者通道
type eventKind int

const (
	evStart eventKind = iota
	evStop
	evLocate
	evIPResult
	evPlace
	evZoom
	evSync
)

type event struct {
	kind   eventKind
	ip     string          // evLocate
	res    *ipclient.Result // evIPResult
	err    error           // evIPResult
	enrich bool            // evIPResult：true 为启动期预填充，需按会话标识门控
	sid    string          // evIPResult：发起查询时的会话标识
	place  geo.Place       // evPlace
	zoom   int             // evZoom
	done   chan struct{}   // evSync
}

// Config：控制器装配参数
type Config struct {
	Source    stream.Source
	Opts      stream.Options
	IPClient  *ipclient.Client
	Throttler *revgeo.Throttler
	Layer     *maplayer.Layer
	Surface   display.Surface
	// OverlayPush：覆盖物变化后的整帧推送回调，可为 nil（纯快照场景）
	OverlayPush func(*maplayer.Layer)
	// Label：日志里的会话标识
	Label string
}

// Controller：单会话追踪控制器
// 约束：导出方法只投递事件，真正的状态迁移全部发生在 Run 的事件循环里
type Controller struct {
	cfg    Config
	log    *slog.Logger
	events chan event

	// 以下字段仅事件循环 goroutine 触碰
	runCtx    context.Context
	status    Status
	sessionID string
	sub       *stream.Subscription
	state     geo.DisplayState
}

func New(cfg Config) *Controller {
	if cfg.Layer == nil {
		cfg.Layer = maplayer.New(maplayer.DefaultZoomFloor, 0)
	}
	return &Controller{
		cfg:    cfg,
		log:    logger.With("tracker").With("label", cfg.Label),
		events: make(chan event, 64),
		state:  geo.NewDisplayState(),
	}
}

// Start：开始实时追踪（可重入：既有 Live 会话先拆除再重建）
func (c *Controller) Start() { c.post(event{kind: evStart}) }

// Stop：停止实时追踪（Idle 时调用也安全）
func (c *Controller) Stop() { c.post(event{kind: evStop}) }

// SubmitIP：手动 IP 查询（空串表示自动探测）
func (c *Controller) SubmitIP(ip string) { c.post(event{kind: evLocate, ip: ip}) }

// SetZoom：用户手动缩放
func (c *Controller) SetZoom(z int) { c.post(event{kind: evZoom, zoom: z}) }

// PostPlace：节流器的反地理结果回传入口
func (c *Controller) PostPlace(p geo.Place) { c.post(event{kind: evPlace, place: p}) }

// post：非阻塞投递；通道满时丢弃并告警，绝不反压调用方
func (c *Controller) post(e event) {
	select {
	case c.events <- e:
	default:
		c.log.Warn("event_dropped", "kind", int(e.kind))
	}
}

// Run：事件循环，直到 ctx 取消
// 约束：订阅通道与命令通道在同一 select 消费；Idle 时订阅通道为 nil，
// 取消竞争窗口内残留的采样事件自然落不进循环（活性检查的通道版实现）
func (c *Controller) Run(ctx context.Context) {
	c.runCtx = ctx
	c.log.Debug("controller_run")
	for {
		var evs <-chan stream.Event
		if c.sub != nil {
			evs = c.sub.Events()
		}
		select {
		case <-ctx.Done():
			c.doStop()
			c.log.Debug("controller_done")
			return
		case e := <-c.events:
			c.handle(e)
		case se := <-evs:
			if se.Sample != nil {
				c.handleSample(*se.Sample)
			} else if se.Err != nil {
				c.handleStreamError(se.Err)
			}
		}
	}
}

func (c *Controller) handle(e event) {
	switch e.kind {
	case evStart:
		c.doStart()
	case evStop:
		c.doStop()
	case evLocate:
		c.doLocate(e.ip)
	case evIPResult:
		c.handleIPResult(e)
	case evPlace:
		c.handlePlace(e.place)
	case evZoom:
		c.cfg.Layer.SetZoom(e.zoom)
		c.pushOverlay()
	case evSync:
		close(e.done)
	}
}

// doStart：Idle→Live 迁移
// 背景：先无条件拆除既有会话（幂等），随后换新的会话标识；
// IP 预填充先于订阅发出（两者完成顺序不保证），其结果按会话标识门控，
// 快速 停止/重启 后迟到的旧结果会被丢弃
func (c *Controller) doStart() {
	c.doStop()
	c.status = StatusLive
	c.sessionID = uuid.NewString()
	metrics.SessionsStartedTotal.Inc()
	c.cfg.Surface.SetControls(false, true)
	c.cfg.Surface.ClearError()
	c.cfg.Surface.SetTracking(true)
	c.cfg.Surface.SetLoading(true)
	go c.locate("", true, c.sessionID)
	sub, err := c.cfg.Source.Subscribe(c.cfg.Opts)
	if err != nil {
		c.log.Error("subscribe_error", "err", err)
		c.cfg.Surface.SetError("Position source unavailable")
		c.doStop()
		return
	}
	c.sub = sub
	c.log.Info("tracking_started", "session", c.sessionID, "subscription", sub.ID())
}

// doStop：回到 Idle
// 约束：Idle 时重复调用不产生第二次覆盖物拆除副作用；控件恢复与指示隐藏总是执行
func (c *Controller) doStop() {
	if c.sub != nil {
		c.sub.Cancel()
		c.sub = nil
	}
	if c.status == StatusLive {
		c.cfg.Layer.TeardownLive()
		c.pushOverlay()
		metrics.SessionsStoppedTotal.Inc()
		c.log.Info("tracking_stopped", "session", c.sessionID)
	}
	c.status = StatusIdle
	c.sessionID = ""
	c.cfg.Surface.SetControls(true, false)
	c.cfg.Surface.SetTracking(false)
	c.cfg.Surface.SetAccuracy(0, false)
}

// doLocate：手动 IP 查询，独立于追踪会话（不做会话门控）
func (c *Controller) doLocate(ip string) {
	c.cfg.Surface.SetLoading(true)
	go c.locate(ip, false, "")
}

// locate：网络调用在循环外执行，结果以事件交还
func (c *Controller) locate(ip string, enrich bool, sid string) {
	res, err := c.cfg.IPClient.Locate(c.runCtx, ip)
	c.post(event{kind: evIPResult, res: res, err: err, enrich: enrich, sid: sid})
}

func (c *Controller) handleIPResult(e event) {
	c.cfg.Surface.SetLoading(false)
	if e.enrich {
		// 会话门控：停止或重启后迟到的预填充结果一律丢弃
		if c.status != StatusLive || e.sid != c.sessionID {
			c.log.Debug("stale_enrich_dropped", "sid", e.sid)
			return
		}
		if e.err != nil {
			// 无效坐标属于致命失败，终止会话；网络类失败只上报不终止
			if errors.Is(e.err, ipclient.ErrInvalidCoordinates) {
				c.cfg.Surface.SetError("Invalid coordinates in IP lookup response")
				c.doStop()
				return
			}
			c.log.Warn("enrich_lookup_error", "err", e.err)
			c.cfg.Surface.SetError("Unable to fetch IP-based location")
			return
		}
		// 预填充只合并描述字段，坐标交给 GPS 收敛，不落静态标记
		c.state.MergeLookup(e.res.IP, e.res.Country, e.res.Region, e.res.City, e.res.ISP, e.res.Timezone)
		c.pushFields()
		return
	}
	if e.err != nil {
		if errors.Is(e.err, ipclient.ErrInvalidCoordinates) {
			c.cfg.Surface.SetError("Invalid coordinates in lookup response")
		} else {
			c.cfg.Surface.SetError("Unable to fetch IP location")
		}
		c.log.Warn("locate_error", "err", e.err)
		return
	}
	c.state.MergeLookup(e.res.IP, e.res.Country, e.res.Region, e.res.City, e.res.ISP, e.res.Timezone)
	c.state.Coords = geo.FormatCoords(e.res.Lat, e.res.Lon)
	c.cfg.Layer.UpsertStatic(e.res.Sample())
	c.pushFields()
	c.pushOverlay()
}

// handleSample：流采样落地
// 约束：必须先做活性检查——取消订阅与采样投递存在竞争，Idle 下残留采样是空操作
func (c *Controller) handleSample(s geo.Sample) {
	if c.status != StatusLive || c.sub == nil {
		return
	}
	metrics.SamplesTotal.Inc()
	c.cfg.Layer.UpsertLive(s)
	c.state.SetCoords(s.Lat, s.Lon, s.Accuracy)
	c.cfg.Surface.SetField(display.FieldCoords, c.state.Coords)
	c.cfg.Surface.SetAccuracy(s.Accuracy, true)
	c.pushOverlay()
	c.cfg.Throttler.Notify(c.runCtx, s.Lat, s.Lon)
}

// handleStreamError：流错误都不可恢复，上报后回到 Idle
func (c *Controller) handleStreamError(se *stream.Error) {
	var msg string
	switch se.Code {
	case stream.CodePermissionDenied:
		msg = "Location permission denied"
	case stream.CodePositionUnavailable:
		msg = "Position unavailable"
	case stream.CodeTimeout:
		msg = "Location request timed out"
	default:
		msg = "Location error"
	}
	c.log.Warn("stream_error", "code", se.Code.String(), "err", se.Message)
	c.cfg.Surface.SetError(msg)
	c.doStop()
}

// handlePlace：反地理富化合并（非空字段覆盖）
func (c *Controller) handlePlace(p geo.Place) {
	c.state.MergePlace(p)
	c.cfg.Surface.SetField(display.FieldCity, c.state.City)
	c.cfg.Surface.SetField(display.FieldRegion, c.state.Region)
	c.cfg.Surface.SetField(display.FieldCountry, c.state.Country)
}

// pushFields：展示状态的描述字段整体下发
func (c *Controller) pushFields() {
	s := c.cfg.Surface
	s.SetField(display.FieldIP, c.state.IP)
	s.SetField(display.FieldCountry, c.state.Country)
	s.SetField(display.FieldRegion, c.state.Region)
	s.SetField(display.FieldCity, c.state.City)
	s.SetField(display.FieldISP, c.state.ISP)
	s.SetField(display.FieldTimezone, c.state.Timezone)
	if c.state.Coords != "" {
		s.SetField(display.FieldCoords, c.state.Coords)
	}
}

func (c *Controller) pushOverlay() {
	if c.cfg.OverlayPush != nil {
		c.cfg.OverlayPush(c.cfg.Layer)
	}
}

// barrier：等待循环消化完此前投递的事件（测试用）
func (c *Controller) barrier() {
	done := make(chan struct{})
	c.events <- event{kind: evSync, done: done}
	<-done
}
