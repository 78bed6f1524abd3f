package display

import (
	"encoding/json"

	"geo-tracker/internal/maplayer"
)

// frame：推送帧，kind 区分槽位更新/精度徽标/错误横幅/加载态/控件态/追踪指示/覆盖物
type frame struct {
	Kind    string          `json:"kind"`
	Name    string          `json:"name,omitempty"`
	Value   string          `json:"value,omitempty"`
	Meters  float64         `json:"meters,omitempty"`
	On      bool            `json:"on,omitempty"`
	Start   bool            `json:"start,omitempty"`
	Stop    bool            `json:"stop,omitempty"`
	Overlay *maplayer.Layer `json:"overlay,omitempty"`
}

// Push：把展示面写入转为 WebSocket 帧经 Hub 广播
type Push struct {
	hub     *Hub
	session string
}

func NewPush(hub *Hub, session string) *Push {
	return &Push{hub: hub, session: session}
}

func (p *Push) send(f frame) {
	b, err := json.Marshal(f)
	if err != nil {
		return
	}
	p.hub.Broadcast(p.session, b)
}

func (p *Push) SetField(name, value string) {
	p.send(frame{Kind: "field", Name: name, Value: value})
}

func (p *Push) SetAccuracy(meters float64, visible bool) {
	p.send(frame{Kind: "accuracy", Meters: meters, On: visible})
}

func (p *Push) SetError(msg string) {
	p.send(frame{Kind: "error", Value: msg})
}

func (p *Push) ClearError() {
	p.send(frame{Kind: "error"})
}

func (p *Push) SetLoading(on bool) {
	p.send(frame{Kind: "loading", On: on})
}

func (p *Push) SetControls(startEnabled, stopEnabled bool) {
	p.send(frame{Kind: "controls", Start: startEnabled, Stop: stopEnabled})
}

func (p *Push) SetTracking(active bool) {
	p.send(frame{Kind: "tracking", On: active})
}

// PushOverlay：覆盖物状态整帧推送（采样或静态标记变化后由控制器调用）
func (p *Push) PushOverlay(l *maplayer.Layer) {
	p.send(frame{Kind: "overlay", Overlay: l})
}
