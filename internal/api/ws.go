package api

import (
	"encoding/json"
	"net/http"

	"geo-tracker/internal/display"
	"geo-tracker/internal/logger"
	"geo-tracker/internal/stream"
	"geo-tracker/internal/tracker"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// NOTE: 静态页与 API 同源部署，跨域校验交由上层反向代理
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsInbound：设备端上行消息
// sample：一次定位采样；error：设备定位失败（code 对齐流错误分类）；zoom：用户手动缩放
type wsInbound struct {
	Type      string  `json:"type"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Code      string  `json:"code"`
	Message   string  `json:"message"`
	Level     int     `json:"level"`
}

// serveWS：单条连接同时承担采样上行与展示帧下行
// 背景：浏览器把 watchPosition 的采样转发上来，展示层的帧从同一连接推回去；
// 连接断开只注销观看端，不隐式停止追踪会话（刷新页面不丢会话）
func serveWS(mgr *tracker.Manager, hub *display.Hub, w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("session")
	if sid == "" {
		sid = uuid.NewString()
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.With("api").Warn("ws_upgrade_error", "err", err)
		return
	}
	sess := mgr.Get(sid)
	client := hub.Register(sid)
	l := logger.With("api").With("session", sid)
	l.Debug("ws_connected")

	// 下行：展示帧写出
	go func() {
		for payload := range client.Send {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}()

	// 首帧回传会话标识，便于页面重连时复用
	_ = conn.WriteJSON(map[string]string{"kind": "session", "value": sid})

	// 上行：采样与设备错误进入采样源，缩放进控制器
	defer func() {
		hub.Unregister(client)
		conn.Close()
		l.Debug("ws_closed")
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsInbound
		if err := json.Unmarshal(data, &msg); err != nil {
			l.Debug("ws_bad_message", "err", err)
			continue
		}
		switch msg.Type {
		case "sample":
			sess.Feed.Push(msg.Latitude, msg.Longitude, msg.Accuracy)
		case "error":
			sess.Feed.Fail(parseStreamCode(msg.Code), msg.Message)
		case "zoom":
			sess.Controller.SetZoom(msg.Level)
		}
	}
}

func parseStreamCode(code string) stream.ErrorCode {
	switch code {
	case "permission_denied":
		return stream.CodePermissionDenied
	case "timeout":
		return stream.CodeTimeout
	default:
		return stream.CodePositionUnavailable
	}
}
