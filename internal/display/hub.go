package display

import (
	"context"
	"strings"
	"sync"

	"geo-tracker/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Hub：按会话分组的展示推送中心
// 背景：同一追踪会话可能有多个观看端（同账号多标签页），推送按会话扇出；
// 可选地经 Redis 发布订阅跨实例转发，单机部署传 nil 即可
// 约束：发送非阻塞，慢客户端丢帧不反压核心循环；
// 发布的帧带实例标识前缀，订阅侧跳过本实例发布的帧，本地观看端不会收到重复帧
type Hub struct {
	id      string
	rc      *redis.Client
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

// Client：一个观看端连接
type Client struct {
	SessionID string
	Send      chan []byte
}

func NewHub(rc *redis.Client) *Hub {
	h := &Hub{id: uuid.NewString(), rc: rc, clients: map[string]map[*Client]struct{}{}}
	if rc != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(sessionID string) *Client {
	c := &Client{SessionID: sessionID, Send: make(chan []byte, 64)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][c] = struct{}{}
	return c
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.SessionID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.SessionID)
		}
	}
	close(c.Send)
}

// Broadcast：向会话内所有观看端投递一帧
// 约束：发送期间持读锁，Unregister 的写锁与 close 被串行化，避免向已关闭通道发送
func (h *Hub) Broadcast(sessionID string, payload []byte) {
	h.mu.RLock()
	for c := range h.clients[sessionID] {
		select {
		case c.Send <- payload:
		default:
		}
	}
	h.mu.RUnlock()
	if h.rc != nil {
		tagged := append([]byte(h.id+"|"), payload...)
		if err := h.rc.Publish(context.Background(), channelFor(sessionID), tagged).Err(); err != nil {
			logger.With("display").Debug("redis_publish_error", "err", err)
		}
	}
}

// subscribeRedis：消费其它实例发布的帧并本地扇出
// 约束：本实例发布的帧按实例标识跳过，避免本地二次投递
func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.rc.PSubscribe(ctx, "display:*:frames")
	defer pubsub.Close()
	for msg := range pubsub.Channel() {
		origin, payload, ok := splitTagged(msg.Payload)
		if !ok || origin == h.id {
			continue
		}
		sid := sessionFromChannel(msg.Channel)
		h.mu.RLock()
		for c := range h.clients[sid] {
			select {
			case c.Send <- payload:
			default:
			}
		}
		h.mu.RUnlock()
	}
}

// splitTagged：拆出实例标识前缀与帧体
func splitTagged(s string) (origin string, payload []byte, ok bool) {
	i := strings.IndexByte(s, '|')
	if i < 0 {
		return "", nil, false
	}
	return s[:i], []byte(s[i+1:]), true
}

func channelFor(sessionID string) string {
	return "display:" + sessionID + ":frames"
}

func sessionFromChannel(ch string) string {
	const prefix = "display:"
	const suffix = ":frames"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
