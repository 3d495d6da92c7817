// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/90n9/talepick/internal/services"
	"github.com/90n9/talepick/internal/utils"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsSendBuffer = 64
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketClient 表示一个观察某个故事的连接
type WebSocketClient struct {
	conn      *websocket.Conn
	storyID   string
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	lastSeen  atomic.Int64 // unix nano
	createdAt time.Time
}

// Close 安全关闭客户端连接
func (client *WebSocketClient) Close() {
	client.closeOnce.Do(func() {
		close(client.done)
		client.conn.Close()
	})
}

// IsClosed 检查连接是否已关闭
func (client *WebSocketClient) IsClosed() bool {
	select {
	case <-client.done:
		return true
	default:
		return false
	}
}

func (client *WebSocketClient) touch() {
	client.lastSeen.Store(time.Now().UnixNano())
}

// IsExpired 检查连接是否超时
func (client *WebSocketClient) IsExpired(timeout time.Duration) bool {
	return time.Since(time.Unix(0, client.lastSeen.Load())) > timeout
}

// enqueue 非阻塞发送；队列满时返回 false
func (client *WebSocketClient) enqueue(msg []byte) bool {
	if client.IsClosed() {
		return false
	}
	select {
	case client.send <- msg:
		return true
	default:
		return false
	}
}

// WebSocketManager 按故事分组管理连接，并把编辑器事件推送给对应的客户端
type WebSocketManager struct {
	mutex       sync.RWMutex
	rooms       map[string]map[*WebSocketClient]struct{}
	pingTimeout time.Duration
	logger      *utils.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewWebSocketManager 创建管理器并启动过期连接清理
func NewWebSocketManager() *WebSocketManager {
	m := &WebSocketManager{
		rooms:       make(map[string]map[*WebSocketClient]struct{}),
		pingTimeout: 90 * time.Second,
		logger:      utils.GetLogger(),
		stop:        make(chan struct{}),
	}
	go m.cleanupLoop(30 * time.Second)
	return m
}

// Publish 实现 services.Publisher
func (m *WebSocketManager) Publish(ev services.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		m.logger.Error("Failed to marshal event", map[string]interface{}{"error": err.Error()})
		return
	}

	m.mutex.RLock()
	clients := make([]*WebSocketClient, 0, len(m.rooms[ev.StoryID]))
	for client := range m.rooms[ev.StoryID] {
		clients = append(clients, client)
	}
	m.mutex.RUnlock()

	for _, client := range clients {
		if !client.enqueue(msg) {
			// 慢客户端直接断开，由读循环负责注销
			client.Close()
		}
	}
}

func (m *WebSocketManager) register(client *WebSocketClient) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.rooms[client.storyID] == nil {
		m.rooms[client.storyID] = make(map[*WebSocketClient]struct{})
	}
	m.rooms[client.storyID][client] = struct{}{}
}

func (m *WebSocketManager) unregister(client *WebSocketClient) {
	m.mutex.Lock()
	if room, ok := m.rooms[client.storyID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(m.rooms, client.storyID)
		}
	}
	m.mutex.Unlock()
	client.Close()
}

// Serve 升级连接并开始为 storyID 推送事件，直到连接断开
func (m *WebSocketManager) Serve(w http.ResponseWriter, r *http.Request, storyID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("WebSocket upgrade failed", map[string]interface{}{
			"story_id": storyID,
			"error":    err.Error(),
		})
		return
	}

	client := &WebSocketClient{
		conn:      conn,
		storyID:   storyID,
		send:      make(chan []byte, wsSendBuffer),
		done:      make(chan struct{}),
		createdAt: time.Now(),
	}
	client.touch()
	m.register(client)
	m.logger.Info("WebSocket client connected", map[string]interface{}{"story_id": storyID})

	go m.writeLoop(client)
	m.readLoop(client)

	m.unregister(client)
	m.logger.Info("WebSocket client disconnected", map[string]interface{}{"story_id": storyID})
}

// readLoop 处理客户端消息。只识别 ping，其余消息忽略
func (m *WebSocketManager) readLoop(client *WebSocketClient) {
	client.conn.SetReadLimit(4096)
	client.conn.SetPongHandler(func(string) error {
		client.touch()
		return nil
	})

	for {
		var msg struct {
			Type string `json:"type"`
		}
		if err := client.conn.ReadJSON(&msg); err != nil {
			return
		}
		client.touch()
		if msg.Type == "ping" {
			pong, _ := json.Marshal(map[string]interface{}{
				"type":      "pong",
				"timestamp": time.Now(),
			})
			client.enqueue(pong)
		}
	}
}

func (m *WebSocketManager) writeLoop(client *WebSocketClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-client.done:
			return
		case msg := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				client.Close()
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.Close()
				return
			}
		}
	}
}

func (m *WebSocketManager) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.cleanupExpiredConnections()
		}
	}
}

// cleanupExpiredConnections 关闭超时未响应的连接
func (m *WebSocketManager) cleanupExpiredConnections() int {
	m.mutex.RLock()
	var expired []*WebSocketClient
	for _, room := range m.rooms {
		for client := range room {
			if client.IsClosed() || client.IsExpired(m.pingTimeout) {
				expired = append(expired, client)
			}
		}
	}
	m.mutex.RUnlock()

	for _, client := range expired {
		m.unregister(client)
	}
	return len(expired)
}

// Shutdown 关闭所有连接并停止清理
func (m *WebSocketManager) Shutdown() {
	m.stopOnce.Do(func() { close(m.stop) })

	m.mutex.Lock()
	rooms := m.rooms
	m.rooms = make(map[string]map[*WebSocketClient]struct{})
	m.mutex.Unlock()

	for _, room := range rooms {
		for client := range room {
			client.Close()
		}
	}
}

// GetStatus 获取管理器状态
func (m *WebSocketManager) GetStatus() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	stories := make(map[string]int, len(m.rooms))
	total := 0
	for storyID, room := range m.rooms {
		stories[storyID] = len(room)
		total += len(room)
	}
	return map[string]interface{}{
		"total_stories":        len(m.rooms),
		"total_connections":    total,
		"stories":              stories,
		"ping_timeout_seconds": int(m.pingTimeout.Seconds()),
	}
}
