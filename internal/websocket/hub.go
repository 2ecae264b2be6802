package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"attachrename/backend/internal/auth/jwt"
	"attachrename/backend/internal/domain"
)

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// 如果允许所有来源
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// 浏览器扩展的后台请求可能不带 Origin
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}

			return false
		},
	}
}

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeDownloadRenamed   MessageType = "download_renamed"
	MessageTypeDownloadUnmatched MessageType = "download_unmatched"
	MessageTypeTrialWarning      MessageType = "trial_warning"
	MessageTypePing              MessageType = "ping"
	MessageTypePong              MessageType = "pong"
	MessageTypeError             MessageType = "error"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client 代表一个WebSocket客户端连接
type Client struct {
	ID        string
	MachineID string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	log       *zap.Logger
}

// Hub 管理所有WebSocket连接，按机器标识分发通知
type Hub struct {
	clients        map[string]*Client            // clientID -> Client
	machines       map[string]map[string]*Client // machineID -> clientID -> Client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *BroadcastMessage
	mu             sync.RWMutex
	log            *zap.Logger
	allowedOrigins []string
	tokens         *jwt.Manager // 可选，为 nil 时跳过令牌校验
}

// BroadcastMessage 广播消息
type BroadcastMessage struct {
	MachineID string
	Message   *Message
}

// NewHub 创建WebSocket Hub
//
// 参数:
//   - allowedOrigins: 允许的 Origin 列表，用于 WebSocket 连接验证
//   - tokens: 许可令牌管理器；传 nil 则只要求 machineId 参数
//   - log: 日志实例
func NewHub(allowedOrigins []string, tokens *jwt.Manager, log *zap.Logger) *Hub {
	// 如果没有配置，默认允许所有
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Hub{
		clients:        make(map[string]*Client),
		machines:       make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *BroadcastMessage, 256),
		log:            log,
		allowedOrigins: allowedOrigins,
		tokens:         tokens,
	}
}

// Run 启动Hub
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			if h.machines[client.MachineID] == nil {
				h.machines[client.MachineID] = make(map[string]*Client)
			}
			h.machines[client.MachineID][client.ID] = client
			h.mu.Unlock()
			h.log.Info("client registered",
				zap.String("id", client.ID),
				zap.String("machineID", client.MachineID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				if clients, exists := h.machines[client.MachineID]; exists {
					delete(clients, client.ID)
					if len(clients) == 0 {
						delete(h.machines, client.MachineID)
					}
				}
				delete(h.clients, client.ID)
				close(client.send)
				h.log.Info("client unregistered", zap.String("id", client.ID))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastToMachine(msg.MachineID, msg.Message)

		case <-ticker.C:
			// 定期ping所有客户端
			h.pingAllClients()
		}
	}
}

// RenamedData 重命名成功通知数据
type RenamedData struct {
	TrackingKey      string  `json:"trackingKey"`
	OriginalFilename string  `json:"originalFilename"`
	NewFilename      string  `json:"newFilename"`
	Method           string  `json:"method"`
	Score            float64 `json:"score,omitempty"`
}

// DownloadRenamed 通知某台机器一次下载已被重命名
func (h *Hub) DownloadRenamed(machineID string, result *domain.MatchResult) {
	data, err := json.Marshal(RenamedData{
		TrackingKey:      result.Entry.TrackingKey,
		OriginalFilename: result.Entry.OriginalFilename,
		NewFilename:      result.Entry.NewFilename,
		Method:           string(result.Method),
		Score:            result.Score,
	})
	if err != nil {
		h.log.Error("failed to marshal renamed data", zap.Error(err))
		return
	}

	h.broadcast <- &BroadcastMessage{
		MachineID: machineID,
		Message: &Message{
			Type:      MessageTypeDownloadRenamed,
			Data:      data,
			Timestamp: time.Now(),
		},
	}
}

// UnmatchedData 未匹配通知数据
type UnmatchedData struct {
	ObservedFilename string `json:"observedFilename"`
}

// DownloadUnmatched 通知某台机器一次下载保留了原文件名
func (h *Hub) DownloadUnmatched(machineID, observedFilename string) {
	data, err := json.Marshal(UnmatchedData{ObservedFilename: observedFilename})
	if err != nil {
		h.log.Error("failed to marshal unmatched data", zap.Error(err))
		return
	}

	h.broadcast <- &BroadcastMessage{
		MachineID: machineID,
		Message: &Message{
			Type:      MessageTypeDownloadUnmatched,
			Data:      data,
			Timestamp: time.Now(),
		},
	}
}

// TrialWarning 推送试用配额状态变化
func (h *Hub) TrialWarning(machineID string, status domain.LicenseStatus) {
	data, err := json.Marshal(status)
	if err != nil {
		h.log.Error("failed to marshal trial status", zap.Error(err))
		return
	}

	h.broadcast <- &BroadcastMessage{
		MachineID: machineID,
		Message: &Message{
			Type:      MessageTypeTrialWarning,
			Data:      data,
			Timestamp: time.Now(),
		},
	}
}

// broadcastToMachine 向某台机器的所有连接广播消息
func (h *Hub) broadcastToMachine(machineID string, msg *Message) {
	h.mu.RLock()
	clients := h.machines[machineID]
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	for _, client := range clients {
		select {
		case client.send <- data:
		default:
			// 客户端阻塞，跳过
			h.log.Warn("client channel blocked, skipping", zap.String("clientID", client.ID))
		}
	}
}

// pingAllClients 向所有客户端发送ping
func (h *Hub) pingAllClients() {
	msg := &Message{
		Type:      MessageTypePing,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			// 跳过阻塞的客户端
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.machines = make(map[string]map[string]*Client)
}

// authenticateClient 认证客户端
func (h *Hub) authenticateClient(c *gin.Context) (*Client, error) {
	machineID := c.Query("machineId")
	if machineID == "" {
		return nil, errors.New("missing machine id")
	}

	// 未配置令牌管理器时信任 machineId 参数（本地部署场景）
	if h.tokens == nil {
		return &Client{
			ID:        uuid.NewString(),
			MachineID: machineID,
			log:       h.log,
		}, nil
	}

	// 从URL参数或Header获取许可令牌
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}
	}

	if token == "" {
		return nil, errors.New("missing authentication token")
	}

	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	if claims.MachineID != machineID {
		return nil, errors.New("token does not match machine id")
	}

	return &Client{
		ID:        uuid.NewString(),
		MachineID: machineID,
		log:       h.log,
	}, nil
}

// HandleWebSocket 处理WebSocket连接
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	// 使用 Hub 配置的允许 Origin 创建 upgrader
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		// 认证客户端
		client, err := hub.authenticateClient(c)
		if err != nil {
			hub.log.Warn("websocket authentication failed",
				zap.Error(err),
				zap.String("remote_addr", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		// 升级连接
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client.conn = conn
		client.hub = hub
		client.send = make(chan []byte, 256)

		hub.register <- client

		// 启动读写协程
		go client.writePump()
		go client.readPump()
	}
}

// readPump 处理客户端消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket error", zap.Error(err))
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypePong:
		// 客户端响应pong，更新活动时间
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	default:
		c.log.Warn("unknown message type", zap.String("type", string(msg.Type)))
	}
}
