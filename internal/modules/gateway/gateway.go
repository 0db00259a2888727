package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/docverse/core/internal/middleware"
	"github.com/docverse/core/internal/models"
	"github.com/docverse/core/internal/modules/chat"
	pkgredis "github.com/docverse/core/internal/pkg/redis"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

const (
	namespaceChat = "/chat"
	redisChanChat = "dv:gateway:chat"

	// Events emitted to clients.
	EventConnected         = "gateway-connect"
	EventAuthFailed        = "auth-failed"
	EventError             = "chat-error"
	EventGenerationStarted = "generation-started"
	EventGenerationChunk   = "generation-chunk"
	EventGenerationEnded   = "generation-ended"

	// Events accepted from clients.
	eventAsk  = "ask"
	eventStop = "stop"
)

// Coordinator is the part of the chat module the gateway drives.
type Coordinator interface {
	Ask(ctx context.Context, groupID, userID, question string) (*chat.AskReceipt, error)
	Stop(groupID, userID string) bool
}

// Message is the envelope used by hub broadcasts and Redis fan-out.
type Message struct {
	Event   string      `json:"event"`
	Room    string      `json:"room"`
	Payload interface{} `json:"payload"`
	Origin  string      `json:"origin,omitempty"`
}

type clientMeta struct {
	sid  string
	room string
}

// conversationRoom names the socket.io room of a (group, user) conversation.
// Generation events are addressed to the room, so every open client of the
// same conversation sees the stream.
func conversationRoom(groupID, userID string) string {
	return groupID + ":" + userID
}

// Hub manages the chat namespace and cluster fan-out. It implements the
// chat Notifier so generation events flow to connected clients, including
// those attached to other instances via Redis pub/sub.
type Hub struct {
	mu sync.RWMutex

	sidRoom   map[string]string
	roomCount map[string]int

	broadcast  chan Message
	register   chan clientMeta
	unregister chan clientMeta

	rc          *pkgredis.Client
	logger      *zap.Logger
	sio         *socketio.Server
	coordinator Coordinator
	instanceID  string
}

func NewHub(rc *pkgredis.Client, logger *zap.Logger) *Hub {
	sio := socketio.NewServer(nil, nil)
	h := &Hub{
		sidRoom:    make(map[string]string),
		roomCount:  make(map[string]int),
		broadcast:  make(chan Message, 256),
		register:   make(chan clientMeta, 256),
		unregister: make(chan clientMeta, 256),
		rc:         rc,
		logger:     logger.Named("gateway"),
		sio:        sio,
		instanceID: uuid.New().String(),
	}
	h.registerNamespace()
	return h
}

// BindCoordinator attaches the chat coordinator. The hub and coordinator
// reference each other, so one side is wired after construction.
func (h *Hub) BindCoordinator(c Coordinator) {
	h.coordinator = c
}

func (h *Hub) registerNamespace() {
	ns := h.sio.Of(namespaceChat, nil)
	_ = ns.On("connection", func(args ...any) {
		client, ok := args[0].(*socketio.Socket)
		if !ok {
			return
		}

		claims, err := middleware.ValidateToken(extractToken(client))
		if err != nil {
			_ = client.Emit(EventAuthFailed, gin.H{"message": "authentication failed"})
			client.Disconnect(true)
			return
		}

		groupID := claims.GroupID
		userID := claims.UserID
		room := conversationRoom(groupID, userID)
		sid := string(client.Id())

		client.Join(socketio.Room(room))
		h.register <- clientMeta{sid: sid, room: room}
		_ = client.Emit(EventConnected, gin.H{"group_id": groupID, "user_id": userID})

		_ = client.On(eventAsk, func(askArgs ...any) {
			question := extractQuestion(askArgs)
			if h.coordinator == nil {
				return
			}
			receipt, err := h.coordinator.Ask(context.Background(), groupID, userID, question)
			if err != nil {
				_ = client.Emit(EventError, gin.H{"message": err.Error()})
				return
			}
			// Started events also fan out through the Notifier; the direct
			// reply carries the question row for the asking client only.
			_ = client.Emit("ask-accepted", gin.H{
				"question_id": receipt.Question.ID,
				"answer_id":   receipt.Answer.ID,
			})
		})

		_ = client.On(eventStop, func(_ ...any) {
			if h.coordinator == nil {
				return
			}
			stopped := h.coordinator.Stop(groupID, userID)
			_ = client.Emit("stop-accepted", gin.H{"stopped": stopped})
		})

		_ = client.On("disconnect", func(_ ...any) {
			h.unregister <- clientMeta{sid: sid, room: room}
		})
	})
}

func extractQuestion(args []any) string {
	if len(args) == 0 {
		return ""
	}
	switch v := args[0].(type) {
	case string:
		return v
	case map[string]any:
		if q, ok := v["question"].(string); ok {
			return q
		}
	}
	return ""
}

func extractToken(client *socketio.Socket) string {
	handshake := client.Handshake()
	if handshake == nil {
		return ""
	}
	if token := firstValueFromMultiMap(handshake.Query, "token"); token != "" {
		return token
	}
	if token := firstValueFromMultiMap(handshake.Headers, "authorization"); token != "" {
		return token
	}
	return ""
}

func firstValueFromMultiMap(values map[string][]string, key string) string {
	if len(values) == 0 {
		return ""
	}
	for k, list := range values {
		if !strings.EqualFold(strings.TrimSpace(k), key) || len(list) == 0 {
			continue
		}
		v := strings.TrimSpace(list[0])
		if v != "" {
			return v
		}
	}
	return ""
}

// Run starts the hub loop and Redis subscriber.
func (h *Hub) Run(ctx context.Context) {
	if h.rc != nil {
		go h.subscribeRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.sio.Close(nil)
			return

		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case msg := <-h.broadcast:
			h.deliver(msg)

			if h.rc != nil {
				data, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				if err := h.rc.Publish(ctx, redisChanChat, string(data)); err != nil {
					h.logger.Warn("gateway publish failed", zap.Error(err))
				}
			}
		}
	}
}

func (h *Hub) registerClient(c clientMeta) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if oldRoom, ok := h.sidRoom[c.sid]; ok {
		if oldRoom == c.room {
			return
		}
		if h.roomCount[oldRoom] > 0 {
			h.roomCount[oldRoom]--
		}
	}

	h.sidRoom[c.sid] = c.room
	h.roomCount[c.room]++
}

func (h *Hub) unregisterClient(c clientMeta) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.sidRoom[c.sid]
	if !ok {
		return
	}

	delete(h.sidRoom, c.sid)
	if h.roomCount[room] > 0 {
		h.roomCount[room]--
	}
}

func (h *Hub) deliver(msg Message) {
	h.sio.Of(namespaceChat, nil).
		To(socketio.Room(msg.Room)).
		Emit(msg.Event, msg.Payload)
}

// subscribeRedis listens for broadcasts from other server instances. Own
// messages are skipped, they were already delivered locally.
func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rc.Subscribe(ctx, redisChanChat)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return

		case redisMsg, ok := <-ch:
			if !ok {
				return
			}
			var msg Message
			if err := json.Unmarshal([]byte(redisMsg.Payload), &msg); err != nil {
				continue
			}
			if msg.Origin == h.instanceID {
				continue
			}
			h.deliver(msg)
		}
	}
}

func (h *Hub) emit(groupID, userID, event string, payload interface{}) {
	h.broadcast <- Message{
		Event:   event,
		Room:    conversationRoom(groupID, userID),
		Payload: payload,
		Origin:  h.instanceID,
	}
}

// GenerationStarted implements the chat Notifier.
func (h *Hub) GenerationStarted(groupID, userID string, message *models.ChatMessageModel) {
	h.emit(groupID, userID, EventGenerationStarted, gin.H{
		"message_id": message.ID,
		"created":    message.CreatedAt,
	})
}

// GenerationChunk implements the chat Notifier.
func (h *Hub) GenerationChunk(groupID, userID, messageID, text string) {
	h.emit(groupID, userID, EventGenerationChunk, gin.H{
		"message_id": messageID,
		"text":       text,
	})
}

// GenerationEnded implements the chat Notifier. Completed answers carry the
// titles of the documents they drew on; cancelled ones just report status.
func (h *Hub) GenerationEnded(groupID, userID, messageID string, status models.MessageStatus, sources models.StringArray) {
	payload := gin.H{
		"message_id": messageID,
		"status":     status,
	}
	if status == models.MessageActive {
		if sources == nil {
			sources = models.StringArray{}
		}
		payload["sources"] = sources
	}
	h.emit(groupID, userID, EventGenerationEnded, payload)
}

// ClientCount returns the number of connected clients, optionally filtered
// by conversation room.
func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if room == "" {
		return len(h.sidRoom)
	}
	return h.roomCount[room]
}

// Handler returns the socket.io HTTP handler mounted at /socket.io.
func (h *Hub) Handler() http.Handler {
	return h.sio.ServeHandler(nil)
}

// RegisterRoutes mounts socket.io and the gateway stats endpoint.
func RegisterRoutes(rg *gin.RouterGroup, hub *Hub, authMW gin.HandlerFunc) {
	handler := gin.WrapH(hub.Handler())
	rg.Any("/socket.io", handler)
	rg.Any("/socket.io/*any", handler)

	rg.GET("/gateway/stats", authMW, func(c *gin.Context) {
		room := conversationRoom(middleware.CurrentGroupID(c), middleware.CurrentUserID(c))
		c.JSON(http.StatusOK, gin.H{
			"conversation": hub.ClientCount(room),
			"total":        hub.ClientCount(""),
		})
	})
}
