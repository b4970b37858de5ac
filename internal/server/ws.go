package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/renderix/facegate/internal/face"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// QualityStreamHandler analyzes capture quality over a WebSocket so a
// client can guide the user toward a usable frame before enrolling.
// Each binary message is one encoded frame; each reply is the quality
// result for that frame.
type QualityStreamHandler struct {
	service *face.Service
}

// NewQualityStreamHandler creates a new QualityStreamHandler with the
// given service.
func NewQualityStreamHandler(s *face.Service) *QualityStreamHandler {
	return &QualityStreamHandler{service: s}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *QualityStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		reply := h.analyze(data)
		msg, err := json.Marshal(reply)
		if err != nil {
			continue
		}

		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// streamReply is one quality result frame sent back to the client.
type streamReply struct {
	*face.QualityResult
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// analyze runs a quality check for one frame. Frame-level failures are
// reported in-band; the stream stays open.
func (h *QualityStreamHandler) analyze(data []byte) streamReply {
	reply := streamReply{Timestamp: time.Now().UnixMilli()}

	result, err := h.service.QualityCheck(data)
	if err != nil {
		reply.Error = err.Error()
		return reply
	}

	reply.QualityResult = result
	return reply
}
