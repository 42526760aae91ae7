package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/mathocr/internal/pipeline"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

const detailBinaryOnly = "Envíe la imagen como mensaje binario"

// upgrader returns an upgrader that honours the configured CORS origin.
func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return s.cfg.CORSOrigin == "*" || origin == "" || origin == s.cfg.CORSOrigin
		},
	}
}

// webSocketHandler runs the pipeline once per binary frame. Each frame is
// answered with a Result or an ErrorResponse.
func (s *Server) webSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()
	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	conn.SetReadLimit(s.maxUploadBytes())
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go keepAlive(conn, done)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket read failed", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		if msgType != websocket.BinaryMessage {
			s.sendWebSocket(conn, ErrorResponse{Detail: detailBinaryOnly})
			continue
		}
		s.sendWebSocket(conn, s.processFrame(r, data))
	}
}

func (s *Server) processFrame(r *http.Request, data []byte) any {
	requestID := uuid.NewString()
	uploadSizeBytes.Observe(float64(len(data)))

	ctx, cancel := s.runContext(r.Context())
	defer cancel()

	start := time.Now()
	res, err := s.proc.ProcessBytes(ctx, data)
	pipeline.Observe(pipeline.SourceWebSocket, err)
	if err != nil {
		_, detail := errorStatus(err)
		slog.Info("WebSocket detection failed", "request_id", requestID, "error", err)
		return ErrorResponse{Detail: detail}
	}
	slog.Info("WebSocket detection completed",
		"request_id", requestID,
		"expression", res.Expression,
		"duration_ms", time.Since(start).Milliseconds())
	return res
}

// keepAlive pings the peer until done is closed.
func keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

// sendWebSocket writes v as a JSON text frame.
func (s *Server) sendWebSocket(conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
