package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/mathocr/internal/ocr"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWebSocket(t *testing.T, s *Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/detectar"
	return websocket.DefaultDialer.Dial(url, header)
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	return body
}

func TestWebSocket_Frames(t *testing.T) {
	s := newTestServer(t, ocr.NewStaticEngine("6", "x7"), testOptions{})
	conn, _, err := dialWebSocket(t, s, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, pngBytes(t)))
	body := readJSON(t, conn)
	assert.Equal(t, "6*7", body["expresion"])
	assert.Equal(t, 42.0, body["resultado"])

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("garbage")))
	assert.Equal(t, map[string]any{"detail": detailInvalidImage}, readJSON(t, conn))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hola")))
	assert.Equal(t, map[string]any{"detail": detailBinaryOnly}, readJSON(t, conn))

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, pngBytes(t)))
	assert.Equal(t, "6*7", readJSON(t, conn)["expresion"], "connection survives errors")
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	s := newTestServer(t, ocr.NewStaticEngine(), testOptions{corsOrigin: "https://app.example"})

	_, resp, err := dialWebSocket(t, s, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := dialWebSocket(t, s, http.Header{"Origin": {"https://app.example"}})
	require.NoError(t, err)
	_ = conn.Close()
}
