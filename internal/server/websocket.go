package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"vortex/internal/backend"
	"vortex/internal/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// No origin header means a non-browser client such as the CLI
		if origin == "" {
			return true
		}
		for _, allowed := range []string{
			"http://localhost", "https://localhost",
			"http://127.0.0.1", "https://127.0.0.1",
		} {
			if strings.HasPrefix(origin, allowed) {
				return true
			}
		}
		logger.WithFields(logger.Fields{
			"origin": origin,
			"remote": r.RemoteAddr,
		}).Warn("WebSocket connection rejected, invalid origin")
		return false
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ClientMessage represents messages from client to server
type ClientMessage struct {
	Type string `json:"type"` // 'stdin', 'ping'
	Data string `json:"data,omitempty"`
}

// ServerMessage represents messages from server to client
type ServerMessage struct {
	Type string `json:"type"` // 'stdout', 'stderr', 'exit', 'pong'
	Data string `json:"data,omitempty"`
}

// handleAttachWebSocket bridges a websocket connection onto an
// interactive session attach. The attach blocks for the lifetime of
// the connection; closing the socket cancels it.
func (s *Server) handleAttachWebSocket(c echo.Context) error {
	vmIdentity := c.Param("vm")

	raw, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "websocket upgrade failed")
	}
	defer raw.Close()
	ws := &wsConn{ws: raw}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	stdinReader, stdinWriter := io.Pipe()

	// Reader pump: client messages feed the session's stdin
	go func() {
		defer cancel()
		defer stdinWriter.Close()
		for {
			_, payload, err := raw.ReadMessage()
			if err != nil {
				return
			}
			var msg ClientMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				continue
			}
			switch msg.Type {
			case "stdin":
				if _, err := stdinWriter.Write([]byte(msg.Data)); err != nil {
					return
				}
			case "ping":
				ws.writeMessage(ServerMessage{Type: "pong"})
			}
		}
	}()

	attachErr := s.sessOps.AttachSession(ctx, vmIdentity, backend.AttachOptions{
		Stdin:  stdinReader,
		Stdout: &wsStreamWriter{ws: ws, stream: "stdout"},
		Stderr: &wsStreamWriter{ws: ws, stream: "stderr"},
	})

	exit := ServerMessage{Type: "exit"}
	if attachErr != nil {
		exit.Data = attachErr.Error()
	}
	ws.writeMessage(exit)
	return nil
}

// wsConn serializes writes; gorilla connections allow only one
// concurrent writer.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsConn) writeMessage(msg ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// wsStreamWriter forwards session output to the websocket as typed
// messages.
type wsStreamWriter struct {
	ws     *wsConn
	stream string
}

func (w *wsStreamWriter) Write(p []byte) (int, error) {
	if err := w.ws.writeMessage(ServerMessage{Type: w.stream, Data: string(p)}); err != nil {
		return 0, err
	}
	return len(p), nil
}
