// Package termws bridges browser terminals onto sandbox exec sessions over
// WebSocket. Binary frames carry raw terminal bytes in both directions;
// JSON text frames carry control messages (resize in, exit code out).
package termws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/harborworks/dockhand/pkg/sandbox"
)

// Terminals is the slice of the orchestrator the bridge needs.
type Terminals interface {
	ExecInteractive(ctx context.Context, id string, opts sandbox.TerminalOptions) (sandbox.ExecSession, error)
}

// controlMessage is a client-to-server text frame.
type controlMessage struct {
	Type string `json:"type"`
	Cols uint   `json:"cols,omitempty"`
	Rows uint   `json:"rows,omitempty"`
}

// exitMessage is the final text frame sent when the session ends.
type exitMessage struct {
	Type     string `json:"type"`
	ExitCode int    `json:"exitCode"`
}

// Server is an http.Handler serving one terminal session per connection.
// The sandbox id comes from the "id" path value or query parameter.
type Server struct {
	terminals Terminals
	upgrader  websocket.Upgrader
	conns     *xsync.MapOf[*websocket.Conn, struct{}]
}

// New returns a terminal bridge backed by terminals.
func New(terminals Terminals) *Server {
	return &Server{
		terminals: terminals,
		conns:     xsync.NewMapOf[*websocket.Conn, struct{}](),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 32 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

var _ http.Handler = (*Server)(nil)

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		id = r.URL.Query().Get("id")
	}
	if id == "" {
		http.Error(w, "missing sandbox id", http.StatusBadRequest)
		return
	}

	// Open the session before upgrading so failures still have an HTTP
	// status to travel on.
	session, err := s.terminals.ExecInteractive(r.Context(), id, optionsFromQuery(r))
	if err != nil {
		slog.Error("failed to open terminal session", "id", id, "error", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	defer session.Close()

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade websocket", "error", err, "remote", r.RemoteAddr)
		return
	}
	s.conns.Store(wsConn, struct{}{})
	defer func() {
		s.conns.Delete(wsConn)
		wsConn.Close()
	}()

	slog.Info("terminal connected", "id", id, "remote", r.RemoteAddr)
	s.pump(r.Context(), wsConn, session)
	slog.Info("terminal disconnected", "id", id, "remote", r.RemoteAddr)
}

// pump moves bytes between the WebSocket and the session until data stops
// flowing. All WebSocket writes happen on this goroutine.
func (s *Server) pump(ctx context.Context, wsConn *websocket.Conn, session sandbox.ExecSession) {
	// Client frames into the session. A dead client tears the session
	// down, which unblocks the output loop below.
	go func() {
		defer session.Close()
		for {
			messageType, data, err := wsConn.ReadMessage()
			if err != nil {
				return
			}
			switch messageType {
			case websocket.BinaryMessage:
				if _, err := session.Write(data); err != nil {
					return
				}
			case websocket.TextMessage:
				s.control(ctx, session, data)
			}
		}
	}()

	buf := make([]byte, 32*1024)
	for {
		n, err := session.Read(buf)
		if n > 0 {
			if werr := wsConn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			break
		}
	}

	// Output drained: report how the process ended, then close cleanly.
	exitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	code, err := session.ExitCode(exitCtx)
	if err != nil {
		slog.Debug("exit code unavailable", "error", err)
		code = -1
	}
	if data, err := json.Marshal(exitMessage{Type: "exit", ExitCode: code}); err == nil {
		wsConn.WriteMessage(websocket.TextMessage, data)
	}
	wsConn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// control applies one client control frame. Malformed frames are dropped;
// a terminal must not die because the page sent junk.
func (s *Server) control(ctx context.Context, session sandbox.ExecSession, data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Debug("ignoring malformed control frame", "error", err)
		return
	}
	switch msg.Type {
	case "resize":
		if msg.Cols > 0 && msg.Rows > 0 {
			if err := session.Resize(ctx, msg.Cols, msg.Rows); err != nil {
				slog.Debug("resize failed", "error", err)
			}
		}
	default:
		slog.Debug("ignoring unknown control frame", "type", msg.Type)
	}
}

// Close closes every live terminal connection.
func (s *Server) Close() {
	s.conns.Range(func(conn *websocket.Conn, _ struct{}) bool {
		conn.Close()
		return true
	})
}

func optionsFromQuery(r *http.Request) sandbox.TerminalOptions {
	q := r.URL.Query()
	opts := sandbox.TerminalOptions{
		Shell:   q.Get("shell"),
		WorkDir: q.Get("workdir"),
		User:    q.Get("user"),
	}
	if cols, err := strconv.Atoi(q.Get("cols")); err == nil && cols > 0 {
		opts.Width = uint(cols)
	}
	if rows, err := strconv.Atoi(q.Get("rows")); err == nil && rows > 0 {
		opts.Height = uint(rows)
	}
	return opts
}

func statusFor(err error) int {
	var execErr *sandbox.ExecStartError
	switch {
	case errors.Is(err, sandbox.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &execErr):
		return http.StatusConflict
	case errors.Is(err, sandbox.ErrRuntimeUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
