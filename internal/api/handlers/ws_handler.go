package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/medivoice/internal/services"
	"github.com/yoockh/medivoice/internal/utils"
	"github.com/yoockh/medivoice/internal/voice"
	"github.com/yoockh/medivoice/internal/workers"
)

// AgentWSHandler serves the live call view of one consultation session.
type AgentWSHandler struct {
	calls    services.CallService
	sessions services.SessionService
	redis    *redis.Client // optional, forwards report status frames
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func NewAgentWSHandler(calls services.CallService, sessions services.SessionService, rdb *redis.Client, log *logrus.Logger) *AgentWSHandler {
	return &AgentWSHandler{
		calls:    calls,
		sessions: sessions,
		redis:    rdb,
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict to the dashboard origin once it is configurable
		},
	}
}

type wsClientMsg struct {
	Type string `json:"type"` // start_call|end_call
}

type wsStateMsg struct {
	Type string `json:"type"`
	voice.Snapshot
}

type wsErrorMsg struct {
	Type    string     `json:"type"`
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) write(messageType int, b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(messageType, b)
}

func (w *wsConn) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.write(websocket.TextMessage, b)
}

func (w *wsConn) writeError(err error) error {
	msg := "internal error"
	var ae *utils.AppError
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	return w.writeJSON(wsErrorMsg{Type: "error", Code: utils.CodeOf(err), Message: msg})
}

// latestSnapshot keeps only the newest state; the writer always sends the
// current view, never a stale one.
type latestSnapshot struct {
	mu     sync.Mutex
	snap   voice.Snapshot
	notify chan struct{}
}

func (l *latestSnapshot) set(s voice.Snapshot) {
	l.mu.Lock()
	l.snap = s
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *latestSnapshot) get() voice.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

func (h *AgentWSHandler) AgentWS(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AgentWSHandler.AgentWS", "missing session_id", nil))
		return
	}

	if _, err := h.sessions.Get(c.Request.Context(), sessionID); err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	log := h.log.WithField("session_id", sessionID)
	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	ctrl, release := h.calls.Acquire(sessionID)
	defer release()

	latest := &latestSnapshot{snap: ctrl.Snapshot(), notify: make(chan struct{}, 1)}
	unsubscribe := ctrl.Subscribe(func(u voice.Update) { latest.set(u.Snapshot) })
	defer unsubscribe()

	if err := wc.writeJSON(wsStateMsg{Type: "state", Snapshot: latest.get()}); err != nil {
		return
	}

	var statusCh <-chan *redis.Message
	if h.redis != nil {
		pubsub := h.redis.Subscribe(ctx, workers.StatusChannel(sessionID))
		defer pubsub.Close()
		statusCh = pubsub.Channel()
	}

	// reader: browser -> call controller
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			var msg wsClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = wc.writeError(utils.E(utils.CodeInvalidArgument, "AgentWSHandler", "invalid json", err))
				continue
			}

			switch msg.Type {
			case "start_call":
				if err := h.calls.StartCall(ctx, sessionID); err != nil {
					log.WithError(err).Warn("start call failed")
					_ = wc.writeError(err)
				}
			case "end_call":
				if err := h.calls.EndCall(ctx, sessionID); err != nil {
					log.WithError(err).Warn("end call failed")
				}
			default:
				_ = wc.writeError(utils.E(utils.CodeInvalidArgument, "AgentWSHandler", "unknown message type", nil))
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	// writer: controller state + report status -> browser
	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case <-latest.notify:
			if err := wc.writeJSON(wsStateMsg{Type: "state", Snapshot: latest.get()}); err != nil {
				return
			}
		case m, ok := <-statusCh:
			if !ok {
				statusCh = nil
				continue
			}
			// forward as-is (payload expected JSON string)
			if err := wc.write(websocket.TextMessage, []byte(m.Payload)); err != nil {
				return
			}
		case <-ping.C:
			if err := wc.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
