// Package relay bridges one WebSocket connection to one task's event channel.
//
// Every relay process subscribes to the bus directly for each connection it
// holds, so fan-out across processes is the bus's job and no process ever
// needs another process's socket. The presence index only mirrors who is
// connected where, for introspection.
//
// Known limitation, accepted deliberately: events published while a task had
// no subscribers are gone. A client that connects mid-task only sees events
// from its subscription onward; a client that connects after the task
// finished gets a single synthetic terminal event built from the stored
// status instead of hanging forever.
package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"taskstream/internal/domain"
	"taskstream/internal/ports"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Gorilla keepalive conventions.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

type Relay struct {
	Bus      ports.Bus
	Results  ports.Results
	Presence ports.Presence
	Registry *ConnectionRegistry

	upgrader websocket.Upgrader
}

// New builds a relay. presence may be nil for single-process deployments.
func New(bus ports.Bus, results ports.Results, presence ports.Presence, registry *ConnectionRegistry) *Relay {
	return &Relay{
		Bus:      bus,
		Results:  results,
		Presence: presence,
		Registry: registry,
		upgrader: websocket.Upgrader{
			// Subscribers are unauthenticated; origin checks add nothing.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeTask upgrades the request and relays the task's events until a
// terminal event arrives or the client goes away.
func (rl *Relay) ServeTask(w http.ResponseWriter, r *http.Request, taskID string) {
	conn, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Str("task_id", taskID).Msg("websocket upgrade failed")
		return
	}
	rl.relay(r.Context(), conn, taskID)
}

func (rl *Relay) relay(ctx context.Context, conn *websocket.Conn, taskID string) {
	defer conn.Close()

	logger := log.Ctx(ctx).With().Str("task_id", taskID).Logger()

	// A task that already reached a terminal state publishes nothing
	// further; short-circuit with one synthetic terminal event instead of
	// subscribing to a silent channel.
	if t, err := rl.Results.Get(ctx, taskID); err == nil && t != nil && t.Status.Terminal() {
		rl.sendSynthetic(conn, t)
		return
	} else if err != nil {
		logger.Warn().Err(err).Msg("status lookup at connect failed, relaying anyway")
	}

	sub, err := rl.Bus.Subscribe(ctx, domain.Channel(taskID))
	if err != nil {
		logger.Warn().Err(err).Msg("event bus subscribe failed")
		return
	}
	defer sub.Close()

	connID := uuid.NewString()
	rl.Registry.Add(taskID, connID)
	defer rl.Registry.Remove(taskID, connID)

	if rl.Presence != nil {
		if err := rl.Presence.Add(ctx, taskID, connID); err != nil {
			logger.Debug().Err(err).Msg("presence add failed")
		}
		defer func() {
			// Runs after ctx may be done; give cleanup its own deadline.
			cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := rl.Presence.Remove(cctx, taskID, connID); err != nil {
				logger.Debug().Err(err).Msg("presence remove failed")
			}
		}()
	}

	logger.Debug().Str("connection_id", connID).Msg("relay subscribed")

	// Read pump: its only jobs are answering pings and noticing disconnect.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-disconnected:
			logger.Debug().Str("connection_id", connID).Msg("client disconnected")
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case payload, ok := <-sub.Events():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debug().Err(err).Str("connection_id", connID).Msg("forward failed")
				return
			}
			// Forward verbatim, inspect only the type.
			var probe struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(payload, &probe); err == nil && domain.TerminalEvent(probe.Type) {
				rl.closeNormal(conn, "task finished")
				return
			}
		}
	}
}

// sendSynthetic delivers one terminal event derived from the stored status,
// then closes. Marked synthetic so clients can tell it from a live event.
func (rl *Relay) sendSynthetic(conn *websocket.Conn, t *domain.Task) {
	ev := domain.Event{
		TaskID:    t.ID,
		Type:      domain.EventTaskEnd,
		Message:   "Task already completed",
		Timestamp: time.Now().UTC(),
		Extra: map[string]any{
			"synthetic": true,
			"status":    string(t.Status),
		},
	}
	if t.Status == domain.StatusFailure {
		ev.Type = domain.EventTaskError
		ev.Message = "Task already failed"
		if t.Traceback != "" {
			ev.Extra["error"] = t.Traceback
		}
	}
	if t.Result != nil {
		ev.Extra["data"] = t.Result
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.TextMessage, payload)
	rl.closeNormal(conn, "task finished")
}

func (rl *Relay) closeNormal(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
