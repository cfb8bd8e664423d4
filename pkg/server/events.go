package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"migra/pkg/logger"
	"migra/pkg/wizard"
)

const (
	eventsWriteWait = 10 * time.Second
	eventsPongWait  = 60 * time.Second
	eventsPingEvery = (eventsPongWait * 9) / 10
)

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// handleEvents streams wizard events of a session over a websocket. The
// current snapshot is sent first.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	log := logger.WithSession(logger.FromContext(r.Context()), session.ID)

	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writeCh := make(chan wizard.Event, 32)
	var unsubscribe func()
	_ = session.Do(func(c *wizard.Controller) error {
		pushEvent(writeCh, wizard.Event{
			Type: "snapshot",
			Step: c.Step(),
			Data: c.Snapshot(),
			Time: time.Now().UTC(),
		})
		unsubscribe = c.Subscribe(func(ev wizard.Event) { pushEvent(writeCh, ev) })
		return nil
	})
	defer func() {
		_ = session.Do(func(*wizard.Controller) error {
			unsubscribe()
			return nil
		})
	}()

	if err := conn.SetReadDeadline(time.Now().Add(eventsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	})

	// The client sends nothing; reading only notices close and pongs.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(eventsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-writeCh:
			if err := conn.SetWriteDeadline(time.Now().Add(eventsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug("event stream closed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(eventsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// pushEvent never blocks; when the buffer is full the oldest event is
// dropped.
func pushEvent(ch chan wizard.Event, ev wizard.Event) {
	select {
	case ch <- ev:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- ev:
	default:
	}
}
