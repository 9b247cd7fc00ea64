package websocket

import (
	"net/http"
	"time"

	"finquest/core"
	"finquest/realtime"
	gorillaws "github.com/gorilla/websocket"
)

// Scope resolves the user whose notices a connection receives. An empty id
// streams every user's notices; an error rejects the upgrade with 401.
type Scope func(r *http.Request) (core.UserID, error)

const writeWait = 5 * time.Second

// Handler returns an http.Handler that upgrades to WebSocket and streams notices from the hub.
func Handler(hub *realtime.Hub, scope Scope) http.Handler {
	upgrader := gorillaws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var user core.UserID
		if scope != nil {
			u, err := scope(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			user = u
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		id, ch := hub.SubscribeUser(user, 256)
		defer hub.Unsubscribe(id)

		// Reader loop notices the peer closing.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case n, ok := <-ch:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(gorillaws.TextMessage, realtime.MarshalJSON(n)); err != nil {
					return
				}
			}
		}
	})
}
