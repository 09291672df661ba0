package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"cdbmap/internal/loader"
)

const writeTimeout = 5 * time.Second

// handleWS streams a State document for the current snapshot and then one
// per committed change. Slow readers only ever get the latest state.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket accept")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	updates := make(chan loader.Snapshot, 1)
	unsubscribe := s.loader.Subscribe(func(snap loader.Snapshot) {
		// snapshots arrive one at a time so the drain cannot race another send
		select {
		case <-updates:
		default:
		}
		updates <- snap
	})
	defer unsubscribe()

	// reads are not expected; CloseRead ends ctx once the peer goes away
	ctx := conn.CloseRead(r.Context())

	if err := s.push(ctx, conn, s.loader.Snapshot()); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			if err := s.push(ctx, conn, snap); err != nil {
				s.log.Debug().Err(err).Msg("websocket write")
				return
			}
		}
	}
}

func (s *Server) push(ctx context.Context, conn *websocket.Conn, snap loader.Snapshot) error {
	data, err := json.Marshal(StateOf(snap))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
