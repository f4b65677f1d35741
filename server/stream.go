package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Events streams journaled step transitions over a websocket. Clients may
// pass ?cursor=<event id> to resume after the last event they saw.
func (s *Server) Events(w http.ResponseWriter, r *http.Request) {
	l := s.l.With("handler", "Events")

	var cursor int64
	if c := r.URL.Query().Get("cursor"); c != "" {
		n, err := strconv.ParseInt(c, 10, 64)
		if err != nil || n < 0 {
			writeError(w, apiError{Tag: "Validation", Message: "cursor must be a non-negative integer"}, http.StatusBadRequest)
			return
		}
		cursor = n
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	l.Debug("upgraded http to ws", "cursor", cursor)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := s.n.Subscribe(ctx)
	defer s.n.Unsubscribe(ch)

	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	// complete backfill first before going to live data
	if err := s.streamEvents(conn, &cursor); err != nil {
		l.Error("failed to backfill", "err", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			l.Debug("stopping stream: client closed connection")
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if err := s.streamEvents(conn, &cursor); err != nil {
				l.Error("failed to stream", "err", err)
				return
			}
		case <-time.After(30 * time.Second):
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second)); err != nil {
				l.Error("failed to write control", "err", err)
			}
		}
	}
}

// streamEvents writes every event after cursor, a page at a time.
func (s *Server) streamEvents(conn *websocket.Conn, cursor *int64) error {
	for {
		evts, err := s.db.GetEvents(*cursor)
		if err != nil {
			return err
		}
		if len(evts) == 0 {
			return nil
		}
		for _, evt := range evts {
			if err := conn.WriteJSON(evt); err != nil {
				return err
			}
			*cursor = evt.Id
		}
	}
}
