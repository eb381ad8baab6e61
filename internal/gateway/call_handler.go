package gateway

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/solace-labs/wallet-messenger/internal/callroom"
)

var callUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleCallSignal implements the bidirectional call-signaling channel
// /call/signal/{roomId}?participant=<id>, upgrading to a websocket and
// attaching it to the room's actor, which owns all relay logic.
func (s *Server) handleCallSignal(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	participantID := r.URL.Query().Get("participant")
	caller := callerIdentity(r)
	if participantID == "" || participantID != caller {
		writeError(w, ErrUnauthorized)
		return
	}

	// The room is keyed by roomId alone; the first participant to attach
	// fixes the call's two named slots for its lifetime, identifying the
	// other side via the "peer" query param. A reattach (peer omitted)
	// only succeeds if the room already exists.
	var room *callroom.Actor
	if existing, ok := s.Calls.Lookup(roomID); ok {
		room = existing
	} else {
		peer := r.URL.Query().Get("peer")
		if peer == "" {
			writeError(w, ErrBadRequest)
			return
		}
		room = s.Calls.Room(roomID, participantID, peer)
	}

	conn, err := callUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.metrics.CallSignalSockets.Add(1)

	room.Attach(r.Context(), participantID, conn)
	go s.readCallFrames(room, participantID, conn)
}

func (s *Server) readCallFrames(room *callroom.Actor, participantID string, conn *websocket.Conn) {
	for {
		var frame callroom.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			clean := websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
			room.Detach(participantID, clean)
			return
		}
		room.Relay(context.Background(), participantID, frame)
	}
}
