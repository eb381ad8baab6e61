package callroom

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func newTestServer(t *testing.T, mgr *Manager, roomID, callerID, calleeID string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		participantID := r.URL.Query().Get("participant")
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		actor := mgr.Room(roomID, callerID, calleeID)
		actor.Attach(context.Background(), participantID, conn)
		go func() {
			for {
				var frame Frame
				if err := conn.ReadJSON(&frame); err != nil {
					actor.Detach(participantID, websocket.IsCloseError(err, websocket.CloseNormalClosure))
					return
				}
				actor.Relay(context.Background(), participantID, frame)
			}
		}()
	}))
}

func dial(t *testing.T, srv *httptest.Server, participant string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?participant=" + participant
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", participant, err)
	}
	return conn
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	store, err := OpenStateStore(filepath.Join(dir, "calls.db"))
	if err != nil {
		t.Fatalf("OpenStateStore: %v", err)
	}
	mgr := NewManager(store, nil)
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

func TestOfferAnswerRelayTransitionsToActive(t *testing.T) {
	mgr := newTestManager(t)
	srv := newTestServer(t, mgr, "room1", "CALLER", "CALLEE")
	defer srv.Close()

	callerConn := dial(t, srv, "CALLER")
	defer callerConn.Close()
	calleeConn := dial(t, srv, "CALLEE")
	defer calleeConn.Close()

	// drain initial call_state snapshots
	var snap Frame
	_ = callerConn.ReadJSON(&snap)
	_ = calleeConn.ReadJSON(&snap)

	if err := callerConn.WriteJSON(Frame{Type: FrameOffer, SDP: "offer-sdp"}); err != nil {
		t.Fatalf("write offer: %v", err)
	}
	var got Frame
	calleeConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := calleeConn.ReadJSON(&got); err != nil {
		t.Fatalf("callee read offer: %v", err)
	}
	if got.Type != FrameOffer || got.SDP != "offer-sdp" || got.From != "CALLER" {
		t.Fatalf("expected relayed offer with from set, got %+v", got)
	}

	if err := calleeConn.WriteJSON(Frame{Type: FrameAnswer, SDP: "answer-sdp"}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	callerConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := callerConn.ReadJSON(&got); err != nil {
		t.Fatalf("caller read answer: %v", err)
	}
	if got.Type != FrameAnswer || got.SDP != "answer-sdp" || got.From != "CALLEE" {
		t.Fatalf("expected relayed answer with from set, got %+v", got)
	}

	if _, ok := mgr.Lookup("room1"); !ok {
		t.Fatalf("expected room1 actor to exist")
	}
	// give the actor loop a moment to apply the state transition
	time.Sleep(50 * time.Millisecond)
	st, found, err := mgr.store.Load("room1")
	if err != nil || !found {
		t.Fatalf("load state: found=%v err=%v", found, err)
	}
	if st.Status != StatusActive {
		t.Fatalf("expected status active after answer, got %v", st.Status)
	}
}

func TestCallRejectEndsCallAndBroadcasts(t *testing.T) {
	mgr := newTestManager(t)
	srv := newTestServer(t, mgr, "room2", "CALLER", "CALLEE")
	defer srv.Close()

	callerConn := dial(t, srv, "CALLER")
	defer callerConn.Close()
	calleeConn := dial(t, srv, "CALLEE")
	defer calleeConn.Close()

	var snap Frame
	_ = callerConn.ReadJSON(&snap)
	_ = calleeConn.ReadJSON(&snap)

	if err := calleeConn.WriteJSON(Frame{Type: FrameCallReject}); err != nil {
		t.Fatalf("write reject: %v", err)
	}
	var got Frame
	callerConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := callerConn.ReadJSON(&got); err != nil {
		t.Fatalf("caller read call_ended: %v", err)
	}
	if got.Type != FrameCallEnded || got.Reason != ReasonRejected {
		t.Fatalf("expected call_ended{rejected}, got %+v", got)
	}

	st, found, err := mgr.store.Load("room2")
	if err != nil || !found {
		t.Fatalf("load state: found=%v err=%v", found, err)
	}
	if st.Status != StatusEnded || st.Reason != ReasonRejected {
		t.Fatalf("expected ended/rejected, got %+v", st)
	}
}

func TestOnEndedFiresOnceOnReject(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStateStore(filepath.Join(dir, "calls.db"))
	if err != nil {
		t.Fatalf("OpenStateStore: %v", err)
	}

	var mu sync.Mutex
	var ended []Status
	mgr := NewManager(store, func(s Status) {
		mu.Lock()
		ended = append(ended, s)
		mu.Unlock()
	})
	t.Cleanup(func() { _ = mgr.Close() })

	srv := newTestServer(t, mgr, "room4", "CALLER", "CALLEE")
	defer srv.Close()

	callerConn := dial(t, srv, "CALLER")
	defer callerConn.Close()
	calleeConn := dial(t, srv, "CALLEE")
	defer calleeConn.Close()

	var snap Frame
	_ = callerConn.ReadJSON(&snap)
	_ = calleeConn.ReadJSON(&snap)

	if err := calleeConn.WriteJSON(Frame{Type: FrameCallReject}); err != nil {
		t.Fatalf("write reject: %v", err)
	}
	callerConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := callerConn.ReadJSON(&snap); err != nil {
		t.Fatalf("caller read call_ended: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(ended) != 1 {
		t.Fatalf("expected onEnded to fire exactly once, got %d calls: %+v", len(ended), ended)
	}
	if ended[0].Status != StatusEnded || ended[0].Reason != ReasonRejected {
		t.Fatalf("expected ended/rejected status passed to onEnded, got %+v", ended[0])
	}
}

func TestPingRepliesWithPong(t *testing.T) {
	mgr := newTestManager(t)
	srv := newTestServer(t, mgr, "room3", "CALLER", "CALLEE")
	defer srv.Close()

	callerConn := dial(t, srv, "CALLER")
	defer callerConn.Close()

	var snap Frame
	_ = callerConn.ReadJSON(&snap)

	if err := callerConn.WriteJSON(Frame{Type: FramePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	var got Frame
	callerConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := callerConn.ReadJSON(&got); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if got.Type != FramePong {
		t.Fatalf("expected pong, got %+v", got)
	}
}
