package callroom

import (
	"context"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

type attachCmd struct {
	participantID string
	conn          *websocket.Conn
}

type frameCmd struct {
	from  string
	frame Frame
}

type detachCmd struct {
	participantID string
	clean         bool
}

// Actor owns exactly one call room: two named participants, caller and
// callee, relaying signaling frames between whichever transports are
// currently attached. Register/unregister/broadcast are narrowed from an
// open client set to two named slots, with a grace-period sweep for
// abnormal disconnects.
type Actor struct {
	roomID   string
	callerID string
	calleeID string

	store   *StateStore
	grace   *graceTracker
	onEnded func(Status)

	state      Status
	transports map[string]*websocket.Conn

	attachCh chan attachCmd
	frameCh  chan frameCmd
	detachCh chan detachCmd
	graceCh  chan string
	done     chan struct{}
}

func newActor(roomID, callerID, calleeID string, store *StateStore, onEnded func(Status), now time.Time) *Actor {
	a := &Actor{
		roomID:     roomID,
		callerID:   callerID,
		calleeID:   calleeID,
		store:      store,
		onEnded:    onEnded,
		transports: make(map[string]*websocket.Conn),
		attachCh:   make(chan attachCmd),
		frameCh:    make(chan frameCmd),
		detachCh:   make(chan detachCmd),
		graceCh:    make(chan string),
		done:       make(chan struct{}),
	}
	if existing, found, err := store.Load(roomID); err == nil && found {
		a.state = existing
	} else {
		a.state = Status{
			RoomID:    roomID,
			CallerID:  callerID,
			CalleeID:  calleeID,
			Status:    StatusRinging,
			CreatedAt: now.UnixMilli(),
		}
		_ = store.Save(a.state)
	}
	a.grace = newGraceTracker(func(participantID string) {
		select {
		case a.graceCh <- participantID:
		case <-a.done:
		}
	})
	if pending, err := store.LoadPendingDisconnects(roomID); err == nil {
		for _, p := range pending {
			a.grace.ArmAt(p.ParticipantID, time.UnixMilli(p.At).Add(GracePeriod))
		}
	}
	go a.loop()
	return a
}

func (a *Actor) loop() {
	defer a.grace.Stop()
	for {
		select {
		case cmd := <-a.attachCh:
			a.handleAttach(cmd.participantID, cmd.conn)
		case cmd := <-a.frameCh:
			a.handleFrame(cmd.from, cmd.frame)
		case cmd := <-a.detachCh:
			a.handleDetach(cmd.participantID, cmd.clean)
		case participantID := <-a.graceCh:
			a.handleGraceExpired(participantID)
		case <-a.done:
			return
		}
	}
}

// Attach registers conn as participantID's transport: cancel any pending
// grace timer, replace the slot, and send a call_state snapshot if the
// call isn't over.
func (a *Actor) Attach(ctx context.Context, participantID string, conn *websocket.Conn) {
	select {
	case a.attachCh <- attachCmd{participantID: participantID, conn: conn}:
	case <-ctx.Done():
	case <-a.done:
	}
}

// Relay delivers a frame received from participantID into the actor loop.
func (a *Actor) Relay(ctx context.Context, from string, frame Frame) {
	select {
	case a.frameCh <- frameCmd{from: from, frame: frame}:
	case <-ctx.Done():
	case <-a.done:
	}
}

// Detach notifies the actor that participantID's transport closed. clean
// indicates a normal close frame was received; otherwise the grace period
// is armed.
func (a *Actor) Detach(participantID string, clean bool) {
	select {
	case a.detachCh <- detachCmd{participantID: participantID, clean: clean}:
	case <-a.done:
	}
}

// Close stops the actor's goroutine and grace sweeper.
func (a *Actor) Close() {
	select {
	case <-a.done:
	default:
		close(a.done)
	}
}

func (a *Actor) otherOf(participantID string) string {
	if participantID == a.callerID {
		return a.calleeID
	}
	return a.callerID
}

func (a *Actor) handleAttach(participantID string, conn *websocket.Conn) {
	a.grace.Cancel(participantID)
	_ = a.store.ClearPendingDisconnect(a.roomID, participantID)

	if old, ok := a.transports[participantID]; ok && old != conn {
		_ = old.Close()
	}
	a.transports[participantID] = conn

	if !a.state.Terminal() {
		a.sendTo(participantID, Frame{Type: FrameCallState, State: stateCopy(a.state)})
	}
}

func (a *Actor) handleFrame(from string, frame Frame) {
	other := a.otherOf(from)

	switch frame.Type {
	case FrameOffer, FrameAnswer, FrameICECandidate:
		if _, present := a.transports[other]; !present {
			return
		}
		if frame.Type == FrameAnswer && (a.state.Status == StatusRinging || a.state.Status == StatusConnecting) {
			a.state.Status = StatusActive
			a.state.AnsweredAt = time.Now().UnixMilli()
			a.persist()
		}
		frame.From = from
		a.sendTo(other, frame)

	case FrameCallAccept:
		if from != a.calleeID || a.state.Terminal() {
			return
		}
		a.state.Status = StatusConnecting
		a.persist()
		accepted := Frame{Type: FrameCallAccepted, From: from}
		if _, present := a.transports[a.callerID]; present {
			a.sendTo(a.callerID, accepted)
		} else {
			a.broadcastExcept("", accepted)
		}

	case FrameCallReject:
		if a.state.Terminal() {
			return
		}
		a.state.Status = StatusEnded
		a.state.Reason = ReasonRejected
		a.state.EndedAt = time.Now().UnixMilli()
		a.persist()
		a.notifyEnded()
		a.broadcastExcept("", Frame{Type: FrameCallEnded, Reason: ReasonRejected})

	case FrameCallEnd:
		if a.state.Terminal() {
			return
		}
		reason := frame.Reason
		if reason == "" {
			reason = ReasonEnded
		}
		a.state.Status = StatusEnded
		a.state.Reason = reason
		a.state.EndedAt = time.Now().UnixMilli()
		a.persist()
		a.notifyEnded()
		a.broadcastExcept(from, Frame{Type: FrameCallEnded, Reason: reason})

	case FramePing:
		a.sendTo(from, Frame{Type: FramePong})

	default:
		log.Printf("callroom %s: unknown frame type %q from %s", a.roomID, frame.Type, from)
	}
}

func (a *Actor) handleDetach(participantID string, clean bool) {
	delete(a.transports, participantID)

	if clean {
		a.finalizeDisconnect(participantID)
		return
	}

	now := time.Now()
	a.grace.Arm(participantID)
	_ = a.store.SavePendingDisconnect(a.roomID, participantID, now)
}

func (a *Actor) handleGraceExpired(participantID string) {
	if _, reattached := a.transports[participantID]; reattached {
		return
	}
	_ = a.store.ClearPendingDisconnect(a.roomID, participantID)
	a.finalizeDisconnect(participantID)
}

func (a *Actor) finalizeDisconnect(participantID string) {
	if a.state.Terminal() {
		return
	}
	a.state.Status = StatusEnded
	a.state.Reason = ReasonDisconnected
	a.state.EndedAt = time.Now().UnixMilli()
	a.persist()
	a.notifyEnded()
	a.broadcastExcept(participantID, Frame{Type: FrameParticipantGone, From: participantID})
	a.broadcastExcept(participantID, Frame{Type: FrameCallEnded, Reason: ReasonDisconnected, State: stateCopy(a.state)})
}

func (a *Actor) persist() {
	_ = a.store.Save(a.state)
}

// notifyEnded fires onEnded once the call has reached StatusEnded, used by
// every state-machine path that terminates a call so an analytics sink
// observes exactly one record per call.
func (a *Actor) notifyEnded() {
	if a.onEnded != nil {
		a.onEnded(a.state)
	}
}

func (a *Actor) sendTo(participantID string, frame Frame) {
	conn, ok := a.transports[participantID]
	if !ok {
		return
	}
	if err := conn.WriteJSON(frame); err != nil {
		log.Printf("callroom %s: write to %s failed: %v", a.roomID, participantID, err)
	}
}

func (a *Actor) broadcastExcept(exclude string, frame Frame) {
	for participantID := range a.transports {
		if participantID == exclude {
			continue
		}
		a.sendTo(participantID, frame)
	}
}

func stateCopy(s Status) *Status {
	c := s
	return &c
}
