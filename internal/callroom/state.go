package callroom

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/solace-labs/wallet-messenger/internal/kvstore"
)

// CallStatus is one state in the call's state machine.
type CallStatus string

const (
	StatusRinging    CallStatus = "ringing"
	StatusConnecting CallStatus = "connecting"
	StatusActive     CallStatus = "active"
	StatusEnded      CallStatus = "ended"
)

// Status is the persisted call state for one room.
type Status struct {
	RoomID     string     `json:"roomId"`
	CallerID   string     `json:"callerId"`
	CalleeID   string     `json:"calleeId"`
	Status     CallStatus `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	CreatedAt  int64      `json:"createdAt"`
	AnsweredAt int64      `json:"answeredAt,omitempty"`
	EndedAt    int64      `json:"endedAt,omitempty"`
}

// Terminal reports whether the call has reached its terminal state.
func (s Status) Terminal() bool {
	return s.Status == StatusEnded
}

const stateBucket = "call_state"
const pendingDisconnectBucket = "call_pending_disconnect"

// StateStore persists Status and pendingDisconnection records so an actor
// woken only by the grace-period alarm after hibernation can finalize a
// call correctly.
type StateStore struct {
	db *kvstore.DB
}

// OpenStateStore opens (or creates) the bbolt file at path.
func OpenStateStore(path string) (*StateStore, error) {
	db, err := kvstore.Open(path, stateBucket, pendingDisconnectBucket)
	if err != nil {
		return nil, err
	}
	return &StateStore{db: db}, nil
}

func (s *StateStore) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func (s *StateStore) Load(roomID string) (Status, bool, error) {
	var st Status
	found, err := s.db.GetJSON(stateBucket, roomID, &st)
	return st, found, err
}

func (s *StateStore) Save(st Status) error {
	return s.db.PutJSON(stateBucket, st.RoomID, st)
}

// pendingDisconnection is the durable alarm record for an abnormally
// closed transport, keyed by "<roomId>|<participantId>".
type pendingDisconnection struct {
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId"`
	At            int64  `json:"at"`
}

func pendingKey(roomID, participantID string) string {
	return roomID + "|" + participantID
}

func (s *StateStore) SavePendingDisconnect(roomID, participantID string, at time.Time) error {
	return s.db.PutJSON(pendingDisconnectBucket, pendingKey(roomID, participantID), pendingDisconnection{
		RoomID:        roomID,
		ParticipantID: participantID,
		At:            at.UnixMilli(),
	})
}

func (s *StateStore) ClearPendingDisconnect(roomID, participantID string) error {
	return s.db.Delete(pendingDisconnectBucket, pendingKey(roomID, participantID))
}

// LoadPendingDisconnects returns every durable disconnect alarm still
// recorded for roomID, so a newly constructed actor (after a process
// restart) can re-arm its in-process grace tracker instead of
// silently losing an in-flight grace period.
func (s *StateStore) LoadPendingDisconnects(roomID string) ([]pendingDisconnection, error) {
	prefix := roomID + "|"
	var found []pendingDisconnection
	err := s.db.View(pendingDisconnectBucket, func(b kvstore.Bucket) error {
		return b.ForEach(func(key, value []byte) error {
			if !strings.HasPrefix(string(key), prefix) {
				return nil
			}
			var p pendingDisconnection
			if err := json.Unmarshal(value, &p); err != nil {
				return err
			}
			found = append(found, p)
			return nil
		})
	})
	return found, err
}
