package inbox

import (
	"github.com/solace-labs/wallet-messenger/internal/kvstore"
)

const bucketName = "inboxes"

// Store persists the per-recipient envelope slice, one bbolt key per
// recipient, storing the whole ordered queue per touch rather than one
// key per message, since envelopes are pulled/acked/evicted as a group.
type Store struct {
	db *kvstore.DB
}

// OpenStore opens (or creates) the bbolt file at path.
func OpenStore(path string) (*Store, error) {
	db, err := kvstore.Open(path, bucketName)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying bbolt handle.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the persisted envelope slice for recipient, or nil if none
// has ever been stored.
func (s *Store) Load(recipient string) ([]Envelope, error) {
	var envelopes []Envelope
	_, err := s.db.GetJSON(bucketName, recipient, &envelopes)
	if err != nil {
		return nil, err
	}
	return envelopes, nil
}

// Save persists the full envelope slice for recipient.
func (s *Store) Save(recipient string, envelopes []Envelope) error {
	return s.db.PutJSON(bucketName, recipient, envelopes)
}
