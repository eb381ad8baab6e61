// Package blobstore is an opaque object store for voice clips and chat
// backups, namespaced by owner identity, persisted as bbolt metadata
// records pointing at on-disk bytes.
package blobstore

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/solace-labs/wallet-messenger/internal/kvstore"
)

const metaBucket = "blob_meta"

// MaxBackupBytes is the upload size cap for chat backups.
const MaxBackupBytes = 50 << 20

var (
	ErrNotFound    = errors.New("blobstore: not found")
	ErrForbidden   = errors.New("blobstore: access denied")
	ErrTooLarge    = errors.New("blobstore: payload exceeds size cap")
)

// Metadata is the structured record stored alongside each blob's bytes.
type Metadata struct {
	Key             string `json:"key"`
	SenderPubkey    string `json:"senderPubkey,omitempty"`
	RecipientPubkey string `json:"recipientPubkey,omitempty"`
	MessageID       string `json:"messageId,omitempty"`
	Duration        float64 `json:"duration,omitempty"`
	MimeType        string `json:"mimeType,omitempty"`
	UploadedAt      int64  `json:"uploadedAt"`
	Size            int64  `json:"size"`
	Version         int    `json:"version"`
	path            string
}

// Store persists blob bytes on disk under dir and metadata in bbolt.
type Store struct {
	db  *kvstore.DB
	dir string
	box *Box
}

// Open opens (or creates) the metadata db at dbPath and the byte directory
// at dir. If secret is non-empty, blob bytes are encrypted at rest via a
// Box derived from secret (see atrest.go); secret == "" disables at-rest
// encryption.
func Open(dbPath, dir, secret string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := kvstore.Open(dbPath, metaBucket)
	if err != nil {
		return nil, err
	}
	box, err := NewBox(secret)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, dir: dir, box: box}, nil
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// VoiceKey formats the voice-clip key.
func VoiceKey(recipient, messageID string) string {
	return "voice/" + recipient + "/" + messageID
}

// BackupKey formats the chat-backup key.
func BackupKey(owner string) string {
	return owner + "/backup"
}

// SyncKey formats the per-contact encrypted chat-sync key. It namespaces
// under the owner the same way BackupKey does, scoped to one contact
// rather than the whole chat history.
func SyncKey(owner, contactKey string) string {
	return owner + "/sync/" + contactKey
}

// Put writes data under key along with its metadata, enforcing the given
// size cap (0 means no cap).
func (s *Store) Put(key string, data []byte, meta Metadata, maxBytes int64) (Metadata, error) {
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return Metadata{}, ErrTooLarge
	}
	path, err := s.writeBytes(key, data)
	if err != nil {
		return Metadata{}, err
	}
	meta.Key = key
	meta.Size = int64(len(data))
	meta.UploadedAt = time.Now().UnixMilli()
	meta.path = path

	stored := storedMetadata{Metadata: meta, Path: path}
	if err := s.db.PutJSON(metaBucket, key, stored); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

// Get returns the metadata and decrypted bytes for key.
func (s *Store) Get(key string) (Metadata, []byte, error) {
	var stored storedMetadata
	found, err := s.db.GetJSON(metaBucket, key, &stored)
	if err != nil {
		return Metadata{}, nil, err
	}
	if !found {
		return Metadata{}, nil, ErrNotFound
	}
	raw, err := os.ReadFile(stored.Path)
	if err != nil {
		return Metadata{}, nil, err
	}
	data, err := s.box.Decrypt(raw)
	if err != nil {
		return Metadata{}, nil, err
	}
	stored.Metadata.path = stored.Path
	return stored.Metadata, data, nil
}

// Delete removes key's metadata and bytes.
func (s *Store) Delete(key string) error {
	var stored storedMetadata
	found, err := s.db.GetJSON(metaBucket, key, &stored)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	if err := s.db.Delete(metaBucket, key); err != nil {
		return err
	}
	return os.Remove(stored.Path)
}

func (s *Store) writeBytes(key string, data []byte) (string, error) {
	encrypted, err := s.box.Encrypt(data)
	if err != nil {
		return "", err
	}
	name := hashName(key)
	path := filepath.Join(s.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, bytes.NewReader(encrypted)); err != nil {
		return "", err
	}
	return path, nil
}

type storedMetadata struct {
	Metadata
	Path string `json:"path"`
}

func hashName(key string) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	safe := make([]byte, 0, len(key))
	for _, c := range []byte(key) {
		if c == '/' {
			c = '_'
		}
		safe = append(safe, c)
	}
	return string(safe) + "-" + hex.EncodeToString(b)
}

