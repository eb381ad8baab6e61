// Package inbox implements the per-recipient durable inbox queue: a
// single-writer actor per recipient, serializing store/pull/ack, backed
// by bbolt persistence.
package inbox

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long an envelope survives unacked before expiry.
const DefaultTTL = 5 * time.Minute

// MaxPullLimit bounds how many envelopes a single pull may return.
const MaxPullLimit = 100

// TokenPreview is opaque structured metadata about a token mentioned in a
// message, forwarded verbatim by the server.
type TokenPreview map[string]interface{}

// Envelope is one message record placed in a recipient's inbox. The server
// treats Text/Ciphertext/VoiceKey as opaque apart from routing.
type Envelope struct {
	ID                  string       `json:"id"`
	From                string       `json:"from"`
	To                  string       `json:"to"`
	Text                string       `json:"text,omitempty"`
	Ciphertext          string       `json:"ciphertext,omitempty"`
	Nonce               string       `json:"nonce,omitempty"`
	EncryptionVersion   int          `json:"encryptionVersion,omitempty"`
	Timestamp           int64        `json:"timestamp"`
	SenderNickname      string       `json:"senderNickname,omitempty"`
	SenderDisplayName   string       `json:"senderDisplayName,omitempty"`
	SenderEncryptionKey string       `json:"senderEncryptionKey,omitempty"`
	TokenPreview        TokenPreview `json:"tokenPreview,omitempty"`
	VoiceKey            string       `json:"voiceKey,omitempty"`
	VoiceDuration       float64      `json:"voiceDuration,omitempty"`
	VoiceNonce          string       `json:"voiceNonce,omitempty"`
	VoiceMimeType       string       `json:"voiceMimeType,omitempty"`
	VoiceWaveform       []float64    `json:"voiceWaveform,omitempty"`
	ExpiresAt           int64        `json:"expiresAt"`
}

// NewEnvelopeID returns a fresh UUID for use as an envelope id.
func NewEnvelopeID() string {
	return uuid.NewString()
}

// HasPayload reports whether the envelope carries at least one of the three
// mutually-exclusive-but-one-required payload shapes: plaintext text,
// ciphertext, or a voice clip key.
func (e Envelope) HasPayload() bool {
	return e.Text != "" || e.Ciphertext != "" || e.VoiceKey != ""
}

// Expired reports whether the envelope's TTL has elapsed as of now.
func (e Envelope) Expired(now time.Time) bool {
	return e.ExpiresAt > 0 && now.UnixMilli() > e.ExpiresAt
}
