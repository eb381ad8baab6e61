package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/solace-labs/wallet-messenger/internal/identity"
	"github.com/solace-labs/wallet-messenger/internal/inbox"
)

type sendRequest struct {
	To                  string             `json:"to"`
	Text                string             `json:"text,omitempty"`
	Ciphertext          string             `json:"ciphertext,omitempty"`
	Nonce               string             `json:"nonce,omitempty"`
	Version             int                `json:"version,omitempty"`
	Timestamp           int64              `json:"timestamp,omitempty"`
	TokenPreview        inbox.TokenPreview `json:"tokenPreview,omitempty"`
	SenderEncryptionKey string             `json:"senderEncryptionKey,omitempty"`
	VoiceKey            string             `json:"voiceKey,omitempty"`
	VoiceDuration       float64            `json:"voiceDuration,omitempty"`
	VoiceNonce          string             `json:"voiceNonce,omitempty"`
	VoiceMimeType       string             `json:"voiceMimeType,omitempty"`
	VoiceWaveform       []float64          `json:"voiceWaveform,omitempty"`
}

type sendResponse struct {
	OK        bool   `json:"ok"`
	MessageID string `json:"messageId"`
}

// handleMessagesSend implements POST /messages/send, translating the
// public wire request into an inbox.Envelope and enqueuing it on the
// recipient's actor.
func (s *Server) handleMessagesSend(w http.ResponseWriter, r *http.Request) {
	s.metrics.MessagesSent.Add(1)
	sender := callerIdentity(r)
	if !s.Limiter.Admit(sender, "messages/send") {
		writeError(w, ErrRateLimited)
		return
	}

	var req sendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	to, err := identity.Normalize(req.To)
	if err != nil {
		writeError(w, err)
		return
	}

	env := inbox.Envelope{
		ID:                  inbox.NewEnvelopeID(),
		From:                sender,
		To:                  to,
		Text:                req.Text,
		Ciphertext:          req.Ciphertext,
		Nonce:               req.Nonce,
		EncryptionVersion:   req.Version,
		Timestamp:           req.Timestamp,
		TokenPreview:        req.TokenPreview,
		SenderEncryptionKey: req.SenderEncryptionKey,
		VoiceKey:            req.VoiceKey,
		VoiceDuration:       req.VoiceDuration,
		VoiceNonce:          req.VoiceNonce,
		VoiceMimeType:       req.VoiceMimeType,
		VoiceWaveform:       req.VoiceWaveform,
	}
	if env.Timestamp == 0 {
		env.Timestamp = time.Now().UnixMilli()
	}
	env.ExpiresAt = env.Timestamp + inbox.DefaultTTL.Milliseconds()

	if !env.HasPayload() {
		writeError(w, ErrBadRequest)
		return
	}

	if senderProfile, err := s.Profiles.LookupByPubkey(r.Context(), sender); err == nil {
		env.SenderNickname = senderProfile.Nickname
		env.SenderDisplayName = senderProfile.DisplayName
		if env.SenderEncryptionKey == "" {
			env.SenderEncryptionKey = senderProfile.EncryptionPublicKey
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.Inboxes.Actor(to).Store(ctx, env); err != nil {
		writeErrorStatus(w, http.StatusInternalServerError, "store failed")
		return
	}

	s.Notifier.Notify(to, env)

	writeJSON(w, http.StatusOK, sendResponse{OK: true, MessageID: env.ID})
}

type inboxPollResponse struct {
	Messages []inbox.Envelope `json:"messages"`
}

const defaultPollWait = 0
const maxPollWait = 15 * time.Second
const pollStep = 800 * time.Millisecond

// handleInboxPoll implements GET /inbox/poll?wait=ms, long-polling up
// to wait milliseconds for a non-empty queue via pollUntil (longpoll.go).
func (s *Server) handleInboxPoll(w http.ResponseWriter, r *http.Request) {
	s.metrics.InboxPolls.Add(1)
	recipient := callerIdentity(r)
	wait := parseWaitParam(r.URL.Query().Get("wait"))

	actor := s.Inboxes.Actor(recipient)
	ctx, cancel := context.WithTimeout(r.Context(), wait+5*time.Second)
	defer cancel()

	messages, err := pollUntil(ctx, wait, func(ctx context.Context) ([]inbox.Envelope, error) {
		return actor.Pull(ctx, inbox.MaxPullLimit)
	})
	if err != nil {
		writeErrorStatus(w, http.StatusInternalServerError, "poll failed")
		return
	}
	if messages == nil {
		messages = []inbox.Envelope{}
	}
	writeJSON(w, http.StatusOK, inboxPollResponse{Messages: messages})
}

func parseWaitParam(raw string) time.Duration {
	if raw == "" {
		return defaultPollWait
	}
	ms := int64(0)
	for _, c := range raw {
		if c < '0' || c > '9' {
			return defaultPollWait
		}
		ms = ms*10 + int64(c-'0')
	}
	wait := time.Duration(ms) * time.Millisecond
	if wait > maxPollWait {
		wait = maxPollWait
	}
	return wait
}

type ackRequest struct {
	IDs []string `json:"ids"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// handleMessagesAck implements POST /messages/ack.
func (s *Server) handleMessagesAck(w http.ResponseWriter, r *http.Request) {
	recipient := callerIdentity(r)
	var req ackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.Inboxes.Actor(recipient).Ack(ctx, req.IDs); err != nil {
		writeErrorStatus(w, http.StatusInternalServerError, "ack failed")
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
