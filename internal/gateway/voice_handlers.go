package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solace-labs/wallet-messenger/internal/blobstore"
	"github.com/solace-labs/wallet-messenger/internal/identity"
)

type voiceUploadRequest struct {
	RecipientPubkey string  `json:"recipientPubkey"`
	MessageID       string  `json:"messageId"`
	EncryptedAudio  string  `json:"encryptedAudio"`
	Duration        float64 `json:"duration"`
	MimeType        string  `json:"mimeType"`
}

type voiceUploadResponse struct {
	OK       bool   `json:"ok"`
	VoiceKey string `json:"voiceKey"`
	Size     int64  `json:"size"`
}

// handleVoiceUpload implements POST /voice/upload.
func (s *Server) handleVoiceUpload(w http.ResponseWriter, r *http.Request) {
	s.metrics.VoiceUploads.Add(1)
	sender := callerIdentity(r)
	if !s.Limiter.Admit(sender, "voice/upload") {
		writeError(w, ErrRateLimited)
		return
	}

	var req voiceUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	recipient, err := identity.Normalize(req.RecipientPubkey)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.MessageID == "" || req.EncryptedAudio == "" {
		writeError(w, ErrBadRequest)
		return
	}

	key := blobstore.VoiceKey(recipient, req.MessageID)
	meta := blobstore.Metadata{
		SenderPubkey:    sender,
		RecipientPubkey: recipient,
		MessageID:       req.MessageID,
		Duration:        req.Duration,
		MimeType:        req.MimeType,
		Version:         1,
	}
	written, err := s.Blobs.Put(key, []byte(req.EncryptedAudio), meta, blobstore.MaxBackupBytes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, voiceUploadResponse{OK: true, VoiceKey: key, Size: written.Size})
}

type voiceDownloadResponse struct {
	Found          bool    `json:"found"`
	EncryptedAudio string  `json:"encryptedAudio,omitempty"`
	Duration       float64 `json:"duration,omitempty"`
	MimeType       string  `json:"mimeType,omitempty"`
	SenderPubkey   string  `json:"senderPubkey,omitempty"`
}

// handleVoiceDownload implements GET /voice/{recipient}/{messageId}:
// readable by sender or recipient only.
func (s *Server) handleVoiceDownload(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(r)
	recipient := chi.URLParam(r, "recipient")
	messageID := chi.URLParam(r, "messageId")
	key := blobstore.VoiceKey(recipient, messageID)

	meta, data, err := s.Blobs.Get(key)
	if err != nil {
		writeError(w, err)
		return
	}
	if !blobstore.CanReadVoice(meta, caller) {
		writeError(w, blobstore.ErrForbidden)
		return
	}
	writeJSON(w, http.StatusOK, voiceDownloadResponse{
		Found:          true,
		EncryptedAudio: string(data),
		Duration:       meta.Duration,
		MimeType:       meta.MimeType,
		SenderPubkey:   meta.SenderPubkey,
	})
}
