package gateway

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/solace-labs/wallet-messenger/internal/authutil"
	"github.com/solace-labs/wallet-messenger/internal/identity"
)

// decodeSignature accepts a standard or URL-safe base64 encoding of the
// raw 64-byte ed25519 signature, matching how wallet clients typically
// transport signature bytes over JSON.
func decodeSignature(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

type nonceResponse struct {
	Nonce     string `json:"nonce"`
	ExpiresAt int64  `json:"expiresAt"`
}

// handleIssueNonce implements GET /auth/nonce?pubkey=.
func (s *Server) handleIssueNonce(w http.ResponseWriter, r *http.Request) {
	s.metrics.NonceIssued.Add(1)
	raw := r.URL.Query().Get("pubkey")
	if raw == "" {
		writeError(w, ErrBadRequest)
		return
	}
	pubkey, err := identity.Normalize(raw)
	if err != nil {
		writeError(w, err)
		return
	}
	value, expiresAt, err := s.Nonces.Issue(pubkey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonceResponse{Nonce: value, ExpiresAt: expiresAt.UnixMilli()})
}

type verifyRequest struct {
	Pubkey       string `json:"pubkey"`
	Nonce        string `json:"nonce"`
	Signature    string `json:"signature"`
	SessionTTL   int64  `json:"sessionTtl"`
}

type verifyUser struct {
	Pubkey string `json:"pubkey"`
}

type verifyResponse struct {
	Token string     `json:"token"`
	User  verifyUser `json:"user"`
}

// handleVerify implements POST /auth/verify.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	s.metrics.VerifyAttempts.Add(1)
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	pubkey, err := identity.Normalize(req.Pubkey)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Nonce == "" || req.Signature == "" {
		writeError(w, ErrBadRequest)
		return
	}

	if !s.Nonces.Consume(pubkey, req.Nonce) {
		writeError(w, ErrInvalidNonce)
		return
	}

	sig, err := decodeSignature(req.Signature)
	if err != nil {
		writeError(w, ErrInvalidSignature)
		return
	}
	if !identity.VerifySignature(pubkey, []byte(req.Nonce), sig) {
		writeError(w, ErrInvalidSignature)
		return
	}

	ttl := authutil.ClampSessionTTL(time.Duration(req.SessionTTL) * time.Second)
	token, err := authutil.IssueSession(pubkey, ttl)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Token: token, User: verifyUser{Pubkey: pubkey}})
}
