package gateway

import (
	"net/http"
	"time"

	"github.com/solace-labs/wallet-messenger/internal/identity"
	"github.com/solace-labs/wallet-messenger/internal/profile"
)

type profileResponse struct {
	Profile profile.Profile `json:"profile"`
}

// handleProfileMe implements GET /profile/me.
func (s *Server) handleProfileMe(w http.ResponseWriter, r *http.Request) {
	pubkey := callerIdentity(r)
	p, err := s.Profiles.GetOwn(r.Context(), pubkey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: p})
}

type setNicknameRequest struct {
	Nickname string `json:"nickname"`
}

// handleSetNickname implements POST /profile/nickname.
func (s *Server) handleSetNickname(w http.ResponseWriter, r *http.Request) {
	pubkey := callerIdentity(r)
	var req setNicknameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	normalized, err := profile.NormalizeNickname(req.Nickname)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := s.Profiles.SetNickname(r.Context(), pubkey, normalized, time.Now().UnixMilli())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: p})
}

type setEncryptionKeyRequest struct {
	PublicKey string `json:"publicKey"`
}

// handleSetEncryptionKey implements POST /profile/encryption-key.
func (s *Server) handleSetEncryptionKey(w http.ResponseWriter, r *http.Request) {
	pubkey := callerIdentity(r)
	var req setEncryptionKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.PublicKey == "" {
		writeError(w, ErrBadRequest)
		return
	}
	p, err := s.Profiles.SetEncryptionPublicKey(r.Context(), pubkey, req.PublicKey, time.Now().UnixMilli())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: p})
}

// handleProfileLookupByNickname implements GET /profile/lookup?nickname=.
func (s *Server) handleProfileLookupByNickname(w http.ResponseWriter, r *http.Request) {
	normalized, err := profile.NormalizeNickname(r.URL.Query().Get("nickname"))
	if err != nil {
		writeErrorStatus(w, http.StatusNotFound, "not found")
		return
	}
	p, err := s.Profiles.LookupByNickname(r.Context(), normalized)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: p})
}

// handleProfileLookupByPubkey implements GET /profile/by-key?pubkey=.
func (s *Server) handleProfileLookupByPubkey(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("pubkey")
	pubkey, err := identity.Normalize(raw)
	if err != nil {
		writeErrorStatus(w, http.StatusNotFound, "not found")
		return
	}
	p, err := s.Profiles.LookupByPubkey(r.Context(), pubkey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: p})
}
