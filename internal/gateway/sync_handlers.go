package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solace-labs/wallet-messenger/internal/blobstore"
)

type syncPutRequest struct {
	Encrypted string `json:"encrypted"`
}

type syncPutResponse struct {
	OK  bool   `json:"ok"`
	Key string `json:"key"`
}

// handleSyncPut implements PUT /sync/chat/{contactKey}, storing the
// caller's encrypted per-contact chat cache.
func (s *Server) handleSyncPut(w http.ResponseWriter, r *http.Request) {
	owner := callerIdentity(r)
	contactKey := chi.URLParam(r, "contactKey")
	var req syncPutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	key := blobstore.SyncKey(owner, contactKey)
	if _, err := s.Blobs.Put(key, []byte(req.Encrypted), blobstore.Metadata{Version: 1}, blobstore.MaxBackupBytes); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, syncPutResponse{OK: true, Key: key})
}

type syncGetResponse struct {
	Found     bool   `json:"found"`
	Encrypted string `json:"encrypted,omitempty"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
}

// handleSyncGet implements GET /sync/chat/{contactKey}.
func (s *Server) handleSyncGet(w http.ResponseWriter, r *http.Request) {
	owner := callerIdentity(r)
	contactKey := chi.URLParam(r, "contactKey")
	key := blobstore.SyncKey(owner, contactKey)

	meta, data, err := s.Blobs.Get(key)
	if err == blobstore.ErrNotFound {
		writeJSON(w, http.StatusOK, syncGetResponse{Found: false})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, syncGetResponse{Found: true, Encrypted: string(data), UpdatedAt: meta.UploadedAt})
}

// handleSyncDelete implements DELETE /sync/chat/{contactKey}.
func (s *Server) handleSyncDelete(w http.ResponseWriter, r *http.Request) {
	owner := callerIdentity(r)
	contactKey := chi.URLParam(r, "contactKey")
	key := blobstore.SyncKey(owner, contactKey)

	if err := s.Blobs.Delete(key); err != nil && err != blobstore.ErrNotFound {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
