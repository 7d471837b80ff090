package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prudhvinik1/homesync/internal/models"
	"github.com/prudhvinik1/homesync/internal/repositories"
)

// MaxPushBatch bounds one push request body.
const MaxPushBatch = 1000

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	scope := repositories.SyncScope{
		AccountID:   claims.AccountID,
		HouseholdID: claims.HouseholdID,
	}

	var since time.Time
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		parsed, err := time.Parse(time.RFC3339Nano, sinceStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since timestamp")
			return
		}
		since = parsed
	}

	limit := repositories.MaxPullLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	page, err := s.changes.ListSince(r.Context(), scope, since, r.URL.Query().Get("cursor"), limit)
	if errors.Is(err, repositories.ErrBadCursor) {
		writeError(w, http.StatusBadRequest, "invalid cursor")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list changes")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	scope := repositories.SyncScope{
		AccountID:   claims.AccountID,
		HouseholdID: claims.HouseholdID,
	}

	var req models.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Changes) > MaxPushBatch {
		writeError(w, http.StatusRequestEntityTooLarge, "push batch too large")
		return
	}

	pushed, err := s.changes.UpsertBatch(r.Context(), scope, req.Changes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to apply changes")
		return
	}

	now := time.Now().UTC()
	// Bookkeeping only; the push already succeeded.
	_ = s.devices.TouchLastSync(r.Context(), claims.DeviceID, now)

	writeJSON(w, http.StatusOK, models.PushResponse{
		Success:   true,
		Pushed:    pushed,
		Timestamp: now,
	})
}
