package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/prudhvinik1/homesync/internal/models"
	"github.com/prudhvinik1/homesync/internal/repositories"
)

type createHouseholdRequest struct {
	Name string `json:"name"`
}

type joinHouseholdRequest struct {
	HouseholdID string `json:"household_id"`
}

// handleCreateHousehold creates a household and makes the caller its
// first member. Membership takes effect on the next login, when the
// session token picks up the household claim.
func (s *Server) handleCreateHousehold(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req createHouseholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "household name is required")
		return
	}

	household := &models.Household{Name: req.Name}
	if err := s.households.Create(r.Context(), household); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create household")
		return
	}

	if err := s.households.AddMember(r.Context(), household.ID, claims.AccountID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to join household")
		return
	}

	writeJSON(w, http.StatusCreated, household)
}

func (s *Server) handleJoinHousehold(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req joinHouseholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	householdID, err := uuid.Parse(req.HouseholdID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid household_id")
		return
	}

	if _, err := s.households.GetByID(r.Context(), householdID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			writeError(w, http.StatusNotFound, "household not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to look up household")
		return
	}

	if err := s.households.AddMember(r.Context(), householdID, claims.AccountID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to join household")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
