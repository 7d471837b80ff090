package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/homesync/internal/services"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceID   string `json:"device_id,omitempty"`
	DeviceName string `json:"device_name"`
	DeviceType string `json:"device_type"`
}

type loginResponse struct {
	Success     bool      `json:"success"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	AccountID   string    `json:"account_id"`
	HouseholdID string    `json:"household_id,omitempty"`
	DeviceID    string    `json:"device_id"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.auth.Register(r.Context(), req.Email, req.Password)
	if errors.Is(err, services.ErrEmailExists) {
		writeError(w, http.StatusConflict, "email already exists")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	login := services.LoginRequest{
		Email:      req.Email,
		Password:   req.Password,
		DeviceName: req.DeviceName,
		DeviceType: req.DeviceType,
	}
	if req.DeviceID != "" {
		deviceID, err := uuid.Parse(req.DeviceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid device_id")
			return
		}
		login.DeviceID = &deviceID
	}

	resp, err := s.auth.Login(r.Context(), login)
	if errors.Is(err, services.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	body := loginResponse{
		Success:   true,
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt,
		AccountID: resp.AccountID.String(),
		DeviceID:  resp.DeviceID.String(),
	}
	if resp.HouseholdID != nil {
		body.HouseholdID = resp.HouseholdID.String()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	token, _ := strings.CutPrefix(header, "Bearer ")

	if err := s.auth.Logout(r.Context(), token); err != nil {
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
