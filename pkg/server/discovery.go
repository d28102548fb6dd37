package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ebobo/hilink_prod_go/pkg/model"
)

type discoverRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type discoverResponse struct {
	model.DetectedModem
	Saved bool `json:"saved"`
}

// Discover looks for a modem on the common gateway addresses. When credentials
// are posted along, they are stored with the detected address.
func (s *Server) Discover(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "failed to decode credentials")
		return
	}

	found, err := s.modem.AutoDetect(r.Context())
	if err != nil {
		s.fail(w, userID, "discovery failed", err)
		return
	}
	s.log.Info("modem discovered", zap.Int64("user_id", userID), zap.String("modem_ip", found.IP), zap.String("device", found.DeviceName))

	resp := discoverResponse{DetectedModem: found}
	if req.Password != "" {
		cfg := model.ModemConfig{IP: found.IP, Username: req.Username, Password: req.Password}
		if err := s.store.SaveModemConfig(r.Context(), userID, cfg); err != nil {
			s.fail(w, userID, "failed to save modem config", err)
			return
		}
		if err := s.modem.Logout(r.Context(), userID); err != nil {
			s.fail(w, userID, "failed to reset session", err)
			return
		}
		resp.Saved = true
	}
	writeJSON(w, http.StatusOK, resp)
}

type testConnectionRequest struct {
	IP string `json:"ip"`
}

type testConnectionResponse struct {
	Reachable  bool   `json:"reachable"`
	DeviceName string `json:"device_name,omitempty"`
}

// TestConnection probes a single address
func (s *Server) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req testConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IP == "" {
		writeError(w, http.StatusBadRequest, "ip is required")
		return
	}
	name, ok := s.modem.TestConnection(r.Context(), req.IP)
	writeJSON(w, http.StatusOK, testConnectionResponse{Reachable: ok, DeviceName: name})
}
