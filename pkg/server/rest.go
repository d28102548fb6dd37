package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/ebobo/hilink_prod_go/pkg/hilink"
	"github.com/ebobo/hilink_prod_go/pkg/model"
	sqlitestore "github.com/ebobo/hilink_prod_go/pkg/store/sqlite"
)

// shown while the device is slower than the info timeout
const checkingPlaceholder = "Checking..."

func (s *Server) startHTTP() error {
	httpServer := &http.Server{
		Addr:              s.httpListenAddr,
		Handler:           s.Handler(),
		ReadTimeout:       (10 * time.Second),
		ReadHeaderTimeout: (8 * time.Second),
		// long enough for a full ip rotation
		WriteTimeout: (4 * time.Minute),
		BaseContext:  func(net.Listener) context.Context { return s.ctx },
	}

	// Set up shutdown handler
	go func() {
		<-s.ctx.Done()
		err := httpServer.Shutdown(context.Background())
		if err != nil {
			s.log.Error("error shutting down HTTP interface", zap.String("addr", s.httpListenAddr), zap.Error(err))
		}
	}()

	// Start HTTP server
	go func() {
		s.log.Info("starting HTTP interface", zap.String("addr", s.httpListenAddr))

		// This isn't entirely true and really represents a race condition, but
		// doing this properly is a pain in the neck.
		s.httpStarted.Done()

		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}

		s.log.Info("HTTP interface down", zap.String("addr", s.httpListenAddr), zap.Error(err))
		s.httpStopped.Done()
	}()

	return nil
}

// Handler builds the routed, instrumented API handler
func (s *Server) Handler() http.Handler {
	m := mux.NewRouter()
	m.Use(s.instrument)

	cors := cors.New(cors.Options{
		AllowCredentials: true,
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"POST", "GET", "OPTIONS", "PUT", "DELETE"},
		MaxAge:           31,
		Debug:            false,
	})

	m.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	// Probe an address without storing anything
	m.HandleFunc("/api/v1/test-connection", s.TestConnection).Methods("POST")

	user := m.PathPrefix("/api/v1/users/{user:[0-9]+}/modem").Subrouter()
	user.HandleFunc("", s.GetConfig).Methods("GET")
	user.HandleFunc("", s.SaveConfig).Methods("PUT")
	user.HandleFunc("", s.DeleteConfig).Methods("DELETE")
	user.HandleFunc("/discover", s.Discover).Methods("POST")
	user.HandleFunc("/login", s.Login).Methods("POST")
	user.HandleFunc("/info", s.Info).Methods("GET")
	user.HandleFunc("/details", s.Details).Methods("GET")
	user.HandleFunc("/status", s.Status).Methods("GET")
	user.HandleFunc("/change-ip", s.ChangeIP).Methods("POST")
	user.HandleFunc("/reboot", s.Reboot).Methods("POST")

	return handlers.ProxyHeaders(handlers.RecoveryHandler()(cors.Handler(m)))
}

func (s *Server) GetConfig(w http.ResponseWriter, r *http.Request) {
	userID, cfg, ok := s.userConfig(w, r)
	if !ok {
		return
	}
	cfg.Password = ""
	s.log.Debug("config read", zap.Int64("user_id", userID))
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) SaveConfig(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	var cfg model.ModemConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode modem config")
		return
	}
	if err := s.store.SaveModemConfig(r.Context(), userID, cfg); err != nil {
		s.fail(w, userID, "failed to save modem config", err)
		return
	}
	// credentials changed, the old session must not be reused
	if err := s.modem.Logout(r.Context(), userID); err != nil {
		s.fail(w, userID, "failed to reset session", err)
		return
	}
	cfg.Password = ""
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteConfig(r.Context(), userID); err != nil {
		s.fail(w, userID, "failed to delete modem config", err)
		return
	}
	if err := s.modem.Logout(r.Context(), userID); err != nil {
		s.fail(w, userID, "failed to reset session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	userID, cfg, ok := s.userConfig(w, r)
	if !ok {
		return
	}
	if err := s.modem.Login(r.Context(), cfg, userID); err != nil {
		s.fail(w, userID, "login failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"logged_in": true})
}

// Info answers within the info timeout. A slower device gets a placeholder
// status; the reads keep their own session handling and are cancelled.
func (s *Server) Info(w http.ResponseWriter, r *http.Request) {
	userID, cfg, ok := s.userConfig(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.infoTimeout)
	defer cancel()

	result := make(chan model.ModemInfo, 1)
	go func() { result <- s.modem.FullInfo(ctx, cfg, userID) }()

	select {
	case info := <-result:
		writeJSON(w, http.StatusOK, info)
	case <-ctx.Done():
		info := model.ModemInfo{Name: "Huawei Modem", WanIP: checkingPlaceholder}
		if last, err := s.store.GetLastChange(r.Context(), userID); err == nil {
			info.Timestamp = last.Timestamp
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func (s *Server) Details(w http.ResponseWriter, r *http.Request) {
	userID, cfg, ok := s.userConfig(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.modem.DetailedInfo(r.Context(), cfg, userID))
}

type statusResponse struct {
	Connected bool   `json:"connected"`
	Name      string `json:"name"`
	WanIP     string `json:"wan_ip"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	userID, cfg, ok := s.userConfig(w, r)
	if !ok {
		return
	}
	resp := statusResponse{Connected: s.modem.CheckConnection(r.Context(), cfg)}
	info := s.modem.WANInfo(r.Context(), cfg, userID)
	resp.Name, resp.WanIP = info.Name, info.WanIP
	if last, err := s.store.GetLastChange(r.Context(), userID); err == nil {
		resp.Timestamp = last.Timestamp
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) ChangeIP(w http.ResponseWriter, r *http.Request) {
	userID, cfg, ok := s.userConfig(w, r)
	if !ok {
		return
	}
	info, err := s.modem.ChangeIP(r.Context(), cfg, userID)
	if err != nil {
		var ipErr *hilink.IPChangeError
		if errors.As(err, &ipErr) {
			s.log.Warn("ip change failed", zap.Int64("user_id", userID), zap.Error(err))
			writeJSON(w, http.StatusBadGateway, map[string]string{
				"error":   err.Error(),
				"step":    ipErr.Step,
				"last_ip": ipErr.LastIP,
			})
			return
		}
		s.fail(w, userID, "ip change failed", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) Reboot(w http.ResponseWriter, r *http.Request) {
	userID, cfg, ok := s.userConfig(w, r)
	if !ok {
		return
	}
	if err := s.modem.Reboot(r.Context(), cfg, userID); err != nil {
		s.fail(w, userID, "reboot failed", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// userConfig resolves the user id and stored config, answering the request on failure
func (s *Server) userConfig(w http.ResponseWriter, r *http.Request) (int64, model.ModemConfig, bool) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return 0, model.ModemConfig{}, false
	}
	cfg, err := s.store.GetModemConfig(r.Context(), userID)
	if err != nil {
		s.fail(w, userID, "failed to get modem config", err)
		return 0, model.ModemConfig{}, false
	}
	return userID, cfg, true
}

func userIDFrom(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(mux.Vars(r)["user"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return userID, true
}

// fail maps a classified error to a status code and logs it
func (s *Server) fail(w http.ResponseWriter, userID int64, msg string, err error) {
	code := statusFor(err)
	s.log.Warn(msg, zap.Int64("user_id", userID), zap.Int("status", code), zap.Error(err))
	writeError(w, code, msg+": "+err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sqlitestore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, hilink.ErrAuthFailed), errors.Is(err, hilink.ErrAuthExpired):
		return http.StatusUnauthorized
	case errors.Is(err, hilink.ErrDeviceUnreachable), errors.Is(err, hilink.ErrProtocol),
		errors.Is(err, hilink.ErrIPChangeFailed), errors.Is(err, hilink.ErrNoModemFound):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	}
	var devErr *hilink.DeviceError
	if errors.As(err, &devErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cr := mux.CurrentRoute(r); cr != nil {
			if tmpl, err := cr.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.metrics.APIRequest(route, rec.code)
		s.log.Debug("request", zap.String("method", r.Method), zap.String("route", route),
			zap.Int("status", rec.code), zap.Duration("took", time.Since(start)))
	})
}
