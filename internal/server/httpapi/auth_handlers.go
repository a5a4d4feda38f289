package httpapi

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/kitchensink/internal/common"
	"github.com/dmitrijs2005/kitchensink/internal/server/auth"
	"github.com/dmitrijs2005/kitchensink/internal/server/metrics"
	"github.com/dmitrijs2005/kitchensink/internal/server/models"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest accepts the identifier under either key; username may also
// hold an email address.
type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	Username     string   `json:"username"`
	Roles        []string `json:"roles"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type identityResponse struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

func (s *HTTPServer) recordAuth(event string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := metrics.OutcomeSuccess
	switch {
	case errors.Is(err, common.ErrTooManyAttempts):
		outcome = metrics.OutcomeLimited
	case err != nil:
		outcome = metrics.OutcomeFailure
	}
	s.metrics.RecordAuthEvent(event, outcome)
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	_, err := s.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	s.recordAuth("register", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "User registered successfully!"})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	identifier := strings.TrimSpace(req.Username)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}

	key := strings.ToLower(identifier) + "|" + clientIP(r)
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(r.Context(), key)
		if err != nil {
			s.logger.Warn(r.Context(), "login limiter unavailable, allowing attempt", "error", err)
		}
		if !allowed {
			s.recordAuth("login", common.ErrTooManyAttempts)
			s.fail(w, r, common.ErrTooManyAttempts)
			return
		}
	}

	res, err := s.auth.Login(r.Context(), identifier, req.Password)
	s.recordAuth("login", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(r.Context(), key); err != nil {
			s.logger.Warn(r.Context(), "login limiter reset failed", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:        res.AccessToken,
		RefreshToken: res.RefreshToken,
		Username:     res.Username,
		Roles:        models.RoleNames(res.Roles),
	})
}

func (s *HTTPServer) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	s.recordAuth("refresh", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := s.auth.Logout(r.Context(), req.RefreshToken)
	s.recordAuth("logout", err)
	if err != nil {
		if errors.Is(err, common.ErrRefreshTokenNotFound) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Log out successful"})
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, identityResponse{
		ID:       id.ID,
		Username: id.Username,
		Roles:    models.RoleNames(id.Roles),
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.Warn(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
