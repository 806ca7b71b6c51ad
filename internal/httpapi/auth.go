package httpapi

import (
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/YiberMelo/ChronosSuite/internal/model"
	"github.com/YiberMelo/ChronosSuite/internal/service"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type twoFactorLoginRequest struct {
	ChallengeToken string `json:"challenge_token"`
	Code           string `json:"code"`
}

type twoFactorVerifyRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

type twoFactorSecretRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// allowAttempt applies the login limiter to key. A limiter backend failure
// lets the attempt through.
func (s *Server) allowAttempt(w http.ResponseWriter, r *http.Request, scope, username string) bool {
	key := scope + "|" + strings.ToLower(strings.TrimSpace(username)) + "|" + clientIP(r)
	ok, err := s.limiter.Allow(r.Context(), key)
	if err != nil {
		s.log.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
		return true
	}
	if !ok {
		writeError(w, http.StatusTooManyRequests, "too_many_attempts", "too many attempts, try again in a minute")
		return false
	}
	return true
}

func (s *Server) writeSession(w http.ResponseWriter, status int, u model.User) {
	token, err := s.tokens.Session(u.ID, u.Username)
	if err != nil {
		s.log.Error("sign session token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to generate token")
		return
	}
	writeOK(w, status, map[string]any{"token": token, "user": u})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !readJSON(w, r, &req) {
		return
	}
	created, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeSession(w, http.StatusCreated, created)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		writeError(w, http.StatusBadRequest, string(service.KindInvalidFormat), "username is required")
		return
	}
	if !s.allowAttempt(w, r, "login", req.Username) {
		return
	}

	res, err := s.auth.Login(r.Context(), service.LoginRequest{Username: req.Username, Password: req.Password})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if res.TwoFactorRequired {
		challenge, err := s.tokens.Challenge(res.User.ID, res.User.Username)
		if err != nil {
			s.log.Error("sign challenge token", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal", "failed to generate token")
			return
		}
		writeOK(w, http.StatusOK, map[string]any{
			"require_2fa":     true,
			"challenge_token": challenge,
			"user":            res.User,
		})
		return
	}
	s.writeSession(w, http.StatusOK, res.User)
}

// handleTwoFactorLogin completes a login that stopped at the second factor.
func (s *Server) handleTwoFactorLogin(w http.ResponseWriter, r *http.Request) {
	var req twoFactorLoginRequest
	if !readJSON(w, r, &req) {
		return
	}
	claims, err := s.tokens.ParseChallenge(strings.TrimSpace(req.ChallengeToken))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_challenge", "challenge token is invalid or expired")
		return
	}
	if !s.allowAttempt(w, r, "2fa", claims.Username) {
		return
	}
	if err := s.twofa.VerifyCode(r.Context(), claims.Username, req.Code); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	u, err := s.auth.User(r.Context(), claims.Username)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeSession(w, http.StatusOK, u)
}

func (s *Server) handleTwoFactorVerify(w http.ResponseWriter, r *http.Request) {
	var req twoFactorVerifyRequest
	if !readJSON(w, r, &req) {
		return
	}
	if !s.allowAttempt(w, r, "2fa", req.Username) {
		return
	}
	if err := s.twofa.VerifyCode(r.Context(), req.Username, req.Code); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"verified": true})
}

func (s *Server) handleTwoFactorSetup(w http.ResponseWriter, r *http.Request) {
	setup, err := s.twofa.GenerateSecret(usernameFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{
		"qr_code_image": setup.QRCodeImage,
		"manual_code":   setup.ManualCode,
	})
}

func (s *Server) handleTwoFactorVerifyTemp(w http.ResponseWriter, r *http.Request) {
	var req twoFactorSecretRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := s.twofa.VerifyTempCode(req.Code, req.Secret); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"verified": true})
}

// handleTwoFactorEnable saves a secret once the user proved they can
// produce codes from it.
func (s *Server) handleTwoFactorEnable(w http.ResponseWriter, r *http.Request) {
	var req twoFactorSecretRequest
	if !readJSON(w, r, &req) {
		return
	}
	username := usernameFromContext(r.Context())
	if username == "" {
		writeError(w, http.StatusBadRequest, string(service.KindInvalidFormat), "a user session is required")
		return
	}
	if err := s.twofa.VerifyTempCode(req.Code, req.Secret); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.twofa.AssignSecret(r.Context(), username, req.Secret); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"two_factor_enabled": true})
}
