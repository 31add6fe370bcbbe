package web

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	appLog "visitcal/internal/log"
)

const tokenSubject = "visitcal"

// tokenIssuer signs and checks the bearer tokens handed out by /api/unlock.
type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// newTokenIssuer uses secret if set, otherwise a random key that lives as long
// as the process.
func newTokenIssuer(secret string, ttl time.Duration) (*tokenIssuer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
		appLog.Warn("token_secret not set; unlock tokens will not survive a restart")
	}
	return &tokenIssuer{secret: key, ttl: ttl}, nil
}

func (i *tokenIssuer) Issue(now time.Time) (string, time.Time, error) {
	exp := now.Add(i.ttl)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   tokenSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, exp, nil
}

func (i *tokenIssuer) Verify(raw string) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenMalformed
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5*time.Second),
	)
	if err != nil {
		return err
	}
	if claims.Subject != tokenSubject {
		return errors.New("unexpected token subject")
	}
	return nil
}

// pinEnabled reports whether the API is gated behind a PIN.
func (s *Server) pinEnabled() bool {
	return s.cfg != nil && s.cfg.PIN != ""
}

type unlockRequest struct {
	PIN string `json:"pin"`
}

type unlockResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleUnlock trades the PIN for a bearer token. With no PIN configured any
// request gets a token, so clients can use the same flow either way.
func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.pinEnabled() && !secureCompare(req.PIN, s.cfg.PIN) {
		appLog.Warn("unlock rejected", "remote", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "wrong pin")
		return
	}

	token, exp, err := s.tokens.Issue(s.now())
	if err != nil {
		appLog.Error("unlock: issue token failed", err)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, unlockResponse{Token: token, ExpiresAt: exp})
}

// authMiddleware requires a valid bearer token on /api/* (unlock excluded)
// and on the calendar feed. Calendar apps cannot send headers, so the feed
// also accepts ?token=.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		protected := strings.HasPrefix(path, "/api/") || path == "/calendar.ics"
		if !protected || path == "/api/unlock" {
			next.ServeHTTP(w, r)
			return
		}

		raw := bearerToken(r)
		if raw == "" && path == "/calendar.ics" {
			raw = r.URL.Query().Get("token")
		}
		if raw == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="visitcal"`)
			writeError(w, http.StatusUnauthorized, "missing authorization")
			return
		}
		if err := s.tokens.Verify(raw); err != nil {
			appLog.Debug("token rejected", "err", err.Error(), "path", path)
			w.Header().Set("WWW-Authenticate", `Bearer realm="visitcal", error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
