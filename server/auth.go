package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 24 * time.Hour

// handleIssueToken exchanges the shared API key for a short-lived JWT.
// Remote UIs keep the JWT for HTTP and websocket access instead of
// sending the raw key on every request.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if s.cfg.APIToken == "" {
		respondError(w, http.StatusNotFound, "authentication is disabled")
		return
	}
	if r.Header.Get("X-API-Key") != s.cfg.APIToken {
		respondError(w, http.StatusUnauthorized, "invalid API key")
		return
	}

	claims := jwt.MapClaims{
		"sub": "control-api",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.APIToken))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to sign token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token":     signed,
		"expiresIn": int(tokenTTL.Seconds()),
	})
}

// authMiddleware validates the bearer JWT on API routes. With no API
// token configured the control surface is open, which suits a daemon
// bound to localhost.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		if err := s.checkToken(bearerToken(r)); err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkToken(raw string) error {
	if raw == "" {
		return fmt.Errorf("missing bearer token")
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.APIToken), nil
	})
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if tok, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return tok
	}
	// Websocket clients cannot set headers from browsers, so the token
	// may arrive as a query parameter.
	return r.URL.Query().Get("token")
}
