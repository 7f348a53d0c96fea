package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"audiowave/config"
)

func authedServer(token string) *Server {
	return &Server{cfg: &config.Config{APIToken: token}}
}

func issueToken(t *testing.T, s *Server, key string) (string, int) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	s.handleIssueToken(rec, req)
	if rec.Code != http.StatusOK {
		return "", rec.Code
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	return body.Token, rec.Code
}

func TestIssueTokenRequiresAPIKey(t *testing.T) {
	s := authedServer("secret")

	if _, code := issueToken(t, s, "wrong"); code != http.StatusUnauthorized {
		t.Fatalf("wrong key status = %d, want 401", code)
	}
	if _, code := issueToken(t, s, ""); code != http.StatusUnauthorized {
		t.Fatalf("missing key status = %d, want 401", code)
	}
	token, code := issueToken(t, s, "secret")
	if code != http.StatusOK || token == "" {
		t.Fatalf("valid key status = %d token = %q", code, token)
	}
}

func TestIssueTokenDisabledWithoutSecret(t *testing.T) {
	s := authedServer("")
	if _, code := issueToken(t, s, "anything"); code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := authedServer("secret")
	token, _ := issueToken(t, s, "secret")

	protected := s.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"no credentials", "", "", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", "", http.StatusUnauthorized},
		{"valid bearer", "Bearer " + token, "", http.StatusNoContent},
		{"valid query token", "", token, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := "/api/player/status"
			if tc.query != "" {
				target += "?token=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestAuthMiddlewareOpenWithoutSecret(t *testing.T) {
	s := authedServer("")
	protected := s.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/player/status", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}
