package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubValidator map[string]string

func (s stubValidator) ValidateToken(token string) (string, string, error) {
	id, ok := s[token]
	if !ok {
		return "", "", errors.New("bad token")
	}
	return id, "name-" + id, nil
}

func TestAuthMiddleware(t *testing.T) {
	mw := NewAuthMiddleware(stubValidator{"good": "u1"})
	var seen string
	h := mw.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		header string
		query  string
		status int
		user   string
	}{
		{name: "bearer header", header: "Bearer good", status: http.StatusNoContent, user: "u1"},
		{name: "query fallback", query: "?token=good", status: http.StatusNoContent, user: "u1"},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "invalid", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			seen = ""
			r := httptest.NewRequest(http.MethodGet, "/api/contacts"+tc.query, nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			req.Equal(tc.status, rec.Code)
			req.Equal(tc.user, seen)
		})
	}
}
