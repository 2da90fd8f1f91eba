package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cbodonnell/duelsync/pkg/log"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	logger := log.New(&bytes.Buffer{}, "", 0, log.LogLevelError)
	handler := NewAuthMiddleware("s3cret", logger)(okHandler())

	tests := []struct {
		name   string
		header string
		target string
		want   int
	}{
		{name: "missing header", target: "/state", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic s3cret", target: "/state", want: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer nope", target: "/state", want: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer s3cret", target: "/state", want: http.StatusOK},
		{name: "lowercase scheme", header: "bearer s3cret", target: "/state", want: http.StatusOK},
		{name: "query token", target: "/events?token=s3cret", want: http.StatusOK},
		{name: "wrong query token", target: "/events?token=nope", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	handler := NewAuthMiddleware("", log.Default())(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	handler := CORS(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/state", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
