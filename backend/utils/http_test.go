package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusOK, map[string]string{"message": "test"})
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "test", response["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		require.NoError(t, WriteJSON(w, http.StatusNoContent, nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteCreated(w, map[string]string{"id": "123"}))

	assert.Equal(t, http.StatusCreated, w.Code)
	var response SuccessResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "123", response.Data.(map[string]interface{})["id"])
}

func TestWriteErrors(t *testing.T) {
	tests := []struct {
		name      string
		write     func(w http.ResponseWriter) error
		wantCode  int
		wantError string
	}{
		{"bad request", func(w http.ResponseWriter) error { return WriteBadRequest(w, "bad", nil) }, http.StatusBadRequest, "bad_request"},
		{"unauthorized", func(w http.ResponseWriter) error { return WriteUnauthorized(w, "") }, http.StatusUnauthorized, "unauthorized"},
		{"session invalid", WriteSessionInvalid, http.StatusUnauthorized, "session_invalid"},
		{"forbidden", func(w http.ResponseWriter) error { return WriteForbidden(w, "") }, http.StatusForbidden, "forbidden"},
		{"not found", func(w http.ResponseWriter) error { return WriteNotFound(w, "") }, http.StatusNotFound, "not_found"},
		{"conflict", func(w http.ResponseWriter) error { return WriteConflict(w, "dup", nil) }, http.StatusConflict, "conflict"},
		{"unavailable", func(w http.ResponseWriter) error { return WriteServiceUnavailable(w, "") }, http.StatusServiceUnavailable, "service_unavailable"},
		{"internal", func(w http.ResponseWriter) error { return WriteInternalServerError(w, "") }, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, tt.write(w))

			assert.Equal(t, tt.wantCode, w.Code)
			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.wantError, response.Error)
			assert.NotEmpty(t, response.Message)
		})
	}
}

func TestWriteSessionInvalid_DoesNotLeakReason(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteSessionInvalid(w))

	assert.NotContains(t, w.Body.String(), "fingerprint")
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
}

func TestWriteTooManyRequests(t *testing.T) {
	t.Run("with reset seconds", func(t *testing.T) {
		w := httptest.NewRecorder()
		require.NoError(t, WriteTooManyRequests(w, "", 42, nil))

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "42", w.Header().Get("Retry-After"))

		var response ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "rate_limit_exceeded", response.Error)
		assert.Equal(t, "Rate limit exceeded", response.Message)
		assert.Equal(t, float64(42), response.Details["reset_seconds"])
	})

	t.Run("without reset seconds", func(t *testing.T) {
		w := httptest.NewRecorder()
		require.NoError(t, WriteTooManyRequests(w, "slow down", 0, nil))

		assert.Empty(t, w.Header().Get("Retry-After"))
		assert.Contains(t, w.Body.String(), "slow down")
	})
}

func TestSetRateLimitHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SetRateLimitHeaders(w, 50, 7, 120)

	assert.Equal(t, "50", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "7", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "120", w.Header().Get("X-RateLimit-Reset"))
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}

	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
		var b body
		require.NoError(t, DecodeJSON(r, &b))
		assert.Equal(t, "x", b.Name)
	})

	t.Run("unknown field", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":1}`))
		var b body
		assert.Error(t, DecodeJSON(r, &b))
	})

	t.Run("empty body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		var b body
		err := DecodeJSON(r, &b)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty")
	})

	t.Run("trailing object", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}{"name":"y"}`))
		var b body
		assert.Error(t, DecodeJSON(r, &b))
	})
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, "10.1.2.3", ClientIP(r))

	r.RemoteAddr = "10.1.2.4"
	assert.Equal(t, "10.1.2.4", ClientIP(r))
}
