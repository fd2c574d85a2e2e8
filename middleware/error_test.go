package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAppErrorErrorAndUnwrap(t *testing.T) {
	baseErr := errors.New("root error")
	appErr := &AppError{Status: http.StatusBadRequest, Message: "bad", Err: baseErr}
	assert.Equal(t, baseErr.Error(), appErr.Error())
	assert.ErrorIs(t, appErr, baseErr)

	appErr = &AppError{Status: http.StatusBadRequest, Message: "message"}
	assert.Equal(t, "message", appErr.Error())
}

func TestErrorHandlerAppErrorResponse(t *testing.T) {
	handler := ErrorHandler(nil)(func(w http.ResponseWriter, r *http.Request) error {
		return NewAppError(http.StatusBadRequest, "bad request", errors.New("bad"))
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var payload map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "bad request", payload["error"])
	assert.Equal(t, false, payload["success"])
}

func TestErrorHandlerGenericErrorIsNotEchoed(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := ErrorHandler(zap.New(core))(func(w http.ResponseWriter, r *http.Request) error {
		return errors.New("pq: password authentication failed")
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/employees", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pq:")
	var payload map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "Internal server error", payload["error"])

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "request failed", entries[0].Message)
		assert.Equal(t, "/api/employees", entries[0].ContextMap()["path"])
	}
}

func TestErrorHandlerClientErrorsAreNotLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := ErrorHandler(zap.New(core))(func(w http.ResponseWriter, r *http.Request) error {
		return NewAppError(http.StatusUnauthorized, "Invalid credentials", nil)
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/login", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, logs.All())
}

func TestErrorHandlerRespectsWrittenHeader(t *testing.T) {
	handler := ErrorHandler(nil)(func(w http.ResponseWriter, r *http.Request) error {
		w.WriteHeader(http.StatusNoContent)
		return errors.New("ignored")
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestErrorHandlerPanicRecovery(t *testing.T) {
	handler := ErrorHandler(zap.NewNop())(func(w http.ResponseWriter, r *http.Request) error {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var payload map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "Internal server error", payload["error"])
}
