package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"staff-portal/config"
	"staff-portal/middleware"
	"staff-portal/store"
	"staff-portal/utils"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func serve(handler middleware.AppHandler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	middleware.ErrorHandler(zap.NewNop())(handler).ServeHTTP(rec, req)
	return rec
}

func postJSON(t *testing.T, target string, body interface{}) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
}

func TestAttendanceLoginAndList(t *testing.T) {
	location, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	h := NewAttendanceHandler(store.NewMemoryStore(), location)
	// 01:30 UTC is still the previous day in São Paulo.
	current := time.Date(2024, 3, 2, 1, 30, 0, 0, time.UTC)
	h.now = func() time.Time { return current }

	rec := serve(h.LoginHandler, postJSON(t, "/api/attendance/login", map[string]string{"employeeId": "emp1"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true,"message":"Attendance logged successfully"}`, rec.Body.String())

	current = time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
	rec = serve(h.LoginHandler, postJSON(t, "/api/attendance/login", map[string]string{"employeeId": "emp1"}))
	require.Equal(t, http.StatusOK, rec.Code)

	current = time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC)
	rec = serve(h.LoginHandler, postJSON(t, "/api/attendance/login", map[string]string{"employeeId": "emp1"}))
	require.Equal(t, http.StatusOK, rec.Code)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/attendance/emp1", nil), map[string]string{"employeeId": "emp1"})
	rec = serve(h.ListHandler, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"date":"2024-03-01","loginTime":"2024-03-01T22:30:00-03:00","status":"present"},
		{"date":"2024-03-02","loginTime":"2024-03-02T12:00:00-03:00","status":"present"}
	]`, rec.Body.String())
}

func TestAttendanceListEmpty(t *testing.T) {
	h := NewAttendanceHandler(store.NewMemoryStore(), nil)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/attendance/nobody", nil), map[string]string{"employeeId": "nobody"})
	rec := serve(h.ListHandler, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAttendanceLoginValidation(t *testing.T) {
	h := NewAttendanceHandler(store.NewMemoryStore(), nil)

	for _, body := range []map[string]string{
		{},
		{"employeeId": ""},
		{"employeeId": "a/b"},
		{"employeeId": "a#b"},
	} {
		rec := serve(h.LoginHandler, postJSON(t, "/api/attendance/login", body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestRegisterHandlerHashFailure(t *testing.T) {
	orig := hashPassword
	hashPassword = func(string) (string, error) { return "", errors.New("hash failed") }
	defer func() { hashPassword = orig }()

	h := NewAuthHandler(config.AuthConfig{TokenSecret: []byte("s"), TokenTTL: time.Hour}, store.NewMemoryStore(), nil)
	rec := serve(h.RegisterHandler, postJSON(t, "/api/register", map[string]string{"email": "a@x.com", "password": "pw", "name": "A"}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRegisterHandlerTokenFailure(t *testing.T) {
	origHash, origToken := hashPassword, generateToken
	hashPassword = func(string) (string, error) { return "hash", nil }
	generateToken = func(utils.Claims, time.Duration, string, []byte) (string, error) {
		return "", errors.New("sign failed")
	}
	defer func() { hashPassword, generateToken = origHash, origToken }()

	h := NewAuthHandler(config.AuthConfig{TokenSecret: []byte("s"), TokenTTL: time.Hour}, store.NewMemoryStore(), nil)
	rec := serve(h.RegisterHandler, postJSON(t, "/api/register", map[string]string{"email": "a@x.com", "password": "pw", "name": "A"}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Could not generate token")
}

func TestLoginHandlerUsesConfiguredTTL(t *testing.T) {
	origHash, origCheck, origToken := hashPassword, checkPassword, generateToken
	hashPassword = func(password string) (string, error) { return "hashed:" + password, nil }
	checkPassword = func(hash, password string) bool { return hash == "hashed:"+password }
	var gotTTL time.Duration
	generateToken = func(claims utils.Claims, ttl time.Duration, issuer string, secret []byte) (string, error) {
		gotTTL = ttl
		return "token", nil
	}
	defer func() { hashPassword, checkPassword, generateToken = origHash, origCheck, origToken }()

	h := NewAuthHandler(config.AuthConfig{TokenSecret: []byte("s"), TokenTTL: 90 * time.Minute}, store.NewMemoryStore(), nil)
	rec := serve(h.RegisterHandler, postJSON(t, "/api/register", map[string]string{"email": "a@x.com", "password": "pw", "name": "A"}))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 90*time.Minute, gotTTL)

	gotTTL = 0
	rec = serve(h.LoginHandler, postJSON(t, "/api/login", map[string]string{"email": "a@x.com", "password": "pw"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 90*time.Minute, gotTTL)
}

func TestStoreErrorMapping(t *testing.T) {
	var appErr *middleware.AppError

	require.ErrorAs(t, storeError(store.ErrInvalidPath), &appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)

	require.ErrorAs(t, storeError(errors.New("boom")), &appErr)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Equal(t, "Internal server error", appErr.Message)
}

func TestPathKey(t *testing.T) {
	id, ok := pathKey(" emp1 ")
	assert.True(t, ok)
	assert.Equal(t, "emp1", id)

	for _, invalid := range []string{"", " ", "a/b", "a.b", "a$b", "a[b]"} {
		_, ok := pathKey(invalid)
		assert.False(t, ok, invalid)
	}
}
