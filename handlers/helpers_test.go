package handlers_test

import (
	"bytes"
	"context"
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
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	utils.PasswordCost = bcrypt.MinCost
}

var errStoreDown = errors.New("connection refused")

// failingStore fails every call.
type failingStore struct{}

func (failingStore) ReadAll(context.Context, string) (store.Snapshot, error) {
	return store.Snapshot{}, errStoreDown
}

func (failingStore) ReadFiltered(context.Context, string, string, any) ([]store.Child, error) {
	return nil, errStoreDown
}

func (failingStore) PushNew(context.Context, string, any) (string, error) {
	return "", errStoreDown
}

func (failingStore) SetAt(context.Context, string, any) error {
	return errStoreDown
}

func (failingStore) UpdateAt(context.Context, string, map[string]any) error {
	return errStoreDown
}

func (failingStore) DeleteAt(context.Context, string) error {
	return errStoreDown
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		TokenSecret: []byte("test-secret"),
		Issuer:      "test-issuer",
		TokenTTL:    time.Hour,
	}
}

func executeRequest(handler middleware.AppHandler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	middleware.ErrorHandler(zap.NewNop())(handler).ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var payload []byte
	switch v := body.(type) {
	case nil:
	case string:
		payload = []byte(v)
	default:
		var err error
		payload, err = json.Marshal(v)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withVars(req *http.Request, vars map[string]string) *http.Request {
	return mux.SetURLVars(req, vars)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]interface{}
	decodeBody(t, rec, &payload)
	require.Equal(t, false, payload["success"])
	return payload["error"].(string)
}
