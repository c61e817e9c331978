package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-verification/pkg/emailverification"
	"github.com/tendant/simple-verification/pkg/identity"
	"github.com/tendant/simple-verification/pkg/inmem"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  struct {
		Code string `json:"code"`
	} `json:"errors"`
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type fixture struct {
	handler http.Handler
	service *emailverification.EmailVerificationService
	db      *inmem.DB
	clock   *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{db: inmem.New(), clock: &fakeClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}}
	f.service = emailverification.NewEmailVerificationService(f.db.EmailVerifications(), f.db.Identities(),
		emailverification.WithNow(f.clock.Now),
	)
	h := NewHandle(f.service)
	mux := chi.NewRouter()
	mux.Mount("/", Handler(h))
	mux.Mount("/admin", AdminHandler(h))
	f.handler = mux

	_, err := f.db.Identities().Create(context.Background(), identity.CreateParams{Email: "user@example.com", CreatedAt: f.clock.now})
	require.NoError(t, err)
	return f
}

func (f *fixture) serve(t *testing.T, method, target, body string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestRequestVerification(t *testing.T) {
	f := newFixture(t)

	code, env := f.serve(t, http.MethodPost, "/request", `{"email":"user@example.com"}`)
	require.Equal(t, http.StatusAccepted, code)
	var resp RequestResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, f.clock.now.Add(emailverification.DefaultTokenExpiry), resp.ExpiresAt.UTC())
	assert.NotContains(t, string(env.Data), "token", "the token only travels by email")

	code, env = f.serve(t, http.MethodPost, "/request", `{"email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Errors.Code)

	code, env = f.serve(t, http.MethodPost, "/request", `{"email":"nope"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "VALIDATION_FAILED", env.Errors.Code)
}

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t)
	result, err := f.service.Request(context.Background(), "user@example.com")
	require.NoError(t, err)

	code, env := f.serve(t, http.MethodPost, "/verify", `{"token":"`+result.Token+`"}`)
	require.Equal(t, http.StatusOK, code)
	var resp VerificationResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "VERIFIED", string(resp.Status))
	assert.Equal(t, "user@example.com", resp.SubjectEmail)

	code, env = f.serve(t, http.MethodGet, "/admin/status?email=USER@example.com", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "VERIFIED", string(resp.Status))

	code, env = f.serve(t, http.MethodPost, "/resend", `{"email":"user@example.com"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ALREADY_VERIFIED", env.Errors.Code)
}

func TestVerifyFailuresLookAlike(t *testing.T) {
	f := newFixture(t)
	result, err := f.service.Request(context.Background(), "user@example.com")
	require.NoError(t, err)

	f.clock.now = f.clock.now.Add(time.Hour)

	bodies := map[string]string{
		"unknown token": `{"token":"does-not-exist"}`,
		"expired token": `{"token":"` + result.Token + `"}`,
		"empty token":   `{"token":""}`,
		"malformed":     `{"token":`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			code, env := f.serve(t, http.MethodPost, "/verify", body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, InvalidTokenMessage, env.Message)
			assert.Empty(t, env.Errors.Code)
		})
	}

	code, env := f.serve(t, http.MethodGet, "/admin/status?email=user@example.com", "")
	require.Equal(t, http.StatusOK, code)
	var resp VerificationResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "EXPIRED", string(resp.Status))
}

func TestStatusValidation(t *testing.T) {
	f := newFixture(t)

	code, env := f.serve(t, http.MethodGet, "/admin/status", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_INPUT", env.Errors.Code)

	code, env = f.serve(t, http.MethodGet, "/admin/status?email=user@example.com", "")
	assert.Equal(t, http.StatusNotFound, code, "no verification requested yet")
	assert.Equal(t, "NOT_FOUND", env.Errors.Code)
}

func TestStatusIsNotPublic(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(NewHandle(nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status?email=user@example.com", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
