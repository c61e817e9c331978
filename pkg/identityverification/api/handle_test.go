package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-verification/pkg/identity"
	"github.com/tendant/simple-verification/pkg/identityverification"
	"github.com/tendant/simple-verification/pkg/inmem"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  struct {
		Code    string                 `json:"code"`
		Details map[string]interface{} `json:"details"`
	} `json:"errors"`
}

func serve(t *testing.T, h http.Handler, method, target, body string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func newTestHandler(t *testing.T) (http.Handler, *inmem.DB) {
	t.Helper()
	db := inmem.New()
	svc := identityverification.NewIdentityVerificationService(db.IdentityVerifications(), db.Identities())
	return Handler(NewHandle(svc)), db
}

func addIdentity(t *testing.T, db *inmem.DB, params identity.CreateParams) identity.Identity {
	t.Helper()
	i, err := db.Identities().Create(context.Background(), params)
	require.NoError(t, err)
	return i
}

func TestRequestAndApprove(t *testing.T) {
	h, db := newTestHandler(t)
	ident := addIdentity(t, db, identity.CreateParams{
		Email: "jane@example.com", DNI: "12345678Z", Name: "Jane", Phone: "600000000", Address: "Calle Mayor 1",
	})

	code, env := serve(t, h, http.MethodPost, "/request", `{"email":"jane@example.com"}`)
	require.Equal(t, http.StatusCreated, code)

	var created VerificationResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, ident.ID, created.IdentityID)
	assert.Equal(t, "PENDING", string(created.Status))
	assert.Equal(t, identityverification.DefaultMaxAttempts, created.MaxAttempts)

	code, env = serve(t, h, http.MethodGet, "/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, code)

	code, env = serve(t, h, http.MethodPost, "/approve", `{"email":"jane@example.com"}`)
	require.Equal(t, http.StatusOK, code)
	var approved VerificationResponse
	require.NoError(t, json.Unmarshal(env.Data, &approved))
	assert.Equal(t, "VERIFIED", string(approved.Status))
	assert.NotNil(t, approved.VerifiedAt)

	code, env = serve(t, h, http.MethodPost, "/approve", `{"email":"jane@example.com"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONFLICT", env.Errors.Code)
}

func TestApproveIncomplete(t *testing.T) {
	h, db := newTestHandler(t)
	addIdentity(t, db, identity.CreateParams{Email: "half@example.com", Name: "Half"})

	code, _ := serve(t, h, http.MethodPost, "/request", `{"email":"half@example.com"}`)
	require.Equal(t, http.StatusCreated, code)

	code, env := serve(t, h, http.MethodPost, "/approve", `{"email":"half@example.com"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "VALIDATION_FAILED", env.Errors.Code)
	assert.ElementsMatch(t, []interface{}{"dni", "phone", "address"}, env.Errors.Details["missing_fields"])
	assert.EqualValues(t, 1, env.Errors.Details["attempts"])
}

func TestRejectAndCancel(t *testing.T) {
	h, db := newTestHandler(t)
	addIdentity(t, db, identity.CreateParams{Email: "r@example.com"})
	addIdentity(t, db, identity.CreateParams{Email: "c@example.com"})

	code, _ := serve(t, h, http.MethodPost, "/request", `{"email":"r@example.com"}`)
	require.Equal(t, http.StatusCreated, code)

	code, env := serve(t, h, http.MethodPost, "/reject", `{"email":"r@example.com","reason":"no"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code, "reason shorter than 3 characters")
	assert.Equal(t, "VALIDATION_FAILED", env.Errors.Code)

	code, env = serve(t, h, http.MethodPost, "/reject", `{"email":"r@example.com","reason":"blurry photo"}`)
	require.Equal(t, http.StatusOK, code)
	var rejected VerificationResponse
	require.NoError(t, json.Unmarshal(env.Data, &rejected))
	assert.Equal(t, "CANCELLED", string(rejected.Status))
	require.NotNil(t, rejected.Reason)
	assert.Equal(t, "blurry photo", *rejected.Reason)

	code, env = serve(t, h, http.MethodPost, "/request", `{"email":"c@example.com"}`)
	require.Equal(t, http.StatusCreated, code)
	var created VerificationResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))

	code, env = serve(t, h, http.MethodPost, "/"+created.ID.String()+"/cancel", "")
	require.Equal(t, http.StatusOK, code)
	var cancelled VerificationResponse
	require.NoError(t, json.Unmarshal(env.Data, &cancelled))
	assert.Equal(t, "CANCELLED", string(cancelled.Status))
	assert.Nil(t, cancelled.Reason)
}

func TestList(t *testing.T) {
	h, db := newTestHandler(t)
	for _, email := range []string{"a@example.com", "b@example.com"} {
		addIdentity(t, db, identity.CreateParams{Email: email})
		code, _ := serve(t, h, http.MethodPost, "/request", `{"email":"`+email+`"}`)
		require.Equal(t, http.StatusCreated, code)
	}

	code, env := serve(t, h, http.MethodGet, "/?status=PENDING&page=1&page_size=1", "")
	require.Equal(t, http.StatusOK, code)
	var page ListResponse
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.PageSize)

	code, env = serve(t, h, http.MethodGet, "/?status=DONE", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "VALIDATION_FAILED", env.Errors.Code)

	code, env = serve(t, h, http.MethodGet, "/?page=x", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_INPUT", env.Errors.Code)
}

func TestNotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	code, env := serve(t, h, http.MethodGet, "/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Errors.Code)

	code, env = serve(t, h, http.MethodGet, "/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_INPUT", env.Errors.Code)

	code, _ = serve(t, h, http.MethodPost, "/request", `{"email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = serve(t, h, http.MethodPost, "/request", `{"email":"not an email"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "VALIDATION_FAILED", env.Errors.Code)
}
