package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesCodeAndMessage(t *testing.T) {
	sentinel := New(ErrCodeNotFound, "verification record not found")

	t.Run("Same pointer", func(t *testing.T) {
		assert.True(t, stderrors.Is(sentinel, sentinel))
	})

	t.Run("Copy with details", func(t *testing.T) {
		withDetail := sentinel.WithDetail("email", "a@b.com")
		assert.True(t, stderrors.Is(withDetail, sentinel))
		assert.Nil(t, sentinel.Details, "sentinel must not be mutated")
		assert.Equal(t, "a@b.com", withDetail.Details["email"])
	})

	t.Run("Wrapped by fmt", func(t *testing.T) {
		wrapped := fmt.Errorf("lookup: %w", sentinel)
		assert.True(t, stderrors.Is(wrapped, sentinel))
		assert.True(t, IsCode(wrapped, ErrCodeNotFound))
	})

	t.Run("Different message", func(t *testing.T) {
		other := New(ErrCodeNotFound, "identity not found")
		assert.False(t, stderrors.Is(other, sentinel))
	})
}

func TestGetCodeAndMessage(t *testing.T) {
	err := InternalWrap(stderrors.New("connection refused"), "failed to load record")
	assert.Equal(t, ErrCodeInternal, GetCode(err))
	assert.Equal(t, "failed to load record", GetMessage(err))
	assert.Contains(t, err.Error(), "connection refused")

	plain := stderrors.New("boom")
	assert.Equal(t, ErrCodeInternal, GetCode(plain))
	assert.Equal(t, "internal error", GetMessage(plain))
	assert.Nil(t, GetDetails(plain))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "nothing"))
}

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrCodeNotFound:          http.StatusNotFound,
		ErrCodeTokenExpired:      http.StatusGone,
		ErrCodeAttemptsExceeded:  http.StatusTooManyRequests,
		ErrCodeAlreadyVerified:   http.StatusConflict,
		ErrCodeConflict:          http.StatusConflict,
		ErrCodeInvalidTransition: http.StatusConflict,
		ErrCodeValidationFailed:  http.StatusUnprocessableEntity,
		ErrCodeInvalidInput:      http.StatusBadRequest,
		ErrCodeInternal:          http.StatusInternalServerError,
		ErrorCode("UNKNOWN"):     http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, MapErrorCodeToHTTPStatus(code), "code %s", code)
	}
}

func TestValidationFailedDetails(t *testing.T) {
	err := ValidationFailed(map[string]interface{}{"missing_fields": []string{"dni", "phone"}})
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeValidationFailed, err.Code)
	assert.Equal(t, []string{"dni", "phone"}, GetDetails(err)["missing_fields"])
	assert.Equal(t, http.StatusUnprocessableEntity, err.HTTPStatusCode())
}
