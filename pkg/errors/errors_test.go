package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusFromError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrRoomNotFound, http.StatusNotFound},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrInvalidToken, http.StatusUnauthorized},
		{ErrTokenExpired, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrBadRequest, http.StatusBadRequest},
		{ErrNoParticipants, http.StatusBadRequest},
		{ErrUserAlreadyExists, http.StatusConflict},
		{ErrInternalServer, http.StatusInternalServerError},
		{fmt.Errorf("anything else"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatusFromError(tc.err), "error %v", tc.err)
	}
}

func TestHTTPStatusFromWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("looking up chat: %w", ErrRoomNotFound)
	assert.Equal(t, http.StatusNotFound, HTTPStatusFromError(wrapped))
}

func TestAPIError(t *testing.T) {
	err := NewAPIError("nope", http.StatusTeapot)
	assert.Equal(t, "nope", err.Error())
	assert.Equal(t, http.StatusTeapot, err.Code)
}
