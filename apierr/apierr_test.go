package apierr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  StatusCoder
		want int
	}{
		{"validation", NewValidationError(BadTokenFormat, "bad"), http.StatusUnauthorized},
		{"not enough proof", &NotEnoughProofError{Msg: "nope"}, http.StatusPaymentRequired},
		{"payload too large", &PayloadTooLargeError{Msg: "too big"}, http.StatusRequestEntityTooLarge},
		{"does not exist", &DoesNotExistError{Path: "a/b"}, http.StatusNotFound},
		{"driver error", NewDriverError("op", errors.New("boom")), http.StatusInternalServerError},
		{"conflicting name", &ConflictingNameError{Path: "a/.authTimestamp"}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.StatusCode())
			assert.NotEmpty(t, tc.err.Error())
		})
	}
}

func TestNewDriverError_WrapsCauseAndUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	de := NewDriverError("PerformWrite", cause)

	require.Error(t, de.Cause)
	assert.Contains(t, de.Cause.Error(), "disk full")
	assert.Contains(t, de.Cause.Error(), "PerformWrite")
	assert.Same(t, cause, errorsCause(de))
	assert.Equal(t, "internal storage error", de.ClientMessage())
}

// errorsCause walks Unwrap until it reaches the original cause, mirroring
// what a logger using errors.Is/errors.As would observe.
func errorsCause(err error) error {
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		next := u.Unwrap()
		if next == nil {
			return err
		}
		err = next
	}
}

func TestIsDoesNotExist(t *testing.T) {
	assert.True(t, IsDoesNotExist(&DoesNotExistError{Path: "x"}))
	assert.False(t, IsDoesNotExist(errors.New("other")))
	assert.False(t, IsDoesNotExist(nil))
}
