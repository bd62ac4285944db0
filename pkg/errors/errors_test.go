package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapIncludesInternal(t *testing.T) {
	err := Wrap(stdErrors.New("boom"), "failed to read cache totals")
	require.Equal(t, "failed to read cache totals: boom", err.Error())
	require.Equal(t, http.StatusInternalServerError, err.StatusCode)
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", http.StatusBadRequest)
	with := base.WithInternal(stdErrors.New("oops"))

	require.NotSame(t, base, with)
	require.Nil(t, base.Internal)
	require.NotNil(t, with.Internal)
}

func TestIsMatchesByCode(t *testing.T) {
	custom := ErrInvalidCacheKey.WithMessage("bad key")
	require.ErrorIs(t, custom, ErrInvalidCacheKey)
	require.NotErrorIs(t, custom, ErrBadRequest)

	wrapped := fmt.Errorf("handler: %w", ErrEvictionUnavailable.WithInternal(stdErrors.New("nil engine")))
	require.ErrorIs(t, wrapped, ErrEvictionUnavailable)
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))

	plain := FromError(stdErrors.New("disk full"))
	require.Equal(t, ErrInternalServer.Code, plain.Code)
	require.EqualError(t, plain, "Internal server error: disk full")

	wrapped := fmt.Errorf("outer: %w", ErrNotFound)
	require.Same(t, ErrNotFound, FromError(wrapped))
}

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("limit must be at most 500")
	require.Equal(t, "BAD_REQUEST", err.Code)
	require.Equal(t, "limit must be at most 500", err.Message)
	require.Equal(t, "Invalid request", ErrBadRequest.Message)
}
