package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapNil(t *testing.T) {
	require.NoError(t, Wrap(RelayRequestFailed, "relay", nil))
}

func TestKindSurvivesWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(RelayRequestFailed, "get deposit address", cause)
	outer := fmt.Errorf("bridge step failed: %w", err)

	require.Equal(t, RelayRequestFailed, KindOf(outer))
	require.True(t, Is(outer, RelayRequestFailed))
	require.False(t, Is(outer, ValidationFailed))
	require.ErrorIs(t, outer, cause)
	require.Equal(t, "[RELAY_REQUEST_FAILED] get deposit address: connection refused", err.Error())
}

func TestKindOfPlainError(t *testing.T) {
	require.Equal(t, Kind(""), KindOf(errors.New("boom")))
	require.False(t, Is(nil, ValidationFailed))
}

func TestNewFormats(t *testing.T) {
	err := New(ValidationFailed, "submit transfer", "amount %q is not positive", "-1")
	require.True(t, Is(err, ValidationFailed))
	require.Contains(t, err.Error(), `amount "-1" is not positive`)
}
