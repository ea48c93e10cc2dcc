package util

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimestamp(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*60*60)
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-05-01 16:00:00", FormatTimestamp(at, jakarta))
	assert.Equal(t, "2024-05-01 09:00:00", FormatTimestamp(at, nil))
	assert.Equal(t, "", FormatTimestamp(time.Time{}, jakarta))
}

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	wrapped := errors.Join(errors.New("context"), NewAlreadyClaimed("LIVEOPS-1", "Budi"))
	de := ToDomainError(wrapped)
	assert.Equal(t, CodeAlreadyClaimed, de.Code)
	assert.Equal(t, http.StatusConflict, de.HTTPStatus)
	assert.True(t, HasCode(wrapped, CodeAlreadyClaimed))
	assert.False(t, HasCode(wrapped, CodeTerminal))

	plain := ToDomainError(errors.New("boom"))
	assert.Equal(t, CodeInternal, plain.Code)
}

func TestNewMalformedTokenUnwraps(t *testing.T) {
	cause := errors.New("got 1 fields, want 2")
	err := NewMalformedToken("pick_responder", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "malformed interaction payload")
}
