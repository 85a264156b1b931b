package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := Wrap(CodePublishFailure, cause, "", WithMetadata("driver", "redis"))

	assert.Equal(t, "[PUBLISH_FAILURE] event publish failed: connection refused", err.Error())
	assert.Equal(t, map[string]string{"driver": "redis"}, err.Metadata())
	assert.ErrorIs(t, err, cause)
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeTimeout, "agent slow"))
	assert.True(t, stdErrors.Is(err, New(CodeTimeout, "")))
	assert.False(t, stdErrors.Is(err, New(CodeNotFound, "")))
	assert.Equal(t, CodeTimeout, CodeOf(err))
}

func TestRegisterCustomCode(t *testing.T) {
	const code Code = "TEST_CUSTOM"
	Register(code, Attributes{Message: "custom", Severity: SeverityWarning, Status: http.StatusTeapot})

	err := New(code, "")
	assert.Equal(t, "custom", err.Message())
	assert.Equal(t, SeverityWarning, err.Severity())
	assert.Equal(t, http.StatusTeapot, StatusOf(err))
}

func TestFallbacks(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusOf(nil))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(stdErrors.New("plain")))
	assert.Equal(t, CodeUnknown, CodeOf(stdErrors.New("plain")))
	assert.Equal(t, SeverityCritical, SeverityOf(stdErrors.New("plain")))

	unknown := New("NEVER_REGISTERED", "")
	assert.Equal(t, "unknown error", unknown.Message())

	var nilErr *Error
	require.Equal(t, CodeUnknown, nilErr.Code())
	assert.Equal(t, "", nilErr.Error())
}
