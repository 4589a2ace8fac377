package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors_StatusMapping(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name   string
		err    *Error
		typ    ErrorType
		status int
	}{
		{"validation", ValidationError("bad url"), TypeValidation, http.StatusBadRequest},
		{"not found", NotFoundError("no route"), TypeNotFound, http.StatusNotFound},
		{"internal", InternalError("oops", cause), TypeInternal, http.StatusInternalServerError},
		{"external", ExternalError("tally down", cause), TypeExternal, http.StatusBadGateway},
		{"unavailable", UnavailableError("breaker open", cause), TypeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.err.Type)
			assert.Equal(t, tt.status, tt.err.HTTPStatus())
			assert.NotNil(t, tt.err.Context)
			assert.Contains(t, tt.err.Error(), string(tt.typ))
		})
	}
}

func TestError_UnwrapsCause(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := ExternalError("fetch failed", fmt.Errorf("wrapped: %w", sentinel))

	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "fetch failed")
	assert.Contains(t, err.Error(), "sentinel")
}

func TestWithField_Chains(t *testing.T) {
	err := ValidationError("invalid page url").WithField("url", "::").WithField("op", "like")

	assert.Equal(t, "::", err.Context["url"])
	assert.Equal(t, "like", err.Context["op"])

	resp := err.ToResponse()
	assert.Equal(t, "invalid page url", resp.Error)
	assert.Equal(t, TypeValidation, resp.Type)
	assert.Equal(t, err.Context, resp.Context)
}

func TestWithField_NilContext(t *testing.T) {
	err := &Error{Type: TypeInternal, Message: "x"}
	err.WithField("k", 1)
	assert.Equal(t, 1, err.Context["k"])
}

func TestAsStructuredError(t *testing.T) {
	assert.Nil(t, AsStructuredError(nil))

	original := ValidationError("bad")
	wrapped := fmt.Errorf("handler: %w", original)
	require.Same(t, original, AsStructuredError(wrapped))

	plain := errors.New("plain")
	converted := AsStructuredError(plain)
	assert.Equal(t, TypeInternal, converted.Type)
	assert.Equal(t, "internal server error", converted.Message)
	assert.ErrorIs(t, converted, plain)
}
