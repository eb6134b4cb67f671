package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := map[Code]int{
		CodeInvalidArgument:    http.StatusBadRequest,
		CodeNotFound:           http.StatusNotFound,
		CodeAlreadyExists:      http.StatusConflict,
		CodePermissionDenied:   http.StatusForbidden,
		CodeFailedPrecondition: http.StatusBadRequest,
		CodeInternal:           http.StatusInternalServerError,
		CodeUnauthenticated:    http.StatusUnauthorized,
	}

	for code, want := range tests {
		assert.Equal(t, want, New(code).HTTPStatusCode(), "code %d", code)
	}

	// Wrong role and missing credentials are distinct responses.
	assert.NotEqual(t, New(CodeUnauthenticated).HTTPStatusCode(), New(CodePermissionDenied).HTTPStatusCode())

	assert.Equal(t, http.StatusInternalServerError, New(Code(999)).HTTPStatusCode())
}

func TestConvert(t *testing.T) {
	t.Run("coded error passes through", func(t *testing.T) {
		err := New(CodeNotFound, WithMessagef("quiz not found"))
		assert.Equal(t, err, Convert(fmt.Errorf("load: %w", err)))
	})

	t.Run("unknown error becomes internal", func(t *testing.T) {
		e := Convert(fmt.Errorf("connection refused"))
		assert.Equal(t, CodeInternal, e.Code)
	})
}

func TestHasCode(t *testing.T) {
	err := New(CodeAlreadyExists, WithMessagef("email already registered"))

	assert.True(t, HasCode(err, CodeAlreadyExists))
	assert.False(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(fmt.Errorf("plain"), CodeAlreadyExists))
}
