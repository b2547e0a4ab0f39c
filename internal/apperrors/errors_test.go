package apperrors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("toggle: %w", NotFound("message not found"))

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, Is(err, KindNotFound))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
	assert.Equal(t, "message not found", PublicMessage(err))
}

func TestUntypedIsInternal(t *testing.T) {
	err := assert.AnError

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	assert.Equal(t, "internal server error", PublicMessage(err))
	assert.False(t, Is(nil, KindInternal))
}

func TestInternalHidesCause(t *testing.T) {
	err := Internal("save message", assert.AnError)

	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, "internal server error", PublicMessage(err))
	assert.Contains(t, err.Error(), "save message")
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(Unauthenticated("x")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(InvalidArgument("x")))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(Forbidden("x")))
}
