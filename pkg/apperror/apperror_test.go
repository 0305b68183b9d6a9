package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	base := errors.New("boom")

	assert.Equal(t, "repo.service.save: boom", New(Persistence, "repo.service.save", base).Error())
	assert.Equal(t, "boom", (&Error{Err: base}).Error())
	assert.Equal(t, "registry.add: duplicate", Newf(AlreadyExists, "registry.add", "duplicate").Error())
	assert.Equal(t, "unknown error", (&Error{}).Error())
}

func TestIsKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(NotFound, "registry.remove", nil))

	assert.True(t, IsKind(err, NotFound))
	assert.False(t, IsKind(err, Internal))
	assert.Equal(t, NotFound, KindOf(err))
	assert.Equal(t, Internal, KindOf(errors.New("plain")))
}

func TestStackOnlyForInternal(t *testing.T) {
	assert.NotEmpty(t, New(Internal, "op", nil).Stack)
	assert.Empty(t, New(Configuration, "op", nil).Stack)
	assert.NotEmpty(t, New(Configuration, "op", nil).WithMessage("x").WithOp("y").Message)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, HTTPStatus(New(AlreadyExists, "op", nil)))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(New(Configuration, "op", nil)))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(New(NotFound, "op", nil)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}
