package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefinementsMatchInvalidState(t *testing.T) {
	err := fmt.Errorf("complete: %w", AlreadyCompleted("r-1"))

	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.True(t, errors.Is(err, ErrAlreadyCompleted))
	assert.False(t, errors.Is(err, ErrAlreadyCancelled))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestPlainInvalidStateDoesNotMatchRefinement(t *testing.T) {
	err := InvalidState("cannot complete a cancelled reservation")

	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.False(t, errors.Is(err, ErrAlreadyCompleted))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnavailable, KindOf(Unavailable("book %s has no copies left", "b-1")))
	assert.Equal(t, KindForbidden, KindOf(fmt.Errorf("wrapped: %w", Forbidden("nope"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestInternalKeepsCauseOutOfMessage(t *testing.T) {
	cause := errors.New("pq: relation does not exist")
	err := Internal("failed to load reservation", cause)

	assert.Equal(t, "failed to load reservation", err.Message)
	assert.ErrorIs(t, err, cause)
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:     http.StatusNotFound,
		KindForbidden:    http.StatusForbidden,
		KindUnavailable:  http.StatusUnprocessableEntity,
		KindInvalidState: http.StatusConflict,
		KindConflict:     http.StatusConflict,
		KindInvalid:      http.StatusBadRequest,
		KindInternal:     http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), kind)
	}
}
