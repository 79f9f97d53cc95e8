package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_PreservesSentinel(t *testing.T) {
	w := NewWrapper("bot", "pagination")
	err := w.Wrap(fmt.Errorf("page 3: %w", ErrStaleCallback), "Данные устарели")

	assert.True(t, stderrors.Is(err, ErrStaleCallback))
	assert.Equal(t, "Данные устарели", UserMessage(err, "fallback"))
	assert.Contains(t, err.Error(), "[bot:pagination]")
}

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, NewWrapper("m", "op").Wrap(nil, "msg"))
}

func TestUserMessage_Fallback(t *testing.T) {
	assert.Equal(t, "fallback", UserMessage(ErrNotFound, "fallback"))
	assert.Equal(t, "fallback", UserMessage(nil, "fallback"))

	nested := fmt.Errorf("outer: %w", NewWrapper("m", "op").Wrap(ErrMalformedQuiz, "inner"))
	assert.Equal(t, "inner", UserMessage(nested, "fallback"))
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("challenge_id", "unknown")
	assert.Equal(t, "validation failed on challenge_id: unknown", err.Error())
}
