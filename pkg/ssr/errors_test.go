package ssr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderErrorIs(t *testing.T) {
	for kind, sentinel := range kindErrors {
		err := NewError(kind, "detail")
		assert.ErrorIs(t, err, sentinel, "kind %s", kind)
		for other, otherSentinel := range kindErrors {
			if other != kind {
				assert.NotErrorIs(t, err, otherSentinel)
			}
		}
	}
}

func TestRenderErrorMessage(t *testing.T) {
	assert.Equal(t, "render function threw: fail", NewError(KindInvocation, "fail").Error())
	assert.Equal(t, "engine is closed", NewError(KindClosed, "").Error())
	assert.Equal(t, "free text", NewError(ErrorKind("unknown"), "free text").Error())
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("request 1: %w", NewError(KindEvaluation, "boom"))
	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindEvaluation, kind)
	assert.True(t, errors.Is(wrapped, ErrorEvaluation))

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}
