package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunErrorUnwrapsToCause(t *testing.T) {
	cause := errors.New("disk full")
	err := newRunError(7, cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "chunk 7")
}
