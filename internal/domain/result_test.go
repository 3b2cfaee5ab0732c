package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainResult(t *testing.T) {
	r := NewPlainResult("hello")
	assert.False(t, r.IsTagged())
	assert.Equal(t, "hello", r.Text())
	assert.Equal(t, "hello", r.UIProjection())
}

func TestTaggedResult(t *testing.T) {
	r := NewTaggedResult("true", "the data", map[string]any{"iteration": 1})
	assert.True(t, r.IsTagged())
	assert.Equal(t, "the data", r.Text())
	assert.Equal(t, "true", r.UIProjection(), "node_finish projects the signal alone for a tagged result")
	assert.Equal(t, 1, r.Extras["iteration"])
}
