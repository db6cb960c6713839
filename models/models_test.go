package models

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestColorOpposite(t *testing.T) {
	assert.Equal(t, ColorBlue.Opposite(), ColorGreen)
	assert.Equal(t, ColorGreen.Opposite(), ColorBlue)
}
