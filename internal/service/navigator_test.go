package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNavigator_Clamps(t *testing.T) {
	nav := NewNavigator(3)

	i, changed := nav.Previous()
	assert.Equal(t, 0, i)
	assert.False(t, changed)

	i, changed = nav.Next()
	assert.Equal(t, 1, i)
	assert.True(t, changed)

	nav.Next()
	i, changed = nav.Next()
	assert.Equal(t, 2, i)
	assert.False(t, changed)

	i, _ = nav.GoTo(99)
	assert.Equal(t, 2, i)

	i, changed = nav.GoTo(-4)
	assert.Equal(t, 0, i)
	assert.True(t, changed)
	assert.Equal(t, 0, nav.Current())
}

func TestNavigator_Progress(t *testing.T) {
	tests := []struct {
		count    int
		answered int
		want     float64
	}{
		{count: 4, answered: 0, want: 0},
		{count: 4, answered: 1, want: 25},
		{count: 3, answered: 3, want: 100},
		{count: 0, answered: 0, want: 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NewNavigator(tt.count).Progress(tt.answered), 1e-9)
	}
}
