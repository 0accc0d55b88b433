package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-client/internal/model"
)

func TestFlagManager_ToggleTwiceRestores(t *testing.T) {
	flags := NewFlagManager(threeQuestionSession("s-1"))
	_, err := flags.Toggle("q3")
	require.NoError(t, err)
	before := flags.Flags()

	on, err := flags.Toggle("q2")
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, flags.IsFlagged("q2"))

	on, err = flags.Toggle("q2")
	require.NoError(t, err)
	assert.False(t, on)

	assert.Equal(t, before, flags.Flags())
}

func TestFlagManager_FlagsInQuestionOrder(t *testing.T) {
	flags := NewFlagManager(threeQuestionSession("s-1"))
	for _, id := range []string{"q3", "q1"} {
		_, err := flags.Toggle(id)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"q1", "q3"}, flags.Flags())
}

func TestFlagManager_UnknownQuestion(t *testing.T) {
	flags := NewFlagManager(threeQuestionSession("s-1"))
	_, err := flags.Toggle("q9")
	assert.True(t, errors.Is(err, model.ErrUnknownQuestion))
	assert.Empty(t, flags.Flags())
}
