package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-bot/internal/common"
)

func TestValidateAcceptsWellFormedResponse(t *testing.T) {
	r := &Response{
		Answer:           "Привет! Как прошёл твой день?",
		Sympathy:         42,
		ReplySuggestions: []string{"Отлично!", " Так себе ", ""},
		PhotoPrompt:      "  young woman sitting at a bar, warm lighting  ",
	}

	require.NoError(t, r.Validate())
	// Пустые подсказки выброшены, остальные подчищены
	assert.Equal(t, []string{"Отлично!", "Так себе"}, r.ReplySuggestions)
	assert.Equal(t, "young woman sitting at a bar, warm lighting", r.PhotoPrompt)
	assert.True(t, r.HasPhoto())
}

func TestValidateRejectsEmptyAnswer(t *testing.T) {
	r := &Response{Answer: "   ", Sympathy: 10}
	assert.ErrorIs(t, r.Validate(), common.ErrInvalidAIResponse)
}

func TestValidateRejectsSympathyOutOfRange(t *testing.T) {
	for _, sympathy := range []int{-1, 101, 500} {
		r := &Response{Answer: "ok", Sympathy: sympathy}
		assert.ErrorIs(t, r.Validate(), common.ErrInvalidAIResponse, "sympathy=%d", sympathy)
	}

	// Граничные значения валидны
	for _, sympathy := range []int{0, 100} {
		r := &Response{Answer: "ok", Sympathy: sympathy}
		assert.NoError(t, r.Validate(), "sympathy=%d", sympathy)
	}
}

func TestValidateWithoutPhotoPrompt(t *testing.T) {
	r := &Response{Answer: "ok", Sympathy: 5}
	require.NoError(t, r.Validate())
	assert.False(t, r.HasPhoto())
}
