package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudioFilename(t *testing.T) {
	assert.Equal(t, "audio.wav", audioFilename("audio/wav"))
	assert.Equal(t, "audio.webm", audioFilename("audio/webm;codecs=opus"))
	assert.Equal(t, "audio.mp3", audioFilename("audio/mpeg"))
	assert.Equal(t, "audio.webm", audioFilename("garbage"))
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	c, err := New(Config{APIKey: "sk-test", Language: "es-ES"})
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())
	assert.Equal(t, defaultModel, c.model)
	assert.Equal(t, "es", c.language)
}
