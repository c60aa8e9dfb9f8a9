package gcpspeech

import (
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/stretchr/testify/assert"
)

func TestInferEncoding(t *testing.T) {
	cases := map[string]speechpb.RecognitionConfig_AudioEncoding{
		"audio/wav":              speechpb.RecognitionConfig_LINEAR16,
		"audio/flac":             speechpb.RecognitionConfig_FLAC,
		"audio/mpeg":             speechpb.RecognitionConfig_MP3,
		"audio/ogg; codecs=opus": speechpb.RecognitionConfig_OGG_OPUS,
		"audio/webm;codecs=opus": speechpb.RecognitionConfig_WEBM_OPUS,
		"audio/unknown":          speechpb.RecognitionConfig_ENCODING_UNSPECIFIED,
	}
	for mimeType, want := range cases {
		assert.Equal(t, want, inferEncoding(mimeType), mimeType)
	}
}

func TestJoinTranscripts(t *testing.T) {
	resp := &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " cuál es mi promedio "}}},
		{},
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "por favor"}}},
	}}
	assert.Equal(t, "cuál es mi promedio por favor", joinTranscripts(resp))
}
