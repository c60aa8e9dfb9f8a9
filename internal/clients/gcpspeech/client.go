// Package gcpspeech transcribes short audio clips with Google Cloud Speech-to-Text.
package gcpspeech

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
)

const providerName = "gcp"

// Config selects credentials and language.
type Config struct {
	CredentialsFile string
	LanguageCode    string
}

// Client wraps the Speech-to-Text gRPC client.
type Client struct {
	client   *speech.Client
	language string
}

// New dials Speech-to-Text. Without a credentials file, application default credentials are used.
func New(ctx context.Context, cfg Config) (*Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	language := cfg.LanguageCode
	if language == "" {
		language = "es-ES"
	}
	return &Client{client: c, language: language}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// Transcribe runs synchronous recognition and joins the top alternative of every result.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   inferEncoding(mimeType),
			LanguageCode:               c.language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}},
	}

	resp, err := c.client.Recognize(ctx, req)
	if err != nil {
		return "", fmt.Errorf("speech recognize: %w", err)
	}
	return joinTranscripts(resp), nil
}

// Close releases the gRPC connection.
func (c *Client) Close() error {
	return c.client.Close()
}

func joinTranscripts(resp *speechpb.RecognizeResponse) string {
	var parts []string
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func inferEncoding(mimeType string) speechpb.RecognitionConfig_AudioEncoding {
	m := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.Contains(m, "wav"):
		return speechpb.RecognitionConfig_LINEAR16
	case strings.Contains(m, "flac"):
		return speechpb.RecognitionConfig_FLAC
	case strings.Contains(m, "mp3"), strings.Contains(m, "mpeg"):
		return speechpb.RecognitionConfig_MP3
	case strings.Contains(m, "ogg"):
		return speechpb.RecognitionConfig_OGG_OPUS
	case strings.Contains(m, "webm"):
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}
