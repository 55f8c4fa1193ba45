// Package transcribe converts voice-note audio into text using the OpenAI
// Whisper API.
package transcribe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// requestTimeout bounds a single download-plus-transcription round trip.
const requestTimeout = 180 * time.Second

// speechClient abstracts the OpenAI audio endpoint, enabling test mocks.
type speechClient interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// Whisper downloads an audio file and transcribes it with the Whisper model.
type Whisper struct {
	client     speechClient
	httpClient *http.Client
	authHeader string // bearer token for protected file URLs (Slack)
	language   string
}

// Opts holds parameters for creating a Whisper transcriber.
type Opts struct {
	APIKey     string // OpenAI API key
	AuthHeader string // optional Authorization header value for file downloads
	Language   string // ISO-639-1 hint; defaults to "pt"
	// For testing: inject mocks instead of real clients.
	Client     speechClient
	HTTPClient *http.Client
}

// New creates a Whisper transcriber.
func New(opts Opts) (*Whisper, error) {
	if opts.Client == nil && opts.APIKey == "" {
		return nil, fmt.Errorf("transcribe: api key is required")
	}
	client := opts.Client
	if client == nil {
		client = openai.NewClient(opts.APIKey)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	language := opts.Language
	if language == "" {
		language = "pt"
	}
	return &Whisper{
		client:     client,
		httpClient: httpClient,
		authHeader: opts.AuthHeader,
		language:   language,
	}, nil
}

// Transcribe downloads the audio at audioURL and returns the transcribed text.
func (w *Whisper) Transcribe(ctx context.Context, audioURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return "", fmt.Errorf("transcribe: build download request: %w", err)
	}
	if w.authHeader != "" {
		req.Header.Set("Authorization", w.authHeader)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: download audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcribe: download audio: unexpected status %d", resp.StatusCode)
	}

	tr, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   resp.Body,
		FilePath: fileNameFromURL(audioURL),
		Language: w.language,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: whisper: %w", err)
	}

	text := strings.TrimSpace(tr.Text)
	if text == "" {
		return "", fmt.Errorf("transcribe: empty transcription")
	}
	return text, nil
}

// fileNameFromURL extracts a filename for the multipart upload. Whisper uses
// the extension to sniff the container format.
func fileNameFromURL(audioURL string) string {
	u, err := url.Parse(audioURL)
	if err != nil || path.Base(u.Path) == "." || path.Base(u.Path) == "/" {
		return "audio.ogg"
	}
	return path.Base(u.Path)
}
