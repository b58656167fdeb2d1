// Package backend provides the synthesis backend implementations and the
// configuration-driven selection between them.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/dgnsrekt/lectern/player"
)

// Remote renders paragraphs through the OpenAI speech API. Requests are
// pure text-in, mp3-out: rate is applied at the playback layer, so the
// rendered audio stays reusable across rate changes.
type Remote struct {
	client openai.Client
	cfg    player.RemoteConfig
	logger *log.Logger
}

// NewRemote creates a remote backend. The credential is required; selection
// logic upstream guarantees it is present.
func NewRemote(cfg player.RemoteConfig, logger *log.Logger) *Remote {
	if logger == nil {
		logger = log.Default()
	}
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)
	return &Remote{
		client: client,
		cfg:    cfg,
		logger: logger.WithPrefix("remote"),
	}
}

// Name implements player.SynthesisBackend.
func (r *Remote) Name() string { return "remote" }

// IsRemote implements player.SynthesisBackend.
func (r *Remote) IsRemote() bool { return true }

// Render converts text into mp3 bytes. Network, auth, quota and
// malformed-response failures all surface uniformly as a render failure.
func (r *Remote) Render(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	resp, err := r.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(r.cfg.Model),
		Voice:          openai.AudioSpeechNewParamsVoice(r.cfg.Voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, r.mapError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading speech response: %w", player.ErrRenderFailed)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty speech response: %w", player.ErrRenderFailed)
	}
	return data, nil
}

// Available probes the API with the configured credential.
func (r *Remote) Available(ctx context.Context) bool {
	_, err := r.client.Models.List(ctx)
	if err != nil {
		r.logger.Warn("availability probe failed", "error", err)
		return false
	}
	return true
}

func (r *Remote) mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("authentication rejected (status %d): %w", apiErr.StatusCode, player.ErrRenderFailed)
		case http.StatusTooManyRequests:
			return fmt.Errorf("quota exceeded: %w", player.ErrRenderFailed)
		default:
			return fmt.Errorf("speech request failed (status %d): %w", apiErr.StatusCode, player.ErrRenderFailed)
		}
	}
	return fmt.Errorf("speech request failed: %v: %w", err, player.ErrRenderFailed)
}

// Speak implements player.SynthesisBackend; the remote path plays cached
// resources, not utterances.
func (r *Remote) Speak(context.Context, player.UtteranceRequest) error {
	return player.ErrNotSupported
}

// PauseUtterance implements player.SynthesisBackend.
func (r *Remote) PauseUtterance() error { return player.ErrNotSupported }

// ResumeUtterance implements player.SynthesisBackend.
func (r *Remote) ResumeUtterance() error { return player.ErrNotSupported }

// CancelUtterance implements player.SynthesisBackend.
func (r *Remote) CancelUtterance() error { return player.ErrNotSupported }

// SetRate implements player.SynthesisBackend. Rate lives at the playback
// layer on this path.
func (r *Remote) SetRate(float64) error { return nil }

// Events implements player.SynthesisBackend. The remote path completes
// through the playback layer, so there is no event stream.
func (r *Remote) Events() <-chan player.UtteranceEvent { return nil }

// Close implements player.SynthesisBackend.
func (r *Remote) Close() error { return nil }

var _ player.SynthesisBackend = (*Remote)(nil)
