package backend

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/lectern/player"
)

// Local drives the piper binary as an on-device utterance primitive. Each
// utterance is synthesized and played in one shot with the rate baked in
// through piper's length scale, so a rate change cannot affect audio
// already in flight; it applies from the next utterance. Lifecycle events
// for every utterance are emitted on Events.
type Local struct {
	cfg    player.LocalConfig
	binary string
	model  string
	out    player.AudioPlayer
	tmpDir string
	logger *log.Logger

	events chan player.UtteranceEvent

	mu      sync.Mutex
	rate    float64
	current *utterance
	closed  bool
}

// utterance tracks the single in-flight utterance.
type utterance struct {
	bookID    string
	index     int
	cancelled bool
}

// NewLocal creates a local backend, locating the piper binary and its voice
// model up front so selection can fail fast when the engine is unusable.
func NewLocal(cfg player.LocalConfig, out player.AudioPlayer, logger *log.Logger) (*Local, error) {
	if out == nil {
		return nil, fmt.Errorf("audio player is required")
	}
	if logger == nil {
		logger = log.Default()
	}

	binary, err := findPiper(cfg.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", player.ErrBackendUnavailable, err)
	}

	model, err := findModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", player.ErrBackendUnavailable, err)
	}

	tmpDir := filepath.Join(os.TempDir(), "lectern-piper")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}

	l := &Local{
		cfg:    cfg,
		binary: binary,
		model:  model,
		out:    out,
		tmpDir: tmpDir,
		logger: logger.WithPrefix("local"),
		events: make(chan player.UtteranceEvent, 32),
		rate:   1.0,
	}
	l.logger.Info("local engine ready", "binary", binary, "model", model)
	return l, nil
}

// findPiper checks the configured name, PATH and the usual install spots.
func findPiper(name string) (string, error) {
	if name == "" {
		name = "piper"
	}
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
		return "", fmt.Errorf("piper binary not found at %s", name)
	}
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	candidates := []string{
		filepath.Join("/usr/local/bin", name),
		filepath.Join("/usr/bin", name),
		filepath.Join(os.Getenv("HOME"), ".local", "bin", name),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("piper binary %q not found", name)
}

// findModel resolves the voice model file from the data dir.
func findModel(cfg player.LocalConfig) (string, error) {
	model := cfg.Model
	if model == "" {
		model = "en_US-lessac-medium"
	}
	if strings.HasSuffix(model, ".onnx") && filepath.IsAbs(model) {
		if _, err := os.Stat(model); err == nil {
			return model, nil
		}
		return "", fmt.Errorf("voice model not found at %s", model)
	}

	dirs := []string{cfg.DataDir}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local", "share", "piper"))
	}
	dirs = append(dirs, "/usr/share/piper", "/usr/local/share/piper")

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, model+".onnx")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("voice model %q not found", model)
}

// Name implements player.SynthesisBackend.
func (l *Local) Name() string { return "local" }

// IsRemote implements player.SynthesisBackend.
func (l *Local) IsRemote() bool { return false }

// Render implements player.SynthesisBackend; the local path does not
// produce cacheable resources.
func (l *Local) Render(context.Context, string) ([]byte, error) {
	return nil, player.ErrNotSupported
}

// Speak synthesizes one utterance and starts playing it. Any utterance
// still in flight is cancelled first. The request rate is baked into the
// synthesis; pass the rate current at call time.
func (l *Local) Speak(ctx context.Context, utt player.UtteranceRequest) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return player.ErrSessionClosed
	}
	if l.current != nil {
		l.cancelCurrentLocked()
	}
	rate := utt.Rate
	if rate <= 0 {
		rate = l.rate
	}
	l.mu.Unlock()

	path := filepath.Join(l.tmpDir, fmt.Sprintf("%s_%d.wav", utt.BookID, utt.Index))
	if err := l.synthesize(ctx, utt.Text, path, rate); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return player.ErrSessionClosed
	}

	u := &utterance{bookID: utt.BookID, index: utt.Index}
	l.current = u

	res := player.Resource{BookID: utt.BookID, Index: utt.Index, Path: path}
	onDone := func() {
		l.finish(u)
	}
	// Rate 1.0 at the playback layer: piper already baked the speed in.
	if err := l.out.Play(res, 1.0, onDone); err != nil {
		l.current = nil
		return fmt.Errorf("playing utterance: %w", err)
	}

	l.emit(player.UtteranceEvent{Type: player.UtteranceStarted, BookID: u.bookID, Index: u.index})
	return nil
}

// synthesize runs piper once, paragraph text on stdin, wav file out. Piper
// interprets length scale as the inverse of speed.
func (l *Local) synthesize(ctx context.Context, text, path string, rate float64) error {
	lengthScale := 1.0 / player.ClampRate(rate)

	args := []string{
		"--model", l.model,
		"--output_file", path,
		"--length-scale", strconv.FormatFloat(lengthScale, 'f', 3, 64),
	}
	if l.cfg.SpeakerID > 0 {
		args = append(args, "--speaker", strconv.Itoa(l.cfg.SpeakerID))
	}

	cmd := exec.CommandContext(ctx, l.binary, args...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("piper failed: %s: %w", msg, player.ErrRenderFailed)
	}

	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		return fmt.Errorf("piper produced no audio: %w", player.ErrRenderFailed)
	}
	return nil
}

// finish is the playback-drained callback for an utterance.
func (l *Local) finish(u *utterance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if u.cancelled || l.current != u {
		return
	}
	l.current = nil
	l.emit(player.UtteranceEvent{Type: player.UtteranceFinished, BookID: u.bookID, Index: u.index})
}

// PauseUtterance implements player.SynthesisBackend.
func (l *Local) PauseUtterance() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return nil
	}
	if err := l.out.Pause(); err != nil {
		return err
	}
	l.emit(player.UtteranceEvent{Type: player.UtterancePaused, BookID: l.current.bookID, Index: l.current.index})
	return nil
}

// ResumeUtterance implements player.SynthesisBackend.
func (l *Local) ResumeUtterance() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return nil
	}
	if err := l.out.Resume(); err != nil {
		return err
	}
	l.emit(player.UtteranceEvent{Type: player.UtteranceResumed, BookID: l.current.bookID, Index: l.current.index})
	return nil
}

// CancelUtterance implements player.SynthesisBackend.
func (l *Local) CancelUtterance() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelCurrentLocked()
	return nil
}

func (l *Local) cancelCurrentLocked() {
	if l.current == nil {
		return
	}
	u := l.current
	u.cancelled = true
	l.current = nil
	_ = l.out.Stop()
	l.emit(player.UtteranceEvent{Type: player.UtteranceCancelled, BookID: u.bookID, Index: u.index})
}

// SetRate stores the rate for subsequent utterances. The one in flight is
// unaffected; that gap is inherent to the primitive and surfaced as a
// no-op, not an error.
func (l *Local) SetRate(rate float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rate = player.ClampRate(rate)
	if l.current != nil {
		l.logger.Debug("rate change applies from next utterance", "rate", l.rate)
	}
	return nil
}

// Events implements player.SynthesisBackend.
func (l *Local) Events() <-chan player.UtteranceEvent {
	return l.events
}

// emit delivers an event without blocking; the consumer loop may itself be
// inside a control call that holds this backend's lock.
func (l *Local) emit(ev player.UtteranceEvent) {
	select {
	case l.events <- ev:
	default:
		l.logger.Warn("event dropped", "type", ev.Type, "paragraph", ev.Index)
	}
}

// Close implements player.SynthesisBackend.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.cancelCurrentLocked()
	close(l.events)
	return os.RemoveAll(l.tmpDir)
}

var _ player.SynthesisBackend = (*Local)(nil)
