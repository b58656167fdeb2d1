// Package audio plays rendered resources through the system speaker.
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"

	"github.com/dgnsrekt/lectern/player"
)

// Player decodes and plays resource files via beep. Exactly one resource
// plays at a time; starting a new one replaces the old. Rate changes apply
// live through the resampler ratio, so the same rendered audio serves every
// rate.
type Player struct {
	sampleRate beep.SampleRate
	logger     *log.Logger

	mu        sync.Mutex
	stream    beep.StreamSeekCloser
	ctrl      *beep.Ctrl
	resampler *beep.Resampler
	baseRatio float64
	playing   bool
	paused    bool
}

// NewPlayer initializes the output device at the given sample rate.
func NewPlayer(sampleRate int, logger *log.Logger) (*Player, error) {
	if logger == nil {
		logger = log.Default()
	}
	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("initializing speaker: %w", err)
	}
	return &Player{
		sampleRate: sr,
		logger:     logger.WithPrefix("audio"),
	}, nil
}

// Play implements player.AudioPlayer. onDone fires once when the resource
// drains; a Stop or replacement discards it with the streamer.
func (p *Player) Play(res player.Resource, rate float64, onDone func()) error {
	f, err := os.Open(res.Path)
	if err != nil {
		return fmt.Errorf("opening resource: %w", err)
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch strings.ToLower(filepath.Ext(res.Path)) {
	case ".mp3":
		stream, format, err = mp3.Decode(f)
	case ".wav":
		stream, format, err = wav.Decode(f)
	default:
		f.Close()
		return fmt.Errorf("unsupported resource format %q", filepath.Ext(res.Path))
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("decoding resource: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.discardLocked()

	p.baseRatio = float64(format.SampleRate) / float64(p.sampleRate)
	p.resampler = beep.ResampleRatio(4, p.baseRatio*player.ClampRate(rate), stream)
	p.ctrl = &beep.Ctrl{Streamer: p.resampler}
	p.stream = stream
	p.playing = true
	p.paused = false

	done := beep.Callback(func() {
		// The callback runs on the speaker goroutine; hop off it before
		// taking locks.
		go func() {
			p.mu.Lock()
			p.playing = false
			p.mu.Unlock()
			if onDone != nil {
				onDone()
			}
		}()
	})
	speaker.Play(beep.Seq(p.ctrl, done))

	p.logger.Debug("playing", "book", res.BookID, "paragraph", res.Index, "rate", rate)
	return nil
}

// Pause implements player.AudioPlayer.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl == nil || p.paused {
		return nil
	}
	speaker.Lock()
	p.ctrl.Paused = true
	speaker.Unlock()
	p.paused = true
	return nil
}

// Resume implements player.AudioPlayer.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl == nil || !p.paused {
		return nil
	}
	speaker.Lock()
	p.ctrl.Paused = false
	speaker.Unlock()
	p.paused = false
	return nil
}

// Stop implements player.AudioPlayer. The pending onDone never fires.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.discardLocked()
	return nil
}

// discardLocked drops the queued streamer before it drains, so its
// completion callback is never reached.
func (p *Player) discardLocked() {
	if p.stream == nil {
		return
	}
	speaker.Clear()
	_ = p.stream.Close()
	p.stream = nil
	p.ctrl = nil
	p.resampler = nil
	p.playing = false
	p.paused = false
}

// SetRate implements player.AudioPlayer, retuning the live resampler.
func (p *Player) SetRate(rate float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resampler == nil {
		return nil
	}
	speaker.Lock()
	p.resampler.SetRatio(p.baseRatio * player.ClampRate(rate))
	speaker.Unlock()
	return nil
}

// IsPlaying implements player.AudioPlayer.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing && !p.paused
}

var _ player.AudioPlayer = (*Player)(nil)
