// Package stats accounts for seconds of playback.
package stats

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Recorder accumulates estimated playback seconds for the lifetime of the
// process and logs the running total at debug level.
type Recorder struct {
	mu      sync.Mutex
	seconds float64
	logger  *log.Logger
}

// NewRecorder creates a recorder.
func NewRecorder(logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{logger: logger.WithPrefix("stats")}
}

// RecordSeconds adds playback time. Negative values are ignored.
func (r *Recorder) RecordSeconds(seconds float64) {
	if seconds <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seconds += seconds
	r.logger.Debug("playback accounted", "seconds", seconds, "total", r.seconds)
}

// TotalSeconds returns the accumulated playback time.
func (r *Recorder) TotalSeconds() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seconds
}
