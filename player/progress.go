package player

import (
	"fmt"
	"math"
)

// CharsPerSecond is the assumed narration speed at 1.0x rate, used for
// elapsed/remaining estimates. True durations are unknown until audio is
// rendered, so time displays are an explicit heuristic, not measurement.
const CharsPerSecond = 15.0

// Progress returns the fraction of the document completed, in [0, 1].
func Progress(index, total int) float64 {
	if total <= 0 {
		return 0
	}
	if index < 0 {
		index = 0
	}
	if index > total {
		index = total
	}
	return float64(index) / float64(total)
}

// EstimateSeconds converts a character count into estimated narration
// seconds at the given rate.
func EstimateSeconds(chars int, rate float64) float64 {
	if chars <= 0 {
		return 0
	}
	if rate <= 0 {
		rate = 1.0
	}
	return float64(chars) / CharsPerSecond / rate
}

// charCount sums paragraph lengths over [from, to).
func charCount(paragraphs []string, from, to int) int {
	if from < 0 {
		from = 0
	}
	if to > len(paragraphs) {
		to = len(paragraphs)
	}
	n := 0
	for i := from; i < to; i++ {
		n += len([]rune(paragraphs[i]))
	}
	return n
}

// ElapsedSeconds estimates narration time for the paragraphs before index.
func ElapsedSeconds(paragraphs []string, index int, rate float64) float64 {
	return EstimateSeconds(charCount(paragraphs, 0, index), rate)
}

// RemainingSeconds estimates narration time from index to the end.
func RemainingSeconds(paragraphs []string, index int, rate float64) float64 {
	return EstimateSeconds(charCount(paragraphs, index, len(paragraphs)), rate)
}

// TotalSeconds estimates narration time for the whole document.
func TotalSeconds(paragraphs []string, rate float64) float64 {
	return EstimateSeconds(charCount(paragraphs, 0, len(paragraphs)), rate)
}

// FormatClock renders seconds as hours and minutes, e.g. "1h 12m" or "45m".
// Sub-minute values round up so a nearly-done book never shows "0m" with
// audio left.
func FormatClock(seconds float64) string {
	if seconds <= 0 {
		return "0m"
	}
	minutes := int(math.Ceil(seconds / 60))
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// FormatPercent renders a progress fraction as a whole percentage, e.g. "42%".
func FormatPercent(progress float64) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	return fmt.Sprintf("%d%%", int(math.Floor(progress*100)))
}
