package session

import (
	"math"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultStatsWindow is the number of recent pairs SyncStats keeps.
const DefaultStatsWindow = 1000

// IntervalStats summarizes the time between consecutive frames of one stream.
type IntervalStats struct {
	Mean   time.Duration
	StdDev time.Duration
}

// SyncSummary describes how well paired frames line up in time.
type SyncSummary struct {
	Pairs int
	Depth IntervalStats
	Color IntervalStats
	// MeanSkew and MaxSkew are the mean and largest |depth - color| timestamp difference.
	MeanSkew time.Duration
	MaxSkew  time.Duration
	// P95Skew is the 95th percentile skew. It equals MaxSkew for windows too short to rank.
	P95Skew time.Duration
}

// SyncStats accumulates the timestamps of synchronized pairs over a sliding window.
type SyncStats struct {
	window int

	mu    sync.Mutex
	depth []float64
	color []float64
}

// NewSyncStats returns stats over the last window pairs.
func NewSyncStats(window int) *SyncStats {
	if window <= 0 {
		window = DefaultStatsWindow
	}
	return &SyncStats{window: window}
}

// Add records the device timestamps, in microseconds, of one pair.
func (s *SyncStats) Add(depthTimestamp, colorTimestamp uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.depth = append(s.depth, float64(depthTimestamp))
	s.color = append(s.color, float64(colorTimestamp))
	if over := len(s.depth) - s.window; over > 0 {
		s.depth = append(s.depth[:0], s.depth[over:]...)
		s.color = append(s.color[:0], s.color[over:]...)
	}
}

// Reset forgets every pair, for example after a seek.
func (s *SyncStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.depth = s.depth[:0]
	s.color = s.color[:0]
}

// Summary computes the statistics of the pairs in the window.
func (s *SyncStats) Summary() SyncSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := SyncSummary{Pairs: len(s.depth)}
	if summary.Pairs == 0 {
		return summary
	}
	summary.Depth = intervals(s.depth)
	summary.Color = intervals(s.color)

	skew := make([]float64, len(s.depth))
	floats.SubTo(skew, s.depth, s.color)
	for i, v := range skew {
		skew[i] = math.Abs(v)
	}
	summary.MeanSkew = micros(stat.Mean(skew, nil))
	summary.MaxSkew = micros(floats.Max(skew))
	summary.P95Skew = summary.MaxSkew
	if p95, err := stats.Percentile(skew, 95); err == nil {
		summary.P95Skew = micros(p95)
	}
	return summary
}

func intervals(timestamps []float64) IntervalStats {
	if len(timestamps) < 2 {
		return IntervalStats{}
	}
	diffs := make([]float64, len(timestamps)-1)
	floats.SubTo(diffs, timestamps[1:], timestamps[:len(timestamps)-1])
	if len(diffs) == 1 {
		return IntervalStats{Mean: micros(diffs[0])}
	}
	mean, std := stat.MeanStdDev(diffs, nil)
	return IntervalStats{Mean: micros(mean), StdDev: micros(std)}
}

func micros(v float64) time.Duration {
	return time.Duration(v * float64(time.Microsecond))
}
