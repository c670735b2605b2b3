package echoping

import "math"

// runStats accumulates round trip statistics for one ping run, O(1) per
// sample, Welford style running mean and variance. Lost replies update
// only the lost counter. All times are milliseconds.
type runStats struct {
	sent     uint32
	received uint32
	lost     uint32

	last   float64
	min    float64
	max    float64
	mean   float64
	varAcc float64
}

func (s *runStats) reset() {
	s.sent = 0
	s.received = 0
	s.lost = 0
	s.last = 0
	// sentinel, so min from a run with no replies reads as "no data"
	s.min = math.Inf(1)
	s.max = 0
	s.mean = 0
	s.varAcc = 0
}

func (s *runStats) addSample(ms float64) {
	s.received++
	s.last = ms

	if ms < s.min {
		s.min = ms
	}
	if ms > s.max {
		s.max = ms
	}

	oldMean := s.mean
	s.mean = (float64(s.received-1)*oldMean + ms) / float64(s.received)
	if s.received > 1 {
		s.varAcc += (ms - oldMean) * (ms - s.mean)
	}
}

func (s *runStats) addLoss() {
	s.lost++
	s.last = 0
}
