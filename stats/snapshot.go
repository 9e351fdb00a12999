package stats

import "time"

// Snapshot is a point-in-time copy of a cache's statistics.
// Ratios and averages are derived on read and never stored.
type Snapshot struct {
	Hits        int64
	Misses      int64
	Puts        int64
	Removals    int64
	Expirations int64

	TotalGetTime    time.Duration
	TotalPutTime    time.Duration
	TotalRemoveTime time.Duration
}

// Gets is hits plus misses.
func (s Snapshot) Gets() int64 { return s.Hits + s.Misses }

// HitRatio is hits / (hits + misses), or 0 before the first read.
func (s Snapshot) HitRatio() float64 {
	if s.Gets() == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Gets())
}

// MissRatio is misses / (hits + misses), or 0 before the first read.
func (s Snapshot) MissRatio() float64 {
	if s.Gets() == 0 {
		return 0
	}
	return float64(s.Misses) / float64(s.Gets())
}

func (s Snapshot) AverageGetTime() time.Duration    { return average(s.TotalGetTime, s.Gets()) }
func (s Snapshot) AveragePutTime() time.Duration    { return average(s.TotalPutTime, s.Puts) }
func (s Snapshot) AverageRemoveTime() time.Duration { return average(s.TotalRemoveTime, s.Removals) }

func average(total time.Duration, n int64) time.Duration {
	if n == 0 {
		return 0
	}
	return total / time.Duration(n)
}
