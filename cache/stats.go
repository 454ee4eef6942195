package cache

import "sync/atomic"

// Stats is a point-in-time snapshot of the best-effort counters named in
// spec.md §6 and exercised by the monotonicity law in spec.md §8.
type Stats struct {
	HitCount         int64
	MissCount        int64
	LoadSuccessCount int64
	LoadFailureCount int64
	TotalLoadNanos   int64
	EvictionCount    int64
	EvictionWeight   int64
}

// RequestCount is HitCount + MissCount.
func (s Stats) RequestCount() int64 { return s.HitCount + s.MissCount }

// HitRate is HitCount / RequestCount, or 1.0 when there have been no
// requests yet.
func (s Stats) HitRate() float64 {
	total := s.RequestCount()
	if total == 0 {
		return 1
	}
	return float64(s.HitCount) / float64(total)
}

// statCounters are the atomic counters a Cache updates when
// StatisticsEnabled is set; recording is a no-op otherwise.
type statCounters struct {
	enabled          bool
	hitCount         atomic.Int64
	missCount        atomic.Int64
	loadSuccessCount atomic.Int64
	loadFailureCount atomic.Int64
	totalLoadNanos   atomic.Int64
	evictionCount    atomic.Int64
	evictionWeight   atomic.Int64
}

func (s *statCounters) recordHit() {
	if s.enabled {
		s.hitCount.Add(1)
	}
}

func (s *statCounters) recordMiss() {
	if s.enabled {
		s.missCount.Add(1)
	}
}

func (s *statCounters) recordLoad(success bool, nanos int64) {
	if !s.enabled {
		return
	}
	if success {
		s.loadSuccessCount.Add(1)
	} else {
		s.loadFailureCount.Add(1)
	}
	s.totalLoadNanos.Add(nanos)
}

func (s *statCounters) recordEviction(weight int32) {
	if s.enabled {
		s.evictionCount.Add(1)
		s.evictionWeight.Add(int64(weight))
	}
}

func (s *statCounters) snapshot() Stats {
	return Stats{
		HitCount:         s.hitCount.Load(),
		MissCount:        s.missCount.Load(),
		LoadSuccessCount: s.loadSuccessCount.Load(),
		LoadFailureCount: s.loadFailureCount.Load(),
		TotalLoadNanos:   s.totalLoadNanos.Load(),
		EvictionCount:    s.evictionCount.Load(),
		EvictionWeight:   s.evictionWeight.Load(),
	}
}
