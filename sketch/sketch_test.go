package sketch

import "testing"

func TestSketch_IncrementSaturatesAt15(t *testing.T) {
	t.Parallel()
	s := New(64)
	const key = 0xdeadbeef
	for i := 0; i < 64; i++ {
		s.Increment(key)
	}
	if f := s.Frequency(key); f != 15 {
		t.Fatalf("frequency must saturate at 15, got %d", f)
	}
}

func TestSketch_FrequencyMonotoneUntilHalving(t *testing.T) {
	t.Parallel()
	s := New(1024)
	const key = 42
	prev := s.Frequency(key)
	for i := 0; i < 5; i++ {
		s.Increment(key)
		cur := s.Frequency(key)
		if cur < prev {
			t.Fatalf("frequency decreased without a halving: %d -> %d", prev, cur)
		}
		prev = cur
	}
}

func TestSketch_HalvingResetsAdditions(t *testing.T) {
	t.Parallel()
	s := New(4)
	for i := 0; i < int(s.sampleSize)+1; i++ {
		s.Increment(uint64(i))
	}
	if s.Additions() >= s.sampleSize {
		t.Fatalf("additions must fall below sampleSize after a halving, got %d (sample=%d)", s.Additions(), s.sampleSize)
	}
}

func TestSketch_DistinctKeysDontAlwaysCollide(t *testing.T) {
	t.Parallel()
	s := New(4096)
	s.Increment(1)
	if f := s.Frequency(999_999); f != 0 {
		t.Fatalf("unrelated key picked up unexpected frequency: %d", f)
	}
}

func TestSketch_CounterRangeInvariant(t *testing.T) {
	t.Parallel()
	s := New(256)
	for i := 0; i < 5000; i++ {
		s.Increment(uint64(i % 37))
	}
	for i := 0; i < 37; i++ {
		f := s.Frequency(uint64(i))
		if f > 15 {
			t.Fatalf("counter out of range: %d", f)
		}
	}
	if s.Additions() < 0 || s.Additions() >= s.sampleSize {
		t.Fatalf("additions out of [0, sampleSize) range: %d", s.Additions())
	}
}
