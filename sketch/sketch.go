// Package sketch implements a count-min frequency sketch with 4-bit
// saturating counters and periodic aging, the admission-frequency estimator
// behind TinyLFU. It operates on pre-computed 64-bit key hashes so that it
// stays free of any generic key type.
//
// A Sketch is not safe for concurrent use; callers are expected to serialize
// access to it under their own lock (the maintenance coordinator's drain
// lock, in this module).
package sketch

// seeds mix a key's hash into four independent lanes. Each lane selects one
// of the word's four 16-bit quadrants and, within that quadrant, one of four
// 4-bit counters.
var seeds = [4]uint64{
	0xc3a5c85c97cb3127,
	0xb492b66fbe98f273,
	0x9ae16a3b2f90404f,
	0xcbf29ce484222325,
}

// resetMask clears the top bit of every 4-bit counter in a word. Combined
// with a single right shift of the whole word, it halves every counter
// independently (the bit that would otherwise bleed in from a neighboring
// counter's low bit lands exactly on the bit this mask clears).
const resetMask = 0x7777777777777777

// Sketch is a fixed-size, 4-bit-counter count-min sketch.
type Sketch struct {
	table      []uint64
	tableMask  uint64
	additions  int64
	sampleSize int64
}

// New builds a Sketch sized for maximumSize distinct hot keys. Table length
// is the next power of two >= maximumSize (minimum 8 words); the sketch
// halves all counters once every 10*maximumSize increments.
func New(maximumSize int) *Sketch {
	if maximumSize < 1 {
		maximumSize = 1
	}
	tableSize := nextPow2(uint64(maximumSize))
	if tableSize < 8 {
		tableSize = 8
	}
	sample := 10 * int64(maximumSize)
	if sample < 10 {
		sample = 10
	}
	return &Sketch{
		table:      make([]uint64, tableSize),
		tableMask:  tableSize - 1,
		sampleSize: sample,
	}
}

// Increment adds 1 to each of the four counters indexed by hash, saturating
// at 15. Every sampleSize increments, every counter is halved.
func (s *Sketch) Increment(hash uint64) {
	words, shifts := s.indices(hash)
	added := false
	for lane := 0; lane < 4; lane++ {
		mask := uint64(0xF) << shifts[lane]
		if s.table[words[lane]]&mask != mask {
			s.table[words[lane]] += 1 << shifts[lane]
			added = true
		}
	}
	if added {
		s.additions++
		if s.additions >= s.sampleSize {
			s.reset()
		}
	}
}

// Frequency returns the minimum of the four counters for hash, in [0,15].
func (s *Sketch) Frequency(hash uint64) uint8 {
	words, shifts := s.indices(hash)
	min := uint8(0xF)
	for lane := 0; lane < 4; lane++ {
		c := uint8((s.table[words[lane]] >> shifts[lane]) & 0xF)
		if c < min {
			min = c
		}
	}
	return min
}

// Additions reports increments seen since the last halving. Exposed for
// the testable invariant that it stays within [0, 10*maximumSize).
func (s *Sketch) Additions() int64 { return s.additions }

func (s *Sketch) reset() {
	for i := range s.table {
		s.table[i] = (s.table[i] >> 1) & resetMask
	}
	s.additions = 0
}

func (s *Sketch) indices(hash uint64) (words [4]uint64, shifts [4]uint) {
	for lane := 0; lane < 4; lane++ {
		h := mix(hash, seeds[lane])
		words[lane] = h & s.tableMask
		quadrant := uint(lane)
		sub := uint((h >> 32) & 3)
		shifts[lane] = quadrant*16 + sub*4
	}
	return
}

// mix is a 64-bit avalanche finalizer (splitmix64-style) used to spread a
// key hash combined with a lane seed across the full 64-bit range.
func mix(h, seed uint64) uint64 {
	h ^= seed
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

func nextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	x++
	if x == 0 {
		return 1 << 63
	}
	return x
}
