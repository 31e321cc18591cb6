// Package bloom provides the probabilistic membership filters carried in
// partition column statistics. A filter guarantees no false negatives: if a
// value was added, MayContain always returns true, so a negative answer
// proves a partition cannot hold the value.
package bloom

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spaolacci/murmur3"
)

// Filter is a fixed-size bloom filter over byte strings. Filters are built
// once during partition encoding and are read-only afterwards, so no
// locking is needed.
type Filter struct {
	bits      []uint64
	numBits   uint64
	numHashes uint64
	count     uint64
}

// New creates a filter with the given geometry.
func New(numBits, numHashes int) *Filter {
	if numBits <= 0 {
		numBits = 1024
	}
	if numHashes <= 0 {
		numHashes = 7
	}

	// Round up to a whole number of 64-bit words.
	numWords := (numBits + 63) / 64

	return &Filter{
		bits:      make([]uint64, numWords),
		numBits:   uint64(numWords * 64),
		numHashes: uint64(numHashes),
	}
}

// NewWithEstimates creates a filter sized for the expected number of items
// and target false positive rate, using the standard optimal formulas
// m = -n ln(p) / ln(2)^2 and k = (m/n) ln(2).
func NewWithEstimates(expectedItems int, targetFPR float64) *Filter {
	if expectedItems <= 0 {
		expectedItems = 1000
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = 0.01
	}

	n := float64(expectedItems)
	m := -n * math.Log(targetFPR) / (math.Ln2 * math.Ln2)
	k := (m / n) * math.Ln2

	numBits := int(math.Ceil(m))
	if numBits < 64 {
		numBits = 64
	}
	numHashes := int(math.Ceil(k))
	if numHashes < 1 {
		numHashes = 1
	}

	return New(numBits, numHashes)
}

// Add adds a value to the filter.
func (f *Filter) Add(item []byte) {
	h1, h2 := hash128(item)
	for i := uint64(0); i < f.numHashes; i++ {
		// Double hashing: h(i) = h1 + i*h2
		pos := (h1 + i*h2) % f.numBits
		f.bits[pos/64] |= 1 << (pos % 64)
	}
	f.count++
}

// MayContain tests whether a value might be in the filter. A false result
// is definitive; a true result may be a false positive.
func (f *Filter) MayContain(item []byte) bool {
	h1, h2 := hash128(item)
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// NumBits returns the filter size in bits.
func (f *Filter) NumBits() int { return int(f.numBits) }

// NumHashes returns the number of hash functions.
func (f *Filter) NumHashes() int { return int(f.numHashes) }

// Count returns the number of items added.
func (f *Filter) Count() uint64 { return f.count }

func hash128(item []byte) (uint64, uint64) {
	h := murmur3.New128()
	h.Write(item)
	return h.Sum128()
}

// EncodeBase64 serializes the filter for embedding in partition statistics.
// Layout: numBits, numHashes, count as little-endian uint64, then the bit
// array words.
func (f *Filter) EncodeBase64() string {
	buf := make([]byte, 24+len(f.bits)*8)
	binary.LittleEndian.PutUint64(buf[0:8], f.numBits)
	binary.LittleEndian.PutUint64(buf[8:16], f.numHashes)
	binary.LittleEndian.PutUint64(buf[16:24], f.count)
	for i, word := range f.bits {
		binary.LittleEndian.PutUint64(buf[24+i*8:], word)
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// DecodeBase64 reconstructs a filter serialized with EncodeBase64.
func DecodeBase64(encoded string) (*Filter, error) {
	buf, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("bloom: invalid base64 data: %w", err)
	}
	if len(buf) < 24 || (len(buf)-24)%8 != 0 {
		return nil, fmt.Errorf("bloom: serialized filter has invalid length %d", len(buf))
	}

	f := &Filter{
		numBits:   binary.LittleEndian.Uint64(buf[0:8]),
		numHashes: binary.LittleEndian.Uint64(buf[8:16]),
		count:     binary.LittleEndian.Uint64(buf[16:24]),
		bits:      make([]uint64, (len(buf)-24)/8),
	}
	if f.numBits != uint64(len(f.bits)*64) {
		return nil, fmt.Errorf("bloom: bit count %d does not match data length", f.numBits)
	}
	for i := range f.bits {
		f.bits[i] = binary.LittleEndian.Uint64(buf[24+i*8:])
	}
	return f, nil
}
