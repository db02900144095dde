// Package driver provides the host-side verification model that programs,
// runs, and checks the DMA engines.
package driver

import (
	"encoding/binary"
)

// SeedToData derives one 32-bit pattern word from a seed.
func SeedToData(seed uint32) uint32 {
	return seed*0x31415979 + 1
}

// PatternWords generates n pattern words, seeding each with its index.
func PatternWords(n int) []uint32 {
	words := make([]uint32, n)
	for i := range words {
		words[i] = SeedToData(uint32(i))
	}
	return words
}

// WordsToBytes encodes words little-endian.
func WordsToBytes(words []uint32) []byte {
	data := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	return data
}

// BytesToWords decodes little-endian words. The byte count must be a
// multiple of four.
func BytesToWords(data []byte) []uint32 {
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return words
}

// Check compares a result sequence against a reference sequence.
//
// The result is first aligned by discarding leading words until its first
// word matches the reference's first word; the number of discarded words is
// the shift. The error count is the number of mismatching words over the
// aligned overlap. A nonzero shift localizes off-by-N framing bugs.
func Check(ref, res []uint32) (shift, length, errors int) {
	if len(ref) == 0 || len(res) == 0 {
		return 0, 0, 0
	}

	for len(res) > 1 && res[0] != ref[0] {
		res = res[1:]
		shift++
	}

	length = len(ref)
	if len(res) < length {
		length = len(res)
	}

	for i := 0; i < length; i++ {
		if ref[i] != res[i] {
			errors++
		}
	}

	return shift, length, errors
}
