// Copyright © 2024 The gatbcore Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package kmer implements the k-mer model: canonicalization, hashing and
// minimizer computation of fixed-size DNA k-mers (specification §4.1).
//
// Two concrete widths are supported, selected once at startup by k, per
// the "small closed set of concrete widths" guidance in spec.md §9:
// Kmer64 for k<=32 and Kmer128 for 32<k<=64.
package kmer

import "fmt"

// MaxK32 is the largest k-mer size representable in a single uint64.
const MaxK32 = 32

// MaxK64 is the largest k-mer size representable in a Kmer128 ([2]uint64).
const MaxK64 = 64

// base codes: the bijection fixed for this implementation. Complement
// pairs {A,T} and {C,G} must XOR to the same constant; we use 0<->2 and
// 1<->3, so complement(x) = x ^ 2.
const (
	baseA = 0
	baseC = 1
	baseT = 2
	baseG = 3
)

var encodeTable [256]int8

func init() {
	for i := range encodeTable {
		encodeTable[i] = -1
	}
	encodeTable['A'], encodeTable['a'] = baseA, baseA
	encodeTable['C'], encodeTable['c'] = baseC, baseC
	encodeTable['T'], encodeTable['t'] = baseT, baseT
	encodeTable['G'], encodeTable['g'] = baseG, baseG
}

var decodeTable = [4]byte{'A', 'C', 'T', 'G'}

// EncodeBase maps a nucleotide byte to its 2-bit code. ok is false for 'N'
// or any other non-ACGT byte.
func EncodeBase(b byte) (code uint8, ok bool) {
	v := encodeTable[b]
	if v < 0 {
		return 0, false
	}
	return uint8(v), true
}

// DecodeBase maps a 2-bit code back to its nucleotide byte.
func DecodeBase(code uint8) byte {
	return decodeTable[code&3]
}

// complementCode returns the 2-bit complement of a base code under the
// fixed bijection (A<->T, C<->G).
func complementCode(code uint8) uint8 {
	return code ^ 2
}

// Kmer64 is a k-mer of at most 32 bases packed 2 bits per base into a
// uint64, most significant base first.
type Kmer64 uint64

// Encode64 packs the first k bases of s into a Kmer64. It returns ok=false
// if s is shorter than k or contains a non-ACGT byte.
func Encode64(s []byte, k int) (Kmer64, bool) {
	if k <= 0 || k > MaxK32 || len(s) < k {
		return 0, false
	}
	var v uint64
	for i := 0; i < k; i++ {
		code, ok := EncodeBase(s[i])
		if !ok {
			return 0, false
		}
		v = (v << 2) | uint64(code)
	}
	return Kmer64(v), true
}

// String64 decodes a Kmer64 of width k back to its nucleotide string.
func (km Kmer64) String64(k int) string {
	buf := make([]byte, k)
	v := uint64(km)
	for i := k - 1; i >= 0; i-- {
		buf[i] = DecodeBase(uint8(v & 3))
		v >>= 2
	}
	return string(buf)
}

// ReverseComplement64 computes the reverse complement of a k-wide Kmer64.
func ReverseComplement64(km Kmer64, k int) Kmer64 {
	v := uint64(km)
	var rc uint64
	for i := 0; i < k; i++ {
		code := uint8(v & 3)
		v >>= 2
		rc = (rc << 2) | uint64(complementCode(code))
	}
	return Kmer64(rc)
}

// Canonical64 returns the canonical form of km: the minimum of km and its
// reverse complement under unsigned integer order, per spec.md §4.1.
func Canonical64(km Kmer64, k int) Kmer64 {
	rc := ReverseComplement64(km, k)
	if rc < km {
		return rc
	}
	return km
}

// Kmer128 is a k-mer of 33 to 64 bases, packed into two uint64 words: Hi
// holds the oldest (leftmost) bases, Lo the most recent ones, mirroring
// the two-word big-number idiom of GATB's tools::math::Integer.
type Kmer128 struct {
	Hi, Lo uint64
}

// loBases is the number of bases stored in Lo for a k-mer of width k
// (k - 32, clamped to [0,32]).
func loBases(k int) int {
	n := k - 32
	if n < 0 {
		n = 0
	}
	if n > 32 {
		n = 32
	}
	return n
}

// Encode128 packs the first k bases of s (33<=k<=64) into a Kmer128.
func Encode128(s []byte, k int) (Kmer128, bool) {
	if k <= MaxK32 || k > MaxK64 || len(s) < k {
		return Kmer128{}, false
	}
	hiLen := k - loBases(k)
	var hi, lo uint64
	for i := 0; i < hiLen; i++ {
		code, ok := EncodeBase(s[i])
		if !ok {
			return Kmer128{}, false
		}
		hi = (hi << 2) | uint64(code)
	}
	for i := hiLen; i < k; i++ {
		code, ok := EncodeBase(s[i])
		if !ok {
			return Kmer128{}, false
		}
		lo = (lo << 2) | uint64(code)
	}
	return Kmer128{Hi: hi, Lo: lo}, true
}

// Less reports whether a < b under unsigned lexicographic order (Hi first).
func (a Kmer128) Less(b Kmer128) bool {
	if a.Hi != b.Hi {
		return a.Hi < b.Hi
	}
	return a.Lo < b.Lo
}

// Equal reports value equality.
func (a Kmer128) Equal(b Kmer128) bool { return a.Hi == b.Hi && a.Lo == b.Lo }

// String128 decodes a Kmer128 of width k back to its nucleotide string.
func (km Kmer128) String128(k int) string {
	lo := loBases(k)
	hi := k - lo
	buf := make([]byte, k)
	v := km.Lo
	for i := k - 1; i >= hi; i-- {
		buf[i] = DecodeBase(uint8(v & 3))
		v >>= 2
	}
	v = km.Hi
	for i := hi - 1; i >= 0; i-- {
		buf[i] = DecodeBase(uint8(v & 3))
		v >>= 2
	}
	return string(buf)
}

// ReverseComplement128 computes the reverse complement of a k-wide Kmer128.
func ReverseComplement128(km Kmer128, k int) Kmer128 {
	lo := loBases(k)
	hi := k - lo
	var rcHi, rcLo uint64

	v := km.Lo
	for i := 0; i < lo; i++ {
		code := uint8(v & 3)
		v >>= 2
		if i < hi {
			rcHi = (rcHi << 2) | uint64(complementCode(code))
		} else {
			rcLo = (rcLo << 2) | uint64(complementCode(code))
		}
	}
	v = km.Hi
	for i := 0; i < hi; i++ {
		code := uint8(v & 3)
		v >>= 2
		total := lo + i
		if total < hi {
			rcHi = (rcHi << 2) | uint64(complementCode(code))
		} else {
			rcLo = (rcLo << 2) | uint64(complementCode(code))
		}
	}
	return Kmer128{Hi: rcHi, Lo: rcLo}
}

// Canonical128 returns the canonical form of km.
func Canonical128(km Kmer128, k int) Kmer128 {
	rc := ReverseComplement128(km, k)
	if rc.Less(km) {
		return rc
	}
	return km
}

// Width is a runtime-dispatched k-mer width tag, chosen once per Model.
type Width int

const (
	// Width64 packs k<=32 into a single uint64.
	Width64 Width = iota
	// Width128 packs 32<k<=64 into two uint64 words.
	Width128
)

// WidthFor selects the narrowest supported width for k.
func WidthFor(k int) (Width, error) {
	switch {
	case k <= 0:
		return 0, fmt.Errorf("kmer: k must be positive, got %d", k)
	case k <= MaxK32:
		return Width64, nil
	case k <= MaxK64:
		return Width128, nil
	default:
		return 0, fmt.Errorf("kmer: k=%d exceeds the maximum supported width of %d", k, MaxK64)
	}
}
