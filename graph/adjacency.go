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

package graph

// Descriptor is one neighbor edge endpoint: which unitig, which
// extremity of it overlaps, and the relative strand to read it in, per
// spec.md §4.6 ("(neighbor unitig id, which end of the neighbor
// overlaps, relative strand)").
type Descriptor struct {
	Unitig    int
	Extremity Extremity
	Strand    Strand
}

// adjacencyKey addresses one of a unitig's two extremities.
type adjacencyKey struct {
	unitig    int
	extremity Extremity
}

// Flat is the prefix-sum adjacency representation: one contiguous
// descriptor slice with a per-extremity offset range, per spec.md
// §4.6's "flat vector with a prefix-sum offset array" option.
type Flat struct {
	offsets map[adjacencyKey][2]int // [start,end) into descs
	descs   []Descriptor
}

// NewFlat builds an empty flat adjacency list.
func NewFlat() *Flat {
	return &Flat{offsets: make(map[adjacencyKey][2]int)}
}

// Set replaces the full neighbor list at (unitig, extremity).
func (f *Flat) Set(unitig int, ext Extremity, neighbors []Descriptor) {
	start := len(f.descs)
	f.descs = append(f.descs, neighbors...)
	f.offsets[adjacencyKey{unitig, ext}] = [2]int{start, len(f.descs)}
}

// Neighbors returns the descriptor list at (unitig, extremity).
func (f *Flat) Neighbors(unitig int, ext Extremity) []Descriptor {
	r, ok := f.offsets[adjacencyKey{unitig, ext}]
	if !ok {
		return nil
	}
	return f.descs[r[0]:r[1]]
}

// Degree returns len(Neighbors(unitig, ext)).
func (f *Flat) Degree(unitig int, ext Extremity) int {
	return len(f.Neighbors(unitig, ext))
}

// Compressed is the delta+variable-byte adjacency representation,
// "functionally indistinguishable" from Flat per spec.md §4.6. Each
// extremity's neighbor list is encoded as a run of variable-length
// records using the control-byte scheme LexicMap's
// lexicmap/cmd/util/varint-GB.go uses for its k-mer-location postings:
// a control byte packs the byte-length of the delta-encoded unitig id
// and the 2-bit (extremity<<1|strand) tag, followed by that many
// payload bytes.
type Compressed struct {
	offsets map[adjacencyKey][2]int // [start,end) into buf, in bytes
	recPos  map[adjacencyKey][]int  // byte offset of each record's start
	buf     []byte
}

// NewCompressed builds an empty compressed adjacency list.
func NewCompressed() *Compressed {
	return &Compressed{offsets: make(map[adjacencyKey][2]int), recPos: make(map[adjacencyKey][]int)}
}

func byteLenUint64(v uint64) int {
	n := 1
	for v >= 1<<8 {
		v >>= 8
		n++
	}
	return n
}

// encodeDescriptor appends one descriptor's control byte + payload to buf.
// The unitig id is stored as a zig-zag delta from prevUnitig (0 for the
// first record), the same "delta+variable-byte" scheme spec.md §4.6 names.
func encodeDescriptor(buf []byte, prevUnitig int, d Descriptor) []byte {
	delta := int64(d.Unitig) - int64(prevUnitig)
	zz := zigzagEncode(delta)
	blen := byteLenUint64(zz)
	tag := byte(d.Extremity)<<1 | b2u(d.Strand)
	// one control byte carries the delta's byte length and the 2-bit
	// tag, mirroring PutUint64s' packing of two fields into one byte.
	ctrl := byte(blen-1)<<2 | tag
	buf = append(buf, ctrl)
	for i := blen - 1; i >= 0; i-- {
		buf = append(buf, byte(zz>>(8*uint(i))))
	}
	return buf
}

func decodeDescriptor(buf []byte, pos int, prevUnitig int) (Descriptor, int) {
	ctrl := buf[pos]
	pos++
	blen := int(ctrl>>2) + 1
	tag := ctrl & 0x3
	var zz uint64
	for i := 0; i < blen; i++ {
		zz = (zz << 8) | uint64(buf[pos])
		pos++
	}
	delta := zigzagDecode(zz)
	unitig := int(int64(prevUnitig) + delta)
	return Descriptor{
		Unitig:    unitig,
		Extremity: Extremity(tag >> 1),
		Strand:    Strand(tag&1 == 1),
	}, pos
}

func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

func b2u(b Strand) byte {
	if b {
		return 1
	}
	return 0
}

// Set replaces the full neighbor list at (unitig, extremity).
func (c *Compressed) Set(unitig int, ext Extremity, neighbors []Descriptor) {
	start := len(c.buf)
	var positions []int
	prev := 0
	for _, d := range neighbors {
		positions = append(positions, len(c.buf))
		c.buf = encodeDescriptor(c.buf, prev, d)
		prev = d.Unitig
	}
	key := adjacencyKey{unitig, ext}
	c.offsets[key] = [2]int{start, len(c.buf)}
	c.recPos[key] = positions
}

// Neighbors decodes and returns the descriptor list at (unitig, extremity).
func (c *Compressed) Neighbors(unitig int, ext Extremity) []Descriptor {
	key := adjacencyKey{unitig, ext}
	positions, ok := c.recPos[key]
	if !ok {
		return nil
	}
	out := make([]Descriptor, 0, len(positions))
	prev := 0
	for _, pos := range positions {
		d, _ := decodeDescriptor(c.buf, pos, prev)
		out = append(out, d)
		prev = d.Unitig
	}
	return out
}

// Degree returns len(Neighbors(unitig, ext)).
func (c *Compressed) Degree(unitig int, ext Extremity) int {
	positions := c.recPos[adjacencyKey{unitig, ext}]
	return len(positions)
}

// Adjacency is the interface both representations satisfy; spec.md §4.6
// requires them to be "functionally indistinguishable."
type Adjacency interface {
	Set(unitig int, ext Extremity, neighbors []Descriptor)
	Neighbors(unitig int, ext Extremity) []Descriptor
	Degree(unitig int, ext Extremity) int
}

var (
	_ Adjacency = (*Flat)(nil)
	_ Adjacency = (*Compressed)(nil)
)
