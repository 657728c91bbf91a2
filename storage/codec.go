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

package storage

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/gatb-go/gatbcore/kmer"
)

// readFull is the shared little read-exact-n-bytes helper every codec
// below uses, the same "fixed-size record" idiom
// lexicmap/kv/kv-data.go's binary.BigEndian-based header/record layout
// follows, adapted here to little-endian stdlib encoding/binary calls.
func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}

// Uint32Codec encodes a bare uint32; Float32Codec writes its bit pattern
// through it.
type Uint32Codec struct{}

func (Uint32Codec) Encode(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func (Uint32Codec) Decode(r io.Reader) (uint32, error) {
	var buf [4]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// Uint64Codec encodes a bare uint64.
type Uint64Codec struct{}

func (Uint64Codec) Encode(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func (Uint64Codec) Decode(r io.Reader) (uint64, error) {
	var buf [8]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// Int64Codec encodes a bare int64 as the uint64 with the same bits. dsk
// records its cutoff and nbsolidsforcutoff as group properties, not
// through this codec.
type Int64Codec struct{}

func (Int64Codec) Encode(w io.Writer, v int64) error {
	return Uint64Codec{}.Encode(w, uint64(v))
}

func (Int64Codec) Decode(r io.Reader) (int64, error) {
	v, err := Uint64Codec{}.Decode(r)
	return int64(v), err
}

// Float32Codec encodes a bare float32, used for unitig mean_abundance.
type Float32Codec struct{}

func (Float32Codec) Encode(w io.Writer, v float32) error {
	return Uint32Codec{}.Encode(w, math.Float32bits(v))
}

func (Float32Codec) Decode(r io.Reader) (float32, error) {
	bits, err := Uint32Codec{}.Decode(r)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// Count is the (kmer, count) pair persisted to dsk/solid (spec.md §6).
type Count struct {
	Kmer  kmer.Value
	Count uint32
}

// CountCodec encodes Count as Hi(8) Lo(8) Count(4), canonical k-mer first.
type CountCodec struct{}

func (CountCodec) Encode(w io.Writer, v Count) error {
	var buf [20]byte
	binary.LittleEndian.PutUint64(buf[0:8], v.Kmer.Hi)
	binary.LittleEndian.PutUint64(buf[8:16], v.Kmer.Lo)
	binary.LittleEndian.PutUint32(buf[16:20], v.Count)
	_, err := w.Write(buf[:])
	return err
}

func (CountCodec) Decode(r io.Reader) (Count, error) {
	var buf [20]byte
	if err := readFull(r, buf[:]); err != nil {
		return Count{}, err
	}
	return Count{
		Kmer: kmer.Value{
			Hi: binary.LittleEndian.Uint64(buf[0:8]),
			Lo: binary.LittleEndian.Uint64(buf[8:16]),
		},
		Count: binary.LittleEndian.Uint32(buf[16:20]),
	}, nil
}

// HistogramEntry is one (count, multiplicity) pair persisted to
// dsk/histogram (spec.md §6).
type HistogramEntry struct {
	Count        uint32
	Multiplicity uint64
}

// HistogramEntryCodec encodes HistogramEntry as Count(4) Multiplicity(8).
type HistogramEntryCodec struct{}

func (HistogramEntryCodec) Encode(w io.Writer, v HistogramEntry) error {
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[0:4], v.Count)
	binary.LittleEndian.PutUint64(buf[4:12], v.Multiplicity)
	_, err := w.Write(buf[:])
	return err
}

func (HistogramEntryCodec) Decode(r io.Reader) (HistogramEntry, error) {
	var buf [12]byte
	if err := readFull(r, buf[:]); err != nil {
		return HistogramEntry{}, err
	}
	return HistogramEntry{
		Count:        binary.LittleEndian.Uint32(buf[0:4]),
		Multiplicity: binary.LittleEndian.Uint64(buf[4:12]),
	}, nil
}

// ByteCodec encodes a single byte, used for packed unitig sequence bytes.
type ByteCodec struct{}

func (ByteCodec) Encode(w io.Writer, v byte) error {
	_, err := w.Write([]byte{v})
	return err
}

func (ByteCodec) Decode(r io.Reader) (byte, error) {
	var buf [1]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
