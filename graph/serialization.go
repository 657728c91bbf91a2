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

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gatb-go/gatbcore/gatberr"
	"github.com/gatb-go/gatbcore/storage"
)

// PhaseState is a bitmask recording which pipeline phases have
// completed, persisted as the `dbgh5/state` property so a
// partially-built graph can be inspected, per spec.md §6.
type PhaseState uint64

const (
	PhaseInit PhaseState = 1 << iota
	PhaseConfiguration
	PhaseSortingCount
	PhaseMPHF
	PhaseBCALM2
)

// Has reports whether every bit in want is set in s.
func (s PhaseState) Has(want PhaseState) bool { return s&want == want }

// Set returns s with every bit in phases set.
func (s PhaseState) Set(phases PhaseState) PhaseState { return s | phases }

var (
	unitigBytesCodec   = storage.ByteCodec{}
	offsetCodec        = storage.Uint64Codec{}
	meanAbundanceCodec = storage.Float32Codec{}
	descriptorCodec    = descCodec{}
)

// descCodec encodes a Descriptor as Unitig(4) Extremity(1) Strand(1),
// used for the `incoming`/`outcoming` collections of spec.md §6.
type descCodec struct{}

func (descCodec) Encode(w io.Writer, d Descriptor) error {
	var buf [6]byte
	u := uint32(d.Unitig)
	buf[0] = byte(u)
	buf[1] = byte(u >> 8)
	buf[2] = byte(u >> 16)
	buf[3] = byte(u >> 24)
	buf[4] = byte(d.Extremity)
	buf[5] = b2u(d.Strand)
	_, err := w.Write(buf[:])
	return err
}

func (descCodec) Decode(r io.Reader) (Descriptor, error) {
	var buf [6]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Descriptor{}, err
	}
	u := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	return Descriptor{
		Unitig:    int(u),
		Extremity: Extremity(buf[4]),
		Strand:    Strand(buf[5] == 1),
	}, nil
}

// Save persists g to group dbgh5 (or an equivalent caller-chosen group),
// writing the collections and properties spec.md §6 names:
// `unitigs`, `unitigs_sizes`, `incoming`/`outcoming` (+`_map` prefix-sum
// arrays), `mean_abundance`, and the `state` bitmask property.
func Save(g *Graph, grp *storage.Group, st PhaseState) error {
	flat, ok := g.Adjacency.(*Flat)
	if !ok {
		return gatberr.New(gatberr.FormatError, "graph.Save", fmt.Errorf("adjacency representation must be Flat to persist"))
	}

	unitigsColl, err := storage.NewCollection[byte](grp, "unitigs", unitigBytesCodec)
	if err != nil {
		return err
	}
	if err := unitigsColl.InsertBatch(g.Unitigs.packed); err != nil {
		return err
	}
	if err := unitigsColl.Flush(); err != nil {
		return err
	}

	sizesColl, err := storage.NewCollection[uint64](grp, "unitigs_sizes", offsetCodec)
	if err != nil {
		return err
	}
	if err := sizesColl.InsertBatch(g.Unitigs.offsets); err != nil {
		return err
	}
	if err := sizesColl.Flush(); err != nil {
		return err
	}

	meanColl, err := storage.NewCollection[float32](grp, "mean_abundance", meanAbundanceCodec)
	if err != nil {
		return err
	}
	if err := meanColl.InsertBatch(g.Unitigs.meanAbundance); err != nil {
		return err
	}
	if err := meanColl.Flush(); err != nil {
		return err
	}

	if err := saveAdjacencySide(grp, "outcoming", flat, g.Unitigs.Len(), End); err != nil {
		return err
	}
	if err := saveAdjacencySide(grp, "incoming", flat, g.Unitigs.Len(), Begin); err != nil {
		return err
	}

	if err := grp.AddProperty("kmer_size", strconv.Itoa(g.K)); err != nil {
		return err
	}
	return grp.AddProperty("state", strconv.FormatUint(uint64(st), 10))
}

// saveAdjacencySide writes one direction's descriptors plus its
// prefix-sum `_map` offsets, spec.md §6's "incoming, outcoming (+ _map
// prefix-sum arrays)".
func saveAdjacencySide(grp *storage.Group, name string, flat *Flat, n int, ext Extremity) error {
	descColl, err := storage.NewCollection[Descriptor](grp, name, descriptorCodec)
	if err != nil {
		return err
	}
	mapColl, err := storage.NewCollection[uint64](grp, name+"_map", offsetCodec)
	if err != nil {
		return err
	}

	var offset uint64
	offsets := []uint64{0}
	for id := 0; id < n; id++ {
		neighbors := flat.Neighbors(id, ext)
		if err := descColl.InsertBatch(neighbors); err != nil {
			return err
		}
		offset += uint64(len(neighbors))
		offsets = append(offsets, offset)
	}
	if err := mapColl.InsertBatch(offsets); err != nil {
		return err
	}
	if err := descColl.Flush(); err != nil {
		return err
	}
	return mapColl.Flush()
}

// Load reconstructs a Graph previously written by Save.
func Load(grp *storage.Group, k int) (*Graph, PhaseState, error) {
	unitigsColl, err := storage.NewCollection[byte](grp, "unitigs", unitigBytesCodec)
	if err != nil {
		return nil, 0, err
	}
	packed, err := drain(unitigsColl)
	if err != nil {
		return nil, 0, err
	}

	sizesColl, err := storage.NewCollection[uint64](grp, "unitigs_sizes", offsetCodec)
	if err != nil {
		return nil, 0, err
	}
	offsets, err := drain(sizesColl)
	if err != nil {
		return nil, 0, err
	}

	meanColl, err := storage.NewCollection[float32](grp, "mean_abundance", meanAbundanceCodec)
	if err != nil {
		return nil, 0, err
	}
	means, err := drain(meanColl)
	if err != nil {
		return nil, 0, err
	}

	n := len(offsets) - 1
	u := &Unitigs{
		k:             k,
		packed:        packed,
		offsets:       offsets,
		meanAbundance: means,
		deleted:       make([]bool, n),
		traversed:     make([]bool, n),
	}
	rebuildStarts(u)

	flat := NewFlat()
	if err := loadAdjacencySide(grp, "outcoming", flat, n, End); err != nil {
		return nil, 0, err
	}
	if err := loadAdjacencySide(grp, "incoming", flat, n, Begin); err != nil {
		return nil, 0, err
	}

	var state PhaseState
	if v, ok := grp.GetProperty("state"); ok {
		parsed, perr := strconv.ParseUint(v, 10, 64)
		if perr != nil {
			return nil, 0, perr
		}
		state = PhaseState(parsed)
	}

	return NewGraph(k, u, flat), state, nil
}

func rebuildStarts(u *Unitigs) {
	pos := 0
	for i := 0; i < u.Len(); i++ {
		u.starts = append(u.starts, pos)
		n := u.Length(i)
		pos += n
		if pos%4 != 0 {
			pos += 4 - pos%4
		}
	}
}

func loadAdjacencySide(grp *storage.Group, name string, flat *Flat, n int, ext Extremity) error {
	descColl, err := storage.NewCollection[Descriptor](grp, name, descriptorCodec)
	if err != nil {
		return err
	}
	descs, err := drain(descColl)
	if err != nil {
		return err
	}
	mapColl, err := storage.NewCollection[uint64](grp, name+"_map", offsetCodec)
	if err != nil {
		return err
	}
	offsets, err := drain(mapColl)
	if err != nil {
		return err
	}
	for id := 0; id < n; id++ {
		flat.Set(id, ext, descs[offsets[id]:offsets[id+1]])
	}
	return nil
}

func drain[T any](coll *storage.Collection[T]) ([]T, error) {
	it, err := coll.Iterator()
	if err != nil {
		return nil, err
	}
	var out []T
	for {
		v, ok, err := it()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out, nil
}
