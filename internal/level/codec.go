// Copyright (C) 2022-2023, VigilantDoomer
//
// This file is part of VigilantBSP program.
//
// VigilantBSP is free software: you can redistribute it
// and/or modify it under the terms of GNU General Public License
// as published by the Free Software Foundation, either version 2 of
// the License, or (at your option) any later version.
//
// VigilantBSP is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with VigilantBSP.  If not, see <https://www.gnu.org/licenses/>.

// codec
package level

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var ErrBadMagic = errors.New("not a hardened level (bad magic)")

const LEVEL_MAGIC_SIG = uint32(0x50534248) // ASCII - 'HBSP'

const LEVEL_FORMAT_VERSION = uint32(1)

const diskNoIndex = uint32(0xFFFFFFFF)

// Leaf flag in encoded child references
const diskLeafMask = uint32(0x80000000)

type diskHeader struct {
	MagicSig    uint32
	Version     uint32
	NumVertexes uint32
	NumEditable uint32
	NumHEdges   uint32
	NumNodes    uint32
	NumLeafs    uint32
	NumSides    uint32
	Root        uint32
	NameLen     uint32
}

type diskHEdge struct {
	V1, V2  uint32
	Twin    uint32
	LineDef uint32
	Sector  uint32
	Side    uint32
	Next    uint32
	Prev    uint32
	Leaf    uint32
	Offset  float64
	Angle   uint32
	Length  float64
}

type diskNode struct {
	X, Y     float64
	DX, DY   float64
	RightBox [4]float64
	LeftBox  [4]float64
	Right    uint32
	Left     uint32
}

type diskLeaf struct {
	FirstHEdge uint32
	HEdgeCount uint32
	Sector     uint32
}

type diskSide struct {
	Left, Right uint32
}

func toDisk(idx int) uint32 {
	if idx < 0 {
		return diskNoIndex
	}
	return uint32(idx)
}

func fromDisk(v uint32) int {
	if v == diskNoIndex {
		return NoIndex
	}
	return int(v)
}

func refToDisk(ref ChildRef) uint32 {
	if ref.IsLeaf {
		return uint32(ref.Index) | diskLeafMask
	}
	return uint32(ref.Index)
}

func refFromDisk(v uint32) ChildRef {
	return ChildRef{
		IsLeaf: v&diskLeafMask != 0,
		Index:  int(v &^ diskLeafMask),
	}
}

func boxToDisk(b BBox) [4]float64 {
	return [4]float64{b.MinX, b.MinY, b.MaxX, b.MaxY}
}

func boxFromDisk(b [4]float64) BBox {
	return BBox{MinX: b[0], MinY: b[1], MaxX: b[2], MaxY: b[3]}
}

// MarshalBinary encodes level uncompressed, little endian
func (l *Level) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := l.writeTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (l *Level) writeTo(w io.Writer) error {
	hdr := diskHeader{
		MagicSig:    LEVEL_MAGIC_SIG,
		Version:     LEVEL_FORMAT_VERSION,
		NumVertexes: uint32(len(l.Vertexes)),
		NumEditable: uint32(l.NumEditableVertexes),
		NumHEdges:   uint32(len(l.HEdges)),
		NumNodes:    uint32(len(l.Nodes)),
		NumLeafs:    uint32(len(l.Leafs)),
		NumSides:    uint32(len(l.SideHEdges)),
		Root:        refToDisk(l.Root),
		NameLen:     uint32(len(l.Name)),
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	if _, err := io.WriteString(w, l.Name); err != nil {
		return err
	}

	// Vertex has fixed layout already, can go as is
	if err := binary.Write(w, binary.LittleEndian, l.Vertexes); err != nil {
		return err
	}

	hedges := make([]diskHEdge, len(l.HEdges))
	for i, h := range l.HEdges {
		hedges[i] = diskHEdge{
			V1:      toDisk(h.V1),
			V2:      toDisk(h.V2),
			Twin:    toDisk(h.Twin),
			LineDef: toDisk(h.LineDef),
			Sector:  toDisk(h.Sector),
			Side:    uint32(h.Side),
			Next:    toDisk(h.Next),
			Prev:    toDisk(h.Prev),
			Leaf:    toDisk(h.Leaf),
			Offset:  h.Offset,
			Angle:   h.Angle,
			Length:  h.Length,
		}
	}
	if err := binary.Write(w, binary.LittleEndian, hedges); err != nil {
		return err
	}

	nodes := make([]diskNode, len(l.Nodes))
	for i, n := range l.Nodes {
		nodes[i] = diskNode{
			X: n.X, Y: n.Y, DX: n.DX, DY: n.DY,
			RightBox: boxToDisk(n.RightBox),
			LeftBox:  boxToDisk(n.LeftBox),
			Right:    refToDisk(n.Right),
			Left:     refToDisk(n.Left),
		}
	}
	if err := binary.Write(w, binary.LittleEndian, nodes); err != nil {
		return err
	}

	leafs := make([]diskLeaf, len(l.Leafs))
	for i, lf := range l.Leafs {
		leafs[i] = diskLeaf{
			FirstHEdge: toDisk(lf.FirstHEdge),
			HEdgeCount: uint32(lf.HEdgeCount),
			Sector:     toDisk(lf.Sector),
		}
	}
	if err := binary.Write(w, binary.LittleEndian, leafs); err != nil {
		return err
	}

	sides := make([]diskSide, len(l.SideHEdges))
	for i, s := range l.SideHEdges {
		sides[i] = diskSide{Left: toDisk(s.Left), Right: toDisk(s.Right)}
	}
	return binary.Write(w, binary.LittleEndian, sides)
}

// UnmarshalBinary is the inverse of MarshalBinary
func (l *Level) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	var hdr diskHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("reading level header: %w", err)
	}
	if hdr.MagicSig != LEVEL_MAGIC_SIG {
		return ErrBadMagic
	}
	if hdr.Version != LEVEL_FORMAT_VERSION {
		return fmt.Errorf("unsupported level format version %d", hdr.Version)
	}
	// Guard allocations against garbage counts
	if int64(hdr.NameLen) > int64(r.Len()) {
		return fmt.Errorf("level name length %d exceeds data size", hdr.NameLen)
	}
	name := make([]byte, hdr.NameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return fmt.Errorf("reading level name: %w", err)
	}
	need := int64(hdr.NumVertexes)*int64(binary.Size(Vertex{})) +
		int64(hdr.NumHEdges)*int64(binary.Size(diskHEdge{})) +
		int64(hdr.NumNodes)*int64(binary.Size(diskNode{})) +
		int64(hdr.NumLeafs)*int64(binary.Size(diskLeaf{})) +
		int64(hdr.NumSides)*int64(binary.Size(diskSide{}))
	if need > int64(r.Len()) {
		return fmt.Errorf("level data truncated: need %d bytes, have %d", need, r.Len())
	}

	res := Level{
		Name:                string(name),
		NumEditableVertexes: int(hdr.NumEditable),
		Vertexes:            make([]Vertex, hdr.NumVertexes),
		HEdges:              make([]HEdge, hdr.NumHEdges),
		Nodes:               make([]Node, hdr.NumNodes),
		Leafs:               make([]Leaf, hdr.NumLeafs),
		SideHEdges:          make([]SideHEdges, hdr.NumSides),
		Root:                refFromDisk(hdr.Root),
	}
	if err := binary.Read(r, binary.LittleEndian, res.Vertexes); err != nil {
		return fmt.Errorf("reading vertexes: %w", err)
	}

	hedges := make([]diskHEdge, hdr.NumHEdges)
	if err := binary.Read(r, binary.LittleEndian, hedges); err != nil {
		return fmt.Errorf("reading half-edges: %w", err)
	}
	for i, h := range hedges {
		res.HEdges[i] = HEdge{
			V1:      fromDisk(h.V1),
			V2:      fromDisk(h.V2),
			Twin:    fromDisk(h.Twin),
			LineDef: fromDisk(h.LineDef),
			Sector:  fromDisk(h.Sector),
			Side:    int(h.Side),
			Next:    fromDisk(h.Next),
			Prev:    fromDisk(h.Prev),
			Leaf:    fromDisk(h.Leaf),
			Offset:  h.Offset,
			Angle:   h.Angle,
			Length:  h.Length,
		}
	}

	nodes := make([]diskNode, hdr.NumNodes)
	if err := binary.Read(r, binary.LittleEndian, nodes); err != nil {
		return fmt.Errorf("reading nodes: %w", err)
	}
	for i, n := range nodes {
		res.Nodes[i] = Node{
			X: n.X, Y: n.Y, DX: n.DX, DY: n.DY,
			RightBox: boxFromDisk(n.RightBox),
			LeftBox:  boxFromDisk(n.LeftBox),
			Right:    refFromDisk(n.Right),
			Left:     refFromDisk(n.Left),
		}
	}

	leafs := make([]diskLeaf, hdr.NumLeafs)
	if err := binary.Read(r, binary.LittleEndian, leafs); err != nil {
		return fmt.Errorf("reading leafs: %w", err)
	}
	for i, lf := range leafs {
		res.Leafs[i] = Leaf{
			FirstHEdge: fromDisk(lf.FirstHEdge),
			HEdgeCount: int(lf.HEdgeCount),
			Sector:     fromDisk(lf.Sector),
		}
	}

	sides := make([]diskSide, hdr.NumSides)
	if err := binary.Read(r, binary.LittleEndian, sides); err != nil {
		return fmt.Errorf("reading sides: %w", err)
	}
	for i, s := range sides {
		res.SideHEdges[i] = SideHEdges{Left: fromDisk(s.Left), Right: fromDisk(s.Right)}
	}

	if err := res.validate(); err != nil {
		return err
	}
	*l = res
	return nil
}

// validate makes sure decoded indices won't send a reader out of bounds
func (l *Level) validate() error {
	inRange := func(idx, n int) bool {
		return idx == NoIndex || (idx >= 0 && idx < n)
	}
	for i, h := range l.HEdges {
		if !inRange(h.V1, len(l.Vertexes)) || !inRange(h.V2, len(l.Vertexes)) ||
			!inRange(h.Twin, len(l.HEdges)) || !inRange(h.Next, len(l.HEdges)) ||
			!inRange(h.Prev, len(l.HEdges)) || !inRange(h.Leaf, len(l.Leafs)) {
			return fmt.Errorf("half-edge %d references out of range", i)
		}
		if math.IsNaN(h.Length) {
			return fmt.Errorf("half-edge %d has invalid length", i)
		}
	}
	checkRef := func(ref ChildRef) bool {
		if ref.Index < 0 {
			return false
		}
		if ref.IsLeaf {
			return ref.Index < len(l.Leafs)
		}
		return ref.Index < len(l.Nodes)
	}
	for i, n := range l.Nodes {
		if !checkRef(n.Right) || !checkRef(n.Left) {
			return fmt.Errorf("node %d references out of range", i)
		}
	}
	if (len(l.Nodes) > 0 || len(l.Leafs) > 0) && !checkRef(l.Root) {
		return fmt.Errorf("root references out of range")
	}
	for i, lf := range l.Leafs {
		if lf.FirstHEdge == NoIndex || !inRange(lf.FirstHEdge, len(l.HEdges)) {
			return fmt.Errorf("leaf %d references out of range", i)
		}
		if lf.HEdgeCount < 1 || lf.HEdgeCount > len(l.HEdges) {
			return fmt.Errorf("leaf %d has bad half-edge count %d", i, lf.HEdgeCount)
		}
		// the ring must come back to its start in exactly HEdgeCount steps
		h := lf.FirstHEdge
		for step := 0; step < lf.HEdgeCount; step++ {
			h = l.HEdges[h].Next
			if h == NoIndex {
				return fmt.Errorf("leaf %d ring is broken", i)
			}
			if h == lf.FirstHEdge && step+1 < lf.HEdgeCount {
				return fmt.Errorf("leaf %d ring is shorter than %d", i, lf.HEdgeCount)
			}
		}
		if h != lf.FirstHEdge {
			return fmt.Errorf("leaf %d ring isn't closed", i)
		}
	}
	return nil
}
