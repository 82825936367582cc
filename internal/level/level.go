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

// Package level holds the hardened result of a nodes build: flat arrays that
// reference each other by index and never change after they are produced
package level

import "math"

// NoIndex marks an absent reference. On disk it is stored as 0xFFFFFFFF
const NoIndex = -1

type Vertex struct {
	X, Y float64
}

type BBox struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Either a node or a leaf, depending on IsLeaf
type ChildRef struct {
	IsLeaf bool
	Index  int
}

type HEdge struct {
	V1, V2  int
	Twin    int // NoIndex for one-sided walls
	LineDef int // NoIndex for a miniedge
	Sector  int
	Side    int // 0 front, 1 back
	Next    int // next half-edge in the leaf ring
	Prev    int
	Leaf    int
	Offset  float64 // distance from the linedef vertex on this side to V1
	Angle   uint32  // BAM
	Length  float64
}

type Node struct {
	X, Y     float64 // partition origin
	DX, DY   float64 // partition direction
	RightBox BBox
	LeftBox  BBox
	Right    ChildRef
	Left     ChildRef
}

type Leaf struct {
	FirstHEdge int
	HEdgeCount int
	Sector     int // NoIndex for an orphan leaf
}

// The leftmost and rightmost half-edge made of a sidedef, so that renderers can
// walk the whole wall
type SideHEdges struct {
	Left  int
	Right int
}

type Level struct {
	Name string
	// Vertexes[:NumEditableVertexes] are the map's own vertexes, the rest were
	// created by splits
	NumEditableVertexes int
	Vertexes            []Vertex
	HEdges              []HEdge
	Nodes               []Node
	Leafs               []Leaf
	SideHEdges          []SideHEdges // indexed by sidedef
	Root                ChildRef
}

// LeafRing returns half-edge indices of the leaf in ring order
func (l *Level) LeafRing(leaf int) []int {
	lf := &l.Leafs[leaf]
	res := make([]int, 0, lf.HEdgeCount)
	if lf.HEdgeCount == 0 {
		return res
	}
	h := lf.FirstHEdge
	for i := 0; i < lf.HEdgeCount; i++ {
		res = append(res, h)
		h = l.HEdges[h].Next
	}
	return res
}

// LeafArea returns the signed area of the polygon made by a leaf ring.
// Rings run clockwise, so a well formed leaf has negative area
func (l *Level) LeafArea(leaf int) float64 {
	area := 0.0
	for _, h := range l.LeafRing(leaf) {
		v1 := l.Vertexes[l.HEdges[h].V1]
		v2 := l.Vertexes[l.HEdges[h].V2]
		area += v1.X*v2.Y - v2.X*v1.Y
	}
	return area / 2
}

// Height of the subtree under ref, leafs count as zero
func (l *Level) Height(ref ChildRef) int {
	if ref.IsLeaf {
		return 0
	}
	node := &l.Nodes[ref.Index]
	rHeight := l.Height(node.Right)
	lHeight := l.Height(node.Left)
	if lHeight < rHeight {
		return rHeight + 1
	}
	return lHeight + 1
}

// LocateLeaf descends the tree to find the leaf containing the point. Points
// on the partition line itself go right
func (l *Level) LocateLeaf(x, y float64) int {
	ref := l.Root
	for !ref.IsLeaf {
		node := &l.Nodes[ref.Index]
		perp := (x-node.X)*node.DY - (y-node.Y)*node.DX
		if perp >= 0 {
			ref = node.Right
		} else {
			ref = node.Left
		}
	}
	return ref.Index
}

// Bounds of all vertexes used by half-edges
func (l *Level) Bounds() BBox {
	box := BBox{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
	for _, h := range l.HEdges {
		for _, vi := range [2]int{h.V1, h.V2} {
			v := l.Vertexes[vi]
			box.MinX = math.Min(box.MinX, v.X)
			box.MinY = math.Min(box.MinY, v.Y)
			box.MaxX = math.Max(box.MaxX, v.X)
			box.MaxY = math.Max(box.MaxY, v.Y)
		}
	}
	return box
}
