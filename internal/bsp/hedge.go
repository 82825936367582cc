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

package bsp

import (
	"github.com/vigilantdoomer/hedgebsp/internal/mapdata"
)

// NoIndex marks an absent reference into any of the session arenas
const NoIndex = mapdata.NoIndex

// Per linedef flags computed once before building
const (
	LDI_ZEROLENGTH = uint8(1 << iota)
	LDI_TWOSIDED
	LDI_SELFREF // front and back sector are the same
	LDI_BROKEN  // references vertexes that don't exist, excluded from build
)

// A half-edge pair leaving a vertex in the given direction. front is the
// half-edge running away from the vertex, back the one running into it
type edgeTip struct {
	angle float64
	front int
	back  int
}

// Vertexes [0, numEditable) are the map's own, the rest come from splits.
// Final (hardened) index of a vertex is its arena position
type vertex struct {
	X, Y float64
	// linedef references, counted after equivalents are resolved
	refCount int
	// vertex with the same origin this one merges into, NoIndex if none
	equiv int
	// sorted by increasing angle
	tips []edgeTip
}

type lineDefInfo struct {
	flags      uint8
	front      int // sidedef, NoIndex if absent or broken
	back       int
	validCount int
}

type hedge struct {
	v             [2]int
	twin          int
	lineDef       int // NoIndex for miniedges
	sourceLineDef int // linedef this half-edge lies along
	sector        int
	side          int // 0 front, 1 back

	block int // superblock holding this half-edge, NoIndex if none
	leaf  int // tree leaf holding this half-edge, NoIndex if none

	// fragments of the same sidedef produced by splits
	nextOnSide int
	prevOnSide int

	// leaf ring, valid after winding
	next int
	prev int

	info hedgeInfo
}

func (s *BuildSession) newVertex(x, y float64) int {
	s.vertexes = append(s.vertexes, vertex{X: x, Y: y, equiv: NoIndex})
	return len(s.vertexes) - 1
}

// Links a new edge tip into the vertex, keeping the list sorted by angle
func (s *BuildSession) addHEdgeTip(vtx int, angle float64, back, front int) {
	tip := edgeTip{angle: angle, front: front, back: back}
	tips := s.vertexes[vtx].tips

	// Find the correct place (order is increasing angle), searching from the
	// end so that equal angles keep their insertion order
	pos := len(tips)
	for pos > 0 && tip.angle+ANG_EPSILON < tips[pos-1].angle {
		pos--
	}
	tips = append(tips, edgeTip{})
	copy(tips[pos+1:], tips[pos:])
	tips[pos] = tip
	s.vertexes[vtx].tips = tips
}

// Check whether a line leaving the vertex at the given angle goes into open
// space. Returns the sector it enters, or NoIndex if it is closed (void space,
// or right along a linedef)
func (s *BuildSession) openSectorAtAngle(vtx int, angle float64) int {
	tips := s.vertexes[vtx].tips
	if len(tips) == 0 {
		s.panicf("Vertex %d has no hedge tips", vtx)
	}

	// First check whether there's a tip that lies in the exact direction
	for _, tip := range tips {
		diff := tip.angle - angle
		if diff < 0 {
			diff = -diff
		}
		if diff < ANG_EPSILON || diff > (360.0-ANG_EPSILON) {
			return NoIndex
		}
	}

	// Find the first tip whose angle is greater than the angle we're
	// interested in, we'll be on the FRONT side of that tip edge
	for _, tip := range tips {
		if angle+ANG_EPSILON < tip.angle {
			return s.hedgeSector(tip.front)
		}
	}
	// No more tips, therefore this is the BACK of the tip with the largest
	// angle
	return s.hedgeSector(tips[len(tips)-1].back)
}

func (s *BuildSession) hedgeSector(h int) int {
	if h == NoIndex {
		return NoIndex
	}
	return s.hedges[h].sector
}

func (s *BuildSession) newHEdge(lineDef, sourceLineDef, start, end, sector int,
	back bool) int {
	h := hedge{
		v:             [2]int{start, end},
		twin:          NoIndex,
		lineDef:       lineDef,
		sourceLineDef: sourceLineDef,
		sector:        sector,
		block:         NoIndex,
		leaf:          NoIndex,
		nextOnSide:    NoIndex,
		prevOnSide:    NoIndex,
		next:          NoIndex,
		prev:          NoIndex,
	}
	if back {
		h.side = 1
	}
	s.hedges = append(s.hedges, h)
	idx := len(s.hedges) - 1
	s.updateHEdgeInfo(idx)
	return idx
}

// Copy of a half-edge that isn't linked anywhere yet
func (s *BuildSession) cloneHEdge(other int) int {
	h := s.hedges[other]
	h.block = NoIndex
	h.leaf = NoIndex
	s.hedges = append(s.hedges, h)
	return len(s.hedges) - 1
}

func (s *BuildSession) updateHEdgeInfo(idx int) {
	h := &s.hedges[idx]
	v0 := &s.vertexes[h.v[0]]
	v1 := &s.vertexes[h.v[1]]
	h.info.update(v0.X, v0.Y, v1.X, v1.Y)
	if h.info.pLength <= 0 {
		s.panicf("HEdge #%d is of zero length", idx)
	}
}

func (s *BuildSession) isMini(h int) bool {
	return s.hedges[h].lineDef == NoIndex
}

// Sector on the given side of linedef, NoIndex if side is missing
func (s *BuildSession) lineSideSector(line, side int) int {
	info := &s.lineInfos[line]
	sdef := info.front
	if side != 0 {
		sdef = info.back
	}
	if sdef == NoIndex {
		return NoIndex
	}
	return s.m.SideDefs[sdef].Sector
}

func (s *BuildSession) lineSideDef(line, side int) int {
	if side != 0 {
		return s.lineInfos[line].back
	}
	return s.lineInfos[line].front
}
