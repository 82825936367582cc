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
	"math"
	"sort"

	"github.com/vigilantdoomer/hedgebsp/internal/mapdata"
)

// Checks every linedef once and records what the builder needs to know about
// it. Broken references are reported here, and such linedefs are excluded
func (s *BuildSession) initForMap() {
	m := s.m
	s.numEditable = len(m.Vertexes)
	s.vertexes = make([]vertex, len(m.Vertexes), len(m.Vertexes)+len(m.Vertexes)/4)
	for i, v := range m.Vertexes {
		s.vertexes[i] = vertex{X: v.X, Y: v.Y, equiv: NoIndex}
	}
	s.hedges = make([]hedge, 0, len(m.LineDefs)*2)
	s.lineInfos = make([]lineDefInfo, len(m.LineDefs))

	for i := range m.LineDefs {
		ld := &m.LineDefs[i]
		info := &s.lineInfos[i]
		info.front = NoIndex
		info.back = NoIndex

		if !m.ValidVertex(ld.V1) || !m.ValidVertex(ld.V2) {
			s.log.Warn("LineDef #%d references non-existent vertex (%d, %d), skipped.\n",
				i, ld.V1, ld.V2)
			info.flags |= LDI_BROKEN
			continue
		}

		info.front = s.checkedSideDef(i, ld.FrontSide)
		info.back = s.checkedSideDef(i, ld.BackSide)

		start := &m.Vertexes[ld.V1]
		end := &m.Vertexes[ld.V2]
		// Check for zero-length line.
		if math.Abs(start.X-end.X) < DIST_EPSILON &&
			math.Abs(start.Y-end.Y) < DIST_EPSILON {
			info.flags |= LDI_ZEROLENGTH
		}

		if info.front != NoIndex && info.back != NoIndex {
			info.flags |= LDI_TWOSIDED
			if m.SideDefs[info.front].Sector == m.SideDefs[info.back].Sector {
				info.flags |= LDI_SELFREF
			}
		} else if ld.Flags&mapdata.LF_TWOSIDED != 0 {
			// built as one-sided, LDI_TWOSIDED stays clear
			s.log.Warn("LineDef #%d is two-sided but has no back SideDef.\n", i)
		}
	}

	s.findEquivalentVertexes()
}

// Map vertexes sharing an origin are merged: linedefs are built against the
// head of their group, so that the edge tips of all end up on one vertex. The
// others stay in the arena, unreferenced. A linedef whose ends merge counts
// as zero-length
func (s *BuildSession) findEquivalentVertexes() {
	order := make([]int, s.numEditable)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		va := &s.vertexes[order[a]]
		vb := &s.vertexes[order[b]]
		if va.X != vb.X {
			return va.X < vb.X
		}
		return va.Y < vb.Y
	})

	// A vertex joins the group of the closest earlier group head within
	// DIST_EPSILON, so no member is further than that from its head
	numEquiv := 0
	for i := 1; i < len(order); i++ {
		b := &s.vertexes[order[i]]
		for j := i - 1; j >= 0; j-- {
			a := &s.vertexes[order[j]]
			if b.X-a.X >= DIST_EPSILON {
				break
			}
			if a.equiv == NoIndex && math.Abs(a.Y-b.Y) < DIST_EPSILON {
				b.equiv = order[j]
				numEquiv++
				break
			}
		}
	}

	for i := range s.m.LineDefs {
		info := &s.lineInfos[i]
		if info.flags&LDI_BROKEN != 0 {
			continue
		}
		ld := &s.m.LineDefs[i]
		v1 := s.canonicalVertex(ld.V1)
		v2 := s.canonicalVertex(ld.V2)
		if v1 == v2 {
			// ends merged into one vertex
			info.flags |= LDI_ZEROLENGTH
		}
		if info.flags&LDI_ZEROLENGTH != 0 {
			continue
		}
		s.vertexes[v1].refCount++
		s.vertexes[v2].refCount++
	}

	numUnused := 0
	for i := 0; i < s.numEditable; i++ {
		if s.vertexes[i].equiv == NoIndex && s.vertexes[i].refCount == 0 {
			numUnused++
		}
	}
	if numEquiv > 0 || numUnused > 0 {
		s.log.Verbose(1, "Merged %d equivalent vertexes, %d unused.\n",
			numEquiv, numUnused)
	}
}

func (s *BuildSession) canonicalVertex(v int) int {
	for s.vertexes[v].equiv != NoIndex {
		v = s.vertexes[v].equiv
	}
	return v
}

// A sidedef reference that is out of range, or whose sector is, is treated as
// absent
func (s *BuildSession) checkedSideDef(line int, sdef int) int {
	if sdef == NoIndex {
		return NoIndex
	}
	if !s.m.ValidSideDef(sdef) {
		s.log.Warn("LineDef #%d references non-existent SideDef #%d.\n", line, sdef)
		return NoIndex
	}
	if !s.m.ValidSector(s.m.SideDefs[sdef].Sector) {
		s.log.Warn("Bad SideDef #%d on LineDef #%d: sector #%d doesn't exist.\n",
			sdef, line, s.m.SideDefs[sdef].Sector)
		return NoIndex
	}
	return sdef
}

// Bounds of the root superblock: map bounds snapped to 8 at the minimum, with
// a power of two number of 128-unit blocks along each axis. ok is false when
// the map has no line that could produce a half-edge
func (s *BuildSession) blockBounds() (x1, y1, x2, y2 int, ok bool) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := range s.m.LineDefs {
		if s.lineInfos[i].flags&(LDI_ZEROLENGTH|LDI_BROKEN) != 0 {
			continue
		}
		ld := &s.m.LineDefs[i]
		for _, v := range [2]int{ld.V1, ld.V2} {
			vtx := &s.m.Vertexes[v]
			minX = math.Min(minX, vtx.X)
			minY = math.Min(minY, vtx.Y)
			maxX = math.Max(maxX, vtx.X)
			maxY = math.Max(maxY, vtx.Y)
		}
		ok = true
	}
	if !ok {
		return
	}

	iMinX := int(math.Floor(minX))
	iMinY := int(math.Floor(minY))
	iMaxX := int(math.Ceil(maxX))
	iMaxY := int(math.Ceil(maxY))

	x1 = iMinX - (iMinX & 0x7)
	y1 = iMinY - (iMinY & 0x7)
	bw := (iMaxX-x1)/BLOCK_SIZE + 1
	bh := (iMaxY-y1)/BLOCK_SIZE + 1

	x2 = x1 + BLOCK_SIZE*roundPOW2(bw)
	y2 = y1 + BLOCK_SIZE*roundPOW2(bh)
	return
}

// Creates the half-edges of every usable linedef and adds them to the block,
// front one before the back one, and registers their edge tips
func (s *BuildSession) createInitialHEdges(block int) {
	m := s.m
	for i := range m.LineDefs {
		info := &s.lineInfos[i]
		if info.flags&(LDI_BROKEN|LDI_ZEROLENGTH) != 0 {
			continue
		}
		ld := &m.LineDefs[i]
		v1 := s.canonicalVertex(ld.V1)
		v2 := s.canonicalVertex(ld.V2)
		front := NoIndex
		back := NoIndex

		dx := m.Vertexes[ld.V1].X - m.Vertexes[ld.V2].X
		dy := m.Vertexes[ld.V1].Y - m.Vertexes[ld.V2].Y
		// Check for Humungously long lines.
		if math.Abs(dx) >= LONG_LINE_LEN || math.Abs(dy) >= LONG_LINE_LEN {
			s.log.Warn("LineDef #%d is very long, it may cause problems.\n", i)
		}

		if info.front != NoIndex {
			front = s.newHEdge(i, i, v1, v2,
				m.SideDefs[info.front].Sector, false)
			s.push(block, front)
		} else {
			s.log.Warn("LineDef #%d has no front SideDef!\n", i)
		}

		if info.back != NoIndex {
			back = s.newHEdge(i, i, v2, v1,
				m.SideDefs[info.back].Sector, true)
			s.push(block, back)

			if front != NoIndex {
				// Half-edges always maintain a one-to-one relationship
				// with their twins, so if one gets split, the other
				// must be split also.
				s.hedges[back].twin = front
				s.hedges[front].twin = back
			}
		}

		x1, y1 := s.vertexes[v1].X, s.vertexes[v1].Y
		x2, y2 := s.vertexes[v2].X, s.vertexes[v2].Y
		s.addHEdgeTip(v1, slopeToAngle(x2-x1, y2-y1), back, front)
		s.addHEdgeTip(v2, slopeToAngle(x1-x2, y1-y2), front, back)
	}
}
