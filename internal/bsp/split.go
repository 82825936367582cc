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

import "math"

// The partition currently used to divide half-edges. A copy of the chosen
// half-edge's info is kept, so that splitting that half-edge later doesn't
// move the partition
type partition struct {
	info    hedgeInfo
	lineDef int
	side    int
}

func (s *BuildSession) configurePartition(h int) {
	hd := &s.hedges[h]
	if hd.lineDef == NoIndex {
		s.panicf("Miniedge #%d can't be a partition", h)
	}
	s.clearIntercepts()
	s.part = partition{
		info:    hd.info,
		lineDef: hd.lineDef,
		side:    hd.side,
	}
}

// Splits the half-edge at the point (x,y). The new half-edge is returned.
// The old half-edge is shortened (the original start vertex is unchanged), the
// new half-edge becomes the cut-off tail (keeping the original end vertex).
// If the half-edge has a twin, it is split too, and its new part goes where
// the old one lives: the same superblock, or the same leaf
func (s *BuildSession) splitHEdge(old int, x, y float64) int {
	newVert := s.newVertex(x, y)
	oinfo := s.hedges[old].info
	oldTwin := s.hedges[old].twin
	s.addHEdgeTip(newVert, slopeToAngle(-oinfo.pDX, -oinfo.pDY), old, oldTwin)
	s.addHEdgeTip(newVert, slopeToAngle(oinfo.pDX, oinfo.pDY), oldTwin, old)

	nw := s.cloneHEdge(old)
	s.stats.Splits++

	s.hedges[nw].prevOnSide = old
	if next := s.hedges[old].nextOnSide; next != NoIndex {
		s.hedges[next].prevOnSide = nw
	}
	s.hedges[old].nextOnSide = nw

	s.hedges[old].v[1] = newVert
	s.updateHEdgeInfo(old)

	s.hedges[nw].v[0] = newVert
	s.updateHEdgeInfo(nw)

	if oldTwin == NoIndex {
		return nw
	}

	// Copy the old twin
	newTwin := s.cloneHEdge(oldTwin)
	s.hedges[nw].twin = newTwin
	s.hedges[newTwin].twin = nw

	s.hedges[newTwin].nextOnSide = oldTwin
	if prev := s.hedges[oldTwin].prevOnSide; prev != NoIndex {
		s.hedges[prev].nextOnSide = newTwin
	}
	s.hedges[oldTwin].prevOnSide = newTwin

	s.hedges[oldTwin].v[0] = newVert
	s.updateHEdgeInfo(oldTwin)

	s.hedges[newTwin].v[1] = newVert
	s.updateHEdgeInfo(newTwin)

	if block := s.hedges[oldTwin].block; block != NoIndex {
		s.push(block, newTwin)
	} else if leaf := s.hedges[oldTwin].leaf; leaf != NoIndex {
		// Has this already been added to a leaf?
		s.insertIntoLeaf(leaf, oldTwin, newTwin)
	} else {
		s.panicf("Twin #%d of split half-edge #%d is neither in a block nor in a leaf",
			oldTwin, old)
	}
	return nw
}

// Takes the given half-edge, compares it with the partition line and
// determines its fate: moving it into either the left or right block tree
// (perhaps both, when splitting it in two). Updates the intersection list
// if the half-edge lies on or crosses the partition line.
func (s *BuildSession) divideHEdge(h int, rights, lefts int) {
	part := &s.part.info
	hd := &s.hedges[h]
	side, a, b := classify(part, s.part.lineDef, &hd.info, hd.sourceLineDef)

	switch side {
	case SIDE_COLLINEAR:
		s.makePartitionIntersection(h, false)
		s.makePartitionIntersection(h, true)
		s.addCollinearSpan(h)
		// Direction (vs that of the partition plane) determines in which
		// subset this half-edge belongs
		if collinearSide(part, &hd.info) == SIDE_LEFT {
			s.push(lefts, h)
		} else {
			s.push(rights, h)
		}
		return

	case SIDE_RIGHT:
		// Close enough to intersect?
		if a < DIST_EPSILON {
			s.makePartitionIntersection(h, false)
		} else if b < DIST_EPSILON {
			s.makePartitionIntersection(h, true)
		}
		s.push(rights, h)
		return

	case SIDE_LEFT:
		if a > -DIST_EPSILON {
			s.makePartitionIntersection(h, false)
		} else if b > -DIST_EPSILON {
			s.makePartitionIntersection(h, true)
		}
		s.push(lefts, h)
		return
	}

	// Straddles the partition plane and must therefore be split
	x, y := interceptHEdgePartition(part, &hd.info, a, b)

	// A cut this close to an end would produce a zero-length fragment: treat
	// it as touching the partition at that end instead
	if math.Abs(x-hd.info.pSX) < DIST_EPSILON && math.Abs(y-hd.info.pSY) < DIST_EPSILON {
		s.makePartitionIntersection(h, false)
		if b > 0 {
			s.push(rights, h)
		} else {
			s.push(lefts, h)
		}
		return
	}
	if math.Abs(x-hd.info.pEX) < DIST_EPSILON && math.Abs(y-hd.info.pEY) < DIST_EPSILON {
		s.makePartitionIntersection(h, true)
		if a > 0 {
			s.push(rights, h)
		} else {
			s.push(lefts, h)
		}
		return
	}

	nw := s.splitHEdge(h, x, y)

	s.makePartitionIntersection(h, true)

	if a < 0 {
		s.push(rights, nw)
		s.push(lefts, h)
	} else {
		s.push(rights, h)
		s.push(lefts, nw)
	}
}

// Removes all the half-edges from the block tree, partitioning them into the
// left or right trees based on the current partition. Adds any intersections
// onto the intersection list as it goes.
func (s *BuildSession) partitionHEdges(block int, rights, lefts int) {
	s.walkBlocks(block, func(cur int) bool {
		for h := s.pop(cur); h != NoIndex; h = s.pop(cur) {
			s.divideHEdge(h, rights, lefts)
		}
		return true
	})

	// Sanity checks...
	if s.totalHEdgeCount(rights) == 0 {
		s.panicf("Separated half-edge has no right side")
	}
	if s.totalHEdgeCount(lefts) == 0 {
		s.panicf("Separated half-edge has no left side")
	}
}
