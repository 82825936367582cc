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

// Intercepts closer to each other than this are merged into one
const INTERCEPT_MERGE_DIST = 0.2

// Intercepts may come out of order by rounding, but not by more than this
const INTERCEPT_ORDER_SLACK = -0.1

// A point where the current partition line meets the geometry
type intercept struct {
	distance float64 // along the partition, from its start
	vertex   int
	// created by a self-referencing linedef, sectors are less trustworthy
	selfRef bool
	// sector open on either side of the vertex along the partition, NoIndex
	// when closed
	before int
	after  int
}

func (s *BuildSession) clearIntercepts() {
	s.intercepts = s.intercepts[:0]
	for k := range s.collinear {
		delete(s.collinear, k)
	}
}

func spanKey(v1, v2 int) [2]int {
	if v1 > v2 {
		v1, v2 = v2, v1
	}
	return [2]int{v1, v2}
}

// Remembers that a real half-edge runs along the partition between its
// vertexes, so no miniedge is needed there
func (s *BuildSession) addCollinearSpan(h int) {
	hd := &s.hedges[h]
	if hd.lineDef == NoIndex {
		return
	}
	s.collinear[spanKey(hd.v[0], hd.v[1])] = struct{}{}
}

func (s *BuildSession) spanIsCovered(v1, v2 int) bool {
	_, ok := s.collinear[spanKey(v1, v2)]
	return ok
}

func (s *BuildSession) interceptByVertex(vtx int) int {
	for i := range s.intercepts {
		if s.intercepts[i].vertex == vtx {
			return i
		}
	}
	return NoIndex
}

// Sorted insert, equal distances keep insertion order
func (s *BuildSession) insertIntercept(inter intercept) {
	pos := len(s.intercepts)
	for pos > 0 && inter.distance < s.intercepts[pos-1].distance {
		pos--
	}
	s.intercepts = append(s.intercepts, intercept{})
	copy(s.intercepts[pos+1:], s.intercepts[pos:])
	s.intercepts[pos] = inter
}

// Registers where a half-edge touches the partition: its start vertex, or its
// end vertex when leftSide is set. At most one intercept per vertex
func (s *BuildSession) makePartitionIntersection(h int, leftSide bool) {
	hd := &s.hedges[h]
	vtx := hd.v[0]
	if leftSide {
		vtx = hd.v[1]
	}
	if s.interceptByVertex(vtx) != NoIndex {
		return
	}
	selfRef := hd.lineDef != NoIndex &&
		s.lineInfos[hd.lineDef].flags&LDI_SELFREF != 0

	v := &s.vertexes[vtx]
	part := &s.part.info
	s.insertIntercept(intercept{
		distance: part.parallelDist(v.X, v.Y),
		vertex:   vtx,
		selfRef:  selfRef,
		before:   s.openSectorAtAngle(vtx, slopeToAngle(-part.pDX, -part.pDY)),
		after:    s.openSectorAtAngle(vtx, slopeToAngle(part.pDX, part.pDY)),
	})
}

// Info of other goes into final. Sectors from non self-referencing lines are
// preferred
func mergeIntercepts(final *intercept, other *intercept) {
	if final.selfRef && !other.selfRef {
		if final.before != NoIndex && other.before != NoIndex {
			final.before = other.before
		}
		if final.after != NoIndex && other.after != NoIndex {
			final.after = other.after
		}
		final.selfRef = false
	}

	if final.before == NoIndex && other.before != NoIndex {
		final.before = other.before
	}
	if final.after == NoIndex && other.after != NoIndex {
		final.after = other.after
	}
}

// Collapses intercepts that are too close to each other
func (s *BuildSession) mergeIntersections() {
	i := 0
	for i+1 < len(s.intercepts) {
		cur := &s.intercepts[i]
		next := &s.intercepts[i+1]
		dist := next.distance - cur.distance
		if dist < INTERCEPT_ORDER_SLACK {
			s.panicf("Invalid intercept order - %1.3f > %1.3f",
				cur.distance, next.distance)
		} else if dist > INTERCEPT_MERGE_DIST {
			i++
			continue
		}

		mergeIntercepts(cur, next)
		s.intercepts = append(s.intercepts[:i+1], s.intercepts[i+2:]...)
	}
}

// Walks the gaps between consecutive intercepts and closes the open ones with
// miniedge pairs, one on each side of the partition
func (s *BuildSession) buildHEdgesAtIntersectionGaps(rights, lefts int) {
	for i := 0; i+1 < len(s.intercepts); i++ {
		cur := &s.intercepts[i]
		next := &s.intercepts[i+1]

		if cur.after == NoIndex && next.before == NoIndex {
			continue
		}

		// A nearly collinear linedef already closes the gap, even if its
		// edge tips are too far off the partition angle to say so
		if s.spanIsCovered(cur.vertex, next.vertex) {
			continue
		}

		if cur.after != NoIndex && next.before == NoIndex {
			// Open/closed: the sector leaks
			if !cur.selfRef {
				x, y := s.midPoint(cur.vertex, next.vertex)
				s.registerUnclosedSector(cur.after, x, y)
			}
			continue
		}

		if cur.after == NoIndex && next.before != NoIndex {
			if !next.selfRef {
				x, y := s.midPoint(cur.vertex, next.vertex)
				s.registerUnclosedSector(next.before, x, y)
			}
			continue
		}

		// This is definitely open space
		if cur.after != next.before {
			if !cur.selfRef && !next.selfRef {
				cv := &s.vertexes[cur.vertex]
				nv := &s.vertexes[next.vertex]
				s.log.Debug("Sector mismatch: #%d (%1.1f,%1.1f) != #%d (%1.1f,%1.1f)",
					cur.after, cv.X, cv.Y, next.before, nv.X, nv.Y)
			}

			// Choose the non-self-referencing sector when we can
			if cur.selfRef && !next.selfRef {
				cur.after = next.before
			}
		}

		right, left := s.addHEdgesBetweenIntercepts(cur, next)
		s.push(rights, right)
		s.push(lefts, left)
	}
}

func (s *BuildSession) midPoint(v1, v2 int) (float64, float64) {
	a := &s.vertexes[v1]
	b := &s.vertexes[v2]
	return (a.X + b.X) / 2, (a.Y + b.Y) / 2
}

// Creates a twinned miniedge pair along the partition. They are not linedef
// linked but remember the partition's linedef as their source
func (s *BuildSession) addHEdgesBetweenIntercepts(start, end *intercept) (int, int) {
	right := s.newHEdge(NoIndex, s.part.lineDef, start.vertex, end.vertex,
		start.after, false)
	left := s.newHEdge(NoIndex, s.part.lineDef, end.vertex, start.vertex,
		start.after, false)

	s.hedges[right].twin = left
	s.hedges[left].twin = right
	s.stats.MiniHEdges += 2
	return right, left
}

// Analyzes the intersection list, and adds any needed miniedges to the given
// superblocks
func (s *BuildSession) addMiniHEdges(rights, lefts int) {
	s.mergeIntersections()

	part := &s.part.info
	s.log.Debug("Building HEdges along partition [%1.1f, %1.1f] > [%1.1f, %1.1f]",
		part.pSX, part.pSY, part.pDX, part.pDY)

	s.buildHEdgesAtIntersectionGaps(rights, lefts)
}

// Warns about an unclosed sector once
func (s *BuildSession) registerUnclosedSector(sector int, x, y float64) bool {
	if sector == NoIndex {
		return false
	}
	if _, ok := s.unclosedSectors[sector]; ok {
		return false
	}
	s.unclosedSectors[sector] = struct{}{}
	s.log.Warn("Sector #%d is unclosed near [%1.1f, %1.1f].", sector, x, y)
	return true
}
