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

// Traverses the tree and puts the half-edges of each leaf into clockwise
// order, linking them into a ring. This cannot be done while building,
// since splitting a half-edge with a twin may insert another half-edge into
// that twin's leaf, usually in the wrong place order-wise
func (s *BuildSession) windLeafs() {
	s.walkTree(s.root, func(idx int) {
		if s.tree[idx].isLeaf {
			s.clockwiseLeaf(idx)
		}
	})
}

// Pre-order traversal of the tree, right child before left
func (s *BuildSession) walkTree(root int, visit func(idx int)) {
	if root == NoIndex {
		return
	}
	stack := []int{root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visit(cur)
		n := &s.tree[cur]
		if n.isLeaf {
			continue
		}
		if n.left != NoIndex {
			stack = append(stack, n.left)
		}
		if n.right != NoIndex {
			stack = append(stack, n.right)
		}
	}
}

func (s *BuildSession) clockwiseLeaf(leaf int) {
	lf := &s.tree[leaf]
	if len(lf.hedges) == 0 {
		s.panicf("BspLeaf #%d has no half-edges", leaf)
	}

	midX, midY := s.averagedCoords(lf.hedges)
	s.sortHEdgesByAngleAroundPoint(lf.hedges, midX, midY)

	num := len(lf.hedges)
	for i, h := range lf.hedges {
		hd := &s.hedges[h]
		hd.leaf = leaf
		hd.next = lf.hedges[(i+1)%num]
		hd.prev = lf.hedges[(i+num-1)%num]
	}

	// Determine which sector this BSP leaf belongs to.
	lf.sector = NoIndex
	for _, h := range lf.hedges {
		hd := &s.hedges[h]
		if hd.lineDef == NoIndex {
			continue
		}
		if sec := s.lineSideSector(hd.lineDef, hd.side); sec != NoIndex {
			lf.sector = sec
			break
		}
	}

	if lf.sector == NoIndex {
		s.log.Warn("BspLeaf #%d is orphan.\n", leaf)
	}

	s.registerMigrantHEdges(leaf)
	s.logUnclosed(leaf)

	if !s.hasRealHEdge(leaf) {
		s.panicf("BspLeaf #%d has no linedef-linked half-edge!", leaf)
	}
}

func (s *BuildSession) averagedCoords(hedges []int) (float64, float64) {
	var x, y float64
	for _, h := range hedges {
		v0 := &s.vertexes[s.hedges[h].v[0]]
		v1 := &s.vertexes[s.hedges[h].v[1]]
		x += v0.X + v1.X
		y += v0.Y + v1.Y
	}
	n := float64(len(hedges) * 2)
	return x / n, y / n
}

// Sorts half-edges by the angle of their start vertex around the point,
// clockwise (largest angle first). Uses the double bubble sort, which is
// stable and doesn't swap angles that are equal within ANG_EPSILON
func (s *BuildSession) sortHEdgesByAngleAroundPoint(hedges []int, x, y float64) {
	angle := func(h int) float64 {
		v := &s.vertexes[s.hedges[h].v[0]]
		return slopeToAngle(v.X-x, v.Y-y)
	}
	i := 0
	for i+1 < len(hedges) {
		angle1 := angle(hedges[i])
		angle2 := angle(hedges[i+1])
		if angle1+ANG_EPSILON < angle2 {
			// swap them
			hedges[i], hedges[i+1] = hedges[i+1], hedges[i]
			// bubble down
			if i > 0 {
				i--
			}
		} else {
			// bubble up
			i++
		}
	}
}

// The first sector found among half-edges of the leaf in ring order
func (s *BuildSession) firstSectorInLeaf(leaf int) int {
	for _, h := range s.tree[leaf].hedges {
		if sec := s.hedges[h].sector; sec != NoIndex {
			return sec
		}
	}
	return NoIndex
}

// Warns about half-edges facing a different sector than the rest of the
// leaf. Each (half-edge, sector) pair is reported once
func (s *BuildSession) registerMigrantHEdges(leaf int) {
	sector := s.firstSectorInLeaf(leaf)
	if sector == NoIndex {
		return
	}
	for _, h := range s.tree[leaf].hedges {
		hd := &s.hedges[h]
		if hd.sector == NoIndex || hd.sector == sector {
			continue
		}
		key := [2]int{h, sector}
		if _, ok := s.migrants[key]; ok {
			continue
		}
		s.migrants[key] = struct{}{}
		s.stats.Migrants++
		if hd.lineDef != NoIndex {
			s.log.Warn("Sector #%d has HEdge facing #%d (line #%d).\n",
				sector, hd.sector, hd.lineDef)
		} else {
			s.log.Warn("Sector #%d has HEdge facing #%d.\n", sector, hd.sector)
		}
	}
}

// Reports leafs whose ring has gaps, that is a half-edge doesn't end where
// the next one begins
func (s *BuildSession) logUnclosed(leaf int) {
	hedges := s.tree[leaf].hedges
	gaps := 0
	for _, h := range hedges {
		hd := &s.hedges[h]
		end := &s.vertexes[hd.v[1]]
		start := &s.vertexes[s.hedges[hd.next].v[0]]
		if end.X != start.X || end.Y != start.Y {
			gaps++
		}
	}
	if gaps > 0 {
		s.log.Verbose(1, "HEdge list for BspLeaf #%d is not closed (%d gaps, %d hedges).\n",
			leaf, gaps, len(hedges))
		for _, h := range hedges {
			hd := &s.hedges[h]
			v0 := &s.vertexes[hd.v[0]]
			v1 := &s.vertexes[hd.v[1]]
			s.log.Debug("  half-edge #%d [%1.1f, %1.1f] -> [%1.1f, %1.1f]\n",
				h, v0.X, v0.Y, v1.X, v1.Y)
		}
	}
}

func (s *BuildSession) hasRealHEdge(leaf int) bool {
	for _, h := range s.tree[leaf].hedges {
		if s.hedges[h].lineDef != NoIndex {
			return true
		}
	}
	return false
}
