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
	"fmt"
	"math"

	"github.com/vigilantdoomer/hedgebsp/internal/level"
)

// Height of the subtree, a leaf has height 0
func (s *BuildSession) height(idx int) int {
	if idx == NoIndex {
		return 0
	}
	type item struct {
		idx   int
		depth int
	}
	maxDepth := 0
	stack := []item{{idx, 0}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if it.depth > maxDepth {
			maxDepth = it.depth
		}
		n := &s.tree[it.idx]
		if n.isLeaf {
			continue
		}
		for _, child := range [2]int{n.right, n.left} {
			if child != NoIndex {
				stack = append(stack, item{child, it.depth + 1})
			}
		}
	}
	return maxDepth
}

// Harden converts the built tree into the final level arrays. The session
// stays usable, calling Harden again produces an identical level
func (s *BuildSession) Harden() (lvl *level.Level, err error) {
	if s.root == NoIndex {
		return nil, fmt.Errorf("%w: nothing to harden, build has not completed", ErrInvariant)
	}
	defer recoverInvariant(&err)

	var rHeight, lHeight int
	if root := &s.tree[s.root]; !root.isLeaf {
		rHeight = s.height(root.right)
		lHeight = s.height(root.left)
	}
	s.stats.RightHeight = rHeight
	s.stats.LeftHeight = lHeight
	s.stats.HEdges = len(s.hedges)
	s.stats.Vertexes = len(s.vertexes)

	s.log.Printf("BSP built: Balance %d (r:%d - l:%d) #%d Nodes, #%d Leafs, #%d HEdges, #%d Vertexes.\n",
		rHeight-lHeight, rHeight, lHeight, s.stats.Nodes, s.stats.Leafs,
		s.stats.HEdges, s.stats.Vertexes)

	lvl = &level.Level{
		Name:                s.m.Name,
		NumEditableVertexes: s.numEditable,
	}
	hedgeLut := s.buildHEdgeLut()
	s.hardenVertexes(lvl)
	s.hardenHEdges(lvl, hedgeLut)
	s.hardenTree(lvl, hedgeLut)
	s.hardenSideHEdges(lvl, hedgeLut)
	return lvl, nil
}

// Final order of half-edges: leaf rings in in-order traversal of the tree
// (left subtree, node, right subtree). Returns the mapping from build index
// to final index
func (s *BuildSession) buildHEdgeLut() []int {
	lut := make([]int, len(s.hedges))
	for i := range lut {
		lut[i] = NoIndex
	}
	next := 0
	var stack []int
	cur := s.root
	for cur != NoIndex || len(stack) > 0 {
		for cur != NoIndex {
			stack = append(stack, cur)
			if s.tree[cur].isLeaf {
				break
			}
			cur = s.tree[cur].left
		}
		cur = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &s.tree[cur]
		if n.isLeaf {
			for _, h := range n.hedges {
				if lut[h] != NoIndex {
					s.panicf("HEdge #%d is linked into more than one leaf", h)
				}
				lut[h] = next
				next++
			}
			cur = NoIndex
		} else {
			cur = n.right
		}
	}
	if next != len(s.hedges) {
		s.panicf("Only %d of %d half-edges ended up in leafs", next, len(s.hedges))
	}
	return lut
}

func (s *BuildSession) hardenVertexes(lvl *level.Level) {
	lvl.Vertexes = make([]level.Vertex, len(s.vertexes))
	for i, v := range s.vertexes {
		lvl.Vertexes[i] = level.Vertex{X: v.X, Y: v.Y}
	}
}

func (s *BuildSession) hardenHEdges(lvl *level.Level, lut []int) {
	lvl.HEdges = make([]level.HEdge, len(s.hedges))
	remap := func(h int) int {
		if h == NoIndex {
			return NoIndex
		}
		return lut[h]
	}
	for i := range s.hedges {
		hd := &s.hedges[i]
		out := &lvl.HEdges[lut[i]]
		v1 := &s.vertexes[hd.v[0]]
		v2 := &s.vertexes[hd.v[1]]

		out.V1 = hd.v[0]
		out.V2 = hd.v[1]
		out.Twin = remap(hd.twin)
		out.Next = remap(hd.next)
		out.Prev = remap(hd.prev)
		out.LineDef = hd.lineDef
		out.Side = hd.side
		out.Sector = hd.sector
		out.Leaf = NoIndex

		if hd.lineDef != NoIndex {
			if sec := s.lineSideSector(hd.lineDef, hd.side); sec != NoIndex {
				out.Sector = sec
			}
			ld := &s.m.LineDefs[hd.lineDef]
			vtx := ld.V1
			if hd.side != 0 {
				vtx = ld.V2
			}
			from := &s.vertexes[vtx]
			out.Offset = math.Hypot(v1.X-from.X, v1.Y-from.Y)
		}

		out.Angle = bamsAtan2(int(v2.Y-v1.Y), int(v2.X-v1.X)) << 16

		out.Length = math.Hypot(v2.X-v1.X, v2.Y-v1.Y)
		if out.Length == 0 {
			out.Length = 0.01 // Hmm...
		}
	}
}

// Nodes are numbered in post-order: right subtree, left subtree, then the
// node itself. Leaf children get their numbers when their parent node does,
// right one first
func (s *BuildSession) hardenTree(lvl *level.Level, lut []int) {
	lvl.Nodes = make([]level.Node, 0, s.stats.Nodes)
	lvl.Leafs = make([]level.Leaf, 0, s.stats.Leafs)

	hardenLeaf := func(idx int) int {
		lf := &s.tree[idx]
		if len(lf.hedges) == 0 {
			s.panicf("BspLeaf #%d has no ring", idx)
		}
		num := len(lvl.Leafs)
		for _, h := range lf.hedges {
			lvl.HEdges[lut[h]].Leaf = num
		}
		lvl.Leafs = append(lvl.Leafs, level.Leaf{
			FirstHEdge: lut[lf.hedges[0]],
			HEdgeCount: len(lf.hedges),
			Sector:     lf.sector,
		})
		return num
	}

	if s.tree[s.root].isLeaf {
		lvl.Root = level.ChildRef{IsLeaf: true, Index: hardenLeaf(s.root)}
		return
	}

	nodeIndex := make(map[int]int, s.stats.Nodes)
	childRef := func(parent, child int) level.ChildRef {
		if child == NoIndex {
			s.panicf("Node #%d is missing a child", parent)
		}
		if s.tree[child].isLeaf {
			return level.ChildRef{IsLeaf: true, Index: hardenLeaf(child)}
		}
		idx, ok := nodeIndex[child]
		if !ok {
			s.panicf("Node #%d was not hardened before its parent #%d", child, parent)
		}
		return level.ChildRef{Index: idx}
	}

	type item struct {
		idx     int
		visited bool
	}
	stack := []item{{s.root, false}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &s.tree[it.idx]
		if n.isLeaf {
			continue
		}
		if !it.visited {
			stack = append(stack, item{it.idx, true})
			if n.left != NoIndex {
				stack = append(stack, item{n.left, false})
			}
			if n.right != NoIndex {
				stack = append(stack, item{n.right, false})
			}
			continue
		}
		node := level.Node{
			X:        n.x,
			Y:        n.y,
			DX:       n.dx,
			DY:       n.dy,
			RightBox: n.rightBox,
			LeftBox:  n.leftBox,
		}
		node.Right = childRef(it.idx, n.right)
		node.Left = childRef(it.idx, n.left)
		nodeIndex[it.idx] = len(lvl.Nodes)
		lvl.Nodes = append(lvl.Nodes, node)
	}
	lvl.Root = level.ChildRef{Index: len(lvl.Nodes) - 1}
}

// For every sidedef, the outermost half-edges of the chain it was split into
func (s *BuildSession) hardenSideHEdges(lvl *level.Level, lut []int) {
	lvl.SideHEdges = make([]level.SideHEdges, len(s.m.SideDefs))
	for i := range lvl.SideHEdges {
		lvl.SideHEdges[i] = level.SideHEdges{Left: NoIndex, Right: NoIndex}
	}
	for i := range s.hedges {
		hd := &s.hedges[i]
		if hd.lineDef == NoIndex {
			continue
		}
		sdef := s.lineSideDef(hd.lineDef, hd.side)
		if sdef == NoIndex || lvl.SideHEdges[sdef].Left != NoIndex {
			continue
		}
		left := i
		for s.hedges[left].prevOnSide != NoIndex {
			left = s.hedges[left].prevOnSide
		}
		right := i
		for s.hedges[right].nextOnSide != NoIndex {
			right = s.hedges[right].nextOnSide
		}
		lvl.SideHEdges[sdef] = level.SideHEdges{Left: lut[left], Right: lut[right]}
	}
}
