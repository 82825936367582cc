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
	"github.com/vigilantdoomer/hedgebsp/internal/level"
)

// Either a node or a leaf of the tree being built
type treeNode struct {
	isLeaf bool
	parent int

	// node only
	x, y     float64
	dx, dy   float64
	right    int
	left     int
	rightBox level.BBox
	leftBox  level.BBox

	// leaf only. Unordered until the leafs are wound, then ring order
	// starting at the head
	hedges []int
	sector int
}

// A block tree waiting to be turned into a subtree of parent
type buildTask struct {
	block   int
	parent  int
	isRight bool
}

func (s *BuildSession) newTreeNode(isLeaf bool, parent int) int {
	s.tree = append(s.tree, treeNode{
		isLeaf: isLeaf,
		parent: parent,
		right:  NoIndex,
		left:   NoIndex,
		sector: NoIndex,
	})
	return len(s.tree) - 1
}

func (s *BuildSession) attachChild(task buildTask, child int) {
	if task.parent == NoIndex {
		return
	}
	if task.isRight {
		s.tree[task.parent].right = child
	} else {
		s.tree[task.parent].left = child
	}
}

// Takes the half-edge list and determines if it is convex, possibly
// converting it into a leaf. Otherwise, the list is divided into two halves
// and the same happens to each of them. Pending halves are kept on a stack
// rather than recursed into, the right half is always finished before the
// left one is started. Returns the root of the tree
func (s *BuildSession) buildNodes(rootBlock int) int {
	root := NoIndex
	stack := []buildTask{{block: rootBlock, parent: NoIndex}}
	for len(stack) > 0 {
		task := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var cur int
		// Pick a half-edge to use as the next partition plane.
		h := s.pickNode(task.block)
		if h == NoIndex {
			// No partition required, already convex.
			cur = s.newBspLeaf(task.block, task.parent)
		} else {
			var rights, lefts int
			cur, rights, lefts = s.divideBlock(task.block, h, task.parent)
			// LIFO: right is on top
			stack = append(stack,
				buildTask{block: lefts, parent: cur, isRight: false},
				buildTask{block: rights, parent: cur, isRight: true})
		}

		if task.parent == NoIndex {
			root = cur
		}
		s.attachChild(task, cur)
	}
	return root
}

// Partitions the block tree with the half-edge h as the partition and creates
// the node. Returns the node with the right and left block trees
func (s *BuildSession) divideBlock(block int, h int, parent int) (int, int, int) {
	// Reconfigure the half plane for the next round of hedge sorting.
	s.configurePartition(h)

	// Copy the bounding box of the edge list to the new superblocks.
	b := &s.blocks[block]
	x1, y1, x2, y2 := b.x1, b.y1, b.x2, b.y2
	rights := s.newSuperBlock(x1, y1, x2, y2)
	lefts := s.newSuperBlock(x1, y1, x2, y2)

	// Divide the half-edges into two lists: left & right.
	s.partitionHEdges(block, rights, lefts)
	s.addMiniHEdges(rights, lefts)
	s.clearIntercepts()

	node := s.newTreeNode(false, parent)
	n := &s.tree[node]
	ld := &s.m.LineDefs[s.part.lineDef]
	from, to := ld.V1, ld.V2
	if s.part.side != 0 {
		from, to = to, from
	}
	n.x = s.m.Vertexes[from].X
	n.y = s.m.Vertexes[from].Y
	n.dx = s.m.Vertexes[to].X - n.x
	n.dy = s.m.Vertexes[to].Y - n.y
	n.rightBox = s.blockTreeBounds(rights)
	n.leftBox = s.blockTreeBounds(lefts)

	s.returnSuperBlockToPool(block)
	s.stats.Nodes++

	return node, rights, lefts
}

func (s *BuildSession) blockTreeBounds(block int) level.BBox {
	minX, minY, maxX, maxY := s.findHEdgeBounds(block)
	return level.BBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// Creates a leaf from all the half-edges in the block tree, which is
// returned to the pool
func (s *BuildSession) newBspLeaf(block int, parent int) int {
	leaf := s.newTreeNode(true, parent)
	var hedges []int
	s.walkBlocks(block, func(cur int) bool {
		for h := s.pop(cur); h != NoIndex; h = s.pop(cur) {
			hedges = append(hedges, h)
		}
		return true
	})
	// Popping reverses the order half-edges were linked in
	for i, j := 0, len(hedges)-1; i < j; i, j = i+1, j-1 {
		hedges[i], hedges[j] = hedges[j], hedges[i]
	}
	for _, h := range hedges {
		s.hedges[h].leaf = leaf
	}
	s.tree[leaf].hedges = hedges
	s.returnSuperBlockToPool(block)
	s.stats.Leafs++
	return leaf
}

// Puts h into the leaf right after the half-edge at
func (s *BuildSession) insertIntoLeaf(leaf int, at int, h int) {
	lf := &s.tree[leaf]
	pos := len(lf.hedges)
	for i, other := range lf.hedges {
		if other == at {
			pos = i + 1
			break
		}
	}
	lf.hedges = append(lf.hedges, NoIndex)
	copy(lf.hedges[pos+1:], lf.hedges[pos:])
	lf.hedges[pos] = h
	s.hedges[h].leaf = leaf
}
