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

// The grand nodebuilding speed-up technique from AJ-BSP by Andrew Apted:
// superblocks.

type superBlock struct {
	// parent of this block, or NoIndex for a top-level block
	parent int
	// coordinates on map for this block, from lower-left corner to
	// upper-right corner.  Pseudo-inclusive, i.e (x,y) is inside block
	// if and only if x1 <= x < x2 and y1 <= y < y2.
	x1, y1 int
	x2, y2 int
	// sub-blocks. NoIndex when empty. [0] has the lower coordinates, and
	// [1] has the higher coordinates. Division of a square always
	// occurs horizontally (e.g. 512x512 -> 256x512 -> 256x256).
	subs [2]int
	// number of real and mini half-edges contained by this block
	// (including all sub-blocks below it).
	realNum int
	miniNum int
	// half-edges _directly_ contained by this block, in insertion order.
	// Doesn't include those contained in subblocks.
	hedges []int
}

// Convenience accessors: [1] is the "right" child, [0] the "left" one
func (b *superBlock) right() int { return b.subs[1] }
func (b *superBlock) left() int  { return b.subs[0] }

// isLeaf() == true defines when superblock is no longer divisible into
// subblocks
func (b *superBlock) isLeaf() bool {
	return (b.x2-b.x1) <= SUPER_LEAF_SIZE && (b.y2-b.y1) <= SUPER_LEAF_SIZE
}

// Takes a block from the pool if one is available
func (s *BuildSession) newSuperBlock(x1, y1, x2, y2 int) int {
	var idx int
	if n := len(s.freeBlocks); n > 0 {
		idx = s.freeBlocks[n-1]
		s.freeBlocks = s.freeBlocks[:n-1]
	} else {
		s.blocks = append(s.blocks, superBlock{})
		idx = len(s.blocks) - 1
	}
	b := &s.blocks[idx]
	hedges := b.hedges[:0]
	*b = superBlock{
		parent: NoIndex,
		x1:     x1,
		y1:     y1,
		x2:     x2,
		y2:     y2,
		subs:   [2]int{NoIndex, NoIndex},
		hedges: hedges,
	}
	return idx
}

// Returns the (emptied) block tree to the pool
func (s *BuildSession) returnSuperBlockToPool(block int) {
	stack := append(s.blockStack[:0], block)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		b := &s.blocks[cur]
		for num := 0; num < 2; num++ {
			if b.subs[num] != NoIndex {
				stack = append(stack, b.subs[num])
				b.subs[num] = NoIndex
			}
		}
		if len(b.hedges) > 0 {
			s.panicf("Superblock returned to pool while holding %d half-edges", len(b.hedges))
		}
		b.parent = NoIndex
		s.freeBlocks = append(s.freeBlocks, cur)
	}
	s.blockStack = stack
}

func (s *BuildSession) incrementCounts(block int, h int) {
	if s.isMini(h) {
		s.blocks[block].miniNum++
	} else {
		s.blocks[block].realNum++
	}
}

func (s *BuildSession) decrementCounts(block int, h int) {
	if s.isMini(h) {
		s.blocks[block].miniNum--
	} else {
		s.blocks[block].realNum--
	}
}

// Links the half-edge into the block tree rooted at block: into the deepest
// block which has it entirely in one half, or the leaf-sized block containing
// it. Counts of the ancestors of block are raised as well
func (s *BuildSession) push(block int, h int) {
	for p := s.blocks[block].parent; p != NoIndex; p = s.blocks[p].parent {
		s.incrementCounts(p, h)
	}
	hd := &s.hedges[h]
	for {
		b := &s.blocks[block]
		var p1, p2 bool
		var child int
		xMid := (b.x1 + b.x2) >> 1
		yMid := (b.y1 + b.y2) >> 1

		s.incrementCounts(block, h)

		if b.isLeaf() {
			// block is not allowed to be subdivised any further
			s.linkHEdge(block, h)
			return
		}
		if b.x2-b.x1 >= b.y2-b.y1 {
			// block is wider than it is high, or square
			p1 = hd.info.pSX >= float64(xMid)
			p2 = hd.info.pEX >= float64(xMid)
		} else {
			// block is higher than it is wide
			p1 = hd.info.pSY >= float64(yMid)
			p2 = hd.info.pEY >= float64(yMid)
		}

		if p1 && p2 {
			child = 1
		} else if !p1 && !p2 {
			child = 0
		} else {
			// line crosses midpoint -- link it in and return
			s.linkHEdge(block, h)
			return
		}

		// OK, the half-edge lies in one half of this block. Create the block
		// if it doesn't already exist, and loop back to add the half-edge.
		if b.subs[child] == NoIndex {
			var sub int
			if b.x2-b.x1 >= b.y2-b.y1 {
				if child == 1 {
					sub = s.newSuperBlock(xMid, b.y1, b.x2, b.y2)
				} else {
					sub = s.newSuperBlock(b.x1, b.y1, xMid, b.y2)
				}
			} else {
				if child == 1 {
					sub = s.newSuperBlock(b.x1, yMid, b.x2, b.y2)
				} else {
					sub = s.newSuperBlock(b.x1, b.y1, b.x2, yMid)
				}
			}
			// newSuperBlock may have grown the arena, b is stale
			b = &s.blocks[block]
			b.subs[child] = sub
			s.blocks[sub].parent = block
		}
		block = b.subs[child]
	}
}

func (s *BuildSession) linkHEdge(block int, h int) {
	b := &s.blocks[block]
	b.hedges = append(b.hedges, h)
	s.hedges[h].block = block
}

// Unlinks the most recently added half-edge of the block (not its
// sub-blocks), NoIndex if there is none
func (s *BuildSession) pop(block int) int {
	b := &s.blocks[block]
	n := len(b.hedges)
	if n == 0 {
		return NoIndex
	}
	h := b.hedges[n-1]
	b.hedges = b.hedges[:n-1]
	for p := block; p != NoIndex; p = s.blocks[p].parent {
		s.decrementCounts(p, h)
	}
	s.hedges[h].block = NoIndex
	return h
}

func (s *BuildSession) totalHEdgeCount(block int) int {
	b := &s.blocks[block]
	return b.realNum + b.miniNum
}

// Iterative pre-order traversal of the block tree, right sub-block before
// the left one. Visitor returning false stops the walk
func (s *BuildSession) walkBlocks(root int, visit func(block int) bool) bool {
	stack := []int{root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(cur) {
			return false
		}
		b := &s.blocks[cur]
		if b.left() != NoIndex {
			stack = append(stack, b.left())
		}
		if b.right() != NoIndex {
			stack = append(stack, b.right())
		}
	}
	return true
}

// Bounding box of all half-edges in the block tree
func (s *BuildSession) findHEdgeBounds(root int) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	s.walkBlocks(root, func(block int) bool {
		for _, h := range s.blocks[block].hedges {
			info := &s.hedges[h].info
			minX = math.Min(minX, math.Min(info.pSX, info.pEX))
			minY = math.Min(minY, math.Min(info.pSY, info.pEY))
			maxX = math.Max(maxX, math.Max(info.pSX, info.pEX))
			maxY = math.Max(maxY, math.Max(info.pSY, info.pEY))
		}
		return true
	})
	return
}
