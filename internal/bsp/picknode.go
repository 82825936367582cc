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

// To be able to divide the nodes down, this routine must decide which is the
// best half-edge to use as a nodeline. The algorithm follows AJ-BSP: every
// real half-edge is tried as a partition, the superblocks let whole blocks be
// counted at once, and a candidate is dropped as soon as it can't beat the
// best one found so far.

// Default cost of a split, relative to imbalance. Can be reconfigured
const SPLIT_COST_FACTOR = 7

type partitionCost struct {
	total     int
	splits    int
	iffy      int
	nearMiss  int
	realLeft  int
	realRight int
	miniLeft  int
	miniRight int
}

func (c *partitionCost) addSide(side Side, mini bool) {
	if side == SIDE_LEFT {
		if mini {
			c.miniLeft++
		} else {
			c.realLeft++
		}
	} else {
		if mini {
			c.miniRight++
		} else {
			c.realRight++
		}
	}
}

// Candidate with the lower total wins, equal totals don't replace the best
func (c *partitionCost) lessThan(other *partitionCost) bool {
	return c.total < other.total
}

// Cost contribution of a single half-edge for the partition
func (s *BuildSession) evalPartitionCostForHEdge(part *hedgeInfo, partSource int,
	h int, cost *partitionCost) {
	hd := &s.hedges[h]
	mini := hd.lineDef == NoIndex
	side, a, b := classify(part, partSource, &hd.info, hd.sourceLineDef)
	factor := float64(s.splitCostFactor)

	switch side {
	case SIDE_COLLINEAR:
		cost.addSide(collinearSide(part, &hd.info), mini)

	case SIDE_RIGHT:
		cost.addSide(SIDE_RIGHT, mini)

		// check for a near miss
		if (a >= IFFY_LEN && b >= IFFY_LEN) ||
			(a <= DIST_EPSILON && b >= IFFY_LEN) ||
			(b <= DIST_EPSILON && a >= IFFY_LEN) {
			return
		}
		cost.nearMiss++

		// Near misses are bad, since they have the potential to cause really
		// short miniedges to be created in future processing. Thus the closer
		// the near miss, the higher the cost.
		var qnty float64
		if a <= DIST_EPSILON || b <= DIST_EPSILON {
			qnty = IFFY_LEN / math.Max(a, b)
		} else {
			qnty = IFFY_LEN / math.Min(a, b)
		}
		cost.total += int(100 * factor * (qnty*qnty - 1.0))

	case SIDE_LEFT:
		cost.addSide(SIDE_LEFT, mini)

		if (a <= -IFFY_LEN && b <= -IFFY_LEN) ||
			(a >= -DIST_EPSILON && b <= -IFFY_LEN) ||
			(b >= -DIST_EPSILON && a <= -IFFY_LEN) {
			return
		}
		cost.nearMiss++

		var qnty float64
		if a >= -DIST_EPSILON || b >= -DIST_EPSILON {
			qnty = IFFY_LEN / -math.Min(a, b)
		} else {
			qnty = IFFY_LEN / -math.Max(a, b)
		}
		cost.total += int(70 * factor * (qnty*qnty - 1.0))

	case SIDE_SPLIT:
		cost.splits++
		cost.total += 100 * s.splitCostFactor

		// If the split point is very close to one end, which is quite an
		// undesirable situation (producing really short edges), a hefty
		// surcharge applies: "iffy" half-edges
		fa := math.Abs(a)
		fb := math.Abs(b)
		if fa < IFFY_LEN || fb < IFFY_LEN {
			cost.iffy++

			// The closer to the end, the higher the cost
			qnty := IFFY_LEN / math.Min(fa, fb)
			cost.total += int(140 * factor * (qnty*qnty - 1.0))
		}
	}
}

// If returns false, the candidate must be skipped: either it already costs
// more than the best one, or it can't be used at all
func (s *BuildSession) evalPartitionCostForSuperBlock(block int, part *hedgeInfo,
	partSource int, haveBest bool, bestCost *partitionCost, cost *partitionCost) bool {

	// -AJA- this is the heart of my superblock idea, it tests the
	//       _whole_ block against the partition line to quickly handle
	//       all the half-edges within it at once.  Only when the partition
	//       line intercepts the box do we need to go deeper into it.
	b := &s.blocks[block]
	side := part.boxOnSide(float64(b.x1), float64(b.y1), float64(b.x2), float64(b.y2))
	if side < 0 {
		// LEFT
		cost.realLeft += b.realNum
		cost.miniLeft += b.miniNum
		return true
	} else if side > 0 {
		// RIGHT
		cost.realRight += b.realNum
		cost.miniRight += b.miniNum
		return true
	}

	for _, h := range b.hedges {
		// Do we already have a better choice?
		if haveBest && !cost.lessThan(bestCost) {
			return false
		}
		s.evalPartitionCostForHEdge(part, partSource, h, cost)
	}

	// handle sub-blocks recursively, right one first
	for _, sub := range [2]int{b.right(), b.left()} {
		if sub == NoIndex {
			continue
		}
		if !s.evalPartitionCostForSuperBlock(sub, part, partSource, haveBest,
			bestCost, cost) {
			return false
		}
	}
	return true
}

// Evaluates the half-edge as a partition for the block tree. Returns false
// if it is unsuitable or can't beat the best candidate
func (s *BuildSession) evalPartition(block int, h int, haveBest bool,
	bestCost *partitionCost, cost *partitionCost) bool {
	hd := &s.hedges[h]
	// "Mini-hedges" are never potential candidates
	if hd.lineDef == NoIndex {
		return false
	}

	if !s.evalPartitionCostForSuperBlock(block, &hd.info, hd.sourceLineDef,
		haveBest, bestCost, cost) {
		return false
	}

	// Make sure there is at least one real half-edge on each side
	if cost.realLeft == 0 || cost.realRight == 0 {
		return false
	}

	// Increase cost by the difference between left and right
	cost.total += 100 * abs(cost.realLeft-cost.realRight)

	// Allow miniedge counts to affect the outcome
	cost.total += 50 * abs(cost.miniLeft-cost.miniRight)

	// Another little twist, here we show a slight preference for partition
	// lines that lie either purely horizontally or purely vertically
	if hd.info.pDX != 0 && hd.info.pDY != 0 {
		cost.total += 25
	}
	return true
}

// pickNode returns the best half-edge in the block tree to use as the next
// partition, or NoIndex if the tree is convex already
func (s *BuildSession) pickNode(block int) int {
	best := NoIndex
	var bestCost partitionCost

	// Increment valid count so we can avoid testing the half-edges produced
	// from a single linedef more than once per round
	s.validCount++

	s.walkBlocks(block, func(cur int) bool {
		for _, h := range s.blocks[cur].hedges {
			line := s.hedges[h].lineDef
			if line != NoIndex {
				info := &s.lineInfos[line]
				if info.validCount == s.validCount {
					continue
				}
				info.validCount = s.validCount
			}

			var cost partitionCost
			if s.evalPartition(block, h, best != NoIndex, &bestCost, &cost) {
				if best == NoIndex || cost.lessThan(&bestCost) {
					// We have a new better choice
					bestCost = cost
					best = h
				}
			}
		}
		return true
	})

	if best != NoIndex {
		s.log.Debug("pickNode: best #%d score: %d.%02d splits=%d iffy=%d near=%d",
			best, bestCost.total/100, bestCost.total%100, bestCost.splits,
			bestCost.iffy, bestCost.nearMiss)
	}
	return best
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
