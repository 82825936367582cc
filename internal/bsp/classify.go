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

// Relation of a half-edge to a partition line
type Side int

const (
	SIDE_RIGHT Side = iota
	SIDE_LEFT
	SIDE_COLLINEAR
	SIDE_SPLIT
)

func (sd Side) String() string {
	switch sd {
	case SIDE_RIGHT:
		return "right"
	case SIDE_LEFT:
		return "left"
	case SIDE_COLLINEAR:
		return "collinear"
	case SIDE_SPLIT:
		return "split"
	}
	return "unknown"
}

// A directed piece of line as seen by the partitioner. Segments with the same
// SourceLineDef are considered to lie on the same line
type Segment struct {
	SX, SY        float64
	EX, EY        float64
	SourceLineDef int
}

func (seg Segment) info() hedgeInfo {
	var info hedgeInfo
	info.update(seg.SX, seg.SY, seg.EX, seg.EY)
	return info
}

// Classify tells where seg lies relative to the line through part
func Classify(part, seg Segment) Side {
	pinfo := part.info()
	sinfo := seg.info()
	side, _, _ := classify(&pinfo, part.SourceLineDef, &sinfo, seg.SourceLineDef)
	return side
}

// Returns the relation of the half-edge to the partition together with
// perpendicular distances of its start (a) and end (b) from the partition
// line
func classify(part *hedgeInfo, partSource int, h *hedgeInfo,
	hSource int) (Side, float64, float64) {
	var a, b float64
	// Half-edges produced from the same source linedef must always be
	// treated as collinear
	if hSource != partSource {
		a = part.perpDist(h.pSX, h.pSY)
		b = part.perpDist(h.pEX, h.pEY)
	}

	if math.Abs(a) <= DIST_EPSILON && math.Abs(b) <= DIST_EPSILON {
		return SIDE_COLLINEAR, a, b
	}
	if a > -DIST_EPSILON && b > -DIST_EPSILON {
		return SIDE_RIGHT, a, b
	}
	if a < DIST_EPSILON && b < DIST_EPSILON {
		return SIDE_LEFT, a, b
	}
	return SIDE_SPLIT, a, b
}

// Side for a collinear half-edge, decided by its direction compared to that
// of the partition
func collinearSide(part *hedgeInfo, h *hedgeInfo) Side {
	if h.pDX*part.pDX+h.pDY*part.pDY < 0 {
		return SIDE_LEFT
	}
	return SIDE_RIGHT
}

// Point where the half-edge crosses the partition. Horizontal and vertical
// cases give "nicer" points
func interceptHEdgePartition(part *hedgeInfo, h *hedgeInfo, a, b float64) (float64, float64) {
	// Horizontal partition against vertical half-edge
	if part.pDY == 0 && h.pDX == 0 {
		return h.pSX, part.pSY
	}

	// Vertical partition against horizontal half-edge
	if part.pDX == 0 && h.pDY == 0 {
		return part.pSX, h.pSY
	}

	// 0 = start, 1 = end
	ds := a / (a - b)

	var x, y float64
	if h.pDX == 0 {
		x = h.pSX
	} else {
		x = h.pSX + h.pDX*ds
	}
	if h.pDY == 0 {
		y = h.pSY
	} else {
		y = h.pSY + h.pDY*ds
	}
	return x, y
}
