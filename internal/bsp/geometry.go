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

// smallest distance between two points before being considered equal
const DIST_EPSILON float64 = 1.0 / 128.0

// smallest degrees between two angles before being considered equal
const ANG_EPSILON float64 = 1.0 / 1024.0

// Fragments shorter than this are "iffy" and get penalized when picking nodes
const IFFY_LEN = 4.0

const MARGIN_LEN = IFFY_LEN * 1.5

// Blocks of this size or smaller are never subdivided further
const SUPER_LEAF_SIZE = 256

const BLOCK_SIZE = 128

// Lines longer than this on either axis may overflow fixed point math in
// engines that read the result
const LONG_LINE_LEN = 10000.0

// Angle of the vector (dx, dy) in degrees, in the [0, 360) range
func slopeToAngle(dx, dy float64) float64 {
	angle := math.Atan2(dy, dx) * (180.0 / math.Pi)
	if angle < 0 {
		angle += 360.0
	}
	return angle
}

// rounds the value _up_ to the nearest power of two.
func roundPOW2(x int) int {
	if x <= 2 {
		return x
	}

	x--

	for tmp := x >> 1; tmp != 0; tmp >>= 1 {
		x |= tmp
	}

	return x + 1
}

// Binary angle of the integer vector (x, y): full circle is 65536
func bamsAtan2(y, x int) uint32 {
	w := math.Atan2(float64(y), float64(x)) * float64(65536.0/(math.Pi*2))

	if w < 0 {
		w = 65536.0 + w
	}

	return uint32(w) & 0xFFFF
}

// Precomputed data of a directed half-edge, recomputed whenever one of its
// endpoints moves
type hedgeInfo struct {
	pSX, pSY float64
	pEX, pEY float64
	pDX, pDY float64

	pLength float64
	pAngle  float64

	pPerp float64
	pPara float64
}

func (info *hedgeInfo) update(sx, sy, ex, ey float64) {
	info.pSX = sx
	info.pSY = sy
	info.pEX = ex
	info.pEY = ey
	info.pDX = ex - sx
	info.pDY = ey - sy

	info.pLength = math.Hypot(info.pDX, info.pDY)
	info.pAngle = slopeToAngle(info.pDX, info.pDY)

	info.pPerp = info.pSY*info.pDX - info.pSX*info.pDY
	info.pPara = -info.pSX*info.pDX - info.pSY*info.pDY
}

// Signed distance of the point from the line, positive is on the right
func (info *hedgeInfo) perpDist(x, y float64) float64 {
	return (x*info.pDY - y*info.pDX + info.pPerp) / info.pLength
}

// Distance of the point's projection along the line, measured from the start
func (info *hedgeInfo) parallelDist(x, y float64) float64 {
	return (x*info.pDX + y*info.pDY + info.pPara) / info.pLength
}

// Returns -1 for left, +1 for right, or 0 for intersect.
func (info *hedgeInfo) pointOnSide(x, y float64) int {
	perp := info.perpDist(x, y)
	if math.Abs(perp) <= DIST_EPSILON {
		return 0
	}
	if perp < 0 {
		return -1
	}
	return +1
}

// Which side of partition line is the box?
// Returns -1 for left, +1 for right, or 0 for intersect.
func (info *hedgeInfo) boxOnSide(x1, y1, x2, y2 float64) int {
	x1 -= MARGIN_LEN
	y1 -= MARGIN_LEN
	x2 += MARGIN_LEN
	y2 += MARGIN_LEN

	var p1, p2 int

	// handle simple cases (vertical & horizontal lines)
	if info.pDX == 0 {
		if x1 > info.pSX {
			p1 = +1
		} else {
			p1 = -1
		}
		if x2 > info.pSX {
			p2 = +1
		} else {
			p2 = -1
		}
		if info.pDY < 0 {
			p1 = -p1
			p2 = -p2
		}
	} else if info.pDY == 0 {
		if y1 < info.pSY {
			p1 = +1
		} else {
			p1 = -1
		}
		if y2 < info.pSY {
			p2 = +1
		} else {
			p2 = -1
		}
		if info.pDX < 0 {
			p1 = -p1
			p2 = -p2
		}
	} else if info.pDX*info.pDY > 0 { // now handle the cases of positive and negative slope
		p1 = info.pointOnSide(x1, y2)
		p2 = info.pointOnSide(x2, y1)
	} else { // NEGATIVE
		p1 = info.pointOnSide(x1, y1)
		p2 = info.pointOnSide(x2, y2)
	}

	if p1 == p2 {
		return p1
	}
	return 0
}
