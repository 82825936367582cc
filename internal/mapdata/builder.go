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
package mapdata

// Builder assembles a Map by hand. Used by tests and by anyone who has map
// geometry that didn't come from a wad
type Builder struct {
	m Map
}

func NewBuilder(name string) *Builder {
	return &Builder{m: Map{Name: name}}
}

func (b *Builder) Vertex(x, y float64) int {
	b.m.Vertexes = append(b.m.Vertexes, Vertex{X: x, Y: y})
	return len(b.m.Vertexes) - 1
}

func (b *Builder) Sector(floor, ceiling int) int {
	b.m.Sectors = append(b.m.Sectors, Sector{
		FloorHeight:   floor,
		CeilingHeight: ceiling,
	})
	return len(b.m.Sectors) - 1
}

func (b *Builder) sideDef(sector int) int {
	if sector == NoIndex {
		return NoIndex
	}
	b.m.SideDefs = append(b.m.SideDefs, SideDef{Sector: sector})
	return len(b.m.SideDefs) - 1
}

// Line adds a linedef from v1 to v2. Front sector is to the right of the
// direction v1->v2, back sector (NoIndex for one-sided line) to the left
func (b *Builder) Line(v1, v2 int, front, back int) int {
	ld := LineDef{
		V1:        v1,
		V2:        v2,
		FrontSide: b.sideDef(front),
		BackSide:  b.sideDef(back),
	}
	if ld.BackSide != NoIndex {
		ld.Flags |= LF_TWOSIDED
	} else {
		ld.Flags |= LF_IMPASSABLE
	}
	b.m.LineDefs = append(b.m.LineDefs, ld)
	return len(b.m.LineDefs) - 1
}

// RawLine appends linedef as is, without creating sidedefs. Lets tests
// construct broken references
func (b *Builder) RawLine(ld LineDef) int {
	b.m.LineDefs = append(b.m.LineDefs, ld)
	return len(b.m.LineDefs) - 1
}

// Polygon adds vertices and one-sided lines forming a closed loop around
// sector. Points must go clockwise, so that the sector is on the right
func (b *Builder) Polygon(sector int, pts ...[2]float64) []int {
	vs := make([]int, len(pts))
	for i, p := range pts {
		vs[i] = b.Vertex(p[0], p[1])
	}
	lines := make([]int, len(vs))
	for i := range vs {
		lines[i] = b.Line(vs[i], vs[(i+1)%len(vs)], sector, NoIndex)
	}
	return lines
}

func (b *Builder) Map() *Map {
	m := b.m
	return &m
}
