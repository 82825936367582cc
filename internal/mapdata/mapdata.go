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

// Package mapdata holds raw map geometry as the nodes builder consumes it:
// flat arrays referencing each other by index, exactly as they were loaded
package mapdata

// NoIndex marks an absent reference (no back sidedef, no sector, etc.)
const NoIndex = -1

// Linedef flags the builder cares about. Same values as in Doom LINEDEFS lump
const (
	LF_IMPASSABLE = uint16(0x0001)
	LF_TWOSIDED   = uint16(0x0004)
)

type Vertex struct {
	X, Y float64
}

type LineDef struct {
	V1, V2    int
	FrontSide int // sidedef index, or NoIndex
	BackSide  int // sidedef index, or NoIndex
	Flags     uint16
}

// Texture fields are irrelevant to the builder and are not carried
type SideDef struct {
	Sector int
}

type Sector struct {
	FloorHeight   int
	CeilingHeight int
}

type Map struct {
	Name     string
	Vertexes []Vertex
	LineDefs []LineDef
	SideDefs []SideDef
	Sectors  []Sector
}

func (m *Map) ValidVertex(idx int) bool {
	return idx >= 0 && idx < len(m.Vertexes)
}

func (m *Map) ValidSideDef(idx int) bool {
	return idx >= 0 && idx < len(m.SideDefs)
}

func (m *Map) ValidSector(idx int) bool {
	return idx >= 0 && idx < len(m.Sectors)
}

// SideSector returns sector of the sidedef on given side (0 front, 1 back) of
// a linedef, or NoIndex if there is no such sidedef or it is broken
func (m *Map) SideSector(line int, side int) int {
	ld := &m.LineDefs[line]
	sdef := ld.FrontSide
	if side != 0 {
		sdef = ld.BackSide
	}
	if !m.ValidSideDef(sdef) {
		return NoIndex
	}
	sec := m.SideDefs[sdef].Sector
	if !m.ValidSector(sec) {
		return NoIndex
	}
	return sec
}

// SideDefOf returns sidedef index on given side, or NoIndex
func (m *Map) SideDefOf(line int, side int) int {
	ld := &m.LineDefs[line]
	sdef := ld.FrontSide
	if side != 0 {
		sdef = ld.BackSide
	}
	if !m.ValidSideDef(sdef) {
		return NoIndex
	}
	return sdef
}
