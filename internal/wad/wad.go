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
package wad

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/vigilantdoomer/hedgebsp/internal/mapdata"
)

var (
	ErrNotWad      = errors.New("not a wad file")
	ErrMissingLump = errors.New("level is missing mandatory lump")
)

// Lumps that may belong to a level, in the order they normally appear
var LUMP_SORT_ORDER = []string{"THINGS", "LINEDEFS", "SIDEDEFS", "VERTEXES", "SEGS", "SSECTORS", "NODES", "SECTORS", "REJECT", "BLOCKMAP", "BEHAVIOR", "SCRIPTS", HEDGEBSP_LUMP}

// Without these the level can't be built
var LUMP_MUSTEXIST = []string{"LINEDEFS", "SIDEDEFS", "VERTEXES", "SECTORS"}

type Directory struct {
	Header  WadHeader
	Entries []LumpEntry
}

func (d *Directory) IsIWAD() bool {
	return d.Header.MagicSig == IWAD_MAGIC_SIG
}

// A level as found in directory: the marker lump and lumps that follow it
type LevelLumps struct {
	Name   string
	Marker int // index of marker lump in directory
	Last   int // index of the last lump that belongs to the level
	Format int
	Lumps  map[string]int // lump name -> index in directory
}

// Which levels the user wants (not) to be rebuilt. Names must be upper case
type Filter struct {
	Levels    [][]byte
	Prohibits bool
}

// ByteSliceBeforeTerm returns a part of the original bytes
// excluding everything that starts with zero-byte character.
// This allows string operations (such as pattern matching) to be performed
// correctly on returned value
func ByteSliceBeforeTerm(b []byte) []byte {
	i := bytes.IndexByte(b, 0)
	if i == -1 {
		return b
	}
	return b[:i]
}

func IsALevel(lumpName []byte) bool {
	return MAP_SEQUEL.Match(lumpName) || MAP_ExMx.Match(lumpName)
}

func ReadDirectory(r io.ReaderAt) (*Directory, error) {
	dir := new(Directory)
	err := binary.Read(io.NewSectionReader(r, 0, 12), binary.LittleEndian,
		&dir.Header)
	if err != nil {
		return nil, fmt.Errorf("couldn't read file header: %w", err)
	}
	if dir.Header.MagicSig != IWAD_MAGIC_SIG && dir.Header.MagicSig != PWAD_MAGIC_SIG {
		return nil, ErrNotWad
	}
	// Read in whole directory at once
	dir.Entries = make([]LumpEntry, dir.Header.LumpCount)
	sr := io.NewSectionReader(r, int64(dir.Header.DirectoryStart),
		int64(dir.Header.LumpCount)*16)
	if err := binary.Read(sr, binary.LittleEndian, dir.Entries); err != nil {
		return nil, fmt.Errorf("failed to read lump info from a wad's directory (%d offset): %w",
			dir.Header.DirectoryStart, err)
	}
	return dir, nil
}

// Returns whether a level should be rebuilt based on the filter
func (f *Filter) CanRebuildThisLevel(levelName []byte) bool {
	if f == nil || len(f.Levels) == 0 {
		return true
	}
	for _, entry := range f.Levels {
		if bytes.Equal(entry, levelName) {
			// filter either includes or excludes specific levels
			return !f.Prohibits
		}
	}
	// if filter was inclusive, return false, if it was excluding levels from
	// being rebuilt, return true
	return f.Prohibits
}

// FindLevels walks the directory and collects every level marker together with
// the level lumps that immediately follow it
func FindLevels(dir *Directory, filter *Filter) []*LevelLumps {
	var res []*LevelLumps
	var cur *LevelLumps
	for i, entry := range dir.Entries {
		bname := ByteSliceBeforeTerm(entry.Name[:])
		if IsALevel(bname) {
			cur = nil
			if filter.CanRebuildThisLevel(bname) {
				cur = &LevelLumps{
					Name:   string(bname),
					Marker: i,
					Last:   i,
					Format: FORMAT_DOOM,
					Lumps:  make(map[string]int),
				}
				res = append(res, cur)
			}
			continue
		}
		if cur == nil {
			continue
		}
		sname := string(bname)
		if !isLevelLump(sname) {
			// level is over
			cur = nil
			continue
		}
		cur.Last = i
		if _, dup := cur.Lumps[sname]; dup {
			// only the first instance is honored
			continue
		}
		cur.Lumps[sname] = i
		if sname == "BEHAVIOR" {
			cur.Format = FORMAT_HEXEN
		}
	}
	return res
}

func isLevelLump(name string) bool {
	for _, s := range LUMP_SORT_ORDER {
		if s == name {
			return true
		}
	}
	return false
}

func (lvl *LevelLumps) entry(dir *Directory, name string) (LumpEntry, error) {
	idx, ok := lvl.Lumps[name]
	if !ok {
		return LumpEntry{}, fmt.Errorf("%w: %s in %s", ErrMissingLump, name, lvl.Name)
	}
	return dir.Entries[idx], nil
}

func (lvl *LevelLumps) readLump(r io.ReaderAt, dir *Directory, name string,
	recSize uint32, data interface{}) error {
	e, err := lvl.entry(dir, name)
	if err != nil {
		return err
	}
	if e.Size%recSize != 0 {
		return fmt.Errorf("lump %s of level %s has size %d not multiple of %d",
			name, lvl.Name, e.Size, recSize)
	}
	sr := io.NewSectionReader(r, int64(e.FilePos), int64(e.Size))
	if err := binary.Read(sr, binary.LittleEndian, data); err != nil {
		return fmt.Errorf("reading lump %s of level %s: %w", name, lvl.Name, err)
	}
	return nil
}

// ReadLump returns the raw bytes of a lump of the level
func (lvl *LevelLumps) ReadLump(r io.ReaderAt, dir *Directory, name string) ([]byte, error) {
	e, err := lvl.entry(dir, name)
	if err != nil {
		return nil, err
	}
	data := make([]byte, e.Size)
	// ReaderAt may return io.EOF together with a complete read
	if n, err := r.ReadAt(data, int64(e.FilePos)); n < len(data) {
		return nil, fmt.Errorf("reading lump %s of level %s: %w", name, lvl.Name, err)
	}
	return data, nil
}

func (lvl *LevelLumps) count(dir *Directory, name string, recSize uint32) (int, error) {
	e, err := lvl.entry(dir, name)
	if err != nil {
		return 0, err
	}
	return int(e.Size / recSize), nil
}

// LoadLevel reads level geometry lumps and converts them into builder input
func LoadLevel(r io.ReaderAt, dir *Directory, lvl *LevelLumps) (*mapdata.Map, error) {
	for _, name := range LUMP_MUSTEXIST {
		if _, err := lvl.entry(dir, name); err != nil {
			return nil, err
		}
	}
	m := &mapdata.Map{Name: lvl.Name}

	cnt, _ := lvl.count(dir, "VERTEXES", DOOM_VERTEX_SIZE)
	vertices := make([]Vertex, cnt)
	if err := lvl.readLump(r, dir, "VERTEXES", DOOM_VERTEX_SIZE, vertices); err != nil {
		return nil, err
	}
	m.Vertexes = make([]mapdata.Vertex, len(vertices))
	for i, v := range vertices {
		m.Vertexes[i] = mapdata.Vertex{X: float64(v.XPos), Y: float64(v.YPos)}
	}

	if lvl.Format == FORMAT_HEXEN {
		cnt, _ = lvl.count(dir, "LINEDEFS", HEXEN_LINEDEF_SIZE)
		linedefs := make([]HexenLinedef, cnt)
		if err := lvl.readLump(r, dir, "LINEDEFS", HEXEN_LINEDEF_SIZE, linedefs); err != nil {
			return nil, err
		}
		m.LineDefs = make([]mapdata.LineDef, len(linedefs))
		for i, l := range linedefs {
			m.LineDefs[i] = convertLinedef(l.StartVertex, l.EndVertex, l.Flags,
				l.FrontSdef, l.BackSdef)
		}
	} else {
		cnt, _ = lvl.count(dir, "LINEDEFS", DOOM_LINEDEF_SIZE)
		linedefs := make([]Linedef, cnt)
		if err := lvl.readLump(r, dir, "LINEDEFS", DOOM_LINEDEF_SIZE, linedefs); err != nil {
			return nil, err
		}
		m.LineDefs = make([]mapdata.LineDef, len(linedefs))
		for i, l := range linedefs {
			m.LineDefs[i] = convertLinedef(l.StartVertex, l.EndVertex, l.Flags,
				l.FrontSdef, l.BackSdef)
		}
	}

	cnt, _ = lvl.count(dir, "SIDEDEFS", DOOM_SIDEDEF_SIZE)
	sidedefs := make([]Sidedef, cnt)
	if err := lvl.readLump(r, dir, "SIDEDEFS", DOOM_SIDEDEF_SIZE, sidedefs); err != nil {
		return nil, err
	}
	m.SideDefs = make([]mapdata.SideDef, len(sidedefs))
	for i, s := range sidedefs {
		m.SideDefs[i] = mapdata.SideDef{Sector: int(s.Sector)}
	}

	cnt, _ = lvl.count(dir, "SECTORS", DOOM_SECTOR_SIZE)
	sectors := make([]Sector, cnt)
	if err := lvl.readLump(r, dir, "SECTORS", DOOM_SECTOR_SIZE, sectors); err != nil {
		return nil, err
	}
	m.Sectors = make([]mapdata.Sector, len(sectors))
	for i, s := range sectors {
		m.Sectors[i] = mapdata.Sector{
			FloorHeight:   int(s.FloorHeight),
			CeilingHeight: int(s.CeilingHeight),
		}
	}
	return m, nil
}

func convertLinedef(v1, v2, flags, front, back uint16) mapdata.LineDef {
	ld := mapdata.LineDef{
		V1:        int(v1),
		V2:        int(v2),
		FrontSide: mapdata.NoIndex,
		BackSide:  mapdata.NoIndex,
		Flags:     flags,
	}
	if front != SIDEDEF_NONE {
		ld.FrontSide = int(front)
	}
	if back != SIDEDEF_NONE {
		ld.BackSide = int(back)
	}
	return ld
}

// Digest hashes the raw geometry lumps of a level. Two levels with the same
// digest produce the same BSP given the same build options
func (lvl *LevelLumps) Digest(r io.ReaderAt, dir *Directory) (uint64, error) {
	h := xxhash.New()
	for _, name := range LUMP_MUSTEXIST {
		e, err := lvl.entry(dir, name)
		if err != nil {
			return 0, err
		}
		h.WriteString(name)
		sr := io.NewSectionReader(r, int64(e.FilePos), int64(e.Size))
		if _, err := io.Copy(h, sr); err != nil {
			return 0, fmt.Errorf("hashing lump %s of level %s: %w", name, lvl.Name, err)
		}
	}
	return h.Sum64(), nil
}
