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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilantdoomer/hedgebsp/internal/mapdata"
)

type testLump struct {
	name string
	data []byte
}

func encode(t *testing.T, data interface{}) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, data))
	return buf.Bytes()
}

func makeWad(t *testing.T, lumps []testLump) []byte {
	t.Helper()
	var body bytes.Buffer
	entries := make([]LumpEntry, len(lumps))
	for i, l := range lumps {
		entries[i] = LumpEntry{
			FilePos: uint32(12 + body.Len()),
			Size:    uint32(len(l.data)),
			Name:    lumpName(l.name),
		}
		body.Write(l.data)
	}
	var out bytes.Buffer
	hdr := WadHeader{
		MagicSig:       PWAD_MAGIC_SIG,
		LumpCount:      uint32(len(lumps)),
		DirectoryStart: uint32(12 + body.Len()),
	}
	require.NoError(t, binary.Write(&out, binary.LittleEndian, &hdr))
	out.Write(body.Bytes())
	require.NoError(t, binary.Write(&out, binary.LittleEndian, entries))
	return out.Bytes()
}

// A 64x64 room, shift moves it along x
func roomLumps(t *testing.T, marker string, shift int16) []testLump {
	verts := []Vertex{{shift, 0}, {shift, 64}, {shift + 64, 64}, {shift + 64, 0}}
	lines := make([]Linedef, 4)
	sides := make([]Sidedef, 4)
	for i := range lines {
		lines[i] = Linedef{
			StartVertex: uint16(i),
			EndVertex:   uint16((i + 1) % 4),
			Flags:       1,
			FrontSdef:   uint16(i),
			BackSdef:    SIDEDEF_NONE,
		}
	}
	sectors := []Sector{{FloorHeight: 0, CeilingHeight: 128}}
	return []testLump{
		{marker, nil},
		{"THINGS", nil},
		{"LINEDEFS", encode(t, lines)},
		{"SIDEDEFS", encode(t, sides)},
		{"VERTEXES", encode(t, verts)},
		{"SECTORS", encode(t, sectors)},
	}
}

func testWad(t *testing.T) []byte {
	var lumps []testLump
	lumps = append(lumps, testLump{"PLAYPAL", []byte{1, 2, 3}})
	lumps = append(lumps, roomLumps(t, "MAP01", 0)...)
	broken := roomLumps(t, "MAP02", 0)
	lumps = append(lumps, broken[:len(broken)-1]...) // no SECTORS
	lumps = append(lumps, roomLumps(t, "E1M1", 128)...)
	lumps = append(lumps, testLump{"DEMO1", []byte("demo")})
	return makeWad(t, lumps)
}

func TestReadDirectoryRejectsNonWad(t *testing.T) {
	_, err := ReadDirectory(bytes.NewReader([]byte("JUNKJUNKJUNKJUNK")))
	assert.ErrorIs(t, err, ErrNotWad)
	_, err = ReadDirectory(bytes.NewReader([]byte("PW")))
	assert.Error(t, err)
}

func TestFindLevels(t *testing.T) {
	r := bytes.NewReader(testWad(t))
	dir, err := ReadDirectory(r)
	require.NoError(t, err)
	assert.False(t, dir.IsIWAD())
	require.Len(t, dir.Entries, 1+6+5+6+1)

	levels := FindLevels(dir, nil)
	require.Len(t, levels, 3)
	assert.Equal(t, "MAP01", levels[0].Name)
	assert.Equal(t, 1, levels[0].Marker)
	assert.Equal(t, 6, levels[0].Last)
	assert.Equal(t, FORMAT_DOOM, levels[0].Format)
	assert.Equal(t, 6, levels[0].Lumps["SECTORS"])
	// DEMO1 isn't a level lump
	assert.Equal(t, len(dir.Entries)-2, levels[2].Last)

	only := FindLevels(dir, &Filter{Levels: [][]byte{[]byte("E1M1")}})
	require.Len(t, only, 1)
	assert.Equal(t, "E1M1", only[0].Name)

	except := FindLevels(dir, &Filter{Levels: [][]byte{[]byte("E1M1")}, Prohibits: true})
	require.Len(t, except, 2)
	assert.Equal(t, "MAP02", except[1].Name)
}

func TestLoadLevel(t *testing.T) {
	r := bytes.NewReader(testWad(t))
	dir, err := ReadDirectory(r)
	require.NoError(t, err)
	levels := FindLevels(dir, nil)

	m, err := LoadLevel(r, dir, levels[0])
	require.NoError(t, err)
	assert.Equal(t, "MAP01", m.Name)
	require.Len(t, m.Vertexes, 4)
	assert.Equal(t, mapdata.Vertex{X: 64, Y: 64}, m.Vertexes[2])
	require.Len(t, m.LineDefs, 4)
	assert.Equal(t, 3, m.LineDefs[3].V1)
	assert.Equal(t, 0, m.LineDefs[3].V2)
	assert.Equal(t, 3, m.LineDefs[3].FrontSide)
	assert.Equal(t, mapdata.NoIndex, m.LineDefs[3].BackSide)
	require.Len(t, m.Sectors, 1)
	assert.Equal(t, 128, m.Sectors[0].CeilingHeight)
	assert.Equal(t, 0, m.SideSector(0, 0))

	_, err = LoadLevel(r, dir, levels[1])
	assert.ErrorIs(t, err, ErrMissingLump)
}

func TestDigest(t *testing.T) {
	r := bytes.NewReader(testWad(t))
	dir, err := ReadDirectory(r)
	require.NoError(t, err)
	levels := FindLevels(dir, nil)

	d1, err := levels[0].Digest(r, dir)
	require.NoError(t, err)
	again, err := levels[0].Digest(r, dir)
	require.NoError(t, err)
	assert.Equal(t, d1, again)

	d3, err := levels[2].Digest(r, dir)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3, "shifted geometry")

	_, err = levels[1].Digest(r, dir)
	assert.ErrorIs(t, err, ErrMissingLump)
}

func TestWriterAddsLevelLump(t *testing.T) {
	input := testWad(t)
	r := bytes.NewReader(input)
	dir, err := ReadDirectory(r)
	require.NoError(t, err)
	levels := FindLevels(dir, nil)

	w := NewWriter(r, dir)
	w.AddLevel(levels[0], []byte("first"))
	w.AddLevel(levels[2], []byte("third!"))
	var out bytes.Buffer
	n, err := w.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, int64(out.Len()), n)

	r2 := bytes.NewReader(out.Bytes())
	dir2, err := ReadDirectory(r2)
	require.NoError(t, err)
	require.Len(t, dir2.Entries, len(dir.Entries)+2)
	levels2 := FindLevels(dir2, nil)
	require.Len(t, levels2, 3)

	data, err := levels2[0].ReadLump(r2, dir2, HEDGEBSP_LUMP)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data)
	assert.Equal(t, levels2[0].Lumps[HEDGEBSP_LUMP], levels2[0].Last)
	_, err = levels2[1].ReadLump(r2, dir2, HEDGEBSP_LUMP)
	assert.ErrorIs(t, err, ErrMissingLump)
	data, err = levels2[2].ReadLump(r2, dir2, HEDGEBSP_LUMP)
	require.NoError(t, err)
	assert.Equal(t, []byte("third!"), data)

	// the rest survives
	m, err := LoadLevel(r2, dir2, levels2[0])
	require.NoError(t, err)
	assert.Len(t, m.LineDefs, 4)
	last := dir2.Entries[len(dir2.Entries)-1]
	assert.Equal(t, "DEMO1", string(ByteSliceBeforeTerm(last.Name[:])))

	// Rebuilding replaces the lump instead of adding another one
	w = NewWriter(r2, dir2)
	w.AddLevel(levels2[0], []byte("again"))
	var out2 bytes.Buffer
	_, err = w.WriteTo(&out2)
	require.NoError(t, err)
	r3 := bytes.NewReader(out2.Bytes())
	dir3, err := ReadDirectory(r3)
	require.NoError(t, err)
	assert.Len(t, dir3.Entries, len(dir2.Entries))
	levels3 := FindLevels(dir3, nil)
	data, err = levels3[0].ReadLump(r3, dir3, HEDGEBSP_LUMP)
	require.NoError(t, err)
	assert.Equal(t, []byte("again"), data)
	data, err = levels3[2].ReadLump(r3, dir3, HEDGEBSP_LUMP)
	require.NoError(t, err)
	assert.Equal(t, []byte("third!"), data)
}
