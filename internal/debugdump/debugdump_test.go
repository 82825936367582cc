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

package debugdump

import (
	"bytes"
	"image/color"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/vigilantdoomer/hedgebsp/internal/bsp"
	"github.com/vigilantdoomer/hedgebsp/internal/level"
	"github.com/vigilantdoomer/hedgebsp/internal/mapdata"
)

func twoRooms(t *testing.T) *level.Level {
	b := mapdata.NewBuilder("MAP01")
	a := b.Sector(0, 128)
	c := b.Sector(0, 128)
	v0 := b.Vertex(0, 0)
	v1 := b.Vertex(0, 64)
	v2 := b.Vertex(64, 64)
	v3 := b.Vertex(64, 0)
	v4 := b.Vertex(128, 64)
	v5 := b.Vertex(128, 0)
	b.Line(v0, v1, a, mapdata.NoIndex)
	b.Line(v1, v2, a, mapdata.NoIndex)
	b.Line(v3, v0, a, mapdata.NoIndex)
	b.Line(v2, v3, a, c)
	b.Line(v2, v4, c, mapdata.NoIndex)
	b.Line(v4, v5, c, mapdata.NoIndex)
	b.Line(v5, v3, c, mapdata.NoIndex)
	lvl, err := bsp.Compile(b.Map())
	require.NoError(t, err)
	return lvl
}

func rgba(c color.Color) color.RGBA {
	return color.RGBAModel.Convert(c).(color.RGBA)
}

func TestWriteBMPDecodes(t *testing.T) {
	lvl := twoRooms(t)
	var buf bytes.Buffer
	require.NoError(t, WriteBMP(&buf, lvl))

	img, err := bmp.Decode(&buf)
	require.NoError(t, err)
	b := img.Bounds()
	assert.Equal(t, 128+2*imageMargin+1, b.Dx())
	assert.Equal(t, 64+2*imageMargin+1, b.Dy())

	assert.Equal(t, color.RGBA{0, 0, 0, 255}, rgba(img.At(0, 0)))
	// shared wall at x=64
	assert.Equal(t, colTwoSided, rgba(img.At(64+imageMargin, 36)))
	// bottom wall of the left room, y=0 is the bottom row of the map
	assert.Equal(t, colWall, rgba(img.At(32+imageMargin, b.Dy()-1-imageMargin)))
	// corner of the map
	assert.Equal(t, colVertex, rgba(img.At(imageMargin, imageMargin)))
}

func TestLargeLevelIsScaledDown(t *testing.T) {
	b := mapdata.NewBuilder("MAP02")
	sec := b.Sector(0, 128)
	b.Polygon(sec, [2]float64{0, 0}, [2]float64{0, 4096}, [2]float64{8192, 4096}, [2]float64{8192, 0})
	lvl, err := bsp.Compile(b.Map())
	require.NoError(t, err)

	img := Render(lvl)
	assert.Equal(t, MAX_IMAGE_SIZE+1, img.Bounds().Dx())
	assert.Less(t, img.Bounds().Dy(), MAX_IMAGE_SIZE/2+2*imageMargin+2)
}

func TestDumpLevel(t *testing.T) {
	dir := t.TempDir()
	where, err := DumpLevel(dir, twoRooms(t))
	require.NoError(t, err)
	f, err := os.Open(where)
	require.NoError(t, err)
	defer f.Close()
	_, err = bmp.Decode(f)
	assert.NoError(t, err)
}
