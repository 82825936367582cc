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

// Renders hardened levels into bitmaps, to eyeball what leafs look like
package debugdump

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"

	"github.com/vigilantdoomer/hedgebsp/internal/level"
)

// Longest side of the image in pixels
const MAX_IMAGE_SIZE = 1024

const imageMargin = 4

var (
	colWall     = color.RGBA{255, 0, 0, 255}
	colTwoSided = color.RGBA{0, 255, 0, 255}
	colMini     = color.RGBA{80, 80, 160, 255}
	colVertex   = color.RGBA{255, 255, 255, 255}
)

// Render draws every leaf ring of lvl. One-sided walls are red, two-sided
// ones green, miniedges dim blue; leaf corners are white dots
func Render(lvl *level.Level) *image.RGBA {
	box := lvl.Bounds()
	w := box.MaxX - box.MinX
	h := box.MaxY - box.MinY
	if len(lvl.HEdges) == 0 || (w <= 0 && h <= 0) {
		frame := image.NewRGBA(image.Rect(0, 0, 1, 1))
		draw.Draw(frame, frame.Bounds(), &image.Uniform{color.Black}, image.Point{}, draw.Src)
		return frame
	}
	scale := float64(MAX_IMAGE_SIZE-2*imageMargin) / math.Max(w, h)
	if scale > 1 {
		scale = 1
	}
	width := int(math.Ceil(w*scale)) + 2*imageMargin + 1
	height := int(math.Ceil(h*scale)) + 2*imageMargin + 1
	frame := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(frame, frame.Bounds(), &image.Uniform{color.Black}, image.Point{}, draw.Src)

	// map Y grows upwards, image Y downwards
	project := func(v level.Vertex) (int, int) {
		x := imageMargin + int(math.Round((v.X-box.MinX)*scale))
		y := height - 1 - imageMargin - int(math.Round((v.Y-box.MinY)*scale))
		return x, y
	}

	line := func(x1, y1, x2, y2 int, col color.RGBA) {
		steps := max(abs(x2-x1), abs(y2-y1))
		if steps == 0 {
			frame.Set(x1, y1, col)
			return
		}
		for i := 0; i <= steps; i++ {
			t := float64(i) / float64(steps)
			x := x1 + int(math.Round(t*float64(x2-x1)))
			y := y1 + int(math.Round(t*float64(y2-y1)))
			frame.Set(x, y, col)
		}
	}

	// miniedges go first so walls are drawn over them
	for pass := 0; pass < 2; pass++ {
		for _, he := range lvl.HEdges {
			mini := he.LineDef == level.NoIndex
			if mini != (pass == 0) {
				continue
			}
			col := colMini
			if !mini {
				col = colWall
				if he.Twin != level.NoIndex {
					col = colTwoSided
				}
			}
			x1, y1 := project(lvl.Vertexes[he.V1])
			x2, y2 := project(lvl.Vertexes[he.V2])
			line(x1, y1, x2, y2, col)
		}
	}
	for _, he := range lvl.HEdges {
		x, y := project(lvl.Vertexes[he.V1])
		frame.Set(x, y, colVertex)
	}
	return frame
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// WriteBMP renders lvl and encodes it as BMP into w
func WriteBMP(w io.Writer, lvl *level.Level) error {
	return bmp.Encode(w, Render(lvl))
}

// DumpLevel writes <dir>/<level name>.bmp and returns the file path
func DumpLevel(dir string, lvl *level.Level) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating dump directory: %w", err)
	}
	where := filepath.Join(dir, lvl.Name+".bmp")
	fout, err := os.Create(where)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", where, err)
	}
	if err := WriteBMP(fout, lvl); err != nil {
		fout.Close()
		return "", fmt.Errorf("encoding %s: %w", where, err)
	}
	if err := fout.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", where, err)
	}
	return where, nil
}
