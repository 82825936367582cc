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
	"encoding/binary"
	"fmt"
	"io"
)

// Writer assembles the output wad. Every lump of the input wad is copied as
// is, except stale HEDGEBSP lumps of rebuilt levels, and a fresh HEDGEBSP lump
// holding the packed level goes right after the last lump of each level that
// was built. Levels that weren't built keep whatever they had
type Writer struct {
	r     io.ReaderAt
	dir   *Directory
	built map[int][]byte // level marker index -> packed level
	last  map[int]int    // index of the last lump of level -> marker index
	stale map[int]bool   // HEDGEBSP lumps that get replaced
}

func NewWriter(r io.ReaderAt, dir *Directory) *Writer {
	return &Writer{
		r:     r,
		dir:   dir,
		built: make(map[int][]byte),
		last:  make(map[int]int),
		stale: make(map[int]bool),
	}
}

// AddLevel schedules packed level data to be written for lvl
func (w *Writer) AddLevel(lvl *LevelLumps, packed []byte) {
	w.built[lvl.Marker] = packed
	w.last[lvl.Last] = lvl.Marker
	if idx, ok := lvl.Lumps[HEDGEBSP_LUMP]; ok {
		w.stale[idx] = true
	}
}

func lumpName(s string) [8]byte {
	var name [8]byte
	copy(name[:], s)
	return name
}

// Computes the output directory. Lump positions are known upfront, so the
// whole wad can be streamed without seeking back to patch the header
func (w *Writer) layout() (WadHeader, []LumpEntry, []int) {
	var le []LumpEntry
	var src []int // input lump index, or -2-marker for the level's HEDGEBSP
	curPos := uint32(12)
	for i, e := range w.dir.Entries {
		if !w.stale[i] {
			le = append(le, LumpEntry{FilePos: curPos, Size: e.Size, Name: e.Name})
			src = append(src, i)
			curPos += e.Size
		}
		if marker, ok := w.last[i]; ok {
			data := w.built[marker]
			le = append(le, LumpEntry{
				FilePos: curPos,
				Size:    uint32(len(data)),
				Name:    lumpName(HEDGEBSP_LUMP),
			})
			src = append(src, -2-marker)
			curPos += uint32(len(data))
		}
	}
	hdr := WadHeader{
		MagicSig:       w.dir.Header.MagicSig,
		LumpCount:      uint32(len(le)),
		DirectoryStart: curPos,
	}
	return hdr, le, src
}

// WriteTo writes the complete output wad to fout
func (w *Writer) WriteTo(fout io.Writer) (int64, error) {
	hdr, le, src := w.layout()
	var written int64
	if err := binary.Write(fout, binary.LittleEndian, &hdr); err != nil {
		return written, fmt.Errorf("writing wad header: %w", err)
	}
	written += 12
	for i, s := range src {
		if s <= -2 {
			data := w.built[-2-s]
			n, err := fout.Write(data)
			written += int64(n)
			if err != nil {
				return written, fmt.Errorf("writing lump #%d (%s): %w", i, HEDGEBSP_LUMP, err)
			}
			continue
		}
		e := w.dir.Entries[s]
		sr := io.NewSectionReader(w.r, int64(e.FilePos), int64(e.Size))
		n, err := io.Copy(fout, sr)
		written += n
		if err != nil {
			return written, fmt.Errorf("copying lump #%d (%s): %w", i,
				ByteSliceBeforeTerm(e.Name[:]), err)
		}
		if n != int64(e.Size) {
			return written, fmt.Errorf("copying lump #%d (%s): got %d bytes of %d",
				i, ByteSliceBeforeTerm(e.Name[:]), n, e.Size)
		}
	}
	if err := binary.Write(fout, binary.LittleEndian, le); err != nil {
		return written, fmt.Errorf("writing wad directory: %w", err)
	}
	written += int64(len(le)) * 16
	return written, nil
}
