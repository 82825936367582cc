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

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilantdoomer/hedgebsp/internal/level"
	"github.com/vigilantdoomer/hedgebsp/internal/mapdata"
)

// Remembers warnings so tests can look for them
type recordSink struct {
	warnings []string
}

func (r *recordSink) Printf(s string, a ...interface{})                      {}
func (r *recordSink) Verbose(verbosityLevel int, s string, a ...interface{}) {}
func (r *recordSink) Debug(s string, a ...interface{})                       {}
func (r *recordSink) Warn(s string, a ...interface{}) {
	r.warnings = append(r.warnings, fmt.Sprintf(s, a...))
}

func (r *recordSink) has(substr string) bool {
	for _, w := range r.warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func singleRoom() *mapdata.Map {
	b := mapdata.NewBuilder("ROOM")
	sec := b.Sector(0, 128)
	b.Polygon(sec, [2]float64{0, 0}, [2]float64{0, 64}, [2]float64{64, 64},
		[2]float64{64, 0})
	return b.Map()
}

// Two 64x64 rooms, the wall at x=64 between them is two-sided
func twoRooms() *mapdata.Map {
	b := mapdata.NewBuilder("TWO")
	a := b.Sector(0, 128)
	c := b.Sector(16, 128)
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
	return b.Map()
}

// A square room with a square pillar in the middle. Needs splits and
// miniedges
func pillarRoom() *mapdata.Map {
	b := mapdata.NewBuilder("PILLAR")
	sec := b.Sector(0, 128)
	b.Polygon(sec, [2]float64{0, 0}, [2]float64{0, 256}, [2]float64{256, 256},
		[2]float64{256, 0})
	// counter-clockwise, so that the room is outside the pillar
	b.Polygon(sec, [2]float64{96, 96}, [2]float64{160, 96}, [2]float64{160, 160},
		[2]float64{96, 160})
	return b.Map()
}

// Concave room with diagonal walls
func bowtieRoom() *mapdata.Map {
	b := mapdata.NewBuilder("BOWTIE")
	sec := b.Sector(0, 128)
	b.Polygon(sec, [2]float64{0, 0}, [2]float64{0, 200}, [2]float64{100, 120},
		[2]float64{200, 200}, [2]float64{200, 0}, [2]float64{100, 60})
	return b.Map()
}

// Like twoRooms, but the shared wall is two linedefs meeting at a 0.01 degree
// bend, too little for the classifier to tell them apart from one line
func bentWallRooms() *mapdata.Map {
	b := mapdata.NewBuilder("BENT")
	a := b.Sector(0, 128)
	c := b.Sector(16, 128)
	d := 32 * math.Tan(0.01*math.Pi/180)
	v0 := b.Vertex(0, 0)
	v1 := b.Vertex(0, 64)
	v2 := b.Vertex(64+d, 64)
	v3 := b.Vertex(64, 32)
	v4 := b.Vertex(64, 0)
	v5 := b.Vertex(128, 64)
	v6 := b.Vertex(128, 0)
	b.Line(v0, v1, a, mapdata.NoIndex)
	b.Line(v1, v2, a, mapdata.NoIndex)
	b.Line(v2, v3, a, c)
	b.Line(v3, v4, a, c)
	b.Line(v4, v0, a, mapdata.NoIndex)
	b.Line(v2, v5, c, mapdata.NoIndex)
	b.Line(v5, v6, c, mapdata.NoIndex)
	b.Line(v6, v4, c, mapdata.NoIndex)
	return b.Map()
}

// A square room west of a two-sided wall and a notched room east of it. The
// west room becomes a leaf first, then the partition along the notch cuts
// the east side of the wall, whose twin already sits in that leaf
func notchedRooms() *mapdata.Map {
	b := mapdata.NewBuilder("NOTCH")
	a := b.Sector(0, 128)
	c := b.Sector(16, 128)
	a0 := b.Vertex(0, 0)
	a1 := b.Vertex(0, 64)
	a2 := b.Vertex(64, 64)
	a3 := b.Vertex(64, 0)
	c1 := b.Vertex(128, 64)
	c2 := b.Vertex(128, 32)
	c3 := b.Vertex(96, 32)
	c4 := b.Vertex(90, 0)
	b.Line(a0, a1, a, mapdata.NoIndex)
	b.Line(a1, a2, a, mapdata.NoIndex)
	b.Line(a2, a3, a, c)
	b.Line(a3, a0, a, mapdata.NoIndex)
	b.Line(a2, c1, c, mapdata.NoIndex)
	b.Line(c1, c2, c, mapdata.NoIndex)
	b.Line(c2, c3, c, mapdata.NoIndex)
	b.Line(c3, c4, c, mapdata.NoIndex)
	b.Line(c4, a3, c, mapdata.NoIndex)
	return b.Map()
}

func compile(t *testing.T, m *mapdata.Map, opts ...Option) (*level.Level, Stats) {
	t.Helper()
	s := NewSession(m, opts...)
	require.NoError(t, s.Build())
	lvl, err := s.Harden()
	require.NoError(t, err)
	return lvl, s.Stats()
}

// Every ring is as long as the leaf says and each half-edge ends where the
// next one starts
func assertRingsClosed(t *testing.T, lvl *level.Level) {
	t.Helper()
	for i, lf := range lvl.Leafs {
		ring := lvl.LeafRing(i)
		require.Len(t, ring, lf.HEdgeCount)
		assert.Equal(t, lf.FirstHEdge, lvl.HEdges[ring[len(ring)-1]].Next,
			"ring of leaf %d doesn't come back to its head", i)
		for _, h := range ring {
			hd := lvl.HEdges[h]
			next := lvl.HEdges[hd.Next]
			assert.Equal(t, h, next.Prev)
			assert.Equal(t, i, hd.Leaf)
			end := lvl.Vertexes[hd.V2]
			start := lvl.Vertexes[next.V1]
			assert.InDelta(t, end.X, start.X, 1e-9, "leaf %d half-edge %d", i, h)
			assert.InDelta(t, end.Y, start.Y, 1e-9, "leaf %d half-edge %d", i, h)
		}
	}
}

func assertTwinsSymmetric(t *testing.T, lvl *level.Level) {
	t.Helper()
	for i, hd := range lvl.HEdges {
		if hd.Twin == level.NoIndex {
			assert.NotEqual(t, level.NoIndex, hd.LineDef, "miniedge %d has no twin", i)
			continue
		}
		twin := lvl.HEdges[hd.Twin]
		assert.Equal(t, i, twin.Twin)
		assert.Equal(t, hd.V1, twin.V2)
		assert.Equal(t, hd.V2, twin.V1)
		assert.Equal(t, hd.LineDef, twin.LineDef)
	}
}

// Every side of every usable linedef is covered by its half-edges, whose
// lengths add up to the length of the linedef
func assertComplete(t *testing.T, m *mapdata.Map, lvl *level.Level) {
	t.Helper()
	covered := make(map[[2]int]float64)
	for _, hd := range lvl.HEdges {
		if hd.LineDef != level.NoIndex {
			covered[[2]int{hd.LineDef, hd.Side}] += hd.Length
		}
	}
	for i, ld := range m.LineDefs {
		if !m.ValidVertex(ld.V1) || !m.ValidVertex(ld.V2) {
			continue
		}
		v1, v2 := m.Vertexes[ld.V1], m.Vertexes[ld.V2]
		length := math.Hypot(v2.X-v1.X, v2.Y-v1.Y)
		for side := 0; side < 2; side++ {
			if m.SideSector(i, side) == mapdata.NoIndex {
				continue
			}
			assert.InDelta(t, length, covered[[2]int{i, side}], 1e-6,
				"linedef %d side %d", i, side)
			sdef := m.SideDefOf(i, side)
			assert.NotEqual(t, level.NoIndex, lvl.SideHEdges[sdef].Left)
			assert.NotEqual(t, level.NoIndex, lvl.SideHEdges[sdef].Right)
		}
	}
}

func totalLeafArea(lvl *level.Level) float64 {
	area := 0.0
	for i := range lvl.Leafs {
		area += lvl.LeafArea(i)
	}
	return area
}

func TestSingleRoomIsOneLeaf(t *testing.T) {
	lvl, stats := compile(t, singleRoom())
	assert.Empty(t, lvl.Nodes)
	require.Len(t, lvl.Leafs, 1)
	assert.Len(t, lvl.HEdges, 4)
	assert.Equal(t, level.ChildRef{IsLeaf: true, Index: 0}, lvl.Root)
	assert.Equal(t, 4, lvl.Leafs[0].HEdgeCount)
	assert.Equal(t, 0, lvl.Leafs[0].Sector)
	assert.Equal(t, 0, stats.Splits)
	assert.Equal(t, 0, stats.MiniHEdges)
	assertRingsClosed(t, lvl)
	assert.InDelta(t, -4096.0, lvl.LeafArea(0), 1e-9)
}

func TestTwoRoomsShareTwins(t *testing.T) {
	m := twoRooms()
	lvl, _ := compile(t, m)
	require.Len(t, lvl.Nodes, 1)
	require.Len(t, lvl.Leafs, 2)
	assert.Equal(t, level.ChildRef{IsLeaf: false, Index: 0}, lvl.Root)

	node := lvl.Nodes[0]
	assert.Equal(t, level.Node{
		X: 64, Y: 64, DX: 0, DY: -64,
		RightBox: level.BBox{MinX: 0, MinY: 0, MaxX: 64, MaxY: 64},
		LeftBox:  level.BBox{MinX: 64, MinY: 0, MaxX: 128, MaxY: 64},
		Right:    level.ChildRef{IsLeaf: true, Index: 0},
		Left:     level.ChildRef{IsLeaf: true, Index: 1},
	}, node)

	var shared []int
	for i, hd := range lvl.HEdges {
		if hd.LineDef == 3 {
			shared = append(shared, i)
		}
	}
	require.Len(t, shared, 2)
	a, b := lvl.HEdges[shared[0]], lvl.HEdges[shared[1]]
	assert.Equal(t, shared[1], a.Twin)
	assert.Equal(t, shared[0], b.Twin)
	assert.NotEqual(t, a.Sector, b.Sector)

	assert.Equal(t, 0, lvl.Leafs[lvl.LocateLeaf(32, 32)].Sector)
	assert.Equal(t, 1, lvl.Leafs[lvl.LocateLeaf(96, 32)].Sector)
	assertRingsClosed(t, lvl)
	assertTwinsSymmetric(t, lvl)
	assertComplete(t, m, lvl)
}

func TestBrokenVertexIsExcluded(t *testing.T) {
	b := mapdata.NewBuilder("BROKEN")
	sec := b.Sector(0, 128)
	b.Polygon(sec, [2]float64{0, 0}, [2]float64{0, 64}, [2]float64{64, 64},
		[2]float64{64, 0})
	b.RawLine(mapdata.LineDef{V1: 0, V2: 99, FrontSide: 0, BackSide: mapdata.NoIndex})
	rec := &recordSink{}

	lvl, _ := compile(t, b.Map(), WithLogger(rec))
	assert.Len(t, lvl.Leafs, 1)
	assert.Len(t, lvl.HEdges, 4)
	for _, hd := range lvl.HEdges {
		assert.NotEqual(t, 4, hd.LineDef)
	}
	assert.True(t, rec.has("LineDef #4 references non-existent vertex"), rec.warnings)
}

// Like twoRooms, but the second room has its own copies of the shared
// corners
func TestDuplicateVertexesAreMerged(t *testing.T) {
	b := mapdata.NewBuilder("DUPS")
	a := b.Sector(0, 128)
	c := b.Sector(16, 128)
	v0 := b.Vertex(0, 0)
	v1 := b.Vertex(0, 64)
	v2 := b.Vertex(64, 64)
	v3 := b.Vertex(64, 0)
	w2 := b.Vertex(64, 64)
	w3 := b.Vertex(64, 0)
	v4 := b.Vertex(128, 64)
	v5 := b.Vertex(128, 0)
	b.Line(v0, v1, a, mapdata.NoIndex)
	b.Line(v1, v2, a, mapdata.NoIndex)
	b.Line(v3, v0, a, mapdata.NoIndex)
	b.Line(v2, v3, a, c)
	b.Line(w2, v4, c, mapdata.NoIndex)
	b.Line(v4, v5, c, mapdata.NoIndex)
	b.Line(v5, w3, c, mapdata.NoIndex)

	s := NewSession(b.Map())
	require.NoError(t, s.Build())
	assert.Equal(t, v2, s.vertexes[w2].equiv)
	assert.Equal(t, v3, s.vertexes[w3].equiv)
	assert.Equal(t, 3, s.vertexes[v2].refCount)
	assert.Equal(t, 0, s.vertexes[w2].refCount)

	lvl, err := s.Harden()
	require.NoError(t, err)
	assert.Len(t, lvl.Nodes, 1)
	assert.Len(t, lvl.Leafs, 2)
	assertRingsClosed(t, lvl)
	assertTwinsSymmetric(t, lvl)
	for _, hd := range lvl.HEdges {
		assert.NotContains(t, []int{w2, w3}, hd.V1)
		assert.NotContains(t, []int{w2, w3}, hd.V2)
	}
}

func TestNearlyCollinearWallNeedsNoMiniedges(t *testing.T) {
	m := bentWallRooms()
	lvl, stats := compile(t, m)
	assert.Len(t, lvl.Nodes, 1)
	assert.Len(t, lvl.Leafs, 2)
	assert.Equal(t, 0, stats.MiniHEdges)
	assertRingsClosed(t, lvl)
	assertTwinsSymmetric(t, lvl)
	assertComplete(t, m, lvl)
	for i := range lvl.Leafs {
		assert.Less(t, lvl.LeafArea(i), 0.0, "leaf %d isn't clockwise", i)
	}
}

func TestSplitReachesFinishedLeaf(t *testing.T) {
	m := notchedRooms()
	lvl, stats := compile(t, m)
	assert.Len(t, lvl.Nodes, 2)
	require.Len(t, lvl.Leafs, 3)
	assert.Equal(t, 1, stats.Splits)
	assertRingsClosed(t, lvl)
	assertTwinsSymmetric(t, lvl)
	assertComplete(t, m, lvl)

	// the square room got the second half of its wall afterwards
	west := lvl.LocateLeaf(32, 32)
	assert.Equal(t, 0, lvl.Leafs[west].Sector)
	assert.Equal(t, 5, lvl.Leafs[west].HEdgeCount)
	for _, h := range lvl.LeafRing(west) {
		hd := lvl.HEdges[h]
		if hd.LineDef == 2 {
			assert.InDelta(t, 32.0, hd.Length, 1e-9)
			assert.Equal(t, 1, lvl.HEdges[hd.Twin].Side)
		}
	}
	assert.InDelta(t, -(4096.0 + 4096.0 - 1120.0), totalLeafArea(lvl), 1e-6)
}

func TestVeryLongLineWarning(t *testing.T) {
	b := mapdata.NewBuilder("LONG")
	sec := b.Sector(0, 128)
	b.Polygon(sec, [2]float64{0, 0}, [2]float64{0, 64}, [2]float64{20000, 64},
		[2]float64{20000, 0})
	rec := &recordSink{}

	lvl, _ := compile(t, b.Map(), WithLogger(rec))
	assert.Len(t, lvl.Leafs, 1)
	assert.True(t, rec.has("LineDef #1 is very long"), rec.warnings)
	assert.True(t, rec.has("LineDef #3 is very long"), rec.warnings)
	assert.False(t, rec.has("LineDef #0 is very long"), rec.warnings)
}

// A vertex only joins a group when it is close to the group's head, not
// just to some member of it
func TestVertexGroupsStayWithinEpsilon(t *testing.T) {
	b := mapdata.NewBuilder("CHAIN")
	sec := b.Sector(0, 128)
	b.Polygon(sec, [2]float64{0, 0}, [2]float64{0, 64}, [2]float64{64, 64},
		[2]float64{64, 0})
	p := b.Vertex(32, 32)
	q := b.Vertex(32.005, 32)
	r := b.Vertex(32.010, 32)

	s := NewSession(b.Map())
	s.initForMap()
	assert.Equal(t, p, s.vertexes[q].equiv)
	assert.Equal(t, NoIndex, s.vertexes[r].equiv)
	assert.Equal(t, NoIndex, s.vertexes[p].equiv)
}

func TestLineWithMergedEndsIsSkipped(t *testing.T) {
	b := mapdata.NewBuilder("MERGED")
	sec := b.Sector(0, 128)
	b.Polygon(sec, [2]float64{0, 0}, [2]float64{0, 64}, [2]float64{64, 64},
		[2]float64{64, 0})
	head := b.Vertex(32, 32)
	// further apart than DIST_EPSILON along y, but both close to head
	p := b.Vertex(32.001, 32.007)
	q := b.Vertex(32.002, 31.993)
	line := b.Line(p, q, sec, sec)
	m := b.Map()

	s := NewSession(m)
	s.initForMap()
	assert.Equal(t, head, s.vertexes[p].equiv)
	assert.Equal(t, head, s.vertexes[q].equiv)
	assert.NotZero(t, s.lineInfos[line].flags&LDI_ZEROLENGTH)
	assert.Equal(t, 0, s.vertexes[head].refCount)

	lvl, err := Compile(m)
	require.NoError(t, err)
	assert.Len(t, lvl.Leafs, 1)
	assert.Len(t, lvl.HEdges, 4)
	assertRingsClosed(t, lvl)
}

func TestBadInputWarnings(t *testing.T) {
	b := mapdata.NewBuilder("WARN")
	sec := b.Sector(0, 128)
	lines := b.Polygon(sec, [2]float64{0, 0}, [2]float64{0, 64}, [2]float64{64, 64},
		[2]float64{64, 0})
	m := b.Map()
	// two-sided flag without a back sidedef
	m.LineDefs[lines[0]].Flags |= mapdata.LF_TWOSIDED
	// zero-length line
	m.LineDefs = append(m.LineDefs, mapdata.LineDef{V1: 0, V2: 0, FrontSide: 0,
		BackSide: mapdata.NoIndex})
	// bad sidedef reference: treated as absent
	m.LineDefs = append(m.LineDefs, mapdata.LineDef{V1: 0, V2: 2, FrontSide: 42,
		BackSide: mapdata.NoIndex})
	rec := &recordSink{}

	lvl, _ := compile(t, m, WithLogger(rec))
	assert.True(t, rec.has("LineDef #0 is two-sided but has no back SideDef."), rec.warnings)
	assert.True(t, rec.has("LineDef #5 references non-existent SideDef #42"), rec.warnings)
	assert.True(t, rec.has("LineDef #5 has no front SideDef!"), rec.warnings)
	for _, hd := range lvl.HEdges {
		assert.NotEqual(t, 4, hd.LineDef, "zero-length line must not produce half-edges")
	}
	assertRingsClosed(t, lvl)

	// built as one-sided, the map itself is left alone
	sess := NewSession(m)
	sess.initForMap()
	assert.Zero(t, sess.lineInfos[lines[0]].flags&LDI_TWOSIDED)
	assert.NotZero(t, m.LineDefs[lines[0]].Flags&mapdata.LF_TWOSIDED)
}

func TestEmptyMapIsInvariantError(t *testing.T) {
	_, err := Compile(&mapdata.Map{Name: "EMPTY"})
	assert.ErrorIs(t, err, ErrInvariant)

	s := NewSession(singleRoom())
	_, err = s.Harden()
	assert.ErrorIs(t, err, ErrInvariant, "Harden before Build")
	require.NoError(t, s.Build())
	assert.Error(t, s.Build(), "second Build")
}

func TestBuildProperties(t *testing.T) {
	for _, m := range []*mapdata.Map{pillarRoom(), bowtieRoom(), twoRooms()} {
		t.Run(m.Name, func(t *testing.T) {
			lvl, stats := compile(t, m)
			assert.Equal(t, len(lvl.Nodes), stats.Nodes)
			assert.Equal(t, len(lvl.Leafs), stats.Leafs)
			assert.Equal(t, len(lvl.HEdges), stats.HEdges)
			assert.Equal(t, len(lvl.Vertexes), stats.Vertexes)
			assert.Equal(t, len(m.Vertexes), lvl.NumEditableVertexes)
			assert.Equal(t, len(lvl.Nodes)+1, len(lvl.Leafs))
			if len(lvl.Nodes) > 0 {
				assert.Equal(t, lvl.Height(lvl.Root),
					1+max(stats.RightHeight, stats.LeftHeight))
			}

			assertRingsClosed(t, lvl)
			assertTwinsSymmetric(t, lvl)
			assertComplete(t, m, lvl)
			for i, lf := range lvl.Leafs {
				assert.NotEqual(t, level.NoIndex, lf.Sector, "leaf %d is orphan", i)
				assert.Less(t, lvl.LeafArea(i), 0.0, "leaf %d isn't clockwise", i)
			}
		})
	}
}

func TestAreaIsConserved(t *testing.T) {
	lvl, stats := compile(t, pillarRoom())
	assert.Positive(t, stats.Splits)
	assert.Positive(t, stats.MiniHEdges)
	assert.InDelta(t, -(256.0*256.0 - 64.0*64.0), totalLeafArea(lvl), 1e-6)

	lvl, _ = compile(t, bowtieRoom())
	assert.InDelta(t, -26000.0, totalLeafArea(lvl), 1e-3)
}

func TestBuildIsIdempotent(t *testing.T) {
	id := uuid.New()
	first, err := Compile(pillarRoom(), WithSessionID(id))
	require.NoError(t, err)
	second, err := Compile(pillarRoom(), WithSessionID(id))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// a session hardens the same way twice
	s := NewSession(bowtieRoom())
	require.NoError(t, s.Build())
	a, err := s.Harden()
	require.NoError(t, err)
	b, err := s.Harden()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLocateLeafFindsSector(t *testing.T) {
	lvl, _ := compile(t, pillarRoom())
	for _, p := range [][2]float64{{10, 10}, {250, 10}, {128, 40}, {128, 200}, {40, 128}} {
		leaf := lvl.LocateLeaf(p[0], p[1])
		assert.Equal(t, 0, lvl.Leafs[leaf].Sector, "point %v", p)
	}
}
