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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hedgeOfLine(t *testing.T, s *BuildSession, line int, side int) int {
	t.Helper()
	for i := range s.hedges {
		if s.hedges[i].lineDef == line && s.hedges[i].side == side {
			return i
		}
	}
	require.Failf(t, "no half-edge", "line %d side %d", line, side)
	return NoIndex
}

// Session partitioned along the west wall of singleRoom, (0,0) -> (0,64),
// with empty blocks to receive miniedges
func gapSession(t *testing.T) (*BuildSession, *recordSink, int, int, int) {
	t.Helper()
	s, _ := prepareSession(t, singleRoom())
	rec := &recordSink{}
	s.log = rec
	h := hedgeOfLine(t, s, 0, 0)
	s.configurePartition(h)
	rights := s.newSuperBlock(0, 0, 128, 128)
	lefts := s.newSuperBlock(0, 0, 128, 128)
	return s, rec, h, rights, lefts
}

func TestUnclosedGapWarnsOnce(t *testing.T) {
	s, rec, _, rights, lefts := gapSession(t)
	numHEdges := len(s.hedges)
	gap := []intercept{
		{distance: 0, vertex: 0, before: NoIndex, after: 0},
		{distance: 64, vertex: 1, before: NoIndex, after: NoIndex},
	}

	s.intercepts = append(s.intercepts[:0], gap...)
	s.buildHEdgesAtIntersectionGaps(rights, lefts)
	require.Len(t, rec.warnings, 1)
	assert.Equal(t, "Sector #0 is unclosed near [0.0, 32.0].", rec.warnings[0])
	assert.Len(t, s.unclosedSectors, 1)

	s.intercepts = append(s.intercepts[:0], gap...)
	s.buildHEdgesAtIntersectionGaps(rights, lefts)
	assert.Len(t, rec.warnings, 1)

	assert.Len(t, s.hedges, numHEdges)
	assert.Zero(t, s.totalHEdgeCount(rights))
	assert.Zero(t, s.totalHEdgeCount(lefts))
}

func TestUnclosedGapBySelfRefLineIsQuiet(t *testing.T) {
	s, rec, _, rights, lefts := gapSession(t)
	s.intercepts = append(s.intercepts[:0],
		intercept{distance: 0, vertex: 0, before: NoIndex, after: NoIndex},
		intercept{distance: 64, vertex: 1, before: 0, after: NoIndex, selfRef: true})
	s.buildHEdgesAtIntersectionGaps(rights, lefts)
	assert.Empty(t, rec.warnings)
	assert.Empty(t, s.unclosedSectors)
}

func TestOpenGapGetsMiniedgePair(t *testing.T) {
	s, rec, _, rights, lefts := gapSession(t)
	numHEdges := len(s.hedges)
	s.intercepts = append(s.intercepts[:0],
		intercept{distance: 0, vertex: 0, before: NoIndex, after: 0},
		intercept{distance: 64, vertex: 1, before: 0, after: NoIndex})
	s.buildHEdgesAtIntersectionGaps(rights, lefts)

	assert.Empty(t, rec.warnings)
	require.Len(t, s.hedges, numHEdges+2)
	right, left := numHEdges, numHEdges+1
	assert.Equal(t, [2]int{0, 1}, s.hedges[right].v)
	assert.Equal(t, [2]int{1, 0}, s.hedges[left].v)
	assert.Equal(t, left, s.hedges[right].twin)
	assert.Equal(t, right, s.hedges[left].twin)
	for _, h := range []int{right, left} {
		assert.Equal(t, NoIndex, s.hedges[h].lineDef)
		assert.Equal(t, 0, s.hedges[h].sourceLineDef)
		assert.Equal(t, 0, s.hedges[h].sector)
	}
	assert.Equal(t, 1, s.totalHEdgeCount(rights))
	assert.Equal(t, 1, s.totalHEdgeCount(lefts))
	assert.Equal(t, 2, s.stats.MiniHEdges)
}

func TestCollinearLineClosesGap(t *testing.T) {
	s, _, h, rights, lefts := gapSession(t)
	numHEdges := len(s.hedges)
	open := []intercept{
		{distance: 0, vertex: 0, before: NoIndex, after: 0},
		{distance: 64, vertex: 1, before: 0, after: NoIndex},
	}

	s.addCollinearSpan(h)
	assert.True(t, s.spanIsCovered(1, 0))
	s.intercepts = append(s.intercepts[:0], open...)
	s.buildHEdgesAtIntersectionGaps(rights, lefts)
	assert.Len(t, s.hedges, numHEdges)
	assert.Zero(t, s.stats.MiniHEdges)

	// forgotten with the next partition
	s.configurePartition(h)
	assert.False(t, s.spanIsCovered(0, 1))
	s.intercepts = append(s.intercepts[:0], open...)
	s.buildHEdgesAtIntersectionGaps(rights, lefts)
	assert.Len(t, s.hedges, numHEdges+2)
}

func TestMiniedgesDontCoverSpans(t *testing.T) {
	s, _, _, rights, lefts := gapSession(t)
	s.intercepts = append(s.intercepts[:0],
		intercept{distance: 0, vertex: 0, before: NoIndex, after: 0},
		intercept{distance: 64, vertex: 1, before: 0, after: NoIndex})
	s.buildHEdgesAtIntersectionGaps(rights, lefts)
	mini := len(s.hedges) - 2
	require.Equal(t, NoIndex, s.hedges[mini].lineDef)

	s.configurePartition(hedgeOfLine(t, s, 0, 0))
	s.addCollinearSpan(mini)
	assert.False(t, s.spanIsCovered(0, 1))
}

func TestGapMidPoint(t *testing.T) {
	s, _ := prepareSession(t, singleRoom())
	x, y := s.midPoint(1, 3)
	assert.Equal(t, 32.0, x)
	assert.Equal(t, 32.0, y)
}
