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

// Package bsp builds a BSP tree of half-edges for a map: superblocks speed up
// partition selection, half-edges are split along the chosen partitions and
// the gaps are closed with miniedges, then the result is hardened into a
// level.Level
package bsp

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vigilantdoomer/hedgebsp/internal/level"
	"github.com/vigilantdoomer/hedgebsp/internal/logger"
	"github.com/vigilantdoomer/hedgebsp/internal/mapdata"
)

// ErrInvariant is wrapped by every error reporting a broken internal
// invariant of the builder. Such a map can't be built
var ErrInvariant = errors.New("bsp invariant violated")

// Panics with this type are recovered at the Build / Harden boundary
type invariantError struct {
	msg string
}

func (s *BuildSession) panicf(format string, a ...interface{}) {
	panic(invariantError{msg: fmt.Sprintf(format, a...)})
}

// Converts the invariant panic, if one is in flight, into an error. Other
// panics are not ours to handle
func recoverInvariant(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if ie, ok := r.(invariantError); ok {
		*err = fmt.Errorf("%w: %s", ErrInvariant, ie.msg)
		return
	}
	panic(r)
}

type Stats struct {
	Nodes       int
	Leafs       int
	HEdges      int
	Vertexes    int
	RightHeight int
	LeftHeight  int
	// half-edges split in two (twins not counted separately)
	Splits int
	// miniedges created along partitions, both halves of each pair
	MiniHEdges      int
	UnclosedSectors int
	Migrants        int
	Duration        time.Duration
}

// BuildSession owns every object of one nodes build. Objects reference each
// other by index into the arenas below. Sessions share nothing, so they can
// run in parallel, but a single session must not be used concurrently
type BuildSession struct {
	ID  uuid.UUID
	m   *mapdata.Map
	log logger.Sink

	splitCostFactor int

	numEditable int
	vertexes    []vertex
	hedges      []hedge
	lineInfos   []lineDefInfo

	blocks     []superBlock
	freeBlocks []int
	blockStack []int

	tree []treeNode
	root int

	part       partition
	intercepts []intercept
	// vertex pairs (lower index first) of real half-edges lying along the
	// partition
	collinear  map[[2]int]struct{}
	validCount int

	unclosedSectors map[int]struct{}
	migrants        map[[2]int]struct{}

	built bool
	stats Stats
}

type Option func(*BuildSession)

// WithSplitCostFactor sets the cost of a split relative to imbalance
func WithSplitCostFactor(factor int) Option {
	return func(s *BuildSession) {
		s.splitCostFactor = factor
	}
}

// WithLogger routes build diagnostics to log. Default discards them
func WithLogger(log logger.Sink) Option {
	return func(s *BuildSession) {
		if log != nil {
			s.log = log
		}
	}
}

// WithSessionID overrides the random session id
func WithSessionID(id uuid.UUID) Option {
	return func(s *BuildSession) {
		s.ID = id
	}
}

func NewSession(m *mapdata.Map, opts ...Option) *BuildSession {
	s := &BuildSession{
		ID:              uuid.New(),
		m:               m,
		log:             logger.Discard{},
		splitCostFactor: SPLIT_COST_FACTOR,
		root:            NoIndex,
		collinear:       make(map[[2]int]struct{}),
		unclosedSectors: make(map[int]struct{}),
		migrants:        make(map[[2]int]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BuildSession) Stats() Stats {
	return s.stats
}

// Build runs the nodes builder over the whole map. It may be called once
func (s *BuildSession) Build() (err error) {
	if s.built {
		return errors.New("session already built")
	}
	s.built = true
	defer recoverInvariant(&err)

	start := time.Now()
	s.initForMap()

	x1, y1, x2, y2, ok := s.blockBounds()
	if !ok {
		s.panicf("Map %s has no usable linedefs", s.m.Name)
	}
	s.log.Verbose(1, "Map bounds: min[x:%d, y:%d] max[x:%d, y:%d]\n", x1, y1, x2, y2)

	rootBlock := s.newSuperBlock(x1, y1, x2, y2)
	s.createInitialHEdges(rootBlock)
	if s.totalHEdgeCount(rootBlock) == 0 {
		s.panicf("Map %s produced no half-edges", s.m.Name)
	}

	s.root = s.buildNodes(rootBlock)
	s.windLeafs()

	s.stats.UnclosedSectors = len(s.unclosedSectors)
	s.stats.Duration = time.Since(start)
	s.log.Verbose(1, "Nodes took %s\n", s.stats.Duration)
	return nil
}

// Compile builds the map and hardens the result
func Compile(m *mapdata.Map, opts ...Option) (*level.Level, error) {
	s := NewSession(m, opts...)
	if err := s.Build(); err != nil {
		return nil, err
	}
	return s.Harden()
}
