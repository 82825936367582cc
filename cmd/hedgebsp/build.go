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

package main

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vigilantdoomer/hedgebsp/internal/bsp"
	"github.com/vigilantdoomer/hedgebsp/internal/cache"
	"github.com/vigilantdoomer/hedgebsp/internal/config"
	"github.com/vigilantdoomer/hedgebsp/internal/debugdump"
	"github.com/vigilantdoomer/hedgebsp/internal/level"
	"github.com/vigilantdoomer/hedgebsp/internal/logger"
	"github.com/vigilantdoomer/hedgebsp/internal/metrics"
	"github.com/vigilantdoomer/hedgebsp/internal/wad"
)

// What became of one level
type LevelResult struct {
	Lumps  *wad.LevelLumps
	Packed []byte // nil if the build failed
	Cached bool
	Err    error
}

// Everything level jobs share. Cache and metrics may be nil
type buildContext struct {
	cfg     *config.ProgramConfig
	r       io.ReaderAt
	dir     *wad.Directory
	cache   *cache.Cache
	metrics *metrics.Metrics
}

// buildLevels processes levels with at most cfg.Jobs of them at once. Each
// level logs into its own MiniLogger, which is merged into the main log as
// soon as that level is done. Results come back in the order of levels
func (bc *buildContext) buildLevels(levels []*wad.LevelLumps) []LevelResult {
	jobs := bc.cfg.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	results := make([]LevelResult, len(levels))
	sem := make(chan struct{}, jobs)
	var wg sync.WaitGroup
	for i, lvl := range levels {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, lvl *wad.LevelLumps) {
			defer wg.Done()
			defer func() { <-sem }()
			id := uuid.New()
			fields := logrus.Fields{
				"map":     lvl.Name,
				"session": id.String(),
			}
			mlog := logger.CreateMiniLogger(logger.Log.Verbosity(), fields)
			results[i] = bc.buildLevel(lvl, id, mlog)
			logger.Log.Merge(mlog, fmt.Sprintf("Level %s:\n", lvl.Name))
			switch res := &results[i]; {
			case res.Err != nil:
				logger.Log.Error("level %s: build failed: %s\n", lvl.Name, res.Err.Error())
			case res.Cached:
				logger.Log.WithFields(fields, "Nodes reused from cache\n")
			default:
				logger.Log.WithFields(fields, "Nodes built\n")
			}
		}(i, lvl)
	}
	wg.Wait()
	return results
}

func (bc *buildContext) buildLevel(lvl *wad.LevelLumps, id uuid.UUID, mlog *logger.MiniLogger) LevelResult {
	res := LevelResult{Lumps: lvl}
	fail := func(err error) LevelResult {
		if bc.metrics != nil {
			bc.metrics.ObserveFailed(lvl.Name)
		}
		return LevelResult{Lumps: lvl, Err: err}
	}
	digest, err := lvl.Digest(bc.r, bc.dir)
	if err != nil {
		return fail(err)
	}
	key := cache.Key{Digest: digest, SplitCostFactor: bc.cfg.SplitCostFactor}

	var hardened *level.Level
	if bc.cache != nil {
		hardened, res.Packed, err = bc.cache.Load(key)
		if err == nil {
			res.Cached = true
			mlog.Printf("Reusing cached nodes (digest %016x).\n", digest)
			if bc.metrics != nil {
				bc.metrics.ObserveCached(lvl.Name)
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			mlog.Warn("Cache lookup failed: %s\n", err.Error())
		}
	}

	if !res.Cached {
		m, err := wad.LoadLevel(bc.r, bc.dir, lvl)
		if err != nil {
			return fail(err)
		}
		s := bsp.NewSession(m,
			bsp.WithSplitCostFactor(bc.cfg.SplitCostFactor),
			bsp.WithLogger(mlog),
			bsp.WithSessionID(id))
		if err := s.Build(); err != nil {
			return fail(err)
		}
		hardened, err = s.Harden()
		if err != nil {
			return fail(err)
		}
		res.Packed, err = level.Pack(hardened)
		if err != nil {
			return fail(err)
		}
		if bc.metrics != nil {
			bc.metrics.ObserveBuild(lvl.Name, s.Stats())
		}
		if bc.cache != nil {
			if err := bc.cache.Put(key, res.Packed); err != nil {
				mlog.Warn("Couldn't store nodes in cache: %s\n", err.Error())
			}
		}
	}

	if bc.cfg.DumpLeafsDir != "" {
		where, err := debugdump.DumpLevel(bc.cfg.DumpLeafsDir, hardened)
		if err != nil {
			mlog.Warn("Couldn't dump leafs: %s\n", err.Error())
		} else {
			mlog.Verbose(1, "Dumped leafs to %s\n", where)
		}
	}
	return res
}
