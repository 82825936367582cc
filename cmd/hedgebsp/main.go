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

// -- This file is where the program entry is.
// HEdgeBSP builds half-edge BSP trees for Doom-engine levels and stores them
// in the wad as a HEDGEBSP lump after each level
package main

import (
	"os"
	"path/filepath"
	"runtime/pprof"
	"time"

	"github.com/vigilantdoomer/hedgebsp/internal/cache"
	"github.com/vigilantdoomer/hedgebsp/internal/config"
	"github.com/vigilantdoomer/hedgebsp/internal/logger"
	"github.com/vigilantdoomer/hedgebsp/internal/metrics"
	"github.com/vigilantdoomer/hedgebsp/internal/wad"
)

// Exit codes
const (
	EXIT_OK = iota
	EXIT_FATAL
	EXIT_LEVELS_FAILED // output written, but some levels have no nodes
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func printBanner() {
	log := logger.Log
	log.Printf("HEdgeBSP ver %s\n", config.VERSION)
	log.Printf("Copyright (c)   2022-2023 VigilantDoomer\n")
	log.Printf("This program is built upon ideas first implemented in glBSP by Andrew Apted\n")
	log.Printf("and the Doomsday Engine nodes builder, and is distributed under the terms of\n")
	log.Printf(" GNU General Public License v2.\n")
	log.Printf("\n")
}

func run(args []string) int {
	timeStart := time.Now()
	log := logger.Log
	defer log.Sync()
	printBanner()

	cfg, err := config.Parse(args)
	if err != nil {
		log.Error("%s - aborting.\n", err.Error())
		return EXIT_FATAL
	}
	// If input file name was not passed, print help
	if cfg.InputFileName == "" {
		config.PrintHelp()
		return EXIT_OK
	}
	log.SetVerbosity(cfg.VerbosityLevel)
	if cfg.ConfigFile != "" {
		log.Verbose(1, "Using configuration file %s\n", cfg.ConfigFile)
	}

	if cfg.Profile {
		f, err := os.Create(cfg.ProfilePath)
		if err != nil {
			log.Printf("Could not create CPU profile: %s", err.Error())
		} else {
			defer f.Close()
			if err := pprof.StartCPUProfile(f); err != nil {
				log.Printf("Could not start CPU profile: %s", err.Error())
			} else {
				defer pprof.StopCPUProfile()
			}
		}
	}

	cfg.InputFileName, _ = filepath.Abs(cfg.InputFileName)
	if cfg.OutputFileName != "" {
		cfg.OutputFileName, _ = filepath.Abs(cfg.OutputFileName)
		// Output file colliding with input file would produce a corrupt wad,
		// whether via same path and name, or hardlinks, or symlinks
		f1, err1 := os.Stat(cfg.InputFileName)
		f2, err2 := os.Stat(cfg.OutputFileName)
		if err1 == nil && err2 == nil && os.SameFile(f1, f2) {
			log.Error("You cannot specify output file that maps to the same input file (whether via same path and name, or hardlinks, or symlinks)\n")
			return EXIT_FATAL
		}
	}

	files := FileControl{}
	defer func() {
		if err := files.Close(); err != nil {
			log.Error("%s\n", err.Error())
		}
	}()

	f, err := files.OpenInput(cfg.InputFileName)
	if err != nil {
		log.Error("An error has occured while trying to read %s: %s\n",
			cfg.InputFileName, err)
		return EXIT_FATAL
	}
	dir, err := wad.ReadDirectory(f)
	if err != nil {
		log.Error("The input file is NOT a wad: %s\n", err.Error())
		return EXIT_FATAL
	}
	if dir.IsIWAD() {
		log.Printf("The input file is an IWAD\n")
	} else {
		log.Printf("The input file is a PWAD\n")
	}
	log.Verbose(1, "The directory contains %d lumps and starts at %d byte offset\n",
		dir.Header.LumpCount, dir.Header.DirectoryStart)

	levels := wad.FindLevels(dir, &wad.Filter{
		Levels:    cfg.FilterLevel,
		Prohibits: cfg.FilterProhibitsLevels,
	})
	if len(levels) == 0 {
		log.Error("Unable to find any levels I can rebuild - terminating.\n")
		return EXIT_FATAL
	}
	log.Printf("Number of levels that will be rebuilt: %d\n", len(levels))

	bc := &buildContext{cfg: cfg, r: f, dir: dir}
	if cfg.CacheDir != "" {
		bc.cache, err = cache.Open(cfg.CacheDir)
		if err != nil {
			// building without cache is still possible
			log.Error("%s, continuing without it.\n", err.Error())
		} else {
			defer bc.cache.Close()
		}
	}
	if cfg.MetricsFile != "" {
		bc.metrics = metrics.New()
	}

	results := bc.buildLevels(levels)

	writer := wad.NewWriter(f, dir)
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		writer.AddLevel(res.Lumps, res.Packed)
	}

	if cfg.OutputFileName == "" {
		log.Printf("Preparing to write %s - will create a temp file first.\n", cfg.InputFileName)
	} else {
		log.Printf("Preparing to write %s...\n", cfg.OutputFileName)
	}
	fout, err := files.CreateOutput(cfg.OutputFileName)
	if err != nil {
		log.Error("An error has occured while trying to create/modify %s: %s\n",
			cfg.OutputFileName, err)
		return EXIT_FATAL
	}
	if _, err := writer.WriteTo(fout); err != nil {
		log.Error("An error has occured while trying to create/modify %s: %s\n",
			fout.Name(), err)
		return EXIT_FATAL
	}
	dest := files.Destination()
	if err := files.Commit(); err != nil {
		log.Error("%s. The data might not have been saved!\n", err.Error())
		return EXIT_FATAL
	}
	log.Printf("%s successfully written\n", dest)

	if bc.metrics != nil {
		if err := bc.metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Error("%s\n", err.Error())
		} else {
			log.Verbose(1, "Metrics written to %s\n", cfg.MetricsFile)
		}
	}
	log.Printf("Total time: %s\n", time.Since(timeStart))
	if failed > 0 {
		log.Error("%d of %d levels failed to build.\n", failed, len(levels))
		return EXIT_LEVELS_FAILED
	}
	return EXIT_OK
}
