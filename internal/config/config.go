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

// Program options: defaults, an optional YAML file, then the command line
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vigilantdoomer/hedgebsp/internal/logger"
)

const VERSION = "0.1a"

// Split cost factor used when none is given
const DEFAULT_SPLIT_COST_FACTOR = 7

// Environment variable naming the config file when --config is absent
const CONFIG_ENV = "HEDGEBSP_CONFIG"

/*
-n Rebuild NODES.
	f= Split cost factor
		7 - default

-v Add verbosity to text output. Use multiple times for increased verbosity.

-o <file> Output wad. Without it the input wad is replaced.

-m=<MAP01,...> Only build the listed levels.
-m-<MAP01,...> Build every level except the listed ones.

-j=<n> Number of levels built at once (defaults to number of cores).

--config <file> YAML file with options, the command line overrides it.
--cache <dir> Keep built levels in a cache directory.
--dump-leafs <dir> Write a bitmap of each built level there.
--metrics <file> Write build counters in Prometheus textfile format.
--cpuprofile <file> Write CPU profile.
*/

type ProgramConfig struct {
	InputFileName  string
	OutputFileName string
	VerbosityLevel int
	// Weight of a split against the imbalance of a partition
	SplitCostFactor int
	// How many levels are built at once, 0 means number of cores
	Jobs                  int
	FilterLevel           [][]byte // upper case level names
	FilterProhibitsLevels bool     // FilterLevel lists levels NOT to build
	CacheDir              string
	DumpLeafsDir          string
	MetricsFile           string
	ConfigFile            string
	Profile               bool
	ProfilePath           string
}

// YAML form of the options. Absent keys leave defaults alone
type FileConfig struct {
	BspFactor     *int     `yaml:"bsp_factor"`
	Verbosity     *int     `yaml:"verbosity"`
	Jobs          *int     `yaml:"jobs"`
	Output        string   `yaml:"output"`
	Levels        []string `yaml:"levels"`
	ExcludeLevels bool     `yaml:"exclude_levels"`
	CacheDir      string   `yaml:"cache_dir"`
	DumpLeafsDir  string   `yaml:"dump_leafs_dir"`
	MetricsFile   string   `yaml:"metrics_file"`
}

func Default() *ProgramConfig {
	return &ProgramConfig{
		SplitCostFactor: DEFAULT_SPLIT_COST_FACTOR,
	}
}

// Load reads YAML configuration from path. If path is empty, the file named
// by HEDGEBSP_CONFIG is read instead, and if that is not set either, Load
// returns nil, nil
func Load(path string) (*FileConfig, error) {
	if path == "" {
		path = os.Getenv(CONFIG_ENV)
		if path == "" {
			return nil, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &fc, nil
}

// ApplyFile copies the options present in fc
func (c *ProgramConfig) ApplyFile(fc *FileConfig) error {
	if fc == nil {
		return nil
	}
	if fc.BspFactor != nil {
		if *fc.BspFactor <= 0 {
			return fmt.Errorf("bsp_factor must be positive, got %d", *fc.BspFactor)
		}
		c.SplitCostFactor = *fc.BspFactor
	}
	if fc.Verbosity != nil {
		c.VerbosityLevel = *fc.Verbosity
	}
	if fc.Jobs != nil {
		if *fc.Jobs < 0 {
			return fmt.Errorf("jobs can't be negative, got %d", *fc.Jobs)
		}
		c.Jobs = *fc.Jobs
	}
	if fc.Output != "" {
		c.OutputFileName = fc.Output
	}
	if len(fc.Levels) > 0 {
		c.FilterLevel = c.FilterLevel[:0]
		for _, name := range fc.Levels {
			c.FilterLevel = append(c.FilterLevel, []byte(strings.ToUpper(name)))
		}
		c.FilterProhibitsLevels = fc.ExcludeLevels
	}
	if fc.CacheDir != "" {
		c.CacheDir = fc.CacheDir
	}
	if fc.DumpLeafsDir != "" {
		c.DumpLeafsDir = fc.DumpLeafsDir
	}
	if fc.MetricsFile != "" {
		c.MetricsFile = fc.MetricsFile
	}
	return nil
}

// Parse builds the configuration from defaults, the config file (given by
// --config or HEDGEBSP_CONFIG) and the command line, in that order
func Parse(args []string) (*ProgramConfig, error) {
	c := Default()
	path, err := findConfigArg(args)
	if err != nil {
		return nil, err
	}
	fc, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyFile(fc); err != nil {
		return nil, err
	}
	if err := c.FromCommandLine(args); err != nil {
		return nil, err
	}
	if c.ConfigFile == "" && fc != nil {
		c.ConfigFile = os.Getenv(CONFIG_ENV)
	}
	return c, nil
}

var errNoConfigFile = errors.New("modifier '--config' was present without a file name following it")

// The config file must be known before the rest of the command line is
// applied on top of it
func findConfigArg(args []string) (string, error) {
	for i, arg := range args {
		if arg == "--config" {
			if i+1 >= len(args) || args[i+1] == "" {
				return "", errNoConfigFile
			}
			return args[i+1], nil
		}
	}
	return "", nil
}

func PrintHelp() {
	log := logger.Log
	log.Printf("Usage: hedgebsp {-options} filename.wad {-o output.wad}\n")
	log.Printf("\n")
	log.Printf("-n Rebuild NODES.\n")
	log.Printf("	f= Split cost factor\n")
	log.Printf("		%d - default\n", DEFAULT_SPLIT_COST_FACTOR)
	log.Printf("\n")
	log.Printf("-v Add verbosity to text output. Use multiple times for increased verbosity.\n")
	log.Printf("\n")
	log.Printf("-o <file> Output wad. Without it the input wad is replaced.\n")
	log.Printf("\n")
	log.Printf("-m=<MAP01,...> Only build the listed levels.\n")
	log.Printf("-m-<MAP01,...> Build every level except the listed ones.\n")
	log.Printf("\n")
	log.Printf("-j=<n> Number of levels built at once (defaults to number of cores).\n")
	log.Printf("\n")
	log.Printf("--config <file> YAML file with options, the command line overrides it.\n")
	log.Printf("	Without it, the file named by %s is used if set.\n", CONFIG_ENV)
	log.Printf("--cache <dir> Keep built levels in a cache directory.\n")
	log.Printf("--dump-leafs <dir> Write a bitmap of each built level there.\n")
	log.Printf("--metrics <file> Write build counters in Prometheus textfile format.\n")
	log.Printf("--cpuprofile <file> Write CPU profile.\n")
}
