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

package config

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/vigilantdoomer/hedgebsp/internal/logger"
)

const ( // NumericOrState.whichType values
	ARG_ENABLED = iota
	ARG_DISABLED
	ARG_IS_NUMBER
)

type NumericOrState struct {
	whichType int // see consts above
	value     int
}

// Double hyphen arguments that take a file or directory name after them
var fileArgs = map[string]func(c *ProgramConfig, name string){
	"--config":     func(c *ProgramConfig, name string) { c.ConfigFile = name },
	"--cache":      func(c *ProgramConfig, name string) { c.CacheDir = name },
	"--dump-leafs": func(c *ProgramConfig, name string) { c.DumpLeafsDir = name },
	"--metrics":    func(c *ProgramConfig, name string) { c.MetricsFile = name },
	"--cpuprofile": func(c *ProgramConfig, name string) {
		c.Profile = true
		c.ProfilePath = name
	},
}

// Inspired by from zokumbsp's parser. Problems that make the command line
// unusable are returned as errors, ignorable ones are only logged
func (c *ProgramConfig) FromCommandLine(args []string) error {
	log := logger.Log
	files := make([]string, 0)
	outputModifier := false
	outputModifierUsed := false
	levelsModifier := false
	hasOutputFile := false
	skip := false
	for argIdx, arg := range args {
		if len(arg) < 1 {
			break
		}
		if skip {
			skip = false
			continue
		}

		if outputModifier {
			c.OutputFileName = arg
			outputModifier = false
			hasOutputFile = true
			continue
		}

		if levelsModifier {
			c.parseLevels([]byte(arg))
			levelsModifier = false
			continue
		}

		if arg[0] != '-' {
			files = append(files, arg)
			if len(files) > 1 {
				// No logic for concatenating multiple wads into one exists
				return fmt.Errorf("this program doesn't support specifying more than one input file")
			}
			c.InputFileName = files[0]
			continue
		}

		if len(arg) < 2 {
			continue
		}
		switch arg[1] {
		case 'n':
			{
				enabled, rest := isEnabled([]byte(arg)[2:])
				if !enabled {
					return fmt.Errorf("nodes are all this program builds, -n- makes no sense")
				}
				c.parseNodesParams(rest)
			}
		case 'v':
			{
				// "count" type: -v, -vv, -vvv, etc.
				vs := 0
				barg := []byte(arg)[1:]
				for i := 0; i < len(barg); i++ {
					if barg[i] == 'v' {
						vs++
					} else {
						break
					}
				}
				c.VerbosityLevel += vs
			}
		case 'o':
			{
				if len(arg) != 2 {
					return fmt.Errorf("unrecognized modifier '%s' (expected '-o <file>', space between '-o' and file name)", arg)
				}
				if outputModifierUsed {
					return fmt.Errorf("can't specify output file twice, only one output file is supported")
				}
				outputModifier = true
				outputModifierUsed = true
			}
		case 'm':
			{
				p := []byte(arg)[2:]
				c.FilterProhibitsLevels = false
				if len(p) > 0 && (p[0] == '=' || p[0] == '+') {
					p = p[1:]
				} else if len(p) > 0 && p[0] == '-' {
					c.FilterProhibitsLevels = true
					p = p[1:]
				}
				if len(p) == 0 {
					// -m MAP01,MAP02
					levelsModifier = true
					continue
				}
				c.parseLevels(p)
			}
		case 'j':
			{
				nos, rest := readNumeric("-j", []byte(arg)[2:])
				if nos.whichType != ARG_IS_NUMBER {
					// -j, -j+ and -j- all mean "auto"
					c.Jobs = 0
				} else {
					c.Jobs = nos.value
				}
				if len(rest) > 0 {
					log.Error("Syntax error: -j parameter is followed by garbage '%s', it is ignored.\n", string(rest))
				}
			}
		case '-':
			{
				setter, ok := fileArgs[arg]
				if !ok {
					return fmt.Errorf("unrecognised argument '%s'", arg)
				}
				if argIdx+1 >= len(args) || args[argIdx+1] == "" {
					return fmt.Errorf("modifier '%s' was present without a file name following it", arg)
				}
				setter(c, args[argIdx+1])
				skip = true
			}
		default:
			{
				return fmt.Errorf("unrecognised argument '%s'", arg)
			}
		}
	}
	if outputModifier && !hasOutputFile {
		return fmt.Errorf("modifier '-o' was present without a file name following it")
	}
	if levelsModifier {
		return fmt.Errorf("modifier '-m' was present without level names following it")
	}
	return nil
}

// Comma separated level names, replacing the previous filter
func (c *ProgramConfig) parseLevels(p []byte) {
	c.FilterLevel = c.FilterLevel[:0]
	for _, name := range bytes.Split(p, []byte(",")) {
		name = bytes.TrimSpace(name)
		if len(name) == 0 {
			continue
		}
		c.FilterLevel = append(c.FilterLevel, bytes.ToUpper(name))
	}
}

func (c *ProgramConfig) parseNodesParams(p []byte) {
	log := logger.Log
	for len(p) > 0 {
		switch p[0] {
		case 'f':
			{
				nos, rest := readNumeric("-nf", p[1:])
				if nos.whichType == ARG_ENABLED || nos.whichType == ARG_DISABLED {
					log.Error("Toggling on/off split cost factor is not supported.\n")
				} else {
					if nos.value <= 0 {
						log.Error("Only supporting positive factors.\n")
					} else {
						c.SplitCostFactor = nos.value
					}
				}
				p = rest
			}
		default:
			{
				log.Error("Error passing nodes params - ignoring '%s'.\n", string(p))
				p = p[:0]
			}
		}
	}
}

func isEnabled(arg []byte) (bool, []byte) {
	if len(arg) == 0 {
		return true, arg
	}
	if arg[0] == '+' {
		return true, arg[1:]
	} else if arg[0] == '-' {
		return false, arg[1:]
	} else {
		return true, arg
	}
}

// a+, a-, or a=<numeric_value_without_sign>
func readNumeric(prefix string, arg []byte) (NumericOrState, []byte) {
	if len(arg) == 0 {
		return NumericOrState{whichType: ARG_ENABLED}, arg
	}
	if arg[0] == '+' {
		return NumericOrState{whichType: ARG_ENABLED}, arg[1:]
	} else if arg[0] == '-' {
		return NumericOrState{whichType: ARG_DISABLED}, arg[1:]
	} else if arg[0] == '=' {
		// !!! doesn't support negative values, and values with explicit "+"
		// sign either
		t, v, rest := readNumericOnly(arg[1:])
		if t {
			return NumericOrState{
				whichType: ARG_IS_NUMBER,
				value:     v,
			}, rest
		} else {
			logger.Log.Error("Couldn't properly parse '%s%s'. Some parameters are going to be ignored as the result.\n", prefix, string(arg))
			return NumericOrState{
				whichType: ARG_ENABLED,
			}, arg[:0] // ignore the rest of parameters
		}
	} else {
		return NumericOrState{whichType: ARG_ENABLED}, arg
	}
}

func readNumericOnly(arg []byte) (bool, int, []byte) {
	if len(arg) == 0 {
		return false, 0, arg
	}
	l := 0
	for i := 0; i < len(arg); i++ {
		c := arg[i]
		if '0' <= c && c <= '9' {
			l++
		} else {
			break
		}
	}
	if l > 0 {
		v, err := strconv.Atoi(string(arg[:l]))
		if err != nil {
			logger.Log.Error("value '%s' was too big to interpret as int.\n",
				string(arg[:l]))
			return false, 0, arg[l:]
		}
		return true, v, arg[l:]
	}
	return false, 0, arg
}
