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

// Central log (stdout/stderr) of the program
package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Sink is what the nodes builder writes to. Both MyLogger and MiniLogger
// satisfy it, so a build can either talk to the console directly or to a
// buffer that is merged later
type Sink interface {
	Printf(s string, a ...interface{})
	Warn(s string, a ...interface{})
	Verbose(verbosityLevel int, s string, a ...interface{})
	Debug(s string, a ...interface{})
}

// Verbosity at which Debug messages start to show
const DEBUG_VERBOSITY = 3

type MyLogger struct {
	syslog    *logrus.Logger
	errlog    *logrus.Logger
	verbosity int
	// Mutex is used to order writes to stdout and stderr, as well as Sync call
	mu sync.Mutex
}

// Logs specific to one task (one level being built). Their output is not
// forwarded to stdout or stderr, but is instead buffered until merged into
// main log of MyLogger type. A nil *MiniLogger writes to the main log directly
type MiniLogger struct {
	buf       bytes.Buffer
	log       *logrus.Logger
	verbosity int
}

func CreateLogger() *MyLogger {
	return &MyLogger{
		syslog: newBackend(os.Stdout),
		errlog: newBackend(os.Stderr),
	}
}

var Log = CreateLogger()

func newBackend(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&consoleFormatter{})
	l.SetLevel(logrus.DebugLevel)
	return l
}

// SetOutput redirects both stdout and stderr streams, mostly for tests
func (log *MyLogger) SetOutput(w io.Writer) {
	log.mu.Lock()
	defer log.mu.Unlock()
	log.syslog.SetOutput(w)
	log.errlog.SetOutput(w)
}

func (log *MyLogger) SetVerbosity(level int) {
	log.mu.Lock()
	defer log.mu.Unlock()
	log.verbosity = level
}

func (log *MyLogger) Verbosity() int {
	log.mu.Lock()
	defer log.mu.Unlock()
	return log.verbosity
}

// Your generic printf to let user see things
func (log *MyLogger) Printf(s string, a ...interface{}) {
	log.mu.Lock()
	defer log.mu.Unlock()
	log.syslog.Info(trimNL(fmt.Sprintf(s, a...)))
}

// Same as Printf but carries fields, e.g. the level name
func (log *MyLogger) WithFields(fields logrus.Fields, s string, a ...interface{}) {
	log.mu.Lock()
	defer log.mu.Unlock()
	log.syslog.WithFields(fields).Info(trimNL(fmt.Sprintf(s, a...)))
}

// As generic as printf, but writes to stderr instead of stdout
// Does NOT interrupt execution of the program
func (log *MyLogger) Error(s string, a ...interface{}) {
	log.mu.Lock()
	defer log.mu.Unlock()
	log.errlog.Error(trimNL(fmt.Sprintf(s, a...)))
}

// Something is off with input data, but we can go on
func (log *MyLogger) Warn(s string, a ...interface{}) {
	log.mu.Lock()
	defer log.mu.Unlock()
	log.syslog.Warn(trimNL(fmt.Sprintf(s, a...)))
}

// For advanced users or users that are curious, or programmers, there is
// stuff they might want to see but only when they can really bother to spend
// time reading it
func (log *MyLogger) Verbose(verbosityLevel int, s string, a ...interface{}) {
	log.mu.Lock()
	defer log.mu.Unlock()
	if verbosityLevel <= log.verbosity {
		log.syslog.Info(trimNL(fmt.Sprintf(s, a...)))
	}
}

// Internals of algorithms, only useful when chasing a bug
func (log *MyLogger) Debug(s string, a ...interface{}) {
	log.mu.Lock()
	defer log.mu.Unlock()
	if log.verbosity >= DEBUG_VERBOSITY {
		log.syslog.Debug(trimNL(fmt.Sprintf(s, a...)))
	}
}

// Panicking is not a good thing, but at least we can now use formatted printing
// for it
func (log *MyLogger) Panic(s string, a ...interface{}) {
	msg := trimNL(fmt.Sprintf(s, a...))
	log.mu.Lock()
	log.errlog.Error(msg)
	log.mu.Unlock()
	panic(msg)
}

// Sync is used to wait until all messages are written to the output
func (log *MyLogger) Sync() {
	log.mu.Lock()
	log.mu.Unlock()
}

func (log *MyLogger) Merge(mlog *MiniLogger, preface string) {
	if mlog == nil {
		return
	}
	log.mu.Lock()
	defer log.mu.Unlock()
	if len(preface) > 0 {
		log.syslog.Info(trimNL(preface))
	}
	if mlog.buf.Len() > 0 {
		log.syslog.Out.Write(mlog.buf.Bytes())
		mlog.buf.Reset()
	}
}

func CreateMiniLogger(verbosity int, fields logrus.Fields) *MiniLogger {
	mlog := new(MiniLogger)
	mlog.log = newBackend(&mlog.buf)
	mlog.verbosity = verbosity
	if len(fields) > 0 {
		mlog.log.AddHook(&fieldsHook{fields: fields})
	}
	return mlog
}

func (mlog *MiniLogger) Printf(s string, a ...interface{}) {
	if mlog == nil {
		Log.Printf(s, a...)
		return
	}
	mlog.log.Info(trimNL(fmt.Sprintf(s, a...)))
}

func (mlog *MiniLogger) Warn(s string, a ...interface{}) {
	if mlog == nil {
		Log.Warn(s, a...)
		return
	}
	mlog.log.Warn(trimNL(fmt.Sprintf(s, a...)))
}

func (mlog *MiniLogger) Verbose(verbosityLevel int, s string, a ...interface{}) {
	if mlog == nil {
		Log.Verbose(verbosityLevel, s, a...)
		return
	}
	if verbosityLevel <= mlog.verbosity {
		mlog.log.Info(trimNL(fmt.Sprintf(s, a...)))
	}
}

func (mlog *MiniLogger) Debug(s string, a ...interface{}) {
	if mlog == nil {
		Log.Debug(s, a...)
		return
	}
	if mlog.verbosity >= DEBUG_VERBOSITY {
		mlog.log.Debug(trimNL(fmt.Sprintf(s, a...)))
	}
}

func (mlog *MiniLogger) String() string {
	if mlog == nil {
		return ""
	}
	return mlog.buf.String()
}

// Discard is a sink that drops everything, used by tests and benchmarks
type Discard struct{}

func (Discard) Printf(s string, a ...interface{})                      {}
func (Discard) Warn(s string, a ...interface{})                        {}
func (Discard) Verbose(verbosityLevel int, s string, a ...interface{}) {}
func (Discard) Debug(s string, a ...interface{})                       {}

// fieldsHook stamps warnings (and worse) of a MiniLogger with the same
// fields, so that they can be traced to the level once merged
type fieldsHook struct {
	fields logrus.Fields
}

func (h *fieldsHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel,
		logrus.ErrorLevel, logrus.WarnLevel}
}

func (h *fieldsHook) Fire(entry *logrus.Entry) error {
	for k, v := range h.fields {
		if _, ok := entry.Data[k]; !ok {
			entry.Data[k] = v
		}
	}
	return nil
}

// consoleFormatter prints messages the way a console program should: no
// timestamps, level shown only when it's a warning or worse, fields trailing
type consoleFormatter struct{}

func (f *consoleFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	if entry.Level <= logrus.WarnLevel {
		b.WriteString(strings.ToUpper(entry.Level.String()))
		b.WriteString(": ")
	}
	b.WriteString(entry.Message)
	if len(entry.Data) > 0 {
		keys := make([]string, 0, len(entry.Data))
		for k := range entry.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
		}
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func trimNL(s string) string {
	return strings.TrimRight(s, "\n")
}
