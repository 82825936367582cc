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
	"os"
	"path/filepath"
)

// FileControl owns the input wad and the output being written. Without an
// output name, output goes to a temp file next to the input, which Commit
// moves over the input. Close releases whatever is still open and removes an
// uncommitted temp file, so it is safe to defer right away
type FileControl struct {
	in        *os.File
	out       *os.File
	inName    string
	outName   string
	tmp       bool
	committed bool
}

func (fc *FileControl) OpenInput(name string) (*os.File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	fc.in = f
	fc.inName = name
	return f, nil
}

// CreateOutput truncates the named file, or makes a temp file when name is
// empty
func (fc *FileControl) CreateOutput(name string) (*os.File, error) {
	if fc.in == nil {
		return nil, errors.New("input file is not open")
	}
	var f *os.File
	var err error
	if name == "" {
		f, err = os.CreateTemp(filepath.Dir(fc.inName), ".hedgebsp-*.tmp")
		fc.tmp = err == nil
	} else {
		f, err = os.OpenFile(name, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	}
	if err != nil {
		return nil, err
	}
	fc.out = f
	fc.outName = f.Name()
	return f, nil
}

// Where the result ends up once committed
func (fc *FileControl) Destination() string {
	if fc.tmp {
		return fc.inName
	}
	return fc.outName
}

// Commit closes both files and, for a temp output, replaces the input with
// it. After an error the data might not have been saved
func (fc *FileControl) Commit() error {
	if fc.in == nil || fc.out == nil {
		return errors.New("nothing to commit: files are not open")
	}
	var errs []error
	if err := fc.in.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing input: %w", err))
	}
	if err := fc.out.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing output: %w", err))
	}
	fc.in, fc.out = nil, nil
	if len(errs) > 0 {
		// a temp file that failed to close is garbage, Close removes it
		return errors.Join(errs...)
	}
	fc.committed = true
	if fc.tmp {
		return fc.replaceInput()
	}
	return nil
}

// Renaming keeps the replacement atomic. Where the platform refuses to rename
// over an existing file, the temp file is copied over the input instead
func (fc *FileControl) replaceInput() error {
	if st, err := os.Stat(fc.inName); err == nil {
		// temp files are created private
		_ = os.Chmod(fc.outName, st.Mode().Perm())
	}
	if err := os.Rename(fc.outName, fc.inName); err == nil {
		return nil
	}
	errCopy := copyFile(fc.outName, fc.inName)
	if errCopy != nil {
		errCopy = fmt.Errorf("overwriting %s: %w", fc.inName, errCopy)
	}
	if err := os.Remove(fc.outName); err != nil {
		return errors.Join(errCopy, fmt.Errorf("removing temp file: %w", err))
	}
	return errCopy
}

func copyFile(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// Close is a no-op after a successful Commit. Otherwise it closes files still
// open and deletes the temp file
func (fc *FileControl) Close() error {
	if fc.committed {
		return nil
	}
	var errs []error
	if fc.in != nil {
		if err := fc.in.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", fc.inName, err))
		}
		fc.in = nil
	}
	if fc.out != nil {
		if err := fc.out.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", fc.outName, err))
		}
		fc.out = nil
	}
	if fc.tmp {
		if err := os.Remove(fc.outName); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("removing temp file: %w", err))
		}
		fc.tmp = false
	}
	return errors.Join(errs...)
}
