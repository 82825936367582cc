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

package level

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Encoders and decoders are safe for concurrent use through EncodeAll and
// DecodeAll, so one of each serves all the build jobs
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// Pack returns the zstd compressed binary form of level, as stored in output
// wads and in the cache
func Pack(l *Level) ([]byte, error) {
	raw, err := l.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encoding level %s: %w", l.Name, err)
	}
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

func Unpack(data []byte) (*Level, error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing level: %w", err)
	}
	l := new(Level)
	if err := l.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return l, nil
}
