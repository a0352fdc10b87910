/*
   Copyright Mycophonic.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package bytesource adapts an in-memory buffer to the sequential and
// seekable read contract the demuxers expect.
package bytesource

import (
	"errors"
	"fmt"
	"io"
)

// SeekSize is an extra whence value: Seek reports the buffer length and
// leaves the cursor where it is.
const SeekSize = 0x10000

// ErrInvalidWhence is returned by Seek for an unknown whence value.
var ErrInvalidWhence = errors.New("bytesource: invalid whence")

// Source is a read cursor over an immutable byte buffer.
//
// A Source is not safe for concurrent use. Each decode goroutine owns its own
// Source; several Sources may share the same underlying buffer.
type Source struct {
	data []byte
	pos  int64
}

// New returns a Source positioned at the start of data. The buffer is not
// copied and must not be modified while the Source is in use.
func New(data []byte) *Source {
	return &Source{data: data}
}

// Read copies up to len(p) bytes from the cursor. It returns fewer bytes only
// at the end of the buffer, and 0, io.EOF once the cursor reached it.
func (s *Source) Read(p []byte) (int, error) {
	if s.pos >= int64(len(s.data)) {
		return 0, io.EOF
	}

	n := copy(p, s.data[s.pos:])
	s.pos += int64(n)

	return n, nil
}

// Seek moves the cursor. Targets outside [0, Len()] are clamped rather than
// rejected.
func (s *Source) Seek(offset int64, whence int) (int64, error) {
	var target int64

	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.pos + offset
	case io.SeekEnd:
		target = int64(len(s.data)) + offset
	case SeekSize:
		return int64(len(s.data)), nil
	default:
		return s.pos, fmt.Errorf("%w: %d", ErrInvalidWhence, whence)
	}

	s.pos = min(max(target, 0), int64(len(s.data)))

	return s.pos, nil
}

// Len returns the buffer length.
func (s *Source) Len() int64 { return int64(len(s.data)) }

// Pos returns the cursor.
func (s *Source) Pos() int64 { return s.pos }

// Bytes returns the underlying buffer.
func (s *Source) Bytes() []byte { return s.data }
