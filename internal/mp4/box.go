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

//nolint:gosec // Integer conversions are bounded by MP4 atom sizes.
package mp4

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// boxInfo locates one box while the demuxer walks moov for tracks.
type boxInfo struct {
	// Offset of the box header start in the file.
	offset int64
	// Total box size including header.
	size int64
	// Header size (8 for normal, 16 for extended).
	headerSize int64
	// Four-character box type code.
	fourCC [4]byte
}

const (
	smallHeaderSize = 8
	largeHeaderSize = 16
	fullBoxSize     = 4 // version(1) + flags(3)
)

//nolint:gochecknoglobals
var (
	fccMoov = [4]byte{'m', 'o', 'o', 'v'}
	fccTrak = [4]byte{'t', 'r', 'a', 'k'}
	fccMdia = [4]byte{'m', 'd', 'i', 'a'}
	fccMinf = [4]byte{'m', 'i', 'n', 'f'}
	fccStbl = [4]byte{'s', 't', 'b', 'l'}
	fccStsd = [4]byte{'s', 't', 's', 'd'}
	fccStts = [4]byte{'s', 't', 't', 's'}
	fccStsc = [4]byte{'s', 't', 's', 'c'}
	fccStsz = [4]byte{'s', 't', 's', 'z'}
	fccStco = [4]byte{'s', 't', 'c', 'o'}
	fccCo64 = [4]byte{'c', 'o', '6', '4'}
)

// readBoxInfo reads a single box header from the current position.
// Returns io.EOF if there are no more bytes to read.
func readBoxInfo(reader io.ReadSeeker) (boxInfo, error) {
	offset, err := reader.Seek(0, io.SeekCurrent)
	if err != nil {
		return boxInfo{}, fmt.Errorf("seeking current position: %w", err)
	}

	var header [largeHeaderSize]byte

	if _, err := io.ReadFull(reader, header[:smallHeaderSize]); err != nil {
		return boxInfo{}, fmt.Errorf("reading box header: %w", err)
	}

	info := boxInfo{
		offset:     offset,
		headerSize: smallHeaderSize,
		fourCC:     [4]byte{header[4], header[5], header[6], header[7]},
	}

	switch rawSize := binary.BigEndian.Uint32(header[:4]); rawSize {
	case 0:
		// Box extends to end of file.
		end, seekErr := reader.Seek(0, io.SeekEnd)
		if seekErr != nil {
			return boxInfo{}, fmt.Errorf("seeking to end of file: %w", seekErr)
		}

		info.size = end - offset

		if _, seekErr := reader.Seek(offset+info.headerSize, io.SeekStart); seekErr != nil {
			return boxInfo{}, fmt.Errorf("seeking past box header: %w", seekErr)
		}

	case 1:
		// Extended 64-bit size.
		if _, err := io.ReadFull(reader, header[smallHeaderSize:largeHeaderSize]); err != nil {
			return boxInfo{}, fmt.Errorf("reading extended box header: %w", err)
		}

		info.headerSize = largeHeaderSize
		info.size = int64(binary.BigEndian.Uint64(header[smallHeaderSize:largeHeaderSize]))

	default:
		info.size = int64(rawSize)
	}

	if info.size < info.headerSize {
		return boxInfo{}, fmt.Errorf("%w: size %d at offset %d", ErrInvalidBoxSize, info.size, offset)
	}

	return info, nil
}

func (info *boxInfo) payloadOffset() int64 {
	return info.offset + info.headerSize
}

func (info *boxInfo) payloadSize() int64 {
	return info.size - info.headerSize
}

func (info *boxInfo) seekToPayload(reader io.ReadSeeker) error {
	if _, err := reader.Seek(info.payloadOffset(), io.SeekStart); err != nil {
		return fmt.Errorf("seeking to box payload: %w", err)
	}

	return nil
}

func (info *boxInfo) seekToEnd(reader io.ReadSeeker) error {
	if _, err := reader.Seek(info.offset+info.size, io.SeekStart); err != nil {
		return fmt.Errorf("seeking past box: %w", err)
	}

	return nil
}

// readPayload returns the whole payload of a box. Boxes claiming more bytes
// than the file holds fail instead of allocating.
func (info *boxInfo) readPayload(reader io.ReadSeeker) ([]byte, error) {
	end, err := reader.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("seeking to end of file: %w", err)
	}

	if info.offset+info.size > end {
		return nil, fmt.Errorf("%w: %q overruns file", ErrInvalidBoxSize, info.fourCC[:])
	}

	if err := info.seekToPayload(reader); err != nil {
		return nil, err
	}

	data := make([]byte, info.payloadSize())
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, fmt.Errorf("reading %q payload: %w", info.fourCC[:], err)
	}

	return data, nil
}

// iterChildren calls callback for each direct child of parent until it
// returns true.
func iterChildren(
	reader io.ReadSeeker,
	parent *boxInfo,
	callback func(child boxInfo) (stop bool, err error),
) error {
	if err := parent.seekToPayload(reader); err != nil {
		return err
	}

	end := parent.offset + parent.size

	for {
		pos, err := reader.Seek(0, io.SeekCurrent)
		if err != nil {
			return fmt.Errorf("seeking current position: %w", err)
		}

		if pos >= end {
			return nil
		}

		child, err := readBoxInfo(reader)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}

			return err
		}

		stop, err := callback(child)
		if err != nil {
			return err
		}

		if stop {
			return nil
		}

		if err := child.seekToEnd(reader); err != nil {
			return err
		}
	}
}

// findChild finds the first child box with the given fourCC inside parent.
func findChild(reader io.ReadSeeker, parent *boxInfo, target [4]byte) (boxInfo, bool, error) {
	var found boxInfo

	var matched bool

	err := iterChildren(reader, parent, func(child boxInfo) (bool, error) {
		if child.fourCC == target {
			found = child
			matched = true

			return true, nil
		}

		return false, nil
	})

	return found, matched, err
}

// findDescendant walks a path of fourCCs from parent, descending one level per element.
func findDescendant(reader io.ReadSeeker, parent *boxInfo, path [][4]byte) (boxInfo, bool, error) {
	current := *parent

	for _, target := range path {
		child, found, err := findChild(reader, &current, target)
		if err != nil {
			return boxInfo{}, false, err
		}

		if !found {
			return boxInfo{}, false, nil
		}

		current = child
	}

	return current, true, nil
}
