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
	"fmt"
	"io"
)

const (
	sampleEntryHeaderSize = 8  // box header: size(4) + type(4)
	audioEntryBaseSize    = 28 // standard AudioSampleEntry fields
	audioEntryV1Extra     = 16 // QuickTime version 1 extra fields
	visualEntryBaseSize   = 78 // standard VisualSampleEntry fields
	stsdPayloadHeader     = 8  // version(1) + flags(3) + entryCount(4)
)

// sampleEntry is the decoded first entry of an stsd box.
type sampleEntry struct {
	codec string

	// Audio entries.
	channels   int
	sampleSize int
	sampleRate int

	// Visual entries.
	width  int
	height int

	// extra holds the bytes following the fixed entry fields: child boxes
	// such as the ALAC magic cookie or codec configuration records.
	extra []byte
}

// readSampleEntry parses the first sample description of stbl according to
// the track's handler kind.
func readSampleEntry(reader io.ReadSeeker, stbl *boxInfo, kind TrackKind) (sampleEntry, error) {
	stsd, found, err := findChild(reader, stbl, fccStsd)
	if err != nil {
		return sampleEntry{}, err
	}

	if !found {
		return sampleEntry{}, ErrNoStsd
	}

	data, err := stsd.readPayload(reader)
	if err != nil {
		return sampleEntry{}, err
	}

	if len(data) < stsdPayloadHeader+sampleEntryHeaderSize {
		return sampleEntry{}, fmt.Errorf("%w: short stsd", ErrInvalidEntry)
	}

	if binary.BigEndian.Uint32(data[4:8]) == 0 {
		return sampleEntry{}, fmt.Errorf("%w: empty stsd", ErrInvalidEntry)
	}

	entry := data[stsdPayloadHeader:]

	entrySize := int(binary.BigEndian.Uint32(entry[0:4]))
	if entrySize < sampleEntryHeaderSize || entrySize > len(entry) {
		return sampleEntry{}, fmt.Errorf("%w: entry size %d", ErrInvalidEntry, entrySize)
	}

	entry = entry[:entrySize]
	out := sampleEntry{codec: string(entry[4:8])}
	fields := entry[sampleEntryHeaderSize:]

	switch kind {
	case TrackAudio:
		return parseAudioEntry(out, fields)
	case TrackVideo:
		return parseVisualEntry(out, fields)
	default:
		return out, nil
	}
}

// parseAudioEntry reads an AudioSampleEntry.
// Layout: reserved(6) + dataRefIdx(2) + version(2) + revision(2) + vendor(4) +
// channels(2) + sampleSize(2) + compressionID(2) + packetSize(2) + sampleRate(4, 16.16).
func parseAudioEntry(out sampleEntry, fields []byte) (sampleEntry, error) {
	if len(fields) < audioEntryBaseSize {
		return sampleEntry{}, fmt.Errorf("%w: short audio entry %q", ErrInvalidEntry, out.codec)
	}

	version := binary.BigEndian.Uint16(fields[8:10])
	out.channels = int(binary.BigEndian.Uint16(fields[16:18]))
	out.sampleSize = int(binary.BigEndian.Uint16(fields[18:20]))
	out.sampleRate = int(binary.BigEndian.Uint32(fields[24:28]) >> 16)

	skip := audioEntryBaseSize
	if version == 1 {
		skip += audioEntryV1Extra
	}

	if skip <= len(fields) {
		out.extra = fields[skip:]
	}

	return out, nil
}

// parseVisualEntry reads a VisualSampleEntry.
// Layout: reserved(6) + dataRefIdx(2) + predefined(2) + reserved(2) + predefined(12) +
// width(2) + height(2) + resolution(8) + reserved(4) + frameCount(2) + compressor(32) +
// depth(2) + predefined(2).
func parseVisualEntry(out sampleEntry, fields []byte) (sampleEntry, error) {
	if len(fields) < visualEntryBaseSize {
		return sampleEntry{}, fmt.Errorf("%w: short visual entry %q", ErrInvalidEntry, out.codec)
	}

	out.width = int(binary.BigEndian.Uint16(fields[24:26]))
	out.height = int(binary.BigEndian.Uint16(fields[26:28]))
	out.extra = fields[visualEntryBaseSize:]

	return out, nil
}
