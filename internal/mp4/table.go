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

// Sample locates one encoded packet and its decode time.
type Sample struct {
	Offset uint64
	Size   uint32
	// Time is the decode timestamp in track timescale units.
	Time uint64
	// Duration is the sample duration in track timescale units.
	Duration uint32
}

// stscEntry mirrors the ISO 14496-12 sample-to-chunk table entry.
type stscEntry struct {
	FirstChunk      uint32
	SamplesPerChunk uint32
}

// maxPrealloc caps the up-front sample slice; larger tables grow on append.
const maxPrealloc = 1 << 16

// sttsEntry mirrors the ISO 14496-12 time-to-sample table entry.
type sttsEntry struct {
	Count uint32
	Delta uint32
}

// buildSampleTable constructs a flat list of samples from the stco/co64,
// stsc, stsz and stts boxes within the given stbl box.
func buildSampleTable(reader io.ReadSeeker, stbl *boxInfo) ([]Sample, error) {
	chunkOffsets, err := readChunkOffsets(reader, stbl)
	if err != nil {
		return nil, err
	}

	stscEntries, err := readStsc(reader, stbl)
	if err != nil {
		return nil, err
	}

	entrySizes, constantSize, sampleCount, err := readStsz(reader, stbl)
	if err != nil {
		return nil, err
	}

	fileSize, err := reader.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("seeking to end: %w", err)
	}

	if uint64(constantSize)*uint64(sampleCount) > uint64(fileSize) {
		return nil, fmt.Errorf("%w: %w: %d samples of %d bytes", ErrInvalidStsz, ErrTableTooLarge, sampleCount, constantSize)
	}

	// A missing stts leaves every sample at time zero with no duration; the
	// caller falls back to a nominal rate.
	timing, err := readStts(reader, stbl)
	if err != nil {
		return nil, err
	}

	samples := make([]Sample, 0, min(sampleCount, maxPrealloc))
	sampleIdx := 0

	for chunkIdx := range chunkOffsets {
		samplesInChunk := lookupSamplesPerChunk(stscEntries, uint32(chunkIdx+1)) // stsc uses 1-based chunk numbers
		chunkOffset := chunkOffsets[chunkIdx]

		for iter := uint32(0); iter < samplesInChunk && sampleIdx < int(sampleCount); iter++ {
			size := constantSize
			if constantSize == 0 {
				size = entrySizes[sampleIdx]
			}

			if chunkOffset+uint64(size) > uint64(fileSize) {
				return nil, fmt.Errorf("%w: %w: sample %d at %d with %d bytes",
					ErrInvalidStsz, ErrTableTooLarge, sampleIdx, chunkOffset, size)
			}

			samples = append(samples, Sample{Offset: chunkOffset, Size: size})
			chunkOffset += uint64(size)
			sampleIdx++
		}
	}

	applyTiming(samples, timing)

	return samples, nil
}

// applyTiming spreads the run-length stts table over the samples.
func applyTiming(samples []Sample, timing []sttsEntry) {
	var now uint64

	idx := 0

	for _, entry := range timing {
		for range entry.Count {
			if idx >= len(samples) {
				return
			}

			samples[idx].Time = now
			samples[idx].Duration = entry.Delta
			now += uint64(entry.Delta)
			idx++
		}
	}

	// Samples beyond the table repeat the last delta.
	var last uint32
	if len(timing) > 0 {
		last = timing[len(timing)-1].Delta
	}

	for ; idx < len(samples); idx++ {
		samples[idx].Time = now
		samples[idx].Duration = last
		now += uint64(last)
	}
}

// readTable reads a full box holding a 32-bit entry count followed by
// count fixed-size entries, starting after skip bytes of extra header.
func readTable(reader io.ReadSeeker, box *boxInfo, skip, entryBytes int, sentinel error) ([]byte, uint32, error) {
	data, err := box.readPayload(reader)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", sentinel, err)
	}

	head := fullBoxSize + skip
	if len(data) < head+4 {
		return nil, 0, sentinel
	}

	count := binary.BigEndian.Uint32(data[head:])
	body := data[head+4:]

	if uint64(count)*uint64(entryBytes) > uint64(len(body)) {
		return nil, 0, fmt.Errorf("%w: %w: %d entries", sentinel, ErrTableTooLarge, count)
	}

	return body, count, nil
}

func readChunkOffsets(reader io.ReadSeeker, stbl *boxInfo) ([]uint64, error) {
	// Try 32-bit stco first.
	if stco, found, err := findChild(reader, stbl, fccStco); err == nil && found {
		body, count, err := readTable(reader, &stco, 0, 4, ErrNoChunkOffset)
		if err != nil {
			return nil, err
		}

		offsets := make([]uint64, count)
		for idx := range count {
			offsets[idx] = uint64(binary.BigEndian.Uint32(body[idx*4:]))
		}

		return offsets, nil
	}

	// Fall back to 64-bit co64.
	co64, found, err := findChild(reader, stbl, fccCo64)
	if err != nil || !found {
		return nil, ErrNoChunkOffset
	}

	body, count, err := readTable(reader, &co64, 0, 8, ErrInvalidCo64)
	if err != nil {
		return nil, err
	}

	offsets := make([]uint64, count)
	for idx := range count {
		offsets[idx] = binary.BigEndian.Uint64(body[idx*8:])
	}

	return offsets, nil
}

// readStsc reads the sample-to-chunk box.
// Layout: FullBox(4) + entryCount(4) + entryCount × (firstChunk(4) + samplesPerChunk(4) + sampleDescIdx(4)).
func readStsc(reader io.ReadSeeker, stbl *boxInfo) ([]stscEntry, error) {
	box, found, err := findChild(reader, stbl, fccStsc)
	if err != nil || !found {
		return nil, ErrNoStsc
	}

	const entryBytes = 12

	body, count, err := readTable(reader, &box, 0, entryBytes, ErrInvalidStsc)
	if err != nil {
		return nil, err
	}

	entries := make([]stscEntry, count)
	for idx := range count {
		off := int(idx) * entryBytes
		entries[idx] = stscEntry{
			FirstChunk:      binary.BigEndian.Uint32(body[off:]),
			SamplesPerChunk: binary.BigEndian.Uint32(body[off+4:]),
		}
	}

	return entries, nil
}

// readStsz reads the sample size box.
// Layout: FullBox(4) + sampleSize(4) + sampleCount(4) + [sampleCount × uint32 if sampleSize == 0].
//
//revive:disable:function-result-limit,confusing-results
func readStsz(reader io.ReadSeeker, stbl *boxInfo) ([]uint32, uint32, uint32, error) {
	box, found, err := findChild(reader, stbl, fccStsz)
	if err != nil || !found {
		return nil, 0, 0, ErrNoStsz
	}

	data, err := box.readPayload(reader)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %w", ErrInvalidStsz, err)
	}

	if len(data) < fullBoxSize+8 {
		return nil, 0, 0, ErrInvalidStsz
	}

	sampleSize := binary.BigEndian.Uint32(data[fullBoxSize:])
	sampleCount := binary.BigEndian.Uint32(data[fullBoxSize+4:])

	if sampleSize != 0 {
		// Constant size: no per-sample entries.
		return nil, sampleSize, sampleCount, nil
	}

	body, count, err := readTable(reader, &box, 4, 4, ErrInvalidStsz)
	if err != nil {
		return nil, 0, 0, err
	}

	sizes := make([]uint32, count)
	for idx := range count {
		sizes[idx] = binary.BigEndian.Uint32(body[idx*4:])
	}

	return sizes, 0, count, nil
}

// readStts reads the time-to-sample box. A missing box yields no entries.
// Layout: FullBox(4) + entryCount(4) + entryCount × (sampleCount(4) + sampleDelta(4)).
func readStts(reader io.ReadSeeker, stbl *boxInfo) ([]sttsEntry, error) {
	box, found, err := findChild(reader, stbl, fccStts)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	const entryBytes = 8

	body, count, err := readTable(reader, &box, 0, entryBytes, ErrInvalidStts)
	if err != nil {
		return nil, err
	}

	entries := make([]sttsEntry, count)
	for idx := range count {
		off := int(idx) * entryBytes
		entries[idx] = sttsEntry{
			Count: binary.BigEndian.Uint32(body[off:]),
			Delta: binary.BigEndian.Uint32(body[off+4:]),
		}
	}

	return entries, nil
}

// lookupSamplesPerChunk finds the samples-per-chunk count for a 1-based
// chunk number from the stsc run-length table.
func lookupSamplesPerChunk(entries []stscEntry, chunkNumber uint32) uint32 {
	var samplesPerChunk uint32

	for _, entry := range entries {
		if entry.FirstChunk > chunkNumber {
			break
		}

		samplesPerChunk = entry.SamplesPerChunk
	}

	return samplesPerChunk
}
