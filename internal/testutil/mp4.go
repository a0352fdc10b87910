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

package testutil

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// Track describes one track of a generated movie.
type Track struct {
	// Handler is "soun" or "vide".
	Handler   string
	Codec     string
	Timescale uint32
	// Samples are the encoded packets; Durations holds one duration per
	// sample in Timescale units.
	Samples   [][]byte
	Durations []uint32

	Width  int
	Height int

	Channels   int
	SampleSize int
	SampleRate int

	// Extra is appended to the sample entry, for codec configuration boxes.
	Extra []byte
}

// MP4 assembles a movie with ftyp, mdat and moov. Each track's samples are
// stored as a single chunk.
func MP4(tracks ...Track) []byte {
	out := box("ftyp", []byte("M4A \x00\x00\x02\x00isomM4A mp42"))

	var payload []byte

	mdatStart := len(out) + 8
	offsets := make([]uint32, len(tracks))

	for i, track := range tracks {
		offsets[i] = uint32(mdatStart + len(payload))
		for _, sample := range track.Samples {
			payload = append(payload, sample...)
		}
	}

	out = append(out, box("mdat", payload)...)

	const movieTimescale = 1000

	var movieDuration uint32

	traks := make([]byte, 0, 1024)

	for i, track := range tracks {
		dur := totalDuration(track)
		if track.Timescale > 0 {
			movieDuration = max(movieDuration, uint32(uint64(dur)*movieTimescale/uint64(track.Timescale)))
		}

		traks = append(traks, trak(uint32(i+1), track, dur, offsets[i])...)
	}

	moov := append(mvhd(movieTimescale, movieDuration, uint32(len(tracks)+1)), traks...)

	return append(out, box("moov", moov)...)
}

func totalDuration(track Track) uint32 {
	var total uint32
	for _, d := range track.Durations {
		total += d
	}

	return total
}

func box(fourCC string, payload []byte) []byte {
	out := make([]byte, 8, 8+len(payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(8+len(payload)))
	copy(out[4:8], fourCC)

	return append(out, payload...)
}

func fullBox(fourCC string, payload []byte) []byte {
	return box(fourCC, append([]byte{0, 0, 0, 0}, payload...))
}

func be32(values ...uint32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint32(out[i*4:], v)
	}

	return out
}

func be16(values ...uint16) []byte {
	out := make([]byte, 2*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(out[i*2:], v)
	}

	return out
}

//nolint:gochecknoglobals
var unityMatrix = be32(0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000)

func mvhd(timescale, duration, nextTrack uint32) []byte {
	payload := be32(0, 0, timescale, duration, 0x00010000)
	payload = append(payload, be16(0x0100, 0)...)
	payload = append(payload, make([]byte, 8)...)
	payload = append(payload, unityMatrix...)
	payload = append(payload, make([]byte, 24)...)
	payload = append(payload, be32(nextTrack)...)

	return fullBox("mvhd", payload)
}

func trak(id uint32, track Track, duration, chunkOffset uint32) []byte {
	var volume uint16
	if track.Handler == "soun" {
		volume = 0x0100
	}

	tkhd := be32(0, 0, id, 0, duration)
	tkhd = append(tkhd, make([]byte, 8)...)
	tkhd = append(tkhd, be16(0, 0, volume, 0)...)
	tkhd = append(tkhd, unityMatrix...)
	tkhd = append(tkhd, be32(uint32(track.Width)<<16, uint32(track.Height)<<16)...)

	mdhd := be32(0, 0, track.Timescale, duration)
	mdhd = append(mdhd, be16(0x55c4, 0)...) // "und"

	hdlr := be32(0)
	hdlr = append(hdlr, track.Handler...)
	hdlr = append(hdlr, make([]byte, 12)...)
	hdlr = append(hdlr, "fixture\x00"...)

	stbl := append(fullBox("stsd", append(be32(1), sampleEntry(track)...)), stts(track.Durations)...)
	stbl = append(stbl, fullBox("stsc", be32(1, 1, uint32(len(track.Samples)), 1))...)
	stbl = append(stbl, stsz(track.Samples)...)
	stbl = append(stbl, fullBox("stco", be32(1, chunkOffset))...)

	mdia := append(fullBox("mdhd", mdhd), fullBox("hdlr", hdlr)...)
	mdia = append(mdia, box("minf", box("stbl", stbl))...)

	return box("trak", append(fullBox("tkhd", tkhd), box("mdia", mdia)...))
}

func sampleEntry(track Track) []byte {
	fields := make([]byte, 6, 96)
	fields = append(fields, be16(1)...) // data reference index

	if track.Handler == "vide" {
		fields = append(fields, make([]byte, 16)...)
		fields = append(fields, be16(uint16(track.Width), uint16(track.Height))...)
		fields = append(fields, be32(0x00480000, 0x00480000, 0)...)
		fields = append(fields, be16(1)...)
		fields = append(fields, make([]byte, 32)...)
		fields = append(fields, be16(24, 0xffff)...)
	} else {
		fields = append(fields, make([]byte, 8)...) // version, revision, vendor
		fields = append(fields, be16(uint16(track.Channels), uint16(track.SampleSize), 0, 0)...)
		fields = append(fields, be32(uint32(track.SampleRate)<<16)...)
	}

	return box(track.Codec, append(fields, track.Extra...))
}

func stts(durations []uint32) []byte {
	var (
		entries []byte
		count   uint32
	)

	for i := 0; i < len(durations); {
		run := 1
		for i+run < len(durations) && durations[i+run] == durations[i] {
			run++
		}

		entries = append(entries, be32(uint32(run), durations[i])...)
		count++
		i += run
	}

	return fullBox("stts", append(be32(count), entries...))
}

func stsz(samples [][]byte) []byte {
	payload := be32(0, uint32(len(samples)))
	for _, sample := range samples {
		payload = append(payload, be32(uint32(len(sample)))...)
	}

	return fullBox("stsz", payload)
}

// SetSampleSize returns a copy of a movie from MP4 with entry index of the
// first track's stsz table overwritten by size.
func SetSampleSize(t *testing.T, movie []byte, index int, size uint32) []byte {
	t.Helper()

	at := bytes.Index(movie, []byte("stsz"))
	if at < 0 {
		t.Fatalf("movie has no stsz box")
	}

	// type, version/flags, sample_size and sample_count precede the entries.
	entry := at + 16 + 4*index
	if entry+4 > len(movie) {
		t.Fatalf("stsz entry %d out of range", index)
	}

	out := bytes.Clone(movie)
	binary.BigEndian.PutUint32(out[entry:], size)

	return out
}
