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

// Package mp4 demuxes ISO BMFF / QuickTime files into per-track sample tables.
//
//nolint:gosec // Integer conversions are bounded by MP4 atom sizes.
package mp4

import (
	"fmt"
	"io"
	"sort"
)

// TrackKind classifies a track by its handler type.
type TrackKind int

// Track kinds.
const (
	TrackOther TrackKind = iota
	TrackAudio
	TrackVideo
)

func (k TrackKind) String() string {
	switch k {
	case TrackAudio:
		return "audio"
	case TrackVideo:
		return "video"
	default:
		return "other"
	}
}

func kindOf(handler [4]byte) TrackKind {
	switch string(handler[:]) {
	case "soun":
		return TrackAudio
	case "vide":
		return TrackVideo
	default:
		return TrackOther
	}
}

// Track is one elementary stream of the file.
type Track struct {
	ID        uint32
	Kind      TrackKind
	Codec     string
	Timescale uint32
	Duration  uint64

	Width  int
	Height int

	Channels   int
	SampleSize int
	SampleRate int

	// Extra holds the sample entry child boxes (codec configuration).
	Extra []byte

	Samples []Sample
}

// Seconds converts track ticks to seconds.
func (t *Track) Seconds(ticks uint64) float64 {
	if t.Timescale == 0 {
		return 0
	}

	return float64(ticks) / float64(t.Timescale)
}

// DurationSeconds is the media duration, falling back to the end of the
// last sample when mdhd carries none.
func (t *Track) DurationSeconds() float64 {
	if t.Duration > 0 {
		return t.Seconds(t.Duration)
	}

	if n := len(t.Samples); n > 0 {
		last := t.Samples[n-1]

		return t.Seconds(last.Time + uint64(last.Duration))
	}

	return 0
}

// FrameRate is the average sample rate of the track in samples per second,
// zero when it cannot be derived.
func (t *Track) FrameRate() float64 {
	dur := t.DurationSeconds()
	if dur <= 0 || len(t.Samples) == 0 {
		return 0
	}

	return float64(len(t.Samples)) / dur
}

// SampleAt returns the index of the last sample starting at or before
// seconds, clamped to the table.
func (t *Track) SampleAt(seconds float64) int {
	if len(t.Samples) == 0 || seconds <= 0 {
		return 0
	}

	ticks := uint64(seconds * float64(t.Timescale))
	idx := sort.Search(len(t.Samples), func(i int) bool { return t.Samples[i].Time > ticks })

	return max(idx-1, 0)
}

// File is a parsed movie.
type File struct {
	Timescale uint32
	Duration  uint64
	Tracks    []Track
}

// DurationSeconds is the movie duration, falling back to the longest track.
func (f *File) DurationSeconds() float64 {
	if f.Timescale > 0 && f.Duration > 0 {
		return float64(f.Duration) / float64(f.Timescale)
	}

	var longest float64
	for i := range f.Tracks {
		longest = max(longest, f.Tracks[i].DurationSeconds())
	}

	return longest
}

// Track returns the first track of the given kind.
func (f *File) Track(kind TrackKind) (*Track, error) {
	for i := range f.Tracks {
		if f.Tracks[i].Kind == kind && len(f.Tracks[i].Samples) > 0 {
			return &f.Tracks[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNoTrack, kind)
}

// Open parses the movie header and the sample tables of every track.
func Open(reader io.ReadSeeker) (*File, error) {
	meta, err := probeMovie(reader)
	if err != nil {
		return nil, err
	}

	fileEnd, err := reader.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("seeking to end: %w", err)
	}

	root := boxInfo{offset: 0, size: fileEnd, headerSize: 0}

	moov, found, err := findChild(reader, &root, fccMoov)
	if err != nil {
		return nil, fmt.Errorf("reading container structure: %w", err)
	}

	if !found {
		return nil, ErrNoMovie
	}

	file := &File{Timescale: meta.timescale, Duration: meta.duration}

	err = iterChildren(reader, &moov, func(trak boxInfo) (bool, error) {
		if trak.fourCC != fccTrak {
			return false, nil
		}

		idx := len(file.Tracks)
		if idx >= len(meta.tracks) {
			return true, ErrTrackMismatch
		}

		track, trackErr := readTrack(reader, &trak, meta.tracks[idx])
		if trackErr != nil {
			return true, fmt.Errorf("track %d: %w", idx+1, trackErr)
		}

		file.Tracks = append(file.Tracks, track)

		return false, nil
	})
	if err != nil {
		return nil, err
	}

	if len(file.Tracks) != len(meta.tracks) {
		return nil, ErrTrackMismatch
	}

	return file, nil
}

func readTrack(reader io.ReadSeeker, trak *boxInfo, meta trackMeta) (Track, error) {
	track := Track{
		ID:        meta.id,
		Kind:      kindOf(meta.handler),
		Timescale: meta.timescale,
		Duration:  meta.duration,
		Width:     meta.width,
		Height:    meta.height,
	}

	stbl, found, err := findDescendant(reader, trak, [][4]byte{fccMdia, fccMinf, fccStbl})
	if err != nil {
		return Track{}, err
	}

	if !found {
		return Track{}, ErrNoSampleTable
	}

	if track.Kind == TrackOther {
		return track, nil
	}

	entry, err := readSampleEntry(reader, &stbl, track.Kind)
	if err != nil {
		return Track{}, err
	}

	track.Codec = entry.codec
	track.Channels = entry.channels
	track.SampleSize = entry.sampleSize
	track.SampleRate = entry.sampleRate
	track.Extra = entry.extra

	// The sample entry carries the coded size; tkhd may hold a display size.
	if entry.width > 0 && entry.height > 0 {
		track.Width = entry.width
		track.Height = entry.height
	}

	track.Samples, err = buildSampleTable(reader, &stbl)
	if err != nil {
		return Track{}, fmt.Errorf("building sample table: %w", err)
	}

	return track, nil
}
