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

package mp4_test

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/mycophonic/saprobe-playback/internal/mp4"
	"github.com/mycophonic/saprobe-playback/internal/testutil"
)

func TestOpenMovie(t *testing.T) {
	t.Parallel()

	video := testutil.MJPEGTrack(t, 12, 24, 32, 16)
	audio, _ := testutil.ALACTrack(t, 44100, 16, 2, 1)
	data := testutil.MP4(video, audio)

	file, err := mp4.Open(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if len(file.Tracks) != 2 {
		t.Fatalf("tracks = %d, want 2", len(file.Tracks))
	}

	vt, err := file.Track(mp4.TrackVideo)
	if err != nil {
		t.Fatalf("video track: %v", err)
	}

	if vt.Codec != "jpeg" || vt.Width != 32 || vt.Height != 16 {
		t.Errorf("video = %q %dx%d, want jpeg 32x16", vt.Codec, vt.Width, vt.Height)
	}

	if len(vt.Samples) != 12 {
		t.Fatalf("video samples = %d, want 12", len(vt.Samples))
	}

	for i, sample := range vt.Samples {
		got := data[sample.Offset : sample.Offset+uint64(sample.Size)]
		if !bytes.Equal(got, video.Samples[i]) {
			t.Fatalf("sample %d bytes differ", i)
		}

		if sample.Time != uint64(i*100) {
			t.Errorf("sample %d time = %d, want %d", i, sample.Time, i*100)
		}
	}

	if math.Abs(vt.DurationSeconds()-0.5) > 1e-9 {
		t.Errorf("video duration = %v, want 0.5", vt.DurationSeconds())
	}

	if math.Abs(vt.FrameRate()-24) > 1e-9 {
		t.Errorf("frame rate = %v, want 24", vt.FrameRate())
	}

	at := file.Tracks[1]
	if at.Kind != mp4.TrackAudio || at.Codec != "alac" {
		t.Errorf("track 2 = %s %q, want audio alac", at.Kind, at.Codec)
	}

	if at.Channels != 2 || at.SampleSize != 16 || at.SampleRate != 44100 {
		t.Errorf("audio entry = %d ch %d-bit %d Hz", at.Channels, at.SampleSize, at.SampleRate)
	}

	if len(at.Extra) == 0 {
		t.Errorf("audio entry has no codec configuration")
	}

	if math.Abs(file.DurationSeconds()-1) > 0.001 {
		t.Errorf("movie duration = %v, want 1", file.DurationSeconds())
	}
}

func TestSampleAt(t *testing.T) {
	t.Parallel()

	file, err := mp4.Open(bytes.NewReader(testutil.MP4(testutil.MJPEGTrack(t, 10, 10, 8, 8))))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	track := &file.Tracks[0]

	tests := []struct {
		seconds float64
		want    int
	}{
		{-1, 0},
		{0, 0},
		{0.05, 0},
		{0.1, 1},
		{0.55, 5},
		{0.99, 9},
		{5, 9},
	}

	for _, tt := range tests {
		if got := track.SampleAt(tt.seconds); got != tt.want {
			t.Errorf("SampleAt(%v) = %d, want %d", tt.seconds, got, tt.want)
		}
	}
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()

	valid := testutil.MP4(testutil.MJPEGTrack(t, 2, 10, 8, 8))

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"no movie", valid[:28]},
		{"truncated movie", valid[:len(valid)-20]},
	}

	for _, tt := range tests {
		if _, err := mp4.Open(bytes.NewReader(tt.data)); err == nil {
			t.Errorf("%s: Open succeeded", tt.name)
		}
	}
}

func TestOpenRejectsSamplePastEnd(t *testing.T) {
	t.Parallel()

	valid := testutil.MP4(testutil.MJPEGTrack(t, 5, 10, 8, 8))

	tests := []struct {
		name  string
		index int
		size  uint32
	}{
		{"huge first sample", 0, 0x7FFFFFF0},
		{"last sample past end", 4, uint32(len(valid))},
	}

	for _, tt := range tests {
		_, err := mp4.Open(bytes.NewReader(testutil.SetSampleSize(t, valid, tt.index, tt.size)))
		if !errors.Is(err, mp4.ErrInvalidStsz) || !errors.Is(err, mp4.ErrTableTooLarge) {
			t.Errorf("%s: error = %v, want ErrInvalidStsz and ErrTableTooLarge", tt.name, err)
		}
	}
}

func TestTrackMissing(t *testing.T) {
	t.Parallel()

	file, err := mp4.Open(bytes.NewReader(testutil.MP4(testutil.MJPEGTrack(t, 2, 10, 8, 8))))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := file.Track(mp4.TrackAudio); !errors.Is(err, mp4.ErrNoTrack) {
		t.Errorf("error = %v, want ErrNoTrack", err)
	}
}
