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

package decode_test

import (
	"errors"
	"io"
	"math"
	"testing"

	"github.com/go-audio/audio"
	"github.com/mycophonic/agar/pkg/agar"

	"github.com/mycophonic/saprobe-playback/internal/bytesource"
	"github.com/mycophonic/saprobe-playback/internal/decode"
	"github.com/mycophonic/saprobe-playback/internal/testutil"
)

// readAll drains stream and returns its samples as little-endian PCM.
func readAll(t *testing.T, stream decode.AudioStream) []byte {
	t.Helper()

	format := stream.Format()
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
		Data:   make([]int, 1024*format.Channels),
	}

	var out []byte

	for {
		n, err := stream.Read(buf)
		if errors.Is(err, io.EOF) {
			return out
		}

		if err != nil {
			t.Fatalf("Read: %v", err)
		}

		out = appendLE(out, buf.Data[:n], format.BitDepth/8)
	}
}

func appendLE(out []byte, samples []int, width int) []byte {
	for _, s := range samples {
		for b := range width {
			out = append(out, byte(s>>(8*b)))
		}
	}

	return out
}

func requireNoHandles(t *testing.T) {
	t.Helper()

	if n := decode.OpenHandles(); n != 0 {
		t.Fatalf("open handles = %d, want 0", n)
	}
}

func TestSniff(t *testing.T) {
	wav, _ := testutil.NoiseWAV(t, 8000, 16, 1, 1)

	tests := []struct {
		name string
		data []byte
		want decode.Container
	}{
		{"wav", wav, decode.ContainerWAV},
		{"mp4", testutil.MP4(testutil.MJPEGTrack(t, 1, 10, 8, 8)), decode.ContainerMP4},
		{"gif", testutil.GIF(t, 2, 10, 4, 4), decode.ContainerGIF},
		{"png", []byte("\x89PNG\r\n\x1a\n...."), decode.ContainerPNG},
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0}, decode.ContainerJPEG},
		{"id3", []byte("ID3\x04\x00"), decode.ContainerMP3},
		{"mpeg sync", []byte{0xff, 0xfb, 0x90, 0x00}, decode.ContainerMP3},
		{"garbage", []byte("hello world"), decode.ContainerUnknown},
		{"empty", nil, decode.ContainerUnknown},
	}

	for _, tt := range tests {
		if got := decode.Sniff(tt.data); got != tt.want {
			t.Errorf("%s: Sniff = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestWAVStream(t *testing.T) {
	for _, depth := range []int{16, 24} {
		data, pcm := testutil.NoiseWAV(t, 44100, depth, 2, 1)

		stream, err := decode.OpenAudio(bytesource.New(data))
		if err != nil {
			t.Fatalf("%d-bit: OpenAudio: %v", depth, err)
		}

		format := stream.Format()
		if format != (decode.AudioFormat{SampleRate: 44100, Channels: 2, BitDepth: depth}) {
			t.Errorf("%d-bit: format = %+v", depth, format)
		}

		if math.Abs(stream.Duration()-1) > 0.001 {
			t.Errorf("%d-bit: duration = %v, want 1", depth, stream.Duration())
		}

		agar.CompareLosslessSamples(t, "wav", pcm, readAll(t, stream), depth, 2)

		if err := stream.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	requireNoHandles(t)
}

func TestAudioSeek(t *testing.T) {
	const (
		rate   = 44100
		target = 0.5
	)

	wavData, wavPCM := testutil.NoiseWAV(t, rate, 16, 2, 1)
	alacTrack, alacPCM := testutil.ALACTrack(t, rate, 16, 2, 1)
	pcmTrack, rawPCM := testutil.PCMTrack(t, rate, 16, 2, 1)

	inputs := []struct {
		name string
		data []byte
		pcm  []byte
	}{
		{"wav", wavData, wavPCM},
		{"alac", testutil.MP4(alacTrack), alacPCM},
		{"sowt", testutil.MP4(pcmTrack), rawPCM},
	}

	for _, in := range inputs {
		stream, err := decode.OpenAudio(bytesource.New(in.data))
		if err != nil {
			t.Fatalf("%s: OpenAudio: %v", in.name, err)
		}

		got, err := stream.SeekTo(target)
		if err != nil {
			t.Fatalf("%s: SeekTo: %v", in.name, err)
		}

		if math.Abs(got-target) > 1.0/rate {
			t.Errorf("%s: SeekTo reached %v, want %v", in.name, got, target)
		}

		rest := readAll(t, stream)
		want := in.pcm[int(target*rate)*4:]

		agar.CompareLosslessSamples(t, in.name+" after seek", want, rest, 16, 2)

		if _, err := stream.SeekTo(0); err != nil {
			t.Fatalf("%s: rewind: %v", in.name, err)
		}

		agar.CompareLosslessSamples(t, in.name+" after rewind", in.pcm, readAll(t, stream), 16, 2)

		_ = stream.Close()
	}

	requireNoHandles(t)
}

func TestMP4AudioLossless(t *testing.T) {
	for _, f := range []struct{ depth, channels int }{{16, 1}, {16, 2}, {24, 2}} {
		track, pcm := testutil.ALACTrack(t, 48000, f.depth, f.channels, 1)

		stream, err := decode.OpenAudio(bytesource.New(testutil.MP4(track)))
		if err != nil {
			t.Fatalf("OpenAudio: %v", err)
		}

		want := decode.AudioFormat{SampleRate: 48000, Channels: f.channels, BitDepth: f.depth}
		if stream.Format() != want {
			t.Errorf("format = %+v, want %+v", stream.Format(), want)
		}

		agar.CompareLosslessSamples(t, "alac", pcm, readAll(t, stream), f.depth, f.channels)

		_ = stream.Close()
	}

	requireNoHandles(t)
}

func TestOpenAudioErrors(t *testing.T) {
	video := testutil.MP4(testutil.MJPEGTrack(t, 2, 10, 8, 8))

	wav, _ := testutil.NoiseWAV(t, 8000, 16, 1, 1)
	badWAV := append([]byte(nil), wav...)
	copy(badWAV[20:22], []byte{3, 0}) // IEEE float

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"garbage", []byte("definitely not media"), decode.ErrUnknownContainer},
		{"gif", testutil.GIF(t, 2, 10, 4, 4), decode.ErrNoStream},
		{"video only", video, decode.ErrNoStream},
		{"float wav", badWAV, decode.ErrUnsupportedCodec},
		{"truncated mp4", video[:40], decode.ErrUnknownContainer},
	}

	for _, tt := range tests {
		stream, err := decode.OpenAudio(bytesource.New(tt.data))
		if err == nil {
			_ = stream.Close()
			t.Errorf("%s: OpenAudio succeeded", tt.name)

			continue
		}

		if !errors.Is(err, tt.want) {
			t.Errorf("%s: error = %v, want %v", tt.name, err, tt.want)
		}
	}

	requireNoHandles(t)
}

func TestVideoStream(t *testing.T) {
	const (
		frames = 6
		fps    = 12
	)

	data := testutil.MP4(testutil.MJPEGTrack(t, frames, fps, 32, 16))

	stream, file, err := decode.OpenVideo(bytesource.New(data))
	if err != nil {
		t.Fatalf("OpenVideo: %v", err)
	}

	defer stream.Close()

	if file == nil {
		t.Fatalf("OpenVideo returned no movie")
	}

	info := stream.Info()
	if info.Width != 32 || info.Height != 16 || math.Abs(info.FrameRate-fps) > 1e-9 {
		t.Errorf("info = %+v", info)
	}

	for i := range frames {
		img, pts, err := stream.Next()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}

		if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 16 {
			t.Errorf("frame %d bounds = %v", i, img.Bounds())
		}

		if want := float64(i) / fps; math.Abs(pts-want) > 1e-9 {
			t.Errorf("frame %d pts = %v, want %v", i, pts, want)
		}

		if math.Abs(stream.Delay()-1.0/fps) > 1e-9 {
			t.Errorf("frame %d delay = %v", i, stream.Delay())
		}
	}

	if _, _, err := stream.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("after last frame: %v, want EOF", err)
	}

	pos, err := stream.SeekTo(0.3)
	if err != nil {
		t.Fatalf("SeekTo: %v", err)
	}

	if want := 3.0 / fps; math.Abs(pos-want) > 1e-9 {
		t.Errorf("SeekTo(0.3) = %v, want %v", pos, want)
	}

	if _, pts, err := stream.Next(); err != nil || math.Abs(pts-pos) > 1e-9 {
		t.Errorf("after seek: pts %v err %v", pts, err)
	}
}

func TestVideoCorruptPicture(t *testing.T) {
	track := testutil.MJPEGTrack(t, 3, 10, 8, 8)
	track.Samples[1] = []byte("not a jpeg")

	stream, _, err := decode.OpenVideo(bytesource.New(testutil.MP4(track)))
	if err != nil {
		t.Fatalf("OpenVideo: %v", err)
	}

	defer stream.Close()

	if _, _, err := stream.Next(); err != nil {
		t.Fatalf("frame 0: %v", err)
	}

	if _, _, err := stream.Next(); !errors.Is(err, decode.ErrCorruptPacket) {
		t.Fatalf("frame 1: %v, want ErrCorruptPacket", err)
	}

	if _, _, err := stream.Next(); err != nil {
		t.Fatalf("frame 2: %v", err)
	}
}

func TestAnimatedStream(t *testing.T) {
	data := testutil.GIF(t, 20, 10, 16, 8)

	stream, err := decode.OpenAnimated(bytesource.New(data))
	if err != nil {
		t.Fatalf("OpenAnimated: %v", err)
	}

	info := stream.Info()
	if info.Width != 16 || info.Height != 8 {
		t.Errorf("size = %dx%d, want 16x8", info.Width, info.Height)
	}

	if math.Abs(info.Duration-2) > 1e-9 || math.Abs(info.FrameRate-10) > 1e-9 {
		t.Errorf("duration %v rate %v, want 2 s at 10 fps", info.Duration, info.FrameRate)
	}

	count := 0

	for {
		_, pts, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			t.Fatalf("Next: %v", err)
		}

		if want := float64(count) * 0.1; math.Abs(pts-want) > 1e-9 {
			t.Errorf("frame %d pts = %v, want %v", count, pts, want)
		}

		count++
	}

	if count != 20 {
		t.Errorf("frames = %d, want 20", count)
	}

	pos, err := stream.SeekTo(1.25)
	if err != nil {
		t.Fatalf("SeekTo: %v", err)
	}

	if math.Abs(pos-1.2) > 1e-9 {
		t.Errorf("SeekTo(1.25) = %v, want 1.2", pos)
	}

	_ = stream.Close()

	requireNoHandles(t)
}

func TestAnimatedDefaultRate(t *testing.T) {
	stream, err := decode.OpenAnimated(bytesource.New(testutil.GIF(t, 5, 0, 4, 4)))
	if err != nil {
		t.Fatalf("OpenAnimated: %v", err)
	}

	defer stream.Close()

	if rate := stream.Info().FrameRate; math.Abs(rate-decode.DefaultAnimationRate) > 1e-9 {
		t.Errorf("frame rate = %v, want %v", rate, decode.DefaultAnimationRate)
	}
}

func TestHandleRelease(t *testing.T) {
	before := decode.OpenHandles()

	handle := decode.Acquire()
	if decode.OpenHandles() != before+1 {
		t.Fatalf("Acquire did not count")
	}

	handle.Release()
	handle.Release()

	if decode.OpenHandles() != before {
		t.Fatalf("double Release changed the count")
	}
}
