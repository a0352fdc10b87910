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

package playback_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	playback "github.com/mycophonic/saprobe-playback"
	"github.com/mycophonic/saprobe-playback/internal/testutil"
)

func TestKindFromMIME(t *testing.T) {
	tests := []struct {
		mime string
		want playback.Kind
	}{
		{"audio/mpeg", playback.KindAudio},
		{"audio/wav", playback.KindAudio},
		{"Audio/MP4; codecs=alac", playback.KindAudio},
		{"video/mp4", playback.KindVideo},
		{"image/gif", playback.KindAnimatedImage},
		{"image/png", playback.KindUnknown},
		{"application/octet-stream", playback.KindUnknown},
		{"", playback.KindUnknown},
	}

	for _, tt := range tests {
		if got := playback.KindFromMIME(tt.mime); got != tt.want {
			t.Errorf("KindFromMIME(%q) = %v, want %v", tt.mime, got, tt.want)
		}
	}
}

func TestDetectKind(t *testing.T) {
	audioTrack, _ := testutil.ALACTrack(t, 8000, 16, 1, 1)

	tests := []struct {
		name string
		data []byte
		want playback.Kind
	}{
		{"wav", noiseWAV(t, 1), playback.KindAudio},
		{"gif", testutil.GIF(t, 2, 10, 4, 4), playback.KindAnimatedImage},
		{"m4a", testutil.MP4(audioTrack), playback.KindAudio},
		{"mp4", videoFixture(t, 2, true), playback.KindVideo},
		{"garbage", []byte("hello"), playback.KindUnknown},
	}

	for _, tt := range tests {
		if got := playback.DetectKind(tt.data); got != tt.want {
			t.Errorf("%s: DetectKind = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestExtractFirstFrame(t *testing.T) {
	video, err := playback.ExtractFirstFrame(videoFixture(t, 4, false), playback.KindVideo)
	if err != nil {
		t.Fatalf("video: %v", err)
	}

	if video.Format != playback.RGB24 || video.Width != 32 || video.Height != 16 {
		t.Errorf("video frame = %v %dx%d, want RGB24 32x16", video.Format, video.Width, video.Height)
	}

	// First JPEG fixture frame is R=0 G=128 B=255; allow for compression.
	if r, g, b, _ := video.Pixel(8, 8); r > 12 || g < 116 || g > 140 || b < 240 {
		t.Errorf("video pixel = %d,%d,%d, want about 0,128,255", r, g, b)
	}

	anim, err := playback.ExtractFirstFrame(testutil.GIF(t, 3, 10, 6, 5), playback.KindAnimatedImage)
	if err != nil {
		t.Fatalf("gif: %v", err)
	}

	if anim.Format != playback.RGBA32 || anim.Width != 6 || anim.Height != 5 || len(anim.Data) != 6*5*4 {
		t.Errorf("gif frame = %v %dx%d (%d bytes)", anim.Format, anim.Width, anim.Height, len(anim.Data))
	}

	if _, err := playback.ExtractFirstFrame(noiseWAV(t, 1), playback.KindAudio); !errors.Is(err, playback.ErrUnsupportedKind) {
		t.Errorf("audio: err = %v, want ErrUnsupportedKind", err)
	}

	if _, err := playback.ExtractFirstFrame([]byte("nope"), playback.KindVideo); !errors.Is(err, playback.ErrContainer) {
		t.Errorf("garbage: err = %v, want ErrContainer", err)
	}

	requireNoHandles(t)
}

func TestDecodeImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 10, B: 20, A: 128})
	img.SetNRGBA(2, 1, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	frame, info, err := playback.DecodeImage(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}

	want := playback.ImageInfo{Width: 3, Height: 2, HasAlpha: true, Format: "png"}
	if info != want {
		t.Errorf("info = %+v, want %+v", info, want)
	}

	if frame.Format != playback.RGBA32 {
		t.Errorf("format = %v, want RGBA32", frame.Format)
	}

	if r, g, b, a := frame.Pixel(0, 0); r != 200 || g != 10 || b != 20 || a != 128 {
		t.Errorf("pixel (0,0) = %d,%d,%d,%d", r, g, b, a)
	}

	if r, g, b, a := frame.Pixel(2, 1); r != 1 || g != 2 || b != 3 || a != 255 {
		t.Errorf("pixel (2,1) = %d,%d,%d,%d", r, g, b, a)
	}

	jpg := testutil.JPEGFrame(t, 1, 8, 8)

	if _, info, err := playback.DecodeImage(jpg); err != nil || info.HasAlpha || info.Format != "jpeg" {
		t.Errorf("jpeg: info %+v err %v", info, err)
	}

	if _, _, err := playback.DecodeImage([]byte("not an image")); !errors.Is(err, playback.ErrContainer) {
		t.Errorf("garbage: err = %v, want ErrContainer", err)
	}

	if _, _, err := playback.DecodeImage(nil); !errors.Is(err, playback.ErrEmptyInput) {
		t.Errorf("empty: err = %v, want ErrEmptyInput", err)
	}
}
