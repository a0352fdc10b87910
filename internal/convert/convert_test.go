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

package convert_test

import (
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/go-audio/audio"

	"github.com/mycophonic/saprobe-playback/internal/convert"
)

func intBuffer(channels, rate int, data []int) *audio.IntBuffer {
	return &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
}

func samples16(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}

	return out
}

func TestResamplerPassthroughStereo(t *testing.T) {
	res, err := convert.NewResampler(44100, 2, 16)
	if err != nil {
		t.Fatalf("NewResampler: %v", err)
	}

	if !res.Passthrough() {
		t.Fatal("44.1 kHz source should pass through")
	}

	in := []int{1, -1, 1000, -1000, 32767, -32768}
	got := samples16(res.Convert(intBuffer(2, 44100, in)))

	if len(got) != len(in) {
		t.Fatalf("got %d samples, want %d", len(got), len(in))
	}

	for i := range in {
		if int(got[i]) != in[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], in[i])
		}
	}
}

func TestResamplerMonoDuplicates(t *testing.T) {
	res, err := convert.NewResampler(44100, 1, 16)
	if err != nil {
		t.Fatalf("NewResampler: %v", err)
	}

	got := samples16(res.Convert(intBuffer(1, 44100, []int{5, -7, 9})))
	want := []int16{5, 5, -7, -7, 9, 9}

	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestResamplerKeepsFrontPair(t *testing.T) {
	res, err := convert.NewResampler(44100, 6, 16)
	if err != nil {
		t.Fatalf("NewResampler: %v", err)
	}

	got := samples16(res.Convert(intBuffer(6, 44100, []int{10, 20, 30, 40, 50, 60})))
	if len(got) != 2 || got[0] != 10 || got[1] != 20 {
		t.Errorf("got %v, want [10 20]", got)
	}
}

func TestResamplerScalesBitDepth(t *testing.T) {
	tests := []struct {
		depth int
		in    int
		want  int16
	}{
		{24, 0x7fff00, 0x7fff},
		{24, -0x800000, -0x8000},
		{32, 0x10000 * 100, 100},
		{8, 255, 127 << 8},
		{8, 0, -128 << 8},
	}

	for _, tc := range tests {
		res, err := convert.NewResampler(44100, 1, tc.depth)
		if err != nil {
			t.Fatalf("NewResampler(%d): %v", tc.depth, err)
		}

		got := samples16(res.Convert(intBuffer(1, 44100, []int{tc.in})))
		if got[0] != tc.want {
			t.Errorf("%d-bit %d: got %d, want %d", tc.depth, tc.in, got[0], tc.want)
		}
	}
}

func TestResamplerUpsamplesContinuously(t *testing.T) {
	const srcRate = 22050

	res, err := convert.NewResampler(srcRate, 1, 16)
	if err != nil {
		t.Fatalf("NewResampler: %v", err)
	}

	// One second of a ramp, fed in uneven chunks.
	ramp := make([]int, srcRate)
	for i := range ramp {
		ramp[i] = i % 20000
	}

	var out []int16

	for start := 0; start < len(ramp); {
		end := min(start+997, len(ramp))
		out = append(out, samples16(res.Convert(intBuffer(1, srcRate, ramp[start:end])))...)
		start = end
	}

	frames := len(out) / 2
	if frames < 44100-4 || frames > 44100 {
		t.Errorf("got %d output frames for one second, want ~44100", frames)
	}

	// Interpolated values must stay monotonic within the first ramp segment.
	for i := 2; i < 2*19000; i += 2 {
		if out[i] < out[i-2] {
			t.Fatalf("frame %d: %d after %d, interpolation went backwards", i/2, out[i], out[i-2])
		}
	}
}

func TestResamplerRejectsBadFormat(t *testing.T) {
	for _, tc := range []struct{ rate, channels, depth int }{
		{0, 2, 16},
		{44100, 0, 16},
		{44100, 2, 12},
	} {
		if _, err := convert.NewResampler(tc.rate, tc.channels, tc.depth); !errors.Is(err, convert.ErrAudioFormat) {
			t.Errorf("%+v: got %v, want ErrAudioFormat", tc, err)
		}
	}
}

func TestPixelConverterGeometry(t *testing.T) {
	if _, err := convert.NewPixelConverter(convert.RGB24, 0, 10); !errors.Is(err, convert.ErrGeometry) {
		t.Errorf("got %v, want ErrGeometry", err)
	}

	if _, err := convert.NewPixelConverter(convert.PixelFormat(9), 4, 4); !errors.Is(err, convert.ErrPixelFormat) {
		t.Errorf("got %v, want ErrPixelFormat", err)
	}
}

func TestPixelConverterYCbCrToRGB(t *testing.T) {
	img := image.NewYCbCr(image.Rect(0, 0, 4, 4), image.YCbCrSubsampleRatio420)
	for i := range img.Y {
		img.Y[i] = 200
	}

	for i := range img.Cb {
		img.Cb[i] = 128
		img.Cr[i] = 128
	}

	conv, err := convert.NewPixelConverter(convert.RGB24, 4, 4)
	if err != nil {
		t.Fatalf("NewPixelConverter: %v", err)
	}

	frame, err := conv.Convert(img)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if frame.Stride != 12 || len(frame.Data) != 48 {
		t.Fatalf("stride %d len %d, want 12 and 48", frame.Stride, len(frame.Data))
	}

	r, g, b, a := frame.Pixel(3, 3)
	if r != 200 || g != 200 || b != 200 || a != 0xff {
		t.Errorf("pixel = %d,%d,%d,%d, want 200,200,200,255", r, g, b, a)
	}
}

func TestPixelConverterKeepsTransparency(t *testing.T) {
	palette := color.Palette{color.Transparent, color.NRGBA{R: 255, A: 255}}
	img := image.NewPaletted(image.Rect(0, 0, 2, 1), palette)
	img.Pix[1] = 1

	conv, err := convert.NewPixelConverter(convert.RGBA32, 2, 1)
	if err != nil {
		t.Fatalf("NewPixelConverter: %v", err)
	}

	frame, err := conv.Convert(img)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if _, _, _, a := frame.Pixel(0, 0); a != 0 {
		t.Errorf("transparent pixel alpha = %d, want 0", a)
	}

	if r, g, b, a := frame.Pixel(1, 0); r != 255 || g != 0 || b != 0 || a != 255 {
		t.Errorf("opaque pixel = %d,%d,%d,%d, want 255,0,0,255", r, g, b, a)
	}
}

func TestPixelConverterUnpremultipliesRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Pix[0], img.Pix[1], img.Pix[2], img.Pix[3] = 64, 0, 0, 128

	straight, err := convert.NewPixelConverter(convert.RGBA32, 1, 1)
	if err != nil {
		t.Fatalf("NewPixelConverter: %v", err)
	}

	frame, _ := straight.Convert(img)
	if r, _, _, a := frame.Pixel(0, 0); r != 127 || a != 128 {
		t.Errorf("straight = r%d a%d, want r127 a128", r, a)
	}

	flat, err := convert.NewPixelConverter(convert.RGB24, 1, 1)
	if err != nil {
		t.Fatalf("NewPixelConverter: %v", err)
	}

	frame, _ = flat.Convert(img)
	if r, _, _, _ := frame.Pixel(0, 0); r != 64 {
		t.Errorf("over black r = %d, want 64", r)
	}
}

func TestPixelConverterReusesBufferAndClone(t *testing.T) {
	conv, err := convert.NewPixelConverter(convert.RGB24, 1, 1)
	if err != nil {
		t.Fatalf("NewPixelConverter: %v", err)
	}

	gray := image.NewGray(image.Rect(0, 0, 1, 1))
	gray.Pix[0] = 10

	first, _ := conv.Convert(gray)
	kept := first.Clone()

	gray.Pix[0] = 99

	second, _ := conv.Convert(gray)
	if &first.Data[0] != &second.Data[0] {
		t.Error("converter allocated a new output buffer")
	}

	if kept.Data[0] != 10 {
		t.Errorf("clone changed to %d after reuse", kept.Data[0])
	}
}

func TestPixelConverterPadsSmallerPicture(t *testing.T) {
	conv, err := convert.NewPixelConverter(convert.RGB24, 2, 2)
	if err != nil {
		t.Fatalf("NewPixelConverter: %v", err)
	}

	big := image.NewGray(image.Rect(0, 0, 2, 2))
	for i := range big.Pix {
		big.Pix[i] = 50
	}

	_, _ = conv.Convert(big)

	small := image.NewGray(image.Rect(0, 0, 1, 1))
	small.Pix[0] = 80

	frame, _ := conv.Convert(small)
	if r, _, _, _ := frame.Pixel(1, 1); r != 0 {
		t.Errorf("padding = %d, want 0", r)
	}

	if r, _, _, _ := frame.Pixel(0, 0); r != 80 {
		t.Errorf("pixel = %d, want 80", r)
	}
}
