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
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"testing"

	"github.com/mycophonic/agar/pkg/agar"
)

// GIF encodes an animation of frames solid-colored frames, each shown for
// delay hundredths of a second. A zero delay leaves the delays undeclared.
func GIF(t *testing.T, frames, delay, width, height int) []byte {
	t.Helper()

	anim := &gif.GIF{
		Config: image.Config{Width: width, Height: height},
	}

	for i := range frames {
		img := image.NewPaletted(image.Rect(0, 0, width, height), palette.Plan9)

		idx := uint8((i*37 + 1) % len(palette.Plan9))
		for p := range img.Pix {
			img.Pix[p] = idx
		}

		anim.Image = append(anim.Image, img)
		anim.Delay = append(anim.Delay, delay)
		anim.Disposal = append(anim.Disposal, gif.DisposalNone)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		t.Fatalf("encode gif: %v", err)
	}

	return buf.Bytes()
}

// JPEGFrame encodes a solid picture whose color varies with index.
func JPEGFrame(t *testing.T, index, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill := color.RGBA{R: uint8(index * 40), G: 128, B: uint8(255 - index*40), A: 255}

	for y := range height {
		for x := range width {
			img.SetRGBA(x, y, fill)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	return buf.Bytes()
}

// MJPEGTrack returns a Motion-JPEG video track of frames pictures at fps.
func MJPEGTrack(t *testing.T, frames, fps, width, height int) Track {
	t.Helper()

	track := Track{
		Handler:   "vide",
		Codec:     "jpeg",
		Timescale: uint32(fps * 100),
		Width:     width,
		Height:    height,
	}

	for i := range frames {
		track.Samples = append(track.Samples, JPEGFrame(t, i, width, height))
		track.Durations = append(track.Durations, 100)
	}

	return track
}

// ALACTrack encodes white noise as an ALAC audio track and returns the
// track with the source PCM.
func ALACTrack(t *testing.T, sampleRate, bitDepth, channels, seconds int) (Track, []byte) {
	t.Helper()

	const frameLength = 4096

	pcm := agar.GenerateWhiteNoise(sampleRate, bitDepth, channels, seconds)
	cfg := ALACConfig(sampleRate, bitDepth, channels, frameLength)
	packets := ALACPackets(pcm, cfg)

	frames := len(pcm) / (channels * bitDepth / 8)
	durations := make([]uint32, len(packets))

	for i := range durations {
		durations[i] = uint32(min(frameLength, frames-i*frameLength))
	}

	return Track{
		Handler:    "soun",
		Codec:      "alac",
		Timescale:  uint32(sampleRate),
		Samples:    packets,
		Durations:  durations,
		Channels:   channels,
		SampleSize: bitDepth,
		SampleRate: sampleRate,
		Extra:      ALACCookie(cfg),
	}, pcm
}

// PCMTrack stores white noise as raw little-endian ('sowt') samples, one MP4
// sample per frame.
func PCMTrack(t *testing.T, sampleRate, bitDepth, channels, seconds int) (Track, []byte) {
	t.Helper()

	pcm := agar.GenerateWhiteNoise(sampleRate, bitDepth, channels, seconds)
	frameBytes := channels * bitDepth / 8

	track := Track{
		Handler:    "soun",
		Codec:      "sowt",
		Timescale:  uint32(sampleRate),
		Channels:   channels,
		SampleSize: bitDepth,
		SampleRate: sampleRate,
	}

	for off := 0; off+frameBytes <= len(pcm); off += frameBytes {
		track.Samples = append(track.Samples, pcm[off:off+frameBytes])
		track.Durations = append(track.Durations, 1)
	}

	return track, pcm
}
