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

// Package convert turns decoded media into the engine's output formats:
// stereo signed 16-bit 44.1 kHz PCM for audio, packed RGB24/RGBA32 for pictures.
package convert

import (
	"fmt"
	"math"

	"github.com/go-audio/audio"
)

// Fixed audio output format.
const (
	OutputRate           = 44100
	OutputChannels       = 2
	OutputBitDepth       = 16
	OutputFrameBytes     = OutputChannels * OutputBitDepth / 8
	OutputBytesPerSecond = OutputRate * OutputFrameBytes
)

// Resampler converts interleaved integer PCM of any rate, channel count and
// bit depth to the fixed output format. Mono is duplicated to both channels;
// layouts wider than stereo keep their front pair. Matching rates pass through
// unchanged; other rates are linearly interpolated, carrying the fractional
// read position across calls.
type Resampler struct {
	rate     int
	channels int
	depth    int

	step   float64
	pos    float64
	prev   [2]int32
	primed bool

	out []byte
}

// NewResampler configures a resampler for one source format.
func NewResampler(sampleRate, channels, bitDepth int) (*Resampler, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: %d Hz, %d channels", ErrAudioFormat, sampleRate, channels)
	}

	switch bitDepth {
	case 8, 16, 20, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit", ErrAudioFormat, bitDepth)
	}

	return &Resampler{
		rate:     sampleRate,
		channels: channels,
		depth:    bitDepth,
		step:     float64(sampleRate) / OutputRate,
	}, nil
}

// Passthrough reports whether samples are copied without interpolation.
func (r *Resampler) Passthrough() bool { return r.rate == OutputRate }

// Reset drops the interpolation history. Call it after a seek.
func (r *Resampler) Reset() {
	r.pos = 0
	r.primed = false
}

// Convert returns buf resampled to the output format. The returned slice is
// reused by the next call.
func (r *Resampler) Convert(buf *audio.IntBuffer) []byte {
	r.out = r.out[:0]

	if buf == nil {
		return r.out
	}

	frames := len(buf.Data) / r.channels
	if frames == 0 {
		return r.out
	}

	if r.Passthrough() {
		for idx := range frames {
			r.appendFrame(r.frame(buf.Data, idx))
		}

		return r.out
	}

	if !r.primed {
		r.prev = r.frame(buf.Data, 0)
		r.primed = true
	}

	// pos indexes the current buffer; -1 addresses the last frame of the
	// previous call.
	at := func(idx int) [2]int32 {
		if idx < 0 {
			return r.prev
		}

		return r.frame(buf.Data, idx)
	}

	for r.pos+1 < float64(frames) {
		base := math.Floor(r.pos)
		idx := int(base)
		frac := r.pos - base

		left, right := at(idx), at(idx+1)

		r.appendFrame([2]int32{
			lerp(left[0], right[0], frac),
			lerp(left[1], right[1], frac),
		})

		r.pos += r.step
	}

	r.pos -= float64(frames)
	r.prev = r.frame(buf.Data, frames-1)

	return r.out
}

// frame reads one source frame as a 16-bit stereo pair.
func (r *Resampler) frame(data []int, idx int) [2]int32 {
	base := idx * r.channels
	left := r.scale(data[base])

	right := left
	if r.channels > 1 {
		right = r.scale(data[base+1])
	}

	return [2]int32{left, right}
}

func (r *Resampler) scale(sample int) int32 {
	switch {
	case r.depth == 8:
		// 8-bit PCM is unsigned.
		return int32(sample-128) << 8
	case r.depth > 16:
		return int32(sample >> (r.depth - 16))
	default:
		return int32(sample)
	}
}

func (r *Resampler) appendFrame(f [2]int32) {
	left, right := clamp16(f[0]), clamp16(f[1])
	r.out = append(r.out, byte(left), byte(left>>8), byte(right), byte(right>>8))
}

func lerp(a, b int32, frac float64) int32 {
	return a + int32(math.Round(float64(b-a)*frac))
}

func clamp16(v int32) int16 {
	return int16(min(max(v, math.MinInt16), math.MaxInt16))
}

// DurationOf returns the playback time of n output bytes in seconds.
func DurationOf(n int) float64 {
	return float64(n) / OutputBytesPerSecond
}
