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
	"encoding/binary"

	"github.com/mycophonic/saprobe-playback/internal/alac"
)

// ALAC element tags used by the escape encoder.
const (
	alacTagSCE = 0
	alacTagCPE = 1
	alacTagEND = 7
)

// ALACConfig returns a decoder configuration for uncompressed packets.
func ALACConfig(sampleRate, bitDepth, channels int, frameLength uint32) alac.Config {
	return alac.Config{
		FrameLength: frameLength,
		BitDepth:    uint8(bitDepth),
		NumChannels: uint8(channels),
		PB:          40,
		MB:          10,
		KB:          14,
		MaxRun:      255,
		SampleRate:  uint32(sampleRate),
	}
}

// ALACCookie wraps cfg in the 'alac' box carried by an MP4 sample entry.
func ALACCookie(cfg alac.Config) []byte {
	box := make([]byte, 12, 12+alac.ConfigSize)
	binary.BigEndian.PutUint32(box[0:4], uint32(12+alac.ConfigSize))
	copy(box[4:8], "alac")

	return append(box, cfg.Bytes()...)
}

// ALACPackets splits interleaved little-endian PCM into escape (verbatim)
// ALAC packets of cfg.FrameLength frames. Mono and stereo at 16 or 24 bits
// are supported.
func ALACPackets(pcm []byte, cfg alac.Config) [][]byte {
	width := alac.BytesPerSample(cfg.BitDepth)
	channels := int(cfg.NumChannels)
	frameBytes := width * channels
	frames := len(pcm) / frameBytes

	tag := uint32(alacTagSCE)
	if channels == 2 {
		tag = alacTagCPE
	}

	var packets [][]byte

	for start := 0; start < frames; start += int(cfg.FrameLength) {
		count := min(int(cfg.FrameLength), frames-start)
		partial := count < int(cfg.FrameLength)

		var bits bitWriter

		bits.write(tag, 3)
		bits.write(0, 4)  // instance
		bits.write(0, 12) // unused

		header := uint32(1) // escape, no shift
		if partial {
			header |= 1 << 3
		}

		bits.write(header, 4)

		if partial {
			bits.write(uint32(count), 32)
		}

		for frame := range count {
			for ch := range channels {
				off := (start+frame)*frameBytes + ch*width
				bits.write(readLE(pcm[off:off+width]), uint(cfg.BitDepth))
			}
		}

		bits.write(alacTagEND, 3)
		packets = append(packets, bits.bytes())
	}

	return packets
}

func readLE(sample []byte) uint32 {
	var v uint32
	for i := len(sample) - 1; i >= 0; i-- {
		v = v<<8 | uint32(sample[i])
	}

	return v
}

// bitWriter packs values MSB first.
type bitWriter struct {
	buf   []byte
	acc   uint64
	count uint
}

func (w *bitWriter) write(value uint32, width uint) {
	w.acc = w.acc<<width | uint64(value)&(1<<width-1)
	w.count += width

	for w.count >= 8 {
		w.count -= 8
		w.buf = append(w.buf, byte(w.acc>>w.count))
	}
}

func (w *bitWriter) bytes() []byte {
	if w.count > 0 {
		w.buf = append(w.buf, byte(w.acc<<(8-w.count)))
		w.count = 0
	}

	return w.buf
}
