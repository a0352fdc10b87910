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

// Package testutil builds in-memory media fixtures for tests.
//
//nolint:gosec // Fixture sizes are small and fixed-width casts are intended.
package testutil

import (
	"encoding/binary"
	"testing"

	"github.com/mycophonic/agar/pkg/agar"
)

const wavHeaderSize = 44

// WAV wraps interleaved little-endian PCM in a canonical 44-byte header.
func WAV(pcm []byte, bitDepth, sampleRate, channels int) []byte {
	bytesPerSample := bitDepth / 8
	blockAlign := channels * bytesPerSample
	byteRate := sampleRate * blockAlign
	dataSize := len(pcm)

	buf := make([]byte, wavHeaderSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitDepth))

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[wavHeaderSize:], pcm)

	return buf
}

// NoiseWAV returns a white-noise WAV file and its raw PCM.
func NoiseWAV(t *testing.T, sampleRate, bitDepth, channels, seconds int) ([]byte, []byte) {
	t.Helper()

	pcm := agar.GenerateWhiteNoise(sampleRate, bitDepth, channels, seconds)
	if len(pcm) == 0 {
		t.Fatalf("white noise generator returned no samples")
	}

	return WAV(pcm, bitDepth, sampleRate, channels), pcm
}
