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

package alac_test

import (
	"testing"

	"github.com/mycophonic/agar/pkg/agar"

	"github.com/mycophonic/saprobe-playback/internal/alac"
	"github.com/mycophonic/saprobe-playback/internal/testutil"
)

func BenchmarkDecodeInto(b *testing.B) {
	const frameLength = 4096

	for _, format := range []struct {
		name     string
		depth    int
		channels int
	}{
		{"stereo16", 16, 2},
		{"stereo24", 24, 2},
		{"mono16", 16, 1},
	} {
		b.Run(format.name, func(b *testing.B) {
			cfg := testutil.ALACConfig(44100, format.depth, format.channels, frameLength)
			pcm := agar.GenerateWhiteNoise(44100, format.depth, format.channels, 1)
			packets := testutil.ALACPackets(pcm, cfg)

			dec, err := alac.NewDecoder(cfg)
			if err != nil {
				b.Fatalf("NewDecoder: %v", err)
			}

			out := make([]byte, cfg.FrameBytes())

			b.SetBytes(int64(len(pcm)))
			b.ResetTimer()

			for range b.N {
				for _, packet := range packets {
					if _, err := dec.DecodeInto(packet, out); err != nil {
						b.Fatalf("DecodeInto: %v", err)
					}
				}
			}
		})
	}
}
