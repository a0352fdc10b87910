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
	"errors"
	"testing"

	"github.com/mycophonic/agar/pkg/agar"

	"github.com/mycophonic/saprobe-playback/internal/alac"
	"github.com/mycophonic/saprobe-playback/internal/testutil"
)

func TestParseConfig(t *testing.T) {
	t.Parallel()

	cfg := testutil.ALACConfig(44100, 16, 2, 4096)
	bare := cfg.Bytes()
	wrapped := testutil.ALACCookie(cfg)

	frma := append([]byte{0, 0, 0, 12, 'f', 'r', 'm', 'a', 'a', 'l', 'a', 'c'}, wrapped...)

	for name, cookie := range map[string][]byte{"bare": bare, "alac atom": wrapped, "frma wrapper": frma} {
		got, err := alac.ParseConfig(cookie)
		if err != nil {
			t.Fatalf("%s: ParseConfig: %v", name, err)
		}

		if got != cfg {
			t.Errorf("%s: config = %+v, want %+v", name, got, cfg)
		}
	}
}

func TestParseConfigInvalid(t *testing.T) {
	t.Parallel()

	badDepth := testutil.ALACConfig(44100, 16, 2, 4096)
	badDepth.BitDepth = 12

	noChannels := testutil.ALACConfig(44100, 16, 2, 4096)
	noChannels.NumChannels = 0

	zeroFrame := testutil.ALACConfig(44100, 16, 2, 4096)
	zeroFrame.FrameLength = 0

	hugeFrame := testutil.ALACConfig(44100, 16, 2, 4096)
	hugeFrame.FrameLength = alac.MaxFrameLength + 1

	tests := []struct {
		name   string
		cookie []byte
		cause  error
	}{
		{"short", []byte{1, 2, 3}, alac.ErrInvalidCookie},
		{"bit depth", badDepth.Bytes(), alac.ErrBitDepth},
		{"channels", noChannels.Bytes(), alac.ErrChannels},
		{"frame length", zeroFrame.Bytes(), alac.ErrInvalidCookie},
		{"oversized frame length", hugeFrame.Bytes(), alac.ErrInvalidCookie},
	}

	for _, tt := range tests {
		_, err := alac.ParseConfig(tt.cookie)
		if !errors.Is(err, alac.ErrConfig) {
			t.Errorf("%s: error = %v, want ErrConfig", tt.name, err)
		}

		if !errors.Is(err, tt.cause) {
			t.Errorf("%s: error = %v, want %v", tt.name, err, tt.cause)
		}
	}
}

func TestDecodeEscapePackets(t *testing.T) {
	t.Parallel()

	formats := []struct {
		bitDepth int
		channels int
	}{
		{16, 1},
		{16, 2},
		{24, 2},
	}

	for _, f := range formats {
		const sampleRate = 44100

		pcm := agar.GenerateWhiteNoise(sampleRate, f.bitDepth, f.channels, 1)
		cfg := testutil.ALACConfig(sampleRate, f.bitDepth, f.channels, 4096)

		dec, err := alac.NewDecoder(cfg)
		if err != nil {
			t.Fatalf("NewDecoder: %v", err)
		}

		out := make([]byte, cfg.FrameBytes())

		var decoded []byte

		for _, packet := range testutil.ALACPackets(pcm, cfg) {
			n, err := dec.DecodeInto(packet, out)
			if err != nil {
				t.Fatalf("%d-bit %dch: DecodeInto: %v", f.bitDepth, f.channels, err)
			}

			decoded = append(decoded, out[:n]...)
		}

		label := "escape"
		agar.CompareLosslessSamples(t, label, pcm, decoded, f.bitDepth, f.channels)
	}
}

func TestDecodeIntoShortOutput(t *testing.T) {
	t.Parallel()

	cfg := testutil.ALACConfig(44100, 16, 2, 4096)

	dec, err := alac.NewDecoder(cfg)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	_, err = dec.DecodeInto([]byte{0x20}, make([]byte, 16))
	if !errors.Is(err, alac.ErrSampleOverrun) {
		t.Errorf("error = %v, want ErrSampleOverrun", err)
	}
}

func TestDecodeTruncatedPacket(t *testing.T) {
	t.Parallel()

	cfg := testutil.ALACConfig(44100, 16, 2, 4096)

	dec, err := alac.NewDecoder(cfg)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	if _, err := dec.DecodeInto(nil, make([]byte, cfg.FrameBytes())); !errors.Is(err, alac.ErrDecode) {
		t.Errorf("error = %v, want ErrDecode", err)
	}
}
