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

package decode

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/hajimehoshi/go-mp3"

	"github.com/mycophonic/saprobe-playback/internal/bytesource"
)

// go-mp3 always produces interleaved stereo signed 16-bit.
const mp3FrameBytes = 4

// mp3Stream decodes MPEG-1/2 layer III through go-mp3.
type mp3Stream struct {
	dec    *mp3.Decoder
	rate   int
	length int64
	raw    []byte
	handle *Handle
}

func openMP3(src *bytesource.Source) (AudioStream, error) {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to start: %w", err)
	}

	dec, err := mp3.NewDecoder(src)
	if err != nil {
		return nil, fmt.Errorf("%w: mp3: %w", ErrCodecOpen, err)
	}

	if dec.SampleRate() <= 0 {
		return nil, fmt.Errorf("%w: mp3 sample rate %d", ErrCodecOpen, dec.SampleRate())
	}

	return &mp3Stream{
		dec:    dec,
		rate:   dec.SampleRate(),
		length: dec.Length(),
		handle: Acquire(),
	}, nil
}

func (s *mp3Stream) Format() AudioFormat {
	return AudioFormat{SampleRate: s.rate, Channels: 2, BitDepth: 16}
}

func (s *mp3Stream) Duration() float64 {
	if s.length <= 0 {
		return 0
	}

	return float64(s.length/mp3FrameBytes) / float64(s.rate)
}

func (s *mp3Stream) Read(buf *audio.IntBuffer) (int, error) {
	if s.dec == nil {
		return 0, ErrClosed
	}

	want := len(buf.Data) * 2
	if cap(s.raw) < want {
		s.raw = make([]byte, want)
	}

	raw := s.raw[:want]

	n, err := s.dec.Read(raw)
	if n == 0 {
		if err != nil && !isEOF(err) {
			return 0, fmt.Errorf("reading mp3: %w", err)
		}

		return 0, io.EOF
	}

	samples := n / 2
	for i := range samples {
		buf.Data[i] = int(int16(binary.LittleEndian.Uint16(raw[i*2:])))
	}

	return samples, nil
}

func (s *mp3Stream) SeekTo(seconds float64) (float64, error) {
	if s.dec == nil {
		return 0, ErrClosed
	}

	frame := int64(math.Round(clampSeconds(seconds, s.Duration()) * float64(s.rate)))

	pos, err := s.dec.Seek(frame*mp3FrameBytes, io.SeekStart)
	if err != nil {
		return 0, fmt.Errorf("seeking mp3: %w", err)
	}

	return float64(pos/mp3FrameBytes) / float64(s.rate), nil
}

func (s *mp3Stream) Close() error {
	s.dec = nil
	s.handle.Release()

	return nil
}
