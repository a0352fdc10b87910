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
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/mycophonic/saprobe-playback/internal/bytesource"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xfffe
)

// wavStream decodes PCM WAV through go-audio/wav.
type wavStream struct {
	src      *bytesource.Source
	dec      *wav.Decoder
	format   AudioFormat
	duration float64
	scratch  *audio.IntBuffer
	handle   *Handle
}

func openWAV(src *bytesource.Source) (AudioStream, error) {
	dec, err := newWAVDecoder(src)
	if err != nil {
		return nil, err
	}

	format := AudioFormat{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}

	if format.SampleRate <= 0 || format.Channels <= 0 || format.BitDepth <= 0 {
		return nil, fmt.Errorf("%w: wav %d Hz, %d channels, %d-bit",
			ErrCodecOpen, format.SampleRate, format.Channels, format.BitDepth)
	}

	frameBytes := int64(format.Channels * ((format.BitDepth + 7) / 8))

	return &wavStream{
		src:      src,
		dec:      dec,
		format:   format,
		duration: float64(dec.PCMLen()/frameBytes) / float64(format.SampleRate),
		handle:   Acquire(),
	}, nil
}

// newWAVDecoder parses the header and positions the decoder at the PCM data.
func newWAVDecoder(src *bytesource.Source) (*wav.Decoder, error) {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to start: %w", err)
	}

	dec := wav.NewDecoder(src)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid wav header", ErrUnknownContainer)
	}

	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("%w: wav format tag %d", ErrUnsupportedCodec, dec.WavAudioFormat)
	}

	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodecOpen, err)
	}

	return dec, nil
}

func (s *wavStream) Format() AudioFormat { return s.format }

func (s *wavStream) Duration() float64 { return s.duration }

func (s *wavStream) Read(buf *audio.IntBuffer) (int, error) {
	if s.dec == nil {
		return 0, ErrClosed
	}

	if buf.Format == nil {
		buf.Format = &audio.Format{NumChannels: s.format.Channels, SampleRate: s.format.SampleRate}
	}

	n, err := s.dec.PCMBuffer(buf)
	if n > 0 {
		return n, nil
	}

	if err != nil && !isEOF(err) {
		return 0, fmt.Errorf("reading wav pcm: %w", err)
	}

	return 0, io.EOF
}

// SeekTo reparses the header and discards samples up to the target frame.
func (s *wavStream) SeekTo(seconds float64) (float64, error) {
	if s.dec == nil {
		return 0, ErrClosed
	}

	dec, err := newWAVDecoder(s.src)
	if err != nil {
		return 0, err
	}

	s.dec = dec

	target := int(math.Round(clampSeconds(seconds, s.duration) * float64(s.format.SampleRate)))

	if s.scratch == nil {
		s.scratch = &audio.IntBuffer{
			Format: &audio.Format{NumChannels: s.format.Channels, SampleRate: s.format.SampleRate},
			Data:   make([]int, 4096*s.format.Channels),
		}
	}

	skipped := 0

	for skipped < target {
		want := min(target-skipped, len(s.scratch.Data)/s.format.Channels)
		s.scratch.Data = s.scratch.Data[:want*s.format.Channels]

		n, err := s.dec.PCMBuffer(s.scratch)
		if n == 0 || err != nil {
			break
		}

		skipped += n / s.format.Channels
	}

	s.scratch.Data = s.scratch.Data[:cap(s.scratch.Data)]

	return float64(skipped) / float64(s.format.SampleRate), nil
}

func (s *wavStream) Close() error {
	s.dec = nil
	s.handle.Release()

	return nil
}
