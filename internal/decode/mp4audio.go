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

	"github.com/mycophonic/saprobe-playback/internal/alac"
	"github.com/mycophonic/saprobe-playback/internal/mp4"
)

// Raw PCM samples are tiny; contiguous ones are read as one packet.
const pcmPacketFrames = 4096

// maxPacketBytes bounds a single read, coalesced or not.
const maxPacketBytes = 64 << 20

// packetDecoder turns one demuxed packet into little-endian signed PCM.
type packetDecoder func(packet, out []byte) (int, error)

// mp4AudioStream decodes ALAC or raw PCM from an MP4 audio track.
type mp4AudioStream struct {
	src        io.ReadSeeker
	track      *mp4.Track
	format     AudioFormat
	frameBytes int
	decode     packetDecoder
	coalesce   bool

	next   int
	packet []byte
	pcm    []byte
	pcmLen int
	pcmOff int
	skip   int

	handle *Handle
}

//nolint:gosec // Sample entry fields are bounded by the atom layout.
func openMP4Audio(src io.ReadSeeker, track *mp4.Track) (AudioStream, error) {
	stream := &mp4AudioStream{src: src, track: track}

	switch track.Codec {
	case "alac":
		cfg, err := alac.ParseConfig(track.Extra)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCodecOpen, err)
		}

		dec, err := alac.NewDecoder(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCodecOpen, err)
		}

		rate := int(cfg.SampleRate)
		if rate == 0 {
			rate = track.SampleRate
		}

		stream.format = AudioFormat{
			SampleRate: rate,
			Channels:   int(cfg.NumChannels),
			BitDepth:   8 * alac.BytesPerSample(cfg.BitDepth),
		}
		stream.pcm = make([]byte, cfg.FrameBytes())
		stream.decode = dec.DecodeInto

	case "sowt", "twos":
		if track.SampleSize != 16 && track.SampleSize != 24 && track.SampleSize != 32 {
			return nil, fmt.Errorf("%w: %s at %d bits", ErrUnsupportedCodec, track.Codec, track.SampleSize)
		}

		stream.format = AudioFormat{
			SampleRate: track.SampleRate,
			Channels:   track.Channels,
			BitDepth:   track.SampleSize,
		}
		stream.coalesce = true

		if track.Codec == "twos" {
			stream.decode = swapEndian(track.SampleSize / 8)
		} else {
			stream.decode = copyPCM
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, track.Codec)
	}

	if stream.format.SampleRate <= 0 || stream.format.Channels <= 0 {
		return nil, fmt.Errorf("%w: %s %d Hz, %d channels",
			ErrCodecOpen, track.Codec, stream.format.SampleRate, stream.format.Channels)
	}

	stream.frameBytes = stream.format.Channels * stream.format.BitDepth / 8
	stream.handle = Acquire()

	return stream, nil
}

func copyPCM(packet, out []byte) (int, error) {
	return copy(out, packet), nil
}

func swapEndian(width int) packetDecoder {
	return func(packet, out []byte) (int, error) {
		n := len(packet) - len(packet)%width
		for i := 0; i < n; i += width {
			for j := range width {
				out[i+j] = packet[i+width-1-j]
			}
		}

		return n, nil
	}
}

func (s *mp4AudioStream) Format() AudioFormat { return s.format }

func (s *mp4AudioStream) Duration() float64 { return s.track.DurationSeconds() }

func (s *mp4AudioStream) Read(buf *audio.IntBuffer) (int, error) {
	if s.decode == nil {
		return 0, ErrClosed
	}

	width := s.format.BitDepth / 8
	written := 0

	for written < len(buf.Data) {
		if s.pcmOff >= s.pcmLen {
			if err := s.fill(); err != nil {
				if written > 0 && isEOF(err) {
					break
				}

				if written > 0 {
					return written, nil
				}

				return 0, err
			}

			continue
		}

		avail := (s.pcmLen - s.pcmOff) / width
		n := min(avail, len(buf.Data)-written)

		pcmToInts(buf.Data[written:written+n], s.pcm[s.pcmOff:], width)

		s.pcmOff += n * width
		written += n
	}

	return written, nil
}

// fill decodes the next packet into s.pcm. Unreadable packets end the
// stream. Corrupt packets are skipped and reported as ErrCorruptPacket.
func (s *mp4AudioStream) fill() error {
	if s.next >= len(s.track.Samples) {
		return io.EOF
	}

	first := s.track.Samples[s.next]
	size := int64(first.Size)
	count := 1

	if s.coalesce {
		for s.next+count < len(s.track.Samples) && count < pcmPacketFrames {
			candidate := s.track.Samples[s.next+count]
			if candidate.Offset != first.Offset+uint64(size) {
				break
			}

			size += int64(candidate.Size)
			count++
		}
	}

	s.next += count

	if size > maxPacketBytes {
		return fmt.Errorf("%w: %d byte packet", ErrCorruptPacket, size)
	}

	if int64(cap(s.packet)) < size {
		s.packet = make([]byte, size)
	}

	packet := s.packet[:size]

	//nolint:gosec // The demuxer rejects samples extending past the end of the file.
	if _, err := s.src.Seek(int64(first.Offset), io.SeekStart); err != nil {
		return io.EOF
	}

	if _, err := io.ReadFull(s.src, packet); err != nil {
		return io.EOF
	}

	if len(s.pcm) < len(packet) {
		s.pcm = make([]byte, len(packet))
	}

	n, err := s.decode(packet, s.pcm)
	if err != nil {
		s.pcmLen, s.pcmOff = 0, 0

		return fmt.Errorf("%w: %w", ErrCorruptPacket, err)
	}

	s.pcmLen = n - n%s.frameBytes
	s.pcmOff = min(s.skip*s.frameBytes, s.pcmLen)
	s.skip = 0

	return nil
}

// SeekTo positions on the packet containing seconds and drops the leading
// frames of that packet so the next Read starts at the exact frame.
func (s *mp4AudioStream) SeekTo(seconds float64) (float64, error) {
	if s.decode == nil {
		return 0, ErrClosed
	}

	target := clampSeconds(seconds, s.Duration())
	idx := s.track.SampleAt(target)

	s.next = idx
	s.pcmLen, s.pcmOff = 0, 0
	s.skip = 0

	if idx >= len(s.track.Samples) {
		return s.Duration(), nil
	}

	rate := float64(s.format.SampleRate)
	startFrame := int(math.Round(s.track.Seconds(s.track.Samples[idx].Time) * rate))
	s.skip = max(int(math.Round(target*rate))-startFrame, 0)

	return float64(startFrame+s.skip) / rate, nil
}

func (s *mp4AudioStream) Close() error {
	s.decode = nil
	s.handle.Release()

	return nil
}

// pcmToInts widens little-endian samples of the given byte width. 8-bit
// samples stay unsigned, matching WAV.
//
//nolint:gosec // Sign extension through narrower types is intended.
func pcmToInts(dst []int, src []byte, width int) {
	for i := range dst {
		off := i * width

		switch width {
		case 1:
			dst[i] = int(src[off])
		case 2:
			dst[i] = int(int16(binary.LittleEndian.Uint16(src[off:])))
		case 3:
			v := int32(src[off]) | int32(src[off+1])<<8 | int32(src[off+2])<<16
			dst[i] = int(v<<8) >> 8
		case 4:
			dst[i] = int(int32(binary.LittleEndian.Uint32(src[off:])))
		}
	}
}
