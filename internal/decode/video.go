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
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/mycophonic/saprobe-playback/internal/bytesource"
	"github.com/mycophonic/saprobe-playback/internal/mp4"
)

// VideoInfo describes a picture stream. FrameRate is zero when the container
// does not declare one.
type VideoInfo struct {
	Codec     string
	Width     int
	Height    int
	FrameRate float64
	Duration  float64
}

// VideoStream is an opened picture decoder.
type VideoStream interface {
	Info() VideoInfo
	// Next decodes the next picture and its presentation time in seconds.
	// It returns io.EOF at end of stream and ErrCorruptPacket for a picture
	// that could not be decoded; the stream stays usable after the latter.
	Next() (image.Image, float64, error)
	// SeekTo moves to the last sync picture at or before seconds and returns
	// its presentation time.
	SeekTo(seconds float64) (float64, error)
	// Delay is the display time of the picture last returned by Next, zero
	// when the container does not say.
	Delay() float64
	Close() error
}

type pictureDecoder func(r io.Reader) (image.Image, error)

// mp4VideoStream decodes intra-only picture tracks. Every sample is a sync
// sample.
type mp4VideoStream struct {
	src    io.ReadSeeker
	track  *mp4.Track
	decode pictureDecoder
	next   int
	packet []byte
	handle *Handle
}

// OpenVideo parses src as MP4 and opens its first video track.
func OpenVideo(src *bytesource.Source) (VideoStream, *mp4.File, error) {
	if container := Sniff(src.Bytes()); container != ContainerMP4 {
		if container == ContainerUnknown {
			return nil, nil, ErrUnknownContainer
		}

		return nil, nil, fmt.Errorf("%w: %s has no video", ErrNoStream, container)
	}

	file, err := mp4.Open(src)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUnknownContainer, err)
	}

	stream, err := OpenMP4Video(src, file)
	if err != nil {
		return nil, nil, err
	}

	return stream, file, nil
}

// OpenMP4Video opens the first video track of an already parsed movie.
func OpenMP4Video(src io.ReadSeeker, file *mp4.File) (VideoStream, error) {
	track, err := file.Track(mp4.TrackVideo)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoStream, err)
	}

	var decode pictureDecoder

	switch track.Codec {
	case "jpeg", "mjpa", "MJPG", "mjpg":
		decode = jpeg.Decode
	case "png ":
		decode = png.Decode
	default:
		return nil, fmt.Errorf("%w: video %q", ErrUnsupportedCodec, track.Codec)
	}

	if track.Width <= 0 || track.Height <= 0 {
		return nil, fmt.Errorf("%w: video %dx%d", ErrCodecOpen, track.Width, track.Height)
	}

	return &mp4VideoStream{
		src:    src,
		track:  track,
		decode: decode,
		handle: Acquire(),
	}, nil
}

func (s *mp4VideoStream) Info() VideoInfo {
	return VideoInfo{
		Codec:     s.track.Codec,
		Width:     s.track.Width,
		Height:    s.track.Height,
		FrameRate: s.track.FrameRate(),
		Duration:  s.track.DurationSeconds(),
	}
}

func (s *mp4VideoStream) Next() (image.Image, float64, error) {
	if s.decode == nil {
		return nil, 0, ErrClosed
	}

	if s.next >= len(s.track.Samples) {
		return nil, 0, io.EOF
	}

	sample := s.track.Samples[s.next]
	s.next++

	pts := s.track.Seconds(sample.Time)

	if cap(s.packet) < int(sample.Size) {
		s.packet = make([]byte, sample.Size)
	}

	packet := s.packet[:sample.Size]

	//nolint:gosec // The demuxer rejects samples extending past the end of the file.
	if _, err := s.src.Seek(int64(sample.Offset), io.SeekStart); err != nil {
		return nil, pts, io.EOF
	}

	if _, err := io.ReadFull(s.src, packet); err != nil {
		return nil, pts, io.EOF
	}

	img, err := s.decode(bytes.NewReader(packet))
	if err != nil {
		return nil, pts, fmt.Errorf("%w: picture %d: %w", ErrCorruptPacket, s.next-1, err)
	}

	return img, pts, nil
}

func (s *mp4VideoStream) SeekTo(seconds float64) (float64, error) {
	if s.decode == nil {
		return 0, ErrClosed
	}

	s.next = s.track.SampleAt(clampSeconds(seconds, s.track.DurationSeconds()))

	if s.next >= len(s.track.Samples) {
		return s.track.DurationSeconds(), nil
	}

	return s.track.Seconds(s.track.Samples[s.next].Time), nil
}

func (s *mp4VideoStream) Delay() float64 {
	if s.next == 0 || s.next > len(s.track.Samples) {
		return 0
	}

	return s.track.Seconds(uint64(s.track.Samples[s.next-1].Duration))
}

func (s *mp4VideoStream) Close() error {
	s.decode = nil
	s.handle.Release()

	return nil
}
