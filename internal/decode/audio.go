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

// Package decode opens the supported containers and yields decoded audio
// blocks, video pictures and animated-image frames.
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"

	"github.com/mycophonic/saprobe-playback/internal/bytesource"
	"github.com/mycophonic/saprobe-playback/internal/mp4"
)

// AudioFormat describes the PCM produced by an AudioStream. BitDepth is the
// container depth of the integer samples.
type AudioFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// AudioStream is an opened audio decoder.
type AudioStream interface {
	Format() AudioFormat
	// Duration is the stream length in seconds, zero when unknown.
	Duration() float64
	// Read decodes up to len(buf.Data) interleaved samples into buf.Data and
	// returns how many were written. It returns 0, io.EOF at end of stream.
	Read(buf *audio.IntBuffer) (int, error)
	// SeekTo moves to the sample frame at seconds and returns the position
	// actually reached.
	SeekTo(seconds float64) (float64, error)
	Close() error
}

// OpenAudio opens the first audio stream of src.
func OpenAudio(src *bytesource.Source) (AudioStream, error) {
	switch container := Sniff(src.Bytes()); container {
	case ContainerWAV:
		return openWAV(src)
	case ContainerMP3:
		return openMP3(src)
	case ContainerMP4:
		file, err := mp4.Open(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnknownContainer, err)
		}

		return OpenMP4Audio(src, file)
	case ContainerUnknown:
		return nil, ErrUnknownContainer
	default:
		return nil, fmt.Errorf("%w: %s has no audio", ErrNoStream, container)
	}
}

// OpenMP4Audio opens the first audio track of an already parsed movie.
func OpenMP4Audio(src io.ReadSeeker, file *mp4.File) (AudioStream, error) {
	track, err := file.Track(mp4.TrackAudio)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoStream, err)
	}

	return openMP4Audio(src, track)
}

// isEOF reports whether err ends a stream. Short reads and truncated packets
// count as the end of the data.
func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func clampSeconds(seconds, duration float64) float64 {
	if seconds < 0 || duration <= 0 {
		return 0
	}

	return min(seconds, duration)
}
