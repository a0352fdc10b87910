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

package playback

import (
	"errors"
	"io"

	"github.com/mycophonic/saprobe-playback/internal/bytesource"
	"github.com/mycophonic/saprobe-playback/internal/convert"
	"github.com/mycophonic/saprobe-playback/internal/decode"
)

// ExtractFirstFrame decodes the first picture of a video or animated image
// without a session. Video frames are RGB24, animated images RGBA32.
func ExtractFirstFrame(data []byte, kind Kind) (*Frame, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	var (
		stream decode.VideoStream
		format convert.PixelFormat
		err    error
	)

	switch kind {
	case KindVideo:
		format = convert.RGB24
		stream, _, err = decode.OpenVideo(bytesource.New(data))
	case KindAnimatedImage:
		format = convert.RGBA32
		stream, err = decode.OpenAnimated(bytesource.New(data))
	default:
		return nil, ErrUnsupportedKind
	}

	if err != nil {
		return nil, causeError(err)
	}

	defer func() { _ = stream.Close() }()

	info := stream.Info()

	conv, err := convert.NewPixelConverter(format, info.Width, info.Height)
	if err != nil {
		return nil, causeError(err)
	}

	// Skip leading pictures that fail to decode.
	for {
		img, _, err := stream.Next()

		switch {
		case err == nil:
			frame, err := conv.Convert(img)
			if err != nil {
				return nil, causeError(err)
			}

			return frame.Clone(), nil
		case errors.Is(err, decode.ErrCorruptPacket):
			continue
		case errors.Is(err, io.EOF):
			return nil, ErrNoStream
		default:
			return nil, causeError(err)
		}
	}
}

// OpenHandles counts decoder handles currently open across all sessions.
// It drops back to zero once every session is released.
func OpenHandles() int64 { return decode.OpenHandles() }
