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
	"fmt"

	"github.com/mycophonic/saprobe-playback/internal/convert"
	"github.com/mycophonic/saprobe-playback/internal/decode"
)

// Public sentinel errors for consumer error matching. ErrInit classifies a
// failed initialization and always wraps one of the cause sentinels below it.
//
//revive:disable:exported
var (
	ErrInit = errors.New("playback: initialization failed")

	ErrContainer        = errors.New("playback: cannot open container")
	ErrNoStream         = errors.New("playback: no stream of the required kind")
	ErrUnsupportedCodec = errors.New("playback: unsupported codec")
	ErrCodecOpen        = errors.New("playback: codec open failed")
	ErrConverter        = errors.New("playback: converter setup failed")
	ErrDevice           = errors.New("playback: output device unavailable")

	ErrClosed          = errors.New("playback: session closed")
	ErrRunning         = errors.New("playback: session already running")
	ErrUnsupportedKind = errors.New("playback: unsupported media kind")
	ErrEmptyInput      = errors.New("playback: empty input")
)

// initError wraps a failure from opening a stream into ErrInit plus the
// matching cause sentinel.
func initError(err error) error {
	if errors.Is(err, ErrDevice) {
		return fmt.Errorf("%w: %w", ErrInit, err)
	}

	return fmt.Errorf("%w: %w", ErrInit, causeError(err))
}

// causeError wraps a decode or conversion failure into its cause sentinel.
func causeError(err error) error {
	var cause error

	switch {
	case errors.Is(err, decode.ErrUnknownContainer):
		cause = ErrContainer
	case errors.Is(err, decode.ErrNoStream):
		cause = ErrNoStream
	case errors.Is(err, decode.ErrUnsupportedCodec):
		cause = ErrUnsupportedCodec
	case errors.Is(err, convert.ErrGeometry), errors.Is(err, convert.ErrPixelFormat), errors.Is(err, convert.ErrAudioFormat):
		cause = ErrConverter
	default:
		cause = ErrCodecOpen
	}

	return fmt.Errorf("%w: %w", cause, err)
}
