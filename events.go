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
	"github.com/google/uuid"

	"github.com/mycophonic/saprobe-playback/internal/convert"
)

// Frame is a packed display-ready picture.
type Frame = convert.Frame

// PixelFormat is the layout of a Frame.
type PixelFormat = convert.PixelFormat

// Pixel formats: RGB24 for video, RGBA32 for animated and still images.
const (
	RGB24  = convert.RGB24
	RGBA32 = convert.RGBA32
)

// Info describes an initialized session. Width, Height and FrameRate are zero
// for audio; SampleRate and Channels describe the source audio and are zero
// without an audio stream.
type Info struct {
	Kind       Kind
	Width      int
	Height     int
	Duration   float64
	SampleRate int
	Channels   int
	FrameRate  float64
	HasAudio   bool
}

// Event is a notification from a session's decode goroutine.
type Event interface {
	// SessionID identifies the session that sent the event.
	SessionID() uuid.UUID
	isEvent()
}

// InfoEvent is sent once per Start, after initialization.
type InfoEvent struct {
	Session uuid.UUID
	Info
}

// FrameEvent carries a converted picture. Frame is owned by the receiver.
type FrameEvent struct {
	Session uuid.UUID
	Frame   *Frame
	PTS     float64
}

// SampleEvent mirrors a PCM block written to the audio sink.
type SampleEvent struct {
	Session uuid.UUID
	PCM     []byte
	PTS     float64
}

// PositionEvent reports the playback position in seconds. AfterSeek marks
// the authoritative update sent right after a seek or reset.
type PositionEvent struct {
	Session   uuid.UUID
	Position  float64
	AfterSeek bool
}

// ErrorEvent reports the fatal error that ended the decode goroutine.
type ErrorEvent struct {
	Session uuid.UUID
	Err     error
}

// FinishedEvent reports the end of an audio or video stream.
type FinishedEvent struct {
	Session uuid.UUID
}

func (e InfoEvent) SessionID() uuid.UUID     { return e.Session }
func (e FrameEvent) SessionID() uuid.UUID    { return e.Session }
func (e SampleEvent) SessionID() uuid.UUID   { return e.Session }
func (e PositionEvent) SessionID() uuid.UUID { return e.Session }
func (e ErrorEvent) SessionID() uuid.UUID    { return e.Session }
func (e FinishedEvent) SessionID() uuid.UUID { return e.Session }

func (InfoEvent) isEvent()     {}
func (FrameEvent) isEvent()    {}
func (SampleEvent) isEvent()   {}
func (PositionEvent) isEvent() {}
func (ErrorEvent) isEvent()    {}
func (FinishedEvent) isEvent() {}

// emit delivers ev unless the run was stopped. Lossy events are dropped when
// the channel is full; the others wait for room or for the stop signal.
func (s *Session) emit(quit <-chan struct{}, ev Event, lossy bool) {
	s.evMu.Lock()
	defer s.evMu.Unlock()

	if s.halted {
		return
	}

	if lossy {
		select {
		case s.events <- ev:
		default:
			s.dropped.Add(1)
		}

		return
	}

	select {
	case s.events <- ev:
	case <-quit:
	}
}

// halt stops event delivery. Once it returns no further event is sent.
func (s *Session) halt(closeChannel bool) {
	s.evMu.Lock()
	defer s.evMu.Unlock()

	s.halted = true

	if closeChannel && !s.eventsClosed {
		s.eventsClosed = true
		close(s.events)
	}
}

// resumeEvents re-enables delivery for a new run.
func (s *Session) resumeEvents() {
	s.evMu.Lock()
	defer s.evMu.Unlock()

	if !s.eventsClosed {
		s.halted = false
	}
}
