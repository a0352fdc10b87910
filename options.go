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
	"log/slog"
	"time"
)

// Defaults applied to zero Options fields.
const (
	DefaultEventBuffer      = 64
	DefaultStopTimeout      = 500 * time.Millisecond
	DefaultVideoCadence     = time.Second / 60
	DefaultPositionInterval = 250 * time.Millisecond
	DefaultPositionStep     = 0.25
	DefaultBackpressurePoll = 10 * time.Millisecond
	DefaultSinkBuffer       = 250 * time.Millisecond
)

// SinkFactory opens the audio output of a session. Sinks receive stereo
// signed 16-bit little-endian PCM at 44.1 kHz.
type SinkFactory func() (AudioSink, error)

// Options configures a Session. The zero value is usable: every zero field
// takes its default.
type Options struct {
	// Logger receives session diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Sink opens the audio output. Defaults to a real-time ClockSink that
	// discards samples at playback speed.
	Sink SinkFactory

	// EventBuffer is the capacity of the Events channel.
	EventBuffer int

	// SampleEvents mirrors every PCM block written to the sink as a SampleEvent.
	SampleEvents bool

	// StopTimeout bounds the wait for the decode goroutine in Close.
	StopTimeout time.Duration

	// VideoCadence is the minimum interval between two video frames.
	VideoCadence time.Duration

	// PositionInterval and PositionStep coalesce position events: one is sent
	// when either the interval elapsed or the position moved by the step.
	PositionInterval time.Duration
	PositionStep     float64

	// BackpressurePoll is the polling period while the sink is full, for
	// sinks that do not implement SpaceNotifier.
	BackpressurePoll time.Duration

	// SinkBuffer sizes the default sink.
	SinkBuffer time.Duration
}

// DefaultOptions returns Options with every field set to its default.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	if o.SinkBuffer <= 0 {
		o.SinkBuffer = DefaultSinkBuffer
	}

	if o.Sink == nil {
		buffer := o.SinkBuffer
		o.Sink = func() (AudioSink, error) { return NewClockSink(buffer), nil }
	}

	if o.EventBuffer <= 0 {
		o.EventBuffer = DefaultEventBuffer
	}

	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}

	if o.VideoCadence <= 0 {
		o.VideoCadence = DefaultVideoCadence
	}

	if o.PositionInterval <= 0 {
		o.PositionInterval = DefaultPositionInterval
	}

	if o.PositionStep <= 0 {
		o.PositionStep = DefaultPositionStep
	}

	if o.BackpressurePoll <= 0 {
		o.BackpressurePoll = DefaultBackpressurePoll
	}

	return o
}
