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
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mycophonic/saprobe-playback/internal/convert"
)

// Output PCM format shared by every sink.
const (
	OutputSampleRate = convert.OutputRate
	OutputChannels   = convert.OutputChannels
	OutputBitDepth   = convert.OutputBitDepth
)

// AudioSink is the consumer-owned audio output of a session. Writes carry
// interleaved stereo signed 16-bit little-endian PCM at OutputSampleRate.
// A session calls a sink from one goroutine at a time.
type AudioSink interface {
	// Write buffers up to Free() bytes of pcm and returns how many were taken.
	Write(pcm []byte) (int, error)
	// Free is the free buffer space in bytes.
	Free() int
	// Capacity is the total buffer size in bytes.
	Capacity() int
	// Flush drops buffered audio.
	Flush()
	// SetPaused suspends or resumes consumption.
	SetPaused(paused bool)
	Close() error
}

// SpaceNotifier is implemented by sinks that can signal freed buffer space
// instead of being polled.
type SpaceNotifier interface {
	SpaceAvailable() <-chan struct{}
}

// ClockSink is a sink without a device: buffered audio drains at real-time
// speed and is discarded. It gives headless sessions the pacing of a device.
type ClockSink struct {
	mu       sync.Mutex
	capacity int
	buffered float64
	last     time.Time
	paused   bool
	closed   bool
}

// NewClockSink returns a sink holding buffer worth of audio.
func NewClockSink(buffer time.Duration) *ClockSink {
	capacity := int(buffer.Seconds()*convert.OutputBytesPerSecond) &^ (convert.OutputFrameBytes - 1)

	return &ClockSink{
		capacity: max(capacity, convert.OutputFrameBytes),
		last:     time.Now(),
	}
}

func (c *ClockSink) drain() {
	now := time.Now()

	if !c.paused {
		c.buffered = max(0, c.buffered-now.Sub(c.last).Seconds()*convert.OutputBytesPerSecond)
	}

	c.last = now
}

func (c *ClockSink) Write(pcm []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, fmt.Errorf("%w: sink closed", ErrDevice)
	}

	c.drain()

	n := min(len(pcm), c.free()) &^ (convert.OutputFrameBytes - 1)
	c.buffered += float64(n)

	return n, nil
}

func (c *ClockSink) free() int {
	return c.capacity - int(math.Ceil(c.buffered))
}

func (c *ClockSink) Free() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.drain()

	return c.free()
}

func (c *ClockSink) Capacity() int { return c.capacity }

func (c *ClockSink) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buffered = 0
	c.last = time.Now()
}

func (c *ClockSink) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.drain()
	c.paused = paused
}

func (c *ClockSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	return nil
}

// RingSink is a ring buffer between a session and a device callback that
// pulls PCM with Read. It implements SpaceNotifier.
type RingSink struct {
	mu     sync.Mutex
	buf    []byte
	head   int
	size   int
	paused bool
	closed bool
	space  chan struct{}
}

// NewRingSink returns a ring of capacity bytes, rounded down to whole frames.
func NewRingSink(capacity int) *RingSink {
	capacity &^= convert.OutputFrameBytes - 1

	return &RingSink{
		buf:   make([]byte, max(capacity, convert.OutputFrameBytes)),
		space: make(chan struct{}, 1),
	}
}

func (r *RingSink) Write(pcm []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, fmt.Errorf("%w: sink closed", ErrDevice)
	}

	n := min(len(pcm), len(r.buf)-r.size)
	tail := (r.head + r.size) % len(r.buf)
	first := copy(r.buf[tail:], pcm[:n])
	copy(r.buf, pcm[first:n])
	r.size += n

	return n, nil
}

// Read fills out with buffered PCM and pads the rest with silence. It
// returns the number of buffered bytes consumed; a paused or closed sink
// yields silence only.
func (r *RingSink) Read(out []byte) int {
	r.mu.Lock()

	n := 0
	if !r.paused && !r.closed {
		n = min(len(out), r.size)
		first := copy(out[:n], r.buf[r.head:min(r.head+n, len(r.buf))])
		copy(out[first:n], r.buf)
		r.head = (r.head + n) % len(r.buf)
		r.size -= n
	}

	r.mu.Unlock()

	clear(out[n:])

	if n > 0 {
		r.signal()
	}

	return n
}

func (r *RingSink) signal() {
	select {
	case r.space <- struct{}{}:
	default:
	}
}

func (r *RingSink) Free() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.buf) - r.size
}

func (r *RingSink) Capacity() int { return len(r.buf) }

func (r *RingSink) Flush() {
	r.mu.Lock()
	r.head, r.size = 0, 0
	r.mu.Unlock()

	r.signal()
}

func (r *RingSink) SetPaused(paused bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.paused = paused
}

func (r *RingSink) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.signal()

	return nil
}

// SpaceAvailable is signaled after Read or Flush frees space.
func (r *RingSink) SpaceAvailable() <-chan struct{} { return r.space }
