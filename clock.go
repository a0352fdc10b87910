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
	"sync"
	"time"
)

const (
	// Video frame interval when the container declares no rate.
	fallbackVideoRate = 30.0

	// Video pts deltas outside (0, maxFrameDelta] are replaced by the frame
	// interval.
	maxFrameDelta = 1.0

	// A/V sync against the audio clock, in seconds.
	syncAheadThreshold  = 0.05
	syncAheadTarget     = 0.025
	syncMaxSleep        = 100 * time.Millisecond
	syncBehindThreshold = 0.1

	// Poll period while a finished video waits for its audio to drain.
	endPoll = 50 * time.Millisecond

	// A frame due further back than this rebases the pacer on the clock.
	pacerSlack = 250 * time.Millisecond

	seekEndMargin = 0.001
)

func seconds(d float64) time.Duration {
	return time.Duration(d * float64(time.Second))
}

// pacer schedules frame deliveries relative to the previous one. Deadlines
// chain so processing time does not accumulate as drift.
type pacer struct {
	last    time.Time
	started bool
}

// due returns the deadline of a frame shown wait after the previous one, or
// the zero time right after a restart.
func (p *pacer) due(wait time.Duration) time.Time {
	if !p.started {
		return time.Time{}
	}

	return p.last.Add(wait)
}

// mark records a delivery scheduled for due.
func (p *pacer) mark(due time.Time) {
	now := time.Now()

	if !p.started || due.IsZero() || now.Sub(due) > pacerSlack {
		p.last = now
	} else {
		p.last = due
	}

	p.started = true
}

func (p *pacer) restart() { p.started = false }

// frameInterval is the nominal display time of one video frame.
func frameInterval(rate float64) float64 {
	if rate <= 0 {
		rate = fallbackVideoRate
	}

	return 1 / rate
}

// frameDelta is the pacing delay between two video frames.
func frameDelta(pts, prev, interval float64) float64 {
	delta := pts - prev
	if delta <= 0 || delta > maxFrameDelta {
		return interval
	}

	return delta
}

// syncAction decides what to do with a video frame given the audio clock.
// It returns the sleep before showing the frame and whether to drop it.
func syncAction(pts, audio float64) (time.Duration, bool) {
	diff := pts - audio

	switch {
	case diff > syncAheadThreshold:
		return min(syncMaxSleep, seconds(diff-syncAheadTarget)), false
	case diff < -syncBehindThreshold:
		return 0, true
	default:
		return 0, false
	}
}

// audioClock estimates the position currently heard from the last write:
// the stream time written so far minus what the sink still buffers, which
// drains in real time while running.
type audioClock struct {
	mu      sync.Mutex
	end     float64
	lag     float64
	at      time.Time
	valid   bool
	running bool
}

func (c *audioClock) update(end, lag float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.end, c.lag, c.at, c.valid = end, lag, time.Now(), true
}

// reset forgets the history after a seek.
func (c *audioClock) reset(pos float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.end, c.lag, c.at, c.valid = pos, 0, time.Now(), false
}

func (c *audioClock) setRunning(running bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lag = c.pendingLag()
	c.at = time.Now()
	c.running = running
}

func (c *audioClock) pendingLag() float64 {
	if !c.running {
		return c.lag
	}

	return max(c.lag-time.Since(c.at).Seconds(), 0)
}

// now returns the audible position and whether audio was written since the
// last reset.
func (c *audioClock) now() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.end - c.pendingLag(), c.valid
}
