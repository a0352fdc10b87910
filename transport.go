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
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// transport is the state shared between the controlling goroutine and the
// decode goroutines of one session. Every field is guarded by mu.
type transport struct {
	mu   sync.Mutex
	cond *sync.Cond

	state    State
	paused   bool
	stopping bool
	quit     chan struct{}
	wake     chan struct{}

	seekGen    uint64
	seekTarget float64
	resumeGen  uint64

	position float64
	duration float64
}

func newTransport() *transport {
	t := &transport{
		state: StateStopped,
		quit:  make(chan struct{}),
		wake:  make(chan struct{}),
	}
	t.cond = sync.NewCond(&t.mu)

	return t
}

// notify wakes every waiting and sleeping worker. Callers hold mu.
func (t *transport) notify() {
	close(t.wake)
	t.wake = make(chan struct{})
	t.cond.Broadcast()
}

// clampSeek limits a seek target to [0, duration).
func clampSeek(seconds, duration float64) float64 {
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}

	if duration > 0 && seconds >= duration {
		return max(duration-seekEndMargin, 0)
	}

	return seconds
}

// TogglePause switches between Playing and Paused and returns the new state.
// A Finished, Stopped or failed session is left unchanged.
func (s *Session) TogglePause() State {
	t := s.transport

	t.mu.Lock()

	switch t.state {
	case StatePlaying:
		t.paused = true
		t.state = StatePaused
	case StatePaused:
		t.paused = false
		t.state = StatePlaying
		t.resumeGen++
	case StateSeeking:
		t.paused = !t.paused
		if !t.paused {
			t.resumeGen++
		}
	default:
		state := t.state
		t.mu.Unlock()

		return state
	}

	paused, state := t.paused, t.state
	t.notify()
	t.mu.Unlock()

	s.log.Debug("playback: pause toggled", "session", s.id, "paused", paused)
	s.applyPause(paused)

	return state
}

// Seek requests a jump to seconds, clamped to [0, duration). The decode
// goroutine performs it at its next checkpoint and reports the reached
// position with a PositionEvent marked AfterSeek. Seeking a Finished session
// rewinds it into Paused.
func (s *Session) Seek(seconds float64) error {
	if s.isClosed() {
		return ErrClosed
	}

	t := s.transport

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.active() {
		return nil
	}

	t.seekTarget = clampSeek(seconds, t.duration)
	t.seekGen++
	t.state = StateSeeking
	t.notify()

	return nil
}

// Reset rewinds to the start, flushes buffered audio and leaves the session
// paused with Finished cleared.
func (s *Session) Reset() error {
	if s.isClosed() {
		return ErrClosed
	}

	t := s.transport

	t.mu.Lock()

	if !t.state.active() {
		t.position = 0
		t.mu.Unlock()

		return nil
	}

	t.paused = true
	t.seekTarget = 0
	t.seekGen++
	t.state = StateSeeking
	t.notify()
	t.mu.Unlock()

	s.applyPause(true)

	return nil
}

// Stop asks the decode goroutine to exit and returns immediately. No event
// is delivered once Stop returns. Follow with Wait before releasing.
func (s *Session) Stop() {
	t := s.transport

	t.mu.Lock()

	t.stopping = true

	select {
	case <-t.quit:
	default:
		close(t.quit)
	}

	if t.state != StateError {
		t.state = StateStopped
	}

	t.notify()
	t.mu.Unlock()

	s.halt(false)
}

// command is what a worker must do at its checkpoint.
type command struct {
	stop    bool
	seek    bool
	resumed bool
	target  float64
}

// worker is the transport view of one decode goroutine. The leader drives
// the session state; a follower (the companion audio of a video) only obeys.
type worker struct {
	s    *Session
	t    *transport
	quit <-chan struct{}

	follower  bool
	seekGen   uint64
	resumeGen uint64
	idle      bool
	ended     atomic.Bool

	lastEmit time.Time
	lastPos  float64
}

// newWorker snapshots the transport generations for a new run. Callers hold
// t.mu.
func (s *Session) newWorker() *worker {
	t := s.transport

	return &worker{
		s:         s,
		t:         t,
		quit:      t.quit,
		seekGen:   t.seekGen,
		resumeGen: t.resumeGen,
		lastPos:   math.Inf(-1),
	}
}

func (w *worker) newFollower() *worker {
	w.t.mu.Lock()
	defer w.t.mu.Unlock()

	return &worker{
		s:         w.s,
		t:         w.t,
		quit:      w.quit,
		follower:  true,
		seekGen:   w.seekGen,
		resumeGen: w.resumeGen,
	}
}

// checkpoint parks while paused (or idle) and returns the next command.
func (w *worker) checkpoint() command {
	t := w.t

	t.mu.Lock()
	defer t.mu.Unlock()

	for !t.stopping && w.seekGen == t.seekGen && (t.paused || w.idle) {
		t.cond.Wait()
	}

	var cmd command

	if t.stopping {
		cmd.stop = true

		return cmd
	}

	if w.seekGen != t.seekGen {
		cmd.seek = true
		cmd.target = t.seekTarget
		w.seekGen = t.seekGen
		w.idle = false
		w.ended.Store(false)
	}

	if w.resumeGen != t.resumeGen {
		cmd.resumed = true
		w.resumeGen = t.resumeGen
	}

	return cmd
}

// hold blocks while paused and reports whether the unit in flight may still
// be delivered: false after a stop or a newer seek.
func (w *worker) hold() bool {
	t := w.t

	t.mu.Lock()
	defer t.mu.Unlock()

	for t.paused && !t.stopping && w.seekGen == t.seekGen {
		t.cond.Wait()
	}

	return !t.stopping && w.seekGen == t.seekGen
}

func (w *worker) wakeChan() <-chan struct{} {
	w.t.mu.Lock()
	defer w.t.mu.Unlock()

	return w.t.wake
}

// sleep waits for d or until a transport command, then applies hold.
func (w *worker) sleep(d time.Duration) bool {
	if d > 0 {
		wake := w.wakeChan()
		timer := time.NewTimer(d)

		select {
		case <-timer.C:
		case <-wake:
		}

		timer.Stop()
	}

	return w.hold()
}

// waitSpace waits for the sink to signal free space, or for poll when it
// cannot signal.
func (w *worker) waitSpace(space <-chan struct{}, poll time.Duration) bool {
	wake := w.wakeChan()
	timer := time.NewTimer(poll)

	select {
	case <-timer.C:
	case <-space:
	case <-wake:
	}

	timer.Stop()

	return w.hold()
}

// advance records the playback position and sends a coalesced position event.
func (w *worker) advance(pos float64) {
	if w.follower {
		return
	}

	w.t.mu.Lock()
	if w.seekGen != w.t.seekGen {
		w.t.mu.Unlock()

		return
	}

	w.t.position = pos
	w.t.mu.Unlock()

	opts := &w.s.opts
	now := time.Now()

	if now.Sub(w.lastEmit) < opts.PositionInterval && math.Abs(pos-w.lastPos) < opts.PositionStep {
		return
	}

	w.lastEmit, w.lastPos = now, pos
	w.s.emit(w.quit, PositionEvent{Session: w.s.id, Position: pos}, true)
}

// seeked completes a seek: the session leaves Seeking and the reached
// position is reported unconditionally.
func (w *worker) seeked(pos float64) {
	if w.follower {
		return
	}

	t := w.t

	t.mu.Lock()
	if w.seekGen != t.seekGen {
		t.mu.Unlock()

		return
	}

	if t.state == StateSeeking {
		t.state = StatePlaying
		if t.paused {
			t.state = StatePaused
		}
	}

	t.position = pos
	t.mu.Unlock()

	w.lastEmit, w.lastPos = time.Now(), pos
	w.s.emit(w.quit, PositionEvent{Session: w.s.id, Position: pos, AfterSeek: true}, false)
}

// finish ends a stream. The leader parks the session in Finished; a follower
// goes idle until the next seek.
func (w *worker) finish() {
	t := w.t

	t.mu.Lock()

	if t.stopping || w.seekGen != t.seekGen {
		t.mu.Unlock()

		return
	}

	if w.follower {
		w.idle = true
		w.ended.Store(true)
		t.mu.Unlock()

		return
	}

	t.paused = true
	t.state = StateFinished
	t.mu.Unlock()

	w.ended.Store(true)
	w.s.log.Debug("playback: finished", "session", w.s.id)
	w.s.emit(w.quit, FinishedEvent{Session: w.s.id}, false)
}

// fail reports a fatal error once and ends the run, followers included.
func (w *worker) fail(err error) {
	if w.follower {
		w.s.log.Warn("playback: companion audio failed", "session", w.s.id, "error", err)
		w.finish()

		return
	}

	t := w.t

	t.mu.Lock()
	if t.stopping {
		t.mu.Unlock()

		return
	}

	t.state = StateError
	t.paused = true
	t.mu.Unlock()

	w.s.log.Error("playback: session failed", "session", w.s.id, "error", err)
	w.s.emit(w.quit, ErrorEvent{Session: w.s.id, Err: err}, false)

	t.mu.Lock()
	t.stopping = true
	t.notify()
	t.mu.Unlock()
}
