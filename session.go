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

// Package playback decodes in-memory audio, video and animated images on a
// background goroutine per session. Sessions deliver converted frames,
// samples and progress over an event channel and accept play, pause, seek,
// stop and reset commands from any goroutine.
package playback

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mycophonic/saprobe-playback/internal/decode"
)

// Session plays one media item. All methods are safe for concurrent use.
type Session struct {
	id   uuid.UUID
	kind Kind
	data []byte
	opts Options
	log  *slog.Logger

	transport *transport

	events       chan Event
	evMu         sync.Mutex
	halted       bool
	eventsClosed bool
	dropped      atomic.Int64

	lifeMu sync.Mutex
	runner runner
	done   chan struct{}
	closed atomic.Bool

	volume atomic.Uint64
}

// runner owns the resources acquired by one initialization.
type runner interface {
	info() Info
	// run drives the decode loop(s) until stop, failure or release.
	run(w *worker)
	setPaused(paused bool)
	release()
}

// New creates a stopped session over data. The bytes must not be modified
// while the session exists.
func New(data []byte, kind Kind, opts Options) (*Session, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	switch kind {
	case KindAudio, KindVideo, KindAnimatedImage:
	default:
		return nil, ErrUnsupportedKind
	}

	opts = opts.withDefaults()

	s := &Session{
		id:        uuid.New(),
		kind:      kind,
		data:      data,
		opts:      opts,
		log:       opts.Logger,
		transport: newTransport(),
		events:    make(chan Event, opts.EventBuffer),
	}
	s.volume.Store(math.Float64bits(1))

	return s, nil
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Kind() Kind { return s.kind }

// Events returns the event channel. It is closed by Close.
func (s *Session) Events() <-chan Event { return s.events }

// DroppedEvents counts lossy events discarded because the channel was full.
func (s *Session) DroppedEvents() int64 { return s.dropped.Load() }

func (s *Session) State() State {
	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()

	return s.transport.state
}

// Position is the last reported playback position in seconds.
func (s *Session) Position() float64 {
	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()

	return s.transport.position
}

// Duration is the media duration in seconds, zero before initialization.
func (s *Session) Duration() float64 {
	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()

	return s.transport.duration
}

// Info returns the stream description, or false before initialization.
func (s *Session) Info() (Info, bool) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.runner == nil {
		return Info{}, false
	}

	return s.runner.info(), true
}

func (s *Session) isClosed() bool { return s.closed.Load() }

// Initialize opens the streams and the audio sink. It is a no-op on an
// initialized session. Failures wrap ErrInit and leave nothing acquired.
func (s *Session) Initialize() (Info, error) {
	if s.isClosed() {
		return Info{}, ErrClosed
	}

	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	return s.initializeLocked()
}

func (s *Session) initializeLocked() (Info, error) {
	if s.runner != nil {
		return s.runner.info(), nil
	}

	var (
		r   runner
		err error
	)

	switch s.kind {
	case KindAudio:
		r, err = openAudio(s)
	case KindVideo:
		r, err = openVideo(s)
	case KindAnimatedImage:
		r, err = openAnimated(s)
	default:
		err = ErrUnsupportedKind
	}

	if err != nil {
		s.log.Debug("playback: initialize failed", "session", s.id, "kind", s.kind, "error", err)

		return Info{}, initError(err)
	}

	s.runner = r
	info := r.info()

	s.transport.mu.Lock()
	s.transport.duration = info.Duration
	s.transport.mu.Unlock()

	s.log.Debug("playback: initialized", "session", s.id, "kind", s.kind, "duration", info.Duration)

	return info, nil
}

// ReleaseResources closes streams, converters and the audio sink. It is
// idempotent and safe against a decode goroutine that is still exiting.
func (s *Session) ReleaseResources() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.runner != nil {
		s.runner.release()
		s.runner = nil
	}
}

// Reinitialize releases then reacquires every resource from the original
// bytes. The session must not be running.
func (s *Session) Reinitialize() (Info, error) {
	if s.isClosed() {
		return Info{}, ErrClosed
	}

	if s.running() {
		return Info{}, ErrRunning
	}

	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.runner != nil {
		s.runner.release()
		s.runner = nil
	}

	return s.initializeLocked()
}

func (s *Session) running() bool {
	s.lifeMu.Lock()
	done := s.done
	s.lifeMu.Unlock()

	if done == nil {
		return false
	}

	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Start spawns the decode goroutine, which initializes the session if
// needed, sends an InfoEvent and plays from the current position.
func (s *Session) Start() error {
	if s.isClosed() {
		return ErrClosed
	}

	if s.running() {
		return ErrRunning
	}

	t := s.transport

	t.mu.Lock()
	if t.state != StateStopped && t.state != StateError {
		t.mu.Unlock()

		return ErrRunning
	}

	t.state = StatePlaying
	t.paused = false
	t.stopping = false
	t.quit = make(chan struct{})
	t.resumeGen++
	w := s.newWorker()

	// Resume where a previous run stopped.
	if t.position > 0 {
		t.seekGen++
		t.seekTarget = clampSeek(t.position, t.duration)
	}
	t.mu.Unlock()

	s.resumeEvents()

	done := make(chan struct{})

	s.lifeMu.Lock()
	s.done = done
	s.lifeMu.Unlock()

	s.log.Debug("playback: session started", "session", s.id, "kind", s.kind)

	go s.run(w, done)

	return nil
}

func (s *Session) run(w *worker, done chan struct{}) {
	defer close(done)

	t := s.transport

	s.lifeMu.Lock()
	_, err := s.initializeLocked()
	r := s.runner

	// A pause toggled while initializing found no runner to apply to.
	if err == nil {
		t.mu.Lock()
		paused := t.paused
		t.mu.Unlock()

		r.setPaused(paused)
	}
	s.lifeMu.Unlock()

	if err != nil {
		w.fail(err)

		return
	}

	w.s.emit(w.quit, InfoEvent{Session: s.id, Info: r.info()}, false)
	r.run(w)

	t.mu.Lock()
	if t.state.active() {
		t.state = StateStopped
	}
	t.mu.Unlock()

	s.log.Debug("playback: decode goroutine exited", "session", s.id)
}

// Wait blocks until the decode goroutine exits or timeout elapses and
// reports whether it exited.
func (s *Session) Wait(timeout time.Duration) bool {
	s.lifeMu.Lock()
	done := s.done
	s.lifeMu.Unlock()

	if done == nil {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// Close stops the session, waits up to Options.StopTimeout, releases every
// resource and closes the event channel.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.Stop()

	if !s.Wait(s.opts.StopTimeout) {
		s.log.Warn("playback: decode goroutine did not stop in time", "session", s.id, "timeout", s.opts.StopTimeout)
	}

	s.ReleaseResources()
	s.halt(true)

	return nil
}

// SetVolume sets the audio gain, clamped to [0, 1].
func (s *Session) SetVolume(volume float64) {
	if math.IsNaN(volume) {
		return
	}

	s.volume.Store(math.Float64bits(min(max(volume, 0), 1)))
}

// Volume returns the audio gain.
func (s *Session) Volume() float64 {
	return math.Float64frombits(s.volume.Load())
}

func (s *Session) applyPause(paused bool) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.runner != nil {
		s.runner.setPaused(paused)
	}
}

// guard serializes handle access between a decode goroutine and
// ReleaseResources. Once released, with reports false without running fn.
type guard struct {
	mu       sync.Mutex
	released bool
}

func (g *guard) with(fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return false
	}

	fn()

	return true
}

func (g *guard) release(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return
	}

	g.released = true

	fn()
}

// stage is the kind-specific part of a decode loop producing units of U.
type stage[U any] interface {
	// decode returns the next unit and its presentation time. It returns
	// io.EOF at end of stream. Called under the guard.
	decode() (U, float64, error)
	// seek repositions the stream and returns the reached position. Called
	// under the guard.
	seek(seconds float64) (float64, error)
	// present paces and delivers a unit. It takes the guard itself around
	// handle access and returns false when a command interrupted it.
	present(w *worker, unit U, pts float64) (bool, error)
	// restart drops pacing history after a seek or resume.
	restart()
	// loops reports whether end of stream rewinds instead of finishing.
	loops() bool
	// drained reports whether a finished stream may report Finished.
	drained() bool
}

// decodeLoop runs one decode goroutine: checkpoint, pending seek, decode,
// present, until stop, failure or release.
func decodeLoop[U any](w *worker, g *guard, st stage[U]) {
	for {
		cmd := w.checkpoint()
		if cmd.stop {
			return
		}

		if cmd.seek {
			var (
				pos float64
				err error
			)

			if !g.with(func() { pos, err = st.seek(cmd.target) }) {
				return
			}

			if err != nil {
				w.s.log.Warn("playback: seek failed", "session", w.s.id, "target", cmd.target, "error", err)

				pos = cmd.target
			}

			st.restart()
			w.seeked(pos)

			continue
		}

		if cmd.resumed {
			st.restart()
		}

		var (
			unit U
			pts  float64
			err  error
		)

		if !g.with(func() { unit, pts, err = st.decode() }) {
			return
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			if st.loops() {
				if !g.with(func() { _, err = st.seek(0) }) {
					return
				}

				if err != nil {
					w.fail(err)

					return
				}

				continue
			}

			if !st.drained() {
				w.sleep(endPoll)

				continue
			}

			w.finish()

			continue
		case errors.Is(err, decode.ErrCorruptPacket):
			w.s.log.Debug("playback: dropped corrupt packet", "session", w.s.id, "error", err)

			continue
		default:
			w.fail(err)

			return
		}

		if _, err := st.present(w, unit, pts); err != nil {
			w.fail(err)

			return
		}
	}
}
