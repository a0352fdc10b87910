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
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"

	"github.com/mycophonic/saprobe-playback/internal/bytesource"
	"github.com/mycophonic/saprobe-playback/internal/convert"
	"github.com/mycophonic/saprobe-playback/internal/decode"
)

// Source frames decoded per audio block.
const audioBlockFrames = 1024

// audioStage decodes PCM blocks, resamples them to the output format and
// writes them to the sink under backpressure.
type audioStage struct {
	g         *guard
	stream    decode.AudioStream
	resampler *convert.Resampler
	sink      AudioSink
	sinkRef   *decode.Handle
	space     <-chan struct{}
	buf       *audio.IntBuffer
	view      audio.IntBuffer
	clock     *audioClock
	volume    *atomic.Uint64
	poll      time.Duration
	mirror    bool

	pos      float64
	rate     float64
	channels int
}

// newAudioStage opens the output sink for an opened stream. The stream is
// closed on failure.
func newAudioStage(s *Session, g *guard, stream decode.AudioStream) (*audioStage, error) {
	format := stream.Format()

	resampler, err := convert.NewResampler(format.SampleRate, format.Channels, format.BitDepth)
	if err != nil {
		_ = stream.Close()

		return nil, err
	}

	sink, err := s.opts.Sink()
	if err != nil {
		_ = stream.Close()

		return nil, fmt.Errorf("%w: %w", ErrDevice, err)
	}

	st := &audioStage{
		g:         g,
		stream:    stream,
		resampler: resampler,
		sink:      sink,
		sinkRef:   decode.Acquire(),
		buf: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
			Data:   make([]int, audioBlockFrames*format.Channels),
		},
		clock:    &audioClock{running: true},
		volume:   &s.volume,
		poll:     s.opts.BackpressurePoll,
		mirror:   s.opts.SampleEvents,
		rate:     float64(format.SampleRate),
		channels: format.Channels,
	}
	st.view.Format = st.buf.Format

	if notifier, ok := sink.(SpaceNotifier); ok {
		st.space = notifier.SpaceAvailable()
	}

	return st, nil
}

func (a *audioStage) decode() ([]byte, float64, error) {
	n, err := a.stream.Read(a.buf)
	if err != nil {
		return nil, 0, err
	}

	a.view.Data = a.buf.Data[:n]
	pts := a.pos
	a.pos += float64(n/a.channels) / a.rate

	pcm := a.resampler.Convert(&a.view)
	applyGain(pcm, math.Float64frombits(a.volume.Load()))

	return pcm, pts, nil
}

func (a *audioStage) seek(seconds float64) (float64, error) {
	pos, err := a.stream.SeekTo(seconds)
	if err != nil {
		return 0, err
	}

	a.resampler.Reset()
	a.sink.Flush()
	a.pos = pos
	a.clock.reset(pos)

	return pos, nil
}

// present writes pcm in as many pieces as the sink accepts. Writes wait
// while less than a quarter of the sink is free. A failing sink drops the
// rest of the block.
func (a *audioStage) present(w *worker, pcm []byte, pts float64) (bool, error) {
	written := 0

	for written < len(pcm) {
		var (
			n        int
			buffered int
			full     bool
			writeErr error
		)

		ok := a.g.with(func() {
			free, capacity := a.sink.Free(), a.sink.Capacity()
			if free < capacity/4 {
				full = true

				return
			}

			n, writeErr = a.sink.Write(pcm[written:])
			buffered = capacity - a.sink.Free()
		})
		if !ok {
			return false, nil
		}

		if writeErr != nil {
			w.s.log.Debug("playback: sink write dropped", "session", w.s.id, "error", writeErr)

			break
		}

		if full || n == 0 {
			if !w.waitSpace(a.space, a.poll) {
				return false, nil
			}

			continue
		}

		written += n
		a.clock.update(pts+convert.DurationOf(written), convert.DurationOf(buffered))
	}

	if a.mirror {
		w.s.emit(w.quit, SampleEvent{Session: w.s.id, PCM: append([]byte(nil), pcm...), PTS: pts}, true)
	}

	if heard, ok := a.clock.now(); ok {
		w.advance(max(heard, 0))
	}

	return true, nil
}

func (a *audioStage) restart() {}

func (a *audioStage) loops() bool { return false }

// drained reports whether the sink has played everything written.
func (a *audioStage) drained() bool {
	empty := true

	a.g.with(func() { empty = a.sink.Free() >= a.sink.Capacity() })

	return empty
}

func (a *audioStage) setPaused(paused bool) {
	a.g.with(func() { a.sink.SetPaused(paused) })
	a.clock.setRunning(!paused)
}

// close releases the stream and the sink. Callers hold the guard.
func (a *audioStage) close() {
	_ = a.stream.Close()
	_ = a.sink.Close()
	a.sinkRef.Release()
}

// applyGain scales signed 16-bit little-endian samples in place.
//
//nolint:gosec // Samples are clamped to the 16-bit range before narrowing.
func applyGain(pcm []byte, gain float64) {
	if gain >= 1 {
		return
	}

	for i := 0; i+1 < len(pcm); i += 2 {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i:])))
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(math.Round(v*gain))))
	}
}

// audioRunner plays an audio-only session.
type audioRunner struct {
	g     guard
	stage *audioStage
	meta  Info
}

func openAudio(s *Session) (runner, error) {
	stream, err := decode.OpenAudio(bytesource.New(s.data))
	if err != nil {
		return nil, err
	}

	r := &audioRunner{}

	r.stage, err = newAudioStage(s, &r.g, stream)
	if err != nil {
		return nil, err
	}

	format := stream.Format()
	r.meta = Info{
		Kind:       KindAudio,
		Duration:   max(stream.Duration(), 0),
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		HasAudio:   true,
	}

	return r, nil
}

func (r *audioRunner) info() Info { return r.meta }

func (r *audioRunner) run(w *worker) { decodeLoop[[]byte](w, &r.g, r.stage) }

func (r *audioRunner) setPaused(paused bool) { r.stage.setPaused(paused) }

func (r *audioRunner) release() { r.g.release(r.stage.close) }
