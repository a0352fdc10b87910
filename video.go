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
	"sync"
	"time"

	"github.com/mycophonic/saprobe-playback/internal/bytesource"
	"github.com/mycophonic/saprobe-playback/internal/convert"
	"github.com/mycophonic/saprobe-playback/internal/decode"
)

// pictureStage decodes pictures and converts them to packed frames. Video
// paces by timestamps or the audio clock; animated images by frame delays.
type pictureStage struct {
	stream decode.VideoStream
	conv   *convert.PixelConverter
	pacer  pacer

	// Video pacing.
	interval float64
	cadence  time.Duration
	prevPTS  float64
	clock    *audioClock
	audio    *worker

	// Animated-image pacing.
	animated  bool
	delay     float64
	prevDelay float64
}

func newPictureStage(stream decode.VideoStream, format convert.PixelFormat) (*pictureStage, error) {
	info := stream.Info()

	conv, err := convert.NewPixelConverter(format, info.Width, info.Height)
	if err != nil {
		_ = stream.Close()

		return nil, err
	}

	return &pictureStage{
		stream:   stream,
		conv:     conv,
		interval: frameInterval(info.FrameRate),
	}, nil
}

func (p *pictureStage) decode() (*Frame, float64, error) {
	img, pts, err := p.stream.Next()
	if err != nil {
		return nil, pts, err
	}

	p.delay = p.stream.Delay()

	frame, err := p.conv.Convert(img)
	if err != nil {
		return nil, pts, fmt.Errorf("%w: %w", decode.ErrCorruptPacket, err)
	}

	return frame.Clone(), pts, nil
}

func (p *pictureStage) seek(seconds float64) (float64, error) {
	return p.stream.SeekTo(seconds)
}

func (p *pictureStage) present(w *worker, frame *Frame, pts float64) (bool, error) {
	due, drop := p.schedule(pts)

	if drop {
		w.s.log.Debug("playback: dropped late frame", "session", w.s.id, "pts", pts)
		p.prevPTS = pts
		w.advance(pts)

		return true, nil
	}

	if !due.IsZero() && !w.sleep(time.Until(due)) {
		return false, nil
	}

	w.s.emit(w.quit, FrameEvent{Session: w.s.id, Frame: frame, PTS: pts}, true)

	p.pacer.mark(due)
	p.prevPTS = pts
	p.prevDelay = p.delay
	w.advance(pts)

	return true, nil
}

// schedule returns when the frame at pts is due and whether it is too late
// to show.
func (p *pictureStage) schedule(pts float64) (time.Time, bool) {
	if p.animated {
		return p.pacer.due(seconds(p.prevDelay)), false
	}

	if p.clock != nil && !p.audio.ended.Load() {
		if heard, ok := p.clock.now(); ok {
			wait, drop := syncAction(pts, heard)
			if drop {
				return time.Time{}, true
			}

			due := p.pacer.due(p.cadence)
			if wait > 0 {
				due = later(due, time.Now().Add(wait))
			}

			return due, false
		}
	}

	delta := seconds(frameDelta(pts, p.prevPTS, p.interval))

	return p.pacer.due(max(delta, p.cadence)), false
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}

	return b
}

func (p *pictureStage) restart() { p.pacer.restart() }

func (p *pictureStage) loops() bool { return p.animated }

// drained holds a finished video until its companion audio has played out.
func (p *pictureStage) drained() bool {
	return p.audio == nil || p.audio.ended.Load()
}

func (p *pictureStage) close() {
	_ = p.stream.Close()
}

// videoRunner plays a video track and, when present, its companion audio on
// a second goroutine that follows the same transport.
type videoRunner struct {
	g     guard
	video *pictureStage
	audio *audioStage
	meta  Info
}

func openVideo(s *Session) (runner, error) {
	src := bytesource.New(s.data)

	stream, file, err := decode.OpenVideo(src)
	if err != nil {
		return nil, err
	}

	r := &videoRunner{}

	r.video, err = newPictureStage(stream, convert.RGB24)
	if err != nil {
		return nil, err
	}

	r.video.cadence = s.opts.VideoCadence

	info := stream.Info()
	r.meta = Info{
		Kind:      KindVideo,
		Width:     info.Width,
		Height:    info.Height,
		Duration:  max(file.DurationSeconds(), info.Duration),
		FrameRate: 1 / r.video.interval,
	}

	// Companion audio reads through its own cursor over the same bytes.
	audioStream, err := decode.OpenMP4Audio(bytesource.New(s.data), file)
	if err != nil {
		s.log.Debug("playback: video without audio", "session", s.id, "reason", err)

		return r, nil
	}

	r.audio, err = newAudioStage(s, &r.g, audioStream)
	if err != nil {
		s.log.Warn("playback: companion audio unavailable", "session", s.id, "error", err)

		return r, nil
	}

	r.video.clock = r.audio.clock

	format := audioStream.Format()
	r.meta.HasAudio = true
	r.meta.SampleRate = format.SampleRate
	r.meta.Channels = format.Channels

	return r, nil
}

func (r *videoRunner) info() Info { return r.meta }

func (r *videoRunner) run(w *worker) {
	if r.audio == nil {
		decodeLoop[*Frame](w, &r.g, r.video)

		return
	}

	follower := w.newFollower()
	r.video.audio = follower

	var wg sync.WaitGroup

	wg.Go(func() { decodeLoop[[]byte](follower, &r.g, r.audio) })

	decodeLoop[*Frame](w, &r.g, r.video)

	// The leader may exit on release without a stop; make sure the follower
	// does too.
	w.t.mu.Lock()
	w.t.stopping = true
	w.t.notify()
	w.t.mu.Unlock()

	wg.Wait()
}

func (r *videoRunner) setPaused(paused bool) {
	if r.audio != nil {
		r.audio.setPaused(paused)
	}
}

func (r *videoRunner) release() {
	r.g.release(func() {
		r.video.close()

		if r.audio != nil {
			r.audio.close()
		}
	})
}

// animatedRunner plays a looping animated image.
type animatedRunner struct {
	g     guard
	stage *pictureStage
	meta  Info
}

func openAnimated(s *Session) (runner, error) {
	stream, err := decode.OpenAnimated(bytesource.New(s.data))
	if err != nil {
		return nil, err
	}

	r := &animatedRunner{}

	r.stage, err = newPictureStage(stream, convert.RGBA32)
	if err != nil {
		return nil, err
	}

	r.stage.animated = true

	info := stream.Info()
	r.meta = Info{
		Kind:      KindAnimatedImage,
		Width:     info.Width,
		Height:    info.Height,
		Duration:  info.Duration,
		FrameRate: info.FrameRate,
	}

	return r, nil
}

func (r *animatedRunner) info() Info { return r.meta }

func (r *animatedRunner) run(w *worker) { decodeLoop[*Frame](w, &r.g, r.stage) }

func (*animatedRunner) setPaused(bool) {}

func (r *animatedRunner) release() { r.g.release(r.stage.close) }
