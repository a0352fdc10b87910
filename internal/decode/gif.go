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

package decode

import (
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"io"

	"github.com/mycophonic/saprobe-playback/internal/bytesource"
)

const (
	// DefaultAnimationRate applies when a GIF declares no frame delays.
	DefaultAnimationRate = 10.0

	gifDelayUnit = 0.01
)

// animatedStream composites GIF frames onto a persistent RGBA canvas.
type animatedStream struct {
	anim   *gif.GIF
	delays []float64
	starts []float64
	info   VideoInfo

	canvas  *image.RGBA
	restore *image.RGBA
	next    int
	handle  *Handle
}

// OpenAnimated decodes every frame of a GIF. The stream yields the composited
// canvas, which is overwritten by the following Next.
func OpenAnimated(src *bytesource.Source) (VideoStream, error) {
	if container := Sniff(src.Bytes()); container != ContainerGIF {
		if container == ContainerUnknown {
			return nil, ErrUnknownContainer
		}

		return nil, fmt.Errorf("%w: %s is not an animated image", ErrNoStream, container)
	}

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to start: %w", err)
	}

	anim, err := gif.DecodeAll(src)
	if err != nil {
		return nil, fmt.Errorf("%w: gif: %w", ErrCodecOpen, err)
	}

	if len(anim.Image) == 0 {
		return nil, fmt.Errorf("%w: gif has no frames", ErrNoStream)
	}

	width, height := anim.Config.Width, anim.Config.Height
	if width <= 0 || height <= 0 {
		bounds := anim.Image[0].Bounds()
		width, height = bounds.Max.X, bounds.Max.Y
	}

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: gif %dx%d", ErrCodecOpen, width, height)
	}

	stream := &animatedStream{
		anim:   anim,
		canvas: image.NewRGBA(image.Rect(0, 0, width, height)),
		handle: Acquire(),
	}

	stream.delays = frameDelays(anim.Delay, len(anim.Image))
	stream.starts = make([]float64, len(stream.delays))

	var total float64
	for i, delay := range stream.delays {
		stream.starts[i] = total
		total += delay
	}

	stream.info = VideoInfo{
		Codec:     "gif",
		Width:     width,
		Height:    height,
		FrameRate: float64(len(stream.delays)) / total,
		Duration:  total,
	}

	return stream, nil
}

// frameDelays resolves per-frame display times. Frames without a delay use
// the average of the declared ones, or DefaultAnimationRate.
func frameDelays(declared []int, frames int) []float64 {
	var (
		sum   int
		count int
	)

	for i := range min(frames, len(declared)) {
		if declared[i] > 0 {
			sum += declared[i]
			count++
		}
	}

	fallback := 1 / DefaultAnimationRate
	if count > 0 {
		fallback = float64(sum) * gifDelayUnit / float64(count)
	}

	delays := make([]float64, frames)
	for i := range delays {
		delays[i] = fallback
		if i < len(declared) && declared[i] > 0 {
			delays[i] = float64(declared[i]) * gifDelayUnit
		}
	}

	return delays
}

func (s *animatedStream) Info() VideoInfo { return s.info }

func (s *animatedStream) Delay() float64 {
	if s.next == 0 || s.next > len(s.delays) {
		return 1 / DefaultAnimationRate
	}

	return s.delays[s.next-1]
}

func (s *animatedStream) Next() (image.Image, float64, error) {
	if s.anim == nil {
		return nil, 0, ErrClosed
	}

	if s.next >= len(s.anim.Image) {
		return nil, 0, io.EOF
	}

	idx := s.next
	s.compose(idx)
	s.next++

	return s.canvas, s.starts[idx], nil
}

// compose disposes the previous frame and draws frame idx.
func (s *animatedStream) compose(idx int) {
	if idx == 0 {
		clear(s.canvas.Pix)
	} else {
		s.dispose(idx - 1)
	}

	frame := s.anim.Image[idx]

	if s.disposal(idx) == gif.DisposalPrevious {
		if s.restore == nil {
			s.restore = image.NewRGBA(s.canvas.Rect)
		}

		copy(s.restore.Pix, s.canvas.Pix)
	}

	draw.Draw(s.canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
}

func (s *animatedStream) dispose(idx int) {
	switch s.disposal(idx) {
	case gif.DisposalBackground:
		draw.Draw(s.canvas, s.anim.Image[idx].Bounds(), image.Transparent, image.Point{}, draw.Src)
	case gif.DisposalPrevious:
		if s.restore != nil {
			copy(s.canvas.Pix, s.restore.Pix)
		}
	}
}

func (s *animatedStream) disposal(idx int) byte {
	if idx < len(s.anim.Disposal) {
		return s.anim.Disposal[idx]
	}

	return gif.DisposalNone
}

// SeekTo replays the compositing up to the frame shown at seconds.
func (s *animatedStream) SeekTo(seconds float64) (float64, error) {
	if s.anim == nil {
		return 0, ErrClosed
	}

	target := 0
	if seconds > 0 {
		for i, start := range s.starts {
			if start > seconds {
				break
			}

			target = i
		}
	}

	for i := range target {
		s.compose(i)
	}

	s.next = target

	return s.starts[target], nil
}

func (s *animatedStream) Close() error {
	s.anim = nil
	s.handle.Release()

	return nil
}
