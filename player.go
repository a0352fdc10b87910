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
)

// Player wraps a session with the controls of an inline media player:
// activation, play/pause, volume and mute, scrubbing and a time label.
type Player struct {
	session *Session
	coord   *Coordinator

	mu         sync.Mutex
	active     bool
	scrubbing  bool
	wasPlaying bool
	lastVolume float64

	thumbOnce sync.Once
	thumb     *Frame
	thumbErr  error
}

// NewPlayer creates a player over data. coord may be nil when players need
// not exclude each other.
func NewPlayer(data []byte, kind Kind, opts Options, coord *Coordinator) (*Player, error) {
	session, err := New(data, kind, opts)
	if err != nil {
		return nil, err
	}

	return &Player{session: session, coord: coord, lastVolume: 1}, nil
}

// Session returns the underlying session.
func (p *Player) Session() *Session { return p.session }

// Active reports whether the player holds the active slot.
func (p *Player) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.active
}

// Activate makes p the active player, deactivating the previous one, and
// starts the session when it is not running.
func (p *Player) Activate() error {
	if p.Active() {
		return nil
	}

	if p.coord != nil {
		if prev := p.coord.swap(p); prev != nil && prev != p {
			prev.Deactivate()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.session.running() {
		if _, err := p.session.Reinitialize(); err != nil {
			if p.coord != nil {
				p.coord.clear(p)
			}

			return err
		}

		if err := p.session.Start(); err != nil {
			if p.coord != nil {
				p.coord.clear(p)
			}

			return err
		}
	}

	p.active = true

	return nil
}

// Deactivate pauses a playing session and gives up the active slot.
func (p *Player) Deactivate() {
	p.mu.Lock()

	if !p.active {
		p.mu.Unlock()

		return
	}

	p.active = false
	p.mu.Unlock()

	if p.session.State() == StatePlaying {
		p.session.TogglePause()
	}

	if p.coord != nil {
		p.coord.clear(p)
	}
}

// TogglePlayback starts, pauses or resumes playback. A finished session
// restarts from the beginning.
func (p *Player) TogglePlayback() (State, error) {
	wasRunning := p.session.running()

	if err := p.Activate(); err != nil {
		return p.session.State(), err
	}

	if !wasRunning {
		return p.session.State(), nil
	}

	if p.session.State() == StateFinished {
		if err := p.session.Reset(); err != nil {
			return p.session.State(), err
		}
	}

	return p.session.TogglePause(), nil
}

// SetVolume sets the gain in [0, 1].
func (p *Player) SetVolume(volume float64) { p.session.SetVolume(volume) }

// ToggleMute mutes, or restores the volume in use before muting.
func (p *Player) ToggleMute() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if volume := p.session.Volume(); volume > 0 {
		p.lastVolume = volume
		p.session.SetVolume(0)

		return 0
	}

	if p.lastVolume <= 0 {
		p.lastVolume = 1
	}

	p.session.SetVolume(p.lastVolume)

	return p.lastVolume
}

// BeginScrub pauses playback while the user drags the position.
func (p *Player) BeginScrub() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.scrubbing {
		return
	}

	p.scrubbing = true
	p.wasPlaying = p.session.State() == StatePlaying

	if p.wasPlaying {
		p.session.TogglePause()
	}
}

// EndScrub seeks to seconds and resumes playback if it was playing when
// the scrub began.
func (p *Player) EndScrub(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.scrubbing {
		return p.session.Seek(seconds)
	}

	p.scrubbing = false

	if err := p.session.Seek(seconds); err != nil {
		return err
	}

	if p.wasPlaying {
		p.session.TogglePause()
	}

	return nil
}

// TimeLabel formats position and duration as "mm:ss / mm:ss".
func (p *Player) TimeLabel() string {
	duration := p.session.Duration()
	position := min(max(p.session.Position(), 0), max(duration, 0))

	return clockLabel(position) + " / " + clockLabel(duration)
}

func clockLabel(seconds float64) string {
	total := int(max(seconds, 0))

	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// Thumbnail returns the first picture of a video or animated image. It is
// decoded once and cached.
func (p *Player) Thumbnail() (*Frame, error) {
	p.thumbOnce.Do(func() {
		p.thumb, p.thumbErr = ExtractFirstFrame(p.session.data, p.session.kind)
	})

	return p.thumb, p.thumbErr
}

// ShowsThumbnail reports whether an inactive animated image should display
// its thumbnail instead of live frames.
func (p *Player) ShowsThumbnail() bool {
	return p.session.kind == KindAnimatedImage && !p.Active()
}

// Release stops the session, waits for it and frees every resource.
func (p *Player) Release() error {
	p.mu.Lock()
	p.active = false
	p.mu.Unlock()

	if p.coord != nil {
		p.coord.clear(p)
	}

	return p.session.Close()
}

// Coordinator lets only one player play at a time. The application owns
// one per scope where players compete, typically one per process.
type Coordinator struct {
	mu     sync.Mutex
	active *Player
}

func NewCoordinator() *Coordinator { return &Coordinator{} }

// Active returns the active player, or nil.
func (c *Coordinator) Active() *Player {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.active
}

// swap makes p active and returns the previous player.
func (c *Coordinator) swap(p *Player) *Player {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.active
	c.active = p

	return prev
}

// clear gives up the slot if p still holds it.
func (c *Coordinator) clear(p *Player) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == p {
		c.active = nil
	}
}
