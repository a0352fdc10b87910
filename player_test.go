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

package playback_test

import (
	"errors"
	"testing"
	"time"

	playback "github.com/mycophonic/saprobe-playback"
	"github.com/mycophonic/saprobe-playback/internal/testutil"
)

func newPlayer(t *testing.T, data []byte, kind playback.Kind, coord *playback.Coordinator) *playback.Player {
	t.Helper()

	p, err := playback.NewPlayer(data, kind, testOptions(), coord)
	if err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}

	t.Cleanup(func() { _ = p.Release() })

	return p
}

func waitState(t *testing.T, s *playback.Session, want playback.State) {
	t.Helper()

	deadline := time.Now().Add(eventTimeout)

	for s.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %v, want %v", s.State(), want)
		}

		time.Sleep(5 * time.Millisecond)
	}
}

func TestCoordinatorKeepsOnePlayerActive(t *testing.T) {
	coord := playback.NewCoordinator()
	first := newPlayer(t, noiseWAV(t, 5), playback.KindAudio, coord)
	second := newPlayer(t, noiseWAV(t, 5), playback.KindAudio, coord)

	if state, err := first.TogglePlayback(); err != nil || state != playback.StatePlaying {
		t.Fatalf("first TogglePlayback = %v, %v", state, err)
	}

	if coord.Active() != first || !first.Active() {
		t.Fatalf("first player is not active")
	}

	if err := second.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	if coord.Active() != second || first.Active() {
		t.Errorf("activating second left first active")
	}

	if got := first.Session().State(); got != playback.StatePaused {
		t.Errorf("deactivated player state = %v, want paused", got)
	}

	if got := second.Session().State(); got != playback.StatePlaying {
		t.Errorf("activated player state = %v, want playing", got)
	}

	second.Deactivate()

	if coord.Active() != nil {
		t.Errorf("coordinator still holds %p", coord.Active())
	}
}

func TestFailedActivateFreesCoordinator(t *testing.T) {
	coord := playback.NewCoordinator()
	opening := make(chan struct{})
	gate := make(chan struct{})

	opts := testOptions()
	opts.Sink = func() (playback.AudioSink, error) {
		close(opening)
		<-gate

		return playback.NewRingSink(4096), nil
	}

	p, err := playback.NewPlayer(noiseWAV(t, 1), playback.KindAudio, opts, coord)
	if err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}

	t.Cleanup(func() { _ = p.Release() })

	activated := make(chan error, 1)
	go func() { activated <- p.Activate() }()

	select {
	case <-opening:
	case <-time.After(eventTimeout):
		close(gate)
		t.Fatalf("sink never opened")
	}

	if coord.Active() != p {
		close(gate)
		t.Fatalf("player did not take the active slot")
	}

	// Closing while the sink opens lets initialization succeed and Start fail.
	go func() { _ = p.Session().Close() }()
	time.Sleep(50 * time.Millisecond)
	close(gate)

	if err := <-activated; !errors.Is(err, playback.ErrClosed) {
		t.Fatalf("Activate: err = %v, want ErrClosed", err)
	}

	if coord.Active() != nil {
		t.Errorf("coordinator still holds the player after a failed activation")
	}

	if p.Active() {
		t.Errorf("player reports active after a failed activation")
	}
}

func TestTogglePlaybackRestartsFinished(t *testing.T) {
	p := newPlayer(t, noiseWAV(t, 1), playback.KindAudio, nil)

	if _, err := p.TogglePlayback(); err != nil {
		t.Fatalf("TogglePlayback: %v", err)
	}

	waitFor[playback.FinishedEvent](t, p.Session(), nil)

	state, err := p.TogglePlayback()
	if err != nil {
		t.Fatalf("TogglePlayback after finish: %v", err)
	}

	if state == playback.StateFinished {
		t.Fatalf("still finished after toggle")
	}

	if pos := waitFor(t, p.Session(), afterSeek); pos.Position != 0 {
		t.Errorf("restart position = %v, want 0", pos.Position)
	}

	waitState(t, p.Session(), playback.StatePlaying)
}

func TestScrubResumesPlayback(t *testing.T) {
	p := newPlayer(t, noiseWAV(t, 5), playback.KindAudio, nil)

	if _, err := p.TogglePlayback(); err != nil {
		t.Fatalf("TogglePlayback: %v", err)
	}

	waitFor[playback.InfoEvent](t, p.Session(), nil)

	p.BeginScrub()

	if got := p.Session().State(); got != playback.StatePaused {
		t.Fatalf("state while scrubbing = %v, want paused", got)
	}

	if err := p.EndScrub(3); err != nil {
		t.Fatalf("EndScrub: %v", err)
	}

	if pos := waitFor(t, p.Session(), afterSeek); pos.Position != 3 {
		t.Errorf("scrub position = %v, want 3", pos.Position)
	}

	waitState(t, p.Session(), playback.StatePlaying)

	if got := p.TimeLabel(); got != "00:03 / 00:05" {
		t.Errorf("TimeLabel = %q, want 00:03 / 00:05", got)
	}
}

func TestScrubKeepsPausedPlayerPaused(t *testing.T) {
	p := newPlayer(t, noiseWAV(t, 5), playback.KindAudio, nil)

	if _, err := p.TogglePlayback(); err != nil {
		t.Fatalf("TogglePlayback: %v", err)
	}

	if state, _ := p.TogglePlayback(); state != playback.StatePaused {
		t.Fatalf("second toggle = %v, want paused", state)
	}

	p.BeginScrub()

	if err := p.EndScrub(2); err != nil {
		t.Fatalf("EndScrub: %v", err)
	}

	waitFor(t, p.Session(), afterSeek)

	if got := p.Session().State(); got != playback.StatePaused {
		t.Errorf("state = %v, want paused", got)
	}
}

func TestToggleMuteRestoresVolume(t *testing.T) {
	p := newPlayer(t, noiseWAV(t, 1), playback.KindAudio, nil)

	p.SetVolume(0.4)

	if got := p.ToggleMute(); got != 0 {
		t.Errorf("mute = %v, want 0", got)
	}

	if got := p.ToggleMute(); got != 0.4 {
		t.Errorf("unmute = %v, want 0.4", got)
	}

	p.SetVolume(0)

	if got := p.ToggleMute(); got != 0.4 {
		t.Errorf("unmute after slider at zero = %v, want 0.4", got)
	}
}

func TestTimeLabel(t *testing.T) {
	p := newPlayer(t, noiseWAV(t, 2), playback.KindAudio, nil)

	if got := p.TimeLabel(); got != "00:00 / 00:00" {
		t.Errorf("uninitialized label = %q", got)
	}

	if _, err := p.Session().Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if got := p.TimeLabel(); got != "00:00 / 00:02" {
		t.Errorf("label = %q, want 00:00 / 00:02", got)
	}
}

func TestGIFPlayerThumbnail(t *testing.T) {
	coord := playback.NewCoordinator()
	p := newPlayer(t, testutil.GIF(t, 4, 10, 10, 6), playback.KindAnimatedImage, coord)

	if !p.ShowsThumbnail() {
		t.Errorf("inactive gif player does not show its thumbnail")
	}

	thumb, err := p.Thumbnail()
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}

	if thumb.Width != 10 || thumb.Height != 6 || thumb.Format != playback.RGBA32 {
		t.Errorf("thumbnail = %v %dx%d", thumb.Format, thumb.Width, thumb.Height)
	}

	if again, _ := p.Thumbnail(); again != thumb {
		t.Errorf("thumbnail not cached")
	}

	if err := p.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	if p.ShowsThumbnail() {
		t.Errorf("active gif player shows its thumbnail")
	}

	waitFor[playback.FrameEvent](t, p.Session(), nil)
	p.Deactivate()

	if !p.ShowsThumbnail() {
		t.Errorf("deactivated gif player does not show its thumbnail")
	}
}

func TestReleaseFreesHandles(t *testing.T) {
	coord := playback.NewCoordinator()

	p, err := playback.NewPlayer(videoFixture(t, 24, true), playback.KindVideo, testOptions(), coord)
	if err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}

	if err := p.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	waitFor[playback.FrameEvent](t, p.Session(), nil)

	if err := p.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if coord.Active() != nil {
		t.Errorf("released player still active")
	}

	requireNoHandles(t)
}
