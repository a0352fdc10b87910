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

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	playback "github.com/mycophonic/saprobe-playback"
	"github.com/mycophonic/saprobe-playback/internal/config"
	"github.com/mycophonic/saprobe-playback/internal/output"
)

const outputBytesPerSecond = playback.OutputSampleRate * playback.OutputChannels * playback.OutputBitDepth / 8

// play runs one file until it finishes, fails or the context ends. Audio
// goes to the default device through a ring sink; without a device the
// session runs on its real-time clock sink.
func play(ctx context.Context, cfg *config.Config, log *slog.Logger, name string, stdout io.Writer) error {
	data, err := os.ReadFile(name)
	if err != nil {
		return err
	}

	kind := kindOf(name, data)
	if kind == playback.KindUnknown {
		return fmt.Errorf("%s: unrecognized media", name)
	}

	opts := sessionOptions(cfg, log)

	// The device reads whichever ring the current initialization opened.
	var ring atomic.Pointer[playback.RingSink]

	device, err := output.Open(output.Config{
		SampleRate: playback.OutputSampleRate,
		Channels:   playback.OutputChannels,
		Period:     cfg.DeviceBuffer,
	}, func(out []byte) {
		if sink := ring.Load(); sink != nil {
			sink.Read(out)

			return
		}

		clear(out)
	}, log)
	if err != nil {
		log.Warn("saprobe-play: no audio device, playing silently", "error", err)
	} else {
		defer device.Close()

		opts.Sink = func() (playback.AudioSink, error) {
			sink := playback.NewRingSink(int(cfg.SinkBuffer.Seconds() * outputBytesPerSecond))
			ring.Store(sink)

			return sink, nil
		}

		if err := device.Start(); err != nil {
			return err
		}
	}

	player, err := playback.NewPlayer(data, kind, opts, nil)
	if err != nil {
		return err
	}

	defer player.Release()

	if _, err := player.TogglePlayback(); err != nil {
		return err
	}

	frames := 0
	events := player.Session().Events()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(stdout)

			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}

			switch ev := ev.(type) {
			case playback.InfoEvent:
				fmt.Fprintf(stdout, "%s\t%s\n", name, describe(ev.Info))
			case playback.FrameEvent:
				frames++
			case playback.PositionEvent:
				fmt.Fprintf(stdout, "\r%s", player.TimeLabel())
			case playback.ErrorEvent:
				fmt.Fprintln(stdout)

				return ev.Err
			case playback.FinishedEvent:
				fmt.Fprintf(stdout, "\r%s\nfinished, %d frames, %d events dropped\n",
					player.TimeLabel(), frames, player.Session().DroppedEvents())

				return nil
			}
		}
	}
}
