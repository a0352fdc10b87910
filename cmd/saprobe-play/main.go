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

// Command saprobe-play probes media files and plays them on the system audio
// device.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"

	playback "github.com/mycophonic/saprobe-playback"
	"github.com/mycophonic/saprobe-playback/internal/attach"
	"github.com/mycophonic/saprobe-playback/internal/config"
)

const usage = `usage:
  saprobe-play probe FILE...
  saprobe-play play FILE`

var errUsage = errors.New(usage)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "saprobe-play: loading .env: %v\n", err)

		return 1
	}

	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if len(args) < 2 {
		fmt.Fprintln(stderr, errUsage)

		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "probe":
		err = probe(ctx, cfg, log, args[1:], stdout)
	case "play":
		if len(args) != 2 {
			err = errUsage
		} else {
			err = play(ctx, cfg, log, args[1], stdout)
		}
	default:
		err = errUsage
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintln(stderr, err)

		return 2
	default:
		fmt.Fprintf(stderr, "saprobe-play: %v\n", err)

		return 1
	}
}

func sessionOptions(cfg *config.Config, log *slog.Logger) playback.Options {
	return playback.Options{
		Logger:       log,
		EventBuffer:  cfg.EventBuffer,
		SinkBuffer:   cfg.SinkBuffer,
		StopTimeout:  cfg.StopTimeout,
		SampleEvents: cfg.SampleEvents,
	}
}

// kindOf trusts the MIME type derived from the extension, then the content.
func kindOf(name string, data []byte) playback.Kind {
	if kind := playback.KindFromMIME(mime.TypeByExtension(filepath.Ext(name))); kind != playback.KindUnknown {
		return kind
	}

	return playback.DetectKind(data)
}

// probe initializes every file concurrently and prints one line per file.
func probe(ctx context.Context, cfg *config.Config, log *slog.Logger, files []string, stdout io.Writer) error {
	store := attach.NewStore()
	queue := attach.NewQueue(ctx, cfg.ProbeWorkers)

	var (
		mu     sync.Mutex
		failed atomic.Int32
	)

	report := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(stdout, format, args...)
	}

	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			report("%s\terror: %v\n", name, err)
			failed.Add(1)

			continue
		}

		id := store.Put(name, mime.TypeByExtension(filepath.Ext(name)), data)

		err = queue.Submit(func(ctx context.Context) error {
			defer store.Remove(id)

			if ctx.Err() != nil {
				return ctx.Err()
			}

			item, _ := store.Get(id)

			info, err := probeOne(item, sessionOptions(cfg, log))
			if err != nil {
				report("%s\terror: %v\n", item.Name, err)
				failed.Add(1)

				return nil
			}

			report("%s\t%s\n", item.Name, describe(info))

			return nil
		})
		if err != nil {
			return err
		}
	}

	if err := queue.Wait(); err != nil {
		return err
	}

	log.Debug("saprobe-play: probe done", "files", len(files), "failed", failed.Load())

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d files failed", n, len(files))
	}

	return nil
}

func probeOne(item attach.Attachment, opts playback.Options) (playback.Info, error) {
	kind := playback.KindFromMIME(item.MIME)
	if kind == playback.KindUnknown {
		kind = playback.DetectKind(item.Data)
	}

	session, err := playback.New(item.Data, kind, opts)
	if err != nil {
		return playback.Info{}, err
	}

	defer session.Close()

	return session.Initialize()
}

func describe(info playback.Info) string {
	line := fmt.Sprintf("%s\t%.3fs", info.Kind, info.Duration)

	if info.Width > 0 {
		line += fmt.Sprintf("\t%dx%d @ %.2f fps", info.Width, info.Height, info.FrameRate)
	}

	if info.HasAudio {
		line += fmt.Sprintf("\t%d Hz, %d ch", info.SampleRate, info.Channels)
	}

	return line
}
