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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mycophonic/saprobe-playback/internal/testutil"
)

func TestProbe(t *testing.T) {
	t.Setenv("SAPROBE_LOG_LEVEL", "error")

	dir := t.TempDir()
	wav, _ := testutil.NoiseWAV(t, 8000, 16, 2, 1)

	files := map[string][]byte{
		"tone.wav":  wav,
		"anim.gif":  testutil.GIF(t, 4, 10, 6, 4),
		"clip.mp4":  testutil.MP4(testutil.MJPEGTrack(t, 6, 24, 16, 8)),
		"broken.wa": []byte("not media"),
	}

	var args []string

	for name, data := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}

		args = append(args, path)
	}

	var stdout, stderr bytes.Buffer

	code := run(append([]string{"probe"}, args...), &stdout, &stderr)
	if code != 1 {
		t.Errorf("exit code = %d, want 1 for the broken file", code)
	}

	out := stdout.String()

	for _, want := range []string{
		"tone.wav\taudio\t1.000s\t8000 Hz, 2 ch",
		"anim.gif\tanimated-image\t0.400s\t6x4 @ 10.00 fps",
		"clip.mp4\tvideo\t0.250s\t16x8 @ 24.00 fps",
		"broken.wa\terror:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer

	for _, args := range [][]string{nil, {"probe"}, {"dance", "x"}, {"play", "a", "b"}} {
		stderr.Reset()

		if code := run(args, &stdout, &stderr); code != 2 {
			t.Errorf("run(%q) = %d, want 2", args, code)
		}

		if !strings.Contains(stderr.String(), "usage:") {
			t.Errorf("run(%q) printed %q", args, stderr.String())
		}
	}
}
