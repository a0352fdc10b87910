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

package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mycophonic/saprobe-playback/internal/config"
)

func TestDefaults(t *testing.T) {
	for _, key := range []string{
		"SAPROBE_LOG_LEVEL", "SAPROBE_EVENT_BUFFER", "SAPROBE_SINK_BUFFER", "SAPROBE_STOP_TIMEOUT",
		"SAPROBE_SAMPLE_EVENTS", "SAPROBE_DEVICE_BUFFER", "SAPROBE_PROBE_WORKERS",
	} {
		t.Setenv(key, "")
	}

	cfg := config.New()

	want := config.Config{
		LogLevel:     slog.LevelInfo,
		EventBuffer:  64,
		SinkBuffer:   250 * time.Millisecond,
		StopTimeout:  500 * time.Millisecond,
		DeviceBuffer: 50 * time.Millisecond,
	}

	if *cfg != want {
		t.Errorf("config = %+v, want %+v", *cfg, want)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SAPROBE_LOG_LEVEL", "debug")
	t.Setenv("SAPROBE_EVENT_BUFFER", "8")
	t.Setenv("SAPROBE_SINK_BUFFER", "1s")
	t.Setenv("SAPROBE_SAMPLE_EVENTS", "true")
	t.Setenv("SAPROBE_PROBE_WORKERS", "not-a-number")

	cfg := config.New()

	if cfg.LogLevel != slog.LevelDebug || cfg.EventBuffer != 8 || cfg.SinkBuffer != time.Second || !cfg.SampleEvents {
		t.Errorf("overrides not applied: %+v", *cfg)
	}

	if cfg.ProbeWorkers != 0 {
		t.Errorf("invalid int kept: ProbeWorkers = %d", cfg.ProbeWorkers)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "player.env")
	if err := os.WriteFile(path, []byte("SAPROBE_STOP_TIMEOUT=2s\nSAPROBE_EVENT_BUFFER=16\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}

	// Set values win over the file.
	t.Setenv("SAPROBE_EVENT_BUFFER", "32")
	t.Setenv("SAPROBE_STOP_TIMEOUT", "")

	if err := os.Unsetenv("SAPROBE_STOP_TIMEOUT"); err != nil {
		t.Fatalf("unsetenv: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.StopTimeout != 2*time.Second || cfg.EventBuffer != 32 {
		t.Errorf("config = %+v", *cfg)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing file: %v", err)
	}
}
