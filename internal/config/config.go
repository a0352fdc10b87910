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

// Package config reads command-line player settings from the environment,
// after loading optional .env files.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the SAPROBE_* settings.
type Config struct {
	LogLevel slog.Level

	// Session tuning.
	EventBuffer  int
	SinkBuffer   time.Duration
	StopTimeout  time.Duration
	SampleEvents bool

	// Output device.
	DeviceBuffer time.Duration

	// ProbeWorkers bounds concurrent probes; zero means the queue default.
	ProbeWorkers int
}

// Load reads the given .env files, or ./.env when none are named, then
// the environment. Missing files are ignored; variables already set in the
// environment win over file values.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	return New(), nil
}

// New builds a Config from the current environment.
func New() *Config {
	return &Config{
		LogLevel:     getEnvAsLevel("SAPROBE_LOG_LEVEL", slog.LevelInfo),
		EventBuffer:  getEnvAsInt("SAPROBE_EVENT_BUFFER", 64),
		SinkBuffer:   getEnvAsDuration("SAPROBE_SINK_BUFFER", 250*time.Millisecond),
		StopTimeout:  getEnvAsDuration("SAPROBE_STOP_TIMEOUT", 500*time.Millisecond),
		SampleEvents: getEnvAsBool("SAPROBE_SAMPLE_EVENTS", false),
		DeviceBuffer: getEnvAsDuration("SAPROBE_DEVICE_BUFFER", 50*time.Millisecond),
		ProbeWorkers: getEnvAsInt("SAPROBE_PROBE_WORKERS", 0),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}

	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}

	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}

	return defaultValue
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	var level slog.Level

	if err := level.UnmarshalText([]byte(strings.TrimSpace(getEnv(key, "")))); err != nil {
		return defaultValue
	}

	return level
}
