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

// Package output plays interleaved signed 16-bit PCM on the system audio
// device.
package output

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

//revive:disable:exported
var (
	ErrConfig  = errors.New("output: invalid configuration")
	ErrContext = errors.New("output: audio backend unavailable")
	ErrDevice  = errors.New("output: cannot open playback device")
)

// FillFunc writes the next len(out) bytes of PCM into out. It runs on the
// device thread and must not block.
type FillFunc func(out []byte)

// Config describes the PCM the device plays.
type Config struct {
	SampleRate int
	Channels   int
	// Period is the device callback period.
	Period time.Duration
}

// Device is an opened playback device.
type Device struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	log    *slog.Logger

	mu     sync.Mutex
	closed bool
}

func (c Config) validate() error {
	if c.SampleRate <= 0 || c.Channels <= 0 || c.Channels > 8 {
		return fmt.Errorf("%w: %d Hz, %d channels", ErrConfig, c.SampleRate, c.Channels)
	}

	return nil
}

// Open initializes the default playback device for S16 PCM pulled from
// fill. The device is stopped until Start.
func Open(cfg Config, fill FillFunc, log *slog.Logger) (*Device, error) {
	if fill == nil {
		return nil, fmt.Errorf("%w: nil fill function", ErrConfig)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = slog.Default()
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Debug("output: backend", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContext, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(cfg.Channels) //nolint:gosec // Validated above.
	deviceConfig.SampleRate = uint32(cfg.SampleRate)      //nolint:gosec // Validated above.
	deviceConfig.PeriodSizeInMilliseconds = periodMillis(cfg)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			fill(out)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()

		return nil, fmt.Errorf("%w: %w", ErrDevice, err)
	}

	log.Debug("output: device opened", "rate", cfg.SampleRate, "channels", cfg.Channels, "period", cfg.Period)

	return &Device{ctx: ctx, device: device, log: log}, nil
}

func periodMillis(cfg Config) uint32 {
	if cfg.Period <= 0 {
		return 0
	}

	return uint32(max(cfg.Period.Milliseconds(), 1)) //nolint:gosec // Positive duration.
}

// Start begins pulling from the fill function.
func (d *Device) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("%w: device closed", ErrDevice)
	}

	if err := d.device.Start(); err != nil {
		return fmt.Errorf("%w: %w", ErrDevice, err)
	}

	return nil
}

// Close stops and releases the device. It is idempotent.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}

	d.closed = true

	d.device.Uninit()

	err := d.ctx.Uninit()
	d.ctx.Free()

	d.log.Debug("output: device closed")

	if err != nil {
		return fmt.Errorf("%w: %w", ErrContext, err)
	}

	return nil
}
