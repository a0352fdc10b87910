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

package alac

import (
	"encoding/binary"
	"fmt"
	"slices"
)

// Config is the ALACSpecificConfig carried in an 'alac' sample entry.
type Config struct {
	FrameLength   uint32
	BitDepth      uint8
	NumChannels   uint8
	PB            uint8
	MB            uint8
	KB            uint8
	MaxRun        uint16
	MaxFrameBytes uint32
	AvgBitRate    uint32
	SampleRate    uint32
}

const (
	// ConfigSize is the binary size of an ALACSpecificConfig.
	ConfigSize = 24

	atomHeaderSize = 12 // size(4) + type(4) + version/payload(4)
	maxChannels    = 8

	// MaxFrameLength bounds the samples per packet a cookie may declare.
	MaxFrameLength = 1 << 16
)

//nolint:gochecknoglobals
var supportedDepths = []uint8{16, 20, 24, 32}

// ParseConfig reads an ALACSpecificConfig from a magic cookie. Legacy
// QuickTime wrappers ('frma' then 'alac' atoms) are skipped.
func ParseConfig(cookie []byte) (Config, error) {
	data := cookie

	if len(data) >= atomHeaderSize && string(data[4:8]) == "frma" {
		data = data[atomHeaderSize:]
	}

	if len(data) >= atomHeaderSize && string(data[4:8]) == "alac" {
		data = data[atomHeaderSize:]
	}

	if len(data) < ConfigSize {
		return Config{}, fmt.Errorf("%w: %w", ErrConfig, ErrInvalidCookie)
	}

	if version := data[4]; version > 0 {
		return Config{}, fmt.Errorf("%w: %w: %d", ErrConfig, ErrUnsupportedVersion, version)
	}

	cfg := Config{
		FrameLength:   binary.BigEndian.Uint32(data[0:4]),
		BitDepth:      data[5],
		PB:            data[6],
		MB:            data[7],
		KB:            data[8],
		NumChannels:   data[9],
		MaxRun:        binary.BigEndian.Uint16(data[10:12]),
		MaxFrameBytes: binary.BigEndian.Uint32(data[12:16]),
		AvgBitRate:    binary.BigEndian.Uint32(data[16:20]),
		SampleRate:    binary.BigEndian.Uint32(data[20:24]),
	}

	return cfg, cfg.validate()
}

// Bytes serializes the config into a bare 24-byte cookie.
func (c Config) Bytes() []byte {
	out := make([]byte, ConfigSize)

	binary.BigEndian.PutUint32(out[0:4], c.FrameLength)
	out[5] = c.BitDepth
	out[6] = c.PB
	out[7] = c.MB
	out[8] = c.KB
	out[9] = c.NumChannels
	binary.BigEndian.PutUint16(out[10:12], c.MaxRun)
	binary.BigEndian.PutUint32(out[12:16], c.MaxFrameBytes)
	binary.BigEndian.PutUint32(out[16:20], c.AvgBitRate)
	binary.BigEndian.PutUint32(out[20:24], c.SampleRate)

	return out
}

// FrameBytes is the decoded size of one full packet.
func (c Config) FrameBytes() int {
	return int(c.FrameLength) * int(c.NumChannels) * BytesPerSample(c.BitDepth)
}

func (c Config) validate() error {
	if !slices.Contains(supportedDepths, c.BitDepth) {
		return fmt.Errorf("%w: %w: %d", ErrConfig, ErrBitDepth, c.BitDepth)
	}

	if c.NumChannels == 0 || c.NumChannels > maxChannels {
		return fmt.Errorf("%w: %w: %d", ErrConfig, ErrChannels, c.NumChannels)
	}

	if c.FrameLength == 0 {
		return fmt.Errorf("%w: %w: zero frame length", ErrConfig, ErrInvalidCookie)
	}

	if c.FrameLength > MaxFrameLength {
		return fmt.Errorf("%w: %w: frame length %d", ErrConfig, ErrInvalidCookie, c.FrameLength)
	}

	return nil
}

// BytesPerSample returns the storage size of one sample at the given depth.
// 20-bit samples are stored in 3 bytes.
func BytesPerSample(depth uint8) int {
	switch depth {
	case 16:
		return 2
	case 20, 24:
		return 3
	case 32:
		return 4
	default:
		panic(fmt.Sprintf("alac: BytesPerSample called with unsupported bit depth %d", depth))
	}
}
