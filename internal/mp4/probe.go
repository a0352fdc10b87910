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

package mp4

import (
	"fmt"
	"io"

	gomp4 "github.com/abema/go-mp4"
)

// movieMeta is the header metadata of a movie and its tracks, in trak order.
type movieMeta struct {
	timescale uint32
	duration  uint64
	tracks    []trackMeta
}

type trackMeta struct {
	id        uint32
	handler   [4]byte
	timescale uint32
	duration  uint64
	width     int
	height    int
}

// probeMovie reads mvhd, tkhd, mdhd and hdlr with go-mp4. Sample tables are
// left to the box walker.
func probeMovie(reader io.ReadSeeker) (movieMeta, error) {
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return movieMeta{}, fmt.Errorf("seeking to start: %w", err)
	}

	var meta movieMeta

	foundMoov := false

	current := func() *trackMeta {
		if len(meta.tracks) == 0 {
			return nil
		}

		return &meta.tracks[len(meta.tracks)-1]
	}

	_, err := gomp4.ReadBoxStructure(reader, func(handle *gomp4.ReadHandle) (any, error) {
		switch handle.BoxInfo.Type {
		case gomp4.BoxTypeMoov():
			foundMoov = true

			return handle.Expand()

		case gomp4.BoxTypeTrak():
			meta.tracks = append(meta.tracks, trackMeta{})

			return handle.Expand()

		case gomp4.BoxTypeMdia():
			return handle.Expand()

		case gomp4.BoxTypeMvhd():
			box, _, err := handle.ReadPayload()
			if err != nil {
				return nil, err
			}

			if mvhd, ok := box.(*gomp4.Mvhd); ok {
				meta.timescale = mvhd.Timescale
				meta.duration = pickDuration(mvhd.GetVersion(), mvhd.DurationV0, mvhd.DurationV1)
			}

		case gomp4.BoxTypeTkhd():
			box, _, err := handle.ReadPayload()
			if err != nil {
				return nil, err
			}

			if tkhd, ok := box.(*gomp4.Tkhd); ok && current() != nil {
				track := current()
				track.id = tkhd.TrackID
				track.width = int(tkhd.Width >> 16)
				track.height = int(tkhd.Height >> 16)
			}

		case gomp4.BoxTypeMdhd():
			box, _, err := handle.ReadPayload()
			if err != nil {
				return nil, err
			}

			if mdhd, ok := box.(*gomp4.Mdhd); ok && current() != nil {
				track := current()
				track.timescale = mdhd.Timescale
				track.duration = pickDuration(mdhd.GetVersion(), mdhd.DurationV0, mdhd.DurationV1)
			}

		case gomp4.BoxTypeHdlr():
			box, _, err := handle.ReadPayload()
			if err != nil {
				return nil, err
			}

			if hdlr, ok := box.(*gomp4.Hdlr); ok && current() != nil {
				current().handler = hdlr.HandlerType
			}
		}

		return nil, nil
	})
	if err != nil {
		return movieMeta{}, fmt.Errorf("reading box structure: %w", err)
	}

	if !foundMoov {
		return movieMeta{}, ErrNoMovie
	}

	return meta, nil
}

func pickDuration(version uint8, v0 uint32, v1 uint64) uint64 {
	if version == 1 {
		return v1
	}

	return uint64(v0)
}
