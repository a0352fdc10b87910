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
	"bytes"
	"fmt"
	"image"

	// Still image formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/mycophonic/saprobe-playback/internal/convert"
)

// ImageInfo describes a decoded still image.
type ImageInfo struct {
	Width    int
	Height   int
	HasAlpha bool
	// Format is the registered image format name: "png", "jpeg" or "gif".
	Format string
}

// DecodeImage decodes a PNG, JPEG or GIF still image to an RGBA32 frame.
// Only the first frame of an animated GIF is decoded.
func DecodeImage(data []byte) (*Frame, ImageInfo, error) {
	if len(data) == 0 {
		return nil, ImageInfo{}, ErrEmptyInput
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ImageInfo{}, fmt.Errorf("%w: %w", ErrContainer, err)
	}

	bounds := img.Bounds()
	info := ImageInfo{
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		HasAlpha: !opaque(img),
		Format:   format,
	}

	conv, err := convert.NewPixelConverter(convert.RGBA32, info.Width, info.Height)
	if err != nil {
		return nil, ImageInfo{}, fmt.Errorf("%w: %w", ErrConverter, err)
	}

	frame, err := conv.Convert(img)
	if err != nil {
		return nil, ImageInfo{}, fmt.Errorf("%w: %w", ErrConverter, err)
	}

	return frame, info, nil
}

func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}

	return false
}
