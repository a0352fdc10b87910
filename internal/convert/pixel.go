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

package convert

import (
	"fmt"
	"image"
	"image/color"
)

// PixelConverter converts decoded pictures to one packed output format.
// The output buffer is allocated once and reused for every frame; callers that
// hand frames to other goroutines must Clone them.
type PixelConverter struct {
	frame Frame
}

// NewPixelConverter configures a converter for width x height pictures.
func NewPixelConverter(format PixelFormat, width, height int) (*PixelConverter, error) {
	if format.BytesPerPixel() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrPixelFormat, format)
	}

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrGeometry, width, height)
	}

	stride := width * format.BytesPerPixel()

	return &PixelConverter{frame: Frame{
		Format: format,
		Width:  width,
		Height: height,
		Stride: stride,
		Data:   make([]byte, stride*height),
	}}, nil
}

// Format returns the output pixel format.
func (c *PixelConverter) Format() PixelFormat { return c.frame.Format }

// Convert writes img into the reusable output frame. Pictures larger than the
// configured geometry are cropped; smaller ones leave the remainder black.
func (c *PixelConverter) Convert(img image.Image) (*Frame, error) {
	if img == nil {
		return nil, ErrFrameMissing
	}

	bounds := img.Bounds()
	width := min(bounds.Dx(), c.frame.Width)
	height := min(bounds.Dy(), c.frame.Height)

	if width < c.frame.Width || height < c.frame.Height {
		clear(c.frame.Data)
	}

	switch src := img.(type) {
	case *image.YCbCr:
		c.fromYCbCr(src, width, height)
	case *image.RGBA:
		c.fromRGBA(src, width, height)
	case *image.NRGBA:
		c.fromNRGBA(src, width, height)
	case *image.Paletted:
		c.fromPaletted(src, width, height)
	case *image.Gray:
		c.fromGray(src, width, height)
	default:
		c.fromGeneric(src, width, height)
	}

	return &c.frame, nil
}

// put stores one straight-alpha pixel.
func (c *PixelConverter) put(off int, r, g, b, a uint8) {
	dst := c.frame.Data

	if c.frame.Format == RGBA32 {
		dst[off], dst[off+1], dst[off+2], dst[off+3] = r, g, b, a

		return
	}

	if a != 0xff {
		// RGB24 has no alpha channel: composite over black.
		r = uint8(uint16(r) * uint16(a) / 0xff)
		g = uint8(uint16(g) * uint16(a) / 0xff)
		b = uint8(uint16(b) * uint16(a) / 0xff)
	}

	dst[off], dst[off+1], dst[off+2] = r, g, b
}

func (c *PixelConverter) fromYCbCr(src *image.YCbCr, width, height int) {
	bpp := c.frame.Format.BytesPerPixel()
	minX, minY := src.Rect.Min.X, src.Rect.Min.Y

	for y := range height {
		off := y * c.frame.Stride

		for x := range width {
			yi := src.YOffset(minX+x, minY+y)
			ci := src.COffset(minX+x, minY+y)
			r, g, b := color.YCbCrToRGB(src.Y[yi], src.Cb[ci], src.Cr[ci])
			c.put(off, r, g, b, 0xff)
			off += bpp
		}
	}
}

func (c *PixelConverter) fromRGBA(src *image.RGBA, width, height int) {
	bpp := c.frame.Format.BytesPerPixel()

	for y := range height {
		row := src.Pix[src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y+y):]
		off := y * c.frame.Stride

		for x := range width {
			p := row[x*4 : x*4+4 : x*4+4]
			r, g, b, a := p[0], p[1], p[2], p[3]

			switch {
			case c.frame.Format == RGB24:
				// Premultiplied values already are the composite over black.
				c.frame.Data[off], c.frame.Data[off+1], c.frame.Data[off+2] = r, g, b
			case a == 0:
				c.put(off, 0, 0, 0, 0)
			case a == 0xff:
				c.put(off, r, g, b, a)
			default:
				c.put(off, unpremul(r, a), unpremul(g, a), unpremul(b, a), a)
			}

			off += bpp
		}
	}
}

func (c *PixelConverter) fromNRGBA(src *image.NRGBA, width, height int) {
	bpp := c.frame.Format.BytesPerPixel()

	for y := range height {
		row := src.Pix[src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y+y):]
		off := y * c.frame.Stride

		for x := range width {
			p := row[x*4 : x*4+4 : x*4+4]
			c.put(off, p[0], p[1], p[2], p[3])
			off += bpp
		}
	}
}

func (c *PixelConverter) fromPaletted(src *image.Paletted, width, height int) {
	var table [256][4]uint8

	for i, entry := range src.Palette {
		if i >= len(table) {
			break
		}

		n, _ := color.NRGBAModel.Convert(entry).(color.NRGBA)
		table[i] = [4]uint8{n.R, n.G, n.B, n.A}
	}

	bpp := c.frame.Format.BytesPerPixel()

	for y := range height {
		row := src.Pix[src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y+y):]
		off := y * c.frame.Stride

		for x := range width {
			p := table[row[x]]
			c.put(off, p[0], p[1], p[2], p[3])
			off += bpp
		}
	}
}

func (c *PixelConverter) fromGray(src *image.Gray, width, height int) {
	bpp := c.frame.Format.BytesPerPixel()

	for y := range height {
		row := src.Pix[src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y+y):]
		off := y * c.frame.Stride

		for x := range width {
			v := row[x]
			c.put(off, v, v, v, 0xff)
			off += bpp
		}
	}
}

func (c *PixelConverter) fromGeneric(src image.Image, width, height int) {
	bpp := c.frame.Format.BytesPerPixel()
	minPt := src.Bounds().Min

	for y := range height {
		off := y * c.frame.Stride

		for x := range width {
			n, _ := color.NRGBAModel.Convert(src.At(minPt.X+x, minPt.Y+y)).(color.NRGBA)
			c.put(off, n.R, n.G, n.B, n.A)
			off += bpp
		}
	}
}

func unpremul(v, a uint8) uint8 {
	return uint8(min(uint16(v)*0xff/uint16(a), 0xff))
}
