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

import "fmt"

// PixelFormat is the layout of a converted video frame.
type PixelFormat int

// Output pixel formats.
const (
	RGB24 PixelFormat = iota + 1
	RGBA32
)

func (f PixelFormat) String() string {
	switch f {
	case RGB24:
		return "RGB24"
	case RGBA32:
		return "RGBA32"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

// BytesPerPixel returns the packed size of one pixel.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case RGB24:
		return 3
	case RGBA32:
		return 4
	default:
		return 0
	}
}

// Frame is a packed display-ready picture.
type Frame struct {
	Format PixelFormat
	Width  int
	Height int
	Stride int
	Data   []byte
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}

	out := *f
	out.Data = append([]byte(nil), f.Data...)

	return &out
}

// Pixel returns the components of the pixel at (x, y). Alpha is 0xff for RGB24.
func (f *Frame) Pixel(x, y int) (r, g, b, a uint8) {
	bpp := f.Format.BytesPerPixel()
	off := y*f.Stride + x*bpp

	if f.Format == RGBA32 {
		return f.Data[off], f.Data[off+1], f.Data[off+2], f.Data[off+3]
	}

	return f.Data[off], f.Data[off+1], f.Data[off+2], 0xff
}
