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

package decode

import (
	"bytes"
	"fmt"
)

// Container identifies a file format by its leading bytes.
type Container int

// Recognized containers.
const (
	ContainerUnknown Container = iota
	ContainerWAV
	ContainerMP3
	ContainerMP4
	ContainerGIF
	ContainerPNG
	ContainerJPEG
)

func (c Container) String() string {
	switch c {
	case ContainerWAV:
		return "wav"
	case ContainerMP3:
		return "mp3"
	case ContainerMP4:
		return "mp4"
	case ContainerGIF:
		return "gif"
	case ContainerPNG:
		return "png"
	case ContainerJPEG:
		return "jpeg"
	default:
		return fmt.Sprintf("Container(%d)", int(c))
	}
}

// Sniff identifies the container of data from its magic bytes.
func Sniff(data []byte) Container {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return ContainerWAV
	case len(data) >= 8 && isMP4Box(data[4:8]):
		return ContainerMP4
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return ContainerGIF
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return ContainerPNG
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return ContainerJPEG
	case bytes.HasPrefix(data, []byte("ID3")):
		return ContainerMP3
	case len(data) >= 2 && data[0] == 0xff && data[1]&0xe0 == 0xe0:
		// MPEG audio frame sync.
		return ContainerMP3
	default:
		return ContainerUnknown
	}
}

func isMP4Box(fourCC []byte) bool {
	switch string(fourCC) {
	case "ftyp", "moov", "mdat", "free", "wide", "skip":
		return true
	default:
		return false
	}
}
