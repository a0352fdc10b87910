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
	"mime"
	"strings"

	"github.com/mycophonic/saprobe-playback/internal/decode"
	"github.com/mycophonic/saprobe-playback/internal/mp4"
)

// Kind is the media kind a session plays.
type Kind int

// Media kinds.
const (
	KindUnknown Kind = iota
	KindAudio
	KindVideo
	KindAnimatedImage
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	case KindAnimatedImage:
		return "animated-image"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// KindFromMIME maps a MIME type to a media kind. Parameters are ignored.
// Still images other than GIF are KindUnknown.
func KindFromMIME(mimeType string) Kind {
	media, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		media = strings.ToLower(strings.TrimSpace(mimeType))
	}

	switch {
	case media == "image/gif":
		return KindAnimatedImage
	case strings.HasPrefix(media, "audio/"):
		return KindAudio
	case strings.HasPrefix(media, "video/"):
		return KindVideo
	default:
		return KindUnknown
	}
}

// DetectKind identifies the media kind of data from its content. MP4 files
// with a video track are KindVideo, otherwise KindAudio.
func DetectKind(data []byte) Kind {
	switch decode.Sniff(data) {
	case decode.ContainerWAV, decode.ContainerMP3:
		return KindAudio
	case decode.ContainerGIF:
		return KindAnimatedImage
	case decode.ContainerMP4:
		file, err := mp4.Open(bytes.NewReader(data))
		if err != nil {
			return KindUnknown
		}

		if _, err := file.Track(mp4.TrackVideo); err == nil {
			return KindVideo
		}

		if _, err := file.Track(mp4.TrackAudio); err == nil {
			return KindAudio
		}

		return KindUnknown
	default:
		return KindUnknown
	}
}
