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

import "errors"

// Decode error sentinels.
//
//revive:disable:exported
var (
	ErrUnknownContainer = errors.New("decode: unrecognized container")
	ErrNoStream         = errors.New("decode: no stream of the requested kind")
	ErrUnsupportedCodec = errors.New("decode: unsupported codec")
	ErrCodecOpen        = errors.New("decode: codec open failed")
	ErrCorruptPacket    = errors.New("decode: corrupt packet")
	ErrClosed           = errors.New("decode: stream closed")
)
