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

import "errors"

//revive:disable:exported
var (
	ErrGeometry     = errors.New("convert: invalid frame geometry")
	ErrPixelFormat  = errors.New("convert: unsupported pixel format")
	ErrAudioFormat  = errors.New("convert: unsupported audio format")
	ErrFrameMissing = errors.New("convert: no frame")
)
