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
	"sync"
	"sync/atomic"
)

//nolint:gochecknoglobals
var openHandles atomic.Int64

// OpenHandles reports how many decoder and output handles are currently
// acquired across the process. Tests use it as a leak check.
func OpenHandles() int64 {
	return openHandles.Load()
}

// Handle is a counted resource acquisition. Release is idempotent.
type Handle struct {
	once sync.Once
}

// Acquire registers one open handle.
func Acquire() *Handle {
	openHandles.Add(1)

	return &Handle{}
}

// Release unregisters the handle; calls after the first are no-ops.
func (h *Handle) Release() {
	if h == nil {
		return
	}

	h.once.Do(func() { openHandles.Add(-1) })
}
