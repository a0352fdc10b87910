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

package output_test

import (
	"errors"
	"testing"

	"github.com/mycophonic/saprobe-playback/internal/output"
)

func TestOpenRejectsBadConfig(t *testing.T) {
	fill := func(out []byte) { clear(out) }

	tests := []struct {
		name string
		cfg  output.Config
		fill output.FillFunc
	}{
		{"nil fill", output.Config{SampleRate: 44100, Channels: 2}, nil},
		{"zero rate", output.Config{Channels: 2}, fill},
		{"no channels", output.Config{SampleRate: 44100}, fill},
		{"too many channels", output.Config{SampleRate: 44100, Channels: 9}, fill},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := output.Open(tt.cfg, tt.fill, nil); !errors.Is(err, output.ErrConfig) {
				t.Errorf("err = %v, want ErrConfig", err)
			}
		})
	}
}
