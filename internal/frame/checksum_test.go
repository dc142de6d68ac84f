// Copyright 2026 The go-tau2 Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package frame

import "testing"

func TestCalculateCRC(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{
			name: "empty data",
			data: []byte{},
			want: 0x0000,
		},
		{
			name: "check string",
			data: []byte("123456789"),
			want: 0x31C3,
		},
		{
			name: "no-op header",
			data: []byte{0x6E, 0x00, 0x00, 0x00, 0x00, 0x00},
			want: 0xDFBB,
		},
		{
			name: "gain mode header",
			data: []byte{0x6E, 0x00, 0x00, 0x0A, 0x00, 0x02},
			want: 0x3838,
		},
		{
			name: "high gain payload",
			data: []byte{0x00, 0x02},
			want: 0x2042,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CalculateCRC(tt.data); got != tt.want {
				t.Errorf("CalculateCRC() = 0x%04X, want 0x%04X", got, tt.want)
			}
		})
	}
}
