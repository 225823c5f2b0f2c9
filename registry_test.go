// Copyright 2026 The Zaparoo Project Contributors.
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

package ps2kbd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_FillAndFree(t *testing.T) {
	t.Parallel()

	var r registry
	assert.Empty(t, r.keys())
	assert.Equal(t, 0, r.free())

	keys := []Keycode{KeyA, KeyB, KeyC, KeyD, KeyE, KeyF}
	for i, k := range keys {
		slot := r.free()
		assert.Equal(t, i, slot)
		r.set(slot, k)
	}
	assert.Equal(t, -1, r.free())
	assert.Equal(t, keys, r.keys())

	r.clear(r.indexOf(KeyC))
	assert.Equal(t, 2, r.free(), "lowest empty slot is reused")
	assert.Equal(t, -1, r.indexOf(KeyC))
	assert.Equal(t, []Keycode{KeyA, KeyB, KeyD, KeyE, KeyF}, r.keys())

	r.set(r.free(), KeyG)
	assert.Equal(t, []Keycode{KeyA, KeyB, KeyG, KeyD, KeyE, KeyF}, r.keys())
}

func TestRegistry_IndexOf(t *testing.T) {
	t.Parallel()

	var r registry
	r.set(3, KeyPrintScreen)
	assert.Equal(t, 3, r.indexOf(KeyPrintScreen))
	assert.Equal(t, -1, r.indexOf(KeyPause))
	assert.Equal(t, 0, r.indexOf(KeyNone))
}
