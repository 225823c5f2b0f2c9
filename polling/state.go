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

package polling

import (
	"time"

	ps2kbd "github.com/ZaparooProject/go-ps2kbd"
)

// HitState is the state of the hit key: the key pressed by a repeating
// remote and released automatically once the repeats stop.
type HitState int

const (
	// StateIdle means no hit key is down
	StateIdle HitState = iota
	// StateHeld means the hit key is down until Deadline
	StateHeld
)

// String returns the state name
func (s HitState) String() string {
	if s == StateHeld {
		return "held"
	}
	return "idle"
}

// HitKey tracks the hit key
type HitKey struct {
	Deadline time.Time
	Key      ps2kbd.Keycode
	State    HitState
}

// TransitionToHeld records key as down until now+timeout
func (h *HitKey) TransitionToHeld(key ps2kbd.Keycode, now time.Time, timeout time.Duration) {
	h.State = StateHeld
	h.Key = key
	h.Deadline = now.Add(timeout)
}

// Extend pushes the deadline out after a repeat of the held key
func (h *HitKey) Extend(now time.Time, timeout time.Duration) {
	h.Deadline = now.Add(timeout)
}

// TransitionToIdle forgets the hit key
func (h *HitKey) TransitionToIdle() {
	h.State = StateIdle
	h.Key = ps2kbd.KeyNone
	h.Deadline = time.Time{}
}

// Expired reports whether the held key is due for release
func (h *HitKey) Expired(now time.Time) bool {
	return h.State == StateHeld && !now.Before(h.Deadline)
}

// Holds reports whether key is the held hit key
func (h *HitKey) Holds(key ps2kbd.Keycode) bool {
	return h.State == StateHeld && h.Key == key
}
