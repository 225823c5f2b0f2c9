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

import "time"

// SleepRecoveryConfig configures what happens when the loop stalls, for
// example across a host suspend. A stall long enough to have swallowed key
// releases ends with every key released.
type SleepRecoveryConfig struct {
	// Enabled enables stall detection
	Enabled bool

	// TimeDiscontinuityThreshold is the minimum elapsed time beyond the
	// expected poll interval that counts as a stall. Default: 2 seconds
	TimeDiscontinuityThreshold time.Duration
}

// DefaultSleepRecoveryConfig returns sensible defaults for stall recovery
func DefaultSleepRecoveryConfig() SleepRecoveryConfig {
	return SleepRecoveryConfig{
		Enabled:                    true,
		TimeDiscontinuityThreshold: 2 * time.Second,
	}
}

// DetectSleep checks if the elapsed time since the last iteration indicates
// a stall. Returns true if elapsed exceeds pollInterval plus the threshold.
func (cfg SleepRecoveryConfig) DetectSleep(elapsed, pollInterval time.Duration) bool {
	if !cfg.Enabled {
		return false
	}
	expectedMax := pollInterval + cfg.TimeDiscontinuityThreshold
	return elapsed > expectedMax
}

// Config holds polling configuration options
type Config struct {
	// PollInterval is the pause between loop iterations. 0 spins, which
	// gives the lowest latency answering host commands.
	PollInterval time.Duration
	// ReleaseTimeout is how long a hit key stays down without a repeat
	ReleaseTimeout time.Duration
	// EventBuffer is the capacity of the event channel
	EventBuffer int
	// SleepRecovery configures stall detection
	SleepRecovery SleepRecoveryConfig
}

// DefaultConfig returns the default polling configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval:   0,
		ReleaseTimeout: 120 * time.Millisecond,
		EventBuffer:    32,
		SleepRecovery:  DefaultSleepRecoveryConfig(),
	}
}
