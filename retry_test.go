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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryConfig_Defaults(t *testing.T) {
	t.Parallel()

	config := DefaultRetryConfig()
	assert.Zero(t, config.MaxAttempts, "replies are retried until accepted")
	assert.Zero(t, config.InitialBackoff)

	reconnect := ReconnectRetryConfig()
	assert.Zero(t, reconnect.MaxAttempts)
	assert.Greater(t, reconnect.MaxBackoff, reconnect.InitialBackoff)
	assert.Greater(t, reconnect.BackoffMultiplier, 1.0)
	assert.GreaterOrEqual(t, reconnect.Jitter, 0.0)
	assert.LessOrEqual(t, reconnect.Jitter, 1.0)
}

func TestCalculateNextBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		config   *RetryConfig
		name     string
		current  time.Duration
		expected time.Duration
	}{
		{
			name:     "Normal exponential growth",
			current:  100 * time.Millisecond,
			config:   &RetryConfig{BackoffMultiplier: 2.0, MaxBackoff: 5 * time.Second},
			expected: 200 * time.Millisecond,
		},
		{
			name:     "Hits maximum backoff limit",
			current:  3 * time.Second,
			config:   &RetryConfig{BackoffMultiplier: 2.0, MaxBackoff: 5 * time.Second},
			expected: 5 * time.Second,
		},
		{
			name:     "Fractional multiplier",
			current:  200 * time.Millisecond,
			config:   &RetryConfig{BackoffMultiplier: 1.5, MaxBackoff: 10 * time.Second},
			expected: 300 * time.Millisecond,
		},
		{
			name:     "No maximum",
			current:  10 * time.Second,
			config:   &RetryConfig{BackoffMultiplier: 3.0},
			expected: 30 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, calculateNextBackoff(tt.current, tt.config))
		})
	}
}

func TestCalculateJitteredSleep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		baseSleep    time.Duration
		jitterFactor float64
	}{
		{name: "No jitter", baseSleep: 100 * time.Millisecond, jitterFactor: 0},
		{name: "Small jitter", baseSleep: 100 * time.Millisecond, jitterFactor: 0.1},
		{name: "Maximum jitter", baseSleep: 500 * time.Millisecond, jitterFactor: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			maxExpected := tt.baseSleep + time.Duration(float64(tt.baseSleep)*tt.jitterFactor)
			for range 50 {
				result := calculateJitteredSleep(tt.baseSleep, tt.jitterFactor)
				assert.GreaterOrEqual(t, result, tt.baseSleep)
				assert.LessOrEqual(t, result, maxExpected)
				if tt.jitterFactor == 0 {
					assert.Equal(t, tt.baseSleep, result)
				}
			}
		})
	}
}

func TestRetryWithConfig(t *testing.T) {
	t.Parallel()

	collision := &CollisionError{Line: LineData}
	fault := NewLineFaultError("drive low", "clock", errors.New("gpio write failed"))

	tests := []struct {
		config        *RetryConfig
		name          string
		failures      []error
		expectedError error
		expectedCalls int
	}{
		{
			name:          "Success on first attempt",
			config:        DefaultRetryConfig(),
			expectedCalls: 1,
		},
		{
			name:          "Collisions retried until accepted",
			config:        DefaultRetryConfig(),
			failures:      []error{collision, collision, collision, collision},
			expectedCalls: 5,
		},
		{
			name:          "Timeouts retried",
			config:        nil,
			failures:      []error{NewTimeoutError("receive", "data")},
			expectedCalls: 2,
		},
		{
			name:          "Line fault stops immediately",
			config:        DefaultRetryConfig(),
			failures:      []error{fault},
			expectedError: ErrLineFault,
			expectedCalls: 1,
		},
		{
			name:          "Attempts exhausted",
			config:        &RetryConfig{MaxAttempts: 2, InitialBackoff: time.Microsecond, BackoffMultiplier: 2},
			failures:      []error{collision, collision, collision},
			expectedError: ErrCollision,
			expectedCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			err := RetryWithConfig(context.Background(), tt.config, func() error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})

			if tt.expectedError != nil {
				require.ErrorIs(t, err, tt.expectedError)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expectedCalls, calls)
		})
	}
}

func TestRetryWithConfig_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithConfig(ctx, DefaultRetryConfig(), func() error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestRetryWithConfig_CancelDuringBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	config := &RetryConfig{InitialBackoff: time.Second, BackoffMultiplier: 2}
	err := RetryWithConfig(ctx, config, func() error {
		return &CollisionError{Line: LineClock}
	})
	assert.ErrorIs(t, err, ErrCollision, "last error is reported when the context ends")
}
