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

package testing

import (
	"errors"
	"io"
	"math/rand/v2"

	"github.com/ZaparooProject/go-ps2kbd/internal/syncutil"
)

// ErrPortClosed is returned by reads after Close
var ErrPortClosed = errors.New("port closed")

// JitterConfig controls how a JitteryPort splits up the stream
type JitterConfig struct {
	// Seed makes the fragmentation reproducible
	Seed uint64
	// MaxChunk is the largest read returned. 0 means 1.
	MaxChunk int
	// StallAfterBytes makes one read return no data once that many bytes
	// were delivered, like a serial read timeout. 0 disables.
	StallAfterBytes int
}

// JitteryPort wraps a reader the way a USB serial bridge delivers data:
// in small uneven pieces with the occasional empty read.
type JitteryPort struct {
	r         io.Reader
	rng       *rand.Rand
	config    JitterConfig
	delivered int
	mu        syncutil.Mutex
	stalled   bool
	closed    bool
}

// NewJitteryPort wraps r
func NewJitteryPort(r io.Reader, config JitterConfig) *JitteryPort {
	if config.MaxChunk <= 0 {
		config.MaxChunk = 1
	}
	return &JitteryPort{
		r:      r,
		config: config,
		rng:    rand.New(rand.NewPCG(config.Seed, config.Seed^0x5eed)), //nolint:gosec // Test code, not crypto
	}
}

// Read returns between 1 and MaxChunk bytes, or none once when the stall
// point is reached. At the end of the wrapped stream it returns io.EOF.
func (j *JitteryPort) Read(p []byte) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return 0, ErrPortClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if j.config.StallAfterBytes > 0 && !j.stalled && j.delivered >= j.config.StallAfterBytes {
		j.stalled = true
		return 0, nil
	}

	n := 1 + j.rng.IntN(j.config.MaxChunk)
	if n > len(p) {
		n = len(p)
	}
	got, err := j.r.Read(p[:n])
	j.delivered += got
	return got, err
}

// Close makes further reads fail
func (j *JitteryPort) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}

// Delivered returns the number of bytes handed out so far
func (j *JitteryPort) Delivered() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.delivered
}
