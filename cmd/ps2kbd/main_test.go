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

package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ps2kbd "github.com/ZaparooProject/go-ps2kbd"
	"github.com/ZaparooProject/go-ps2kbd/polling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *config {
	return &config{
		clockPin: "GPIO17",
		dataPin:  "GPIO27",
		source:   stdinSource,
		baud:     115200,
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		modify  func(*config)
		name    string
		wantErr bool
	}{
		{name: "defaults", modify: func(*config) {}},
		{name: "serial source", modify: func(c *config) { c.source = "/dev/ttyUSB0" }},
		{name: "missing clock", modify: func(c *config) { c.clockPin = "" }, wantErr: true},
		{name: "missing data", modify: func(c *config) { c.dataPin = "" }, wantErr: true},
		{name: "same pin", modify: func(c *config) { c.dataPin = c.clockPin }, wantErr: true},
		{name: "missing source", modify: func(c *config) { c.source = "" }, wantErr: true},
		{name: "zero baud", modify: func(c *config) { c.baud = 0 }, wantErr: true},
		{name: "negative poll", modify: func(c *config) { c.pollInterval = -time.Millisecond }, wantErr: true},
		{
			name: "list ignores pins",
			modify: func(c *config) {
				c.listPorts = true
				c.clockPin = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfig_SessionConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "keys.yaml")
	require.NoError(t, os.WriteFile(path, []byte("release_timeout: 250ms\nkeys:\n  ok: KEY_ENTER\n"), 0o600))

	km, err := loadKeymap(path)
	require.NoError(t, err)
	require.NotNil(t, km)

	cfg := validConfig()
	cfg.pollInterval = 2 * time.Millisecond

	pc := cfg.sessionConfig(km)
	assert.Equal(t, 250*time.Millisecond, pc.ReleaseTimeout)
	assert.Equal(t, 2*time.Millisecond, pc.PollInterval)

	pc = cfg.sessionConfig(nil)
	assert.Equal(t, polling.DefaultConfig().ReleaseTimeout, pc.ReleaseTimeout)
}

func TestLoadKeymap(t *testing.T) {
	t.Parallel()

	km, err := loadKeymap("")
	require.NoError(t, err)
	assert.Nil(t, km)

	_, err = loadKeymap(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRunSource_StdinCancel(t *testing.T) {
	t.Parallel()

	// Nothing is ever written, so a direct read would block forever.
	idle, w := io.Pipe()
	t.Cleanup(func() { _ = w.Close() })

	cfg := validConfig()
	cfg.stdin = idle

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runSource(ctx, cfg, nil, make(chan polling.Event, 1))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runSource did not return after cancel")
	}
}

func TestRunSource_StdinEOF(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.stdin = strings.NewReader("+KEY_A\n-KEY_A\n")
	events := make(chan polling.Event, 4)

	err := runSource(context.Background(), cfg, nil, events)
	require.ErrorIs(t, err, errSourceEnded)

	require.Len(t, events, 2)
	assert.Equal(t, polling.Event{Kind: polling.EventPress, Key: ps2kbd.KeyA}, <-events)
	assert.Equal(t, polling.Event{Kind: polling.EventRelease, Key: ps2kbd.KeyA}, <-events)
}
