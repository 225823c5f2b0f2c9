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

package uart

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	ps2kbd "github.com/ZaparooProject/go-ps2kbd"
	testutil "github.com/ZaparooProject/go-ps2kbd/internal/testing"
	"github.com/ZaparooProject/go-ps2kbd/keymap"
	"github.com/ZaparooProject/go-ps2kbd/polling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeymap(t *testing.T) *keymap.Map {
	t.Helper()
	km, err := keymap.Load(strings.NewReader("keys:\n  nec:0x20df10ef: KEY_ENTER\n"))
	require.NoError(t, err)
	return km
}

func jitteryPort(input string) *testutil.JitteryPort {
	return testutil.NewJitteryPort(strings.NewReader(input), testutil.JitterConfig{
		Seed:            7,
		MaxChunk:        5,
		StallAfterBytes: 9,
	})
}

func collect(out chan polling.Event) []polling.Event {
	var events []polling.Event
	for {
		select {
		case ev := <-out:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestParseEvent(t *testing.T) {
	t.Parallel()

	km := testKeymap(t)

	tests := []struct {
		line   string
		want   polling.Event
		wantOK bool
	}{
		{line: "+KEY_A", want: polling.Event{Kind: polling.EventPress, Key: ps2kbd.KeyA}, wantOK: true},
		{line: "-KEY_A", want: polling.Event{Kind: polling.EventRelease, Key: ps2kbd.KeyA}, wantOK: true},
		{line: "KEY_UP", want: polling.Event{Kind: polling.EventHit, Key: ps2kbd.KeyUpArrow}, wantOK: true},
		{line: "nec:0x20DF10EF", want: polling.Event{Kind: polling.EventHit, Key: ps2kbd.KeyEnter}, wantOK: true},
		{line: "+ left_shift\r", want: polling.Event{Kind: polling.EventPress, Key: ps2kbd.KeyLeftShift}, wantOK: true},
		{line: "!", want: polling.Event{Kind: polling.EventReleaseAll}, wantOK: true},
		{line: "", wantOK: false},
		{line: "   ", wantOK: false},
		{line: "# remote boot", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			t.Parallel()

			ev, ok, err := ParseEvent(tt.line, km)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestParseEvent_Errors(t *testing.T) {
	t.Parallel()

	_, ok, err := ParseEvent("+", nil)
	require.Error(t, err)
	assert.False(t, ok)

	_, _, err = ParseEvent("-KEY_WARP", nil)
	require.ErrorIs(t, err, ps2kbd.ErrUnknownKey)

	_, _, err = ParseEvent("nec:0x20df10ef", nil)
	require.ErrorIs(t, err, ps2kbd.ErrUnknownKey, "codes need a key map")
}

func TestSource_Run(t *testing.T) {
	t.Parallel()

	input := "# hello\r\n+KEY_LEFT_SHIFT\r\n+KEY_A\n-KEY_A\nbogus\n\nnec:0x20df10ef\n!\n+KEY_B"
	src := NewSource(jitteryPort(input), "test", testKeymap(t), 0)
	out := make(chan polling.Event, 16)

	err := src.Run(context.Background(), out)
	require.ErrorIs(t, err, io.EOF)
	assert.True(t, ps2kbd.IsRetryable(err), "end of stream allows a reconnect")

	assert.Equal(t, []polling.Event{
		{Kind: polling.EventPress, Key: ps2kbd.KeyLeftShift},
		{Kind: polling.EventPress, Key: ps2kbd.KeyA},
		{Kind: polling.EventRelease, Key: ps2kbd.KeyA},
		{Kind: polling.EventHit, Key: ps2kbd.KeyEnter},
		{Kind: polling.EventReleaseAll},
	}, collect(out), "unterminated last line is not emitted")
}

func TestSource_LongLineDiscarded(t *testing.T) {
	t.Parallel()

	input := "+" + strings.Repeat("A", 40) + "\n+KEY_A\n" + strings.Repeat("x", 100) + "\n-KEY_A\n"
	src := NewSource(jitteryPort(input), "test", nil, 16)
	out := make(chan polling.Event, 16)

	require.Error(t, src.Run(context.Background(), out))
	assert.Equal(t, []polling.Event{
		{Kind: polling.EventPress, Key: ps2kbd.KeyA},
		{Kind: polling.EventRelease, Key: ps2kbd.KeyA},
	}, collect(out))
}

func TestSource_ContextCancelledWhileBlocked(t *testing.T) {
	t.Parallel()

	src := NewSource(jitteryPort("+KEY_A\n+KEY_B\n"), "test", nil, 0)
	out := make(chan polling.Event) // nobody reads

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := src.Run(ctx, out)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSource_Close(t *testing.T) {
	t.Parallel()

	src := NewSource(jitteryPort("+KEY_A\n"), "ttyTEST", nil, 0)
	assert.Equal(t, "ttyTEST", src.Name())
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	err := src.Run(context.Background(), make(chan polling.Event, 1))
	require.ErrorIs(t, err, testutil.ErrPortClosed)
	assert.True(t, ps2kbd.IsFatal(err))
}

func TestOpen_RequiresName(t *testing.T) {
	t.Parallel()

	_, err := Open(nil)
	require.Error(t, err)
	_, err = Open(&Config{})
	require.Error(t, err)
}

func TestOpenError_Classification(t *testing.T) {
	t.Parallel()

	err := openError("/dev/ttyUSB9", errors.New("no such file"))
	assert.True(t, ps2kbd.IsRetryable(err))
	assert.Contains(t, err.Error(), "/dev/ttyUSB9")
}

func TestRunWithReconnect(t *testing.T) {
	t.Parallel()

	gone := ps2kbd.NewTransportError("open", "ttyTEST", errors.New("unplugged"), ps2kbd.ErrorTypeTransient)
	denied := ps2kbd.NewTransportError("open", "ttyTEST", errors.New("denied"), ps2kbd.ErrorTypePermanent)

	attempts := 0
	open := func() (*Source, error) {
		attempts++
		switch attempts {
		case 1:
			return nil, gone
		case 2:
			return NewSource(jitteryPort("+KEY_A\n"), "ttyTEST", nil, 0), nil
		default:
			return nil, denied
		}
	}

	out := make(chan polling.Event, 8)
	config := &ps2kbd.RetryConfig{InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, BackoffMultiplier: 2}
	err := RunWithReconnect(context.Background(), open, out, config)

	require.ErrorIs(t, err, denied)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []polling.Event{
		{Kind: polling.EventPress, Key: ps2kbd.KeyA},
		{Kind: polling.EventReleaseAll},
	}, collect(out))
}

func TestRunWithReconnect_ContextEnds(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	open := func() (*Source, error) {
		return nil, ps2kbd.NewTransportError("open", "ttyTEST", errors.New("busy"), ps2kbd.ErrorTypeTransient)
	}
	err := RunWithReconnect(ctx, open, make(chan polling.Event, 1), &ps2kbd.RetryConfig{
		InitialBackoff:    5 * time.Millisecond,
		BackoffMultiplier: 1,
	})
	assert.NoError(t, err)
}
