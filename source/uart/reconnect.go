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

	ps2kbd "github.com/ZaparooProject/go-ps2kbd"
	"github.com/ZaparooProject/go-ps2kbd/polling"
)

// OpenFunc opens a fresh source, typically by calling Open with a fixed
// Config
type OpenFunc func() (*Source, error)

// RunWithReconnect runs sources from open until ctx ends, reopening the port
// with backoff whenever it fails. Every disconnect sends an EventReleaseAll
// so keys held through the lost port do not stay down.
//
// A nil config uses ps2kbd.ReconnectRetryConfig. It returns nil when ctx
// ends and the last error once a permanent failure or MaxAttempts stops it.
func RunWithReconnect(
	ctx context.Context,
	open OpenFunc,
	out chan<- polling.Event,
	config *ps2kbd.RetryConfig,
) error {
	if config == nil {
		config = ps2kbd.ReconnectRetryConfig()
	}

	err := ps2kbd.RetryWithConfig(ctx, config, func() error {
		src, err := open()
		if err != nil {
			ps2kbd.Debugf("event source: %v", err)
			return err
		}
		ps2kbd.Debugf("event source: reading %s", src.Name())

		runErr := src.Run(ctx, out)
		_ = src.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ps2kbd.Debugf("event source: %s lost: %v", src.Name(), runErr)
		select {
		case out <- polling.Event{Kind: polling.EventReleaseAll}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return runErr
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}
