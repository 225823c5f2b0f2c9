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
	"fmt"
)

// Host commands
const (
	CmdSetLEDs         byte = 0xED
	CmdEcho            byte = 0xEE
	CmdSetScanCodeSet  byte = 0xF0
	CmdGetDeviceID     byte = 0xF2
	CmdSetTypematic    byte = 0xF3
	CmdEnableReporting byte = 0xF4
	CmdDisableReport   byte = 0xF5
	CmdSetDefaults     byte = 0xF6
	CmdResend          byte = 0xFE
	CmdReset           byte = 0xFF
)

// Replies sent to the host
const (
	ReplyAck            byte = 0xFA
	ReplySelfTestPassed byte = 0xAA
	ReplyEcho           byte = 0xEE
)

// DeviceID is the identity reported for get-device-id: an MF2 keyboard.
var DeviceID = [2]byte{0xAB, 0x83}

// commandNames is used for logging only
var commandNames = map[byte]string{
	CmdSetLEDs:         "set LEDs",
	CmdEcho:            "echo",
	CmdSetScanCodeSet:  "set scan code set",
	CmdGetDeviceID:     "get device ID",
	CmdSetTypematic:    "set typematic rate",
	CmdEnableReporting: "enable reporting",
	CmdDisableReport:   "disable reporting",
	CmdSetDefaults:     "set defaults",
	CmdResend:          "resend",
	CmdReset:           "reset",
}

// handleCommand runs the reply sequence for one command byte from the host.
// The only errors returned are fatal line errors.
func (k *Keyboard) handleCommand(cmd byte) error {
	name, known := commandNames[cmd]
	if !known {
		Debugf("%v: 0x%02X", ErrUnknownCommand, cmd)
		return nil
	}
	Debugf("host command 0x%02X (%s)", cmd, name)

	switch cmd {
	case CmdReset:
		if err := k.ack(); err != nil {
			return err
		}
		if err := k.sendUntilAccepted(ReplySelfTestPassed); err != nil {
			return err
		}
		k.enabled = true
	case CmdResend, CmdSetDefaults:
		return k.ack()
	case CmdDisableReport:
		k.enabled = false
		return k.ack()
	case CmdEnableReporting:
		k.enabled = true
		return k.ack()
	case CmdSetTypematic, CmdSetScanCodeSet, CmdSetLEDs:
		return k.ackWithParameter(name)
	case CmdGetDeviceID:
		if err := k.ack(); err != nil {
			return err
		}
		for _, b := range DeviceID {
			if err := k.sendUntilAccepted(b); err != nil {
				return err
			}
		}
	case CmdEcho:
		if err := k.bus.Transmit(ReplyEcho); err != nil {
			if IsFatal(err) {
				return err
			}
			Debugf("echo reply not sent: %v", err)
		}
	}
	return nil
}

// ack acknowledges the command just received.
func (k *Keyboard) ack() error {
	return k.sendUntilAccepted(ReplyAck)
}

// ackWithParameter acknowledges a command, reads and discards its
// parameter byte, and acknowledges again.
func (k *Keyboard) ackWithParameter(name string) error {
	if err := k.ack(); err != nil {
		return err
	}
	param, err := k.bus.Receive()
	switch {
	case IsFatal(err):
		return err
	case err != nil:
		Debugf("%s: parameter not received: %v", name, err)
	default:
		Debugf("%s: ignoring parameter 0x%02X", name, param)
	}
	return k.ack()
}

// sendUntilAccepted transmits b until the bus reports success. A host that
// just sent a command is listening, so collisions and timeouts are retried.
func (k *Keyboard) sendUntilAccepted(b byte) error {
	err := RetryWithConfig(context.Background(), k.config.RetryConfig, func() error {
		return k.bus.Transmit(b)
	})
	if err != nil {
		return fmt.Errorf("send 0x%02X: %w", b, err)
	}
	return nil
}
