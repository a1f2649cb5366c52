// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"errors"
	"strings"
	"testing"
)

func TestUnexpectedMessageErrorString(t *testing.T) {
	err := UnexpectedMessageError{expected: msgKexInit, got: msgChannelData}
	msg := err.Error()
	if !strings.Contains(msg, "20") || !strings.Contains(msg, "94") {
		t.Fatalf("Error() = %q, want it to mention both message numbers", msg)
	}
}

func TestConnectErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := ConnectError{Addr: "host:22", Err: inner}
	if !errors.Is(err, inner) {
		t.Fatalf("errors.Is did not see through ConnectError.Unwrap")
	}
	if !strings.Contains(err.Error(), "host:22") {
		t.Fatalf("Error() = %q, want it to mention the address", err.Error())
	}
}

func TestHostKeyRejectedUnwrap(t *testing.T) {
	inner := errors.New("fingerprint mismatch")
	err := HostKeyRejected{Host: "example.com", Err: inner}
	if !errors.Is(err, inner) {
		t.Fatalf("errors.Is did not see through HostKeyRejected.Unwrap")
	}
}

func TestPeerDisconnectSanitizesDescription(t *testing.T) {
	err := PeerDisconnect{Reason: 11, Description: "bye\x00bye"}
	msg := err.Error()
	if strings.Contains(msg, "\x00") {
		t.Fatalf("Error() leaked a raw control byte: %q", msg)
	}
}

func TestTimeoutIsTemporaryAndTimeout(t *testing.T) {
	err := Timeout{Op: "dial"}
	if !err.Temporary() {
		t.Fatalf("Timeout.Temporary() = false, want true")
	}
	if !err.IsTimeout() {
		t.Fatalf("Timeout.IsTimeout() = false, want true")
	}
	if !strings.Contains(err.Error(), "dial") {
		t.Fatalf("Error() = %q, want it to mention the operation", err.Error())
	}
}

func TestOpenFailureReasonString(t *testing.T) {
	cases := map[OpenFailureReason]string{
		AdministrativelyProhibited: "administratively prohibited",
		ConnectionFailed:           "connect failed",
		UnknownChannelType:         "unknown channel type",
		ResourceShortage:           "resource shortage",
	}
	for reason, want := range cases {
		if got := reason.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", reason, got, want)
		}
	}
	if got := OpenFailureReason(99).String(); !strings.Contains(got, "99") {
		t.Fatalf("unknown reason String() = %q, want it to mention the numeric value", got)
	}
}

func TestAuthFailedError(t *testing.T) {
	err := AuthFailed{Methods: []string{"password", "publickey"}}
	msg := err.Error()
	if !strings.Contains(msg, "password") || !strings.Contains(msg, "publickey") {
		t.Fatalf("Error() = %q, want it to list the attempted methods", msg)
	}
}

func TestChannelErrorMentionsReason(t *testing.T) {
	err := ChannelError{Reason: ResourceShortage, Message: "too many channels"}
	msg := err.Error()
	if !strings.Contains(msg, "too many channels") || !strings.Contains(msg, "resource shortage") {
		t.Fatalf("Error() = %q, want it to mention both the message and the reason", msg)
	}
}
