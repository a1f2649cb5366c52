// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import "fmt"

// UnexpectedMessageError results when the SSH message that we received
// didn't match what we wanted.
type UnexpectedMessageError struct {
	expected, got uint8
}

func (u UnexpectedMessageError) Error() string {
	return fmt.Sprintf("ssh: unexpected message type %d (expected %d)", u.got, u.expected)
}

// ParseError results from a malformed SSH message.
type ParseError struct {
	msgType uint8
}

func (p ParseError) Error() string {
	return fmt.Sprintf("ssh: parse error in message type %d", p.msgType)
}

// ConnectError reports failure to establish the underlying transport
// (socket connect, proxy dial).
type ConnectError struct {
	Addr string
	Err  error
}

func (e ConnectError) Error() string {
	return fmt.Sprintf("ssh: connect to %s: %v", e.Addr, e.Err)
}

func (e ConnectError) Unwrap() error { return e.Err }

// ProtocolError reports a malformed packet, a bad version string, a MAC
// mismatch, or a length overflow detected in the wire format.
type ProtocolError struct {
	Message string
}

func (e ProtocolError) Error() string { return "ssh: protocol error: " + e.Message }

// UnsupportedVersion reports a peer identification string whose
// protoversion is neither "2.0" nor "1.99".
type UnsupportedVersion struct {
	Version string
}

func (e UnsupportedVersion) Error() string {
	return fmt.Sprintf("ssh: unsupported protocol version %q", e.Version)
}

// NoCommonAlgorithm reports that the client and server proposals shared no
// algorithm name for the named KEXINIT slot.
type NoCommonAlgorithm struct {
	Slot string
}

func (e NoCommonAlgorithm) Error() string {
	return fmt.Sprintf("ssh: no common algorithm for %s", e.Slot)
}

// HostKeyRejected reports that the configured HostKeyVerifier refused the
// server's host key.
type HostKeyRejected struct {
	Host string
	Err  error
}

func (e HostKeyRejected) Error() string {
	return fmt.Sprintf("ssh: host key for %s rejected: %v", e.Host, e.Err)
}

func (e HostKeyRejected) Unwrap() error { return e.Err }

// HostKeyChanged reports that the server presented a host key different
// from a previously trusted one, as distinguished from a wholly unknown key.
type HostKeyChanged struct {
	Host string
}

func (e HostKeyChanged) Error() string {
	return fmt.Sprintf("ssh: host key for %s has changed", e.Host)
}

// AuthFailed reports exhaustion of the configured authentication method
// list without a SUCCESS response.
type AuthFailed struct {
	Methods []string
}

func (e AuthFailed) Error() string {
	return fmt.Sprintf("ssh: unable to authenticate, attempted methods %v", e.Methods)
}

// AuthCancelled reports that a ClientAuth method aborted interactively
// (the user declined a prompt, an agent connection closed mid-exchange).
type AuthCancelled struct{}

func (AuthCancelled) Error() string { return "ssh: authentication cancelled" }

// PartialAuth reports a USERAUTH_FAILURE with partial success; Methods is
// the server's "continue with" list returned alongside it.
type PartialAuth struct {
	Methods []string
}

func (e PartialAuth) Error() string {
	return fmt.Sprintf("ssh: partial authentication, may continue with %v", e.Methods)
}

// OpenFailureReason enumerates the RFC 4254 7.1.2 CHANNEL_OPEN_FAILURE
// reason codes.
type OpenFailureReason uint32

const (
	AdministrativelyProhibited OpenFailureReason = 1
	ConnectionFailed           OpenFailureReason = 2
	UnknownChannelType         OpenFailureReason = 3
	ResourceShortage           OpenFailureReason = 4
)

func (r OpenFailureReason) String() string {
	switch r {
	case AdministrativelyProhibited:
		return "administratively prohibited"
	case ConnectionFailed:
		return "connect failed"
	case UnknownChannelType:
		return "unknown channel type"
	case ResourceShortage:
		return "resource shortage"
	default:
		return fmt.Sprintf("unknown reason %d", uint32(r))
	}
}

// ChannelError reports a channel-open failure (with reason code), a
// refused request, or a channel closed mid-operation. An open timeout is
// reported as OpenTimeout instead.
type ChannelError struct {
	Reason  OpenFailureReason
	Message string
}

func (e ChannelError) Error() string {
	return fmt.Sprintf("ssh: channel error: %s (%s)", e.Message, e.Reason)
}

// OpenTimeout reports that connect(timeout) elapsed before
// CHANNEL_OPEN_CONFIRMATION or CHANNEL_OPEN_FAILURE arrived.
type OpenTimeout struct {
	ChannelType string
}

func (e OpenTimeout) Error() string {
	return fmt.Sprintf("ssh: timed out opening %q channel", e.ChannelType)
}

// SftpStatus is produced by the (external) SFTP collaborator; the core
// never constructs or inspects it, but it is part of the shared error
// taxonomy so callers can type-switch uniformly.
type SftpStatus struct {
	Code    uint32
	Message string
}

func (e SftpStatus) Error() string {
	return fmt.Sprintf("sftp: status %d: %s", e.Code, e.Message)
}

// PeerDisconnect reports a received SSH_MSG_DISCONNECT.
type PeerDisconnect struct {
	Reason      uint32
	Description string
}

func (e PeerDisconnect) Error() string {
	return fmt.Sprintf("ssh: disconnected by peer (reason %d): %s", e.Reason, safeString(e.Description))
}

// Cancelled reports that an operation was aborted by disconnect() or an
// explicit cancellation request rather than by a protocol failure.
type Cancelled struct{}

func (Cancelled) Error() string { return "ssh: operation cancelled" }

// Timeout reports that a per-operation deadline (connect, channel open,
// a request expecting a reply) elapsed.
type Timeout struct {
	Op string
}

func (e Timeout) Error() string { return fmt.Sprintf("ssh: %s timed out", e.Op) }

func (Timeout) Temporary() bool { return true }
func (Timeout) IsTimeout() bool { return true }

// Internal reports a bug: an invariant the implementation itself is
// supposed to maintain was violated.
type Internal struct {
	Message string
}

func (e Internal) Error() string { return "ssh: internal error: " + e.Message }
