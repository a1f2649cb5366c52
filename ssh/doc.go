// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ssh implements an SSH-2 client: transport encryption and
// integrity (RFC 4253), user authentication (RFC 4252 and RFC 4256 and
// RFC 4462), and the connection-layer channel multiplexing used by
// interactive sessions, exec, subsystems and TCP/IP forwarding (RFC
// 4254).
//
// Concrete cryptographic primitives - ciphers, MACs, signatures,
// compression and randomness - are not implemented in this package.
// Callers register implementations of the Cipher, AEADCipher, Mac,
// Signature, Compression and Random contracts into a Registry, or
// import a package such as sshcrypto that does this for them via
// SetDefaultRegistry.
package ssh
