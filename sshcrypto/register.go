// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sshcrypto supplies concrete Cipher, AEADCipher, Mac, Signature,
// Compression and Random backends for github.com/vngx/vngx-ssh, built
// from the standard library and golang.org/x/crypto. Importing it for
// side effect (or calling Register explicitly) makes its Registry the
// ssh package's default, so a ClientConfig with a nil Registry picks it
// up automatically.
package sshcrypto

import "github.com/vngx/vngx-ssh/ssh"

func init() {
	ssh.SetDefaultRegistry(newRegistry())
}

// Register populates reg with every algorithm this package implements.
// Most callers never need this directly: importing the package for its
// init() side effect is enough.
func Register(reg *ssh.Registry) {
	registerCiphers(reg)
	registerMACs(reg)
	registerSignatures(reg)
	registerCompressions(reg)
	reg.SetRandom(cryptoRandom{})
}

func newRegistry() *ssh.Registry {
	reg := ssh.NewRegistry()
	Register(reg)
	return reg
}
