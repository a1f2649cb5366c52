// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sshcrypto

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"github.com/vngx/vngx-ssh/ssh"
)

// This file backs the RFC 4253 section 6.4 MAC algorithms with
// crypto/hmac over the three hash families the protocol uses.

func registerMACs(reg *ssh.Registry) {
	reg.RegisterMac("hmac-sha1", func() ssh.Mac { return &hmacMac{newHash: sha1.New, size: sha1.Size} })
	reg.RegisterMac("hmac-sha1-96", func() ssh.Mac { return &hmacMac{newHash: sha1.New, size: 12} })
	reg.RegisterMac("hmac-sha2-256", func() ssh.Mac { return &hmacMac{newHash: sha256.New, size: sha256.Size} })
	reg.RegisterMac("hmac-sha2-512", func() ssh.Mac { return &hmacMac{newHash: sha512.New, size: sha512.Size} })
}

// hmacMac wraps crypto/hmac; size may be smaller than the underlying
// hash's native output (hmac-sha1-96 truncates to the first 12 bytes).
type hmacMac struct {
	newHash func() hash.Hash
	size    int
	h       hash.Hash
}

func (m *hmacMac) BlockSize() int { return m.h.BlockSize() }
func (m *hmacMac) Size() int      { return m.size }

func (m *hmacMac) Init(key []byte) {
	m.h = hmac.New(m.newHash, key)
}

func (m *hmacMac) Update(data []byte) { m.h.Write(data) }

func (m *hmacMac) DoFinal(out []byte) []byte {
	sum := m.h.Sum(nil)
	m.h.Reset()
	return append(out, sum[:m.size]...)
}
