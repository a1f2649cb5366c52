// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sshcrypto

import (
	"testing"

	"github.com/vngx/vngx-ssh/ssh"
)

func TestRegisterWiresEveryCollaborator(t *testing.T) {
	reg := ssh.NewRegistry()
	Register(reg)
}

func TestInitSetsDefaultRegistry(t *testing.T) {
	if ssh.DefaultRegistry() == nil {
		t.Fatalf("importing sshcrypto should set a non-nil default ssh.Registry")
	}
}

func TestCryptoRandomFillsBuffer(t *testing.T) {
	buf := make([]byte, 32)
	if err := (cryptoRandom{}).Fill(buf); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	allZero := true
	for _, b := range buf {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		t.Fatalf("Fill left the buffer all zero; vanishingly unlikely for 32 random bytes")
	}
}
