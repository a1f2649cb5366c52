// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sshcrypto

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"testing"

	"github.com/vngx/vngx-ssh/ssh"
)

func TestRegisterMACsPopulatesRegistry(t *testing.T) {
	reg := ssh.NewRegistry()
	registerMACs(reg)
}

func TestHMACSHA2_256MatchesStdlib(t *testing.T) {
	key := []byte("shared-secret")
	data := []byte("packet bytes to authenticate")

	m := &hmacMac{newHash: sha256.New, size: sha256.Size}
	m.Init(key)
	m.Update(data)
	got := m.DoFinal(nil)

	want := hmac.New(sha256.New, key)
	want.Write(data)
	if !bytes.Equal(got, want.Sum(nil)) {
		t.Fatalf("hmac-sha2-256 mismatch: got %x, want %x", got, want.Sum(nil))
	}
	if m.Size() != sha256.Size {
		t.Fatalf("Size() = %d, want %d", m.Size(), sha256.Size)
	}
}

func TestHMACSHA1_96Truncates(t *testing.T) {
	m := &hmacMac{newHash: sha1.New, size: 12}
	m.Init([]byte("key"))
	m.Update([]byte("data"))
	got := m.DoFinal(nil)

	if len(got) != 12 {
		t.Fatalf("DoFinal returned %d bytes, want 12", len(got))
	}

	full := hmac.New(sha1.New, []byte("key"))
	full.Write([]byte("data"))
	want := full.Sum(nil)[:12]
	if !bytes.Equal(got, want) {
		t.Fatalf("hmac-sha1-96 mismatch: got %x, want %x", got, want)
	}
}

func TestHMACDoFinalResetsState(t *testing.T) {
	m := &hmacMac{newHash: sha256.New, size: sha256.Size}
	m.Init([]byte("key"))
	m.Update([]byte("first-message"))
	first := m.DoFinal(nil)

	m.Update([]byte("second-message"))
	second := m.DoFinal(nil)

	if bytes.Equal(first, second) {
		t.Fatalf("DoFinal did not reset hash state between calls")
	}
}

func TestHMACDoFinalAppendsToOut(t *testing.T) {
	m := &hmacMac{newHash: sha256.New, size: sha256.Size}
	m.Init([]byte("key"))
	m.Update([]byte("data"))

	prefix := []byte("prefix:")
	got := m.DoFinal(prefix)
	if !bytes.HasPrefix(got, prefix) {
		t.Fatalf("DoFinal did not append to the provided prefix")
	}
}
