// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"bytes"
	"errors"
	"testing"
)

// fakeSignature is a minimal Signature backend: Sign echoes back the
// private key blob it was configured with, so tests can check which key
// material actually reached the backend.
type fakeSignature struct {
	priv []byte
	pub  []byte
}

func (f *fakeSignature) SetPublicKey(blob []byte) error  { f.pub = blob; return nil }
func (f *fakeSignature) SetPrivateKey(blob []byte) error { f.priv = append([]byte(nil), blob...); return nil }
func (f *fakeSignature) Sign(data []byte) ([]byte, error) {
	return append(append([]byte(nil), f.priv...), data...), nil
}
func (f *fakeSignature) Verify(data, sig []byte) bool { return true }

func newFakeRegistry() *Registry {
	reg := NewRegistry()
	reg.RegisterSignature(hostAlgoED25519, func() Signature { return &fakeSignature{} })
	return reg
}

type fixedDecryptor struct {
	passphrase string
	blob       []byte
	err        error
}

func (d fixedDecryptor) Decrypt(encrypted []byte, passphrase string) ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	if passphrase != d.passphrase {
		return nil, errors.New("ssh: wrong passphrase")
	}
	return d.blob, nil
}

func TestNewIdentityUnlockedAndSigns(t *testing.T) {
	reg := newFakeRegistry()
	pub := &rawPublicKey{algo: hostAlgoED25519, blob: []byte("pub")}
	id, err := NewIdentity("work", pub, []byte("priv-key-bytes"), reg)
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}
	if id.Locked() {
		t.Fatalf("a NewIdentity-built identity must not be Locked")
	}
	sig, err := id.Sign(nil, []byte("challenge"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !bytes.HasPrefix(sig, []byte("priv-key-bytes")) {
		t.Fatalf("Sign() = %q, want it to start with the private key bytes", sig)
	}
}

func TestEncryptedIdentityLockedUntilDecrypt(t *testing.T) {
	reg := newFakeRegistry()
	pub := &rawPublicKey{algo: hostAlgoED25519, blob: []byte("pub")}
	kdf := fixedDecryptor{passphrase: "swordfish", blob: []byte("decrypted-priv")}
	id := NewEncryptedIdentity("home", pub, []byte("encrypted-bytes"), kdf, reg)

	if !id.Locked() {
		t.Fatalf("NewEncryptedIdentity must start Locked")
	}
	if _, err := id.Sign(nil, []byte("x")); err == nil {
		t.Fatalf("Sign on a locked identity should fail")
	}

	if err := id.Decrypt("wrong"); err == nil {
		t.Fatalf("Decrypt with the wrong passphrase should fail")
	}
	if !id.Locked() {
		t.Fatalf("a failed Decrypt must leave the identity Locked")
	}

	if err := id.Decrypt("swordfish"); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if id.Locked() {
		t.Fatalf("Decrypt with the right passphrase must unlock the identity")
	}

	sig, err := id.Sign(nil, []byte("challenge"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !bytes.HasPrefix(sig, []byte("decrypted-priv")) {
		t.Fatalf("Sign() = %q, want it to use the decrypted key", sig)
	}
}

func TestIdentityDecryptIsIdempotentOnceUnlocked(t *testing.T) {
	reg := newFakeRegistry()
	pub := &rawPublicKey{algo: hostAlgoED25519, blob: []byte("pub")}
	kdf := fixedDecryptor{passphrase: "p", blob: []byte("priv")}
	id := NewEncryptedIdentity("x", pub, []byte("enc"), kdf, reg)

	if err := id.Decrypt("p"); err != nil {
		t.Fatalf("first Decrypt: %v", err)
	}
	// A second Decrypt call is a no-op once unlocked, regardless of
	// the passphrase passed.
	if err := id.Decrypt("totally-wrong"); err != nil {
		t.Fatalf("second Decrypt on an already-unlocked identity: %v", err)
	}
}

func TestIdentityClearZeroesAndDisables(t *testing.T) {
	reg := newFakeRegistry()
	pub := &rawPublicKey{algo: hostAlgoED25519, blob: []byte("pub")}
	id, err := NewIdentity("work", pub, []byte("priv-key-bytes"), reg)
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}

	id.Clear()

	if _, ok := id.AsSigner(); ok {
		t.Fatalf("AsSigner should fail after Clear")
	}
	if _, err := id.Sign(nil, []byte("x")); err == nil {
		t.Fatalf("Sign should fail after Clear")
	}
	if err := id.Decrypt("anything"); err == nil {
		t.Fatalf("Decrypt should fail after Clear")
	}
	for _, b := range id.rawPriv {
		if b != 0 {
			t.Fatalf("rawPriv was not zeroed after Clear")
		}
	}
}

func TestIdentityAsSigner(t *testing.T) {
	reg := newFakeRegistry()
	pub := &rawPublicKey{algo: hostAlgoED25519, blob: []byte("pub")}
	id, err := NewIdentity("work", pub, []byte("priv"), reg)
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}
	signer, ok := id.AsSigner()
	if !ok {
		t.Fatalf("AsSigner failed on an unlocked identity")
	}
	if signer.PublicKey() != pub {
		t.Fatalf("AsSigner's PublicKey does not match the identity's")
	}
}

func TestIdentitySetAddRemoveList(t *testing.T) {
	s := NewIdentitySet()
	reg := newFakeRegistry()
	pub := &rawPublicKey{algo: hostAlgoED25519, blob: []byte("pub")}
	a, _ := NewIdentity("a", pub, []byte("priv-a"), reg)
	b, _ := NewIdentity("b", pub, []byte("priv-b"), reg)

	s.Add(a)
	s.Add(b)
	if got := s.List(); len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Fatalf("List() = %v, want [a b] in insertion order", got)
	}

	s.Remove("a")
	if got := s.List(); len(got) != 1 || got[0].Name != "b" {
		t.Fatalf("List() after Remove = %v, want [b]", got)
	}
}

func TestIdentitySetSignersSkipsLocked(t *testing.T) {
	s := NewIdentitySet()
	reg := newFakeRegistry()
	pub := &rawPublicKey{algo: hostAlgoED25519, blob: []byte("pub")}

	unlocked, _ := NewIdentity("unlocked", pub, []byte("priv"), reg)
	locked := NewEncryptedIdentity("locked", pub, []byte("enc"), fixedDecryptor{passphrase: "p", blob: []byte("priv2")}, reg)

	s.Add(unlocked)
	s.Add(locked)

	signers := s.Signers()
	if len(signers) != 1 {
		t.Fatalf("Signers() returned %d signers, want 1 (the locked identity must be skipped)", len(signers))
	}
	if signers[0].PublicKey() != pub {
		t.Fatalf("Signers()[0] does not wrap the unlocked identity")
	}
}
