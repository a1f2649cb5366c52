// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"fmt"
	"io"
)

// This file implements the Identity and identity-set module of spec §3:
// a name, a public key, and an optional encrypted private key, consulted
// in order by the publickey authentication method. Per spec §3's
// "persisted state: none inside the core; identity files ... are parsed
// by collaborators," this package never reads a private-key file format
// itself (PEM, openssh-key-v1, PuTTY .ppk, ...) — a caller decodes the
// bytes and either hands Identity an already-decrypted private key blob,
// or supplies a KeyDecryptor that knows the file's specific encryption
// scheme.

// KeyDecryptor turns an identity's encrypted private-key bytes plus a
// passphrase into the decrypted key material SetPrivateKey expects
// (PKCS8 DER for the sshcrypto backends). The encryption scheme itself
// (legacy PEM DEK-Info, OpenSSH's bcrypt-kdf, PuTTY's, ...) is entirely
// up to the collaborator the caller supplies.
type KeyDecryptor interface {
	Decrypt(encrypted []byte, passphrase string) (privateKeyBlob []byte, err error)
}

// Identity is a named public key plus, once unlocked, the Signer that
// proves possession of the matching private key (spec §3 "Identity").
type Identity struct {
	Name      string
	PublicKey PublicKey

	reg       *Registry
	signer    Signer
	rawPriv   []byte
	encrypted []byte
	kdf       KeyDecryptor
	cleared   bool
}

// NewIdentity builds an already-unlocked Identity from a decrypted
// private-key blob (PKCS8 DER, see sshcrypto's Signature.SetPrivateKey).
func NewIdentity(name string, pub PublicKey, privateKeyBlob []byte, reg *Registry) (*Identity, error) {
	signer, err := NewSigner(reg, pub, privateKeyBlob)
	if err != nil {
		return nil, err
	}
	priv := make([]byte, len(privateKeyBlob))
	copy(priv, privateKeyBlob)
	return &Identity{Name: name, PublicKey: pub, reg: reg, signer: signer, rawPriv: priv}, nil
}

// NewEncryptedIdentity builds a locked Identity: Decrypt must be called
// with the correct passphrase (via kdf) before Sign will work.
func NewEncryptedIdentity(name string, pub PublicKey, encryptedPrivateKeyBlob []byte, kdf KeyDecryptor, reg *Registry) *Identity {
	enc := make([]byte, len(encryptedPrivateKeyBlob))
	copy(enc, encryptedPrivateKeyBlob)
	return &Identity{Name: name, PublicKey: pub, reg: reg, encrypted: enc, kdf: kdf}
}

// Locked reports whether Decrypt still needs to be called before Sign
// will succeed.
func (id *Identity) Locked() bool { return id.signer == nil && len(id.encrypted) > 0 }

// Decrypt unlocks an encrypted identity with passphrase, using the
// KeyDecryptor supplied at construction.
func (id *Identity) Decrypt(passphrase string) error {
	if id.cleared {
		return fmt.Errorf("ssh: identity %q already cleared", id.Name)
	}
	if !id.Locked() {
		return nil
	}
	blob, err := id.kdf.Decrypt(id.encrypted, passphrase)
	if err != nil {
		return err
	}
	signer, err := NewSigner(id.reg, id.PublicKey, blob)
	if err != nil {
		return err
	}
	id.signer = signer
	id.rawPriv = blob
	return nil
}

// Sign proves possession of the identity's private key, per RFC 4252
// section 7's publickey authentication challenge.
func (id *Identity) Sign(rand io.Reader, data []byte) ([]byte, error) {
	if id.cleared {
		return nil, fmt.Errorf("ssh: identity %q cleared", id.Name)
	}
	if id.signer == nil {
		return nil, fmt.Errorf("ssh: identity %q is locked", id.Name)
	}
	return id.signer.Sign(rand, data)
}

// AsSigner exposes the identity as a Signer once unlocked, for use
// directly with the PublicKey ClientAuth constructor.
func (id *Identity) AsSigner() (Signer, bool) {
	if id.cleared || id.signer == nil {
		return nil, false
	}
	return id.signer, true
}

// Clear zeroes the identity's private key material (spec §3's "clear()
// on identity drop") and makes the Identity permanently unusable.
func (id *Identity) Clear() {
	zero(id.rawPriv)
	zero(id.encrypted)
	id.rawPriv = nil
	id.encrypted = nil
	id.signer = nil
	id.cleared = true
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// IdentitySet is a process-wide, ordered collection of identities
// consulted by the publickey method and an agent-forwarding channel
// (spec §3 "Identity set").
type IdentitySet struct {
	identities []*Identity
}

// NewIdentitySet returns an empty IdentitySet.
func NewIdentitySet() *IdentitySet { return &IdentitySet{} }

// Add appends id to the end of the set's consultation order.
func (s *IdentitySet) Add(id *Identity) { s.identities = append(s.identities, id) }

// Remove drops the first identity with the given name, if present.
func (s *IdentitySet) Remove(name string) {
	for i, id := range s.identities {
		if id.Name == name {
			s.identities = append(s.identities[:i], s.identities[i+1:]...)
			return
		}
	}
}

// List returns the identities in consultation order.
func (s *IdentitySet) List() []*Identity { return s.identities }

// Signers returns a Signer for every unlocked identity in the set, in
// order, suitable for passing straight to PublicKey.
func (s *IdentitySet) Signers() []Signer {
	var out []Signer
	for _, id := range s.identities {
		if signer, ok := id.AsSigner(); ok {
			out = append(out, signer)
		}
	}
	return out
}
