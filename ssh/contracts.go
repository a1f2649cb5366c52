// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import "crypto/rand"

// This file declares the collaborator contracts of spec §6: the core never
// imports a concrete cipher, MAC, signature, compression or random-number
// package. It holds these interfaces and looks up implementations by
// algorithm name in a Registry. Hash is the one contract realized directly
// against the standard library (crypto.Hash / hash.Hash) rather than a
// bespoke interface — see the comment on hashFuncs in common.go.

// CipherDirection distinguishes encryption from decryption for Cipher.Init;
// the same Cipher value is never asked to do both at once.
type CipherDirection int

const (
	DirEncrypt CipherDirection = iota
	DirDecrypt
)

// Cipher is the contract a stream or block cipher backend must satisfy.
type Cipher interface {
	// BlockSize returns the cipher's block size in bytes (0 for a true
	// stream cipher such as RC4/ChaCha20).
	BlockSize() int
	// IVSize returns the size of the initialization vector/nonce required.
	IVSize() int
	// IsCBC reports whether the cipher requires whole-block chaining
	// (affects how the transport computes padding).
	IsCBC() bool
	// Init prepares the cipher for the given direction with key and iv.
	Init(dir CipherDirection, key, iv []byte) error
	// Update transforms src into dst (len(dst) >= len(src)); may be
	// called repeatedly with the running state from Init.
	Update(dst, src []byte)
}

// AEADCipher is implemented by ciphers that provide their own integrity
// check (e.g. chacha20-poly1305@openssh.com), folding the MAC into the
// cipher rather than using a separate negotiated MAC algorithm.
type AEADCipher interface {
	Cipher
	Overhead() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// Mac is the contract a MAC backend must satisfy.
type Mac interface {
	BlockSize() int
	Size() int
	Init(key []byte)
	Update(data []byte)
	DoFinal(out []byte) []byte
}

// Signature is the contract an asymmetric signature backend must satisfy.
// One Signature value is either configured with a public key (to verify)
// or a private key (to sign), matching how the core uses it: verifying a
// host key's proof during KEX, or signing a publickey auth challenge.
type Signature interface {
	SetPublicKey(blob []byte) error
	SetPrivateKey(blob []byte) error
	Sign(data []byte) ([]byte, error)
	Verify(data, sig []byte) bool
}

// Compression is the contract a payload compression backend must satisfy.
type Compression interface {
	// Init prepares the backend; level is only meaningful when compress
	// is true (spec §6 compression_level, 1-9).
	Init(compress bool, level int) error
	Compress(in []byte) ([]byte, error)
	Decompress(in []byte) ([]byte, error)
}

// Random is the contract for the source of entropy used for packet
// padding and DH/ECDH private exponents. It MUST be safe for concurrent
// use (or internally guarded); the registry's default implementation
// wraps crypto/rand.Reader, which already satisfies this.
type Random interface {
	Fill(buf []byte) error
}

type cipherFactory func() Cipher
type macFactory func() Mac
type signatureFactory func() Signature
type compressionFactory func() Compression

// Registry maps algorithm names (e.g. "aes128-ctr", "hmac-sha2-256",
// "ssh-rsa", "zlib@openssh.com") to factories, per spec §6: "Each is
// obtainable from an algorithm registry ... The core uses names only; no
// backend-specific type leaks." A Registry is safe for concurrent reads
// once built; Register* calls are expected at startup, before the
// Registry is handed to a ClientConfig.
type Registry struct {
	ciphers      map[string]cipherFactory
	macs         map[string]macFactory
	signatures   map[string]signatureFactory
	compressions map[string]compressionFactory
	random       Random
}

// NewRegistry returns an empty Registry with no algorithms registered and
// crypto/rand as its Random source.
func NewRegistry() *Registry {
	return &Registry{
		ciphers:      make(map[string]cipherFactory),
		macs:         make(map[string]macFactory),
		signatures:   make(map[string]signatureFactory),
		compressions: make(map[string]compressionFactory),
		random:       defaultRandom{},
	}
}

// RegisterCipher registers a cipher factory under name, overwriting any
// previous registration.
func (r *Registry) RegisterCipher(name string, factory func() Cipher) {
	r.ciphers[name] = factory
}

// RegisterMac registers a MAC factory under name.
func (r *Registry) RegisterMac(name string, factory func() Mac) {
	r.macs[name] = factory
}

// RegisterSignature registers a signature-backend factory under a public
// key algorithm name.
func (r *Registry) RegisterSignature(name string, factory func() Signature) {
	r.signatures[name] = factory
}

// RegisterCompression registers a compression backend factory under name.
func (r *Registry) RegisterCompression(name string, factory func() Compression) {
	r.compressions[name] = factory
}

// SetRandom overrides the Random source used for padding and DH exponents.
func (r *Registry) SetRandom(rnd Random) { r.random = rnd }

func (r *Registry) hasCipher(name string) bool {
	if name == compressionNone {
		return true
	}
	_, ok := r.ciphers[name]
	return ok
}

func (r *Registry) cipher(name string) (Cipher, error) {
	if name == compressionNone {
		return noneCipher{}, nil
	}
	f, ok := r.ciphers[name]
	if !ok {
		return nil, NoCommonAlgorithm{Slot: "cipher:" + name}
	}
	return f(), nil
}

func (r *Registry) mac(name string) (Mac, error) {
	if name == compressionNone || name == "" {
		return nil, nil
	}
	f, ok := r.macs[name]
	if !ok {
		return nil, NoCommonAlgorithm{Slot: "mac:" + name}
	}
	return f(), nil
}

func (r *Registry) signature(name string) (Signature, error) {
	f, ok := r.signatures[name]
	if !ok {
		return nil, NoCommonAlgorithm{Slot: "signature:" + name}
	}
	return f(), nil
}

func (r *Registry) compression(name string) (Compression, error) {
	if name == compressionNone || name == "" {
		return noopCompression{}, nil
	}
	f, ok := r.compressions[name]
	if !ok {
		return nil, NoCommonAlgorithm{Slot: "compression:" + name}
	}
	return f(), nil
}

// noneCipher is the identity Cipher used when "none" is negotiated (only
// legal before the first NEWKEYS, or when a caller explicitly allows it).
type noneCipher struct{}

func (noneCipher) BlockSize() int                             { return 8 }
func (noneCipher) IVSize() int                                 { return 0 }
func (noneCipher) IsCBC() bool                                 { return false }
func (noneCipher) Init(CipherDirection, []byte, []byte) error  { return nil }
func (noneCipher) Update(dst, src []byte)                      { copy(dst, src) }

// noopCompression is the identity Compression used when "none" is
// negotiated.
type noopCompression struct{}

func (noopCompression) Init(bool, int) error                { return nil }
func (noopCompression) Compress(in []byte) ([]byte, error)   { return in, nil }
func (noopCompression) Decompress(in []byte) ([]byte, error) { return in, nil }

type defaultRandom struct{}

func (defaultRandom) Fill(buf []byte) error {
	_, err := rand.Read(buf)
	return err
}
