// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sshcrypto

import (
	"crypto"
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"fmt"
	"math/big"

	"github.com/vngx/vngx-ssh/ssh"
)

// This file backs the five host-key/publickey-auth signature algorithms
// (RFC 4253 section 6.6 and RFC 8332's rsa-sha2 extensions) with
// crypto/rsa, crypto/ecdsa and crypto/ed25519. Public key blobs are
// parsed and produced in the RFC 4253 6.6 wire form using ssh.Buffer;
// private key blobs are PKCS8 DER (x509.MarshalPKCS8PrivateKey), which
// covers RSA, ECDSA and Ed25519 uniformly and keeps this package from
// inventing its own private-key container format.
//
// ssh-dss is registered for host-key verification only: crypto/dsa has
// no PKCS8 marshaller, and DSA host keys are obsolete enough that
// publickey auth with one is not worth a bespoke private-key encoding.

func registerSignatures(reg *ssh.Registry) {
	reg.RegisterSignature("ssh-rsa", func() ssh.Signature { return &rsaSignature{hashAlgo: crypto.SHA1} })
	reg.RegisterSignature("rsa-sha2-256", func() ssh.Signature { return &rsaSignature{hashAlgo: crypto.SHA256} })
	reg.RegisterSignature("rsa-sha2-512", func() ssh.Signature { return &rsaSignature{hashAlgo: crypto.SHA512} })
	reg.RegisterSignature("ssh-dss", func() ssh.Signature { return &dsaSignature{} })
	reg.RegisterSignature("ecdsa-sha2-nistp256", func() ssh.Signature { return &ecdsaSignature{curve: elliptic.P256(), hash: crypto.SHA256} })
	reg.RegisterSignature("ecdsa-sha2-nistp384", func() ssh.Signature { return &ecdsaSignature{curve: elliptic.P384(), hash: crypto.SHA384} })
	reg.RegisterSignature("ecdsa-sha2-nistp521", func() ssh.Signature { return &ecdsaSignature{curve: elliptic.P521(), hash: crypto.SHA512} })
	reg.RegisterSignature("ssh-ed25519", func() ssh.Signature { return &ed25519Signature{} })
}

// --- ssh-rsa / rsa-sha2-256 / rsa-sha2-512 ---

type rsaSignature struct {
	hashAlgo crypto.Hash
	pub      *rsa.PublicKey
	priv     *rsa.PrivateKey
}

func (s *rsaSignature) SetPublicKey(blob []byte) error {
	buf := ssh.NewBufferFromBytes(blob)
	e, err := buf.GetMPInt()
	if err != nil {
		return err
	}
	n, err := buf.GetMPInt()
	if err != nil {
		return err
	}
	s.pub = &rsa.PublicKey{E: int(e.Int64()), N: n}
	return nil
}

func (s *rsaSignature) SetPrivateKey(blob []byte) error {
	key, err := x509.ParsePKCS8PrivateKey(blob)
	if err != nil {
		return err
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("sshcrypto: private key blob is not RSA")
	}
	s.priv = priv
	return nil
}

func (s *rsaSignature) Sign(data []byte) ([]byte, error) {
	if s.priv == nil {
		return nil, fmt.Errorf("sshcrypto: no private key configured")
	}
	h := hashData(s.hashAlgo, data)
	return rsa.SignPKCS1v15(rand.Reader, s.priv, s.hashAlgo, h)
}

func (s *rsaSignature) Verify(data, sig []byte) bool {
	if s.pub == nil {
		return false
	}
	h := hashData(s.hashAlgo, data)
	return rsa.VerifyPKCS1v15(s.pub, s.hashAlgo, h, sig) == nil
}

func hashData(algo crypto.Hash, data []byte) []byte {
	switch algo {
	case crypto.SHA256:
		sum := sha256.Sum256(data)
		return sum[:]
	case crypto.SHA512:
		sum := sha512.Sum512(data)
		return sum[:]
	default:
		sum := sha1.Sum(data)
		return sum[:]
	}
}

// --- ssh-dss ---

type dsaSignature struct {
	pub *dsa.PublicKey
}

func (s *dsaSignature) SetPublicKey(blob []byte) error {
	buf := ssh.NewBufferFromBytes(blob)
	p, err := buf.GetMPInt()
	if err != nil {
		return err
	}
	q, err := buf.GetMPInt()
	if err != nil {
		return err
	}
	g, err := buf.GetMPInt()
	if err != nil {
		return err
	}
	y, err := buf.GetMPInt()
	if err != nil {
		return err
	}
	s.pub = &dsa.PublicKey{
		Parameters: dsa.Parameters{P: p, Q: q, G: g},
		Y:          y,
	}
	return nil
}

func (s *dsaSignature) SetPrivateKey(blob []byte) error {
	return fmt.Errorf("sshcrypto: ssh-dss signing is not supported")
}

func (s *dsaSignature) Sign(data []byte) ([]byte, error) {
	return nil, fmt.Errorf("sshcrypto: ssh-dss signing is not supported")
}

// Verify checks an RFC 4253 6.6 DSS signature: a 40-byte blob of two
// big-endian 160-bit integers r||s (not ASN.1 DER).
func (s *dsaSignature) Verify(data, sig []byte) bool {
	if s.pub == nil || len(sig) != 40 {
		return false
	}
	r := new(big.Int).SetBytes(sig[:20])
	sVal := new(big.Int).SetBytes(sig[20:])
	h := sha1.Sum(data)
	return dsa.Verify(s.pub, h[:], r, sVal)
}

// --- ecdsa-sha2-nistp256 / 384 / 521 ---

type ecdsaSignature struct {
	curve elliptic.Curve
	hash  crypto.Hash
	pub   *ecdsa.PublicKey
	priv  *ecdsa.PrivateKey
}

func (s *ecdsaSignature) SetPublicKey(blob []byte) error {
	buf := ssh.NewBufferFromBytes(blob)
	if _, err := buf.GetString(); err != nil { // curve name, implied by registration
		return err
	}
	point, err := buf.GetString()
	if err != nil {
		return err
	}
	x, y := elliptic.Unmarshal(s.curve, point)
	if x == nil {
		return fmt.Errorf("sshcrypto: invalid ECDSA point")
	}
	s.pub = &ecdsa.PublicKey{Curve: s.curve, X: x, Y: y}
	return nil
}

func (s *ecdsaSignature) SetPrivateKey(blob []byte) error {
	key, err := x509.ParsePKCS8PrivateKey(blob)
	if err != nil {
		return err
	}
	priv, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return fmt.Errorf("sshcrypto: private key blob is not ECDSA")
	}
	s.priv = priv
	return nil
}

func (s *ecdsaSignature) Sign(data []byte) ([]byte, error) {
	if s.priv == nil {
		return nil, fmt.Errorf("sshcrypto: no private key configured")
	}
	h := hashData(s.hash, data)
	r, sVal, err := ecdsa.Sign(rand.Reader, s.priv, h)
	if err != nil {
		return nil, err
	}
	buf := ssh.NewBuffer()
	buf.PutMPInt(r)
	buf.PutMPInt(sVal)
	return buf.Written(), nil
}

func (s *ecdsaSignature) Verify(data, sig []byte) bool {
	if s.pub == nil {
		return false
	}
	buf := ssh.NewBufferFromBytes(sig)
	r, err := buf.GetMPInt()
	if err != nil {
		return false
	}
	sVal, err := buf.GetMPInt()
	if err != nil {
		return false
	}
	h := hashData(s.hash, data)
	return ecdsa.Verify(s.pub, h, r, sVal)
}

// --- ssh-ed25519 ---

type ed25519Signature struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func (s *ed25519Signature) SetPublicKey(blob []byte) error {
	buf := ssh.NewBufferFromBytes(blob)
	key, err := buf.GetString()
	if err != nil {
		return err
	}
	if len(key) != ed25519.PublicKeySize {
		return fmt.Errorf("sshcrypto: invalid ed25519 public key length %d", len(key))
	}
	s.pub = ed25519.PublicKey(key)
	return nil
}

func (s *ed25519Signature) SetPrivateKey(blob []byte) error {
	key, err := x509.ParsePKCS8PrivateKey(blob)
	if err != nil {
		return err
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return fmt.Errorf("sshcrypto: private key blob is not ed25519")
	}
	s.priv = priv
	return nil
}

func (s *ed25519Signature) Sign(data []byte) ([]byte, error) {
	if s.priv == nil {
		return nil, fmt.Errorf("sshcrypto: no private key configured")
	}
	return ed25519.Sign(s.priv, data), nil
}

func (s *ed25519Signature) Verify(data, sig []byte) bool {
	if s.pub == nil {
		return false
	}
	return ed25519.Verify(s.pub, data, sig)
}
