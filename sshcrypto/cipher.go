// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sshcrypto

import (
	gocipher "crypto/cipher"
	"crypto/aes"
	"crypto/des"
	"crypto/rc4"
	"fmt"

	"golang.org/x/crypto/blowfish"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/vngx/vngx-ssh/ssh"
)

// This file backs the RFC 4253 section 6.3 ciphers (plus the
// chacha20-poly1305@openssh.com AEAD extension) with crypto/aes,
// crypto/des, crypto/rc4, golang.org/x/crypto/blowfish and
// golang.org/x/crypto/chacha20poly1305.

func registerCiphers(reg *ssh.Registry) {
	reg.RegisterCipher("aes128-cbc", func() ssh.Cipher { return &cbcCipher{newBlock: aes.NewCipher} })
	reg.RegisterCipher("aes256-cbc", func() ssh.Cipher { return &cbcCipher{newBlock: aes.NewCipher} })
	reg.RegisterCipher("aes128-ctr", func() ssh.Cipher { return &ctrCipher{newBlock: aes.NewCipher, ivSize: aes.BlockSize} })
	reg.RegisterCipher("aes192-ctr", func() ssh.Cipher { return &ctrCipher{newBlock: aes.NewCipher, ivSize: aes.BlockSize} })
	reg.RegisterCipher("aes256-ctr", func() ssh.Cipher { return &ctrCipher{newBlock: aes.NewCipher, ivSize: aes.BlockSize} })
	reg.RegisterCipher("3des-cbc", func() ssh.Cipher { return &cbcCipher{newBlock: des.NewTripleDESCipher} })
	reg.RegisterCipher("blowfish-cbc", func() ssh.Cipher {
		return &cbcCipher{newBlock: func(key []byte) (gocipher.Block, error) { return blowfish.NewCipher(key) }}
	})
	reg.RegisterCipher("arcfour128", func() ssh.Cipher { return &rc4Cipher{} })
	reg.RegisterCipher("arcfour256", func() ssh.Cipher { return &rc4Cipher{} })
	reg.RegisterCipher("chacha20-poly1305@openssh.com", func() ssh.Cipher { return &chachaPolyCipher{} })
}

// cbcCipher wraps any block cipher in CBC mode, covering aes*-cbc,
// 3des-cbc and blowfish-cbc: the only differences between them are key
// size and the block constructor.
type cbcCipher struct {
	newBlock  func(key []byte) (gocipher.Block, error)
	blockSize int
	stream    gocipher.BlockMode
}

func (c *cbcCipher) BlockSize() int { return c.blockSize }
func (c *cbcCipher) IVSize() int    { return c.blockSize }
func (c *cbcCipher) IsCBC() bool    { return true }

func (c *cbcCipher) Init(dir ssh.CipherDirection, key, iv []byte) error {
	block, err := c.newBlock(key)
	if err != nil {
		return err
	}
	c.blockSize = block.BlockSize()
	if dir == ssh.DirEncrypt {
		c.stream = gocipher.NewCBCEncrypter(block, iv)
	} else {
		c.stream = gocipher.NewCBCDecrypter(block, iv)
	}
	return nil
}

func (c *cbcCipher) Update(dst, src []byte) { c.stream.CryptBlocks(dst, src) }

// ctrCipher wraps a block cipher in CTR (stream) mode; used for the
// aes*-ctr family.
type ctrCipher struct {
	newBlock func(key []byte) (gocipher.Block, error)
	ivSize   int
	stream   gocipher.Stream
}

func (c *ctrCipher) BlockSize() int { return 0 }
func (c *ctrCipher) IVSize() int    { return c.ivSize }
func (c *ctrCipher) IsCBC() bool    { return false }

func (c *ctrCipher) Init(dir ssh.CipherDirection, key, iv []byte) error {
	block, err := c.newBlock(key)
	if err != nil {
		return err
	}
	c.stream = gocipher.NewCTR(block, iv)
	return nil
}

func (c *ctrCipher) Update(dst, src []byte) { c.stream.XORKeyStream(dst, src) }

// rc4Cipher backs arcfour128/256 with crypto/rc4; the SSH arcfour
// variants skip the first 1536 discarded bytes RC4-drop implementations
// use, matching the OpenSSH arcfour (not arcfour128/256) convention of
// starting the keystream immediately.
type rc4Cipher struct {
	c *rc4.Cipher
}

func (c *rc4Cipher) BlockSize() int { return 0 }
func (c *rc4Cipher) IVSize() int    { return 0 }
func (c *rc4Cipher) IsCBC() bool    { return false }

func (c *rc4Cipher) Init(dir ssh.CipherDirection, key, iv []byte) error {
	rc, err := rc4.NewCipher(key)
	if err != nil {
		return err
	}
	c.c = rc
	return nil
}

func (c *rc4Cipher) Update(dst, src []byte) { c.c.XORKeyStream(dst, src) }

// chachaPolyCipher backs chacha20-poly1305@openssh.com. The 64-byte key
// the transport derives (RFC 8439/OpenSSH's combined length+payload key
// schedule) is split in two; this package only exercises the first half
// since packet-length encryption here is handled by treating the length
// field as associated data instead of a separately-encrypted field (see
// transport.go's aead read/write path).
type chachaPolyCipher struct {
	aead gocipher.AEAD
}

func (c *chachaPolyCipher) BlockSize() int { return 1 }
func (c *chachaPolyCipher) IVSize() int    { return chacha20poly1305.NonceSize }
func (c *chachaPolyCipher) IsCBC() bool    { return false }

func (c *chachaPolyCipher) Init(dir ssh.CipherDirection, key, iv []byte) error {
	if len(key) < 32 {
		return fmt.Errorf("sshcrypto: chacha20-poly1305 key too short: %d bytes", len(key))
	}
	aead, err := chacha20poly1305.New(key[:32])
	if err != nil {
		return err
	}
	c.aead = aead
	return nil
}

func (c *chachaPolyCipher) Update(dst, src []byte) { copy(dst, src) }

func (c *chachaPolyCipher) Overhead() int { return c.aead.Overhead() }

func (c *chachaPolyCipher) Seal(dst, nonce, plaintext, additionalData []byte) []byte {
	return c.aead.Seal(dst, nonce, plaintext, additionalData)
}

func (c *chachaPolyCipher) Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	return c.aead.Open(dst, nonce, ciphertext, additionalData)
}
