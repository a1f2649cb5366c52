// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sshcrypto

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/vngx/vngx-ssh/ssh"
)

// PEMDecryptor is an ssh.KeyDecryptor for the legacy OpenSSL PEM
// encryption header ("Proc-Type: 4,ENCRYPTED" / "DEK-Info: AES-128-CBC,
// ..."), the format ssh-keygen produced before openssh-key-v1 became the
// default. Callers with the newer bcrypt-kdf format need a different
// collaborator; this package does not implement one, since none of the
// retrieved example repos parse it.
type PEMDecryptor struct{}

// Decrypt parses a PEM block from encrypted and decrypts it with
// passphrase, returning PKCS8 DER suitable for Identity/Signer.
func (PEMDecryptor) Decrypt(encrypted []byte, passphrase string) ([]byte, error) {
	block, _ := pem.Decode(encrypted)
	if block == nil {
		return nil, fmt.Errorf("sshcrypto: no PEM block found")
	}
	if !x509.IsEncryptedPEMBlock(block) {
		return rewrapPEMKey(block)
	}
	der, err := x509.DecryptPEMBlock(block, []byte(passphrase))
	if err != nil {
		return nil, err
	}
	return rewrapDER(block.Type, der)
}

// rewrapPEMKey converts an unencrypted, type-tagged PEM block (as
// produced by ssh-keygen -m PEM) into PKCS8 DER.
func rewrapPEMKey(block *pem.Block) ([]byte, error) {
	return rewrapDER(block.Type, block.Bytes)
}

// rewrapDER normalises the legacy PKCS1/SEC1-tagged DER the classic PEM
// headers carry into the PKCS8 DER this package's Signature backends
// expect (see signature.go's SetPrivateKey).
func rewrapDER(pemType string, der []byte) ([]byte, error) {
	var key interface{}
	var err error
	switch pemType {
	case "RSA PRIVATE KEY":
		key, err = x509.ParsePKCS1PrivateKey(der)
	case "EC PRIVATE KEY":
		key, err = x509.ParseECPrivateKey(der)
	default:
		// Already PKCS8, or an algorithm this package doesn't special-case.
		if _, parseErr := x509.ParsePKCS8PrivateKey(der); parseErr == nil {
			return der, nil
		}
		return nil, fmt.Errorf("sshcrypto: unsupported PEM key type %q", pemType)
	}
	if err != nil {
		return nil, err
	}
	return x509.MarshalPKCS8PrivateKey(key)
}

var _ ssh.KeyDecryptor = PEMDecryptor{}

const (
	pbkdf2SaltSize  = 16
	pbkdf2KeySize   = 32
	pbkdf2MacSize   = sha256.Size
	pbkdf2Overhead  = pbkdf2SaltSize + aes.BlockSize + pbkdf2MacSize
)

// PBKDF2Decryptor is a self-contained KeyDecryptor for callers who do not
// need to interoperate with ssh-keygen's on-disk formats: it is not a
// wire or file standard, just a convenient way to protect a PKCS8 blob
// with a passphrase using golang.org/x/crypto/pbkdf2. Wrap encrypted
// private-key bytes with PBKDF2Encrypt to produce input Decrypt accepts.
type PBKDF2Decryptor struct {
	Iterations int
}

// PBKDF2Encrypt protects privateKeyBlob (PKCS8 DER) with passphrase,
// producing the format PBKDF2Decryptor.Decrypt reverses: salt || iv ||
// AES-256-CBC ciphertext || HMAC-SHA256(salt||iv||ciphertext).
func PBKDF2Encrypt(privateKeyBlob []byte, passphrase string, iterations int) ([]byte, error) {
	if iterations <= 0 {
		iterations = 200000
	}
	salt := make([]byte, pbkdf2SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	derived := pbkdf2.Key([]byte(passphrase), salt, iterations, pbkdf2KeySize+pbkdf2MacSize, sha256.New)
	encKey, macKey := derived[:pbkdf2KeySize], derived[pbkdf2KeySize:]

	padded := pkcs7Pad(privateKeyBlob, aes.BlockSize)
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	ciphertext := make([]byte, len(padded))
	gocipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	out := append(append(append([]byte{}, salt...), iv...), ciphertext...)
	mac := hmac.New(sha256.New, macKey)
	mac.Write(out)
	return append(out, mac.Sum(nil)...), nil
}

// Decrypt reverses PBKDF2Encrypt.
func (d PBKDF2Decryptor) Decrypt(encrypted []byte, passphrase string) ([]byte, error) {
	if len(encrypted) < pbkdf2Overhead {
		return nil, fmt.Errorf("sshcrypto: encrypted identity too short")
	}
	salt := encrypted[:pbkdf2SaltSize]
	iv := encrypted[pbkdf2SaltSize : pbkdf2SaltSize+aes.BlockSize]
	body := encrypted[:len(encrypted)-pbkdf2MacSize]
	ciphertext := encrypted[pbkdf2SaltSize+aes.BlockSize : len(encrypted)-pbkdf2MacSize]
	wantMAC := encrypted[len(encrypted)-pbkdf2MacSize:]

	iterations := d.Iterations
	if iterations <= 0 {
		iterations = 200000
	}
	derived := pbkdf2.Key([]byte(passphrase), salt, iterations, pbkdf2KeySize+pbkdf2MacSize, sha256.New)
	encKey, macKey := derived[:pbkdf2KeySize], derived[pbkdf2KeySize:]

	mac := hmac.New(sha256.New, macKey)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), wantMAC) {
		return nil, fmt.Errorf("sshcrypto: wrong passphrase or corrupt identity")
	}

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("sshcrypto: malformed ciphertext")
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(ciphertext))
	gocipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)
	return pkcs7Unpad(plain)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := append(append([]byte{}, data...), make([]byte, padLen)...)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("sshcrypto: empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("sshcrypto: invalid padding")
	}
	return data[:len(data)-padLen], nil
}

var _ ssh.KeyDecryptor = PBKDF2Decryptor{}
