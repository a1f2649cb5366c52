// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

// PublicKey represents a public key in SSH wire form, backed by a
// Signature collaborator obtained from the Registry for verification —
// the core never imports crypto/rsa, crypto/dsa, crypto/ecdsa or
// crypto/ed25519 directly to check a signature. kex.go does import
// crypto/elliptic, math/big and x/crypto/curve25519 because the DH/ECDH
// math itself is part of the KEX component, not a pluggable backend
// (spec §4.3); only the five contracts named in spec §6 are
// registry-mediated.
type PublicKey interface {
	// PublicKeyAlgo is the wire algorithm name used when this key (or
	// certificate) is presented as a host key or publickey auth blob.
	PublicKeyAlgo() string
	// PrivateKeyAlgo is the signing algorithm name: equal to
	// PublicKeyAlgo for ordinary keys, but differs for certificates
	// (pubAlgoToPrivAlgo).
	PrivateKeyAlgo() string
	// Marshal serialises the key in SSH wire form (RFC 4253 6.6: the
	// algorithm-specific blob, not including the leading algorithm name).
	Marshal() []byte
	// Verify checks sig against data using the key material carried by
	// this PublicKey, via the registry's Signature backend for
	// PrivateKeyAlgo().
	Verify(reg *Registry, data, sig []byte) bool
}

// MarshalPublicKey serialises a supported key or certificate for use by
// the SSH wire protocol (RFC 4253 6.6): the algorithm name, length
// prefixed, followed by the key blob. Useful for comparison against a
// HostKeyVerifier's expectations or for writing an authorized_keys-style
// line.
func MarshalPublicKey(key PublicKey) []byte {
	algoname := key.PublicKeyAlgo()
	blob := key.Marshal()

	length := stringLength(len(algoname))
	length += len(blob)
	ret := make([]byte, length)
	r := marshalString(ret, []byte(algoname))
	copy(r, blob)
	return ret
}

// rawPublicKey is the common representation for the non-certificate key
// types: an algorithm name plus its RFC 4253 6.6 key-specific blob
// (already-marshalled fields such as RSA's e/n or ECDSA's curve/point).
// Signature verification is delegated entirely to the Registry, keeping
// this package ignorant of any particular asymmetric primitive.
type rawPublicKey struct {
	algo string
	blob []byte
}

func (k *rawPublicKey) PublicKeyAlgo() string  { return k.algo }
func (k *rawPublicKey) PrivateKeyAlgo() string { return k.algo }
func (k *rawPublicKey) Marshal() []byte        { return k.blob }

func (k *rawPublicKey) Verify(reg *Registry, data, sig []byte) bool {
	backend, err := reg.signature(k.algo)
	if err != nil {
		return false
	}
	if err := backend.SetPublicKey(k.blob); err != nil {
		return false
	}
	return backend.Verify(data, sig)
}

// ParsePublicKey parses a key blob as produced by MarshalPublicKey: an
// algorithm name followed by the algorithm-specific key data. Certificate
// algorithm names dispatch to parseOpenSSHCertV01; everything else becomes
// a rawPublicKey whose Verify goes through the Registry.
func ParsePublicKey(in []byte) (out PublicKey, ok bool) {
	algo, rest, ok := parseString(in)
	if !ok {
		return nil, false
	}
	return parsePubKeyBody(string(algo), rest)
}

// parsePubKey parses a key blob like ParsePublicKey, in the three-result
// shape of the teacher's certs.go call convention
// (`cert.SignatureKey, _, ok = parsePubKey(sigKey)`). The rest result is
// always nil: trailing bytes after the key body are not reported.
func parsePubKey(in []byte) (out PublicKey, rest []byte, ok bool) {
	algo, rest, ok := parseString(in)
	if !ok {
		return nil, nil, false
	}
	out, ok = parsePubKeyBody(string(algo), rest)
	return out, nil, ok
}

func parsePubKeyBody(algo string, rest []byte) (PublicKey, bool) {
	switch algo {
	case CertAlgoRSAv01, CertAlgoDSAv01, CertAlgoECDSA256v01, CertAlgoECDSA384v01, CertAlgoECDSA521v01:
		cert, _, ok := parseOpenSSHCertV01(rest, pubAlgoToPrivAlgo(algo))
		return cert, ok
	case hostAlgoRSA, hostAlgoDSA, hostAlgoED25519, keyAlgoECDSA256, keyAlgoECDSA384, keyAlgoECDSA521:
		return &rawPublicKey{algo: algo, blob: rest}, true
	default:
		// Unknown algorithm names are still representable: Verify will
		// fail via NoCommonAlgorithm once a signature is attempted,
		// which is the correct failure mode for an unsupported host
		// key algorithm rather than a parse error.
		return &rawPublicKey{algo: algo, blob: rest}, true
	}
}

// signature is the RFC 4253 6.6 on-wire signature blob: algorithm name
// plus opaque signature bytes.
type signature struct {
	Format string
	Blob   []byte
}

func parseSignatureBody(in []byte) (out *signature, rest []byte, ok bool) {
	var format []byte
	if format, in, ok = parseString(in); !ok {
		return
	}
	out = &signature{Format: string(format)}
	if out.Blob, in, ok = parseString(in); !ok {
		return
	}
	return out, in, ok
}

func parseSignature(in []byte) (out *signature, rest []byte, ok bool) {
	var sigBytes []byte
	if sigBytes, rest, ok = parseString(in); !ok {
		return
	}
	out, _, ok = parseSignatureBody(sigBytes)
	return out, rest, ok
}

func signatureLength(sig *signature) int {
	length := 4
	length += stringLength(len(sig.Format))
	length += stringLength(len(sig.Blob))
	return length
}

func marshalSignature(to []byte, sig *signature) []byte {
	length := uint32(signatureLength(sig) - 4)
	to = marshalUint32(to, length)
	to = marshalString(to, []byte(sig.Format))
	return marshalString(to, sig.Blob)
}

// verifyHostKeySignature verifies the host key signature obtained during
// KEX: hostKeyBytes and signature are both RFC 4253 6.6 blobs (host key
// blob is algorithm-prefixed via ParsePublicKey; the signature via
// parseSignatureBody).
func verifyHostKeySignature(reg *Registry, hostKeyAlgo string, hostKeyBytes, data, sig []byte) (PublicKey, error) {
	hostKey, ok := ParsePublicKey(hostKeyBytes)
	if !ok {
		return nil, ProtocolError{Message: "could not parse host key"}
	}
	parsedSig, rest, ok := parseSignatureBody(sig)
	if !ok || len(rest) > 0 {
		return nil, ProtocolError{Message: "signature parse error"}
	}
	if parsedSig.Format != hostKeyAlgo && parsedSig.Format != pubAlgoToPrivAlgo(hostKeyAlgo) {
		return nil, ProtocolError{Message: "unexpected signature type " + parsedSig.Format}
	}
	if !hostKey.Verify(reg, data, parsedSig.Blob) {
		return nil, ProtocolError{Message: "host key signature error"}
	}
	return hostKey, nil
}
