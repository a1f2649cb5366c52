// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
	"math/big"

	"golang.org/x/crypto/curve25519"
)

// This file implements the key-exchange component of spec §4.3. The DH,
// ECDH and curve25519 math stays directly against crypto/elliptic,
// math/big and x/crypto/curve25519, matching the teacher's own precedent
// of reaching straight for these packages in its client.go
// kexECDH/kexDH — KEX is core protocol logic, not one of the five
// pluggable contracts spec §6 names.

// kexResult is the output of a completed key exchange: the shared secret
// H and K that feed deriveKeys, plus the host key material presented so
// the caller can run it through HostKeyVerifier.
type kexResult struct {
	H, K      []byte
	HostKey   []byte
	Signature []byte
	SessionID []byte
}

// kexAlgorithm is implemented by each concrete key-exchange family.
type kexAlgorithm interface {
	// Client runs the client side of the exchange over rw, returning the
	// negotiated secret and the server's proof. magics carries the
	// version strings and KEXINIT payloads that seed the exchange hash.
	Client(rw packetReadWriter, randSource io.Reader, magics *handshakeMagics) (*kexResult, error)
}

// packetReadWriter is the minimal surface kexAlgorithm needs from the
// transport: send a marshalled message, read back the next packet.
type packetReadWriter interface {
	writePacket(packet []byte) error
	readPacket() ([]byte, error)
}

// --- Fixed-group Diffie-Hellman (RFC 4253 8.1) ---

type dhGroupKEX struct {
	group  *dhGroup
	hashFn func() crypto.Hash
}

func (kex *dhGroupKEX) hash() crypto.Hash {
	return kex.hashFn()
}

func (kex *dhGroupKEX) Client(rw packetReadWriter, randSource io.Reader, magics *handshakeMagics) (*kexResult, error) {
	x, err := rand.Int(randSource, kex.group.p)
	if err != nil {
		return nil, err
	}
	X := new(big.Int).Exp(kex.group.g, x, kex.group.p)

	if err := rw.writePacket(marshal(msgKexDHInit, kexDHInitMsg{X: X})); err != nil {
		return nil, err
	}

	packet, err := rw.readPacket()
	if err != nil {
		return nil, err
	}
	var reply kexDHReplyMsg
	if err := unmarshal(&reply, packet, msgKexDHReply); err != nil {
		return nil, err
	}

	kInt, err := kex.group.diffieHellman(reply.Y, x)
	if err != nil {
		return nil, err
	}

	h := kex.hash().New()
	magics.write(h)
	writeString(h, reply.HostKey)
	writeInt(h, X)
	writeInt(h, reply.Y)
	writeInt(h, kInt)

	return &kexResult{
		H:         h.Sum(nil),
		K:         mpIntBytes(kInt),
		HostKey:   reply.HostKey,
		Signature: reply.Signature,
	}, nil
}

// --- Group-exchange Diffie-Hellman (RFC 4419) ---

const (
	dhGroupExchangeMinBits = 1024
	dhGroupExchangePrefBits = 2048
	dhGroupExchangeMaxBits = 8192
)

type dhGroupExchangeKEX struct {
	hashFn func() crypto.Hash
}

func (kex *dhGroupExchangeKEX) Client(rw packetReadWriter, randSource io.Reader, magics *handshakeMagics) (*kexResult, error) {
	request := kexDHGexRequestMsg{
		Min: dhGroupExchangeMinBits,
		N:   dhGroupExchangePrefBits,
		Max: dhGroupExchangeMaxBits,
	}
	if err := rw.writePacket(marshal(msgKexDHGexRequest, request)); err != nil {
		return nil, err
	}

	packet, err := rw.readPacket()
	if err != nil {
		return nil, err
	}
	var group kexDHGexGroupMsg
	if err := unmarshal(&group, packet, msgKexDHGexGroup); err != nil {
		return nil, err
	}
	if group.P.Sign() <= 0 || group.G.Sign() <= 0 {
		return nil, ProtocolError{Message: "malformed DH group-exchange group"}
	}

	dh := &dhGroup{g: group.G, p: group.P}
	x, err := rand.Int(randSource, dh.p)
	if err != nil {
		return nil, err
	}
	X := new(big.Int).Exp(dh.g, x, dh.p)

	if err := rw.writePacket(marshal(msgKexDHGexInit, kexDHGexInitMsg{X: X})); err != nil {
		return nil, err
	}

	packet, err = rw.readPacket()
	if err != nil {
		return nil, err
	}
	var reply kexDHGexReplyMsg
	if err := unmarshal(&reply, packet, msgKexDHGexReply); err != nil {
		return nil, err
	}

	kInt, err := dh.diffieHellman(reply.Y, x)
	if err != nil {
		return nil, err
	}

	h := kex.hashFn().New()
	magics.write(h)
	writeString(h, reply.HostKey)
	binary := make([]byte, 12)
	marshalUint32(binary[0:4], request.Min)
	marshalUint32(binary[4:8], request.N)
	marshalUint32(binary[8:12], request.Max)
	h.Write(binary)
	writeInt(h, dh.p)
	writeInt(h, dh.g)
	writeInt(h, X)
	writeInt(h, reply.Y)
	writeInt(h, kInt)

	return &kexResult{
		H:         h.Sum(nil),
		K:         mpIntBytes(kInt),
		HostKey:   reply.HostKey,
		Signature: reply.Signature,
	}, nil
}

// --- Elliptic-curve Diffie-Hellman (RFC 5656) ---

type ecdhKEX struct {
	curve elliptic.Curve
}

func (kex *ecdhKEX) Client(rw packetReadWriter, randSource io.Reader, magics *handshakeMagics) (*kexResult, error) {
	priv, x, y, err := elliptic.GenerateKey(kex.curve, randSource)
	if err != nil {
		return nil, err
	}
	clientPub := elliptic.Marshal(kex.curve, x, y)

	if err := rw.writePacket(marshal(msgKexECDHInit, kexECDHInitMsg{ClientPubKey: clientPub})); err != nil {
		return nil, err
	}

	packet, err := rw.readPacket()
	if err != nil {
		return nil, err
	}
	var reply kexECDHReplyMsg
	if err := unmarshal(&reply, packet, msgKexECDHReply); err != nil {
		return nil, err
	}

	serverX, serverY := elliptic.Unmarshal(kex.curve, reply.EphemeralPubKey)
	if serverX == nil {
		return nil, ProtocolError{Message: "invalid server ephemeral public key"}
	}
	if !kex.curve.IsOnCurve(serverX, serverY) {
		return nil, ProtocolError{Message: "server ephemeral public key not on curve"}
	}

	sX, _ := kex.curve.ScalarMult(serverX, serverY, priv)
	secret := sX

	h := ecdhHashFor(kex.curve).New()
	magics.write(h)
	writeString(h, reply.HostKey)
	writeString(h, clientPub)
	writeString(h, reply.EphemeralPubKey)
	writeInt(h, secret)

	return &kexResult{
		H:         h.Sum(nil),
		K:         mpIntBytes(secret),
		HostKey:   reply.HostKey,
		Signature: reply.Signature,
	}, nil
}

func ecdhHashFor(curve elliptic.Curve) crypto.Hash {
	switch curve.Params().BitSize {
	case 256:
		return crypto.SHA256
	case 384:
		return crypto.SHA384
	default:
		return crypto.SHA512
	}
}

// --- curve25519-sha256[@libssh.org] (RFC 8731 / legacy libssh name) ---

type curve25519KEX struct{}

func (kex *curve25519KEX) Client(rw packetReadWriter, randSource io.Reader, magics *handshakeMagics) (*kexResult, error) {
	var privKey [32]byte
	if _, err := io.ReadFull(randSource, privKey[:]); err != nil {
		return nil, err
	}
	var pubKey [32]byte
	curve25519.ScalarBaseMult(&pubKey, &privKey)

	if err := rw.writePacket(marshal(msgKexECDHInit, kexECDHInitMsg{ClientPubKey: pubKey[:]})); err != nil {
		return nil, err
	}

	packet, err := rw.readPacket()
	if err != nil {
		return nil, err
	}
	var reply kexECDHReplyMsg
	if err := unmarshal(&reply, packet, msgKexECDHReply); err != nil {
		return nil, err
	}
	if len(reply.EphemeralPubKey) != 32 {
		return nil, ProtocolError{Message: "invalid curve25519 server public key length"}
	}

	var serverPub, secret [32]byte
	copy(serverPub[:], reply.EphemeralPubKey)
	curve25519.ScalarMult(&secret, &privKey, &serverPub)
	if isAllZero(secret[:]) {
		return nil, ProtocolError{Message: "curve25519 all-zero shared secret"}
	}

	h := sha256.New()
	magics.write(h)
	writeString(h, reply.HostKey)
	writeString(h, pubKey[:])
	writeString(h, reply.EphemeralPubKey)
	writeInt(h, new(big.Int).SetBytes(secret[:]))

	return &kexResult{
		H:         h.Sum(nil),
		K:         mpIntBytes(new(big.Int).SetBytes(secret[:])),
		HostKey:   reply.HostKey,
		Signature: reply.Signature,
	}, nil
}

func isAllZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// newKexAlgorithm constructs the kexAlgorithm implementation for a
// negotiated KEXINIT algorithm name.
func newKexAlgorithm(name string) (kexAlgorithm, error) {
	switch name {
	case kexAlgoDH1SHA1:
		initDHGroup1Once()
		return &dhGroupKEX{group: dhGroup1, hashFn: func() crypto.Hash { return crypto.SHA1 }}, nil
	case kexAlgoDH14SHA1:
		initDHGroup14Once()
		return &dhGroupKEX{group: dhGroup14, hashFn: func() crypto.Hash { return crypto.SHA1 }}, nil
	case kexAlgoDHGEXSHA1:
		return &dhGroupExchangeKEX{hashFn: func() crypto.Hash { return crypto.SHA1 }}, nil
	case kexAlgoDHGEXSHA256:
		return &dhGroupExchangeKEX{hashFn: func() crypto.Hash { return crypto.SHA256 }}, nil
	case kexAlgoECDH256:
		return &ecdhKEX{curve: elliptic.P256()}, nil
	case kexAlgoECDH384:
		return &ecdhKEX{curve: elliptic.P384()}, nil
	case kexAlgoECDH521:
		return &ecdhKEX{curve: elliptic.P521()}, nil
	case kexAlgoCurve25519, kexAlgoCurve25519LC:
		return &curve25519KEX{}, nil
	}
	return nil, NoCommonAlgorithm{Slot: "kex_algorithms:" + name}
}

func initDHGroup1Once() {
	dhGroup1Once.Do(initDHGroup1)
}

func initDHGroup14Once() {
	dhGroup14Once.Do(initDHGroup14)
}

// write hashes the four handshake transcript items in RFC 4253 section 8
// order: V_C, V_S, I_C, I_S.
func (m *handshakeMagics) write(w io.Writer) {
	writeString(w, m.clientVersion)
	writeString(w, m.serverVersion)
	writeString(w, m.clientKexInit)
	writeString(w, m.serverKexInit)
}

// mpIntBytes renders n as the mpint encoding RFC 4253 section 8's "K"
// shared secret uses when folded into key derivation: writeInt's
// sign-aware form, stripped of its length prefix since deriveKeys
// re-adds framing itself via Buffer.PutMPInt semantics applied inline.
func mpIntBytes(n *big.Int) []byte {
	var buf bytesBuffer
	writeInt(&buf, n)
	return buf.Bytes()[4:]
}

// bytesBuffer is a minimal io.Writer collecting bytes, used where pulling
// in bytes.Buffer for a single call site would be the only use of that
// import in this file.
type bytesBuffer struct {
	b []byte
}

func (w *bytesBuffer) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

func (w *bytesBuffer) Bytes() []byte { return w.b }

// --- key derivation (RFC 4253 section 7.2) ---

// kexKeys holds the six keys/IVs derived from a completed key exchange.
type kexKeys struct {
	IVClientServer, IVServerClient         []byte
	KeyClientServer, KeyServerClient       []byte
	MACKeyClientServer, MACKeyServerClient []byte
}

// deriveKeys expands H/K/sessionID into the six keys per RFC 4253 7.2,
// sizing each to the cipher/MAC widths the negotiated algorithmProposal
// requires.
func deriveKeys(hashFn func() crypto.Hash, K, H, sessionID []byte, ivLen, keyLen, macKeyLen int) *kexKeys {
	generate := func(id byte, size int) []byte {
		var digest []byte
		h := hashFn().New()
		writeInt(h, new(big.Int).SetBytes(K))
		h.Write(H)
		h.Write([]byte{id})
		h.Write(sessionID)
		digest = h.Sum(nil)
		for len(digest) < size {
			h.Reset()
			writeInt(h, new(big.Int).SetBytes(K))
			h.Write(H)
			h.Write(digest)
			digest = h.Sum(digest)
		}
		return digest[:size]
	}
	return &kexKeys{
		IVClientServer:      generate('A', ivLen),
		IVServerClient:      generate('B', ivLen),
		KeyClientServer:     generate('C', keyLen),
		KeyServerClient:     generate('D', keyLen),
		MACKeyClientServer:  generate('E', macKeyLen),
		MACKeyServerClient:  generate('F', macKeyLen),
	}
}

var errNoSessionID = errors.New("ssh: no session identifier established")
