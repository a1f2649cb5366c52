// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto"
	"math/big"
	"sync"

	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
)

// These are string constants in the SSH protocol.
const (
	kexAlgoDH1SHA1      = "diffie-hellman-group1-sha1"
	kexAlgoDH14SHA1     = "diffie-hellman-group14-sha1"
	kexAlgoDHGEXSHA1    = "diffie-hellman-group-exchange-sha1"
	kexAlgoDHGEXSHA256  = "diffie-hellman-group-exchange-sha256"
	kexAlgoECDH256      = "ecdh-sha2-nistp256"
	kexAlgoECDH384      = "ecdh-sha2-nistp384"
	kexAlgoECDH521      = "ecdh-sha2-nistp521"
	kexAlgoCurve25519   = "curve25519-sha256"
	kexAlgoCurve25519LC = "curve25519-sha256@libssh.org"

	hostAlgoRSA       = "ssh-rsa"
	hostAlgoRSASHA256 = "rsa-sha2-256"
	hostAlgoRSASHA512 = "rsa-sha2-512"
	hostAlgoDSA       = "ssh-dss"
	hostAlgoED25519   = "ssh-ed25519"

	keyAlgoECDSA256 = "ecdsa-sha2-nistp256"
	keyAlgoECDSA384 = "ecdsa-sha2-nistp384"
	keyAlgoECDSA521 = "ecdsa-sha2-nistp521"

	compressionNone = "none"

	serviceUserAuth = "ssh-userauth"
	serviceSSH      = "ssh-connection"
)

// defaultKeyExchangeOrder is the client's preference order for KEXINIT.
// curve25519 leads because it is the algorithm most servers now prefer;
// the fixed/group-exchange Diffie-Hellman families follow for
// interoperability with older peers, as does plain ECDH.
var defaultKeyExchangeOrder = []string{
	kexAlgoCurve25519, kexAlgoCurve25519LC,
	kexAlgoECDH256, kexAlgoECDH384, kexAlgoECDH521,
	kexAlgoDHGEXSHA256, kexAlgoDHGEXSHA1,
	kexAlgoDH14SHA1, kexAlgoDH1SHA1,
}

var supportedKexAlgos = defaultKeyExchangeOrder

var supportedHostKeyAlgos = []string{
	hostAlgoED25519,
	hostAlgoRSASHA256, hostAlgoRSASHA512, hostAlgoRSA,
	keyAlgoECDSA256, keyAlgoECDSA384, keyAlgoECDSA521,
	CertAlgoECDSA256v01, CertAlgoECDSA384v01, CertAlgoECDSA521v01,
	hostAlgoDSA, CertAlgoRSAv01, CertAlgoDSAv01,
}

var supportedCompressions = []string{compressionNone, "zlib@openssh.com", "zlib"}

// hashFuncs keeps the mapping of supported algorithms to their respective
// hashes needed for signature verification. This realizes the spec's Hash
// contract directly against the standard library's crypto.Hash registry
// (itself already a name/algorithm-id -> hash.Hash factory), rather than
// reinventing one: crypto.Hash satisfies "block size, update, digest" via
// the hash.Hash it constructs.
var hashFuncs = map[string]crypto.Hash{
	hostAlgoRSA:         crypto.SHA1,
	hostAlgoRSASHA256:   crypto.SHA256,
	hostAlgoRSASHA512:   crypto.SHA512,
	hostAlgoDSA:         crypto.SHA1,
	hostAlgoED25519:     crypto.SHA512,
	keyAlgoECDSA256:     crypto.SHA256,
	keyAlgoECDSA384:     crypto.SHA384,
	keyAlgoECDSA521:     crypto.SHA512,
	CertAlgoRSAv01:      crypto.SHA1,
	CertAlgoDSAv01:      crypto.SHA1,
	CertAlgoECDSA256v01: crypto.SHA256,
	CertAlgoECDSA384v01: crypto.SHA384,
	CertAlgoECDSA521v01: crypto.SHA512,
}

// dhGroup is a multiplicative group suitable for implementing Diffie-Hellman
// key agreement.
type dhGroup struct {
	g, p *big.Int
}

func (group *dhGroup) diffieHellman(theirPublic, myPrivate *big.Int) (*big.Int, error) {
	if theirPublic.Sign() <= 0 || theirPublic.Cmp(group.p) >= 0 {
		return nil, ProtocolError{Message: "DH parameter out of bounds"}
	}
	return new(big.Int).Exp(theirPublic, myPrivate, group.p), nil
}

// dhGroup1 is the group called diffie-hellman-group1-sha1 in RFC 4253 and
// Oakley Group 2 in RFC 2409.
var dhGroup1 *dhGroup
var dhGroup1Once sync.Once

func initDHGroup1() {
	p, _ := new(big.Int).SetString("FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE65381FFFFFFFFFFFFFFFF", 16)
	dhGroup1 = &dhGroup{g: big.NewInt(2), p: p}
}

// dhGroup14 is the group called diffie-hellman-group14-sha1 in RFC 4253 and
// Oakley Group 14 in RFC 3526.
var dhGroup14 *dhGroup
var dhGroup14Once sync.Once

func initDHGroup14() {
	p, _ := new(big.Int).SetString("FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF6955817183995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFFFFFFFFFF", 16)
	dhGroup14 = &dhGroup{g: big.NewInt(2), p: p}
}

// handshakeMagics holds the four transcript items (version strings and
// KEXINIT payloads) that feed every KEX hash, per RFC 4253 section 8.
type handshakeMagics struct {
	clientVersion, serverVersion []byte
	clientKexInit, serverKexInit []byte
}

func findCommonAlgorithm(clientAlgos, serverAlgos []string) (commonAlgo string, ok bool) {
	for _, clientAlgo := range clientAlgos {
		for _, serverAlgo := range serverAlgos {
			if clientAlgo == serverAlgo {
				return clientAlgo, true
			}
		}
	}
	return
}

func findCommonCipher(reg *Registry, clientCiphers, serverCiphers []string) (commonCipher string, ok bool) {
	for _, clientCipher := range clientCiphers {
		for _, serverCipher := range serverCiphers {
			// reject the cipher if the registry has no factory for it
			if clientCipher == serverCipher && reg.hasCipher(clientCipher) {
				return clientCipher, true
			}
		}
	}
	return
}

// algorithmProposal is the result of intersecting a client KEXINIT against
// a server KEXINIT, one winner per negotiated slot.
type algorithmProposal struct {
	kex, hostKey                       string
	cipherClientServer, cipherServerClient string
	macClientServer, macServerClient       string
	compressClientServer, compressServerClient string
}

func findAgreedAlgorithms(reg *Registry, clientKexInit, serverKexInit *kexInitMsg) (*algorithmProposal, error) {
	p := &algorithmProposal{}
	var ok bool

	if p.kex, ok = findCommonAlgorithm(clientKexInit.KexAlgos, serverKexInit.KexAlgos); !ok {
		return nil, NoCommonAlgorithm{Slot: "kex_algorithms"}
	}
	if p.hostKey, ok = findCommonAlgorithm(clientKexInit.ServerHostKeyAlgos, serverKexInit.ServerHostKeyAlgos); !ok {
		return nil, NoCommonAlgorithm{Slot: "server_host_key"}
	}
	if p.cipherClientServer, ok = findCommonCipher(reg, clientKexInit.CiphersClientServer, serverKexInit.CiphersClientServer); !ok {
		return nil, NoCommonAlgorithm{Slot: "cipher_c2s"}
	}
	if p.cipherServerClient, ok = findCommonCipher(reg, clientKexInit.CiphersServerClient, serverKexInit.CiphersServerClient); !ok {
		return nil, NoCommonAlgorithm{Slot: "cipher_s2c"}
	}
	if p.macClientServer, ok = findCommonAlgorithm(clientKexInit.MACsClientServer, serverKexInit.MACsClientServer); !ok {
		return nil, NoCommonAlgorithm{Slot: "mac_c2s"}
	}
	if p.macServerClient, ok = findCommonAlgorithm(clientKexInit.MACsServerClient, serverKexInit.MACsServerClient); !ok {
		return nil, NoCommonAlgorithm{Slot: "mac_s2c"}
	}
	if p.compressClientServer, ok = findCommonAlgorithm(clientKexInit.CompressionClientServer, serverKexInit.CompressionClientServer); !ok {
		return nil, NoCommonAlgorithm{Slot: "compression_c2s"}
	}
	if p.compressServerClient, ok = findCommonAlgorithm(clientKexInit.CompressionServerClient, serverKexInit.CompressionServerClient); !ok {
		return nil, NoCommonAlgorithm{Slot: "compression_s2c"}
	}
	return p, nil
}

// serializeSignature serialises a signed blob according to RFC 4254 6.6.
// name should be a key type name, rather than a cert type name.
func serializeSignature(name string, sig []byte) []byte {
	length := stringLength(len(name))
	length += stringLength(len(sig))

	ret := make([]byte, length)
	r := marshalString(ret, []byte(name))
	marshalString(r, sig)
	return ret
}

// pubAlgoToPrivAlgo returns the private key algorithm format name that
// corresponds to a given public key algorithm format name. For most public
// keys the private key algorithm name is the same; OpenSSH certificates are
// the exception this accounts for.
func pubAlgoToPrivAlgo(pubAlgo string) string {
	switch pubAlgo {
	case CertAlgoRSAv01:
		return hostAlgoRSA
	case CertAlgoDSAv01:
		return hostAlgoDSA
	case CertAlgoECDSA256v01:
		return keyAlgoECDSA256
	case CertAlgoECDSA384v01:
		return keyAlgoECDSA384
	case CertAlgoECDSA521v01:
		return keyAlgoECDSA521
	}
	return pubAlgo
}

// buildDataSignedForAuth returns the data that is signed in order to prove
// possession of a private key. See RFC 4252, section 7.
func buildDataSignedForAuth(sessionID []byte, req userAuthRequestMsg, algo, pubKey []byte) []byte {
	user := []byte(req.User)
	service := []byte(req.Service)
	method := []byte(req.Method)

	length := stringLength(len(sessionID))
	length++
	length += stringLength(len(user))
	length += stringLength(len(service))
	length += stringLength(len(method))
	length++
	length += stringLength(len(algo))
	length += stringLength(len(pubKey))

	ret := make([]byte, length)
	r := marshalString(ret, sessionID)
	r[0] = msgUserAuthRequest
	r = r[1:]
	r = marshalString(r, user)
	r = marshalString(r, service)
	r = marshalString(r, method)
	r[0] = 1
	r = r[1:]
	r = marshalString(r, algo)
	marshalString(r, pubKey)
	return ret
}

// safeString sanitises s according to RFC 4251, section 9.2, and spec §7:
// every byte outside [32,126] union {tab, CR, LF} is replaced (with the
// Unicode replacement character in its UTF-8 form, widening the output).
func safeString(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == 0x09 || c == 0x0d || c == 0x0a:
			out = append(out, c)
		case c >= 0x20 && c <= 0x7e:
			out = append(out, c)
		default:
			out = append(out, "�"...)
		}
	}
	return string(out)
}

// newCond hides the fact that there is no usable zero value for sync.Cond.
func newCond() *sync.Cond { return sync.NewCond(new(sync.Mutex)) }

// window represents the buffer available to a sender wishing to write to a
// channel: either the sender's view of the remote window, or the receiver's
// local window depending on which side constructs it.
type window struct {
	*sync.Cond
	win    uint32 // RFC 4254 5.2: the window size can grow to 2^32-1
	closed bool
}

// add adds win to the amount of window available for consumers.
func (w *window) add(win uint32) bool {
	if win == 0 {
		return true
	}
	w.L.Lock()
	if w.win+win < win {
		w.L.Unlock()
		return false
	}
	w.win += win
	// Multiple goroutines reserving window space concurrently is unusual
	// but not forbidden; broadcast wakes every waiter.
	w.Broadcast()
	w.L.Unlock()
	return true
}

// reserve reserves win from the available window capacity. If no capacity
// remains, reserve blocks until WINDOW_ADJUST or close. It may return less
// than requested, and returns ok=false if the window was closed first.
func (w *window) reserve(win uint32) (uint32, bool) {
	w.L.Lock()
	for w.win == 0 && !w.closed {
		w.Wait()
	}
	if w.closed {
		w.L.Unlock()
		return 0, false
	}
	if w.win < win {
		win = w.win
	}
	w.win -= win
	w.L.Unlock()
	return win, true
}

// shut marks the window closed and wakes every waiter; used on disconnect.
func (w *window) shut() {
	w.L.Lock()
	w.closed = true
	w.Broadcast()
	w.L.Unlock()
}
