// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"sync"
)

// This file implements the binary packet protocol of spec §4.1/§4.2: version
// exchange, packet framing (buffer.go's Buffer), per-direction cipher/MAC/
// compression state, and rekeying. Grounded on the teacher's transport
// split between a reader/writer pair (referenced but not present in the
// retrieved client.go slice) generalized to route cipher/MAC/compression
// through the Registry instead of a fixed switch over concrete types.

const (
	// rekeyThresholdBytes forces a rekey after this many bytes have been
	// sent or received in one direction, per RFC 4253 section 9's 1 GiB
	// guidance (spec §4.3 rekey trigger).
	rekeyThresholdBytes = 1 << 30
	// rekeyThresholdPackets forces a rekey after this many packets, the
	// other RFC 4253 section 9 trigger (2^31 chosen conservatively below
	// the RFC's 2^32 ceiling).
	rekeyThresholdPackets = 1 << 31

	maxVersionLineLen  = 255
	maxVersionLines    = 50
	packetLengthFieldLen = 4
)

// direction distinguishes the client-to-server and server-to-client packet
// streams, each with independent cipher/MAC/compression/sequence state.
type direction int

const (
	dirClientToServer direction = iota
	dirServerToClient
)

// directionState is the live cipher/MAC/compression state for one
// direction of the connection, rebuilt on every NEWKEYS.
type directionState struct {
	cipher     Cipher
	aead       AEADCipher // non-nil iff cipher also implements AEADCipher
	mac        Mac
	compress   Compression
	seqNum     uint32
	bytesSince uint64
	pktSince   uint64
}

func (d *directionState) reset(cipher Cipher, mac Mac, compress Compression) {
	d.cipher = cipher
	d.aead, _ = cipher.(AEADCipher)
	d.mac = mac
	d.compress = compress
	d.bytesSince = 0
	d.pktSince = 0
	// seqNum persists across rekeys per RFC 4253 section 9.
}

func (d *directionState) needsRekey() bool {
	return d.bytesSince >= rekeyThresholdBytes || d.pktSince >= rekeyThresholdPackets
}

// transport owns the underlying net.Conn and both directions' framing
// state. It implements packetReadWriter so kexAlgorithm implementations
// can drive it directly during the handshake.
type transport struct {
	conn   net.Conn
	reader *bufio.Reader

	writeMu sync.Mutex
	readSt  directionState
	writeSt directionState

	rand io.Reader
	reg  *Registry

	readBuf  *Buffer
	writeBuf *Buffer

	sessionID []byte

	rekeyRequested chan struct{}
}

func newTransport(conn net.Conn, rand io.Reader, reg *Registry) *transport {
	t := &transport{
		conn:           conn,
		reader:         bufio.NewReaderSize(conn, 4096),
		rand:           rand,
		reg:            reg,
		readBuf:        NewBuffer(),
		writeBuf:       NewBuffer(),
		rekeyRequested: make(chan struct{}, 1),
	}
	t.readSt.reset(noneCipher{}, nil, noopCompression{})
	t.writeSt.reset(noneCipher{}, nil, noopCompression{})
	return t
}

func (t *transport) Close() error { return t.conn.Close() }

func (t *transport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }
func (t *transport) LocalAddr() net.Addr  { return t.conn.LocalAddr() }

// writeVersion sends the identification line (spec §4.2) and returns it
// without the trailing CR LF, for use as the KEX transcript's V_C/V_S.
func (t *transport) writeVersion(ident []byte) ([]byte, error) {
	line := append(append([]byte{}, ident...), '\r', '\n')
	if _, err := t.conn.Write(line); err != nil {
		return nil, err
	}
	return ident, nil
}

// readVersion reads the remote identification line, skipping up to
// maxVersionLines non-SSH banner lines first (spec §4.2), and enforces the
// "SSH-2.0-" / "SSH-1.99-" prefix.
func (t *transport) readVersion() ([]byte, error) {
	for i := 0; i < maxVersionLines; i++ {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, ConnectError{Addr: t.conn.RemoteAddr().String(), Err: err}
		}
		line = trimCRLF(line)
		if len(line) > maxVersionLineLen {
			return nil, ProtocolError{Message: "version line too long"}
		}
		if len(line) < 4 || string(line[:4]) != "SSH-" {
			// Pre-protocol banner line; RFC 4253 section 4.2 permits the
			// server to send these before its version line.
			continue
		}
		if !bytes.HasPrefix(line, []byte("SSH-2.0-")) && !bytes.HasPrefix(line, []byte("SSH-1.99-")) {
			version := "unknown"
			if len(line) >= 8 {
				version = string(line[4:8])
			}
			return nil, UnsupportedVersion{Version: version}
		}
		return line, nil
	}
	return nil, ProtocolError{Message: "no SSH version line within banner limit"}
}

func trimCRLF(s string) []byte {
	b := []byte(s)
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

// writePacket frames, optionally compresses, pads, MACs and encrypts one
// SSH packet and writes it to the connection (spec §4.1). Safe for
// concurrent use; callers rely on the internal mutex to serialize writes
// from the main loop and channel senders.
func (t *transport) writePacket(payload []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	st := &t.writeSt
	if st.compress != nil {
		compressed, err := st.compress.Compress(payload)
		if err != nil {
			return err
		}
		payload = compressed
	}

	t.writeBuf.resetForPacket()
	t.writeBuf.buf = append(t.writeBuf.buf, payload...)

	blockSize := st.cipher.BlockSize()
	if blockSize == 0 {
		blockSize = 8
	}
	framed, err := finalizePacket(t.writeBuf, blockSize, t.rand)
	if err != nil {
		return err
	}

	var mac []byte
	if st.aead != nil {
		nonce := aeadNonce(st.aead.IVSize(), st.seqNum)
		ciphertext := st.aead.Seal(nil, nonce, framed[packetLengthFieldLen:], framed[:packetLengthFieldLen])
		out := make([]byte, 0, packetLengthFieldLen+len(ciphertext))
		out = append(out, framed[:packetLengthFieldLen]...)
		out = append(out, ciphertext...)
		if _, err := t.conn.Write(out); err != nil {
			return err
		}
		st.bytesSince += uint64(len(out))
	} else {
		if st.mac != nil {
			var seq [4]byte
			binary.BigEndian.PutUint32(seq[:], st.seqNum)
			st.mac.Update(seq[:])
			st.mac.Update(framed)
			mac = st.mac.DoFinal(nil)
		}
		out := make([]byte, len(framed))
		st.cipher.Update(out, framed)
		if mac != nil {
			out = append(out, mac...)
		}
		if _, err := t.conn.Write(out); err != nil {
			return err
		}
		st.bytesSince += uint64(len(out))
	}

	st.seqNum++
	st.pktSince++
	return nil
}

// readPacket reads, decrypts, verifies and decompresses one SSH packet
// (spec §4.1), returning its payload (message number in byte 0).
func (t *transport) readPacket() ([]byte, error) {
	st := &t.readSt

	blockSize := st.cipher.BlockSize()
	if blockSize == 0 {
		blockSize = 8
	}

	if st.aead != nil {
		lenBuf := make([]byte, packetLengthFieldLen)
		if _, err := io.ReadFull(t.reader, lenBuf); err != nil {
			return nil, err
		}
		length := binary.BigEndian.Uint32(lenBuf)
		if length < minPacketLength-packetLengthFieldLen || int(length) > maxPacketEnvelope {
			return nil, PacketTooLarge{Requested: int(length)}
		}
		ciphertext := make([]byte, int(length)+st.aead.Overhead())
		if _, err := io.ReadFull(t.reader, ciphertext); err != nil {
			return nil, err
		}
		nonce := aeadNonce(st.aead.IVSize(), st.seqNum)
		plain, err := st.aead.Open(nil, nonce, ciphertext, lenBuf)
		if err != nil {
			return nil, ProtocolError{Message: "message authentication failed"}
		}
		st.seqNum++
		st.pktSince++
		st.bytesSince += uint64(packetLengthFieldLen + len(ciphertext))
		return stripPaddingAndDecompress(st, plain)
	}

	firstBlock := make([]byte, blockSize)
	if _, err := io.ReadFull(t.reader, firstBlock); err != nil {
		return nil, err
	}
	decryptedFirst := make([]byte, blockSize)
	st.cipher.Update(decryptedFirst, firstBlock)

	length := binary.BigEndian.Uint32(decryptedFirst[:4])
	if int(length) > maxPacketEnvelope {
		return nil, PacketTooLarge{Requested: int(length)}
	}
	if length < minPacketLength-packetLengthFieldLen {
		return nil, ProtocolError{Message: "packet too small"}
	}

	remaining := int(length) + packetLengthFieldLen - blockSize
	var macLen int
	if st.mac != nil {
		macLen = st.mac.Size()
	}
	rest := make([]byte, remaining+macLen)
	if _, err := io.ReadFull(t.reader, rest); err != nil {
		return nil, err
	}

	full := make([]byte, blockSize+remaining)
	copy(full, decryptedFirst)
	if remaining > 0 {
		decryptedRest := make([]byte, remaining)
		st.cipher.Update(decryptedRest, rest[:remaining])
		copy(full[blockSize:], decryptedRest)
	}

	if st.mac != nil {
		gotMAC := rest[remaining:]
		var seq [4]byte
		binary.BigEndian.PutUint32(seq[:], st.seqNum)
		st.mac.Update(seq[:])
		st.mac.Update(full)
		wantMAC := st.mac.DoFinal(nil)
		if !hmacEqual(gotMAC, wantMAC) {
			return nil, ProtocolError{Message: "message authentication failed"}
		}
	}

	st.seqNum++
	st.pktSince++
	st.bytesSince += uint64(len(full) + macLen)

	return stripPaddingAndDecompress(st, full)
}

func stripPaddingAndDecompress(st *directionState, full []byte) ([]byte, error) {
	if len(full) < 5 {
		return nil, ProtocolError{Message: "short packet"}
	}
	paddingLength := int(full[4])
	if paddingLength+1 > len(full)-4 {
		return nil, ProtocolError{Message: "invalid padding length"}
	}
	payload := full[5 : len(full)-paddingLength]
	if st.compress != nil {
		decompressed, err := st.compress.Decompress(payload)
		if err != nil {
			return nil, err
		}
		payload = decompressed
	}
	return payload, nil
}

// aeadNonce builds the per-packet nonce for an AEAD cipher from its fixed
// IV size and the packet sequence number, following the
// chacha20-poly1305@openssh.com / AES-GCM convention of folding the
// sequence number into the low-order bytes of a fixed-size nonce.
func aeadNonce(ivSize int, seqNum uint32) []byte {
	nonce := make([]byte, ivSize)
	binary.BigEndian.PutUint32(nonce[ivSize-4:], seqNum)
	return nonce
}

func hmacEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

// cipherKeyIVSize returns the key and IV sizes RFC 4253 section 6.3 (and
// the chacha20-poly1305@openssh.com / RFC 8439 convention) requires for a
// named cipher, so deriveKeys can be sized correctly before any concrete
// Cipher is instantiated from the Registry.
func cipherKeyIVSize(name string) (keySize, ivSize int) {
	switch name {
	case "aes128-cbc", "aes128-ctr":
		return 16, 16
	case "aes192-ctr":
		return 24, 16
	case "aes256-cbc", "aes256-ctr":
		return 32, 16
	case "3des-cbc":
		return 24, 8
	case "blowfish-cbc":
		return 16, 8
	case "arcfour128":
		return 16, 0
	case "arcfour256":
		return 32, 0
	case "chacha20-poly1305@openssh.com":
		// RFC 8439-style construction: one 32-byte key for the packet
		// length field, one for the payload; treated here as a single
		// 64-byte key the registry's backend is responsible for
		// splitting. No separate IV: the nonce is the sequence number.
		return 64, 0
	case compressionNone:
		return 0, 0
	}
	return 0, 0
}

// setupCipherDirection installs the cipher/mac/compression backends for
// one direction after a completed (re)key exchange, per spec §4.3's key
// schedule: named algorithms come from algorithmProposal, key material
// from kexKeys.
func setupCipherDirection(reg *Registry, dir direction, cipherName, macName, compressName string, key, iv, macKey []byte, level int) (Cipher, Mac, Compression, error) {
	cipher, err := reg.cipher(cipherName)
	if err != nil {
		return nil, nil, nil, err
	}
	cdir := DirEncrypt
	if dir == dirServerToClient {
		cdir = DirDecrypt
	}
	if err := cipher.Init(cdir, key, iv); err != nil {
		return nil, nil, nil, err
	}

	var mac Mac
	if _, isAEAD := cipher.(AEADCipher); !isAEAD {
		mac, err = reg.mac(macName)
		if err != nil {
			return nil, nil, nil, err
		}
		if mac != nil {
			mac.Init(macKey)
		}
	}

	compress, err := reg.compression(compressName)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := compress.Init(true, level); err != nil {
		return nil, nil, nil, err
	}

	return cipher, mac, compress, nil
}
