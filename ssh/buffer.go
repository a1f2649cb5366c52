// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"io"
	"math/big"
)

// maxPacketEnvelope is the largest a single SSH binary packet (length field,
// padding length field, payload and padding all included) is ever allowed to
// grow to. RFC 4253 leaves the ceiling to implementations; 256 KiB matches
// what every interoperable client enforces.
const maxPacketEnvelope = 256 * 1024

// minPacketLength is the smallest whole binary packet RFC 4253 section 6
// allows, counting the 4-byte packet_length field itself; readPacket
// rejects a packet_length below minPacketLength-4.
const minPacketLength = 16

// PacketTooLarge is returned by Buffer.ensureCapacity when growing the
// buffer would push it past maxPacketEnvelope.
type PacketTooLarge struct {
	Requested int
}

func (e PacketTooLarge) Error() string {
	return "ssh: packet would exceed the 256 KiB envelope"
}

// Buffer is a growable byte buffer with an independent read offset and
// write index, used both to assemble outgoing packets and to pick apart
// incoming ones. The invariant maintained throughout is
//
//	0 <= roff <= len(buf) <= cap(buf) <= maxPacketEnvelope
type Buffer struct {
	buf  []byte
	roff int
}

// NewBuffer returns an empty Buffer ready for writing.
func NewBuffer() *Buffer {
	return &Buffer{buf: make([]byte, 0, 64)}
}

// NewBufferFromBytes wraps b as a Buffer whose entire contents are unread.
// b is taken by reference, not copied.
func NewBufferFromBytes(b []byte) *Buffer {
	return &Buffer{buf: b}
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int { return len(b.buf) - b.roff }

// Cap returns the capacity of the backing array.
func (b *Buffer) Cap() int { return cap(b.buf) }

// Bytes returns the unread portion of the buffer. The slice aliases the
// buffer's backing array and is invalidated by the next Put call.
func (b *Buffer) Bytes() []byte { return b.buf[b.roff:] }

// Written returns the entire written region, including bytes already read.
// Used by the packet framer to hand the whole packet to the cipher/MAC.
func (b *Buffer) Written() []byte { return b.buf }

// ensureCapacity grows the backing array so that n additional bytes can be
// written without reallocating past maxPacketEnvelope.
func (b *Buffer) ensureCapacity(n int) error {
	need := len(b.buf) + n
	if need > maxPacketEnvelope {
		return PacketTooLarge{Requested: need}
	}
	if need <= cap(b.buf) {
		return nil
	}
	grown := make([]byte, len(b.buf), need*2)
	if grown2 := cap(grown); grown2 > maxPacketEnvelope {
		grown = make([]byte, len(b.buf), maxPacketEnvelope)
	}
	copy(grown, b.buf)
	b.buf = grown
	return nil
}

// Shift moves unread bytes to offset 0, discarding bytes already consumed.
// Existing aliases returned by Bytes/Written become invalid.
func (b *Buffer) Shift() {
	if b.roff == 0 {
		return
	}
	n := copy(b.buf, b.buf[b.roff:])
	b.buf = b.buf[:n]
	b.roff = 0
}

// Clear zeroes the whole backing array and resets the buffer to empty. Used
// to wipe secret material (session keys, private key bytes) before they are
// garbage collected.
func (b *Buffer) Clear() {
	for i := range b.buf[:cap(b.buf)] {
		b.buf[:cap(b.buf)][i] = 0
	}
	b.buf = b.buf[:0]
	b.roff = 0
}

// Reset truncates the buffer to empty without zeroing, leaving the backing
// array allocated for reuse.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
	b.roff = 0
}

func (b *Buffer) grow(n int) []byte {
	if err := b.ensureCapacity(n); err != nil {
		panic(err)
	}
	start := len(b.buf)
	b.buf = b.buf[:start+n]
	return b.buf[start : start+n]
}

// PutUint8 appends a single byte.
func (b *Buffer) PutUint8(v uint8) { b.grow(1)[0] = v }

// PutBool appends a boolean as a single 0/1 byte.
func (b *Buffer) PutBool(v bool) {
	if v {
		b.PutUint8(1)
	} else {
		b.PutUint8(0)
	}
}

// PutUint32 appends a big-endian uint32.
func (b *Buffer) PutUint32(v uint32) {
	dst := b.grow(4)
	marshalUint32(dst, v)
}

// PutUint64 appends a big-endian uint64.
func (b *Buffer) PutUint64(v uint64) {
	dst := b.grow(8)
	marshalUint64(dst, v)
}

// PutBytes appends raw bytes with no length prefix.
func (b *Buffer) PutBytes(p []byte) {
	copy(b.grow(len(p)), p)
}

// PutString appends a length-prefixed byte string: uint32 length || bytes.
func (b *Buffer) PutString(p []byte) {
	b.PutUint32(uint32(len(p)))
	b.PutBytes(p)
}

// PutStringStr is PutString for a Go string.
func (b *Buffer) PutStringStr(s string) { b.PutString([]byte(s)) }

// PutNameList appends a comma-joined, length-prefixed name-list as defined
// by RFC 4251 section 5.
func (b *Buffer) PutNameList(names []string) {
	b.PutStringStr(joinNameList(names))
}

// PutMPInt appends a multi-precision integer per RFC 4251 section 5: a
// two's-complement, big-endian integer with a length prefix. If the most
// significant bit of the first byte would otherwise be set, a leading zero
// byte is inserted so the value reads as non-negative.
func (b *Buffer) PutMPInt(v *big.Int) {
	if v.Sign() == 0 {
		b.PutUint32(0)
		return
	}
	bytes := v.Bytes()
	if bytes[0]&0x80 != 0 {
		b.PutUint32(uint32(len(bytes) + 1))
		b.PutUint8(0)
		b.PutBytes(bytes)
		return
	}
	b.PutUint32(uint32(len(bytes)))
	b.PutBytes(bytes)
}

func (b *Buffer) need(n int) error {
	if b.Len() < n {
		return ParseError{}
	}
	return nil
}

// GetUint8 consumes and returns one byte.
func (b *Buffer) GetUint8() (uint8, error) {
	if err := b.need(1); err != nil {
		return 0, err
	}
	v := b.buf[b.roff]
	b.roff++
	return v, nil
}

// GetBool consumes and returns a boolean.
func (b *Buffer) GetBool() (bool, error) {
	v, err := b.GetUint8()
	return v != 0, err
}

// GetUint32 consumes a big-endian uint32, surfaced as signed int32 per
// spec §4.1 ("uint32 is surfaced as a signed 32-bit value").
func (b *Buffer) GetUint32() (int32, error) {
	if err := b.need(4); err != nil {
		return 0, err
	}
	v := int32(uint32FromBytes(b.buf[b.roff:]))
	b.roff += 4
	return v, nil
}

// GetUint32Unsigned consumes a big-endian uint32 widened to uint64, for
// wire fields whose meaning is always non-negative (window sizes, ports,
// packet lengths).
func (b *Buffer) GetUint32Unsigned() (uint64, error) {
	if err := b.need(4); err != nil {
		return 0, err
	}
	v := uint64(uint32FromBytes(b.buf[b.roff:]))
	b.roff += 4
	return v, nil
}

// GetUint64 consumes a big-endian uint64.
func (b *Buffer) GetUint64() (uint64, error) {
	if err := b.need(8); err != nil {
		return 0, err
	}
	v := uint64FromBytes(b.buf[b.roff:])
	b.roff += 8
	return v, nil
}

// GetBytes consumes and returns n raw bytes.
func (b *Buffer) GetBytes(n int) ([]byte, error) {
	if err := b.need(n); err != nil {
		return nil, err
	}
	v := b.buf[b.roff : b.roff+n]
	b.roff += n
	return v, nil
}

// GetString consumes a length-prefixed byte string.
func (b *Buffer) GetString() ([]byte, error) {
	n, err := b.GetUint32Unsigned()
	if err != nil {
		return nil, err
	}
	if n > maxPacketEnvelope {
		return nil, ProtocolError{Message: "string field exceeds packet envelope"}
	}
	return b.GetBytes(int(n))
}

// GetMPInt consumes a multi-precision integer.
func (b *Buffer) GetMPInt() (*big.Int, error) {
	raw, err := b.GetString()
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

// GetNameList consumes a comma-joined name-list.
func (b *Buffer) GetNameList() ([]string, error) {
	raw, err := b.GetString()
	if err != nil {
		return nil, err
	}
	return splitNameList(string(raw)), nil
}

// --- packet builder -------------------------------------------------------

// packetHeaderLen is the room reserved at the front of a packet buffer for
// the uint32 packet_length field and the uint8 padding_length field.
const packetHeaderLen = 5

// resetForPacket positions the write index at packetHeaderLen, leaving room
// for the length/padding-length header that finalize will fill in once the
// payload is known.
func (b *Buffer) resetForPacket() {
	b.Reset()
	b.grow(packetHeaderLen)
}

// finalizePacket computes the padding length so the whole envelope is a
// multiple of max(8, blockSize), writes packet_length and padding_length,
// and appends random padding. It returns the full framed packet (header,
// payload and padding; MAC and encryption are layered on by the transport).
func finalizePacket(b *Buffer, blockSize int, rng io.Reader) ([]byte, error) {
	if blockSize < 8 {
		blockSize = 8
	}
	payloadLen := len(b.buf) - packetHeaderLen
	padLen := blockSize - (packetHeaderLen+payloadLen)%blockSize
	if padLen < 4 {
		padLen += blockSize
	}
	if padLen > 255 {
		return nil, ProtocolError{Message: "computed padding length out of range"}
	}
	pad := b.grow(padLen)
	if _, err := io.ReadFull(rng, pad); err != nil {
		return nil, err
	}
	packetLen := uint32(1 + payloadLen + padLen)
	marshalUint32(b.buf[0:4], packetLen)
	b.buf[4] = byte(padLen)
	return b.buf, nil
}

// --- free-function wire helpers -------------------------------------------
//
// These mirror the style already used by the teacher's certs.go/client.go
// (marshalString, parseString, parseUint32, ...): small helpers operating
// directly on []byte, used by the reflection-based message marshaller and
// by code that builds one-off wire fragments (e.g. publickey signing data)
// without going through a full Buffer.

func marshalUint32(to []byte, n uint32) []byte {
	to[0] = byte(n >> 24)
	to[1] = byte(n >> 16)
	to[2] = byte(n >> 8)
	to[3] = byte(n)
	return to[4:]
}

func marshalUint64(to []byte, n uint64) []byte {
	to = marshalUint32(to, uint32(n>>32))
	to = marshalUint32(to, uint32(n))
	return to
}

func uint32FromBytes(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func uint64FromBytes(b []byte) uint64 {
	return uint64(uint32FromBytes(b))<<32 | uint64(uint32FromBytes(b[4:]))
}

func intLength(n *big.Int) int {
	length := 4 // length bytes
	if n.Sign() < 0 {
		panic("negative int")
	} else if n.Sign() == 0 {
		return length
	}
	bitLen := n.BitLen()
	length += (bitLen + 8) / 8
	return length
}

func marshalInt(to []byte, n *big.Int) []byte {
	length := intLength(n)
	bytes := n.Bytes()
	if len(bytes) > 0 && bytes[0]&0x80 != 0 {
		to = marshalUint32(to, uint32(len(bytes)+1))
		to[0] = 0
		to = to[1:]
	} else {
		to = marshalUint32(to, uint32(len(bytes)))
	}
	n2 := copy(to, bytes)
	to = to[n2:]
	_ = length
	return to
}

func stringLength(n int) int {
	return 4 + n
}

func marshalString(to []byte, s []byte) []byte {
	to = marshalUint32(to, uint32(len(s)))
	copy(to, s)
	return to[len(s):]
}

func parseString(in []byte) (out, rest []byte, ok bool) {
	if len(in) < 4 {
		return
	}
	length := uint32FromBytes(in)
	if uint64(length) > uint64(len(in)-4) {
		return
	}
	out = in[4 : 4+length]
	rest = in[4+length:]
	ok = true
	return
}

func parseUint32(in []byte) (uint32, []byte, bool) {
	if len(in) < 4 {
		return 0, nil, false
	}
	return uint32FromBytes(in), in[4:], true
}

func parseUint64(in []byte) (uint64, []byte, bool) {
	if len(in) < 8 {
		return 0, nil, false
	}
	return uint64FromBytes(in), in[8:], true
}

func parseBool(in []byte) (bool, []byte, bool) {
	if len(in) < 1 {
		return false, nil, false
	}
	return in[0] != 0, in[1:], true
}

// writeString writes an RFC 4251 string (length-prefixed) to w, used when
// feeding exchange-hash material directly into a running hash.Hash.
func writeString(w io.Writer, s []byte) {
	var lenBytes [4]byte
	marshalUint32(lenBytes[:], uint32(len(s)))
	w.Write(lenBytes[:])
	w.Write(s)
}

// writeInt writes an mpint to w for exchange-hash computation.
func writeInt(w io.Writer, n *big.Int) {
	length := intLength(n)
	buf := make([]byte, length)
	marshalInt(buf, n)
	w.Write(buf)
}

func joinNameList(names []string) string {
	out := make([]byte, 0, 16*len(names))
	for i, n := range names {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, n...)
	}
	return string(out)
}

func splitNameList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
