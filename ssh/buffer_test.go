// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"bytes"
	"math/big"
	"testing"
)

func TestBufferPutGetUint32(t *testing.T) {
	b := NewBuffer()
	b.PutUint32(0xdeadbeef)
	got, err := b.GetUint32()
	if err != nil {
		t.Fatalf("GetUint32: %v", err)
	}
	if uint32(got) != 0xdeadbeef {
		t.Fatalf("got %x, want %x", uint32(got), uint32(0xdeadbeef))
	}
}

func TestBufferPutGetUint64(t *testing.T) {
	b := NewBuffer()
	b.PutUint64(0x0102030405060708)
	got, err := b.GetUint64()
	if err != nil {
		t.Fatalf("GetUint64: %v", err)
	}
	if got != 0x0102030405060708 {
		t.Fatalf("got %x, want %x", got, uint64(0x0102030405060708))
	}
}

func TestBufferPutGetBool(t *testing.T) {
	for _, v := range []bool{true, false} {
		b := NewBuffer()
		b.PutBool(v)
		got, err := b.GetBool()
		if err != nil {
			t.Fatalf("GetBool: %v", err)
		}
		if got != v {
			t.Fatalf("got %v, want %v", got, v)
		}
	}
}

func TestBufferPutGetString(t *testing.T) {
	b := NewBuffer()
	b.PutString([]byte("hello ssh"))
	got, err := b.GetString()
	if err != nil {
		t.Fatalf("GetString: %v", err)
	}
	if !bytes.Equal(got, []byte("hello ssh")) {
		t.Fatalf("got %q, want %q", got, "hello ssh")
	}
}

func TestBufferPutGetNameList(t *testing.T) {
	names := []string{"diffie-hellman-group14-sha256", "curve25519-sha256", "ecdh-sha2-nistp256"}
	b := NewBuffer()
	b.PutNameList(names)
	got, err := b.GetNameList()
	if err != nil {
		t.Fatalf("GetNameList: %v", err)
	}
	if len(got) != len(names) {
		t.Fatalf("got %d names, want %d", len(got), len(names))
	}
	for i := range names {
		if got[i] != names[i] {
			t.Fatalf("name %d: got %q, want %q", i, got[i], names[i])
		}
	}
}

func TestBufferNameListEmpty(t *testing.T) {
	b := NewBuffer()
	b.PutNameList(nil)
	got, err := b.GetNameList()
	if err != nil {
		t.Fatalf("GetNameList: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}

func TestBufferPutGetMPInt(t *testing.T) {
	tests := []string{
		"0",
		"1",
		"127",
		"128",     // leading bit set on single byte -> needs padding
		"255",
		"-1234567890123456789",
		"1234567890123456789012345678901234567890",
	}
	for _, s := range tests {
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			t.Fatalf("bad test input %q", s)
		}
		b := NewBuffer()
		b.PutMPInt(n)
		got, err := b.GetMPInt()
		if err != nil {
			t.Fatalf("GetMPInt(%s): %v", s, err)
		}
		if got.Cmp(n) != 0 {
			t.Fatalf("GetMPInt(%s) = %s, want %s", s, got, n)
		}
	}
}

func TestBufferMPIntHighBitPadding(t *testing.T) {
	// 0x80 has its top bit set; the wire encoding must prepend a zero byte
	// so it is not misread as a negative two's-complement value.
	n := big.NewInt(0x80)
	b := NewBuffer()
	b.PutMPInt(n)
	blob := b.Written()
	length := uint32FromBytes(blob[0:4])
	if length != 2 {
		t.Fatalf("wire length = %d, want 2 (padding byte + 0x80)", length)
	}
	if blob[4] != 0 {
		t.Fatalf("expected leading zero padding byte, got %#x", blob[4])
	}
	if blob[5] != 0x80 {
		t.Fatalf("expected payload byte 0x80, got %#x", blob[5])
	}
}

func TestBufferMPIntZero(t *testing.T) {
	b := NewBuffer()
	b.PutMPInt(new(big.Int))
	blob := b.Written()
	if uint32FromBytes(blob[0:4]) != 0 {
		t.Fatalf("zero mpint should encode as a zero-length string")
	}
}

func TestBufferGetErrorsOnShortInput(t *testing.T) {
	b := NewBufferFromBytes([]byte{0x01, 0x02})
	if _, err := b.GetUint32(); err == nil {
		t.Fatalf("expected error reading uint32 from a 2-byte buffer")
	}
}

func TestBufferGetStringRejectsOversizedLength(t *testing.T) {
	buf := make([]byte, 4)
	marshalUint32(buf, maxPacketEnvelope+1)
	b := NewBufferFromBytes(buf)
	if _, err := b.GetString(); err == nil {
		t.Fatalf("expected error for a string length exceeding the packet envelope")
	}
}

func TestBufferSequentialReadWrite(t *testing.T) {
	b := NewBuffer()
	b.PutUint8(7)
	b.PutStringStr("ssh-rsa")
	b.PutBool(true)
	b.PutUint32(42)

	if v, err := b.GetUint8(); err != nil || v != 7 {
		t.Fatalf("GetUint8 = %d, %v", v, err)
	}
	if s, err := b.GetString(); err != nil || string(s) != "ssh-rsa" {
		t.Fatalf("GetString = %q, %v", s, err)
	}
	if v, err := b.GetBool(); err != nil || v != true {
		t.Fatalf("GetBool = %v, %v", v, err)
	}
	if v, err := b.GetUint32(); err != nil || v != 42 {
		t.Fatalf("GetUint32 = %d, %v", v, err)
	}
	if b.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after consuming everything written", b.Len())
	}
}

func TestBufferShift(t *testing.T) {
	b := NewBuffer()
	b.PutStringStr("abc")
	b.PutStringStr("defgh")
	if _, err := b.GetString(); err != nil {
		t.Fatalf("GetString: %v", err)
	}
	before := b.Len()
	b.Shift()
	if b.Len() != before {
		t.Fatalf("Shift changed unread length: got %d, want %d", b.Len(), before)
	}
	s, err := b.GetString()
	if err != nil || string(s) != "defgh" {
		t.Fatalf("GetString after Shift = %q, %v", s, err)
	}
}

func TestBufferClearZeroes(t *testing.T) {
	b := NewBuffer()
	b.PutStringStr("super-secret-key-material")
	b.Clear()
	if b.Len() != 0 {
		t.Fatalf("Clear did not reset length")
	}
	for _, v := range b.buf[:cap(b.buf)] {
		if v != 0 {
			t.Fatalf("Clear left non-zero byte in backing array")
		}
	}
}

func TestFinalizePacketPadding(t *testing.T) {
	b := NewBuffer()
	b.resetForPacket()
	b.PutStringStr("payload")

	framed, err := finalizePacket(b, 16, bytes.NewReader(make([]byte, 64)))
	if err != nil {
		t.Fatalf("finalizePacket: %v", err)
	}
	if len(framed) < minPacketLength {
		t.Fatalf("framed packet shorter than minPacketLength: %d", len(framed))
	}
	packetLen := uint32FromBytes(framed[0:4])
	if int(packetLen)+4 != len(framed) {
		t.Fatalf("packet_length field %d inconsistent with framed length %d", packetLen, len(framed))
	}
	padLen := framed[4]
	if padLen < 4 {
		t.Fatalf("padding length %d below RFC 4253 minimum of 4", padLen)
	}
	// total envelope (length field + payload) must be a multiple of the
	// block size (finalizePacket was called with blockSize=16).
	if (4+int(packetLen))%16 != 0 {
		t.Fatalf("framed packet length %d is not a multiple of block size 16", 4+int(packetLen))
	}
}

func TestFinalizePacketMinBlockSize(t *testing.T) {
	b := NewBuffer()
	b.resetForPacket()
	b.PutUint8(1)

	// blockSize below 8 should be clamped to 8 per RFC 4253 section 6.
	framed, err := finalizePacket(b, 0, bytes.NewReader(make([]byte, 64)))
	if err != nil {
		t.Fatalf("finalizePacket: %v", err)
	}
	packetLen := uint32FromBytes(framed[0:4])
	if (4+int(packetLen))%8 != 0 {
		t.Fatalf("framed packet length %d is not a multiple of the clamped block size 8", 4+int(packetLen))
	}
}

func TestJoinSplitNameList(t *testing.T) {
	names := []string{"a", "b", "c"}
	joined := joinNameList(names)
	if joined != "a,b,c" {
		t.Fatalf("joinNameList = %q, want %q", joined, "a,b,c")
	}
	split := splitNameList(joined)
	if len(split) != 3 {
		t.Fatalf("splitNameList returned %d elements, want 3", len(split))
	}
}

func TestSplitNameListEmpty(t *testing.T) {
	if got := splitNameList(""); got != nil {
		t.Fatalf("splitNameList(\"\") = %v, want nil", got)
	}
}
