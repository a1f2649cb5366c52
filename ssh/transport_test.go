// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"bytes"
	"crypto/rand"
	"net"
	"testing"
)

func TestWriteVersionReturnsIdentWithoutCRLF(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()
	defer clientSide.Close()

	tr := newTransport(clientSide, rand.Reader, NewRegistry())
	done := make(chan struct{})
	var gotIdent []byte
	var gotErr error
	go func() {
		gotIdent, gotErr = tr.writeVersion([]byte("SSH-2.0-testclient"))
		close(done)
	}()

	buf := make([]byte, 64)
	n, err := serverSide.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	<-done
	if gotErr != nil {
		t.Fatalf("writeVersion: %v", gotErr)
	}
	if !bytes.Equal(gotIdent, []byte("SSH-2.0-testclient")) {
		t.Fatalf("writeVersion returned %q, want no CRLF suffix", gotIdent)
	}
	if !bytes.Equal(buf[:n], []byte("SSH-2.0-testclient\r\n")) {
		t.Fatalf("wire bytes = %q, want a CRLF-terminated line", buf[:n])
	}
}

func TestReadVersionSkipsBannerLines(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()
	defer clientSide.Close()

	tr := newTransport(clientSide, rand.Reader, NewRegistry())
	resultCh := make(chan []byte, 1)
	errCh := make(chan error, 1)
	go func() {
		line, err := tr.readVersion()
		resultCh <- line
		errCh <- err
	}()

	serverSide.Write([]byte("Welcome to our SSH server!\r\n"))
	serverSide.Write([]byte("Another banner line\n"))
	serverSide.Write([]byte("SSH-2.0-OpenSSH_9.0\r\n"))

	if err := <-errCh; err != nil {
		t.Fatalf("readVersion: %v", err)
	}
	got := <-resultCh
	if string(got) != "SSH-2.0-OpenSSH_9.0" {
		t.Fatalf("readVersion = %q, want SSH-2.0-OpenSSH_9.0", got)
	}
}

func TestReadVersionRejectsUnsupportedProtocol(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()
	defer clientSide.Close()

	tr := newTransport(clientSide, rand.Reader, NewRegistry())
	errCh := make(chan error, 1)
	go func() {
		_, err := tr.readVersion()
		errCh <- err
	}()

	serverSide.Write([]byte("SSH-1.5-ancient\r\n"))

	err := <-errCh
	if _, ok := err.(UnsupportedVersion); !ok {
		t.Fatalf("readVersion error = %T, want UnsupportedVersion", err)
	}
}

func TestTrimCRLF(t *testing.T) {
	cases := map[string]string{
		"hello\r\n": "hello",
		"hello\n":   "hello",
		"hello":     "hello",
		"\r\n":      "",
	}
	for in, want := range cases {
		if got := string(trimCRLF(in)); got != want {
			t.Fatalf("trimCRLF(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWritePacketReadPacketRoundTripNoneCipher(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()
	defer clientSide.Close()

	client := newTransport(clientSide, rand.Reader, NewRegistry())
	server := newTransport(serverSide, rand.Reader, NewRegistry())

	payload := []byte{msgChannelData, 0, 0, 0, 1, 2, 3, 4}
	errCh := make(chan error, 1)
	go func() { errCh <- client.writePacket(payload) }()

	got, err := server.readPacket()
	if err != nil {
		t.Fatalf("readPacket: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("writePacket: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("readPacket = %v, want %v", got, payload)
	}
}

func TestReadPacketRejectsOversizedLength(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()
	defer clientSide.Close()

	server := newTransport(serverSide, rand.Reader, NewRegistry())
	errCh := make(chan error, 1)
	go func() {
		_, err := server.readPacket()
		errCh <- err
	}()

	// Eight bytes form one blockSize-sized "first block" under the none
	// cipher; a too-large packet_length in the first four bytes must be
	// rejected before any further read blocks forever.
	lenBuf := make([]byte, 8)
	marshalUint32(lenBuf, maxPacketEnvelope+1)
	clientSide.Write(lenBuf)

	err := <-errCh
	if _, ok := err.(PacketTooLarge); !ok {
		t.Fatalf("readPacket error = %T, want PacketTooLarge", err)
	}
}
