// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"sync"
	"testing"
	"time"
)

func TestFindCommonAlgorithm(t *testing.T) {
	client := []string{"curve25519-sha256", "diffie-hellman-group14-sha256", "diffie-hellman-group1-sha1"}
	server := []string{"diffie-hellman-group14-sha256", "curve25519-sha256"}

	got, ok := findCommonAlgorithm(client, server)
	if !ok {
		t.Fatalf("expected a common algorithm")
	}
	// The client's preference order wins: curve25519 comes first in client.
	if got != "curve25519-sha256" {
		t.Fatalf("got %q, want %q", got, "curve25519-sha256")
	}
}

func TestFindCommonAlgorithmNoOverlap(t *testing.T) {
	_, ok := findCommonAlgorithm([]string{"a"}, []string{"b"})
	if ok {
		t.Fatalf("expected no common algorithm")
	}
}

func TestFindCommonCipherRejectsUnregistered(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCipher("aes128-ctr", func() Cipher { return nil })

	got, ok := findCommonCipher(reg, []string{"aes128-ctr", "arcfour"}, []string{"arcfour", "aes128-ctr"})
	if !ok {
		t.Fatalf("expected a common, registered cipher")
	}
	if got != "aes128-ctr" {
		t.Fatalf("got %q, want %q (arcfour has no registered factory)", got, "aes128-ctr")
	}
}

func TestFindCommonCipherNoneRegistered(t *testing.T) {
	reg := NewRegistry()
	if _, ok := findCommonCipher(reg, []string{"aes128-ctr"}, []string{"aes128-ctr"}); ok {
		t.Fatalf("expected no common cipher when the registry has no factories at all")
	}
}

func TestFindAgreedAlgorithms(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCipher("aes128-ctr", func() Cipher { return nil })

	client := &kexInitMsg{
		KexAlgos:                []string{kexAlgoCurve25519},
		ServerHostKeyAlgos:      []string{hostAlgoED25519},
		CiphersClientServer:     []string{"aes128-ctr"},
		CiphersServerClient:     []string{"aes128-ctr"},
		MACsClientServer:        []string{"hmac-sha2-256"},
		MACsServerClient:        []string{"hmac-sha2-256"},
		CompressionClientServer: []string{compressionNone},
		CompressionServerClient: []string{compressionNone},
	}
	server := client

	prop, err := findAgreedAlgorithms(reg, client, server)
	if err != nil {
		t.Fatalf("findAgreedAlgorithms: %v", err)
	}
	if prop.kex != kexAlgoCurve25519 || prop.hostKey != hostAlgoED25519 {
		t.Fatalf("unexpected proposal: %#v", prop)
	}
	if prop.cipherClientServer != "aes128-ctr" || prop.macClientServer != "hmac-sha2-256" {
		t.Fatalf("unexpected proposal: %#v", prop)
	}
}

func TestFindAgreedAlgorithmsNoCommonKex(t *testing.T) {
	reg := NewRegistry()
	client := &kexInitMsg{KexAlgos: []string{"a"}}
	server := &kexInitMsg{KexAlgos: []string{"b"}}
	if _, err := findAgreedAlgorithms(reg, client, server); err == nil {
		t.Fatalf("expected NoCommonAlgorithm error")
	}
}

func TestSafeString(t *testing.T) {
	in := "hello\x00world\x7f\ttab\r\nnewline"
	got := safeString(in)
	want := "hello�world�\ttab\r\nnewline"
	if got != want {
		t.Fatalf("safeString(%q) = %q, want %q", in, got, want)
	}
}

func TestSafeStringPassesPrintableASCII(t *testing.T) {
	in := "normal printable text 123!@#"
	if got := safeString(in); got != in {
		t.Fatalf("safeString altered printable input: got %q, want %q", got, in)
	}
}

func TestWindowReserveBlocksUntilAdd(t *testing.T) {
	w := &window{Cond: newCond()}

	done := make(chan uint32, 1)
	go func() {
		n, ok := w.reserve(100)
		if !ok {
			done <- 0
			return
		}
		done <- n
	}()

	// Give the goroutine a chance to block on the empty window first.
	time.Sleep(10 * time.Millisecond)
	if !w.add(50) {
		t.Fatalf("add overflowed unexpectedly")
	}

	select {
	case n := <-done:
		if n != 50 {
			t.Fatalf("reserve returned %d, want 50", n)
		}
	case <-time.After(time.Second):
		t.Fatalf("reserve never woke up after add")
	}
}

func TestWindowReserveCapsAtAvailable(t *testing.T) {
	w := &window{Cond: newCond()}
	w.add(10)
	n, ok := w.reserve(100)
	if !ok {
		t.Fatalf("reserve failed unexpectedly")
	}
	if n != 10 {
		t.Fatalf("reserve returned %d, want 10 (capped to available window)", n)
	}
}

func TestWindowShutWakesWaiters(t *testing.T) {
	w := &window{Cond: newCond()}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, ok := w.reserve(1); ok {
			t.Errorf("reserve succeeded after shut, want ok=false")
		}
	}()
	time.Sleep(10 * time.Millisecond)
	w.shut()
	wg.Wait()
}

func TestWindowAddOverflow(t *testing.T) {
	w := &window{Cond: newCond(), win: ^uint32(0)}
	if w.add(1) {
		t.Fatalf("add should report overflow when win would wrap past 2^32-1")
	}
}

func TestPubAlgoToPrivAlgo(t *testing.T) {
	cases := map[string]string{
		CertAlgoRSAv01:      hostAlgoRSA,
		CertAlgoDSAv01:      hostAlgoDSA,
		CertAlgoECDSA256v01: keyAlgoECDSA256,
		hostAlgoED25519:     hostAlgoED25519,
	}
	for in, want := range cases {
		if got := pubAlgoToPrivAlgo(in); got != want {
			t.Fatalf("pubAlgoToPrivAlgo(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildDataSignedForAuth(t *testing.T) {
	sessionID := []byte("session-id-bytes")
	req := userAuthRequestMsg{User: "bob", Service: serviceSSH, Method: "publickey"}
	algo := []byte(hostAlgoED25519)
	pubKey := []byte("pubkey-blob")

	data := buildDataSignedForAuth(sessionID, req, algo, pubKey)

	b := NewBufferFromBytes(data)
	gotSession, err := b.GetString()
	if err != nil || string(gotSession) != string(sessionID) {
		t.Fatalf("session id mismatch: %q, %v", gotSession, err)
	}
	tag, err := b.GetUint8()
	if err != nil || tag != msgUserAuthRequest {
		t.Fatalf("tag byte = %d, %v; want %d", tag, err, msgUserAuthRequest)
	}
	if u, err := b.GetString(); err != nil || string(u) != req.User {
		t.Fatalf("user mismatch: %q, %v", u, err)
	}
	if s, err := b.GetString(); err != nil || string(s) != req.Service {
		t.Fatalf("service mismatch: %q, %v", s, err)
	}
	if m, err := b.GetString(); err != nil || string(m) != req.Method {
		t.Fatalf("method mismatch: %q, %v", m, err)
	}
	hasSig, err := b.GetUint8()
	if err != nil || hasSig != 1 {
		t.Fatalf("has-signature byte = %d, %v; want 1", hasSig, err)
	}
	if a, err := b.GetString(); err != nil || string(a) != string(algo) {
		t.Fatalf("algo mismatch: %q, %v", a, err)
	}
	if p, err := b.GetString(); err != nil || string(p) != string(pubKey) {
		t.Fatalf("pubkey mismatch: %q, %v", p, err)
	}
}

func TestSerializeSignature(t *testing.T) {
	out := serializeSignature(hostAlgoED25519, []byte("sig-bytes"))
	b := NewBufferFromBytes(out)
	name, err := b.GetString()
	if err != nil || string(name) != hostAlgoED25519 {
		t.Fatalf("name mismatch: %q, %v", name, err)
	}
	sig, err := b.GetString()
	if err != nil || string(sig) != "sig-bytes" {
		t.Fatalf("sig mismatch: %q, %v", sig, err)
	}
}
