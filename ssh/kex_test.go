// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"bytes"
	"crypto"
	"testing"
)

func sha256Hash() crypto.Hash { return crypto.SHA256 }

func TestDeriveKeysLengths(t *testing.T) {
	K := []byte{1, 2, 3, 4, 5}
	H := []byte("exchange-hash")
	sessionID := []byte("session-id")

	keys := deriveKeys(sha256Hash, K, H, sessionID, 16, 32, 20)
	if len(keys.IVClientServer) != 16 || len(keys.IVServerClient) != 16 {
		t.Fatalf("IV length mismatch: %d/%d, want 16", len(keys.IVClientServer), len(keys.IVServerClient))
	}
	if len(keys.KeyClientServer) != 32 || len(keys.KeyServerClient) != 32 {
		t.Fatalf("key length mismatch: %d/%d, want 32", len(keys.KeyClientServer), len(keys.KeyServerClient))
	}
	if len(keys.MACKeyClientServer) != 20 || len(keys.MACKeyServerClient) != 20 {
		t.Fatalf("mac key length mismatch: %d/%d, want 20", len(keys.MACKeyClientServer), len(keys.MACKeyServerClient))
	}
}

func TestDeriveKeysLongerThanOneDigest(t *testing.T) {
	// SHA-256 produces 32 bytes per round; ask for more than that to
	// exercise the digest-extension loop.
	K := []byte{9, 9, 9}
	H := []byte("H")
	sessionID := []byte("id")

	keys := deriveKeys(sha256Hash, K, H, sessionID, 8, 64, 64)
	if len(keys.KeyClientServer) != 64 {
		t.Fatalf("KeyClientServer length = %d, want 64", len(keys.KeyClientServer))
	}
	if len(keys.MACKeyServerClient) != 64 {
		t.Fatalf("MACKeyServerClient length = %d, want 64", len(keys.MACKeyServerClient))
	}
}

func TestDeriveKeysDeterministic(t *testing.T) {
	K := []byte{7, 7, 7}
	H := []byte("hash")
	sessionID := []byte("sid")

	a := deriveKeys(sha256Hash, K, H, sessionID, 16, 32, 32)
	b := deriveKeys(sha256Hash, K, H, sessionID, 16, 32, 32)
	if !bytes.Equal(a.KeyClientServer, b.KeyClientServer) {
		t.Fatalf("deriveKeys is not deterministic for identical inputs")
	}
}

func TestDeriveKeysDirectionsDiffer(t *testing.T) {
	K := []byte{1, 1, 1}
	H := []byte("h")
	sessionID := []byte("s")

	keys := deriveKeys(sha256Hash, K, H, sessionID, 16, 32, 32)
	if bytes.Equal(keys.KeyClientServer, keys.KeyServerClient) {
		t.Fatalf("client->server and server->client keys must differ (distinct id bytes)")
	}
	if bytes.Equal(keys.IVClientServer, keys.IVServerClient) {
		t.Fatalf("client->server and server->client IVs must differ")
	}
}

func TestDeriveKeysSessionIDAffectsOutput(t *testing.T) {
	K := []byte{1, 1, 1}
	H := []byte("h")

	a := deriveKeys(sha256Hash, K, H, []byte("session-a"), 16, 32, 32)
	b := deriveKeys(sha256Hash, K, H, []byte("session-b"), 16, 32, 32)
	if bytes.Equal(a.KeyClientServer, b.KeyClientServer) {
		t.Fatalf("different session identifiers must yield different derived keys")
	}
}
