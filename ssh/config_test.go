// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/rand"
	"reflect"
	"testing"
)

func TestCryptoConfigDefaults(t *testing.T) {
	var c CryptoConfig
	if !reflect.DeepEqual(c.kexes(), defaultKeyExchangeOrder) {
		t.Fatalf("kexes() did not fall back to defaultKeyExchangeOrder")
	}
	if !reflect.DeepEqual(c.ciphersC2S(), DefaultCipherOrder) {
		t.Fatalf("ciphersC2S() did not fall back to DefaultCipherOrder")
	}
	if !reflect.DeepEqual(c.macsC2S(), DefaultMACOrder) {
		t.Fatalf("macsC2S() did not fall back to DefaultMACOrder")
	}
	if !reflect.DeepEqual(c.compressionsC2S(), supportedCompressions) {
		t.Fatalf("compressionsC2S() did not fall back to supportedCompressions")
	}
}

func TestCryptoConfigDirectionOverridesWin(t *testing.T) {
	c := CryptoConfig{
		Ciphers:    []string{"aes128-cbc"},
		CiphersC2S: []string{"aes256-ctr"},
	}
	if got := c.ciphersC2S(); len(got) != 1 || got[0] != "aes256-ctr" {
		t.Fatalf("ciphersC2S() = %v, want [aes256-ctr] (direction override must win over Ciphers)", got)
	}
	if got := c.ciphersS2C(); len(got) != 1 || got[0] != "aes128-cbc" {
		t.Fatalf("ciphersS2C() = %v, want [aes128-cbc] (falls back to shared Ciphers)", got)
	}
}

func TestClientConfigRandDefault(t *testing.T) {
	var c ClientConfig
	if c.rand() != rand.Reader {
		t.Fatalf("rand() did not default to crypto/rand.Reader")
	}
}

func TestClientConfigRandOverride(t *testing.T) {
	custom := new(zeroReader)
	c := ClientConfig{Rand: custom}
	if c.rand() != custom {
		t.Fatalf("rand() did not return the configured Rand")
	}
}

type zeroReader struct{}

func (*zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestClientConfigLoggerDefault(t *testing.T) {
	var c ClientConfig
	if c.logger() != discardLogger {
		t.Fatalf("logger() did not default to discardLogger")
	}
}

func TestClientConfigRegistryDefault(t *testing.T) {
	var c ClientConfig
	if c.registry() == nil {
		t.Fatalf("registry() returned nil")
	}
}

func TestClientConfigRegistryOverride(t *testing.T) {
	reg := NewRegistry()
	c := ClientConfig{Registry: reg}
	if c.registry() != reg {
		t.Fatalf("registry() did not return the configured Registry")
	}
}

func TestClientConfigHostKeyCheckerDefault(t *testing.T) {
	var c ClientConfig
	checker := c.hostKeyChecker()
	if _, ok := checker.(AcceptAllHostKeys); !ok {
		t.Fatalf("hostKeyChecker() default = %T, want AcceptAllHostKeys", checker)
	}
	result, err := checker.Verify("example.com", hostAlgoED25519, nil)
	if err != nil || !result.OK {
		t.Fatalf("AcceptAllHostKeys.Verify = %+v, %v; want OK=true, nil", result, err)
	}
}

func TestDefaultRegistryWithoutHook(t *testing.T) {
	saved := defaultRegistryHook
	defaultRegistryHook = nil
	defer func() { defaultRegistryHook = saved }()

	reg := DefaultRegistry()
	if reg == nil {
		t.Fatalf("DefaultRegistry() returned nil")
	}
	if reg.hasCipher("aes128-ctr") {
		t.Fatalf("expected an empty fallback registry with no ciphers registered")
	}
}

func TestSetDefaultRegistry(t *testing.T) {
	saved := defaultRegistryHook
	defer func() { defaultRegistryHook = saved }()

	reg := NewRegistry()
	SetDefaultRegistry(reg)
	if DefaultRegistry() != reg {
		t.Fatalf("DefaultRegistry() did not return the registry set by SetDefaultRegistry")
	}
}
