// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// CryptoConfig is cryptographic configuration shared by the transport and
// KEX: the name-lists that go into a KEXINIT proposal (spec §4.3, §6).
type CryptoConfig struct {
	// KeyExchanges lists the allowed key-exchange algorithms in
	// preference order. Nil selects defaultKeyExchangeOrder.
	KeyExchanges []string

	// Ciphers lists the allowed cipher algorithms in preference order,
	// applied to both directions unless CiphersC2S/CiphersS2C are set.
	// Nil selects DefaultCipherOrder.
	Ciphers []string

	// CiphersC2S and CiphersS2C override Ciphers per-direction (spec §6
	// cipher_c2s / cipher_s2c).
	CiphersC2S, CiphersS2C []string

	// MACs lists the allowed MAC algorithms in preference order. Nil
	// selects DefaultMACOrder.
	MACs []string
	MACsC2S, MACsS2C []string

	// Compressions lists the allowed compression algorithms (spec §6
	// compression_c2s / compression_s2c). Nil selects
	// supportedCompressions ("none", "zlib@openssh.com", "zlib").
	Compressions []string
	CompressionsC2S, CompressionsS2C []string

	// CompressionLevel is the deflate level, 1-9 (spec §6
	// compression_level); zero means "use the backend's default".
	CompressionLevel int

	// LanguagesC2S and LanguagesS2C are the (rarely used) KEXINIT
	// language name-lists.
	LanguagesC2S, LanguagesS2C []string
}

func (c *CryptoConfig) kexes() []string {
	if c.KeyExchanges == nil {
		return defaultKeyExchangeOrder
	}
	return c.KeyExchanges
}

func (c *CryptoConfig) ciphersC2S() []string {
	if c.CiphersC2S != nil {
		return c.CiphersC2S
	}
	if c.Ciphers != nil {
		return c.Ciphers
	}
	return DefaultCipherOrder
}

func (c *CryptoConfig) ciphersS2C() []string {
	if c.CiphersS2C != nil {
		return c.CiphersS2C
	}
	if c.Ciphers != nil {
		return c.Ciphers
	}
	return DefaultCipherOrder
}

func (c *CryptoConfig) macsC2S() []string {
	if c.MACsC2S != nil {
		return c.MACsC2S
	}
	if c.MACs != nil {
		return c.MACs
	}
	return DefaultMACOrder
}

func (c *CryptoConfig) macsS2C() []string {
	if c.MACsS2C != nil {
		return c.MACsS2C
	}
	if c.MACs != nil {
		return c.MACs
	}
	return DefaultMACOrder
}

func (c *CryptoConfig) compressionsC2S() []string {
	if c.CompressionsC2S != nil {
		return c.CompressionsC2S
	}
	if c.Compressions != nil {
		return c.Compressions
	}
	return supportedCompressions
}

func (c *CryptoConfig) compressionsS2C() []string {
	if c.CompressionsS2C != nil {
		return c.CompressionsS2C
	}
	if c.Compressions != nil {
		return c.Compressions
	}
	return supportedCompressions
}

// DefaultCipherOrder and DefaultMACOrder are the client's preference order
// absent explicit configuration. They name algorithms; whether they are
// actually usable depends on what the ClientConfig's Registry has
// registered (an unregistered name is simply never proposed as "common"
// with the server — see findCommonCipher).
var DefaultCipherOrder = []string{
	"chacha20-poly1305@openssh.com",
	"aes128-ctr", "aes192-ctr", "aes256-ctr",
	"aes128-cbc", "aes256-cbc",
	"3des-cbc", "blowfish-cbc", "arcfour128", "arcfour256",
}

var DefaultMACOrder = []string{
	"hmac-sha2-256", "hmac-sha2-512", "hmac-sha1", "hmac-sha1-96",
}

// HostKeyVerifyResult is returned by HostKeyVerifier.Verify.
type HostKeyVerifyResult struct {
	OK      bool
	Changed bool
	Unknown bool
}

// HostKeyVerifier is the collaborator spec §6 describes: consulted during
// KEX to decide whether a presented host key is trusted. The core does not
// prompt: a result with OK set is accepted, and any other result fails the
// handshake with HostKeyChanged (when Changed is set) or HostKeyRejected.
type HostKeyVerifier interface {
	Verify(host string, keyType string, keyBlob []byte) (HostKeyVerifyResult, error)
}

// AcceptAllHostKeys is a HostKeyVerifier that trusts every host key; it
// exists for tests and for callers that perform their own out-of-band
// pinning. A nil HostKeyChecker on ClientConfig behaves the same way,
// matching the teacher's original "nil HostKeyChecker accepts everything".
type AcceptAllHostKeys struct{}

func (AcceptAllHostKeys) Verify(string, string, []byte) (HostKeyVerifyResult, error) {
	return HostKeyVerifyResult{OK: true}, nil
}

// UserInterface is the collaborator spec §6 describes for interactive
// prompts during authentication and host-key verification.
type UserInterface interface {
	PromptPassword(prompt string) (secret string, ok bool)
	PromptPassphrase(prompt string) (secret string, ok bool)
	PromptYesNo(prompt string) bool
	ShowMessage(msg string)
	// PromptKeyboardInteractive is optional; a nil func field on the
	// struct implementation means keyboard-interactive prompts without
	// a registered handler fail closed (spec §4.4).
	PromptKeyboardInteractive(name, instruction string, prompts []string, echo []bool) (answers []string, ok bool)
}

// CheckHostKeyPolicy enumerates spec §6's check_host_key values.
type CheckHostKeyPolicy string

const (
	CheckHostKeyYes CheckHostKeyPolicy = "yes"
	CheckHostKeyNo  CheckHostKeyPolicy = "no"
	CheckHostKeyAsk CheckHostKeyPolicy = "ask"
)

// ClientConfig configures a ClientConn. After being passed to Dial/Client
// it must not be modified.
type ClientConfig struct {
	// Rand provides the source of entropy for key exchange and packet
	// padding. Nil uses crypto/rand.
	Rand io.Reader

	// User is the username to authenticate as.
	User string

	// Auth is a slice of ClientAuth methods, tried in order (spec §4.4);
	// only the first instance of a particular RFC 4252 method name is
	// used.
	Auth []ClientAuth

	// PreferredAuthentications overrides the order methods are tried in,
	// independent of Auth's slice order (spec §6
	// preferred_authentications); nil means "use Auth's order".
	PreferredAuthentications []string

	// HostKeyChecker validates the server's host key during KEX. A nil
	// checker accepts every host key (matches the teacher's behavior).
	HostKeyChecker HostKeyVerifier

	// CheckHostKey records the configured policy for diagnostic/prompt
	// purposes; HostKeyChecker is what actually gates the connection.
	CheckHostKey CheckHostKeyPolicy

	// UI supplies interactive prompts for auth methods and displays auth
	// banners. Nil UI makes PasswordViaUI and keyboard-interactive prompts
	// (other than the single hidden-prompt auto-fill) fail with
	// AuthCancelled rather than block. Host-key verification never
	// consults UI.
	UI UserInterface

	// Crypto is the KEXINIT algorithm-list configuration.
	Crypto CryptoConfig

	// Registry supplies concrete Cipher/Mac/Signature/Compression/Random
	// backends by name (spec §6). Nil selects sshcrypto's default
	// registry via DefaultRegistry (set by the sshcrypto package's
	// init, or explicitly by the caller).
	Registry *Registry

	// ClientVersion is the identification string sent during version
	// exchange (spec §4.2). Empty uses a reasonable default.
	ClientVersion string

	// ConnectTimeout bounds the TCP dial in Dial. The version exchange is
	// not covered by it.
	ConnectTimeout time.Duration

	// SocketTimeout is not consulted by this package: packet reads are
	// given no deadline beyond what the OS socket default provides.
	SocketTimeout time.Duration

	// ServerAliveInterval and ServerAliveCountMax configure client-side
	// keepalive global requests (spec §6 connection parameters;
	// SPEC_FULL §C).
	ServerAliveInterval time.Duration
	ServerAliveCountMax int

	// DaemonThreads, if true, marks background goroutines (the reader
	// loop, channel pumps) as not needing to be waited on for the
	// process to exit — documentation only; Go's runtime has no
	// separate "daemon thread" concept, so this is surfaced for parity
	// with spec §6 and consulted by nothing in this package.
	DaemonThreads bool

	// Log receives structured diagnostics (protocol anomalies, rekey
	// events, auth method transitions). A nil Log discards everything.
	Log logrus.FieldLogger
}

func (c *ClientConfig) rand() io.Reader {
	if c.Rand == nil {
		return rand.Reader
	}
	return c.Rand
}

func (c *ClientConfig) registry() *Registry {
	if c.Registry != nil {
		return c.Registry
	}
	return DefaultRegistry()
}

func (c *ClientConfig) logger() logrus.FieldLogger {
	if c.Log != nil {
		return c.Log
	}
	return discardLogger
}

func (c *ClientConfig) hostKeyChecker() HostKeyVerifier {
	if c.HostKeyChecker != nil {
		return c.HostKeyChecker
	}
	return AcceptAllHostKeys{}
}

// defaultRegistryHook lets the sshcrypto package register itself as the
// process-wide default without this package importing sshcrypto (which
// would create an import cycle, since sshcrypto imports ssh for the
// contracts). sshcrypto's init() calls SetDefaultRegistry.
var defaultRegistryHook *Registry

// SetDefaultRegistry installs the Registry returned by DefaultRegistry
// when a ClientConfig leaves Registry nil. Intended to be called once, by
// a backend package's init(), e.g. sshcrypto.
func SetDefaultRegistry(reg *Registry) { defaultRegistryHook = reg }

// DefaultRegistry returns the process-wide default Registry, or an empty
// one (with only "none" cipher/compression usable) if no backend package
// has called SetDefaultRegistry.
func DefaultRegistry() *Registry {
	if defaultRegistryHook != nil {
		return defaultRegistryHook
	}
	return NewRegistry()
}
