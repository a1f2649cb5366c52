// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import "io"

// This file implements the user authentication layer of spec §4.4: the
// ClientAuth driver loop and the five RFC 4252/4256/4462 methods it can
// try (none, password, publickey, keyboard-interactive,
// gssapi-with-mic). Grounded on the teacher's buildDataSignedForAuth
// (kept in common.go) and its general "each method is a small strategy
// object the driver tries in turn" shape.

const maxAuthAttempts = 20
const maxPasswordAttempts = 5

// Signer produces an RFC 4253 6.6 signature over data using a private
// key, without this package ever touching the private key bytes itself:
// implementations typically wrap a Registry Signature backend
// (SetPrivateKey once, Sign per challenge).
type Signer interface {
	PublicKey() PublicKey
	Sign(rand io.Reader, data []byte) ([]byte, error)
}

// registrySigner adapts a Registry-provided Signature backend, already
// configured with a private key, into a Signer.
type registrySigner struct {
	pub     PublicKey
	backend Signature
}

// NewSigner builds a Signer from a parsed public key and the matching
// private key blob, resolving the concrete Signature implementation from
// reg by pub.PrivateKeyAlgo().
func NewSigner(reg *Registry, pub PublicKey, privateKeyBlob []byte) (Signer, error) {
	backend, err := reg.signature(pub.PrivateKeyAlgo())
	if err != nil {
		return nil, err
	}
	if err := backend.SetPrivateKey(privateKeyBlob); err != nil {
		return nil, err
	}
	return &registrySigner{pub: pub, backend: backend}, nil
}

func (s *registrySigner) PublicKey() PublicKey { return s.pub }

func (s *registrySigner) Sign(rand io.Reader, data []byte) ([]byte, error) {
	return s.backend.Sign(data)
}

// authResult is the outcome ClientAuth.auth reports for one attempted
// method, driving whether the loop moves to the next method or stops.
type authResult int

const (
	authFailure authResult = iota
	authPartialSuccess
	authSuccess
)

// ClientAuth is one user-authentication method the client driver can try
// (spec §4.4). Each value is tried at most once per connection.
type ClientAuth interface {
	method() string
	auth(sessionID []byte, user string, c *ClientConn) (authResult, []string, error)
}

// authenticate drives the configured ClientAuth methods against the
// server in order (or PreferredAuthentications order, if set), stopping
// at the first authSuccess and returning AuthFailed if every method is
// exhausted without one (spec §4.4).
func (c *ClientConn) authenticate() error {
	if err := c.writePacket(marshal(msgServiceRequest, serviceRequestMsg{Service: serviceUserAuth})); err != nil {
		return err
	}
	packet, err := c.readPacket()
	if err != nil {
		return err
	}
	var accept serviceAcceptMsg
	if err := unmarshal(&accept, packet, msgServiceAccept); err != nil {
		return err
	}

	methods := reorderMethods(c.config.Auth, c.config.PreferredAuthentications)

	var tried []string
	var lastErr error
	for attempt := 0; attempt < maxAuthAttempts && len(methods) > 0; attempt++ {
		m := methods[0]
		methods = methods[1:]
		tried = append(tried, m.method())

		result, continueMethods, err := m.auth(c.sessionID, c.config.User, c)
		if err != nil {
			lastErr = err
			continue
		}
		switch result {
		case authSuccess:
			return nil
		case authPartialSuccess:
			lastErr = PartialAuth{Methods: continueMethods}
		case authFailure:
			lastErr = AuthFailed{Methods: tried}
		}
		if continueMethods != nil {
			methods = filterMethods(methods, continueMethods)
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return AuthFailed{Methods: tried}
}

func reorderMethods(methods []ClientAuth, order []string) []ClientAuth {
	byName := make(map[string]ClientAuth, len(methods))
	for _, m := range methods {
		if _, exists := byName[m.method()]; !exists {
			byName[m.method()] = m
		}
	}
	out := make([]ClientAuth, 0, len(methods))
	seen := make(map[string]bool, len(methods))
	for _, name := range order {
		if m, ok := byName[name]; ok && !seen[name] {
			out = append(out, m)
			seen[name] = true
		}
	}
	for _, m := range methods {
		if !seen[m.method()] {
			out = append(out, m)
			seen[m.method()] = true
		}
	}
	return out
}

func filterMethods(methods []ClientAuth, allowed []string) []ClientAuth {
	allow := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		allow[a] = true
	}
	out := methods[:0:0]
	for _, m := range methods {
		if allow[m.method()] {
			out = append(out, m)
		}
	}
	return out
}

func sendAuthRequest(c *ClientConn, user, method string, payload []byte) error {
	m := userAuthRequestMsg{User: user, Service: serviceSSH, Method: method, Payload: payload}
	return c.writePacket(marshal(msgUserAuthRequest, m))
}

// --- "none" (RFC 4252 section 5.2) ---

type noneAuth struct{}

// AuthNone tries the "none" method, useful only to discover the server's
// acceptable method list (the usual first probe per spec §4.4).
func AuthNone() ClientAuth { return noneAuth{} }

func (noneAuth) method() string { return "none" }

func (noneAuth) auth(sessionID []byte, user string, c *ClientConn) (authResult, []string, error) {
	if err := sendAuthRequest(c, user, "none", nil); err != nil {
		return authFailure, nil, err
	}
	return readAuthReply(c)
}

// --- password (RFC 4252 section 8) ---

type passwordAuth struct {
	password string
	fromUI   bool
}

// Password authenticates with a fixed password.
func Password(password string) ClientAuth { return passwordAuth{password: password} }

// PasswordViaUI authenticates by prompting ClientConfig.UI for the
// password, once per attempt, so a rejected attempt re-prompts (up to
// maxPasswordAttempts). A PASSWD_CHANGEREQ reply is not handled: it ends
// the method with an UnexpectedMessageError.
func PasswordViaUI() ClientAuth { return passwordAuth{fromUI: true} }

func (passwordAuth) method() string { return "password" }

func (p passwordAuth) auth(sessionID []byte, user string, c *ClientConn) (authResult, []string, error) {
	password := p.password
	for attempt := 0; attempt < maxPasswordAttempts; attempt++ {
		if p.fromUI {
			if c.config.UI == nil {
				return authFailure, nil, AuthCancelled{}
			}
			pw, ok := c.config.UI.PromptPassword("Password: ")
			if !ok {
				return authFailure, nil, AuthCancelled{}
			}
			password = pw
		}

		payload := appendBoolByte(nil, false)
		payload = appendStringField(payload, password)
		if err := sendAuthRequest(c, user, "password", payload); err != nil {
			return authFailure, nil, err
		}

		result, methods, err := readAuthReply(c)
		if err != nil {
			return authFailure, nil, err
		}
		if result != authFailure {
			return result, methods, nil
		}
		if !p.fromUI {
			return authFailure, methods, nil
		}
		// fall through: re-prompt, consuming another attempt
	}
	return authFailure, nil, AuthFailed{Methods: []string{"password"}}
}

// --- publickey (RFC 4252 section 7) ---

type publicKeyAuth struct {
	signers []Signer
}

// PublicKey authenticates by proving possession of each signer in turn,
// probing first (spec §4.4's two-phase flow) so an unacceptable key
// never costs a signature.
func PublicKey(signers ...Signer) ClientAuth { return publicKeyAuth{signers: signers} }

func (publicKeyAuth) method() string { return "publickey" }

func (p publicKeyAuth) auth(sessionID []byte, user string, c *ClientConn) (authResult, []string, error) {
	var lastMethods []string
	for _, signer := range p.signers {
		pub := signer.PublicKey()
		algo := pub.PrivateKeyAlgo()
		blob := MarshalPublicKey(pub)

		probe := appendBoolByte(nil, false)
		probe = appendStringField(probe, algo)
		probe = appendStringField(probe, string(blob))
		if err := sendAuthRequest(c, user, "publickey", probe); err != nil {
			return authFailure, nil, err
		}
		packet, err := readNonBannerPacket(c)
		if err != nil {
			return authFailure, nil, err
		}
		if packet[0] != msgUserAuthPubKeyOK {
			result, methods, err := interpretAuthPacket(packet)
			lastMethods = methods
			if err != nil || result != authFailure {
				return result, methods, err
			}
			continue
		}

		req := userAuthRequestMsg{User: user, Service: serviceSSH, Method: "publickey"}
		toSign := buildDataSignedForAuth(sessionID, req, []byte(algo), blob)
		sig, err := signer.Sign(c.config.rand(), toSign)
		if err != nil {
			return authFailure, nil, err
		}
		sigBlob := serializeSignature(algo, sig)

		payload := appendBoolByte(nil, true)
		payload = appendStringField(payload, algo)
		payload = appendStringField(payload, string(blob))
		payload = appendStringField(payload, string(sigBlob))
		if err := sendAuthRequest(c, user, "publickey", payload); err != nil {
			return authFailure, nil, err
		}
		result, methods, err := readAuthReply(c)
		lastMethods = methods
		if err != nil || result != authFailure {
			return result, methods, err
		}
	}
	return authFailure, lastMethods, nil
}

// --- keyboard-interactive (RFC 4256) ---

type keyboardInteractiveAuth struct{}

// KeyboardInteractive drives INFO_REQUEST/INFO_RESPONSE rounds through
// ClientConfig.UI.PromptKeyboardInteractive, falling back to a
// single-password auto-fill (spec §4.4) when UI has none registered and
// exactly one hidden (echo off) prompt is asked for.
func KeyboardInteractive() ClientAuth { return keyboardInteractiveAuth{} }

func (keyboardInteractiveAuth) method() string { return "keyboard-interactive" }

func (keyboardInteractiveAuth) auth(sessionID []byte, user string, c *ClientConn) (authResult, []string, error) {
	payload := appendStringField(nil, "") // language tag, RFC 4256 3.1
	payload = appendStringField(payload, "")
	if err := sendAuthRequest(c, user, "keyboard-interactive", payload); err != nil {
		return authFailure, nil, err
	}

	for {
		packet, err := readNonBannerPacket(c)
		if err != nil {
			return authFailure, nil, err
		}
		if packet[0] != msgUserAuthInfoRequest {
			return interpretAuthPacket(packet)
		}
		var req userAuthInfoRequestMsg
		if err := unmarshal(&req, packet, msgUserAuthInfoRequest); err != nil {
			return authFailure, nil, err
		}
		prompts, echos, ok := parseKeyboardPrompts(req.Prompts, req.NumPrompts)
		if !ok {
			return authFailure, nil, ProtocolError{Message: "malformed keyboard-interactive prompts"}
		}

		var answers []string
		if c.config.UI != nil {
			answers, ok = c.config.UI.PromptKeyboardInteractive(req.Name, req.Instruction, prompts, echos)
			if !ok {
				return authFailure, nil, AuthCancelled{}
			}
		} else if len(prompts) == 1 && !echos[0] {
			// Password auto-fill heuristic: a lone hidden
			// prompt from keyboard-interactive is, in practice, almost
			// always "Password:".
			pw, ok := firstPasswordAuth(c.config.Auth)
			if !ok {
				return authFailure, nil, AuthCancelled{}
			}
			answers = []string{pw}
		} else {
			return authFailure, nil, AuthCancelled{}
		}

		respPayload := make([]byte, 0, 64)
		var b [4]byte
		marshalUint32(b[:], uint32(len(answers)))
		respPayload = append(respPayload, b[:]...)
		for _, a := range answers {
			respPayload = appendStringField(respPayload, a)
		}
		if err := c.writePacket(marshal(msgUserAuthInfoResponse, userAuthInfoResponseMsg{NumResponses: uint32(len(answers)), Responses: respPayload[4:]})); err != nil {
			return authFailure, nil, err
		}
	}
}

func firstPasswordAuth(methods []ClientAuth) (string, bool) {
	for _, m := range methods {
		if p, ok := m.(passwordAuth); ok && !p.fromUI {
			return p.password, true
		}
	}
	return "", false
}

func parseKeyboardPrompts(data []byte, n uint32) (prompts []string, echos []bool, ok bool) {
	rest := data
	for i := uint32(0); i < n; i++ {
		var s []byte
		s, rest, ok = parseString(rest)
		if !ok {
			return nil, nil, false
		}
		prompts = append(prompts, string(s))
		var echo bool
		echo, rest, ok = parseBool(rest)
		if !ok {
			return nil, nil, false
		}
		echos = append(echos, echo)
	}
	return prompts, echos, true
}

// --- gssapi-with-mic (RFC 4462) ---

// GSSAPIClient abstracts the subset of a GSS-API mechanism a caller
// links in (e.g. Kerberos via an external library): init_sec_context and
// per-message integrity codes. This package never implements GSS-API
// itself; it only drives the RFC 4462 wire exchange around an
// implementation the caller supplies.
type GSSAPIClient interface {
	OIDs() [][]byte
	InitSecContext(target string, token []byte, isInitial bool) (outputToken []byte, needsContinue bool, err error)
	GetMIC(sessionID []byte, user, service, method string) ([]byte, error)
}

type gssapiAuth struct {
	client GSSAPIClient
	target string
}

// GSSAPIWithMIC authenticates via RFC 4462, delegating the mechanism
// negotiation and context establishment to client.
func GSSAPIWithMIC(client GSSAPIClient, target string) ClientAuth {
	return gssapiAuth{client: client, target: target}
}

func (gssapiAuth) method() string { return "gssapi-with-mic" }

func (g gssapiAuth) auth(sessionID []byte, user string, c *ClientConn) (authResult, []string, error) {
	oids := g.client.OIDs()
	payload := make([]byte, 0, 16)
	var n [4]byte
	marshalUint32(n[:], uint32(len(oids)))
	payload = append(payload, n[:]...)
	for _, oid := range oids {
		payload = appendStringField(payload, string(oid))
	}
	if err := sendAuthRequest(c, user, "gssapi-with-mic", payload); err != nil {
		return authFailure, nil, err
	}

	packet, err := readNonBannerPacket(c)
	if err != nil {
		return authFailure, nil, err
	}
	if packet[0] != msgUserAuthGSSAPIResponse {
		return interpretAuthPacket(packet)
	}
	_, rest, ok := parseString(packet[1:])
	if !ok {
		return authFailure, nil, ProtocolError{Message: "malformed gssapi response"}
	}
	_ = rest

	var token []byte
	isInitial := true
	for {
		out, needsContinue, err := g.client.InitSecContext(g.target, token, isInitial)
		isInitial = false
		if err != nil {
			return authFailure, nil, err
		}
		if err := c.writePacket(marshal(msgUserAuthGSSAPIToken, struct {
			Token string `sshtype:"61"`
		}{string(out)})); err != nil {
			return authFailure, nil, err
		}
		if !needsContinue {
			break
		}
		packet, err := readNonBannerPacket(c)
		if err != nil {
			return authFailure, nil, err
		}
		switch packet[0] {
		case msgUserAuthGSSAPIToken:
			var tok struct {
				Token string `sshtype:"61"`
			}
			if err := unmarshal(&tok, packet, msgUserAuthGSSAPIToken); err != nil {
				return authFailure, nil, err
			}
			token = []byte(tok.Token)
		case msgUserAuthGSSAPIErrTok, msgUserAuthGSSAPIError:
			return authFailure, nil, ProtocolError{Message: "gssapi mechanism error"}
		default:
			return interpretAuthPacket(packet)
		}
	}

	mic, err := g.client.GetMIC(sessionID, user, serviceSSH, "gssapi-with-mic")
	if err != nil {
		return authFailure, nil, err
	}
	if err := c.writePacket(marshal(msgUserAuthGSSAPIMIC, struct {
		MIC string `sshtype:"66"`
	}{string(mic)})); err != nil {
		return authFailure, nil, err
	}
	return readAuthReply(c)
}

// --- shared reply handling ---

// readNonBannerPacket reads packets off the wire, displaying and discarding
// any SSH_MSG_USERAUTH_BANNER along the way (spec §4.4/§7: a banner may
// arrive at any time before SUCCESS and must be displayed, not treated as a
// failure), and returns the first packet that isn't one.
func readNonBannerPacket(c *ClientConn) ([]byte, error) {
	for {
		packet, err := c.readPacket()
		if err != nil {
			return nil, err
		}
		if packet[0] != msgUserAuthBanner {
			return packet, nil
		}
		var banner userAuthBannerMsg
		if err := unmarshal(&banner, packet, msgUserAuthBanner); err != nil {
			return nil, err
		}
		if ui := c.config.UI; ui != nil {
			ui.ShowMessage(safeString(banner.Message))
		}
	}
}

// readAuthReply reads the reply to an authentication attempt, skipping any
// banners along the way.
func readAuthReply(c *ClientConn) (authResult, []string, error) {
	packet, err := readNonBannerPacket(c)
	if err != nil {
		return authFailure, nil, err
	}
	return interpretAuthPacket(packet)
}

func interpretAuthPacket(packet []byte) (authResult, []string, error) {
	switch packet[0] {
	case msgUserAuthSuccess:
		return authSuccess, nil, nil
	case msgUserAuthFailure:
		var fail userAuthFailureMsg
		if err := unmarshal(&fail, packet, msgUserAuthFailure); err != nil {
			return authFailure, nil, err
		}
		if fail.PartialSuccess {
			return authPartialSuccess, fail.Methods, nil
		}
		return authFailure, fail.Methods, nil
	default:
		return authFailure, nil, UnexpectedMessageError{expected: msgUserAuthFailure, got: packet[0]}
	}
}
