// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"
)

// defaultClientVersion is the identification string sent when
// ClientConfig.ClientVersion is empty (spec §4.2).
var defaultClientVersion = []byte("SSH-2.0-vngx-ssh")

// ClientConn is the client side of one SSH connection: a handshaken
// transport plus the connection-layer state spec §3/§5 describe (open
// channels, pending global requests, accepted forwardings).
type ClientConn struct {
	*transport
	config *ClientConfig

	chanList
	forwardList

	globalReqMu  sync.Mutex
	globalReqOut chan interface{}

	dialAddress   string
	serverVersion string

	keepaliveDone chan struct{}
}

// Client builds a ClientConn over an already-connected net.Conn and
// performs the handshake and authentication phases (spec §4, §4.4) before
// returning.
func Client(c net.Conn, config *ClientConfig) (*ClientConn, error) {
	return clientWithAddress(c, "", config)
}

// Dial connects to addr over network (as net.Dial) and returns a
// handshaken, authenticated ClientConn.
func Dial(network, addr string, config *ClientConfig) (*ClientConn, error) {
	conn, err := net.DialTimeout(network, addr, config.ConnectTimeout)
	if err != nil {
		return nil, ConnectError{Addr: addr, Err: err}
	}
	return clientWithAddress(conn, addr, config)
}

func clientWithAddress(c net.Conn, addr string, config *ClientConfig) (*ClientConn, error) {
	reg := config.registry()
	conn := &ClientConn{
		transport:    newTransport(c, config.rand(), reg),
		config:       config,
		globalReqOut: make(chan interface{}, 1),
		dialAddress:  addr,
	}

	if err := conn.handshake(); err != nil {
		conn.Close()
		return nil, err
	}

	if err := conn.authenticate(); err != nil {
		conn.Close()
		return nil, err
	}

	go conn.mainLoop()
	if config.ServerAliveInterval > 0 {
		conn.keepaliveDone = make(chan struct{})
		go conn.keepaliveLoop()
	}
	return conn, nil
}

// handshake runs the version exchange and the first key exchange (spec
// §4.2, §4.3). Subsequent key exchanges (rekeying) reuse kexOnce with the
// session identifier already fixed.
func (c *ClientConn) handshake() error {
	ident := []byte(c.config.ClientVersion)
	if len(ident) == 0 {
		ident = defaultClientVersion
	}

	var magics handshakeMagics
	magics.clientVersion = ident
	if _, err := c.transport.writeVersion(ident); err != nil {
		return err
	}

	serverVersion, err := c.transport.readVersion()
	if err != nil {
		return err
	}
	magics.serverVersion = serverVersion
	c.serverVersion = string(serverVersion)

	return c.kexOnce(&magics, nil)
}

// rekey re-runs key exchange over the live transport, per spec §4.3's
// rekey trigger. The session identifier is preserved from the first
// exchange (RFC 4253 section 7.2). serverKexInitPacket is non-nil when a
// server-initiated KEXINIT has already been read off the wire by
// mainLoop; kexOnce then skips re-reading it and treats it as the
// server's proposal.
func (c *ClientConn) rekey(serverKexInitPacket []byte) error {
	var magics handshakeMagics
	magics.clientVersion = []byte(c.config.ClientVersion)
	if len(magics.clientVersion) == 0 {
		magics.clientVersion = defaultClientVersion
	}
	magics.serverVersion = []byte(c.serverVersion)
	return c.kexOnce(&magics, serverKexInitPacket)
}

// kexOnce performs one key exchange: KEXINIT exchange, algorithm
// agreement, the chosen kexAlgorithm, host key verification, and the
// NEWKEYS barrier that activates new keys in both directions. Called once
// from handshake and again from rekey. If serverKexInitPacket is non-nil
// it is used as the server's KEXINIT instead of reading one, for the
// server-initiated rekey path where mainLoop has already read it off the
// wire while routing the message.
func (c *ClientConn) kexOnce(magics *handshakeMagics, serverKexInitPacket []byte) error {
	crypto := &c.config.Crypto
	clientKexInit := kexInitMsg{
		KexAlgos:                crypto.kexes(),
		ServerHostKeyAlgos:      supportedHostKeyAlgos,
		CiphersClientServer:     crypto.ciphersC2S(),
		CiphersServerClient:     crypto.ciphersS2C(),
		MACsClientServer:        crypto.macsC2S(),
		MACsServerClient:        crypto.macsS2C(),
		CompressionClientServer: crypto.compressionsC2S(),
		CompressionServerClient: crypto.compressionsS2C(),
		LanguagesClientServer:   crypto.LanguagesC2S,
		LanguagesServerClient:   crypto.LanguagesS2C,
	}
	if _, err := c.rand().Read(clientKexInit.Cookie[:]); err != nil {
		return err
	}

	kexInitPacket := marshal(msgKexInit, clientKexInit)
	magics.clientKexInit = kexInitPacket
	if err := c.writePacket(kexInitPacket); err != nil {
		return err
	}

	packet := serverKexInitPacket
	if packet == nil {
		p, err := c.readPacket()
		if err != nil {
			return err
		}
		packet = p
	}
	magics.serverKexInit = packet

	var serverKexInit kexInitMsg
	if err := unmarshal(&serverKexInit, packet, msgKexInit); err != nil {
		return err
	}

	reg := c.config.registry()
	proposal, err := findAgreedAlgorithms(reg, &clientKexInit, &serverKexInit)
	if err != nil {
		return err
	}

	if serverKexInit.FirstKexFollows && proposal.kex != serverKexInit.KexAlgos[0] {
		// The server optimistically sent a KEX packet guessing an
		// algorithm we didn't pick; RFC 4253 7.1 says to discard it.
		if _, err := c.readPacket(); err != nil {
			return err
		}
	}

	kexAlgo, err := newKexAlgorithm(proposal.kex)
	if err != nil {
		return err
	}

	result, err := kexAlgo.Client(c.transport, c.rand(), magics)
	if err != nil {
		return err
	}

	hostKey, err := verifyHostKeySignature(reg, proposal.hostKey, result.HostKey, result.H, result.Signature)
	if err != nil {
		return err
	}

	verdict, err := c.config.hostKeyChecker().Verify(c.hostForVerify(), hostKey.PublicKeyAlgo(), hostKey.Marshal())
	if err != nil {
		return err
	}
	if !verdict.OK {
		if verdict.Changed {
			return HostKeyChanged{Host: c.hostForVerify()}
		}
		return HostKeyRejected{Host: c.hostForVerify()}
	}

	if c.sessionID == nil {
		c.sessionID = result.H
	}

	if err := c.writePacket([]byte{msgNewKeys}); err != nil {
		return err
	}
	if err := c.activateKeys(dirClientToServer, proposal, result, reg); err != nil {
		return err
	}

	packet, err = c.readPacket()
	if err != nil {
		return err
	}
	if len(packet) == 0 || packet[0] != msgNewKeys {
		got := byte(0)
		if len(packet) > 0 {
			got = packet[0]
		}
		return UnexpectedMessageError{expected: msgNewKeys, got: got}
	}
	return c.activateKeys(dirServerToClient, proposal, result, reg)
}

func (c *ClientConn) hostForVerify() string {
	if c.dialAddress != "" {
		return c.dialAddress
	}
	return c.transport.RemoteAddr().String()
}

// activateKeys derives and installs the key material for one direction
// after NEWKEYS (spec §4.3's key schedule: deriveKeys + setupCipherDirection).
func (c *ClientConn) activateKeys(dir direction, proposal *algorithmProposal, result *kexResult, reg *Registry) error {
	cipherName := proposal.cipherClientServer
	macName := proposal.macClientServer
	compressName := proposal.compressClientServer
	if dir == dirServerToClient {
		cipherName = proposal.cipherServerClient
		macName = proposal.macServerClient
		compressName = proposal.compressServerClient
	}

	keySize, ivSize := cipherKeyIVSize(cipherName)
	macKeySize := 0
	if f, ok := macKeySizes[macName]; ok {
		macKeySize = f
	}

	hashFn := kexHashForKeys(proposal.kex)
	keys := deriveKeys(hashFn, result.K, result.H, c.sessionID, ivSize, keySize, macKeySize)

	var key, iv, macKey []byte
	if dir == dirClientToServer {
		key, iv, macKey = keys.KeyClientServer, keys.IVClientServer, keys.MACKeyClientServer
	} else {
		key, iv, macKey = keys.KeyServerClient, keys.IVServerClient, keys.MACKeyServerClient
	}

	cipher, mac, compress, err := setupCipherDirection(reg, dir, cipherName, macName, compressName, key, iv, macKey, c.config.Crypto.CompressionLevel)
	if err != nil {
		return err
	}

	if dir == dirClientToServer {
		c.transport.writeSt.reset(cipher, mac, compress)
	} else {
		c.transport.readSt.reset(cipher, mac, compress)
	}
	return nil
}

// macKeySizes gives the key length a named MAC algorithm requires; used
// to size deriveKeys' output before the Registry builds the concrete Mac.
var macKeySizes = map[string]int{
	"hmac-sha1":     20,
	"hmac-sha1-96":  20,
	"hmac-sha2-256": 32,
	"hmac-sha2-512": 64,
	"none":          0,
}

func kexHashForKeys(kexAlgo string) func() crypto.Hash {
	switch kexAlgo {
	case kexAlgoDH1SHA1, kexAlgoDH14SHA1, kexAlgoDHGEXSHA1:
		return func() crypto.Hash { return crypto.SHA1 }
	case kexAlgoDHGEXSHA256, kexAlgoCurve25519, kexAlgoCurve25519LC:
		return func() crypto.Hash { return crypto.SHA256 }
	case kexAlgoECDH256:
		return func() crypto.Hash { return crypto.SHA256 }
	case kexAlgoECDH384:
		return func() crypto.Hash { return crypto.SHA384 }
	case kexAlgoECDH521:
		return func() crypto.Hash { return crypto.SHA512 }
	}
	return func() crypto.Hash { return crypto.SHA256 }
}

// mainLoop reads incoming packets and routes them to channels, global
// requests, or triggers a rekey, until the transport closes (spec §4,
// §5 dispatch).
func (c *ClientConn) mainLoop() {
	log := c.config.logger()
	defer func() {
		c.Close()
		c.chanList.closeAll()
		c.forwardList.closeAll()
		if c.keepaliveDone != nil {
			close(c.keepaliveDone)
		}
	}()

	for {
		if c.transport.readSt.needsRekey() || c.transport.writeSt.needsRekey() {
			if err := c.rekey(nil); err != nil {
				log.WithError(err).Warn("rekey failed")
				return
			}
		}

		packet, err := c.readPacket()
		if err != nil {
			return
		}

		switch packet[0] {
		case msgChannelData:
			if len(packet) < 9 {
				return
			}
			remoteId := binary.BigEndian.Uint32(packet[1:5])
			length := binary.BigEndian.Uint32(packet[5:9])
			data := packet[9:]
			if length != uint32(len(data)) {
				return
			}
			ch, ok := c.getChan(remoteId)
			if !ok {
				continue
			}
			ch.handleData(data)
			continue
		case msgChannelExtendedData:
			if len(packet) < 13 {
				return
			}
			remoteId := binary.BigEndian.Uint32(packet[1:5])
			datatype := binary.BigEndian.Uint32(packet[5:9])
			length := binary.BigEndian.Uint32(packet[9:13])
			data := packet[13:]
			if length != uint32(len(data)) {
				return
			}
			if datatype == extendedDataStderr {
				ch, ok := c.getChan(remoteId)
				if ok {
					ch.handleExtendedData(data)
				}
			}
			continue
		}

		decoded, err := decode(packet)
		if err != nil {
			if _, ok := err.(UnexpectedMessageError); ok {
				log.WithError(err).Debug("mainLoop: unexpected message")
				continue
			}
			return
		}

		switch msg := decoded.(type) {
		case *channelOpenMsg:
			c.handleChanOpen(msg)
		case *channelOpenConfirmMsg:
			if ch, ok := c.getChan(msg.PeersId); ok {
				ch.msg <- msg
			}
		case *channelOpenFailureMsg:
			if ch, ok := c.getChan(msg.PeersId); ok {
				ch.msg <- msg
			}
		case *channelCloseMsg:
			if ch, ok := c.getChan(msg.PeersId); ok {
				ch.handleClose()
			}
		case *channelEOFMsg:
			if ch, ok := c.getChan(msg.PeersId); ok {
				ch.handleEOF()
			}
		case *channelRequestSuccessMsg:
			if ch, ok := c.getChan(msg.PeersId); ok {
				ch.msg <- msg
			}
		case *channelRequestFailureMsg:
			if ch, ok := c.getChan(msg.PeersId); ok {
				ch.msg <- msg
			}
		case *channelRequestMsg:
			if ch, ok := c.getChan(msg.PeersId); ok {
				ch.handleRequest(msg)
			}
		case *windowAdjustMsg:
			if ch, ok := c.getChan(msg.PeersId); ok {
				if !ch.remoteWin.add(msg.AdditionalBytes) {
					return
				}
			}
		case *globalRequestMsg:
			c.handleGlobalRequest(msg)
		case *globalRequestSuccessMsg, *globalRequestFailureMsg:
			select {
			case c.globalReqOut <- msg:
			default:
			}
		case *disconnectMsg:
			log.WithField("reason", msg.Reason).Info("peer disconnected")
			return
		case *kexInitMsg:
			if err := c.rekey(packet); err != nil {
				log.WithError(err).Warn("rekey failed")
				return
			}
		default:
			log.WithField("type", fmt.Sprintf("%T", msg)).Debug("mainLoop: unhandled message")
		}
	}
}

const extendedDataStderr = 1

// sendGlobalRequest sends a global request (spec §3 Global Request) and
// waits for the peer's reply, serialized by globalReqMu so replies can't
// be attributed to the wrong request.
func (c *ClientConn) sendGlobalRequest(name string, wantReply bool, data []byte) (*globalRequestSuccessMsg, error) {
	c.globalReqMu.Lock()
	defer c.globalReqMu.Unlock()

	m := globalRequestMsg{Type: name, WantReply: wantReply, Data: data}
	if err := c.writePacket(marshal(msgGlobalRequest, m)); err != nil {
		return nil, err
	}
	if !wantReply {
		return nil, nil
	}
	reply := <-c.globalReqOut
	if r, ok := reply.(*globalRequestSuccessMsg); ok {
		return r, nil
	}
	return nil, ChannelError{Reason: AdministrativelyProhibited, Message: "global request refused"}
}

// handleGlobalRequest answers unsolicited global requests from the
// server. keepalive@openssh.com probes (SPEC_FULL §C) are replied to like
// any other unrecognised request: with failure if a reply was requested,
// silence otherwise, matching OpenSSH client behaviour.
func (c *ClientConn) handleGlobalRequest(msg *globalRequestMsg) {
	if msg.WantReply {
		c.writePacket(marshal(msgRequestFailure, globalRequestFailureMsg{}))
	}
}

func (c *ClientConn) keepaliveLoop() {
	interval := c.config.ServerAliveInterval
	failures := 0
	maxFailures := c.config.ServerAliveCountMax
	if maxFailures <= 0 {
		maxFailures = 3
	}
	for {
		select {
		case <-c.keepaliveDone:
			return
		case <-time.After(interval):
		}
		_, err := c.sendGlobalRequest("keepalive@openssh.com", true, nil)
		if err != nil {
			failures++
			if failures >= maxFailures {
				c.Close()
				return
			}
			continue
		}
		failures = 0
	}
}
