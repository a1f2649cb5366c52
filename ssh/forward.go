// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"fmt"
	"net"
	"sync"
)

// This file implements the server-initiated side of connection-layer
// channels spec §3 describes: accepting forwarded-tcpip connections this
// client asked the server to forward back to it, and refusing any other
// unsolicited channel type, per RFC 4254 section 7.2's "implementations
// MUST reject spurious incoming connections."

// Forward is a remote TCP/IP forwarding registered via ListenTCP:
// connections the server accepts on raddr are handed back as new
// forwarded-tcpip channels, paired with the originator's address.
type Forward struct {
	Channel *Channel
	Raddr   *net.TCPAddr
}

// forwardList tracks addresses this client has asked the server to
// forward (via tcpip-forward global requests), keyed by the local
// address we asked the server to bind.
type forwardList struct {
	sync.Mutex
	entries map[string]chan Forward
}

func (f *forwardList) ensure() {
	if f.entries == nil {
		f.entries = make(map[string]chan Forward)
	}
}

func (f *forwardList) add(laddr net.TCPAddr) chan Forward {
	f.Lock()
	defer f.Unlock()
	f.ensure()
	ch := make(chan Forward, 1)
	f.entries[laddr.String()] = ch
	return ch
}

func (f *forwardList) lookup(laddr net.TCPAddr) (chan Forward, bool) {
	f.Lock()
	defer f.Unlock()
	f.ensure()
	ch, ok := f.entries[laddr.String()]
	return ch, ok
}

func (f *forwardList) remove(laddr net.TCPAddr) {
	f.Lock()
	defer f.Unlock()
	f.ensure()
	delete(f.entries, laddr.String())
}

func (f *forwardList) closeAll() {
	f.Lock()
	defer f.Unlock()
	f.ensure()
	for _, ch := range f.entries {
		close(ch)
	}
	f.entries = make(map[string]chan Forward)
}

// ListenTCP asks the server to forward connections it accepts on laddr
// back to this client (RFC 4254 section 7.1, "tcpip-forward"). Accept
// pulls the resulting Forward values off the returned channel.
func (c *ClientConn) ListenTCP(laddr *net.TCPAddr) (<-chan Forward, error) {
	m := tcpipForwardRequest{Addr: laddr.IP.String(), Port: uint32(laddr.Port)}
	payload := marshalStruct(nil, m)
	reply, err := c.sendGlobalRequest("tcpip-forward", true, payload)
	if err != nil {
		return nil, err
	}
	if laddr.Port == 0 && reply != nil && len(reply.Data) >= 4 {
		var r tcpipForwardReply
		if err := unmarshalStruct(&r, reply.Data); err == nil {
			laddr.Port = int(r.Port)
		}
	}
	return c.forwardList.add(*laddr), nil
}

// StopListenTCP cancels a forwarding previously registered with
// ListenTCP.
func (c *ClientConn) StopListenTCP(laddr *net.TCPAddr) error {
	m := tcpipForwardRequest{Addr: laddr.IP.String(), Port: uint32(laddr.Port)}
	payload := marshalStruct(nil, m)
	if _, err := c.sendGlobalRequest("cancel-tcpip-forward", true, payload); err != nil {
		return err
	}
	c.forwardList.remove(*laddr)
	return nil
}

// handleChanOpen handles a CHANNEL_OPEN from the server: forwarded-tcpip
// is accepted if a matching ListenTCP registration exists, everything
// else is refused.
func (c *ClientConn) handleChanOpen(msg *channelOpenMsg) {
	if msg.MaxPacketSize < minPacketLength || msg.MaxPacketSize > 1<<31 {
		c.sendConnectionFailed(msg.PeersId, "invalid max packet size")
		return
	}

	switch msg.ChanType {
	case "forwarded-tcpip":
		laddr, rest, ok := parseForwardAddr(msg.TypeSpecificData)
		if !ok {
			c.sendConnectionFailed(msg.PeersId, "malformed forwarded-tcpip open")
			return
		}
		ch, ok := c.forwardList.lookup(*laddr)
		if !ok {
			c.config.logger().WithField("addr", laddr).Warn("no listener for forwarded-tcpip")
			c.sendConnectionFailed(msg.PeersId, "no such forward")
			return
		}
		raddr, _, ok := parseForwardAddr(rest)
		if !ok {
			c.sendConnectionFailed(msg.PeersId, "malformed originator address")
			return
		}

		channel := c.chanList.newChan(c)
		channel.chanType = msg.ChanType
		channel.remoteId = msg.PeersId
		channel.remoteWin.add(msg.PeersWindow)
		channel.maxPacket = msg.MaxPacketSize

		confirm := channelOpenConfirmMsg{
			PeersId:       channel.remoteId,
			MyId:          channel.localId,
			MyWindow:      channelWindowSize,
			MaxPacketSize: channelMaxPacket,
		}
		if err := c.writePacket(marshal(msgChannelOpenConfirm, confirm)); err != nil {
			return
		}
		ch <- Forward{Channel: channel, Raddr: raddr}

	case "x11", "auth-agent@openssh.com":
		// Neither X11 forwarding nor agent forwarding is implemented by
		// this client (no ListenX11/agent-client registration exists to
		// consult), so both named types from spec §4.5's acceptance
		// table are refused administratively rather than mis-reported
		// as unknown channel types.
		m := channelOpenFailureMsg{
			PeersId:  msg.PeersId,
			Reason:   AdministrativelyProhibited,
			Message:  fmt.Sprintf("%s forwarding not supported", msg.ChanType),
			Language: "en",
		}
		c.writePacket(marshal(msgChannelOpenFailure, m))

	default:
		m := channelOpenFailureMsg{
			PeersId:  msg.PeersId,
			Reason:   UnknownChannelType,
			Message:  fmt.Sprintf("unknown channel type: %s", msg.ChanType),
			Language: "en",
		}
		c.writePacket(marshal(msgChannelOpenFailure, m))
	}
}

func (c *ClientConn) sendConnectionFailed(remoteId uint32, reason string) {
	m := channelOpenFailureMsg{
		PeersId:  remoteId,
		Reason:   ConnectionFailed,
		Message:  reason,
		Language: "en",
	}
	c.writePacket(marshal(msgChannelOpenFailure, m))
}

// parseForwardAddr parses the (address, port) pair RFC 4254 section 7.2
// uses for both the listening and originator addresses carried in a
// forwarded-tcpip CHANNEL_OPEN.
func parseForwardAddr(b []byte) (*net.TCPAddr, []byte, bool) {
	host, rest, ok := parseString(b)
	if !ok {
		return nil, b, false
	}
	port, rest, ok := parseUint32(rest)
	if !ok {
		return nil, b, false
	}
	ip := net.ParseIP(string(host))
	if ip == nil {
		// Hostnames (vs. literal addresses) are legal in the protocol;
		// keep a zero IP rather than failing the whole parse.
		ip = net.IPv4zero
	}
	return &net.TCPAddr{IP: ip, Port: int(port)}, rest, true
}
