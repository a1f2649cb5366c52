// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"io"
	"sync"
	"time"
)

// This file implements the connection-layer channel multiplexing of spec
// §3/§4.5: per-channel sliding-window flow control, data/extended-data
// routing, and the open/close lifecycle. Grounded on the teacher's
// clientChan (referenced throughout client.go's mainLoop but, like
// transport.go, not present in the retrieved slice) generalized from a
// single hard-coded "session" channel type to any RFC 4254 channel type.

const (
	// channelWindowSize is the local receive window advertised on open
	// and replenished via WINDOW_ADJUST once consumed (spec §4.5).
	channelWindowSize = 1 << 20
	// channelMaxPacket is the largest SSH_MSG_CHANNEL_DATA payload this
	// side will accept in one packet; RFC 4254 section 5.1 floors this
	// at 32768.
	channelMaxPacket = 1 << 15

	openChannelTimeout = 30 * time.Second
)

// Channel is the client's view of one RFC 4254 connection-layer channel:
// a bidirectional, flow-controlled byte stream (Read/Write), an optional
// stderr-equivalent extended data stream, and an channel-request/reply
// sideband (SendRequest).
type Channel struct {
	conn *ClientConn

	chanType string

	localId, remoteId uint32

	// localWin counts this side's receive window as advertised on open
	// plus every byte since handed back by WINDOW_ADJUST. Received data
	// is not subtracted from it, so it does not track how much the peer
	// may still send.
	localWin *window
	// remoteWin is this side's send window: how much data we may still
	// write before the peer issues WINDOW_ADJUST.
	remoteWin *window

	maxPacket uint32

	stdout *chanReader
	stderr *chanReader

	// msg carries CHANNEL_OPEN_CONFIRMATION/FAILURE and
	// CHANNEL_REQUEST/SUCCESS/FAILURE messages from mainLoop to whichever
	// goroutine is waiting on them (Open, SendRequest).
	msg chan interface{}

	mu           sync.Mutex
	closed       bool
	sentEOF      bool
	sentClose    bool
	exitStatus   *int
	requestsIn   chan *channelRequest
}

// channelRequest is the server-originated form of a CHANNEL_REQUEST,
// surfaced to callers that accept requests on server-initiated channels
// (forwarded-tcpip replies none; sessions opened by us rarely receive
// requests back, but RFC 4254 permits it for e.g. "exit-status").
type channelRequest struct {
	Type      string
	WantReply bool
	Payload   []byte
}

// chanReader adapts the window-gated byte stream arriving via
// CHANNEL_DATA/CHANNEL_EXTENDED_DATA into an io.Reader, replenishing the
// local window as data is consumed (spec §4.5).
type chanReader struct {
	ch   *Channel
	mu   sync.Mutex
	cond *sync.Cond
	buf  []byte
	eof  bool
}

func newChanReader(ch *Channel) *chanReader {
	r := &chanReader{ch: ch}
	r.cond = sync.NewCond(&r.mu)
	return r
}

func (r *chanReader) write(data []byte) {
	r.mu.Lock()
	r.buf = append(r.buf, data...)
	r.cond.Broadcast()
	r.mu.Unlock()
}

func (r *chanReader) eofSignal() {
	r.mu.Lock()
	r.eof = true
	r.cond.Broadcast()
	r.mu.Unlock()
}

func (r *chanReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	for len(r.buf) == 0 && !r.eof {
		r.cond.Wait()
	}
	if len(r.buf) == 0 && r.eof {
		r.mu.Unlock()
		return 0, io.EOF
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	r.mu.Unlock()

	r.ch.localWin.add(uint32(n))
	r.ch.sendWindowAdjustIfNeeded(uint32(n))
	return n, nil
}

// sendWindowAdjustIfNeeded hands consumed bytes back to the peer with a
// WINDOW_ADJUST for exactly that amount. It is sent after every read that
// consumed data; adjustments are not held back until a threshold is reached.
func (ch *Channel) sendWindowAdjustIfNeeded(consumed uint32) {
	if consumed == 0 {
		return
	}
	adj := windowAdjustMsg{PeersId: ch.remoteId, AdditionalBytes: consumed}
	ch.conn.writePacket(marshal(msgChannelWindowAdjust, adj))
}

func newChannel(conn *ClientConn, chanType string, localId uint32) *Channel {
	ch := &Channel{
		conn:       conn,
		chanType:   chanType,
		localId:    localId,
		localWin:   &window{Cond: newCond()},
		remoteWin:  &window{Cond: newCond()},
		maxPacket:  channelMaxPacket,
		msg:        make(chan interface{}, 4),
		requestsIn: make(chan *channelRequest, 4),
	}
	ch.stdout = newChanReader(ch)
	ch.stderr = newChanReader(ch)
	ch.localWin.add(channelWindowSize)
	return ch
}

func (ch *Channel) handleData(data []byte)         { ch.stdout.write(data) }
func (ch *Channel) handleExtendedData(data []byte) { ch.stderr.write(data) }

func (ch *Channel) handleEOF() {
	ch.stdout.eofSignal()
	ch.stderr.eofSignal()
}

// handleClose processes a received CHANNEL_CLOSE: it echoes CHANNEL_CLOSE
// back per RFC 4254 section 5.3 ("when either party wishes to terminate
// the channel, it... must send this message"), wakes any blocked
// Read/Write/SendRequest, and drops the channel from conn's table.
func (ch *Channel) handleClose() {
	ch.mu.Lock()
	ch.closed = true
	ch.mu.Unlock()
	ch.handleEOF()
	ch.remoteWin.shut()
	ch.Close()
	select {
	case ch.msg <- &channelCloseMsg{PeersId: ch.remoteId}:
	default:
	}
	ch.conn.chanList.remove(ch.localId)
}

func (ch *Channel) handleRequest(msg *channelRequestMsg) {
	if msg.Request == "exit-status" && len(msg.RequestSpecificData) >= 4 {
		status := int(uint32Big(msg.RequestSpecificData))
		ch.mu.Lock()
		ch.exitStatus = &status
		ch.mu.Unlock()
	}
	select {
	case ch.requestsIn <- &channelRequest{Type: msg.Request, WantReply: msg.WantReply, Payload: msg.RequestSpecificData}:
	default:
	}
	if msg.WantReply {
		ch.conn.writePacket(marshal(msgChannelSuccess, channelRequestSuccessMsg{PeersId: ch.remoteId}))
	}
}

func uint32Big(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// Read reads from the channel's primary data stream (stdout, for session
// channels).
func (ch *Channel) Read(p []byte) (int, error) { return ch.stdout.Read(p) }

// Stderr returns the channel's extended-data (type 1 / stderr) stream.
func (ch *Channel) Stderr() io.Reader { return ch.stderr }

// Write sends data on the channel, blocking on the remote window and
// splitting across multiple CHANNEL_DATA packets as needed (spec §4.5).
func (ch *Channel) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		want := uint32(len(p))
		if want > ch.maxPacket {
			want = ch.maxPacket
		}
		n, ok := ch.remoteWin.reserve(want)
		if !ok {
			return written, ChannelError{Message: "channel window closed"}
		}
		chunk := p[:n]
		m := channelDataMsg{PeersId: ch.remoteId, Length: uint32(len(chunk)), Rest: chunk}
		if err := ch.conn.writePacket(marshal(msgChannelData, m)); err != nil {
			return written, err
		}
		written += len(chunk)
		p = p[n:]
	}
	return written, nil
}

// CloseWrite sends CHANNEL_EOF, signalling no more data will be written.
func (ch *Channel) CloseWrite() error {
	ch.mu.Lock()
	if ch.sentEOF {
		ch.mu.Unlock()
		return nil
	}
	ch.sentEOF = true
	ch.mu.Unlock()
	return ch.conn.writePacket(marshal(msgChannelEOF, channelEOFMsg{PeersId: ch.remoteId}))
}

// Close sends CHANNEL_CLOSE if not already sent; idempotent per RFC 4254
// section 5.3.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	if ch.sentClose {
		ch.mu.Unlock()
		return nil
	}
	ch.sentClose = true
	ch.mu.Unlock()
	return ch.conn.writePacket(marshal(msgChannelClose, channelCloseMsg{PeersId: ch.remoteId}))
}

// ExitStatus returns the exit-status carried by a prior "exit-status"
// channel request, or (0, false) if none has arrived yet.
func (ch *Channel) ExitStatus() (int, bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.exitStatus == nil {
		return 0, false
	}
	return *ch.exitStatus, true
}

// SendRequest issues a CHANNEL_REQUEST and, if wantReply, waits for the
// SUCCESS/FAILURE reply (spec §3 Channel Request).
func (ch *Channel) SendRequest(name string, wantReply bool, payload []byte) (bool, error) {
	m := channelRequestMsg{PeersId: ch.remoteId, Request: name, WantReply: wantReply, RequestSpecificData: payload}
	if err := ch.conn.writePacket(marshal(msgChannelRequest, m)); err != nil {
		return false, err
	}
	if !wantReply {
		return true, nil
	}
	select {
	case reply := <-ch.msg:
		switch reply.(type) {
		case *channelRequestSuccessMsg:
			return true, nil
		case *channelRequestFailureMsg:
			return false, nil
		default:
			return false, Internal{Message: "unexpected reply to channel request"}
		}
	case <-time.After(openChannelTimeout):
		return false, Timeout{Op: "channel request " + name}
	}
}

// Requests exposes server-initiated channel requests (e.g. "exit-status"
// on a session we opened, or any request on a channel the server opened
// to us) as a channel the caller can range over.
func (ch *Channel) Requests() <-chan *channelRequest { return ch.requestsIn }

// openChannel opens a new channel of the given type, blocking until the
// server replies with CHANNEL_OPEN_CONFIRMATION or _FAILURE, or the open
// timeout elapses (spec §3 Open, §4.5).
func (c *ClientConn) openChannel(chanType string, extra []byte) (*Channel, error) {
	ch := c.chanList.newChan(c)

	m := channelOpenMsg{
		ChanType:         chanType,
		PeersId:          ch.localId,
		PeersWindow:      channelWindowSize,
		MaxPacketSize:    channelMaxPacket,
		TypeSpecificData: extra,
	}
	if err := c.writePacket(marshal(msgChannelOpen, m)); err != nil {
		c.chanList.remove(ch.localId)
		return nil, err
	}

	select {
	case reply := <-ch.msg:
		switch r := reply.(type) {
		case *channelOpenConfirmMsg:
			ch.remoteId = r.MyId
			ch.remoteWin.add(r.MyWindow)
			ch.maxPacket = r.MaxPacketSize
			return ch, nil
		case *channelOpenFailureMsg:
			c.chanList.remove(ch.localId)
			return nil, ChannelError{Reason: r.Reason, Message: r.Message}
		default:
			c.chanList.remove(ch.localId)
			return nil, Internal{Message: "unexpected reply to channel open"}
		}
	case <-time.After(openChannelTimeout):
		c.chanList.remove(ch.localId)
		return nil, OpenTimeout{ChannelType: chanType}
	}
}

// chanList is the thread-safe table mapping local channel ids to Channel
// values, indexed by position like the teacher's original.
type chanList struct {
	sync.Mutex
	chans []*Channel
}

func (c *chanList) newChan(conn *ClientConn) *Channel {
	c.Lock()
	defer c.Unlock()
	for i := range c.chans {
		if c.chans[i] == nil {
			ch := newChannel(conn, "", uint32(i))
			c.chans[i] = ch
			return ch
		}
	}
	i := len(c.chans)
	ch := newChannel(conn, "", uint32(i))
	c.chans = append(c.chans, ch)
	return ch
}

func (c *chanList) getChan(id uint32) (*Channel, bool) {
	c.Lock()
	defer c.Unlock()
	if id >= uint32(len(c.chans)) || c.chans[id] == nil {
		return nil, false
	}
	return c.chans[id], true
}

func (c *chanList) remove(id uint32) {
	c.Lock()
	defer c.Unlock()
	if id < uint32(len(c.chans)) {
		c.chans[id] = nil
	}
}

func (c *chanList) closeAll() {
	c.Lock()
	defer c.Unlock()
	for _, ch := range c.chans {
		if ch == nil {
			continue
		}
		ch.handleEOF()
		ch.remoteWin.shut()
		close(ch.msg)
	}
}

func (c *ClientConn) getChan(id uint32) (*Channel, bool) { return c.chanList.getChan(id) }
