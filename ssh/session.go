// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

// This file implements the "session" channel subtype of spec §3: the
// pty-req/env/shell/exec/subsystem/window-change/signal/exit-status
// requests RFC 4254 section 6 defines on top of the generic Channel.

// Session wraps a "session"-type Channel with the typed helpers RFC 4254
// section 6 defines, mirroring how the teacher layers higher-level
// behaviour over its generic clientChan for forwarded-tcpip.
type Session struct {
	*Channel
}

// NewSession opens a "session" channel and returns it wrapped with the
// RFC 4254 section 6 request helpers.
func (c *ClientConn) NewSession() (*Session, error) {
	ch, err := c.openChannel("session", nil)
	if err != nil {
		return nil, err
	}
	ch.chanType = "session"
	return &Session{Channel: ch}, nil
}

// PtyRequest carries the terminal parameters for a "pty-req" channel
// request (RFC 4254 section 6.2).
type PtyRequest struct {
	Term                         string
	Width, Height                uint32
	WidthPixels, HeightPixels    uint32
	Modes                        []byte
}

// RequestPty requests a pseudo-terminal be allocated for the session.
func (s *Session) RequestPty(req PtyRequest) error {
	payload := marshalStruct(nil, struct {
		Term                      string
		Width, Height             uint32
		WidthPixels, HeightPixels uint32
		Modes                     []byte
	}{req.Term, req.Width, req.Height, req.WidthPixels, req.HeightPixels, req.Modes})
	ok, err := s.SendRequest("pty-req", true, payload)
	if err == nil && !ok {
		return ChannelError{Message: "pty-req refused"}
	}
	return err
}

// Setenv requests the server set an environment variable for the
// session (RFC 4254 section 6.4); servers are free to ignore this.
func (s *Session) Setenv(name, value string) error {
	payload := marshalStruct(nil, struct{ Name, Value string }{name, value})
	ok, err := s.SendRequest("env", true, payload)
	if err == nil && !ok {
		return ChannelError{Message: "env request refused"}
	}
	return err
}

// Shell requests the user's default shell be started on the session
// (RFC 4254 section 6.5).
func (s *Session) Shell() error {
	ok, err := s.SendRequest("shell", true, nil)
	if err == nil && !ok {
		return ChannelError{Message: "shell request refused"}
	}
	return err
}

// Exec requests a single command be run on the session (RFC 4254 section
// 6.5); after it returns the channel carries the command's stdout/stderr
// until EOF and exit-status.
func (s *Session) Exec(command string) error {
	payload := marshalStruct(nil, struct{ Command string }{command})
	ok, err := s.SendRequest("exec", true, payload)
	if err == nil && !ok {
		return ChannelError{Message: "exec request refused"}
	}
	return err
}

// Subsystem requests a named subsystem (e.g. "sftp") be started on the
// session (RFC 4254 section 6.5).
func (s *Session) Subsystem(name string) error {
	payload := marshalStruct(nil, struct{ Name string }{name})
	ok, err := s.SendRequest("subsystem", true, payload)
	if err == nil && !ok {
		return ChannelError{Message: "subsystem request refused"}
	}
	return err
}

// WindowChange notifies the server of a new terminal size (RFC 4254
// section 6.7); this request never wants a reply.
func (s *Session) WindowChange(width, height, widthPixels, heightPixels uint32) error {
	payload := marshalStruct(nil, struct {
		Width, Height             uint32
		WidthPixels, HeightPixels uint32
	}{width, height, widthPixels, heightPixels})
	_, err := s.SendRequest("window-change", false, payload)
	return err
}

// Signal delivers a signal to the remote process (RFC 4254 section 6.9);
// name is the POSIX signal name without the "SIG" prefix (e.g. "TERM").
func (s *Session) Signal(name string) error {
	payload := marshalStruct(nil, struct{ Name string }{name})
	_, err := s.SendRequest("signal", false, payload)
	return err
}

// ExitStatus returns the exit code carried by a prior exit-status
// request, or (0, false) if none has arrived yet; it does not block.
func (s *Session) ExitStatus() (int, bool) { return s.Channel.ExitStatus() }
