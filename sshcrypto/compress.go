// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sshcrypto

import (
	"bytes"
	"compress/flate"
	"io"

	"github.com/vngx/vngx-ssh/ssh"
)

// This file backs "zlib" and "zlib@openssh.com" with compress/flate
// (raw DEFLATE, which is what zlib wraps). Each packet's payload is its
// own DEFLATE stream seeded with a rolling dictionary of the last 32 KiB
// of plaintext, matching DEFLATE's window size; this keeps the two
// directions' compressor/decompressor state symmetric without needing a
// single long-lived zlib.Writer/Reader pair to survive across calls.
// The core's noopCompression already covers "none" directly, so it is
// not registered here.

const deflateWindow = 32768

func registerCompressions(reg *ssh.Registry) {
	reg.RegisterCompression("zlib", func() ssh.Compression { return &zlibCompression{} })
	reg.RegisterCompression("zlib@openssh.com", func() ssh.Compression { return &zlibCompression{} })
}

type zlibCompression struct {
	level    int
	writeDic []byte
	readDict []byte
}

func (c *zlibCompression) Init(compress bool, level int) error {
	c.level = level
	if c.level == flate.NoCompression || c.level < flate.HuffmanOnly || c.level > flate.BestCompression {
		c.level = flate.DefaultCompression
	}
	return nil
}

func (c *zlibCompression) Compress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriterDict(&buf, c.level, c.writeDic)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(in); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	c.writeDic = rollDictionary(c.writeDic, in)
	return buf.Bytes(), nil
}

func (c *zlibCompression) Decompress(in []byte) ([]byte, error) {
	r := flate.NewReaderDict(bytes.NewReader(in), c.readDict)
	defer r.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	c.readDict = rollDictionary(c.readDict, out)
	return out, nil
}

// rollDictionary appends fresh onto dict and trims it back to the
// DEFLATE window size, keeping only the most recent bytes.
func rollDictionary(dict, fresh []byte) []byte {
	dict = append(dict, fresh...)
	if len(dict) > deflateWindow {
		dict = dict[len(dict)-deflateWindow:]
	}
	out := make([]byte, len(dict))
	copy(out, dict)
	return out
}
