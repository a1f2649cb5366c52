// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sshcrypto

import "crypto/rand"

// cryptoRandom backs ssh.Random with crypto/rand.Reader, which is already
// safe for concurrent use. The ssh package's own defaultRandom (the
// Registry's built-in fallback) does the same thing; this is registered
// so a Registry explicitly built via sshcrypto.Register carries one too.
type cryptoRandom struct{}

func (cryptoRandom) Fill(buf []byte) error {
	_, err := rand.Read(buf)
	return err
}
