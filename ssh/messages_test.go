// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"math/big"
	"reflect"
	"testing"
)

func TestMarshalUnmarshalKexInit(t *testing.T) {
	want := &kexInitMsg{
		KexAlgos:                []string{"curve25519-sha256", "diffie-hellman-group14-sha256"},
		ServerHostKeyAlgos:      []string{"ssh-ed25519", "rsa-sha2-256"},
		CiphersClientServer:     []string{"aes128-ctr"},
		CiphersServerClient:     []string{"aes128-ctr"},
		MACsClientServer:        []string{"hmac-sha2-256"},
		MACsServerClient:        []string{"hmac-sha2-256"},
		CompressionClientServer: []string{"none"},
		CompressionServerClient: []string{"none"},
		LanguagesClientServer:   nil,
		LanguagesServerClient:   nil,
		FirstKexFollows:         false,
		Reserved:                0,
	}
	for i := range want.Cookie {
		want.Cookie[i] = byte(i)
	}

	packet := marshal(msgKexInit, want)
	if packet[0] != msgKexInit {
		t.Fatalf("marshal did not prepend tag byte: got %d, want %d", packet[0], msgKexInit)
	}

	got := new(kexInitMsg)
	if err := unmarshal(got, packet, msgKexInit); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("round trip mismatch:\n got  %#v\n want %#v", got, want)
	}
}

func TestMarshalUnmarshalUserAuthRequest(t *testing.T) {
	want := &userAuthRequestMsg{
		User:    "alice",
		Service: serviceSSH,
		Method:  "password",
		Payload: []byte{0, 's', 'e', 'c', 'r', 'e', 't'},
	}
	packet := marshal(msgUserAuthRequest, want)
	got := new(userAuthRequestMsg)
	if err := unmarshal(got, packet, msgUserAuthRequest); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.User != want.User || got.Service != want.Service || got.Method != want.Method {
		t.Fatalf("round trip mismatch: got %#v, want %#v", got, want)
	}
	if !reflect.DeepEqual(got.Payload, want.Payload) {
		t.Fatalf("rest field mismatch: got %v, want %v", got.Payload, want.Payload)
	}
}

func TestMarshalUnmarshalChannelData(t *testing.T) {
	want := &channelDataMsg{
		PeersId: 7,
		Length:  5,
		Rest:    []byte("hello"),
	}
	packet := marshal(msgChannelData, want)
	got := new(channelDataMsg)
	if err := unmarshal(got, packet, msgChannelData); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("round trip mismatch: got %#v, want %#v", got, want)
	}
}

func TestMarshalUnmarshalKexDHReply(t *testing.T) {
	want := &kexDHReplyMsg{
		HostKey:   []byte("fake-host-key-blob"),
		Y:         big.NewInt(123456789),
		Signature: []byte("fake-signature-blob"),
	}
	packet := marshal(msgKexDHReply, want)
	got := new(kexDHReplyMsg)
	if err := unmarshal(got, packet, msgKexDHReply); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(got.HostKey) != string(want.HostKey) {
		t.Fatalf("HostKey mismatch: got %q, want %q", got.HostKey, want.HostKey)
	}
	if got.Y.Cmp(want.Y) != 0 {
		t.Fatalf("Y mismatch: got %s, want %s", got.Y, want.Y)
	}
	if string(got.Signature) != string(want.Signature) {
		t.Fatalf("Signature mismatch: got %q, want %q", got.Signature, want.Signature)
	}
}

func TestUnmarshalWrongTag(t *testing.T) {
	packet := marshal(msgKexInit, &kexInitMsg{})
	got := new(userAuthRequestMsg)
	err := unmarshal(got, packet, msgUserAuthRequest)
	if err == nil {
		t.Fatalf("expected an error unmarshalling a kexInitMsg packet as userAuthRequestMsg")
	}
	if _, ok := err.(UnexpectedMessageError); !ok {
		t.Fatalf("got error of type %T, want UnexpectedMessageError", err)
	}
}

func TestUnmarshalEmptyPacket(t *testing.T) {
	if err := unmarshal(new(kexInitMsg), nil, msgKexInit); err == nil {
		t.Fatalf("expected an error unmarshalling an empty packet")
	}
}

// tcpipForwardReply is carried inside a globalRequestSuccessMsg's Data
// field with no leading message-number byte (RFC 4254 section 7.1), which
// is exactly what unmarshalStruct exists for.
func TestUnmarshalStructNoTag(t *testing.T) {
	body := marshalStruct(nil, &tcpipForwardReply{Port: 2222})

	got := new(tcpipForwardReply)
	if err := unmarshalStruct(got, body); err != nil {
		t.Fatalf("unmarshalStruct: %v", err)
	}
	if got.Port != 2222 {
		t.Fatalf("Port = %d, want 2222", got.Port)
	}
}

func TestDecodeChannelOpenConfirm(t *testing.T) {
	msg := &channelOpenConfirmMsg{
		PeersId:          1,
		MyId:             2,
		MyWindow:         1 << 20,
		MaxPacketSize:    32768,
		TypeSpecificData: nil,
	}
	packet := marshal(msgChannelOpenConfirm, msg)
	decoded, err := decode(packet)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(*channelOpenConfirmMsg)
	if !ok {
		t.Fatalf("decode returned %T, want *channelOpenConfirmMsg", decoded)
	}
	if got.PeersId != 1 || got.MyId != 2 || got.MyWindow != 1<<20 || got.MaxPacketSize != 32768 {
		t.Fatalf("decoded fields mismatch: %#v", got)
	}
}

func TestDecodeUnknownMessageType(t *testing.T) {
	if _, err := decode([]byte{255}); err == nil {
		t.Fatalf("expected an error decoding an unrecognised message type")
	}
}
