// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"fmt"
	"math/big"
	"reflect"
)

// Message numbers, RFC 4250 section 4.1.2 and RFC 4254.
const (
	msgDisconnect     = 1
	msgIgnore         = 2
	msgUnimplemented  = 3
	msgDebug          = 4
	msgServiceRequest = 5
	msgServiceAccept  = 6

	msgKexInit = 20
	msgNewKeys = 21

	msgKexDHInit  = 30
	msgKexDHReply = 31

	// diffie-hellman-group-exchange messages reuse 30-34.
	msgKexDHGexRequestOld = 30
	msgKexDHGexGroup      = 31
	msgKexDHGexInit       = 32
	msgKexDHGexReply      = 33
	msgKexDHGexRequest    = 34

	msgKexECDHInit  = 30
	msgKexECDHReply = 31

	msgUserAuthRequest = 50
	msgUserAuthFailure = 51
	msgUserAuthSuccess = 52
	msgUserAuthBanner  = 53

	msgUserAuthPubKeyOK       = 60
	msgUserAuthPasswdChangeReq = 60
	msgUserAuthInfoRequest    = 60
	msgUserAuthInfoResponse   = 61

	msgUserAuthGSSAPIResponse     = 60
	msgUserAuthGSSAPIToken        = 61
	msgUserAuthGSSAPIExchangeComplete = 63
	msgUserAuthGSSAPIError        = 64
	msgUserAuthGSSAPIErrTok       = 65
	msgUserAuthGSSAPIMIC          = 66

	msgGlobalRequest  = 80
	msgRequestSuccess = 81
	msgRequestFailure = 82

	msgChannelOpen             = 90
	msgChannelOpenConfirm      = 91
	msgChannelOpenFailure      = 92
	msgChannelWindowAdjust     = 93
	msgChannelData             = 94
	msgChannelExtendedData     = 95
	msgChannelEOF              = 96
	msgChannelClose            = 97
	msgChannelRequest          = 98
	msgChannelSuccess          = 99
	msgChannelFailure          = 100
)

// disconnectMsg, RFC 4253 section 11.1.
type disconnectMsg struct {
	Reason      uint32 `sshtype:"1"`
	Message     string
	Language    string
}

type ignoreMsg struct {
	Data string `sshtype:"2"`
}

type unimplementedMsg struct {
	SeqNum uint32 `sshtype:"3"`
}

type debugMsg struct {
	AlwaysDisplay bool `sshtype:"4"`
	Message       string
	Language      string
}

type serviceRequestMsg struct {
	Service string `sshtype:"5"`
}

type serviceAcceptMsg struct {
	Service string `sshtype:"6"`
}

// kexInitMsg, RFC 4253 section 7.1.
type kexInitMsg struct {
	Cookie                  [16]byte `sshtype:"20"`
	KexAlgos                []string
	ServerHostKeyAlgos      []string
	CiphersClientServer     []string
	CiphersServerClient     []string
	MACsClientServer        []string
	MACsServerClient        []string
	CompressionClientServer []string
	CompressionServerClient []string
	LanguagesClientServer   []string
	LanguagesServerClient   []string
	FirstKexFollows         bool
	Reserved                uint32
}

type kexDHInitMsg struct {
	X *big.Int `sshtype:"30"`
}

type kexDHReplyMsg struct {
	HostKey   []byte `sshtype:"31"`
	Y         *big.Int
	Signature []byte
}

type kexECDHInitMsg struct {
	ClientPubKey []byte `sshtype:"30"`
}

type kexECDHReplyMsg struct {
	HostKey         []byte `sshtype:"31"`
	EphemeralPubKey []byte
	Signature       []byte
}

type kexDHGexRequestMsg struct {
	Min uint32 `sshtype:"34"`
	N   uint32
	Max uint32
}

type kexDHGexGroupMsg struct {
	P *big.Int `sshtype:"31"`
	G *big.Int
}

type kexDHGexInitMsg struct {
	X *big.Int `sshtype:"32"`
}

type kexDHGexReplyMsg struct {
	HostKey   []byte `sshtype:"33"`
	Y         *big.Int
	Signature []byte
}

// userAuthRequestMsg, RFC 4252 section 5.
type userAuthRequestMsg struct {
	User    string `sshtype:"50"`
	Service string
	Method  string
	Payload []byte `ssh:"rest"`
}

type userAuthFailureMsg struct {
	Methods        []string `sshtype:"51"`
	PartialSuccess bool
}

type userAuthBannerMsg struct {
	Message  string `sshtype:"53"`
	Language string
}

type userAuthPubKeyOkMsg struct {
	Algo   string `sshtype:"60"`
	PubKey []byte
}

type userAuthPasswdChangeReqMsg struct {
	Prompt string `sshtype:"60"`
	Language string
}

type userAuthInfoRequestMsg struct {
	Name        string `sshtype:"60"`
	Instruction string
	Language    string
	NumPrompts  uint32
	Prompts     []byte `ssh:"rest"`
}

type userAuthInfoResponseMsg struct {
	NumResponses uint32 `sshtype:"61"`
	Responses    []byte `ssh:"rest"`
}

// globalRequestMsg, RFC 4254 section 4.
type globalRequestMsg struct {
	Type      string `sshtype:"80"`
	WantReply bool
	Data      []byte `ssh:"rest"`
}

type globalRequestSuccessMsg struct {
	Data []byte `sshtype:"81" ssh:"rest"`
}

type globalRequestFailureMsg struct {
	Data []byte `sshtype:"82" ssh:"rest"`
}

type tcpipForwardRequest struct {
	Addr string
	Port uint32
}

type tcpipForwardReply struct {
	Port uint32
}

// channelOpenMsg, RFC 4254 section 5.1.
type channelOpenMsg struct {
	ChanType         string `sshtype:"90"`
	PeersId          uint32
	PeersWindow      uint32
	MaxPacketSize    uint32
	TypeSpecificData []byte `ssh:"rest"`
}

type channelOpenConfirmMsg struct {
	PeersId       uint32 `sshtype:"91"`
	MyId          uint32
	MyWindow      uint32
	MaxPacketSize uint32
	TypeSpecificData []byte `ssh:"rest"`
}

type channelOpenFailureMsg struct {
	PeersId  uint32 `sshtype:"92"`
	Reason   OpenFailureReason
	Message  string
	Language string
}

type windowAdjustMsg struct {
	PeersId         uint32 `sshtype:"93"`
	AdditionalBytes uint32
}

type channelDataMsg struct {
	PeersId uint32 `sshtype:"94"`
	Length  uint32
	Rest    []byte `ssh:"rest"`
}

type channelExtendedDataMsg struct {
	PeersId  uint32 `sshtype:"95"`
	DataType uint32
	Length   uint32
	Rest     []byte `ssh:"rest"`
}

type channelEOFMsg struct {
	PeersId uint32 `sshtype:"96"`
}

type channelCloseMsg struct {
	PeersId uint32 `sshtype:"97"`
}

type channelRequestMsg struct {
	PeersId             uint32 `sshtype:"98"`
	Request             string
	WantReply           bool
	RequestSpecificData []byte `ssh:"rest"`
}

type channelRequestSuccessMsg struct {
	PeersId uint32 `sshtype:"99"`
}

type channelRequestFailureMsg struct {
	PeersId uint32 `sshtype:"100"`
}

// --- reflection-based marshal/unmarshal ------------------------------
//
// The teacher's common.go/client.go/certs.go already call marshal(tag,
// struct) and unmarshal(&struct, packet, tag) throughout, but the file
// that defined them was not present in the retrieved slice. This
// reconstructs them in the same reflection-driven style the real
// golang.org/x/crypto/ssh package uses for the same job: struct fields are
// walked in declaration order and encoded according to their Go type,
// driven by an `sshtype:"N"` tag on the first field to emit the leading
// message-number byte, and an `ssh:"rest"` tag on a trailing []byte field
// to consume everything left in the packet verbatim.

func fieldError(t reflect.Type, field string, msg string) error {
	return Internal{Message: fmt.Sprintf("ssh: unmarshal %s.%s: %s", t.Name(), field, msg)}
}

// marshal serialises msg, prefixed by the tag byte, into a fresh []byte.
func marshal(tag byte, msg interface{}) []byte {
	out := []byte{tag}
	return marshalStruct(out, msg)
}

func marshalStruct(out []byte, msg interface{}) []byte {
	v := reflect.Indirect(reflect.ValueOf(msg))
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		t := v.Type().Field(i)
		if !t.IsExported() {
			continue
		}
		if t.Tag.Get("ssh") == "rest" {
			out = append(out, field.Bytes()...)
			continue
		}
		switch field.Kind() {
		case reflect.Bool:
			out = appendBoolByte(out, field.Bool())
		case reflect.Uint32:
			var b [4]byte
			marshalUint32(b[:], uint32(field.Uint()))
			out = append(out, b[:]...)
		case reflect.Uint64:
			var b [8]byte
			marshalUint64(b[:], field.Uint())
			out = append(out, b[:]...)
		case reflect.String:
			out = appendStringField(out, field.String())
		case reflect.Slice:
			switch field.Type().Elem().Kind() {
			case reflect.Uint8:
				out = appendStringField(out, string(field.Bytes()))
			case reflect.String:
				names := make([]string, field.Len())
				for j := range names {
					names[j] = field.Index(j).String()
				}
				out = appendStringField(out, joinNameList(names))
			default:
				panic("ssh: unsupported slice element type in marshal")
			}
		case reflect.Array:
			// fixed-size byte array, e.g. the KEXINIT cookie.
			n := field.Len()
			b := make([]byte, n)
			reflect.Copy(reflect.ValueOf(b), field)
			out = append(out, b...)
		case reflect.Ptr:
			if bi, ok := field.Interface().(*big.Int); ok {
				buf := NewBuffer()
				buf.PutMPInt(bi)
				out = append(out, buf.Written()...)
				continue
			}
			panic("ssh: unsupported pointer type in marshal")
		default:
			panic(fmt.Sprintf("ssh: unsupported field kind %v in marshal", field.Kind()))
		}
	}
	return out
}

func appendBoolByte(out []byte, b bool) []byte {
	if b {
		return append(out, 1)
	}
	return append(out, 0)
}

func appendStringField(out []byte, s string) []byte {
	var lenBytes [4]byte
	marshalUint32(lenBytes[:], uint32(len(s)))
	out = append(out, lenBytes[:]...)
	return append(out, s...)
}

// unmarshal parses packet into msg, which must be a pointer to a struct
// tagged with the expected leading message-number byte (wantType).
func unmarshal(msg interface{}, packet []byte, wantType byte) error {
	if len(packet) == 0 {
		return ParseError{msgType: wantType}
	}
	if packet[0] != wantType {
		return UnexpectedMessageError{expected: wantType, got: packet[0]}
	}
	return unmarshalStruct(msg, packet[1:])
}

// unmarshalStruct parses rest into msg field-by-field with no leading
// message-number byte, for struct bodies carried inside another
// message's payload (e.g. a tcpip-forward reply packed into a
// globalRequestSuccessMsg.Data).
func unmarshalStruct(msg interface{}, rest []byte) error {
	v := reflect.Indirect(reflect.ValueOf(msg))
	var err error
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		t := v.Type().Field(i)
		if !t.IsExported() {
			continue
		}
		if t.Tag.Get("ssh") == "rest" {
			field.SetBytes(append([]byte(nil), rest...))
			rest = nil
			continue
		}
		switch field.Kind() {
		case reflect.Bool:
			var b bool
			if b, rest, err = sliceBool(rest); err != nil {
				return fieldError(v.Type(), t.Name, err.Error())
			}
			field.SetBool(b)
		case reflect.Uint32:
			var n uint32
			if n, rest, err = sliceUint32(rest); err != nil {
				return fieldError(v.Type(), t.Name, err.Error())
			}
			field.SetUint(uint64(n))
		case reflect.Uint64:
			var n uint64
			if n, rest, err = sliceUint64(rest); err != nil {
				return fieldError(v.Type(), t.Name, err.Error())
			}
			field.SetUint(n)
		case reflect.String:
			var s []byte
			var ok bool
			if s, rest, ok = parseString(rest); !ok {
				return fieldError(v.Type(), t.Name, "short string field")
			}
			field.SetString(string(s))
		case reflect.Slice:
			switch field.Type().Elem().Kind() {
			case reflect.Uint8:
				var s []byte
				var ok bool
				if s, rest, ok = parseString(rest); !ok {
					return fieldError(v.Type(), t.Name, "short byte-slice field")
				}
				field.SetBytes(append([]byte(nil), s...))
			case reflect.String:
				var list []string
				var s []byte
				var ok bool
				if s, rest, ok = parseString(rest); !ok {
					return fieldError(v.Type(), t.Name, "short name-list field")
				}
				list = splitNameList(string(s))
				field.Set(reflect.ValueOf(list))
			default:
				return fieldError(v.Type(), t.Name, "unsupported slice element type")
			}
		case reflect.Array:
			n := field.Len()
			if len(rest) < n {
				return fieldError(v.Type(), t.Name, "short array field")
			}
			reflect.Copy(field, reflect.ValueOf(rest[:n]))
			rest = rest[n:]
		case reflect.Ptr:
			if _, ok := field.Interface().(*big.Int); ok {
				var raw []byte
				var ok2 bool
				if raw, rest, ok2 = parseString(rest); !ok2 {
					return fieldError(v.Type(), t.Name, "short mpint field")
				}
				field.Set(reflect.ValueOf(new(big.Int).SetBytes(raw)))
			} else {
				return fieldError(v.Type(), t.Name, "unsupported pointer field")
			}
		default:
			return fieldError(v.Type(), t.Name, "unsupported field kind")
		}
	}
	return nil
}

func sliceBool(b []byte) (bool, []byte, error) {
	v, rest, ok := parseBool(b)
	if !ok {
		return false, nil, ParseError{}
	}
	return v, rest, nil
}

func sliceUint32(b []byte) (uint32, []byte, error) {
	v, rest, ok := parseUint32(b)
	if !ok {
		return 0, nil, ParseError{}
	}
	return v, rest, nil
}

func sliceUint64(b []byte) (uint64, []byte, error) {
	v, rest, ok := parseUint64(b)
	if !ok {
		return 0, nil, ParseError{}
	}
	return v, rest, nil
}

// decode dispatches a raw packet to its typed message struct, mirroring
// the switch the teacher's mainLoop already expects to consume (see
// client.go's "decoded, err := decode(packet)").
func decode(packet []byte) (interface{}, error) {
	if len(packet) == 0 {
		return nil, ParseError{}
	}
	var msg interface{}
	switch packet[0] {
	case msgDisconnect:
		msg = new(disconnectMsg)
	case msgIgnore:
		msg = new(ignoreMsg)
	case msgUnimplemented:
		msg = new(unimplementedMsg)
	case msgDebug:
		msg = new(debugMsg)
	case msgServiceRequest:
		msg = new(serviceRequestMsg)
	case msgServiceAccept:
		msg = new(serviceAcceptMsg)
	case msgKexInit:
		msg = new(kexInitMsg)
	case msgNewKeys:
		return nil, nil // handled specially by the transport loop
	case msgUserAuthRequest:
		msg = new(userAuthRequestMsg)
	case msgUserAuthFailure:
		msg = new(userAuthFailureMsg)
	case msgUserAuthSuccess:
		return struct{}{}, nil
	case msgUserAuthBanner:
		msg = new(userAuthBannerMsg)
	case msgGlobalRequest:
		msg = new(globalRequestMsg)
	case msgRequestSuccess:
		msg = new(globalRequestSuccessMsg)
	case msgRequestFailure:
		msg = new(globalRequestFailureMsg)
	case msgChannelOpen:
		msg = new(channelOpenMsg)
	case msgChannelOpenConfirm:
		msg = new(channelOpenConfirmMsg)
	case msgChannelOpenFailure:
		msg = new(channelOpenFailureMsg)
	case msgChannelWindowAdjust:
		msg = new(windowAdjustMsg)
	case msgChannelEOF:
		msg = new(channelEOFMsg)
	case msgChannelClose:
		msg = new(channelCloseMsg)
	case msgChannelRequest:
		msg = new(channelRequestMsg)
	case msgChannelSuccess:
		msg = new(channelRequestSuccessMsg)
	case msgChannelFailure:
		msg = new(channelRequestFailureMsg)
	default:
		return nil, UnexpectedMessageError{got: packet[0]}
	}

	if err := unmarshalTagged(msg, packet); err != nil {
		return nil, err
	}
	return msg, nil
}

// unmarshalTagged looks up the expected tag from the struct's own
// `sshtype` field tag so callers of decode don't need to repeat the
// message number already implied by the switch above.
func unmarshalTagged(msg interface{}, packet []byte) error {
	v := reflect.Indirect(reflect.ValueOf(msg))
	tagStr := v.Type().Field(0).Tag.Get("sshtype")
	var tag byte
	fmt.Sscanf(tagStr, "%d", &tag)
	return unmarshal(msg, packet, tag)
}
