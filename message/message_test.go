package message

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"

	"pirate-rpc/codec"
	"pirate-rpc/rpcerr"
)

type rpcName uint8

const (
	helloWorld rpcName = iota + 1
	getI
	incrI
)

func (n rpcName) String() string {
	switch n {
	case helloWorld:
		return "HelloWorld"
	case getI:
		return "GetI"
	case incrI:
		return "IncrI"
	}
	return "?"
}

var codecs = []codec.Codec{codec.GetCodec(codec.CodecTypeMsgpack), codec.GetCodec(codec.CodecTypeJSON)}

func TestRequestRoundTrip(t *testing.T) {
	for _, c := range codecs {
		for _, name := range []rpcName{helloWorld, getI, incrI} {
			for _, payload := range [][]byte{nil, {0x01}, []byte(`{"a":1,"b":2}`), bytes.Repeat([]byte{0xab}, 4096)} {
				frame, err := EncodeRequest(c, name, payload)
				if err != nil {
					t.Fatalf("%s EncodeRequest failed: %v", c.Type(), err)
				}

				gotName, gotPayload, err := DecodeRequest[rpcName](c, frame)
				if err != nil {
					t.Fatalf("%s DecodeRequest failed: %v", c.Type(), err)
				}
				if gotName != name {
					t.Errorf("%s name mismatch: got %v, want %v", c.Type(), gotName, name)
				}
				if !bytes.Equal(gotPayload, payload) {
					t.Errorf("%s payload mismatch for %v: got %d bytes, want %d", c.Type(), name, len(gotPayload), len(payload))
				}
			}
		}
	}
}

func TestStringNames(t *testing.T) {
	c := codec.GetCodec(codec.CodecTypeMsgpack)
	frame, err := EncodeRequest(c, "Arith.Add", []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	name, _, err := DecodeRequest[string](c, frame)
	if err != nil {
		t.Fatal(err)
	}
	if name != "Arith.Add" {
		t.Fatalf("expect Arith.Add, got %q", name)
	}
}

func TestDecodeRequestWrongNameType(t *testing.T) {
	c := codec.GetCodec(codec.CodecTypeMsgpack)
	frame, _ := EncodeRequest(c, "not-a-number", nil)

	_, _, err := DecodeRequest[rpcName](c, frame)
	if !rpcerr.IsDecode(err) {
		t.Fatalf("expect decode failure, got %v", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	for _, c := range codecs {
		_, _, err := DecodeRequest[rpcName](c, []byte{0xff, 0x00, 0x13, 0x37})
		if !rpcerr.IsDecode(err) {
			t.Errorf("%s: expect decode failure, got %v", c.Type(), err)
		}
	}
}

func TestReply(t *testing.T) {
	for _, c := range codecs {
		nameBytes, _ := c.Encode(getI)

		frame, err := EncodeReply(c, nameBytes, []byte{0x03}, nil)
		if err != nil {
			t.Fatal(err)
		}
		payload, err := DecodeReply(c, frame)
		if err != nil {
			t.Fatalf("%s DecodeReply failed: %v", c.Type(), err)
		}
		if !bytes.Equal(payload, []byte{0x03}) {
			t.Errorf("%s payload mismatch: %v", c.Type(), payload)
		}

		frame, _ = EncodeReply(c, nameBytes, nil, rpcerr.NotFound("GetI"))
		_, err = DecodeReply(c, frame)
		if !rpcerr.IsNotFound(err) || !rpcerr.IsRemote(err) {
			t.Errorf("%s: expect remote not found, got %v", c.Type(), err)
		}

		frame, _ = EncodeReply(c, nameBytes, []byte{0x01}, errors.New("names are full"))
		_, err = DecodeReply(c, frame)
		if !rpcerr.IsHandler(err) {
			t.Errorf("%s: expect handler failure, got %v", c.Type(), err)
		}
		if err.Error() != "remote: names are full" {
			t.Errorf("%s: unexpected message %q", c.Type(), err.Error())
		}
	}
}
