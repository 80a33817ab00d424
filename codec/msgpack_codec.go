package codec

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"pirate-rpc/rpcerr"
)

// MsgpackCodec is the default codec. MessagePack is a compact binary format
// that still carries its own type tags, so it needs no shared schema.
//
// Decode rejects trailing bytes after the first value: a frame that carries
// more than one value is treated as malformed.
type MsgpackCodec struct{}

func (c *MsgpackCodec) Encode(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, rpcerr.EncodeFailure(err)
	}
	return data, nil
}

func (c *MsgpackCodec) Decode(data []byte, v any) error {
	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return rpcerr.DecodeFailure(err)
	}
	if r.Len() != 0 {
		return rpcerr.DecodeFailure(fmt.Errorf("msgpack: %d trailing bytes after value", r.Len()))
	}
	return nil
}

func (c *MsgpackCodec) Type() CodecType {
	return CodecTypeMsgpack
}
