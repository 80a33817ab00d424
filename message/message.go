// Package message defines the wire package exchanged between client and server.
//
// A Package is the "envelope" for every call. The operation name travels as
// its own encoded bytes and the payload stays encoded until the name has
// resolved an operation, so one wire format carries any number of query types.
// The whole Package is then encoded again by the same codec and handed to the
// transport as a single frame.
package message

import (
	"pirate-rpc/codec"
	"pirate-rpc/rpcerr"
)

// Package carries the data for a single request or reply.
//
//   - On request: Name holds the encoded operation name, Payload the encoded query.
//   - On reply:   Name echoes the request, Payload holds the encoded response,
//     or Kind/Error describe the failure and Payload is empty.
type Package struct {
	Name    []byte `msgpack:"name_bytes" json:"name_bytes"`
	Payload []byte `msgpack:"payload_bytes" json:"payload_bytes"`
	Kind    uint8  `msgpack:"kind,omitempty" json:"kind,omitempty"`
	Error   string `msgpack:"error,omitempty" json:"error,omitempty"`
}

// Failed reports whether a reply package carries an error.
func (p *Package) Failed() bool {
	return p.Error != "" || p.Kind != 0
}

// EncodeRequest encodes name, wraps it with the already-encoded payload and
// encodes the resulting Package.
func EncodeRequest[N any](c codec.Codec, name N, payload []byte) ([]byte, error) {
	nameBytes, err := c.Encode(name)
	if err != nil {
		return nil, err
	}
	return c.Encode(&Package{Name: nameBytes, Payload: payload})
}

// DecodeRequest splits a request frame back into the operation name and the
// still-encoded payload.
func DecodeRequest[N any](c codec.Codec, frame []byte) (N, []byte, error) {
	pkg, err := Decode(c, frame)
	if err != nil {
		var zero N
		return zero, nil, err
	}
	name, err := DecodeName[N](c, pkg)
	if err != nil {
		return name, nil, err
	}
	return name, pkg.Payload, nil
}

// DecodeName decodes the operation name carried by pkg.
func DecodeName[N any](c codec.Codec, pkg *Package) (N, error) {
	var name N
	err := c.Decode(pkg.Name, &name)
	return name, err
}

// Decode decodes a frame as a Package without interpreting its fields.
func Decode(c codec.Codec, frame []byte) (*Package, error) {
	pkg := &Package{}
	if err := c.Decode(frame, pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

// EncodeReply builds a reply frame. A nil callErr produces a successful reply
// carrying payload; otherwise the failure's kind and message are sent and the
// payload is dropped.
func EncodeReply(c codec.Codec, nameBytes, payload []byte, callErr error) ([]byte, error) {
	reply := &Package{Name: nameBytes}
	if callErr != nil {
		kind := rpcerr.KindOf(callErr)
		if kind == rpcerr.KindUnknown {
			kind = rpcerr.KindHandler
		}
		reply.Kind = uint8(kind)
		reply.Error = callErr.Error()
	} else {
		reply.Payload = payload
	}
	return c.Encode(reply)
}

// DecodeReply returns the still-encoded response payload of a reply frame, or
// the remote failure it carries.
func DecodeReply(c codec.Codec, frame []byte) ([]byte, error) {
	pkg, err := Decode(c, frame)
	if err != nil {
		return nil, err
	}
	if pkg.Failed() {
		return nil, rpcerr.FromRemote(rpcerr.Kind(pkg.Kind), pkg.Error)
	}
	return pkg.Payload, nil
}
