// Package codec converts typed values to and from opaque byte sequences.
//
// Both implementations are self-describing: a value encodes without an
// external schema, so records, sequences, integer-backed enumerations,
// primitives and unit (struct{}) all round-trip through Encode/Decode.
package codec

import (
	"fmt"
	"strings"
)

type CodecType byte

const (
	CodecTypeMsgpack CodecType = 0
	CodecTypeJSON    CodecType = 1
)

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType // 0=Msgpack, 1=JSON
}

// Default is the codec used when none is configured.
var Default Codec = &MsgpackCodec{}

func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeJSON {
		return &JSONCodec{}
	}

	return &MsgpackCodec{}
}

func (t CodecType) String() string {
	switch t {
	case CodecTypeMsgpack:
		return "msgpack"
	case CodecTypeJSON:
		return "json"
	}
	return fmt.Sprintf("codec(%d)", byte(t))
}

// ParseCodecType maps a configuration value ("msgpack", "json") to a CodecType.
func ParseCodecType(s string) (CodecType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "msgpack":
		return CodecTypeMsgpack, nil
	case "json":
		return CodecTypeJSON, nil
	}
	return 0, fmt.Errorf("unknown codec %q", s)
}
