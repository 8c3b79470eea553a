package record

import (
	"github.com/ugorji/go/codec"
)

// mh is the payload codec. Canonical mode sorts map keys so that equal
// payloads always serialize to equal bytes, and therefore to equal entry
// hashes.
var mh = newMsgpackHandle()

func newMsgpackHandle() *codec.MsgpackHandle {
	h := new(codec.MsgpackHandle)
	h.Canonical = true
	h.WriteExt = true
	h.RawToString = true
	return h
}

// Marshal encodes a payload into the bytes of an entry.
func Marshal(v interface{}) ([]byte, error) {
	var out []byte
	enc := codec.NewEncoderBytes(&out, mh)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return out, nil
}

// Unmarshal decodes the bytes of an entry into v.
func Unmarshal(data []byte, v interface{}) error {
	dec := codec.NewDecoderBytes(data, mh)
	return dec.Decode(v)
}
