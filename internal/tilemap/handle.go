package tilemap

import (
	"fmt"
	"hash/fnv"
)

// StringHandle is a Handle backed by a plain tile name. It is the handle
// type used by the in-memory adapter, the CLI fixtures, and tests; host
// integrations supply their own Handle implementations.
type StringHandle string

// Equal reports whether o is a StringHandle with the same name.
func (h StringHandle) Equal(o Handle) bool {
	v, ok := o.(StringHandle)
	return ok && v == h
}

// Hash returns the FNV-1a hash of the tile name.
func (h StringHandle) Hash() uint64 {
	f := fnv.New64a()
	f.Write([]byte(h))
	return f.Sum64()
}

// String returns the tile name.
func (h StringHandle) String() string {
	return string(h)
}

// StringHandleCodec round-trips StringHandle values as their raw bytes.
type StringHandleCodec struct{}

// EncodeHandle returns the tile name as bytes.
func (StringHandleCodec) EncodeHandle(h Handle) ([]byte, error) {
	v, ok := h.(StringHandle)
	if !ok {
		return nil, fmt.Errorf("tilemap: cannot encode handle of type %T", h)
	}
	return []byte(v), nil
}

// DecodeHandle rebuilds a StringHandle from its raw bytes.
func (StringHandleCodec) DecodeHandle(data []byte) (Handle, error) {
	return StringHandle(data), nil
}
