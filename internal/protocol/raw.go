package protocol

import "fmt"

// cborNull is the CBOR encoding of null (major type 7, simple value 22).
var cborNull = []byte{0xf6}

// Raw is an already-encoded value in the codec of the frame that carried
// it. It passes through both JSON and CBOR marshaling untouched, so
// envelopes can be routed on their header before the payload is decoded.
type Raw []byte

func (r Raw) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

func (r *Raw) UnmarshalJSON(b []byte) error {
	if r == nil {
		return fmt.Errorf("protocol.Raw: UnmarshalJSON on nil pointer")
	}
	*r = append((*r)[:0], b...)
	return nil
}

func (r Raw) MarshalCBOR() ([]byte, error) {
	if len(r) == 0 {
		return cborNull, nil
	}
	return r, nil
}

func (r *Raw) UnmarshalCBOR(b []byte) error {
	if r == nil {
		return fmt.Errorf("protocol.Raw: UnmarshalCBOR on nil pointer")
	}
	*r = append((*r)[:0], b...)
	return nil
}

// IsNull reports whether r is empty or an encoded null in either codec.
func (r Raw) IsNull() bool {
	s := string(r)
	return len(r) == 0 || s == "null" || s == string(cborNull)
}
