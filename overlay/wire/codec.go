package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode, _ = cbor.CanonicalEncOptions().EncMode()
)

// Encode wraps a frame body in a Frame envelope, CBOR-encoding body
// first. The caller passes one of the *Msg structs in frame.go.
func Encode(t FrameType, body interface{}) (Frame, error) {
	data, err := encMode.Marshal(body)
	if err != nil {
		return Frame{}, fmt.Errorf("wire: encode %s body: %w", t, err)
	}
	return Frame{Type: t, Body: data}, nil
}

// Decode unmarshals a Frame's body into out, which must be a pointer to
// the *Msg struct matching f.Type.
func Decode(f Frame, out interface{}) error {
	if err := cbor.Unmarshal(f.Body, out); err != nil {
		return fmt.Errorf("wire: decode %s body: %w", f.Type, err)
	}
	return nil
}

// MarshalFrame/UnmarshalFrame encode the Frame envelope itself, used by
// transports that need a single self-describing byte slice to put on
// the wire (length-prefixed by the transport).
func MarshalFrame(f Frame) ([]byte, error) {
	return encMode.Marshal(f)
}

func UnmarshalFrame(b []byte) (Frame, error) {
	var f Frame
	if err := cbor.Unmarshal(b, &f); err != nil {
		return Frame{}, fmt.Errorf("wire: unmarshal frame: %w", err)
	}
	return f, nil
}
