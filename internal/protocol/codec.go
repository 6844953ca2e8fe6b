package protocol

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Codec encodes frames and payloads for one connection. Every Raw value
// travelling on a connection is encoded with that connection's codec.
type Codec interface {
	Name() string
	// Binary reports whether frames must be sent as binary websocket messages.
	Binary() bool
	Marshal(v any) (Raw, error)
	Unmarshal(data []byte, v any) error
}

const (
	CodecJSON = "json"
	CodecCBOR = "cbor"
)

// SubprotocolPrefix is prepended to the codec name in Sec-WebSocket-Protocol.
const SubprotocolPrefix = "signbridge."

// JSON is the default text codec.
var JSON Codec = jsonCodec{}

// CBOR is the deterministic binary codec.
var CBOR Codec = newCBORCodec()

// CodecByName resolves a codec from config or a websocket subprotocol.
// An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), SubprotocolPrefix) {
	case "", CodecJSON:
		return JSON, nil
	case CodecCBOR:
		return CBOR, nil
	default:
		return nil, fmt.Errorf("unsupported codec: %q", name)
	}
}

// Subprotocol returns the websocket subprotocol advertising c.
func Subprotocol(c Codec) string {
	return SubprotocolPrefix + c.Name()
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return CodecJSON }
func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Marshal(v any) (Raw, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return Raw(b), nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json decode: %w", err)
	}
	return nil
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() cborCodec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("protocol: CBOR encoder initialization failed: " + err.Error())
	}
	dec, err := cbor.DecOptions{
		// Payloads decoded into any must stay compatible with encoding/json.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("protocol: CBOR decoder initialization failed: " + err.Error())
	}
	return cborCodec{enc: enc, dec: dec}
}

func (cborCodec) Name() string { return CodecCBOR }
func (cborCodec) Binary() bool { return true }

func (c cborCodec) Marshal(v any) (Raw, error) {
	b, err := c.enc.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cbor encode: %w", err)
	}
	return Raw(b), nil
}

func (c cborCodec) Unmarshal(data []byte, v any) error {
	if err := c.dec.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cbor decode: %w", err)
	}
	return nil
}

// EncodeFrame wraps payload in a Frame named event. A nil payload is sent
// without data.
func EncodeFrame(c Codec, event string, payload any) ([]byte, error) {
	if event == "" {
		return nil, fmt.Errorf("frame event is empty")
	}
	f := Frame{Event: event}
	if payload != nil {
		raw, err := c.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", event, err)
		}
		f.Data = raw
	}
	b, err := c.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return b, nil
}

// DecodeFrame parses one frame and rejects frames without an event name.
func DecodeFrame(c Codec, b []byte) (Frame, error) {
	var f Frame
	if err := c.Unmarshal(b, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Event == "" {
		return Frame{}, fmt.Errorf("frame missing required field: event")
	}
	return f, nil
}

// DecodeResponse parses and validates an RPC response payload.
func DecodeResponse(c Codec, data []byte) (*Response, error) {
	var resp Response
	if err := c.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.InvocationUID == "" {
		return nil, fmt.Errorf("response missing required field: invocationUid")
	}
	return &resp, nil
}

// MessageType peeks at the "type" tag of an encoded message.
func MessageType(c Codec, message []byte) (string, error) {
	var typed struct {
		Type string `json:"type" cbor:"type"`
	}
	if err := c.Unmarshal(message, &typed); err != nil {
		return "", err
	}
	if typed.Type == "" {
		return "", fmt.Errorf("message missing required field: type")
	}
	return typed.Type, nil
}
