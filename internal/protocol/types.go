package protocol

// Channel event names used by the invocation protocol.
const (
	EventMessage         = "message"
	EventMessageResponse = "message.response"
)

// Frame is the unit carried by the message channel.
type Frame struct {
	Event string `json:"event" cbor:"event"`
	Data  Raw    `json:"data,omitempty" cbor:"data,omitempty"`
}

// Envelope is a client→server RPC call.
type Envelope struct {
	InvocationUID string `json:"invocationUid" cbor:"invocationUid"`
	Message       Raw    `json:"message" cbor:"message"`
}

// Response answers exactly one Envelope with the same InvocationUID.
type Response struct {
	InvocationUID string `json:"invocationUid" cbor:"invocationUid"`
	Success       bool   `json:"success" cbor:"success"`
	Response      Raw    `json:"response,omitempty" cbor:"response,omitempty"`
	Error         string `json:"error,omitempty" cbor:"error,omitempty"`
}

// TypedMessage is embedded by every message so it carries its type tag.
type TypedMessage struct {
	Type string `json:"type" cbor:"type"`
}
