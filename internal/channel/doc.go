// Package channel implements the bridge's duplex message channel.
//
// Both ends exchange protocol.Frame values over a WebSocket. A frame names
// an event and carries an encoded payload; subscribers register handlers
// per event name on a Bus, socket.io style.
//
// Key properties:
//   - The codec (JSON text or CBOR binary frames) is negotiated through the
//     Sec-WebSocket-Protocol header (signbridge.json, signbridge.cbor).
//   - The client redials with exponential backoff after transport loss.
//   - Connection state changes are dispatched locally as the reserved
//     events EventConnected and EventDisconnected.
//   - Handlers run on the connection's read goroutine and must not block.
//     Long work belongs in a goroutine started by the handler.
//
// Frames emitted while no connection is up fail with ErrDisconnected.
// Nothing is buffered or replayed across reconnects.
package channel
