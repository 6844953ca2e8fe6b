package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/signbridge/internal/protocol"
)

func recv(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestPipeDeliversInOrder(t *testing.T) {
	for _, codec := range []protocol.Codec{protocol.JSON, protocol.CBOR} {
		t.Run(codec.Name(), func(t *testing.T) {
			a, b := Pipe(codec)
			defer a.Close()

			got := make(chan Message, 10)
			b.On("n", func(m Message) { got <- m })

			for i := 0; i < 5; i++ {
				require.NoError(t, a.Emit("n", map[string]int{"i": i}))
			}
			for i := 0; i < 5; i++ {
				var v struct {
					I int `json:"i" cbor:"i"`
				}
				require.NoError(t, recv(t, got).Decode(&v))
				assert.Equal(t, i, v.I)
			}
		})
	}
}

func TestPipeCloseNotifiesBothSides(t *testing.T) {
	a, b := Pipe(protocol.JSON)
	gone := make(chan Message, 2)
	a.On(EventDisconnected, func(m Message) { gone <- m })
	b.On(EventDisconnected, func(m Message) { gone <- m })

	a.Close()
	recv(t, gone)
	recv(t, gone)

	assert.ErrorIs(t, a.Emit("x", nil), ErrDisconnected)
	assert.ErrorIs(t, b.Emit("x", nil), ErrDisconnected)
	a.Close()
}
