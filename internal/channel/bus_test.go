package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/signbridge/internal/protocol"
)

func TestBusDispatchOrderAndCancel(t *testing.T) {
	b := NewBus()
	var order []string
	cancelA := b.On("x", func(Message) { order = append(order, "a") })
	b.On("x", func(Message) { order = append(order, "b") })

	assert.True(t, b.Dispatch(Message{Event: "x"}))
	assert.Equal(t, []string{"a", "b"}, order)

	cancelA()
	order = nil
	b.Dispatch(Message{Event: "x"})
	assert.Equal(t, []string{"b"}, order)
	assert.Equal(t, 1, b.Listeners("x"))
}

func TestBusOnceRemovedBeforeCall(t *testing.T) {
	b := NewBus()
	calls := 0
	b.Once("x", func(Message) {
		calls++
		assert.Equal(t, 0, b.Listeners("x"))
	})

	b.Dispatch(Message{Event: "x"})
	assert.False(t, b.Dispatch(Message{Event: "x"}))
	assert.Equal(t, 1, calls)
}

func TestBusHandlerMaySubscribeDuringDispatch(t *testing.T) {
	b := NewBus()
	inner := 0
	b.Once("x", func(Message) {
		b.On("x", func(Message) { inner++ })
	})

	b.Dispatch(Message{Event: "x"})
	assert.Equal(t, 0, inner, "new subscribers wait for the next frame")
	b.Dispatch(Message{Event: "x"})
	assert.Equal(t, 1, inner)
}

func TestMessageDecode(t *testing.T) {
	raw, err := protocol.CBOR.Marshal(map[string]int{"n": 7})
	require.NoError(t, err)

	var out struct {
		N int `cbor:"n"`
	}
	require.NoError(t, NewMessage("e", raw, protocol.CBOR).Decode(&out))
	assert.Equal(t, 7, out.N)

	out.N = 3
	require.NoError(t, NewMessage("e", nil, protocol.CBOR).Decode(&out))
	assert.Equal(t, 3, out.N, "empty payload leaves target untouched")

	assert.Error(t, NewMessage("e", raw, nil).Decode(&out))
}
