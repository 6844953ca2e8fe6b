package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameCarriesPayloadInBothCodecs(t *testing.T) {
	for _, c := range []Codec{JSON, CBOR} {
		t.Run(c.Name(), func(t *testing.T) {
			cmd := VideoCommand{VideoArgs: VideoArgs{URI: "video/a.mp4", X: 10, Y: 20, Width: 640, Height: 360}, IsStream: true}
			b, err := EncodeFrame(c, PrepareVideo, cmd)
			require.NoError(t, err)

			f, err := DecodeFrame(c, b)
			require.NoError(t, err)
			assert.Equal(t, PrepareVideo, f.Event)

			var got VideoCommand
			require.NoError(t, c.Unmarshal(f.Data, &got))
			assert.Equal(t, cmd, got)
		})
	}
}

func TestJSONVideoArgsAreFlattened(t *testing.T) {
	raw, err := JSON.Marshal(VideoEvent{VideoArgs: VideoArgs{URI: "a.mp4", Width: 1920, Height: 1080}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"uri":"a.mp4","x":0,"y":0,"width":1920,"height":1080}`, string(raw))
}

func TestFrameWithoutPayload(t *testing.T) {
	for _, c := range []Codec{JSON, CBOR} {
		b, err := EncodeFrame(c, NotifyApplicationAlive, nil)
		require.NoError(t, err)
		f, err := DecodeFrame(c, b)
		require.NoError(t, err)
		assert.Equal(t, NotifyApplicationAlive, f.Event)
		assert.True(t, f.Data.IsNull(), "codec %s", c.Name())
	}
}

func TestDecodeFrameRejectsMissingEvent(t *testing.T) {
	_, err := DecodeFrame(JSON, []byte(`{"data":{}}`))
	assert.ErrorContains(t, err, "event")

	_, err = DecodeFrame(JSON, []byte(`not json`))
	assert.Error(t, err)
}

func TestEnvelopeRoutesBeforePayloadDecode(t *testing.T) {
	for _, c := range []Codec{JSON, CBOR} {
		msg, err := c.Marshal(SetVolume{TypedMessage: TypedMessage{Type: AudioSetVolume}, Volume: 42})
		require.NoError(t, err)
		env, err := c.Marshal(Envelope{InvocationUID: "abc", Message: msg})
		require.NoError(t, err)

		var decoded Envelope
		require.NoError(t, c.Unmarshal(env, &decoded))
		assert.Equal(t, "abc", decoded.InvocationUID)

		typ, err := MessageType(c, decoded.Message)
		require.NoError(t, err)
		assert.Equal(t, AudioSetVolume, typ)

		var sv SetVolume
		require.NoError(t, c.Unmarshal(decoded.Message, &sv))
		assert.Equal(t, 42, sv.Volume)
	}
}

func TestMessageTypeRequiresTag(t *testing.T) {
	_, err := MessageType(JSON, []byte(`{"volume":1}`))
	assert.ErrorContains(t, err, "type")
}

func TestDecodeResponse(t *testing.T) {
	resp, err := DecodeResponse(JSON, []byte(`{"invocationUid":"x","success":true,"response":7}`))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "7", string(resp.Response))

	_, err = DecodeResponse(JSON, []byte(`{"success":true}`))
	assert.ErrorContains(t, err, "invocationUid")
}

func TestCodecByName(t *testing.T) {
	c, err := CodecByName("")
	require.NoError(t, err)
	assert.Equal(t, CodecJSON, c.Name())

	c, err = CodecByName("signbridge.cbor")
	require.NoError(t, err)
	assert.True(t, c.Binary())
	assert.Equal(t, "signbridge.cbor", Subprotocol(c))

	_, err = CodecByName("xml")
	assert.Error(t, err)
}
