package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/signbridge/internal/channel"
	"github.com/mattjoyce/signbridge/internal/events"
	"github.com/mattjoyce/signbridge/internal/log"
	"github.com/mattjoyce/signbridge/internal/overlay"
	"github.com/mattjoyce/signbridge/internal/overlay/mocks"
	"github.com/mattjoyce/signbridge/internal/protocol"
	"github.com/mattjoyce/signbridge/internal/rpc"
)

type staticCounter int

func (c staticCounter) Busy() int     { return int(c) }
func (c staticCounter) Restarts() int { return int(c) }

type echoMessage struct {
	protocol.TypedMessage
	Text string `json:"text" cbor:"text"`
}

func newDispatcher() *rpc.Dispatcher {
	d := rpc.NewDispatcher(log.Discard())
	d.Handle("Test.Echo", func(_ context.Context, req rpc.Request) (any, error) {
		var m echoMessage
		if err := req.Decode(&m); err != nil {
			return nil, err
		}
		return map[string]string{"text": m.Text}, nil
	})
	d.Handle("Test.Nothing", func(context.Context, rpc.Request) (any, error) { return nil, nil })
	d.Handle("Test.Missing", func(context.Context, rpc.Request) (any, error) {
		return nil, fmt.Errorf("%w: screen 3", rpc.ErrResourceNotFound)
	})
	d.Handle("Test.Fail", func(context.Context, rpc.Request) (any, error) {
		return nil, errors.New("volume command exited 1")
	})
	d.Handle("Test.Panic", func(context.Context, rpc.Request) (any, error) {
		panic("boom")
	})
	return d
}

func newTestServer(t *testing.T, cfg Config, deps Deps) *Server {
	t.Helper()
	if deps.Dispatcher == nil {
		deps.Dispatcher = newDispatcher()
	}
	return New(cfg, deps, log.Discard())
}

func do(t *testing.T, h http.Handler, method, target string, body []byte, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e.Error
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, Config{}, Deps{
		Bridge:   channel.NewServer(log.Discard()),
		Slots:    staticCounter(2),
		Restarts: staticCounter(5),
	})
	rec := do(t, s.Handler(), http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthzResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Sessions)
	assert.Equal(t, 2, resp.SlotsBusy)
	assert.Equal(t, 5, resp.Restarts)
}

func TestMessageStatusMapping(t *testing.T) {
	h := newTestServer(t, Config{}, Deps{}).Handler()

	cases := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{name: "ok", body: `{"type":"Test.Echo","text":"hi"}`, status: http.StatusOK, want: `{"text":"hi"}`},
		{name: "nil result", body: `{"type":"Test.Nothing"}`, status: http.StatusOK, want: `{}`},
		{name: "unknown type", body: `{"type":"Nope"}`, status: http.StatusBadRequest, want: "unknown type"},
		{name: "missing type", body: `{"text":"hi"}`, status: http.StatusBadRequest, want: "invalid message"},
		{name: "not json", body: `<xml/>`, status: http.StatusBadRequest, want: "invalid message"},
		{name: "bad payload", body: `{"type":"Test.Echo","text":5}`, status: http.StatusBadRequest, want: "Test.Echo"},
		{name: "not found", body: `{"type":"Test.Missing"}`, status: http.StatusNotFound, want: "screen 3"},
		{name: "handler error", body: `{"type":"Test.Fail"}`, status: http.StatusInternalServerError, want: "exited 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/message", []byte(tc.body), nil)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
		})
	}
}

func TestMessagePanicIsReraised(t *testing.T) {
	h := newTestServer(t, Config{}, Deps{}).Handler()

	// The recoverer middleware must see the panic; the client still gets 500.
	rec := do(t, h, http.MethodPost, "/message", []byte(`{"type":"Test.Panic"}`), nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeError(t, rec), "panicked: boom")
}

func TestOverlayUpload(t *testing.T) {
	ctrl := gomock.NewController(t)
	renderer := mocks.NewMockRenderer(ctrl)
	h := newTestServer(t, Config{MaxOverlayBytes: 16}, Deps{Renderer: renderer}).Handler()

	renderer.EXPECT().Render(gomock.Any(), []byte("png-bytes"), overlay.Params{
		ID: "logo", Width: 100, Height: 50, X: 10, Y: 20,
	}).Return(nil)
	rec := do(t, h, http.MethodPost, "/overlay?id=logo&width=100&height=50&x=10&y=20", []byte("png-bytes"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/overlay?width=100&height=50&x=10&y=20", []byte("png-bytes"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "id")

	rec = do(t, h, http.MethodPost, "/overlay?id=a&width=1&height=1&x=0&y=0&animKFCount=1", []byte("png"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "invalid animation keyframe")

	rec = do(t, h, http.MethodPost, "/overlay?id=a&width=1&height=1&x=0&y=0&animKFCount=1000000000000", []byte("png"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "animKFCount")

	rec = do(t, h, http.MethodPost, "/overlay?id=a&width=1&height=1&x=0&y=0", bytes.Repeat([]byte("x"), 17), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = do(t, h, http.MethodPost, "/overlay?id=a&width=1&height=1&x=0&y=0", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	renderer.EXPECT().Render(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("unsupported image"))
	rec = do(t, h, http.MethodPost, "/overlay?id=a&width=1&height=1&x=0&y=0", []byte("gif"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unsupported image", decodeError(t, rec))
}

func TestUnknownRouteIs404(t *testing.T) {
	h := newTestServer(t, Config{}, Deps{}).Handler()
	rec := do(t, h, http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decodeError(t, rec))
}

func TestAPIKeyProtectsRoutes(t *testing.T) {
	h := newTestServer(t, Config{APIKey: "secret"}, Deps{}).Handler()
	body := []byte(`{"type":"Test.Nothing"}`)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", nil, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/message", body, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/message", body,
		http.Header{"Authorization": {"Bearer wrong"}}).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/message", body,
		http.Header{"Authorization": {"Bearer secret"}}).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/message?access_token=secret", body, nil).Code)
}

func TestOpenAPIListsMessageTypes(t *testing.T) {
	h := newTestServer(t, Config{}, Deps{}).Handler()
	rec := do(t, h, http.MethodGet, "/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		OpenAPI string                    `json:"openapi"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.1.0", doc.OpenAPI)
	for _, p := range []string{"/healthz", "/message", "/overlay", "/bridge", "/events"} {
		assert.Contains(t, doc.Paths, p)
	}
	assert.Contains(t, rec.Body.String(), `"Test.Echo"`)
}

// openEventStream connects to /events and returns a line reader.
func openEventStream(t *testing.T, url string, lastEventID string) func() string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()
	return func() string {
		t.Helper()
		select {
		case l := <-lines:
			return l
		case <-time.After(3 * time.Second):
			t.Fatal("timed out reading SSE")
			return ""
		}
	}
}

func TestEventsStreamReplaysAndFollows(t *testing.T) {
	hub := events.NewHub(8)
	hub.Publish("watchdog.restart", map[string]string{"reason": "timeout"})

	srv := httptest.NewServer(newTestServer(t, Config{}, Deps{Events: hub}).Handler())
	defer srv.Close()

	next := openEventStream(t, srv.URL+"/events", "")
	assert.Equal(t, "id: 1", next())
	assert.Equal(t, "event: watchdog.restart", next())
	assert.Equal(t, `data: {"reason":"timeout"}`, next())
	assert.Equal(t, "", next())

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Publish(protocol.VideoStarted, nil)
	assert.Equal(t, "id: 2", next())
	assert.Equal(t, "event: "+protocol.VideoStarted, next())
}

func TestEventsStreamFiltersAndReportsGap(t *testing.T) {
	hub := events.NewHub(2)
	for i := 0; i < 4; i++ {
		hub.Publish(protocol.VideoEnded, nil)
	}

	srv := httptest.NewServer(newTestServer(t, Config{}, Deps{Events: hub}).Handler())
	defer srv.Close()

	next := openEventStream(t, srv.URL+"/events?types=watchdog.", "1")
	assert.Equal(t, ": events after id 1 are no longer buffered", next())
	assert.Equal(t, "", next())

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Publish(protocol.VideoStarted, nil)
	hub.Publish("watchdog.restart", nil)
	assert.Equal(t, "id: 6", next())
	assert.Equal(t, "event: watchdog.restart", next())
}

func TestBridgeRouteServesRPCWithToken(t *testing.T) {
	bridge := channel.NewServer(log.Discard())
	d := newDispatcher()
	bridge.OnConnect(d.Attach)

	srv := httptest.NewServer(newTestServer(t, Config{APIKey: "secret"}, Deps{Dispatcher: d, Bridge: bridge}).Handler())
	defer srv.Close()
	defer bridge.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/bridge"
	client := channel.NewClient(url, protocol.CBOR, channel.WithToken("secret"), channel.WithClientLogger(log.Discard()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(ctx, 3*time.Second)
	defer waitCancel()
	require.NoError(t, client.WaitConnected(waitCtx))

	caller := rpc.NewClient(client, rpc.WithLogger(log.Discard()))
	var out map[string]string
	require.NoError(t, caller.Invoke(waitCtx, echoMessage{TypedMessage: protocol.TypedMessage{Type: "Test.Echo"}, Text: "over ws"}, &out))
	assert.Equal(t, "over ws", out["text"])
}
