package deck

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testHost is a fake button-surface host: it accepts one WebSocket
// connection and exposes both directions as channels.
type testHost struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
	recv  chan map[string]any
}

func newTestHost(t *testing.T) *testHost {
	t.Helper()
	h := &testHost{
		conns: make(chan *websocket.Conn, 1),
		recv:  make(chan map[string]any, 16),
	}
	upgrader := websocket.Upgrader{}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.conns <- conn
		for {
			var frame map[string]any
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			h.recv <- frame
		}
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *testHost) port(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(h.srv.URL)
	require.NoError(t, err)
	return u.Port()
}

func (h *testHost) nextFrame(t *testing.T) map[string]any {
	t.Helper()
	select {
	case frame := <-h.recv:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame from plugin")
		return nil
	}
}

func (h *testHost) conn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-h.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for plugin connection")
		return nil
	}
}

// recordingHandler captures dispatched events.
type recordingHandler struct {
	got chan string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{got: make(chan string, 16)}
}

func (h *recordingHandler) HandleWillAppear(id string, settings json.RawMessage) {
	h.got <- "willAppear:" + id + ":" + string(settings)
}

func (h *recordingHandler) HandleDidReceiveSettings(id string, settings json.RawMessage) {
	h.got <- "didReceiveSettings:" + id + ":" + string(settings)
}

func (h *recordingHandler) HandleKeyDown(id string, settings json.RawMessage) {
	h.got <- "keyDown:" + id + ":" + string(settings)
}

func (h *recordingHandler) HandleWillDisappear(id string) {
	h.got <- "willDisappear:" + id
}

func (h *recordingHandler) next(t *testing.T) string {
	t.Helper()
	select {
	case s := <-h.got:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched event")
		return ""
	}
}

func dialTestClient(t *testing.T, host *testHost) *Client {
	t.Helper()
	c, err := Dial(context.Background(), Config{
		Port:       host.port(t),
		PluginUUID: "plugin-uuid-1",
		Logger:     testLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDialRegisters(t *testing.T) {
	host := newTestHost(t)
	dialTestClient(t, host)

	frame := host.nextFrame(t)
	assert.Equal(t, DefaultRegisterEvent, frame["event"])
	assert.Equal(t, "plugin-uuid-1", frame["uuid"])
}

func TestDialRequiresConnectionParams(t *testing.T) {
	_, err := Dial(context.Background(), Config{PluginUUID: "x"})
	require.Error(t, err)

	_, err = Dial(context.Background(), Config{Port: "1"})
	require.Error(t, err)
}

func TestRunDispatchesEvents(t *testing.T) {
	host := newTestHost(t)
	c := dialTestClient(t, host)
	host.nextFrame(t) // registration

	handler := newRecordingHandler()
	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx, handler) }()

	conn := host.conn(t)
	events := []map[string]any{
		{"event": "willAppear", "context": "key1", "payload": map[string]any{"settings": map[string]any{"symbol": "ETHUSDT"}}},
		{"event": "keyDown", "context": "key1", "payload": map[string]any{"settings": map[string]any{"symbol": "ETHUSDT"}}},
		{"event": "didReceiveSettings", "context": "key1", "payload": map[string]any{"settings": map[string]any{"symbol": "SOLUSDT"}}},
		{"event": "willDisappear", "context": "key1"},
	}
	for _, ev := range events {
		require.NoError(t, conn.WriteJSON(ev))
	}

	assert.Contains(t, handler.next(t), `willAppear:key1:{"symbol":"ETHUSDT"}`)
	assert.Contains(t, handler.next(t), `keyDown:key1:{"symbol":"ETHUSDT"}`)
	assert.Contains(t, handler.next(t), `didReceiveSettings:key1:{"symbol":"SOLUSDT"}`)
	assert.Equal(t, "willDisappear:key1", handler.next(t))

	cancel()
	select {
	case err := <-runDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunSkipsMalformedFrames(t *testing.T) {
	host := newTestHost(t)
	c := dialTestClient(t, host)
	host.nextFrame(t)

	handler := newRecordingHandler()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx, handler) }()

	conn := host.conn(t)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(map[string]any{"event": "willDisappear", "context": "key1"}))

	assert.Equal(t, "willDisappear:key1", handler.next(t))
}

func TestWillAppearWithoutSettingsRequestsThem(t *testing.T) {
	host := newTestHost(t)
	c := dialTestClient(t, host)
	host.nextFrame(t)

	handler := newRecordingHandler()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx, handler) }()

	conn := host.conn(t)
	require.NoError(t, conn.WriteJSON(map[string]any{"event": "willAppear", "context": "key9"}))

	frame := host.nextFrame(t)
	assert.Equal(t, "getSettings", frame["event"])
	assert.Equal(t, "key9", frame["context"])
	assert.Contains(t, handler.next(t), "willAppear:key9")
}

func TestCommandFrames(t *testing.T) {
	host := newTestHost(t)
	c := dialTestClient(t, host)
	host.nextFrame(t)

	require.NoError(t, c.SetImage("key1", "data:image/svg+xml,abc"))
	frame := host.nextFrame(t)
	assert.Equal(t, "setImage", frame["event"])
	assert.Equal(t, "key1", frame["context"])
	payload, ok := frame["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "data:image/svg+xml,abc", payload["image"])

	require.NoError(t, c.SetTitle("key1", "Error"))
	frame = host.nextFrame(t)
	assert.Equal(t, "setTitle", frame["event"])
	payload, ok = frame["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Error", payload["title"])
}
