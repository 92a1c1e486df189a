// Package deck implements the plugin side of the button-surface WebSocket
// protocol: event delivery from the host and image/title rendering commands
// back to it.
package deck

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// DefaultRegisterEvent is the registration event name the host expects unless
// it hands the plugin a different one at launch.
const DefaultRegisterEvent = "registerPlugin"

// ActionHandler receives per-instance host events. Implementations must not
// block; long work belongs in their own goroutines.
type ActionHandler interface {
	HandleWillAppear(id string, settings json.RawMessage)
	HandleDidReceiveSettings(id string, settings json.RawMessage)
	HandleKeyDown(id string, settings json.RawMessage)
	HandleWillDisappear(id string)
}

// Config holds configuration for connecting to the host.
type Config struct {
	Port          string       // required: local WebSocket port the host listens on
	PluginUUID    string       // required: identity assigned by the host
	RegisterEvent string       // optional, defaults to DefaultRegisterEvent
	Logger        *slog.Logger // optional
}

// Client is a registered connection to the button-surface host.
type Client struct {
	conn       *websocket.Conn
	writeMu    sync.Mutex
	logger     *slog.Logger
	pluginUUID string
}

// Dial connects to the host on the loopback interface and performs the
// registration handshake.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("host port is required")
	}
	if cfg.PluginUUID == "" {
		return nil, fmt.Errorf("plugin UUID is required")
	}
	registerEvent := cfg.RegisterEvent
	if registerEvent == "" {
		registerEvent = DefaultRegisterEvent
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	u := url.URL{Scheme: "ws", Host: "127.0.0.1:" + cfg.Port}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial host: %w", err)
	}

	c := &Client{
		conn:       conn,
		logger:     logger,
		pluginUUID: cfg.PluginUUID,
	}

	if err := c.send(command{Event: registerEvent, UUID: cfg.PluginUUID}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("register with host: %w", err)
	}

	logger.Info("Registered with button-surface host", "port", cfg.Port)
	return c, nil
}

// Run reads host events and dispatches them to the handler until the
// connection closes or ctx is cancelled. Malformed frames are dropped.
func (c *Client) Run(ctx context.Context, h ActionHandler) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			// Unblocks the pending read below.
			c.conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read host event: %w", err)
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("Dropping malformed host event", "error", err)
			continue
		}
		c.dispatch(ev, h)
	}
}

func (c *Client) dispatch(ev Event, h ActionHandler) {
	switch ev.Event {
	case EventWillAppear:
		if len(ev.Payload.Settings) == 0 {
			// The host omitted settings on appear; request the persisted
			// copy, which arrives later as didReceiveSettings.
			if err := c.GetSettings(ev.Context); err != nil {
				c.logger.Warn("Failed to request settings", "instance", ev.Context, "error", err)
			}
		}
		h.HandleWillAppear(ev.Context, ev.Payload.Settings)
	case EventDidReceiveSettings:
		h.HandleDidReceiveSettings(ev.Context, ev.Payload.Settings)
	case EventKeyDown:
		h.HandleKeyDown(ev.Context, ev.Payload.Settings)
	case EventWillDisappear:
		h.HandleWillDisappear(ev.Context)
	default:
		c.logger.Debug("Ignoring host event", "event", ev.Event)
	}
}

// SetImage renders an encoded image on the instance's key.
func (c *Client) SetImage(id, image string) error {
	return c.send(command{Event: commandSetImage, Context: id, Payload: imagePayload{Image: image}})
}

// SetTitle sets or clears the text title on the instance's key.
func (c *Client) SetTitle(id, title string) error {
	return c.send(command{Event: commandSetTitle, Context: id, Payload: titlePayload{Title: title}})
}

// GetSettings asks the host for the instance's persisted settings. The host
// replies asynchronously with a didReceiveSettings event.
func (c *Client) GetSettings(id string) error {
	return c.send(command{Event: commandGetSettings, Context: id})
}

// send serializes one command frame. WriteJSON is not safe for concurrent
// use, so all writes funnel through the mutex.
func (c *Client) send(cmd command) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(cmd)
}

// Close tears down the host connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
