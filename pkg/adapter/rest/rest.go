// Package rest implements the REST/HTTP transport adapter. It runs in one
// of two modes: a polling loop against a messages endpoint, or a duplex
// WebSocket session when use_websocket is set.
package rest

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tether/pkg/adapter"
	"github.com/ajitpratap0/tether/pkg/adapter/base"
	"github.com/ajitpratap0/tether/pkg/clients"
	"github.com/ajitpratap0/tether/pkg/errors"
)

// TransportName is the registry type name of this adapter.
const TransportName = "rest"

// Probe endpoints tried in order when verifying a polling connection.
var testEndpoints = []string{"/status", "/ping", "/health", "/"}

// Config extends the base adapter configuration with HTTP connection
// parameters.
type Config struct {
	adapter.Config `mapstructure:",squash"`

	BaseURL         string            `mapstructure:"base_url"`
	AuthType        string            `mapstructure:"auth_type"` // none, basic, bearer, api_key
	AuthCredentials map[string]string `mapstructure:"auth_credentials"`
	Headers         map[string]string `mapstructure:"headers"`
	UseWebSocket    bool              `mapstructure:"use_websocket"`
	WebSocketPath   string            `mapstructure:"websocket_path"`
	PollInterval    time.Duration     `mapstructure:"poll_interval"`
	PollEndpoint    string            `mapstructure:"poll_endpoint"`
	SendEndpoint    string            `mapstructure:"send_endpoint"`
}

// ParseConfig builds a Config from a free-form configuration map.
func ParseConfig(raw map[string]interface{}) (*Config, error) {
	cfg := &Config{
		Config:        adapter.DefaultConfig(TransportName),
		AuthType:      "none",
		WebSocketPath: "/ws",
		PollInterval:  time.Second,
		PollEndpoint:  "/messages",
		SendEndpoint:  "/send",
	}
	if err := adapter.Decode(raw, cfg); err != nil {
		return nil, err
	}
	cfg.Name = TransportName
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "base_url is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	switch cfg.AuthType {
	case "none", "basic", "bearer", "api_key":
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown auth_type %q", cfg.AuthType)
	}
	if cfg.PollInterval <= 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "poll_interval must be positive")
	}
	return cfg, nil
}

// Adapter is the REST/HTTP transport adapter.
type Adapter struct {
	*base.BaseAdapter

	cfg     *Config
	client  *clients.HTTPClient
	headers map[string]string

	wsMu sync.Mutex
	ws   *websocket.Conn
}

// New creates a REST adapter from a free-form configuration map. Matches
// the registry.Factory signature.
func New(raw map[string]interface{}) (adapter.Adapter, error) {
	cfg, err := ParseConfig(raw)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		BaseAdapter: base.NewBaseAdapter(cfg.Config),
		cfg:         cfg,
	}, nil
}

// prepareHeaders assembles the request headers, folding in the configured
// authentication scheme.
func (a *Adapter) prepareHeaders() map[string]string {
	headers := make(map[string]string, len(a.cfg.Headers)+1)
	for k, v := range a.cfg.Headers {
		headers[k] = v
	}

	creds := a.cfg.AuthCredentials
	switch a.cfg.AuthType {
	case "bearer":
		headers["Authorization"] = "Bearer " + creds["token"]
	case "api_key":
		keyName := creds["key_name"]
		if keyName == "" {
			keyName = "X-API-Key"
		}
		headers[keyName] = creds["key_value"]
	case "basic":
		raw := creds["username"] + ":" + creds["password"]
		headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
	}
	return headers
}

// Connect verifies the endpoint (or dials the WebSocket) under the retry
// policy and starts the receive loop.
func (a *Adapter) Connect(ctx context.Context) error {
	a.BeginConnect(ctx)
	a.headers = a.prepareHeaders()

	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.RequestTimeout = a.cfg.Timeout
	a.client = clients.NewHTTPClient(httpCfg, a.Logger())

	var connect func(ctx context.Context) error
	if a.cfg.UseWebSocket {
		connect = a.dialWebSocket
	} else {
		connect = a.verifyEndpoint
	}
	if err := a.ConnectWithRetry(ctx, connect); err != nil {
		a.client.Close()
		return err
	}

	if a.cfg.UseWebSocket {
		a.Go("receive", a.runWebSocketLoop)
	} else {
		a.Go("receive", a.runPollLoop)
	}
	return nil
}

// dialWebSocket opens the duplex session.
func (a *Adapter) dialWebSocket(ctx context.Context) error {
	wsURL := strings.Replace(a.cfg.BaseURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	wsURL += a.cfg.WebSocketPath

	header := http.Header{}
	for k, v := range a.headers {
		header.Set(k, v)
	}

	dialer := websocket.Dialer{HandshakeTimeout: a.cfg.Timeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection,
			fmt.Sprintf("websocket dial to %s failed", wsURL))
	}

	a.wsMu.Lock()
	a.ws = conn
	a.wsMu.Unlock()

	a.Logger().Info("websocket connected", zap.String("url", wsURL))
	return nil
}

// verifyEndpoint probes a handful of conventional endpoints; any response
// below 500 counts as reachable.
func (a *Adapter) verifyEndpoint(ctx context.Context) error {
	for _, endpoint := range testEndpoints {
		resp, err := a.client.Get(ctx, a.cfg.BaseURL+endpoint, a.headers)
		if err != nil {
			continue
		}
		status := resp.StatusCode
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if status < http.StatusInternalServerError {
			a.Logger().Info("endpoint verified",
				zap.String("url", a.cfg.BaseURL+endpoint), zap.Int("status", status))
			return nil
		}
	}
	return errors.Newf(errors.ErrorTypeConnection, "no reachable endpoint under %s", a.cfg.BaseURL)
}

// runPollLoop periodically fetches the poll endpoint. 204 means no new
// messages and is not an error; failures double the wait before retrying.
func (a *Adapter) runPollLoop(ctx context.Context) {
	url := a.cfg.BaseURL + a.cfg.PollEndpoint

	wait := a.cfg.PollInterval
	for a.Running() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		wait = a.cfg.PollInterval

		resp, err := a.client.Get(ctx, url, a.headers)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.HandleError(ctx, errors.Wrap(err, errors.ErrorTypeReceive, "poll request failed"))
			wait = a.cfg.PollInterval * 2
			continue
		}

		switch resp.StatusCode {
		case http.StatusOK:
			data, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr != nil {
				a.HandleError(ctx, errors.Wrap(readErr, errors.ErrorTypeReceive, "poll body read failed"))
				continue
			}
			if len(data) > 0 {
				a.HandleReceivedData(ctx, data)
			}
		case http.StatusNoContent:
			_ = resp.Body.Close()
		default:
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			a.Logger().Warn("poll request returned unexpected status",
				zap.Int("status", resp.StatusCode))
		}
	}
}

// runWebSocketLoop reads frames until the session or the adapter stops.
func (a *Adapter) runWebSocketLoop(ctx context.Context) {
	conn := a.wsConn()
	if conn == nil {
		return
	}

	for a.Running() {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !a.Running() || ctx.Err() != nil {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				a.Logger().Info("websocket closed by peer")
				return
			}
			a.HandleError(ctx, errors.Wrap(err, errors.ErrorTypeReceive, "websocket read failed"))
			return
		}
		if msgType == websocket.TextMessage || msgType == websocket.BinaryMessage {
			a.HandleReceivedData(ctx, data)
		}
	}
}

func (a *Adapter) wsConn() *websocket.Conn {
	a.wsMu.Lock()
	defer a.wsMu.Unlock()
	return a.ws
}

// Send writes data to the WebSocket, or POSTs it to the send endpoint in
// polling mode.
func (a *Adapter) Send(ctx context.Context, data []byte) (int, error) {
	if err := a.EnsureConnected(); err != nil {
		return 0, err
	}

	if a.cfg.UseWebSocket {
		conn := a.wsConn()
		if conn == nil {
			err := errors.New(errors.ErrorTypeConnection, "websocket is closed")
			a.HandleError(ctx, err)
			return 0, err
		}
		a.wsMu.Lock()
		err := conn.WriteMessage(websocket.BinaryMessage, data)
		a.wsMu.Unlock()
		if err != nil {
			werr := errors.Wrap(err, errors.ErrorTypeSend, "websocket write failed")
			a.HandleError(ctx, werr)
			return 0, werr
		}
	} else {
		headers := make(map[string]string, len(a.headers)+1)
		for k, v := range a.headers {
			headers[k] = v
		}
		headers["Content-Type"] = "application/octet-stream"

		resp, err := a.client.Post(ctx, a.cfg.BaseURL+a.cfg.SendEndpoint, bytes.NewReader(data), headers)
		if err != nil {
			werr := errors.Wrap(err, errors.ErrorTypeSend, "send request failed")
			a.HandleError(ctx, werr)
			return 0, werr
		}
		status := resp.StatusCode
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if status >= http.StatusBadRequest {
			werr := errors.Newf(errors.ErrorTypeSend, "send endpoint returned %d", status)
			a.HandleError(ctx, werr)
			return 0, werr
		}
	}

	a.RecordSend(len(data))
	return len(data), nil
}

// Request performs an arbitrary HTTP request against the configured base
// URL using the adapter's session headers.
func (a *Adapter) Request(ctx context.Context, method, endpoint string, body io.Reader) (*http.Response, error) {
	if err := a.EnsureConnected(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+endpoint, body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "request build failed")
	}
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}
	return a.client.Do(req)
}

// Disconnect closes the WebSocket and the HTTP session, then joins all
// background goroutines.
func (a *Adapter) Disconnect(context.Context) error {
	a.wsMu.Lock()
	conn := a.ws
	a.ws = nil
	a.wsMu.Unlock()
	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}

	a.Shutdown()
	if a.client != nil {
		a.client.Close()
	}
	return nil
}
