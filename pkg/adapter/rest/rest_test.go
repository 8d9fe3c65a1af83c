package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tether/pkg/adapter"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(map[string]interface{}{"base_url": "https://api.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "rest", cfg.Name)
	assert.Equal(t, "https://api.example.com", cfg.BaseURL, "trailing slash trimmed")
	assert.Equal(t, "none", cfg.AuthType)
	assert.Equal(t, "/ws", cfg.WebSocketPath)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, "/messages", cfg.PollEndpoint)
	assert.Equal(t, "/send", cfg.SendEndpoint)
}

func TestParseConfigRequiresBaseURL(t *testing.T) {
	_, err := ParseConfig(nil)
	assert.Error(t, err)
}

func TestParseConfigRejectsUnknownAuth(t *testing.T) {
	_, err := ParseConfig(map[string]interface{}{
		"base_url":  "http://x",
		"auth_type": "kerberos",
	})
	assert.Error(t, err)
}

func TestPrepareHeaders(t *testing.T) {
	tests := []struct {
		name   string
		raw    map[string]interface{}
		header string
		want   string
	}{
		{
			name: "bearer",
			raw: map[string]interface{}{
				"base_url":         "http://x",
				"auth_type":        "bearer",
				"auth_credentials": map[string]string{"token": "tok123"},
			},
			header: "Authorization",
			want:   "Bearer tok123",
		},
		{
			name: "basic",
			raw: map[string]interface{}{
				"base_url":         "http://x",
				"auth_type":        "basic",
				"auth_credentials": map[string]string{"username": "u", "password": "p"},
			},
			header: "Authorization",
			want:   "Basic dTpw", // base64("u:p")
		},
		{
			name: "api key default header",
			raw: map[string]interface{}{
				"base_url":         "http://x",
				"auth_type":        "api_key",
				"auth_credentials": map[string]string{"key_value": "k"},
			},
			header: "X-API-Key",
			want:   "k",
		},
		{
			name: "api key custom header",
			raw: map[string]interface{}{
				"base_url":         "http://x",
				"auth_type":        "api_key",
				"auth_credentials": map[string]string{"key_name": "X-Token", "key_value": "k"},
			},
			header: "X-Token",
			want:   "k",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.raw)
			require.NoError(t, err)
			headers := a.(*Adapter).prepareHeaders()
			assert.Equal(t, tt.want, headers[tt.header])
		})
	}
}

func TestPollModeEndToEnd(t *testing.T) {
	var mu sync.Mutex
	pending := []string{"first payload", "second payload"}
	var sent [][]byte

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/messages":
			mu.Lock()
			defer mu.Unlock()
			if len(pending) == 0 {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			msg := pending[0]
			pending = pending[1:]
			_, _ = w.Write([]byte(msg))
		case "/send":
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			sent = append(sent, body)
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	a, err := New(map[string]interface{}{
		"base_url":           ts.URL,
		"poll_interval":      "10ms",
		"retry_max_attempts": 2,
		"timeout":            5,
	})
	require.NoError(t, err)

	var received atomic.Int64
	a.SetMessageHandler(func(_ context.Context, data []byte) error {
		received.Add(1)
		return nil
	})

	require.NoError(t, a.Connect(context.Background()))
	assert.Equal(t, adapter.StatusConnected, a.Status())

	require.Eventually(t, func() bool { return received.Load() == 2 },
		5*time.Second, 10*time.Millisecond, "poll loop delivers both payloads")

	n, err := a.Send(context.Background(), []byte("outbound"))
	require.NoError(t, err)
	assert.Equal(t, len("outbound"), n)
	mu.Lock()
	require.Len(t, sent, 1)
	assert.Equal(t, "outbound", string(sent[0]))
	mu.Unlock()

	m := a.Metrics()
	assert.Equal(t, int64(2), m.MessagesReceived)
	assert.Equal(t, int64(1), m.MessagesSent)

	require.NoError(t, a.Disconnect(context.Background()))
	assert.Equal(t, adapter.StatusDisconnected, a.Status())
}

func TestPollModeConnectFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a, err := New(map[string]interface{}{
		"base_url":           ts.URL,
		"retry_max_attempts": 1,
		"timeout":            2,
	})
	require.NoError(t, err)

	err = a.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, adapter.StatusError, a.Status())
	assert.Equal(t, int64(1), a.Metrics().ReconnectAttempts)
}

func TestWebSocketModeEndToEnd(t *testing.T) {
	upgrader := websocket.Upgrader{}
	echoed := make(chan []byte, 4)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Push one message to the client, then echo whatever it writes.
		_ = conn.WriteMessage(websocket.TextMessage, []byte("server says hi"))
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			echoed <- data
		}
	}))
	defer ts.Close()

	a, err := New(map[string]interface{}{
		"base_url":           ts.URL,
		"use_websocket":      true,
		"retry_max_attempts": 2,
		"timeout":            5,
	})
	require.NoError(t, err)

	received := make(chan []byte, 4)
	a.SetMessageHandler(func(_ context.Context, data []byte) error {
		received <- data
		return nil
	})

	require.NoError(t, a.Connect(context.Background()))
	assert.Equal(t, adapter.StatusConnected, a.Status())

	select {
	case data := <-received:
		assert.Equal(t, "server says hi", string(data))
	case <-time.After(5 * time.Second):
		t.Fatal("no inbound websocket message")
	}

	_, err = a.Send(context.Background(), []byte("client says hi"))
	require.NoError(t, err)
	select {
	case data := <-echoed:
		assert.Equal(t, "client says hi", string(data))
	case <-time.After(5 * time.Second):
		t.Fatal("server never received the frame")
	}

	require.NoError(t, a.Disconnect(context.Background()))
	assert.Equal(t, adapter.StatusDisconnected, a.Status())
}

func TestSendRequiresConnected(t *testing.T) {
	a, err := New(map[string]interface{}{"base_url": "http://localhost:1"})
	require.NoError(t, err)

	_, err = a.Send(context.Background(), []byte("x"))
	assert.Error(t, err)
}
