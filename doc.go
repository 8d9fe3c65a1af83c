// Package tether provides a uniform gateway for heterogeneous communication
// protocols. One adapter contract covers MQTT brokers, Kafka clusters and
// REST/WebSocket endpoints, so callers open, feed, inspect and tear down
// connections the same way regardless of transport.
//
// # Architecture
//
// Tether is organized around four pieces:
//
// 1. Adapter Contract (pkg/adapter): the lifecycle every transport
// implements, with connect driven through a bounded retry/backoff policy.
//
// 2. Base Adapter (pkg/adapter/base): the shared machinery transports embed:
// status tracking, connection metrics, a ring buffer of recent payload
// samples, handler dispatch with failure isolation, and background
// goroutine bookkeeping.
//
// 3. Connection Registry (pkg/registry): the concurrency-safe directory of
// live connections, keyed by connection identifier, with create-or-resume
// semantics and graceful or forced teardown.
//
// 4. HTTP surface (internal/server): the REST API exposing connect, status,
// sample, send, disconnect, listing and health, plus Prometheus metrics
// and documentation search.
//
// # Quick Start
//
// Create a connection through the registry:
//
//	import (
//	    "context"
//	    "github.com/ajitpratap0/tether/pkg/adapter/mqtt"
//	    "github.com/ajitpratap0/tether/pkg/registry"
//	)
//
//	reg := registry.New()
//	_ = reg.RegisterFactory(mqtt.TransportName, mqtt.New)
//
//	id, conn, err := reg.CreateOrResume(context.Background(), "mqtt", map[string]interface{}{
//	    "host":         "broker.example.com",
//	    "topic_prefix": "plant/line-4",
//	}, "")
//	if err != nil {
//	    // handle connect failure; nothing was registered
//	}
//	defer reg.Disconnect(context.Background(), id, false)
//
//	_, _ = conn.Send(context.Background(), []byte(`{"cmd":"start"}`))
//
// Or run the full gateway:
//
//	tether serve --config tether.yaml
package tether
