package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const testReceiveTimeout = 5 * time.Second

// NewTestingEnv starts a stream server serving the handlers created by
// newHandler. It returns a function to dial new clients and a function that
// closes the server.
func NewTestingEnv(t *testing.T, newHandler func() Handler) (func(clientID string) *websocket.Conn, func()) {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}

	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})

	errors.Encoder = json.Marshal

	dial, close := newTestingEnv(t, newHandler)
	return dial, func() {
		mutex.Lock()
		defer mutex.Unlock()
		logger = nil
		close()
	}
}

func newTestingEnv(t *testing.T, newHandler func() Handler) (func(string) *websocket.Conn, func()) {
	server := httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			handler := newHandler()
			defer handler.Close()

			Handle(context.Background(), conn, handler)
		},
	})

	var mutex sync.Mutex
	var conns []*websocket.Conn

	dial := func(clientID string) *websocket.Conn {
		config, err := websocket.NewConfig(
			strings.ReplaceAll(server.URL, "http://", "ws://"),
			"http://localhost",
		)
		if err != nil {
			t.Fatalf("error initializing web socket: %s", err)
		}

		config.Header.Set("User-Agent", "ted")
		config.Header.Set(xForwardedForHeader, "192.0.0.0")
		if clientID != "" {
			config.Header.Set(HeaderClientID, clientID)
		}

		conn, err := websocket.DialConfig(config)
		if err != nil {
			t.Fatalf("error dialing web socket: %s", err)
		}

		mutex.Lock()
		conns = append(conns, conn)
		mutex.Unlock()
		return conn
	}

	return dial, func() {
		mutex.Lock()
		for _, c := range conns {
			c.Close()
		}
		mutex.Unlock()
		server.Close()
	}
}

// SendTestMsg encodes data as a message of the given type and writes it to
// conn.
func SendTestMsg(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	msg, err := NewMsg(msgType, data)
	if err != nil {
		t.Fatalf("error encoding %s message: %s", msgType, err)
	}

	if _, err := NewSender(conn)(msg); err != nil {
		t.Fatalf("error sending %s message: %s", msgType, err)
	}
}

// ReceiveTestMsg reads messages from conn until one of the given type
// arrives and decodes its data into v. Messages of other types are skipped.
func ReceiveTestMsg(t *testing.T, conn *websocket.Conn, msgType string, v any) {
	receive := NewReceiver(conn)
	conn.SetReadDeadline(time.Now().Add(testReceiveTimeout))
	defer conn.SetReadDeadline(time.Time{})

	for {
		msg, _, err := receive()
		if err != nil {
			t.Fatalf("error receiving %s message: %s", msgType, err)
		}

		if msg.Type != msgType {
			continue
		}

		if v == nil {
			return
		}
		if err := msg.DataTo(v); err != nil {
			t.Fatalf("error decoding %s message: %s", msgType, err)
		}
		return
	}
}
