// Package smoketest checks that a Raido server streams the world end to end.
package smoketest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/raido/spatial"
	rwebsocket "github.com/aukilabs/raido/websocket"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeSmokeTestFailed = "smoke_test_failed"

	DefaultTimeout = time.Second * 10

	streamPath = "/stream"
)

type Options struct {
	// The public endpoint of the server to test.
	Endpoint string

	UserAgent string

	// The maximum duration of a smoke test.
	Timeout time.Duration
}

// Results describes the outcome of a smoke test.
type Results struct {
	Endpoint           string        `json:"endpoint"`
	Success            bool          `json:"success"`
	Error              string        `json:"error,omitempty"`
	PingLatency        time.Duration `json:"ping_latency"`
	FirstUpdateLatency time.Duration `json:"first_update_latency"`
	QueuedChunks       int           `json:"queued_chunks"`
	Duration           time.Duration `json:"duration"`
}

// Run connects to the stream endpoint of opts.Endpoint, pings it, sends a
// viewpoint and waits for the first stream update and the streaming stats.
func Run(ctx context.Context, opts Options) (Results, error) {
	start := time.Now()
	res := Results{Endpoint: opts.Endpoint}

	err := run(ctx, opts, &res)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err.Error()
		return res, errors.New("smoke test failed").
			WithType(ErrTypeSmokeTestFailed).
			WithTag("endpoint", opts.Endpoint).
			Wrap(err)
	}

	res.Success = true
	return res, nil
}

func run(ctx context.Context, opts Options, res *Results) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	config, err := websocket.NewConfig(streamURL(opts.Endpoint), opts.Endpoint)
	if err != nil {
		return errors.New("creating websocket config failed").Wrap(err)
	}
	if opts.UserAgent != "" {
		config.Header.Set("User-Agent", opts.UserAgent)
	}
	config.Header.Set(rwebsocket.HeaderClientID, "smoketest-"+uuid.NewString())

	conn, err := config.DialContext(ctx)
	if err != nil {
		return errors.New("dialing stream endpoint failed").Wrap(err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	send := rwebsocket.NewSender(conn)
	receive := rwebsocket.NewReceiver(conn)

	start := time.Now()
	if err := sendMsg(send, rwebsocket.MsgTypePing, rwebsocket.Request{RequestID: 1}); err != nil {
		return err
	}
	if _, err := waitFor(receive, rwebsocket.MsgTypePong); err != nil {
		return err
	}
	res.PingLatency = time.Since(start)

	start = time.Now()
	if err := sendMsg(send, rwebsocket.MsgTypeViewpoint, rwebsocket.ViewpointMsg{
		Position: spatial.NewVector3f(0, 0, 0),
	}); err != nil {
		return err
	}
	msg, err := waitFor(receive, rwebsocket.MsgTypeStreamUpdate)
	if err != nil {
		return err
	}
	res.FirstUpdateLatency = time.Since(start)

	var update rwebsocket.StreamUpdate
	if err := msg.DataTo(&update); err != nil {
		return err
	}
	res.QueuedChunks = len(update.Load)

	if err := sendMsg(send, rwebsocket.MsgTypeStatsRequest, rwebsocket.Request{RequestID: 2}); err != nil {
		return err
	}
	_, err = waitFor(receive, rwebsocket.MsgTypeStatsResponse)
	return err
}

func sendMsg(send rwebsocket.Sender, msgType string, data any) error {
	msg, err := rwebsocket.NewMsg(msgType, data)
	if err != nil {
		return err
	}

	if _, err := send(msg); err != nil {
		return errors.New("sending message failed").
			WithTag("msg_type", msgType).
			Wrap(err)
	}
	return nil
}

// waitFor skips received messages until one of the given type arrives. An
// error message from the server fails the wait.
func waitFor(receive rwebsocket.Receiver, msgType string) (rwebsocket.Msg, error) {
	for {
		msg, _, err := receive()
		if err != nil {
			return rwebsocket.Msg{}, errors.New("receiving message failed").
				WithTag("expected_msg_type", msgType).
				Wrap(err)
		}

		switch msg.Type {
		case msgType:
			return msg, nil

		case rwebsocket.MsgTypeError:
			var res rwebsocket.ErrorResponse
			msg.DataTo(&res)
			return rwebsocket.Msg{}, errors.New("server responded with an error").
				WithTag("expected_msg_type", msgType).
				WithTag("error_type", res.ErrorType).
				WithTag("message", res.Message)
		}
	}
}

func streamURL(endpoint string) string {
	endpoint = strings.TrimSuffix(endpoint, "/")
	endpoint = strings.Replace(endpoint, "https://", "wss://", 1)
	endpoint = strings.Replace(endpoint, "http://", "ws://", 1)
	return endpoint + streamPath
}

// HandleSmokeTest runs a smoke test against opts.Endpoint and writes its
// results as JSON.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := Run(ctx, opts)
		if err != nil {
			logs.WithTag("endpoint", opts.Endpoint).Warn(err)
		}

		b, err := json.Marshal(res)
		if err != nil {
			logs.Warn(errors.New("encoding smoke test results failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if !res.Success {
			w.WriteHeader(http.StatusBadGateway)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		w.Write(b)
	}
}
