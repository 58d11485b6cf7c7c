package websocket

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

const (
	xForwardedForHeader = "X-Forwarded-For"
	sessionIDTag        = "session_id"
	sessionUUIDTag      = "session_uuid"
)

// HandlerWithLogs decorates h with connection logs and a periodic summary of
// the received messages.
func HandlerWithLogs(h Handler, summaryInterval time.Duration) Handler {
	ctx, cancel := context.WithCancel(context.Background())

	handler := &handlerWithLogs{
		Handler:            h,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
		counter:            make(map[string]int),
	}

	go handler.startSummaryWorker(ctx)
	return handler
}

type handlerWithLogs struct {
	Handler

	originalRequest *http.Request

	summaryInterval    time.Duration
	closeSummaryWorker func()
	counterMutex       sync.Mutex
	counter            map[string]int

	sessionID   uint32
	sessionUUID string
	frames      int
}

func (h *handlerWithLogs) HandleConnect(conn *websocket.Conn) {
	h.Handler.HandleConnect(conn)
	h.originalRequest = conn.Request()

	if s := h.CurrentSession(); s != nil {
		h.sessionID = s.ID
		h.sessionUUID = s.SessionUUID
	}

	entry := logs.WithClientID(h.GetClientID()).
		WithTag(sessionIDTag, h.sessionID).
		WithTag(sessionUUIDTag, h.sessionUUID)
	if h.originalRequest != nil {
		entry = entry.WithTag("http_headers", struct {
			UserAgent     string `json:"user_agent,omitempty"`
			XForwardedFor string `json:"x_forwarded_for,omitempty"`
		}{
			UserAgent:     h.originalRequest.UserAgent(),
			XForwardedFor: h.originalRequest.Header.Get(xForwardedForHeader),
		})
	}
	entry.Info("new client is connected")
}

func (h *handlerWithLogs) HandleDisconnect(err error) {
	h.Handler.HandleDisconnect(err)

	entry := logs.WithClientID(h.GetClientID()).
		WithTag(sessionIDTag, h.sessionID).
		WithTag(sessionUUIDTag, h.sessionUUID).
		WithTag("frames", h.frames)
	if err != nil && !errors.Is(err, context.Canceled) {
		entry = entry.WithTag("reason", err.Error())
	}
	entry.Info("client disconnected")
}

func (h *handlerWithLogs) HandleViewpoint(ctx context.Context, msg Msg) error {
	err := h.Handler.HandleViewpoint(ctx, msg)
	h.logInvalidRequest(msg, err)
	return err
}

func (h *handlerWithLogs) HandleChunkLoaded(ctx context.Context, respond ResponseSender, msg Msg) error {
	err := h.Handler.HandleChunkLoaded(ctx, respond, msg)
	h.logInvalidRequest(msg, err)
	return err
}

func (h *handlerWithLogs) HandleQuery(ctx context.Context, respond ResponseSender, msg Msg) error {
	err := h.Handler.HandleQuery(ctx, respond, msg)
	h.logInvalidRequest(msg, err)
	return err
}

func (h *handlerWithLogs) HandleDistance(ctx context.Context, respond ResponseSender, msg Msg) error {
	err := h.Handler.HandleDistance(ctx, respond, msg)
	h.logInvalidRequest(msg, err)
	return err
}

func (h *handlerWithLogs) HandleFrame(ctx context.Context, respond ResponseSender) error {
	h.frames++
	return h.Handler.HandleFrame(ctx, respond)
}

func (h *handlerWithLogs) Receiver() Receiver {
	receive := h.Handler.Receiver()

	return func() (Msg, int, error) {
		msg, n, err := receive()
		switch {
		case errors.IsType(err, ErrTypeMsgDecode):
			logs.WithClientID(h.GetClientID()).
				WithTag(sessionIDTag, h.sessionID).
				WithTag(sessionUUIDTag, h.sessionUUID).
				WithTag("size", n).
				Warn(errors.New("received an undecodable message").Wrap(err))

		case err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed):
			logs.WithClientID(h.GetClientID()).
				WithTag(sessionIDTag, h.sessionID).
				WithTag(sessionUUIDTag, h.sessionUUID).
				Error(errors.New("receiving message failed").Wrap(err))

		case err == nil:
			logs.WithClientID(h.GetClientID()).
				WithTag(sessionIDTag, h.sessionID).
				WithTag(sessionUUIDTag, h.sessionUUID).
				WithTag("msg_type", msg.TypeString()).
				Debug("message received")
			h.incCounter(msg.TypeString())
		}
		return msg, n, err
	}
}

func (h *handlerWithLogs) Sender() Sender {
	sender := h.Handler.Sender()

	return func(msg Msg) (int, error) {
		msgType := msg.TypeString()

		n, err := sender(msg)
		if err != nil && !errors.Is(err, net.ErrClosed) {
			logs.WithClientID(h.GetClientID()).
				WithTag(sessionIDTag, h.sessionID).
				WithTag(sessionUUIDTag, h.sessionUUID).
				WithTag("msg_type", msgType).
				Error(errors.New("sending message failed").Wrap(err))
		} else if err == nil {
			logs.WithClientID(h.GetClientID()).
				WithTag(sessionIDTag, h.sessionID).
				WithTag(sessionUUIDTag, h.sessionUUID).
				WithTag("msg_type", msgType).
				Debug("message sent")
		}
		return n, err
	}
}

func (h *handlerWithLogs) Close() {
	h.Handler.Close()
	h.closeSummaryWorker()
	h.logSummary()
}

func (h *handlerWithLogs) logInvalidRequest(msg Msg, err error) {
	if !errors.IsType(err, ErrTypeInvalidRequest) && !errors.IsType(err, ErrTypeMsgDecode) {
		return
	}

	logs.WithClientID(h.GetClientID()).
		WithTag(sessionIDTag, h.sessionID).
		WithTag(sessionUUIDTag, h.sessionUUID).
		WithTag("msg_type", msg.TypeString()).
		Debug(err)
}

func (h *handlerWithLogs) startSummaryWorker(ctx context.Context) {
	ticker := time.NewTicker(h.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			h.logSummary()
		}
	}
}

func (h *handlerWithLogs) incCounter(msgType string) {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	h.counter[msgType]++
}

func (h *handlerWithLogs) logSummary() {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	if len(h.counter) == 0 {
		return
	}

	entry := logs.WithClientID(h.GetClientID()).
		WithTag(sessionIDTag, h.sessionID).
		WithTag(sessionUUIDTag, h.sessionUUID).
		WithTag("time_interval", h.summaryInterval)
	for k, v := range h.counter {
		entry = entry.WithTag(k, v)
		delete(h.counter, k)
	}

	entry.Info("inbound message summary")
}
