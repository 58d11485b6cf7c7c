package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/raido/models"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize    = 512
	receiveChanSize = 64
)

// Handler represents a stream connection handler.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Handles a viewpoint update.
	HandleViewpoint(ctx context.Context, msg Msg) error

	// Handles the generated content of a chunk.
	HandleChunkLoaded(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a spatial query.
	HandleQuery(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request for viewpoint to entity distances.
	HandleDistance(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request for streaming statistics.
	HandleStats(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a ping request.
	HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error

	// Advances the stream by one frame.
	HandleFrame(ctx context.Context, respond ResponseSender) error

	// Creates a message receiver used to receive incoming messages.
	Receiver() Receiver

	// Creates a message sender passed in service methods in order to send
	// messages.
	Sender() Sender

	// Closes the service and releases its allocated resources.
	Close()

	// The duration of a frame.
	FrameDuration() time.Duration

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// The session of the connection.
	CurrentSession() *models.Session

	// Get ClientID
	GetClientID() string
}

// Handle handles the given service.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The stream handler.
	Handler Handler

	sendChan       chan Msg
	sender         Sender
	receiveChan    chan received
	receiver       Receiver
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup

	h.sendChan = make(chan Msg, sendChanSize)
	h.sender = h.Handler.Sender()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	h.receiveChan = make(chan received, receiveChanSize)
	h.receiver = h.Handler.Receiver()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	frameTicker := time.NewTicker(h.Handler.FrameDuration())
	defer frameTicker.Stop()

	var responder = responseSender{
		send:    h.send,
		sendMsg: h.sendMsg,
	}

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			h.disconnect(ctx.Err())

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", idleTimeout))

		case <-frameTicker.C:
			if err := h.Handler.HandleFrame(ctx, responder); err != nil {
				h.disconnect(errors.New("handling frame failed").Wrap(err))
			}

		case r := <-h.receiveChan:
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

			if r.err != nil {
				respondError(responder, r.msg, r.err)
				continue
			}

			if err := h.handleMessage(ctx, r.msg, responder); err != nil {
				h.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			if ctx.Err() == nil {
				// cancel context so go routines can cleanly exit
				cancel()
			}
		}
	}

	wg.Wait()
}

func (h *handler) send(msgType string, data any) {
	msg, err := NewMsg(msgType, data)
	if err != nil {
		logs.WithTag("msg_type", msgType).
			WithClientID(h.Handler.GetClientID()).
			Debug(err)
		return
	}
	h.sendChan <- msg
}

func (h *handler) sendMsg(msg Msg) {
	h.sendChan <- msg
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		default:
			msg, _, err := h.receiver()
			if err != nil && !errors.IsType(err, ErrTypeMsgDecode) {
				h.disconnect(errors.New("receiving message failed").Wrap(err))
				return
			}

			if !h.dispatch(ctx, received{msg: msg, err: err}) {
				return
			}
		}
	}
}

// received is a message read from the connection, or the error that made it
// unreadable.
type received struct {
	msg Msg
	err error
}

func (h *handler) dispatch(ctx context.Context, r received) bool {
	select {
	case h.receiveChan <- r:
		return true

	case <-ctx.Done():
		return false
	}
}

func (h *handler) handleMessage(ctx context.Context, msg Msg, responder ResponseSender) error {
	var err error

	switch msg.Type {
	case MsgTypeViewpoint:
		err = h.Handler.HandleViewpoint(ctx, msg)

	case MsgTypeChunkLoaded:
		err = h.Handler.HandleChunkLoaded(ctx, responder, msg)

	case MsgTypeQueryRequest:
		err = h.Handler.HandleQuery(ctx, responder, msg)

	case MsgTypeDistanceRequest:
		err = h.Handler.HandleDistance(ctx, responder, msg)

	case MsgTypeStatsRequest:
		err = h.Handler.HandleStats(ctx, responder, msg)

	case MsgTypePing:
		err = h.Handler.HandlePing(ctx, responder, msg)
	}

	if errors.IsType(err, ErrTypeMsgDecode) || errors.IsType(err, ErrTypeInvalidRequest) {
		respondError(responder, msg, err)
		return nil
	}
	return err
}

func (h *handler) disconnect(err error) {
	h.disconnectChan <- err
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

type responseSender struct {
	send    func(string, any)
	sendMsg func(Msg)
}

func (r responseSender) Send(msgType string, data any) {
	r.send(msgType, data)
}

func (r responseSender) SendMsg(msg Msg) {
	r.sendMsg(msg)
}

func respondError(respond ResponseSender, msg Msg, err error) {
	var req Request
	if len(msg.Data) != 0 {
		// The request id is reported when the payload has one.
		msg.DataTo(&req)
	}

	respond.Send(MsgTypeError, ErrorResponse{
		RequestID: req.RequestID,
		ErrorType: errors.Type(err),
		Message:   err.Error(),
	})
}

func invalidRequest(msg Msg, reason string) error {
	return errors.New(reason).
		WithType(ErrTypeInvalidRequest).
		WithTag("msg_type", msg.Type)
}
