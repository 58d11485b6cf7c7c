package websocket

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/raido/distcache"
	"github.com/aukilabs/raido/spatial"
	"github.com/aukilabs/raido/streaming"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// Client to server message types.
const (
	MsgTypeViewpoint       = "viewpoint"
	MsgTypeChunkLoaded     = "chunk_loaded"
	MsgTypeQueryRequest    = "query_request"
	MsgTypeDistanceRequest = "distance_request"
	MsgTypeStatsRequest    = "stats_request"
	MsgTypePing            = "ping"
)

// Server to client message types.
const (
	MsgTypeStreamUpdate     = "stream_update"
	MsgTypeQueryResponse    = "query_response"
	MsgTypeDistanceResponse = "distance_response"
	MsgTypeStatsResponse    = "stats_response"
	MsgTypePong             = "pong"
	MsgTypeError            = "error"
)

const (
	ErrTypeMsgDecode      = "msg_decode_failed"
	ErrTypeMsgEncode      = "msg_encode_failed"
	ErrTypeInvalidRequest = "invalid_request"
)

// Msg is a message exchanged over a stream connection.
type Msg struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMsg encodes data into a message of the given type.
func NewMsg(msgType string, data any) (Msg, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Msg{}, errors.New("encoding message data failed").
			WithType(ErrTypeMsgEncode).
			WithTag("msg_type", msgType).
			Wrap(err)
	}

	return Msg{
		Type: msgType,
		Data: b,
	}, nil
}

// DataTo decodes the message data into v.
func (m Msg) DataTo(v any) error {
	if len(m.Data) == 0 {
		return errors.New("message has no data").
			WithType(ErrTypeMsgDecode).
			WithTag("msg_type", m.Type)
	}

	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.New("decoding message data failed").
			WithType(ErrTypeMsgDecode).
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return nil
}

// TypeString returns the message type, or "unknown" when empty.
func (m Msg) TypeString() string {
	if m.Type == "" {
		return "unknown"
	}
	return m.Type
}

// A function that receives a message.
type Receiver func() (Msg, int, error)

// A function that sends a message.
type Sender func(Msg) (int, error)

// NewReceiver returns a receiver that reads JSON messages from conn. Frames
// that are not valid messages return an error of type ErrTypeMsgDecode and
// leave the connection usable.
func NewReceiver(conn *websocket.Conn) Receiver {
	return func() (Msg, int, error) {
		var b []byte
		if err := websocket.Message.Receive(conn, &b); err != nil {
			return Msg{}, 0, err
		}

		var msg Msg
		if err := json.Unmarshal(b, &msg); err != nil {
			return Msg{}, len(b), errors.New("decoding message failed").
				WithType(ErrTypeMsgDecode).
				Wrap(err)
		}
		return msg, len(b), nil
	}
}

// NewSender returns a sender that writes JSON messages as text frames.
func NewSender(conn *websocket.Conn) Sender {
	return func(msg Msg) (int, error) {
		b, err := json.Marshal(msg)
		if err != nil {
			return 0, errors.New("encoding message failed").
				WithType(ErrTypeMsgEncode).
				WithTag("msg_type", msg.Type).
				Wrap(err)
		}

		if err := websocket.Message.Send(conn, string(b)); err != nil {
			return 0, err
		}
		return len(b), nil
	}
}

// ResponseSender sends messages back to the connected client.
type ResponseSender interface {
	// Encodes and sends data as a message of the given type.
	Send(msgType string, data any)

	// Sends an already encoded message.
	SendMsg(msg Msg)
}

type ViewpointMsg struct {
	Position spatial.Vector3f `json:"position"`
}

type ChunkLoadedMsg struct {
	Coord    spatial.WorldCoord    `json:"coord"`
	Entities []streaming.Placement `json:"entities"`
}

type QueryRequest struct {
	RequestID uint32           `json:"request_id"`
	Center    spatial.Vector3f `json:"center"`
	Radius    float32          `json:"radius"`
	Level     spatial.LODLevel `json:"level"`
}

type QueryResponse struct {
	RequestID uint32   `json:"request_id"`
	EntityIDs []uint32 `json:"entity_ids"`
}

type DistanceRequest struct {
	RequestID uint32                `json:"request_id"`
	Entities  []streaming.Placement `json:"entities"`
}

type EntityDistance struct {
	ID       uint32  `json:"id"`
	Distance float32 `json:"distance"`
}

type DistanceResponse struct {
	RequestID uint32           `json:"request_id"`
	Distances []EntityDistance `json:"distances"`
}

// Request is the payload of messages that only carry a request id.
type Request struct {
	RequestID uint32 `json:"request_id"`
}

type StatsResponse struct {
	RequestID uint32               `json:"request_id"`
	Frame     uint32               `json:"frame"`
	Cache     distcache.CacheStats `json:"cache"`
	Usage     streaming.Usage      `json:"usage"`
	Index     spatial.DebugInfo    `json:"index"`
}

type PongResponse struct {
	RequestID uint32    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

type UnloadedChunk struct {
	Coord     spatial.WorldCoord `json:"coord"`
	EntityIDs []uint32           `json:"entity_ids"`
}

type StreamUpdate struct {
	Frame    uint32                    `json:"frame"`
	Load     []spatial.WorldCoord      `json:"load"`
	Unload   []UnloadedChunk           `json:"unload"`
	Generate []streaming.GenerationJob `json:"generate"`
}

type ErrorResponse struct {
	RequestID uint32 `json:"request_id,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
	Message   string `json:"message"`
}
