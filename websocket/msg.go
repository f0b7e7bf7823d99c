package websocket

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/octsel/query"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeMsgDecoding    = "msg_decoding_error"
	ErrTypeMsgEncoding    = "msg_encoding_error"
	ErrTypeMsgUnknown     = "msg_unknown"
	ErrTypeTooManyStreams = "too_many_streams"
	ErrTypeStreamUnknown  = "stream_unknown"
)

// MsgType identifies a message.
type MsgType string

const (
	// Sent by clients.
	MsgTypePing          MsgType = "ping"
	MsgTypeSelectRequest MsgType = "select_request"
	MsgTypeCancelRequest MsgType = "cancel_request"

	// Sent by the server.
	MsgTypePong           MsgType = "pong"
	MsgTypeSelectResponse MsgType = "select_response"
	MsgTypeCells          MsgType = "cells"
	MsgTypeSelectDone     MsgType = "select_done"
	MsgTypeError          MsgType = "error"
)

// Msg is a message exchanged over a connection. The fields set depend on the
// message type.
type Msg struct {
	Type MsgType `json:"type"`

	// Chosen by the client and echoed in the responses to its request.
	RequestID uint32 `json:"request_id,omitempty"`

	// Identifies a running selection on the connection.
	StreamID uint32 `json:"stream_id,omitempty"`

	Query   *query.Request `json:"query,omitempty"`
	QueryID string         `json:"query_id,omitempty"`
	Cells   []query.Cell   `json:"cells,omitempty"`
	Summary *query.Summary `json:"summary,omitempty"`
	Error   *ErrorPayload  `json:"error,omitempty"`
}

type ErrorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newErrorMsg(requestID, streamID uint32, err error) Msg {
	return Msg{
		Type:      MsgTypeError,
		RequestID: requestID,
		StreamID:  streamID,
		Error: &ErrorPayload{
			Type:    errors.Type(err),
			Message: err.Error(),
		},
	}
}

// Receiver receives a message and returns the number of bytes read.
type Receiver func() (Msg, int, error)

// Sender sends a message and returns the number of bytes written.
type Sender func(Msg) (int, error)

// ResponseSender queues messages to be sent to the client.
type ResponseSender interface {
	Send(Msg)
}

// Receive reads a JSON message from conn.
func Receive(conn *websocket.Conn) (Msg, int, error) {
	var data []byte
	if err := websocket.Message.Receive(conn, &data); err != nil {
		return Msg{}, 0, err
	}

	var msg Msg
	if err := json.Unmarshal(data, &msg); err != nil {
		return Msg{}, len(data), errors.New("decoding message failed").
			WithType(ErrTypeMsgDecoding).
			Wrap(err)
	}
	return msg, len(data), nil
}

// Send writes msg to conn as a JSON text frame.
func Send(conn *websocket.Conn, msg Msg) (int, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, errors.New("encoding message failed").
			WithType(ErrTypeMsgEncoding).
			WithTag("msg_type", msg.Type).
			Wrap(err)
	}

	if err := websocket.Message.Send(conn, string(data)); err != nil {
		return 0, err
	}
	return len(data), nil
}
