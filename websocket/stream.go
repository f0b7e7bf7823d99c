package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	httpcmn "github.com/aukilabs/hagall-common/http"
	"github.com/aukilabs/octsel/models"
	"github.com/aukilabs/octsel/query"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

const (
	defaultBatchSize   = 256
	defaultMaxStreams  = 4
	defaultIdleTimeout = 5 * time.Minute
)

// StreamHandler runs the selections requested by a client and streams the
// selected cells back in batches. Several selections can run at once on a
// connection, each one identified by a stream id.
type StreamHandler struct {
	Runner *query.Runner

	// The max number of cells per message.
	BatchSize int

	// The max number of selections running at once.
	MaxStreams int

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	conn     *websocket.Conn
	clientID string

	streamIDs models.IDGenerator
	mutex     sync.Mutex
	streams   map[uint32]context.CancelFunc
	wg        sync.WaitGroup
}

func (h *StreamHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn

	h.clientID = conn.Request().Header.Get(httpcmn.HeaderPosemeshClientID)
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}
}

func (h *StreamHandler) HandleDisconnect(_ error) {
	h.cancelStreams()
}

func (h *StreamHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	respond.Send(Msg{
		Type:      MsgTypePong,
		RequestID: msg.RequestID,
	})
	return nil
}

func (h *StreamHandler) HandleSelect(ctx context.Context, respond ResponseSender, msg Msg) error {
	if msg.Query == nil {
		respond.Send(newErrorMsg(msg.RequestID, 0, errors.New("select request has no query").
			WithType(query.ErrTypeInvalidRequest)))
		return nil
	}

	// The selector is built upfront so invalid queries are rejected before a
	// stream is opened.
	if _, err := h.Runner.Selector(*msg.Query); err != nil {
		respond.Send(newErrorMsg(msg.RequestID, 0, err))
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	streamID, ok := h.openStream(cancel)
	if !ok {
		cancel()
		respond.Send(newErrorMsg(msg.RequestID, 0, errors.New("too many running selections").
			WithType(ErrTypeTooManyStreams).
			WithTag("max_streams", h.maxStreams())))
		return nil
	}

	respond.Send(Msg{
		Type:      MsgTypeSelectResponse,
		RequestID: msg.RequestID,
		StreamID:  streamID,
	})

	req := *msg.Query
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		summary, err := h.Runner.Stream(ctx, req, h.batchSize(), func(cells []query.Cell) error {
			if err := ctx.Err(); err != nil {
				return errors.New("selection canceled").
					WithType(query.ErrTypeQueryCanceled).
					Wrap(err)
			}

			respond.Send(Msg{
				Type:     MsgTypeCells,
				StreamID: streamID,
				Cells:    cells,
			})
			return nil
		})

		// The stream id is released before the last message so a client can
		// reuse it as soon as the selection is reported done.
		h.closeStream(streamID)

		if err != nil {
			respond.Send(newErrorMsg(msg.RequestID, streamID, err))
			return
		}

		respond.Send(Msg{
			Type:      MsgTypeSelectDone,
			RequestID: msg.RequestID,
			StreamID:  streamID,
			QueryID:   summary.QueryID,
			Summary:   &summary,
		})
	}()
	return nil
}

func (h *StreamHandler) HandleCancel(ctx context.Context, respond ResponseSender, msg Msg) error {
	h.mutex.Lock()
	cancel, ok := h.streams[msg.StreamID]
	h.mutex.Unlock()

	if !ok {
		respond.Send(newErrorMsg(msg.RequestID, msg.StreamID, errors.New("unknown stream").
			WithType(ErrTypeStreamUnknown).
			WithTag("stream_id", msg.StreamID)))
		return nil
	}

	cancel()
	return nil
}

func (h *StreamHandler) openStream(cancel context.CancelFunc) (uint32, bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if len(h.streams) >= h.maxStreams() {
		return 0, false
	}

	if h.streams == nil {
		h.streams = make(map[uint32]context.CancelFunc)
	}

	id := h.streamIDs.New()
	h.streams[id] = cancel
	return id, true
}

func (h *StreamHandler) closeStream(id uint32) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if cancel, ok := h.streams[id]; ok {
		cancel()
		delete(h.streams, id)
		h.streamIDs.Release(id)
	}
}

func (h *StreamHandler) cancelStreams() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, cancel := range h.streams {
		cancel()
	}
}

// RunningStreams returns the number of selections in progress.
func (h *StreamHandler) RunningStreams() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.streams)
}

func (h *StreamHandler) batchSize() int {
	if h.BatchSize <= 0 {
		return defaultBatchSize
	}
	return h.BatchSize
}

func (h *StreamHandler) maxStreams() int {
	if h.MaxStreams <= 0 {
		return defaultMaxStreams
	}
	return h.MaxStreams
}

func (h *StreamHandler) Receiver() Receiver {
	return func() (Msg, int, error) {
		return Receive(h.conn)
	}
}

func (h *StreamHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		return Send(h.conn, msg)
	}
}

// Close cancels the running selections and waits for them to return.
func (h *StreamHandler) Close() {
	h.cancelStreams()
	h.wg.Wait()
}

func (h *StreamHandler) IdleTimeout() time.Duration {
	if h.ClientIdleTimeout <= 0 {
		return defaultIdleTimeout
	}
	return h.ClientIdleTimeout
}

func (h *StreamHandler) GetClientID() string {
	return h.clientID
}
