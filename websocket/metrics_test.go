package websocket

import (
	"testing"

	"github.com/aukilabs/octsel/query"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

type sentBytesHandler struct {
	Handler
}

func (h sentBytesHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		return 42, nil
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestHandlerWithMetricsStreams(t *testing.T) {
	endpoint := "https://octsel-metrics-test.com"
	send := HandlerWithMetrics(sentBytesHandler{}, endpoint).Sender()

	for _, msg := range []Msg{
		{Type: MsgTypeSelectResponse, StreamID: 1},
		{Type: MsgTypeCells, StreamID: 1, Cells: make([]query.Cell, 3)},
		{Type: MsgTypeCells, StreamID: 1, Cells: make([]query.Cell, 2)},
		{Type: MsgTypeSelectDone, StreamID: 1},
		{Type: MsgTypeError, StreamID: 2},
		{Type: MsgTypeError, RequestID: 3},
	} {
		n, err := send(msg)
		require.NoError(t, err)
		require.Equal(t, 42, n)
	}

	labels := prometheus.Labels{publicEndpointLabel: endpoint}
	require.Equal(t, float64(5), counterValue(t, wsStreamedCells.With(labels)))

	var m dto.Metric
	require.NoError(t, wsCellsPerMsg.With(labels).(prometheus.Histogram).Write(&m))
	require.Equal(t, uint64(2), m.GetHistogram().GetSampleCount())
	require.Equal(t, float64(5), m.GetHistogram().GetSampleSum())

	require.Equal(t, float64(1), counterValue(t, wsStreams.With(prometheus.Labels{
		publicEndpointLabel: endpoint,
		statusLabel:         streamStatusDone,
	})))
	require.Equal(t, float64(1), counterValue(t, wsStreams.With(prometheus.Labels{
		publicEndpointLabel: endpoint,
		statusLabel:         streamStatusFailed,
	})))
}
