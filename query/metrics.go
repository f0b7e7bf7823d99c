package query

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/octsel/selection"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
	shapeLabel   = "shape"
)

var (
	queryRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "query_requests",
		Help: "The number of selection queries.",
	}, []string{
		shapeLabel,
	})

	queryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "query_errors",
		Help: "The errors that occured while running a selection query.",
	}, []string{
		shapeLabel,
		errTypeLabel,
	})

	queryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "query_latency",
		Help: "The time to run a selection query.",
	}, []string{
		shapeLabel,
	})

	queryCellsSelected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "query_cells_selected",
		Help: "The number of cells selected by queries.",
	}, []string{
		shapeLabel,
	})

	queryOctsPruned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "query_octs_pruned",
		Help: "The number of octs pruned by queries.",
	}, []string{
		shapeLabel,
	})
)

func instrumentQuery(shape selection.Kind) {
	queryRequests.With(prometheus.Labels{
		shapeLabel: string(shape),
	}).Inc()
}

func instrumentQueryLatency(shape selection.Kind, start time.Time) {
	queryLatency.With(prometheus.Labels{
		shapeLabel: string(shape),
	}).Observe(time.Since(start).Seconds())
}

func instrumentQueryError(shape selection.Kind, err error) {
	queryErrors.
		With(prometheus.Labels{
			shapeLabel:   string(shape),
			errTypeLabel: errors.Type(err),
		}).
		Inc()
}

func instrumentQueryStats(shape selection.Kind, stats selection.Stats) {
	labels := prometheus.Labels{
		shapeLabel: string(shape),
	}
	queryCellsSelected.With(labels).Add(float64(stats.CellsSelected))
	queryOctsPruned.With(labels).Add(float64(stats.OctsPruned))
}
