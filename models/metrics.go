package models

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	datasetLabel = "dataset"
)

var (
	datasetOcts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dataset_octs",
		Help: "The number of octs in the loaded dataset.",
	}, []string{datasetLabel})

	datasetPatches = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dataset_patches",
		Help: "The number of grid patches in the loaded dataset.",
	}, []string{datasetLabel})

	datasetLoadLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "dataset_load_latency",
		Help: "The time to load a dataset.",
	}, []string{datasetLabel})
)

func instrumentDatasetLoad(d *Dataset, start time.Time) {
	labels := prometheus.Labels{datasetLabel: d.Name}

	datasetOcts.With(labels).Set(float64(d.Octree.Len()))
	datasetPatches.With(labels).Set(float64(d.Patches.Len()))
	datasetLoadLatency.With(labels).Observe(time.Since(start).Seconds())
}
