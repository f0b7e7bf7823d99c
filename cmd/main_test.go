package main

import (
	"testing"

	"github.com/aukilabs/octsel/selection"
	"github.com/stretchr/testify/require"
)

func TestValidateConfig(t *testing.T) {
	valid := config{
		DatasetFile:     "dataset.json",
		Workers:         4,
		DefaultMaxLevel: selection.MaxLevelLimit,
		StreamBatchSize: 256,
		MaxStreams:      4,
	}
	require.NoError(t, validateConfig(valid))

	tests := []struct {
		name   string
		update func(c *config)
	}{
		{
			name:   "missing dataset file",
			update: func(c *config) { c.DatasetFile = "" },
		},
		{
			name:   "no workers",
			update: func(c *config) { c.Workers = 0 },
		},
		{
			name:   "default max level too deep",
			update: func(c *config) { c.DefaultMaxLevel = selection.MaxLevelLimit + 1 },
		},
		{
			name:   "empty batches",
			update: func(c *config) { c.StreamBatchSize = 0 },
		},
		{
			name:   "no streams",
			update: func(c *config) { c.MaxStreams = -1 },
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			conf := valid
			test.update(&conf)
			require.Error(t, validateConfig(conf))
		})
	}
}
