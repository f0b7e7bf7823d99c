// Package query runs selection queries against a dataset: it builds the
// selector of a request, walks the root octs of the dataset octree in
// parallel and reports the selected cells in a deterministic order.
package query

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/octsel/featureflag"
	"github.com/aukilabs/octsel/models"
	"github.com/aukilabs/octsel/selection"
	"github.com/google/uuid"
)

const (
	ErrTypeQueryCanceled = "query_canceled"
)

// Cell is a selected cell as reported to clients.
type Cell struct {
	Oct     selection.Handle  `json:"oct"`
	Index   int               `json:"index"`
	Level   int               `json:"level"`
	Coords  [3]int64          `json:"coords"`
	Center  selection.Vector3 `json:"center"`
	Width   selection.Vector3 `json:"width"`
	Weight  float64           `json:"weight"`
	Partial bool              `json:"partial,omitempty"`
}

// Volume returns the selected volume of the cell.
func (c Cell) Volume() float64 {
	return c.Weight * c.Width[0] * c.Width[1] * c.Width[2]
}

// Patch is a grid patch selected by a query.
type Patch struct {
	ID    int `json:"id"`
	Level int `json:"level"`
	Cells int `json:"cells"`
}

// Summary describes a completed query.
type Summary struct {
	QueryID string          `json:"query_id"`
	Shape   selection.Kind  `json:"shape"`
	Stats   selection.Stats `json:"stats"`
	Volume  float64         `json:"volume"`
	Patches []Patch         `json:"patches,omitempty"`
}

// Result is a completed query with its cells.
type Result struct {
	Summary
	Cells []Cell `json:"cells,omitempty"`
}

// Runner runs queries against a dataset. It is safe for concurrent use.
type Runner struct {
	Dataset *models.Dataset

	// The number of root octs traversed at once. Values below 1 mean 1.
	Workers int

	// The max level of requests that do not set one.
	DefaultMaxLevel int

	FeatureFlags featureflag.FeatureFlag
}

// Selector returns the selector of a request, bound to the dataset domain.
func (r *Runner) Selector(req Request) (*selection.Selector, error) {
	shape, err := req.BuildShape()
	if err != nil {
		return nil, err
	}

	maxLevel := r.DefaultMaxLevel
	if req.MaxLevel != nil {
		maxLevel = *req.MaxLevel
	}

	conf := r.Dataset.SelectorConfig(req.MinLevel, maxLevel, req.OverlapCells)
	return selection.New(conf, shape)
}

// Run runs a query and returns all its cells, or only its summary when the
// request is count only.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	var cells []Cell

	summary, err := r.Stream(ctx, req, 0, func(batch []Cell) error {
		if !req.CountOnly {
			cells = append(cells, batch...)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		Summary: summary,
		Cells:   cells,
	}, nil
}

// Stream runs a query and passes its cells to send in batches of at most
// batchSize cells, in traversal order. A batchSize below 1 sends the cells of
// each root oct as one batch. An error returned by send stops the query.
func (r *Runner) Stream(ctx context.Context, req Request, batchSize int, send func([]Cell) error) (Summary, error) {
	start := time.Now()
	summary := Summary{
		QueryID: uuid.NewString(),
		Shape:   req.Shape,
	}

	s, err := r.Selector(req)
	if err != nil {
		return summary, r.fail(summary, err)
	}
	summary.Shape = s.Kind()
	instrumentQuery(summary.Shape)
	defer instrumentQueryLatency(summary.Shape, start)

	var batch []Cell
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := send(batch)
		batch = nil
		return err
	}

	stats, err := r.traverse(ctx, s, req.VisitCovered, func(cells []Cell) error {
		for _, c := range cells {
			summary.Volume += c.Volume()
		}

		if batchSize < 1 {
			batch = cells
			return flush()
		}

		for len(cells) != 0 {
			n := min(batchSize-len(batch), len(cells))
			batch = append(batch, cells[:n]...)
			cells = cells[n:]

			if len(batch) == batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	summary.Stats = stats
	if err != nil {
		return summary, r.fail(summary, err)
	}

	if req.Patches && !r.FeatureFlags.IsSet(featureflag.FlagDisableGridPatches) {
		if summary.Patches, err = r.selectPatches(s); err != nil {
			return summary, r.fail(summary, err)
		}
	}

	instrumentQueryStats(summary.Shape, stats)
	logs.WithTag("query_id", summary.QueryID).
		WithTag("shape", summary.Shape).
		WithTag("cells", stats.CellsSelected).
		WithTag("octs_pruned", stats.OctsPruned).
		WithTag("patches", len(summary.Patches)).
		WithTag("duration", time.Since(start).String()).
		Debug("query completed")
	return summary, nil
}

func (r *Runner) fail(summary Summary, err error) error {
	instrumentQueryError(summary.Shape, err)

	entry := logs.WithTag("query_id", summary.QueryID).
		WithTag("shape", summary.Shape)
	if IsClientError(err) {
		entry.Debug(err)
	} else {
		entry.Warn(err)
	}
	return err
}

func (r *Runner) selectPatches(s *selection.Selector) ([]Patch, error) {
	idx := r.Dataset.Patches

	var patches []Patch
	for _, p := range idx.Select(s) {
		count, err := idx.Count(s, p.ID)
		if err != nil {
			return nil, err
		}

		patches = append(patches, Patch{
			ID:    p.ID,
			Level: p.Level,
			Cells: count,
		})
	}
	return patches, nil
}

type rootResult struct {
	cells []Cell
	stats selection.Stats
	err   error
	done  chan struct{}
}

// traverse walks every root oct and passes the cells of each root to emit in
// root order, whatever order the workers complete them in.
func (r *Runner) traverse(ctx context.Context, s *selection.Selector, visitCovered bool, emit func([]Cell) error) (selection.Stats, error) {
	if err := ctx.Err(); err != nil {
		return selection.Stats{}, errors.New("query canceled").
			WithType(ErrTypeQueryCanceled).
			Wrap(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tree := r.Dataset.Octree
	roots := tree.Roots()
	results := make([]rootResult, len(roots))
	for i := range results {
		results[i].done = make(chan struct{})
	}

	workers := max(r.Workers, 1)
	r.FeatureFlags.IfSet(featureflag.FlagDisableParallelTraversal, func() {
		workers = 1
	})
	unitWeights := r.FeatureFlags.IsSet(featureflag.FlagDisableCoverageWeights)

	jobs := make(chan int)
	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)

		for i := range roots {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for i := range jobs {
				res := &results[i]
				root := roots[i]

				res.stats, res.err = s.VisitOcts(tree, root.Oct, root.Center, root.Width, 0,
					selection.VisitorFunc(func(c selection.Cell) {
						if unitWeights {
							c.Weight = 1
						}
						res.cells = append(res.cells, Cell(c))
					}),
					selection.TraverseOptions{
						VisitCovered: visitCovered,
						RootCoords:   root.Coords,
					})
				close(res.done)
			}
		}()
	}

	var stats selection.Stats
	for i := range results {
		res := &results[i]

		select {
		case <-ctx.Done():
			return stats, errors.New("query canceled").
				WithType(ErrTypeQueryCanceled).
				Wrap(ctx.Err())
		case <-res.done:
		}

		if res.err != nil {
			return stats, errors.New("traversing root oct failed").
				WithTag("root", i).
				Wrap(res.err)
		}

		stats.Add(res.stats)
		if len(res.cells) == 0 {
			continue
		}

		if err := emit(res.cells); err != nil {
			return stats, err
		}
		res.cells = nil
	}
	return stats, nil
}
