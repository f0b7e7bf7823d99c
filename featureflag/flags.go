package featureflag

type Flag string

const (
	// Runs the root octs of a query one after the other.
	FlagDisableParallelTraversal Flag = "DISABLE_PARALLEL_TRAVERSAL"

	// Reports a weight of 1 for every selected cell.
	FlagDisableCoverageWeights Flag = "DISABLE_COVERAGE_WEIGHTS"

	// Skips grid patch selection in query results.
	FlagDisableGridPatches Flag = "DISABLE_GRID_PATCHES"
)
