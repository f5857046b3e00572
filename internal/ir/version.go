package ir

// Version constants for IR schema and optimizer.
const (
	// IRVersion is the IR schema version.
	IRVersion = "1"

	// OptimizerVersion is the joinopt optimizer version recorded with
	// every persisted plan.
	OptimizerVersion = "0.1.0"
)
