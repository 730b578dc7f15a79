package driving

import "context"

// Scheduler runs background maintenance such as reindex sweeps.
type Scheduler interface {
	// Start begins running scheduled tasks.
	// Returns immediately; tasks run until Stop or ctx cancellation.
	Start(ctx context.Context) error

	// Stop gracefully stops all running tasks.
	Stop() error
}
