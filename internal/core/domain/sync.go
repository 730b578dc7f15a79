package domain

import "time"

// SyncPhase is the per-identity sync state.
type SyncPhase string

// Sync phases, in pipeline order.
const (
	PhaseIdle        SyncPhase = "idle"
	PhaseNormalizing SyncPhase = "normalizing"
	PhaseChunking    SyncPhase = "chunking"
	PhaseEmbedding   SyncPhase = "embedding"
	PhaseCommitting  SyncPhase = "committing"
	PhaseFailed      SyncPhase = "failed"
)

// SyncStatus describes the sync state of one source identity.
type SyncStatus struct {
	// Ref is the source identity.
	Ref SourceRef

	// Phase is the current phase, PhaseIdle when nothing is running.
	Phase SyncPhase

	// Pending is true when a coalesced follow-up sync is queued.
	Pending bool

	// LastError is the error of the most recent failed attempt, if any.
	LastError string

	// LastSuccess is when the identity last committed successfully.
	LastSuccess time.Time

	// Chunks is the chunk count of the last successful commit.
	Chunks int
}

// SyncOutcome classifies the result of one sync attempt.
type SyncOutcome string

// Sync outcomes.
const (
	OutcomeIndexed   SyncOutcome = "indexed"
	OutcomeDeleted   SyncOutcome = "deleted"
	OutcomeUnchanged SyncOutcome = "unchanged"
	OutcomeSkipped   SyncOutcome = "skipped"
	OutcomeFailed    SyncOutcome = "failed"
)

// ReindexReport summarises an explicit reindex sweep.
type ReindexReport struct {
	// Kinds is the set of kinds swept.
	Kinds []ContentKind

	// Synced counts records whose sync succeeded.
	Synced int

	// Retired counts index identities removed because their record is gone.
	Retired int

	// Failed counts records whose sync failed.
	Failed int

	// Duration is the wall time of the sweep.
	Duration time.Duration
}
