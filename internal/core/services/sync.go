package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driven"
	"github.com/custodia-labs/campus/internal/core/ports/driving"
	"github.com/custodia-labs/campus/internal/logger"
	"github.com/custodia-labs/campus/internal/metrics"
)

// Ensure SyncCoordinator implements the interface.
var _ driving.SyncCoordinator = (*SyncCoordinator)(nil)

// Sync coordinator defaults.
const (
	DefaultSyncWorkers = 4
	DefaultSyncTimeout = 2 * time.Minute
)

// ErrCoordinatorClosed is returned for work submitted after Close.
var ErrCoordinatorClosed = errors.New("sync coordinator closed")

// syncRequest is one unit of work for an identity.
type syncRequest struct {
	mutation domain.Mutation
	force    bool
}

// syncSlot is the per-identity state. At most one sync runs per slot;
// later requests collapse into a single pending follow-up.
type syncSlot struct {
	running        bool
	pending        *syncRequest
	pendingWaiters []chan error
	status         domain.SyncStatus
}

// SyncCoordinator keeps the vector index consistent with the record store.
// Each mutation is normalised, chunked, embedded and committed as one
// atomic replacement of the identity's entries.
type SyncCoordinator struct {
	records    driven.RecordSource
	normaliser driven.Normaliser
	chunker    driven.Chunker
	embedder   driven.EmbeddingService
	index      driven.VectorIndex
	registry   *domain.KindRegistry
	metrics    *metrics.Metrics

	timeout time.Duration
	now     func() time.Time

	sem chan struct{}
	wg  sync.WaitGroup

	mu         sync.Mutex
	slots      map[domain.SourceRef]*syncSlot
	lastCommit time.Time
	closed     bool
}

// SyncCoordinatorOption configures the coordinator.
type SyncCoordinatorOption func(*SyncCoordinator)

// WithSyncWorkers caps the identities synced in parallel.
func WithSyncWorkers(n int) SyncCoordinatorOption {
	return func(c *SyncCoordinator) {
		if n > 0 {
			c.sem = make(chan struct{}, n)
		}
	}
}

// WithSyncTimeout bounds one sync attempt.
func WithSyncTimeout(d time.Duration) SyncCoordinatorOption {
	return func(c *SyncCoordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSyncMetrics records sync outcomes.
func WithSyncMetrics(m *metrics.Metrics) SyncCoordinatorOption {
	return func(c *SyncCoordinator) {
		c.metrics = m
	}
}

// NewSyncCoordinator creates a coordinator over the given pipeline stages.
func NewSyncCoordinator(
	records driven.RecordSource,
	normaliser driven.Normaliser,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	registry *domain.KindRegistry,
	opts ...SyncCoordinatorOption,
) *SyncCoordinator {
	c := &SyncCoordinator{
		records:    records,
		normaliser: normaliser,
		chunker:    chunker,
		embedder:   embedder,
		index:      index,
		registry:   registry,
		timeout:    DefaultSyncTimeout,
		now:        time.Now,
		sem:        make(chan struct{}, DefaultSyncWorkers),
		slots:      make(map[domain.SourceRef]*syncSlot),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enqueue schedules a sync without waiting for it.
func (c *SyncCoordinator) Enqueue(m domain.Mutation) {
	if err := m.Validate(); err != nil {
		logger.Warn("sync: dropping mutation %s: %v", m.ID, err)
		return
	}
	if err := c.submit(syncRequest{mutation: m}, nil); err != nil {
		logger.Warn("sync: dropping mutation %s for %s: %v", m.ID, m.Ref, err)
	}
}

// SyncRecord schedules a sync and waits for its result, or for ctx to end.
// The sync itself keeps running when ctx ends.
func (c *SyncCoordinator) SyncRecord(ctx context.Context, m domain.Mutation) error {
	if err := m.Validate(); err != nil {
		return err
	}
	done := make(chan error, 1)
	if err := c.submit(syncRequest{mutation: m}, done); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reindex forces a resync of every record of the given kinds, and retires
// indexed identities whose record is gone. No kinds means every registered kind.
//
//nolint:gocyclo // Sweep with sequential listing, submission and collection steps
func (c *SyncCoordinator) Reindex(ctx context.Context, kinds ...domain.ContentKind) (domain.ReindexReport, error) {
	start := c.now()
	if len(kinds) == 0 {
		kinds = c.registry.Kinds()
	}
	report := domain.ReindexReport{Kinds: kinds}

	// 1. Reject unknown kinds before doing any work
	for _, kind := range kinds {
		if !c.registry.Has(kind) {
			return report, fmt.Errorf("%w: %q", domain.ErrUnsupportedSourceKind, kind)
		}
	}

	type job struct {
		done   chan error
		retire bool
	}
	var jobs []job

	// 2. Submit a forced sync for every record, and a delete for every
	// indexed identity the record store no longer has
	for _, kind := range kinds {
		ids, err := c.records.ListIDs(ctx, kind)
		if err != nil {
			return report, fmt.Errorf("list %s records: %w", kind, err)
		}
		live := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			live[id] = struct{}{}
			done := make(chan error, 1)
			m := domain.Mutation{Ref: domain.SourceRef{Kind: kind, ID: id}, Op: domain.OpUpdated, ReceivedAt: start}
			if err := c.submit(syncRequest{mutation: m, force: true}, done); err != nil {
				return report, err
			}
			jobs = append(jobs, job{done: done})
		}

		indexed, err := c.index.Sources(ctx, kind)
		if err != nil {
			return report, fmt.Errorf("list indexed %s sources: %w", kind, err)
		}
		for _, ref := range indexed {
			if _, ok := live[ref.ID]; ok {
				continue
			}
			done := make(chan error, 1)
			m := domain.Mutation{Ref: ref, Op: domain.OpDeleted, ReceivedAt: start}
			if err := c.submit(syncRequest{mutation: m, force: true}, done); err != nil {
				return report, err
			}
			jobs = append(jobs, job{done: done, retire: true})
		}
	}

	// 3. Collect results
	for _, j := range jobs {
		select {
		case err := <-j.done:
			switch {
			case err != nil:
				report.Failed++
			case j.retire:
				report.Retired++
			default:
				report.Synced++
			}
		case <-ctx.Done():
			report.Duration = c.now().Sub(start)
			return report, ctx.Err()
		}
	}

	report.Duration = c.now().Sub(start)
	logger.Info("reindex: %d synced, %d retired, %d failed in %s",
		report.Synced, report.Retired, report.Failed, report.Duration.Round(time.Millisecond))
	return report, nil
}

// Status returns the sync state of one identity.
func (c *SyncCoordinator) Status(ref domain.SourceRef) domain.SyncStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[ref]
	if !ok {
		return domain.SyncStatus{Ref: ref, Phase: domain.PhaseIdle}
	}
	return s.status
}

// Wait blocks until all submitted work, including follow-ups, has finished.
func (c *SyncCoordinator) Wait() {
	c.wg.Wait()
}

// Close rejects new work and drains in-flight syncs.
func (c *SyncCoordinator) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.wg.Wait()
	return nil
}

// submit starts a sync for the identity, or folds the request into the
// pending follow-up when one is already running.
func (c *SyncCoordinator) submit(req syncRequest, done chan error) error {
	ref := req.mutation.Ref

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCoordinatorClosed
	}

	s, ok := c.slots[ref]
	if !ok {
		s = &syncSlot{status: domain.SyncStatus{Ref: ref, Phase: domain.PhaseIdle}}
		c.slots[ref] = s
	}

	if s.running {
		if s.pending != nil {
			req.force = req.force || s.pending.force
		}
		s.pending = &req
		if done != nil {
			s.pendingWaiters = append(s.pendingWaiters, done)
		}
		s.status.Pending = true
		c.metrics.SyncCoalesced()
		logger.Debug("sync: coalesced %s %s into follow-up", req.mutation.Op, ref)
		return nil
	}

	s.running = true
	var waiters []chan error
	if done != nil {
		waiters = append(waiters, done)
	}
	c.wg.Add(1)
	go c.drain(s, req, waiters)
	return nil
}

// drain runs req, then any follow-up collected while it ran, until the
// slot has nothing pending.
func (c *SyncCoordinator) drain(s *syncSlot, req syncRequest, waiters []chan error) {
	defer c.wg.Done()
	for {
		c.sem <- struct{}{}
		err := c.run(s, req)
		<-c.sem

		for _, w := range waiters {
			w <- err
		}

		c.mu.Lock()
		if s.pending == nil {
			s.running = false
			c.mu.Unlock()
			return
		}
		req, waiters = *s.pending, s.pendingWaiters
		s.pending, s.pendingWaiters = nil, nil
		s.status.Pending = false
		c.mu.Unlock()
	}
}

// run performs one sync attempt on its own context.
func (c *SyncCoordinator) run(s *syncSlot, req syncRequest) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	ref := req.mutation.Ref
	start := c.now()
	outcome, chunks, err := c.process(ctx, s, req)
	elapsed := c.now().Sub(start)
	c.metrics.ObserveSync(string(ref.Kind), string(outcome), elapsed)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		s.status.Phase = domain.PhaseFailed
		s.status.LastError = err.Error()
		logger.Error("sync: %s %s failed: %v", req.mutation.Op, ref, err)
		return err
	}
	s.status.Phase = domain.PhaseIdle
	s.status.LastError = ""
	s.status.Chunks = chunks
	if outcome != domain.OutcomeUnchanged {
		s.status.LastSuccess = c.now()
	}
	logger.Debug("sync: %s %s: %s (%d chunks) in %s", req.mutation.Op, ref, outcome, chunks, elapsed)
	return nil
}

// process drives the identity through the pipeline phases. Nothing is
// written to the index before every earlier phase has succeeded.
func (c *SyncCoordinator) process(ctx context.Context, s *syncSlot, req syncRequest) (domain.SyncOutcome, int, error) {
	ref := req.mutation.Ref
	if !c.registry.Has(ref.Kind) {
		return domain.OutcomeSkipped, 0, fmt.Errorf("%w: %q", domain.ErrUnsupportedSourceKind, ref.Kind)
	}
	if req.mutation.Op == domain.OpDeleted {
		return c.remove(ctx, s, ref)
	}

	// 1. Read the current record state
	c.setPhase(s, domain.PhaseNormalizing)
	rec, err := c.records.Get(ctx, ref)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Debug("sync: %s no longer exists, removing", ref)
		return c.remove(ctx, s, ref)
	}
	if err != nil {
		return domain.OutcomeFailed, 0, fmt.Errorf("read record: %w", err)
	}

	// 2. Normalise
	text, err := c.normaliser.Normalise(rec)
	if err != nil {
		return domain.OutcomeFailed, 0, fmt.Errorf("normalise: %w", err)
	}

	// 3. Chunk, skipping the rest when the index already holds exactly
	// these chunks, whoever wrote them
	c.setPhase(s, domain.PhaseChunking)
	chunks, err := c.chunker.Chunk(ref, text)
	if err != nil {
		return domain.OutcomeFailed, 0, fmt.Errorf("chunk: %w", err)
	}
	if !req.force && c.indexed(ctx, ref, chunks) {
		return domain.OutcomeUnchanged, len(chunks), nil
	}

	// 4. Embed every chunk; any failure aborts before the index is touched
	c.setPhase(s, domain.PhaseEmbedding)
	var vectors [][]float32
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, ch := range chunks {
			texts[i] = ch.Text
		}
		vectors, err = c.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return domain.OutcomeFailed, 0, fmt.Errorf("embed: %w", err)
		}
		if len(vectors) != len(chunks) {
			return domain.OutcomeFailed, 0, fmt.Errorf("%w: %d chunks, %d embeddings",
				domain.ErrEmbeddingDimensionMismatch, len(chunks), len(vectors))
		}
	}

	// 5. Commit the replacement set atomically
	c.setPhase(s, domain.PhaseCommitting)
	stamp := c.stamp()
	entries := make([]domain.IndexEntry, len(chunks))
	for i, ch := range chunks {
		entries[i] = domain.IndexEntry{Chunk: ch, Embedding: vectors[i], IndexedAt: stamp}
	}
	if err := c.index.UpsertSource(ctx, ref, entries); err != nil {
		return domain.OutcomeFailed, 0, indexWriteError(err)
	}
	return domain.OutcomeIndexed, len(entries), nil
}

func (c *SyncCoordinator) remove(ctx context.Context, s *syncSlot, ref domain.SourceRef) (domain.SyncOutcome, int, error) {
	c.setPhase(s, domain.PhaseCommitting)
	if err := c.index.DeleteSource(ctx, ref); err != nil {
		return domain.OutcomeFailed, 0, indexWriteError(err)
	}
	return domain.OutcomeDeleted, 0, nil
}

func (c *SyncCoordinator) setPhase(s *syncSlot, phase domain.SyncPhase) {
	c.mu.Lock()
	s.status.Phase = phase
	c.mu.Unlock()
}

// indexed reports whether the stored entries of ref match chunks one for
// one, with embeddings of the current dimensionality. The index is the
// only record of what was committed, so other processes writing to it
// are seen. A read error counts as a mismatch.
func (c *SyncCoordinator) indexed(ctx context.Context, ref domain.SourceRef, chunks []domain.Chunk) bool {
	stored, err := c.index.Entries(ctx, ref)
	if err != nil {
		logger.Debug("sync: reading entries of %s: %v", ref, err)
		return false
	}
	if len(stored) != len(chunks) {
		return false
	}
	dims := c.embedder.Dimensions()
	for i, e := range stored {
		if e.Chunk != chunks[i] || len(e.Embedding) != dims {
			return false
		}
	}
	return true
}

// stamp returns a commit time strictly after every earlier commit.
func (c *SyncCoordinator) stamp() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC()
	if !t.After(c.lastCommit) {
		t = c.lastCommit.Add(time.Microsecond)
	}
	c.lastCommit = t
	return t
}

func indexWriteError(err error) error {
	if errors.Is(err, domain.ErrIndexWriteFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrIndexWriteFailed, err)
}
