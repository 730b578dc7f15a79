package domain

// InvalidationReport describes one cache coherence run for a record kind.
type InvalidationReport struct {
	// Kind is the mutated record kind.
	Kind ContentKind

	// Keys lists the named cache keys invalidated.
	Keys []string

	// Tags lists the tag groups invalidated.
	Tags []string

	// Failed maps a key or "tag:<name>" to the error that prevented invalidation.
	Failed map[string]string
}

// OK reports whether every invalidation succeeded.
func (r InvalidationReport) OK() bool {
	return len(r.Failed) == 0
}
