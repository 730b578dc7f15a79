package domain

import (
	"fmt"
	"time"
)

// ContentKind discriminates the record types the CMS can index.
type ContentKind string

// Content kinds shipped in the default registry.
const (
	KindPage         ContentKind = "page"
	KindNews         ContentKind = "news"
	KindEvent        ContentKind = "event"
	KindStaff        ContentKind = "staff"
	KindFAQ          ContentKind = "faq"
	KindProgramme    ContentKind = "programme"
	KindAnnouncement ContentKind = "announcement"
)

// String returns the string representation.
func (k ContentKind) String() string {
	return string(k)
}

// SourceRef is the identity of one record for indexing purposes.
type SourceRef struct {
	// Kind is the record's content kind.
	Kind ContentKind

	// ID is the record's primary key, as text.
	ID string
}

// Key returns a stable string form, used for map keys and logs.
func (r SourceRef) Key() string {
	return fmt.Sprintf("%s/%s", r.Kind, r.ID)
}

// String implements fmt.Stringer.
func (r SourceRef) String() string {
	return r.Key()
}

// Validate reports whether both parts of the identity are set.
func (r SourceRef) Validate() error {
	if r.Kind == "" || r.ID == "" {
		return fmt.Errorf("%w: source kind and id are required", ErrInvalidInput)
	}
	return nil
}

// SourceRecord is a content record read from the relational store.
// The core never writes records.
type SourceRecord struct {
	// Kind is the record's content kind.
	Kind ContentKind

	// ID is the record's primary key.
	ID string

	// UpdatedAt is the store's last modification time.
	UpdatedAt time.Time

	// Fields is the opaque field set, as decoded from the store.
	Fields map[string]any
}

// Ref returns the record's source identity.
func (r *SourceRecord) Ref() SourceRef {
	return SourceRef{Kind: r.Kind, ID: r.ID}
}

// Operation is the lifecycle event carried by a mutation.
type Operation string

// Record lifecycle operations.
const (
	OpCreated Operation = "created"
	OpUpdated Operation = "updated"
	OpDeleted Operation = "deleted"
)

// IsValid returns true if the operation is recognised.
func (o Operation) IsValid() bool {
	switch o {
	case OpCreated, OpUpdated, OpDeleted:
		return true
	default:
		return false
	}
}

// Mutation is a record lifecycle notification, sent after the write is durable.
type Mutation struct {
	// ID identifies the notification itself, for logs.
	ID string

	// Ref identifies the mutated record.
	Ref SourceRef

	// Op is the lifecycle event.
	Op Operation

	// ReceivedAt is when the core accepted the notification.
	ReceivedAt time.Time
}

// Validate checks the mutation is well formed.
func (m Mutation) Validate() error {
	if err := m.Ref.Validate(); err != nil {
		return err
	}
	if !m.Op.IsValid() {
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidInput, m.Op)
	}
	return nil
}
