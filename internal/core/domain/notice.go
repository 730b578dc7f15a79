package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// MutationNotice is the wire form of a mutation notification, shared by the
// HTTP webhook and the PostgreSQL notify channel:
//
//	{"record_type": "news", "record_id": 42, "operation": "updated"}
type MutationNotice struct {
	RecordType string    `json:"record_type"`
	RecordID   NoticeID  `json:"record_id"`
	Operation  Operation `json:"operation"`
}

// Mutation converts the notice and validates it.
func (n MutationNotice) Mutation() (Mutation, error) {
	m := Mutation{
		Ref: SourceRef{
			Kind: ContentKind(strings.ToLower(strings.TrimSpace(n.RecordType))),
			ID:   strings.TrimSpace(string(n.RecordID)),
		},
		Op: Operation(strings.ToLower(strings.TrimSpace(string(n.Operation)))),
	}
	if err := m.Validate(); err != nil {
		return Mutation{}, err
	}
	return m, nil
}

// ParseMutationNotice decodes a JSON notice into a mutation.
func ParseMutationNotice(data []byte) (Mutation, error) {
	var n MutationNotice
	if err := json.Unmarshal(data, &n); err != nil {
		return Mutation{}, fmt.Errorf("%w: decoding notice: %w", ErrInvalidInput, err)
	}
	return n.Mutation()
}

// NoticeID is a record ID sent either as a JSON string or a JSON number.
type NoticeID string

// UnmarshalJSON accepts "42", 42 and "slug-like-ids".
func (id *NoticeID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = NoticeID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("record_id must be a string or number: %w", err)
	}
	*id = NoticeID(n.String())
	return nil
}
