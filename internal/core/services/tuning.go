package services

import (
	"sync"

	"github.com/custodia-labs/campus/internal/core/domain"
)

// Tuning holds the live retrieval settings. They can be replaced while
// the server runs, for example when the config file changes.
type Tuning struct {
	mu       sync.RWMutex
	settings domain.RetrievalSettings
}

// NewTuning validates and stores the initial settings.
func NewTuning(s domain.RetrievalSettings) (*Tuning, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Tuning{settings: s}, nil
}

// Get returns the current settings.
func (t *Tuning) Get() domain.RetrievalSettings {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.settings
}

// Set replaces the settings. Invalid settings are rejected and the
// current ones kept.
func (t *Tuning) Set(s domain.RetrievalSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.settings = s
	return nil
}
