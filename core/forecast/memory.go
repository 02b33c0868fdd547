package forecast

import (
	"context"
	"sync"

	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

// MemoryStore is an in-process SnapshotStore.
type MemoryStore struct {
	mu sync.Mutex
	in *model.Intensities
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Save(_ context.Context, in model.Intensities) error {
	c := in.Clone()
	s.mu.Lock()
	s.in = &c
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context) (model.Intensities, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.in == nil {
		return model.Intensities{}, ErrNotFound
	}
	return s.in.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context) error {
	s.mu.Lock()
	s.in = nil
	s.mu.Unlock()
	return nil
}
