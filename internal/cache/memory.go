package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
)

// MemoryLines is the in-process line store used when Redis is not configured
type MemoryLines struct {
	mu    sync.RWMutex
	lines map[string]models.MarketLine
}

// NewMemoryLines creates an empty store
func NewMemoryLines() *MemoryLines {
	return &MemoryLines{lines: make(map[string]models.MarketLine)}
}

// Put stores line unless a later snapshot is already held
func (m *MemoryLines) Put(_ context.Context, line models.MarketLine) (bool, error) {
	if line.GameID == "" {
		return false, fmt.Errorf("line has no game id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.lines[line.GameID]; ok && existing.CapturedAt.After(line.CapturedAt) {
		return false, nil
	}
	m.lines[line.GameID] = line
	return true, nil
}

// LatestLine implements contracts.LineSource
func (m *MemoryLines) LatestLine(_ context.Context, gameID string) (models.MarketLine, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	line, ok := m.lines[gameID]
	return line, ok, nil
}
