package web

import (
	"sync"
	"time"

	"github.com/JonMunkholm/fuelclean/internal/pipeline"
)

// runRecord is a finished run kept for download.
type runRecord struct {
	Result       *pipeline.Result
	Filename     string
	PersistError string
	Finished     time.Time
}

// runRegistry keeps the most recent finished runs in memory. Runs beyond the
// retention limit are evicted oldest first.
type runRegistry struct {
	mu     sync.RWMutex
	retain int
	order  []string
	runs   map[string]*runRecord
}

func newRunRegistry(retain int) *runRegistry {
	if retain <= 0 {
		retain = 1
	}
	return &runRegistry{
		retain: retain,
		runs:   make(map[string]*runRecord),
	}
}

func (g *runRegistry) add(rec *runRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := rec.Result.RunID
	if _, ok := g.runs[id]; !ok {
		g.order = append(g.order, id)
	}
	g.runs[id] = rec

	for len(g.order) > g.retain {
		delete(g.runs, g.order[0])
		g.order = g.order[1:]
	}
}

func (g *runRegistry) get(id string) (*runRecord, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rec, ok := g.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return rec, nil
}

func (g *runRegistry) count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.runs)
}
