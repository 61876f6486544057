package session

import (
	"sort"
	"sync"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// Registry tracks the live sessions hosted by this agent, one per open tab.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Controller
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Controller)}
}

func (r *Registry) Add(c *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[c.ID()] = c
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Get(id string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.sessions[id]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshots returns a view of every live session, filtered by quiz code when
// quizCode is non-empty, ordered by session id.
func (r *Registry) Snapshots(quizCode string) []model.SessionSnapshot {
	r.mu.RLock()
	ctrls := make([]*Controller, 0, len(r.sessions))
	for _, c := range r.sessions {
		ctrls = append(ctrls, c)
	}
	r.mu.RUnlock()

	out := make([]model.SessionSnapshot, 0, len(ctrls))
	for _, c := range ctrls {
		snap := c.Snapshot()
		if quizCode != "" && snap.QuizCode != quizCode {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
