package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Aliikhatami94/workbox/internal/job"
)

// Mux routes jobs to handlers by job name. Exact matches win over prefix
// matches; among prefixes the longest wins.
type Mux struct {
	mu       sync.RWMutex
	exact    map[string]job.Handler
	prefixes map[string]job.Handler
}

// NewMux returns an empty mux.
func NewMux() *Mux {
	return &Mux{
		exact:    make(map[string]job.Handler),
		prefixes: make(map[string]job.Handler),
	}
}

// Handle registers a handler for an exact job name.
func (m *Mux) Handle(name string, h job.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exact[name] = h
}

// HandlePrefix registers a handler for every job whose name starts with
// prefix, e.g. "outbox." for relayed outbox messages.
func (m *Mux) HandlePrefix(prefix string, h job.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefixes[prefix] = h
}

// Dispatch is a job.Handler that forwards to the registered handler. A job
// with no matching handler fails immediately and follows the normal
// retry/dead-letter path.
func (m *Mux) Dispatch(ctx context.Context, j *job.Job) error {
	m.mu.RLock()
	h := m.exact[j.Name]
	if h == nil {
		best := -1
		for prefix, ph := range m.prefixes {
			if strings.HasPrefix(j.Name, prefix) && len(prefix) > best {
				best = len(prefix)
				h = ph
			}
		}
	}
	m.mu.RUnlock()

	if h == nil {
		return fmt.Errorf("no handler registered for job %q", j.Name)
	}
	return h(ctx, j)
}
