package bank

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
)

// ErrDefaultBank is returned when removing the bank that serves unknown subjects.
var ErrDefaultBank = errors.New("default bank cannot be removed")

// Registry maps subject names to banks. It is built once at startup and
// shared read-mostly between sessions.
type Registry struct {
	mu          sync.RWMutex
	banks       map[string]*Bank
	defaultName string
	builtin     *Bank
	logger      *slog.Logger
}

// NewRegistry creates a registry that serves the bank registered under
// defaultName for unknown subjects. builtin is served when nothing is
// registered under defaultName.
func NewRegistry(defaultName string, builtin *Bank, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		banks:       make(map[string]*Bank),
		defaultName: defaultName,
		builtin:     builtin,
		logger:      logger,
	}
}

// Register stores b under name, replacing any bank already registered there.
func (r *Registry) Register(name string, b *Bank) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.banks[name]; ok {
		r.logger.Info("replacing question bank", "subject", name, "questions", b.Len())
	}
	r.banks[name] = b
}

// Unregister removes the bank registered under name. It reports whether a
// bank was removed. The default subject cannot be removed.
func (r *Registry) Unregister(name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == r.defaultName {
		return false, ErrDefaultBank
	}
	if _, ok := r.banks[name]; !ok {
		return false, nil
	}
	delete(r.banks, name)
	r.logger.Info("removed question bank", "subject", name)
	return true, nil
}

// Resolve returns the bank registered under the exact, case-sensitive name.
// Unknown subjects get the current default bank and a warning; Resolve never
// fails.
func (r *Registry) Resolve(name string) *Bank {
	r.mu.RLock()
	b, ok := r.banks[name]
	if !ok {
		var stored bool
		if b, stored = r.banks[r.defaultName]; !stored {
			b = r.builtin
		}
	}
	r.mu.RUnlock()
	if !ok {
		r.logger.Warn("no question bank for subject, using default",
			"subject", name, "default", b.Name)
	}
	return b
}

// DefaultName returns the subject whose bank is served for unknown subjects.
func (r *Registry) DefaultName() string {
	return r.defaultName
}

// Names returns the registered subject names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.banks))
	for n := range r.banks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
