package tools

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

// ErrToolNotFound is returned when a tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// Registry holds tools by case-insensitive name.
type Registry struct {
	lock   sync.RWMutex
	byName map[string]ITool
}

// NewRegistry returns a registry with the tools, duplicates are ignored.
func NewRegistry(list ...ITool) *Registry {
	r := &Registry{byName: make(map[string]ITool)}
	for _, t := range list {
		if err := r.Register(t); err != nil {
			logger.KV(xlog.WARNING,
				"status", "duplicate_tool",
				"tool", t.Name(),
			)
		}
	}
	return r
}

// Register adds the tool, a name can be registered once.
func (r *Registry) Register(t ITool) error {
	key := strings.ToLower(t.Name())

	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.byName[key]; ok {
		return errors.Newf("tool %q is already registered", t.Name())
	}
	r.byName[key] = t
	return nil
}

// Get returns the tool by name.
func (r *Registry) Get(name string) (ITool, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	t, ok := r.byName[strings.ToLower(name)]
	return t, ok
}

// Lookup returns the tools by name, all names must be registered.
func (r *Registry) Lookup(names ...string) ([]ITool, error) {
	list := make([]ITool, 0, len(names))
	for _, name := range names {
		t, ok := r.Get(name)
		if !ok {
			return nil, errors.Wrapf(ErrToolNotFound, "tool %q", name)
		}
		list = append(list, t)
	}
	return list, nil
}

// List returns the tools sorted by name.
func (r *Registry) List() []ITool {
	r.lock.RLock()
	list := make([]ITool, 0, len(r.byName))
	for _, t := range r.byName {
		list = append(list, t)
	}
	r.lock.RUnlock()

	slices.SortFunc(list, func(a, b ITool) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return list
}

// Names returns the sorted tool names.
func (r *Registry) Names() []string {
	list := r.List()
	names := make([]string, len(list))
	for i, t := range list {
		names[i] = t.Name()
	}
	return names
}

// Call invokes the tool by name.
func (r *Registry) Call(ctx context.Context, name, input string) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", errors.Wrapf(ErrToolNotFound, "tool %q", name)
	}
	return t.Call(ctx, input)
}
