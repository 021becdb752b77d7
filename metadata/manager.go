package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/npc-engine/npc-engine/core/svcerr"
)

// Manager owns the package table discovered under a models root and the
// dependency graph workers build up between each other.
type Manager struct {
	mu       sync.RWMutex
	packages map[string]*Descriptor
	order    []string // discovery order, used for type/api_name iteration matches
}

// Scan walks the immediate subdirectories of root, keeping those that
// contain a config.yml, mirroring _scan_path's os.scandir loop.
func Scan(root string) (*Manager, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("scanning models root %s: %w", root, err)
	}

	m := &Manager{packages: make(map[string]*Descriptor)}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, "config.yml")); err != nil {
			continue
		}

		mf, err := readManifest(dir)
		if err != nil {
			continue
		}

		id := entry.Name()
		uri, err := buildURI(id)
		if err != nil {
			return nil, err
		}

		desc := &Descriptor{
			ID:          id,
			Type:        mf.resolvedType(),
			APIName:     mf.APIName,
			APIMethods:  mf.APIMethods,
			Description: mf.Description,
			Path:        dir,
			URI:         uri,
		}
		m.packages[id] = desc
		m.order = append(m.order, id)
	}

	return m, nil
}

// Get returns the descriptor for an exact package id.
func (m *Manager) Get(id string) (*Descriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.packages[id]
	return d, ok
}

// All returns descriptors in discovery order.
func (m *Manager) All() []*Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Descriptor, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.packages[id])
	}
	return out
}

// Resolve implements the address-resolution chain of spec §4.B:
// literal "control" -> exact package id -> type/api_name (first
// iteration-order match) -> unique method-name fallback -> not found.
// method is the JSON-RPC request's method field, consulted only once
// address itself fails to resolve (mirrors resolve_service(address,
// method) taking the request's method as its fallback argument, not
// address itself).
func (m *Manager) Resolve(address, method string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resolveLocked(address, method)
}

// resolveLocked is Resolve's body, callable by code that already holds
// m.mu (findCycle resolves declared dependency strings the same way).
func (m *Manager) resolveLocked(address, method string) (string, error) {
	if address == "control" {
		return "control", nil
	}

	if _, ok := m.packages[address]; ok {
		return address, nil
	}

	for _, id := range m.order {
		d := m.packages[id]
		if d.Type == address || d.APIName == address {
			return id, nil
		}
	}

	if method != "" {
		var matches []string
		for _, id := range m.order {
			d := m.packages[id]
			for _, apiMethod := range d.APIMethods {
				if apiMethod == method {
					matches = append(matches, id)
					break
				}
			}
		}
		if len(matches) == 1 {
			return matches[0], nil
		}
	}

	return "", svcerr.ErrServiceNotFound(address)
}

// GetMetadata returns the descriptive payload for id, mirroring
// base_service.py's get_metadata classmethod. id is resolved the same way
// a dispatched request's address is (exact id, then type/api_name), so
// get_service_metadata("EchoAPI") works the same as any other admin call.
func (m *Manager) GetMetadata(id string) (Metadata, error) {
	resolved, err := m.Resolve(id, "")
	if err != nil {
		return Metadata{}, err
	}

	d, ok := m.Get(resolved)
	if !ok {
		return Metadata{}, svcerr.ErrServiceNotFound(resolved)
	}

	short, full := splitDescription(d.Description)
	if short == "" {
		short = d.APIName
		if short == "" {
			short = d.Type
		}
	}
	if full == "" {
		full = d.Type
	}

	return Metadata{
		ID:               d.ID,
		Service:          d.Type,
		APIName:          d.APIName,
		Path:             d.Path,
		ShortDescription: short,
		FullDescription:  full,
		Readme:           readReadme(d.Path),
	}, nil
}

// splitDescription derives the short and full descriptions from a
// manifest's description field: the first line is the short form, the
// whole value (trimmed) is the full form.
func splitDescription(description string) (short, full string) {
	full = strings.TrimSpace(description)
	if full == "" {
		return "", ""
	}
	if i := strings.IndexByte(full, '\n'); i >= 0 {
		short = strings.TrimSpace(full[:i])
	} else {
		short = full
	}
	return short, full
}

// AddDependency resolves `from`, records that it calls `to` (stored as
// declared, resolved lazily by findCycle the same way the dependency was
// declared), then checks the whole graph for cycles. The edge is kept even
// when a cycle is detected — it matches control_service.py's
// check_dependency, which appends before raising (see DESIGN.md Open
// Question: dependency edge rollback).
func (m *Manager) AddDependency(from, to string) error {
	m.mu.Lock()
	resolvedFrom, err := m.resolveLocked(from, "")
	if err != nil {
		m.mu.Unlock()
		return err
	}
	d, ok := m.packages[resolvedFrom]
	if !ok {
		m.mu.Unlock()
		return svcerr.ErrServiceNotFound(resolvedFrom)
	}
	d.Dependencies = append(d.Dependencies, to)
	m.mu.Unlock()

	if cycle := m.findCycle(); cycle != nil {
		return svcerr.ErrDependencyCycle(cycle)
	}
	return nil
}

// CheckCycles reports the first dependency cycle found in the graph, or nil
// if the graph is acyclic.
func (m *Manager) CheckCycles() error {
	if cycle := m.findCycle(); cycle != nil {
		return svcerr.ErrDependencyCycle(cycle)
	}
	return nil
}
