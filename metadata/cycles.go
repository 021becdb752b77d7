package metadata

// findCycle runs Tarjan's strongly-connected-components algorithm over the
// dependency graph and returns the first non-trivial SCC found, expressed
// as a closed path (first id repeated at the end, e.g. ["a","b","a"]) ready
// for svcerr.ErrDependencyCycle. A self-dependency (a depends on a) counts
// as a cycle too. Returns nil when the graph is acyclic.
//
// Ported from metadata_manager.py's __scc, which runs the same algorithm
// over the same adjacency structure (package id -> its recorded
// dependency ids).
func (m *Manager) findCycle() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	index := 0
	indices := make(map[string]int)
	lowlink := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string
	var found []string

	var strongConnect func(v string)
	strongConnect = func(v string) {
		if found != nil {
			return
		}
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		d, ok := m.packages[v]
		if ok {
			for _, dep := range d.Dependencies {
				if found != nil {
					return
				}
				w, err := m.resolveLocked(dep, "")
				if err != nil {
					continue // dependency that no longer resolves to a known package
				}
				if _, visited := indices[w]; !visited {
					strongConnect(w)
					if lowlink[w] < lowlink[v] {
						lowlink[v] = lowlink[w]
					}
				} else if onStack[w] {
					if indices[w] < lowlink[v] {
						lowlink[v] = indices[w]
					}
				}
			}
		}

		if found != nil {
			return
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			if len(scc) > 1 || selfDependency(m.packages[scc[0]]) {
				// Tarjan emits SCCs with the root last; reverse to get
				// dependency order a -> b -> ... -> a.
				for i, j := 0, len(scc)-1; i < j; i, j = i+1, j-1 {
					scc[i], scc[j] = scc[j], scc[i]
				}
				found = append(scc, scc[0])
			}
		}
	}

	for _, id := range m.order {
		if found != nil {
			break
		}
		if _, visited := indices[id]; !visited {
			strongConnect(id)
		}
	}

	return found
}

func selfDependency(d *Descriptor) bool {
	if d == nil {
		return false
	}
	for _, dep := range d.Dependencies {
		if dep == d.ID {
			return true
		}
	}
	return false
}
