// Package graph implements the task dependency graph: insertion with
// cycle rejection, terminal-state marking that cascades readiness to
// dependents, removal, and topological ordering.
package graph

import (
	"sync"

	"github.com/example/atomsched/pkg/atomerr"
)

// Graph tracks dependency edges between task IDs. It does not own task
// state itself (that lives in package task); it only tracks which IDs
// depend on which, and which dependencies remain outstanding.
type Graph struct {
	mu sync.Mutex

	// deps[id] is the set of dependency IDs that must complete before id
	// is ready. Entries are removed from the set as dependencies finish.
	deps map[string]map[string]struct{}
	// dependents[id] is the set of IDs that list id as a dependency.
	dependents map[string]map[string]struct{}
	// known is every ID ever inserted, whether or not it has finished.
	known map[string]struct{}
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		deps:       map[string]map[string]struct{}{},
		dependents: map[string]map[string]struct{}{},
		known:      map[string]struct{}{},
	}
}

// Insert adds id with the given dependencies. It returns a
// KindCyclicDependency error if adding the edges would create a cycle,
// and KindAlreadyExists if id is already known. Insert does not check
// that every dependency id is already known to the graph; the scheduler
// rejects a submission with KindInvalidArgument before it ever calls
// Insert with a dependency id that was never submitted.
func (g *Graph) Insert(id string, dependsOn []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.known[id]; exists {
		return atomerr.New(atomerr.KindAlreadyExists, "graph.Insert", "task "+id+" already present in graph")
	}

	depSet := make(map[string]struct{}, len(dependsOn))
	for _, d := range dependsOn {
		depSet[d] = struct{}{}
	}

	g.known[id] = struct{}{}
	g.deps[id] = depSet
	for d := range depSet {
		if g.dependents[d] == nil {
			g.dependents[d] = map[string]struct{}{}
		}
		g.dependents[d][id] = struct{}{}
	}

	if g.hasCycleFrom(id) {
		g.removeLocked(id)
		return atomerr.New(atomerr.KindCyclicDependency, "graph.Insert", "inserting task "+id+" would create a dependency cycle")
	}
	return nil
}

// hasCycleFrom runs a DFS from start following dependency edges and
// reports whether it revisits a node already on the current path.
func (g *Graph) hasCycleFrom(start string) bool {
	visiting := map[string]bool{}
	visited := map[string]bool{}

	var dfs func(n string) bool
	dfs = func(n string) bool {
		if visiting[n] {
			return true
		}
		if visited[n] {
			return false
		}
		visiting[n] = true
		for d := range g.deps[n] {
			if dfs(d) {
				return true
			}
		}
		visiting[n] = false
		visited[n] = true
		return false
	}
	return dfs(start)
}

// HasDependencies reports whether id still has any outstanding (not yet
// satisfied) dependencies. This is the corrected semantics noted in
// DESIGN.md's "Open Question resolutions": true iff the dependency set is
// non-empty, not its negation.
func (g *Graph) HasDependencies(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.deps[id]) > 0
}

// MarkTerminal removes id from every dependent's outstanding-dependency
// set and returns the IDs that became fully satisfied as a result (i.e.
// are now ready to run). id itself is not removed from the graph; call
// Remove separately once its result has been delivered.
func (g *Graph) MarkTerminal(id string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var readied []string
	for dependent := range g.dependents[id] {
		set := g.deps[dependent]
		if set == nil {
			continue
		}
		delete(set, id)
		if len(set) == 0 {
			readied = append(readied, dependent)
		}
	}
	return readied
}

// Remove deletes id from the graph entirely, including its edges to
// dependents and dependencies. Removing a task that still has unfinished
// dependents does not cascade-fail them; the caller (scheduler) decides
// that policy.
func (g *Graph) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(id)
}

func (g *Graph) removeLocked(id string) {
	for d := range g.deps[id] {
		if set := g.dependents[d]; set != nil {
			delete(set, id)
		}
	}
	delete(g.deps, id)
	delete(g.dependents, id)
	delete(g.known, id)
}

// Dependents returns the set of IDs that directly depend on id.
func (g *Graph) Dependents(id string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	set := g.dependents[id]
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	return out
}

// TopologicalOrder returns all known IDs in an order where every
// dependency precedes its dependents, using Kahn's algorithm. It returns
// a KindCyclicDependency error if the graph (improbably, given Insert's
// checks) contains a cycle.
func (g *Graph) TopologicalOrder() ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	indegree := make(map[string]int, len(g.known))
	for id := range g.known {
		indegree[id] = len(g.deps[id])
	}

	queue := make([]string, 0, len(g.known))
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(g.known))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for dependent := range g.dependents[n] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(g.known) {
		return nil, atomerr.New(atomerr.KindCyclicDependency, "graph.TopologicalOrder", "graph contains a cycle")
	}
	return order, nil
}

// Len returns the number of tasks currently tracked by the graph.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.known)
}
