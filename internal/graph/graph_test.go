package graph

import (
	"testing"

	"github.com/example/atomsched/pkg/atomerr"
)

func TestInsertNoDeps(t *testing.T) {
	g := New()
	if err := g.Insert("a", nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if g.HasDependencies("a") {
		t.Error("a should have no outstanding dependencies")
	}
}

func TestInsertWithDeps(t *testing.T) {
	g := New()
	mustInsert(t, g, "a", nil)
	mustInsert(t, g, "b", []string{"a"})

	if !g.HasDependencies("b") {
		t.Error("b should have an outstanding dependency on a")
	}
}

func TestInsertDuplicate(t *testing.T) {
	g := New()
	mustInsert(t, g, "a", nil)
	err := g.Insert("a", nil)
	if atomerr.KindOf(err) != atomerr.KindAlreadyExists {
		t.Errorf("KindOf() = %v, want KindAlreadyExists", atomerr.KindOf(err))
	}
}

func TestInsertCycleRejected(t *testing.T) {
	g := New()
	mustInsert(t, g, "a", []string{"c"})
	mustInsert(t, g, "b", []string{"a"})
	err := g.Insert("c", []string{"b"})
	if atomerr.KindOf(err) != atomerr.KindCyclicDependency {
		t.Fatalf("KindOf() = %v, want KindCyclicDependency", atomerr.KindOf(err))
	}
	// the rejected insert must not leave c partially registered
	if g.HasDependencies("c") {
		t.Error("rejected cyclic insert should not leave c in the graph")
	}
}

func TestInsertSelfCycleRejected(t *testing.T) {
	g := New()
	err := g.Insert("a", []string{"a"})
	if atomerr.KindOf(err) != atomerr.KindCyclicDependency {
		t.Fatalf("KindOf() = %v, want KindCyclicDependency", atomerr.KindOf(err))
	}
}

func TestMarkTerminalReadiesDependents(t *testing.T) {
	g := New()
	mustInsert(t, g, "a", nil)
	mustInsert(t, g, "b", []string{"a"})
	mustInsert(t, g, "c", []string{"a", "b"})

	readied := g.MarkTerminal("a")
	if len(readied) != 1 || readied[0] != "b" {
		t.Fatalf("MarkTerminal(a) readied = %v, want [b]", readied)
	}
	if g.HasDependencies("c") == false {
		t.Error("c should still depend on b")
	}

	readied = g.MarkTerminal("b")
	if len(readied) != 1 || readied[0] != "c" {
		t.Fatalf("MarkTerminal(b) readied = %v, want [c]", readied)
	}
	if g.HasDependencies("c") {
		t.Error("c should have no outstanding dependencies now")
	}
}

func TestRemove(t *testing.T) {
	g := New()
	mustInsert(t, g, "a", nil)
	mustInsert(t, g, "b", []string{"a"})
	g.Remove("a")
	if g.Len() != 1 {
		t.Errorf("Len() = %d, want 1", g.Len())
	}
	if len(g.Dependents("a")) != 0 {
		t.Error("removed node should have no recorded dependents")
	}
}

func TestTopologicalOrder(t *testing.T) {
	g := New()
	mustInsert(t, g, "a", nil)
	mustInsert(t, g, "b", []string{"a"})
	mustInsert(t, g, "c", []string{"a"})
	mustInsert(t, g, "d", []string{"b", "c"})

	order, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder: %v", err)
	}
	pos := map[string]int{}
	for i, id := range order {
		pos[id] = i
	}
	if pos["a"] > pos["b"] || pos["a"] > pos["c"] || pos["b"] > pos["d"] || pos["c"] > pos["d"] {
		t.Errorf("topological order violates dependency edges: %v", order)
	}
}

func mustInsert(t *testing.T, g *Graph, id string, deps []string) {
	t.Helper()
	if err := g.Insert(id, deps); err != nil {
		t.Fatalf("Insert(%s, %v): %v", id, deps, err)
	}
}
