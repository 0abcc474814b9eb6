package graph_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/jobhost"
	"github.com/xraph/jobhost/graph"
	"github.com/xraph/jobhost/job"
)

func desc(name string, deps ...string) job.Descriptor {
	return job.Descriptor{Name: name, Type: "noop", DependsOn: deps}
}

func mustBuild(t *testing.T, ds ...job.Descriptor) *graph.Graph {
	t.Helper()
	g, err := graph.Build(ds)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func mustNode(t *testing.T, g *graph.Graph, name string) *graph.Node {
	t.Helper()
	n, ok := g.Node(name)
	if !ok {
		t.Fatalf("node %q not found", name)
	}
	return n
}

// ──────────────────────────────────────────────────
// Build
// ──────────────────────────────────────────────────

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   []job.Descriptor
		want error
	}{
		{"empty", nil, jobhost.ErrNoJobs},
		{"duplicate name", []job.Descriptor{desc("a"), desc("a")}, jobhost.ErrDuplicateJob},
		{"duplicate dependency", []job.Descriptor{desc("a"), desc("b", "a", "a")}, jobhost.ErrDuplicateDependency},
		{"unknown dependency", []job.Descriptor{desc("a", "ghost")}, jobhost.ErrUnknownDependency},
		{"self cycle", []job.Descriptor{desc("a", "a")}, jobhost.ErrCyclicDependency},
		{"cycle", []job.Descriptor{desc("a", "c"), desc("b", "a"), desc("c", "b"), desc("d")}, jobhost.ErrCyclicDependency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := graph.Build(tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestBuild_Order(t *testing.T) {
	g := mustBuild(t,
		desc("report", "roles", "parties"),
		desc("roles", "parties"),
		desc("parties"),
		desc("audit"),
	)

	pos := map[string]int{}
	for i, name := range g.Order() {
		pos[name] = i
	}
	if len(pos) != 4 {
		t.Fatalf("Order() = %v", g.Order())
	}
	for _, n := range g.Nodes() {
		for _, dep := range n.Descriptor.DependsOn {
			if pos[dep] >= pos[n.Name()] {
				t.Errorf("%q should come before %q in %v", dep, n.Name(), g.Order())
			}
		}
	}
}

func TestDependents(t *testing.T) {
	g := mustBuild(t, desc("a"), desc("b", "a"), desc("c", "a"))
	got := g.Dependents("a")
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("Dependents(a) = %v", got)
	}
	if got := g.Dependents("b"); len(got) != 0 {
		t.Errorf("Dependents(b) = %v", got)
	}
	if got := g.Dependents("ghost"); got != nil {
		t.Errorf("Dependents(ghost) = %v", got)
	}
	if g.Len() != 3 {
		t.Errorf("Len() = %d", g.Len())
	}
}

// ──────────────────────────────────────────────────
// Pass
// ──────────────────────────────────────────────────

func TestPass_FanInOrderedByDeclaration(t *testing.T) {
	g := mustBuild(t, desc("a"), desc("b"), desc("c", "a", "b"))
	p := g.NewPass()

	// b finishes before a; c still sees them in DependsOn order.
	p.Publish(mustNode(t, g, "b"), job.Failure(errors.New("b failed")))
	p.Publish(mustNode(t, g, "a"), job.Success("a ok"))

	got, err := p.Wait(context.Background(), mustNode(t, g, "c"))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Descriptor.Name != "a" || got[1].Descriptor.Name != "b" {
		t.Errorf("unexpected order: %s, %s", got[0].Descriptor.Name, got[1].Descriptor.Name)
	}
	if got[1].Result.Status != job.StatusFailure {
		t.Errorf("b status = %s", got[1].Result.Status)
	}
}

func TestPass_NoDependenciesReturnsImmediately(t *testing.T) {
	g := mustBuild(t, desc("a"))
	got, err := g.NewPass().Wait(context.Background(), mustNode(t, g, "a"))
	if err != nil || len(got) != 0 {
		t.Fatalf("Wait = %v, %v", got, err)
	}
}

func TestPass_WaitBlocksUntilAllArrive(t *testing.T) {
	g := mustBuild(t, desc("a"), desc("b"), desc("c", "a", "b"))
	p := g.NewPass()

	done := make(chan []job.DependencyResult, 1)
	go func() {
		res, _ := p.Wait(context.Background(), mustNode(t, g, "c"))
		done <- res
	}()

	p.Publish(mustNode(t, g, "a"), job.Success(""))
	select {
	case <-done:
		t.Fatal("Wait returned before all dependencies published")
	case <-time.After(50 * time.Millisecond):
	}

	p.Publish(mustNode(t, g, "b"), job.Success(""))
	select {
	case res := <-done:
		if len(res) != 2 {
			t.Fatalf("expected 2 results, got %d", len(res))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return")
	}
}

func TestPass_WaitCancelled(t *testing.T) {
	g := mustBuild(t, desc("a"), desc("b", "a"))
	p := g.NewPass()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Wait(ctx, mustNode(t, g, "b"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// A late publish must not block even though nobody is waiting.
	p.Publish(mustNode(t, g, "a"), job.Success(""))
}

func TestPass_PublishTwicePanics(t *testing.T) {
	g := mustBuild(t, desc("a"))
	p := g.NewPass()
	n := mustNode(t, g, "a")
	p.Publish(n, job.Success(""))

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on second publish")
		}
	}()
	p.Publish(n, job.Success(""))
}

func TestPass_ConcurrentDiamond(t *testing.T) {
	g := mustBuild(t,
		desc("root"),
		desc("left", "root"),
		desc("right", "root"),
		desc("sink", "left", "right"),
	)

	for i := 0; i < 100; i++ {
		p := g.NewPass()
		var wg sync.WaitGroup
		results := make(map[string]int)
		var mu sync.Mutex

		for _, n := range g.Nodes() {
			wg.Add(1)
			go func(n *graph.Node) {
				defer wg.Done()
				deps, err := p.Wait(context.Background(), n)
				if err != nil {
					t.Errorf("Wait(%s): %v", n.Name(), err)
				}
				mu.Lock()
				results[n.Name()] = len(deps)
				mu.Unlock()
				p.Publish(n, job.Success(""))
			}(n)
		}
		wg.Wait()

		if results["root"] != 0 || results["left"] != 1 || results["right"] != 1 || results["sink"] != 2 {
			t.Fatalf("unexpected fan-in counts: %v", results)
		}
	}
}
