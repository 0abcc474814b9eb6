package graph

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/xraph/jobhost/job"
)

// Pass is one execution of a Graph. It must not be reused across ticks.
type Pass struct {
	graph     *Graph
	inbox     []chan job.DependencyResult
	published []atomic.Bool
}

// NewPass allocates the channels for one execution of g.
func (g *Graph) NewPass() *Pass {
	p := &Pass{
		graph:     g,
		inbox:     make([]chan job.DependencyResult, len(g.nodes)),
		published: make([]atomic.Bool, len(g.nodes)),
	}
	for _, n := range g.nodes {
		p.inbox[n.index] = make(chan job.DependencyResult, max(1, len(n.Descriptor.DependsOn)))
	}
	return p
}

// Wait blocks until every dependency of n has published, or ctx is done.
// Results are returned in the order of n's DependsOn list. On cancellation
// it returns ctx's error together with the results received so far.
func (p *Pass) Wait(ctx context.Context, n *Node) ([]job.DependencyResult, error) {
	want := len(n.Descriptor.DependsOn)
	if want == 0 {
		return nil, nil
	}

	out := make([]job.DependencyResult, want)
	filled := make([]bool, want)
	received := make([]job.DependencyResult, 0, want)
	inbox := p.inbox[n.index]

	for len(received) < want {
		select {
		case r := <-inbox:
			pos, ok := n.deps[r.Descriptor.Name]
			if !ok || filled[pos] {
				panic(fmt.Sprintf("graph: %q received unexpected result from %q", n.Name(), r.Descriptor.Name))
			}
			out[pos], filled[pos] = r, true
			received = append(received, r)
		case <-ctx.Done():
			return received, ctx.Err()
		}
	}

	for i, ok := range filled {
		if !ok {
			panic(fmt.Sprintf("graph: %q missing result for %q", n.Name(), n.Descriptor.DependsOn[i]))
		}
	}
	return out, nil
}

// Publish delivers n's result to every dependent. It panics if n has
// already published in this pass.
func (p *Pass) Publish(n *Node, r job.Result) {
	if p.published[n.index].Swap(true) {
		panic(fmt.Sprintf("graph: %q published twice", n.Name()))
	}
	msg := job.DependencyResult{Result: r, Descriptor: n.Descriptor}
	for _, dep := range p.graph.dependents[n.index] {
		p.inbox[dep.index] <- msg
	}
}
