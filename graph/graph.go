// Package graph validates a domain's job set and runs its dependency
// protocol.
//
// A [Graph] is built once per domain. Each tick obtains a fresh [Pass],
// which owns one bounded inbound channel per node, sized to the node's
// number of dependencies. A finished node publishes its result exactly once
// to each dependent; a waiting node receives exactly one result per
// dependency. Because every channel is sized for its inbound edges,
// publishing never blocks.
package graph

import (
	"fmt"
	"strings"

	"github.com/xraph/jobhost"
	"github.com/xraph/jobhost/job"
)

// Node is a job within a Graph.
type Node struct {
	Descriptor job.Descriptor

	index int
	// deps maps a dependency name to its position in Descriptor.DependsOn.
	deps map[string]int
}

// Name returns the job name.
func (n *Node) Name() string { return n.Descriptor.Name }

// Graph is an immutable, validated job dependency graph.
type Graph struct {
	nodes      []*Node
	byName     map[string]*Node
	dependents [][]*Node
	order      []*Node
}

// Build validates descriptors and constructs the graph. It rejects empty
// sets, duplicate names, duplicate dependency entries, unknown dependencies
// and cycles.
func Build(descriptors []job.Descriptor) (*Graph, error) {
	if len(descriptors) == 0 {
		return nil, jobhost.ErrNoJobs
	}

	g := &Graph{
		nodes:      make([]*Node, len(descriptors)),
		byName:     make(map[string]*Node, len(descriptors)),
		dependents: make([][]*Node, len(descriptors)),
	}

	for i, d := range descriptors {
		if _, dup := g.byName[d.Name]; dup {
			return nil, fmt.Errorf("%w: %q", jobhost.ErrDuplicateJob, d.Name)
		}
		n := &Node{Descriptor: d, index: i, deps: make(map[string]int, len(d.DependsOn))}
		for pos, dep := range d.DependsOn {
			if _, dup := n.deps[dep]; dup {
				return nil, fmt.Errorf("%w: %q lists %q twice", jobhost.ErrDuplicateDependency, d.Name, dep)
			}
			n.deps[dep] = pos
		}
		g.nodes[i] = n
		g.byName[d.Name] = n
	}

	for _, n := range g.nodes {
		for _, dep := range n.Descriptor.DependsOn {
			target, ok := g.byName[dep]
			if !ok {
				return nil, fmt.Errorf("%w: %q depends on %q", jobhost.ErrUnknownDependency, n.Name(), dep)
			}
			g.dependents[target.index] = append(g.dependents[target.index], n)
		}
	}

	if err := g.sort(); err != nil {
		return nil, err
	}
	return g, nil
}

// sort computes a topological order (Kahn) and reports any cycle.
func (g *Graph) sort() error {
	indegree := make([]int, len(g.nodes))
	for _, n := range g.nodes {
		indegree[n.index] = len(n.Descriptor.DependsOn)
	}

	queue := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		if indegree[n.index] == 0 {
			queue = append(queue, n)
		}
	}

	order := make([]*Node, 0, len(g.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, dep := range g.dependents[n.index] {
			indegree[dep.index]--
			if indegree[dep.index] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(g.nodes) {
		var stuck []string
		for _, n := range g.nodes {
			if indegree[n.index] > 0 {
				stuck = append(stuck, n.Name())
			}
		}
		return fmt.Errorf("%w: %s", jobhost.ErrCyclicDependency, strings.Join(stuck, ", "))
	}

	g.order = order
	return nil
}

// Nodes returns the nodes in declaration order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node with the given name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.byName[name]
	return n, ok
}

// Order returns job names in a topological order: every job appears after
// all of its dependencies.
func (g *Graph) Order() []string {
	names := make([]string, len(g.order))
	for i, n := range g.order {
		names[i] = n.Name()
	}
	return names
}

// Dependents returns the names of jobs that depend on name.
func (g *Graph) Dependents(name string) []string {
	n, ok := g.byName[name]
	if !ok {
		return nil
	}
	out := make([]string, len(g.dependents[n.index]))
	for i, d := range g.dependents[n.index] {
		out[i] = d.Name()
	}
	return out
}
