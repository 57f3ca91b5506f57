package build

import (
	"fmt"
	"io"
	"strings"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
)

// Graph flattens a plan into its ordering DAG: one vertex per leaf task and an
// edge a -> b whenever a must finish before b starts.
func Graph(root Task) (graph.Graph[string, string], error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.Acyclic(), graph.PreventCycles())
	if _, _, err := addTask(g, root); err != nil {
		return nil, err
	}
	return g, nil
}

// addTask adds t and returns the leaves that start it (sources) and end it (sinks).
func addTask(g graph.Graph[string, string], t Task) (sources, sinks []string, err error) {
	grp, ok := t.(*Group)
	if !ok {
		if err := g.AddVertex(t.Name(), graph.VertexAttribute("shape", "box")); err != nil {
			return nil, nil, fmt.Errorf("task %q: %w", t.Name(), err)
		}
		return []string{t.Name()}, []string{t.Name()}, nil
	}

	for i, c := range grp.children {
		src, snk, err := addTask(g, c)
		if err != nil {
			return nil, nil, err
		}
		if grp.kind == KindParallel {
			sources = append(sources, src...)
			sinks = append(sinks, snk...)
			continue
		}
		if i == 0 {
			sources = src
		}
		for _, from := range sinks {
			for _, to := range src {
				if err := g.AddEdge(from, to); err != nil {
					return nil, nil, fmt.Errorf("order %s -> %s: %w", from, to, err)
				}
			}
		}
		sinks = snk
	}
	return sources, sinks, nil
}

// TopologicalOrder returns the leaf tasks in a deterministic topological order.
func TopologicalOrder(root Task) ([]string, error) {
	g, err := Graph(root)
	if err != nil {
		return nil, err
	}
	return graph.StableTopologicalSort(g, func(a, b string) bool { return a < b })
}

// WriteDOT renders the ordering DAG in Graphviz DOT format.
func WriteDOT(w io.Writer, root Task) error {
	g, err := Graph(root)
	if err != nil {
		return err
	}
	return draw.DOT(g, w)
}

// WriteTree renders the plan as an indented tree.
func WriteTree(w io.Writer, root Task) error {
	return writeTree(w, root, 0)
}

func writeTree(w io.Writer, t Task, depth int) error {
	indent := strings.Repeat("  ", depth)
	grp, ok := t.(*Group)
	if !ok {
		_, err := fmt.Fprintf(w, "%s- %s\n", indent, t.Name())
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%s (%s)\n", indent, grp.name, grp.kind); err != nil {
		return err
	}
	for _, c := range grp.children {
		if err := writeTree(w, c, depth+1); err != nil {
			return err
		}
	}
	return nil
}
