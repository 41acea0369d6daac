// Package graph provides the dependency graph induced by subtask template variables.
package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/promptsplit/pkg/models"
)

var (
	// ErrCycleDetected indicates a circular dependency among subtasks.
	ErrCycleDetected = errors.New("circular dependency detected")

	// ErrUnresolvedDependency indicates a depends_on variable that names no subtask.
	ErrUnresolvedDependency = errors.New("unresolved dependency")

	// ErrDuplicateTag indicates two subtasks share one tag.
	ErrDuplicateTag = errors.New("duplicate subtask tag")
)

// DependencyGraph is a directed graph over subtask tags.
// Edges point from a subtask to the subtasks whose output it consumes.
type DependencyGraph struct {
	// order is the subtask order of the result; it keeps traversals deterministic.
	order []string
	// edges maps a tag to the tags it depends on.
	edges map[string][]string
}

// Build constructs the graph from assembled subtasks.
// It fails if a depends_on variable names no subtask or if the graph has a cycle.
func Build(subtasks []models.Subtask) (*DependencyGraph, error) {
	g := &DependencyGraph{
		edges: make(map[string][]string, len(subtasks)),
	}

	for _, st := range subtasks {
		if _, exists := g.edges[st.Tag]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTag, st.Tag)
		}
		g.order = append(g.order, st.Tag)
		g.edges[st.Tag] = nil
	}

	for _, st := range subtasks {
		for _, dep := range st.DependsOn {
			if _, exists := g.edges[dep]; !exists {
				return nil, fmt.Errorf("%w: subtask %q references {{%s}}", ErrUnresolvedDependency, st.Tag, dep)
			}
			g.edges[st.Tag] = append(g.edges[st.Tag], dep)
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, fmt.Errorf("%w: %s", ErrCycleDetected, strings.Join(cycle, " -> "))
	}
	return g, nil
}

// findCycle returns one cycle as a tag path, or nil.
// Uses depth-first search with coloring to detect back edges.
func (g *DependencyGraph) findCycle() []string {
	// 0 = unvisited, 1 = in progress, 2 = done.
	state := make(map[string]int, len(g.order))

	var visit func(tag string, path []string) []string
	visit = func(tag string, path []string) []string {
		switch state[tag] {
		case 2:
			return nil
		case 1:
			start := 0
			for i, p := range path {
				if p == tag {
					start = i
					break
				}
			}
			return append(append([]string{}, path[start:]...), tag)
		}

		state[tag] = 1
		for _, dep := range g.edges[tag] {
			if cycle := visit(dep, append(path, tag)); cycle != nil {
				return cycle
			}
		}
		state[tag] = 2
		return nil
	}

	for _, tag := range g.order {
		if state[tag] == 0 {
			if cycle := visit(tag, nil); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// TopologicalSort returns tags so that every subtask follows the subtasks it depends on.
// Ties keep the original subtask order.
func (g *DependencyGraph) TopologicalSort() []string {
	visited := make(map[string]bool, len(g.order))
	result := make([]string, 0, len(g.order))

	var visit func(tag string)
	visit = func(tag string) {
		if visited[tag] {
			return
		}
		visited[tag] = true
		for _, dep := range g.edges[tag] {
			visit(dep)
		}
		result = append(result, tag)
	}

	for _, tag := range g.order {
		visit(tag)
	}
	return result
}

// Levels groups tags into batches; every subtask in a batch depends only on earlier batches.
// Subtasks in one batch can run in parallel.
func (g *DependencyGraph) Levels() [][]string {
	level := make(map[string]int, len(g.order))

	var depth func(tag string) int
	depth = func(tag string) int {
		if d, ok := level[tag]; ok {
			return d
		}
		d := 0
		for _, dep := range g.edges[tag] {
			if dd := depth(dep) + 1; dd > d {
				d = dd
			}
		}
		level[tag] = d
		return d
	}

	var levels [][]string
	for _, tag := range g.order {
		d := depth(tag)
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], tag)
	}
	return levels
}

// Size returns the number of subtasks in the graph.
func (g *DependencyGraph) Size() int {
	return len(g.order)
}
