package agentflow

import (
	"fmt"
	"sort"
	"strings"
)

// DependencyGraph is the validated adjacency structure derived from a
// workflow definition: for each step, the ids it depends on and the ids that
// depend on it. Building is a pure function of the definition; callers may
// cache the result per definition.
type DependencyGraph struct {
	order        []string            // declaration order
	dependencies map[string][]string // step id -> dependency ids
	dependents   map[string][]string // step id -> dependent ids
}

// BuildGraph validates dependency references and acyclicity and returns the
// adjacency structure. Fails closed with a DefinitionError naming the
// offending step.
func BuildGraph(def *WorkflowDefinition) (*DependencyGraph, error) {
	if len(def.Steps) == 0 {
		return nil, &DefinitionError{Reason: "definition has no steps"}
	}

	g := &DependencyGraph{
		order:        make([]string, 0, len(def.Steps)),
		dependencies: make(map[string][]string, len(def.Steps)),
		dependents:   make(map[string][]string, len(def.Steps)),
	}

	for i := range def.Steps {
		step := &def.Steps[i]
		if _, dup := g.dependencies[step.ID]; dup {
			return nil, &DefinitionError{Step: step.ID, Reason: "duplicate step id"}
		}
		g.order = append(g.order, step.ID)
		g.dependencies[step.ID] = append([]string{}, step.DependsOn...)
	}

	for i := range def.Steps {
		step := &def.Steps[i]
		for _, dep := range step.DependsOn {
			if _, exists := g.dependencies[dep]; !exists {
				return nil, &DefinitionError{
					Step:   step.ID,
					Reason: fmt.Sprintf("dependsOn references unknown step %q", dep),
				}
			}
			g.dependents[dep] = append(g.dependents[dep], step.ID)
		}
	}

	if cycle := g.findCycle(); len(cycle) > 0 {
		return nil, &DefinitionError{
			Step:   cycle[0],
			Reason: "dependency cycle involving steps [" + strings.Join(cycle, ", ") + "]",
		}
	}

	return g, nil
}

// findCycle runs Kahn's algorithm; any step left with unmet in-degree after
// the sort belongs to a cycle. Returns the cycle members sorted, or nil.
func (g *DependencyGraph) findCycle() []string {
	indegree := make(map[string]int, len(g.order))
	for id, deps := range g.dependencies {
		indegree[id] = len(deps)
	}

	queue := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	sorted := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted++

		for _, dep := range g.dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if sorted == len(g.order) {
		return nil
	}

	var cycle []string
	for id, deg := range indegree {
		if deg > 0 {
			cycle = append(cycle, id)
		}
	}
	sort.Strings(cycle)
	return cycle
}

// StepIDs returns all step ids in declaration order.
func (g *DependencyGraph) StepIDs() []string {
	return append([]string{}, g.order...)
}

// Dependencies returns the ids the given step depends on.
func (g *DependencyGraph) Dependencies(stepID string) []string {
	return append([]string{}, g.dependencies[stepID]...)
}

// Dependents returns the ids that depend on the given step.
func (g *DependencyGraph) Dependents(stepID string) []string {
	return append([]string{}, g.dependents[stepID]...)
}

// Contains reports whether the graph declares the given step id.
func (g *DependencyGraph) Contains(stepID string) bool {
	_, ok := g.dependencies[stepID]
	return ok
}

// Roots returns the steps with no dependencies, in declaration order.
func (g *DependencyGraph) Roots() []string {
	var roots []string
	for _, id := range g.order {
		if len(g.dependencies[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Waves partitions the steps into readiness waves under the assumption that
// every step succeeds: wave n holds the steps whose longest dependency chain
// has length n. Used for planning output; the engine recomputes readiness
// from live step states instead.
func (g *DependencyGraph) Waves() [][]string {
	depth := make(map[string]int, len(g.order))

	var depthOf func(id string) int
	depthOf = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		d := 0
		for _, dep := range g.dependencies[id] {
			if dd := depthOf(dep) + 1; dd > d {
				d = dd
			}
		}
		depth[id] = d
		return d
	}

	maxDepth := 0
	for _, id := range g.order {
		if d := depthOf(id); d > maxDepth {
			maxDepth = d
		}
	}

	waves := make([][]string, maxDepth+1)
	for _, id := range g.order {
		waves[depth[id]] = append(waves[depth[id]], id)
	}
	return waves
}
