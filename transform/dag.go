package transform

import (
	"context"
	"fmt"
	"sort"
)

// Materialization describes how a task writes its output.
type Materialization string

const (
	// FullRefresh tasks recreate their table from scratch every run.
	FullRefresh Materialization = "full_refresh"
	// Incremental tasks append only rows past their persisted cursor.
	Incremental Materialization = "incremental"
)

// Task is one named transformation in the graph. Run is invoked only after
// every task in DependsOn has completed in the same cycle.
type Task struct {
	Name            string
	DependsOn       []string
	Materialization Materialization
	Run             func(ctx context.Context) error
}

// Graph is a directed acyclic graph of transformation tasks.
type Graph struct {
	tasks map[string]Task
}

// NewGraph creates an empty task graph.
func NewGraph() *Graph {
	return &Graph{tasks: make(map[string]Task)}
}

// Add registers a task. Adding the same name twice is an error.
func (g *Graph) Add(t Task) error {
	if t.Name == "" {
		return fmt.Errorf("task name is required")
	}
	if t.Run == nil {
		return fmt.Errorf("task %s has no run function", t.Name)
	}
	if _, exists := g.tasks[t.Name]; exists {
		return fmt.Errorf("task %s already registered", t.Name)
	}
	g.tasks[t.Name] = t
	return nil
}

// Order returns the tasks in dependency order. Ties are broken by name so
// the execution order is deterministic run to run. Unknown dependencies and
// cycles are errors.
func (g *Graph) Order() ([]Task, error) {
	indegree := make(map[string]int, len(g.tasks))
	dependents := make(map[string][]string, len(g.tasks))

	for name, t := range g.tasks {
		if _, ok := indegree[name]; !ok {
			indegree[name] = 0
		}
		for _, dep := range t.DependsOn {
			if _, ok := g.tasks[dep]; !ok {
				return nil, fmt.Errorf("task %s depends on unknown task %s", name, dep)
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for name, n := range indegree {
		if n == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	ordered := make([]Task, 0, len(g.tasks))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		ordered = append(ordered, g.tasks[name])

		next := dependents[name]
		sort.Strings(next)
		for _, dep := range next {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = insertSorted(ready, dep)
			}
		}
	}

	if len(ordered) != len(g.tasks) {
		return nil, fmt.Errorf("task graph contains a cycle")
	}
	return ordered, nil
}

// Execute runs every task in dependency order. The first failure aborts the
// run immediately; later tasks do not execute.
func (g *Graph) Execute(ctx context.Context) error {
	ordered, err := g.Order()
	if err != nil {
		return err
	}
	for _, t := range ordered {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.Run(ctx); err != nil {
			return fmt.Errorf("task %s failed: %w", t.Name, err)
		}
	}
	return nil
}

func insertSorted(s []string, v string) []string {
	i := sort.SearchStrings(s, v)
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
