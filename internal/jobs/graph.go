package jobs

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDuplicateStage is returned when a stage name is added twice.
	ErrDuplicateStage = errors.New("duplicate stage")
	// ErrUnknownDependency is returned when a stage depends on a stage that
	// has not been added yet.
	ErrUnknownDependency = errors.New("unknown dependency")
)

// StageFunc is the body of a stage. It must not block on other stages; the
// graph orders it behind its dependencies.
type StageFunc func(ctx context.Context) error

type stage struct {
	name string
	run  StageFunc
	deps []string
}

// Graph is a directed acyclic graph of named stages. A stage may only depend
// on stages added before it, so insertion order is a topological order and
// cycles cannot be expressed.
type Graph struct {
	stages []stage
	index  map[string]int
}

// NewGraph creates an empty stage graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[string]int)}
}

// Add registers a stage that runs after all of deps.
func (g *Graph) Add(name string, run StageFunc, deps ...string) error {
	if _, ok := g.index[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateStage, name)
	}
	for _, d := range deps {
		if _, ok := g.index[d]; !ok {
			return fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, name, d)
		}
	}
	g.index[name] = len(g.stages)
	g.stages = append(g.stages, stage{name: name, run: run, deps: deps})
	return nil
}

// Order returns the stage names in execution order.
func (g *Graph) Order() []string {
	names := make([]string, len(g.stages))
	for i, s := range g.stages {
		names[i] = s.name
	}
	return names
}

// Dependencies returns the declared dependencies of a stage.
func (g *Graph) Dependencies(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	return append([]string(nil), g.stages[i].deps...)
}

// Schedule starts every stage behind its declared dependencies and returns
// one handle that completes when all stages have. Stages without
// dependencies hang off prereq, so every stage is transitively behind it.
func (g *Graph) Schedule(ctx context.Context, prereq *Handle) *Handle {
	if len(g.stages) == 0 {
		return Combine(prereq)
	}
	handles := make([]*Handle, len(g.stages))
	dependedOn := make([]bool, len(g.stages))

	for i, s := range g.stages {
		dep := prereq
		if len(s.deps) > 0 {
			deps := make([]*Handle, len(s.deps))
			for k, d := range s.deps {
				j := g.index[d]
				deps[k] = handles[j]
				dependedOn[j] = true
			}
			dep = Combine(deps...)
		}
		handles[i] = Schedule(ctx, dep, wrapStage(s))
	}

	var sinks []*Handle
	for i, h := range handles {
		if !dependedOn[i] {
			sinks = append(sinks, h)
		}
	}
	return Combine(sinks...)
}

func wrapStage(s stage) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := s.run(ctx); err != nil {
			return fmt.Errorf("stage %s: %w", s.name, err)
		}
		return nil
	}
}
