package graph

import (
	"github.com/rs/zerolog"

	"github.com/avi3tal/flowgraph/pkg/checkpoints"
)

const defaultMaxSteps = 25

// CompileOption configures the compiled graph.
type CompileOption func(*compileConfig)

type compileConfig struct {
	checkpointer checkpoints.Store
	maxSteps     int
	logger       zerolog.Logger
}

// WithCheckpointer attaches a checkpoint store. The same store is
// propagated recursively to every subgraph binding that does not carry
// its own, so a parent and its descendants share one persistence backend
// and one thread-identifier namespace.
func WithCheckpointer(store checkpoints.Store) CompileOption {
	return func(c *compileConfig) {
		c.checkpointer = store
	}
}

// WithMaxSteps caps the number of super-steps per run, guarding against
// non-terminating cycles. Default is 25.
func WithMaxSteps(steps int) CompileOption {
	return func(c *compileConfig) {
		c.maxSteps = steps
	}
}

// WithLogger sets the logger used for step tracing. Default discards.
func WithLogger(logger zerolog.Logger) CompileOption {
	return func(c *compileConfig) {
		c.logger = logger
	}
}

// Compile validates the graph definition and produces an immutable,
// executable CompiledGraph. All structural validation happens here, at
// the phase boundary, so the executor never re-validates:
//
//   - duplicate node names (ErrDuplicateNode)
//   - nodes registered without a body (ErrNilNodeFunc)
//   - edges or declared router targets naming undefined nodes (ErrDanglingEdge)
//   - missing entry points (ErrNoEntryPoint)
//   - nodes unreachable from every entry point (ErrUnreachableNode)
func (g *Graph) Compile(opts ...CompileOption) (*CompiledGraph, error) {
	cfg := compileConfig{
		maxSteps: defaultMaxSteps,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(g.faults) > 0 {
		return nil, g.faults[0]
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	g.compiled = true

	adjacency := make(map[string][]string, len(g.nodes))
	for _, e := range g.edges {
		adjacency[e.from] = append(adjacency[e.from], e.to)
	}

	cg := &CompiledGraph{
		graphID:      g.graphID,
		name:         g.name,
		schema:       g.schema,
		nodes:        g.nodes,
		order:        append([]string(nil), g.order...),
		adjacency:    adjacency,
		routers:      g.routers,
		entryPoints:  append([]string(nil), g.entryPoints...),
		finishPoints: g.finishPoints,
		checkpointer: cfg.checkpointer,
		maxSteps:     cfg.maxSteps,
		logger:       cfg.logger.With().Str("graph", g.name).Logger(),
	}

	// Subgraph bindings without their own store inherit the parent's.
	if cfg.checkpointer != nil {
		for _, name := range cg.order {
			if b := cg.nodes[name].binding; b != nil && b.store == nil {
				b.store = cfg.checkpointer
			}
		}
	}

	return cg, nil
}

func (g *Graph) validate() error {
	// Every node needs a body: a function or a subgraph binding.
	for _, name := range g.order {
		if spec := g.nodes[name]; spec.fn == nil && spec.binding == nil {
			return newDefinitionError("node", name, ErrNilNodeFunc)
		}
	}

	// Edge endpoints must name registered nodes. END is a valid target;
	// START is never a valid endpoint in a definition.
	for _, e := range g.edges {
		if _, ok := g.nodes[e.from]; !ok {
			return newDefinitionError("edge", e.from, ErrDanglingEdge)
		}
		if e.to != END {
			if _, ok := g.nodes[e.to]; !ok {
				return newDefinitionError("edge", e.to, ErrDanglingEdge)
			}
		}
	}
	for from, ce := range g.routers {
		if _, ok := g.nodes[from]; !ok {
			return newDefinitionError("conditional edge", from, ErrDanglingEdge)
		}
		for _, target := range ce.targets {
			if target == END {
				continue
			}
			if _, ok := g.nodes[target]; !ok {
				return newDefinitionError("conditional edge", target, ErrDanglingEdge)
			}
		}
	}
	for name := range g.finishPoints {
		if _, ok := g.nodes[name]; !ok {
			return newDefinitionError("finish point", name, ErrDanglingEdge)
		}
	}

	if len(g.entryPoints) == 0 {
		return newDefinitionError("entry point", "", ErrNoEntryPoint)
	}
	for _, name := range g.entryPoints {
		if _, ok := g.nodes[name]; !ok {
			return newDefinitionError("entry point", name, ErrDanglingEdge)
		}
	}

	// Every node must be reachable from at least one entry point.
	reachable := make(map[string]bool, len(g.nodes))
	var visit func(name string)
	visit = func(name string) {
		if name == END || reachable[name] {
			return
		}
		reachable[name] = true
		for _, e := range g.edges {
			if e.from == name {
				visit(e.to)
			}
		}
		if ce, ok := g.routers[name]; ok {
			for _, target := range ce.targets {
				visit(target)
			}
		}
	}
	for _, entry := range g.entryPoints {
		visit(entry)
	}
	for _, name := range g.order {
		if !reachable[name] {
			return newDefinitionError("reachability", name, ErrUnreachableNode)
		}
	}

	return nil
}
