package graph

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/avi3tal/flowgraph/pkg/state"
)

// Sentinel node names. END may be used as an edge or route target to mark
// a branch as terminal; START is reserved.
const (
	START = "__start__"
	END   = "__end__"

	defaultGraphName = "graph"
)

// Graph is the mutable specification of a computation graph. It has no
// execution capability: Compile validates the structure and produces an
// immutable CompiledGraph. Builder methods chain and defer all structural
// validation to Compile, so edges may reference nodes added later.
type Graph struct {
	graphID string
	name    string
	schema  *state.Schema

	nodes   map[string]*nodeSpec
	order   []string // node registration order
	edges   []edge
	routers map[string]*conditionalEdge

	entryPoints  []string
	finishPoints map[string]bool

	faults   []error // structural faults reported at Compile
	compiled bool
}

type edge struct {
	from string
	to   string
}

type conditionalEdge struct {
	from    string
	targets []string // declared possible targets, for validation and reachability
	router  RouterFunc
}

// Option configures a Graph at construction.
type Option func(*Graph)

// WithSchema sets the state schema used to merge node updates. Without a
// schema every field merges with the Replace reducer.
func WithSchema(schema *state.Schema) Option {
	return func(g *Graph) {
		g.schema = schema
	}
}

// WithGraphID overrides the generated graph identifier.
func WithGraphID(id string) Option {
	return func(g *Graph) {
		g.graphID = id
	}
}

// New creates an empty graph builder.
func New(name string, opts ...Option) *Graph {
	if name == "" {
		name = defaultGraphName
	}
	name = strings.ReplaceAll(name, " ", "-")

	g := &Graph{
		name:         name,
		graphID:      fmt.Sprintf("%s-%s", name, uuid.New().String()),
		schema:       state.NewSchema(),
		nodes:        make(map[string]*nodeSpec),
		routers:      make(map[string]*conditionalEdge),
		finishPoints: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddNode registers a named computation. Re-registering a name is a
// compile-time fault (ErrDuplicateNode).
func (g *Graph) AddNode(name string, fn NodeFunc) *Graph {
	if g.refuseMutation("AddNode", name) {
		return g
	}
	if name == START || name == END {
		g.faults = append(g.faults, newDefinitionError("AddNode", name, ErrDuplicateNode))
		return g
	}
	if _, exists := g.nodes[name]; exists {
		g.faults = append(g.faults, newDefinitionError("AddNode", name, ErrDuplicateNode))
		return g
	}
	g.nodes[name] = &nodeSpec{name: name, fn: fn, order: len(g.order)}
	g.order = append(g.order, name)
	return g
}

// AddEdge registers an unconditional edge. Both endpoints are validated
// at Compile; END is a valid target and marks the branch terminal.
func (g *Graph) AddEdge(from, to string) *Graph {
	if g.refuseMutation("AddEdge", from) {
		return g
	}
	g.edges = append(g.edges, edge{from: from, to: to})
	return g
}

// AddConditionalEdge registers a router on a source node. The router is
// invoked exactly once per source node per super-step, against the merged
// state, and must return names from the declared targets (or END). Only one
// router may be registered per source node.
func (g *Graph) AddConditionalEdge(from string, targets []string, router RouterFunc) *Graph {
	if g.refuseMutation("AddConditionalEdge", from) {
		return g
	}
	if _, exists := g.routers[from]; exists {
		g.faults = append(g.faults, newDefinitionError("AddConditionalEdge", from, ErrDuplicateRouter))
		return g
	}
	g.routers[from] = &conditionalEdge{
		from:    from,
		targets: append([]string(nil), targets...),
		router:  router,
	}
	return g
}

// AddSubgraph registers a compiled child graph as a node of this graph.
// The child is shared, never mutated; in and out translate state shapes
// at the boundary.
func (g *Graph) AddSubgraph(name string, child *CompiledGraph, in TransformIn, out TransformOut) *Graph {
	if g.refuseMutation("AddSubgraph", name) {
		return g
	}
	binding := &SubgraphBinding{child: child, in: in, out: out, store: child.checkpointer}
	g.AddNode(name, nil)
	if spec, ok := g.nodes[name]; ok && spec.fn == nil {
		spec.binding = binding
	}
	return g
}

// SetEntryPoint declares the nodes seeding the first super-step.
// Multiple calls accumulate.
func (g *Graph) SetEntryPoint(names ...string) *Graph {
	if g.refuseMutation("SetEntryPoint", "") {
		return g
	}
	g.entryPoints = append(g.entryPoints, names...)
	return g
}

// SetFinishPoint declares terminal nodes: after one runs, its branch
// schedules no successors. Equivalent to an edge to END.
func (g *Graph) SetFinishPoint(names ...string) *Graph {
	if g.refuseMutation("SetFinishPoint", "") {
		return g
	}
	for _, name := range names {
		g.finishPoints[name] = true
	}
	return g
}

func (g *Graph) refuseMutation(op, node string) bool {
	if !g.compiled {
		return false
	}
	g.faults = append(g.faults, newDefinitionError(op, node, ErrAlreadyCompiled))
	return true
}
