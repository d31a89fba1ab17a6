// Package visualization renders state machine definitions as Graphviz documents
package visualization

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/anggasct/statechart"
)

// DOTGenerator generates Graphviz DOT format representations of state machines
type DOTGenerator[ID comparable] struct {
	definition *statechart.Definition[ID]
	options    DOTOptions
	active     map[ID]bool
}

// DOTOptions configures the DOT generation
type DOTOptions struct {
	ShowLabels          bool
	ShowEventless       bool
	RankDirection       string // "TB", "LR", "BT", "RL"
	NodeShape           string
	CompositeStateStyle string
	InitialColor        string
	ActiveColor         string
}

// DefaultDOTOptions returns sensible default options for DOT generation
func DefaultDOTOptions() DOTOptions {
	return DOTOptions{
		ShowLabels:          true,
		ShowEventless:       true,
		RankDirection:       "TB",
		NodeShape:           "box",
		CompositeStateStyle: "rounded,filled",
		InitialColor:        "lightgreen",
		ActiveColor:         "gold",
	}
}

// NewDOTGenerator creates a new DOT generator for the given machine definition
func NewDOTGenerator[ID comparable](definition *statechart.Definition[ID], options ...DOTOptions) *DOTGenerator[ID] {
	opts := DefaultDOTOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	return &DOTGenerator[ID]{
		definition: definition,
		options:    opts,
		active:     make(map[ID]bool),
	}
}

// NewProcessorDOTGenerator renders the definition of p with its current
// active configuration highlighted.
func NewProcessorDOTGenerator[ID comparable](p *statechart.Processor[ID], options ...DOTOptions) *DOTGenerator[ID] {
	return NewDOTGenerator(p.Definition(), options...).WithActive(p.ActiveStates()...)
}

// WithActive highlights the given states
func (g *DOTGenerator[ID]) WithActive(states ...ID) *DOTGenerator[ID] {
	for _, id := range states {
		g.active[id] = true
	}
	return g
}

// Generate creates a DOT representation of the state machine
func (g *DOTGenerator[ID]) Generate() (string, error) {
	if g.definition == nil {
		return "", statechart.NewConfigurationError("visualization", statechart.ErrNilDefinition, "definition is nil")
	}

	var dot strings.Builder

	// DOT header
	dot.WriteString("digraph StateMachine {\n")
	fmt.Fprintf(&dot, "  rankdir=%s;\n", g.options.RankDirection)
	dot.WriteString("  compound=true;\n")
	fmt.Fprintf(&dot, "  node [shape=%s style=\"rounded,filled\" fillcolor=lightblue];\n", g.options.NodeShape)
	dot.WriteString("  edge [fontsize=10];\n\n")

	dot.WriteString("  // States\n")
	initial, err := g.definition.State(g.definition.Initial())
	if err != nil {
		return "", fmt.Errorf("failed to resolve initial state: %w", err)
	}
	g.writeInitialMarker(&dot, "  ", "__start", initial)

	for _, root := range g.definition.Roots() {
		if err := g.writeState(&dot, "  ", root); err != nil {
			return "", fmt.Errorf("failed to generate states: %w", err)
		}
	}

	dot.WriteString("\n  // Transitions\n")
	for _, state := range g.definition.States() {
		g.writeTransitions(&dot, state)
	}

	// DOT footer
	dot.WriteString("}\n")

	return dot.String(), nil
}

func (g *DOTGenerator[ID]) writeState(dot *strings.Builder, indent string, state statechart.State[ID]) error {
	name := nodeName(state.ID())

	compound, ok := state.(*statechart.CompoundState[ID])
	if !ok {
		fillColor := "lightblue"
		if state.ID() == g.definition.Initial() {
			fillColor = g.options.InitialColor
		}
		if g.active[state.ID()] {
			fillColor = g.options.ActiveColor
		}
		fmt.Fprintf(dot, "%s%s [fillcolor=%s label=%s];\n", indent, name, fillColor, name)
		return nil
	}

	fillColor := "lightcyan"
	if g.active[state.ID()] {
		fillColor = g.options.ActiveColor
	}

	fmt.Fprintf(dot, "%ssubgraph %s {\n", indent, clusterName(state.ID()))
	inner := indent + "  "
	fmt.Fprintf(dot, "%slabel=%s;\n", inner, name)
	fmt.Fprintf(dot, "%sstyle=%q;\n", inner, g.options.CompositeStateStyle)
	fmt.Fprintf(dot, "%sfillcolor=%s;\n", inner, fillColor)
	// anchor for edges ending or starting at the cluster
	fmt.Fprintf(dot, "%s%s [shape=point style=invis];\n", inner, name)

	child, err := compound.DefaultState()
	if err != nil {
		return err
	}
	g.writeInitialMarker(dot, inner, "__initial_"+fmt.Sprint(state.ID()), child)

	for _, child := range compound.Children() {
		if err := g.writeState(dot, inner, child); err != nil {
			return err
		}
	}

	fmt.Fprintf(dot, "%s}\n", indent)
	return nil
}

func (g *DOTGenerator[ID]) writeInitialMarker(dot *strings.Builder, indent, marker string, target statechart.State[ID]) {
	marker = quote(marker)
	fmt.Fprintf(dot, "%s%s [shape=point width=0.15 fillcolor=black];\n", indent, marker)

	if target.IsAtomic() {
		fmt.Fprintf(dot, "%s%s -> %s;\n", indent, marker, nodeName(target.ID()))
		return
	}
	fmt.Fprintf(dot, "%s%s -> %s [lhead=%s];\n", indent, marker, nodeName(target.ID()), clusterName(target.ID()))
}

func (g *DOTGenerator[ID]) writeTransitions(dot *strings.Builder, state statechart.State[ID]) {
	for _, transition := range state.Transitions() {
		if transition.Eventless() && !g.options.ShowEventless {
			continue
		}

		targets := transition.Targets()
		if len(targets) == 0 {
			fmt.Fprintf(dot, "  // %v: %s (target selected at runtime)\n", state.ID(), transition.Description())
			continue
		}

		for _, target := range targets {
			var attrs []string
			if g.options.ShowLabels && transition.Description() != "" {
				attrs = append(attrs, "label="+quote(transition.Description()))
			}
			if transition.Eventless() {
				attrs = append(attrs, "style=dashed")
			}
			if !state.IsAtomic() {
				attrs = append(attrs, "ltail="+clusterName(state.ID()))
			}
			if g.isCompound(target) {
				attrs = append(attrs, "lhead="+clusterName(target))
			}

			if len(attrs) == 0 {
				fmt.Fprintf(dot, "  %s -> %s;\n", nodeName(state.ID()), nodeName(target))
				continue
			}
			fmt.Fprintf(dot, "  %s -> %s [%s];\n", nodeName(state.ID()), nodeName(target), strings.Join(attrs, " "))
		}
	}
}

func (g *DOTGenerator[ID]) isCompound(id ID) bool {
	state, err := g.definition.State(id)
	return err == nil && !state.IsAtomic()
}

// GenerateToFile writes the DOT representation to a file
func (g *DOTGenerator[ID]) GenerateToFile(filename string) error {
	content, err := g.Generate()
	if err != nil {
		return err
	}

	return os.WriteFile(filename, []byte(content), 0644)
}

// GenerateSVG creates an SVG representation of the state machine by piping
// the DOT document through the Graphviz dot command
func (g *DOTGenerator[ID]) GenerateSVG() (string, error) {
	dotContent, err := g.Generate()
	if err != nil {
		return "", err
	}

	cmd := exec.Command("dot", "-Tsvg")
	cmd.Stdin = strings.NewReader(dotContent)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to execute dot command: %w (make sure Graphviz is installed)", err)
	}

	return out.String(), nil
}

func nodeName(id any) string {
	return quote(fmt.Sprint(id))
}

func clusterName(id any) string {
	return quote("cluster_" + fmt.Sprint(id))
}

func quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
