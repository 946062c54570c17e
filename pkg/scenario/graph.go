package scenario

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/wheelbench/pkg/packaging"
)

// Edge is a dependency from one package to another, through an extra
// ("" when unconditional). Edges are merged across versions.
type Edge struct {
	From, To, Extra string
}

// Edges returns the package-level dependency edges of s, sorted.
// Dependencies on packages absent from s are skipped.
func (s *Scenario) Edges() []Edge {
	set := make(map[Edge]struct{})
	for name, versions := range s.Packages {
		for _, info := range versions {
			for extra, deps := range info.DependsByExtra {
				for _, dep := range deps {
					req, err := packaging.ParseRequirement(dep)
					if err != nil {
						continue
					}
					to := req.CanonicalName()
					if _, ok := s.Packages[to]; !ok {
						continue
					}
					set[Edge{From: name, To: to, Extra: extra}] = struct{}{}
				}
			}
		}
	}

	edges := make([]Edge, 0, len(set))
	for e := range set {
		edges = append(edges, e)
	}
	slices.SortFunc(edges, func(a, b Edge) int {
		return strings.Compare(a.From+"\x00"+a.To+"\x00"+a.Extra, b.From+"\x00"+b.To+"\x00"+b.Extra)
	})
	return edges
}

// ToDOT renders the package graph in Graphviz DOT format. Root packages
// are highlighted; edges through an extra are dashed and labelled.
func (s *Scenario) ToDOT() string {
	roots := make(map[string]bool)
	for _, r := range s.Input.Requirements {
		if req, err := packaging.ParseRequirement(r); err == nil {
			roots[req.CanonicalName()] = true
		}
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14];\n")
	buf.WriteString("\n")

	for _, name := range s.PackageNames() {
		label := fmt.Sprintf("%s\n%d versions", name, len(s.Packages[name]))
		attrs := []string{fmt.Sprintf("label=%q", label)}
		if roots[name] {
			attrs = append(attrs, "fillcolor=lightblue")
		}
		if len(s.Packages[name]) == 0 {
			attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", name, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range s.Edges() {
		if e.Extra == "" {
			fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [style=dashed, label=%q];\n", e.From, e.To, e.Extra)
	}
	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
