package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/pkgferry/pkg/nupkg"
	"github.com/matzehuels/pkgferry/pkg/resolve"
)

// ToDOT converts a resolution result to Graphviz DOT. Nodes are labelled
// with name and version; edges carry the declared range. The root is drawn
// bold and identities whose download failed are dashed.
func ToDOT(res *resolve.Result) string {
	failed := make(map[nupkg.Identity]bool, len(res.Failed))
	for _, f := range res.Failed {
		failed[f.Identity] = true
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12];\n")
	buf.WriteString("\n")

	for _, id := range res.Identities {
		attrs := []string{fmt.Sprintf("label=%q", id.Name+"\n"+id.Version)}
		switch {
		case id == res.Root:
			attrs = append(attrs, "penwidth=2", "fillcolor=\"#e0f2f1\"")
		case failed[id]:
			attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=\"#fdecea\"")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", id.Key(), strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range res.Edges {
		if e.Range != "" {
			fmt.Fprintf(&buf, "  %q -> %q [label=%q, fontsize=9];\n", e.From.Key(), e.To.Key(), e.Range)
		} else {
			fmt.Fprintf(&buf, "  %q -> %q;\n", e.From.Key(), e.To.Key())
		}
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

// WriteGraph writes the dependency graph of res to path, as SVG when the
// extension is .svg and as DOT otherwise.
func WriteGraph(ctx context.Context, res *resolve.Result, path string) error {
	dot := ToDOT(res)
	data := []byte(dot)
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		svg, err := RenderSVG(ctx, dot)
		if err != nil {
			return err
		}
		data = svg
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
