package ast

import "encoding/json"

// Dump walks a Tree into the same map[string]any shape the teacher's
// parser.astPrinter built over its pointer-linked tree, so cmd/v7's parse
// subcommand can reuse that JSON-dump idiom over the packed
// representation instead.
func Dump(t *Tree, pos int) any {
	tag := t.Tag(pos)
	node := map[string]any{"type": tag.String()}
	if line := t.Line(pos); line > 0 {
		node["line"] = line
	}
	if Describe(tag).HasInline {
		node["inline"] = string(t.Inline(pos))
	}

	desc := Describe(tag)
	if desc.NumSubtrees > 0 {
		subs := make([]any, desc.NumSubtrees)
		for i := 0; i < desc.NumSubtrees; i++ {
			subs[i] = Dump(t, t.Subtree(pos, i))
		}
		node["subtrees"] = subs
	}
	if desc.OpenEnded {
		kids := t.Children(pos)
		out := make([]any, len(kids))
		for i, k := range kids {
			out[i] = Dump(t, k)
		}
		node["children"] = out
	}
	return node
}

// DumpJSON renders t as an indented JSON document, mirroring
// PrintASTJSON's formatting.
func DumpJSON(t *Tree) (string, error) {
	b, err := json.MarshalIndent(Dump(t, t.Root()), "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
