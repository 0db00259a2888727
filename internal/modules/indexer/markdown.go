package indexer

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var markdownEngine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
	),
)

var blankRunPattern = regexp.MustCompile(`\n{3,}`)

// FlattenMarkdown strips markdown structure and returns the readable text,
// so headings, emphasis markers and link targets do not pollute passage
// embeddings. Code block contents are kept verbatim.
func FlattenMarkdown(source string) string {
	src := []byte(source)
	doc := markdownEngine.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := node.(type) {
		case *ast.Text:
			if entering {
				b.Write(n.Segment.Value(src))
				if n.SoftLineBreak() || n.HardLineBreak() {
					b.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				b.Write(n.Value)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := node.Lines()
				for i := 0; i < lines.Len(); i++ {
					segment := lines.At(i)
					b.Write(segment.Value(src))
				}
				b.WriteByte('\n')
			}
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			if entering {
				b.Write(n.URL(src))
			}
			return ast.WalkSkipChildren, nil
		default:
			if !entering && node.Type() == ast.TypeBlock {
				b.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})

	flattened := blankRunPattern.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(flattened)
}
