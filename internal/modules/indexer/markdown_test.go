package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenMarkdownStripsStructure(t *testing.T) {
	src := "# Heading\n\nSome **bold** and *italic* text.\n\n- first\n- second\n"
	out := FlattenMarkdown(src)

	assert.Contains(t, out, "Heading")
	assert.Contains(t, out, "Some bold and italic text.")
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "second")
	assert.NotContains(t, out, "#")
	assert.NotContains(t, out, "**")
}

func TestFlattenMarkdownKeepsCodeContent(t *testing.T) {
	src := "Intro\n\n```go\nfunc main() {}\n```\n"
	out := FlattenMarkdown(src)

	assert.Contains(t, out, "Intro")
	assert.Contains(t, out, "func main() {}")
	assert.NotContains(t, out, "```")
}

func TestFlattenMarkdownLinkText(t *testing.T) {
	out := FlattenMarkdown("See [the docs](https://example.com/docs) for more.")
	assert.Contains(t, out, "the docs")
	assert.NotContains(t, out, "](")
}

func TestFlattenMarkdownEmpty(t *testing.T) {
	assert.Equal(t, "", FlattenMarkdown(""))
	assert.Equal(t, "", FlattenMarkdown("   \n  "))
}
