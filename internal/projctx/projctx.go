// Package projctx extracts a compact project-context string from the
// markdown documentation of a working copy. The context is injected into
// classifier, planner and worker prompts so they reason about the actual
// project instead of guessing.
package projctx

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/calder/worldmind/internal/fileutil"
)

// maxContextBytes caps the assembled context so prompts stay small.
const maxContextBytes = 8192

// docsDir is scanned for additional markdown besides the README.
const docsDir = "docs"

var readmeNames = []string{"README.md", "README.markdown", "readme.md"}

// Extractor summarises markdown documents with a shared goldmark instance.
type Extractor struct {
	markdown goldmark.Markdown
}

func NewExtractor() *Extractor {
	return &Extractor{markdown: goldmark.New()}
}

// Extract builds the project context for a working copy: the README summary
// first, then summaries of the markdown under docs/ in path order, truncated
// at the byte cap. A project without any markdown yields an empty context,
// not an error.
func (e *Extractor) Extract(projectPath string) (string, error) {
	if projectPath == "" {
		return "", nil
	}

	var sections []string
	for _, name := range readmeNames {
		data, err := os.ReadFile(filepath.Join(projectPath, name))
		if err != nil {
			continue
		}
		if s := e.Summarize(name, data); s != "" {
			sections = append(sections, s)
		}
		break
	}

	docs, err := fileutil.FindMarkdown(filepath.Join(projectPath, docsDir), 0)
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", docsDir, err)
	}
	for _, name := range docs {
		data, err := os.ReadFile(filepath.Join(projectPath, docsDir, name))
		if err != nil {
			return "", fmt.Errorf("read %s/%s: %w", docsDir, name, err)
		}
		if s := e.Summarize(filepath.Join(docsDir, name), data); s != "" {
			sections = append(sections, s)
		}
	}

	context := strings.Join(sections, "\n\n")
	if len(context) > maxContextBytes {
		context = context[:maxContextBytes]
	}
	return context, nil
}

// Summarize reduces one markdown document to its heading outline plus the
// first paragraph under each heading of level 1 or 2.
func (e *Extractor) Summarize(name string, source []byte) string {
	doc := e.markdown.Parser().Parse(text.NewReader(source))

	var sb strings.Builder
	fmt.Fprintf(&sb, "### %s\n", name)

	wantParagraph := false
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level <= 2 {
				fmt.Fprintf(&sb, "%s %s\n", strings.Repeat("#", node.Level), extractText(node, source))
				wantParagraph = true
			}
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph:
			if wantParagraph {
				fmt.Fprintf(&sb, "%s\n", extractText(node, source))
				wantParagraph = false
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	out := strings.TrimSpace(sb.String())
	if out == "### "+name {
		return ""
	}
	return out
}

func extractText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := c.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}
