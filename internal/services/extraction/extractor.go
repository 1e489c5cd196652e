package extraction

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoro/internal/common"
	"github.com/ternarybob/memoro/internal/interfaces"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Extractor converts uploads to plain text by filename extension.
// Supported: .txt (passthrough), .md (markdown stripped to text),
// .html/.htm (boilerplate removed, converted through markdown).
type Extractor struct {
	converter *md.Converter
	logger    arbor.ILogger
}

// NewExtractor creates a content extractor.
func NewExtractor(logger arbor.ILogger) interfaces.Extractor {
	converter := md.NewConverter("", true, nil)
	return &Extractor{
		converter: converter,
		logger:    logger,
	}
}

// Supported reports whether the filename's extension can be extracted.
func (e *Extractor) Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".markdown", ".html", ".htm":
		return true
	default:
		return false
	}
}

// Extract returns the plain text content of the upload.
// Rejects non-UTF-8 payloads before any format handling.
func (e *Extractor) Extract(filename string, raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", common.ErrInvalidEncoding
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return string(raw), nil
	case ".md", ".markdown":
		return e.extractMarkdown(raw)
	case ".html", ".htm":
		return e.extractHTML(raw)
	default:
		return "", fmt.Errorf("%w: %s", common.ErrUnsupportedType, ext)
	}
}

// extractMarkdown walks the markdown AST and collects text content,
// separating block elements with blank lines so paragraph structure
// survives for the chunker.
func (e *Extractor) extractMarkdown(raw []byte) (string, error) {
	parser := goldmark.New().Parser()
	reader := text.NewReader(raw)
	doc := parser.Parse(reader)

	var sb strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(raw))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteString(" ")
			}
		case *ast.Paragraph, *ast.Heading, *ast.ListItem, *ast.Blockquote:
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
		case *ast.FencedCodeBlock:
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				sb.Write(line.Value(raw))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to walk markdown: %w", err)
	}

	return normalize(sb.String()), nil
}

// extractHTML strips script/style/nav boilerplate with goquery, converts
// the remainder to markdown, then strips markdown to plain text.
func (e *Extractor) extractHTML(raw []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, noscript, iframe").Remove()

	html, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(html) == "" {
		// Fragments without a body element fall back to the whole input
		html = string(raw)
	}

	markdown, err := e.converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML: %w", err)
	}

	return e.extractMarkdown([]byte(markdown))
}

// normalize collapses intra-paragraph whitespace while keeping blank-line
// paragraph separators.
func normalize(text string) string {
	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		fields := strings.Fields(p)
		if len(fields) == 0 {
			continue
		}
		paragraphs = append(paragraphs, strings.Join(fields, " "))
	}
	return strings.Join(paragraphs, "\n\n")
}
