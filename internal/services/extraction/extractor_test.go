package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/memoro/internal/common"
)

func TestSupported(t *testing.T) {
	e := NewExtractor(common.GetLogger())

	assert.True(t, e.Supported("notes.txt"))
	assert.True(t, e.Supported("README.md"))
	assert.True(t, e.Supported("page.HTML"))
	assert.False(t, e.Supported("report.pdf"))
	assert.False(t, e.Supported("archive.zip"))
	assert.False(t, e.Supported("noextension"))
}

func TestExtract_PlainText(t *testing.T) {
	e := NewExtractor(common.GetLogger())

	text, err := e.Extract("notes.txt", []byte("First paragraph.\n\nSecond paragraph."))
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", text)
}

func TestExtract_RejectsInvalidUTF8(t *testing.T) {
	e := NewExtractor(common.GetLogger())

	_, err := e.Extract("notes.txt", []byte{0xff, 0xfe, 0x00, 0x41})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidEncoding)
}

func TestExtract_RejectsUnsupportedExtension(t *testing.T) {
	e := NewExtractor(common.GetLogger())

	_, err := e.Extract("report.pdf", []byte("content"))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnsupportedType)
}

func TestExtract_MarkdownStripped(t *testing.T) {
	e := NewExtractor(common.GetLogger())

	input := "# Heading\n\nSome **bold** text with a [link](https://example.com).\n\n- first item\n- second item\n"
	text, err := e.Extract("doc.md", []byte(input))
	require.NoError(t, err)

	assert.Contains(t, text, "Heading")
	assert.Contains(t, text, "Some bold text with a link.")
	assert.Contains(t, text, "first item")
	assert.NotContains(t, text, "#")
	assert.NotContains(t, text, "**")
	assert.NotContains(t, text, "https://example.com")
}

func TestExtract_HTMLStripped(t *testing.T) {
	e := NewExtractor(common.GetLogger())

	input := `<html><head><title>Ignored</title><style>body{color:red}</style></head>
<body><nav>menu items</nav><h1>Report Title</h1><p>Body paragraph with <b>emphasis</b>.</p>
<script>alert("x")</script></body></html>`
	text, err := e.Extract("page.html", []byte(input))
	require.NoError(t, err)

	assert.Contains(t, text, "Report Title")
	assert.Contains(t, text, "Body paragraph with emphasis.")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "color:red")
	assert.NotContains(t, text, "menu items")
}

func TestExtract_MarkdownPreservesParagraphBreaks(t *testing.T) {
	e := NewExtractor(common.GetLogger())

	input := "First topic sentence here.\n\nSecond topic sentence here."
	text, err := e.Extract("doc.md", []byte(input))
	require.NoError(t, err)

	assert.Contains(t, text, "\n\n")
}
