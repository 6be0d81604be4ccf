// Package book_test tests EPUB loading and chapter extraction.
package book_test

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/book-expert/epub-narrator/internal/book"
	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

// testBook describes the EPUB to generate for a test: its metadata plus an
// ordered list of XHTML chapter bodies.
type testBook struct {
	title     string
	author    string
	publisher string
	date      string
	language  string
	chapters  []string
}

// writeTestEPub builds a minimal EPUB 2 archive on disk and returns its path.
// The mimetype entry is written first, as the format requires.
func writeTestEPub(t *testing.T, spec testBook) string {
	t.Helper()

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	writeEntry(t, zw, "mimetype", "application/epub+zip")
	writeEntry(t, zw, "META-INF/container.xml", containerXML)

	var manifest, spine strings.Builder

	for i := range spec.chapters {
		name := fmt.Sprintf("chap%02d.xhtml", i+1)
		fmt.Fprintf(&manifest,
			`<item id="c%d" href="%s" media-type="application/xhtml+xml"/>`,
			i+1, name)
		fmt.Fprintf(&spine, `<itemref idref="c%d"/>`, i+1)
		writeEntry(t, zw, "OEBPS/"+name, spec.chapters[i])
	}

	opf := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:identifier id="id">test-book</dc:identifier>
    %s
  </metadata>
  <manifest>%s</manifest>
  <spine>%s</spine>
</package>`, metadataXML(spec), manifest.String(), spine.String())

	writeEntry(t, zw, "OEBPS/content.opf", opf)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "test.epub")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	return path
}

func metadataXML(spec testBook) string {
	var b strings.Builder

	if spec.title != "" {
		fmt.Fprintf(&b, "<dc:title>%s</dc:title>", spec.title)
	}

	if spec.author != "" {
		fmt.Fprintf(&b, "<dc:creator>%s</dc:creator>", spec.author)
	}

	if spec.publisher != "" {
		fmt.Fprintf(&b, "<dc:publisher>%s</dc:publisher>", spec.publisher)
	}

	if spec.date != "" {
		fmt.Fprintf(&b, "<dc:date>%s</dc:date>", spec.date)
	}

	if spec.language != "" {
		fmt.Fprintf(&b, "<dc:language>%s</dc:language>", spec.language)
	}

	return b.String()
}

func writeEntry(t *testing.T, zw *zip.Writer, name, content string) {
	t.Helper()

	fw, err := zw.Create(name)
	require.NoError(t, err)

	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "book-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = log.Close() })

	return log
}

func chapterXHTML(heading, body string) string {
	h := ""
	if heading != "" {
		h = "<h1>" + heading + "</h1>"
	}

	return `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>x</title></head>
<body>` + h + `<p>` + body + `</p></body></html>`
}

func TestLoadMetadata(t *testing.T) {
	t.Parallel()

	path := writeTestEPub(t, testBook{
		title:     "The Woman in White",
		author:    "Wilkie Collins",
		publisher: "Sampson Low",
		date:      "1860",
		language:  "en",
		chapters:  []string{chapterXHTML("I", strings.Repeat("hot summer pavement. ", 10))},
	})

	loaded, err := book.Load(path)
	require.NoError(t, err)

	defer func() { require.NoError(t, loaded.Close()) }()

	meta := loaded.Metadata()
	assert.Equal(t, "The Woman in White", meta.Title)
	assert.Equal(t, "Wilkie Collins", meta.Author)
	assert.Equal(t, "Sampson Low", meta.Publisher)
	assert.Equal(t, "1860", meta.Date)
	assert.Equal(t, "en", meta.Language)
}

func TestLoadMetadataDefaults(t *testing.T) {
	t.Parallel()

	path := writeTestEPub(t, testBook{
		chapters: []string{chapterXHTML("I", strings.Repeat("words ", 20))},
	})

	loaded, err := book.Load(path)
	require.NoError(t, err)

	defer func() { require.NoError(t, loaded.Close()) }()

	meta := loaded.Metadata()
	assert.Equal(t, book.UnknownTitle, meta.Title)
	assert.Equal(t, book.UnknownAuthor, meta.Author)
	assert.Equal(t, book.UnknownPublisher, meta.Publisher)
	assert.Empty(t, meta.Date)
	assert.Equal(t, "en", meta.Language)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := book.Load(filepath.Join(t.TempDir(), "absent.epub"))
	require.Error(t, err)
}

func TestExtractDropsShortItems(t *testing.T) {
	t.Parallel()

	longOne := strings.Repeat("The long hot summer was drawing to a close. ", 5)
	longTwo := strings.Repeat("We were the weary pilgrims of the pavement. ", 5)

	path := writeTestEPub(t, testBook{
		title: "Test",
		chapters: []string{
			chapterXHTML("Chapter One", longOne),
			chapterXHTML("", "Too short."),
			chapterXHTML("Chapter Two", longTwo),
		},
	})

	loaded, err := book.Load(path)
	require.NoError(t, err)

	defer func() { require.NoError(t, loaded.Close()) }()

	extractor := book.NewExtractor(50, newTestLogger(t))

	chapters, err := extractor.Extract(loaded)
	require.NoError(t, err)

	require.Len(t, chapters, 2)
	assert.Equal(t, 1, chapters[0].Number)
	assert.Equal(t, "Chapter One", chapters[0].Title)
	assert.Equal(t, 2, chapters[1].Number)
	assert.Equal(t, "Chapter Two", chapters[1].Title)
}

func TestExtractTitleFallsBackToFilename(t *testing.T) {
	t.Parallel()

	path := writeTestEPub(t, testBook{
		title: "Test",
		chapters: []string{
			chapterXHTML("", strings.Repeat("No heading in this item at all. ", 5)),
		},
	})

	loaded, err := book.Load(path)
	require.NoError(t, err)

	defer func() { require.NoError(t, loaded.Close()) }()

	extractor := book.NewExtractor(50, newTestLogger(t))

	chapters, err := extractor.Extract(loaded)
	require.NoError(t, err)

	require.Len(t, chapters, 1)
	assert.Equal(t, "chap01", chapters[0].Title)
}

func TestExtractUsesSecondLevelHeading(t *testing.T) {
	t.Parallel()

	content := `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>x</title></head>
<body><h2>The First Epoch</h2><p>` +
		strings.Repeat("The story begins in earnest here. ", 5) +
		`</p></body></html>`

	path := writeTestEPub(t, testBook{title: "Test", chapters: []string{content}})

	loaded, err := book.Load(path)
	require.NoError(t, err)

	defer func() { require.NoError(t, loaded.Close()) }()

	extractor := book.NewExtractor(50, newTestLogger(t))

	chapters, err := extractor.Extract(loaded)
	require.NoError(t, err)

	require.Len(t, chapters, 1)
	assert.Equal(t, "The First Epoch", chapters[0].Title)
}

func TestExtractReadsOnlyBodyText(t *testing.T) {
	t.Parallel()

	// The document title lives in <head>; it must never be narrated.
	content := `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>Ignore Me</title></head>
<body><p>` + strings.Repeat("The pavement shimmered in the heat. ", 5) + `</p></body></html>`

	path := writeTestEPub(t, testBook{title: "Test", chapters: []string{content}})

	loaded, err := book.Load(path)
	require.NoError(t, err)

	defer func() { require.NoError(t, loaded.Close()) }()

	extractor := book.NewExtractor(50, newTestLogger(t))

	chapters, err := extractor.Extract(loaded)
	require.NoError(t, err)

	require.Len(t, chapters, 1)
	assert.NotContains(t, chapters[0].Text, "Ignore Me")
	assert.True(t, strings.HasPrefix(chapters[0].Text, "The pavement shimmered"))
}

func TestExtractEmptyBodyYieldsEmptyText(t *testing.T) {
	t.Parallel()

	content := `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>x</title></head>
<body><p></p></body></html>`

	path := writeTestEPub(t, testBook{title: "Test", chapters: []string{content}})

	loaded, err := book.Load(path)
	require.NoError(t, err)

	defer func() { require.NoError(t, loaded.Close()) }()

	// Threshold 0 retains the item; its text must still be empty because
	// the head title is not body content.
	extractor := book.NewExtractor(0, newTestLogger(t))

	chapters, err := extractor.Extract(loaded)
	require.NoError(t, err)

	require.Len(t, chapters, 1)
	require.Empty(t, chapters[0].Text)
}

func TestExtractThresholdCountsRunesNotBytes(t *testing.T) {
	t.Parallel()

	// 20 runes, 60 bytes. Counted in characters this is below the
	// 50-character threshold and must be dropped.
	cjkStub := strings.Repeat("短", 20)

	path := writeTestEPub(t, testBook{
		title:    "Test",
		chapters: []string{chapterXHTML("", cjkStub)},
	})

	loaded, err := book.Load(path)
	require.NoError(t, err)

	defer func() { require.NoError(t, loaded.Close()) }()

	extractor := book.NewExtractor(50, newTestLogger(t))

	chapters, err := extractor.Extract(loaded)
	require.NoError(t, err)
	assert.Empty(t, chapters)
}

func TestNormalizeBlankLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single newline becomes paragraph break",
			input:    "first line\nsecond line",
			expected: "first line\n\nsecond line",
		},
		{
			name:     "newline run with spaces collapses",
			input:    "first\n \n\t\n  second",
			expected: "first\n\nsecond",
		},
		{
			name:     "surrounding whitespace trimmed",
			input:    "\n\n  body text  \n\n",
			expected: "body text",
		},
		{
			name:     "empty input stays empty",
			input:    "",
			expected: "",
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			once := book.NormalizeBlankLines(testCase.input)
			assert.Equal(t, testCase.expected, once)

			// Normalization must be idempotent.
			assert.Equal(t, once, book.NormalizeBlankLines(once))
		})
	}
}
