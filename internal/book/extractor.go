package book

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/book-expert/logger"
	"github.com/simp-lee/epub"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blankRunPattern matches a run of newlines, possibly mixed with spaces and
// tabs. Every such run is normalized to exactly one blank line, which is the
// paragraph boundary the synthesizer splits on. The normalization is
// idempotent.
var blankRunPattern = regexp.MustCompile(`[ \t]*\n[ \t\n]*`)

const paragraphBreak = "\n\n"

// headingAtoms are the heading levels considered when inferring a chapter
// title from an item's markup.
var headingAtoms = map[atom.Atom]bool{
	atom.H1: true,
	atom.H2: true,
	atom.H3: true,
}

// blockAtoms are the elements that terminate the current line during text
// extraction.
var blockAtoms = map[atom.Atom]bool{
	atom.P:          true,
	atom.Br:         true,
	atom.Div:        true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Li:         true,
	atom.Tr:         true,
	atom.Blockquote: true,
	atom.Hr:         true,
}

// skipAtoms are the elements whose text content is never narrated.
var skipAtoms = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
}

// Extractor turns an opened book into an ordered list of retained chapters.
type Extractor struct {
	minChars int
	log      *logger.Logger
}

// NewExtractor creates an extractor that drops items whose cleaned text is
// shorter than minChars. The threshold is a policy knob: it exists to exclude
// cover pages, tables of contents, and navigation stubs.
func NewExtractor(minChars int, log *logger.Logger) *Extractor {
	return &Extractor{
		minChars: minChars,
		log:      log,
	}
}

// Extract walks the book's document items in spine order and returns the
// retained chapters. Numbering starts at 1 and increments only for retained
// items, so output numbering stays contiguous regardless of dropped stubs.
func (e *Extractor) Extract(b *Book) ([]Chapter, error) {
	var chapters []Chapter

	number := 0

	for _, item := range b.source.Chapters() {
		raw, err := item.RawContent()
		if err != nil {
			return nil, fmt.Errorf("failed to read item %q: %w", item.Href, err)
		}

		text, err := visibleText(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from %q: %w", item.Href, err)
		}

		cleaned := NormalizeBlankLines(text)

		length := utf8.RuneCountInString(cleaned)
		if length < e.minChars {
			e.log.Info("Skipping short item %q (%d chars)", item.Href, length)

			continue
		}

		title := e.chapterTitle(item, raw)

		number++
		chapters = append(chapters, Chapter{
			Number: number,
			Title:  title,
			Text:   cleaned,
		})

		e.log.Info("Extracted chapter %d: %s (%d chars)", number, title, length)
	}

	return chapters, nil
}

// chapterTitle infers a title from the first level-1/2/3 heading in the
// item's markup, falling back to the TOC title and then to the item's
// internal file name.
func (e *Extractor) chapterTitle(item epub.Chapter, raw []byte) string {
	if heading := firstHeading(raw); heading != "" {
		return heading
	}

	if item.Title != "" {
		return item.Title
	}

	base := path.Base(item.Href)

	return strings.TrimSuffix(base, path.Ext(base))
}

// NormalizeBlankLines collapses every run of blank-line whitespace to a
// single blank line and trims leading and trailing whitespace.
func NormalizeBlankLines(text string) string {
	return strings.TrimSpace(blankRunPattern.ReplaceAllString(text, paragraphBreak))
}

// visibleText extracts the rendered text of the document's body element.
// Head content (the document title in particular) is never part of the
// narration, and script/style content is skipped. Block elements terminate
// the current line; whitespace runs inside text collapse to single spaces.
func visibleText(data []byte) (string, error) {
	tokenizer := html.NewTokenizer(bytes.NewReader(data))

	var collector textCollector

	inBody := false
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			err := tokenizer.Err()
			if errors.Is(err, io.EOF) {
				return collector.String(), nil
			}

			return "", fmt.Errorf("failed to tokenize document: %w", err)

		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			tag := atom.Lookup(name)

			switch {
			case tag == atom.Body:
				inBody = true
			case skipAtoms[tag]:
				skipDepth++
			case blockAtoms[tag]:
				collector.endLine()
			}

		case html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if blockAtoms[atom.Lookup(name)] {
				collector.endLine()
			}

		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := atom.Lookup(name)

			switch {
			case tag == atom.Body:
				inBody = false
			case skipAtoms[tag] && skipDepth > 0:
				skipDepth--
			case blockAtoms[tag]:
				collector.endLine()
			}

		case html.TextToken:
			if inBody && skipDepth == 0 {
				collector.writeText(string(tokenizer.Text()))
			}

		case html.CommentToken, html.DoctypeToken:
			// Nothing to collect.
		}
	}
}

// textCollector accumulates visible text, collapsing whitespace runs and
// terminating lines at block boundaries.
type textCollector struct {
	buf  strings.Builder
	last byte
}

// endLine terminates the current line, once, when there is one to terminate.
func (c *textCollector) endLine() {
	if c.last != 0 && c.last != '\n' {
		c.buf.WriteByte('\n')
		c.last = '\n'
	}
}

// writeText appends one text token with its internal whitespace runs
// collapsed to single spaces. A leading or trailing whitespace run is kept as
// one space so inline-element boundaries keep their spacing.
func (c *textCollector) writeText(text string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return
	}

	if isSpaceByte(text[0]) && c.last != 0 && c.last != '\n' && c.last != ' ' {
		c.buf.WriteByte(' ')
	}

	joined := strings.Join(fields, " ")
	c.buf.WriteString(joined)
	c.last = joined[len(joined)-1]

	if isSpaceByte(text[len(text)-1]) {
		c.buf.WriteByte(' ')
		c.last = ' '
	}
}

func (c *textCollector) String() string {
	return c.buf.String()
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// firstHeading scans XHTML and returns the text content of the first h1, h2,
// or h3 element, or the empty string when none exists.
func firstHeading(data []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(data))

	inHeading := false

	var buf strings.Builder

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""

		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if headingAtoms[atom.Lookup(name)] {
				inHeading = true
			}

		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if inHeading && headingAtoms[atom.Lookup(name)] {
				return strings.Join(strings.Fields(buf.String()), " ")
			}

		case html.TextToken:
			if inHeading {
				buf.Write(tokenizer.Text())
			}

		case html.SelfClosingTagToken, html.CommentToken, html.DoctypeToken:
			// Nothing to collect.
		}
	}
}
