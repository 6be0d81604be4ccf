// Package book provides EPUB loading and chapter extraction for the
// narration pipeline.
package book

import (
	"fmt"

	"github.com/simp-lee/epub"
)

// Placeholder values used when a Dublin-Core field is absent from the source.
const (
	UnknownTitle     = "Unknown Title"
	UnknownAuthor    = "Unknown Author"
	UnknownPublisher = "Unknown Publisher"
	defaultLanguage  = "en"
)

// Metadata holds the book-level metadata carried through the pipeline.
// It is immutable after extraction.
type Metadata struct {
	Title     string
	Author    string
	Publisher string
	Date      string
	Language  string
}

// Chapter is a retained document item: its sequence number, display title,
// and cleaned plain text.
type Chapter struct {
	Number int
	Title  string
	Text   string
}

// Book wraps an opened EPUB container together with its extracted metadata.
type Book struct {
	metadata Metadata
	source   *epub.Book
}

// Load opens the EPUB file at path and extracts its metadata. Missing
// metadata fields are defaulted to placeholder values. The caller must call
// Close when done.
func Load(path string) (*Book, error) {
	source, err := epub.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB %q: %w", path, err)
	}

	return &Book{
		metadata: metadataFromSource(source.Metadata()),
		source:   source,
	}, nil
}

// Metadata returns the extracted book metadata.
func (b *Book) Metadata() Metadata {
	return b.metadata
}

// Close releases the underlying EPUB container.
func (b *Book) Close() error {
	err := b.source.Close()
	if err != nil {
		return fmt.Errorf("failed to close EPUB: %w", err)
	}

	return nil
}

// metadataFromSource maps the parser's metadata onto the pipeline's record,
// applying placeholder defaults for absent fields.
func metadataFromSource(src epub.Metadata) Metadata {
	meta := Metadata{
		Title:     UnknownTitle,
		Author:    UnknownAuthor,
		Publisher: UnknownPublisher,
		Date:      src.Date,
		Language:  defaultLanguage,
	}

	if len(src.Titles) > 0 && src.Titles[0] != "" {
		meta.Title = src.Titles[0]
	}

	if len(src.Authors) > 0 && src.Authors[0].Name != "" {
		meta.Author = src.Authors[0].Name
	}

	if src.Publisher != "" {
		meta.Publisher = src.Publisher
	}

	if len(src.Language) > 0 && src.Language[0] != "" {
		meta.Language = src.Language[0]
	}

	return meta
}
