package archive

import (
	"bytes"
	"compress/bzip2"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Reader extracts raw page source from the compressed dump using byte ranges
// resolved through an Index. Each read decompresses exactly one chunk.
type Reader struct {
	dumpPath string
	index    *Index
	logger   *slog.Logger
}

// NewReader creates a Reader over the dump at dumpPath.
func NewReader(dumpPath string, index *Index, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{dumpPath: dumpPath, index: index, logger: logger}
}

// pageRecord is one <page> element of the decompressed chunk XML.
type pageRecord struct {
	Title string `xml:"title"`
	Text  string `xml:"revision>text"`
}

// PageSource returns the raw wikitext of the page with exactly the given
// title. Titles absent from the index fail with ErrTitleNotFound; a chunk
// that decompresses but holds no matching record fails with
// ErrPageNotFoundInChunk (logged, treated as "page unavailable" by callers).
func (r *Reader) PageSource(title string) (string, error) {
	rng, err := r.index.Resolve(title)
	if err != nil {
		return "", err
	}

	chunk, err := r.readChunk(rng)
	if err != nil {
		return "", err
	}

	decoder := xml.NewDecoder(bzip2.NewReader(chunk))
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse chunk at offset %d: %w", rng.Offset, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "page" {
			continue
		}
		var page pageRecord
		if err := decoder.DecodeElement(&page, &start); err != nil {
			return "", fmt.Errorf("decode page record: %w", err)
		}
		// Exact string equality, no normalization.
		if page.Title == title {
			return page.Text, nil
		}
	}

	r.logger.Warn("Page missing from its chunk", "title", title, "offset", rng.Offset)
	return "", fmt.Errorf("%w: %q", ErrPageNotFoundInChunk, title)
}

// readChunk reads exactly rng.Length bytes at rng.Offset.
func (r *Reader) readChunk(rng ChunkRange) (io.Reader, error) {
	f, err := os.Open(r.dumpPath)
	if err != nil {
		return nil, fmt.Errorf("open dump: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(int64(rng.Offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to chunk offset %d: %w", rng.Offset, err)
	}
	buf := make([]byte, rng.Length)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("read chunk at offset %d: %w", rng.Offset, err)
	}
	return bytes.NewReader(buf), nil
}

// IsUnavailable reports whether err means the page simply cannot be served
// from the local dump, as opposed to an I/O or parse failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrTitleNotFound) || errors.Is(err, ErrPageNotFoundInChunk)
}
