// Package archive provides random access into a multistream bz2 Wikipedia
// dump: the Index maps a page title to the byte range of the compressed chunk
// holding it, and the Reader decompresses one chunk and extracts one page.
package archive

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// ChunkRange is the byte range of one independently decompressible chunk.
// Many titles share a range because pages are batch-compressed.
type ChunkRange struct {
	Offset uint64
	Length uint64
}

// Index maps page titles to chunk byte ranges. Immutable once built.
type Index struct {
	ranges map[string]ChunkRange
}

// BuildIndex consumes a manifest of offset:id:title lines with non-decreasing
// offsets. Consecutive lines sharing an offset form one chunk; the chunk
// closes when the offset changes, and only then are its titles bound to a
// range. Titles in the final chunk never see a differing offset and are
// dropped; the tail of the dump is unreachable through the index.
func BuildIndex(r io.Reader) (*Index, error) {
	ix := &Index{ranges: make(map[string]ChunkRange)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		havePrev   bool
		prevOffset uint64
		chunk      []string
	)
	line := 0
	for scanner.Scan() {
		line++
		parts := strings.SplitN(scanner.Text(), ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: line %d", ErrMalformedManifest, line)
		}
		offset, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedManifest, line, err)
		}
		title := parts[2]

		if !havePrev {
			havePrev = true
			prevOffset = offset
		}
		if offset != prevOffset {
			for _, t := range chunk {
				ix.ranges[t] = ChunkRange{Offset: prevOffset, Length: offset - prevOffset}
			}
			prevOffset = offset
			chunk = chunk[:0]
		}
		chunk = append(chunk, title)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ix, nil
}

// Resolve returns the chunk byte range for a title.
func (ix *Index) Resolve(title string) (ChunkRange, error) {
	rng, ok := ix.ranges[title]
	if !ok {
		return ChunkRange{}, fmt.Errorf("%w: %q", ErrTitleNotFound, title)
	}
	return rng, nil
}

// Len reports how many titles are resolvable.
func (ix *Index) Len() int {
	return len(ix.ranges)
}

// Save writes the index to path as a gob blob.
func (ix *Index) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index cache: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(ix.ranges); err != nil {
		return fmt.Errorf("encode index cache: %w", err)
	}
	return nil
}

// LoadIndex reads an index previously written by Save.
func LoadIndex(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index cache: %w", err)
	}
	defer f.Close()

	ranges := make(map[string]ChunkRange)
	if err := gob.NewDecoder(f).Decode(&ranges); err != nil {
		return nil, fmt.Errorf("decode index cache: %w", err)
	}
	return &Index{ranges: ranges}, nil
}

// OpenIndex loads the cached index at cachePath, building it from the
// manifest and writing the cache on first use.
func OpenIndex(manifestPath, cachePath string, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := os.Stat(cachePath); err == nil {
		logger.Info("Loading archive index from cache", "path", cachePath)
		return LoadIndex(cachePath)
	}

	logger.Info("Building archive index", "manifest", manifestPath)
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	ix, err := BuildIndex(f)
	if err != nil {
		return nil, err
	}
	if err := ix.Save(cachePath); err != nil {
		return nil, err
	}
	logger.Info("Archive index built", "titles", ix.Len(), "cache", cachePath)
	return ix, nil
}
