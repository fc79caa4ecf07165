// Package feed provides sources of raw edit records: newline-delimited JSON
// dumps and the live Wikimedia EventStreams feed.
package feed

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// JSONLines yields the non-blank lines of a reader. Lines may be of any length.
type JSONLines struct {
	r *bufio.Reader
}

// NewJSONLines reads records from r.
func NewJSONLines(r io.Reader) *JSONLines {
	return &JSONLines{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next line without its line terminator, or io.EOF.
func (j *JSONLines) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line, err := j.r.ReadBytes('\n')
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 {
			return trimmed, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// File is a JSONLines source reading from a file. Files ending in .gz or
// .zst are decompressed on the fly.
type File struct {
	*JSONLines
	closers []io.Closer
}

// OpenFile opens a dump of records.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	file := &File{closers: []io.Closer{f}}
	var r io.Reader = f

	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to read gzip header of %s: %w", path, err)
		}
		file.closers = append(file.closers, gz)
		r = gz
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to open zstd stream of %s: %w", path, err)
		}
		file.closers = append(file.closers, zstdCloser{zr})
		r = zr
	}

	file.JSONLines = NewJSONLines(r)
	return file, nil
}

// Close releases the file and any decompressor, innermost first.
func (f *File) Close() error {
	var firstErr error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type zstdCloser struct {
	d *zstd.Decoder
}

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}
