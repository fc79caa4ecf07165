package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrParse marks a record that could not be decoded. The record is skipped.
	ErrParse = errors.New("malformed edit record")

	// ErrStorage marks a failure of the record store. The chunk being
	// ingested is aborted and can be retried as a whole.
	ErrStorage = errors.New("storage failure")
)

// ChunkError is returned by Run when a chunk could not be committed.
// Records holds the raw records of that chunk, in source order, so the
// caller can submit them again.
type ChunkError struct {
	Records [][]byte
	Err     error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk of %d records not ingested: %v", len(e.Records), e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}
