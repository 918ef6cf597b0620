// Package ctxerr defines the sentinel error kinds spec.md §7 names. Kind
// is distinguished with errors.Is against these sentinels, following the
// teacher's plain fmt.Errorf("%w", ...) wrapping idiom throughout —
// neither the teacher nor this module introduces a discriminated
// error-kind enum.
package ctxerr

import "errors"

var (
	// ErrNotFound covers an unindexed repository, an unknown symbol id,
	// or a file path not present in the index.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput covers malformed configuration, an unparseable
	// search query, or an out-of-range id.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIO covers an unreadable file, a permission error, or an
	// unavailable cache directory.
	ErrIO = errors.New("i/o error")

	// ErrStorage covers a schema migration failure, a constraint
	// violation, or database corruption. Storage errors abort the
	// current transaction and propagate to the caller.
	ErrStorage = errors.New("storage error")

	// ErrParse marks an extractor that produced zero symbols. Not
	// fatal — the Indexer logs it at warning level and continues.
	ErrParse = errors.New("parse error")
)
