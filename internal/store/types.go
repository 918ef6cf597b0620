package store

import "time"

// Repository is a registered, absolute-path-unique root directory under
// index. Deletion is always explicit and cascades to every dependent row.
type Repository struct {
	ID                   int64
	Path                 string
	LastFullReconciledAt *time.Time
}

// File belongs to exactly one Repository, keyed by (repository_id, path).
// Hash is the SHA-256 hex digest of its current on-disk bytes; a file
// re-index is gated on this changing.
type File struct {
	ID           int64
	RepositoryID int64
	Path         string
	Language     string
	Hash         string
	LastIndexed  time.Time
}

// Symbol is a declaration extracted from a File. RepositoryID and Path
// are denormalized from the owning File so query rows never need a join
// back to files for display.
type Symbol struct {
	ID             int64
	FileID         int64
	RepositoryID   int64
	Path           string
	Name           string
	Kind           string
	Signature      string
	Doc            string
	StartLine      int
	EndLine        int
	ParentSymbolID *int64
}

// Reference is a directed edge out of a Symbol toward a named target.
// ToSymbolID is nil until the resolver pass finds a same-repository
// symbol whose name equals ToName.
type Reference struct {
	ID         int64
	SymbolID   int64
	ToSymbolID *int64
	ToName     string
	Kind       string
	Line       *int
}

// ResolvedReference materializes a Reference's resolution outcome
// separately from Reference.ToSymbolID, so a re-resolution pass can be
// replayed without discarding the unresolved row in the interim.
type ResolvedReference struct {
	ID             int64
	ReferenceID    int64
	TargetSymbolID int64
	Confidence     float64
	ResolutionKind string
}

// Implementation records a type/interface satisfaction fact. No extractor
// or indexing step creates these rows; they exist only where a caller
// inserts them with InsertImplementation.
type Implementation struct {
	ID                int64
	TypeSymbolID      int64
	InterfaceSymbolID int64
	Kind              string
	FileID            *int64
}

// CallEdge is a materialized caller->callee symbol edge, a resolved
// subset of call-kind Reference rows kept for O(1) adjacency lookups.
type CallEdge struct {
	ID             int64
	CallerSymbolID int64
	CalleeSymbolID int64
	FileID         *int64
	Line           int
}
