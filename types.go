package ctxgraph

import "github.com/jward/ctxgraph/internal/store"

// Public type aliases for internal store types used in the QueryBuilder API.
// These are Go type aliases (=) — identical to the internal types at compile
// time. External consumers use these names; no conversion is needed.

type Store = store.Store
type Repository = store.Repository
type File = store.File
type Symbol = store.Symbol
type Reference = store.Reference
type ResolvedReference = store.ResolvedReference
type Implementation = store.Implementation
type CallEdge = store.CallEdge
