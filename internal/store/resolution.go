package store

import "fmt"

// resolved_references, implementations, and call_graph are the three
// supplemented tables SPEC_FULL.md adds beyond the core Symbol/Reference
// model, adapted from the teacher's equivalent tables (stripped of the
// teacher's declaring_module/scope/column-level metadata that has no
// home in this schema).

func (s *Store) ResolvedReferencesByTarget(symbolID int64) ([]*ResolvedReference, error) {
	rows, err := s.db.Query(
		"SELECT id, reference_id, target_symbol_id, confidence, resolution_kind FROM resolved_references WHERE target_symbol_id = ?",
		symbolID,
	)
	if err != nil {
		return nil, fmt.Errorf("resolved references by target: %w", err)
	}
	defer rows.Close()
	var out []*ResolvedReference
	for rows.Next() {
		rr := &ResolvedReference{}
		if err := rows.Scan(&rr.ID, &rr.ReferenceID, &rr.TargetSymbolID, &rr.Confidence, &rr.ResolutionKind); err != nil {
			return nil, fmt.Errorf("scan resolved reference: %w", err)
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}

// InsertImplementation records a type/interface satisfaction fact.
// Nothing in the indexing pipeline calls it, so the table is empty after
// indexing; the Query Surface works without it.
func (s *Store) InsertImplementation(impl *Implementation) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO implementations (type_symbol_id, interface_symbol_id, kind, file_id)
		 VALUES (?, ?, ?, ?)`,
		impl.TypeSymbolID, impl.InterfaceSymbolID, impl.Kind, impl.FileID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert implementation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	impl.ID = id
	return id, nil
}

func (s *Store) ImplementationsByType(typeSymbolID int64) ([]*Implementation, error) {
	return s.queryImplementations("SELECT id, type_symbol_id, interface_symbol_id, kind, file_id FROM implementations WHERE type_symbol_id = ?", typeSymbolID)
}

func (s *Store) ImplementationsByInterface(interfaceSymbolID int64) ([]*Implementation, error) {
	return s.queryImplementations("SELECT id, type_symbol_id, interface_symbol_id, kind, file_id FROM implementations WHERE interface_symbol_id = ?", interfaceSymbolID)
}

func (s *Store) queryImplementations(query string, args ...any) ([]*Implementation, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var impls []*Implementation
	for rows.Next() {
		impl := &Implementation{}
		if err := rows.Scan(&impl.ID, &impl.TypeSymbolID, &impl.InterfaceSymbolID, &impl.Kind, &impl.FileID); err != nil {
			return nil, fmt.Errorf("scan implementation: %w", err)
		}
		impls = append(impls, impl)
	}
	return impls, rows.Err()
}

// InsertCallEdge records a materialized caller->callee edge. Populated
// on a best-effort basis from resolved call-kind references during the
// resolver pass; the Query Surface's "References to a symbol" still
// works without it via resolved_references/references alone.
func (s *Store) InsertCallEdge(edge *CallEdge) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO call_graph (caller_symbol_id, callee_symbol_id, file_id, line)
		 VALUES (?, ?, ?, ?)`,
		edge.CallerSymbolID, edge.CalleeSymbolID, edge.FileID, edge.Line,
	)
	if err != nil {
		return 0, fmt.Errorf("insert call edge: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	edge.ID = id
	return id, nil
}

func (s *Store) CallersByCallee(calleeSymbolID int64) ([]*CallEdge, error) {
	return s.queryCallEdges("SELECT id, caller_symbol_id, callee_symbol_id, file_id, line FROM call_graph WHERE callee_symbol_id = ?", calleeSymbolID)
}

func (s *Store) CalleesByCaller(callerSymbolID int64) ([]*CallEdge, error) {
	return s.queryCallEdges("SELECT id, caller_symbol_id, callee_symbol_id, file_id, line FROM call_graph WHERE caller_symbol_id = ?", callerSymbolID)
}

func (s *Store) queryCallEdges(query string, args ...any) ([]*CallEdge, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var edges []*CallEdge
	for rows.Next() {
		e := &CallEdge{}
		if err := rows.Scan(&e.ID, &e.CallerSymbolID, &e.CalleeSymbolID, &e.FileID, &e.Line); err != nil {
			return nil, fmt.Errorf("scan call edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// PopulateCallGraphFromResolvedReferences materializes call_graph rows
// for every resolved reference of kind "call" that doesn't already have
// one, run as part of the resolver pass after ResolveReferences.
func (s *Store) PopulateCallGraphFromResolvedReferences(repositoryID int64) error {
	rows, err := s.db.Query(
		`SELECT r.symbol_id, r.to_symbol_id, sym.file_id, r.line
		 FROM "references" r
		 JOIN symbols sym ON sym.id = r.symbol_id
		 WHERE r.kind = 'call' AND r.to_symbol_id IS NOT NULL AND sym.repository_id = ?
		 AND NOT EXISTS (
		   SELECT 1 FROM call_graph cg
		   WHERE cg.caller_symbol_id = r.symbol_id AND cg.callee_symbol_id = r.to_symbol_id
		 )`,
		repositoryID,
	)
	if err != nil {
		return fmt.Errorf("populate call graph: %w", err)
	}
	type edge struct {
		caller, callee, file int64
		line                 *int
	}
	var edges []edge
	for rows.Next() {
		var e edge
		if err := rows.Scan(&e.caller, &e.callee, &e.file, &e.line); err != nil {
			rows.Close()
			return err
		}
		edges = append(edges, e)
	}
	rows.Close()

	for _, e := range edges {
		line := 0
		if e.line != nil {
			line = *e.line
		}
		if _, err := s.InsertCallEdge(&CallEdge{CallerSymbolID: e.caller, CalleeSymbolID: e.callee, FileID: &e.file, Line: line}); err != nil {
			return err
		}
	}
	return nil
}
