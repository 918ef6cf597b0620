package format

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jward/ctxgraph"
	"github.com/jward/ctxgraph/internal/config"
	"github.com/jward/ctxgraph/internal/store"
)

// Formatter renders QueryBuilder results as compact JSON: abbreviated
// field names, signature/doc-comment truncation, and shared-path
// factoring across results that reference many of the same few files.
type Formatter struct {
	maxSigLen int
	maxDocLen int
	maxTokens *int
}

// New builds a Formatter from a repository's output configuration.
func New(cfg config.OutputConfig) *Formatter {
	return &Formatter{
		maxSigLen: cfg.TruncateSignatures,
		maxDocLen: cfg.TruncateDocComments,
		maxTokens: cfg.MaxTokens,
	}
}

// encode marshals v, routing it through a Budget's TruncateJSON when the
// Formatter carries a max_tokens setting so a response too large for the
// budget drops trailing entries from v's arrayKey field rather than
// overflowing it. arrayKey is ignored (there's nothing worth trimming)
// when budgeting isn't configured.
func (f *Formatter) encode(v any, arrayKey string) (string, error) {
	if f.maxTokens != nil {
		return FromTokens(*f.maxTokens).TruncateJSON(v, arrayKey)
	}
	raw, err := json.Marshal(v)
	return string(raw), err
}

type indexStats struct {
	Files   int `json:"files"`
	Symbols int `json:"symbols"`
	Refs    int `json:"refs"`
	Ms      int `json:"ms"`
}

type indexResult struct {
	Status    string     `json:"status"`
	Stats     indexStats `json:"stats"`
	New       int        `json:"new"`
	Changed   int        `json:"changed"`
	Unchanged int        `json:"unchanged"`
	Deleted   int        `json:"deleted"`
}

// IndexStats summarizes one indexing run, the shape FormatIndexResult
// and FormatUpdateResult render.
type IndexStats struct {
	FilesTotal     int
	SymbolsCount   int
	RefsCount      int
	DurationMs     int
	FilesNew       int
	FilesChanged   int
	FilesUnchanged int
	FilesDeleted   int
}

// FormatIndexResult renders a full-repository index run.
func (f *Formatter) FormatIndexResult(stats IndexStats) (string, error) {
	out, err := json.Marshal(indexResult{
		Status: "ok",
		Stats: indexStats{
			Files:   stats.FilesTotal,
			Symbols: stats.SymbolsCount,
			Refs:    stats.RefsCount,
			Ms:      stats.DurationMs,
		},
		New:       stats.FilesNew,
		Changed:   stats.FilesChanged,
		Unchanged: stats.FilesUnchanged,
		Deleted:   stats.FilesDeleted,
	})
	return string(out), err
}

type updateResult struct {
	Status  string `json:"status"`
	Updated int    `json:"updated"`
	Symbols int    `json:"symbols"`
	Refs    int    `json:"refs"`
	Ms      int    `json:"ms"`
}

// FormatUpdateResult renders a partial, blast-radius-scoped re-index.
func (f *Formatter) FormatUpdateResult(stats IndexStats) (string, error) {
	out, err := json.Marshal(updateResult{
		Status:  "ok",
		Updated: stats.FilesChanged,
		Symbols: stats.SymbolsCount,
		Refs:    stats.RefsCount,
		Ms:      stats.DurationMs,
	})
	return string(out), err
}

type moduleBrief struct {
	Path  string `json:"p"`
	Files int    `json:"files"`
}

type overviewDoc struct {
	Langs     map[string]int `json:"langs"`
	Mods      []moduleBrief  `json:"mods"`
	TopSymbols []symbolBrief `json:"top_symbols"`
}

// FormatOverview renders a repository overview.
func (f *Formatter) FormatOverview(data *ctxgraph.Overview) (string, error) {
	mods := make([]moduleBrief, 0, len(data.Modules))
	for _, m := range data.Modules {
		mods = append(mods, moduleBrief{Path: m.Path, Files: m.FileCount})
	}
	top := make([]symbolBrief, 0, len(data.LargestSymbols))
	for _, s := range data.LargestSymbols {
		top = append(top, f.brief(s, true))
	}
	return f.encode(overviewDoc{Langs: data.LanguageCounts, Mods: mods, TopSymbols: top}, "top_symbols")
}

type fileSymbolsDoc struct {
	File string        `json:"f"`
	Syms []symbolBrief `json:"syms"`
}

// FormatFileSymbols renders one file's top-level symbols, each nesting
// its direct children.
func (f *Formatter) FormatFileSymbols(file string, symbols []*store.Symbol) (string, error) {
	childrenByParent := make(map[int64][]*store.Symbol)
	for _, s := range symbols {
		if s.ParentSymbolID != nil {
			childrenByParent[*s.ParentSymbolID] = append(childrenByParent[*s.ParentSymbolID], s)
		}
	}

	var out []symbolBrief
	for _, s := range symbols {
		if s.ParentSymbolID != nil {
			continue
		}
		brief := f.brief(s, false)
		for _, c := range childrenByParent[s.ID] {
			brief.Children = append(brief.Children, f.brief(c, false))
		}
		out = append(out, brief)
	}

	return f.encode(fileSymbolsDoc{File: file, Syms: out}, "syms")
}

type refBrief struct {
	ToName     string `json:"n,omitempty"`
	ToID       *int64 `json:"id,omitempty"`
	External   bool   `json:"external,omitempty"`
	FromID     int64  `json:"from_id,omitempty"`
	FromName   string `json:"from_n,omitempty"`
	FromFileIx *int   `json:"fi,omitempty"`
	FromFile   string `json:"from_f,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Line       int    `json:"line,omitempty"`
}

type symbolDetailDoc struct {
	ID        int64      `json:"id"`
	Name      string     `json:"n"`
	Kind      string     `json:"k"`
	File      string     `json:"f"`
	Lines     string     `json:"l"`
	Sig       string     `json:"sig,omitempty"`
	Doc       string     `json:"doc,omitempty"`
	Calls     []refBrief `json:"calls,omitempty"`
	CalledBy  []refBrief `json:"called_by,omitempty"`
	Files     []string   `json:"_f,omitempty"`
}

// FormatSymbolDetail renders a symbol's full detail view: its own
// record, outgoing references, and incoming (caller) references.
func (f *Formatter) FormatSymbolDetail(detail *ctxgraph.SymbolDetail) (string, error) {
	sym := detail.Symbol
	doc := symbolDetailDoc{
		ID:    sym.ID,
		Name:  sym.Name,
		Kind:  sym.Kind,
		File:  sym.Path,
		Lines: fmt.Sprintf("%d-%d", sym.StartLine, sym.EndLine),
	}
	if sym.Signature != "" {
		doc.Sig = normalizeSignature(sym.Signature, f.maxSigLen)
	}
	if sym.Doc != "" {
		doc.Doc = sym.Doc
	}

	for _, r := range detail.OutRefs {
		v := refBrief{ToName: r.ToName, Kind: r.Kind}
		if r.ToSymbolID != nil {
			v.ToID = r.ToSymbolID
		}
		doc.Calls = append(doc.Calls, v)
	}

	if len(detail.InRefs) > 0 {
		idx := newPathIndex()
		for _, h := range detail.InRefs {
			v := refBrief{FromID: h.Reference.SymbolID, Kind: h.Reference.Kind}
			if h.Reference.Line != nil {
				v.Line = *h.Reference.Line
			}
			if h.Caller != nil {
				v.FromName = h.Caller.Name
				i := idx.index(h.Caller.Path)
				v.FromFileIx = &i
			}
			doc.CalledBy = append(doc.CalledBy, v)
		}
		collapseFileIndex(idx, doc.CalledBy, func(b *refBrief, path string) {
			b.FromFileIx = nil
			b.FromFile = path
		})
		if idx.len() > 1 {
			doc.Files = idx.list()
		}
	}

	return f.encode(doc, "called_by")
}

type searchHitBrief struct {
	ID      int64  `json:"id"`
	Name    string `json:"n"`
	Kind    string `json:"k"`
	FileIx  *int   `json:"fi,omitempty"`
	File    string `json:"f,omitempty"`
	Lines   string `json:"l"`
	Sig     string `json:"sig,omitempty"`
}

type searchDoc struct {
	Query string           `json:"q"`
	Hits  []searchHitBrief `json:"hits"`
	Files []string         `json:"_f,omitempty"`
}

// FormatSearchResults renders Search's ranked symbol hits, factoring
// out the file path when every hit shares it and leaving a per-hit
// index into a shared path table otherwise.
func (f *Formatter) FormatSearchResults(query string, hits []*store.Symbol) (string, error) {
	idx := newPathIndex()
	results := make([]searchHitBrief, 0, len(hits))
	for _, h := range hits {
		i := idx.index(h.Path)
		hit := searchHitBrief{
			ID:     h.ID,
			Name:   h.Name,
			Kind:   h.Kind,
			FileIx: &i,
			Lines:  fmt.Sprintf("%d-%d", h.StartLine, h.EndLine),
		}
		if h.Signature != "" {
			hit.Sig = normalizeSignature(h.Signature, f.maxSigLen)
		}
		results = append(results, hit)
	}

	var files []string
	if idx.len() > 1 {
		files = idx.list()
	} else if list := idx.list(); len(list) == 1 {
		only := list[0]
		for i := range results {
			results[i].FileIx = nil
			results[i].File = only
		}
	}

	return f.encode(searchDoc{Query: query, Hits: results, Files: files}, "hits")
}

type referencesDoc struct {
	ID     int64      `json:"id"`
	RefsTo []refBrief `json:"refs_to"`
	Files  []string   `json:"_f,omitempty"`
}

// FormatReferences renders every caller of one symbol.
func (f *Formatter) FormatReferences(symbolID int64, hits []ctxgraph.ReferenceHit) (string, error) {
	idx := newPathIndex()
	results := make([]refBrief, 0, len(hits))
	for _, h := range hits {
		v := refBrief{FromID: h.Reference.SymbolID, Kind: h.Reference.Kind}
		if h.Reference.Line != nil {
			v.Line = *h.Reference.Line
		}
		if h.Caller != nil {
			v.FromName = h.Caller.Name
			i := idx.index(h.Caller.Path)
			v.FromFileIx = &i
		}
		results = append(results, v)
	}
	collapseFileIndex(idx, results, func(b *refBrief, path string) {
		b.FromFileIx = nil
		b.FromFile = path
	})

	var files []string
	if idx.len() > 1 {
		files = idx.list()
	}
	return f.encode(referencesDoc{ID: symbolID, RefsTo: results, Files: files}, "refs_to")
}

type depsDoc struct {
	ID   int64      `json:"id"`
	Deps []refBrief `json:"deps"`
}

// FormatDependencies renders one symbol's outgoing references.
func (f *Formatter) FormatDependencies(symbolID int64, deps []*store.Reference) (string, error) {
	results := make([]refBrief, 0, len(deps))
	for _, r := range deps {
		v := refBrief{ToName: r.ToName, Kind: r.Kind}
		if r.ToSymbolID != nil {
			v.ToID = r.ToSymbolID
		} else {
			v.External = true
		}
		results = append(results, v)
	}
	return f.encode(depsDoc{ID: symbolID, Deps: results}, "deps")
}

type statusDoc struct {
	Files   int      `json:"files"`
	Stale   int      `json:"stale,omitempty"`
	StaleFiles []string `json:"stale_files,omitempty"`
}

// FormatStatus renders a repository's indexing freshness.
func (f *Formatter) FormatStatus(status *ctxgraph.RepositoryStatus) (string, error) {
	return f.encode(statusDoc{
		Files:      status.FileCount,
		Stale:      status.StaleCount,
		StaleFiles: status.StalePaths,
	}, "stale_files")
}

// ── Shared helpers ──

type symbolBrief struct {
	ID       int64         `json:"id"`
	Name     string        `json:"n"`
	Kind     string        `json:"k"`
	Lines    string        `json:"l"`
	File     string        `json:"f,omitempty"`
	Sig      string        `json:"sig,omitempty"`
	Doc      string        `json:"doc,omitempty"`
	Children []symbolBrief `json:"children,omitempty"`
}

func (f *Formatter) brief(s *store.Symbol, includeFile bool) symbolBrief {
	b := symbolBrief{
		ID:    s.ID,
		Name:  s.Name,
		Kind:  s.Kind,
		Lines: fmt.Sprintf("%d-%d", s.StartLine, s.EndLine),
	}
	if includeFile {
		b.File = s.Path
	}
	if s.Signature != "" {
		b.Sig = normalizeSignature(s.Signature, f.maxSigLen)
	}
	if s.Doc != "" {
		b.Doc = truncateDoc(s.Doc, f.maxDocLen)
	}
	return b
}

// pathIndex deduplicates file paths across a result set so repeated
// paths serialize once, referenced elsewhere by index.
type pathIndex struct {
	paths []string
	byIdx map[string]int
}

func newPathIndex() *pathIndex {
	return &pathIndex{byIdx: make(map[string]int)}
}

func (p *pathIndex) index(path string) int {
	if i, ok := p.byIdx[path]; ok {
		return i
	}
	i := len(p.paths)
	p.paths = append(p.paths, path)
	p.byIdx[path] = i
	return i
}

func (p *pathIndex) len() int { return len(p.paths) }

func (p *pathIndex) list() []string { return p.paths }

// collapseFileIndex rewrites every hit's file index into a plain path
// field when the whole result set shares exactly one file, so a
// single-file result doesn't carry a one-entry path table.
func collapseFileIndex(idx *pathIndex, hits []refBrief, setPath func(*refBrief, string)) {
	if idx.len() != 1 {
		return
	}
	only := idx.paths[0]
	for i := range hits {
		if hits[i].FromFileIx != nil {
			setPath(&hits[i], only)
		}
	}
}

// normalizeSignature collapses a signature's internal whitespace (drop
// the space around punctuation like "(", ",", ":" but keep it between
// identifiers) and truncates it to maxLen, preferring to cut at the
// last comma, ")", or ">" rather than mid-token.
func normalizeSignature(sig string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(sig))
	pendingSpace := false
	for _, c := range sig {
		if isSpace(c) {
			if b.Len() > 0 {
				pendingSpace = true
			}
			continue
		}
		if pendingSpace {
			pendingSpace = false
			if last := lastRune(b.String()); last != 0 {
				dropAfter := strings.ContainsRune("([{<:,", last)
				dropBefore := strings.ContainsRune(")]}>:,", c)
				if !dropAfter && !dropBefore {
					b.WriteRune(' ')
				}
			}
		}
		b.WriteRune(c)
	}

	result := b.String()
	if len(result) <= maxLen {
		return result
	}
	truncated := truncateToRuneBoundary(result, maxLen)
	if idx := strings.LastIndexAny(truncated, ",)>"); idx >= 0 {
		return truncated[:idx+1] + "…"
	}
	return truncated + "…"
}

// truncateDoc shortens a doc comment for brief views: prefer the first
// sentence, then the first line, then a hard cutoff at maxLen.
func truncateDoc(doc string, maxLen int) string {
	trimmed := strings.TrimSpace(doc)

	if dot := strings.Index(trimmed, ". "); dot >= 0 {
		firstSentence := trimmed[:dot+1]
		if len(firstSentence) <= maxLen {
			return firstSentence
		}
	}
	if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(trimmed[:nl])
		if len(firstLine) <= maxLen {
			return firstLine
		}
	}
	if len(trimmed) <= maxLen {
		return trimmed
	}

	truncated := truncateToRuneBoundary(trimmed, maxLen)
	if sp := strings.LastIndexByte(truncated, ' '); sp >= 0 {
		return truncated[:sp] + "..."
	}
	return truncated + "..."
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func lastRune(s string) rune {
	if s == "" {
		return 0
	}
	r := []rune(s)
	return r[len(r)-1]
}

// truncateToRuneBoundary returns the longest prefix of s, at most
// maxBytes bytes, that ends on a UTF-8 rune boundary.
func truncateToRuneBoundary(s string, maxBytes int) string {
	if maxBytes >= len(s) {
		return s
	}
	i := maxBytes
	for i > 0 && !isRuneStart(s[i]) {
		i--
	}
	return s[:i]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
