package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/ctxgraph/internal/config"
	"github.com/jward/ctxgraph/internal/store"
)

func TestNormalizeSignature_StripsWhitespace(t *testing.T) {
	result := normalizeSignature("(a: number, b: number): number", 120)
	assert.Equal(t, "(a:number,b:number):number", result)
}

func TestNormalizeSignature_PreservesIdentSpaces(t *testing.T) {
	result := normalizeSignature("fn add(a int, b int) int", 120)
	assert.Equal(t, "fn add(a int,b int) int", result)
}

func TestNormalizeSignature_Truncates(t *testing.T) {
	sig := strings.Repeat("a", 200)
	result := normalizeSignature(sig, 120)
	assert.LessOrEqual(t, len(result), 123)
	assert.True(t, strings.HasSuffix(result, "…"))
}

func TestNormalizeSignature_UTF8Boundary(t *testing.T) {
	sig := "fn f(" + strings.Repeat("\U0001F600", 50) + ")"
	result := normalizeSignature(sig, 20)
	assert.True(t, strings.HasSuffix(result, "…"))
}

func TestTruncateDoc_FirstSentence(t *testing.T) {
	doc := "Adds two numbers. Returns the sum."
	assert.Equal(t, "Adds two numbers.", truncateDoc(doc, 100))
}

func TestTruncateDoc_Short(t *testing.T) {
	assert.Equal(t, "Simple doc", truncateDoc("Simple doc", 100))
}

func TestTruncateDoc_Long(t *testing.T) {
	doc := strings.Repeat("a ", 100)
	result := truncateDoc(doc, 100)
	assert.LessOrEqual(t, len(result), 103)
	assert.True(t, strings.HasSuffix(result, "..."))
}

func TestPathIndex_Deduplicates(t *testing.T) {
	idx := newPathIndex()
	assert.Equal(t, 0, idx.index("src/a.go"))
	assert.Equal(t, 1, idx.index("src/b.go"))
	assert.Equal(t, 0, idx.index("src/a.go"))
	assert.Equal(t, 2, idx.len())
}

func TestFormatFileSymbols_NestsChildren(t *testing.T) {
	f := New(config.Default().Output)
	parentID := int64(1)
	symbols := []*store.Symbol{
		{ID: 1, Name: "Greeter", Kind: "class", StartLine: 1, EndLine: 5},
		{ID: 2, Name: "greet", Kind: "method", StartLine: 2, EndLine: 4, ParentSymbolID: &parentID},
	}
	out, err := f.FormatFileSymbols("a.ts", symbols)
	require.NoError(t, err)
	assert.Contains(t, out, `"n":"Greeter"`)
	assert.Contains(t, out, `"children"`)
	assert.Contains(t, out, `"greet"`)
}

func TestFormatSearchResults_CollapsesSingleFile(t *testing.T) {
	f := New(config.Default().Output)
	symbols := []*store.Symbol{
		{ID: 1, Name: "getUserById", Kind: "function", Path: "a.ts", StartLine: 1, EndLine: 1},
		{ID: 2, Name: "UserRepository", Kind: "class", Path: "a.ts", StartLine: 2, EndLine: 2},
	}
	out, err := f.FormatSearchResults("user", symbols)
	require.NoError(t, err)
	assert.Contains(t, out, `"f":"a.ts"`)
	assert.NotContains(t, out, `"_f"`)
}

func TestFormatSearchResults_FactorsSharedPaths(t *testing.T) {
	f := New(config.Default().Output)
	symbols := []*store.Symbol{
		{ID: 1, Name: "a", Kind: "function", Path: "a.ts", StartLine: 1, EndLine: 1},
		{ID: 2, Name: "b", Kind: "function", Path: "b.ts", StartLine: 1, EndLine: 1},
	}
	out, err := f.FormatSearchResults("x", symbols)
	require.NoError(t, err)
	assert.Contains(t, out, `"_f":["a.ts","b.ts"]`)
	assert.Contains(t, out, `"fi":0`)
	assert.Contains(t, out, `"fi":1`)
}

func TestBudget_Fits(t *testing.T) {
	budget := FromTokens(100)
	assert.True(t, budget.Fits("short text"))
	assert.False(t, budget.Fits(strings.Repeat("x", 500)))
}

type hitsDoc struct {
	Hits []int `json:"hits"`
}

func TestBudget_TruncateJSONFits(t *testing.T) {
	budget := FromTokens(1000)
	result, err := budget.TruncateJSON(hitsDoc{Hits: []int{1, 2, 3}}, "hits")
	require.NoError(t, err)
	assert.Equal(t, `{"hits":[1,2,3]}`, result)
}

func TestBudget_TruncateJSONDropsItems(t *testing.T) {
	budget := FromTokens(25) // 100 bytes
	hits := make([]int, 50)
	for i := range hits {
		hits[i] = i
	}
	result, err := budget.TruncateJSON(hitsDoc{Hits: hits}, "hits")
	require.NoError(t, err)
	assert.Contains(t, result, `"truncated":true`)
	assert.Contains(t, result, `"total":50`)
	assert.LessOrEqual(t, len(result), 100)
}

func TestBudget_TruncateJSONEmptyBudget(t *testing.T) {
	budget := FromTokens(1) // 4 bytes
	result, err := budget.TruncateJSON(hitsDoc{Hits: []int{1, 2, 3}}, "hits")
	require.NoError(t, err)
	assert.Contains(t, result, "truncated")
}
