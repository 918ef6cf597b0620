// Package format shapes QueryBuilder results into the terse, token-
// budgeted JSON records the Query Surface returns: abbreviated field
// names, shared-path factoring, and array-tail truncation once a
// response exceeds its byte budget. Ported from original_source's
// output/{mod,token_budget}.rs, expressed with encoding/json structs in
// place of hand-built serde_json::Value trees.
package format

import (
	"bytes"
	"encoding/json"
)

// bytesPerToken approximates a BPE token as 4 bytes, avoiding a real
// tokenizer dependency while staying serviceable for budget checks.
const bytesPerToken = 4

// markerOverhead reserves room for the `,"truncated":true,"total":N`
// suffix TruncateJSON appends once it starts dropping array entries.
const markerOverhead = 40

// Budget is a byte-based approximation of a token budget.
type Budget struct {
	maxBytes int
}

// FromTokens builds a Budget from a token count.
func FromTokens(maxTokens int) Budget {
	return Budget{maxBytes: maxTokens * bytesPerToken}
}

// Fits reports whether text is within budget.
func (b Budget) Fits(text string) bool {
	return len(text) <= b.maxBytes
}

// TruncateJSON encodes v, and if the encoding exceeds b's budget, drops
// trailing entries from the array at arrayKey (a top-level field of v)
// until it fits, setting "truncated":true and "total":<original count>.
// If v has no such array, or removing every entry still doesn't fit, it
// falls back to raw truncation at the last '}' byte within the budget.
func (b Budget) TruncateJSON(v any, arrayKey string) (string, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if b.Fits(string(encoded)) {
		return string(encoded), nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return b.truncateRaw(string(encoded)), nil
	}

	var items []json.RawMessage
	if raw, ok := doc[arrayKey]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return b.truncateRaw(string(encoded)), nil
		}
	}
	total := len(items)

	for {
		truncated := len(items) < total
		budget := b.maxBytes
		if truncated {
			budget -= markerOverhead
		}

		arr, err := json.Marshal(items)
		if err != nil {
			return b.truncateRaw(string(encoded)), nil
		}
		doc[arrayKey] = arr
		if truncated {
			doc["truncated"] = json.RawMessage("true")
			doc["total"] = json.RawMessage(itoa(total))
		}
		candidate, err := json.Marshal(doc)
		if err != nil {
			return b.truncateRaw(string(encoded)), nil
		}
		if len(candidate) <= budget {
			return string(candidate), nil
		}
		if len(items) == 0 {
			return b.truncateRaw(string(encoded)), nil
		}
		items = items[:len(items)-1]
	}
}

func itoa(n int) string {
	raw, _ := json.Marshal(n)
	return string(raw)
}

// truncateRaw is the fallback when v isn't a JSON object with an array
// field: cut the raw encoding after the last '}' byte that fits the
// budget (not necessarily the end of a complete object) and append a
// truncated marker.
func (b Budget) truncateRaw(text string) string {
	const suffix = `,"truncated":true}`
	if b.maxBytes < 30 {
		return `{"truncated":true}`
	}
	available := b.maxBytes - len(suffix) - 1
	if available > len(text) {
		available = len(text)
	}
	if available < 0 {
		available = 0
	}
	cut := text[:available]
	if idx := bytes.LastIndexByte([]byte(cut), '}'); idx >= 0 {
		return cut[:idx+1] + suffix
	}
	return `{"truncated":true}`
}
