package tokenizer

import "testing"

func TestSplit(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"getUserById", "get user by id getuserbyid"},
		{"UserRepository", "user repository userrepository"},
		{"user_repository", "user repository userrepository"},
		{"MAX_RETRIES", "max retries maxretries"},
		{"HTMLParser", "html parser htmlparser"},
		{"add", "add"},
		{"x", "x"},
		{"HTTP", "http"},
		{"get_UserName", "get user name getusername"},
		{"", ""},
		{"v2Handler", "v2 handler v2handler"},
		{"user-repo", "user repo userrepo"},
		{"user.repo", "user repo userrepo"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Split(c.name)
			if got != c.want {
				t.Errorf("Split(%q) = %q, want %q", c.name, got, c.want)
			}
		})
	}
}

func TestSplitSubwordsSearchable(t *testing.T) {
	for _, pair := range []struct{ name, subword string }{
		{"getUserById", "user"},
		{"HTMLParser", "html"},
		{"MAX_RETRIES", "retries"},
		{"user_repo", "repo"},
	} {
		tokens := Split(pair.name)
		if !contains(tokens, pair.subword) {
			t.Errorf("Split(%q) = %q, does not contain subword %q", pair.name, tokens, pair.subword)
		}
	}
}

func contains(tokens, word string) bool {
	for _, t := range splitFields(tokens) {
		if t == word {
			return true
		}
	}
	return false
}

func splitFields(s string) []string {
	var out []string
	start := -1
	for i, r := range s {
		if r == ' ' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}
