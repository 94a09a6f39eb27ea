package pathindex

import (
	"sort"
	"testing"
)

func TestIsValidPath(t *testing.T) {
	cases := map[string]bool{
		"":            true,
		"a":           true,
		"a/b/c":       true,
		"a-1/b_2/c*":  true,
		"/a":          false,
		"a/":          false,
		"a//b":        false,
		"a/ b":        false,
		"a/b c":       false,
	}
	for path, want := range cases {
		if got := IsValidPath(path); got != want {
			t.Errorf("IsValidPath(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestAddRemoveIdempotency(t *testing.T) {
	idx := New()
	if err := idx.Add("ch1", "a/b/c"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	before := idx.Stats()

	idx.Remove("ch1")
	after := idx.Stats()

	if after.Channels != 0 || after.Paths != 0 || after.Segments != 0 || after.Depths != 0 {
		t.Errorf("Remove did not restore empty state: %+v (before %+v)", after, before)
	}
	if _, ok := idx.GetPath("ch1"); ok {
		t.Error("GetPath should not find removed channel")
	}
}

func TestAddRejectsInvalidPathWithoutPartialUpdate(t *testing.T) {
	idx := New()
	if err := idx.Add("bad", "/leading"); err == nil {
		t.Fatal("expected error for invalid path")
	}
	if _, ok := idx.GetPath("bad"); ok {
		t.Error("invalid Add must not partially update the index")
	}
}

func TestMatchExact(t *testing.T) {
	idx := New()
	idx.Add("ch1", "a/b/c")
	idx.Add("ch2", "a/b/c")

	matches := idx.Match("a/b/c")
	if len(matches) != 2 {
		t.Fatalf("expected 2 exact matches, got %d", len(matches))
	}
	for _, m := range matches {
		if !m.ExactMatch {
			t.Error("expected ExactMatch true for non-wildcard pattern")
		}
	}
}

func TestMatchSingleWildcard(t *testing.T) {
	idx := New()
	idx.Add("ch1", "a/x/b")
	idx.Add("ch2", "a/y/b")
	idx.Add("ch3", "a/x/y/b") // four segments, should not match a/*/b

	matches := idx.Match("a/*/b")
	ids := matchIDs(matches)
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "ch1" || ids[1] != "ch2" {
		t.Errorf("unexpected matches for a/*/b: %v", ids)
	}
}

func TestMatchDoubleWildcard(t *testing.T) {
	idx := New()
	idx.Add("ch1", "a/b")
	idx.Add("ch2", "a/x/b")
	idx.Add("ch3", "a/x/y/b")
	idx.Add("ch4", "a/b/x") // does not end in b

	matches := idx.Match("a/**/b")
	ids := matchIDs(matches)
	sort.Strings(ids)
	want := []string{"ch1", "ch2", "ch3"}
	if !equalStrings(ids, want) {
		t.Errorf("a/**/b matched %v, want %v", ids, want)
	}
}

func TestMatchDedup(t *testing.T) {
	idx := New()
	idx.Add("ch1", "a/b")

	matches := idx.Match("a/**")
	count := 0
	for _, m := range matches {
		if m.ChannelID == "ch1" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected ch1 to appear once, got %d", count)
	}
}

func TestReplaceOnReAdd(t *testing.T) {
	idx := New()
	idx.Add("ch1", "a/b")
	idx.Add("ch1", "c/d")

	if p, _ := idx.GetPath("ch1"); p != "c/d" {
		t.Errorf("expected path updated to c/d, got %q", p)
	}
	if len(idx.Match("a/b")) != 0 {
		t.Error("old path should no longer match")
	}
}

func matchIDs(matches []Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.ChannelID)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
