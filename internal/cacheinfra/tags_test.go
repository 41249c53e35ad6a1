package cacheinfra

import (
	"reflect"
	"sort"
	"testing"
)

func TestNormalizeTags(t *testing.T) {
	got := normalizeTags([]string{"b", " a ", "", "b", "c"})
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("normalizeTags() = %v, want %v", got, want)
	}

	if got := normalizeTags(nil); got != nil {
		t.Errorf("expected nil for no tags, got %v", got)
	}
}

func TestVersionedKey(t *testing.T) {
	if got := versionedKey("k", nil, nil); got != "k" {
		t.Errorf("untagged key should be unchanged, got %q", got)
	}

	got := versionedKey("user_customers::u::1::5", []string{"customer-listing", "users"}, []uint64{3, 0})
	want := "user_customers::u::1::5|customer-listing=3,users=0"
	if got != want {
		t.Errorf("versionedKey() = %q, want %q", got, want)
	}
}

func TestTagIndex_BumpDrainsTrackedKeys(t *testing.T) {
	idx := newTagIndex()
	tags := []string{"customer-listing"}

	if gens := idx.snapshot(tags); gens[0] != 0 {
		t.Fatalf("expected initial generation 0, got %d", gens[0])
	}

	idx.track(tags, "a|customer-listing=0")
	idx.track(tags, "b|customer-listing=0")

	keys := idx.bump("customer-listing")
	sort.Strings(keys)
	if !reflect.DeepEqual(keys, []string{"a|customer-listing=0", "b|customer-listing=0"}) {
		t.Errorf("unexpected drained keys: %v", keys)
	}

	if gens := idx.snapshot(tags); gens[0] != 1 {
		t.Errorf("expected generation 1 after bump, got %d", gens[0])
	}

	if keys := idx.bump("customer-listing"); len(keys) != 0 {
		t.Errorf("expected no keys after drain, got %v", keys)
	}
}

func TestSameGenerations(t *testing.T) {
	if !sameGenerations([]uint64{1, 2}, []uint64{1, 2}) {
		t.Error("expected equal generations to match")
	}
	if sameGenerations([]uint64{1, 2}, []uint64{1, 3}) {
		t.Error("expected different generations not to match")
	}
	if sameGenerations([]uint64{1}, nil) {
		t.Error("expected different lengths not to match")
	}
}
