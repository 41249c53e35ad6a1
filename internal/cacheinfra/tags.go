package cacheinfra

import (
	"sort"
	"strconv"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

// versionSeparator splits a logical key from the tag generations embedded in its storage key.
const versionSeparator = "|"

// normalizeTags drops empty and duplicate tags and sorts the rest so the
// storage key does not depend on caller ordering.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// versionedKey appends tag=generation pairs to key. Untagged keys are returned unchanged.
func versionedKey(key string, tags []string, gens []uint64) string {
	if len(tags) == 0 {
		return key
	}
	var b strings.Builder
	b.WriteString(key)
	b.WriteString(versionSeparator)
	for i, tag := range tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(tag)
		b.WriteByte('=')
		b.WriteString(strconv.FormatUint(gens[i], 10))
	}
	return b.String()
}

func sameGenerations(a, b []uint64) bool {
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

// tagIndex holds per-tag generations and the storage keys filled under each tag.
type tagIndex struct {
	gens *xsync.MapOf[string, uint64]
	keys *xsync.MapOf[string, *xsync.MapOf[string, struct{}]]
}

func newTagIndex() *tagIndex {
	return &tagIndex{
		gens: xsync.NewMapOf[string, uint64](),
		keys: xsync.NewMapOf[string, *xsync.MapOf[string, struct{}]](),
	}
}

// snapshot returns the current generation of every tag, in order.
func (t *tagIndex) snapshot(tags []string) []uint64 {
	gens := make([]uint64, len(tags))
	for i, tag := range tags {
		gens[i], _ = t.gens.Load(tag)
	}
	return gens
}

// track records storageKey under each tag so invalidation can evict it.
func (t *tagIndex) track(tags []string, storageKey string) {
	for _, tag := range tags {
		set, _ := t.keys.LoadOrCompute(tag, func() *xsync.MapOf[string, struct{}] {
			return xsync.NewMapOf[string, struct{}]()
		})
		set.Store(storageKey, struct{}{})
	}
}

// bump advances the generation of tag and returns the keys tracked under it.
// The generation moves first so fills racing with the drain land on a stale key.
func (t *tagIndex) bump(tag string) []string {
	t.gens.Compute(tag, func(old uint64, _ bool) (uint64, bool) {
		return old + 1, false
	})

	set, ok := t.keys.LoadAndDelete(tag)
	if !ok {
		return nil
	}
	keys := make([]string, 0, set.Size())
	set.Range(func(key string, _ struct{}) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}
