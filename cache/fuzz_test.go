//go:build go1.18

package cache

import (
	"strings"
	"testing"
)

// Fuzz basic Put/GetIfPresent/Invalidate semantics under arbitrary string
// inputs. Guards against panics and ensures core invariants hold.
func FuzzCache_PutGetInvalidate(f *testing.F) {
	f.Add("", "")
	f.Add("a", "1")
	f.Add("b", "2")
	f.Add("αβγ", "δ")
	f.Add("emoji🙂", "🙂🙂")
	f.Add("long", strings.Repeat("x", 1024))

	f.Fuzz(func(t *testing.T, k, v string) {
		const limit = 1 << 12 // 4096
		if len(k) > limit {
			k = k[:limit]
		}
		if len(v) > limit {
			v = v[:limit]
		}

		c := New[string, string](Options[string, string]{MaximumWeight: 16})
		t.Cleanup(func() { _ = c.Close() })

		c.Put(k, v)
		got, ok := c.GetIfPresent(k)
		if !ok || got != v {
			t.Fatalf("after Put/GetIfPresent: want %q, got %q ok=%v", v, got, ok)
		}

		c.Put(k, "other")
		if got2, ok := c.GetIfPresent(k); !ok || got2 != "other" {
			t.Fatalf("after replace: want %q, got %q ok=%v", "other", got2, ok)
		}

		c.Invalidate(k)
		if _, ok := c.GetIfPresent(k); ok {
			t.Fatalf("key must be absent after Invalidate")
		}

		c.Put(k, v)
		if got3, ok := c.GetIfPresent(k); !ok || got3 != v {
			t.Fatalf("after re-Put: want %q, got %q ok=%v", v, got3, ok)
		}
	})
}
