package nemweb

import (
	"testing"
)

func TestFileCache_NewFilenameIsFresh(t *testing.T) {
	var c fileCache[int]

	if _, fresh := c.Observe("a.zip"); !fresh {
		t.Error("first observation should be fresh")
	}

	c.Store("a.zip", 42)

	if _, fresh := c.Observe("b.zip"); !fresh {
		t.Error("a different filename should be fresh")
	}
}

func TestFileCache_SameFilenameReturnsCached(t *testing.T) {
	var c fileCache[int]
	c.Store("a.zip", 42)

	got, fresh := c.Observe("a.zip")
	if fresh {
		t.Error("cached filename should not be fresh")
	}
	if got != 42 {
		t.Errorf("cached result = %d, want 42", got)
	}
}

func TestFileCache_StoreReplaces(t *testing.T) {
	var c fileCache[string]
	c.Store("a.zip", "first")
	c.Store("b.zip", "second")

	if _, fresh := c.Observe("a.zip"); !fresh {
		t.Error("superseded filename should be fresh again")
	}
	got, _ := c.Observe("b.zip")
	if got != "second" {
		t.Errorf("cached result = %s, want second", got)
	}
}

func TestFileCache_EmptyFilenameNeverCached(t *testing.T) {
	var c fileCache[int]
	c.Store("", 1)

	if _, fresh := c.Observe(""); !fresh {
		t.Error("empty filename must always be treated as fresh")
	}
}
