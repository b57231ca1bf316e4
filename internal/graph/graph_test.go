package graph

import (
	"io/fs"
	"testing"
)

func TestMemoryStore_AddRootAndGetNode(t *testing.T) {
	store := NewMemoryStore()
	store.AddRoot(&Node{
		ID:       "animals-1",
		Mode:     fs.ModeDir,
		Children: []string{"animals-1/name"},
	})

	node, err := store.GetNode("animals-1")
	if err != nil {
		t.Fatalf("GetNode(animals-1) returned error: %v", err)
	}
	if !node.Mode.IsDir() {
		t.Error("animals-1 should be a directory")
	}
	if len(node.Children) != 1 {
		t.Errorf("animals-1 children = %d, want 1", len(node.Children))
	}
}

func TestMemoryStore_GetNodeNormalizesLeadingSlash(t *testing.T) {
	store := NewMemoryStore()
	store.AddNode(&Node{ID: "foo", Mode: fs.ModeDir})

	node, err := store.GetNode("/foo")
	if err != nil {
		t.Fatalf("GetNode(/foo) should resolve to foo: %v", err)
	}
	if node.ID != "foo" {
		t.Errorf("ID = %q, want %q", node.ID, "foo")
	}
}

func TestMemoryStore_GetNodeMissing(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.GetNode("nope"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := store.ListChildren("nope"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_ListChildrenRoot(t *testing.T) {
	store := NewMemoryStore()
	store.AddRoot(&Node{ID: "a", Mode: fs.ModeDir})
	store.AddRoot(&Node{ID: "b", Mode: fs.ModeDir})
	store.AddRoot(&Node{ID: "a", Mode: fs.ModeDir})

	for _, id := range []string{"", "/"} {
		roots, err := store.ListChildren(id)
		if err != nil {
			t.Fatalf("ListChildren(%q) returned error: %v", id, err)
		}
		if len(roots) != 2 {
			t.Fatalf("roots = %d, want 2", len(roots))
		}
	}
}

func TestMemoryStore_ReadContentOffsets(t *testing.T) {
	store := NewMemoryStore()
	store.AddNode(&Node{ID: "f", Data: []byte("hello world")})

	buf := make([]byte, 5)
	n, err := store.ReadContent("f", buf, 6)
	if err != nil {
		t.Fatalf("ReadContent: %v", err)
	}
	if got := string(buf[:n]); got != "world" {
		t.Errorf("content = %q, want %q", got, "world")
	}

	n, err = store.ReadContent("f", buf, 100)
	if err != nil || n != 0 {
		t.Errorf("read past end = (%d, %v), want (0, nil)", n, err)
	}
}

func TestHotSwapGraph_Swap(t *testing.T) {
	first := NewMemoryStore()
	first.AddRoot(&Node{ID: "old", Mode: fs.ModeDir})
	second := NewMemoryStore()
	second.AddRoot(&Node{ID: "new", Mode: fs.ModeDir})

	h := NewHotSwapGraph(first)
	if _, err := h.GetNode("old"); err != nil {
		t.Fatalf("GetNode(old): %v", err)
	}

	if prev := h.Swap(second); prev != Graph(first) {
		t.Error("Swap should return the previous graph")
	}
	if _, err := h.GetNode("old"); err != ErrNotFound {
		t.Errorf("old node still visible after swap: %v", err)
	}
	roots, _ := h.ListChildren("/")
	if len(roots) != 1 || roots[0] != "new" {
		t.Errorf("roots = %v, want [new]", roots)
	}
}
