package gallery

import (
	"context"
	"testing"

	"github.com/arawak/scenes/internal/store"
)

// fakeSource is an in-memory collection graph for hierarchy tests.
type fakeSource struct {
	collections map[int64]*store.Collection
	children    map[int64][]int64
}

func (f *fakeSource) GetCollection(_ context.Context, id int64) (*store.Collection, error) {
	c, ok := f.collections[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeSource) GetChildren(_ context.Context, id int64) ([]store.CollectionChild, error) {
	var out []store.CollectionChild
	for _, childID := range f.children[id] {
		child := store.CollectionChild{Collection: store.Collection{ID: childID}}
		if c, ok := f.collections[childID]; ok {
			child.Collection = *c
		}
		out = append(out, child)
	}
	return out, nil
}

func coll(id int64, slug string, protected bool) *store.Collection {
	title := "Title of " + slug
	return &store.Collection{ID: id, Slug: slug, Name: slug, Title: &title, Protected: protected}
}

func TestHierarchyWalksChildren(t *testing.T) {
	src := &fakeSource{
		collections: map[int64]*store.Collection{
			1: coll(1, "root", false),
			2: coll(2, "holidays", false),
			3: coll(3, "winter", false),
		},
		children: map[int64][]int64{1: {2}, 2: {3}},
	}

	node, err := buildHierarchy(context.Background(), src, 1, false, map[int64]bool{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if node == nil || node.Slug != "root" {
		t.Fatalf("unexpected root node: %+v", node)
	}
	if len(node.Children) != 1 || node.Children[0].Slug != "holidays" {
		t.Fatalf("expected holidays under root, got %+v", node.Children)
	}
	if len(node.Children[0].Children) != 1 || node.Children[0].Children[0].Slug != "winter" {
		t.Fatalf("expected winter under holidays")
	}
	if node.URL != "/api/collections/root" {
		t.Fatalf("unexpected url: %s", node.URL)
	}
}

func TestHierarchyProtectedTruncation(t *testing.T) {
	src := &fakeSource{
		collections: map[int64]*store.Collection{
			1: coll(1, "root", false),
			2: coll(2, "private", true),
			3: coll(3, "secrets", false),
		},
		children: map[int64][]int64{1: {2}, 2: {3}},
	}

	node, err := buildHierarchy(context.Background(), src, 1, false, map[int64]bool{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	private := node.Children[0]
	if private.Slug != "private" || !private.Protected {
		t.Fatalf("protected child missing from listing: %+v", private)
	}
	if len(private.Children) != 0 {
		t.Fatalf("protected subtree leaked to anonymous caller")
	}
	if private.Title != nil {
		t.Fatalf("protected title leaked to anonymous caller")
	}

	authorized, err := buildHierarchy(context.Background(), src, 1, true, map[int64]bool{})
	if err != nil {
		t.Fatalf("build authorized: %v", err)
	}
	if len(authorized.Children[0].Children) != 1 {
		t.Fatalf("authorized caller should see the protected subtree")
	}
	if authorized.Children[0].Title == nil {
		t.Fatalf("authorized caller should see the protected title")
	}
}

func TestHierarchyStopsAncestorCycle(t *testing.T) {
	// 1 -> 2 -> 1: the second visit of 1 sits on its own path and is dropped.
	src := &fakeSource{
		collections: map[int64]*store.Collection{
			1: coll(1, "root", false),
			2: coll(2, "loop", false),
		},
		children: map[int64][]int64{1: {2}, 2: {1}},
	}

	node, err := buildHierarchy(context.Background(), src, 1, false, map[int64]bool{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	loop := node.Children[0]
	if loop.Slug != "loop" {
		t.Fatalf("expected loop child")
	}
	if len(loop.Children) != 0 {
		t.Fatalf("cycle was not cut: %+v", loop.Children)
	}
}

func TestHierarchyMultiParentRepeats(t *testing.T) {
	// 3 sits under both 2a and 2b; it must appear under each, since only
	// repeats along a single path are cycles.
	src := &fakeSource{
		collections: map[int64]*store.Collection{
			1: coll(1, "root", false),
			2: coll(2, "left", false),
			3: coll(3, "right", false),
			4: coll(4, "shared", false),
		},
		children: map[int64][]int64{1: {2, 3}, 2: {4}, 3: {4}},
	}

	node, err := buildHierarchy(context.Background(), src, 1, false, map[int64]bool{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(node.Children) != 2 {
		t.Fatalf("expected two branches")
	}
	for _, branch := range node.Children {
		if len(branch.Children) != 1 || branch.Children[0].Slug != "shared" {
			t.Fatalf("shared child missing under %s", branch.Slug)
		}
	}
}

func TestHierarchyMissingChildSkipped(t *testing.T) {
	src := &fakeSource{
		collections: map[int64]*store.Collection{
			1: coll(1, "root", false),
		},
		children: map[int64][]int64{1: {99}},
	}
	node, err := buildHierarchy(context.Background(), src, 1, false, map[int64]bool{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(node.Children) != 0 {
		t.Fatalf("dangling child id should be skipped")
	}
}
